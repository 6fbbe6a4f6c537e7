// Package marketdata holds the derived, read-only per-symbol view of the
// market. Snapshots are immutable once published: the engine writes a
// fresh value after every matching pass or simulated tick and readers
// never observe a partially updated one.
package marketdata

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is the published market data for one symbol.
type Snapshot struct {
	Symbol        string
	LastPrice     decimal.Decimal
	BidPrice      decimal.Decimal
	AskPrice      decimal.Decimal
	Change        decimal.Decimal // vs. opening price
	ChangePercent decimal.Decimal
	UpdatedAt     time.Time
}

// Trade is one executed fill on the tape.
type Trade struct {
	ID         string
	Symbol     string
	Price      decimal.Decimal
	Quantity   int64
	TakerSide  string // "buy" or "sell"
	ExecutedAt time.Time
}

// EventType discriminates published events for stream subscribers.
type EventType string

const (
	EventMarketData EventType = "marketdata"
	EventTrade      EventType = "trade"
)

// Event is what stream subscribers receive on every publish.
type Event struct {
	Type     EventType
	Snapshot *Snapshot
	Trade    *Trade
}

// Publisher fans out snapshots and trades to concurrent readers and
// stream subscribers without blocking the writer.
type Publisher struct {
	mu        sync.RWMutex
	snaps     map[string]Snapshot
	trades    map[string][]Trade
	tapeDepth int
	subs      map[int]chan Event
	nextSubID int
}

// NewPublisher creates a publisher keeping up to tapeDepth recent trades
// per symbol.
func NewPublisher(tapeDepth int) *Publisher {
	if tapeDepth <= 0 {
		tapeDepth = 50
	}
	return &Publisher{
		snaps:     make(map[string]Snapshot),
		trades:    make(map[string][]Trade),
		tapeDepth: tapeDepth,
		subs:      make(map[int]chan Event),
	}
}

// Publish replaces the symbol's snapshot and notifies subscribers.
func (p *Publisher) Publish(s Snapshot) {
	p.mu.Lock()
	p.snaps[s.Symbol] = s
	p.notify(Event{Type: EventMarketData, Snapshot: &s})
	p.mu.Unlock()
}

// RecordTrade appends a fill to the symbol's tape and notifies subscribers.
func (p *Publisher) RecordTrade(t Trade) {
	p.mu.Lock()
	tape := append(p.trades[t.Symbol], t)
	if len(tape) > p.tapeDepth {
		tape = tape[len(tape)-p.tapeDepth:]
	}
	p.trades[t.Symbol] = tape
	p.notify(Event{Type: EventTrade, Trade: &t})
	p.mu.Unlock()
}

// Get returns the current snapshot for one symbol.
func (p *Publisher) Get(symbol string) (Snapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.snaps[symbol]
	return s, ok
}

// All returns a copy of every published snapshot.
func (p *Publisher) All() map[string]Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]Snapshot, len(p.snaps))
	for sym, s := range p.snaps {
		out[sym] = s
	}
	return out
}

// RecentTrades returns up to limit most recent trades, newest last.
func (p *Publisher) RecentTrades(symbol string, limit int) []Trade {
	p.mu.RLock()
	defer p.mu.RUnlock()
	tape := p.trades[symbol]
	if limit <= 0 || limit > len(tape) {
		limit = len(tape)
	}
	out := make([]Trade, limit)
	copy(out, tape[len(tape)-limit:])
	return out
}

// Subscribe registers a stream consumer. The returned cancel func must be
// called when done. Slow consumers drop events rather than blocking the
// engine's writer.
func (p *Publisher) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	p.mu.Lock()
	id := p.nextSubID
	p.nextSubID++
	p.subs[id] = ch
	p.mu.Unlock()

	cancel := func() {
		p.mu.Lock()
		if sub, ok := p.subs[id]; ok {
			delete(p.subs, id)
			close(sub)
		}
		p.mu.Unlock()
	}
	return ch, cancel
}

// notify requires p.mu held.
func (p *Publisher) notify(ev Event) {
	for _, ch := range p.subs {
		select {
		case ch <- ev:
		default:
			// subscriber buffer full, drop
		}
	}
}
