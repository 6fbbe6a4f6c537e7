package instrument

import (
	"fmt"
	"sort"
	"sync"
)

// Registry manages the set of traded instruments in a thread-safe manner.
// Registration happens at startup; lookups run concurrently afterwards.
type Registry struct {
	mu          sync.RWMutex
	instruments map[string]Instrument // symbol -> instrument
}

// NewRegistry creates an empty instrument registry
func NewRegistry() *Registry {
	return &Registry{
		instruments: make(map[string]Instrument),
	}
}

// Register adds a new instrument to the registry.
// Returns error if an instrument with the same symbol already exists.
func (r *Registry) Register(in Instrument) error {
	if err := in.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.instruments[in.Symbol]; exists {
		return fmt.Errorf("instrument %s already registered", in.Symbol)
	}

	r.instruments[in.Symbol] = in
	return nil
}

// Get retrieves an instrument by symbol.
func (r *Registry) Get(symbol string) (Instrument, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	in, exists := r.instruments[symbol]
	return in, exists
}

// List returns all registered instruments sorted by symbol.
func (r *Registry) List() []Instrument {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Instrument, 0, len(r.instruments))
	for _, in := range r.instruments {
		out = append(out, in)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Exists checks if a symbol is registered
func (r *Registry) Exists(symbol string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.instruments[symbol]
	return exists
}

// Count returns the total number of registered instruments
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.instruments)
}
