// Package api is the embedding surface around the engine: a REST API for
// order flow and snapshots plus a WebSocket stream for market data. The
// engine itself knows nothing about transport.
package api

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ngaboserge/capitallab-simulator-sub005/pkg/engine"
	"github.com/ngaboserge/capitallab-simulator-sub005/pkg/engine/marketdata"
	"github.com/ngaboserge/capitallab-simulator-sub005/pkg/engine/quote"
)

// Options tunes the server; zero values get sensible defaults.
type Options struct {
	AllowedOrigins  []string
	OrderRatePerSec float64 // per client IP
	OrderBurst      int
}

// Server handles REST and WebSocket connections for one engine instance.
type Server struct {
	eng    *engine.Engine
	log    *zap.SugaredLogger
	router *mux.Router
	hub    *Hub
	opts   Options

	limMu    sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewServer(eng *engine.Engine, log *zap.SugaredLogger, opts Options) *Server {
	if opts.OrderRatePerSec <= 0 {
		opts.OrderRatePerSec = 10
	}
	if opts.OrderBurst <= 0 {
		opts.OrderBurst = 20
	}
	s := &Server{
		eng:      eng,
		log:      log,
		router:   mux.NewRouter(),
		hub:      NewHub(log),
		opts:     opts,
		limiters: make(map[string]*rate.Limiter),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Instrument & market data endpoints
	api.HandleFunc("/instruments", s.handleGetInstruments).Methods("GET")
	api.HandleFunc("/instruments/{symbol}", s.handleGetInstrument).Methods("GET")
	api.HandleFunc("/marketdata", s.handleGetAllMarketData).Methods("GET")
	api.HandleFunc("/marketdata/{symbol}", s.handleGetMarketData).Methods("GET")
	api.HandleFunc("/orderbook/{symbol}", s.handleGetOrderbook).Methods("GET")
	api.HandleFunc("/trades/{symbol}", s.handleGetTrades).Methods("GET")

	// Maker state endpoints
	api.HandleFunc("/inventory", s.handleGetAllInventory).Methods("GET")
	api.HandleFunc("/inventory/{symbol}", s.handleGetInventory).Methods("GET")
	api.HandleFunc("/spreads/{symbol}", s.handleGetSpreadConfig).Methods("GET")
	api.HandleFunc("/spreads/{symbol}", s.handleUpdateSpreadConfig).Methods("PUT")

	// Order flow
	api.Handle("/orders", s.rateLimited(http.HandlerFunc(s.handleSubmitOrder))).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")
	api.HandleFunc("/orders/{id}", s.handleGetOrder).Methods("GET")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the CORS-wrapped root handler so the embedder owns the
// http.Server lifecycle.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   s.opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return c.Handler(s.router)
}

// Run starts the hub and the market data pump, then serves on addr.
func (s *Server) Run(addr string) error {
	go s.hub.Run()
	go s.pumpMarketData()

	s.log.Infow("api_server_starting", "addr", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// pumpMarketData forwards engine publishes to subscribed WS clients.
func (s *Server) pumpMarketData() {
	events, cancel := s.eng.MarketData().Subscribe(256)
	defer cancel()

	for ev := range events {
		switch ev.Type {
		case marketdata.EventMarketData:
			channel := "marketdata:" + ev.Snapshot.Symbol
			s.hub.BroadcastToChannel(channel, WSMessage{
				Type:    "marketdata",
				Channel: channel,
				Data:    toMarketDataInfo(*ev.Snapshot),
			})
		case marketdata.EventTrade:
			channel := "trades:" + ev.Trade.Symbol
			s.hub.BroadcastToChannel(channel, WSMessage{
				Type:    "trade",
				Channel: channel,
				Data:    toTradeInfo(*ev.Trade),
			})
		}
	}
}

// rateLimited throttles order submission per client IP.
func (s *Server) rateLimited(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		s.limMu.Lock()
		lim, ok := s.limiters[ip]
		if !ok {
			lim = rate.NewLimiter(rate.Limit(s.opts.OrderRatePerSec), s.opts.OrderBurst)
			s.limiters[ip] = lim
		}
		s.limMu.Unlock()

		if !lim.Allow() {
			respondError(w, http.StatusTooManyRequests, "rate limited", "slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleGetInstruments(w http.ResponseWriter, r *http.Request) {
	ins := s.eng.Instruments().List()
	out := make([]InstrumentInfo, len(ins))
	for i, in := range ins {
		out[i] = InstrumentInfo{Symbol: in.Symbol, Name: in.Name, TickSize: in.TickSize, OpeningPrice: in.OpeningPrice}
	}
	respondJSON(w, out)
}

func (s *Server) handleGetInstrument(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	in, ok := s.eng.Instruments().Get(symbol)
	if !ok {
		respondError(w, http.StatusNotFound, "instrument not found", symbol)
		return
	}
	respondJSON(w, InstrumentInfo{Symbol: in.Symbol, Name: in.Name, TickSize: in.TickSize, OpeningPrice: in.OpeningPrice})
}

func (s *Server) handleGetAllMarketData(w http.ResponseWriter, r *http.Request) {
	all := s.eng.AllMarketData()
	out := make(map[string]MarketDataInfo, len(all))
	for sym, snap := range all {
		out[sym] = toMarketDataInfo(snap)
	}
	respondJSON(w, out)
}

func (s *Server) handleGetMarketData(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	snap, ok := s.eng.GetMarketData(symbol)
	if !ok {
		respondError(w, http.StatusNotFound, "market data not found", symbol)
		return
	}
	respondJSON(w, toMarketDataInfo(snap))
}

func (s *Server) handleGetOrderbook(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	snap, ok := s.eng.GetOrderBook(symbol)
	if !ok {
		respondError(w, http.StatusNotFound, "orderbook not found", symbol)
		return
	}

	bids := make([]PriceLevel, len(snap.Bids))
	for i, l := range snap.Bids {
		bids[i] = PriceLevel{Price: l.Price, Quantity: l.Quantity, Orders: l.Orders}
	}
	asks := make([]PriceLevel, len(snap.Asks))
	for i, l := range snap.Asks {
		asks[i] = PriceLevel{Price: l.Price, Quantity: l.Quantity, Orders: l.Orders}
	}

	respondJSON(w, OrderbookSnapshot{
		Symbol:    snap.Symbol,
		Bids:      bids,
		Asks:      asks,
		MakerBid:  snap.MakerBid,
		MakerAsk:  snap.MakerAsk,
		MakerSize: snap.MakerSize,
		Timestamp: snap.Timestamp.UnixMilli(),
	})
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	if !s.eng.Instruments().Exists(symbol) {
		respondError(w, http.StatusNotFound, "instrument not found", symbol)
		return
	}
	trades := s.eng.MarketData().RecentTrades(symbol, 0)
	out := make([]TradeInfo, len(trades))
	for i, t := range trades {
		out[i] = toTradeInfo(t)
	}
	respondJSON(w, out)
}

func (s *Server) handleGetAllInventory(w http.ResponseWriter, r *http.Request) {
	all := s.eng.AllInventory()
	out := make(map[string]InventoryInfo, len(all))
	for sym, pos := range all {
		out[sym] = InventoryInfo{Symbol: pos.Symbol, NetPosition: pos.NetPosition, AverageCost: pos.AverageCost}
	}
	respondJSON(w, out)
}

func (s *Server) handleGetInventory(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	pos, ok := s.eng.GetInventory(symbol)
	if !ok {
		respondError(w, http.StatusNotFound, "inventory not found", symbol)
		return
	}
	respondJSON(w, InventoryInfo{Symbol: pos.Symbol, NetPosition: pos.NetPosition, AverageCost: pos.AverageCost})
}

func (s *Server) handleGetSpreadConfig(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	cfg, ok := s.eng.GetSpreadConfig(symbol)
	if !ok {
		respondError(w, http.StatusNotFound, "spread config not found", symbol)
		return
	}
	respondJSON(w, toSpreadConfigInfo(cfg))
}

func (s *Server) handleUpdateSpreadConfig(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	var req SpreadConfigUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	cfg, err := s.eng.UpdateSpreadConfig(symbol, quote.ConfigUpdate{
		BaseSpreadBps:       req.BaseSpreadBps,
		MinSpreadAbs:        req.MinSpreadAbs,
		MaxSpreadAbs:        req.MaxSpreadAbs,
		InventorySkewFactor: req.InventorySkewFactor,
		MaxPosition:         req.MaxPosition,
		QuoteSize:           req.QuoteSize,
	})
	if err != nil {
		respondError(w, http.StatusNotFound, "spread config not found", err.Error())
		return
	}
	respondJSON(w, toSpreadConfigInfo(cfg))
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req SubmitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	var side engine.Side
	switch req.Side {
	case "buy":
		side = engine.Buy
	case "sell":
		side = engine.Sell
	default:
		respondError(w, http.StatusBadRequest, "invalid side", req.Side)
		return
	}

	var order engine.Order
	switch req.Kind {
	case "market":
		order = engine.NewMarketOrder(req.Symbol, side, req.Quantity)
	case "limit":
		if req.Price == nil {
			respondError(w, http.StatusBadRequest, "price required for limit order", "")
			return
		}
		order = engine.NewLimitOrder(req.Symbol, side, req.Quantity, *req.Price)
	default:
		respondError(w, http.StatusBadRequest, "invalid kind", req.Kind)
		return
	}

	res, err := s.eng.Submit(order)
	if err != nil && !errors.Is(err, engine.ErrUnfilledRemainder) {
		// validation rejection: no state changed
		respondStatus(w, http.StatusUnprocessableEntity, toSubmitResponse(res))
		return
	}
	respondJSON(w, toSubmitResponse(res))
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	ok := s.eng.Cancel(req.OrderID)
	respondJSON(w, CancelOrderResponse{OrderID: req.OrderID, Cancelled: ok})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	info, ok := s.eng.GetOrder(id)
	if !ok {
		respondError(w, http.StatusNotFound, "order not found or no longer resting", id)
		return
	}
	respondJSON(w, map[string]interface{}{
		"id":          info.ID,
		"symbol":      info.Symbol,
		"side":        info.Side.String(),
		"price":       info.Price,
		"quantity":    info.Quantity,
		"original":    info.Original,
		"submittedAt": info.SubmittedAt.UnixMilli(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Helpers
// ==============================

func toMarketDataInfo(snap marketdata.Snapshot) MarketDataInfo {
	return MarketDataInfo{
		Symbol:        snap.Symbol,
		LastPrice:     snap.LastPrice,
		BidPrice:      snap.BidPrice,
		AskPrice:      snap.AskPrice,
		Change:        snap.Change,
		ChangePercent: snap.ChangePercent,
		UpdatedAt:     snap.UpdatedAt.UnixMilli(),
	}
}

func toTradeInfo(t marketdata.Trade) TradeInfo {
	return TradeInfo{
		ID:        t.ID,
		Symbol:    t.Symbol,
		Price:     t.Price,
		Quantity:  t.Quantity,
		TakerSide: t.TakerSide,
		Timestamp: t.ExecutedAt.UnixMilli(),
	}
}

func toSpreadConfigInfo(cfg quote.SpreadConfig) SpreadConfigInfo {
	return SpreadConfigInfo{
		Symbol:              cfg.Symbol,
		BaseSpreadBps:       cfg.BaseSpreadBps,
		MinSpreadAbs:        cfg.MinSpreadAbs,
		MaxSpreadAbs:        cfg.MaxSpreadAbs,
		InventorySkewFactor: cfg.InventorySkewFactor,
		MaxPosition:         cfg.MaxPosition,
		QuoteSize:           cfg.QuoteSize,
	}
}

func toSubmitResponse(res engine.MatchResult) SubmitOrderResponse {
	fills := make([]FillInfo, len(res.Fills))
	for i, f := range res.Fills {
		fills[i] = FillInfo{Price: f.Price, Quantity: f.Quantity, CounterpartyID: f.CounterpartyID}
	}
	return SubmitOrderResponse{
		OrderID:           res.OrderID,
		Status:            string(res.Status),
		Fills:             fills,
		FilledQuantity:    res.FilledQuantity,
		RemainingQuantity: res.RemainingQuantity,
		Resting:           res.Resting,
		Reason:            res.Reason,
	}
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	respondStatus(w, http.StatusOK, data)
}

func respondStatus(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, code int, msg, detail string) {
	respondStatus(w, code, ErrorResponse{Error: msg, Message: detail})
}
