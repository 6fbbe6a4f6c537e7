package params

// Listing is the bootstrap definition of one traded symbol: instrument
// metadata plus initial quoting parameters. Prices are decimal strings so
// defaults survive exactly into the engine's decimal arithmetic.
type Listing struct {
	Symbol        string
	Name          string
	TickSize      string
	OpeningPrice  string
	BaseSpreadBps int64
	MinSpreadAbs  string
	MaxSpreadAbs  string
	SkewFactor    string // price shift per share of maker inventory
	MaxPosition   int64
	QuoteSize     int64
}

// DefaultListings is the daemon's bootstrap universe. Runtime listing
// goes through Engine.AddInstrument.
func DefaultListings() []Listing {
	return []Listing{
		{Symbol: "BK", Name: "Bank of Kigali Group", TickSize: "0.01", OpeningPrice: "285.50",
			BaseSpreadBps: 50, MinSpreadAbs: "0.5", MaxSpreadAbs: "5", SkewFactor: "0.002",
			MaxPosition: 5000, QuoteSize: 1000},
		{Symbol: "MTN", Name: "MTN Rwandacell", TickSize: "0.01", OpeningPrice: "178.00",
			BaseSpreadBps: 60, MinSpreadAbs: "0.4", MaxSpreadAbs: "4", SkewFactor: "0.0015",
			MaxPosition: 8000, QuoteSize: 1500},
		{Symbol: "CMR", Name: "Cimerwa PLC", TickSize: "0.01", OpeningPrice: "96.25",
			BaseSpreadBps: 80, MinSpreadAbs: "0.3", MaxSpreadAbs: "3", SkewFactor: "0.001",
			MaxPosition: 10000, QuoteSize: 2000},
		{Symbol: "EQTY", Name: "Equity Group Holdings", TickSize: "0.01", OpeningPrice: "44.80",
			BaseSpreadBps: 70, MinSpreadAbs: "0.2", MaxSpreadAbs: "2", SkewFactor: "0.0008",
			MaxPosition: 15000, QuoteSize: 2500},
	}
}
