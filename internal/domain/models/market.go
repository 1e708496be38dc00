package models

import "time"

// MarketSignals carries the raw per-asset market observations the risk
// assessor scores. Upstream providers are allowed to return stale or partial
// data, so every signal is a pointer: nil means "not reported", and the
// assessor substitutes its fixed neutral default instead of guessing.
type MarketSignals struct {
	Symbol string `json:"symbol"`
	Mint   string `json:"mint,omitempty"`

	PriceChange24h *float64 `json:"priceChange24h,omitempty"`
	Liquidity      *float64 `json:"liquidity,omitempty"`
	Volume24h      *float64 `json:"volume24h,omitempty"`
	MarketCap      *float64 `json:"marketCap,omitempty"`

	// Optional extended signals; most providers do not report them.
	TopHolderPct  *float64 `json:"topHolderPct,omitempty"`
	ContractScore *float64 `json:"contractScore,omitempty"`

	FetchedAt time.Time `json:"fetchedAt,omitempty"`
}

// Float returns a pointer to v. Convenience for building signals in tests
// and request decoding.
func Float(v float64) *float64 { return &v }

// PriceMark is a single streamed price observation for a tracked asset.
type PriceMark struct {
	Symbol string
	Price  float64
	Time   time.Time
}
