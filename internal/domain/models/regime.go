package models

import "time"

// RegimeClass is the meta-controller's read of overall conditions.
type RegimeClass string

const (
	RegimeHigh      RegimeClass = "high"
	RegimeMedium    RegimeClass = "medium"
	RegimeUncertain RegimeClass = "uncertain"
)

// AggressionMode is the actionable counterpart of the regime.
type AggressionMode string

const (
	AggressionConservative AggressionMode = "conservative"
	AggressionScaled       AggressionMode = "scaled"
	AggressionHyper        AggressionMode = "hyper"
)

// AggressionLevel carries the sizing knobs the allocation calculator
// scales against.
type AggressionLevel struct {
	Mode                   AggressionMode `json:"mode"`
	PositionSizeMultiplier float64        `json:"positionSizeMultiplier"`
	AutoCompoundRatePct    float64        `json:"autoCompoundRatePct"`
	CashBufferPct          float64        `json:"cashBufferPct"`
	MaxConcurrentTrades    int            `json:"maxConcurrentTrades"`
}

// ConfidenceRegime is the classification produced each controller cycle.
type ConfidenceRegime struct {
	Class      RegimeClass        `json:"class"`
	Score      float64            `json:"score"`
	Indicators map[string]float64 `json:"indicators,omitempty"`
	ComputedAt time.Time          `json:"computedAt"`
}

// PortfolioMetrics aggregates trailing trade and value-history windows.
type PortfolioMetrics struct {
	WinRatePct     float64   `json:"winRatePct"`
	VolatilityPct  float64   `json:"volatilityPct"`
	DrawdownPct    float64   `json:"drawdownPct"`
	PumpsPerHour   float64   `json:"pumpsPerHour"`
	TradeCount     int       `json:"tradeCount"`
	TotalPnL       float64   `json:"totalPnl"`
	ComputedAt     time.Time `json:"computedAt"`
}

// MetaAdjustment records one applied aggression change. Near-identical
// candidates are suppressed by hysteresis and produce no record.
type MetaAdjustment struct {
	Timestamp time.Time        `json:"timestamp"`
	Reason    string           `json:"reason"`
	From      AggressionLevel  `json:"from"`
	To        AggressionLevel  `json:"to"`
	Metrics   PortfolioMetrics `json:"metrics"`
}
