package models

import "time"

// TradeSide is the direction of an executed trade.
type TradeSide string

const (
	SideBuy  TradeSide = "buy"
	SideSell TradeSide = "sell"
)

// TradeEvent is an executed trade outcome reported by the external
// execution layer. The engine never initiates trades; it only consumes
// their results. Per-symbol arrival order must be preserved because
// consecutive-loss counting is order sensitive.
type TradeEvent struct {
	Symbol         string    `json:"symbol"`
	Side           TradeSide `json:"side"`
	PnL            float64   `json:"pnl"`
	PortfolioValue float64   `json:"portfolioValue"`
	Timestamp      time.Time `json:"timestamp"`
}

// IsLoss reports whether the trade realized a negative PnL.
func (t TradeEvent) IsLoss() bool { return t.PnL < 0 }

// PortfolioSnapshot is a point-in-time read of the shared ledger.
type PortfolioSnapshot struct {
	TotalValue           float64   `json:"totalValue"`
	AvailableCapital     float64   `json:"availableCapital"`
	AllocatedCapital     float64   `json:"allocatedCapital"`
	PositionCount        int       `json:"positionCount"`
	AvgPositionSize      float64   `json:"avgPositionSize"`
	RiskExposurePct      float64   `json:"riskExposurePct"`
	DiversificationScore float64   `json:"diversificationScore"`
	PerformanceScore     float64   `json:"performanceScore"`
	UpdatedAt            time.Time `json:"updatedAt"`
}
