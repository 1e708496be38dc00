package regime

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"TradeMaster/internal/domain/models"
	"TradeMaster/internal/services/portfolio"
)

const (
	tradeWindow  = 24 * time.Hour
	valueWindow  = 4 * time.Hour
	drawdownSpan = 10 // trailing trades, same definition the guard uses

	// Confidence score weights.
	weightWinRate    = 0.35
	weightVolatility = 0.20
	weightDrawdown   = 0.25
	weightPumps      = 0.20

	// A trade counts as a pump above this realized PnL.
	pumpMinPnL = 0.1
	// Pump rate that maps to a full pump sub-score.
	pumpFullRate = 3.0

	// Candidate rule thresholds.
	emergencyDrawdownPct    = 25
	conservativeDrawdownPct = 15
	volatilityCeilingPct    = 60
	lowConfidence           = 30
	highConfidence          = 80
	hyperDrawdownPct        = 5
	hyperPumpRate           = 2.0

	// Hysteresis: same-mode candidates apply only past this delta.
	multiplierDeadband = 0.2

	maxAdjustments = 20
	maxMetricsLog  = 288 // 24h at the 5m reference period
)

// PortfolioReader is the trailing-window view the controller consumes.
// The ledger satisfies it.
type PortfolioReader interface {
	TradesSince(t time.Time) []models.TradeEvent
	ValuesSince(t time.Time) []float64
}

// Aggression presets. Conservative-minimum shares the conservative mode;
// the multiplier gap is wider than the deadband so the two still swap.
var (
	conservativeMin = models.AggressionLevel{
		Mode: models.AggressionConservative, PositionSizeMultiplier: 0.3,
		AutoCompoundRatePct: 0, CashBufferPct: 50, MaxConcurrentTrades: 1,
	}
	conservative = models.AggressionLevel{
		Mode: models.AggressionConservative, PositionSizeMultiplier: 0.6,
		AutoCompoundRatePct: 25, CashBufferPct: 30, MaxConcurrentTrades: 2,
	}
	scaled = models.AggressionLevel{
		Mode: models.AggressionScaled, PositionSizeMultiplier: 1.0,
		AutoCompoundRatePct: 50, CashBufferPct: 20, MaxConcurrentTrades: 3,
	}
	hyper = models.AggressionLevel{
		Mode: models.AggressionHyper, PositionSizeMultiplier: 1.5,
		AutoCompoundRatePct: 75, CashBufferPct: 10, MaxConcurrentTrades: 5,
	}
)

// Controller is the meta layer that periodically re-reads portfolio
// conditions and retunes the aggression level everything else sizes
// against. It owns no timer; the scheduler drives Tick.
type Controller struct {
	mu sync.Mutex

	reader      PortfolioReader
	active      bool
	current     models.AggressionLevel
	regime      models.ConfidenceRegime
	metricsLog  []models.PortfolioMetrics
	adjustments []models.MetaAdjustment
	nowFn       func() time.Time
}

// NewController starts in the scaled default, active.
func NewController(reader PortfolioReader) *Controller {
	return &Controller{
		reader:  reader,
		active:  true,
		current: scaled,
		regime: models.ConfidenceRegime{
			Class: models.RegimeUncertain,
			Score: 50,
		},
		nowFn: time.Now,
	}
}

// SetClock overrides the controller's clock. Test hook.
func (c *Controller) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.nowFn = now
	c.mu.Unlock()
}

// SetActive pauses or resumes tick processing. Queries keep working
// against the last computed state either way.
func (c *Controller) SetActive(active bool) {
	c.mu.Lock()
	c.active = active
	c.mu.Unlock()
}

// IsActive reports whether ticks are being processed.
func (c *Controller) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Tick runs one recompute cycle: metrics, confidence, regime, candidate
// aggression, hysteresis. Reports whether an adjustment was applied.
func (c *Controller) Tick() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return false
	}

	now := c.nowFn()
	m := c.computeMetrics(now)
	c.metricsLog = append(c.metricsLog, m)
	if len(c.metricsLog) > maxMetricsLog {
		c.metricsLog = c.metricsLog[len(c.metricsLog)-maxMetricsLog:]
	}

	score, indicators := confidenceScore(m)
	c.regime = models.ConfidenceRegime{
		Class:      classify(score),
		Score:      score,
		Indicators: indicators,
		ComputedAt: now,
	}

	candidate, reason := candidateFor(score, m)

	// Hysteresis: near-identical candidates are a no-op.
	if candidate.Mode == c.current.Mode &&
		abs(candidate.PositionSizeMultiplier-c.current.PositionSizeMultiplier) <= multiplierDeadband {
		return false
	}

	c.adjustments = append(c.adjustments, models.MetaAdjustment{
		Timestamp: now,
		Reason:    reason,
		From:      c.current,
		To:        candidate,
		Metrics:   m,
	})
	if len(c.adjustments) > maxAdjustments {
		c.adjustments = c.adjustments[len(c.adjustments)-maxAdjustments:]
	}
	c.current = candidate
	return true
}

// computeMetrics aggregates the trailing trade and value windows.
func (c *Controller) computeMetrics(now time.Time) models.PortfolioMetrics {
	trades := c.reader.TradesSince(now.Add(-tradeWindow))
	values := c.reader.ValuesSince(now.Add(-valueWindow))

	m := models.PortfolioMetrics{TradeCount: len(trades), ComputedAt: now}

	wins, pumps := 0, 0
	for _, ev := range trades {
		m.TotalPnL += ev.PnL
		if !ev.IsLoss() {
			wins++
		}
		if ev.PnL >= pumpMinPnL {
			pumps++
		}
	}
	if len(trades) > 0 {
		m.WinRatePct = float64(wins) / float64(len(trades)) * 100

		spanHours := now.Sub(trades[0].Timestamp).Hours()
		if spanHours < 1 {
			spanHours = 1
		}
		m.PumpsPerHour = float64(pumps) / spanHours

		start := len(trades) - drawdownSpan
		if start < 0 {
			start = 0
		}
		pnls := make([]float64, 0, drawdownSpan)
		for _, ev := range trades[start:] {
			pnls = append(pnls, ev.PnL)
		}
		m.DrawdownPct = portfolio.TradeDrawdownPct(pnls)
	}

	rets := portfolio.LogReturns(values)
	// Aggregate volatility of the sample window, in percent.
	m.VolatilityPct = portfolio.RealizedVolatility(rets, len(rets), float64(len(rets))) * 100
	return m
}

// confidenceScore folds the metrics into a 0-100 score. With no trade
// history the score sits at a neutral 50.
func confidenceScore(m models.PortfolioMetrics) (float64, map[string]float64) {
	if m.TradeCount == 0 {
		return 50, nil
	}

	volScore := clamp01(100 - m.VolatilityPct)
	ddScore := clamp01(100 - m.DrawdownPct*4)
	pumpScore := clamp01(m.PumpsPerHour / pumpFullRate * 100)

	score := weightWinRate*m.WinRatePct +
		weightVolatility*volScore +
		weightDrawdown*ddScore +
		weightPumps*pumpScore

	return clamp01(score), map[string]float64{
		"winRate":    m.WinRatePct,
		"volatility": volScore,
		"drawdown":   ddScore,
		"pumps":      pumpScore,
	}
}

func classify(score float64) models.RegimeClass {
	switch {
	case score >= 70:
		return models.RegimeHigh
	case score >= 40:
		return models.RegimeMedium
	default:
		return models.RegimeUncertain
	}
}

// candidateFor applies the fixed rule ladder, worst conditions first. The
// reason names only the thresholds that were actually crossed.
func candidateFor(score float64, m models.PortfolioMetrics) (models.AggressionLevel, string) {
	var parts []string

	if m.DrawdownPct > emergencyDrawdownPct || m.VolatilityPct > volatilityCeilingPct {
		if m.DrawdownPct > emergencyDrawdownPct {
			parts = append(parts, fmt.Sprintf("drawdown %.1f%% > %d%%", m.DrawdownPct, emergencyDrawdownPct))
		}
		if m.VolatilityPct > volatilityCeilingPct {
			parts = append(parts, fmt.Sprintf("volatility %.1f%% > %d%%", m.VolatilityPct, volatilityCeilingPct))
		}
		return conservativeMin, strings.Join(parts, ", ")
	}

	if m.DrawdownPct > conservativeDrawdownPct || score < lowConfidence {
		if m.DrawdownPct > conservativeDrawdownPct {
			parts = append(parts, fmt.Sprintf("drawdown %.1f%% > %d%%", m.DrawdownPct, conservativeDrawdownPct))
		}
		if score < lowConfidence {
			parts = append(parts, fmt.Sprintf("confidence %.0f < %d", score, lowConfidence))
		}
		return conservative, strings.Join(parts, ", ")
	}

	if score >= highConfidence && m.DrawdownPct < hyperDrawdownPct && m.PumpsPerHour > hyperPumpRate {
		return hyper, fmt.Sprintf("confidence %.0f >= %d, drawdown %.1f%% < %d%%, %.1f pumps/hr > %.0f/hr",
			score, highConfidence, m.DrawdownPct, hyperDrawdownPct, m.PumpsPerHour, hyperPumpRate)
	}

	return scaled, "conditions normal"
}

// Current returns the last computed confidence regime.
func (c *Controller) Current() models.ConfidenceRegime {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.regime
}

// Aggression returns the currently applied aggression level.
func (c *Controller) Aggression() models.AggressionLevel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// RecentMetrics returns metrics computed within the trailing hours window,
// oldest first.
func (c *Controller) RecentMetrics(hours int) []models.PortfolioMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	if hours <= 0 {
		hours = 24
	}
	cutoff := c.nowFn().Add(-time.Duration(hours) * time.Hour)
	out := make([]models.PortfolioMetrics, 0)
	for _, m := range c.metricsLog {
		if !m.ComputedAt.Before(cutoff) {
			out = append(out, m)
		}
	}
	return out
}

// AdjustmentHistory returns the applied adjustments, newest first.
func (c *Controller) AdjustmentHistory() []models.MetaAdjustment {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.MetaAdjustment, 0, len(c.adjustments))
	for i := len(c.adjustments) - 1; i >= 0; i-- {
		out = append(out, c.adjustments[i])
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
