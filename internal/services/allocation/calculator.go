package allocation

import (
	"sync"
	"time"

	"TradeMaster/internal/domain/models"
)

// availableBuffer is the fraction of available capital a single decision
// may consume. The remainder always stays liquid.
const availableBuffer = 0.8

// Input bundles everything one sizing computation depends on. The
// computation is a pure function of this struct plus the calculator's
// current parameters, which is what makes decisions reproducible.
type Input struct {
	Profile         models.TokenRiskProfile
	Confidence      float64 // 0-100, externally supplied signal quality
	PatternStrength float64 // 0-100, 0 means unavailable
	WalletSignal    float64 // 0-100, 0 means unavailable
	Aggression      models.AggressionLevel
	Snapshot        models.PortfolioSnapshot
	// SafeModeMaxPct caps the amount at a percentage of total portfolio
	// value while safe mode is active. 0 means no safe-mode restriction.
	SafeModeMaxPct float64
}

// Calculator turns risk and confidence signals into bounded capital
// amounts. Parameters are guarded by their own lock; Calculate itself
// holds no lock beyond reading a consistent parameter copy.
type Calculator struct {
	mu     sync.RWMutex
	params models.AllocationParams
	nowFn  func() time.Time
}

// NewCalculator creates a calculator with the given starting parameters.
func NewCalculator(params models.AllocationParams) *Calculator {
	return &Calculator{params: params, nowFn: time.Now}
}

// SetClock overrides the decision timestamp source. Test hook.
func (c *Calculator) SetClock(now func() time.Time) { c.nowFn = now }

// Params returns the current parameter set.
func (c *Calculator) Params() models.AllocationParams {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.params
}

// UpdateParams validates and applies a partial parameter update. On
// validation failure nothing changes.
func (c *Calculator) UpdateParams(patch models.AllocationParamsPatch) (models.AllocationParams, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	merged := mergeParams(c.params, patch)
	if err := ValidateParams(merged); err != nil {
		return c.params, err
	}
	c.params = merged
	return c.params, nil
}

// Calculate produces an allocation decision. It never fails: exhausted
// capital degrades to a zero-amount decision carrying an explicit reason.
// Every clamp that changes the amount appends to the reasoning trail.
func (c *Calculator) Calculate(in Input) models.AllocationDecision {
	p := c.Params()

	d := models.AllocationDecision{
		Symbol:     in.Profile.Symbol,
		Mint:       in.Profile.Mint,
		Confidence: in.Confidence,
		RiskLevel:  models.RiskLevelFor(in.Profile.OverallRisk),
		CreatedAt:  c.nowFn(),
	}
	if len(in.Profile.MissingSignals) > 0 {
		d.Reasoning = append(d.Reasoning, models.NewReason(models.ReasonSignalsDefaulted,
			"count", len(in.Profile.MissingSignals)))
	}

	// Five independent multipliers, combined multiplicatively.
	confMult := 0.5 + (in.Confidence/100)*1.5
	volMult := 1.5 - in.Profile.VolatilityScore/100
	if volMult < 0.3 {
		volMult = 0.3
	}
	liqMult := 0.5 + (100-in.Profile.LiquidityScore)/100*0.8
	patMult := 1.0
	if in.PatternStrength > 0 {
		patMult = 1 + (in.PatternStrength/100)*0.5
	}
	walletMult := 1.0
	if in.WalletSignal > 0 {
		walletMult = 1 + (in.WalletSignal/100)*0.3
	}

	combined := confMult * volMult * liqMult * patMult * walletMult
	if combined > p.MaxCombinedMultiple {
		d.Reasoning = append(d.Reasoning, models.NewReason(models.ReasonMultiplierCap,
			"raw", combined, "cap", p.MaxCombinedMultiple))
		combined = p.MaxCombinedMultiple
	}

	base := p.BaseAmount
	if in.Aggression.PositionSizeMultiplier > 0 && in.Aggression.PositionSizeMultiplier != 1 {
		base *= in.Aggression.PositionSizeMultiplier
		d.Reasoning = append(d.Reasoning, models.NewReason(models.ReasonAggressionScale,
			"multiplier", in.Aggression.PositionSizeMultiplier))
	}
	d.Reasoning = append(d.Reasoning, models.NewReason(models.ReasonBaseAmount,
		"base", base, "combined", combined))

	amount := clampWithTrail(base*combined, p, &d)
	amount = c.validateAgainstPortfolio(amount, p, in, &d)
	d.Amount = amount

	c.deriveExpectations(&d, in)
	return d
}

// clampWithTrail applies the absolute amount bounds.
func clampWithTrail(amount float64, p models.AllocationParams, d *models.AllocationDecision) float64 {
	if amount < p.MinAmount {
		d.Reasoning = append(d.Reasoning, models.NewReason(models.ReasonClampedToMin,
			"raw", amount, "min", p.MinAmount))
		return p.MinAmount
	}
	if amount > p.MaxAmount {
		d.Reasoning = append(d.Reasoning, models.NewReason(models.ReasonClampedToMax,
			"raw", amount, "max", p.MaxAmount))
		return p.MaxAmount
	}
	return amount
}

// validateAgainstPortfolio enforces portfolio constraints in a fixed
// order: safety cap, portfolio ratio, available-capital buffer, then the
// absolute bounds again.
func (c *Calculator) validateAgainstPortfolio(amount float64, p models.AllocationParams, in Input, d *models.AllocationDecision) float64 {
	if in.Snapshot.AvailableCapital <= 0 {
		d.Reasoning = append(d.Reasoning, models.NewReason(models.ReasonNoCapital,
			"available", in.Snapshot.AvailableCapital))
		return 0
	}

	if p.SafetyCap > 0 && amount > p.SafetyCap {
		d.Reasoning = append(d.Reasoning, models.NewReason(models.ReasonSafetyCap,
			"raw", amount, "cap", p.SafetyCap))
		amount = p.SafetyCap
	}

	if ratioCap := in.Snapshot.TotalValue * p.PortfolioRatioPct / 100; amount > ratioCap {
		d.Reasoning = append(d.Reasoning, models.NewReason(models.ReasonPortfolioRatio,
			"raw", amount, "cap", ratioCap, "ratioPct", p.PortfolioRatioPct))
		amount = ratioCap
	}

	if in.SafeModeMaxPct > 0 {
		if safeCap := in.Snapshot.TotalValue * in.SafeModeMaxPct / 100; amount > safeCap {
			d.Reasoning = append(d.Reasoning, models.NewReason(models.ReasonSafeModeLimit,
				"raw", amount, "cap", safeCap, "maxPct", in.SafeModeMaxPct))
			amount = safeCap
		}
	}

	if bufferCap := in.Snapshot.AvailableCapital * availableBuffer; amount > bufferCap {
		d.Reasoning = append(d.Reasoning, models.NewReason(models.ReasonAvailableBuffer,
			"raw", amount, "cap", bufferCap))
		amount = bufferCap
	}

	// Re-apply absolute bounds after the portfolio clamps, except that the
	// minimum never overrides an exhausted-capital or buffer result below it.
	if amount > p.MaxAmount {
		d.Reasoning = append(d.Reasoning, models.NewReason(models.ReasonClampedToMax,
			"raw", amount, "max", p.MaxAmount))
		amount = p.MaxAmount
	}
	return amount
}

// Stop-loss percentages per risk level.
var stopLossByLevel = map[models.RiskLevel]float64{
	models.RiskLow:     8,
	models.RiskMedium:  12,
	models.RiskHigh:    18,
	models.RiskExtreme: 25,
}

// Take-profit as a fraction of expected ROI per risk level.
var takeProfitFraction = map[models.RiskLevel]float64{
	models.RiskLow:     0.8,
	models.RiskMedium:  0.6,
	models.RiskHigh:    0.5,
	models.RiskExtreme: 0.4,
}

// deriveExpectations fills the deterministic outlook fields: expected ROI,
// holding period, stop-loss and take-profit.
func (c *Calculator) deriveExpectations(d *models.AllocationDecision, in Input) {
	roi := 15 + in.Confidence*0.3 + (100-in.Profile.VolatilityScore)*0.1
	if roi < 5 {
		roi = 5
	}
	if roi > 200 {
		roi = 200
	}
	d.ExpectedROIPct = roi

	hold := 60 * (1 - in.Profile.VolatilityScore/100*0.5) * (1 + in.Confidence/100*0.5)
	if hold < 5 {
		hold = 5
	}
	if hold > 480 {
		hold = 480
	}
	d.HoldingMinutes = int(hold)

	d.StopLossPct = stopLossByLevel[d.RiskLevel]
	tp := roi * takeProfitFraction[d.RiskLevel]
	if tp < 10 {
		tp = 10
	}
	d.TakeProfitPct = tp
	d.MaxLoss = d.Amount * d.StopLossPct / 100
}
