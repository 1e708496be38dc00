package allocation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeMaster/internal/domain/models"
)

func fixedClock() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func testSnapshot(total, available float64) models.PortfolioSnapshot {
	return models.PortfolioSnapshot{
		TotalValue:       total,
		AvailableCapital: available,
		AllocatedCapital: total - available,
	}
}

func scaledAggression() models.AggressionLevel {
	return models.AggressionLevel{Mode: models.AggressionScaled, PositionSizeMultiplier: 1.0, MaxConcurrentTrades: 3}
}

func profile(symbol string, volatility, liquidity float64) models.TokenRiskProfile {
	return models.TokenRiskProfile{
		Symbol:          symbol,
		VolatilityScore: volatility,
		LiquidityScore:  liquidity,
		VolumeScore:     50,
		AgeScore:        50,
		HolderScore:     50,
		ContractScore:   50,
		OverallRisk: volatility*models.WeightVolatility + liquidity*models.WeightLiquidity +
			50*(models.WeightVolume+models.WeightAge+models.WeightHolders+models.WeightContract),
	}
}

// High-conviction scenario: multipliers exceed the 3.0 cap, raw amount
// hits the max bound exactly.
func TestCalculateHighConvictionCapsAndClamps(t *testing.T) {
	params := DefaultParams()
	params.BaseAmount = 0.5
	params.MinAmount = 0.2
	params.MaxAmount = 1.5
	params.PortfolioRatioPct = 25
	c := NewCalculator(params)
	c.SetClock(fixedClock)

	d := c.Calculate(Input{
		Profile:         profile("WIF", 20, 10),
		Confidence:      90,
		PatternStrength: 50,
		Aggression:      scaledAggression(),
		Snapshot:        testSnapshot(100, 50),
	})

	// conf 1.85 * vol 1.3 * liq 1.22 * pattern 1.25 ≈ 3.67 -> capped at 3.0
	require.True(t, hasReason(d, models.ReasonMultiplierCap), "expected multiplier cap, got %+v", d.Reasoning)
	assert.Equal(t, 1.5, d.Amount)
	assert.Equal(t, models.RiskMedium, d.RiskLevel)
}

func TestCalculateIdempotent(t *testing.T) {
	c := NewCalculator(DefaultParams())
	c.SetClock(fixedClock)
	in := Input{
		Profile:    profile("BONK", 60, 40),
		Confidence: 55,
		Aggression: scaledAggression(),
		Snapshot:   testSnapshot(20, 8),
	}
	d1 := c.Calculate(in)
	d2 := c.Calculate(in)
	assert.Equal(t, d1, d2)
}

func TestCalculateRespectsBounds(t *testing.T) {
	params := DefaultParams()
	c := NewCalculator(params)

	for _, conf := range []float64{0, 10, 35, 60, 85, 100} {
		for _, vol := range []float64{0, 25, 50, 75, 100} {
			d := c.Calculate(Input{
				Profile:    profile("X", vol, 50),
				Confidence: conf,
				Aggression: scaledAggression(),
				Snapshot:   testSnapshot(50, 20),
			})
			require.LessOrEqual(t, d.Amount, params.MaxAmount)
			require.LessOrEqual(t, d.Amount, 20*availableBuffer+1e-9)
			if d.Amount > 0 {
				require.GreaterOrEqual(t, d.Amount, params.MinAmount)
			}
		}
	}
}

func TestCalculateAvailableBuffer(t *testing.T) {
	params := DefaultParams()
	params.MaxAmount = 10
	c := NewCalculator(params)

	d := c.Calculate(Input{
		Profile:    profile("WIF", 20, 20),
		Confidence: 95,
		Aggression: scaledAggression(),
		Snapshot:   testSnapshot(100, 1.0),
	})
	require.True(t, hasReason(d, models.ReasonAvailableBuffer))
	assert.InDelta(t, 0.8, d.Amount, 1e-9)
}

func TestCalculateNoCapitalReturnsZeroDecision(t *testing.T) {
	c := NewCalculator(DefaultParams())
	d := c.Calculate(Input{
		Profile:    profile("WIF", 20, 20),
		Confidence: 95,
		Aggression: scaledAggression(),
		Snapshot:   testSnapshot(10, 0),
	})
	assert.Equal(t, 0.0, d.Amount)
	assert.True(t, hasReason(d, models.ReasonNoCapital))
}

func TestCalculateSafeModeCap(t *testing.T) {
	c := NewCalculator(DefaultParams())
	d := c.Calculate(Input{
		Profile:        profile("SOL", 20, 20),
		Confidence:     90,
		Aggression:     scaledAggression(),
		Snapshot:       testSnapshot(100, 80),
		SafeModeMaxPct: 1.0,
	})
	require.True(t, hasReason(d, models.ReasonSafeModeLimit))
	assert.InDelta(t, 1.0, d.Amount, 1e-9) // 1% of 100
}

func TestAggressionScalesBase(t *testing.T) {
	c := NewCalculator(DefaultParams())
	in := Input{
		Profile:    profile("SOL", 50, 50),
		Confidence: 50,
		Snapshot:   testSnapshot(1000, 800),
	}

	in.Aggression = models.AggressionLevel{Mode: models.AggressionConservative, PositionSizeMultiplier: 0.3}
	conservative := c.Calculate(in)
	in.Aggression = models.AggressionLevel{Mode: models.AggressionHyper, PositionSizeMultiplier: 1.5}
	hyper := c.Calculate(in)

	assert.Greater(t, hyper.Amount, conservative.Amount)
	assert.True(t, hasReason(hyper, models.ReasonAggressionScale))
}

func TestDerivedExpectations(t *testing.T) {
	c := NewCalculator(DefaultParams())
	d := c.Calculate(Input{
		Profile:    profile("WIF", 20, 10), // medium overall
		Confidence: 90,
		Aggression: scaledAggression(),
		Snapshot:   testSnapshot(100, 50),
	})

	assert.Equal(t, 12.0, d.StopLossPct)
	assert.InDelta(t, 15+90*0.3+80*0.1, d.ExpectedROIPct, 1e-9)
	assert.GreaterOrEqual(t, d.TakeProfitPct, 10.0)
	assert.GreaterOrEqual(t, d.HoldingMinutes, 5)
	assert.LessOrEqual(t, d.HoldingMinutes, 480)
	assert.InDelta(t, d.Amount*d.StopLossPct/100, d.MaxLoss, 1e-9)
}

func TestUpdateParamsRejectsRatioSumOver100(t *testing.T) {
	c := NewCalculator(DefaultParams())
	before := c.Params()

	_, err := c.UpdateParams(models.AllocationParamsPatch{
		StablecoinRatioPct: models.Float(70),
		ReinvestmentPct:    models.Float(40),
	})
	require.Error(t, err)
	assert.Equal(t, before, c.Params(), "rejected update must not change settings")
}

func TestUpdateParamsPartialApply(t *testing.T) {
	c := NewCalculator(DefaultParams())
	got, err := c.UpdateParams(models.AllocationParamsPatch{MaxAmount: models.Float(5)})
	require.NoError(t, err)
	assert.Equal(t, 5.0, got.MaxAmount)
	assert.Equal(t, DefaultParams().BaseAmount, got.BaseAmount)
}

func TestUpdateParamsRejectsInvertedBounds(t *testing.T) {
	c := NewCalculator(DefaultParams())
	_, err := c.UpdateParams(models.AllocationParamsPatch{
		MinAmount: models.Float(3),
		MaxAmount: models.Float(1),
	})
	require.Error(t, err)
}

func hasReason(d models.AllocationDecision, code models.ReasonCode) bool {
	for _, r := range d.Reasoning {
		if r.Code == code {
			return true
		}
	}
	return false
}
