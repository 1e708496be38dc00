package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeMaster/internal/domain/models"
)

func TestAssessMissingSignalsUseNeutralDefault(t *testing.T) {
	a := NewAssessor()
	p := a.Assess(models.MarketSignals{Symbol: "BONK"})

	assert.Equal(t, 50.0, p.VolatilityScore)
	assert.Equal(t, 50.0, p.LiquidityScore)
	assert.Equal(t, 50.0, p.VolumeScore)
	assert.Equal(t, 50.0, p.AgeScore)
	assert.Equal(t, 50.0, p.HolderScore)
	assert.Equal(t, 50.0, p.ContractScore)
	assert.InDelta(t, 50.0, p.OverallRisk, 1e-9)
	assert.Len(t, p.MissingSignals, 6)
}

func TestAssessDeterministic(t *testing.T) {
	a := NewAssessor()
	s := models.MarketSignals{
		Symbol:         "WIF",
		PriceChange24h: models.Float(12.5),
		Liquidity:      models.Float(750_000),
		Volume24h:      models.Float(1_200_000),
		MarketCap:      models.Float(25_000_000),
	}
	p1 := a.Assess(s)
	p2 := a.Assess(s)
	assert.Equal(t, p1, p2)
}

func TestLiquidityBands(t *testing.T) {
	cases := []struct {
		liquidity float64
		want      float64
	}{
		{2_000_000, 10},
		{1_000_000, 10},
		{999_999, 25},
		{500_000, 25},
		{499_999, 50},
		{100_000, 50},
		{99_999, 70},
		{50_000, 70},
		{49_999, 90},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, liquidityScore(c.liquidity), "liquidity=%v", c.liquidity)
	}
}

func TestVolumeBands(t *testing.T) {
	assert.Equal(t, 10.0, volumeScore(2_000_000))
	assert.Equal(t, 30.0, volumeScore(500_000))
	assert.Equal(t, 55.0, volumeScore(100_000))
	assert.Equal(t, 70.0, volumeScore(50_000))
	assert.Equal(t, 90.0, volumeScore(49_999))
}

func TestAgeBands(t *testing.T) {
	assert.Equal(t, 20.0, ageScore(10_000_000))
	assert.Equal(t, 40.0, ageScore(1_000_000))
	assert.Equal(t, 65.0, ageScore(100_000))
	assert.Equal(t, 85.0, ageScore(99_999))
}

// Increasing any single risky signal must never decrease the composite.
func TestOverallRiskMonotonic(t *testing.T) {
	a := NewAssessor()
	base := models.MarketSignals{
		Symbol:         "JUP",
		PriceChange24h: models.Float(2),
		Liquidity:      models.Float(2_000_000),
		Volume24h:      models.Float(3_000_000),
		MarketCap:      models.Float(50_000_000),
	}

	prev := -1.0
	for _, change := range []float64{1, 5, 10, 20, 40, 80} {
		s := base
		s.PriceChange24h = models.Float(change)
		got := a.Assess(s).OverallRisk
		require.GreaterOrEqual(t, got, prev, "overall risk dropped at change=%v", change)
		prev = got
	}

	prev = 101.0
	for _, liq := range []float64{10_000, 60_000, 200_000, 600_000, 2_000_000} {
		s := base
		s.Liquidity = models.Float(liq)
		got := a.Assess(s).OverallRisk
		require.LessOrEqual(t, got, prev, "deeper liquidity raised risk at liq=%v", liq)
		prev = got
	}
}

func TestRiskLevelThresholds(t *testing.T) {
	assert.Equal(t, models.RiskLow, models.RiskLevelFor(29.9))
	assert.Equal(t, models.RiskMedium, models.RiskLevelFor(30))
	assert.Equal(t, models.RiskMedium, models.RiskLevelFor(49.9))
	assert.Equal(t, models.RiskHigh, models.RiskLevelFor(50))
	assert.Equal(t, models.RiskHigh, models.RiskLevelFor(74.9))
	assert.Equal(t, models.RiskExtreme, models.RiskLevelFor(75))
}
