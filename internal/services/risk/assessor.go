package risk

import (
	"math"

	"TradeMaster/internal/domain/models"
)

// neutralDefault is the fixed sub-score used whenever a signal is missing.
// Risk must be reproducible, so absent data is never replaced with a random
// or time-dependent value.
const neutralDefault = 50.0

// Band edges for the step functions. Values are USD.
const (
	liqVeryHigh = 1_000_000.0
	liqHigh     = 500_000.0
	liqMedium   = 100_000.0
	liqLow      = 50_000.0

	volVeryHigh = 2_000_000.0
	volHigh     = 500_000.0
	volMedium   = 100_000.0
	volLow      = 50_000.0

	mcapEstablished = 10_000_000.0
	mcapGrowing     = 1_000_000.0
	mcapEarly       = 100_000.0
)

// Assessor scores an asset's risk from market signals. It is stateless and
// safe for concurrent use; Assess is a pure function of its input.
type Assessor struct{}

// NewAssessor creates a risk assessor.
func NewAssessor() *Assessor { return &Assessor{} }

// Assess computes a fresh TokenRiskProfile. Sub-scores are monotonic step
// functions of their signal; the composite is a fixed weighted sum clamped
// to [0,100].
func (a *Assessor) Assess(s models.MarketSignals) models.TokenRiskProfile {
	p := models.TokenRiskProfile{Symbol: s.Symbol, Mint: s.Mint}

	p.VolatilityScore = scoreOrDefault(s.PriceChange24h, volatilityScore, "priceChange24h", &p)
	p.LiquidityScore = scoreOrDefault(s.Liquidity, liquidityScore, "liquidity", &p)
	p.VolumeScore = scoreOrDefault(s.Volume24h, volumeScore, "volume24h", &p)
	p.AgeScore = scoreOrDefault(s.MarketCap, ageScore, "marketCap", &p)
	p.HolderScore = scoreOrDefault(s.TopHolderPct, holderScore, "topHolderPct", &p)
	p.ContractScore = scoreOrDefault(s.ContractScore, contractScore, "contractScore", &p)

	overall := p.VolatilityScore*models.WeightVolatility +
		p.LiquidityScore*models.WeightLiquidity +
		p.VolumeScore*models.WeightVolume +
		p.AgeScore*models.WeightAge +
		p.HolderScore*models.WeightHolders +
		p.ContractScore*models.WeightContract
	p.OverallRisk = clamp(overall, 0, 100)
	return p
}

func scoreOrDefault(v *float64, score func(float64) float64, name string, p *models.TokenRiskProfile) float64 {
	if v == nil {
		p.MissingSignals = append(p.MissingSignals, name)
		return neutralDefault
	}
	return score(*v)
}

// volatilityScore maps the absolute 24h price change (%) to risk.
func volatilityScore(change24h float64) float64 {
	c := math.Abs(change24h)
	switch {
	case c >= 50:
		return 90
	case c >= 30:
		return 75
	case c >= 15:
		return 60
	case c >= 8:
		return 45
	case c >= 3:
		return 30
	default:
		return 20
	}
}

// liquidityScore: deeper pools are safer.
func liquidityScore(liquidity float64) float64 {
	switch {
	case liquidity >= liqVeryHigh:
		return 10
	case liquidity >= liqHigh:
		return 25
	case liquidity >= liqMedium:
		return 50
	case liquidity >= liqLow:
		return 70
	default:
		return 90
	}
}

// volumeScore: thin volume means exits are expensive.
func volumeScore(volume24h float64) float64 {
	switch {
	case volume24h >= volVeryHigh:
		return 10
	case volume24h >= volHigh:
		return 30
	case volume24h >= volMedium:
		return 55
	case volume24h >= volLow:
		return 70
	default:
		return 90
	}
}

// ageScore uses market cap as a maturity proxy; providers rarely report
// actual token age.
func ageScore(marketCap float64) float64 {
	switch {
	case marketCap >= mcapEstablished:
		return 20
	case marketCap >= mcapGrowing:
		return 40
	case marketCap >= mcapEarly:
		return 65
	default:
		return 85
	}
}

// holderScore maps top-holder concentration (%) to risk.
func holderScore(topHolderPct float64) float64 {
	switch {
	case topHolderPct >= 80:
		return 90
	case topHolderPct >= 60:
		return 70
	case topHolderPct >= 40:
		return 55
	case topHolderPct >= 20:
		return 35
	default:
		return 20
	}
}

// contractScore inverts an external 0-100 audit score (higher audit = safer).
func contractScore(audit float64) float64 {
	switch {
	case audit >= 80:
		return 15
	case audit >= 60:
		return 35
	case audit >= 40:
		return 55
	case audit >= 20:
		return 75
	default:
		return 90
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
