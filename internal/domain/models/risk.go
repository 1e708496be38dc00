package models

// Sub-score weights for the composite risk score. They sum to 1.0.
const (
	WeightVolatility = 0.25
	WeightLiquidity  = 0.20
	WeightVolume     = 0.15
	WeightAge        = 0.15
	WeightHolders    = 0.15
	WeightContract   = 0.10
)

// TokenRiskProfile is the assessor's verdict on a single asset. All scores
// are 0-100 where higher means riskier. A profile is computed fresh per
// request and never mutated afterwards.
type TokenRiskProfile struct {
	Symbol string `json:"symbol"`
	Mint   string `json:"mint,omitempty"`

	VolatilityScore float64 `json:"volatilityScore"`
	LiquidityScore  float64 `json:"liquidityScore"`
	VolumeScore     float64 `json:"volumeScore"`
	AgeScore        float64 `json:"ageScore"`
	HolderScore     float64 `json:"holderScore"`
	ContractScore   float64 `json:"contractScore"`

	OverallRisk float64 `json:"overallRisk"`

	// MissingSignals names the inputs that were absent and scored with the
	// neutral default. Surfaced so callers can tell a real score from a
	// degraded one.
	MissingSignals []string `json:"missingSignals,omitempty"`
}

// RiskLevel is the discretized form of OverallRisk.
type RiskLevel string

const (
	RiskLow     RiskLevel = "low"
	RiskMedium  RiskLevel = "medium"
	RiskHigh    RiskLevel = "high"
	RiskExtreme RiskLevel = "extreme"
)

// RiskLevelFor maps a 0-100 composite score onto a risk level.
// Thresholds: <30 low, <50 medium, <75 high, else extreme.
func RiskLevelFor(overall float64) RiskLevel {
	switch {
	case overall < 30:
		return RiskLow
	case overall < 50:
		return RiskMedium
	case overall < 75:
		return RiskHigh
	default:
		return RiskExtreme
	}
}
