package models

import "time"

// ReasonCode tags one entry of a decision's reasoning trail. Reasons are
// structured (code + numeric params) rather than free text so tests and the
// dashboard can assert on them without string matching.
type ReasonCode string

const (
	ReasonBaseAmount       ReasonCode = "base_amount"
	ReasonAggressionScale  ReasonCode = "aggression_scale"
	ReasonMultiplierCap    ReasonCode = "multiplier_cap"
	ReasonClampedToMin     ReasonCode = "clamped_to_min"
	ReasonClampedToMax     ReasonCode = "clamped_to_max"
	ReasonSafetyCap        ReasonCode = "safety_cap"
	ReasonPortfolioRatio   ReasonCode = "portfolio_ratio_limit"
	ReasonAvailableBuffer  ReasonCode = "available_capital_buffer"
	ReasonNoCapital        ReasonCode = "no_available_capital"
	ReasonSafeModeLimit    ReasonCode = "safe_mode_position_limit"
	ReasonAssetNotAllowed  ReasonCode = "asset_not_in_allow_list"
	ReasonAssetLocked      ReasonCode = "asset_capital_locked"
	ReasonTradingDisabled  ReasonCode = "trading_disabled"
	ReasonSignalsDefaulted ReasonCode = "signals_defaulted"
)

// Reason is one audited step of the allocation computation.
type Reason struct {
	Code   ReasonCode         `json:"code"`
	Params map[string]float64 `json:"params,omitempty"`
}

// NewReason builds a reason from alternating key/value params.
func NewReason(code ReasonCode, kv ...interface{}) Reason {
	r := Reason{Code: code}
	if len(kv) > 0 {
		r.Params = make(map[string]float64, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			k, ok := kv[i].(string)
			if !ok {
				continue
			}
			switch v := kv[i+1].(type) {
			case float64:
				r.Params[k] = v
			case int:
				r.Params[k] = float64(v)
			}
		}
	}
	return r
}

// AllocationDecision is the immutable output of one sizing computation.
// Later decisions for the same symbol supersede it; nothing mutates it.
type AllocationDecision struct {
	Symbol string `json:"symbol"`
	Mint   string `json:"mint,omitempty"`

	Amount     float64   `json:"amount"`
	Confidence float64   `json:"confidence"`
	RiskLevel  RiskLevel `json:"riskLevel"`
	Reasoning  []Reason  `json:"reasoning"`

	MaxLoss        float64 `json:"maxLoss"`
	ExpectedROIPct float64 `json:"expectedRoiPct"`
	HoldingMinutes int     `json:"holdingMinutes"`
	StopLossPct    float64 `json:"stopLossPct"`
	TakeProfitPct  float64 `json:"takeProfitPct"`

	CreatedAt time.Time `json:"createdAt"`
}

// AllocationParams is the calculator's configuration. Mutable only through
// a validated partial update; a rejected update leaves it untouched.
type AllocationParams struct {
	BaseAmount        float64 `json:"baseAmount" yaml:"base_amount"`
	MinAmount         float64 `json:"minAmount" yaml:"min_amount"`
	MaxAmount         float64 `json:"maxAmount" yaml:"max_amount"`
	PortfolioRatioPct float64 `json:"portfolioRatioPct" yaml:"portfolio_ratio_pct"`
	// SafetyCap is an optional hard ceiling applied before all other
	// portfolio checks. Zero disables it.
	SafetyCap           float64 `json:"safetyCap" yaml:"safety_cap"`
	StablecoinRatioPct  float64 `json:"stablecoinRatioPct" yaml:"stablecoin_ratio_pct"`
	ReinvestmentPct     float64 `json:"reinvestmentPct" yaml:"reinvestment_pct"`
	MaxCombinedMultiple float64 `json:"maxCombinedMultiple" yaml:"max_combined_multiple"`
}

// AllocationParamsPatch is a partial update; nil fields keep current values.
type AllocationParamsPatch struct {
	BaseAmount          *float64 `json:"baseAmount,omitempty"`
	MinAmount           *float64 `json:"minAmount,omitempty"`
	MaxAmount           *float64 `json:"maxAmount,omitempty"`
	PortfolioRatioPct   *float64 `json:"portfolioRatioPct,omitempty"`
	SafetyCap           *float64 `json:"safetyCap,omitempty"`
	StablecoinRatioPct  *float64 `json:"stablecoinRatioPct,omitempty"`
	ReinvestmentPct     *float64 `json:"reinvestmentPct,omitempty"`
	MaxCombinedMultiple *float64 `json:"maxCombinedMultiple,omitempty"`
}
