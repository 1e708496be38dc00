package allocation

import (
	"fmt"

	"TradeMaster/internal/domain/models"
)

// DefaultParams returns the calculator's default configuration.
// Amounts are denominated in SOL.
func DefaultParams() models.AllocationParams {
	return models.AllocationParams{
		BaseAmount:          0.5,
		MinAmount:           0.1,
		MaxAmount:           2.0,
		PortfolioRatioPct:   25,
		SafetyCap:           0, // disabled
		StablecoinRatioPct:  20,
		ReinvestmentPct:     50,
		MaxCombinedMultiple: 3.0,
	}
}

// ValidateParams rejects configurations that violate the ledger's
// invariants. An invalid patch must leave prior settings untouched, so
// validation runs on the fully merged result before anything is applied.
func ValidateParams(p models.AllocationParams) error {
	if p.BaseAmount <= 0 {
		return fmt.Errorf("base amount must be positive, got %.4f", p.BaseAmount)
	}
	if p.MinAmount < 0 || p.MaxAmount <= 0 {
		return fmt.Errorf("amount bounds must be non-negative, got [%.4f, %.4f]", p.MinAmount, p.MaxAmount)
	}
	if p.MinAmount > p.MaxAmount {
		return fmt.Errorf("min amount %.4f exceeds max amount %.4f", p.MinAmount, p.MaxAmount)
	}
	if p.PortfolioRatioPct <= 0 || p.PortfolioRatioPct > 100 {
		return fmt.Errorf("portfolio ratio must be in (0, 100], got %.2f", p.PortfolioRatioPct)
	}
	if p.SafetyCap < 0 {
		return fmt.Errorf("safety cap must be non-negative, got %.4f", p.SafetyCap)
	}
	if p.StablecoinRatioPct < 0 || p.ReinvestmentPct < 0 {
		return fmt.Errorf("ratios must be non-negative")
	}
	if sum := p.StablecoinRatioPct + p.ReinvestmentPct; sum > 100 {
		return fmt.Errorf("stablecoin and reinvestment ratios sum to %.1f%%, must not exceed 100%%", sum)
	}
	if p.MaxCombinedMultiple < 1 {
		return fmt.Errorf("max combined multiple must be at least 1, got %.2f", p.MaxCombinedMultiple)
	}
	return nil
}

// mergeParams applies a partial update onto current settings.
func mergeParams(cur models.AllocationParams, patch models.AllocationParamsPatch) models.AllocationParams {
	if patch.BaseAmount != nil {
		cur.BaseAmount = *patch.BaseAmount
	}
	if patch.MinAmount != nil {
		cur.MinAmount = *patch.MinAmount
	}
	if patch.MaxAmount != nil {
		cur.MaxAmount = *patch.MaxAmount
	}
	if patch.PortfolioRatioPct != nil {
		cur.PortfolioRatioPct = *patch.PortfolioRatioPct
	}
	if patch.SafetyCap != nil {
		cur.SafetyCap = *patch.SafetyCap
	}
	if patch.StablecoinRatioPct != nil {
		cur.StablecoinRatioPct = *patch.StablecoinRatioPct
	}
	if patch.ReinvestmentPct != nil {
		cur.ReinvestmentPct = *patch.ReinvestmentPct
	}
	if patch.MaxCombinedMultiple != nil {
		cur.MaxCombinedMultiple = *patch.MaxCombinedMultiple
	}
	return cur
}
