package pricing

import "lista-precios/internal/catalog"

// Quote is the customer-facing price for one product under the current
// configuration.
type Quote struct {
	CostARS              float64 `json:"costArs"`
	FinalPrice           float64 `json:"finalPrice"`
	AppliedMarginPercent float64 `json:"appliedMargin"`
}

// EffectivePrice converts the supplier cost to pesos and applies the margin
// the rule list resolves for this product, falling back to the global
// margin. Pure; runs once per product per listing.
func EffectivePrice(p catalog.Product, cfg Config) Quote {
	costARS := p.PriceUsd * cfg.DollarRate
	margin := MatchMargin(p.PriceUsd, cfg.DollarRate, cfg.ProfitRules, cfg.ProfitMargin)
	return Quote{
		CostARS:              costARS,
		FinalPrice:           costARS * (1 + margin/100),
		AppliedMarginPercent: margin,
	}
}
