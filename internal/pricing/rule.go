package pricing

import (
	"fmt"
	"math"
	"time"
)

// Operator selects how a rule compares a price against its threshold.
// The wire values match what the admin UI has always sent.
type Operator string

const (
	OperatorGreater Operator = "mayor"
	OperatorLess    Operator = "menor"
	OperatorEqual   Operator = "igual"
)

// Currency tells the engine which value a rule compares: the supplier cost
// in USD, or the cost converted to pesos at the current rate.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyARS Currency = "ARS"
)

// ProfitRule assigns a profit percentage to products whose price satisfies
// the rule's condition. Rules live in an ordered list; insertion order is
// match order.
type ProfitRule struct {
	ID             int64    `json:"id"`
	Operator       Operator `json:"operator"`
	PriceThreshold float64  `json:"priceThreshold"`
	Currency       Currency `json:"currency"`
	ProfitPercent  float64  `json:"profitPercent"`
}

// Config is the process-wide pricing configuration, passed by value into
// the engine and the calculator. Mutations produce a replacement value that
// the caller persists.
type Config struct {
	DollarRate       float64      `json:"dollarRate"`
	ProfitMargin     float64      `json:"profitMargin"`
	ProfitRules      []ProfitRule `json:"profitRules"`
	LastDollarUpdate time.Time    `json:"lastDollarUpdate"`
}

func (r ProfitRule) validate() error {
	switch r.Operator {
	case OperatorGreater, OperatorLess, OperatorEqual:
	default:
		return fmt.Errorf("unknown operator %q", r.Operator)
	}
	switch r.Currency {
	case CurrencyUSD, CurrencyARS:
	default:
		return fmt.Errorf("unknown currency %q", r.Currency)
	}
	if math.IsNaN(r.PriceThreshold) || math.IsInf(r.PriceThreshold, 0) {
		return fmt.Errorf("price threshold is not a number")
	}
	if r.PriceThreshold < 0 {
		return fmt.Errorf("price threshold must be >= 0, got %v", r.PriceThreshold)
	}
	if math.IsNaN(r.ProfitPercent) || math.IsInf(r.ProfitPercent, 0) {
		return fmt.Errorf("profit percent is not a number")
	}
	return nil
}

// Describe renders the rule the way the sidebar shows it, e.g.
// "precio mayor a USD 500,00 → 15%".
func (r ProfitRule) Describe() string {
	var cond string
	switch r.Operator {
	case OperatorGreater:
		cond = "mayor a"
	case OperatorLess:
		cond = "menor a"
	default:
		cond = "igual a"
	}
	return fmt.Sprintf("precio %s %s %s → %v%%", cond, r.Currency, FormatNumber(r.PriceThreshold), r.ProfitPercent)
}
