package pricing

import (
	"errors"
	"math"
	"testing"
)

func TestMatchMarginFirstMatchWins(t *testing.T) {
	rules := []ProfitRule{
		{ID: 1, Operator: OperatorGreater, PriceThreshold: 1000, Currency: CurrencyARS, ProfitPercent: 10},
		{ID: 2, Operator: OperatorGreater, PriceThreshold: 500, Currency: CurrencyARS, ProfitPercent: 20},
	}

	// Cost of 1.5 USD at rate 1000 compares as 1500 ARS: both rules hold,
	// the first one must win.
	got := MatchMargin(1.5, 1000, rules, 30)
	if got != 10 {
		t.Errorf("Incorrect margin, got %v, want %v", got, 10.0)
	}
}

func TestMatchMarginDeterministic(t *testing.T) {
	rules := []ProfitRule{
		{ID: 1, Operator: OperatorGreater, PriceThreshold: 500, Currency: CurrencyUSD, ProfitPercent: 15},
		{ID: 2, Operator: OperatorLess, PriceThreshold: 100, Currency: CurrencyUSD, ProfitPercent: 40},
	}
	first := MatchMargin(600, 1250, rules, 30)
	for i := 0; i < 100; i++ {
		if got := MatchMargin(600, 1250, rules, 30); got != first {
			t.Fatalf("MatchMargin not deterministic, got %v then %v", first, got)
		}
	}
}

func TestMatchMarginEqualityTolerance(t *testing.T) {
	rules := []ProfitRule{
		{ID: 1, Operator: OperatorEqual, PriceThreshold: 500.00, Currency: CurrencyUSD, ProfitPercent: 12},
	}

	if got := MatchMargin(500.004, 1, rules, 30); got != 12 {
		t.Errorf("500.004 should match EqualTo 500.00 within tolerance, got margin %v", got)
	}
	if got := MatchMargin(500.02, 1, rules, 30); got != 30 {
		t.Errorf("500.02 should not match EqualTo 500.00, got margin %v", got)
	}
}

func TestMatchMarginCurrencySelection(t *testing.T) {
	rules := []ProfitRule{
		{ID: 1, Operator: OperatorGreater, PriceThreshold: 100000, Currency: CurrencyARS, ProfitPercent: 8},
	}

	// 100 USD at rate 1250 is 125000 ARS, above the ARS threshold.
	if got := MatchMargin(100, 1250, rules, 30); got != 8 {
		t.Errorf("ARS rule should compare the converted cost, got margin %v", got)
	}
	// Same product at rate 900 stays below it.
	if got := MatchMargin(100, 900, rules, 30); got != 30 {
		t.Errorf("ARS rule should not match at a lower rate, got margin %v", got)
	}
}

func TestMatchMarginNoRules(t *testing.T) {
	if got := MatchMargin(100, 1250, nil, 30); got != 30 {
		t.Errorf("Empty rule list should fall back to default, got %v", got)
	}
}

func TestValidateNewRuleDuplicate(t *testing.T) {
	existing := []ProfitRule{
		{ID: 1, Operator: OperatorGreater, PriceThreshold: 500.00, Currency: CurrencyUSD, ProfitPercent: 25},
	}
	candidate := ProfitRule{Operator: OperatorGreater, PriceThreshold: 500, Currency: CurrencyUSD, ProfitPercent: 15}

	_, _, err := ValidateNewRule(candidate, existing, 0)
	var dup *DuplicateRuleError
	if !errors.As(err, &dup) {
		t.Fatalf("Expected DuplicateRuleError, got %v", err)
	}
	if dup.Existing.ID != 1 {
		t.Errorf("Conflicting rule should be reported, got id %d", dup.Existing.ID)
	}
}

func TestValidateNewRuleDuplicateWithinTolerance(t *testing.T) {
	existing := []ProfitRule{
		{ID: 1, Operator: OperatorLess, PriceThreshold: 200, Currency: CurrencyARS, ProfitPercent: 10},
	}
	candidate := ProfitRule{Operator: OperatorLess, PriceThreshold: 200.005, Currency: CurrencyARS, ProfitPercent: 50}

	_, _, err := ValidateNewRule(candidate, existing, 0)
	var dup *DuplicateRuleError
	if !errors.As(err, &dup) {
		t.Fatalf("Thresholds within 0.01 should be duplicates, got %v", err)
	}
}

func TestValidateNewRuleOverlapWindow(t *testing.T) {
	existing := []ProfitRule{
		{ID: 1, Operator: OperatorGreater, PriceThreshold: 500, Currency: CurrencyUSD, ProfitPercent: 15},
	}
	candidate := ProfitRule{Operator: OperatorGreater, PriceThreshold: 500.5, Currency: CurrencyUSD, ProfitPercent: 20}

	_, _, err := ValidateNewRule(candidate, existing, 0)
	var overlap *OverlapRuleError
	if !errors.As(err, &overlap) {
		t.Fatalf("Same-direction thresholds within 1.0 should overlap, got %v", err)
	}
}

func TestValidateNewRuleOverlapNeedsSameCurrency(t *testing.T) {
	existing := []ProfitRule{
		{ID: 1, Operator: OperatorGreater, PriceThreshold: 500, Currency: CurrencyARS, ProfitPercent: 15},
	}
	candidate := ProfitRule{Operator: OperatorGreater, PriceThreshold: 500, Currency: CurrencyUSD, ProfitPercent: 20}

	if _, _, err := ValidateNewRule(candidate, existing, 0); err != nil {
		t.Errorf("Rules in different currencies never conflict, got %v", err)
	}
}

func TestValidateNewRuleComplementaryAdjustment(t *testing.T) {
	existing := []ProfitRule{
		{ID: 1, Operator: OperatorGreater, PriceThreshold: 500, Currency: CurrencyUSD, ProfitPercent: 15},
	}
	candidate := ProfitRule{Operator: OperatorLess, PriceThreshold: 500, Currency: CurrencyUSD, ProfitPercent: 20}

	adjusted, wasAdjusted, err := ValidateNewRule(candidate, existing, 0)
	if err != nil {
		t.Fatalf("Complementary rule should be accepted, got %v", err)
	}
	if !wasAdjusted {
		t.Error("Complementary rule should be flagged as adjusted")
	}
	if math.Abs(adjusted.PriceThreshold-499.99) > 1e-9 {
		t.Errorf("Incorrect adjusted threshold, got %v, want %v", adjusted.PriceThreshold, 499.99)
	}
}

func TestValidateNewRuleEqualOperatorNotAdjusted(t *testing.T) {
	existing := []ProfitRule{
		{ID: 1, Operator: OperatorGreater, PriceThreshold: 500, Currency: CurrencyUSD, ProfitPercent: 15},
	}
	candidate := ProfitRule{Operator: OperatorEqual, PriceThreshold: 500, Currency: CurrencyUSD, ProfitPercent: 20}

	adjusted, wasAdjusted, err := ValidateNewRule(candidate, existing, 0)
	if err != nil {
		t.Fatalf("igual rule at a mayor boundary is accepted, got %v", err)
	}
	if wasAdjusted || adjusted.PriceThreshold != 500 {
		t.Errorf("igual rule must not be auto-adjusted, got %v (adjusted=%v)", adjusted.PriceThreshold, wasAdjusted)
	}
}

func TestValidateNewRuleExcludesEditedRule(t *testing.T) {
	existing := []ProfitRule{
		{ID: 7, Operator: OperatorGreater, PriceThreshold: 500, Currency: CurrencyUSD, ProfitPercent: 15},
	}
	// Re-saving rule 7 with a new margin must not conflict with itself.
	candidate := ProfitRule{Operator: OperatorGreater, PriceThreshold: 500, Currency: CurrencyUSD, ProfitPercent: 18}

	if _, _, err := ValidateNewRule(candidate, existing, 7); err != nil {
		t.Errorf("Edited rule should not conflict with itself, got %v", err)
	}
}

func TestValidateNewRuleRejectsInvalid(t *testing.T) {
	cases := []ProfitRule{
		{Operator: "entre", PriceThreshold: 10, Currency: CurrencyUSD, ProfitPercent: 5},
		{Operator: OperatorGreater, PriceThreshold: -1, Currency: CurrencyUSD, ProfitPercent: 5},
		{Operator: OperatorGreater, PriceThreshold: math.NaN(), Currency: CurrencyUSD, ProfitPercent: 5},
		{Operator: OperatorGreater, PriceThreshold: 10, Currency: "EUR", ProfitPercent: 5},
		{Operator: OperatorGreater, PriceThreshold: 10, Currency: CurrencyUSD, ProfitPercent: math.NaN()},
	}
	for _, c := range cases {
		if _, _, err := ValidateNewRule(c, nil, 0); err == nil {
			t.Errorf("Expected validation error for rule %+v, got nil", c)
		}
	}
}

func TestAddOrUpdateRuleAppend(t *testing.T) {
	rules := []ProfitRule{
		{ID: 1, Operator: OperatorGreater, PriceThreshold: 500, Currency: CurrencyUSD, ProfitPercent: 15},
	}
	candidate := ProfitRule{Operator: OperatorLess, PriceThreshold: 100, Currency: CurrencyUSD, ProfitPercent: 40}

	out := AddOrUpdateRule(rules, candidate, 0)
	if len(out) != 2 {
		t.Fatalf("Expected 2 rules after append, got %d", len(out))
	}
	if out[1].ID == 0 || out[1].ID == out[0].ID {
		t.Errorf("Appended rule needs a fresh id, got %d", out[1].ID)
	}
	if len(rules) != 1 {
		t.Errorf("Input slice must not be mutated, got %d rules", len(rules))
	}
}

func TestAddOrUpdateRuleEditKeepsPosition(t *testing.T) {
	rules := []ProfitRule{
		{ID: 1, Operator: OperatorGreater, PriceThreshold: 1000, Currency: CurrencyUSD, ProfitPercent: 10},
		{ID: 2, Operator: OperatorGreater, PriceThreshold: 500, Currency: CurrencyARS, ProfitPercent: 20},
		{ID: 3, Operator: OperatorLess, PriceThreshold: 50, Currency: CurrencyUSD, ProfitPercent: 45},
	}
	candidate := ProfitRule{Operator: OperatorGreater, PriceThreshold: 600, Currency: CurrencyARS, ProfitPercent: 22}

	out := AddOrUpdateRule(rules, candidate, 2)
	if len(out) != 3 {
		t.Fatalf("Edit must not change the rule count, got %d", len(out))
	}
	if out[1].ID != 2 || out[1].PriceThreshold != 600 || out[1].ProfitPercent != 22 {
		t.Errorf("Edited rule should keep id and position, got %+v", out[1])
	}
}

func TestDeleteRule(t *testing.T) {
	rules := []ProfitRule{
		{ID: 1, Operator: OperatorGreater, PriceThreshold: 1000, Currency: CurrencyUSD, ProfitPercent: 10},
		{ID: 2, Operator: OperatorLess, PriceThreshold: 50, Currency: CurrencyUSD, ProfitPercent: 45},
	}

	out := DeleteRule(rules, 1)
	if len(out) != 1 || out[0].ID != 2 {
		t.Errorf("Expected only rule 2 to remain, got %+v", out)
	}

	out = DeleteRule(out, 99)
	if len(out) != 1 {
		t.Errorf("Deleting an unknown id should be a no-op, got %+v", out)
	}
}
