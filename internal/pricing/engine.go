package pricing

import (
	"fmt"
	"math"
	"time"
)

// Comparison tolerances carried over from the original admin tool. The
// same-operator window of 1.0 is deliberately coarse: it exists to flag
// boundaries a human would find ambiguous, not to do interval algebra.
const (
	thresholdTolerance = 0.01
	overlapWindow      = 1.0
)

// DuplicateRuleError reports a candidate that restates an existing rule:
// same operator, same currency, threshold within the tolerance.
type DuplicateRuleError struct {
	Existing ProfitRule
}

func (e *DuplicateRuleError) Error() string {
	return fmt.Sprintf("duplicate rule: already covered by %s", e.Existing.Describe())
}

// OverlapRuleError reports a candidate whose boundary sits close enough to
// an existing rule's that matching would look ambiguous to the operator.
type OverlapRuleError struct {
	Existing ProfitRule
}

func (e *OverlapRuleError) Error() string {
	return fmt.Sprintf("overlapping rule: conflicts with %s", e.Existing.Describe())
}

// MatchMargin resolves the profit percentage for a product that costs
// costUSD, evaluating rules in order and returning the first match. USD
// rules compare the cost directly; ARS rules compare costUSD*dollarRate.
// Equality uses the threshold tolerance instead of exact float equality.
// Returns defaultMargin when no rule matches.
//
// Pure function: it runs once per product per listing, so it must not
// allocate or touch shared state.
func MatchMargin(costUSD, dollarRate float64, rules []ProfitRule, defaultMargin float64) float64 {
	for _, r := range rules {
		value := costUSD
		if r.Currency == CurrencyARS {
			value = costUSD * dollarRate
		}
		switch r.Operator {
		case OperatorGreater:
			if value > r.PriceThreshold {
				return r.ProfitPercent
			}
		case OperatorLess:
			if value < r.PriceThreshold {
				return r.ProfitPercent
			}
		case OperatorEqual:
			if math.Abs(value-r.PriceThreshold) <= thresholdTolerance {
				return r.ProfitPercent
			}
		}
	}
	return defaultMargin
}

// ValidateNewRule checks a candidate against the existing list before it is
// committed. excludeID names the rule being edited (0 when adding) so a rule
// never conflicts with itself.
//
// The returned bool reports the complementary auto-adjustment: when an
// existing rule bounds the exact same threshold from the opposite side
// (e.g. "mayor 500" vs "menor 500"), the candidate's threshold is silently
// decremented by 0.01 so the two ranges become disjoint, and the adjusted
// candidate is returned with the flag set.
func ValidateNewRule(candidate ProfitRule, existing []ProfitRule, excludeID int64) (ProfitRule, bool, error) {
	if err := candidate.validate(); err != nil {
		return candidate, false, fmt.Errorf("invalid rule: %w", err)
	}

	for _, r := range existing {
		if r.ID == excludeID || r.Currency != candidate.Currency {
			continue
		}
		if r.Operator == candidate.Operator &&
			math.Abs(r.PriceThreshold-candidate.PriceThreshold) <= thresholdTolerance {
			return candidate, false, &DuplicateRuleError{Existing: r}
		}
	}

	for _, r := range existing {
		if r.ID == excludeID || r.Currency != candidate.Currency {
			continue
		}
		diff := math.Abs(r.PriceThreshold - candidate.PriceThreshold)
		if r.Operator == candidate.Operator && diff <= thresholdTolerance {
			return candidate, false, &OverlapRuleError{Existing: r}
		}
		if r.Operator == candidate.Operator && directional(r.Operator) && diff <= overlapWindow {
			return candidate, false, &OverlapRuleError{Existing: r}
		}
	}

	for _, r := range existing {
		if r.ID == excludeID || r.Currency != candidate.Currency {
			continue
		}
		if r.PriceThreshold == candidate.PriceThreshold && complementary(r.Operator, candidate.Operator) {
			candidate.PriceThreshold -= thresholdTolerance
			return candidate, true, nil
		}
	}

	return candidate, false, nil
}

// ValidateRuleList checks a wholesale replacement list, as submitted when
// the whole configuration is overwritten. Only the no-duplicate invariant
// is enforced here; proximity between directional rules is an authoring
// concern handled when rules are added one at a time.
func ValidateRuleList(rules []ProfitRule) error {
	for i, r := range rules {
		if err := r.validate(); err != nil {
			return fmt.Errorf("rule %d: %w", i, err)
		}
		for _, prev := range rules[:i] {
			if prev.Currency == r.Currency && prev.Operator == r.Operator &&
				math.Abs(prev.PriceThreshold-r.PriceThreshold) <= thresholdTolerance {
				return &DuplicateRuleError{Existing: prev}
			}
		}
	}
	return nil
}

func directional(op Operator) bool {
	return op == OperatorGreater || op == OperatorLess
}

func complementary(a, b Operator) bool {
	return (a == OperatorGreater && b == OperatorLess) ||
		(a == OperatorLess && b == OperatorGreater)
}

// AddOrUpdateRule commits a validated candidate and returns the replacement
// list. With editingID set, the rule keeps its position and id; otherwise
// the candidate is appended with a freshly minted id. Call only after
// ValidateNewRule accepted the candidate.
func AddOrUpdateRule(rules []ProfitRule, candidate ProfitRule, editingID int64) []ProfitRule {
	out := make([]ProfitRule, len(rules))
	copy(out, rules)

	if editingID != 0 {
		for i := range out {
			if out[i].ID == editingID {
				candidate.ID = editingID
				out[i] = candidate
				return out
			}
		}
	}

	candidate.ID = newRuleID(out)
	return append(out, candidate)
}

// DeleteRule returns the list without the rule carrying id. Deleting an
// unknown id is a no-op.
func DeleteRule(rules []ProfitRule, id int64) []ProfitRule {
	out := make([]ProfitRule, 0, len(rules))
	for _, r := range rules {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}

// newRuleID mints ids from the wall clock, bumping past collisions so two
// rules created within the same millisecond stay distinct.
func newRuleID(rules []ProfitRule) int64 {
	id := time.Now().UnixMilli()
	for taken(rules, id) {
		id++
	}
	return id
}

func taken(rules []ProfitRule, id int64) bool {
	for _, r := range rules {
		if r.ID == id {
			return true
		}
	}
	return false
}
