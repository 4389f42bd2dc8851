// Package rules applies an ordered rule set to a single transaction,
// routing matched amounts into named bucket accumulators.
package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jgtolentino/TaxPulse-PH-Pack/internal/domain"
	"github.com/jgtolentino/TaxPulse-PH-Pack/internal/usecase/condition"
)

// Result holds the outcome of applying a rule set to one transaction:
// the bucket totals it produced and the ordered list of matched rules.
type Result struct {
	Buckets      map[string]float64
	MatchedRules []domain.Rule
}

// Apply evaluates every rule against the transaction, in the given order
// (the loader pre-sorts by descending priority). All matching rules
// contribute — priorities order evaluation, they never stop it.
//
// For each matched rule:
//  1. Record it in the matched list (audit provenance)
//  2. Skip contribution when it declares no output bucket
//  3. Resolve the closed-form formulas directly:
//     "base * rate" -> transaction[base_source] * rate
//     "base"        -> transaction[base_source]
//     where rate is the rule's rate_value, or a rate-table lookup when the
//     rule references a rate_code instead
//  4. Any other formula is an aggregate expression handled later by the
//     formula engine; it contributes 0 at this stage
//
// Contributions accumulate: two rules writing the same bucket add up.
// The only error Apply can return is a structural condition error
// (an operator outside the closed set); value failures degrade per the
// condition evaluator's contract.
func Apply(ruleSet []domain.Rule, txn domain.Transaction, rates *domain.RateTable) (Result, error) {
	result := Result{
		Buckets: make(map[string]float64),
	}

	for _, rule := range ruleSet {
		matched, err := condition.Match(rule.Condition, txn)
		if err != nil {
			return Result{}, fmt.Errorf("rule %q: %w", rule.Name, err)
		}
		if !matched {
			continue
		}

		result.MatchedRules = append(result.MatchedRules, rule)

		if rule.OutputBucket == "" {
			continue
		}

		result.Buckets[rule.OutputBucket] += contribution(rule, txn, rates)
	}

	return result, nil
}

// contribution computes a matched rule's amount. Only the two closed-form
// shapes are resolved here; aggregate formulas defer to the formula engine.
func contribution(rule domain.Rule, txn domain.Transaction, rates *domain.RateTable) float64 {
	switch rule.Formula {
	case domain.FormulaBaseTimesRate:
		return baseAmount(rule, txn) * effectiveRate(rule, rates)
	case domain.FormulaBase:
		return baseAmount(rule, txn)
	}
	return 0.0
}

// baseAmount reads the rule's base field off the transaction, coercing to
// floating point. A missing or non-numeric field contributes 0.
func baseAmount(rule domain.Rule, txn domain.Transaction) float64 {
	value, ok := toFloat(txn.Get(rule.BaseSource))
	if !ok {
		return 0.0
	}
	return value
}

// effectiveRate resolves the rate a rule applies: an explicit rate_code
// goes through the rate table, otherwise the inlined rate_value is used.
func effectiveRate(rule domain.Rule, rates *domain.RateTable) float64 {
	if rule.RateCode != "" {
		return rates.Lookup(rule.RateCode)
	}
	return rule.RateValue
}

// toFloat coerces transaction scalars the same way the condition evaluator
// does: numbers pass through, numeric strings parse, anything else fails.
func toFloat(v any) (float64, bool) {
	switch value := v.(type) {
	case float64:
		return value, true
	case float32:
		return float64(value), true
	case int:
		return float64(value), true
	case int64:
		return float64(value), true
	case int32:
		return float64(value), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return 0.0, false
		}
		return f, true
	}
	return 0.0, false
}
