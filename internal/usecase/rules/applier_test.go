package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgtolentino/TaxPulse-PH-Pack/internal/domain"
)

func mustCondition(t *testing.T, raw any) *domain.Condition {
	t.Helper()
	cond, err := domain.ParseCondition(raw)
	require.NoError(t, err)
	return cond
}

func saleCondition(t *testing.T) *domain.Condition {
	return mustCondition(t, map[string]any{"==": []any{map[string]any{"var": "type"}, "sale"}})
}

func TestApply_OutputVATOnSale(t *testing.T) {
	// A 12% output VAT rule against a 100,000 sale contributes 12,000.
	ruleSet := []domain.Rule{
		{
			Name:         "output_vat_sales",
			Condition:    saleCondition(t),
			OutputBucket: "VAT_OUTPUT_12",
			Formula:      domain.FormulaBaseTimesRate,
			BaseSource:   "gross_amount",
			RateValue:    0.12,
		},
	}
	txn := domain.Transaction{"type": "sale", "gross_amount": 100000.0}

	result, err := Apply(ruleSet, txn, nil)
	require.NoError(t, err)

	assert.InDelta(t, 12000.0, result.Buckets["VAT_OUTPUT_12"], 1e-9)
	require.Len(t, result.MatchedRules, 1)
	assert.Equal(t, "output_vat_sales", result.MatchedRules[0].Name)
}

func TestApply_AllMatchingRulesContribute(t *testing.T) {
	// Priorities order evaluation but never stop it: every matching rule
	// contributes, and same-bucket contributions accumulate.
	ruleSet := []domain.Rule{
		{
			Name:         "vatable_sales",
			Condition:    saleCondition(t),
			OutputBucket: "VATABLE_SALES",
			Formula:      domain.FormulaBase,
			BaseSource:   "gross_amount",
			Priority:     100,
		},
		{
			Name:         "output_vat",
			Condition:    saleCondition(t),
			OutputBucket: "VAT_OUTPUT_12",
			Formula:      domain.FormulaBaseTimesRate,
			BaseSource:   "gross_amount",
			RateValue:    0.12,
			Priority:     90,
		},
		{
			Name:         "sales_count_amount",
			Condition:    mustCondition(t, map[string]any{"always": true}),
			OutputBucket: "VATABLE_SALES",
			Formula:      domain.FormulaBase,
			BaseSource:   "adjustment",
			Priority:     10,
		},
	}
	txn := domain.Transaction{"type": "sale", "gross_amount": 50000.0, "adjustment": 1000.0}

	result, err := Apply(ruleSet, txn, nil)
	require.NoError(t, err)

	assert.InDelta(t, 51000.0, result.Buckets["VATABLE_SALES"], 1e-9)
	assert.InDelta(t, 6000.0, result.Buckets["VAT_OUTPUT_12"], 1e-9)

	// Matched order follows evaluation order.
	require.Len(t, result.MatchedRules, 3)
	assert.Equal(t, "vatable_sales", result.MatchedRules[0].Name)
	assert.Equal(t, "output_vat", result.MatchedRules[1].Name)
	assert.Equal(t, "sales_count_amount", result.MatchedRules[2].Name)
}

func TestApply_RuleWithoutBucketMatchesButContributesNothing(t *testing.T) {
	ruleSet := []domain.Rule{
		{
			Name:      "audit_only",
			Condition: saleCondition(t),
		},
	}
	txn := domain.Transaction{"type": "sale", "gross_amount": 100000.0}

	result, err := Apply(ruleSet, txn, nil)
	require.NoError(t, err)

	assert.Empty(t, result.Buckets)
	require.Len(t, result.MatchedRules, 1)
	assert.Equal(t, "audit_only", result.MatchedRules[0].Name)
}

func TestApply_AggregateFormulaDefersToFormulaEngine(t *testing.T) {
	// An aggregate expression cannot be resolved per transaction; the
	// pipeline records the match and contributes 0.
	ruleSet := []domain.Rule{
		{
			Name:         "net_vat",
			Condition:    mustCondition(t, map[string]any{"always": true}),
			OutputBucket: "VAT_NET",
			Formula:      "SUM(VAT_OUTPUT_12) - SUM(VAT_INPUT_12)",
			Priority:     250,
		},
	}
	txn := domain.Transaction{"type": "sale"}

	result, err := Apply(ruleSet, txn, nil)
	require.NoError(t, err)

	assert.Equal(t, 0.0, result.Buckets["VAT_NET"])
	assert.Len(t, result.MatchedRules, 1)
}

func TestApply_RateCodeResolvesThroughRateTable(t *testing.T) {
	rates := &domain.RateTable{
		ExpandedWithholding: map[string]domain.RateEntry{
			"W010": {Rate: 0.10},
		},
	}
	ruleSet := []domain.Rule{
		{
			Name:         "ewt_professional_fees",
			Condition:    mustCondition(t, map[string]any{"==": []any{map[string]any{"var": "atc_code"}, "W010"}}),
			OutputBucket: "EWT_W010",
			Formula:      domain.FormulaBaseTimesRate,
			BaseSource:   "gross_amount",
			RateCode:     "W010",
		},
	}
	txn := domain.Transaction{"atc_code": "W010", "gross_amount": 20000.0}

	result, err := Apply(ruleSet, txn, rates)
	require.NoError(t, err)
	assert.InDelta(t, 2000.0, result.Buckets["EWT_W010"], 1e-9)
}

func TestApply_MissingBaseFieldContributesZero(t *testing.T) {
	ruleSet := []domain.Rule{
		{
			Name:         "output_vat",
			Condition:    saleCondition(t),
			OutputBucket: "VAT_OUTPUT_12",
			Formula:      domain.FormulaBaseTimesRate,
			BaseSource:   "net_amount",
			RateValue:    0.12,
		},
	}
	txn := domain.Transaction{"type": "sale"}

	result, err := Apply(ruleSet, txn, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.Buckets["VAT_OUTPUT_12"])
}

func TestApply_NonMatchingRuleLeavesNoTrace(t *testing.T) {
	ruleSet := []domain.Rule{
		{
			Name:         "output_vat",
			Condition:    saleCondition(t),
			OutputBucket: "VAT_OUTPUT_12",
			Formula:      domain.FormulaBaseTimesRate,
			BaseSource:   "gross_amount",
			RateValue:    0.12,
		},
	}
	txn := domain.Transaction{"type": "purchase", "gross_amount": 100000.0}

	result, err := Apply(ruleSet, txn, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Buckets)
	assert.Empty(t, result.MatchedRules)
}

func TestApply_StructuralErrorSurfaces(t *testing.T) {
	ruleSet := []domain.Rule{
		{
			Name:      "broken",
			Condition: &domain.Condition{Op: domain.Operator("matches")},
		},
	}

	_, err := Apply(ruleSet, domain.Transaction{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownOperator)
	assert.Contains(t, err.Error(), "broken")
}
