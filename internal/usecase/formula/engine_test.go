package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jgtolentino/TaxPulse-PH-Pack/internal/domain"
)

func vatBuckets() map[string]float64 {
	return map[string]float64{
		"VAT_OUTPUT_12":   12000.0,
		"VAT_OUTPUT_ZERO": 0.0,
		"VAT_INPUT_12":    4000.0,
	}
}

func TestEngine_Evaluate(t *testing.T) {
	engine := New()

	tests := []struct {
		name    string
		formula string
		buckets map[string]float64
		lines   map[string]float64
		want    float64
	}{
		{
			name:    "net VAT position",
			formula: "SUM(VAT_OUTPUT_12, VAT_OUTPUT_ZERO) - SUM(VAT_INPUT_12)",
			buckets: vatBuckets(),
			want:    8000.0,
		},
		{
			name:    "empty formula",
			formula: "",
			want:    0.0,
		},
		{
			name:    "bare bucket reference",
			formula: "VAT_OUTPUT_12",
			buckets: vatBuckets(),
			want:    12000.0,
		},
		{
			name:    "bucket arithmetic with literals",
			formula: "VAT_OUTPUT_12 * 0.5 + 100",
			buckets: vatBuckets(),
			want:    6100.0,
		},
		{
			name:    "form line reference",
			formula: "line_10 - line_15",
			lines:   map[string]float64{"line_10": 500.0, "line_15": 120.0},
			want:    380.0,
		},
		{
			name:    "form lines shadow buckets with the same name",
			formula: "line_10",
			buckets: map[string]float64{"line_10": 1.0},
			lines:   map[string]float64{"line_10": 2.0},
			want:    2.0,
		},
		{
			name:    "unresolved identifier degrades to zero",
			formula: "UNKNOWN_BUCKET + 5",
			buckets: vatBuckets(),
			want:    0.0,
		},
		{
			name:    "unknown function degrades to zero",
			formula: "MEDIAN(VAT_OUTPUT_12, VAT_INPUT_12)",
			buckets: vatBuckets(),
			want:    0.0,
		},
		{
			name:    "parse failure degrades to zero",
			formula: "SUM(VAT_OUTPUT_12",
			buckets: vatBuckets(),
			want:    0.0,
		},
		{
			name:    "division by zero saturates to zero",
			formula: "VAT_OUTPUT_12 / VAT_OUTPUT_ZERO",
			buckets: vatBuckets(),
			want:    0.0,
		},
		{
			name:    "division by zero literal",
			formula: "1 / 0",
			want:    0.0,
		},
		{
			name:    "unary minus",
			formula: "-VAT_INPUT_12",
			buckets: vatBuckets(),
			want:    -4000.0,
		},
		{
			name:    "parenthesized precedence",
			formula: "(VAT_OUTPUT_12 - VAT_INPUT_12) * 0.25",
			buckets: vatBuckets(),
			want:    2000.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.Evaluate(tt.formula, tt.buckets, tt.lines)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestEngine_Builtins(t *testing.T) {
	engine := New()
	buckets := map[string]float64{
		"A": 10.0,
		"B": -25.0,
		"C": 3.0,
	}

	tests := []struct {
		name    string
		formula string
		want    float64
	}{
		{"SUM over buckets", "SUM(A, B, C)", -12.0},
		{"SUM single argument", "SUM(A)", 10.0},
		{"SUM mixes buckets and literals", "SUM(A, 5)", 15.0},
		{"SUM of only unresolvable names", "SUM(X, Y)", 0.0},
		{"MAX", "MAX(A, B, C)", 10.0},
		{"MAX skips unresolvable arguments", "MAX(X, C)", 3.0},
		{"MAX of nothing resolvable", "MAX(X, Y)", 0.0},
		{"MIN", "MIN(A, B, C)", -25.0},
		{"MIN with literal floor", "MIN(A, 0)", 0.0},
		{"ABS of negative bucket", "ABS(B)", 25.0},
		{"ABS of literal", "ABS(7)", 7.0},
		{"ABS with wrong arity", "ABS(A, B)", 0.0},
		{"ROUND missing places argument", "ROUND(A)", 0.0},
		{"functions compose with arithmetic", "MAX(A, C) - MIN(A, C) + ABS(B)", 32.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.Evaluate(tt.formula, buckets, nil)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestEngine_RoundIsHalfAwayFromZero(t *testing.T) {
	// The rounding rule is pinned: halves round away from zero, so
	// 100.005 at two decimals becomes 100.01 (not banker's 100.00).
	engine := New()
	lines := map[string]float64{"line_10": 100.005}

	assert.InDelta(t, 100.01, engine.Evaluate("ROUND(line_10, 2)", nil, lines), 1e-9)
	assert.InDelta(t, -100.01, engine.Evaluate("ROUND(0 - line_10, 2)", nil, lines), 1e-9)
	assert.InDelta(t, 3.0, engine.Evaluate("ROUND(2.5, 0)", nil, nil), 1e-9)
	assert.InDelta(t, 2.0, engine.Evaluate("ROUND(2.4, 0)", nil, nil), 1e-9)
}

func TestEngine_RoundDefaultsPlacesOnBadArgument(t *testing.T) {
	engine := New()
	buckets := map[string]float64{"A": 1.23456}

	// A fractional places argument cannot be an integer count; fall back to 2.
	assert.InDelta(t, 1.23, engine.Evaluate("ROUND(A, 1.5)", buckets, nil), 1e-9)
}

func TestEngine_EvaluateFormLines(t *testing.T) {
	engine := New()
	buckets := map[string]float64{
		"VATABLE_SALES": 100000.0,
		"VAT_OUTPUT_12": 12000.0,
		"VAT_INPUT_12":  4000.0,
	}

	var mapping domain.FormMapping
	require.NoError(t, yaml.Unmarshal([]byte(`
sales:
  lines:
    - line: 10
      bucket: VATABLE_SALES
    - line: 11
      bucket: VAT_OUTPUT_12
purchases:
  lines:
    - line: 15
      bucket: VAT_INPUT_12
totals:
  lines:
    - line: 20
      formula: "line_11 - line_15"
    - line: 21
      bucket: NO_SUCH_BUCKET
    - line: 22
`), &mapping))

	lines := engine.EvaluateFormLines(&mapping, buckets)

	assert.InDelta(t, 100000.0, lines["line_10"], 1e-9)
	assert.InDelta(t, 12000.0, lines["line_11"], 1e-9)
	assert.InDelta(t, 4000.0, lines["line_15"], 1e-9)
	// line 20 reads lines computed earlier in the same traversal
	assert.InDelta(t, 8000.0, lines["line_20"], 1e-9)
	// absent bucket copies as zero; a line without source defaults to zero
	assert.Equal(t, 0.0, lines["line_21"])
	assert.Equal(t, 0.0, lines["line_22"])
}

func TestEngine_EvaluateFormLines_ForwardReferenceDegrades(t *testing.T) {
	// A formula may only reference lines computed earlier in traversal
	// order; a forward reference is unresolvable and the line becomes 0.0.
	engine := New()

	var mapping domain.FormMapping
	require.NoError(t, yaml.Unmarshal([]byte(`
totals:
  lines:
    - line: 20
      formula: "line_21 + 5"
    - line: 21
      formula: "10 + 10"
`), &mapping))

	lines := engine.EvaluateFormLines(&mapping, map[string]float64{})

	assert.Equal(t, 0.0, lines["line_20"])
	assert.InDelta(t, 20.0, lines["line_21"], 1e-9)
}

func TestEngine_EvaluateFormLines_PrefixedLineIDsDoNotCollide(t *testing.T) {
	// line_1 must not corrupt line_10: identifier resolution is by whole
	// token, not text substitution.
	engine := New()

	var mapping domain.FormMapping
	require.NoError(t, yaml.Unmarshal([]byte(`
s:
  lines:
    - line: 1
      formula: "7"
    - line: 10
      formula: "42"
    - line: 11
      formula: "line_10 + line_1"
`), &mapping))

	lines := engine.EvaluateFormLines(&mapping, nil)
	assert.InDelta(t, 49.0, lines["line_11"], 1e-9)
}

func TestEngine_EvaluateAggregationRules(t *testing.T) {
	engine := New()
	buckets := map[string]float64{
		"VAT_OUTPUT_12": 12000.0,
		"VAT_INPUT_12":  4000.0,
	}

	ruleSet := []domain.Rule{
		{
			Name:         "net_vat",
			OutputBucket: "VAT_NET",
			Formula:      "SUM(VAT_OUTPUT_12) - SUM(VAT_INPUT_12)",
			Priority:     250,
		},
		{
			// later rule observes the earlier rule's output
			Name:         "vat_payable",
			OutputBucket: "VAT_PAYABLE",
			Formula:      "MAX(VAT_NET, 0)",
			Priority:     250,
		},
		{
			// below the aggregation threshold: skipped by this pass
			Name:         "per_txn_rule",
			OutputBucket: "VAT_OUTPUT_12",
			Formula:      "0",
			Priority:     100,
		},
	}

	result := engine.EvaluateAggregationRules(ruleSet, buckets)

	assert.InDelta(t, 8000.0, result["VAT_NET"], 1e-9)
	assert.InDelta(t, 8000.0, result["VAT_PAYABLE"], 1e-9)
	// the priority-100 rule must not have rewritten its bucket
	assert.InDelta(t, 12000.0, result["VAT_OUTPUT_12"], 1e-9)
}

func TestEngine_EvaluateAggregationRules_OverwritesNotAccumulates(t *testing.T) {
	engine := New()
	buckets := map[string]float64{"BASE": 10.0, "DERIVED": 999.0}

	ruleSet := []domain.Rule{
		{Name: "derive", OutputBucket: "DERIVED", Formula: "BASE * 2", Priority: 200},
	}

	result := engine.EvaluateAggregationRules(ruleSet, buckets)
	assert.InDelta(t, 20.0, result["DERIVED"], 1e-9)
}

func TestEngine_EvaluateAggregationRules_OrderDependentLayering(t *testing.T) {
	// Two equal-priority aggregation rules: the second observes the
	// first's rewrite, so file order is semantically meaningful.
	engine := New()
	buckets := map[string]float64{"A": 5.0}

	ruleSet := []domain.Rule{
		{Name: "first", OutputBucket: "B", Formula: "A * 2", Priority: 250},
		{Name: "second", OutputBucket: "C", Formula: "B + 1", Priority: 250},
	}

	result := engine.EvaluateAggregationRules(ruleSet, buckets)
	assert.InDelta(t, 10.0, result["B"], 1e-9)
	assert.InDelta(t, 11.0, result["C"], 1e-9)
}
