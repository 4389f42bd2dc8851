package domain

// Formula tags resolved directly by the rule application pipeline. Any
// other formula text is an aggregate expression deferred to the formula
// engine.
const (
	FormulaBaseTimesRate = "base * rate"
	FormulaBase          = "base"
)

// AggregationPriority is the threshold marking derived/aggregate rules.
// Rules at or above it operate on buckets instead of raw transactions and
// are applied by the formula engine's aggregation pass, in rule-file order.
const AggregationPriority = 200

// Rule represents one declarative tax rule: a condition deciding whether a
// transaction participates, and how its amount contributes to a named
// output bucket.
type Rule struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Condition gates the rule. A nil condition always matches.
	Condition *Condition `yaml:"condition,omitempty" json:"condition,omitempty"`

	// OutputBucket names the accumulator the contribution lands in. A rule
	// without one contributes nothing even when matched (audit-only rules).
	OutputBucket string `yaml:"output_bucket,omitempty" json:"output_bucket,omitempty"`

	// Formula is either a closed-form tag (FormulaBaseTimesRate,
	// FormulaBase) or an aggregate expression for the formula engine.
	Formula string `yaml:"formula,omitempty" json:"formula,omitempty"`

	// BaseSource names the transaction field the closed-form formulas read.
	BaseSource string `yaml:"base_source,omitempty" json:"base_source,omitempty"`

	// RateValue is the numeric rate applied by "base * rate".
	RateValue float64 `yaml:"rate_value,omitempty" json:"rate_value,omitempty"`

	// RateCode optionally references a rate-table code (e.g. W010) instead
	// of inlining RateValue. Resolved through RateTable.Lookup at apply time.
	RateCode string `yaml:"rate_code,omitempty" json:"rate_code,omitempty"`

	// Priority orders evaluation, descending. Ties keep rule-file order.
	Priority int `yaml:"priority,omitempty" json:"priority,omitempty"`
}

// IsAggregation reports whether the rule belongs to the late aggregation
// pass rather than the per-transaction pipeline.
func (r *Rule) IsAggregation() bool {
	return r.Priority >= AggregationPriority
}
