package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestRule_UnmarshalYAML_Defaults(t *testing.T) {
	source := `
name: output_vat_sales
condition:
  "==":
    - var: type
    - sale
output_bucket: VAT_OUTPUT_12
formula: base * rate
base_source: gross_amount
rate_value: 0.12
`
	var rule Rule
	require.NoError(t, yaml.Unmarshal([]byte(source), &rule))

	assert.Equal(t, "output_vat_sales", rule.Name)
	assert.Equal(t, FormulaBaseTimesRate, rule.Formula)
	assert.Equal(t, 0.12, rule.RateValue)
	// priority defaults to 0 when the file omits it
	assert.Equal(t, 0, rule.Priority)
	assert.False(t, rule.IsAggregation())
}

func TestRule_IsAggregation(t *testing.T) {
	tests := []struct {
		priority int
		want     bool
	}{
		{0, false},
		{100, false},
		{199, false},
		{200, true},
		{250, true},
	}
	for _, tt := range tests {
		rule := Rule{Priority: tt.priority}
		assert.Equal(t, tt.want, rule.IsAggregation(), "priority %d", tt.priority)
	}
}
