package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleRates() *RateTable {
	return &RateTable{
		VAT: VATRates{
			StandardRate:     0.12,
			ZeroRatedExports: 0.00,
		},
		ExpandedWithholding: map[string]RateEntry{
			"W010": {Rate: 0.10, Description: "Professional fees"},
			"W020": {Rate: 0.02},
		},
		FinalWithholding: map[string]RateEntry{
			"F001": {Rate: 0.20},
		},
	}
}

func TestRateTable_Lookup(t *testing.T) {
	rates := sampleRates()

	tests := []struct {
		name string
		code string
		want float64
	}{
		{"standard VAT on sales", RateCodeVAT12Sales, 0.12},
		{"standard VAT on purchases", RateCodeVAT12Purchase, 0.12},
		{"zero-rated exports", RateCodeVATZeroExports, 0.00},
		{"zero-rated purchases", RateCodeVATZeroPurchase, 0.00},
		{"expanded withholding code", "W010", 0.10},
		{"second expanded withholding code", "W020", 0.02},
		{"final withholding code", "F001", 0.20},
		{"unknown VAT-prefixed code", "VAT_UNKNOWN", 0.0},
		{"unknown withholding code", "W999", 0.0},
		{"completely unknown code", "XYZ", 0.0},
		{"empty code", "", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rates.Lookup(tt.code))
		})
	}
}

func TestRateTable_Lookup_NilTable(t *testing.T) {
	// Lookup must be total even without a table.
	var rates *RateTable
	assert.Equal(t, 0.0, rates.Lookup("W010"))
}
