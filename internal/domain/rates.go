package domain

import "strings"

// Named VAT rate codes with special-cased resolution.
const (
	RateCodeVAT12Sales      = "VAT_12_SALES"
	RateCodeVAT12Purchase   = "VAT_12_PURCHASE"
	RateCodeVATZeroExports  = "VAT_ZERO_EXPORTS"
	RateCodeVATZeroPurchase = "VAT_ZERO_PURCHASE"
)

// vatCodePrefix routes codes into the VAT sub-table.
const vatCodePrefix = "VAT"

// VATRates holds the VAT category of a rate table.
type VATRates struct {
	StandardRate     float64 `json:"standard_rate" yaml:"standard_rate"`
	ZeroRatedExports float64 `json:"zero_rated_exports" yaml:"zero_rated_exports"`
}

// RateEntry is one coded rate inside a withholding category.
type RateEntry struct {
	Rate        float64 `json:"rate" yaml:"rate"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
}

// RateTable is jurisdiction rate reference data, grouped by category.
type RateTable struct {
	VAT                 VATRates             `json:"vat" yaml:"vat"`
	ExpandedWithholding map[string]RateEntry `json:"expanded_withholding_tax" yaml:"expanded_withholding_tax"`
	FinalWithholding    map[string]RateEntry `json:"final_withholding_tax" yaml:"final_withholding_tax"`
}

// Lookup resolves a rate code to its numeric value. The function is total:
// VAT-prefixed codes resolve through the VAT sub-table's named special
// cases, everything else is checked against expanded withholding, then
// final withholding, and an unmatched code resolves to 0.0 — never an
// error.
func (t *RateTable) Lookup(code string) float64 {
	if t == nil {
		return 0.0
	}

	if strings.HasPrefix(code, vatCodePrefix) {
		switch code {
		case RateCodeVAT12Sales, RateCodeVAT12Purchase:
			return t.VAT.StandardRate
		case RateCodeVATZeroExports, RateCodeVATZeroPurchase:
			return t.VAT.ZeroRatedExports
		}
		return 0.0
	}

	if entry, ok := t.ExpandedWithholding[code]; ok {
		return entry.Rate
	}
	if entry, ok := t.FinalWithholding[code]; ok {
		return entry.Rate
	}
	return 0.0
}
