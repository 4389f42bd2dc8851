package domain

// ValidationCheck is one declarative check consumed by the external
// validation component. The engine does not interpret checks; the loader
// exposes them verbatim.
type ValidationCheck struct {
	Name      string     `yaml:"name" json:"name"`
	Condition *Condition `yaml:"condition,omitempty" json:"condition,omitempty"`
	Formula   string     `yaml:"formula,omitempty" json:"formula,omitempty"`
	Message   string     `yaml:"message,omitempty" json:"message,omitempty"`
	Severity  string     `yaml:"severity,omitempty" json:"severity,omitempty"`
}

// ValidationSpec holds the two check collections of a validation file:
// per-transaction checks and aggregate/cross-bucket checks.
type ValidationSpec struct {
	Transaction []ValidationCheck `yaml:"transaction" json:"transaction"`
	Aggregate   []ValidationCheck `yaml:"aggregate" json:"aggregate"`
}
