package domain

// Transaction represents a single financial event to classify.
// It is a caller-supplied bag of scalar fields (numbers, text, dates as text)
// extracted from the accounting ledger by an external collaborator.
// The engine treats it as read-only for the whole evaluation.
type Transaction map[string]any

// Get returns the value of a field, or nil if the field is absent.
// Field absence is a defined state, never an error.
func (t Transaction) Get(field string) any {
	if t == nil {
		return nil
	}
	return t[field]
}

// Has reports whether the transaction carries the given field.
func (t Transaction) Has(field string) bool {
	if t == nil {
		return false
	}
	_, ok := t[field]
	return ok
}
