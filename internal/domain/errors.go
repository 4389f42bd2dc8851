package domain

import "errors"

// Sentinel errors for cross-layer signaling.
// Configuration errors (unknown operators, missing pack files, malformed
// mappings) are fatal to the operation that hits them and bubble to the
// caller. Value-resolution errors never surface as errors at all: the
// evaluators degrade them to false/0.0 as documented on each operation.
var (
	// ErrUnknownOperator marks a condition node whose operator key is not part
	// of the closed operator set. Always a rule-file typo, never defaulted.
	ErrUnknownOperator = errors.New("unknown operator")
	// ErrNotFound marks a pack file that a load operation declared but could
	// not read.
	ErrNotFound = errors.New("not_found")
	// ErrMalformedCondition marks a condition node that is structurally
	// invalid (not a single-operator mapping).
	ErrMalformedCondition = errors.New("malformed condition")
	// ErrDuplicateLine marks a form mapping that declares the same line id
	// twice.
	ErrDuplicateLine = errors.New("duplicate form line")
)
