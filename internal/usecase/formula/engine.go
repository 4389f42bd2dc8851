// Package formula evaluates the string-encoded arithmetic formulas that
// aggregate buckets into derived buckets and regulatory form line values.
package formula

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jgtolentino/TaxPulse-PH-Pack/internal/domain"
)

// Built-in function names. The set is closed; an unrecognized call fails
// the formula, which then degrades to 0.0.
const (
	funcSum   = "SUM"
	funcMax   = "MAX"
	funcMin   = "MIN"
	funcAbs   = "ABS"
	funcRound = "ROUND"
)

// Engine evaluates formulas against bucket and form line state. It holds no
// state of its own beyond a diagnostics logger, so a single instance is safe
// for concurrent use across transactions and requests.
//
// The numeric contract never fails: any parse or evaluation problem yields
// 0.0. That silent-zero policy keeps a malformed formula from crashing a
// compliance run, so every fallback is additionally reported on the
// diagnostics logger for rule authors to catch.
type Engine struct {
	log zerolog.Logger
}

// NewEngine creates an engine reporting fallbacks to the given logger.
func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{log: log}
}

// New creates a silent engine. Evaluation behaves identically; only the
// diagnostics go nowhere.
func New() *Engine {
	return NewEngine(zerolog.Nop())
}

// Evaluate computes a formula over bucket totals and previously computed
// form lines. Identifiers resolve against form lines first, then buckets;
// an identifier known to neither fails the formula. Division by zero
// saturates to 0.0. Any failure returns 0.0 and emits a diagnostics event.
func (e *Engine) Evaluate(formula string, buckets, formLines map[string]float64) float64 {
	if formula == "" {
		return 0.0
	}

	root, err := parse(formula)
	if err != nil {
		e.log.Warn().Str("formula", formula).Err(err).Msg("formula parse failed, defaulting to 0.0")
		return 0.0
	}

	value, err := e.eval(root, buckets, formLines)
	if err != nil {
		e.log.Warn().Str("formula", formula).Err(err).Msg("formula evaluation failed, defaulting to 0.0")
		return 0.0
	}
	return value
}

func (e *Engine) eval(n node, buckets, formLines map[string]float64) (float64, error) {
	switch v := n.(type) {
	case numberNode:
		return v.value, nil

	case identNode:
		if value, ok := formLines[v.name]; ok {
			return value, nil
		}
		if value, ok := buckets[v.name]; ok {
			return value, nil
		}
		return 0.0, fmt.Errorf("unresolved identifier %q", v.name)

	case unaryNode:
		value, err := e.eval(v.operand, buckets, formLines)
		if err != nil {
			return 0.0, err
		}
		return -value, nil

	case binaryNode:
		left, err := e.eval(v.left, buckets, formLines)
		if err != nil {
			return 0.0, err
		}
		right, err := e.eval(v.right, buckets, formLines)
		if err != nil {
			return 0.0, err
		}
		switch v.op {
		case '+':
			return left + right, nil
		case '-':
			return left - right, nil
		case '*':
			return left * right, nil
		case '/':
			if right == 0 {
				// Saturating division: tax formulas must never produce Inf.
				e.log.Debug().Msg("division by zero in formula, saturating to 0.0")
				return 0.0, nil
			}
			return left / right, nil
		}
		return 0.0, fmt.Errorf("unknown operator %q", v.op)

	case callNode:
		return e.evalCall(v, buckets, formLines)
	}
	return 0.0, fmt.Errorf("unknown node %T", n)
}

func (e *Engine) evalCall(call callNode, buckets, formLines map[string]float64) (float64, error) {
	switch call.name {
	case funcSum:
		total := 0.0
		for _, value := range e.resolveArgs(call.args, buckets, formLines) {
			total += value
		}
		return total, nil

	case funcMax:
		values := e.resolveArgs(call.args, buckets, formLines)
		if len(values) == 0 {
			return 0.0, nil
		}
		best := values[0]
		for _, value := range values[1:] {
			best = math.Max(best, value)
		}
		return best, nil

	case funcMin:
		values := e.resolveArgs(call.args, buckets, formLines)
		if len(values) == 0 {
			return 0.0, nil
		}
		best := values[0]
		for _, value := range values[1:] {
			best = math.Min(best, value)
		}
		return best, nil

	case funcAbs:
		if len(call.args) != 1 {
			// Malformed arity is a value error, not a crash.
			return 0.0, nil
		}
		values := e.resolveArgs(call.args, buckets, formLines)
		if len(values) == 0 {
			return 0.0, nil
		}
		return math.Abs(values[0]), nil

	case funcRound:
		return e.evalRound(call.args, buckets, formLines), nil
	}
	return 0.0, fmt.Errorf("unknown function %q", call.name)
}

// evalRound implements ROUND(value, places). The value argument resolves
// like any other function argument; a malformed places argument defaults to
// 2 decimals, and missing arguments yield 0.0.
//
// Rounding is half away from zero (the conventional tax treatment here:
// ROUND(100.005, 2) = 100.01), delegated to shopspring/decimal so the
// result is exact rather than subject to binary float artifacts.
func (e *Engine) evalRound(args []node, buckets, formLines map[string]float64) float64 {
	if len(args) < 2 {
		return 0.0
	}
	value, ok := e.resolveArg(args[0], buckets, formLines)
	if !ok {
		return 0.0
	}
	places := 2
	if p, ok := e.resolveArg(args[1], buckets, formLines); ok && p == math.Trunc(p) {
		places = int(p)
	}
	return decimal.NewFromFloat(value).Round(int32(places)).InexactFloat64()
}

// resolveArgs resolves function arguments with the per-argument policy:
// form line, else bucket, else literal; unresolvable arguments are dropped
// (they contribute nothing, they never fail the call).
func (e *Engine) resolveArgs(args []node, buckets, formLines map[string]float64) []float64 {
	values := make([]float64, 0, len(args))
	for _, arg := range args {
		if value, ok := e.resolveArg(arg, buckets, formLines); ok {
			values = append(values, value)
		}
	}
	return values
}

func (e *Engine) resolveArg(arg node, buckets, formLines map[string]float64) (float64, bool) {
	if ident, ok := arg.(identNode); ok {
		if value, ok := formLines[ident.name]; ok {
			return value, true
		}
		if value, ok := buckets[ident.name]; ok {
			return value, true
		}
		e.log.Debug().Str("identifier", ident.name).Msg("unresolvable function argument dropped")
		return 0.0, false
	}
	value, err := e.eval(arg, buckets, formLines)
	if err != nil {
		e.log.Debug().Err(err).Msg("unresolvable function argument dropped")
		return 0.0, false
	}
	return value, true
}

// EvaluateFormLines computes the form line set for a mapping, traversing
// sections and their lines strictly in declaration order. Each line copies
// its source bucket, evaluates its formula against the buckets and the
// lines accumulated so far, or defaults to 0.0 when it declares neither.
//
// A formula may only reference lines computed earlier in traversal order.
// A forward reference is unresolvable at that point and degrades the
// formula to 0.0; the mapping author owns that ordering.
func (e *Engine) EvaluateFormLines(mapping *domain.FormMapping, buckets map[string]float64) map[string]float64 {
	formLines := make(map[string]float64)
	if mapping == nil {
		return formLines
	}

	for _, section := range mapping.Sections {
		for _, line := range section.Lines {
			if line.Line == "" {
				continue
			}
			key := domain.FormLineKey(string(line.Line))
			switch {
			case line.Bucket != "":
				formLines[key] = buckets[line.Bucket]
			case line.Formula != "":
				formLines[key] = e.Evaluate(line.Formula, buckets, formLines)
			default:
				formLines[key] = 0.0
			}
		}
	}
	return formLines
}

// EvaluateAggregationRules runs the late aggregation pass: rules at or
// above the aggregation priority threshold, in their given order, each
// evaluate their formula against the current bucket state and overwrite
// (not accumulate) their output bucket. Later rules observe earlier rules'
// outputs, so rule-file order among equal priorities is meaningful.
//
// The bucket map is mutated in place and returned.
func (e *Engine) EvaluateAggregationRules(ruleSet []domain.Rule, buckets map[string]float64) map[string]float64 {
	for _, rule := range ruleSet {
		if !rule.IsAggregation() {
			continue
		}
		if rule.OutputBucket == "" || rule.Formula == "" {
			continue
		}
		buckets[rule.OutputBucket] = e.Evaluate(rule.Formula, buckets, nil)
	}
	return buckets
}
