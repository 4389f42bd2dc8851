// Package condition evaluates the declarative boolean/arithmetic expression
// trees that gate tax rules against a single transaction record.
//
// The evaluator is a pure function over its arguments. Its failure policy is
// deliberately asymmetric: structural errors (an operator outside the closed
// set) surface loudly as errors, while value errors (missing fields, type
// coercion failures, division by zero) degrade to false/0.0 so loosely typed
// transaction data never crashes a compliance run.
package condition

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/jgtolentino/TaxPulse-PH-Pack/internal/domain"
)

// Match evaluates a condition against a transaction and reports whether it
// holds. A nil condition always matches (default-match policy).
func Match(cond *domain.Condition, txn domain.Transaction) (bool, error) {
	if cond == nil {
		return true, nil
	}
	value, err := Evaluate(cond, txn)
	if err != nil {
		return false, err
	}
	return truthy(value), nil
}

// Evaluate resolves a condition node to its value: a boolean for logic
// operators, a number for arithmetic, or an arbitrary transaction value for
// var lookups. A nil condition evaluates to true.
func Evaluate(cond *domain.Condition, txn domain.Transaction) (any, error) {
	if cond == nil {
		return true, nil
	}

	switch cond.Op {
	case domain.OpAlways:
		return true, nil

	case domain.OpVar:
		if cond.Field == "" {
			return nil, nil
		}
		return txn.Get(cond.Field), nil

	case domain.OpEqual:
		return evalEqual(cond.Args, txn)

	case domain.OpNotEqual:
		eq, err := evalEqual(cond.Args, txn)
		if err != nil {
			return false, err
		}
		// Arity violations already degraded to false in evalEqual; a
		// malformed != stays false rather than negating into true.
		if len(cond.Args) != 2 {
			return false, nil
		}
		return !eq, nil

	case domain.OpGreater, domain.OpGreaterEqual, domain.OpLess, domain.OpLessEqual:
		return evalComparison(cond.Op, cond.Args, txn)

	case domain.OpAnd:
		for _, arg := range cond.Args {
			value, err := resolveOperand(arg, txn)
			if err != nil {
				return false, err
			}
			if !truthy(value) {
				return false, nil
			}
		}
		return true, nil

	case domain.OpOr:
		for _, arg := range cond.Args {
			value, err := resolveOperand(arg, txn)
			if err != nil {
				return false, err
			}
			if truthy(value) {
				return true, nil
			}
		}
		return false, nil

	case domain.OpIn:
		return evalIn(cond.Args, txn)

	case domain.OpIf:
		return evalIf(cond.Args, txn)

	case domain.OpAdd:
		return evalAdd(cond.Args, txn)

	case domain.OpSubtract, domain.OpMultiply, domain.OpDivide:
		return evalBinaryArithmetic(cond.Op, cond.Args, txn)
	}

	// Unreachable through ParseCondition; guards hand-built trees.
	return nil, fmt.Errorf("%w: %q", domain.ErrUnknownOperator, cond.Op)
}

// evalEqual implements loose equality: two numeric values compare as
// floating point (so an integer literal matches a float field), everything
// else compares structurally. Mixed string/number pairs are unequal.
func evalEqual(args []domain.Operand, txn domain.Transaction) (bool, error) {
	if len(args) != 2 {
		return false, nil
	}
	left, err := resolveOperand(args[0], txn)
	if err != nil {
		return false, err
	}
	right, err := resolveOperand(args[1], txn)
	if err != nil {
		return false, err
	}
	return equalValues(left, right), nil
}

func evalComparison(op domain.Operator, args []domain.Operand, txn domain.Transaction) (bool, error) {
	if len(args) != 2 {
		return false, nil
	}
	leftRaw, err := resolveOperand(args[0], txn)
	if err != nil {
		return false, err
	}
	rightRaw, err := resolveOperand(args[1], txn)
	if err != nil {
		return false, err
	}

	left, ok := toFloat(leftRaw)
	if !ok {
		return false, nil
	}
	right, ok := toFloat(rightRaw)
	if !ok {
		return false, nil
	}

	switch op {
	case domain.OpGreater:
		return left > right, nil
	case domain.OpGreaterEqual:
		return left >= right, nil
	case domain.OpLess:
		return left < right, nil
	case domain.OpLessEqual:
		return left <= right, nil
	}
	return false, nil
}

func evalIn(args []domain.Operand, txn domain.Transaction) (bool, error) {
	if len(args) != 2 {
		return false, nil
	}
	value, err := resolveOperand(args[0], txn)
	if err != nil {
		return false, err
	}
	rightRaw, err := resolveOperand(args[1], txn)
	if err != nil {
		return false, err
	}
	list, ok := rightRaw.([]any)
	if !ok {
		return false, nil
	}
	for _, item := range list {
		if equalValues(value, item) {
			return true, nil
		}
	}
	return false, nil
}

// evalIf implements the ternary operator. The first operand is used as a
// boolean; missing branches default to true/false respectively.
func evalIf(args []domain.Operand, txn domain.Transaction) (any, error) {
	if len(args) < 2 {
		return nil, nil
	}
	guard, err := resolveOperand(args[0], txn)
	if err != nil {
		return nil, err
	}
	if truthy(guard) {
		return resolveOperand(args[1], txn)
	}
	if len(args) > 2 {
		return resolveOperand(args[2], txn)
	}
	return false, nil
}

// evalAdd sums all operands. Nil operands (missing fields) are skipped; any
// other non-coercible operand poisons the whole sum to 0.0.
func evalAdd(args []domain.Operand, txn domain.Transaction) (float64, error) {
	total := 0.0
	for _, arg := range args {
		value, err := resolveOperand(arg, txn)
		if err != nil {
			return 0.0, err
		}
		if value == nil {
			continue
		}
		f, ok := toFloat(value)
		if !ok {
			return 0.0, nil
		}
		total += f
	}
	return total, nil
}

// evalBinaryArithmetic implements -, * and /. Coercion failures yield 0.0,
// and division by zero saturates to 0.0 rather than producing Inf.
func evalBinaryArithmetic(op domain.Operator, args []domain.Operand, txn domain.Transaction) (float64, error) {
	if len(args) != 2 {
		return 0.0, nil
	}
	leftRaw, err := resolveOperand(args[0], txn)
	if err != nil {
		return 0.0, err
	}
	rightRaw, err := resolveOperand(args[1], txn)
	if err != nil {
		return 0.0, err
	}

	left, ok := toFloat(leftRaw)
	if !ok {
		return 0.0, nil
	}
	right, ok := toFloat(rightRaw)
	if !ok {
		return 0.0, nil
	}

	switch op {
	case domain.OpSubtract:
		return left - right, nil
	case domain.OpMultiply:
		return left * right, nil
	case domain.OpDivide:
		if right == 0 {
			return 0.0, nil
		}
		return left / right, nil
	}
	return 0.0, nil
}

// resolveOperand turns an operand into a concrete value: nested expressions
// are evaluated recursively, literals pass through unchanged.
func resolveOperand(arg domain.Operand, txn domain.Transaction) (any, error) {
	if arg.IsExpr() {
		return Evaluate(arg.Cond, txn)
	}
	return arg.Literal, nil
}

// toFloat coerces a scalar to floating point. Booleans coerce to 0/1 and
// numeric strings are parsed; anything else fails the coercion.
func toFloat(v any) (float64, bool) {
	switch value := v.(type) {
	case float64:
		return value, true
	case float32:
		return float64(value), true
	case int:
		return float64(value), true
	case int64:
		return float64(value), true
	case int32:
		return float64(value), true
	case uint64:
		return float64(value), true
	case bool:
		if value {
			return 1.0, true
		}
		return 0.0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return 0.0, false
		}
		return f, true
	}
	return 0.0, false
}

// truthy applies the loose boolean interpretation rule authors rely on:
// nil, false, zero, empty strings and empty collections are falsy.
func truthy(v any) bool {
	switch value := v.(type) {
	case nil:
		return false
	case bool:
		return value
	case string:
		return value != ""
	case []any:
		return len(value) > 0
	case map[string]any:
		return len(value) > 0
	}
	if f, ok := toFloat(v); ok {
		return f != 0
	}
	return true
}

// equalValues implements the evaluator's loose equality.
func equalValues(a, b any) bool {
	if isNumeric(a) && isNumeric(b) {
		fa, _ := toFloat(a)
		fb, _ := toFloat(b)
		return fa == fb
	}
	sa, aok := a.(string)
	sb, bok := b.(string)
	if aok && bok {
		return sa == sb
	}
	if aok != bok {
		return false
	}
	return deepEqual(a, b)
}

// isNumeric reports whether a value belongs to the numeric coercion domain
// for equality purposes (strings are excluded: "5" != 5).
func isNumeric(v any) bool {
	switch v.(type) {
	case float64, float32, int, int64, int32, uint64, bool:
		return true
	}
	return false
}

// deepEqual compares the remaining cases (lists, nil, mixed kinds).
func deepEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	la, aok := a.([]any)
	lb, bok := b.([]any)
	if aok && bok {
		if len(la) != len(lb) {
			return false
		}
		for i := range la {
			if !equalValues(la[i], lb[i]) {
				return false
			}
		}
		return true
	}
	if aok != bok {
		return false
	}
	return reflect.DeepEqual(a, b)
}
