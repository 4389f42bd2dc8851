package domain

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Operator enumerates the closed logic language a condition node may use.
type Operator string

const (
	OpEqual        Operator = "=="
	OpNotEqual     Operator = "!="
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpAnd          Operator = "and"
	OpOr           Operator = "or"
	OpIn           Operator = "in"
	OpVar          Operator = "var"
	OpIf           Operator = "if"
	OpAdd          Operator = "+"
	OpSubtract     Operator = "-"
	OpMultiply     Operator = "*"
	OpDivide       Operator = "/"
	OpAlways       Operator = "always"
)

// knownOperators is the full vocabulary accepted by ParseCondition.
var knownOperators = map[Operator]bool{
	OpEqual: true, OpNotEqual: true,
	OpGreater: true, OpGreaterEqual: true,
	OpLess: true, OpLessEqual: true,
	OpAnd: true, OpOr: true, OpIn: true,
	OpVar: true, OpIf: true,
	OpAdd: true, OpSubtract: true, OpMultiply: true, OpDivide: true,
	OpAlways: true,
}

// Condition is one node of the boolean/arithmetic expression tree that
// decides rule applicability. Each node carries exactly one operator and
// its operands; nodes nest arbitrarily.
//
// A nil *Condition is the default-match condition (always true).
type Condition struct {
	Op   Operator
	Args []Operand

	// Field is the looked-up field name when Op is OpVar.
	Field string
}

// Operand is a single argument of a condition node: either a nested
// condition expression or a literal scalar/list value.
type Operand struct {
	Cond    *Condition
	Literal any
}

// IsExpr reports whether the operand is a nested expression rather than a
// literal value.
func (o Operand) IsExpr() bool {
	return o.Cond != nil
}

// ParseCondition builds a typed condition tree from a decoded YAML/JSON
// value. A nil or empty mapping yields a nil condition (always-match
// policy). An unrecognized operator key is a configuration error — rule
// file typos must fail loudly, not silently default.
func ParseCondition(raw any) (*Condition, error) {
	if raw == nil {
		return nil, nil
	}
	node, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected mapping, got %T", ErrMalformedCondition, raw)
	}
	if len(node) == 0 {
		return nil, nil
	}

	// "always: true" short-circuits regardless of other keys.
	if v, ok := node["always"]; ok {
		if b, ok := v.(bool); ok && b {
			return &Condition{Op: OpAlways}, nil
		}
	}

	if len(node) != 1 {
		return nil, fmt.Errorf("%w: expected exactly one operator key, got %d", ErrMalformedCondition, len(node))
	}

	var opKey string
	var rawArgs any
	for k, v := range node {
		opKey, rawArgs = k, v
	}

	op := Operator(opKey)
	if !knownOperators[op] {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperator, opKey)
	}

	cond := &Condition{Op: op}

	switch op {
	case OpAlways:
		// Arguments are ignored; "always: false" is still an always node but
		// only the true form is produced above, so reject anything else.
		if b, ok := rawArgs.(bool); !ok || !b {
			return nil, fmt.Errorf("%w: always expects true", ErrMalformedCondition)
		}
	case OpVar:
		// Operand is a literal field name. A non-string argument resolves to
		// the absent value at evaluation time, matching the lookup contract.
		if name, ok := rawArgs.(string); ok {
			cond.Field = name
		}
	default:
		args, err := parseOperands(rawArgs)
		if err != nil {
			return nil, err
		}
		cond.Args = args
	}

	return cond, nil
}

// parseOperands normalizes an operator's argument value into a list of
// operands, recursing into nested expression mappings.
func parseOperands(raw any) ([]Operand, error) {
	list, ok := raw.([]any)
	if !ok {
		// Single bare argument.
		list = []any{raw}
	}
	args := make([]Operand, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			nested, err := ParseCondition(m)
			if err != nil {
				return nil, err
			}
			args = append(args, Operand{Cond: nested})
			continue
		}
		args = append(args, Operand{Literal: item})
	}
	return args, nil
}

// UnmarshalYAML decodes a condition from its declarative rule-file form.
func (c *Condition) UnmarshalYAML(value *yaml.Node) error {
	var raw any
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ParseCondition(raw)
	if err != nil {
		return err
	}
	if parsed == nil {
		*c = Condition{Op: OpAlways}
		return nil
	}
	*c = *parsed
	return nil
}

// UnmarshalJSON decodes a condition from a JSON tree.
func (c *Condition) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseCondition(raw)
	if err != nil {
		return err
	}
	if parsed == nil {
		*c = Condition{Op: OpAlways}
		return nil
	}
	*c = *parsed
	return nil
}
