package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pitabwire/vesselwizard/model"
)

// Condition is a parsed comparison of a form field against a literal, e.g.
// "registration_type == 'temporary'" or "mortgage_value > 0".
type Condition struct {
	Field string
	Op    string
	Value string
}

// Operators are tried longest first so ">=" is not read as ">".
var operators = []string{"==", "!=", ">=", "<=", ">", "<"}

// ParseCondition parses expr. An expression that cannot be parsed is a
// configuration error, never silently true.
func ParseCondition(expr string) (Condition, error) {
	for _, op := range operators {
		parts := splitCondition(expr, op)
		if len(parts) != 2 {
			continue
		}
		field := strings.TrimSpace(parts[0])
		value := trimQuotes(strings.TrimSpace(parts[1]))
		if field == "" {
			return Condition{}, fmt.Errorf("condition %q has no field", expr)
		}
		if isOrdering(op) {
			if _, err := parseNumber(value); err != nil {
				return Condition{}, fmt.Errorf("condition %q compares with non-numeric %q", expr, value)
			}
		}
		return Condition{Field: field, Op: op, Value: value}, nil
	}
	return Condition{}, fmt.Errorf("condition %q has no supported operator", expr)
}

// Eval evaluates the condition against data. Ordering comparisons are false
// when the field value is not a number.
func (c Condition) Eval(data model.FormData) bool {
	actual := strings.TrimSpace(data.Value(c.Field))
	switch c.Op {
	case "==":
		return actual == c.Value
	case "!=":
		return actual != c.Value
	}

	a, err := parseNumber(actual)
	if err != nil {
		return false
	}
	b, _ := parseNumber(c.Value)
	switch c.Op {
	case ">":
		return a > b
	case ">=":
		return a >= b
	case "<":
		return a < b
	case "<=":
		return a <= b
	}
	panic(model.UnhandledVariant("condition operator", c.Op))
}

// String renders the condition in its source form.
func (c Condition) String() string {
	return fmt.Sprintf("%s %s '%s'", c.Field, c.Op, c.Value)
}

func isOrdering(op string) bool {
	return op != "==" && op != "!="
}

// parseNumber accepts thousands separators as entered in amount fields.
func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", ""), 64)
}

// splitCondition splits a condition string by an operator, but only if the
// operator isn't part of a longer operator (e.g. ">" inside ">=").
func splitCondition(s, op string) []string {
	for i := 0; i <= len(s)-len(op); i++ {
		if s[i:i+len(op)] != op {
			continue
		}
		if len(op) == 1 && i+1 < len(s) && s[i+1] == '=' {
			continue
		}
		if op == "==" && i > 0 && (s[i-1] == '!' || s[i-1] == '<' || s[i-1] == '>') {
			continue
		}
		return []string{s[:i], s[i+len(op):]}
	}
	return nil
}

func trimQuotes(s string) string {
	if len(s) >= 2 && ((s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"')) {
		return s[1 : len(s)-1]
	}
	return s
}
