package pricing

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"gorm.io/datatypes"
)

// Operator is a comparison operator usable in a rule condition.
type Operator string

const (
	OpEqual              Operator = "equal"
	OpNotEqual           Operator = "not_equal"
	OpGreaterThan        Operator = "greater_than"
	OpLessThan           Operator = "less_than"
	OpGreaterThanOrEqual Operator = "greater_than_or_equal"
	OpLessThanOrEqual    Operator = "less_than_or_equal"
	OpIn                 Operator = "in"
	OpContains           Operator = "contains"
	OpStartsWith         Operator = "starts_with"
	OpBetween            Operator = "between"
)

// Condition compares a single fact against a value.
type Condition struct {
	Fact     string   `json:"fact"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

// ConditionSet is the persisted condition tree. Only conjunction is
// supported: every condition in All must hold.
type ConditionSet struct {
	All []Condition `json:"all"`
}

// IsEmpty reports whether the set has no conditions, which means "always match".
func (cs ConditionSet) IsEmpty() bool {
	return len(cs.All) == 0
}

// ParseConditionSet decodes the JSON column form of a condition tree. A null
// or empty document yields the empty (always matching) set.
func ParseConditionSet(raw datatypes.JSON) (ConditionSet, error) {
	var cs ConditionSet
	if len(raw) == 0 || string(raw) == "null" {
		return cs, nil
	}
	if err := json.Unmarshal(raw, &cs); err != nil {
		return ConditionSet{}, fmt.Errorf("parse conditions: %w", err)
	}
	return cs, nil
}

// Evaluate reports whether every condition in the set holds against the
// facts. An empty set always matches. A missing fact, a type mismatch, or an
// unknown operator makes the set fail closed; evaluation never panics.
func Evaluate(set ConditionSet, facts Facts) bool {
	if set.IsEmpty() {
		return true
	}
	for _, c := range set.All {
		if !evaluateOne(c, facts) {
			return false
		}
	}
	return true
}

func evaluateOne(c Condition, facts Facts) bool {
	fact, ok := facts.Resolve(c.Fact)
	if !ok {
		return false
	}
	switch c.Operator {
	case OpEqual:
		return looseEqual(fact, c.Value)
	case OpNotEqual:
		return !looseEqual(fact, c.Value)
	case OpGreaterThan:
		return compareNumeric(fact, c.Value, func(a, b float64) bool { return a > b })
	case OpLessThan:
		return compareNumeric(fact, c.Value, func(a, b float64) bool { return a < b })
	case OpGreaterThanOrEqual:
		return compareNumeric(fact, c.Value, func(a, b float64) bool { return a >= b })
	case OpLessThanOrEqual:
		return compareNumeric(fact, c.Value, func(a, b float64) bool { return a <= b })
	case OpIn:
		return valueIn(fact, c.Value)
	case OpContains:
		return strings.Contains(asString(fact), asString(c.Value))
	case OpStartsWith:
		return strings.HasPrefix(asString(fact), asString(c.Value))
	case OpBetween:
		return between(fact, c.Value)
	default:
		log.Printf("pricing: unknown condition operator %q on fact %q, treating as non-match", c.Operator, c.Fact)
		return false
	}
}

// looseEqual mirrors coerced equality: numbers compare numerically even when
// one side is a string, everything else compares by string form.
func looseEqual(a, b any) bool {
	if fa, aok := toFloat(a); aok {
		if fb, bok := toFloat(b); bok {
			return fa == fb
		}
	}
	return asString(a) == asString(b)
}

func compareNumeric(fact, value any, cmp func(a, b float64) bool) bool {
	fa, aok := toFloat(fact)
	fb, bok := toFloat(value)
	if !aok || !bok {
		return false
	}
	return cmp(fa, fb)
}

// valueIn checks membership of the fact in a list value, or in a
// comma-separated string value.
func valueIn(fact, value any) bool {
	switch list := value.(type) {
	case []any:
		for _, item := range list {
			if looseEqual(fact, item) {
				return true
			}
		}
	case string:
		for _, item := range strings.Split(list, ",") {
			if looseEqual(fact, strings.TrimSpace(item)) {
				return true
			}
		}
	}
	return false
}

// between expects a 2-element numeric value and matches inclusively.
func between(fact, value any) bool {
	bounds, ok := value.([]any)
	if !ok || len(bounds) != 2 {
		return false
	}
	f, fok := toFloat(fact)
	lo, lok := toFloat(bounds[0])
	hi, hok := toFloat(bounds[1])
	if !fok || !lok || !hok {
		return false
	}
	return f >= lo && f <= hi
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if f, ok := toFloat(v); ok {
		// Trim the ".000000" noise fmt would add for whole numbers.
		if f == float64(int64(f)) {
			return fmt.Sprintf("%d", int64(f))
		}
		return fmt.Sprintf("%g", f)
	}
	return fmt.Sprintf("%v", v)
}
