package pricing

import (
	"testing"

	"gorm.io/datatypes"
)

func factsFixture() Facts {
	return Facts{
		"line_item": map[string]any{
			"quantity":          float64(5),
			"contract_duration": float64(24),
			"nationality":       "Filipino",
			"job_title":         "Senior Welder",
		},
		"lead": map[string]any{
			"source": "referral",
		},
	}
}

func TestEvaluate_EmptySetAlwaysMatches(t *testing.T) {
	if !Evaluate(ConditionSet{}, factsFixture()) {
		t.Fatal("empty condition set should match")
	}
}

func TestEvaluate_Operators(t *testing.T) {
	tests := []struct {
		name string
		cond Condition
		want bool
	}{
		{"equal number", Condition{Fact: "line_item.quantity", Operator: OpEqual, Value: float64(5)}, true},
		{"equal coerced string", Condition{Fact: "line_item.quantity", Operator: OpEqual, Value: "5"}, true},
		{"equal string", Condition{Fact: "line_item.nationality", Operator: OpEqual, Value: "Filipino"}, true},
		{"not_equal", Condition{Fact: "line_item.nationality", Operator: OpNotEqual, Value: "Indian"}, true},
		{"greater_than true", Condition{Fact: "line_item.contract_duration", Operator: OpGreaterThan, Value: float64(12)}, true},
		{"greater_than false", Condition{Fact: "line_item.contract_duration", Operator: OpGreaterThan, Value: float64(24)}, false},
		{"less_than", Condition{Fact: "line_item.quantity", Operator: OpLessThan, Value: float64(10)}, true},
		{"gte boundary", Condition{Fact: "line_item.contract_duration", Operator: OpGreaterThanOrEqual, Value: float64(24)}, true},
		{"lte boundary", Condition{Fact: "line_item.quantity", Operator: OpLessThanOrEqual, Value: float64(5)}, true},
		{"numeric against non-number", Condition{Fact: "line_item.nationality", Operator: OpGreaterThan, Value: float64(1)}, false},
		{"in list", Condition{Fact: "line_item.nationality", Operator: OpIn, Value: []any{"Indian", "Filipino"}}, true},
		{"in comma string", Condition{Fact: "line_item.nationality", Operator: OpIn, Value: "Indian, Filipino"}, true},
		{"in miss", Condition{Fact: "line_item.nationality", Operator: OpIn, Value: []any{"Indian"}}, false},
		{"contains", Condition{Fact: "line_item.job_title", Operator: OpContains, Value: "Welder"}, true},
		{"starts_with", Condition{Fact: "line_item.job_title", Operator: OpStartsWith, Value: "Senior"}, true},
		{"starts_with miss", Condition{Fact: "line_item.job_title", Operator: OpStartsWith, Value: "Junior"}, false},
		{"between inside", Condition{Fact: "line_item.contract_duration", Operator: OpBetween, Value: []any{float64(12), float64(36)}}, true},
		{"between lower bound inclusive", Condition{Fact: "line_item.contract_duration", Operator: OpBetween, Value: []any{float64(24), float64(36)}}, true},
		{"between outside", Condition{Fact: "line_item.quantity", Operator: OpBetween, Value: []any{float64(10), float64(20)}}, false},
		{"between malformed value", Condition{Fact: "line_item.quantity", Operator: OpBetween, Value: []any{float64(1)}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(ConditionSet{All: []Condition{tt.cond}}, factsFixture())
			if got != tt.want {
				t.Errorf("Evaluate(%+v) = %v, want %v", tt.cond, got, tt.want)
			}
		})
	}
}

func TestEvaluate_MissingFactFailsClosed(t *testing.T) {
	set := ConditionSet{All: []Condition{
		{Fact: "line_item.quantity", Operator: OpEqual, Value: float64(5)},
		{Fact: "lead.budget", Operator: OpGreaterThan, Value: float64(1)},
	}}
	if Evaluate(set, factsFixture()) {
		t.Fatal("a missing fact must make the whole set fail")
	}
}

func TestEvaluate_MissingIntermediatePath(t *testing.T) {
	set := ConditionSet{All: []Condition{
		{Fact: "opportunity.stage.name", Operator: OpEqual, Value: "won"},
	}}
	if Evaluate(set, factsFixture()) {
		t.Fatal("missing intermediate path must not match (and must not panic)")
	}
}

func TestEvaluate_UnknownOperatorFailsClosed(t *testing.T) {
	set := ConditionSet{All: []Condition{
		{Fact: "line_item.quantity", Operator: "matches_regex", Value: ".*"},
	}}
	if Evaluate(set, factsFixture()) {
		t.Fatal("unknown operator must be treated as non-match")
	}
}

func TestEvaluate_AllSemantics(t *testing.T) {
	set := ConditionSet{All: []Condition{
		{Fact: "line_item.quantity", Operator: OpGreaterThanOrEqual, Value: float64(5)},
		{Fact: "line_item.nationality", Operator: OpEqual, Value: "Filipino"},
	}}
	if !Evaluate(set, factsFixture()) {
		t.Fatal("all conditions hold, set should match")
	}
	set.All = append(set.All, Condition{Fact: "lead.source", Operator: OpEqual, Value: "cold_call"})
	if Evaluate(set, factsFixture()) {
		t.Fatal("one failing condition must fail the set")
	}
}

func TestParseConditionSet(t *testing.T) {
	raw := datatypes.JSON(`{"all":[{"fact":"line_item.quantity","operator":"greater_than","value":3}]}`)
	cs, err := ParseConditionSet(raw)
	if err != nil {
		t.Fatalf("ParseConditionSet: %v", err)
	}
	if len(cs.All) != 1 || cs.All[0].Operator != OpGreaterThan {
		t.Fatalf("unexpected parse result: %+v", cs)
	}

	for _, raw := range []datatypes.JSON{nil, datatypes.JSON("null"), datatypes.JSON("")} {
		cs, err := ParseConditionSet(raw)
		if err != nil {
			t.Fatalf("ParseConditionSet(%q): %v", raw, err)
		}
		if !cs.IsEmpty() {
			t.Fatalf("ParseConditionSet(%q) should be empty", raw)
		}
	}

	if _, err := ParseConditionSet(datatypes.JSON(`{broken`)); err == nil {
		t.Fatal("malformed JSON should error")
	}
}
