package pricing

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/diewo77/crm-pricing/internal/models"
	"gorm.io/datatypes"
)

// ActionType is the kind of effect a matched rule applies.
type ActionType string

const (
	ActionAddCostComponent    ActionType = "add_cost_component"
	ActionApplyMarkupPercent  ActionType = "apply_markup_percentage"
	ActionApplyDiscountPercnt ActionType = "apply_discount_percentage"
)

// Action is one entry of a rule's ordered action list.
type Action struct {
	Type   ActionType     `json:"type"`
	Params map[string]any `json:"params"`
}

// ParseActions decodes the JSON column form of a rule's action list.
func ParseActions(raw datatypes.JSON) ([]Action, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var actions []Action
	if err := json.Unmarshal(raw, &actions); err != nil {
		return nil, fmt.Errorf("parse actions: %w", err)
	}
	return actions, nil
}

// Component sources, recorded on each applied component and cost line.
const (
	SourceBase    = "base"
	SourceDefault = "default"
	SourceSmart   = "smart"
	SourceRule    = "rule"
)

// AppliedComponent is a cost component selected for a line item, with an
// optional evaluation-local value override from a rule action. The stored
// component is never mutated.
type AppliedComponent struct {
	Component models.CostComponent
	Override  *float64
	Source    string
}

// Value resolves the effective component value for this evaluation.
func (a AppliedComponent) Value() float64 {
	if a.Override != nil {
		return *a.Override
	}
	return a.Component.Value
}

// ComponentSet is an ordered collection of applied components keyed by
// component id. Later writes overwrite earlier ones in place, so when two
// sources reference the same component the last-applied value wins and
// rule-sourced entries override default-sourced ones.
type ComponentSet struct {
	order []uint
	byID  map[uint]AppliedComponent
}

// NewComponentSet returns an empty set.
func NewComponentSet() *ComponentSet {
	return &ComponentSet{byID: make(map[uint]AppliedComponent)}
}

// Put inserts or overwrites the entry for the component's id.
func (s *ComponentSet) Put(ac AppliedComponent) {
	id := ac.Component.ID
	if _, exists := s.byID[id]; !exists {
		s.order = append(s.order, id)
	}
	s.byID[id] = ac
}

// Items returns the components in insertion order.
func (s *ComponentSet) Items() []AppliedComponent {
	out := make([]AppliedComponent, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// Len returns the number of distinct components in the set.
func (s *ComponentSet) Len() int { return len(s.order) }

// RuleOutcome is what the rule engine produced for one line item.
type RuleOutcome struct {
	// Components referenced by matched add_cost_component actions, in
	// application order with last-write-wins de-duplication.
	Components *ComponentSet

	// MarkupPercent and DiscountPercent accumulate by summation across all
	// matched rules.
	MarkupPercent   float64
	DiscountPercent float64

	// Explanations is the human-readable trail of matched rules, for display
	// and audit.
	Explanations []string
}

// ApplyRules runs the active rules against the facts in descending priority
// order. A rule outside its validity window is skipped before its conditions
// are evaluated; a matched rule with StopIfMatched halts the run so
// lower-priority rules never fire.
func ApplyRules(lookup Lookup, facts Facts) RuleOutcome {
	out := RuleOutcome{Components: NewComponentSet()}
	now := lookup.now()
	for _, rule := range lookup.Rules {
		if !rule.InEffect(now) {
			continue
		}
		conds, err := ParseConditionSet(rule.Conditions)
		if err != nil {
			log.Printf("pricing: rule %d (%s) has malformed conditions, skipping: %v", rule.ID, rule.Name, err)
			continue
		}
		if !Evaluate(conds, facts) {
			continue
		}
		out.Explanations = append(out.Explanations, fmt.Sprintf("rule %q (priority %d) matched", rule.Name, rule.Priority))
		actions, err := ParseActions(rule.Actions)
		if err != nil {
			log.Printf("pricing: rule %d (%s) has malformed actions, skipping actions: %v", rule.ID, rule.Name, err)
		}
		for _, action := range actions {
			applyAction(rule, action, lookup, &out)
		}
		if rule.StopIfMatched {
			break
		}
	}
	return out
}

func applyAction(rule models.PricingRule, action Action, lookup Lookup, out *RuleOutcome) {
	switch action.Type {
	case ActionAddCostComponent:
		id, ok := paramUint(action.Params, "component_id")
		if !ok {
			log.Printf("pricing: rule %d action add_cost_component missing component_id", rule.ID)
			return
		}
		comp, ok := lookup.Components[id]
		if !ok {
			log.Printf("pricing: rule %d references unknown cost component %d", rule.ID, id)
			return
		}
		ac := AppliedComponent{Component: comp, Source: SourceRule}
		if v, ok := toFloat(action.Params["value"]); ok {
			ac.Override = &v
		}
		out.Components.Put(ac)
		out.Explanations = append(out.Explanations, fmt.Sprintf("rule %q added component %q", rule.Name, comp.Name))
	case ActionApplyMarkupPercent:
		if v, ok := toFloat(action.Params["percentage"]); ok {
			out.MarkupPercent += v
			out.Explanations = append(out.Explanations, fmt.Sprintf("rule %q applied %.2f%% markup", rule.Name, v))
		}
	case ActionApplyDiscountPercnt:
		if v, ok := toFloat(action.Params["percentage"]); ok {
			out.DiscountPercent += v
			out.Explanations = append(out.Explanations, fmt.Sprintf("rule %q applied %.2f%% discount", rule.Name, v))
		}
	default:
		log.Printf("pricing: rule %d has unknown action type %q, ignoring", rule.ID, action.Type)
	}
}

func paramUint(params map[string]any, key string) (uint, bool) {
	f, ok := toFloat(params[key])
	if !ok || f < 0 {
		return 0, false
	}
	return uint(f), true
}
