package formlogic

import (
	"errors"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// UnsetRuleResult is what a rule that has not been filled in yet (no trigger
// field, no operator or blank comparand) evaluates to. Rules with an
// unrecognised operator are false under either policy.
type UnsetRuleResult bool

const (
	UnsetRulesFail UnsetRuleResult = false
	UnsetRulesPass UnsetRuleResult = true
)

func ParseUnsetRuleResult(raw string) (UnsetRuleResult, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "false", "fail":
		return UnsetRulesFail, nil
	case "true", "pass":
		return UnsetRulesPass, nil
	default:
		return UnsetRulesFail, errors.New("formlogic: invalid unset rule policy (expected false|true)")
	}
}

func (u UnsetRuleResult) String() string {
	if u {
		return "true"
	}
	return "false"
}

// Evaluator decides field visibility from the answers collected so far. It
// is a value type with no mutable state; the builder preview and the public
// filler must share one configured instance.
type Evaluator struct {
	Unset UnsetRuleResult
}

func NewEvaluator(unset UnsetRuleResult) Evaluator {
	return Evaluator{Unset: unset}
}

// IsVisible evaluates field's logic without knowledge of the surrounding
// form, so a trigger that names no field is read as an absent answer.
func (e Evaluator) IsVisible(field FormField, answers AnswerMap) bool {
	return e.visible(field, answers, nil)
}

// ComputeVisibleSet returns the ids of every visible field of form.
func (e Evaluator) ComputeVisibleSet(form FormDefinition, answers AnswerMap) mapset.Set[string] {
	known := form.FieldIDs()
	out := mapset.NewSet[string]()
	for _, f := range form.Fields {
		if e.visible(f, answers, known) {
			out.Add(f.FieldID)
		}
	}
	return out
}

// VisibleFieldIDs is ComputeVisibleSet in display order.
func (e Evaluator) VisibleFieldIDs(form FormDefinition, answers AnswerMap) []string {
	known := form.FieldIDs()
	out := make([]string, 0, len(form.Fields))
	for _, f := range form.Fields {
		if e.visible(f, answers, known) {
			out = append(out, f.FieldID)
		}
	}
	return out
}

type FieldVisibility struct {
	Field   FormField `json:"field"`
	Visible bool      `json:"visible"`
}

// Annotate pairs every field with its visibility, in display order.
func (e Evaluator) Annotate(form FormDefinition, answers AnswerMap) []FieldVisibility {
	known := form.FieldIDs()
	out := make([]FieldVisibility, 0, len(form.Fields))
	for _, f := range form.Fields {
		out = append(out, FieldVisibility{Field: f, Visible: e.visible(f, answers, known)})
	}
	return out
}

func (e Evaluator) visible(field FormField, answers AnswerMap, known mapset.Set[string]) bool {
	logic := field.ConditionalLogic
	if len(logic.Rules) == 0 {
		return true
	}

	if logic.Match == MatchAny {
		for _, r := range logic.Rules {
			if e.evalRule(r, answers, known) {
				return true
			}
		}
		return false
	}

	for _, r := range logic.Rules {
		if !e.evalRule(r, answers, known) {
			return false
		}
	}
	return true
}

// EvalRule evaluates a single rule. Malformed rules evaluate to false.
func (e Evaluator) EvalRule(r Rule, answers AnswerMap) bool {
	return e.evalRule(r, answers, nil)
}

func (e Evaluator) evalRule(r Rule, answers AnswerMap, known mapset.Set[string]) bool {
	if r.Unset() {
		return bool(e.Unset)
	}
	if !r.Operator.Valid() {
		return false
	}
	if known != nil && !known.Contains(r.TriggerFieldID) {
		return false
	}

	observed, ok := answers[r.TriggerFieldID]
	if !ok {
		observed = None()
	}

	switch r.Operator {
	case OpEquals:
		return observed.Equal(r.Comparand)
	case OpNotEquals:
		return !observed.Equal(r.Comparand)
	case OpContains:
		return contains(observed, r.Comparand)
	case OpGreaterThan:
		a, b, ok := numericPair(observed, r.Comparand)
		return ok && a > b
	case OpLessThan:
		a, b, ok := numericPair(observed, r.Comparand)
		return ok && a < b
	default:
		return false
	}
}

func contains(observed, comparand Value) bool {
	text, ok := observed.AsText()
	if !ok {
		return false
	}
	switch comparand.Kind() {
	case KindText, KindNumber, KindBoolean:
		return strings.Contains(text, comparand.String())
	default:
		return false
	}
}

func numericPair(observed, comparand Value) (float64, float64, bool) {
	a, ok := observed.AsNumber()
	if !ok {
		return 0, 0, false
	}
	b, ok := comparand.AsNumber()
	if !ok {
		return 0, 0, false
	}
	return a, b, true
}
