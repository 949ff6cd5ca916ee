package formlogic

import "fmt"

type LintIssue struct {
	Severity string `json:"severity"`
	FieldID  string `json:"fieldId"`
	Rule     int    `json:"rule"`
	Message  string `json:"message"`
}

type LintResult struct {
	Issues []LintIssue `json:"issues"`
}

func (r *LintResult) addWarning(fieldID string, rule int, format string, args ...any) {
	r.Issues = append(r.Issues, LintIssue{
		Severity: "warning",
		FieldID:  fieldID,
		Rule:     rule,
		Message:  fmt.Sprintf(format, args...),
	})
}

// Lint reports rule configurations the evaluator tolerates but that are
// almost certainly mistakes. Nothing here blocks saving or publishing.
func Lint(form FormDefinition) LintResult {
	res := LintResult{Issues: []LintIssue{}}
	position := make(map[string]int, len(form.Fields))
	for i, f := range form.Fields {
		if _, dup := position[f.FieldID]; !dup {
			position[f.FieldID] = i
		}
	}

	for i, f := range form.Fields {
		for j, r := range f.ConditionalLogic.Rules {
			if r.Unset() {
				res.addWarning(f.FieldID, j, "rule is incomplete")
				continue
			}
			if !r.Operator.Valid() {
				res.addWarning(f.FieldID, j, "unknown operator %q; rule never matches", r.Operator)
				continue
			}

			at, ok := position[r.TriggerFieldID]
			switch {
			case !ok:
				res.addWarning(f.FieldID, j, "trigger field %q does not exist; rule never matches", r.TriggerFieldID)
			case r.TriggerFieldID == f.FieldID:
				res.addWarning(f.FieldID, j, "rule depends on its own field")
			case at > i:
				res.addWarning(f.FieldID, j, "trigger field %q comes after this field", r.TriggerFieldID)
			}

			if r.Operator.numeric() && r.Comparand.Kind() != KindNumber {
				res.addWarning(f.FieldID, j, "%s needs a numeric value, got %s; rule never matches", r.Operator, r.Comparand.Kind())
			}
			if r.Operator == OpContains && r.Comparand.Kind() != KindText && r.Comparand.Kind() != KindNumber && r.Comparand.Kind() != KindBoolean {
				res.addWarning(f.FieldID, j, "contains needs a scalar value, got %s", r.Comparand.Kind())
			}
			if ok {
				lintTriggerType(&res, f.FieldID, j, r, form.Fields[at])
			}
		}
	}
	return res
}

func lintTriggerType(res *LintResult, fieldID string, idx int, r Rule, trigger FormField) {
	switch r.Operator {
	case OpContains:
		if trigger.Type != InputShortText && trigger.Type != InputLongText && trigger.Type != InputSingleSelect {
			res.addWarning(fieldID, idx, "contains on %s field %q never matches", trigger.Type, trigger.FieldID)
		}
	case OpGreaterThan, OpLessThan:
		if trigger.Type != InputNumber {
			res.addWarning(fieldID, idx, "%s on %s field %q never matches", r.Operator, trigger.Type, trigger.FieldID)
		}
	case OpEquals, OpNotEquals:
		if trigger.Type.Accepts(r.Comparand.Kind()) {
			return
		}
		res.addWarning(fieldID, idx, "%s compares %s field %q with a %s value", r.Operator, trigger.Type, trigger.FieldID, r.Comparand.Kind())
	}
}
