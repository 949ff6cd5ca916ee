package formlogic

import "fmt"

type ErrorCode string

const (
	CodeMissingRequiredField ErrorCode = "missing_required_field"
	CodeInvalidType          ErrorCode = "invalid_type"
	CodeInvalidOption        ErrorCode = "invalid_option"
)

type FieldError struct {
	FieldID string    `json:"fieldId"`
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

type ValidationResult struct {
	Valid  bool         `json:"valid"`
	Errors []FieldError `json:"errors"`
}

// Validate checks every visible field against answers and reports all
// problems in display order. Hidden fields never produce errors, whatever
// they hold.
func (e Evaluator) Validate(form FormDefinition, answers AnswerMap) ValidationResult {
	known := form.FieldIDs()
	errs := []FieldError{}
	for _, f := range form.Fields {
		if !e.visible(f, answers, known) {
			continue
		}
		v, ok := answers[f.FieldID]
		if !ok || v.IsBlank() {
			if f.Required {
				errs = append(errs, FieldError{FieldID: f.FieldID, Code: CodeMissingRequiredField, Message: "required"})
			}
			continue
		}
		if fe, bad := checkAnswer(f, v); bad {
			errs = append(errs, fe)
		}
	}
	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func checkAnswer(f FormField, v Value) (FieldError, bool) {
	if !f.Type.Accepts(v.Kind()) {
		return FieldError{
			FieldID: f.FieldID,
			Code:    CodeInvalidType,
			Message: fmt.Sprintf("expected %s answer, got %s", f.Type, v.Kind()),
		}, true
	}
	if !f.Type.IsSelect() || len(f.Options) == 0 {
		return FieldError{}, false
	}

	var picked []string
	if s, ok := v.AsText(); ok {
		picked = []string{s}
	} else {
		picked, _ = v.AsTextList()
	}
	for _, name := range picked {
		if !f.hasOption(name) {
			return FieldError{
				FieldID: f.FieldID,
				Code:    CodeInvalidOption,
				Message: fmt.Sprintf("%q is not an option", name),
			}, true
		}
	}
	return FieldError{}, false
}

// FilterVisible keeps only the answers of fields visible under answers.
// Keys that name no field are dropped.
func (e Evaluator) FilterVisible(form FormDefinition, answers AnswerMap) AnswerMap {
	out := AnswerMap{}
	for _, id := range e.VisibleFieldIDs(form, answers) {
		if v, ok := answers[id]; ok && !v.IsNone() {
			out[id] = v.clone()
		}
	}
	return out
}
