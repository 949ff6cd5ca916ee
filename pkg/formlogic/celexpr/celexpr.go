package celexpr

import (
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/jacksonlee411/tableform/pkg/formlogic"
)

// answersVar is the single input variable of every exported expression.
const answersVar = "answers"

type FieldExpression struct {
	FieldID    string `json:"fieldId"`
	Expression string `json:"expression"`
}

// Export renders the visibility logic of every field as a CEL expression
// over `answers: map(string, dyn)`.
func Export(form formlogic.FormDefinition, unset formlogic.UnsetRuleResult) []FieldExpression {
	known := form.FieldIDs()
	out := make([]FieldExpression, 0, len(form.Fields))
	for _, f := range form.Fields {
		var parts []string
		for _, r := range f.ConditionalLogic.Rules {
			parts = append(parts, ruleExpr(r, unset, func(id string) bool { return known.Contains(id) }))
		}
		out = append(out, FieldExpression{FieldID: f.FieldID, Expression: join(f.ConditionalLogic.Match, parts)})
	}
	return out
}

// FieldExpr renders one field's logic without form context.
func FieldExpr(field formlogic.FormField, unset formlogic.UnsetRuleResult) string {
	var parts []string
	for _, r := range field.ConditionalLogic.Rules {
		parts = append(parts, ruleExpr(r, unset, func(string) bool { return true }))
	}
	return join(field.ConditionalLogic.Match, parts)
}

func join(match formlogic.MatchMode, parts []string) string {
	if len(parts) == 0 {
		return "true"
	}
	sep := " && "
	if match == formlogic.MatchAny {
		sep = " || "
	}
	return strings.Join(parts, sep)
}

func ruleExpr(r formlogic.Rule, unset formlogic.UnsetRuleResult, known func(string) bool) string {
	if r.Unset() {
		return unset.String()
	}
	if !r.Operator.Valid() {
		return "false"
	}
	if !known(r.TriggerFieldID) {
		return "false"
	}

	key := strconv.Quote(r.TriggerFieldID)
	ref := answersVar + "[" + key + "]"
	present := "(" + key + " in " + answersVar + ")"

	switch r.Operator {
	case formlogic.OpEquals:
		return equalsExpr(present, ref, r.Comparand)
	case formlogic.OpNotEquals:
		return "!" + equalsExpr(present, ref, r.Comparand)
	case formlogic.OpContains:
		switch r.Comparand.Kind() {
		case formlogic.KindText, formlogic.KindNumber, formlogic.KindBoolean:
			return "(" + present + " && type(" + ref + ") == string && string(" + ref + ").contains(" + strconv.Quote(r.Comparand.String()) + "))"
		default:
			return "false"
		}
	case formlogic.OpGreaterThan, formlogic.OpLessThan:
		n, ok := r.Comparand.AsNumber()
		if !ok {
			return "false"
		}
		cmp := " > "
		if r.Operator == formlogic.OpLessThan {
			cmp = " < "
		}
		return "(" + present + " && type(" + ref + ") == double && double(" + ref + ")" + cmp + doubleLiteral(n) + ")"
	default:
		return "false"
	}
}

func equalsExpr(present, ref string, cmp formlogic.Value) string {
	switch cmp.Kind() {
	case formlogic.KindText:
		s, _ := cmp.AsText()
		return "(" + present + " && type(" + ref + ") == string && " + ref + " == " + strconv.Quote(s) + ")"
	case formlogic.KindNumber:
		n, _ := cmp.AsNumber()
		return "(" + present + " && type(" + ref + ") == double && " + ref + " == " + doubleLiteral(n) + ")"
	case formlogic.KindBoolean:
		b, _ := cmp.AsBool()
		return "(" + present + " && type(" + ref + ") == bool && " + ref + " == " + strconv.FormatBool(b) + ")"
	case formlogic.KindTextList:
		items, _ := cmp.AsTextList()
		quoted := make([]string, 0, len(items))
		for _, it := range items {
			quoted = append(quoted, strconv.Quote(it))
		}
		return "(" + present + " && type(" + ref + ") == list && " + ref + " == [" + strings.Join(quoted, ", ") + "])"
	default:
		return "false"
	}
}

func doubleLiteral(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

var programCache sync.Map

// Eval runs an exported expression against answers.
func Eval(expr string, answers formlogic.AnswerMap) (bool, error) {
	program, err := loadOrCompile(expr)
	if err != nil {
		return false, err
	}
	out, _, err := program.Eval(map[string]any{answersVar: Activation(answers)})
	if err != nil {
		return false, err
	}
	v, ok := out.Value().(bool)
	if !ok {
		return false, errors.New("celexpr: expression did not produce a bool")
	}
	return v, nil
}

// Activation converts answers into plain CEL-friendly values. None answers
// are omitted so they read as absent.
func Activation(answers formlogic.AnswerMap) map[string]any {
	out := make(map[string]any, len(answers))
	for id, v := range answers {
		switch v.Kind() {
		case formlogic.KindNone:
			continue
		case formlogic.KindTextList:
			items, _ := v.AsTextList()
			list := make([]any, 0, len(items))
			for _, it := range items {
				list = append(list, it)
			}
			out[id] = list
		case formlogic.KindFileList:
			files, _ := v.AsFileList()
			list := make([]any, 0, len(files))
			for _, f := range files {
				list = append(list, map[string]any{"url": f.URL, "filename": f.Filename})
			}
			out[id] = list
		default:
			out[id] = v.Interface()
		}
	}
	return out
}

func loadOrCompile(expr string) (cel.Program, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, errors.New("celexpr: expression required")
	}
	if cached, ok := programCache.Load(expr); ok {
		return cached.(cel.Program), nil
	}
	env, err := cel.NewEnv(cel.Variable(answersVar, cel.MapType(cel.StringType, cel.DynType)))
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	if ast.OutputType() != cel.BoolType {
		return nil, errors.New("celexpr: expression output type mismatch")
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	programCache.Store(expr, program)
	return program, nil
}
