package celexpr

import (
	"strings"
	"testing"

	"github.com/jacksonlee411/tableform/pkg/formlogic"
)

func sampleForm() formlogic.FormDefinition {
	return formlogic.FormDefinition{Fields: []formlogic.FormField{
		{FieldID: "A", Type: formlogic.InputShortText},
		{FieldID: "B", Type: formlogic.InputNumber},
		{FieldID: "Tags", Type: formlogic.InputMultipleSelect},
		{FieldID: "Ok", Type: formlogic.InputCheckbox},
		{FieldID: "Plain", Type: formlogic.InputShortText},
		{FieldID: "All", Type: formlogic.InputShortText, ConditionalLogic: formlogic.ConditionalLogic{Match: formlogic.MatchAll, Rules: []formlogic.Rule{
			{TriggerFieldID: "A", Operator: formlogic.OpContains, Comparand: formlogic.Text("ell")},
			{TriggerFieldID: "B", Operator: formlogic.OpLessThan, Comparand: formlogic.Number(10)},
		}}},
		{FieldID: "Any", Type: formlogic.InputShortText, ConditionalLogic: formlogic.ConditionalLogic{Match: formlogic.MatchAny, Rules: []formlogic.Rule{
			{TriggerFieldID: "A", Operator: formlogic.OpEquals, Comparand: formlogic.Text("x")},
			{TriggerFieldID: "B", Operator: formlogic.OpGreaterThan, Comparand: formlogic.Number(5)},
		}}},
		{FieldID: "Not", Type: formlogic.InputShortText, ConditionalLogic: formlogic.ConditionalLogic{Rules: []formlogic.Rule{
			{TriggerFieldID: "Ok", Operator: formlogic.OpNotEquals, Comparand: formlogic.Bool(true)},
		}}},
		{FieldID: "Ghost", Type: formlogic.InputShortText, ConditionalLogic: formlogic.ConditionalLogic{Rules: []formlogic.Rule{
			{TriggerFieldID: "Missing", Operator: formlogic.OpNotEquals, Comparand: formlogic.Text("x")},
		}}},
		{FieldID: "Incomplete", Type: formlogic.InputShortText, ConditionalLogic: formlogic.ConditionalLogic{Match: formlogic.MatchAny, Rules: []formlogic.Rule{
			{TriggerFieldID: "", Operator: formlogic.OpEquals},
		}}},
		{FieldID: "NoOperator", Type: formlogic.InputShortText, ConditionalLogic: formlogic.ConditionalLogic{Rules: []formlogic.Rule{
			{TriggerFieldID: "A", Comparand: formlogic.Text("x")},
		}}},
		{FieldID: "Malformed", Type: formlogic.InputShortText, ConditionalLogic: formlogic.ConditionalLogic{Rules: []formlogic.Rule{
			{TriggerFieldID: "A", Operator: "startsWith", Comparand: formlogic.Text("x")},
		}}},
		{FieldID: "Quoted", Type: formlogic.InputShortText, ConditionalLogic: formlogic.ConditionalLogic{Rules: []formlogic.Rule{
			{TriggerFieldID: "A", Operator: formlogic.OpEquals, Comparand: formlogic.Text(`say "hi"`)},
		}}},
		{FieldID: "Typed", Type: formlogic.InputShortText, ConditionalLogic: formlogic.ConditionalLogic{Rules: []formlogic.Rule{
			{TriggerFieldID: "B", Operator: formlogic.OpEquals, Comparand: formlogic.Number(-2.5)},
		}}},
	}}
}

func TestExport_AgreesWithEvaluator(t *testing.T) {
	form := sampleForm()
	answerSets := []formlogic.AnswerMap{
		{},
		{"A": formlogic.Text("hello"), "B": formlogic.Number(3)},
		{"A": formlogic.Text("x"), "B": formlogic.Number(1)},
		{"A": formlogic.Text("y"), "B": formlogic.Number(6), "Ok": formlogic.Bool(true)},
		{"A": formlogic.Number(5), "B": formlogic.Text("6"), "Ok": formlogic.Bool(false)},
		{"A": formlogic.Text(`say "hi"`), "B": formlogic.Number(-2.5)},
		{"A": formlogic.TextList("x"), "B": formlogic.None(), "Tags": formlogic.TextList("a", "b")},
		{"Missing": formlogic.Text("y")},
	}

	for _, unset := range []formlogic.UnsetRuleResult{formlogic.UnsetRulesFail, formlogic.UnsetRulesPass} {
		e := formlogic.NewEvaluator(unset)
		exprs := Export(form, unset)
		if len(exprs) != len(form.Fields) {
			t.Fatalf("len=%d", len(exprs))
		}
		for i, answers := range answerSets {
			want := e.ComputeVisibleSet(form, answers)
			for _, fe := range exprs {
				got, err := Eval(fe.Expression, answers)
				if err != nil {
					t.Fatalf("field=%s expr=%s err=%v", fe.FieldID, fe.Expression, err)
				}
				if got != want.Contains(fe.FieldID) {
					t.Fatalf("unset=%v answers[%d] field=%s expr=%s got=%v", unset, i, fe.FieldID, fe.Expression, got)
				}
			}
		}
	}
}

func TestExport_Shapes(t *testing.T) {
	exprs := Export(sampleForm(), formlogic.UnsetRulesFail)
	byID := map[string]string{}
	for _, fe := range exprs {
		byID[fe.FieldID] = fe.Expression
	}
	if byID["Plain"] != "true" {
		t.Fatalf("plain=%q", byID["Plain"])
	}
	if byID["Ghost"] != "false" {
		t.Fatalf("ghost=%q", byID["Ghost"])
	}
	if !strings.Contains(byID["Any"], " || ") {
		t.Fatalf("any=%q", byID["Any"])
	}
	if !strings.Contains(byID["Typed"], "-2.5") {
		t.Fatalf("typed=%q", byID["Typed"])
	}
}

func TestEval_RejectsNonBool(t *testing.T) {
	if _, err := Eval(`"x"`, formlogic.AnswerMap{}); err == nil {
		t.Fatal("expected error")
	}
	if _, err := Eval("  ", formlogic.AnswerMap{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestFieldExpr(t *testing.T) {
	f := formlogic.FormField{FieldID: "x", ConditionalLogic: formlogic.ConditionalLogic{Rules: []formlogic.Rule{
		{TriggerFieldID: "B", Operator: formlogic.OpGreaterThan, Comparand: formlogic.Number(5)},
	}}}
	expr := FieldExpr(f, formlogic.UnsetRulesFail)
	got, err := Eval(expr, formlogic.AnswerMap{"B": formlogic.Number(7)})
	if err != nil || !got {
		t.Fatalf("got=%v err=%v expr=%s", got, err, expr)
	}
}
