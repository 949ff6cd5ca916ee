package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jacksonlee411/tableform/modules/forms/domain/types"
	"github.com/jacksonlee411/tableform/modules/forms/infrastructure/persistence"
	"github.com/jacksonlee411/tableform/pkg/docstore"
	"github.com/jacksonlee411/tableform/pkg/formlogic"
	"github.com/jacksonlee411/tableform/pkg/httperr"
)

type recordWriterStub struct {
	createFn func(ctx context.Context, ownerID, baseID, tableID string, answers formlogic.AnswerMap) (string, error)
	calls    []formlogic.AnswerMap
}

func (s *recordWriterStub) CreateRecord(ctx context.Context, ownerID string, baseID string, tableID string, answers formlogic.AnswerMap) (string, error) {
	s.calls = append(s.calls, answers)
	if s.createFn != nil {
		return s.createFn(ctx, ownerID, baseID, tableID, answers)
	}
	return "rec1", nil
}

type failingSubmissionStore struct{}

func (failingSubmissionStore) PutSubmission(context.Context, types.Submission) error {
	return errors.New("disk full")
}

func (failingSubmissionStore) ListSubmissions(context.Context, string, string) ([]types.Submission, error) {
	return nil, nil
}

func studentDefinition() formlogic.FormDefinition {
	return formlogic.FormDefinition{
		Name:            "Signup",
		ExternalBaseID:  "app1",
		ExternalTableID: "tbl1",
		Fields: []formlogic.FormField{
			{FieldID: "A", Label: "Student?", Type: formlogic.InputSingleSelect, Options: []formlogic.Option{{ID: "y", Name: "Yes"}, {ID: "n", Name: "No"}}},
			{
				FieldID: "B", Label: "School", Type: formlogic.InputShortText, Required: true,
				ConditionalLogic: formlogic.ConditionalLogic{
					Match: formlogic.MatchAll,
					Rules: []formlogic.Rule{{TriggerFieldID: "A", Operator: formlogic.OpEquals, Comparand: formlogic.Text("Yes")}},
				},
			},
		},
	}
}

func newTestServices(t *testing.T) (*FormService, *SubmissionService, *recordWriterStub) {
	t.Helper()
	store := persistence.NewDocStore(docstore.NewMemoryStore())
	forms := NewFormService(store, formlogic.NewEvaluator(formlogic.UnsetRulesFail))
	n := 0
	forms.newID = func() (string, error) {
		n++
		return fmt.Sprintf("form-%d", n), nil
	}
	forms.now = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }
	writer := &recordWriterStub{}
	subs := NewSubmissionService(forms, store, writer)
	m := 0
	subs.newID = func() (string, error) {
		m++
		return fmt.Sprintf("sub-%d", m), nil
	}
	return forms, subs, writer
}

func TestFormService_CreateChecks(t *testing.T) {
	forms, _, _ := newTestServices(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(d *formlogic.FormDefinition)
	}{
		{name: "name", mutate: func(d *formlogic.FormDefinition) { d.Name = " " }},
		{name: "table", mutate: func(d *formlogic.FormDefinition) { d.ExternalTableID = "" }},
		{name: "duplicate field", mutate: func(d *formlogic.FormDefinition) { d.Fields[1].FieldID = "A" }},
		{name: "duplicate option", mutate: func(d *formlogic.FormDefinition) { d.Fields[0].Options[1].Name = "Yes" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			def := studentDefinition()
			tc.mutate(&def)
			if _, err := forms.Create(ctx, "usr1", def); !httperr.IsBadRequest(err) {
				t.Fatalf("err=%v", err)
			}
		})
	}

	if _, err := forms.Create(ctx, "", studentDefinition()); !httperr.IsBadRequest(err) {
		t.Fatalf("err=%v", err)
	}
}

func TestFormService_Lifecycle(t *testing.T) {
	forms, _, _ := newTestServices(t)
	ctx := context.Background()

	def := studentDefinition()
	def.Fields[1].ConditionalLogic.Rules = append(def.Fields[1].ConditionalLogic.Rules,
		formlogic.Rule{TriggerFieldID: "Z", Operator: formlogic.OpEquals, Comparand: formlogic.Text("x")})
	form, err := forms.Create(ctx, "usr1", def)
	if err != nil {
		t.Fatalf("lint warnings must not block a save: %v", err)
	}
	if form.ID != "form-1" || form.Status != types.FormStatusDraft || form.OwnerID != "usr1" {
		t.Fatalf("form=%+v", form)
	}

	if _, err := forms.Get(ctx, "usr2", form.ID); !httperr.IsForbidden(err) {
		t.Fatalf("err=%v", err)
	}
	if _, err := forms.Published(ctx, form.ID); !httperr.IsNotFound(err) {
		t.Fatalf("drafts are not public: %v", err)
	}

	lint, err := forms.Lint(ctx, "usr1", form.ID)
	if err != nil || len(lint.Issues) == 0 {
		t.Fatalf("lint=%+v err=%v", lint, err)
	}

	updated, err := forms.Update(ctx, "usr1", form.ID, studentDefinition())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if updated.ID != form.ID || len(updated.Fields[1].ConditionalLogic.Rules) != 1 {
		t.Fatalf("updated=%+v", updated)
	}

	published, err := forms.Publish(ctx, "usr1", form.ID)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !published.Published() || published.PublishedAt == nil {
		t.Fatalf("published=%+v", published)
	}
	again, err := forms.Publish(ctx, "usr1", form.ID)
	if err != nil || !again.PublishedAt.Equal(*published.PublishedAt) {
		t.Fatalf("again=%+v err=%v", again, err)
	}

	if _, err := forms.Update(ctx, "usr1", form.ID, studentDefinition()); !httperr.IsConflict(err) {
		t.Fatalf("err=%v", err)
	}

	list, err := forms.List(ctx, "usr1")
	if err != nil || len(list) != 1 {
		t.Fatalf("list=%v err=%v", list, err)
	}

	if err := forms.Delete(ctx, "usr2", form.ID); !httperr.IsForbidden(err) {
		t.Fatalf("err=%v", err)
	}
	if err := forms.Delete(ctx, "usr1", form.ID); err != nil {
		t.Fatalf("err=%v", err)
	}
	if _, err := forms.Get(ctx, "usr1", form.ID); !httperr.IsNotFound(err) {
		t.Fatalf("err=%v", err)
	}
}

func TestFormService_PublishRequiresFields(t *testing.T) {
	forms, _, _ := newTestServices(t)
	ctx := context.Background()
	def := studentDefinition()
	def.Fields = nil
	form, err := forms.Create(ctx, "usr1", def)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if _, err := forms.Publish(ctx, "usr1", form.ID); !httperr.IsBadRequest(err) {
		t.Fatalf("err=%v", err)
	}
}

func TestFormService_PreviewAndLogic(t *testing.T) {
	forms, _, _ := newTestServices(t)
	ctx := context.Background()
	form, err := forms.Create(ctx, "usr1", studentDefinition())
	if err != nil {
		t.Fatalf("err=%v", err)
	}

	p, err := forms.Preview(ctx, "usr1", form.ID, formlogic.AnswerMap{"A": formlogic.Text("Yes")})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if strings.Join(p.Visible, ",") != "A,B" {
		t.Fatalf("visible=%v", p.Visible)
	}
	if p.Validation.Valid || p.Validation.Errors[0].FieldID != "B" {
		t.Fatalf("validation=%+v", p.Validation)
	}
	if len(p.Fields) != 2 || !p.Fields[1].Visible {
		t.Fatalf("fields=%+v", p.Fields)
	}

	exprs, err := forms.LogicExport(ctx, "usr1", form.ID)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(exprs) != 2 || exprs[0].Expression != "true" || !strings.Contains(exprs[1].Expression, `"Yes"`) {
		t.Fatalf("exprs=%+v", exprs)
	}
}

func publishStudentForm(t *testing.T, forms *FormService) types.Form {
	t.Helper()
	ctx := context.Background()
	form, err := forms.Create(ctx, "usr1", studentDefinition())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	form, err = forms.Publish(ctx, "usr1", form.ID)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	return form
}

func TestFormService_Visibility(t *testing.T) {
	forms, _, _ := newTestServices(t)
	form := publishStudentForm(t, forms)

	got, err := forms.Visibility(context.Background(), form.ID, formlogic.AnswerMap{"A": formlogic.Text("No")})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if strings.Join(got, ",") != "A" {
		t.Fatalf("got=%v", got)
	}
}

func TestSubmissionService_Submit(t *testing.T) {
	t.Run("rejects missing visible required field", func(t *testing.T) {
		forms, subs, writer := newTestServices(t)
		form := publishStudentForm(t, forms)

		_, err := subs.Submit(context.Background(), form.ID, formlogic.AnswerMap{"A": formlogic.Text("Yes")})
		res, ok := IsValidationFailed(err)
		if !ok {
			t.Fatalf("err=%v", err)
		}
		if len(res.Errors) != 1 || res.Errors[0].Code != formlogic.CodeMissingRequiredField {
			t.Fatalf("res=%+v", res)
		}
		if len(writer.calls) != 0 {
			t.Fatal("invalid submissions must not be forwarded")
		}
	})

	t.Run("drops hidden answers and records delivery", func(t *testing.T) {
		forms, subs, writer := newTestServices(t)
		form := publishStudentForm(t, forms)
		ctx := context.Background()

		sub, err := subs.Submit(ctx, form.ID, formlogic.AnswerMap{"A": formlogic.Text("No"), "B": formlogic.Text("MIT")})
		if err != nil {
			t.Fatalf("err=%v", err)
		}
		if sub.Status != types.SubmissionDelivered || sub.RecordID != "rec1" || sub.OwnerID != "usr1" {
			t.Fatalf("sub=%+v", sub)
		}
		if _, ok := writer.calls[0]["B"]; ok {
			t.Fatalf("hidden answer forwarded: %v", writer.calls[0])
		}

		list, err := subs.List(ctx, "usr1", form.ID)
		if err != nil || len(list) != 1 || list[0].ID != sub.ID {
			t.Fatalf("list=%+v err=%v", list, err)
		}
		if _, err := subs.List(ctx, "usr2", form.ID); !httperr.IsForbidden(err) {
			t.Fatalf("err=%v", err)
		}
	})

	t.Run("provider failure is opaque and recorded", func(t *testing.T) {
		forms, subs, writer := newTestServices(t)
		form := publishStudentForm(t, forms)
		writer.createFn = func(context.Context, string, string, string, formlogic.AnswerMap) (string, error) {
			return "", errors.New("airtable: http 422: INVALID_VALUE_FOR_COLUMN")
		}
		ctx := context.Background()

		_, err := subs.Submit(ctx, form.ID, formlogic.AnswerMap{"A": formlogic.Text("No")})
		if !IsProviderError(err) {
			t.Fatalf("err=%v", err)
		}
		if strings.Contains(err.Error(), "INVALID_VALUE") {
			t.Fatalf("provider detail leaked: %v", err)
		}
		list, _ := subs.List(ctx, "usr1", form.ID)
		if len(list) != 1 || list[0].Status != types.SubmissionFailed || !strings.Contains(list[0].Error, "INVALID_VALUE") {
			t.Fatalf("list=%+v", list)
		}
	})

	t.Run("draft forms do not accept submissions", func(t *testing.T) {
		forms, subs, _ := newTestServices(t)
		form, _ := forms.Create(context.Background(), "usr1", studentDefinition())
		if _, err := subs.Submit(context.Background(), form.ID, formlogic.AnswerMap{}); !httperr.IsNotFound(err) {
			t.Fatalf("err=%v", err)
		}
	})

	t.Run("delivered submission survives a log write failure", func(t *testing.T) {
		forms, _, writer := newTestServices(t)
		form := publishStudentForm(t, forms)
		subs := NewSubmissionService(forms, failingSubmissionStore{}, writer)

		sub, err := subs.Submit(context.Background(), form.ID, formlogic.AnswerMap{"A": formlogic.Text("No")})
		if err != nil || sub.RecordID != "rec1" {
			t.Fatalf("sub=%+v err=%v", sub, err)
		}
	})
}
