package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/jacksonlee411/tableform/modules/forms/domain/ports"
	"github.com/jacksonlee411/tableform/modules/forms/domain/types"
	"github.com/jacksonlee411/tableform/pkg/formlogic"
	"github.com/jacksonlee411/tableform/pkg/formlogic/celexpr"
	"github.com/jacksonlee411/tableform/pkg/httperr"
	"github.com/jacksonlee411/tableform/pkg/uuidv7"
)

type FormService struct {
	store ports.FormStore
	eval  formlogic.Evaluator
	now   func() time.Time
	newID func() (string, error)
}

func NewFormService(store ports.FormStore, eval formlogic.Evaluator) *FormService {
	return &FormService{store: store, eval: eval, now: time.Now, newID: uuidv7.NewString}
}

func (s *FormService) Evaluator() formlogic.Evaluator { return s.eval }

// checkDefinition runs the save-time checks. Rule reference problems are
// left to Lint and never block a save.
func checkDefinition(def formlogic.FormDefinition) error {
	if strings.TrimSpace(def.Name) == "" {
		return httperr.NewBadRequest("name is required")
	}
	if strings.TrimSpace(def.ExternalBaseID) == "" || strings.TrimSpace(def.ExternalTableID) == "" {
		return httperr.NewBadRequest("externalBaseId and externalTableId are required")
	}
	if err := def.CheckStructure(); err != nil {
		if errors.Is(err, formlogic.ErrInvalidDefinition) {
			return httperr.NewBadRequest(err.Error())
		}
		return err
	}
	return nil
}

func (s *FormService) Create(ctx context.Context, ownerID string, def formlogic.FormDefinition) (types.Form, error) {
	if strings.TrimSpace(ownerID) == "" {
		return types.Form{}, httperr.NewBadRequest("owner id is required")
	}
	if def.Fields == nil {
		def.Fields = []formlogic.FormField{}
	}
	if err := checkDefinition(def); err != nil {
		return types.Form{}, err
	}
	id, err := s.newID()
	if err != nil {
		return types.Form{}, err
	}
	def.ID = id
	now := s.now().UTC()
	form := types.Form{
		FormDefinition: def,
		OwnerID:        ownerID,
		Status:         types.FormStatusDraft,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.PutForm(ctx, form); err != nil {
		return types.Form{}, err
	}
	ctxzap.Extract(ctx).Info("forms: created", zap.String("form_id", id), zap.String("owner_id", ownerID))
	return form, nil
}

func (s *FormService) List(ctx context.Context, ownerID string) ([]types.Form, error) {
	return s.store.ListForms(ctx, ownerID)
}

// Get returns the form if ownerID owns it.
func (s *FormService) Get(ctx context.Context, ownerID string, formID string) (types.Form, error) {
	form, err := s.store.GetForm(ctx, formID)
	if err != nil {
		return types.Form{}, err
	}
	if form.OwnerID != ownerID {
		return types.Form{}, httperr.NewForbidden("form belongs to another owner")
	}
	return form, nil
}

func (s *FormService) Update(ctx context.Context, ownerID string, formID string, def formlogic.FormDefinition) (types.Form, error) {
	form, err := s.Get(ctx, ownerID, formID)
	if err != nil {
		return types.Form{}, err
	}
	if form.Published() {
		return types.Form{}, httperr.NewConflict("published forms cannot be edited")
	}
	if def.Fields == nil {
		def.Fields = []formlogic.FormField{}
	}
	if err := checkDefinition(def); err != nil {
		return types.Form{}, err
	}
	def.ID = form.ID
	form.FormDefinition = def
	form.UpdatedAt = s.now().UTC()
	if err := s.store.PutForm(ctx, form); err != nil {
		return types.Form{}, err
	}
	return form, nil
}

// Publish freezes the form and opens it to fillers. Publishing twice is a
// no-op.
func (s *FormService) Publish(ctx context.Context, ownerID string, formID string) (types.Form, error) {
	form, err := s.Get(ctx, ownerID, formID)
	if err != nil {
		return types.Form{}, err
	}
	if form.Published() {
		return form, nil
	}
	if len(form.Fields) == 0 {
		return types.Form{}, httperr.NewBadRequest("form has no fields")
	}
	if err := checkDefinition(form.FormDefinition); err != nil {
		return types.Form{}, err
	}
	now := s.now().UTC()
	form.Status = types.FormStatusPublished
	form.PublishedAt = &now
	form.UpdatedAt = now
	if err := s.store.PutForm(ctx, form); err != nil {
		return types.Form{}, err
	}
	l := ctxzap.Extract(ctx)
	if issues := formlogic.Lint(form.FormDefinition).Issues; len(issues) > 0 {
		l.Warn("forms: published with rule warnings", zap.String("form_id", form.ID), zap.Int("warnings", len(issues)))
	}
	l.Info("forms: published", zap.String("form_id", form.ID))
	return form, nil
}

func (s *FormService) Delete(ctx context.Context, ownerID string, formID string) error {
	if _, err := s.Get(ctx, ownerID, formID); err != nil {
		return err
	}
	return s.store.DeleteForm(ctx, formID)
}

type Preview struct {
	Fields     []formlogic.FieldVisibility `json:"fields"`
	Visible    []string                    `json:"visible"`
	Validation formlogic.ValidationResult  `json:"validation"`
}

// Preview shows the builder how a draft reacts to sample answers.
func (s *FormService) Preview(ctx context.Context, ownerID string, formID string, answers formlogic.AnswerMap) (Preview, error) {
	form, err := s.Get(ctx, ownerID, formID)
	if err != nil {
		return Preview{}, err
	}
	return s.preview(form.FormDefinition, answers), nil
}

func (s *FormService) preview(def formlogic.FormDefinition, answers formlogic.AnswerMap) Preview {
	return Preview{
		Fields:     s.eval.Annotate(def, answers),
		Visible:    s.eval.VisibleFieldIDs(def, answers),
		Validation: s.eval.Validate(def, answers),
	}
}

func (s *FormService) Lint(ctx context.Context, ownerID string, formID string) (formlogic.LintResult, error) {
	form, err := s.Get(ctx, ownerID, formID)
	if err != nil {
		return formlogic.LintResult{}, err
	}
	return formlogic.Lint(form.FormDefinition), nil
}

// LogicExport renders every field's visibility condition as a CEL
// expression over the answers map.
func (s *FormService) LogicExport(ctx context.Context, ownerID string, formID string) ([]celexpr.FieldExpression, error) {
	form, err := s.Get(ctx, ownerID, formID)
	if err != nil {
		return nil, err
	}
	return celexpr.Export(form.FormDefinition, s.eval.Unset), nil
}

// Published returns a form open to fillers. Drafts are reported as missing.
func (s *FormService) Published(ctx context.Context, formID string) (types.Form, error) {
	form, err := s.store.GetForm(ctx, formID)
	if err != nil {
		return types.Form{}, err
	}
	if !form.Published() {
		return types.Form{}, httperr.NewNotFound("form not found")
	}
	return form, nil
}

// Visibility returns the ids of the fields a filler should see, in form
// order.
func (s *FormService) Visibility(ctx context.Context, formID string, answers formlogic.AnswerMap) ([]string, error) {
	form, err := s.Published(ctx, formID)
	if err != nil {
		return nil, err
	}
	return s.eval.VisibleFieldIDs(form.FormDefinition, answers), nil
}
