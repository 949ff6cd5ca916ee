package services

import (
	"context"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/jacksonlee411/tableform/modules/forms/domain/ports"
	"github.com/jacksonlee411/tableform/modules/forms/domain/types"
	"github.com/jacksonlee411/tableform/pkg/formlogic"
	"github.com/jacksonlee411/tableform/pkg/uuidv7"
)

type SubmissionService struct {
	forms  *FormService
	subs   ports.SubmissionStore
	writer ports.RecordWriter
	now    func() time.Time
	newID  func() (string, error)
}

func NewSubmissionService(forms *FormService, subs ports.SubmissionStore, writer ports.RecordWriter) *SubmissionService {
	return &SubmissionService{forms: forms, subs: subs, writer: writer, now: time.Now, newID: uuidv7.NewString}
}

// Submit validates answers against the published form, drops answers to
// hidden fields and forwards the rest to the bound table. Every forwarded
// attempt is recorded, whether or not delivery succeeded.
func (s *SubmissionService) Submit(ctx context.Context, formID string, answers formlogic.AnswerMap) (types.Submission, error) {
	form, err := s.forms.Published(ctx, formID)
	if err != nil {
		return types.Submission{}, err
	}
	eval := s.forms.Evaluator()
	if res := eval.Validate(form.FormDefinition, answers); !res.Valid {
		return types.Submission{}, &ValidationFailedError{Result: res}
	}
	accepted := eval.FilterVisible(form.FormDefinition, answers)

	id, err := s.newID()
	if err != nil {
		return types.Submission{}, err
	}
	sub := types.Submission{
		ID:        id,
		FormID:    form.ID,
		OwnerID:   form.OwnerID,
		Answers:   accepted,
		CreatedAt: s.now().UTC(),
	}

	l := ctxzap.Extract(ctx).With(zap.String("form_id", form.ID), zap.String("submission_id", id))
	recordID, werr := s.writer.CreateRecord(ctx, form.OwnerID, form.ExternalBaseID, form.ExternalTableID, accepted)
	if werr != nil {
		sub.Status = types.SubmissionFailed
		sub.Error = werr.Error()
		l.Warn("forms: submission delivery failed", zap.Error(werr))
	} else {
		sub.Status = types.SubmissionDelivered
		sub.RecordID = recordID
	}

	if err := s.subs.PutSubmission(ctx, sub); err != nil {
		if werr != nil {
			return types.Submission{}, &ProviderError{SubmissionID: id, cause: werr}
		}
		l.Error("forms: failed to record delivered submission", zap.String("record_id", recordID), zap.Error(err))
		return sub, nil
	}
	if werr != nil {
		return types.Submission{}, &ProviderError{SubmissionID: id, cause: werr}
	}
	l.Info("forms: submission delivered", zap.String("record_id", recordID))
	return sub, nil
}

func (s *SubmissionService) List(ctx context.Context, ownerID string, formID string) ([]types.Submission, error) {
	if _, err := s.forms.Get(ctx, ownerID, formID); err != nil {
		return nil, err
	}
	return s.subs.ListSubmissions(ctx, ownerID, formID)
}
