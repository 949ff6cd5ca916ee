package ports

import (
	"context"

	"github.com/jacksonlee411/tableform/modules/forms/domain/types"
	"github.com/jacksonlee411/tableform/pkg/formlogic"
)

type FormStore interface {
	PutForm(ctx context.Context, form types.Form) error
	GetForm(ctx context.Context, formID string) (types.Form, error)
	ListForms(ctx context.Context, ownerID string) ([]types.Form, error)
	DeleteForm(ctx context.Context, formID string) error
}

type SubmissionStore interface {
	PutSubmission(ctx context.Context, sub types.Submission) error
	ListSubmissions(ctx context.Context, ownerID string, formID string) ([]types.Submission, error)
}

// RecordWriter delivers accepted answers to the owner's bound table and
// returns the new record id.
type RecordWriter interface {
	CreateRecord(ctx context.Context, ownerID string, baseID string, tableID string, answers formlogic.AnswerMap) (string, error)
}
