package types

import (
	"time"

	"github.com/jacksonlee411/tableform/pkg/formlogic"
)

type FormStatus string

const (
	FormStatusDraft     FormStatus = "draft"
	FormStatusPublished FormStatus = "published"
)

// Form is a stored form definition. Published forms are frozen.
type Form struct {
	formlogic.FormDefinition
	OwnerID     string     `json:"ownerId"`
	Status      FormStatus `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
}

func (f Form) Published() bool { return f.Status == FormStatusPublished }

type SubmissionStatus string

const (
	SubmissionDelivered SubmissionStatus = "delivered"
	SubmissionFailed    SubmissionStatus = "failed"
)

// Submission records one accepted response and what happened when it was
// forwarded to the bound table.
type Submission struct {
	ID        string              `json:"id"`
	FormID    string              `json:"formId"`
	OwnerID   string              `json:"ownerId"`
	Answers   formlogic.AnswerMap `json:"answers"`
	Status    SubmissionStatus    `json:"status"`
	RecordID  string              `json:"recordId,omitempty"`
	Error     string              `json:"error,omitempty"`
	CreatedAt time.Time           `json:"createdAt"`
}
