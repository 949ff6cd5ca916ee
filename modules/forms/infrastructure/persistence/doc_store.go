package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jacksonlee411/tableform/modules/forms/domain/types"
	"github.com/jacksonlee411/tableform/pkg/docstore"
	"github.com/jacksonlee411/tableform/pkg/httperr"
)

const (
	collectionForms       = "forms"
	collectionSubmissions = "form_submissions"
)

type DocStore struct {
	docs docstore.Store
}

func NewDocStore(docs docstore.Store) *DocStore {
	return &DocStore{docs: docs}
}

func (s *DocStore) PutForm(ctx context.Context, form types.Form) error {
	if strings.TrimSpace(form.ID) == "" || strings.TrimSpace(form.OwnerID) == "" {
		return errors.New("forms: form id and owner id are required")
	}
	_, err := docstore.PutJSON(ctx, s.docs, collectionForms, form.ID, form.OwnerID, form)
	return err
}

func (s *DocStore) GetForm(ctx context.Context, formID string) (types.Form, error) {
	formID = strings.TrimSpace(formID)
	if formID == "" {
		return types.Form{}, httperr.NewBadRequest("form id is required")
	}
	var form types.Form
	if _, err := docstore.GetJSON(ctx, s.docs, collectionForms, formID, &form); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return types.Form{}, httperr.NewNotFound("form not found")
		}
		return types.Form{}, err
	}
	return form, nil
}

func (s *DocStore) ListForms(ctx context.Context, ownerID string) ([]types.Form, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, httperr.NewBadRequest("owner id is required")
	}
	docs, err := s.docs.List(ctx, collectionForms, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]types.Form, 0, len(docs))
	for _, d := range docs {
		var f types.Form
		if err := decode(d, &f); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func (s *DocStore) DeleteForm(ctx context.Context, formID string) error {
	if err := s.docs.Delete(ctx, collectionForms, formID); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return httperr.NewNotFound("form not found")
		}
		return err
	}
	return nil
}

func (s *DocStore) PutSubmission(ctx context.Context, sub types.Submission) error {
	if strings.TrimSpace(sub.ID) == "" || strings.TrimSpace(sub.FormID) == "" {
		return errors.New("forms: submission id and form id are required")
	}
	_, err := docstore.PutJSON(ctx, s.docs, collectionSubmissions, sub.ID, sub.OwnerID, sub)
	return err
}

// ListSubmissions returns the submissions of one form, oldest first.
func (s *DocStore) ListSubmissions(ctx context.Context, ownerID string, formID string) ([]types.Submission, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, httperr.NewBadRequest("owner id is required")
	}
	docs, err := s.docs.List(ctx, collectionSubmissions, ownerID)
	if err != nil {
		return nil, err
	}
	out := []types.Submission{}
	for _, d := range docs {
		var sub types.Submission
		if err := decode(d, &sub); err != nil {
			return nil, err
		}
		if sub.FormID == formID {
			out = append(out, sub)
		}
	}
	return out, nil
}

func decode(d docstore.Document, v any) error {
	if err := json.Unmarshal(d.Body, v); err != nil {
		return fmt.Errorf("forms: decode %s/%s: %w", d.Collection, d.ID, err)
	}
	return nil
}
