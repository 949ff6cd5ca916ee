package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/jacksonlee411/tableform/modules/forms/domain/types"
	"github.com/jacksonlee411/tableform/modules/forms/services"
	"github.com/jacksonlee411/tableform/pkg/formlogic"
)

type OwnerIDGetter func(ctx context.Context) (ownerID string, ok bool)

// FormsController serves the builder endpoints under /forms/api.
type FormsController struct {
	OwnerID     OwnerIDGetter
	Forms       *services.FormService
	Submissions *services.SubmissionService
}

type formAPIRequest struct {
	Name            string                `json:"name" validate:"required"`
	ExternalBaseID  string                `json:"externalBaseId" validate:"required"`
	ExternalTableID string                `json:"externalTableId" validate:"required"`
	Fields          []formlogic.FormField `json:"fields"`
}

func (req formAPIRequest) definition() formlogic.FormDefinition {
	return formlogic.FormDefinition{
		Name:            strings.TrimSpace(req.Name),
		ExternalBaseID:  strings.TrimSpace(req.ExternalBaseID),
		ExternalTableID: strings.TrimSpace(req.ExternalTableID),
		Fields:          req.Fields,
	}
}

type answersAPIRequest struct {
	Answers formlogic.AnswerMap `json:"answers"`
}

func (c FormsController) owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	ownerID, ok := c.OwnerID(r.Context())
	if !ok || ownerID == "" {
		writeError(w, r, http.StatusUnauthorized, "unauthenticated", "airtable account not connected")
		return "", false
	}
	return ownerID, true
}

func (c FormsController) HandleFormsAPI(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := c.owner(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		forms, err := c.Forms.List(r.Context(), ownerID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if forms == nil {
			forms = make([]types.Form, 0)
		}
		writeJSON(w, http.StatusOK, map[string]any{"forms": forms})
	case http.MethodPost:
		var req formAPIRequest
		if !decodeBody(w, r, &req) {
			return
		}
		form, err := c.Forms.Create(r.Context(), ownerID, req.definition())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, form)
	default:
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (c FormsController) HandleFormAPI(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := c.owner(w, r)
	if !ok {
		return
	}
	formID := r.PathValue("form_id")
	switch r.Method {
	case http.MethodGet:
		form, err := c.Forms.Get(r.Context(), ownerID, formID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, form)
	case http.MethodPut:
		var req formAPIRequest
		if !decodeBody(w, r, &req) {
			return
		}
		form, err := c.Forms.Update(r.Context(), ownerID, formID, req.definition())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, form)
	case http.MethodDelete:
		if err := c.Forms.Delete(r.Context(), ownerID, formID); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (c FormsController) HandlePublishAPI(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := c.owner(w, r)
	if !ok {
		return
	}
	form, err := c.Forms.Publish(r.Context(), ownerID, r.PathValue("form_id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

func (c FormsController) HandlePreviewAPI(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := c.owner(w, r)
	if !ok {
		return
	}
	var req answersAPIRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := c.Forms.Preview(r.Context(), ownerID, r.PathValue("form_id"), req.Answers)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (c FormsController) HandleLintAPI(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := c.owner(w, r)
	if !ok {
		return
	}
	res, err := c.Forms.Lint(r.Context(), ownerID, r.PathValue("form_id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (c FormsController) HandleLogicAPI(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := c.owner(w, r)
	if !ok {
		return
	}
	exprs, err := c.Forms.LogicExport(r.Context(), ownerID, r.PathValue("form_id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"language": "cel", "fields": exprs})
}

func (c FormsController) HandleSubmissionsAPI(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := c.owner(w, r)
	if !ok {
		return
	}
	subs, err := c.Submissions.List(r.Context(), ownerID, r.PathValue("form_id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"submissions": subs})
}
