package controllers

import (
	"net/http"

	"github.com/jacksonlee411/tableform/modules/forms/services"
	"github.com/jacksonlee411/tableform/pkg/formlogic"
)

// PublicController serves the filler endpoints under /api/v1. Only
// published forms are reachable and owner details are never returned.
type PublicController struct {
	Forms       *services.FormService
	Submissions *services.SubmissionService
}

type publicFormResponse struct {
	formlogic.FormDefinition
	Visible []string `json:"visible"`
}

func (c PublicController) HandleFormAPI(w http.ResponseWriter, r *http.Request) {
	form, err := c.Forms.Published(r.Context(), r.PathValue("form_id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	def := form.FormDefinition
	writeJSON(w, http.StatusOK, publicFormResponse{
		FormDefinition: def,
		Visible:        c.Forms.Evaluator().VisibleFieldIDs(def, formlogic.AnswerMap{}),
	})
}

func (c PublicController) HandleVisibilityAPI(w http.ResponseWriter, r *http.Request) {
	var req answersAPIRequest
	if !decodeBody(w, r, &req) {
		return
	}
	visible, err := c.Forms.Visibility(r.Context(), r.PathValue("form_id"), req.Answers)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"visible": visible})
}

func (c PublicController) HandleSubmitAPI(w http.ResponseWriter, r *http.Request) {
	var req answersAPIRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sub, err := c.Submissions.Submit(r.Context(), r.PathValue("form_id"), req.Answers)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": sub.ID, "status": sub.Status})
}
