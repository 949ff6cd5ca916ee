package controllers

import (
	"context"
	"net/http"

	"github.com/jacksonlee411/tableform/modules/airtable/services"
)

type OwnerIDGetter func(ctx context.Context) (ownerID string, ok bool)

// SchemaController lets the builder browse the connected account's bases
// and tables.
type SchemaController struct {
	OwnerID OwnerIDGetter
	Schema  *services.SchemaService
}

func (c SchemaController) owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	ownerID, ok := c.OwnerID(r.Context())
	if !ok || ownerID == "" {
		writeError(w, r, http.StatusUnauthorized, "unauthenticated", "airtable account not connected")
		return "", false
	}
	return ownerID, true
}

func (c SchemaController) HandleBasesAPI(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := c.owner(w, r)
	if !ok {
		return
	}
	bases, err := c.Schema.ListBases(r.Context(), ownerID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bases": bases})
}

func (c SchemaController) HandleTablesAPI(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := c.owner(w, r)
	if !ok {
		return
	}
	baseID := r.PathValue("base_id")
	tables, err := c.Schema.ListTables(r.Context(), ownerID, baseID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"baseId": baseID, "tables": tables})
}

func (c SchemaController) HandleFormFieldsAPI(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := c.owner(w, r)
	if !ok {
		return
	}
	got, err := c.Schema.SuggestFormFields(r.Context(), ownerID, r.PathValue("base_id"), r.PathValue("table_id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, got)
}
