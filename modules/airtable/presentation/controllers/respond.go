package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/jacksonlee411/tableform/internal/routing"
	"github.com/jacksonlee411/tableform/modules/airtable/infrastructure/airtableapi"
	"github.com/jacksonlee411/tableform/pkg/httperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code string, message string) {
	routing.WriteError(w, r, routing.RouteClassInternalAPI, status, code, message)
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if apiErr, ok := errors.AsType[*airtableapi.APIError](err); ok {
		ctxzap.Extract(r.Context()).Warn("airtable: upstream error", zap.Int("status", apiErr.StatusCode), zap.String("type", apiErr.Type))
		switch apiErr.StatusCode {
		case http.StatusUnauthorized:
			writeError(w, r, http.StatusUnauthorized, "airtable_unauthorized", "airtable authorization expired, reconnect the account")
		case http.StatusForbidden, http.StatusNotFound:
			writeError(w, r, http.StatusNotFound, "airtable_not_found", "base or table not found")
		default:
			writeError(w, r, http.StatusBadGateway, "airtable_error", "airtable request failed")
		}
		return
	}
	status, code := httperr.Status(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		ctxzap.Extract(r.Context()).Error("airtable: request failed", zap.Error(err))
		msg = "internal error"
	}
	writeError(w, r, status, code, msg)
}
