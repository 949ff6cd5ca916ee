package controllers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/jacksonlee411/tableform/internal/routing"
	"github.com/jacksonlee411/tableform/internal/validation"
	"github.com/jacksonlee411/tableform/modules/forms/services"
	"github.com/jacksonlee411/tableform/pkg/httperr"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code string, message string) {
	routing.WriteError(w, r, routing.RouteClassInternalAPI, status, code, message)
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if res, ok := services.IsValidationFailed(err); ok {
		writeJSON(w, http.StatusUnprocessableEntity, res)
		return
	}
	if services.IsProviderError(err) {
		ctxzap.Extract(r.Context()).Error("forms: provider error", zap.Error(err))
		writeError(w, r, http.StatusBadGateway, "provider_error", err.Error())
		return
	}
	status, code := httperr.Status(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		ctxzap.Extract(r.Context()).Error("forms: request failed", zap.Error(err))
		msg = "internal error"
	}
	writeError(w, r, status, code, msg)
}

// decodeBody reads a JSON object into dst and runs its validate tags.
// It writes the error response itself and reports whether to continue.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return false
	}
	if len(body) > maxBodyBytes {
		writeError(w, r, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
		return false
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		body = []byte("{}")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_json", "bad json: "+err.Error())
		return false
	}
	if errs := validation.Validate(dst); errs != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", validation.Summary(errs))
		return false
	}
	return true
}
