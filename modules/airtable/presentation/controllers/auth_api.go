package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/jacksonlee411/tableform/modules/airtable/services"
	"github.com/jacksonlee411/tableform/pkg/httperr"
)

// SessionManager binds a browser to a connected owner.
type SessionManager interface {
	Start(ctx context.Context, w http.ResponseWriter, ownerID string) error
	End(ctx context.Context, w http.ResponseWriter, r *http.Request) error
}

type AuthController struct {
	Auth     *services.AuthService
	Sessions SessionManager
}

func (c AuthController) HandleLogin(w http.ResponseWriter, r *http.Request) {
	authURL, err := c.Auth.Begin(r.Context(), r.URL.Query().Get("return_to"))
	if err != nil {
		if httperr.IsBadRequest(err) {
			writeError(w, r, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		ctxzap.Extract(r.Context()).Error("airtable: login failed", zap.Error(err))
		writeError(w, r, http.StatusServiceUnavailable, "airtable_unavailable", "airtable login is not available")
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

func (c AuthController) HandleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if e := strings.TrimSpace(q.Get("error")); e != "" {
		msg := strings.TrimSpace(q.Get("error_description"))
		if msg == "" {
			msg = e
		}
		writeError(w, r, http.StatusBadRequest, "airtable_denied", msg)
		return
	}

	conn, returnTo, err := c.Auth.Complete(r.Context(), q.Get("state"), q.Get("code"))
	if err != nil {
		if httperr.IsBadRequest(err) {
			writeError(w, r, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		ctxzap.Extract(r.Context()).Error("airtable: callback failed", zap.Error(err))
		writeError(w, r, http.StatusBadGateway, "airtable_error", "could not complete airtable login")
		return
	}
	if err := c.Sessions.Start(r.Context(), w, conn.OwnerID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	http.Redirect(w, r, returnTo, http.StatusFound)
}

func (c AuthController) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := c.Sessions.End(r.Context(), w, r); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
