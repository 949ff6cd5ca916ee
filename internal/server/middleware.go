package server

import (
	"context"
	"net/http"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/jacksonlee411/tableform/internal/routing"
	"github.com/jacksonlee411/tableform/pkg/authz"
)

type ownerCtxKey struct{}

func ownerFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ownerCtxKey{}).(string)
	return v, ok && v != ""
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// withRequestLog assigns a request id, attaches a request scoped logger and
// logs one line per request.
func withRequestLog(base *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := ksuid.New().String()
		w.Header().Set("X-Request-Id", id)

		ctx := ctxzap.ToContext(routing.WithRequestID(r.Context(), id), base.With(zap.String("request_id", id)))
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r.WithContext(ctx))

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Int("bytes", rec.bytes),
			zap.Duration("duration", time.Since(start)),
		}
		l := ctxzap.Extract(ctx)
		if status >= http.StatusInternalServerError {
			l.Warn("http request", fields...)
			return
		}
		l.Info("http request", fields...)
	})
}

// withSession resolves the sid cookie into an owner id. Requests without a
// valid session continue as anonymous.
func withSession(store *sessionStore, classifier *routing.Classifier, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid, ok := readSID(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		sess, found, err := store.Lookup(r.Context(), sid)
		if err != nil {
			ctxzap.Extract(r.Context()).Error("server: session lookup failed", zap.Error(err))
			routing.WriteError(w, r, classifier.Classify(r.URL.Path), http.StatusInternalServerError, "session_error", "session error")
			return
		}
		if !found {
			store.clearCookie(w)
			next.ServeHTTP(w, r)
			return
		}
		ctxzap.AddFields(r.Context(), zap.String("owner_id", sess.OwnerID))
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerCtxKey{}, sess.OwnerID)))
	})
}

type authorizer interface {
	Authorize(subject string, domain string, object string, action string) (allowed bool, enforced bool, err error)
}

func withAuthz(a authorizer, rc routing.RouteClass, object string, action string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role := authz.RoleAnonymous
		if _, ok := ownerFromContext(r.Context()); ok {
			role = authz.RoleOwner
		}
		subject := authz.SubjectFromRoleSlug(role)

		allowed, enforced, err := a.Authorize(subject, authz.DomainGlobal, object, action)
		if err != nil {
			ctxzap.Extract(r.Context()).Error("server: authz error", zap.Error(err))
			routing.WriteError(w, r, rc, http.StatusInternalServerError, "authz_error", "authz error")
			return
		}
		if !allowed {
			l := ctxzap.Extract(r.Context())
			if !enforced {
				l.Warn("server: authz shadow deny", zap.String("subject", subject), zap.String("object", object), zap.String("action", action))
				next.ServeHTTP(w, r)
				return
			}
			if role == authz.RoleAnonymous {
				routing.WriteError(w, r, rc, http.StatusUnauthorized, "unauthenticated", "sign in with airtable first")
				return
			}
			routing.WriteError(w, r, rc, http.StatusForbidden, "forbidden", "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}
