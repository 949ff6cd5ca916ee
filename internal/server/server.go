package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jacksonlee411/tableform/internal/config"
	"github.com/jacksonlee411/tableform/internal/routing"
	"github.com/jacksonlee411/tableform/modules/airtable/infrastructure/airtableapi"
	airtablepersistence "github.com/jacksonlee411/tableform/modules/airtable/infrastructure/persistence"
	airtablecontrollers "github.com/jacksonlee411/tableform/modules/airtable/presentation/controllers"
	airtableservices "github.com/jacksonlee411/tableform/modules/airtable/services"
	formpersistence "github.com/jacksonlee411/tableform/modules/forms/infrastructure/persistence"
	formcontrollers "github.com/jacksonlee411/tableform/modules/forms/presentation/controllers"
	formservices "github.com/jacksonlee411/tableform/modules/forms/services"
	"github.com/jacksonlee411/tableform/pkg/authz"
	"github.com/jacksonlee411/tableform/pkg/docstore"
	"github.com/jacksonlee411/tableform/pkg/formlogic"
)

const entrypoint = "server"

type Options struct {
	Config config.Config
	Store  docstore.Store
	Logger *zap.Logger

	// Authorizer overrides the casbin authorizer built from Config.
	Authorizer authorizer
	// AirtableTransport replaces the transport used for Airtable API and
	// OAuth token calls.
	AirtableTransport http.RoundTripper
	Now               func() time.Time
}

type route struct {
	rc      routing.RouteClass
	method  string
	path    string
	object  string
	action  string
	handler http.HandlerFunc
}

// NewHandler builds the HTTP surface. The returned cleanup releases caches
// and must be called once the server has stopped.
func NewHandler(opts Options) (http.Handler, func(), error) {
	cfg := opts.Config
	if opts.Store == nil {
		return nil, nil, errors.New("server: missing store")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	allowlist, err := routing.LoadAllowlist(cfg.AllowlistPath)
	if err != nil {
		return nil, nil, fmt.Errorf("server: load allowlist: %w", err)
	}
	classifier, err := routing.NewClassifier(allowlist, entrypoint)
	if err != nil {
		return nil, nil, err
	}

	az := opts.Authorizer
	if az == nil {
		mode, err := authz.ParseMode(cfg.AuthzMode, cfg.AuthzAllowOff)
		if err != nil {
			return nil, nil, err
		}
		a, err := authz.NewAuthorizer(cfg.AuthzModelPath, cfg.AuthzPolicyPath, mode)
		if err != nil {
			return nil, nil, fmt.Errorf("server: load authz: %w", err)
		}
		az = a
	}

	api, err := airtableapi.New(airtableapi.Options{
		BaseURL:           cfg.AirtableAPIURL,
		RequestsPerSecond: cfg.AirtableRequestsPerSecond,
		MaxRetries:        cfg.AirtableMaxRetries,
		Transport:         opts.AirtableTransport,
	})
	if err != nil {
		return nil, nil, err
	}
	var oauthClient *http.Client
	if opts.AirtableTransport != nil {
		oauthClient = &http.Client{Transport: opts.AirtableTransport}
	}
	airtableStore := airtablepersistence.NewDocStore(opts.Store)
	auth := &airtableservices.AuthService{
		OAuth: airtableservices.NewOAuthConfig(airtableservices.OAuthOptions{
			ClientID:     cfg.AirtableClientID,
			ClientSecret: cfg.AirtableClientSecret,
			RedirectURL:  cfg.AirtableRedirect(),
			AuthURL:      cfg.AirtableAuthURL,
			TokenURL:     cfg.AirtableTokenURL,
		}),
		API:        api,
		Pending:    airtableStore,
		Conns:      airtableStore,
		HTTPClient: oauthClient,
		Now:        now,
	}
	schema, err := airtableservices.NewSchemaService(auth, cfg.AirtableSchemaCacheTTL)
	if err != nil {
		return nil, nil, err
	}

	formStore := formpersistence.NewDocStore(opts.Store)
	forms := formservices.NewFormService(formStore, formlogic.NewEvaluator(cfg.UnsetRules()))
	submissions := formservices.NewSubmissionService(forms, formStore, airtableservices.RecordWriter{Sessions: auth})

	sessions := newSessionStore(opts.Store, cfg.SessionTTL, strings.HasPrefix(cfg.PublicBaseURL, "https://"))
	sessions.now = now

	authController := airtablecontrollers.AuthController{Auth: auth, Sessions: sessions}
	schemaController := airtablecontrollers.SchemaController{OwnerID: ownerFromContext, Schema: schema}
	formsController := formcontrollers.FormsController{OwnerID: ownerFromContext, Forms: forms, Submissions: submissions}
	publicController := formcontrollers.PublicController{Forms: forms, Submissions: submissions}

	const (
		ops      = routing.RouteClassOps
		authn    = routing.RouteClassAuthn
		internal = routing.RouteClassInternalAPI
		public   = routing.RouteClassPublicAPI
	)
	routes := []route{
		{ops, http.MethodGet, "/health", authz.ObjectOpsHealth, authz.ActionRead, handleHealth},
		{ops, http.MethodGet, "/healthz", authz.ObjectOpsHealth, authz.ActionRead, handleHealth},

		{authn, http.MethodGet, "/auth/airtable/login", authz.ObjectAirtableAuth, authz.ActionRead, authController.HandleLogin},
		{authn, http.MethodGet, "/auth/airtable/callback", authz.ObjectAirtableAuth, authz.ActionWrite, authController.HandleCallback},
		{authn, http.MethodPost, "/auth/logout", authz.ObjectAirtableAuth, authz.ActionWrite, authController.HandleLogout},

		{internal, http.MethodGet, "/airtable/api/bases", authz.ObjectAirtableSchema, authz.ActionRead, schemaController.HandleBasesAPI},
		{internal, http.MethodGet, "/airtable/api/bases/{base_id}/tables", authz.ObjectAirtableSchema, authz.ActionRead, schemaController.HandleTablesAPI},
		{internal, http.MethodGet, "/airtable/api/bases/{base_id}/tables/{table_id}/form-fields", authz.ObjectAirtableSchema, authz.ActionRead, schemaController.HandleFormFieldsAPI},

		{internal, http.MethodGet, "/forms/api/forms", authz.ObjectFormsForms, authz.ActionRead, formsController.HandleFormsAPI},
		{internal, http.MethodPost, "/forms/api/forms", authz.ObjectFormsForms, authz.ActionWrite, formsController.HandleFormsAPI},
		{internal, http.MethodGet, "/forms/api/forms/{form_id}", authz.ObjectFormsForms, authz.ActionRead, formsController.HandleFormAPI},
		{internal, http.MethodPut, "/forms/api/forms/{form_id}", authz.ObjectFormsForms, authz.ActionWrite, formsController.HandleFormAPI},
		{internal, http.MethodDelete, "/forms/api/forms/{form_id}", authz.ObjectFormsForms, authz.ActionWrite, formsController.HandleFormAPI},
		{internal, http.MethodPost, "/forms/api/forms/{form_id}/publish", authz.ObjectFormsForms, authz.ActionWrite, formsController.HandlePublishAPI},
		{internal, http.MethodPost, "/forms/api/forms/{form_id}/preview", authz.ObjectFormsForms, authz.ActionRead, formsController.HandlePreviewAPI},
		{internal, http.MethodGet, "/forms/api/forms/{form_id}/lint", authz.ObjectFormsForms, authz.ActionRead, formsController.HandleLintAPI},
		{internal, http.MethodGet, "/forms/api/forms/{form_id}/logic", authz.ObjectFormsForms, authz.ActionRead, formsController.HandleLogicAPI},
		{internal, http.MethodGet, "/forms/api/forms/{form_id}/submissions", authz.ObjectFormsSubmissions, authz.ActionRead, formsController.HandleSubmissionsAPI},

		{public, http.MethodGet, "/api/v1/forms/{form_id}", authz.ObjectFormsPublic, authz.ActionRead, publicController.HandleFormAPI},
		{public, http.MethodPost, "/api/v1/forms/{form_id}/visibility", authz.ObjectFormsPublic, authz.ActionRead, publicController.HandleVisibilityAPI},
		{public, http.MethodPost, "/api/v1/forms/{form_id}/submissions", authz.ObjectFormsPublicSubmit, authz.ActionSubmit, publicController.HandleSubmitAPI},
	}

	router := routing.NewRouter(classifier)
	for _, rt := range routes {
		if err := allowlist.Check(entrypoint, rt.rc, rt.method, rt.path); err != nil {
			schema.Close()
			return nil, nil, err
		}
		router.Handle(rt.rc, rt.method, rt.path, withAuthz(az, rt.rc, rt.object, rt.action, rt.handler))
	}

	return withRequestLog(logger, withSession(sessions, classifier, router)), schema.Close, nil
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// Serve runs srv until ctx is cancelled, then drains in-flight requests for
// at most grace.
func Serve(ctx context.Context, srv *http.Server, grace time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
