package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/jacksonlee411/tableform/modules/airtable/domain/ports"
	"github.com/jacksonlee411/tableform/modules/airtable/domain/types"
	"github.com/jacksonlee411/tableform/modules/airtable/infrastructure/airtableapi"
	"github.com/jacksonlee411/tableform/pkg/httperr"
)

var DefaultScopes = []string{"data.records:write", "schema.bases:read", "user.email:read"}

const pendingAuthTTL = 10 * time.Minute

type OAuthOptions struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	Scopes       []string
}

func NewOAuthConfig(opts OAuthOptions) *oauth2.Config {
	style := oauth2.AuthStyleInHeader
	if opts.ClientSecret == "" {
		style = oauth2.AuthStyleInParams
	}
	scopes := opts.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	return &oauth2.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		RedirectURL:  opts.RedirectURL,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   opts.AuthURL,
			TokenURL:  opts.TokenURL,
			AuthStyle: style,
		},
	}
}

// AuthService runs the authorization code flow with PKCE and hands out API
// sessions for connected owners.
type AuthService struct {
	OAuth      *oauth2.Config
	API        *airtableapi.Client
	Pending    ports.PendingAuthStore
	Conns      ports.ConnectionStore
	HTTPClient *http.Client
	Now        func() time.Time
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *AuthService) oauthCtx(ctx context.Context) context.Context {
	if s.HTTPClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, s.HTTPClient)
}

// Begin records a pending authorization and returns the consent URL.
func (s *AuthService) Begin(ctx context.Context, returnTo string) (string, error) {
	if strings.TrimSpace(s.OAuth.ClientID) == "" {
		return "", errors.New("airtable: oauth client is not configured")
	}
	state := ksuid.New().String()
	verifier := oauth2.GenerateVerifier()
	if err := s.Pending.PutPendingAuth(ctx, types.PendingAuth{
		State:     state,
		Verifier:  verifier,
		ReturnTo:  sanitizeReturnTo(returnTo),
		ExpiresAt: s.now().Add(pendingAuthTTL),
	}); err != nil {
		return "", err
	}
	return s.OAuth.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)), nil
}

// Complete redeems the authorization code, identifies the account and
// stores the connection.
func (s *AuthService) Complete(ctx context.Context, state string, code string) (types.Connection, string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return types.Connection{}, "", httperr.NewBadRequest("code is required")
	}
	pending, err := s.Pending.TakePendingAuth(ctx, state)
	if err != nil {
		return types.Connection{}, "", err
	}

	tok, err := s.OAuth.Exchange(s.oauthCtx(ctx), code, oauth2.VerifierOption(pending.Verifier))
	if err != nil {
		return types.Connection{}, "", err
	}

	user, err := s.API.As(oauth2.StaticTokenSource(tok)).Whoami(ctx)
	if err != nil {
		return types.Connection{}, "", err
	}

	conn := types.Connection{
		OwnerID:     user.ID,
		Email:       user.Email,
		Scopes:      user.Scopes,
		Token:       tok,
		ConnectedAt: s.now().UTC(),
	}
	if err := s.Conns.PutConnection(ctx, conn); err != nil {
		return types.Connection{}, "", err
	}
	ctxzap.Extract(ctx).Info("airtable: account connected", zap.String("owner_id", user.ID))
	return conn, pending.ReturnTo, nil
}

// Session returns an API session for ownerID. Refreshed tokens are written
// back to the connection store.
func (s *AuthService) Session(ctx context.Context, ownerID string) (*airtableapi.Session, error) {
	conn, err := s.Conns.GetConnection(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	base := s.OAuth.TokenSource(s.oauthCtx(ctx), conn.Token)
	return s.API.As(&persistingTokenSource{
		ctx:   ctx,
		base:  base,
		conn:  conn,
		store: s.Conns,
		last:  conn.Token.AccessToken,
	}), nil
}

type persistingTokenSource struct {
	ctx   context.Context
	base  oauth2.TokenSource
	store ports.ConnectionStore

	mu   sync.Mutex
	conn types.Connection
	last string
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken == p.last {
		return tok, nil
	}
	p.last = tok.AccessToken
	p.conn.Token = tok
	if err := p.store.PutConnection(p.ctx, p.conn); err != nil {
		ctxzap.Extract(p.ctx).Warn("airtable: failed to persist refreshed token", zap.String("owner_id", p.conn.OwnerID), zap.Error(err))
	}
	return tok, nil
}

// sanitizeReturnTo keeps post-login redirects on this site.
func sanitizeReturnTo(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.Contains(raw, "\\") {
		return "/"
	}
	return raw
}
