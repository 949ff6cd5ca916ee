package server

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jacksonlee411/tableform/pkg/docstore"
)

const (
	sidCookieName      = "tf_sid"
	collectionSessions = "sessions"
)

var sidRandReader io.Reader = rand.Reader

type ownerSession struct {
	OwnerID   string    `json:"ownerId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// sessionStore keeps owner sessions in the document store, keyed by the
// sha256 of the cookie value.
type sessionStore struct {
	docs   docstore.Store
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

func newSessionStore(docs docstore.Store, ttl time.Duration, secure bool) *sessionStore {
	return &sessionStore{docs: docs, ttl: ttl, secure: secure, now: time.Now}
}

func newSID() (sid string, key string, err error) {
	var b [32]byte
	if _, err := io.ReadFull(sidRandReader, b[:]); err != nil {
		return "", "", err
	}
	sid = base64.RawURLEncoding.EncodeToString(b[:])
	return sid, sidKey(sid), nil
}

func sidKey(sid string) string {
	sum := sha256.Sum256([]byte(sid))
	return hex.EncodeToString(sum[:])
}

func (s *sessionStore) Create(ctx context.Context, ownerID string) (string, time.Time, error) {
	sid, key, err := newSID()
	if err != nil {
		return "", time.Time{}, err
	}
	expiresAt := s.now().Add(s.ttl).UTC()
	if _, err := docstore.PutJSON(ctx, s.docs, collectionSessions, key, ownerID, ownerSession{OwnerID: ownerID, ExpiresAt: expiresAt}); err != nil {
		return "", time.Time{}, err
	}
	return sid, expiresAt, nil
}

func (s *sessionStore) Lookup(ctx context.Context, sid string) (ownerSession, bool, error) {
	var sess ownerSession
	if _, err := docstore.GetJSON(ctx, s.docs, collectionSessions, sidKey(sid), &sess); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ownerSession{}, false, nil
		}
		return ownerSession{}, false, err
	}
	if s.now().After(sess.ExpiresAt) {
		_ = s.Revoke(ctx, sid)
		return ownerSession{}, false, nil
	}
	return sess, true, nil
}

func (s *sessionStore) Revoke(ctx context.Context, sid string) error {
	if sid == "" {
		return nil
	}
	err := s.docs.Delete(ctx, collectionSessions, sidKey(sid))
	if errors.Is(err, docstore.ErrNotFound) {
		return nil
	}
	return err
}

// Start and End let the OAuth callback and logout handlers manage the
// cookie.
func (s *sessionStore) Start(ctx context.Context, w http.ResponseWriter, ownerID string) error {
	sid, expiresAt, err := s.Create(ctx, ownerID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sidCookieName,
		Value:    sid,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (s *sessionStore) End(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if sid, ok := readSID(r); ok {
		if err := s.Revoke(ctx, sid); err != nil {
			return err
		}
	}
	s.clearCookie(w)
	return nil
}

func (s *sessionStore) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sidCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func readSID(r *http.Request) (string, bool) {
	c, err := r.Cookie(sidCookieName)
	if err != nil {
		return "", false
	}
	v := strings.TrimSpace(c.Value)
	if v == "" {
		return "", false
	}
	return v, true
}
