package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jacksonlee411/tableform/modules/airtable/domain/types"
	"github.com/jacksonlee411/tableform/pkg/docstore"
	"github.com/jacksonlee411/tableform/pkg/httperr"
)

const (
	collectionConnections = "airtable_connections"
	collectionPendingAuth = "airtable_pending_auth"
)

type DocStore struct {
	docs docstore.Store
	now  func() time.Time
}

func NewDocStore(docs docstore.Store) *DocStore {
	return &DocStore{docs: docs, now: time.Now}
}

func (s *DocStore) GetConnection(ctx context.Context, ownerID string) (types.Connection, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return types.Connection{}, httperr.NewBadRequest("owner id is required")
	}
	var conn types.Connection
	if _, err := docstore.GetJSON(ctx, s.docs, collectionConnections, ownerID, &conn); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return types.Connection{}, httperr.NewNotFound("airtable account not connected")
		}
		return types.Connection{}, err
	}
	return conn, nil
}

func (s *DocStore) PutConnection(ctx context.Context, conn types.Connection) error {
	conn.OwnerID = strings.TrimSpace(conn.OwnerID)
	if conn.OwnerID == "" {
		return httperr.NewBadRequest("owner id is required")
	}
	if conn.Token == nil {
		return httperr.NewBadRequest("token is required")
	}
	_, err := docstore.PutJSON(ctx, s.docs, collectionConnections, conn.OwnerID, conn.OwnerID, conn)
	return err
}

func (s *DocStore) PutPendingAuth(ctx context.Context, p types.PendingAuth) error {
	if strings.TrimSpace(p.State) == "" || strings.TrimSpace(p.Verifier) == "" {
		return httperr.NewBadRequest("state and verifier are required")
	}
	_, err := docstore.PutJSON(ctx, s.docs, collectionPendingAuth, p.State, "", p)
	return err
}

func (s *DocStore) TakePendingAuth(ctx context.Context, state string) (types.PendingAuth, error) {
	state = strings.TrimSpace(state)
	if state == "" {
		return types.PendingAuth{}, httperr.NewBadRequest("state is required")
	}
	var p types.PendingAuth
	if _, err := docstore.GetJSON(ctx, s.docs, collectionPendingAuth, state, &p); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return types.PendingAuth{}, httperr.NewBadRequest("unknown or reused state")
		}
		return types.PendingAuth{}, err
	}
	if err := s.docs.Delete(ctx, collectionPendingAuth, state); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return types.PendingAuth{}, httperr.NewBadRequest("unknown or reused state")
		}
		return types.PendingAuth{}, err
	}
	if s.now().After(p.ExpiresAt) {
		return types.PendingAuth{}, httperr.NewBadRequest("authorization request expired")
	}
	return p, nil
}
