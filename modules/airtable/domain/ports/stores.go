package ports

import (
	"context"

	"github.com/jacksonlee411/tableform/modules/airtable/domain/types"
)

type ConnectionStore interface {
	GetConnection(ctx context.Context, ownerID string) (types.Connection, error)
	PutConnection(ctx context.Context, conn types.Connection) error
}

type PendingAuthStore interface {
	PutPendingAuth(ctx context.Context, p types.PendingAuth) error
	// TakePendingAuth returns and removes the entry; a state can be redeemed once.
	TakePendingAuth(ctx context.Context, state string) (types.PendingAuth, error)
}
