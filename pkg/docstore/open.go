package docstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Options struct {
	Driver      string
	DatabaseURL string
	SQLitePath  string
}

// Open builds the store named by opts.Driver. The returned close func is
// never nil.
func Open(ctx context.Context, opts Options) (Store, func(), error) {
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case "", DriverMemory:
		return NewMemoryStore(), func() {}, nil
	case DriverPostgres:
		if strings.TrimSpace(opts.DatabaseURL) == "" {
			return nil, func() {}, fmt.Errorf("docstore: database url is required for %s", DriverPostgres)
		}
		pool, err := pgxpool.New(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, func() {}, err
		}
		s := NewPGStore(pool)
		if err := s.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, func() {}, err
		}
		return s, pool.Close, nil
	case DriverSQLite:
		s, err := OpenSQLite(ctx, opts.SQLitePath)
		if err != nil {
			return nil, func() {}, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return nil, func() {}, fmt.Errorf("docstore: unknown driver %q (expected memory|postgres|sqlite)", opts.Driver)
	}
}
