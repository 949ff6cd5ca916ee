package docstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"

	// registers the sqlite3 goqu dialect; without it goqu falls back to the
	// default dialect.
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"

	_ "github.com/glebarez/go-sqlite"
)

const sqliteTable = "documents"

const sqliteSchemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
  collection TEXT NOT NULL,
  id TEXT NOT NULL,
  owner_id TEXT NOT NULL DEFAULT '',
  body TEXT NOT NULL,
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL,
  PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS documents_owner_idx ON documents (collection, owner_id, created_at);
`

type SQLiteStore struct {
	raw *sql.DB
	db  *goqu.Database
	now func() time.Time
}

// OpenSQLite opens (creating if needed) a sqlite database at path. Use
// ":memory:" for a throwaway store.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("docstore: sqlite path is required")
	}
	raw, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// a single connection keeps ":memory:" databases shared across calls.
	raw.SetMaxOpenConns(1)
	if _, err := raw.ExecContext(ctx, sqliteSchemaSQL); err != nil {
		_ = raw.Close()
		return nil, err
	}
	return &SQLiteStore{raw: raw, db: goqu.New("sqlite3", raw), now: time.Now}, nil
}

func (s *SQLiteStore) Close() error {
	return s.raw.Close()
}

func (s *SQLiteStore) Put(ctx context.Context, doc Document) (Document, error) {
	doc, err := normalizeDocument(doc)
	if err != nil {
		return Document{}, err
	}
	now := s.now().UTC().UnixNano()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Document{}, err
	}
	defer func() { _ = tx.Rollback() }()

	q := tx.Insert(sqliteTable).
		Prepared(true).
		Rows(goqu.Record{
			"collection": doc.Collection,
			"id":         doc.ID,
			"owner_id":   doc.OwnerID,
			"body":       string(doc.Body),
			"created_at": now,
			"updated_at": now,
		}).
		OnConflict(goqu.DoUpdate("collection, id", goqu.Record{
			"owner_id":   goqu.I("EXCLUDED.owner_id"),
			"body":       goqu.I("EXCLUDED.body"),
			"updated_at": goqu.I("EXCLUDED.updated_at"),
		}))
	query, args, err := q.ToSQL()
	if err != nil {
		return Document{}, err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return Document{}, err
	}

	sel := tx.From(sqliteTable).
		Prepared(true).
		Select("created_at", "updated_at").
		Where(goqu.C("collection").Eq(doc.Collection), goqu.C("id").Eq(doc.ID))
	query, args, err = sel.ToSQL()
	if err != nil {
		return Document{}, err
	}
	var created, updated int64
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&created, &updated); err != nil {
		return Document{}, err
	}
	if err := tx.Commit(); err != nil {
		return Document{}, err
	}

	doc.CreatedAt = time.Unix(0, created).UTC()
	doc.UpdatedAt = time.Unix(0, updated).UTC()
	return doc, nil
}

func (s *SQLiteStore) Get(ctx context.Context, collection string, id string) (Document, error) {
	collection, id, err := normalizeKey(collection, id)
	if err != nil {
		return Document{}, err
	}

	q := s.db.From(sqliteTable).
		Prepared(true).
		Select("owner_id", "body", "created_at", "updated_at").
		Where(goqu.C("collection").Eq(collection), goqu.C("id").Eq(id))
	query, args, err := q.ToSQL()
	if err != nil {
		return Document{}, err
	}

	doc := Document{Collection: collection, ID: id}
	var body string
	var created, updated int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&doc.OwnerID, &body, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	doc.Body = []byte(body)
	doc.CreatedAt = time.Unix(0, created).UTC()
	doc.UpdatedAt = time.Unix(0, updated).UTC()
	return doc, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, collection string, id string) error {
	collection, id, err := normalizeKey(collection, id)
	if err != nil {
		return err
	}

	q := s.db.Delete(sqliteTable).
		Prepared(true).
		Where(goqu.C("collection").Eq(collection), goqu.C("id").Eq(id))
	query, args, err := q.ToSQL()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, collection string, ownerID string) ([]Document, error) {
	collection = strings.TrimSpace(collection)
	ownerID = strings.TrimSpace(ownerID)

	q := s.db.From(sqliteTable).
		Prepared(true).
		Select("id", "owner_id", "body", "created_at", "updated_at").
		Where(goqu.C("collection").Eq(collection))
	if ownerID != "" {
		q = q.Where(goqu.C("owner_id").Eq(ownerID))
	}
	q = q.Order(goqu.C("created_at").Asc(), goqu.C("id").Asc())
	query, args, err := q.ToSQL()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Document{}
	for rows.Next() {
		doc := Document{Collection: collection}
		var body string
		var created, updated int64
		if err := rows.Scan(&doc.ID, &doc.OwnerID, &body, &created, &updated); err != nil {
			return nil, err
		}
		doc.Body = []byte(body)
		doc.CreatedAt = time.Unix(0, created).UTC()
		doc.UpdatedAt = time.Unix(0, updated).UTC()
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
