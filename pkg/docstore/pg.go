package docstore

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
)

const pgSchemaSQL = `
CREATE TABLE IF NOT EXISTS tableform_documents (
  collection text NOT NULL,
  id text NOT NULL,
  owner_id text NOT NULL DEFAULT '',
  body jsonb NOT NULL,
  created_at timestamptz NOT NULL DEFAULT now(),
  updated_at timestamptz NOT NULL DEFAULT now(),
  PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS tableform_documents_owner_idx
  ON tableform_documents (collection, owner_id, created_at);
`

type pgBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type PGStore struct {
	pool pgBeginner
}

func NewPGStore(pool pgBeginner) *PGStore {
	return &PGStore{pool: pool}
}

// EnsureSchema creates the documents table when it is missing.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, pgSchemaSQL); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PGStore) Put(ctx context.Context, doc Document) (Document, error) {
	doc, err := normalizeDocument(doc)
	if err != nil {
		return Document{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Document{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if err := tx.QueryRow(ctx, `
INSERT INTO tableform_documents (collection, id, owner_id, body, created_at, updated_at)
VALUES ($1::text, $2::text, $3::text, $4::jsonb, now(), now())
ON CONFLICT (collection, id)
DO UPDATE SET
  owner_id = EXCLUDED.owner_id,
  body = EXCLUDED.body,
  updated_at = now()
RETURNING created_at, updated_at
`, doc.Collection, doc.ID, doc.OwnerID, []byte(doc.Body)).Scan(&doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return Document{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func (s *PGStore) Get(ctx context.Context, collection string, id string) (Document, error) {
	collection, id, err := normalizeKey(collection, id)
	if err != nil {
		return Document{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Document{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	doc := Document{Collection: collection, ID: id}
	var body []byte
	if err := tx.QueryRow(ctx, `
SELECT owner_id, body, created_at, updated_at
FROM tableform_documents
WHERE collection = $1::text AND id = $2::text
`, collection, id).Scan(&doc.OwnerID, &body, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	doc.Body = body

	if err := tx.Commit(ctx); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func (s *PGStore) Delete(ctx context.Context, collection string, id string) error {
	collection, id, err := normalizeKey(collection, id)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	tag, err := tx.Exec(ctx, `DELETE FROM tableform_documents WHERE collection = $1::text AND id = $2::text;`, collection, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return tx.Commit(ctx)
}

func (s *PGStore) List(ctx context.Context, collection string, ownerID string) ([]Document, error) {
	collection = strings.TrimSpace(collection)
	ownerID = strings.TrimSpace(ownerID)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, `
SELECT id, owner_id, body, created_at, updated_at
FROM tableform_documents
WHERE collection = $1::text
  AND ($2::text = '' OR owner_id = $2::text)
ORDER BY created_at ASC, id ASC
`, collection, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Document{}
	for rows.Next() {
		doc := Document{Collection: collection}
		var body []byte
		if err := rows.Scan(&doc.ID, &doc.OwnerID, &body, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, err
		}
		doc.Body = body
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}
