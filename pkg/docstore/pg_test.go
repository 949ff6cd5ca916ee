package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgBeginnerStub struct {
	beginFn func(ctx context.Context) (pgx.Tx, error)
}

func (b pgBeginnerStub) Begin(ctx context.Context) (pgx.Tx, error) {
	return b.beginFn(ctx)
}

type rowStub struct {
	scanFn func(dest ...any) error
}

func (r rowStub) Scan(dest ...any) error {
	return r.scanFn(dest...)
}

type rowsStub struct {
	pgx.Rows

	rows    [][]any
	idx     int
	err     error
	closed  bool
	scanErr error
}

func (r *rowsStub) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *rowsStub) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	row := r.rows[r.idx-1]
	for i := range dest {
		switch d := dest[i].(type) {
		case *string:
			*d = row[i].(string)
		case *[]byte:
			*d = row[i].([]byte)
		case *time.Time:
			*d = row[i].(time.Time)
		}
	}
	return nil
}

func (r *rowsStub) Err() error { return r.err }

func (r *rowsStub) Close() { r.closed = true }

type pgTxStub struct {
	pgx.Tx

	execFn     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	queryFn    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	queryRowFn func(ctx context.Context, sql string, args ...any) pgx.Row
	commitFn   func(ctx context.Context) error
	committed  bool
}

func (t *pgTxStub) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if t.execFn != nil {
		return t.execFn(ctx, sql, args...)
	}
	return pgconn.CommandTag{}, nil
}

func (t *pgTxStub) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if t.queryFn != nil {
		return t.queryFn(ctx, sql, args...)
	}
	return &rowsStub{}, nil
}

func (t *pgTxStub) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if t.queryRowFn != nil {
		return t.queryRowFn(ctx, sql, args...)
	}
	return rowStub{scanFn: func(...any) error { return nil }}
}

func (t *pgTxStub) Commit(ctx context.Context) error {
	t.committed = true
	if t.commitFn != nil {
		return t.commitFn(ctx)
	}
	return nil
}

func (t *pgTxStub) Rollback(context.Context) error { return nil }

func beginWith(tx *pgTxStub) pgBeginnerStub {
	return pgBeginnerStub{beginFn: func(context.Context) (pgx.Tx, error) { return tx, nil }}
}

func TestPGStore_Put(t *testing.T) {
	t.Run("invalid document", func(t *testing.T) {
		if _, err := NewPGStore(pgBeginnerStub{}).Put(context.Background(), Document{ID: "x"}); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("begin error", func(t *testing.T) {
		s := NewPGStore(pgBeginnerStub{beginFn: func(context.Context) (pgx.Tx, error) {
			return nil, errors.New("begin")
		}})
		if _, err := s.Put(context.Background(), Document{Collection: "forms", ID: "f1"}); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("ok", func(t *testing.T) {
		now := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
		var gotArgs []any
		tx := &pgTxStub{queryRowFn: func(_ context.Context, sql string, args ...any) pgx.Row {
			if !strings.Contains(sql, "ON CONFLICT (collection, id)") {
				t.Fatalf("sql=%s", sql)
			}
			gotArgs = args
			return rowStub{scanFn: func(dest ...any) error {
				*(dest[0].(*time.Time)) = now
				*(dest[1].(*time.Time)) = now
				return nil
			}}
		}}
		doc, err := NewPGStore(beginWith(tx)).Put(context.Background(), Document{Collection: " forms ", ID: "f1", OwnerID: "u1"})
		if err != nil {
			t.Fatalf("err=%v", err)
		}
		if !tx.committed {
			t.Fatal("expected commit")
		}
		if doc.Collection != "forms" || !doc.CreatedAt.Equal(now) || string(doc.Body) != "{}" {
			t.Fatalf("doc=%+v", doc)
		}
		if gotArgs[0] != "forms" || gotArgs[2] != "u1" {
			t.Fatalf("args=%v", gotArgs)
		}
	})
}

func TestPGStore_Get(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		tx := &pgTxStub{queryRowFn: func(context.Context, string, ...any) pgx.Row {
			return rowStub{scanFn: func(...any) error { return pgx.ErrNoRows }}
		}}
		if _, err := NewPGStore(beginWith(tx)).Get(context.Background(), "forms", "f1"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("err=%v", err)
		}
	})

	t.Run("ok", func(t *testing.T) {
		tx := &pgTxStub{queryRowFn: func(context.Context, string, ...any) pgx.Row {
			return rowStub{scanFn: func(dest ...any) error {
				*(dest[0].(*string)) = "u1"
				*(dest[1].(*[]byte)) = []byte(`{"a":1}`)
				return nil
			}}
		}}
		doc, err := NewPGStore(beginWith(tx)).Get(context.Background(), "forms", "f1")
		if err != nil {
			t.Fatalf("err=%v", err)
		}
		if doc.OwnerID != "u1" || !json.Valid(doc.Body) {
			t.Fatalf("doc=%+v", doc)
		}
	})
}

func TestPGStore_Delete(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		tx := &pgTxStub{execFn: func(context.Context, string, ...any) (pgconn.CommandTag, error) {
			return pgconn.NewCommandTag("DELETE 0"), nil
		}}
		if err := NewPGStore(beginWith(tx)).Delete(context.Background(), "forms", "f1"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("err=%v", err)
		}
		if tx.committed {
			t.Fatal("unexpected commit")
		}
	})

	t.Run("ok", func(t *testing.T) {
		tx := &pgTxStub{execFn: func(context.Context, string, ...any) (pgconn.CommandTag, error) {
			return pgconn.NewCommandTag("DELETE 1"), nil
		}}
		if err := NewPGStore(beginWith(tx)).Delete(context.Background(), "forms", "f1"); err != nil {
			t.Fatalf("err=%v", err)
		}
		if !tx.committed {
			t.Fatal("expected commit")
		}
	})
}

func TestPGStore_List(t *testing.T) {
	t.Run("query error", func(t *testing.T) {
		tx := &pgTxStub{queryFn: func(context.Context, string, ...any) (pgx.Rows, error) {
			return nil, errors.New("query")
		}}
		if _, err := NewPGStore(beginWith(tx)).List(context.Background(), "forms", ""); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("rows error", func(t *testing.T) {
		rows := &rowsStub{err: errors.New("rows")}
		tx := &pgTxStub{queryFn: func(context.Context, string, ...any) (pgx.Rows, error) { return rows, nil }}
		if _, err := NewPGStore(beginWith(tx)).List(context.Background(), "forms", ""); err == nil {
			t.Fatal("expected error")
		}
		if !rows.closed {
			t.Fatal("rows not closed")
		}
	})

	t.Run("ok", func(t *testing.T) {
		now := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
		rows := &rowsStub{rows: [][]any{
			{"f1", "u1", []byte(`{}`), now, now},
			{"f2", "u1", []byte(`{"x":1}`), now, now},
		}}
		var gotOwner any
		tx := &pgTxStub{queryFn: func(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
			gotOwner = args[1]
			return rows, nil
		}}
		docs, err := NewPGStore(beginWith(tx)).List(context.Background(), "forms", " u1 ")
		if err != nil {
			t.Fatalf("err=%v", err)
		}
		if len(docs) != 2 || docs[1].ID != "f2" || docs[0].Collection != "forms" {
			t.Fatalf("docs=%+v", docs)
		}
		if gotOwner != "u1" {
			t.Fatalf("owner=%v", gotOwner)
		}
	})
}

func TestPGStore_EnsureSchema(t *testing.T) {
	var got string
	tx := &pgTxStub{execFn: func(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
		got = sql
		return pgconn.CommandTag{}, nil
	}}
	if err := NewPGStore(beginWith(tx)).EnsureSchema(context.Background()); err != nil {
		t.Fatalf("err=%v", err)
	}
	if !strings.Contains(got, "CREATE TABLE IF NOT EXISTS tableform_documents") || !tx.committed {
		t.Fatalf("sql=%s committed=%v", got, tx.committed)
	}
}
