package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Get(ctx, "forms", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v", err)
	}

	first, err := s.Put(ctx, Document{Collection: "forms", ID: "f1", OwnerID: "u1", Body: json.RawMessage(`{"name":"a"}`)})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if first.CreatedAt.IsZero() || first.UpdatedAt.IsZero() {
		t.Fatalf("timestamps not set: %+v", first)
	}
	if _, err := s.Put(ctx, Document{Collection: "forms", ID: "f2", OwnerID: "u2", Body: json.RawMessage(`{"name":"b"}`)}); err != nil {
		t.Fatalf("err=%v", err)
	}

	updated, err := s.Put(ctx, Document{Collection: "forms", ID: "f1", OwnerID: "u1", Body: json.RawMessage(`{"name":"c"}`)})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !updated.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("created_at changed: %v -> %v", first.CreatedAt, updated.CreatedAt)
	}

	var body struct {
		Name string `json:"name"`
	}
	if _, err := GetJSON(ctx, s, "forms", "f1", &body); err != nil {
		t.Fatalf("err=%v", err)
	}
	if body.Name != "c" {
		t.Fatalf("name=%q", body.Name)
	}

	all, err := s.List(ctx, "forms", "")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(all) != 2 {
		t.Fatalf("len=%d", len(all))
	}
	mine, err := s.List(ctx, "forms", "u1")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(mine) != 1 || mine[0].ID != "f1" {
		t.Fatalf("mine=%+v", mine)
	}
	other, err := s.List(ctx, "sessions", "")
	if err != nil || len(other) != 0 {
		t.Fatalf("other=%+v err=%v", other, err)
	}

	if err := s.Delete(ctx, "forms", "f1"); err != nil {
		t.Fatalf("err=%v", err)
	}
	if err := s.Delete(ctx, "forms", "f1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v", err)
	}

	if _, err := s.Put(ctx, Document{Collection: "", ID: "x"}); err == nil {
		t.Fatal("expected error")
	}
	if _, err := s.Put(ctx, Document{Collection: "forms", ID: "x", Body: json.RawMessage(`[1]`)}); err == nil {
		t.Fatal("expected error")
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStore_ListOrder(t *testing.T) {
	s := NewMemoryStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	for _, id := range []string{"c", "a", "b"} {
		if _, err := s.Put(context.Background(), Document{Collection: "subs", ID: id}); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.List(context.Background(), "subs", "")
	if err != nil {
		t.Fatal(err)
	}
	if got[0].ID != "c" || got[1].ID != "a" || got[2].ID != "b" {
		t.Fatalf("got=%v %v %v", got[0].ID, got[1].ID, got[2].ID)
	}
}

func TestMemoryStore_BodyIsCopied(t *testing.T) {
	s := NewMemoryStore()
	body := json.RawMessage(`{"a":1}`)
	if _, err := s.Put(context.Background(), Document{Collection: "c", ID: "1", Body: body}); err != nil {
		t.Fatal(err)
	}
	body[2] = 'b'
	got, err := s.Get(context.Background(), "c", "1")
	if err != nil {
		t.Fatal(err)
	}
	if string(got.Body) != `{"a":1}` {
		t.Fatalf("body=%s", got.Body)
	}
}

func TestOpen(t *testing.T) {
	s, closeFn, err := Open(context.Background(), Options{Driver: "memory"})
	if err != nil {
		t.Fatal(err)
	}
	defer closeFn()
	if _, ok := s.(*MemoryStore); !ok {
		t.Fatalf("store=%T", s)
	}

	if _, _, err := Open(context.Background(), Options{Driver: "postgres"}); err == nil {
		t.Fatal("expected error")
	}
	if _, _, err := Open(context.Background(), Options{Driver: "mongo"}); err == nil {
		t.Fatal("expected error")
	}
}
