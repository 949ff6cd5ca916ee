package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var ErrNotFound = errors.New("docstore: not found")

// Document is one JSON object filed under a collection. OwnerID scopes
// listings; it may be empty for documents nobody owns.
type Document struct {
	Collection string
	ID         string
	OwnerID    string
	Body       json.RawMessage
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Store is a generic JSON document store. Put upserts by (Collection, ID) and
// keeps the first CreatedAt. List returns documents oldest first; an empty
// ownerID lists the whole collection.
type Store interface {
	Put(ctx context.Context, doc Document) (Document, error)
	Get(ctx context.Context, collection string, id string) (Document, error)
	Delete(ctx context.Context, collection string, id string) error
	List(ctx context.Context, collection string, ownerID string) ([]Document, error)
}

func normalizeKey(collection string, id string) (string, string, error) {
	collection = strings.TrimSpace(collection)
	id = strings.TrimSpace(id)
	if collection == "" {
		return "", "", errors.New("docstore: collection is required")
	}
	if id == "" {
		return "", "", errors.New("docstore: id is required")
	}
	return collection, id, nil
}

func normalizeBody(raw json.RawMessage) (json.RawMessage, error) {
	if len(raw) == 0 {
		return json.RawMessage(`{}`), nil
	}
	if !json.Valid(raw) {
		return nil, errors.New("docstore: body must be valid json")
	}
	trimmed := bytes.TrimSpace(raw)
	if trimmed[0] != '{' {
		return nil, errors.New("docstore: body must be a json object")
	}
	return trimmed, nil
}

func normalizeDocument(doc Document) (Document, error) {
	var err error
	doc.Collection, doc.ID, err = normalizeKey(doc.Collection, doc.ID)
	if err != nil {
		return Document{}, err
	}
	doc.OwnerID = strings.TrimSpace(doc.OwnerID)
	doc.Body, err = normalizeBody(doc.Body)
	if err != nil {
		return Document{}, err
	}
	return doc, nil
}

// PutJSON marshals v as the body of collection/id.
func PutJSON(ctx context.Context, s Store, collection string, id string, ownerID string, v any) (Document, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Document{}, err
	}
	return s.Put(ctx, Document{Collection: collection, ID: id, OwnerID: ownerID, Body: b})
}

// GetJSON loads collection/id into v.
func GetJSON(ctx context.Context, s Store, collection string, id string, v any) (Document, error) {
	doc, err := s.Get(ctx, collection, id)
	if err != nil {
		return Document{}, err
	}
	if err := json.Unmarshal(doc.Body, v); err != nil {
		return Document{}, err
	}
	return doc, nil
}
