package services

import (
	"context"
	"strings"
	"time"

	"github.com/maypok86/otter"

	"github.com/jacksonlee411/tableform/modules/airtable/domain/types"
	"github.com/jacksonlee411/tableform/modules/airtable/infrastructure/airtableapi"
	"github.com/jacksonlee411/tableform/pkg/formlogic"
	"github.com/jacksonlee411/tableform/pkg/httperr"
)

type SessionProvider interface {
	Session(ctx context.Context, ownerID string) (*airtableapi.Session, error)
}

// SchemaService reads base and table metadata for the builder. Table lists
// are cached per owner and base.
type SchemaService struct {
	sessions SessionProvider
	tables   *otter.Cache[string, []types.Table]
}

func NewSchemaService(sessions SessionProvider, cacheTTL time.Duration) (*SchemaService, error) {
	s := &SchemaService{sessions: sessions}
	if cacheTTL <= 0 {
		return s, nil
	}
	cache, err := otter.MustBuilder[string, []types.Table](1024).
		WithTTL(cacheTTL).
		Build()
	if err != nil {
		return nil, err
	}
	s.tables = &cache
	return s, nil
}

func (s *SchemaService) Close() {
	if s.tables != nil {
		s.tables.Close()
	}
}

func (s *SchemaService) ListBases(ctx context.Context, ownerID string) ([]types.Base, error) {
	sess, err := s.sessions.Session(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return sess.ListBases(ctx)
}

func (s *SchemaService) ListTables(ctx context.Context, ownerID string, baseID string) ([]types.Table, error) {
	baseID = strings.TrimSpace(baseID)
	if baseID == "" {
		return nil, httperr.NewBadRequest("base id is required")
	}
	key := ownerID + "/" + baseID
	if s.tables != nil {
		if tables, ok := s.tables.Get(key); ok {
			return tables, nil
		}
	}

	sess, err := s.sessions.Session(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	tables, err := sess.ListTables(ctx, baseID)
	if err != nil {
		return nil, err
	}
	if s.tables != nil {
		s.tables.Set(key, tables)
	}
	return tables, nil
}

func (s *SchemaService) Table(ctx context.Context, ownerID string, baseID string, tableID string) (types.Table, error) {
	tables, err := s.ListTables(ctx, ownerID, baseID)
	if err != nil {
		return types.Table{}, err
	}
	for _, t := range tables {
		if t.ID == tableID || t.Name == tableID {
			return t, nil
		}
	}
	return types.Table{}, httperr.NewNotFound("table not found")
}

type SuggestedFields struct {
	BaseID  string                `json:"externalBaseId"`
	TableID string                `json:"externalTableId"`
	Fields  []formlogic.FormField `json:"fields"`
	Skipped []SkippedColumn       `json:"skipped"`
}

func (s *SchemaService) SuggestFormFields(ctx context.Context, ownerID string, baseID string, tableID string) (SuggestedFields, error) {
	table, err := s.Table(ctx, ownerID, baseID, tableID)
	if err != nil {
		return SuggestedFields{}, err
	}
	fields, skipped := SuggestFields(table)
	return SuggestedFields{BaseID: baseID, TableID: table.ID, Fields: fields, Skipped: skipped}, nil
}
