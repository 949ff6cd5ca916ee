package services

import (
	"context"

	"github.com/jacksonlee411/tableform/pkg/formlogic"
)

// RecordWriter appends accepted submissions to the owner's bound table.
type RecordWriter struct {
	Sessions SessionProvider
}

func (w RecordWriter) CreateRecord(ctx context.Context, ownerID string, baseID string, tableID string, answers formlogic.AnswerMap) (string, error) {
	sess, err := w.Sessions.Session(ctx, ownerID)
	if err != nil {
		return "", err
	}
	rec, err := sess.CreateRecord(ctx, baseID, tableID, CellValues(answers))
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}
