package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hrsuite/approval-engine/internal/domain/entity"
)

func TestHistoryRepository_AppendAndReadBack(t *testing.T) {
	db := newTestDB(t)
	docRepo := NewDocumentRepository(db, zap.NewNop())
	repo := NewHistoryRepository(db, zap.NewNop())
	ctx := context.Background()

	doc := newTestDoc(t, "DOC-2024-010", entity.StatusDraft, nil)
	require.NoError(t, docRepo.Create(ctx, doc))

	base := time.Now().Add(-1 * time.Minute)
	first := &entity.TransitionRecord{
		DocumentID: doc.ID,
		ActorID:    "u-drafter",
		NewStatus:  entity.StatusDraft,
		Event:      "CREATE",
		Detail:     "Document drafted",
		Timestamp:  base,
	}
	second := &entity.TransitionRecord{
		DocumentID:     doc.ID,
		ActorID:        "u-drafter",
		PreviousStatus: entity.StatusDraft,
		NewStatus:      entity.StatusInProgress,
		Event:          "SUBMIT",
		Timestamp:      base.Add(30 * time.Second),
	}
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))
	assert.NotZero(t, first.ID)

	records, err := repo.GetByDocumentID(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "CREATE", records[0].Event)
	assert.Equal(t, "SUBMIT", records[1].Event)
	assert.Equal(t, entity.StatusInProgress, records[1].NewStatus)
	assert.Equal(t, "Document drafted", records[0].Detail)
}

func TestHistoryRepository_EmptyTrail(t *testing.T) {
	db := newTestDB(t)
	repo := NewHistoryRepository(db, zap.NewNop())

	records, err := repo.GetByDocumentID(context.Background(), 404)
	require.NoError(t, err)
	assert.Empty(t, records)
}
