package repository

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hrsuite/approval-engine/internal/application/port"
	"github.com/hrsuite/approval-engine/internal/domain/entity"
)

// newTestDB opens an in-memory database with the real schema applied.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	require.NoError(t, err)
	// A second connection would see its own empty in-memory database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema, err := os.ReadFile(filepath.Join("..", "..", "..", "..", "migrations", "001_create_approval_tables.sql"))
	require.NoError(t, err)
	_, err = db.Exec(string(schema))
	require.NoError(t, err)

	return db
}

func newTestDoc(t *testing.T, docNumber string, status entity.Status, deadline *time.Time) *entity.ApprovalDocument {
	t.Helper()

	doc, err := entity.NewDocument("t1", docNumber, "Annual leave", "", "LEAVE", "", "",
		"u-drafter", "Drafter", deadline,
		[]*entity.ApprovalLine{
			{Sequence: 1, LineType: entity.LineTypeSequential, ApproverID: "u1", ApproverName: "Team Lead"},
			{Sequence: 2, LineType: entity.LineTypeSequential, ApproverID: "u2", ApproverName: "Manager"},
		})
	require.NoError(t, err)
	doc.Status = status
	return doc
}

func TestDocumentRepository_CreateAndLoad(t *testing.T) {
	db := newTestDB(t)
	repo := NewDocumentRepository(db, zap.NewNop())
	ctx := context.Background()

	doc := newTestDoc(t, "DOC-2024-001", entity.StatusDraft, nil)
	require.NoError(t, repo.Create(ctx, doc))
	assert.NotZero(t, doc.ID)
	assert.Equal(t, int64(1), doc.Version)

	loaded, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "DOC-2024-001", loaded.DocNumber)
	assert.Equal(t, entity.StatusDraft, loaded.Status)
	require.Len(t, loaded.Lines, 2)
	assert.Equal(t, 1, loaded.Lines[0].Sequence)
	assert.Equal(t, "u1", loaded.Lines[0].ApproverID)
	assert.Equal(t, entity.LineStatusWaiting, loaded.Lines[1].Status)

	missing, err := repo.GetByID(ctx, 9999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	byNumber, err := repo.GetByNumber(ctx, "t1", "DOC-2024-001")
	require.NoError(t, err)
	require.NotNil(t, byNumber)
	assert.Equal(t, doc.ID, byNumber.ID)
}

func TestDocumentRepository_SaveVersionConflict(t *testing.T) {
	db := newTestDB(t)
	repo := NewDocumentRepository(db, zap.NewNop())
	ctx := context.Background()

	doc := newTestDoc(t, "DOC-2024-002", entity.StatusDraft, nil)
	require.NoError(t, repo.Create(ctx, doc))

	first, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	second, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)

	first.Status = entity.StatusInProgress
	require.NoError(t, repo.Save(ctx, first))
	assert.Equal(t, int64(2), first.Version)

	// The second writer still holds the snapshot the first one overwrote.
	second.Status = entity.StatusCanceled
	err = repo.Save(ctx, second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, port.ErrVersionConflict))

	current, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusInProgress, current.Status)
	assert.Equal(t, int64(2), current.Version)

	// The winner can keep writing against its refreshed version.
	first.Status = entity.StatusApproved
	require.NoError(t, repo.Save(ctx, first))
	assert.Equal(t, int64(3), first.Version)
}

func TestDocumentRepository_SavePersistsLineState(t *testing.T) {
	db := newTestDB(t)
	repo := NewDocumentRepository(db, zap.NewNop())
	ctx := context.Background()

	doc := newTestDoc(t, "DOC-2024-003", entity.StatusDraft, nil)
	require.NoError(t, repo.Create(ctx, doc))

	now := time.Now()
	require.NoError(t, doc.Lines[0].Activate(now))
	doc.Status = entity.StatusInProgress
	doc.SubmittedAt = &now
	require.NoError(t, repo.Save(ctx, doc))

	loaded, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusInProgress, loaded.Status)
	require.NotNil(t, loaded.SubmittedAt)
	require.Len(t, loaded.Lines, 2)
	assert.Equal(t, entity.LineStatusActive, loaded.Lines[0].Status)
	assert.NotNil(t, loaded.Lines[0].ActivatedAt)
	assert.Equal(t, entity.LineStatusWaiting, loaded.Lines[1].Status)
}

func TestDocumentRepository_FindOverdueActive(t *testing.T) {
	db := newTestDB(t)
	repo := NewDocumentRepository(db, zap.NewNop())
	ctx := context.Background()

	now := time.Now()
	past := now.Add(-1 * time.Hour)
	future := now.Add(1 * time.Hour)

	overdue := newTestDoc(t, "DOC-OVERDUE", entity.StatusInProgress, &past)
	require.NoError(t, repo.Create(ctx, overdue))

	approved := newTestDoc(t, "DOC-APPROVED", entity.StatusApproved, &past)
	require.NoError(t, repo.Create(ctx, approved))

	flagged := newTestDoc(t, "DOC-FLAGGED", entity.StatusInProgress, &past)
	flagged.Escalated = true
	require.NoError(t, repo.Create(ctx, flagged))

	upcoming := newTestDoc(t, "DOC-UPCOMING", entity.StatusInProgress, &future)
	require.NoError(t, repo.Create(ctx, upcoming))

	open := newTestDoc(t, "DOC-NO-DEADLINE", entity.StatusInProgress, nil)
	require.NoError(t, repo.Create(ctx, open))

	docs, err := repo.FindOverdueActive(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, docs, 1, "only the unescalated in-progress document with a past deadline qualifies")
	assert.Equal(t, "DOC-OVERDUE", docs[0].DocNumber)
	assert.NotEmpty(t, docs[0].Lines)

	require.NoError(t, repo.MarkEscalated(ctx, overdue.ID))

	reloaded, err := repo.GetByID(ctx, overdue.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.Escalated)

	docs, err = repo.FindOverdueActive(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, docs, "escalated documents drop out of the next sweep")
}
