package history

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping repository tests")
	}

	pool, err := pgxpool.New(context.Background(), dbURL)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })
	return pool
}

func TestRepository_SaveAndGet(t *testing.T) {
	pool := getTestPool(t)
	repo := NewRepository(pool)

	ctx := context.Background()
	require.NoError(t, repo.InitSchema(ctx))

	entry := &ExecutionHistory{
		ID:           uuid.New().String(),
		WorkflowID:   uuid.New().String(),
		WorkflowName: "Summarize & Translate",
		ExecutedAt:   time.Now().UTC().Truncate(time.Millisecond),
		Duration:     2500 * time.Millisecond,
		Status:       "success",
		InputText:    "Long English text",
		OutputText:   "Resumen corto",
		Steps: []StepSummary{
			{Name: "Summarize", Output: "Short summary", Duration: time.Second, Success: true},
			{Name: "Translate", Output: "Resumen corto", Duration: 1500 * time.Millisecond, Success: true},
		},
	}
	require.NoError(t, repo.Save(ctx, entry))
	t.Cleanup(func() { repo.Delete(ctx, entry.ID) })

	got, err := repo.Get(ctx, entry.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, entry.WorkflowName, got.WorkflowName)
	assert.Equal(t, entry.Duration, got.Duration)
	assert.Equal(t, entry.OutputText, got.OutputText)
	require.Len(t, got.Steps, 2)
	assert.Equal(t, "Summarize", got.Steps[0].Name)
	assert.True(t, got.Steps[1].Success)
}

func TestRepository_Get_NotFound(t *testing.T) {
	pool := getTestPool(t)
	repo := NewRepository(pool)

	ctx := context.Background()
	require.NoError(t, repo.InitSchema(ctx))

	got, err := repo.Get(ctx, "00000000-0000-0000-0000-000000000000")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRepository_List_NewestFirst(t *testing.T) {
	pool := getTestPool(t)
	repo := NewRepository(pool)

	ctx := context.Background()
	require.NoError(t, repo.InitSchema(ctx))

	older := &ExecutionHistory{
		ID: uuid.New().String(), WorkflowID: uuid.New().String(),
		ExecutedAt: time.Now().UTC().Add(-time.Hour), Status: "failed",
	}
	newer := &ExecutionHistory{
		ID: uuid.New().String(), WorkflowID: older.WorkflowID,
		ExecutedAt: time.Now().UTC(), Status: "success",
	}
	require.NoError(t, repo.Save(ctx, older))
	require.NoError(t, repo.Save(ctx, newer))
	t.Cleanup(func() {
		repo.Delete(ctx, older.ID)
		repo.Delete(ctx, newer.ID)
	})

	entries, err := repo.List(ctx, 0)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(entries), 2)

	var newerIdx, olderIdx = -1, -1
	for i, e := range entries {
		switch e.ID {
		case newer.ID:
			newerIdx = i
		case older.ID:
			olderIdx = i
		}
	}
	require.NotEqual(t, -1, newerIdx)
	require.NotEqual(t, -1, olderIdx)
	assert.Less(t, newerIdx, olderIdx)

	limited, err := repo.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
