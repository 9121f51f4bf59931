package preferences

import (
	"context"
	"os"
	"testing"

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

func TestRepository_Get_Defaults(t *testing.T) {
	pool := getTestPool(t)
	repo := NewRepository(pool)

	ctx := context.Background()
	require.NoError(t, repo.InitSchema(ctx))
	_, err := pool.Exec(ctx, `DELETE FROM preferences`)
	require.NoError(t, err)

	p, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, Defaults().Temperature, p.Temperature)
	assert.Equal(t, Defaults().MaxTokens, p.MaxTokens)
	assert.True(t, p.NotificationsEnabled)
}

func TestRepository_Save_Upsert(t *testing.T) {
	pool := getTestPool(t)
	repo := NewRepository(pool)

	ctx := context.Background()
	require.NoError(t, repo.InitSchema(ctx))

	first := Preferences{Temperature: 0.3, MaxTokens: 200, SamplingMode: "greedy", NotificationsEnabled: false}
	require.NoError(t, repo.Save(ctx, first))

	second := Preferences{Temperature: 1.1, MaxTokens: 800, SamplingMode: "random", NotificationsEnabled: true}
	require.NoError(t, repo.Save(ctx, second))

	got, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.1, got.Temperature)
	assert.Equal(t, 800, got.MaxTokens)
	assert.Equal(t, "random", got.SamplingMode)
	assert.True(t, got.NotificationsEnabled)
	assert.False(t, got.UpdatedAt.IsZero())
}
