package preferences

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository handles the single-row preferences table.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// InitSchema creates the preferences table if it does not exist.
func (r *Repository) InitSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS preferences (
			id                    INT PRIMARY KEY CHECK (id = 1),
			temperature           DOUBLE PRECISION NOT NULL DEFAULT 0.7,
			max_tokens            INT NOT NULL DEFAULT 500,
			sampling_mode         TEXT NOT NULL DEFAULT 'random',
			notifications_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("init preferences schema: %w", err)
	}
	return nil
}

// Get returns the stored preferences, or the defaults when none are stored.
func (r *Repository) Get(ctx context.Context) (Preferences, error) {
	var p Preferences
	err := r.db.QueryRow(ctx, `
		SELECT temperature, max_tokens, sampling_mode, notifications_enabled, updated_at
		FROM preferences WHERE id = 1
	`).Scan(&p.Temperature, &p.MaxTokens, &p.SamplingMode, &p.NotificationsEnabled, &p.UpdatedAt)
	if err == pgx.ErrNoRows {
		return Defaults(), nil
	}
	if err != nil {
		return Preferences{}, fmt.Errorf("get preferences: %w", err)
	}
	return p, nil
}

// Save upserts the preferences row.
func (r *Repository) Save(ctx context.Context, p Preferences) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO preferences (id, temperature, max_tokens, sampling_mode, notifications_enabled, updated_at)
		VALUES (1, $1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE SET
			temperature = EXCLUDED.temperature,
			max_tokens = EXCLUDED.max_tokens,
			sampling_mode = EXCLUDED.sampling_mode,
			notifications_enabled = EXCLUDED.notifications_enabled,
			updated_at = NOW()
	`, p.Temperature, p.MaxTokens, p.SamplingMode, p.NotificationsEnabled)
	if err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}
