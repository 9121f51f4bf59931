package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository handles execution history persistence in PostgreSQL. History
// rows have no foreign key to workflows: deleting a workflow must not delete
// its past runs.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// InitSchema creates the execution_history table if it does not exist.
func (r *Repository) InitSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS execution_history (
			id            UUID PRIMARY KEY,
			workflow_id   UUID NOT NULL,
			workflow_name TEXT NOT NULL DEFAULT '',
			executed_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			duration_ms   BIGINT NOT NULL DEFAULT 0,
			status        TEXT NOT NULL,
			input_text    TEXT NOT NULL DEFAULT '',
			output_text   TEXT NOT NULL DEFAULT '',
			error_message TEXT NOT NULL DEFAULT '',
			steps         JSONB NOT NULL DEFAULT '[]'
		)
	`)
	if err != nil {
		return fmt.Errorf("init history schema: %w", err)
	}
	return nil
}

// Save inserts a history record.
func (r *Repository) Save(ctx context.Context, h *ExecutionHistory) error {
	stepsJSON, err := json.Marshal(h.Steps)
	if err != nil {
		return fmt.Errorf("marshal step summaries: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO execution_history
			(id, workflow_id, workflow_name, executed_at, duration_ms, status, input_text, output_text, error_message, steps)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, h.ID, h.WorkflowID, h.WorkflowName, h.ExecutedAt, h.Duration.Milliseconds(),
		h.Status, h.InputText, h.OutputText, h.ErrorMessage, stepsJSON)
	if err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}

// List returns history records newest first, up to limit (all if limit <= 0).
func (r *Repository) List(ctx context.Context, limit int) ([]ExecutionHistory, error) {
	query := `
		SELECT id, workflow_id, workflow_name, executed_at, duration_ms, status, input_text, output_text, error_message, steps
		FROM execution_history
		ORDER BY executed_at DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var entries []ExecutionHistory
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *h)
	}
	return entries, rows.Err()
}

// Get retrieves a history record by ID. Returns nil, nil if not found.
func (r *Repository) Get(ctx context.Context, id string) (*ExecutionHistory, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, workflow_id, workflow_name, executed_at, duration_ms, status, input_text, output_text, error_message, steps
		FROM execution_history WHERE id = $1
	`, id)

	h, err := scanHistory(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return h, nil
}

// Delete removes a single history record.
func (r *Repository) Delete(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM execution_history WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete history: %w", err)
	}
	return nil
}

// Clear removes all history records.
func (r *Repository) Clear(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `DELETE FROM execution_history`)
	if err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

func scanHistory(row pgx.Row) (*ExecutionHistory, error) {
	var h ExecutionHistory
	var durationMS int64
	var stepsJSON []byte

	err := row.Scan(&h.ID, &h.WorkflowID, &h.WorkflowName, &h.ExecutedAt, &durationMS,
		&h.Status, &h.InputText, &h.OutputText, &h.ErrorMessage, &stepsJSON)
	if err == pgx.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan history: %w", err)
	}

	h.Duration = time.Duration(durationMS) * time.Millisecond
	if err := json.Unmarshal(stepsJSON, &h.Steps); err != nil {
		return nil, fmt.Errorf("unmarshal step summaries: %w", err)
	}
	return &h, nil
}
