package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository handles workflow persistence in PostgreSQL. Steps live in their
// own table and are cascade-deleted with their workflow.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// InitSchema creates the workflow tables if they do not exist.
func (r *Repository) InitSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS workflows (
			id          UUID PRIMARY KEY,
			name        TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			favorite    BOOLEAN NOT NULL DEFAULT FALSE,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS workflow_steps (
			id          UUID PRIMARY KEY,
			workflow_id UUID NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
			step_type   TEXT NOT NULL,
			prompt      TEXT NOT NULL DEFAULT '',
			step_order  INT NOT NULL DEFAULT 0,
			options     JSONB NOT NULL DEFAULT '{}'
		)
	`)
	if err != nil {
		return fmt.Errorf("init workflow schema: %w", err)
	}
	return nil
}

// Seed inserts the sample summarize-and-translate workflow if it does not
// already exist.
func (r *Repository) Seed(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO workflows (id, name, description)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`, sampleWorkflowID, "Summarize & Translate", "Condense a text, then translate the summary to Spanish")
	if err != nil {
		return fmt.Errorf("seed workflow: %w", err)
	}

	for _, step := range sampleSteps {
		optionsJSON, err := json.Marshal(step.Options)
		if err != nil {
			return fmt.Errorf("marshal seed step options: %w", err)
		}
		_, err = r.db.Exec(ctx, `
			INSERT INTO workflow_steps (id, workflow_id, step_type, prompt, step_order, options)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO NOTHING
		`, step.ID, sampleWorkflowID, step.Type, step.Prompt, step.Order, optionsJSON)
		if err != nil {
			return fmt.Errorf("seed workflow step: %w", err)
		}
	}
	return nil
}

// Get retrieves a workflow with its steps by ID. Returns nil, nil if not found.
func (r *Repository) Get(ctx context.Context, id string) (*Workflow, error) {
	var wf Workflow
	err := r.db.QueryRow(ctx, `
		SELECT id, name, description, favorite, created_at, updated_at
		FROM workflows WHERE id = $1
	`, id).Scan(&wf.ID, &wf.Name, &wf.Description, &wf.Favorite, &wf.CreatedAt, &wf.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get workflow: %w", err)
	}

	steps, err := r.loadSteps(ctx, wf.ID)
	if err != nil {
		return nil, err
	}
	wf.Steps = steps
	return &wf, nil
}

// GetByName retrieves a workflow by exact name. Returns nil, nil if not
// found. Used by the automation entry point, which addresses workflows by
// name rather than ID.
func (r *Repository) GetByName(ctx context.Context, name string) (*Workflow, error) {
	var id string
	err := r.db.QueryRow(ctx, `
		SELECT id FROM workflows WHERE name = $1
		ORDER BY created_at LIMIT 1
	`, name).Scan(&id)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get workflow by name: %w", err)
	}
	return r.Get(ctx, id)
}

// List returns all workflows with their steps, favorites first, then newest.
func (r *Repository) List(ctx context.Context) ([]Workflow, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, description, favorite, created_at, updated_at
		FROM workflows
		ORDER BY favorite DESC, created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()

	var workflows []Workflow
	for rows.Next() {
		var wf Workflow
		if err := rows.Scan(&wf.ID, &wf.Name, &wf.Description, &wf.Favorite, &wf.CreatedAt, &wf.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan workflow: %w", err)
		}
		workflows = append(workflows, wf)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range workflows {
		steps, err := r.loadSteps(ctx, workflows[i].ID)
		if err != nil {
			return nil, err
		}
		workflows[i].Steps = steps
	}
	return workflows, nil
}

// Create inserts a new workflow and its steps, renormalizing step order to
// 0..N-1 in the given sequence.
func (r *Repository) Create(ctx context.Context, req SaveWorkflowRequest) (*Workflow, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin create workflow: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO workflows (id, name, description, favorite, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
	`, id, req.Name, req.Description, req.Favorite, now)
	if err != nil {
		return nil, fmt.Errorf("create workflow: %w", err)
	}

	if err := insertSteps(ctx, tx, id, req.Steps); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit create workflow: %w", err)
	}
	return r.Get(ctx, id)
}

// Update replaces a workflow's metadata and steps. Returns nil, nil if the
// workflow does not exist.
func (r *Repository) Update(ctx context.Context, id string, req SaveWorkflowRequest) (*Workflow, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin update workflow: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE workflows
		SET name = $2, description = $3, favorite = $4, updated_at = NOW()
		WHERE id = $1
	`, id, req.Name, req.Description, req.Favorite)
	if err != nil {
		return nil, fmt.Errorf("update workflow: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, nil
	}

	if _, err := tx.Exec(ctx, `DELETE FROM workflow_steps WHERE workflow_id = $1`, id); err != nil {
		return nil, fmt.Errorf("replace workflow steps: %w", err)
	}
	if err := insertSteps(ctx, tx, id, req.Steps); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit update workflow: %w", err)
	}
	return r.Get(ctx, id)
}

// Delete removes a workflow; steps cascade. Returns false if not found.
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM workflows WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete workflow: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SetFavorite flips the favorite flag. Returns false if not found.
func (r *Repository) SetFavorite(ctx context.Context, id string, favorite bool) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE workflows SET favorite = $2, updated_at = NOW() WHERE id = $1
	`, id, favorite)
	if err != nil {
		return false, fmt.Errorf("set workflow favorite: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) loadSteps(ctx context.Context, workflowID string) ([]WorkflowStep, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, workflow_id, step_type, prompt, step_order, options
		FROM workflow_steps
		WHERE workflow_id = $1
		ORDER BY step_order
	`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("load workflow steps: %w", err)
	}
	defer rows.Close()

	var steps []WorkflowStep
	for rows.Next() {
		var step WorkflowStep
		var optionsJSON []byte
		if err := rows.Scan(&step.ID, &step.WorkflowID, &step.Type, &step.Prompt, &step.Order, &optionsJSON); err != nil {
			return nil, fmt.Errorf("scan workflow step: %w", err)
		}
		step.Options = DefaultAdvancedOptions()
		if err := json.Unmarshal(optionsJSON, &step.Options); err != nil {
			return nil, fmt.Errorf("unmarshal step options: %w", err)
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

func insertSteps(ctx context.Context, tx pgx.Tx, workflowID string, steps []WorkflowStep) error {
	for i, step := range steps {
		stepID := step.ID
		if stepID == "" {
			stepID = uuid.New().String()
		}
		optionsJSON, err := json.Marshal(step.Options.Normalize())
		if err != nil {
			return fmt.Errorf("marshal step options: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO workflow_steps (id, workflow_id, step_type, prompt, step_order, options)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, stepID, workflowID, step.Type, step.Prompt, i, optionsJSON)
		if err != nil {
			return fmt.Errorf("insert workflow step: %w", err)
		}
	}
	return nil
}

// InitDB creates all schemas and seeds initial data. Called from main on startup.
func InitDB(ctx context.Context, pool *pgxpool.Pool) error {
	repo := NewRepository(pool)
	if err := repo.InitSchema(ctx); err != nil {
		return err
	}
	return repo.Seed(ctx)
}

const sampleWorkflowID = "7f4a2e66-90c1-4f2e-9a0d-3b8f51c7d210"

var sampleSteps = []WorkflowStep{
	{
		ID:      "b1d86a3c-5f0e-4d7a-8c42-61e9f0aa1101",
		Type:    StepSummarize,
		Prompt:  "Summarize in at most three sentences.",
		Order:   0,
		Options: DefaultAdvancedOptions(),
	},
	{
		ID:      "b1d86a3c-5f0e-4d7a-8c42-61e9f0aa1102",
		Type:    StepTranslate,
		Prompt:  "Translate to Spanish.",
		Order:   1,
		Options: DefaultAdvancedOptions(),
	},
}
