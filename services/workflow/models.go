package workflow

import (
	"sort"
	"time"
)

// Workflow represents a persisted workflow definition: an ordered list of
// transformation steps plus metadata.
type Workflow struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Steps       []WorkflowStep `json:"steps"`
	Favorite    bool           `json:"favorite"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// WorkflowStep is one transformation step within a workflow. Order defines
// the execution sequence; it need not be contiguous.
type WorkflowStep struct {
	ID         string          `json:"id"`
	WorkflowID string          `json:"workflowId,omitempty"`
	Type       StepType        `json:"stepType"`
	Prompt     string          `json:"prompt"`
	Order      int             `json:"order"`
	Options    AdvancedOptions `json:"options"`
}

// SortedSteps returns the workflow's steps ordered ascending by Order,
// without mutating the workflow.
func (w *Workflow) SortedSteps() []WorkflowStep {
	steps := make([]WorkflowStep, len(w.Steps))
	copy(steps, w.Steps)
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Order < steps[j].Order })
	return steps
}

// Run status values.
const (
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// StepExecutionResult records the outcome of a single step within a run.
// Created once per step per run; never mutated afterwards.
type StepExecutionResult struct {
	StepID    string        `json:"stepId"`
	StepType  StepType      `json:"stepType"`
	Prompt    string        `json:"prompt"`
	Output    string        `json:"output"`
	Duration  time.Duration `json:"duration"`
	StartedAt time.Time     `json:"startedAt"`
	EndedAt   time.Time     `json:"endedAt"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

// WorkflowExecutionResult records the outcome of a full run. FinalOutput is
// the last successful step's output.
type WorkflowExecutionResult struct {
	ExecutionID   string                `json:"executionId"`
	WorkflowID    string                `json:"workflowId"`
	WorkflowName  string                `json:"workflowName"`
	InputText     string                `json:"inputText"`
	FinalOutput   string                `json:"finalOutput"`
	StepResults   []StepExecutionResult `json:"stepResults"`
	TotalDuration time.Duration         `json:"totalDuration"`
	StartedAt     time.Time             `json:"startedAt"`
	EndedAt       time.Time             `json:"endedAt"`
	Status        string                `json:"status"`
	Error         string                `json:"error,omitempty"`
}

// ExecuteRequest is the JSON body sent to execute a workflow by ID. A nil
// EnableNotifications defers to the stored preference.
type ExecuteRequest struct {
	InputText           string `json:"inputText"`
	EnableNotifications *bool  `json:"enableNotifications"`
}

// RunByNameRequest is the automation entry point body: resolve a workflow by
// name and execute it with the same contract as execute-by-id.
type RunByNameRequest struct {
	Name                string `json:"name"`
	InputText           string `json:"inputText"`
	EnableNotifications *bool  `json:"enableNotifications"`
}

// SaveWorkflowRequest is the JSON body for creating or updating a workflow.
type SaveWorkflowRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Steps       []WorkflowStep `json:"steps"`
	Favorite    bool           `json:"favorite"`
}
