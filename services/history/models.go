package history

import "time"

// StepSummary is the denormalized per-step record embedded in a history
// entry: enough to redisplay a past run without the originating steps.
type StepSummary struct {
	Name     string        `json:"name"`
	Output   string        `json:"output"`
	Duration time.Duration `json:"duration"`
	Success  bool          `json:"success"`
	Error    string        `json:"error,omitempty"`
}

// ExecutionHistory is a durable snapshot of one run. It copies the workflow
// id and name at run time instead of referencing the workflow, so it
// survives later workflow edits and deletion.
type ExecutionHistory struct {
	ID           string        `json:"id"`
	WorkflowID   string        `json:"workflowId"`
	WorkflowName string        `json:"workflowName"`
	ExecutedAt   time.Time     `json:"executedAt"`
	Duration     time.Duration `json:"duration"`
	Status       string        `json:"status"`
	InputText    string        `json:"inputText"`
	OutputText   string        `json:"outputText"`
	ErrorMessage string        `json:"errorMessage,omitempty"`
	Steps        []StepSummary `json:"steps"`
}
