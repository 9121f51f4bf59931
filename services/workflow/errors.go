package workflow

import (
	"errors"
	"fmt"
)

// Precondition and run-level errors surfaced by the engine. All are terminal
// for the run; nothing is retried.
var (
	// ErrNoSteps is returned when the workflow has no steps to execute.
	ErrNoSteps = errors.New("workflow has no steps")
	// ErrEmptyInput is returned when the input text is empty or whitespace.
	ErrEmptyInput = errors.New("input text is empty")
	// ErrModelUnavailable is returned when the language model does not
	// report itself available.
	ErrModelUnavailable = errors.New("language model is unavailable")
	// ErrCancelled is returned when a run is cancelled cooperatively.
	ErrCancelled = errors.New("execution cancelled")
)

// StepError reports that a specific step's model call failed, aborting the
// remaining pipeline.
type StepError struct {
	Index int
	Step  WorkflowStep
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s) failed: %v", e.Index, e.Step.Type, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
