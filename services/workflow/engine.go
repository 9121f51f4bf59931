package workflow

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"flowforge/api/pkg/llm"
)

// DefaultStepTimeout bounds a single model invocation so a stalled call
// cannot block cancellation indefinitely.
const DefaultStepTimeout = 2 * time.Minute

// Engine runs a workflow's steps sequentially against the language model,
// chaining each step's output into the next step's input. The engine holds
// no per-run state; cancellation is the run context's cancellation, so
// concurrent runs on one engine (with separate contexts) are safe.
type Engine struct {
	client      llm.Client
	stepTimeout time.Duration
}

// NewEngine creates an Engine backed by the given model client.
func NewEngine(client llm.Client) *Engine {
	return &Engine{client: client, stepTimeout: DefaultStepTimeout}
}

// SetStepTimeout overrides the per-step model call deadline.
func (e *Engine) SetStepTimeout(d time.Duration) {
	if d > 0 {
		e.stepTimeout = d
	}
}

// nopObserver lets the run loop invoke observer methods unconditionally.
type nopObserver struct{}

func (nopObserver) StepStarted(int, WorkflowStep) {}

func (nopObserver) StepProgressed(int, WorkflowStep, string) {}

func (nopObserver) StepCompleted(int, WorkflowStep, StepExecutionResult) {}

// Execute runs the workflow in batch mode: one completed text per step, no
// progress events.
func (e *Engine) Execute(ctx context.Context, wf *Workflow, input string) (*WorkflowExecutionResult, error) {
	return e.run(ctx, wf, input, nil, false)
}

// ExecuteStreaming runs the workflow in streaming mode, emitting step-level
// events to the observer as model output arrives. A nil observer is allowed.
func (e *Engine) ExecuteStreaming(ctx context.Context, wf *Workflow, input string, obs ExecutionObserver) (*WorkflowExecutionResult, error) {
	return e.run(ctx, wf, input, obs, true)
}

// run is the shared step loop. Preconditions are checked in order before any
// model call: steps present, input non-blank, model available.
func (e *Engine) run(ctx context.Context, wf *Workflow, input string, obs ExecutionObserver, streaming bool) (*WorkflowExecutionResult, error) {
	if len(wf.Steps) == 0 {
		return nil, ErrNoSteps
	}
	if strings.TrimSpace(input) == "" {
		return nil, ErrEmptyInput
	}
	if !e.client.IsAvailable(ctx) {
		return nil, ErrModelUnavailable
	}

	if obs == nil {
		obs = nopObserver{}
	}

	steps := wf.SortedSteps()
	runStart := time.Now()
	currentInput := input
	results := make([]StepExecutionResult, 0, len(steps))

	for i, step := range steps {
		// Cooperative cancellation at the step boundary. The interrupted
		// step records no result; already-collected results stand.
		if ctx.Err() != nil {
			return nil, ErrCancelled
		}

		obs.StepStarted(i, step)

		stepStart := time.Now()
		prompt := BuildPrompt(step, currentInput)

		output, err := e.invoke(ctx, prompt, step, obs, i, streaming)
		stepEnd := time.Now()

		if err != nil {
			if errors.Is(err, ErrCancelled) || ctx.Err() != nil {
				return nil, ErrCancelled
			}

			failed := StepExecutionResult{
				StepID:    step.ID,
				StepType:  step.Type,
				Prompt:    step.Prompt,
				Output:    "",
				Duration:  stepEnd.Sub(stepStart),
				StartedAt: stepStart,
				EndedAt:   stepEnd,
				Success:   false,
				Error:     err.Error(),
			}
			results = append(results, failed)
			obs.StepCompleted(i, step, failed)
			return nil, &StepError{Index: i, Step: step, Err: err}
		}

		completed := StepExecutionResult{
			StepID:    step.ID,
			StepType:  step.Type,
			Prompt:    step.Prompt,
			Output:    output,
			Duration:  stepEnd.Sub(stepStart),
			StartedAt: stepStart,
			EndedAt:   stepEnd,
			Success:   true,
		}
		results = append(results, completed)
		obs.StepCompleted(i, step, completed)

		currentInput = output
	}

	runEnd := time.Now()
	return &WorkflowExecutionResult{
		ExecutionID:   uuid.New().String(),
		WorkflowID:    wf.ID,
		WorkflowName:  wf.Name,
		InputText:     input,
		FinalOutput:   currentInput,
		StepResults:   results,
		TotalDuration: runEnd.Sub(runStart),
		StartedAt:     runStart,
		EndedAt:       runEnd,
		Status:        StatusSuccess,
	}, nil
}

// invoke performs a single model call under the step deadline. In streaming
// mode, cancellation is also polled at every snapshot.
func (e *Engine) invoke(ctx context.Context, prompt string, step WorkflowStep, obs ExecutionObserver, index int, streaming bool) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.stepTimeout)
	defer cancel()

	opts := step.Options.llmOptions()

	if !streaming {
		return e.client.Execute(callCtx, prompt, opts)
	}

	var lastOutput string
	err := e.client.ExecuteStreaming(callCtx, prompt, opts, func(snapshot string) error {
		if ctx.Err() != nil {
			return ErrCancelled
		}
		lastOutput = snapshot
		obs.StepProgressed(index, step, snapshot)
		return nil
	})
	if err != nil {
		return "", err
	}
	return lastOutput, nil
}
