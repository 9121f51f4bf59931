package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"flowforge/api/pkg/notify"
	"flowforge/api/services/history"
	"flowforge/api/services/preferences"
)

// HistoryStore abstracts history persistence for the orchestrator.
type HistoryStore interface {
	Save(ctx context.Context, h *history.ExecutionHistory) error
}

// PreferencesSource provides the user's stored execution defaults.
type PreferencesSource interface {
	Get(ctx context.Context) (preferences.Preferences, error)
}

// Truncation length for live output shown in progress notifications.
const notifyOutputLimit = 200

// Orchestrator wraps the Engine with cross-cutting concerns the engine does
// not know about: best-effort progress notifications and unconditional
// persistence of a history record after every run that produced at least one
// step result. Notification and history failures never change the run's
// outcome.
type Orchestrator struct {
	engine *Engine
	store  HistoryStore
	prefs  PreferencesSource
	sink   notify.Sink

	mu  sync.Mutex
	run *runControl
}

// runControl identifies one in-flight run. Held by pointer so a finishing
// run can tell whether it is still the current one.
type runControl struct {
	cancel context.CancelFunc
}

// NewOrchestrator creates an Orchestrator. A nil sink disables notifications
// entirely; a nil prefs source falls back to the built-in defaults.
func NewOrchestrator(engine *Engine, store HistoryStore, prefs PreferencesSource, sink notify.Sink) *Orchestrator {
	if sink == nil {
		sink = notify.NopSink{}
	}
	return &Orchestrator{engine: engine, store: store, prefs: prefs, sink: sink}
}

// runObserver intercepts engine events to collect step results, drive the
// notification sink, and forward to the caller's observer.
type runObserver struct {
	forward  ExecutionObserver
	sink     notify.Sink
	notify   bool
	total    int
	runStart time.Time

	results []StepExecutionResult
}

func (o *runObserver) StepStarted(index int, step WorkflowStep) {
	if o.notify {
		o.sink.Update(index, stepName(step), "", float64(index)/float64(o.total), time.Since(o.runStart))
	}
	if o.forward != nil {
		o.forward.StepStarted(index, step)
	}
}

func (o *runObserver) StepProgressed(index int, step WorkflowStep, snapshot string) {
	if o.notify {
		o.sink.Update(index, stepName(step), truncate(snapshot, notifyOutputLimit), float64(index)/float64(o.total), time.Since(o.runStart))
	}
	if o.forward != nil {
		o.forward.StepProgressed(index, step, snapshot)
	}
}

func (o *runObserver) StepCompleted(index int, step WorkflowStep, result StepExecutionResult) {
	o.results = append(o.results, result)
	if o.notify {
		o.sink.Update(index, stepName(step), truncate(result.Output, notifyOutputLimit), float64(index+1)/float64(o.total), time.Since(o.runStart))
	}
	if o.forward != nil {
		o.forward.StepCompleted(index, step, result)
	}
}

// ExecuteWorkflow runs the workflow through the engine, notifying the
// progress sink when enabled and persisting a history record afterwards.
// Stored preferences supply the generation options for steps without their
// own overrides, and the notification default when the request leaves
// enableNotifications unset. Engine errors are re-raised unchanged; partial
// step results reach the caller only through the persisted history.
func (o *Orchestrator) ExecuteWorkflow(ctx context.Context, wf *Workflow, inputText string, enableNotifications *bool, obs ExecutionObserver) (*WorkflowExecutionResult, error) {
	// Reject before any notification lifecycle, so a rejected run never
	// shows a spurious "started" state.
	if len(wf.Steps) == 0 {
		return nil, ErrNoSteps
	}
	if strings.TrimSpace(inputText) == "" {
		return nil, ErrEmptyInput
	}

	prefs := o.loadPreferences(ctx)
	notifyEnabled := prefs.NotificationsEnabled
	if enableNotifications != nil {
		notifyEnabled = *enableNotifications
	}
	runWf := applyPreferenceDefaults(wf, prefs)

	runCtx, cancel := context.WithCancel(ctx)
	rc := &runControl{cancel: cancel}
	o.mu.Lock()
	o.run = rc
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		if o.run == rc {
			o.run = nil
		}
		o.mu.Unlock()
		cancel()
	}()

	runID := uuid.New().String()
	runStart := time.Now()

	if notifyEnabled {
		o.sink.Start(wf.Name, runID, len(wf.Steps))
	}

	tracker := &runObserver{
		forward:  obs,
		sink:     o.sink,
		notify:   notifyEnabled,
		total:    len(wf.Steps),
		runStart: runStart,
	}

	result, err := o.engine.ExecuteStreaming(runCtx, runWf, inputText, tracker)
	elapsed := time.Since(runStart)

	if err != nil {
		status := StatusFailed
		if errors.Is(err, ErrCancelled) {
			status = StatusCancelled
		}
		if notifyEnabled {
			o.sink.End(err.Error(), status, elapsed)
		}
		o.persistFailure(wf, inputText, tracker.results, runStart, elapsed, status, err)
		return nil, err
	}

	if notifyEnabled {
		o.sink.End(truncate(result.FinalOutput, notifyOutputLimit), StatusSuccess, elapsed)
	}
	o.persist(historyFromResult(result))
	return result, nil
}

// CancelExecution cancels the in-flight run, if any, and asynchronously
// flips the notification surface to a cancelled state. The run itself
// propagates ErrCancelled through its own error path.
func (o *Orchestrator) CancelExecution() {
	o.mu.Lock()
	rc := o.run
	o.mu.Unlock()

	if rc != nil {
		rc.cancel()
	}
	go o.sink.Cancel()
}

// loadPreferences fetches the stored execution defaults, degrading to the
// built-in defaults when no source is configured or the read fails.
func (o *Orchestrator) loadPreferences(ctx context.Context) preferences.Preferences {
	if o.prefs == nil {
		return preferences.Defaults()
	}
	p, err := o.prefs.Get(ctx)
	if err != nil {
		slog.Warn("Failed to load preferences, using defaults", "error", err)
		return preferences.Defaults()
	}
	return p
}

// applyPreferenceDefaults returns a copy of the workflow where steps without
// their own generation overrides carry the preferred ones instead.
func applyPreferenceDefaults(wf *Workflow, p preferences.Preferences) *Workflow {
	runWf := *wf
	runWf.Steps = make([]WorkflowStep, len(wf.Steps))
	copy(runWf.Steps, wf.Steps)

	for i := range runWf.Steps {
		if runWf.Steps[i].Options.Enabled {
			continue
		}
		runWf.Steps[i].Options = AdvancedOptions{
			Enabled:      true,
			Temperature:  p.Temperature,
			MaxTokens:    p.MaxTokens,
			SamplingMode: p.SamplingMode,
		}.Normalize()
	}
	return &runWf
}

// persistFailure records a run that ended in an error, provided at least one
// step produced a result. The synthesized record's output is the last
// successful step's output.
func (o *Orchestrator) persistFailure(wf *Workflow, inputText string, results []StepExecutionResult, runStart time.Time, elapsed time.Duration, status string, runErr error) {
	if len(results) == 0 {
		return
	}

	lastOutput := ""
	for _, r := range results {
		if r.Success {
			lastOutput = r.Output
		}
	}

	o.persist(&history.ExecutionHistory{
		ID:           uuid.New().String(),
		WorkflowID:   wf.ID,
		WorkflowName: wf.Name,
		ExecutedAt:   runStart,
		Duration:     elapsed,
		Status:       status,
		InputText:    inputText,
		OutputText:   lastOutput,
		ErrorMessage: runErr.Error(),
		Steps:        stepSummaries(results),
	})
}

func (o *Orchestrator) persist(h *history.ExecutionHistory) {
	// History writes run on a background context with their own deadline:
	// the run context may already be cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := o.store.Save(ctx, h); err != nil {
		slog.Error("Failed to persist execution history", "workflowId", h.WorkflowID, "status", h.Status, "error", err)
	}
}

func historyFromResult(result *WorkflowExecutionResult) *history.ExecutionHistory {
	return &history.ExecutionHistory{
		ID:           result.ExecutionID,
		WorkflowID:   result.WorkflowID,
		WorkflowName: result.WorkflowName,
		ExecutedAt:   result.StartedAt,
		Duration:     result.TotalDuration,
		Status:       result.Status,
		InputText:    result.InputText,
		OutputText:   result.FinalOutput,
		Steps:        stepSummaries(result.StepResults),
	}
}

func stepSummaries(results []StepExecutionResult) []history.StepSummary {
	summaries := make([]history.StepSummary, len(results))
	for i, r := range results {
		summaries[i] = history.StepSummary{
			Name:     stepLabel(r.StepType),
			Output:   r.Output,
			Duration: r.Duration,
			Success:  r.Success,
			Error:    r.Error,
		}
	}
	return summaries
}

func stepName(step WorkflowStep) string {
	return stepLabel(step.Type)
}

func stepLabel(t StepType) string {
	if !t.Known() {
		return string(t)
	}
	return strings.ToUpper(string(t)[:1]) + string(t)[1:]
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
