package workflow

// ExecutionObserver receives step-level events during a streaming run. The
// engine invokes observers sequentially from its own loop, never
// concurrently, and always in step/chunk order: StepStarted(i) precedes any
// StepProgressed(i, ...), which precedes StepCompleted(i, ...), which
// precedes StepStarted(i+1). The index is the engine's authoritative
// position in the sorted step sequence.
type ExecutionObserver interface {
	StepStarted(index int, step WorkflowStep)
	StepProgressed(index int, step WorkflowStep, snapshot string)
	StepCompleted(index int, step WorkflowStep, result StepExecutionResult)
}
