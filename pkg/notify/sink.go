package notify

import "time"

// Sink is a best-effort live-progress surface for workflow runs. Calls must
// never fail the run: implementations log delivery problems and move on.
type Sink interface {
	// Start signals that a run is beginning.
	Start(workflowName, executionID string, totalSteps int)
	// Update reports the current step and its live output. Progress is the
	// completed fraction in [0, 1].
	Update(stepIndex int, stepName, output string, progress float64, elapsed time.Duration)
	// End signals that the run finished with the given status.
	End(finalOutput, status string, elapsed time.Duration)
	// Cancel signals that the run was cancelled by the user.
	Cancel()
}

// NopSink discards all progress events.
type NopSink struct{}

func (NopSink) Start(string, string, int) {}

func (NopSink) Update(int, string, string, float64, time.Duration) {}

func (NopSink) End(string, string, time.Duration) {}

func (NopSink) Cancel() {}

// MultiSink fans every event out to each sink in order.
type MultiSink []Sink

func (m MultiSink) Start(name, id string, total int) {
	for _, s := range m {
		s.Start(name, id, total)
	}
}

func (m MultiSink) Update(index int, stepName, output string, progress float64, elapsed time.Duration) {
	for _, s := range m {
		s.Update(index, stepName, output, progress, elapsed)
	}
}

func (m MultiSink) End(finalOutput, status string, elapsed time.Duration) {
	for _, s := range m {
		s.End(finalOutput, status, elapsed)
	}
}

func (m MultiSink) Cancel() {
	for _, s := range m {
		s.Cancel()
	}
}
