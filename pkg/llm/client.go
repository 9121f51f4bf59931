package llm

import (
	"context"
	"errors"
)

// Client errors. ExecutionError carries the model's failure message; the
// sentinels cover the availability and protocol failure kinds.
var (
	// ErrUnavailable indicates the model server cannot be reached or has no
	// loaded model.
	ErrUnavailable = errors.New("model unavailable")
	// ErrInvalidResponse indicates the model server returned a payload that
	// could not be interpreted.
	ErrInvalidResponse = errors.New("invalid model response")
)

// ExecutionError reports a model-side generation failure.
type ExecutionError struct {
	Message string
}

func (e *ExecutionError) Error() string { return "model execution failed: " + e.Message }

// Options holds generation parameters for a single model call. A nil
// *Options means the client's defaults apply.
type Options struct {
	Temperature float64
	MaxTokens   int
	Greedy      bool
}

// StreamFunc is called for each accumulated snapshot of a streaming
// generation. The snapshot is the full text produced so far, not a delta.
// Returning a non-nil error aborts the stream and propagates to the caller.
type StreamFunc func(snapshot string) error

// Client is a language model invocation interface: one completed text per
// call, or a finite stream of growing snapshots.
type Client interface {
	IsAvailable(ctx context.Context) bool
	Execute(ctx context.Context, prompt string, opts *Options) (string, error)
	ExecuteStreaming(ctx context.Context, prompt string, opts *Options, fn StreamFunc) error
}
