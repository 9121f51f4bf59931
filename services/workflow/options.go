package workflow

import "flowforge/api/pkg/llm"

// Sampling modes for model generation.
const (
	SamplingGreedy = "greedy"
	SamplingRandom = "random"
)

// AdvancedOptions holds per-step generation parameters. They apply to the
// model call only when Enabled is true; otherwise the client defaults apply.
type AdvancedOptions struct {
	Enabled      bool    `json:"enabled"`
	Temperature  float64 `json:"temperature"`
	MaxTokens    int     `json:"maxTokens"`
	SamplingMode string  `json:"samplingMode"`
}

// DefaultAdvancedOptions returns the disabled default parameter set.
func DefaultAdvancedOptions() AdvancedOptions {
	return AdvancedOptions{
		Enabled:      false,
		Temperature:  0.7,
		MaxTokens:    500,
		SamplingMode: SamplingRandom,
	}
}

// Normalize clamps the options into their valid ranges: temperature to
// [0, 2], max tokens to at least 1, and the sampling mode to a known value.
func (o AdvancedOptions) Normalize() AdvancedOptions {
	if o.Temperature < 0 {
		o.Temperature = 0
	}
	if o.Temperature > 2 {
		o.Temperature = 2
	}
	if o.MaxTokens < 1 {
		o.MaxTokens = 500
	}
	if o.SamplingMode != SamplingGreedy && o.SamplingMode != SamplingRandom {
		o.SamplingMode = SamplingRandom
	}
	return o
}

// llmOptions converts the step options into model call options, or nil when
// overrides are disabled.
func (o AdvancedOptions) llmOptions() *llm.Options {
	if !o.Enabled {
		return nil
	}
	n := o.Normalize()
	return &llm.Options{
		Temperature: n.Temperature,
		MaxTokens:   n.MaxTokens,
		Greedy:      n.SamplingMode == SamplingGreedy,
	}
}
