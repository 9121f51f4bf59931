package workflow

// StepType identifies the kind of transformation a step performs. It is
// stored as a raw string, so values read back from the database may predate
// or postdate the known set; unknown values degrade to no system prompt
// rather than erroring.
type StepType string

const (
	StepSummarize StepType = "summarize"
	StepTranslate StepType = "translate"
	StepExtract   StepType = "extract"
	StepRewrite   StepType = "rewrite"
	StepAnalyze   StepType = "analyze"
	StepCustom    StepType = "custom"
)

var systemPrompts = map[StepType]string{
	StepSummarize: "Summarize the following text concisely, preserving the key points.",
	StepTranslate: "Translate the following text as instructed, keeping the original meaning and tone.",
	StepExtract:   "Extract the requested information from the following text. Output only what was asked for.",
	StepRewrite:   "Rewrite the following text as instructed, preserving its meaning.",
	StepAnalyze:   "Analyze the following text and report your findings as instructed.",
	StepCustom:    "",
}

// SystemPrompt returns the fixed system prompt for the step type, or the
// empty string for custom and unrecognized types.
func (t StepType) SystemPrompt() string {
	return systemPrompts[t]
}

// Known reports whether the type is one of the built-in step kinds.
func (t StepType) Known() bool {
	_, ok := systemPrompts[t]
	return ok
}
