package workflow

// BuildPrompt maps a step and the current pipeline input into the literal
// prompt sent to the model. Step types with a system prompt prepend it;
// custom and unrecognized types fall back to the raw instruction + input
// concatenation, so stale stored type strings degrade gracefully.
func BuildPrompt(step WorkflowStep, currentInput string) string {
	system := step.Type.SystemPrompt()
	if system == "" {
		return step.Prompt + "\n\n" + currentInput
	}
	return system + "\n\n" + step.Prompt + "\n\n" + currentInput
}
