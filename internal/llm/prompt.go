package llm

import (
	"bytes"
	_ "embed"
	"fmt"
	"text/template"
)

//go:embed prompt.tmpl
var systemPromptText string

var systemPromptTmpl = template.Must(template.New("systemPrompt").Parse(systemPromptText))

// PromptData fills the system prompt.
type PromptData struct {
	MaxLength  int
	MinScore   float64
	MaxScore   float64
	Seconds    int
	SampleRate int
}

// LastT is the final time index that is rendered and scored.
func (d PromptData) LastT() int {
	return d.Seconds*d.SampleRate - 1
}

// DefaultPromptData matches the default renderer and scorer settings.
func DefaultPromptData() PromptData {
	return PromptData{MaxLength: 20, MinScore: 0, MaxScore: 10, Seconds: 10, SampleRate: 16000}
}

// SystemPrompt renders the system instruction sent with every request.
func SystemPrompt(data PromptData) (string, error) {
	var buf bytes.Buffer
	if err := systemPromptTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render system prompt: %w", err)
	}
	return buf.String(), nil
}
