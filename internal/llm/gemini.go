package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/adk/model"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-2.0-flash"

// Gemini is an Oracle backed by an adk model.
type Gemini struct {
	llm         model.LLM
	system      string
	temperature float32
}

// NewGemini creates a Gemini oracle using the Gemini API backend.
func NewGemini(ctx context.Context, cfg Config) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	name := cfg.Model
	if name == "" {
		name = DefaultGeminiModel
	}
	llmModel, err := gemini.NewModel(ctx, name, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM model: %w", err)
	}
	return NewGeminiFromModel(llmModel, cfg.SystemPrompt, cfg.Temperature), nil
}

// NewGeminiFromModel wraps an existing model.
func NewGeminiFromModel(llm model.LLM, systemPrompt string, temperature float64) *Gemini {
	return &Gemini{llm: llm, system: systemPrompt, temperature: float32(temperature)}
}

// Generate sends prompt as a single user turn and concatenates the text
// parts of the reply.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	cfg := &genai.GenerateContentConfig{Temperature: genai.Ptr(g.temperature)}
	if g.system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(g.system, genai.RoleUser)
	}
	req := &model.LLMRequest{
		Model:    g.llm.Name(),
		Contents: genai.Text(prompt),
		Config:   cfg,
	}

	var sb strings.Builder
	for resp, err := range g.llm.GenerateContent(ctx, req, false) {
		if err != nil {
			return "", fmt.Errorf("failed to generate content: %w", err)
		}
		if resp == nil {
			continue
		}
		if resp.ErrorCode != "" {
			return "", fmt.Errorf("model error %s: %s", resp.ErrorCode, resp.ErrorMessage)
		}
		if resp.Content == nil {
			continue
		}
		for _, part := range resp.Content.Parts {
			if part.Thought {
				continue
			}
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("model returned no text")
	}
	return sb.String(), nil
}

var _ Oracle = (*Gemini)(nil)
