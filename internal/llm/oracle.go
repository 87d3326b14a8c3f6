// Package llm provides the generative oracle that proposes bytebeat formulas.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Oracle proposes a formula given a prompt. The reply is raw model text;
// use CleanReply to extract the formula.
type Oracle interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config selects and configures an oracle backend.
type Config struct {
	Provider     string // "gemini" or "openai"
	Model        string
	APIKey       string
	BaseURL      string // openai only
	SystemPrompt string
	Temperature  float64
	Timeout      time.Duration
}

// New builds the oracle named by cfg.Provider.
func New(ctx context.Context, cfg Config) (Oracle, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "gemini":
		return NewGemini(ctx, cfg)
	case "openai":
		return NewOpenAI(cfg), nil
	default:
		return nil, fmt.Errorf("unknown oracle provider: %s", cfg.Provider)
	}
}
