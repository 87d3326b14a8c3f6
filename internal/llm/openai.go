package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/easeaico/bytebeat-evolver/internal/httpjson"
)

const (
	DefaultOpenAIModel   = "gpt-4o-mini"
	DefaultOpenAIBaseURL = "https://api.openai.com"
)

// OpenAI is an Oracle speaking the chat completions protocol. Any
// compatible server can be targeted through BaseURL.
type OpenAI struct {
	baseURL     string
	apiKey      string
	model       string
	system      string
	temperature float64
	client      *httpjson.Client
}

type openaiRequest struct {
	Model       string          `json:"model"`
	Temperature float64         `json:"temperature"`
	Messages    []openaiMessage `json:"messages"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// NewOpenAI creates an OpenAI-compatible oracle.
func NewOpenAI(cfg Config) *OpenAI {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	name := cfg.Model
	if name == "" {
		name = DefaultOpenAIModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAI{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       name,
		system:      cfg.SystemPrompt,
		temperature: cfg.Temperature,
		client:      httpjson.New(timeout),
	}
}

// Generate sends the system prompt and prompt and returns the first choice.
func (c *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	req := openaiRequest{Model: c.model, Temperature: c.temperature}
	if c.system != "" {
		req.Messages = append(req.Messages, openaiMessage{Role: "system", Content: c.system})
	}
	req.Messages = append(req.Messages, openaiMessage{Role: "user", Content: prompt})

	headers := map[string]string{}
	if c.apiKey != "" {
		headers["Authorization"] = "Bearer " + c.apiKey
	}

	var resp openaiResponse
	if err := c.client.Post(ctx, c.baseURL+"/v1/chat/completions", req, headers, &resp); err != nil {
		return "", fmt.Errorf("failed to call chat completions: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("openai API error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

var _ Oracle = (*OpenAI)(nil)
