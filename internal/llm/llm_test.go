package llm

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

// fakeLLM is a model.LLM that replays canned responses.
type fakeLLM struct {
	responses []*model.LLMResponse
	err       error
	lastReq   *model.LLMRequest
}

func (f *fakeLLM) Name() string { return "fake-model" }

func (f *fakeLLM) GenerateContent(ctx context.Context, req *model.LLMRequest, stream bool) iter.Seq2[*model.LLMResponse, error] {
	f.lastReq = req
	return func(yield func(*model.LLMResponse, error) bool) {
		if f.err != nil {
			yield(nil, f.err)
			return
		}
		for _, r := range f.responses {
			if !yield(r, nil) {
				return
			}
		}
	}
}

func textResponse(parts ...*genai.Part) *model.LLMResponse {
	return &model.LLMResponse{Content: &genai.Content{Role: genai.RoleModel, Parts: parts}}
}

func TestGemini_Generate(t *testing.T) {
	fake := &fakeLLM{responses: []*model.LLMResponse{
		textResponse(&genai.Part{Text: "thinking...", Thought: true}, &genai.Part{Text: "t*(t>>"}),
		textResponse(&genai.Part{Text: "5|t>>8)"}),
	}}
	g := NewGeminiFromModel(fake, "be brief", 0.7)

	got, err := g.Generate(context.Background(), "Your Bytebeat:")
	require.NoError(t, err)
	assert.Equal(t, "t*(t>>5|t>>8)", got)

	require.NotNil(t, fake.lastReq)
	assert.Equal(t, "fake-model", fake.lastReq.Model)
	require.Len(t, fake.lastReq.Contents, 1)
	assert.Equal(t, "Your Bytebeat:", fake.lastReq.Contents[0].Parts[0].Text)
	require.NotNil(t, fake.lastReq.Config.SystemInstruction)
	assert.Equal(t, "be brief", fake.lastReq.Config.SystemInstruction.Parts[0].Text)
	assert.InDelta(t, 0.7, *fake.lastReq.Config.Temperature, 1e-6)
}

func TestGemini_GenerateErrors(t *testing.T) {
	boom := errors.New("quota exceeded")
	tests := []struct {
		name string
		fake *fakeLLM
	}{
		{"transport error", &fakeLLM{err: boom}},
		{"model error code", &fakeLLM{responses: []*model.LLMResponse{{ErrorCode: "SAFETY", ErrorMessage: "blocked"}}}},
		{"empty reply", &fakeLLM{responses: []*model.LLMResponse{{}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGeminiFromModel(tt.fake, "", 0).Generate(context.Background(), "p")
			assert.Error(t, err)
		})
	}
}

func TestNewGemini_RequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), Config{})
	assert.Error(t, err)
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(context.Background(), Config{Provider: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestOpenAI_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req openaiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req.Model)
		assert.InDelta(t, 0.7, req.Temperature, 1e-9)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "sys", req.Messages[0].Content)
		assert.Equal(t, "user", req.Messages[1].Role)
		assert.Equal(t, "History:\n1.0: t", req.Messages[1].Content)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"t^t>>3"}}]}`))
	}))
	defer srv.Close()

	o := NewOpenAI(Config{BaseURL: srv.URL + "/", APIKey: "sk-test", Model: "gpt-test", SystemPrompt: "sys", Temperature: 0.7})
	got, err := o.Generate(context.Background(), "History:\n1.0: t")
	require.NoError(t, err)
	assert.Equal(t, "t^t>>3", got)
}

func TestOpenAI_GenerateErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"api error", http.StatusOK, `{"error":{"message":"model not found"}}`},
		{"no choices", http.StatusOK, `{"choices":[]}`},
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewOpenAI(Config{BaseURL: srv.URL}).Generate(context.Background(), "p")
			assert.Error(t, err)
		})
	}
}

func TestCleanReply(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"t*(t>>5|t>>8)", "t*(t>>5|t>>8)"},
		{"  t^t>>3  \n", "t^t>>3"},
		{"\"t&t>>5\"", "t&t>>5"},
		{"`t>>4`", "t>>4"},
		{"```python\nt*2\n```", "t*2"},
		{"```\n\nt|t>>7\n```\nexplanation", "t|t>>7"},
		{"“t*3”", "t*3"},
		{"ｔ＊２", "t*2"},
		{"", ""},
		{"```\n```", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanReply(tt.raw), "CleanReply(%q)", tt.raw)
	}
}

func TestSystemPrompt_Golden(t *testing.T) {
	out, err := SystemPrompt(DefaultPromptData())
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "system_prompt", []byte(out))
}

func TestPromptData_LastT(t *testing.T) {
	assert.Equal(t, 159999, DefaultPromptData().LastT())
	assert.Equal(t, 7999, PromptData{Seconds: 1, SampleRate: 8000}.LastT())
}
