package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Lllllllleong/imigraflow/internal/config"
)

const completionBody = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "llama-3.3-70b-versatile",
  "choices": [{
    "index": 0,
    "message": {"role": "assistant", "content": "  Olá, vamos começar.  "},
    "finish_reason": "stop"
  }]
}`

type capturedRequest struct {
	Model          string            `json:"model"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int64             `json:"max_tokens"`
	ResponseFormat map[string]string `json:"response_format"`
	Messages       []struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	} `json:"messages"`
}

func newTestServer(t *testing.T, status int, body string) (*httptest.Server, *capturedRequest, *int32) {
	t.Helper()
	var captured capturedRequest
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.NoError(t, json.Unmarshal(raw, &captured))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &captured, &calls
}

func testConfig(baseURL string) config.LLMConfig {
	return config.LLMConfig{
		Provider:    config.ProviderOpenAI,
		BaseURL:     baseURL + "/",
		FastModel:   "llama-3.3-70b-versatile",
		VisionModel: "llama-3.2-11b-vision-preview",
	}
}

func TestOpenAIProvider_Chat(t *testing.T) {
	srv, captured, _ := newTestServer(t, http.StatusOK, completionBody)
	p := NewOpenAIProvider(testConfig(srv.URL), "test-key")

	text, err := p.Generate(context.Background(), Request{
		System: "sistema",
		Turns: []Turn{
			{Role: RoleModel, Text: "intro"},
			{Role: RoleSystem, Text: "[SYSTEM TRIGGER: passo]"},
			{Role: RoleUser, Text: "oi"},
		},
		Temperature:     0.5,
		MaxOutputTokens: 2048,
	})

	require.NoError(t, err)
	assert.Equal(t, "Olá, vamos começar.", text)
	assert.Equal(t, "llama-3.3-70b-versatile", captured.Model)
	assert.InDelta(t, 0.5, captured.Temperature, 1e-9)
	assert.Equal(t, int64(2048), captured.MaxTokens)
	assert.Nil(t, captured.ResponseFormat)

	roles := make([]string, 0, len(captured.Messages))
	for _, m := range captured.Messages {
		roles = append(roles, m.Role)
	}
	assert.Equal(t, []string{"system", "assistant", "system", "user"}, roles)
}

func TestOpenAIProvider_VisionAndJSON(t *testing.T) {
	srv, captured, _ := newTestServer(t, http.StatusOK, completionBody)
	p := NewOpenAIProvider(testConfig(srv.URL), "test-key")

	_, err := p.Generate(context.Background(), Request{
		Turns: []Turn{{
			Role:        RoleUser,
			Text:        "Analise",
			Attachments: []Attachment{{MIMEType: "image/png", Data: []byte("png")}},
		}},
		JSON: true,
		Tier: TierVision,
	})
	require.NoError(t, err)

	assert.Equal(t, "llama-3.2-11b-vision-preview", captured.Model)
	assert.Equal(t, "json_object", captured.ResponseFormat["type"])
	require.Len(t, captured.Messages, 1)
	assert.Contains(t, string(captured.Messages[0].Content), "data:image/png;base64,cG5n")
}

func TestOpenAIProvider_NoRetries(t *testing.T) {
	srv, _, calls := newTestServer(t, http.StatusInternalServerError, `{"error":{"message":"boom"}}`)
	p := NewOpenAIProvider(testConfig(srv.URL), "test-key")

	_, err := p.Generate(context.Background(), Request{Turns: []Turn{{Role: RoleUser, Text: "oi"}}})

	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestOpenAIProvider_EmptyChoice(t *testing.T) {
	srv, _, _ := newTestServer(t, http.StatusOK, `{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`)
	p := NewOpenAIProvider(testConfig(srv.URL), "test-key")

	_, err := p.Generate(context.Background(), Request{Turns: []Turn{{Role: RoleUser, Text: "oi"}}})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestConnector_ReadsCredentialPerCall(t *testing.T) {
	srv, _, _ := newTestServer(t, http.StatusOK, completionBody)
	cfg := testConfig(srv.URL)
	cfg.APIKeyEnv = "IMIGRA_TEST_LLM_KEY"
	connect := NewConnector(cfg, zaptest.NewLogger(t))

	t.Setenv("IMIGRA_TEST_LLM_KEY", "")
	_, err := connect(context.Background())
	assert.ErrorIs(t, err, ErrMissingCredential)

	t.Setenv("IMIGRA_TEST_LLM_KEY", "test-key")
	p, err := connect(context.Background())
	require.NoError(t, err)
	defer p.Close()

	text, err := p.Generate(context.Background(), Request{Turns: []Turn{{Role: RoleUser, Text: "oi"}}})
	require.NoError(t, err)
	assert.NotEmpty(t, text)
}

func TestConnector_UnknownProvider(t *testing.T) {
	t.Setenv("IMIGRA_TEST_LLM_KEY", "k")
	connect := NewConnector(config.LLMConfig{Provider: "bard", APIKeyEnv: "IMIGRA_TEST_LLM_KEY"}, zaptest.NewLogger(t))
	_, err := connect(context.Background())
	assert.ErrorContains(t, err, "unknown llm provider")
}
