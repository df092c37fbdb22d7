package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/Lllllllleong/imigraflow/internal/config"
)

// OpenAIProvider talks to any OpenAI-compatible chat completions endpoint;
// the default configuration points it at Groq.
type OpenAIProvider struct {
	client openai.Client
	cfg    config.LLMConfig
}

func NewOpenAIProvider(cfg config.LLMConfig, apiKey string, opts ...option.RequestOption) *OpenAIProvider {
	base := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		base = append(base, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIProvider{
		client: openai.NewClient(append(base, opts...)...),
		cfg:    cfg,
	}
}

func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Turns)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, t := range req.Turns {
		switch t.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(t.Text))
		case RoleModel:
			messages = append(messages, openai.AssistantMessage(t.Text))
		default:
			messages = append(messages, openAIUserMessage(t))
		}
	}

	params := openai.ChatCompletionNewParams{
		Messages:    messages,
		Model:       shared.ChatModel(modelFor(p.cfg, req)),
		Temperature: openai.Float(float64(req.Temperature)),
	}
	if req.MaxOutputTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxOutputTokens))
	}
	if req.JSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (p *OpenAIProvider) Close() error { return nil }

// openAIUserMessage sends attachments as base64 data URLs next to the text.
func openAIUserMessage(t Turn) openai.ChatCompletionMessageParamUnion {
	if len(t.Attachments) == 0 {
		return openai.UserMessage(t.Text)
	}
	parts := []openai.ChatCompletionContentPartUnionParam{openai.TextContentPart(t.Text)}
	for _, a := range t.Attachments {
		url := "data:" + a.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(a.Data)
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: url}))
	}
	return openai.UserMessage(parts)
}
