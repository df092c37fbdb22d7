package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/Lllllllleong/imigraflow/internal/config"
)

// GeminiProvider calls the Gemini API with an API key.
type GeminiProvider struct {
	client *genai.Client
	cfg    config.LLMConfig
}

func NewGeminiProvider(ctx context.Context, cfg config.LLMConfig, apiKey string) (*GeminiProvider, error) {
	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiProvider{client: client, cfg: cfg}, nil
}

func (p *GeminiProvider) Generate(ctx context.Context, req Request) (string, error) {
	turns := alternate(req.Turns)
	if len(turns) == 0 || turns[len(turns)-1].Role != RoleUser {
		return "", ErrNoUserTurn
	}

	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		contents = append(contents, genai.NewContentFromParts(geminiParts(t), genai.Role(t.Role)))
	}

	gc := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(req.Temperature),
		MaxOutputTokens: req.MaxOutputTokens,
	}
	if req.System != "" {
		gc.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSON {
		gc.ResponseMIMEType = "application/json"
	}

	result, err := p.client.Models.GenerateContent(ctx, modelFor(p.cfg, req), contents, gc)
	if err != nil {
		return "", fmt.Errorf("failed to generate content from gemini: %w", err)
	}
	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Close is a no-op; the genai client holds no resources beyond its HTTP client.
func (p *GeminiProvider) Close() error { return nil }

func geminiParts(t Turn) []*genai.Part {
	parts := make([]*genai.Part, 0, len(t.Attachments)+1)
	if t.Text != "" {
		parts = append(parts, genai.NewPartFromText(t.Text))
	}
	for _, a := range t.Attachments {
		parts = append(parts, genai.NewPartFromBytes(a.Data, a.MIMEType))
	}
	return parts
}
