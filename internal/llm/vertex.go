package llm

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"github.com/Lllllllleong/imigraflow/internal/config"
	"github.com/Lllllllleong/imigraflow/internal/gcp"
)

// VertexProvider calls Gemini through Vertex AI using application default
// credentials. The "credential" is the project id.
type VertexProvider struct {
	client *gcp.VertexClient
	cfg    config.LLMConfig
}

func NewVertexProvider(ctx context.Context, cfg config.LLMConfig, projectID string) (*VertexProvider, error) {
	client, err := gcp.NewVertexClient(ctx, projectID, cfg.VertexRegion)
	if err != nil {
		return nil, fmt.Errorf("failed to create vertex client: %w", err)
	}
	return &VertexProvider{client: client, cfg: cfg}, nil
}

func (p *VertexProvider) Generate(ctx context.Context, req Request) (string, error) {
	turns := alternate(req.Turns)
	if len(turns) == 0 || turns[len(turns)-1].Role != RoleUser {
		return "", ErrNoUserTurn
	}

	model := p.client.Model(gcp.ModelSettings{
		Name:            modelFor(p.cfg, req),
		System:          req.System,
		Temperature:     req.Temperature,
		MaxOutputTokens: req.MaxOutputTokens,
		JSON:            req.JSON,
	})

	cs := model.StartChat()
	for _, t := range turns[:len(turns)-1] {
		cs.History = append(cs.History, &genai.Content{
			Role:  string(t.Role),
			Parts: vertexParts(t),
		})
	}

	resp, err := cs.SendMessage(ctx, vertexParts(turns[len(turns)-1])...)
	if err != nil {
		return "", fmt.Errorf("failed to generate content from vertex: %w", err)
	}
	return vertexText(resp)
}

func (p *VertexProvider) Close() error { return p.client.Close() }

func vertexParts(t Turn) []genai.Part {
	parts := make([]genai.Part, 0, len(t.Attachments)+1)
	if t.Text != "" {
		parts = append(parts, genai.Text(t.Text))
	}
	for _, a := range t.Attachments {
		parts = append(parts, genai.Blob{MIMEType: a.MIMEType, Data: a.Data})
	}
	return parts
}

func vertexText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
