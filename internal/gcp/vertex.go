package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/vertexai/genai"
)

// ModelSettings configures one GenerativeModel handle.
type ModelSettings struct {
	Name            string
	System          string
	Temperature     float32
	MaxOutputTokens int32
	JSON            bool
}

// VertexClient wraps the Vertex AI client and hands out pre-configured models.
type VertexClient struct {
	baseClient *genai.Client
}

// NewVertexClient creates a new client for the given project and region.
func NewVertexClient(ctx context.Context, projectID, region string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	return &VertexClient{baseClient: baseClient}, nil
}

// Model returns a GenerativeModel configured from s. Handles are cheap and are
// built per request so settings never leak between operations.
func (c *VertexClient) Model(s ModelSettings) *genai.GenerativeModel {
	model := c.baseClient.GenerativeModel(s.Name)
	if s.System != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(s.System)},
		}
	}
	model.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr(s.Temperature),
	}
	if s.MaxOutputTokens > 0 {
		model.GenerationConfig.MaxOutputTokens = genai.Ptr(s.MaxOutputTokens)
	}
	if s.JSON {
		// Force JSON output for structured operations.
		model.GenerationConfig.ResponseMIMEType = "application/json"
	}
	// Visa paperwork routinely mentions medical exams and criminal records.
	model.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockOnlyHigh},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockOnlyHigh},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockOnlyHigh},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockOnlyHigh},
	}
	return model
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}
