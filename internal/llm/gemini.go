package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

// GeminiClient calls the Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// GeminiConfig configures a GeminiClient.
type GeminiConfig struct {
	// APIKey may be empty; the SDK then reads GEMINI_API_KEY / GOOGLE_API_KEY.
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint.
	BaseURL string
}

// NewGeminiClient creates a Gemini client.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiClient{client: client, model: cfg.Model}, nil
}

// Generate sends one GenerateContent call at temperature 0.
func (g *GeminiClient) Generate(ctx context.Context, req Request) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned no text")
	}
	return text, nil
}

// Model returns the model name.
func (g *GeminiClient) Model() string {
	return g.model
}
