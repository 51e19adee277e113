package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Aman-CERP/claridoc/pkg/version"
)

const (
	// DefaultOllamaHost is the default Ollama API endpoint.
	DefaultOllamaHost = "http://localhost:11434"
	// DefaultOllamaModel is used when no model is configured.
	DefaultOllamaModel = "qwen2.5:3b"
)

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Format  string         `json:"format,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// OllamaClient calls a local Ollama server's /api/generate.
type OllamaClient struct {
	client *http.Client
	host   string
	model  string
}

// NewOllamaClient creates an Ollama client.
func NewOllamaClient(host, model string) *OllamaClient {
	if host == "" {
		host = DefaultOllamaHost
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	return &OllamaClient{
		client: &http.Client{Transport: &http.Transport{IdleConnTimeout: 30 * time.Second}},
		host:   strings.TrimRight(host, "/"),
		model:  model,
	}
}

// Generate sends one non-streaming generate call at temperature 0.
func (o *OllamaClient) Generate(ctx context.Context, req Request) (string, error) {
	body := generateRequest{
		Model:   o.model,
		Prompt:  req.Prompt,
		System:  req.System,
		Options: map[string]any{"temperature": 0},
	}
	if req.JSON {
		body.Format = "json"
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.host+"/api/generate", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", version.UserAgent())

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama generate: status %d: %s", resp.StatusCode, string(respBody))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return strings.TrimSpace(out.Response), nil
}

// Model returns the model name.
func (o *OllamaClient) Model() string {
	return o.model
}
