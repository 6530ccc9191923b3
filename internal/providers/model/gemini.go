package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	geminiBackendName    = "gemini"
	geminiDefaultTimeout = 20 * time.Second
)

type GeminiOptions struct {
	APIKey      string
	Model       string
	BaseURL     string
	CostPerCall float64
	HTTPClient  *http.Client
}

// GeminiBackend competes in prompt generation via the Gemini text API.
type GeminiBackend struct {
	apiKey  string
	model   string
	baseURL string
	cost    float64
	client  *http.Client
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature    float64 `json:"temperature,omitempty"`
	CandidateCount int     `json:"candidateCount,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func NewGeminiBackend(opts GeminiOptions) (*GeminiBackend, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("gemini api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: geminiDefaultTimeout}
	}
	return &GeminiBackend{
		apiKey:  strings.TrimSpace(opts.APIKey),
		model:   model,
		baseURL: baseURL,
		cost:    opts.CostPerCall,
		client:  client,
	}, nil
}

func (g *GeminiBackend) Name() string { return geminiBackendName }

func (g *GeminiBackend) DeclaredCost() float64 { return g.cost }

func (g *GeminiBackend) GeneratePrompt(ctx context.Context, metaPrompt string) (string, error) {
	payload := geminiRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: metaPrompt}},
		}},
		GenerationConfig: &geminiGenerationConfig{
			Temperature:    0.6,
			CandidateCount: 1,
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return "", fatalErr(geminiBackendName, fmt.Errorf("encode request: %w", err))
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint(), &buf)
	if err != nil {
		return "", fatalErr(geminiBackendName, fmt.Errorf("build request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", transportErr(geminiBackendName, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return "", classifyStatus(geminiBackendName, resp.StatusCode, fmt.Errorf("gemini status %d", resp.StatusCode))
	}
	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", malformedErr(geminiBackendName, fmt.Errorf("decode response: %w", err))
	}
	text := g.extractText(out)
	if text == "" {
		return "", malformedErr(geminiBackendName, errors.New("empty response"))
	}
	return cleanPromptText(text), nil
}

func (g *GeminiBackend) endpoint() string {
	return fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, url.PathEscape(g.model))
}

func (g *GeminiBackend) extractText(resp geminiResponse) string {
	for _, cand := range resp.Candidates {
		for _, part := range cand.Content.Parts {
			if strings.TrimSpace(part.Text) != "" {
				return part.Text
			}
		}
	}
	return ""
}
