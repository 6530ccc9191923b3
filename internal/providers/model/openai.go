package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	openAIBackendName    = "openai"
	openAIDefaultTimeout = 20 * time.Second
	defaultOpenAIModel   = "gpt-4o-mini"
)

type OpenAIOptions struct {
	APIKey       string
	Model        string
	BaseURL      string
	Organization string
	CostPerCall  float64
	HTTPClient   *http.Client
}

// OpenAIBackend competes in prompt generation via the OpenAI chat API.
type OpenAIBackend struct {
	apiKey       string
	model        string
	baseURL      string
	organization string
	cost         float64
	client       *http.Client
}

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func NewOpenAIBackend(opts OpenAIOptions) (*OpenAIBackend, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("openai api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: openAIDefaultTimeout}
	}
	return &OpenAIBackend{
		apiKey:       strings.TrimSpace(opts.APIKey),
		model:        coalesce(opts.Model, defaultOpenAIModel),
		baseURL:      baseURL,
		organization: strings.TrimSpace(opts.Organization),
		cost:         opts.CostPerCall,
		client:       client,
	}, nil
}

func (o *OpenAIBackend) Name() string { return openAIBackendName }

func (o *OpenAIBackend) DeclaredCost() float64 { return o.cost }

func (o *OpenAIBackend) GeneratePrompt(ctx context.Context, metaPrompt string) (string, error) {
	payload := openAIChatRequest{
		Model:       o.model,
		Temperature: 0.7,
		Messages: []openAIMessage{
			{Role: "system", Content: "You are an expert visual prompt writer. Respond with the image generation prompt only, no commentary."},
			{Role: "user", Content: metaPrompt},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return "", fatalErr(openAIBackendName, fmt.Errorf("encode request: %w", err))
	}
	endpoint := fmt.Sprintf("%s/chat/completions", o.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return "", fatalErr(openAIBackendName, fmt.Errorf("build request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	if o.organization != "" {
		httpReq.Header.Set("OpenAI-Organization", o.organization)
	}

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", transportErr(openAIBackendName, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return "", classifyStatus(openAIBackendName, resp.StatusCode, fmt.Errorf("openai status %d", resp.StatusCode))
	}
	var out openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", malformedErr(openAIBackendName, fmt.Errorf("decode response: %w", err))
	}
	if len(out.Choices) == 0 {
		return "", malformedErr(openAIBackendName, errors.New("no choices"))
	}
	text := cleanPromptText(out.Choices[0].Message.Content)
	if text == "" {
		return "", malformedErr(openAIBackendName, errors.New("empty response"))
	}
	return text, nil
}
