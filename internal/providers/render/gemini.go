package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"net/http"
	"net/url"
	"strings"
	"time"

	_ "image/jpeg"
	_ "image/png"

	"assetforge/internal/domain"
	"assetforge/internal/pipeline"
)

const (
	geminiRendererName   = "gemini-image"
	geminiDefaultTimeout = 60 * time.Second
)

type GeminiOptions struct {
	APIKey      string
	Model       string
	BaseURL     string
	CostPerCall float64
	HTTPClient  *http.Client
}

// GeminiRenderer renders artifacts through the Gemini image API.
type GeminiRenderer struct {
	apiKey  string
	model   string
	baseURL string
	cost    float64
	client  *http.Client
}

type geminiGenerateRequest struct {
	Contents   []geminiContent   `json:"contents"`
	Tools      []geminiTool      `json:"tools,omitempty"`
	ToolConfig *geminiToolConfig `json:"tool_config,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiTool struct {
	ImageGeneration *geminiImageTool `json:"image_generation,omitempty"`
}

type geminiImageTool struct{}

type geminiToolConfig struct {
	ImageGenerationConfig *geminiImageGenerationConfig `json:"image_generation_config,omitempty"`
}

type geminiImageGenerationConfig struct {
	NumberOfImages int `json:"number_of_images,omitempty"`
}

type geminiGenerateResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

func NewGeminiRenderer(opts GeminiOptions) (*GeminiRenderer, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("gemini api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gemini-2.5-flash-image"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: geminiDefaultTimeout}
	}
	return &GeminiRenderer{
		apiKey:  strings.TrimSpace(opts.APIKey),
		model:   model,
		baseURL: baseURL,
		cost:    opts.CostPerCall,
		client:  client,
	}, nil
}

func (g *GeminiRenderer) Name() string { return geminiRendererName }

func (g *GeminiRenderer) CostPerCall() float64 { return g.cost }

func (g *GeminiRenderer) Render(ctx context.Context, prompt string, params pipeline.RenderParams) (pipeline.Artifact, error) {
	payload := geminiGenerateRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: buildRenderPrompt(prompt, params)}},
		}},
		Tools: []geminiTool{{ImageGeneration: &geminiImageTool{}}},
		ToolConfig: &geminiToolConfig{
			ImageGenerationConfig: &geminiImageGenerationConfig{NumberOfImages: 1},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return pipeline.Artifact{}, fatalErr(geminiRendererName, fmt.Errorf("marshal request: %w", err))
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, url.PathEscape(g.model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return pipeline.Artifact{}, fatalErr(geminiRendererName, fmt.Errorf("build request: %w", err))
	}
	q := httpReq.URL.Query()
	q.Set("key", g.apiKey)
	httpReq.URL.RawQuery = q.Encode()
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return pipeline.Artifact{}, transportErr(geminiRendererName, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		var apiErr geminiErrorResponse
		detail := fmt.Errorf("gemini status %d", resp.StatusCode)
		if derr := json.NewDecoder(resp.Body).Decode(&apiErr); derr == nil && apiErr.Error.Message != "" {
			detail = fmt.Errorf("gemini status %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return pipeline.Artifact{}, classifyStatus(geminiRendererName, resp.StatusCode, detail)
	}

	var out geminiGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return pipeline.Artifact{}, malformedErr(geminiRendererName, fmt.Errorf("decode response: %w", err))
	}
	for _, cand := range out.Candidates {
		for _, part := range cand.Content.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return pipeline.Artifact{}, malformedErr(geminiRendererName, fmt.Errorf("decode inline data: %w", err))
			}
			format := part.InlineData.MimeType
			if format == "" {
				format = "image/png"
			}
			w, h := decodeImageDimensions(data)
			if w == 0 || h == 0 {
				w, h = normalizeAspect(params.AspectRatio)
			}
			return pipeline.Artifact{Data: data, Format: format, Width: w, Height: h}, nil
		}
	}
	return pipeline.Artifact{}, malformedErr(geminiRendererName, errors.New("no image content returned"))
}

func buildRenderPrompt(prompt string, params pipeline.RenderParams) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(prompt))
	if aspect := strings.TrimSpace(params.AspectRatio); aspect != "" {
		fmt.Fprintf(&b, "\nAspect ratio: %s", aspect)
	}
	if len(params.Palette) > 0 {
		fmt.Fprintf(&b, "\nColor palette: %s", strings.Join(params.Palette, ", "))
	}
	if params.Kind != "" {
		fmt.Fprintf(&b, "\nAsset kind: %s", params.Kind)
	}
	return b.String()
}

func decodeImageDimensions(data []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

func classifyStatus(backend string, status int, err error) error {
	kind := domain.ErrorKindFatal
	if status == http.StatusTooManyRequests || status >= 500 {
		kind = domain.ErrorKindRetryable
	}
	return &domain.BackendError{Backend: backend, Kind: kind, Completed: true, Err: err}
}

func transportErr(backend string, err error) error {
	return &domain.BackendError{Backend: backend, Kind: domain.ErrorKindRetryable, Completed: false, Err: err}
}

func malformedErr(backend string, err error) error {
	return &domain.BackendError{Backend: backend, Kind: domain.ErrorKindRetryable, Completed: true, Err: err}
}

func fatalErr(backend string, err error) error {
	return &domain.BackendError{Backend: backend, Kind: domain.ErrorKindFatal, Completed: false, Err: err}
}
