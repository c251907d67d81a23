package sora

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cinegen/internal/domain"
	"cinegen/internal/providers/video"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Options configures the Sora adapter.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// Generator wraps the Sora video API. Unlike Veo and Kling this backend
// answers in one round trip, so outcomes always carry an immediate asset and
// Poll is never reached by the worker.
type Generator struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

type generationRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	Seconds int    `json:"seconds,omitempty"`
	Size    string `json:"size,omitempty"`
}

type generationResponse struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Data  []item `json:"data,omitempty"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type item struct {
	URL string `json:"url"`
}

// New constructs a Sora generator.
func New(opts Options) *Generator {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := opts.Model
	if model == "" {
		model = "sora-1.0"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &Generator{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
	}
}

func (g *Generator) Name() string {
	return "sora"
}

func (g *Generator) ModelID() string {
	return g.model
}

func (g *Generator) Available() bool {
	return g.apiKey != ""
}

func (g *Generator) Generate(ctx context.Context, req video.GenerateRequest) (*video.Outcome, error) {
	if !g.Available() {
		return nil, domain.ErrProviderUnavailable
	}

	payload := generationRequest{
		Model:   g.model,
		Prompt:  req.Prompt,
		Seconds: req.DurationSeconds,
		Size:    sizeForAspect(req.AspectRatio),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("sora: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/videos/generations", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("sora: create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sora: invoke api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("sora status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var decoded generationResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("sora: decode response: %w", err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("sora api error: %s", decoded.Error.Message)
	}

	url := decoded.URL
	if url == "" && len(decoded.Data) > 0 {
		url = decoded.Data[0].URL
	}
	if url == "" {
		return nil, fmt.Errorf("%w: sora response carries no video url", domain.ErrDecode)
	}

	return &video.Outcome{Asset: &video.Asset{
		URI:             url,
		MIMEType:        "video/mp4",
		DurationSeconds: req.DurationSeconds,
	}}, nil
}

// Poll is unreachable in practice because Generate returns immediate assets.
func (g *Generator) Poll(ctx context.Context, handle string) (*video.PollStatus, error) {
	return nil, fmt.Errorf("%w: sora generations complete synchronously", domain.ErrOperationNotFound)
}

func sizeForAspect(aspect string) string {
	switch strings.TrimSpace(aspect) {
	case "9:16":
		return "720x1280"
	case "1:1":
		return "1024x1024"
	default:
		return "1280x720"
	}
}

var _ video.Generator = (*Generator)(nil)
