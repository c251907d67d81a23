package kling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/pkg/errors"

	"cinegen/internal/domain"
	"cinegen/internal/providers/video"
)

const defaultBaseURL = "https://api.klingai.com"

// Options configures the Kling adapter. Authentication uses an access/secret
// key pair; the adapter reports unavailable until both are present.
type Options struct {
	AccessKey  string
	SecretKey  string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// Generator wraps the Kling text-to-video API. Kling is always asynchronous:
// a submission returns a task id that must be polled until it succeeds or
// fails.
type Generator struct {
	accessKey  string
	secretKey  string
	baseURL    string
	model      string
	httpClient *http.Client
}

type submitRequest struct {
	Model       string `json:"model_name,omitempty"`
	Prompt      string `json:"prompt"`
	Mode        string `json:"mode,omitempty"`
	Duration    string `json:"duration,omitempty"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
}

type apiResponse struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Data    taskData `json:"data"`
}

type taskData struct {
	TaskID        string      `json:"task_id"`
	TaskStatus    string      `json:"task_status"`
	TaskStatusMsg string      `json:"task_status_msg"`
	TaskResult    *taskResult `json:"task_result,omitempty"`
}

type taskResult struct {
	Videos []taskVideo `json:"videos,omitempty"`
}

type taskVideo struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Duration string `json:"duration"`
}

// New constructs a Kling generator.
func New(opts Options) *Generator {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := opts.Model
	if model == "" {
		model = "kling-v1-6"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Generator{
		accessKey:  strings.TrimSpace(opts.AccessKey),
		secretKey:  strings.TrimSpace(opts.SecretKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
	}
}

func (g *Generator) Name() string {
	return "kling"
}

func (g *Generator) ModelID() string {
	return g.model
}

func (g *Generator) Available() bool {
	return g.accessKey != "" && g.secretKey != ""
}

// Generate submits a text-to-video task. Kling never answers with a finished
// asset inline, so the outcome always carries an operation handle.
func (g *Generator) Generate(ctx context.Context, req video.GenerateRequest) (*video.Outcome, error) {
	if !g.Available() {
		return nil, domain.ErrProviderUnavailable
	}

	// Kling only renders 5s or 10s clips.
	duration := "5"
	if req.DurationSeconds > 5 {
		duration = "10"
	}
	payload := submitRequest{
		Model:       g.model,
		Prompt:      req.Prompt,
		Mode:        modeForQuality(req.Quality),
		Duration:    duration,
		AspectRatio: req.AspectRatio,
	}

	var resp apiResponse
	if err := g.invoke(ctx, http.MethodPost, g.baseURL+"/v1/videos/text2video", payload, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, errors.Errorf("kling api error %d: %s", resp.Code, resp.Message)
	}
	if resp.Data.TaskID == "" {
		return nil, errors.Wrap(domain.ErrDecode, "kling submission returned no task id")
	}

	return &video.Outcome{Operation: &video.Operation{Handle: resp.Data.TaskID, Provider: "kling"}}, nil
}

// Poll fetches the task state. Kling task handles have a single form, so no
// two-phase resolution is needed here.
func (g *Generator) Poll(ctx context.Context, handle string) (*video.PollStatus, error) {
	if !g.Available() {
		return nil, domain.ErrProviderUnavailable
	}
	if strings.TrimSpace(handle) == "" {
		return nil, domain.ErrOperationNotFound
	}

	var resp apiResponse
	url := fmt.Sprintf("%s/v1/videos/text2video/%s", g.baseURL, handle)
	if err := g.invoke(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, errors.Errorf("kling api error %d: %s", resp.Code, resp.Message)
	}

	status := &video.PollStatus{Metadata: map[string]any{"task_status": resp.Data.TaskStatus}}
	switch resp.Data.TaskStatus {
	case "submitted", "processing":
		return status, nil
	case "failed":
		status.Done = true
		status.Err = errors.Errorf("kling task failed: %s", resp.Data.TaskStatusMsg)
		return status, nil
	case "succeed":
		status.Done = true
		asset, err := decodeResult(resp.Data.TaskResult)
		if err != nil {
			return nil, err
		}
		status.Asset = asset
		return status, nil
	default:
		return nil, errors.Wrapf(domain.ErrDecode, "unknown kling task status %q", resp.Data.TaskStatus)
	}
}

func decodeResult(result *taskResult) (*video.Asset, error) {
	if result == nil || len(result.Videos) == 0 {
		return nil, errors.Wrap(domain.ErrDecode, "succeeded kling task carries no videos")
	}
	entry := result.Videos[0]
	if entry.URL == "" {
		return nil, errors.Wrap(domain.ErrDecode, "kling video entry has no url")
	}
	duration := 0
	if entry.Duration != "" {
		if parsed, err := strconv.ParseFloat(entry.Duration, 64); err == nil {
			duration = int(parsed)
		}
	}
	return &video.Asset{URI: entry.URL, MIMEType: "video/mp4", DurationSeconds: duration}, nil
}

func (g *Generator) invoke(ctx context.Context, method, url string, payload, out any) error {
	token, err := g.bearerToken()
	if err != nil {
		return errors.Wrap(err, "create kling token")
	}

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return errors.Wrap(err, "marshal kling request")
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return errors.Wrap(err, "create kling request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "invoke kling api")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.ErrOperationNotFound
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("kling status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode kling response")
	}
	return nil
}

// bearerToken signs a short-lived HS256 token from the access/secret pair,
// the scheme Kling's open API expects.
func (g *Generator) bearerToken() (string, error) {
	if g.accessKey == "" || g.secretKey == "" {
		return "", errors.New("access key and secret key are required")
	}
	now := time.Now().Unix()
	claims := jwt.MapClaims{
		"iss": g.accessKey,
		"exp": now + 1800,
		"nbf": now - 5,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["typ"] = "JWT"
	return token.SignedString([]byte(g.secretKey))
}

func modeForQuality(quality string) string {
	switch strings.ToLower(strings.TrimSpace(quality)) {
	case "high", "pro", "fhd", "1080p":
		return "pro"
	default:
		return "std"
	}
}

var _ video.Generator = (*Generator)(nil)
