package veo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"cinegen/internal/domain"
	"cinegen/internal/providers/video"
)

// Options controls how the Veo client is configured.
type Options struct {
	AccessToken string
	ProjectID   string
	Location    string
	Model       string
	BaseURL     string
	HTTPClient  *http.Client
	Logger      *zerolog.Logger
}

// Client talks to the Veo text-to-video API on Vertex AI. Veo executes
// asynchronously: a submission usually returns a long-running operation that
// must be polled via fetchPredictOperation until done. The client is
// stateless between calls — it owns no poll loop, interval or timeout; the
// caller drives repeated Poll calls at whatever cadence it wants.
type Client struct {
	accessToken string
	projectID   string
	location    string
	model       string
	baseURL     string
	httpClient  *http.Client
	logger      *zerolog.Logger
}

type veoReferenceImage struct {
	Image veoMedia `json:"image"`
}

type veoMedia struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded,omitempty"`
	GCSURI             string `json:"gcsUri,omitempty"`
	URI                string `json:"uri,omitempty"`
	MimeType           string `json:"mimeType,omitempty"`
}

type veoInstance struct {
	Prompt          string              `json:"prompt"`
	ReferenceImages []veoReferenceImage `json:"referenceImages,omitempty"`
}

type veoParameters struct {
	AspectRatio      string `json:"aspectRatio,omitempty"`
	SampleCount      int    `json:"sampleCount,omitempty"`
	DurationSeconds  string `json:"durationSeconds,omitempty"`
	PersonGeneration string `json:"personGeneration,omitempty"`
	GenerateAudio    bool   `json:"generateAudio"`
	Resolution       string `json:"resolution,omitempty"`
}

type veoPredictRequest struct {
	Instances  []veoInstance `json:"instances"`
	Parameters veoParameters `json:"parameters"`
}

type veoGeneratedSample struct {
	Video veoMedia `json:"video"`
}

type veoPrediction struct {
	GeneratedSamples []veoGeneratedSample `json:"generatedSamples,omitempty"`
	VideoURI         string               `json:"videoUri,omitempty"`
}

type veoOperationResponse struct {
	Videos      []veoMedia      `json:"videos,omitempty"`
	Predictions []veoPrediction `json:"predictions,omitempty"`
}

type veoOperation struct {
	Name     string                `json:"name,omitempty"`
	Done     bool                  `json:"done,omitempty"`
	Metadata map[string]any        `json:"metadata,omitempty"`
	Response *veoOperationResponse `json:"response,omitempty"`
	Error    *veoStatus            `json:"error,omitempty"`
}

type veoStatus struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

type veoErrorResponse struct {
	Error veoStatus `json:"error"`
}

// NewClient constructs a Veo client with sane defaults.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	location := opts.Location
	if location == "" {
		location = "us-central1"
	}
	model := opts.Model
	if model == "" {
		model = "veo-3.1-generate-preview"
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s-aiplatform.googleapis.com/v1", location)
	}

	var logger *zerolog.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}

	return &Client{
		accessToken: strings.TrimSpace(opts.AccessToken),
		projectID:   strings.TrimSpace(opts.ProjectID),
		location:    location,
		model:       model,
		baseURL:     baseURL,
		httpClient:  httpClient,
		logger:      logger,
	}
}

// Model returns the configured Veo model identifier.
func (c *Client) Model() string {
	return c.model
}

// Configured reports whether the client has the credentials and project
// needed to reach the API.
func (c *Client) Configured() bool {
	return c.accessToken != "" && c.projectID != ""
}

// Submit starts a generation. The outcome is either an immediate asset, when
// the API answered with a completed prediction body, or an operation handle
// to poll.
func (c *Client) Submit(ctx context.Context, req video.GenerateRequest) (*video.Outcome, error) {
	if !c.Configured() {
		return nil, domain.ErrProviderUnavailable
	}

	duration := req.DurationSeconds
	if duration <= 0 {
		duration = 8
	}
	aspect := req.AspectRatio
	if aspect == "" {
		aspect = "16:9"
	}

	payload := veoPredictRequest{
		Instances: []veoInstance{{
			Prompt:          req.Prompt,
			ReferenceImages: encodeReferences(req.References),
		}},
		Parameters: veoParameters{
			AspectRatio: aspect,
			SampleCount: 1,
			// The API requires the duration as a string.
			DurationSeconds:  strconv.Itoa(duration),
			PersonGeneration: "allow_all",
			GenerateAudio:    true,
			Resolution:       resolutionForQuality(req.Quality),
		},
	}

	var op veoOperation
	if err := c.invoke(ctx, c.modelEndpoint("predictLongRunning"), payload, &op); err != nil {
		return nil, err
	}

	if op.Response != nil {
		asset, err := c.decodeResponse(op.Response)
		if err != nil {
			return nil, err
		}
		return &video.Outcome{Asset: asset}, nil
	}
	if op.Name != "" {
		c.logger.Debug().
			Str("request_id", req.RequestID).
			Str("operation", op.Name).
			Msg("veo: generation started")
		return &video.Outcome{Operation: &video.Operation{Handle: op.Name, Provider: "veo"}}, nil
	}
	return nil, fmt.Errorf("%w: submission returned neither operation nor result", domain.ErrDecode)
}

// Poll fetches the state of an operation. Handles are accepted in both the
// fully qualified form (projects/.../operations/<id>) and the short bare-id
// form; the API is inconsistent about which one it resolves, so a not-found
// on the qualified form is retried once with the short form before the
// failure is surfaced.
func (c *Client) Poll(ctx context.Context, handle string) (*video.PollStatus, error) {
	if !c.Configured() {
		return nil, domain.ErrProviderUnavailable
	}
	if strings.TrimSpace(handle) == "" {
		return nil, domain.ErrOperationNotFound
	}

	op, err := c.fetchOperation(ctx, c.qualifiedHandle(handle))
	if isNotFound(err) {
		short := shortHandle(handle)
		c.logger.Debug().
			Str("operation", short).
			Msg("veo: qualified handle not found, retrying short form")
		op, err = c.fetchOperation(ctx, short)
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrOperationNotFound, handle)
		}
	}
	if err != nil {
		return nil, err
	}

	status := &video.PollStatus{Done: op.Done, Metadata: op.Metadata}
	if !op.Done {
		return status, nil
	}
	if op.Error != nil {
		status.Err = fmt.Errorf("veo operation failed (code %d): %s", op.Error.Code, op.Error.Message)
		return status, nil
	}
	if op.Response == nil {
		return nil, fmt.Errorf("%w: done operation carries no response body", domain.ErrDecode)
	}
	asset, err := c.decodeResponse(op.Response)
	if err != nil {
		return nil, err
	}
	status.Asset = asset
	return status, nil
}

func (c *Client) fetchOperation(ctx context.Context, operationName string) (*veoOperation, error) {
	payload := map[string]string{"operationName": operationName}
	var op veoOperation
	if err := c.invoke(ctx, c.modelEndpoint("fetchPredictOperation"), payload, &op); err != nil {
		return nil, err
	}
	return &op, nil
}

// decodeResponse extracts the generated video from a done operation. Two
// payload shapes are supported: inline base64 bytes, which are decoded to
// raw binary for the caller to persist, and a remote URI, which passes
// through unchanged.
func (c *Client) decodeResponse(resp *veoOperationResponse) (*video.Asset, error) {
	for _, entry := range resp.Videos {
		if asset := assetFromMedia(entry); asset != nil {
			return asset, nil
		}
		if entry.BytesBase64Encoded != "" {
			return nil, fmt.Errorf("%w: invalid base64 video payload", domain.ErrDecode)
		}
	}
	for _, prediction := range resp.Predictions {
		for _, sample := range prediction.GeneratedSamples {
			if asset := assetFromMedia(sample.Video); asset != nil {
				return asset, nil
			}
		}
		if prediction.VideoURI != "" {
			return &video.Asset{URI: prediction.VideoURI, MIMEType: "video/mp4"}, nil
		}
	}
	return nil, fmt.Errorf("%w: response matches neither inline nor uri payload shape", domain.ErrDecode)
}

func assetFromMedia(media veoMedia) *video.Asset {
	mime := media.MimeType
	if mime == "" {
		mime = "video/mp4"
	}
	if media.BytesBase64Encoded != "" {
		data, err := base64.StdEncoding.DecodeString(media.BytesBase64Encoded)
		if err != nil {
			return nil
		}
		return &video.Asset{Data: data, MIMEType: mime}
	}
	if media.URI != "" {
		return &video.Asset{URI: media.URI, MIMEType: mime}
	}
	if media.GCSURI != "" {
		return &video.Asset{URI: media.GCSURI, MIMEType: mime}
	}
	return nil
}

func (c *Client) invoke(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("veo: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("veo: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("veo: invoke api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr veoErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("veo status %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		data, _ := io.ReadAll(resp.Body)
		if len(data) > 0 {
			return fmt.Errorf("veo status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		}
		return fmt.Errorf("veo status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("veo: decode response: %w", err)
	}
	return nil
}

var errNotFound = fmt.Errorf("veo: operation not found")

func isNotFound(err error) bool {
	return err == errNotFound
}

func (c *Client) modelEndpoint(verb string) string {
	return fmt.Sprintf("%s/projects/%s/locations/%s/publishers/google/models/%s:%s",
		c.baseURL, c.projectID, c.location, url.PathEscape(c.model), verb)
}

// qualifiedHandle expands a bare operation id into the full resource path.
func (c *Client) qualifiedHandle(handle string) string {
	if strings.HasPrefix(handle, "projects/") {
		return handle
	}
	return fmt.Sprintf("projects/%s/locations/%s/publishers/google/models/%s/operations/%s",
		c.projectID, c.location, c.model, handle)
}

// shortHandle reduces a qualified resource path to the bare operation id.
func shortHandle(handle string) string {
	if idx := strings.LastIndex(handle, "/operations/"); idx >= 0 {
		return handle[idx+len("/operations/"):]
	}
	return handle
}

func encodeReferences(refs []domain.ReferenceAsset) []veoReferenceImage {
	out := make([]veoReferenceImage, 0, len(refs))
	for _, ref := range refs {
		media := veoMedia{MimeType: ref.MIMEType}
		switch {
		case len(ref.Data) > 0:
			media.BytesBase64Encoded = base64.StdEncoding.EncodeToString(ref.Data)
		case strings.HasPrefix(ref.URI, "gs://"):
			media.GCSURI = ref.URI
		case ref.URI != "":
			media.URI = ref.URI
		default:
			continue
		}
		out = append(out, veoReferenceImage{Image: media})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func resolutionForQuality(quality string) string {
	switch strings.ToLower(strings.TrimSpace(quality)) {
	case "fhd", "1080p", "high":
		return "1080p"
	default:
		return "720p"
	}
}
