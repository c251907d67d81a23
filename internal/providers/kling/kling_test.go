package kling

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt"

	"cinegen/internal/domain"
	"cinegen/internal/providers/video"
)

func newTestGenerator(t *testing.T, handler http.HandlerFunc) *Generator {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(Options{
		AccessKey:  "ak-test",
		SecretKey:  "sk-test",
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
	})
}

func TestGenerateSubmitsTask(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody submitRequest
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{
			"code": 0,
			"data": map[string]any{"task_id": "task-42", "task_status": "submitted"},
		})
	})

	outcome, err := g.Generate(context.Background(), video.GenerateRequest{
		Prompt:          "a fox in the snow",
		DurationSeconds: 8,
		Quality:         "high",
		AspectRatio:     "16:9",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if outcome.Operation == nil || outcome.Operation.Handle != "task-42" {
		t.Fatalf("outcome = %+v", outcome)
	}
	if outcome.Operation.Provider != "kling" {
		t.Fatalf("provider = %q", outcome.Operation.Provider)
	}

	if gotPath != "/v1/videos/text2video" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotBody.Prompt != "a fox in the snow" {
		t.Fatalf("prompt = %q", gotBody.Prompt)
	}
	if gotBody.Duration != "10" {
		t.Fatalf("duration = %q, want snapped to \"10\"", gotBody.Duration)
	}
	if gotBody.Mode != "pro" {
		t.Fatalf("mode = %q", gotBody.Mode)
	}

	raw := strings.TrimPrefix(gotAuth, "Bearer ")
	if raw == gotAuth {
		t.Fatalf("authorization = %q, want bearer token", gotAuth)
	}
	token, err := jwt.Parse(raw, func(tok *jwt.Token) (any, error) {
		if tok.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte("sk-test"), nil
	})
	if err != nil || !token.Valid {
		t.Fatalf("token invalid: %v", err)
	}
	claims := token.Claims.(jwt.MapClaims)
	if claims["iss"] != "ak-test" {
		t.Fatalf("iss = %v", claims["iss"])
	}
	if _, ok := claims["exp"]; !ok {
		t.Fatal("token missing exp")
	}
	if _, ok := claims["nbf"]; !ok {
		t.Fatal("token missing nbf")
	}
}

func TestGenerateShortClipUsesFiveSeconds(t *testing.T) {
	var gotBody submitRequest
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{
			"code": 0,
			"data": map[string]any{"task_id": "task-1"},
		})
	})

	if _, err := g.Generate(context.Background(), video.GenerateRequest{Prompt: "p", DurationSeconds: 4}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if gotBody.Duration != "5" {
		t.Fatalf("duration = %q, want \"5\"", gotBody.Duration)
	}
}

func TestGenerateAPIErrorCode(t *testing.T) {
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"code": 1102, "message": "account balance not enough"})
	})

	_, err := g.Generate(context.Background(), video.GenerateRequest{Prompt: "p"})
	if err == nil || !strings.Contains(err.Error(), "account balance not enough") {
		t.Fatalf("err = %v", err)
	}
}

func TestGenerateUnavailableWithoutKeys(t *testing.T) {
	g := New(Options{})
	if g.Available() {
		t.Fatal("generator without keys reports available")
	}
	_, err := g.Generate(context.Background(), video.GenerateRequest{Prompt: "p"})
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("err = %v, want ErrProviderUnavailable", err)
	}
}

func TestPollStatusMapping(t *testing.T) {
	cases := []struct {
		status   string
		wantDone bool
		wantErr  bool
	}{
		{"submitted", false, false},
		{"processing", false, false},
		{"failed", true, true},
	}
	for _, tc := range cases {
		g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"code": 0,
				"data": map[string]any{
					"task_id":         "task-1",
					"task_status":     tc.status,
					"task_status_msg": "content policy rejection",
				},
			})
		})
		status, err := g.Poll(context.Background(), "task-1")
		if err != nil {
			t.Fatalf("Poll(%s): %v", tc.status, err)
		}
		if status.Done != tc.wantDone {
			t.Fatalf("Poll(%s).Done = %v", tc.status, status.Done)
		}
		if (status.Err != nil) != tc.wantErr {
			t.Fatalf("Poll(%s).Err = %v", tc.status, status.Err)
		}
	}
}

func TestPollSucceedDecodesVideo(t *testing.T) {
	var gotPath string
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]any{
			"code": 0,
			"data": map[string]any{
				"task_id":     "task-7",
				"task_status": "succeed",
				"task_result": map[string]any{
					"videos": []map[string]any{{
						"id":       "v-1",
						"url":      "https://cdn.klingai.com/v-1.mp4",
						"duration": "10.0",
					}},
				},
			},
		})
	})

	status, err := g.Poll(context.Background(), "task-7")
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if gotPath != "/v1/videos/text2video/task-7" {
		t.Fatalf("path = %q", gotPath)
	}
	if !status.Done || status.Asset == nil {
		t.Fatalf("status = %+v", status)
	}
	if status.Asset.URI != "https://cdn.klingai.com/v-1.mp4" {
		t.Fatalf("uri = %q", status.Asset.URI)
	}
	if status.Asset.DurationSeconds != 10 {
		t.Fatalf("duration = %d", status.Asset.DurationSeconds)
	}
}

func TestPollSucceedWithoutVideosIsDecodeError(t *testing.T) {
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"code": 0,
			"data": map[string]any{"task_id": "task-1", "task_status": "succeed"},
		})
	})

	_, err := g.Poll(context.Background(), "task-1")
	if !errors.Is(err, domain.ErrDecode) {
		t.Fatalf("err = %v, want ErrDecode", err)
	}
}

func TestPollUnknownStatusIsDecodeError(t *testing.T) {
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"code": 0,
			"data": map[string]any{"task_id": "task-1", "task_status": "paused"},
		})
	})

	_, err := g.Poll(context.Background(), "task-1")
	if !errors.Is(err, domain.ErrDecode) {
		t.Fatalf("err = %v, want ErrDecode", err)
	}
}

func TestPollMissingTask(t *testing.T) {
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := g.Poll(context.Background(), "task-gone")
	if !errors.Is(err, domain.ErrOperationNotFound) {
		t.Fatalf("err = %v, want ErrOperationNotFound", err)
	}
}
