package sora

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cinegen/internal/domain"
	"cinegen/internal/providers/video"
)

func newTestGenerator(t *testing.T, handler http.HandlerFunc) *Generator {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(Options{APIKey: "sk-test", BaseURL: server.URL, HTTPClient: server.Client()})
}

func TestGenerateReturnsImmediateAsset(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody generationRequest
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{
			"id":  "gen-1",
			"url": "https://cdn.openai.com/gen-1.mp4",
		})
	})

	outcome, err := g.Generate(context.Background(), video.GenerateRequest{
		Prompt:          "city at night",
		DurationSeconds: 8,
		AspectRatio:     "9:16",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if outcome.Asset == nil || outcome.Operation != nil {
		t.Fatalf("outcome = %+v, want immediate asset", outcome)
	}
	if outcome.Asset.URI != "https://cdn.openai.com/gen-1.mp4" {
		t.Fatalf("uri = %q", outcome.Asset.URI)
	}

	if gotPath != "/videos/generations" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("authorization = %q", gotAuth)
	}
	if gotBody.Size != "720x1280" {
		t.Fatalf("size = %q", gotBody.Size)
	}
	if gotBody.Seconds != 8 {
		t.Fatalf("seconds = %d", gotBody.Seconds)
	}
}

func TestGenerateReadsDataArrayShape(t *testing.T) {
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"url": "https://cdn.openai.com/alt.mp4"}},
		})
	})

	outcome, err := g.Generate(context.Background(), video.GenerateRequest{Prompt: "p"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if outcome.Asset.URI != "https://cdn.openai.com/alt.mp4" {
		t.Fatalf("uri = %q", outcome.Asset.URI)
	}
}

func TestGenerateNoURLIsDecodeError(t *testing.T) {
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"id": "gen-1"})
	})

	_, err := g.Generate(context.Background(), video.GenerateRequest{Prompt: "p"})
	if !errors.Is(err, domain.ErrDecode) {
		t.Fatalf("err = %v, want ErrDecode", err)
	}
}

func TestGenerateAPIErrorSurface(t *testing.T) {
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limit"}}`))
	})

	_, err := g.Generate(context.Background(), video.GenerateRequest{Prompt: "p"})
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("err = %v", err)
	}
}

func TestGenerateUnavailableWithoutKey(t *testing.T) {
	g := New(Options{})
	if g.Available() {
		t.Fatal("generator without key reports available")
	}
	_, err := g.Generate(context.Background(), video.GenerateRequest{Prompt: "p"})
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("err = %v, want ErrProviderUnavailable", err)
	}
}

func TestPollNotSupported(t *testing.T) {
	g := New(Options{APIKey: "sk"})
	_, err := g.Poll(context.Background(), "anything")
	if !errors.Is(err, domain.ErrOperationNotFound) {
		t.Fatalf("err = %v, want ErrOperationNotFound", err)
	}
}

func TestSizeForAspect(t *testing.T) {
	cases := map[string]string{"9:16": "720x1280", "1:1": "1024x1024", "16:9": "1280x720", "": "1280x720"}
	for in, want := range cases {
		if got := sizeForAspect(in); got != want {
			t.Fatalf("sizeForAspect(%q) = %q, want %q", in, got, want)
		}
	}
}
