package veo

import (
	"context"

	"cinegen/internal/providers/video"
)

// Generator adapts the long-running Veo client to the video.Generator
// contract used by the router.
type Generator struct {
	client *Client
}

// NewGenerator wraps an already-configured Veo client.
func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) Name() string {
	return "veo"
}

func (g *Generator) ModelID() string {
	return g.client.Model()
}

func (g *Generator) Available() bool {
	return g.client.Configured()
}

func (g *Generator) Generate(ctx context.Context, req video.GenerateRequest) (*video.Outcome, error) {
	return g.client.Submit(ctx, req)
}

func (g *Generator) Poll(ctx context.Context, handle string) (*video.PollStatus, error) {
	return g.client.Poll(ctx, handle)
}

var _ video.Generator = (*Generator)(nil)
