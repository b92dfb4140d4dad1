// Package ollama provides a memory.Embedder backed by a local Ollama
// server.
package ollama

import (
	"context"
	"fmt"

	"github.com/ollama/ollama/api"

	"github.com/eggplantiny/ai/memory"
)

type Model string

const (
	ModelNomic Model = "nomic-embed-text"
	ModelMXBAI Model = "mxbai-embed-large"
)

type embedder struct {
	client *api.Client
	model  Model
}

// NewEmbedder connects to the Ollama server configured by OLLAMA_HOST (or
// the default localhost endpoint).
func NewEmbedder(model Model) (memory.Embedder, error) {
	cli, err := api.ClientFromEnvironment()
	if err != nil {
		return nil, err
	}
	return &embedder{client: cli, model: model}, nil
}

func (e *embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embed(ctx, &api.EmbedRequest{
		Model: string(e.model),
		Input: text,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed text: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("embedding response was empty")
	}
	return resp.Embeddings[0], nil
}

func (e *embedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.Embed(ctx, &api.EmbedRequest{
		Model: string(e.model),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed texts: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings))
	}
	return resp.Embeddings, nil
}
