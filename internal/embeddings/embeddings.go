// Package embeddings turns text into vectors for semantic search.
package embeddings

import (
	"context"
	"fmt"

	"github.com/nickcecere/codemap/internal/config"
)

// Service generates embedding vectors for text.
type Service interface {
	// Embed generates an embedding for a document.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedQuery generates an embedding for a search query.
	EmbedQuery(ctx context.Context, query string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple documents in one
	// call, preserving input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector dimensionality.
	Dimensions() int

	// Provider returns the backend name.
	Provider() string

	// ModelName returns the model identifier.
	ModelName() string
}

// NewService creates an embedding service from configuration.
func NewService(cfg *config.Config) (Service, error) {
	switch cfg.Embeddings.Provider {
	case "openai":
		svc, err := NewOpenAIService(cfg.Embeddings.OpenAI)
		if err != nil {
			return nil, err
		}
		return WithRetry(svc, DefaultRetryPolicy()), nil
	case "mock":
		return NewMockService(cfg.Embeddings.Mock.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q", cfg.Embeddings.Provider)
	}
}
