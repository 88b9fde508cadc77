package embeddings

import (
	"context"
	"math"
	"math/rand"

	"github.com/cespare/xxhash/v2"
)

// MockService is a deterministic in-process embedding backend. The same
// input text always produces the same unit vector, and distinct texts
// almost always produce distinct vectors, which makes ingestion and
// search testable without a network.
type MockService struct {
	dimensions int
}

// NewMockService creates a mock embedding service.
func NewMockService(dimensions int) *MockService {
	if dimensions <= 0 {
		dimensions = 256
	}
	return &MockService{dimensions: dimensions}
}

// Embed generates a deterministic unit vector seeded by the text hash.
func (s *MockService) Embed(_ context.Context, text string) ([]float32, error) {
	rng := rand.New(rand.NewSource(int64(xxhash.Sum64String(text))))

	vec := make([]float32, s.dimensions)
	var norm float64
	for i := range vec {
		v := rng.NormFloat64()
		vec[i] = float32(v)
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		vec[0] = 1
		return vec, nil
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}

// EmbedQuery is identical to Embed for the mock backend.
func (s *MockService) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return s.Embed(ctx, query)
}

// EmbedBatch embeds each text independently, preserving order.
func (s *MockService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := s.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the embedding dimensions.
func (s *MockService) Dimensions() int {
	return s.dimensions
}

// Provider returns the provider name.
func (s *MockService) Provider() string {
	return "mock"
}

// ModelName returns the model name.
func (s *MockService) ModelName() string {
	return "mock"
}
