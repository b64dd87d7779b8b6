package ai

import (
	"context"
	"strings"
)

// Embedder produces vector embeddings for text. Implementations may fail
// at any time; callers that can serve without embeddings must degrade
// rather than surface the error.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error)
}

// ModelMetrics contains usage metrics accumulated by an embedding client.
type ModelMetrics struct {
	InputTokens    int     `json:"input_tokens"`
	TotalTokens    int     `json:"total_tokens"`
	Requests       int     `json:"requests"`
	DurationMs     int64   `json:"duration_ms"`
	TokenPerSecond float32 `json:"tokens_per_second"`
}

// AtomEmbeddingText is the text embedded for an atom: its title followed by
// the glance and scan disclosure levels.
func AtomEmbeddingText(title, glance, scan string) []byte {
	parts := make([]string, 0, 3)
	for _, p := range []string{title, glance, scan} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return []byte(strings.Join(parts, "\n"))
}
