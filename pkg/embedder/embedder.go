package embedder

import (
	"context"
	"errors"
)

// ErrNoEmbedding is returned when a provider answers without vectors.
var ErrNoEmbedding = errors.New("no embeddings returned")

// Client turns text into vectors.
type Client interface {
	// Embed generates embeddings for texts, one vector per input in order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedSingle generates an embedding for a single text.
	EmbedSingle(ctx context.Context, text string) ([]float32, error)
	// Dimensions returns the vector length the client produces.
	Dimensions() int
	Close() error
}

// Config holds settings shared by embedding providers.
type Config struct {
	Model      string `json:"model"`
	BaseURL    string `json:"base_url,omitempty"`
	Dimensions int    `json:"dimensions,omitempty"`
	BatchSize  int    `json:"batch_size,omitempty"`
}

// knownDimensions maps common model names to their native vector length.
var knownDimensions = map[string]int{
	"text-embedding-ada-002":                 1536,
	"text-embedding-3-small":                 1536,
	"text-embedding-3-large":                 3072,
	"BAAI/bge-small-en-v1.5":                 384,
	"BAAI/bge-base-en-v1.5":                  768,
	"BAAI/bge-large-en-v1.5":                 1024,
	"sentence-transformers/all-MiniLM-L6-v2": 384,
}

// DimensionsFor returns cfg.Dimensions when set, otherwise the known size of
// cfg.Model, otherwise fallback.
func DimensionsFor(cfg Config, fallback int) int {
	if cfg.Dimensions > 0 {
		return cfg.Dimensions
	}
	if d, ok := knownDimensions[cfg.Model]; ok {
		return d
	}
	return fallback
}

// batches splits texts into chunks of at most size.
func batches(texts []string, size int) [][]string {
	if size <= 0 || len(texts) <= size {
		return [][]string{texts}
	}
	out := make([][]string, 0, (len(texts)+size-1)/size)
	for start := 0; start < len(texts); start += size {
		end := start + size
		if end > len(texts) {
			end = len(texts)
		}
		out = append(out, texts[start:end])
	}
	return out
}
