package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// DefaultCacheTTL is how long a cached vector stays valid.
const DefaultCacheTTL = 7 * 24 * time.Hour

// CacheConfig configures CachedClient.
type CacheConfig struct {
	// Dir is the badger directory. Empty keeps the cache in memory.
	Dir string
	TTL time.Duration
}

// CachedClient wraps a Client with a persistent embedding cache keyed by
// model and text. Cache failures are logged and fall through to the wrapped
// client.
type CachedClient struct {
	inner  Client
	db     *badger.DB
	model  string
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedClient opens the cache and wraps inner. model namespaces keys so
// switching models never returns stale vectors.
func NewCachedClient(inner Client, model string, cfg CacheConfig, logger *slog.Logger) (*CachedClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := badger.DefaultOptions(cfg.Dir).WithLogger(nil)
	if cfg.Dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open embedding cache: %w", err)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedClient{inner: inner, db: db, model: model, ttl: ttl, logger: logger}, nil
}

func (c *CachedClient) key(text string) []byte {
	sum := sha256.Sum256([]byte(c.model + "\x00" + text))
	return append([]byte("emb:"), sum[:]...)
}

// Embed returns cached vectors where present and embeds the rest in one call.
func (c *CachedClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	err := c.db.View(func(txn *badger.Txn) error {
		for i, text := range texts {
			item, err := txn.Get(c.key(text))
			if errors.Is(err, badger.ErrKeyNotFound) {
				missIdx = append(missIdx, i)
				missTexts = append(missTexts, text)
				continue
			}
			if err != nil {
				return err
			}
			if err := item.Value(func(val []byte) error {
				vec, err := decodeVector(val)
				if err != nil {
					return err
				}
				out[i] = vec
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		c.logger.Warn("embedding cache read failed", "error", err)
		return c.inner.Embed(ctx, texts)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	fresh, err := c.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(missTexts), len(fresh))
	}
	for j, i := range missIdx {
		out[i] = fresh[j]
	}

	if err := c.db.Update(func(txn *badger.Txn) error {
		for j, text := range missTexts {
			if err := txn.SetEntry(badger.NewEntry(c.key(text), encodeVector(fresh[j])).WithTTL(c.ttl)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		c.logger.Warn("embedding cache write failed", "error", err)
	}
	return out, nil
}

// EmbedSingle generates an embedding for a single text.
func (c *CachedClient) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 || embeddings[0] == nil {
		return nil, ErrNoEmbedding
	}
	return embeddings[0], nil
}

// Dimensions returns the wrapped client's vector length.
func (c *CachedClient) Dimensions() int {
	return c.inner.Dimensions()
}

// Close closes the cache and the wrapped client.
func (c *CachedClient) Close() error {
	return errors.Join(c.db.Close(), c.inner.Close())
}

// encodeVector writes v as little-endian float32s.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("corrupt cached vector of %d bytes", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
