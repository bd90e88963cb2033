package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	t.Setenv("NEO4J_URI", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("RERANKER_API_KEY", "")
	t.Setenv("COHERE_API_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "neo4j", cfg.Database.Driver)
	assert.Equal(t, "bolt://localhost:7687", cfg.Database.URI)
	assert.Equal(t, 10, cfg.Database.QueryTimeout)
	assert.Equal(t, "auto", cfg.Search.Strategy)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.Equal(t, 4, cfg.Search.MaxBfsDepth)
	assert.InDelta(t, 0.7, cfg.Search.ScoreThreshold, 1e-9)
	assert.Equal(t, 10, cfg.Search.MinResults)
	assert.Zero(t, cfg.Classifier.MaxRetries, "judgments are not retried unless configured")
	assert.InDelta(t, 0.3, cfg.Reranker.Threshold, 1e-9)
	assert.False(t, cfg.Reranker.Configured())
	assert.Empty(t, cfg.Reranker.Model, "the model default depends on the provider")
	assert.Equal(t, uint32(3), cfg.CircuitBreaker.MinRequests)
	assert.Equal(t, 900, cfg.Alert.CooldownSeconds)
}

func TestLoadEnvOverrides(t *testing.T) {
	viper.Reset()
	t.Setenv("NEO4J_URI", "bolt://graph:7687")
	t.Setenv("NEO4J_USER", "reader")
	t.Setenv("NEO4J_PASSWORD", "secret")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("RERANKER_API_KEY", "")
	t.Setenv("COHERE_API_KEY", "co-test")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("TELEMETRY_PARQUET_PATH", "/tmp/recall-logs")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "bolt://graph:7687", cfg.Database.URI)
	assert.Equal(t, "reader", cfg.Database.Username)
	assert.Equal(t, "secret", cfg.Database.Password)
	assert.Equal(t, "sk-test", cfg.Embedding.APIKey)
	assert.Equal(t, "sk-test", cfg.Classifier.APIKey)
	assert.Equal(t, "co-test", cfg.Reranker.APIKey)
	assert.True(t, cfg.Reranker.Configured())
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/tmp/recall-logs", cfg.Telemetry.ParquetPath)
}

func TestValidate(t *testing.T) {
	viper.Reset()
	t.Setenv("NEO4J_URI", "")
	base, err := Load()
	require.NoError(t, err)

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"unknown driver", func(c *Config) { c.Database.Driver = "memgraph" }, true},
		{"unknown strategy", func(c *Config) { c.Search.Strategy = "vector-only" }, true},
		{"bfs depth too deep", func(c *Config) { c.Search.MaxBfsDepth = 11 }, true},
		{"score threshold above one", func(c *Config) { c.Search.ScoreThreshold = 1.5 }, true},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, true},
		{"alert enabled without recipients", func(c *Config) { c.Alert.Enabled = true }, true},
		{"alert enabled with recipients", func(c *Config) {
			c.Alert.Enabled = true
			c.Alert.To = []string{"ops@example.com"}
		}, false},
		{"object store without bucket", func(c *Config) { c.Telemetry.ObjectStore.Endpoint = "minio:9000" }, true},
		{"unknown telemetry db", func(c *Config) { c.Telemetry.DbDriver = "oracle" }, true},
		{"sqlite telemetry db", func(c *Config) { c.Telemetry.DbDriver = "sqlite" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *base
			c.Alert.To = nil
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRerankerConfigured(t *testing.T) {
	assert.False(t, RerankerConfig{Provider: "cohere"}.Configured())
	assert.True(t, RerankerConfig{Provider: "cohere", APIKey: "k"}.Configured())
	assert.True(t, RerankerConfig{Provider: "embedeverything", Model: "BAAI/bge-reranker-base"}.Configured())
	assert.True(t, RerankerConfig{Provider: "embedeverything"}.Configured(), "local reranking needs no credentials")
}
