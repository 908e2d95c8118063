package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmadarif238/vivagraph-ai/interview"
)

func TestDefaultConfig_ContainsAllSubConfigs(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)

	assert.NotEqual(t, ServerConfig{}, cfg.Server)
	assert.NotEqual(t, RedisConfig{}, cfg.Redis)
	assert.NotEqual(t, DatabaseConfig{}, cfg.Database)
	assert.NotEqual(t, LLMConfig{}, cfg.LLM)
	assert.NotEqual(t, EmbeddingConfig{}, cfg.Embedding)
	assert.NotEqual(t, CheckpointConfig{}, cfg.Checkpoint)
	assert.NotEqual(t, LogConfig{}, cfg.Log)
	assert.NotEqual(t, TelemetryConfig{}, cfg.Telemetry)
}

func TestDefaultServerConfig(t *testing.T) {
	cfg := DefaultServerConfig()
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 9091, cfg.MetricsPort)
	assert.Equal(t, 15*time.Second, cfg.ShutdownTimeout)
	assert.Empty(t, cfg.JWTSecret)
	assert.Equal(t, int64(10<<20), cfg.MaxUploadBytes)
}

func TestDefaultInterviewConfig(t *testing.T) {
	cfg := DefaultInterviewConfig()
	assert.Equal(t, interview.DefaultPolicyConfig(), cfg.Policy)
	assert.Equal(t, 5, cfg.ExaminerK)
	assert.Equal(t, 3, cfg.ScorerK)
	assert.Equal(t, "memory", cfg.VectorBackend)
	assert.Equal(t, 3, cfg.Retrieval.OverFetch)
	assert.Equal(t, 1500, cfg.Indexing.Chunking.ChunkSize)
	assert.Equal(t, 50, cfg.Indexing.Chunking.ChunkOverlap)
}

func TestDefaultCheckpointConfig(t *testing.T) {
	cfg := DefaultCheckpointConfig()
	assert.Equal(t, "memory", cfg.Backend)
	assert.Equal(t, 24*time.Hour, cfg.TTL)
	assert.NotEmpty(t, cfg.KeyPrefix)
}

func TestDefaultDatabaseConfig(t *testing.T) {
	cfg := DefaultDatabaseConfig()
	assert.Equal(t, "sqlite", cfg.Driver)
	assert.True(t, cfg.AutoMigrate)
	assert.Equal(t, 5*time.Minute, cfg.ConnMaxLifetime)
}

func TestDefaultLogConfig(t *testing.T) {
	cfg := DefaultLogConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, []string{"stdout"}, cfg.OutputPaths)
}
