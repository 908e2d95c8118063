// =============================================================================
// 📦 VivaGraph 默认配置
// =============================================================================
package config

import (
	"time"

	"github.com/ahmadarif238/vivagraph-ai/interview"
	"github.com/ahmadarif238/vivagraph-ai/rag"
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:     DefaultServerConfig(),
		Redis:      DefaultRedisConfig(),
		Database:   DefaultDatabaseConfig(),
		Pinecone:   DefaultPineconeConfig(),
		LLM:        DefaultLLMConfig(),
		Embedding:  DefaultEmbeddingConfig(),
		Interview:  DefaultInterviewConfig(),
		Checkpoint: DefaultCheckpointConfig(),
		Log:        DefaultLogConfig(),
		Telemetry:  DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    2 * time.Minute,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    20,
		RateLimitBurst:  40,
		MaxUploadBytes:  10 << 20,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置（本地 sqlite 文件）
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Host:            "localhost",
		Port:            5432,
		User:            "vivagraph",
		Name:            "vivagraph.db",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		AutoMigrate:     true,
	}
}

// DefaultPineconeConfig 返回默认 Pinecone 配置
func DefaultPineconeConfig() rag.PineconeConfig {
	return rag.PineconeConfig{
		Index:   "vivagraph",
		Timeout: 30 * time.Second,
	}
}

// DefaultLLMConfig 返回默认 LLM 配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		BaseURL:    "https://api.openai.com/v1",
		Model:      "gpt-4o-mini",
		Timeout:    2 * time.Minute,
		MaxRetries: 2,
		MaxTokens:  1024,
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:      true,
			Threshold:    5,
			ResetTimeout: time.Minute,
		},
	}
}

// DefaultEmbeddingConfig 返回默认向量化配置
func DefaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		Provider:   "hash",
		BaseURL:    "https://api.openai.com/v1",
		Model:      "text-embedding-3-small",
		Dimensions: 384,
		BatchSize:  64,
		Timeout:    time.Minute,
	}
}

// DefaultInterviewConfig 返回默认面试配置
func DefaultInterviewConfig() InterviewConfig {
	return InterviewConfig{
		Policy:        interview.DefaultPolicyConfig(),
		ExaminerK:     5,
		ScorerK:       3,
		VectorBackend: "memory",
		Retrieval:     rag.DefaultRetrieverConfig(),
		Indexing:      rag.DefaultIndexerConfig(),
		TokenEncoding: "cl100k_base",
	}
}

// DefaultCheckpointConfig 返回默认检查点配置
func DefaultCheckpointConfig() CheckpointConfig {
	return CheckpointConfig{
		Backend:   "memory",
		TTL:       24 * time.Hour,
		KeyPrefix: "vivagraph:checkpoint:",
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "vivagraph",
		SampleRate:   0.1,
		Insecure:     true,
	}
}
