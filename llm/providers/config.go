package providers

import "time"

// BaseProviderConfig 所有 Provider 共享的基础配置字段。
type BaseProviderConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key" env:"API_KEY"`
	BaseURL string        `json:"base_url" yaml:"base_url" env:"BASE_URL"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty" env:"MODEL"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty" env:"TIMEOUT"`
}

// OpenAIConfig OpenAI 兼容 Provider 配置（OpenAI、Groq 等兼容端点）
type OpenAIConfig struct {
	BaseProviderConfig `yaml:",inline"`
	Organization       string `json:"organization,omitempty" yaml:"organization,omitempty" env:"ORGANIZATION"`
	MaxRetries         int    `json:"max_retries,omitempty" yaml:"max_retries,omitempty" env:"MAX_RETRIES"`
}

// EmbeddingConfig 向量化 Provider 配置
type EmbeddingConfig struct {
	BaseProviderConfig `yaml:",inline"`
	Dimensions         int `json:"dimensions,omitempty" yaml:"dimensions,omitempty" env:"DIMENSIONS"`
	BatchSize          int `json:"batch_size,omitempty" yaml:"batch_size,omitempty" env:"BATCH_SIZE"`
}

// ChooseModel 请求模型优先，其次配置模型，最后回退
func ChooseModel(requested, configured, fallback string) string {
	if requested != "" {
		return requested
	}
	if configured != "" {
		return configured
	}
	return fallback
}
