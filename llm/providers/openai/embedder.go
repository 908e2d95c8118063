package openai

import (
	"context"
	"fmt"
	"strings"

	openaigo "github.com/openai/openai-go/v3"
	"go.uber.org/zap"

	"github.com/ahmadarif238/vivagraph-ai/llm/providers"
)

const DefaultEmbeddingModel = "text-embedding-3-small"

// Embedder 通过 Embeddings 接口实现 rag.Embedder
type Embedder struct {
	cfg    providers.EmbeddingConfig
	client openaigo.Client
	logger *zap.Logger
}

// NewEmbedder 创建向量化器
func NewEmbedder(cfg providers.EmbeddingConfig, logger *zap.Logger) *Embedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Model == "" {
		cfg.Model = DefaultEmbeddingModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 128
	}
	return &Embedder{
		cfg:    cfg,
		client: newClient(cfg.BaseProviderConfig, "", 2),
		logger: logger.With(zap.String("component", "openai_embedder")),
	}
}

// Embed 分批请求向量，结果顺序与输入一致
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for start := 0; start < len(texts); start += e.cfg.BatchSize {
		end := min(start+e.cfg.BatchSize, len(texts))

		params := openaigo.EmbeddingNewParams{
			Input: openaigo.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts[start:end]},
			Model: openaigo.EmbeddingModel(e.cfg.Model),
		}
		if e.cfg.Dimensions > 0 {
			params.Dimensions = openaigo.Int(int64(e.cfg.Dimensions))
		}

		resp, err := e.client.Embeddings.New(ctx, params)
		if err != nil {
			return nil, mapError("openai", err)
		}
		for _, d := range resp.Data {
			i := start + int(d.Index)
			if i < start || i >= end {
				return nil, fmt.Errorf("embedding index %d out of range", d.Index)
			}
			out[i] = d.Embedding
		}
		e.logger.Debug("embedding batch finished",
			zap.Int("batch", end-start),
			zap.Int64("tokens", resp.Usage.TotalTokens))
	}
	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("missing embedding for input %d", i)
		}
	}
	return out, nil
}
