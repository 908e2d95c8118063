package rag

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RetrieverConfig 会话检索配置
type RetrieverConfig struct {
	// OverFetch 过滤前多取的倍数，用于抵消重复块
	OverFetch int `json:"over_fetch" yaml:"over_fetch" env:"OVER_FETCH"`
	// MaxContextTokens 返回段落的 token 预算，0 表示不限制
	MaxContextTokens int `json:"max_context_tokens" yaml:"max_context_tokens" env:"MAX_CONTEXT_TOKENS"`
}

// DefaultRetrieverConfig 默认检索配置
func DefaultRetrieverConfig() RetrieverConfig {
	return RetrieverConfig{OverFetch: 3}
}

// SearchObserver 检索观测回调（指标采集）
type SearchObserver func(sessionID string, returned int, duration time.Duration, err error)

// SessionRetriever 按会话隔离的上下文检索。
// 只返回 session_id 元数据与请求一致的文档；结果按内容去重、按分数排序并截断到 k。
type SessionRetriever struct {
	store     VectorStore
	embedder  Embedder
	cfg       RetrieverConfig
	tokenizer Tokenizer
	observe   SearchObserver
	logger    *zap.Logger
}

// RetrieverOption 检索器配置项
type RetrieverOption func(*SessionRetriever)

// WithTokenizer 设置 token 预算使用的计数器
func WithTokenizer(tok Tokenizer) RetrieverOption {
	return func(r *SessionRetriever) { r.tokenizer = tok }
}

// WithSearchObserver 设置检索观测回调
func WithSearchObserver(fn SearchObserver) RetrieverOption {
	return func(r *SessionRetriever) { r.observe = fn }
}

// NewSessionRetriever 创建会话检索器
func NewSessionRetriever(store VectorStore, embedder Embedder, cfg RetrieverConfig, logger *zap.Logger, opts ...RetrieverOption) *SessionRetriever {
	if cfg.OverFetch < 1 {
		cfg.OverFetch = DefaultRetrieverConfig().OverFetch
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &SessionRetriever{
		store:     store,
		embedder:  embedder,
		cfg:       cfg,
		tokenizer: EstimateTokenizer{},
		logger:    logger.With(zap.String("component", "retriever")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Search 返回与 query 最相近的至多 k 个段落。sessionID 为空时返回空结果。
func (r *SessionRetriever) Search(ctx context.Context, query string, k int, sessionID string) (passages []Passage, err error) {
	if sessionID == "" || k <= 0 {
		if sessionID == "" {
			r.logger.Warn("retrieval without session id, returning no context")
		}
		return []Passage{}, nil
	}

	start := time.Now()
	defer func() {
		if r.observe != nil {
			r.observe(sessionID, len(passages), time.Since(start), err)
		}
	}()

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: expected 1 vector, got %d", len(vectors))
	}

	results, err := r.store.Search(ctx, vectors[0], k*r.cfg.OverFetch, SessionFilter(sessionID))
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	passages = dedupResults(results, sessionID)
	duplicates := len(results) - len(passages)
	if len(passages) > k {
		passages = passages[:k]
	}
	passages = TrimToTokenBudget(passages, r.cfg.MaxContextTokens, r.tokenizer)

	r.logger.Debug("context retrieved",
		zap.String("session_id", sessionID),
		zap.Int("candidates", len(results)),
		zap.Int("duplicates", duplicates),
		zap.Int("returned", len(passages)))
	return passages, nil
}

// Retrieve 返回段落文本，满足 interview.Retriever
func (r *SessionRetriever) Retrieve(ctx context.Context, query string, k int, sessionID string) ([]string, error) {
	passages, err := r.Search(ctx, query, k, sessionID)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(passages))
	for i, p := range passages {
		out[i] = p.Content
	}
	return out, nil
}

// dedupResults 二次校验会话归属，按内容哈希去重后按分数降序排序
func dedupResults(results []VectorSearchResult, sessionID string) []Passage {
	filter := SessionFilter(sessionID)
	kept := make([]VectorSearchResult, 0, len(results))
	seen := make(map[string]struct{}, len(results))
	for _, res := range results {
		if !filter.Matches(res.Document.Metadata) {
			continue
		}
		h := ContentHash(res.Document.Content)
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		kept = append(kept, res)
	}
	sortByScore(kept)

	out := make([]Passage, len(kept))
	for i, res := range kept {
		out[i] = Passage{
			ID:       res.Document.ID,
			Content:  res.Document.Content,
			Score:    res.Score,
			Metadata: res.Document.Metadata,
		}
	}
	return out
}
