package rag

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// IndexerConfig 文档入库配置
type IndexerConfig struct {
	Chunking       ChunkingConfig `json:"chunking" yaml:"chunking" env:"CHUNKING"`
	BatchSize      int            `json:"batch_size" yaml:"batch_size" env:"BATCH_SIZE"`
	MaxConcurrency int            `json:"max_concurrency" yaml:"max_concurrency" env:"MAX_CONCURRENCY"`
}

// DefaultIndexerConfig 默认入库配置
func DefaultIndexerConfig() IndexerConfig {
	return IndexerConfig{
		Chunking:       DefaultChunkingConfig(),
		BatchSize:      64,
		MaxConcurrency: 4,
	}
}

// IndexResult 入库统计
type IndexResult struct {
	Chunks     int `json:"chunks"`
	Duplicates int `json:"duplicates"`
	Indexed    int `json:"indexed"`
}

// Indexer 文本切分、去重、向量化并写入向量库
type Indexer struct {
	splitter *RecursiveSplitter
	embedder Embedder
	store    VectorStore
	cfg      IndexerConfig
	logger   *zap.Logger
}

// NewIndexer 创建入库器
func NewIndexer(store VectorStore, embedder Embedder, cfg IndexerConfig, logger *zap.Logger) *Indexer {
	d := DefaultIndexerConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = d.BatchSize
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = d.MaxConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{
		splitter: NewRecursiveSplitter(cfg.Chunking, logger),
		embedder: embedder,
		store:    store,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "indexer")),
	}
}

// IndexText 切分 text 并以 metadata 写入（metadata 通常包含 session_id）
func (ix *Indexer) IndexText(ctx context.Context, text string, metadata map[string]any) (IndexResult, error) {
	chunks := ix.splitter.Split(text)
	unique := DedupChunks(chunks)
	res := IndexResult{Chunks: len(chunks), Duplicates: len(chunks) - len(unique)}
	if len(unique) == 0 {
		return res, nil
	}
	if res.Duplicates > 0 {
		ix.logger.Warn("duplicate chunks removed before indexing", zap.Int("duplicates", res.Duplicates))
	}

	docs := make([]Document, len(unique))
	for i, c := range unique {
		meta := make(map[string]any, len(metadata))
		for k, v := range metadata {
			meta[k] = v
		}
		docs[i] = Document{ID: uuid.NewString(), Content: c, Metadata: meta}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.cfg.MaxConcurrency)
	for start := 0; start < len(docs); start += ix.cfg.BatchSize {
		batch := docs[start:min(start+ix.cfg.BatchSize, len(docs))]
		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, d := range batch {
				texts[i] = d.Content
			}
			vectors, err := ix.embedder.Embed(gctx, texts)
			if err != nil {
				return fmt.Errorf("embed chunks: %w", err)
			}
			if len(vectors) != len(batch) {
				return fmt.Errorf("embed chunks: expected %d vectors, got %d", len(batch), len(vectors))
			}
			for i := range batch {
				batch[i].Embedding = vectors[i]
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	if err := ix.store.AddDocuments(ctx, docs); err != nil {
		return res, fmt.Errorf("store chunks: %w", err)
	}
	res.Indexed = len(docs)

	ix.logger.Info("document indexed",
		zap.Int("chunks", res.Chunks),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("indexed", res.Indexed))
	return res, nil
}
