package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ahmadarif238/vivagraph-ai/internal/retry"
	"github.com/ahmadarif238/vivagraph-ai/internal/tlsutil"
)

// pineconeUpsertBatch Pinecone 单次 upsert 的向量上限
const pineconeUpsertBatch = 100

// PineconeConfig configures the Pinecone VectorStore implementation.
//
// Either BaseURL (the index data-plane host) or Index must be set. With only
// Index the host is resolved through the controller API on first use.
type PineconeConfig struct {
	APIKey    string        `json:"api_key" yaml:"api_key" env:"API_KEY"`
	Index     string        `json:"index,omitempty" yaml:"index" env:"INDEX"`
	BaseURL   string        `json:"base_url,omitempty" yaml:"base_url" env:"BASE_URL"`
	Namespace string        `json:"namespace,omitempty" yaml:"namespace" env:"NAMESPACE"`
	Timeout   time.Duration `json:"timeout,omitempty" yaml:"timeout" env:"TIMEOUT"`

	ControllerBaseURL string `json:"controller_base_url,omitempty" yaml:"controller_base_url" env:"CONTROLLER_BASE_URL"`

	// 文本内容保存在元数据的哪个字段
	MetadataContentField string `json:"metadata_content_field,omitempty" yaml:"metadata_content_field" env:"METADATA_CONTENT_FIELD"`

	// 429、5xx 与网络错误的重试次数与首次退避，MaxRetries<0 关闭重试
	MaxRetries   int           `json:"max_retries,omitempty" yaml:"max_retries" env:"MAX_RETRIES"`
	RetryBackoff time.Duration `json:"retry_backoff,omitempty" yaml:"retry_backoff" env:"RETRY_BACKOFF"`
}

// pineconeStatusError 非 2xx 响应
type pineconeStatusError struct {
	method, path string
	status       int
	body         string
}

func (e *pineconeStatusError) Error() string {
	return fmt.Sprintf("pinecone request failed: method=%s path=%s status=%d body=%s", e.method, e.path, e.status, e.body)
}

// PineconeStore implements VectorStore using Pinecone's REST API.
type PineconeStore struct {
	cfg    PineconeConfig
	logger *zap.Logger
	client *http.Client
	retry  *retry.Retryer

	mu      sync.RWMutex
	baseURL string
}

// NewPineconeStore creates a Pinecone-backed VectorStore.
func NewPineconeStore(cfg PineconeConfig, logger *zap.Logger) *PineconeStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ControllerBaseURL == "" {
		cfg.ControllerBaseURL = "https://api.pinecone.io"
	}
	if cfg.MetadataContentField == "" {
		cfg.MetadataContentField = "content"
	}

	policy := retry.DefaultPolicy()
	if cfg.MaxRetries != 0 {
		policy.MaxRetries = cfg.MaxRetries
	}
	if cfg.RetryBackoff > 0 {
		policy.InitialDelay = cfg.RetryBackoff
	}
	logger = logger.With(zap.String("component", "pinecone_store"))

	return &PineconeStore{
		cfg:     cfg,
		logger:  logger,
		client:  tlsutil.SecureHTTPClient(cfg.Timeout),
		retry:   retry.New(policy, logger),
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
	}
}

func (s *PineconeStore) ensureBaseURL(ctx context.Context) error {
	s.mu.RLock()
	resolved := s.baseURL != ""
	s.mu.RUnlock()
	if resolved {
		return nil
	}

	if strings.TrimSpace(s.cfg.Index) == "" {
		return fmt.Errorf("pinecone base_url is required when index is empty")
	}
	if strings.TrimSpace(s.cfg.APIKey) == "" {
		return fmt.Errorf("pinecone api_key is required")
	}

	controller := strings.TrimRight(strings.TrimSpace(s.cfg.ControllerBaseURL), "/")
	endpoint := fmt.Sprintf("%s/indexes/%s", controller, url.PathEscape(s.cfg.Index))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("Api-Key", s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("pinecone describe index: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("pinecone describe index failed: status=%d body=%s", resp.StatusCode, string(raw))
	}

	var describe struct {
		Host string `json:"host"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&describe); err != nil {
		return err
	}
	host := strings.TrimSpace(describe.Host)
	if host == "" {
		return fmt.Errorf("pinecone controller returned empty host for index %q", s.cfg.Index)
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}

	s.mu.Lock()
	s.baseURL = strings.TrimRight(host, "/")
	s.mu.Unlock()

	s.logger.Info("pinecone index host resolved", zap.String("index", s.cfg.Index), zap.String("host", host))
	return nil
}

// doJSON 发送请求并解码响应；429、5xx 与网络错误按退避重试
func (s *PineconeStore) doJSON(ctx context.Context, method, path string, in any, out any) error {
	if err := s.ensureBaseURL(ctx); err != nil {
		return err
	}

	s.mu.RLock()
	endpoint := s.baseURL + path
	s.mu.RUnlock()

	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		payload = b
	}

	return s.retry.Do(ctx, func() error {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Api-Key", s.cfg.APIKey)

		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
			statusErr := &pineconeStatusError{method: method, path: path, status: resp.StatusCode, body: string(raw)}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return statusErr
			}
			return retry.Permanent(statusErr)
		}

		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return retry.Permanent(err)
		}
		return nil
	})
}

type pineconeVector struct {
	ID       string         `json:"id"`
	Values   []float64      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// AddDocuments upserts docs in batches; content is stored in metadata.
func (s *PineconeStore) AddDocuments(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	if strings.TrimSpace(s.cfg.APIKey) == "" {
		return fmt.Errorf("pinecone api_key is required")
	}

	vectors := make([]pineconeVector, 0, len(docs))
	for i, doc := range docs {
		if doc.ID == "" {
			return fmt.Errorf("document[%d] has empty id", i)
		}
		if len(doc.Embedding) == 0 {
			return fmt.Errorf("document[%d] has no embedding", i)
		}

		meta := make(map[string]any, len(doc.Metadata)+1)
		for k, v := range doc.Metadata {
			meta[k] = v
		}
		if doc.Content != "" {
			if _, exists := meta[s.cfg.MetadataContentField]; !exists {
				meta[s.cfg.MetadataContentField] = doc.Content
			}
		}
		vectors = append(vectors, pineconeVector{ID: doc.ID, Values: doc.Embedding, Metadata: meta})
	}

	namespace := strings.TrimSpace(s.cfg.Namespace)
	for start := 0; start < len(vectors); start += pineconeUpsertBatch {
		end := min(start+pineconeUpsertBatch, len(vectors))
		req := struct {
			Vectors   []pineconeVector `json:"vectors"`
			Namespace string           `json:"namespace,omitempty"`
		}{
			Vectors:   vectors[start:end],
			Namespace: namespace,
		}
		var resp any
		if err := s.doJSON(ctx, http.MethodPost, "/vectors/upsert", req, &resp); err != nil {
			return fmt.Errorf("upsert batch %d-%d: %w", start, end, err)
		}
	}

	s.logger.Debug("documents upserted", zap.Int("count", len(vectors)))
	return nil
}

// Search queries the index; filter keys become $eq metadata conditions.
func (s *PineconeStore) Search(ctx context.Context, queryEmbedding []float64, topK int, filter Filter) ([]VectorSearchResult, error) {
	if topK <= 0 {
		return []VectorSearchResult{}, nil
	}
	if len(queryEmbedding) == 0 {
		return nil, fmt.Errorf("query embedding is required")
	}

	req := struct {
		Vector          []float64      `json:"vector"`
		TopK            int            `json:"topK"`
		Namespace       string         `json:"namespace,omitempty"`
		IncludeMetadata bool           `json:"includeMetadata"`
		Filter          map[string]any `json:"filter,omitempty"`
	}{
		Vector:          queryEmbedding,
		TopK:            topK,
		Namespace:       strings.TrimSpace(s.cfg.Namespace),
		IncludeMetadata: true,
		Filter:          pineconeFilter(filter),
	}

	var resp struct {
		Matches []struct {
			ID       string         `json:"id"`
			Score    float64        `json:"score"`
			Metadata map[string]any `json:"metadata,omitempty"`
		} `json:"matches"`
	}
	if err := s.doJSON(ctx, http.MethodPost, "/query", req, &resp); err != nil {
		return nil, err
	}

	out := make([]VectorSearchResult, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		doc := Document{ID: m.ID, Metadata: m.Metadata}
		if v, ok := m.Metadata[s.cfg.MetadataContentField].(string); ok {
			doc.Content = v
		}
		out = append(out, VectorSearchResult{
			Document: doc,
			Score:    m.Score,
			Distance: 1.0 - m.Score,
		})
	}
	return out, nil
}

func pineconeFilter(f Filter) map[string]any {
	if len(f) == 0 {
		return nil
	}
	out := make(map[string]any, len(f))
	for k, v := range f {
		out[k] = map[string]any{"$eq": v}
	}
	return out
}

// DeleteDocuments removes vectors by id.
func (s *PineconeStore) DeleteDocuments(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	req := struct {
		IDs       []string `json:"ids"`
		Namespace string   `json:"namespace,omitempty"`
	}{
		IDs:       ids,
		Namespace: strings.TrimSpace(s.cfg.Namespace),
	}
	var resp any
	return s.doJSON(ctx, http.MethodPost, "/vectors/delete", req, &resp)
}

// Count returns the vector count of the configured namespace, or the index total.
func (s *PineconeStore) Count(ctx context.Context) (int, error) {
	req := struct {
		Namespace string `json:"namespace,omitempty"`
	}{
		Namespace: strings.TrimSpace(s.cfg.Namespace),
	}

	var resp struct {
		TotalVectorCount int `json:"totalVectorCount"`
		Namespaces       map[string]struct {
			VectorCount int `json:"vectorCount"`
		} `json:"namespaces"`
	}
	if err := s.doJSON(ctx, http.MethodPost, "/describe_index_stats", req, &resp); err != nil {
		return 0, err
	}

	if ns := strings.TrimSpace(s.cfg.Namespace); ns != "" {
		if st, ok := resp.Namespaces[ns]; ok {
			return st.VectorCount, nil
		}
	}
	return resp.TotalVectorCount, nil
}
