package mocks

import (
	"context"
	"sync"
)

// MockRetriever 返回固定段落，并记录查询参数
type MockRetriever struct {
	mu       sync.Mutex
	passages []string
	err      error
	queries  []RetrieveCall
}

// RetrieveCall 记录单次检索
type RetrieveCall struct {
	Query     string
	K         int
	SessionID string
}

// NewMockRetriever 创建新的 MockRetriever
func NewMockRetriever(passages ...string) *MockRetriever {
	return &MockRetriever{passages: passages}
}

// WithError 设置返回错误
func (r *MockRetriever) WithError(err error) *MockRetriever {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
	return r
}

func (r *MockRetriever) Retrieve(_ context.Context, query string, k int, sessionID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, RetrieveCall{Query: query, K: k, SessionID: sessionID})
	if r.err != nil {
		return nil, r.err
	}
	if sessionID == "" {
		return nil, nil
	}
	if k < len(r.passages) {
		return append([]string(nil), r.passages[:k]...), nil
	}
	return append([]string(nil), r.passages...), nil
}

// Calls 返回检索记录
func (r *MockRetriever) Calls() []RetrieveCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RetrieveCall(nil), r.queries...)
}
