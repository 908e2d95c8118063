package rag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestPineconeStore_BasicFlow(t *testing.T) {
	t.Parallel()

	var upsertCalls, searchCalls, deleteCalls, countCalls atomic.Int64

	mux := http.NewServeMux()

	mux.HandleFunc("/vectors/upsert", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Api-Key"); got != "test-key" {
			t.Errorf("expected Api-Key=test-key, got %q", got)
		}
		upsertCalls.Add(1)

		var req struct {
			Vectors []pineconeVector `json:"vectors"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode upsert: %v", err)
		}
		for _, v := range req.Vectors {
			if _, ok := v.Metadata["content"]; !ok {
				t.Errorf("expected metadata content field")
			}
			if v.Metadata["session_id"] != "s1" {
				t.Errorf("expected session metadata, got %v", v.Metadata)
			}
		}
		_, _ = fmt.Fprintf(w, `{"upsertedCount":%d}`, len(req.Vectors))
	})

	mux.HandleFunc("/query", func(w http.ResponseWriter, r *http.Request) {
		searchCalls.Add(1)

		var req struct {
			TopK   int                          `json:"topK"`
			Filter map[string]map[string]string `json:"filter"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode query: %v", err)
		}
		if req.Filter["session_id"]["$eq"] != "s1" {
			t.Errorf("expected session filter, got %v", req.Filter)
		}
		if req.TopK != 2 {
			t.Errorf("expected topK=2, got %d", req.TopK)
		}
		_, _ = w.Write([]byte(`{
			"matches":[
				{"id":"doc1","score":0.9,"metadata":{"content":"hello","session_id":"s1"}},
				{"id":"doc2","score":0.8,"metadata":{"content":"world","session_id":"s1"}}
			]
		}`))
	})

	mux.HandleFunc("/vectors/delete", func(w http.ResponseWriter, r *http.Request) {
		deleteCalls.Add(1)
		_, _ = w.Write([]byte(`{}`))
	})

	mux.HandleFunc("/describe_index_stats", func(w http.ResponseWriter, r *http.Request) {
		countCalls.Add(1)
		_, _ = w.Write([]byte(`{"totalVectorCount":2,"namespaces":{"viva":{"vectorCount":1}}}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	store := NewPineconeStore(PineconeConfig{APIKey: "test-key", BaseURL: srv.URL}, zap.NewNop())
	ctx := context.Background()

	meta := map[string]any{"session_id": "s1"}
	docs := make([]Document, 0, 150)
	for i := 0; i < 150; i++ {
		docs = append(docs, Document{ID: fmt.Sprintf("doc%d", i), Content: "hello", Embedding: []float64{0.1, 0.2}, Metadata: meta})
	}
	if err := store.AddDocuments(ctx, docs); err != nil {
		t.Fatalf("AddDocuments: %v", err)
	}
	if upsertCalls.Load() != 2 {
		t.Fatalf("expected 2 upsert batches, got %d", upsertCalls.Load())
	}

	results, err := store.Search(ctx, []float64{0.1, 0.2}, 2, SessionFilter("s1"))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 || results[0].Document.Content != "hello" || results[0].Score != 0.9 {
		t.Fatalf("unexpected results: %+v", results)
	}

	n, err := store.Count(ctx)
	if err != nil || n != 2 {
		t.Fatalf("Count: n=%d err=%v", n, err)
	}

	nsStore := NewPineconeStore(PineconeConfig{APIKey: "test-key", BaseURL: srv.URL, Namespace: "viva"}, nil)
	if n, err := nsStore.Count(ctx); err != nil || n != 1 {
		t.Fatalf("namespace Count: n=%d err=%v", n, err)
	}

	if err := store.DeleteDocuments(ctx, []string{"doc1"}); err != nil {
		t.Fatalf("DeleteDocuments: %v", err)
	}
	if searchCalls.Load() != 1 || deleteCalls.Load() != 1 || countCalls.Load() != 2 {
		t.Fatalf("unexpected call counts: search=%d delete=%d count=%d",
			searchCalls.Load(), deleteCalls.Load(), countCalls.Load())
	}
}

func TestPineconeStore_ResolvesHostFromController(t *testing.T) {
	t.Parallel()

	data := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"matches":[]}`))
	}))
	t.Cleanup(data.Close)

	controller := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/indexes/viva" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = fmt.Fprintf(w, `{"host":%q}`, data.URL)
	}))
	t.Cleanup(controller.Close)

	store := NewPineconeStore(PineconeConfig{APIKey: "k", Index: "viva", ControllerBaseURL: controller.URL}, nil)
	results, err := store.Search(context.Background(), []float64{1}, 3, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}

func TestPineconeStore_Validation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := NewPineconeStore(PineconeConfig{APIKey: "k", BaseURL: "http://127.0.0.1:1"}, nil)
	if err := store.AddDocuments(ctx, []Document{{Embedding: []float64{1}}}); err == nil {
		t.Fatalf("expected empty id error")
	}
	if err := store.AddDocuments(ctx, []Document{{ID: "x"}}); err == nil {
		t.Fatalf("expected missing embedding error")
	}
	if _, err := store.Search(ctx, nil, 3, nil); err == nil {
		t.Fatalf("expected missing query embedding error")
	}
	if res, err := store.Search(ctx, []float64{1}, 0, nil); err != nil || len(res) != 0 {
		t.Fatalf("topK=0 should short-circuit")
	}

	noKey := NewPineconeStore(PineconeConfig{Index: "viva"}, nil)
	if err := noKey.AddDocuments(ctx, []Document{{ID: "x", Embedding: []float64{1}}}); err == nil {
		t.Fatalf("expected api key error")
	}
}

func TestPineconeStore_APIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"bad"}`, http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)

	store := NewPineconeStore(PineconeConfig{APIKey: "k", BaseURL: srv.URL}, nil)
	if _, err := store.Search(context.Background(), []float64{1}, 1, nil); err == nil {
		t.Fatalf("expected API error")
	}
}

func TestPineconeStore_RetriesTransientFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			http.Error(w, `{"message":"overloaded"}`, http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"matches":[]}`))
	}))
	t.Cleanup(srv.Close)

	store := NewPineconeStore(PineconeConfig{APIKey: "k", BaseURL: srv.URL, MaxRetries: 3, RetryBackoff: time.Millisecond}, nil)
	if _, err := store.Search(context.Background(), []float64{1}, 1, nil); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 calls, got %d", got)
	}
}

func TestPineconeStore_ClientErrorsAreNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"message":"bad"}`, http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)

	store := NewPineconeStore(PineconeConfig{APIKey: "k", BaseURL: srv.URL, MaxRetries: 3, RetryBackoff: time.Millisecond}, nil)
	_, err := store.Search(context.Background(), []float64{1}, 1, nil)
	var statusErr *pineconeStatusError
	if !errors.As(err, &statusErr) || statusErr.status != http.StatusBadRequest {
		t.Fatalf("expected 400 status error, got %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected a single call, got %d", got)
	}
}
