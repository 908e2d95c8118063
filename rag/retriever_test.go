package rag

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixedEmbedder struct {
	vec []float64
	err error
}

func (f fixedEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

type recordingStore struct {
	*InMemoryVectorStore
	lastTopK   int
	lastFilter Filter
}

func (r *recordingStore) Search(ctx context.Context, q []float64, topK int, f Filter) ([]VectorSearchResult, error) {
	r.lastTopK, r.lastFilter = topK, f
	return r.InMemoryVectorStore.Search(ctx, q, topK, f)
}

func seedStore(t *testing.T) *recordingStore {
	t.Helper()
	store := &recordingStore{InMemoryVectorStore: NewInMemoryVectorStore(zap.NewNop())}
	docs := []Document{
		{ID: "1", Content: "paging", Embedding: []float64{1, 0}, Metadata: map[string]any{"session_id": "s1"}},
		{ID: "2", Content: "paging", Embedding: []float64{0.99, 0.1}, Metadata: map[string]any{"session_id": "s1"}},
		{ID: "3", Content: "segmentation", Embedding: []float64{0.7, 0.7}, Metadata: map[string]any{"session_id": "s1"}},
		{ID: "4", Content: "tlb", Embedding: []float64{0.2, 1}, Metadata: map[string]any{"session_id": "s1"}},
		{ID: "5", Content: "foreign", Embedding: []float64{1, 0}, Metadata: map[string]any{"session_id": "s2"}},
		{ID: "6", Content: "untagged", Embedding: []float64{1, 0}},
	}
	require.NoError(t, store.AddDocuments(context.Background(), docs))
	return store
}

func TestSessionRetriever_EmptySessionReturnsNothing(t *testing.T) {
	store := seedStore(t)
	r := NewSessionRetriever(store, fixedEmbedder{vec: []float64{1, 0}}, DefaultRetrieverConfig(), nil)

	got, err := r.Search(context.Background(), "paging", 5, "")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 0, store.lastTopK, "store must not be queried")
}

func TestSessionRetriever_FiltersDedupsAndTruncates(t *testing.T) {
	store := seedStore(t)
	var observed int
	r := NewSessionRetriever(store, fixedEmbedder{vec: []float64{1, 0}}, DefaultRetrieverConfig(), nil,
		WithSearchObserver(func(_ string, n int, _ time.Duration, err error) {
			observed = n
			assert.NoError(t, err)
		}))

	got, err := r.Search(context.Background(), "paging", 2, "s1")
	require.NoError(t, err)

	assert.Equal(t, 6, store.lastTopK, "over-fetch 3x")
	assert.Equal(t, SessionFilter("s1"), store.lastFilter)
	require.Len(t, got, 2)
	assert.Equal(t, "paging", got[0].Content)
	assert.Equal(t, "segmentation", got[1].Content)
	assert.GreaterOrEqual(t, got[0].Score, got[1].Score)
	assert.Equal(t, 2, observed)

	texts, err := r.Retrieve(context.Background(), "paging", 10, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"paging", "segmentation", "tlb"}, texts)
}

func TestSessionRetriever_TokenBudget(t *testing.T) {
	store := seedStore(t)
	cfg := RetrieverConfig{OverFetch: 3, MaxContextTokens: 2}
	r := NewSessionRetriever(store, fixedEmbedder{vec: []float64{1, 0}}, cfg, nil, WithTokenizer(EstimateTokenizer{}))

	got, err := r.Search(context.Background(), "q", 5, "s1")
	require.NoError(t, err)
	// "paging"=2 tokens, "segmentation"=3 tokens
	require.Len(t, got, 1)
	assert.Equal(t, "paging", got[0].Content)
}

func TestSessionRetriever_EmbedFailure(t *testing.T) {
	r := NewSessionRetriever(seedStore(t), fixedEmbedder{err: errors.New("quota")}, DefaultRetrieverConfig(), nil)
	_, err := r.Search(context.Background(), "q", 3, "s1")
	assert.ErrorContains(t, err, "quota")
}

func TestTrimToTokenBudget(t *testing.T) {
	ps := []Passage{{Content: "aaaaaaaa"}, {Content: "bbbb"}}
	assert.Len(t, TrimToTokenBudget(ps, 0, EstimateTokenizer{}), 2)
	assert.Len(t, TrimToTokenBudget(ps, 3, EstimateTokenizer{}), 2)
	assert.Len(t, TrimToTokenBudget(ps, 2, EstimateTokenizer{}), 1, "first passage always kept")
	assert.Len(t, TrimToTokenBudget(ps, 1, EstimateTokenizer{}), 1)
}
