package retrieval

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/grounder/ai/mock"
	"github.com/poiesic/grounder/core"
	"github.com/poiesic/grounder/storage"
	storebadger "github.com/poiesic/grounder/storage/badger"
)

// flakyStore wraps a real store and forces errors on selected search
// paths.
type flakyStore struct {
	storage.ChunkStore
	vectorErr error
	lexErr    error
}

func (s *flakyStore) SearchByVector(ctx context.Context, vector []float32, topK int, filters storage.SearchFilters) ([]*storage.ChunkMatch, error) {
	if s.vectorErr != nil {
		return nil, s.vectorErr
	}
	return s.ChunkStore.SearchByVector(ctx, vector, topK, filters)
}

func (s *flakyStore) SearchByText(ctx context.Context, query string, topK int, filters storage.SearchFilters) ([]*storage.ChunkMatch, error) {
	if s.lexErr != nil {
		return nil, s.lexErr
	}
	return s.ChunkStore.SearchByText(ctx, query, topK, filters)
}

// stalledStore blocks the lexical path until its context expires.
type stalledStore struct {
	storage.ChunkStore
}

func (s *stalledStore) SearchByText(ctx context.Context, query string, topK int, filters storage.SearchFilters) ([]*storage.ChunkMatch, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func newTestStore(t *testing.T) storage.ChunkStore {
	t.Helper()
	store, backend, err := storebadger.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })
	return store
}

func fixedEmbedder(vector []float32) *mock.MockEmbedder {
	e := mock.NewMockEmbedder()
	e.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		out := make([]float32, len(vector))
		copy(out, vector)
		return out, nil
	}
	return e
}

func TestHybridRetrieverFusion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// One chunk findable only by vector, one only by keywords.
	vectorOnly := &core.Chunk{
		DocumentId: 1,
		TenantId:   "tenant-a",
		Text:       "unrelated prose about gardening tools",
		Vector:     []float32{0.9, 0.43588989, 0},
	}
	lexicalOnly := &core.Chunk{
		DocumentId: 2,
		TenantId:   "tenant-a",
		Ordinal:    0,
		Text:       "solar panel efficiency is improving every year",
	}
	irrelevant := &core.Chunk{
		DocumentId: 3,
		TenantId:   "tenant-a",
		Text:       "medieval pottery techniques",
		Vector:     []float32{0, 0, 1},
	}
	_, err := store.AddChunks(ctx, vectorOnly, lexicalOnly, irrelevant)
	require.NoError(t, err)

	retriever, err := NewHybridRetriever(store, fixedEmbedder([]float32{1, 0, 0}))
	require.NoError(t, err)
	defer retriever.Close()

	results, err := retriever.Retrieve(ctx, "solar panel efficiency degradation rates", 2,
		&storage.SearchFilters{TenantId: "tenant-a"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Vector-only chunk: 0.7 * 0.9 with no keyword contribution.
	assert.Equal(t, vectorOnly.Id, results[0].Chunk.Id)
	assert.InDelta(t, 0.63, results[0].Score, 1e-6)
	assert.InDelta(t, 0.9, results[0].Breakdown.Semantic, 1e-6)
	assert.Zero(t, results[0].Breakdown.Keyword)

	// Lexical-only chunk matches 3 of 5 query terms: 0.3 * 0.6.
	assert.Equal(t, lexicalOnly.Id, results[1].Chunk.Id)
	assert.InDelta(t, 0.18, results[1].Score, 1e-6)
	assert.InDelta(t, 0.6, results[1].Breakdown.Keyword, 1e-6)
	assert.Zero(t, results[1].Breakdown.Semantic)
}

func TestHybridRetrieverMergesSharedChunks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	both := &core.Chunk{
		DocumentId: 1,
		TenantId:   "tenant-a",
		Text:       "solar panel output",
		Vector:     []float32{1, 0, 0},
	}
	_, err := store.AddChunks(ctx, both)
	require.NoError(t, err)

	retriever, err := NewHybridRetriever(store, fixedEmbedder([]float32{1, 0, 0}))
	require.NoError(t, err)
	defer retriever.Close()

	results, err := retriever.Retrieve(ctx, "solar panel", 5,
		&storage.SearchFilters{TenantId: "tenant-a"})
	require.NoError(t, err)
	require.Len(t, results, 1)

	// Found by both paths: one entry carrying both sub-scores.
	assert.InDelta(t, 1.0, results[0].Breakdown.Semantic, 1e-6)
	assert.InDelta(t, 1.0, results[0].Breakdown.Keyword, 1e-6)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestHybridRetrieverDegradation(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T) storage.ChunkStore {
		store := newTestStore(t)
		_, err := store.AddChunks(ctx, &core.Chunk{
			DocumentId: 1,
			TenantId:   "tenant-a",
			Text:       "solar panel efficiency",
			Vector:     []float32{1, 0, 0},
		})
		require.NoError(t, err)
		return store
	}

	t.Run("vector path failure degrades to lexical results", func(t *testing.T) {
		store := &flakyStore{ChunkStore: seed(t), vectorErr: errors.New("embedding service down")}
		retriever, err := NewHybridRetriever(store, fixedEmbedder([]float32{1, 0, 0}))
		require.NoError(t, err)
		defer retriever.Close()

		results, err := retriever.Retrieve(ctx, "solar panel", 5,
			&storage.SearchFilters{TenantId: "tenant-a"})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Zero(t, results[0].Breakdown.Semantic)
		assert.InDelta(t, 1.0, results[0].Breakdown.Keyword, 1e-6)
	})

	t.Run("lexical path failure degrades to vector results", func(t *testing.T) {
		store := &flakyStore{ChunkStore: seed(t), lexErr: errors.New("index corrupt")}
		retriever, err := NewHybridRetriever(store, fixedEmbedder([]float32{1, 0, 0}))
		require.NoError(t, err)
		defer retriever.Close()

		results, err := retriever.Retrieve(ctx, "solar panel", 5,
			&storage.SearchFilters{TenantId: "tenant-a"})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.InDelta(t, 1.0, results[0].Breakdown.Semantic, 1e-6)
		assert.Zero(t, results[0].Breakdown.Keyword)
	})

	t.Run("both paths failing returns typed error", func(t *testing.T) {
		store := &flakyStore{
			ChunkStore: seed(t),
			vectorErr:  errors.New("embedding service down"),
			lexErr:     errors.New("index corrupt"),
		}
		retriever, err := NewHybridRetriever(store, fixedEmbedder([]float32{1, 0, 0}))
		require.NoError(t, err)
		defer retriever.Close()

		_, err = retriever.Retrieve(ctx, "solar panel", 5,
			&storage.SearchFilters{TenantId: "tenant-a"})
		require.ErrorIs(t, err, ErrSearchUnavailable)
	})

	t.Run("embedder failure counts as vector path failure", func(t *testing.T) {
		store := seed(t)
		embedder := mock.NewMockEmbedder()
		embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
			return nil, errors.New("provider unreachable")
		}
		retriever, err := NewHybridRetriever(store, embedder)
		require.NoError(t, err)
		defer retriever.Close()

		results, err := retriever.Retrieve(ctx, "solar panel", 5,
			&storage.SearchFilters{TenantId: "tenant-a"})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Zero(t, results[0].Breakdown.Semantic)
	})
}

func TestHybridRetrieverPathTimeout(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.AddChunks(ctx, &core.Chunk{
		DocumentId: 1,
		TenantId:   "tenant-a",
		Text:       "solar panel efficiency",
		Vector:     []float32{1, 0, 0},
	})
	require.NoError(t, err)

	retriever, err := NewHybridRetriever(&stalledStore{ChunkStore: store},
		fixedEmbedder([]float32{1, 0, 0}),
		WithPathTimeout(50*time.Millisecond))
	require.NoError(t, err)
	defer retriever.Close()

	// The stalled lexical path must not hold back the vector results
	// beyond its own timeout.
	start := time.Now()
	results, err := retriever.Retrieve(ctx, "solar panel", 5,
		&storage.SearchFilters{TenantId: "tenant-a"})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	require.Len(t, results, 1)
	assert.InDelta(t, 1.0, results[0].Breakdown.Semantic, 1e-6)
	assert.Zero(t, results[0].Breakdown.Keyword)
}

func TestHybridRetrieverEmptyResults(t *testing.T) {
	store := newTestStore(t)

	retriever, err := NewHybridRetriever(store, fixedEmbedder([]float32{1, 0, 0}))
	require.NoError(t, err)
	defer retriever.Close()

	results, err := retriever.Retrieve(context.Background(), "xyzzy123", 5,
		&storage.SearchFilters{TenantId: "tenant-a"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHybridRetrieverValidation(t *testing.T) {
	store := newTestStore(t)
	embedder := fixedEmbedder([]float32{1, 0, 0})

	t.Run("requires store", func(t *testing.T) {
		_, err := NewHybridRetriever(nil, embedder)
		require.ErrorIs(t, err, ErrChunkStoreRequired)
	})

	t.Run("requires embedder", func(t *testing.T) {
		_, err := NewHybridRetriever(store, nil)
		require.ErrorIs(t, err, ErrEmbedderRequired)
	})

	t.Run("rejects negative fusion weights", func(t *testing.T) {
		_, err := NewHybridRetriever(store, embedder, WithFusionWeights(-0.1, 0.3))
		require.ErrorIs(t, err, ErrInvalidWeights)
	})

	retriever, err := NewHybridRetriever(store, embedder)
	require.NoError(t, err)
	defer retriever.Close()

	t.Run("rejects zero top k", func(t *testing.T) {
		_, err := retriever.Retrieve(context.Background(), "query", 0, &storage.SearchFilters{TenantId: "t"})
		require.ErrorIs(t, err, ErrInvalidTopK)
	})

	t.Run("rejects empty query", func(t *testing.T) {
		_, err := retriever.Retrieve(context.Background(), "   ", 5, &storage.SearchFilters{TenantId: "t"})
		require.ErrorIs(t, err, ErrEmptyQuery)
	})
}

func TestHybridRetrieverDeterminism(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Several chunks with identical scores on both paths.
	chunks := make([]*core.Chunk, 0, 6)
	for i := 0; i < 6; i++ {
		chunks = append(chunks, &core.Chunk{
			DocumentId: core.ID(i + 1),
			TenantId:   "tenant-a",
			Text:       fmt.Sprintf("solar panel efficiency report copy %d", i),
			Vector:     []float32{1, 0, 0},
		})
	}
	_, err := store.AddChunks(ctx, chunks...)
	require.NoError(t, err)

	retriever, err := NewHybridRetriever(store, fixedEmbedder([]float32{1, 0, 0}))
	require.NoError(t, err)
	defer retriever.Close()

	var first []core.ID
	for run := 0; run < 5; run++ {
		results, err := retriever.Retrieve(ctx, "solar panel efficiency", 4,
			&storage.SearchFilters{TenantId: "tenant-a"})
		require.NoError(t, err)
		require.Len(t, results, 4)

		ids := make([]core.ID, len(results))
		for i, sc := range results {
			ids[i] = sc.Chunk.Id
		}
		for i := 1; i < len(ids); i++ {
			assert.Less(t, ids[i-1], ids[i], "ties must break by ascending id")
		}
		if run == 0 {
			first = ids
		} else {
			assert.Equal(t, first, ids, "repeated retrievals must rank identically")
		}
	}
}

func TestHybridRetrieverCustomWeights(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.AddChunks(ctx, &core.Chunk{
		DocumentId: 1,
		TenantId:   "tenant-a",
		Text:       "solar panel",
		Vector:     []float32{1, 0, 0},
	})
	require.NoError(t, err)

	retriever, err := NewHybridRetriever(store, fixedEmbedder([]float32{1, 0, 0}),
		WithFusionWeights(0.5, 0.5))
	require.NoError(t, err)
	defer retriever.Close()

	results, err := retriever.Retrieve(ctx, "solar panel", 5,
		&storage.SearchFilters{TenantId: "tenant-a"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestNormalizeVector(t *testing.T) {
	v := []float32{3, 4}
	normalizeVector(v)
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	zero := []float32{0, 0}
	normalizeVector(zero)
	assert.Equal(t, []float32{0, 0}, zero)
}
