package ingestion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/grounder/ai/mock"
	"github.com/poiesic/grounder/core"
	"github.com/poiesic/grounder/storage"
	storebadger "github.com/poiesic/grounder/storage/badger"
)

func newTestStore(t *testing.T) storage.ChunkStore {
	t.Helper()
	store, backend, err := storebadger.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })
	return store
}

func newTestPipeline(t *testing.T, store storage.ChunkStore, embedder *mock.MockEmbedder) *Pipeline {
	t.Helper()
	p, err := NewPipeline(store, embedder, WithRetry(1, time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestPipelineValidation(t *testing.T) {
	store := newTestStore(t)
	embedder := mock.NewMockEmbedder()

	t.Run("requires store", func(t *testing.T) {
		_, err := NewPipeline(nil, embedder)
		require.ErrorIs(t, err, ErrChunkStoreRequired)
	})

	t.Run("requires embedder", func(t *testing.T) {
		_, err := NewPipeline(store, nil)
		require.ErrorIs(t, err, ErrEmbedderRequired)
	})

	p := newTestPipeline(t, store, embedder)

	t.Run("rejects empty document", func(t *testing.T) {
		_, err := p.IngestDocument(context.Background(), &Document{TenantId: "t", Text: "  "})
		require.ErrorIs(t, err, ErrEmptyDocument)
	})

	t.Run("rejects missing tenant", func(t *testing.T) {
		_, err := p.IngestDocument(context.Background(), &Document{Text: "content"})
		require.ErrorIs(t, err, ErrMissingTenant)
	})
}

func TestPipelineIngestDocument(t *testing.T) {
	store := newTestStore(t)
	embedder := mock.NewMockEmbedder()
	p := newTestPipeline(t, store, embedder)
	ctx := context.Background()

	doc := &Document{
		TenantId: "tenant-a",
		Title:    "Energy",
		Text:     "Solar output rose sharply.\n\nWind output fell slightly.",
	}
	stored, err := p.IngestDocument(ctx, doc)
	require.NoError(t, err)
	require.NotEmpty(t, stored)

	assert.NotZero(t, doc.Id, "document id must be derived from content")

	for _, c := range stored {
		assert.NotZero(t, c.Id)
		assert.Equal(t, doc.Id, c.DocumentId)
		assert.True(t, c.HasVector(), "chunks must be embedded on ingest")
		assert.Equal(t, "Energy", c.Metadata[core.MetaTitle])
	}

	// Stored chunks are immediately searchable.
	matches, err := store.SearchByText(ctx, "solar output", 10, storage.SearchFilters{TenantId: "tenant-a"})
	require.NoError(t, err)
	assert.NotEmpty(t, matches)

	pending, err := store.GetChunksWithoutVectors(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestPipelineDegradesOnEmbedFailure(t *testing.T) {
	store := newTestStore(t)
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("provider unreachable")
	}
	p := newTestPipeline(t, store, embedder)
	ctx := context.Background()

	stored, err := p.IngestDocument(ctx, &Document{
		TenantId: "tenant-a",
		Text:     "content that cannot be embedded right now",
	})
	require.NoError(t, err, "embedding failure must not abort ingestion")
	require.Len(t, stored, 1)
	assert.False(t, stored[0].HasVector())

	// The chunk waits in the pending index for backfill.
	pending, err := store.GetChunksWithoutVectors(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, stored[0].Id, pending[0].Id)
}

func TestPipelineDeterministicDocumentId(t *testing.T) {
	store := newTestStore(t)
	p := newTestPipeline(t, store, mock.NewMockEmbedder())
	ctx := context.Background()

	a := &Document{TenantId: "tenant-a", Title: "T", Text: "same content"}
	b := &Document{TenantId: "tenant-a", Title: "T", Text: "same content"}
	_, err := p.IngestDocument(ctx, a)
	require.NoError(t, err)
	_, err = p.IngestDocument(ctx, b)
	require.NoError(t, err)

	assert.Equal(t, a.Id, b.Id)
}
