package ingestion

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/grounder/ai/mock"
	"github.com/poiesic/grounder/core"
	"github.com/poiesic/grounder/storage"
)

func seedPending(t *testing.T, store storage.ChunkStore, n int) []*core.Chunk {
	t.Helper()
	chunks := make([]*core.Chunk, 0, n)
	for i := 0; i < n; i++ {
		chunks = append(chunks, &core.Chunk{
			DocumentId: 1,
			TenantId:   "tenant-a",
			Ordinal:    i,
			Text:       "pending chunk text",
		})
	}
	stored, err := store.AddChunks(context.Background(), chunks...)
	require.NoError(t, err)
	return stored
}

func backfillConfig() *BackfillConfig {
	return &BackfillConfig{
		BatchSize:      2,
		ReportInterval: 1,
		MaxRetries:     2,
		RetryDelay:     time.Millisecond,
	}
}

func TestBackfillerEmbedsPendingChunks(t *testing.T) {
	store := newTestStore(t)
	seedPending(t, store, 5)
	ctx := context.Background()

	var out bytes.Buffer
	backfiller := NewBackfiller(store, mock.NewMockEmbedder(), backfillConfig(), &out)

	n, err := backfiller.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	pending, err := store.GetChunksWithoutVectors(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending, "backfill must drain the pending index")
	assert.Contains(t, out.String(), "Backfill complete")
}

func TestBackfillerNothingPending(t *testing.T) {
	store := newTestStore(t)

	var out bytes.Buffer
	backfiller := NewBackfiller(store, mock.NewMockEmbedder(), backfillConfig(), &out)

	n, err := backfiller.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Contains(t, out.String(), "No chunks awaiting embedding")
}

func TestBackfillerRetriesThenFails(t *testing.T) {
	store := newTestStore(t)
	seedPending(t, store, 1)

	attempts := 0
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		attempts++
		return nil, errors.New("provider down")
	}

	var out bytes.Buffer
	backfiller := NewBackfiller(store, embedder, backfillConfig(), &out)

	_, err := backfiller.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, attempts, "embedding must be retried")
}

func TestBackfillerRecoversAfterTransientFailure(t *testing.T) {
	store := newTestStore(t)
	seedPending(t, store, 1)

	attempts := 0
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("transient")
		}
		vectors := make([][]float32, len(texts))
		for i := range texts {
			vectors[i] = []float32{1, 0, 0}
		}
		return vectors, nil
	}

	var out bytes.Buffer
	backfiller := NewBackfiller(store, embedder, backfillConfig(), &out)

	n, err := backfiller.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
