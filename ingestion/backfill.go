// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ingestion

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/poiesic/grounder/ai"
	"github.com/poiesic/grounder/core"
	"github.com/poiesic/grounder/storage"
)

// BackfillConfig holds configuration for the embedding backfill.
type BackfillConfig struct {
	// BatchSize is the number of chunks embedded per request
	BatchSize int

	// ReportInterval is how often to report progress (number of chunks)
	ReportInterval int

	// MaxRetries is the maximum number of retry attempts for failed operations
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultBackfillConfig returns a BackfillConfig with sensible defaults.
func DefaultBackfillConfig() *BackfillConfig {
	return &BackfillConfig{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Backfiller embeds chunks that were stored without vectors, draining
// the store's pending index in batches.
type Backfiller struct {
	store    storage.ChunkStore
	embedder ai.Embedder
	config   *BackfillConfig
	progress io.Writer
}

// NewBackfiller creates a backfiller.
// progress: where to write progress output (typically os.Stderr)
func NewBackfiller(store storage.ChunkStore, embedder ai.Embedder, config *BackfillConfig, progress io.Writer) *Backfiller {
	if config == nil {
		config = DefaultBackfillConfig()
	}
	return &Backfiller{
		store:    store,
		embedder: embedder,
		config:   config,
		progress: progress,
	}
}

// Run embeds every chunk currently missing a vector, draining the
// pending index one batch at a time. Progress is reported to the
// configured writer. Returns the number of chunks embedded.
func (b *Backfiller) Run(ctx context.Context) (int, error) {
	batch, err := b.store.GetChunksWithoutVectors(ctx, b.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to query pending chunks: %w", err)
	}
	if len(batch) == 0 {
		fmt.Fprintf(b.progress, "No chunks awaiting embedding (0 chunks)\n")
		return 0, nil
	}

	fmt.Fprintf(b.progress, "Starting embedding backfill (batch size: %d)\n", b.config.BatchSize)

	tracker := newProgressTracker(b.progress, 0, b.config.ReportInterval)

	// Embedded chunks leave the pending index, so each fetch returns
	// the next unprocessed batch.
	processed := 0
	for len(batch) > 0 {
		if err := b.processBatch(ctx, batch); err != nil {
			return processed, fmt.Errorf("failed to process batch: %w", err)
		}

		processed += len(batch)
		tracker.Add(len(batch))

		batch, err = b.store.GetChunksWithoutVectors(ctx, b.config.BatchSize)
		if err != nil {
			return processed, fmt.Errorf("failed to query pending chunks: %w", err)
		}
	}

	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(b.progress, "Backfill complete. Embedded %d chunks in %v (%.1f chunks/sec)\n",
		processed, elapsed.Round(time.Second), float64(processed)/elapsed.Seconds())

	return processed, nil
}

// processBatch embeds one batch with retry and writes the updated
// chunks back to the store.
func (b *Backfiller) processBatch(ctx context.Context, batch []*core.Chunk) error {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Text
	}

	var vectors [][]float32
	err := retry(ctx, b.config.MaxRetries, b.config.RetryDelay, func() error {
		var embedErr error
		vectors, embedErr = b.embedder.EmbedTexts(ctx, texts)
		return embedErr
	})
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}
	if len(vectors) != len(batch) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(batch))
	}

	for i, c := range batch {
		c.Vector = NormalizeVector(vectors[i])
	}

	return retry(ctx, b.config.MaxRetries, b.config.RetryDelay, func() error {
		_, err := b.store.UpdateChunks(ctx, batch...)
		return err
	})
}
