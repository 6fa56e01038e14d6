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
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/grounder/ai"
	"github.com/poiesic/grounder/core"
	"github.com/poiesic/grounder/storage"
)

// DefaultEmbedBatchSize is how many chunk texts go into one embedding
// request.
const DefaultEmbedBatchSize = 16

// Pipeline segments documents into chunks, embeds them concurrently,
// and persists them to a chunk store.
type Pipeline struct {
	store      storage.ChunkStore
	embedder   ai.Embedder
	segmenter  *Segmenter
	pool       *ants.Pool
	batchSize  int
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent embedding.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithSegmenter replaces the default segmenter.
func WithSegmenter(segmenter *Segmenter) Option {
	return func(p *Pipeline) error {
		if segmenter != nil {
			p.segmenter = segmenter
		}
		return nil
	}
}

// WithEmbedBatchSize sets how many chunk texts go into one embedding
// request.
func WithEmbedBatchSize(n int) Option {
	return func(p *Pipeline) error {
		if n > 0 {
			p.batchSize = n
		}
		return nil
	}
}

// WithRetry configures embedding retry behavior.
func WithRetry(maxRetries int, baseDelay time.Duration) Option {
	return func(p *Pipeline) error {
		if maxRetries > 0 {
			p.maxRetries = maxRetries
		}
		if baseDelay > 0 {
			p.retryDelay = baseDelay
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger.With("component", "ingestion")
		return nil
	}
}

// NewPipeline creates an ingestion pipeline.
func NewPipeline(store storage.ChunkStore, embedder ai.Embedder, opts ...Option) (*Pipeline, error) {
	if store == nil {
		return nil, ErrChunkStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		store:      store,
		embedder:   embedder,
		segmenter:  NewSegmenter(),
		pool:       pool,
		batchSize:  DefaultEmbedBatchSize,
		maxRetries: 3,
		retryDelay: time.Second,
		logger:     slog.Default().With("component", "ingestion"),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			pool.Release()
			return nil, err
		}
	}

	return p, nil
}

// Close releases the pipeline's worker pool.
func (p *Pipeline) Close() error {
	if p.pool != nil {
		p.pool.Release()
		p.pool = nil
	}
	return nil
}

// IngestDocument segments a document, embeds the chunks, and stores
// them. Chunks whose embedding fails after retries are stored without a
// vector and picked up later by a Backfiller; only storage failures
// abort the ingestion. A document without an id gets a content-derived
// one. Returns the stored chunks with ids assigned.
func (p *Pipeline) IngestDocument(ctx context.Context, doc *Document) ([]*core.Chunk, error) {
	if doc == nil || strings.TrimSpace(doc.Text) == "" {
		return nil, ErrEmptyDocument
	}
	if doc.TenantId == "" {
		return nil, ErrMissingTenant
	}
	if doc.Id == 0 {
		doc.Id = core.IDFromContent(doc.TenantId + "\x00" + doc.Title + "\x00" + doc.Text)
	}

	chunks := p.segmenter.Segment(doc)
	if len(chunks) == 0 {
		return nil, ErrEmptyDocument
	}

	p.embedChunks(ctx, chunks)

	stored, err := p.store.AddChunks(ctx, chunks...)
	if err != nil {
		return nil, err
	}

	embedded := 0
	for _, c := range stored {
		if c.HasVector() {
			embedded++
		}
	}
	p.logger.Info("document ingested",
		"document_id", doc.Id.String(),
		"chunks", len(stored),
		"embedded", embedded)

	return stored, nil
}

// embedChunks embeds chunk texts in concurrent batches, assigning
// normalized vectors in place. Failed batches are logged and left
// without vectors.
func (p *Pipeline) embedChunks(ctx context.Context, chunks []*core.Chunk) {
	var wg sync.WaitGroup
	for start := 0; start < len(chunks); start += p.batchSize {
		end := start + p.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		wg.Add(1)
		task := func() {
			defer wg.Done()
			p.embedBatch(ctx, batch)
		}
		if err := p.pool.Submit(task); err != nil {
			task()
		}
	}
	wg.Wait()
}

func (p *Pipeline) embedBatch(ctx context.Context, batch []*core.Chunk) {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Text
	}

	var vectors [][]float32
	err := retry(ctx, p.maxRetries, p.retryDelay, func() error {
		var embedErr error
		vectors, embedErr = p.embedder.EmbedTexts(ctx, texts)
		return embedErr
	})
	if err != nil {
		p.logger.Warn("embedding batch failed, chunks stored without vectors",
			"batch_size", len(batch), "error", err)
		return
	}
	if len(vectors) != len(batch) {
		p.logger.Warn("embedder returned wrong vector count",
			"expected", len(batch), "got", len(vectors))
		return
	}

	for i, c := range batch {
		c.Vector = NormalizeVector(vectors[i])
	}
}
