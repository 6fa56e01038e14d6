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


package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/grounder/ai"
	"github.com/poiesic/grounder/core"
	"github.com/poiesic/grounder/storage"
)

const (
	// DefaultVectorWeight is the fusion weight of the vector path.
	DefaultVectorWeight = 0.7

	// DefaultKeywordWeight is the fusion weight of the lexical path.
	DefaultKeywordWeight = 0.3

	// DefaultPathTimeout bounds each search path independently.
	DefaultPathTimeout = 10 * time.Second
)

// HybridRetriever combines vector similarity search and lexical keyword
// search over a chunk store into a single ranked result list.
//
// Both paths run concurrently with independent timeouts. Each path
// over-fetches twice the requested result count so that chunks ranked
// highly by only one path survive fusion. Scores are fused as a weighted
// sum; a chunk found by only one path contributes zero on the other.
type HybridRetriever struct {
	store         storage.ChunkStore
	embedder      ai.Embedder
	vectorWeight  float64
	keywordWeight float64
	pathTimeout   time.Duration
	pool          *ants.Pool
	ownPool       bool
	monitor       RetrievalMonitor
	logger        *slog.Logger
}

// RetrieverOption configures a HybridRetriever.
type RetrieverOption func(*HybridRetriever) error

// WithFusionWeights sets the weights applied to the vector and lexical
// sub-scores during fusion. Both must be non-negative.
func WithFusionWeights(vector, keyword float64) RetrieverOption {
	return func(r *HybridRetriever) error {
		if vector < 0 || keyword < 0 {
			return ErrInvalidWeights
		}
		r.vectorWeight = vector
		r.keywordWeight = keyword
		return nil
	}
}

// WithPathTimeout bounds each search path independently of the other.
func WithPathTimeout(d time.Duration) RetrieverOption {
	return func(r *HybridRetriever) error {
		if d <= 0 {
			return fmt.Errorf("path timeout must be positive, got %v", d)
		}
		r.pathTimeout = d
		return nil
	}
}

// WithPool runs search paths on an externally owned worker pool. The
// caller remains responsible for releasing it.
func WithPool(pool *ants.Pool) RetrieverOption {
	return func(r *HybridRetriever) error {
		if pool == nil {
			return fmt.Errorf("pool must not be nil")
		}
		r.pool = pool
		r.ownPool = false
		return nil
	}
}

// WithMonitor installs a monitor receiving per-stage callbacks.
func WithMonitor(m RetrievalMonitor) RetrieverOption {
	return func(r *HybridRetriever) error {
		if m == nil {
			return fmt.Errorf("monitor must not be nil")
		}
		r.monitor = m
		return nil
	}
}

// WithRetrieverLogger sets the logger for the retriever.
func WithRetrieverLogger(logger *slog.Logger) RetrieverOption {
	return func(r *HybridRetriever) error {
		r.logger = logger.With("component", "retrieval")
		return nil
	}
}

// NewHybridRetriever creates a retriever over the given store and
// embedder with default fusion weights.
func NewHybridRetriever(store storage.ChunkStore, embedder ai.Embedder, opts ...RetrieverOption) (*HybridRetriever, error) {
	if store == nil {
		return nil, ErrChunkStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	r := &HybridRetriever{
		store:         store,
		embedder:      embedder,
		vectorWeight:  DefaultVectorWeight,
		keywordWeight: DefaultKeywordWeight,
		pathTimeout:   DefaultPathTimeout,
		monitor:       noopMonitor{},
		logger:        slog.Default().With("component", "retrieval"),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	if r.pool == nil {
		size := runtime.NumCPU()
		if size < 2 {
			size = 2
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return nil, fmt.Errorf("failed to create worker pool: %w", err)
		}
		r.pool = pool
		r.ownPool = true
	}

	return r, nil
}

// Close releases the retriever's worker pool if it owns one.
func (r *HybridRetriever) Close() error {
	if r.ownPool && r.pool != nil {
		r.pool.Release()
		r.pool = nil
	}
	return nil
}

// Retrieve runs both search paths for the query and returns up to topK
// fused results, best first. Results are deterministic for identical
// store contents: equal scores are broken by ascending chunk id.
//
// A single failed path logs and degrades to the surviving path's
// results. When both paths fail the returned error wraps
// ErrSearchUnavailable. Two empty-but-successful paths yield an empty
// list and a nil error.
func (r *HybridRetriever) Retrieve(ctx context.Context, query string, topK int, filters *storage.SearchFilters) ([]*core.ScoredChunk, error) {
	if topK <= 0 {
		return nil, ErrInvalidTopK
	}
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	r.monitor.Start(query)

	// The store takes filters by value; nil means unfiltered.
	var f storage.SearchFilters
	if filters != nil {
		f = *filters
	}

	// Over-fetch so chunks strong on a single path survive fusion.
	fetchK := 2 * topK

	var (
		wg         sync.WaitGroup
		vecMatches []*storage.ChunkMatch
		lexMatches []*storage.ChunkMatch
		vecErr     error
		lexErr     error
	)

	wg.Add(2)
	r.submit(func() {
		defer wg.Done()
		vecMatches, vecErr = r.vectorSearch(ctx, query, fetchK, f)
	})
	r.submit(func() {
		defer wg.Done()
		lexMatches, lexErr = r.lexicalSearch(ctx, query, fetchK, f)
	})
	wg.Wait()

	if vecErr != nil {
		r.logger.Warn("vector search path failed", "error", vecErr)
		r.monitor.VectorPathFailed(vecErr)
	} else {
		r.monitor.AfterVectorSearch(vecMatches)
	}
	if lexErr != nil {
		r.logger.Warn("lexical search path failed", "error", lexErr)
		r.monitor.LexicalPathFailed(lexErr)
	} else {
		r.monitor.AfterLexicalSearch(lexMatches)
	}

	if vecErr != nil && lexErr != nil {
		return nil, fmt.Errorf("%w: vector: %w; lexical: %w", ErrSearchUnavailable, vecErr, lexErr)
	}

	results := r.fuse(vecMatches, lexMatches, topK)
	r.monitor.AfterFusion(results)

	r.logger.Debug("hybrid retrieval complete",
		"query_terms", len(distinctTerms(query)),
		"vector_matches", len(vecMatches),
		"lexical_matches", len(lexMatches),
		"results", len(results))

	return results, nil
}

// submit schedules fn on the worker pool, falling back to inline
// execution when the pool rejects the task.
func (r *HybridRetriever) submit(fn func()) {
	if err := r.pool.Submit(fn); err != nil {
		fn()
	}
}

func (r *HybridRetriever) vectorSearch(ctx context.Context, query string, fetchK int, filters storage.SearchFilters) ([]*storage.ChunkMatch, error) {
	ctx, cancel := context.WithTimeout(ctx, r.pathTimeout)
	defer cancel()

	vector, err := r.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	normalizeVector(vector)

	return r.store.SearchByVector(ctx, vector, fetchK, filters)
}

func (r *HybridRetriever) lexicalSearch(ctx context.Context, query string, fetchK int, filters storage.SearchFilters) ([]*storage.ChunkMatch, error) {
	ctx, cancel := context.WithTimeout(ctx, r.pathTimeout)
	defer cancel()

	return r.store.SearchByText(ctx, query, fetchK, filters)
}

// fuse merges both result sets by chunk id, computes weighted composite
// scores, ranks, and truncates to topK.
func (r *HybridRetriever) fuse(vecMatches, lexMatches []*storage.ChunkMatch, topK int) []*core.ScoredChunk {
	merged := make(map[core.ID]*core.ScoredChunk, len(vecMatches)+len(lexMatches))

	for _, m := range vecMatches {
		merged[m.Chunk.Id] = &core.ScoredChunk{
			Chunk:     m.Chunk,
			Breakdown: core.ScoreBreakdown{Semantic: m.Similarity},
		}
	}
	for _, m := range lexMatches {
		if sc, ok := merged[m.Chunk.Id]; ok {
			sc.Breakdown.Keyword = m.Similarity
		} else {
			merged[m.Chunk.Id] = &core.ScoredChunk{
				Chunk:     m.Chunk,
				Breakdown: core.ScoreBreakdown{Keyword: m.Similarity},
			}
		}
	}

	results := make([]*core.ScoredChunk, 0, len(merged))
	for _, sc := range merged {
		sc.Score = r.vectorWeight*sc.Breakdown.Semantic + r.keywordWeight*sc.Breakdown.Keyword
		results = append(results, sc)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.Id < results[j].Chunk.Id
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// normalizeVector scales a vector to unit length in place. Zero vectors
// are left untouched.
func normalizeVector(vector []float32) {
	var sumSquares float32
	for _, v := range vector {
		sumSquares += v * v
	}
	if sumSquares == 0 {
		return
	}
	norm := float32(math.Sqrt(float64(sumSquares)))
	for i := range vector {
		vector[i] /= norm
	}
}
