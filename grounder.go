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


// Package grounder assembles retrieval-grounded generation: a chunk
// store, hybrid retrieval with rescoring and filtering, query
// reformulation, and cached multi-provider generation behind one
// facade.
package grounder

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/poiesic/grounder/ai"
	"github.com/poiesic/grounder/ai/openai"
	"github.com/poiesic/grounder/core"
	"github.com/poiesic/grounder/generate"
	"github.com/poiesic/grounder/ingestion"
	"github.com/poiesic/grounder/retrieval"
	"github.com/poiesic/grounder/storage"
	"github.com/poiesic/grounder/storage/badger"
)

// DefaultTopK is how many chunks a retrieval returns when the caller
// does not say.
const DefaultTopK = 10

// Engine wires the full pipeline together. Construct one with
// NewEngine and release it with Close.
type Engine struct {
	backend      *badger.Backend
	store        storage.ChunkStore
	providers    []ai.Provider
	ownProviders bool
	retriever    *retrieval.HybridRetriever
	scorer       *retrieval.RelevanceScorer
	filter       *retrieval.ContextFilter
	reformulator *retrieval.QueryReformulator
	service      *generate.Service
	logger       *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	aiConfig     *ai.Config
	inMemory     bool
	providers    []ai.Provider
	filterPolicy *retrieval.FilterPolicy
	scoreWeights *retrieval.ScoreWeights
	serviceOpts  []generate.ServiceOption
}

// WithAIConfig sets the provider configuration used when no explicit
// providers are given.
func WithAIConfig(config *ai.Config) EngineOption {
	return func(o *engineOptions) {
		o.aiConfig = config
	}
}

// WithInMemory opens the underlying store in memory, without files.
func WithInMemory() EngineOption {
	return func(o *engineOptions) {
		o.inMemory = true
	}
}

// WithProviders supplies the providers directly instead of building one
// from the AI configuration. The first provider is the default for
// embedding and generation. The caller keeps ownership; Close will not
// close them.
func WithProviders(providers ...ai.Provider) EngineOption {
	return func(o *engineOptions) {
		o.providers = providers
	}
}

// WithFilterPolicy overrides the context filtering thresholds.
func WithFilterPolicy(policy retrieval.FilterPolicy) EngineOption {
	return func(o *engineOptions) {
		o.filterPolicy = &policy
	}
}

// WithScoreWeights overrides the relevance scoring weights.
func WithScoreWeights(weights retrieval.ScoreWeights) EngineOption {
	return func(o *engineOptions) {
		o.scoreWeights = &weights
	}
}

// WithServiceOptions passes options through to the generation service,
// for fallback routing, caching, prompts, and token budgets.
func WithServiceOptions(opts ...generate.ServiceOption) EngineOption {
	return func(o *engineOptions) {
		o.serviceOpts = append(o.serviceOpts, opts...)
	}
}

// NewEngine opens the store at filePath and assembles the pipeline.
func NewEngine(filePath string, opts ...EngineOption) (*Engine, error) {
	options := &engineOptions{
		aiConfig: ai.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	store, err := badger.NewChunkRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	providers := options.providers
	ownProviders := false
	if len(providers) == 0 {
		provider, err := openai.NewProvider(options.aiConfig)
		if err != nil {
			backend.Close()
			return nil, err
		}
		providers = []ai.Provider{provider}
		ownProviders = true
	}
	primary := providers[0]

	fail := func(err error) (*Engine, error) {
		if ownProviders {
			for _, p := range providers {
				p.Close()
			}
		}
		backend.Close()
		return nil, err
	}

	retriever, err := retrieval.NewHybridRetriever(store, primary.Embedder())
	if err != nil {
		return fail(err)
	}

	var scorerOpts []retrieval.ScorerOption
	if options.scoreWeights != nil {
		scorerOpts = append(scorerOpts, retrieval.WithScoreWeights(*options.scoreWeights))
	}
	scorer, err := retrieval.NewRelevanceScorer(scorerOpts...)
	if err != nil {
		retriever.Close()
		return fail(err)
	}

	policy := retrieval.DefaultFilterPolicy()
	if options.filterPolicy != nil {
		policy = *options.filterPolicy
	}

	reformulator, err := retrieval.NewQueryReformulator(
		retrieval.WithGenerator(primary.Generator()))
	if err != nil {
		retriever.Close()
		return fail(err)
	}

	service, err := generate.NewService(providers, options.serviceOpts...)
	if err != nil {
		retriever.Close()
		return fail(err)
	}

	return &Engine{
		backend:      backend,
		store:        store,
		providers:    providers,
		ownProviders: ownProviders,
		retriever:    retriever,
		scorer:       scorer,
		filter:       retrieval.NewContextFilter(policy),
		reformulator: reformulator,
		service:      service,
		logger:       slog.Default().With("component", "grounder"),
	}, nil
}

// Close releases the retriever, providers the engine owns, and the
// backing store.
func (e *Engine) Close() error {
	if err := e.retriever.Close(); err != nil {
		e.logger.Error("error closing retriever", "err", err)
	}
	if e.ownProviders {
		for _, p := range e.providers {
			if err := p.Close(); err != nil {
				e.logger.Error("error closing provider", "err", err)
			}
		}
	}
	if err := e.backend.Close(); err != nil {
		e.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// ChunkStore exposes the underlying chunk store.
func (e *Engine) ChunkStore() storage.ChunkStore {
	return e.store
}

// Retrieve runs hybrid retrieval for the query, rescores the results,
// and filters them by policy. When the literal query finds nothing,
// reformulated variants are retried in order until one produces
// results; a query that stays empty through every variant returns an
// empty list and a nil error.
func (e *Engine) Retrieve(ctx context.Context, query string, topK int, filters *storage.SearchFilters) ([]*core.ScoredChunk, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	results, err := e.retriever.Retrieve(ctx, query, topK, filters)
	if err != nil {
		return nil, err
	}

	if len(results) == 0 {
		for _, variant := range e.reformulator.Reformulate(ctx, query)[1:] {
			e.logger.Debug("retrying with reformulated query", "variant", variant)
			results, err = e.retriever.Retrieve(ctx, variant, topK, filters)
			if err != nil {
				return nil, err
			}
			if len(results) > 0 {
				break
			}
		}
	}
	if len(results) == 0 {
		return results, nil
	}

	e.scorer.Rescore(results, query, nil)
	return e.filter.Filter(results), nil
}

// Answer retrieves grounding context for the question and generates an
// answer from it. Returns retrieval.ErrNoResults when nothing relevant
// was found even after reformulation.
func (e *Engine) Answer(ctx context.Context, question string, filters *storage.SearchFilters) (*core.GenerationResult, error) {
	chunks, err := e.Retrieve(ctx, question, DefaultTopK, filters)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, retrieval.ErrNoResults
	}

	return e.service.Generate(ctx, &generate.Request{
		PromptType: generate.PromptAnswer,
		Params:     map[string]string{"query": question},
		UseCache:   true,
		Context:    chunks,
	})
}

// Generate runs a raw generation request against the service, without
// retrieval.
func (e *Engine) Generate(ctx context.Context, req *generate.Request) (*core.GenerationResult, error) {
	return e.service.Generate(ctx, req)
}

// Reformulate produces alternate phrasings of the query, the original
// first. Useful for surfacing the variants Retrieve falls back to.
func (e *Engine) Reformulate(ctx context.Context, query string) []string {
	return e.reformulator.Reformulate(ctx, query)
}

// NewIngestionPipeline creates an ingestion pipeline over the engine's
// store and primary provider.
func (e *Engine) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	return ingestion.NewPipeline(e.store, e.providers[0].Embedder(), opts...)
}

// NewBackfiller creates a backfiller that embeds chunks stored without
// vectors.
func (e *Engine) NewBackfiller(config *ingestion.BackfillConfig, progress io.Writer) *ingestion.Backfiller {
	return ingestion.NewBackfiller(e.store, e.providers[0].Embedder(), config, progress)
}

// CacheStats reports the response cache counters.
func (e *Engine) CacheStats() generate.CacheStats {
	return e.service.Cache().Stats()
}

// ClearCache discards all cached responses.
func (e *Engine) ClearCache() {
	e.service.Cache().Clear()
}

// IsNoResults reports whether an error means retrieval found nothing
// relevant.
func IsNoResults(err error) bool {
	return errors.Is(err, retrieval.ErrNoResults)
}
