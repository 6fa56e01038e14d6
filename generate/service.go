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


package generate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/grounder/ai"
	"github.com/poiesic/grounder/core"
)

// Request describes one generation call.
type Request struct {
	// PromptType selects the template, for example PromptAnswer.
	PromptType string

	// Params fills the template's placeholders. The "context"
	// parameter is derived from Context when not set explicitly.
	Params map[string]string

	// Provider names the provider to use. Empty selects the first
	// registered provider.
	Provider string

	// UseCache enables the response cache for this request.
	UseCache bool

	// Context carries retrieved chunks to ground the generation, in
	// rank order. It is fitted to the token budget before rendering.
	Context []*core.ScoredChunk
}

// Service orchestrates generation across an ordered registry of named
// providers with caching, prompt templating, context budgeting, and a
// single-step fallback on provider failure.
type Service struct {
	order     []string
	providers map[string]ai.Provider
	fallbacks map[string]string
	prompts   *PromptSet
	budget    *ContextBudget
	cache     *ResponseCache
	logger    *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service) error

// WithPrompts replaces the default prompt template set.
func WithPrompts(prompts *PromptSet) ServiceOption {
	return func(s *Service) error {
		if prompts == nil {
			return fmt.Errorf("prompt set must not be nil")
		}
		s.prompts = prompts
		return nil
	}
}

// WithBudget replaces the default context token budget.
func WithBudget(budget *ContextBudget) ServiceOption {
	return func(s *Service) error {
		if budget == nil {
			return fmt.Errorf("budget must not be nil")
		}
		s.budget = budget
		return nil
	}
}

// WithCache replaces the default response cache.
func WithCache(cache *ResponseCache) ServiceOption {
	return func(s *Service) error {
		if cache == nil {
			return fmt.Errorf("cache must not be nil")
		}
		s.cache = cache
		return nil
	}
}

// WithFallback routes failures of one provider to a single alternate.
// Both names must belong to registered providers.
func WithFallback(provider, alternate string) ServiceOption {
	return func(s *Service) error {
		if _, ok := s.providers[provider]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
		}
		if _, ok := s.providers[alternate]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownProvider, alternate)
		}
		if provider == alternate {
			return fmt.Errorf("provider %q cannot be its own fallback", provider)
		}
		s.fallbacks[provider] = alternate
		return nil
	}
}

// WithServiceLogger sets the logger for the service.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) error {
		s.logger = logger.With("component", "generate")
		return nil
	}
}

// NewService creates a generation service over the given providers. The
// first provider is the default when a request names none. Provider
// names must be unique.
func NewService(providers []ai.Provider, opts ...ServiceOption) (*Service, error) {
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}

	s := &Service{
		order:     make([]string, 0, len(providers)),
		providers: make(map[string]ai.Provider, len(providers)),
		fallbacks: make(map[string]string),
		prompts:   NewPromptSet(),
		logger:    slog.Default().With("component", "generate"),
	}
	for _, p := range providers {
		name := p.Name()
		if _, ok := s.providers[name]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateProvider, name)
		}
		s.order = append(s.order, name)
		s.providers[name] = p
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.budget == nil {
		budget, err := NewContextBudget()
		if err != nil {
			return nil, err
		}
		s.budget = budget
	}
	if s.cache == nil {
		cache, err := NewResponseCache()
		if err != nil {
			return nil, err
		}
		s.cache = cache
	}

	return s, nil
}

// Providers returns the registered provider names in registration
// order.
func (s *Service) Providers() []string {
	names := make([]string, len(s.order))
	copy(names, s.order)
	return names
}

// Cache exposes the service's response cache.
func (s *Service) Cache() *ResponseCache {
	return s.cache
}

// Generate runs one generation request. Identical requests with caching
// enabled invoke the provider once; subsequent calls are served from
// the cache. When the resolved provider fails, its configured alternate
// is tried exactly once before the call fails with
// ErrAllProvidersFailed. A cancelled request skips the fallback and
// never populates the cache.
func (s *Service) Generate(ctx context.Context, req *Request) (*core.GenerationResult, error) {
	name, err := s.resolve(req.Provider)
	if err != nil {
		return nil, err
	}

	sources := s.budget.FitChunks(req.Context)
	params := s.buildParams(req, sources)

	fingerprint := Fingerprint(req.PromptType, name, params)
	if req.UseCache {
		if text, ok := s.cache.Get(fingerprint); ok {
			s.logger.Debug("response served from cache", "prompt_type", req.PromptType, "provider", name)
			return &core.GenerationResult{
				Text:     text,
				Sources:  sources,
				Provider: name,
				Cached:   true,
			}, nil
		}
	}

	completion, usedName, err := s.completeWithFallback(ctx, name, req.PromptType, params)
	if err != nil {
		return nil, err
	}

	if req.UseCache && ctx.Err() == nil {
		// A fallback answer is keyed under the provider that produced
		// it, so the fingerprint's provider component stays truthful.
		if usedName != name {
			fingerprint = Fingerprint(req.PromptType, usedName, params)
		}
		s.cache.Put(fingerprint, completion.Text)
	}

	return &core.GenerationResult{
		Text: completion.Text,
		Usage: core.Usage{
			PromptTokens:     completion.Usage.PromptTokens,
			CompletionTokens: completion.Usage.CompletionTokens,
			TotalTokens:      completion.Usage.TotalTokens,
		},
		Sources:  sources,
		Provider: usedName,
	}, nil
}

func (s *Service) resolve(name string) (string, error) {
	if name == "" {
		return s.order[0], nil
	}
	if _, ok := s.providers[name]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return name, nil
}

// buildParams copies the request parameters and derives the context
// parameter from the fitted chunks unless the caller set it.
func (s *Service) buildParams(req *Request, sources []*core.ScoredChunk) map[string]string {
	params := make(map[string]string, len(req.Params)+1)
	for k, v := range req.Params {
		params[k] = v
	}
	if _, ok := params["context"]; !ok && len(sources) > 0 {
		params["context"] = formatContext(sources)
	}
	return params
}

// completeWithFallback calls the named provider and, on non-cancellation
// failure, its configured alternate once. Templates are re-rendered per
// provider so overrides apply.
func (s *Service) completeWithFallback(ctx context.Context, name, promptType string, params map[string]string) (*ai.Completion, string, error) {
	completion, err := s.complete(ctx, name, promptType, params)
	if err == nil {
		return completion, name, nil
	}
	if ctx.Err() != nil {
		return nil, "", fmt.Errorf("generation cancelled: %w", err)
	}

	alternate, ok := s.fallbacks[name]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s: %w", ErrAllProvidersFailed, name, err)
	}

	s.logger.Warn("provider failed, trying fallback", "provider", name, "fallback", alternate, "error", err)
	completion, altErr := s.complete(ctx, alternate, promptType, params)
	if altErr != nil {
		return nil, "", fmt.Errorf("%w: %s: %w; %s: %w", ErrAllProvidersFailed, name, err, alternate, altErr)
	}
	return completion, alternate, nil
}

func (s *Service) complete(ctx context.Context, name, promptType string, params map[string]string) (*ai.Completion, error) {
	prompt, err := s.prompts.Render(promptType, name, params)
	if err != nil {
		return nil, err
	}
	completion, err := s.providers[name].Generator().Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}
	// A nil completion without an error is a provider failure, eligible
	// for fallback like any other.
	if completion == nil {
		return nil, fmt.Errorf("provider %q returned no completion", name)
	}
	return completion, nil
}

// formatContext renders chunks into the prompt's context block, each
// labelled with its source for attribution.
func formatContext(chunks []*core.ScoredChunk) string {
	var b strings.Builder
	for i, sc := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] (%s)\n%s", i+1, sc.Source(), sc.Chunk.Text)
	}
	return b.String()
}
