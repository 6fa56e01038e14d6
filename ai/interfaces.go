package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// Batch processing is more efficient than calling EmbedText multiple times.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Usage holds the token accounting reported by a generative model for one call.
// Providers that do not report usage leave the fields at zero.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Completion is the result of a single generative call.
type Completion struct {
	Text  string
	Usage Usage
}

// Generator produces text completions for rendered prompts.
// Implementations must be thread-safe for concurrent use.
type Generator interface {
	// Complete generates a completion for the given rendered prompt.
	// Returns an error on quota, timeout, or availability failures;
	// callers are expected to treat such errors as retryable against
	// a different provider.
	Complete(ctx context.Context, prompt string) (*Completion, error)
}

// Provider aggregates AI services for convenient initialization and lifecycle
// management. A provider creates and manages Embedder and Generator instances,
// ensuring they share configuration and resources appropriately.
type Provider interface {
	// Name returns the stable identifier of the provider. The generation
	// orchestrator uses it for provider resolution, fallback configuration,
	// and cache fingerprinting.
	Name() string

	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// Generator returns the text completion service.
	// The returned Generator is safe for concurrent use.
	Generator() Generator

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
