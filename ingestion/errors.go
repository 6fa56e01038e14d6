package ingestion

import "errors"

var (
	// ErrChunkStoreRequired is returned when constructing a pipeline
	// without a chunk store.
	ErrChunkStoreRequired = errors.New("chunk store is required")

	// ErrEmbedderRequired is returned when constructing a pipeline
	// without an embedder.
	ErrEmbedderRequired = errors.New("embedder is required")

	// ErrEmptyDocument is returned when a document has no text.
	ErrEmptyDocument = errors.New("document text must not be empty")

	// ErrMissingTenant is returned when a document has no tenant id.
	ErrMissingTenant = errors.New("document tenant id is required")

	// ErrInvalidMaxAttempts is returned when a retry is configured
	// with a non-positive attempt count.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")
)
