package storage

import (
	"context"

	"github.com/poiesic/grounder/core"
)

// SearchFilters narrows a search to one tenant and, optionally, to a source
// domain or content classification. TenantId is mandatory for every search;
// the other fields are ignored when empty.
type SearchFilters struct {
	TenantId    string
	Domain      string
	ContentType string
}

// ChunkMatch is a single search hit: a chunk plus the path-local similarity
// score in [0,1]. For vector search the score is cosine similarity; for text
// search it is the normalized term-overlap score.
type ChunkMatch struct {
	Chunk      *core.Chunk
	Similarity float64
}

// ChunkStore provides persistence and search over document chunks.
// Implementations must be thread-safe and support concurrent access.
type ChunkStore interface {
	// AddChunks adds one or more chunks to storage.
	// For chunks with ID=0, generates new IDs from sequence.
	// Sets InsertedAt timestamp if not already set.
	// Returns the chunks with generated IDs and timestamps populated.
	AddChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error)

	// UpdateChunks updates existing chunks. Embedding assignment is the only
	// post-creation mutation the pipeline performs, but implementations
	// persist the full record. Updates the UpdatedAt timestamp automatically.
	// Returns ErrNotFound if any chunk doesn't exist.
	UpdateChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error)

	// DeleteChunks removes chunks by their IDs.
	// Also removes associated indices.
	// Returns ErrNotFound if any chunk doesn't exist.
	DeleteChunks(ctx context.Context, ids ...core.ID) error

	// DeleteDocument removes all chunks belonging to the given parent
	// document. Deleting a document with no chunks is not an error.
	DeleteDocument(ctx context.Context, documentId core.ID) error

	// GetChunk retrieves a single chunk by ID.
	// Returns ErrNotFound if the chunk doesn't exist.
	GetChunk(ctx context.Context, id core.ID) (*core.Chunk, error)

	// GetChunks retrieves multiple chunks by their IDs.
	// Returns only the chunks that exist (no error for missing chunks).
	GetChunks(ctx context.Context, ids ...core.ID) ([]*core.Chunk, error)

	// GetDocumentChunks retrieves all chunks of a parent document,
	// ordered by ordinal.
	GetDocumentChunks(ctx context.Context, documentId core.ID) ([]*core.Chunk, error)

	// GetChunksWithoutVectors retrieves up to limit chunks whose embedding
	// has not been computed yet, in insertion order. Used by the ingestion
	// pipeline to populate embeddings asynchronously.
	GetChunksWithoutVectors(ctx context.Context, limit int) ([]*core.Chunk, error)

	// SearchByVector finds chunks similar to the given embedding vector
	// within the filtered tenant. Chunks without embeddings are skipped.
	// Returns up to topK matches ordered by similarity (highest first),
	// ties broken by chunk id.
	SearchByVector(ctx context.Context, vector []float32, topK int, filters SearchFilters) ([]*ChunkMatch, error)

	// SearchByText finds chunks lexically matching the query within the
	// filtered tenant. The similarity is the fraction of distinct query
	// terms present in the chunk text; chunks matching no terms are
	// excluded. Returns up to topK matches ordered by similarity (highest
	// first), ties broken by chunk id.
	SearchByText(ctx context.Context, query string, topK int, filters SearchFilters) ([]*ChunkMatch, error)

	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the storage backend and releases resources.
	Close() error
}
