package core

import (
	"encoding/binary"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing or database sequences.
type ID uint64

// String returns the decimal representation of the ID.
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Well-known metadata keys attached to chunks at segmentation time.
const (
	// MetaCreatedAt holds the source document creation time in RFC 3339 format.
	MetaCreatedAt = "created_at"
	// MetaDomain holds the source domain of the parent document (e.g., "en.wikipedia.org").
	MetaDomain = "domain"
	// MetaTitle holds the parent document title.
	MetaTitle = "title"
	// MetaContentType holds the content classification of the parent document.
	MetaContentType = "content_type"
)

// Chunk represents a retrievable fragment of a larger document.
// Chunks are created when a document is segmented; the embedding vector
// is populated asynchronously by the ingestion pipeline.
type Chunk struct {
	Id          ID
	DocumentId  ID     // Parent document this chunk was segmented from
	TenantId    string // Organization the parent document belongs to
	Ordinal     int    // Position of the chunk within the parent document
	Text        string
	StartOffset int // Character offset of Text within the parent document
	EndOffset   int
	Vector      []float32         // Embedding vector for semantic search (populated by the ingestion pipeline)
	Metadata    map[string]string // Context metadata, see the Meta* keys
	InsertedAt  time.Time
	UpdatedAt   time.Time
}

// HasVector reports whether the chunk's embedding has been computed.
func (c *Chunk) HasVector() bool {
	return len(c.Vector) > 0
}

// Meta returns the metadata value for key, or the empty string.
func (c *Chunk) Meta(key string) string {
	if c.Metadata == nil {
		return ""
	}
	return c.Metadata[key]
}

// CreatedAt parses the chunk's creation timestamp metadata.
// Returns the zero time if the metadata is absent or malformed.
func (c *Chunk) CreatedAt() time.Time {
	raw := c.Meta(MetaCreatedAt)
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ScoreBreakdown holds the per-factor relevance components of a scored chunk.
// Each component is in [0,1].
type ScoreBreakdown struct {
	Semantic  float64
	Keyword   float64
	Recency   float64
	Authority float64
}

// ScoredChunk is a request-scoped view of a chunk with its relevance scoring.
// It is never persisted; it exists only for the duration of one retrieval call.
type ScoredChunk struct {
	Chunk     *Chunk
	Score     float64 // Weighted composite in [0,1]
	Breakdown ScoreBreakdown
}

// Source identifies where the chunk came from for diversity accounting.
// Prefers the parent document id, falling back to domain metadata.
func (s *ScoredChunk) Source() string {
	if s.Chunk == nil {
		return ""
	}
	if s.Chunk.DocumentId != 0 {
		return "doc:" + s.Chunk.DocumentId.String()
	}
	return "domain:" + s.Chunk.Meta(MetaDomain)
}

// Usage holds token accounting reported by a generative provider.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// GenerationResult is the externally visible output of one generation call:
// the generated text, usage accounting, and the chunks that grounded it.
type GenerationResult struct {
	Text     string
	Usage    Usage
	Sources  []*ScoredChunk // Chunks used as grounding context, in rank order
	Provider string         // Name of the provider that produced the text
	Cached   bool           // True when served from the response cache
}
