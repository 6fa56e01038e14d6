package badger

import (
	"context"
	"encoding/binary"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/grounder/core"
	"github.com/poiesic/grounder/storage"
)

// ChunkRepository implements storage.ChunkStore on top of a BadgerDB backend.
// Vector search is a full scan with dot-product scoring; stored vectors are
// expected to be unit length (the ingestion pipeline normalizes them).
type ChunkRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
	logger  *slog.Logger
}

var _ storage.ChunkStore = (*ChunkRepository)(nil)

// NewChunkRepository creates a chunk repository using the given backend.
func NewChunkRepository(backend *Backend) (*ChunkRepository, error) {
	idSeq, err := backend.GetSequence(chunkIDSeq)
	if err != nil {
		return nil, err
	}
	return &ChunkRepository{
		backend: backend,
		idSeq:   idSeq,
		logger:  slog.Default().With("component", "chunk-repository"),
	}, nil
}

// Close releases the ID sequence. The backend is closed separately by its owner.
func (r *ChunkRepository) Close() error {
	return r.idSeq.Release()
}

// WithTransaction delegates to the backend.
func (r *ChunkRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddChunks adds one or more chunks to storage.
func (r *ChunkRepository) AddChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error) {
	for _, chunk := range chunks {
		if err := core.ValidateChunk(chunk); err != nil {
			return nil, err
		}
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, chunk := range chunks {
			if chunk.Id == 0 {
				nextID, err := r.idSeq.Next()
				if err != nil {
					return err
				}
				// BadgerDB sequences can return 0 on first call, so we skip it
				if nextID == 0 {
					nextID, err = r.idSeq.Next()
					if err != nil {
						return err
					}
				}
				chunk.Id = core.ID(nextID)
			}

			if chunk.InsertedAt.IsZero() {
				chunk.InsertedAt = time.Now().UTC()
			}
			chunk.UpdatedAt = chunk.InsertedAt

			if err := tx.Set(makeChunkKey(chunk.Id), storage.MarshalChunk(chunk)); err != nil {
				return err
			}

			if chunk.DocumentId != 0 {
				if err := tx.Set(makeDocumentKey(chunk.DocumentId, chunk.Id), storage.MarshalID(chunk.Id)); err != nil {
					return err
				}
			}

			// Chunks awaiting an embedding are tracked for the ingestion pipeline
			if !chunk.HasVector() {
				if err := tx.Set(makePendingKey(chunk.Id), storage.MarshalID(chunk.Id)); err != nil {
					return err
				}
			}
		}
		return tx.Commit()
	}, true)

	return chunks, err
}

// UpdateChunks updates existing chunks.
func (r *ChunkRepository) UpdateChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, chunk := range chunks {
			key := makeChunkKey(chunk.Id)

			old, err := readChunk(tx, key)
			if err != nil {
				return err
			}

			chunk.UpdatedAt = time.Now().UTC()
			if chunk.InsertedAt.IsZero() {
				chunk.InsertedAt = old.InsertedAt
			}

			if err := tx.Set(key, storage.MarshalChunk(chunk)); err != nil {
				return err
			}

			// Maintain the pending index across embedding assignment
			if old.HasVector() != chunk.HasVector() {
				if chunk.HasVector() {
					if err := tx.Delete(makePendingKey(chunk.Id)); err != nil {
						return err
					}
				} else if err := tx.Set(makePendingKey(chunk.Id), storage.MarshalID(chunk.Id)); err != nil {
					return err
				}
			}

			if old.DocumentId != chunk.DocumentId {
				if old.DocumentId != 0 {
					if err := tx.Delete(makeDocumentKey(old.DocumentId, chunk.Id)); err != nil {
						return err
					}
				}
				if chunk.DocumentId != 0 {
					if err := tx.Set(makeDocumentKey(chunk.DocumentId, chunk.Id), storage.MarshalID(chunk.Id)); err != nil {
						return err
					}
				}
			}
		}
		return tx.Commit()
	}, true)

	return chunks, err
}

// DeleteChunks removes chunks by their IDs.
func (r *ChunkRepository) DeleteChunks(ctx context.Context, ids ...core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			key := makeChunkKey(id)
			chunk, err := readChunk(tx, key)
			if err != nil {
				return err
			}
			if err := deleteChunkKeys(tx, chunk); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// DeleteDocument removes all chunks belonging to the given parent document.
func (r *ChunkRepository) DeleteDocument(ctx context.Context, documentId core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		ids, err := documentChunkIds(tx, documentId)
		if err != nil {
			return err
		}
		for _, id := range ids {
			chunk, err := readChunk(tx, makeChunkKey(id))
			if err != nil {
				return err
			}
			if err := deleteChunkKeys(tx, chunk); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetChunk retrieves a single chunk by ID.
func (r *ChunkRepository) GetChunk(ctx context.Context, id core.ID) (*core.Chunk, error) {
	var chunk *core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		chunk, err = readChunk(tx, makeChunkKey(id))
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	return chunk, nil
}

// GetChunks retrieves multiple chunks by their IDs.
// Missing chunks are skipped without error.
func (r *ChunkRepository) GetChunks(ctx context.Context, ids ...core.ID) ([]*core.Chunk, error) {
	chunks := make([]*core.Chunk, 0, len(ids))
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			chunk, err := readChunk(tx, makeChunkKey(id))
			if err != nil {
				if err == storage.ErrNotFound {
					continue
				}
				return err
			}
			chunks = append(chunks, chunk)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// GetDocumentChunks retrieves all chunks of a parent document, ordered by ordinal.
func (r *ChunkRepository) GetDocumentChunks(ctx context.Context, documentId core.ID) ([]*core.Chunk, error) {
	var chunks []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		ids, err := documentChunkIds(tx, documentId)
		if err != nil {
			return err
		}
		for _, id := range ids {
			chunk, err := readChunk(tx, makeChunkKey(id))
			if err != nil {
				return err
			}
			chunks = append(chunks, chunk)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(chunks, func(a, b *core.Chunk) int {
		return a.Ordinal - b.Ordinal
	})
	return chunks, nil
}

// GetChunksWithoutVectors retrieves up to limit chunks awaiting an embedding.
func (r *ChunkRepository) GetChunksWithoutVectors(ctx context.Context, limit int) ([]*core.Chunk, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}

	var chunks []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chunkPendingPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid() && len(chunks) < limit; iter.Next() {
			key := iter.Item().Key()
			id := core.ID(binary.BigEndian.Uint64(key[len(key)-8:]))
			chunk, err := readChunk(tx, makeChunkKey(id))
			if err != nil {
				if err == storage.ErrNotFound {
					// Stale pending entry; skip
					continue
				}
				return err
			}
			chunks = append(chunks, chunk)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// SearchByVector finds chunks similar to the given vector within the filtered tenant.
func (r *ChunkRepository) SearchByVector(ctx context.Context, vector []float32, topK int, filters storage.SearchFilters) ([]*storage.ChunkMatch, error) {
	if err := validateSearch(topK, filters); err != nil {
		return nil, err
	}
	if len(vector) == 0 {
		return nil, storage.ErrInvalidQuery
	}

	var matches []*storage.ChunkMatch
	err := r.scanChunks(func(chunk *core.Chunk) {
		if !chunk.HasVector() || !matchesFilters(chunk, filters) {
			return
		}
		// Dot product equals cosine similarity for unit-length vectors
		similarity := dotProduct(vector, chunk.Vector)
		if similarity > 0 {
			matches = append(matches, &storage.ChunkMatch{Chunk: chunk, Similarity: float64(similarity)})
		}
	})
	if err != nil {
		return nil, err
	}

	return rankMatches(matches, topK), nil
}

// SearchByText finds chunks lexically matching the query within the filtered tenant.
func (r *ChunkRepository) SearchByText(ctx context.Context, query string, topK int, filters storage.SearchFilters) ([]*storage.ChunkMatch, error) {
	if err := validateSearch(topK, filters); err != nil {
		return nil, err
	}

	terms := lexicalTerms(query)
	if len(terms) == 0 {
		return []*storage.ChunkMatch{}, nil
	}

	var matches []*storage.ChunkMatch
	err := r.scanChunks(func(chunk *core.Chunk) {
		if !matchesFilters(chunk, filters) {
			return
		}
		score := lexicalScore(chunk.Text, terms)
		if score > 0 {
			matches = append(matches, &storage.ChunkMatch{Chunk: chunk, Similarity: score})
		}
	})
	if err != nil {
		return nil, err
	}

	return rankMatches(matches, topK), nil
}

// scanChunks iterates all stored chunks and passes each to fn.
func (r *ChunkRepository) scanChunks(fn func(chunk *core.Chunk)) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chunkPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var chunk *core.Chunk
			err := iter.Item().Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalChunk(val)
				return err
			})
			if err != nil {
				return err
			}
			if chunk != nil {
				fn(chunk)
			}
		}
		return nil
	}, false)
}

func validateSearch(topK int, filters storage.SearchFilters) error {
	if topK <= 0 {
		return storage.ErrInvalidQuery
	}
	if filters.TenantId == "" {
		return storage.ErrMissingTenant
	}
	return nil
}

func matchesFilters(chunk *core.Chunk, filters storage.SearchFilters) bool {
	if chunk.TenantId != filters.TenantId {
		return false
	}
	if filters.Domain != "" && !strings.EqualFold(chunk.Meta(core.MetaDomain), filters.Domain) {
		return false
	}
	if filters.ContentType != "" && !strings.EqualFold(chunk.Meta(core.MetaContentType), filters.ContentType) {
		return false
	}
	return true
}

// rankMatches sorts by similarity descending with chunk id as the
// deterministic tie-break, then truncates to topK.
func rankMatches(matches []*storage.ChunkMatch, topK int) []*storage.ChunkMatch {
	slices.SortFunc(matches, func(a, b *storage.ChunkMatch) int {
		if a.Similarity > b.Similarity {
			return -1
		}
		if a.Similarity < b.Similarity {
			return 1
		}
		if a.Chunk.Id < b.Chunk.Id {
			return -1
		}
		if a.Chunk.Id > b.Chunk.Id {
			return 1
		}
		return 0
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	if matches == nil {
		matches = []*storage.ChunkMatch{}
	}
	return matches
}

func readChunk(tx *badger.Txn, key []byte) (*core.Chunk, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	var chunk *core.Chunk
	err = item.Value(func(val []byte) error {
		var err error
		chunk, err = storage.UnmarshalChunk(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return chunk, nil
}

func deleteChunkKeys(tx *badger.Txn, chunk *core.Chunk) error {
	if err := tx.Delete(makeChunkKey(chunk.Id)); err != nil {
		return err
	}
	if chunk.DocumentId != 0 {
		if err := tx.Delete(makeDocumentKey(chunk.DocumentId, chunk.Id)); err != nil {
			return err
		}
	}
	if !chunk.HasVector() {
		if err := tx.Delete(makePendingKey(chunk.Id)); err != nil {
			return err
		}
	}
	return nil
}

func documentChunkIds(tx *badger.Txn, documentId core.ID) ([]core.ID, error) {
	var ids []core.ID
	opts := badger.DefaultIteratorOptions
	opts.Prefix = makePartialDocumentKey(documentId)
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		key := iter.Item().Key()
		ids = append(ids, core.ID(binary.BigEndian.Uint64(key[len(key)-8:])))
	}
	return ids, nil
}

// dotProduct calculates the dot product of two vectors.
// Mismatched dimensions contribute only the overlapping prefix.
func dotProduct(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float32
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
