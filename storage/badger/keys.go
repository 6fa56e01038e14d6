package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/poiesic/grounder/core"
)

// Key prefixes for different data types
const (
	chunkPrefix         = "chu"
	chunkDocumentPrefix = "chudoc"
	chunkPendingPrefix  = "chupend"
	chunkIDSeq          = "chuseq"
)

// makeChunkKey generates a key for a chunk by ID.
func makeChunkKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", chunkPrefix, id))
}

// makeDocumentKey generates a composite key for the document index.
// Format: prefix:documentID:chunkID
func makeDocumentKey(documentId, chunkId core.ID) []byte {
	prefix := chunkDocumentPrefix + ":"
	prefixBytes := []byte(prefix)
	prefixSize := len(prefixBytes)
	totalSize := prefixSize + 16 // 8 bytes for documentID + 8 bytes for chunkID
	buf := make([]byte, totalSize)
	offset := copy(buf, prefixBytes)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(documentId))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(chunkId))
	return buf
}

// makePartialDocumentKey generates a partial key for per-document scans.
// Format: prefix:documentID
func makePartialDocumentKey(documentId core.ID) []byte {
	prefix := chunkDocumentPrefix + ":"
	prefixBytes := []byte(prefix)
	prefixSize := len(prefixBytes)
	totalSize := prefixSize + 8 // 8 bytes for documentID
	buf := make([]byte, totalSize)
	offset := copy(buf, prefixBytes)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(documentId))
	return buf
}

// makePendingKey generates a key for the missing-embedding index.
// Format: prefix:chunkID
func makePendingKey(chunkId core.ID) []byte {
	prefix := chunkPendingPrefix + ":"
	prefixBytes := []byte(prefix)
	prefixSize := len(prefixBytes)
	totalSize := prefixSize + 8 // 8 bytes for chunkID
	buf := make([]byte, totalSize)
	offset := copy(buf, prefixBytes)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(chunkId))
	return buf
}
