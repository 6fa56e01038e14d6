package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIDFromContent(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		a := IDFromContent("the eiffel tower")
		b := IDFromContent("the eiffel tower")
		assert.Equal(t, a, b)
	})

	t.Run("distinct content produces distinct ids", func(t *testing.T) {
		a := IDFromContent("the eiffel tower")
		b := IDFromContent("the louvre")
		assert.NotEqual(t, a, b)
	})

	t.Run("empty content is valid", func(t *testing.T) {
		assert.NotPanics(t, func() { IDFromContent("") })
	})
}

func TestChunkCreatedAt(t *testing.T) {
	t.Run("parses RFC 3339 metadata", func(t *testing.T) {
		ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		chunk := &Chunk{Metadata: map[string]string{MetaCreatedAt: ts.Format(time.RFC3339)}}
		assert.True(t, chunk.CreatedAt().Equal(ts))
	})

	t.Run("missing metadata yields zero time", func(t *testing.T) {
		chunk := &Chunk{}
		assert.True(t, chunk.CreatedAt().IsZero())
	})

	t.Run("malformed metadata yields zero time", func(t *testing.T) {
		chunk := &Chunk{Metadata: map[string]string{MetaCreatedAt: "yesterday"}}
		assert.True(t, chunk.CreatedAt().IsZero())
	})
}

func TestScoredChunkSource(t *testing.T) {
	t.Run("prefers document id", func(t *testing.T) {
		sc := &ScoredChunk{Chunk: &Chunk{
			Id:         1,
			DocumentId: 42,
			Metadata:   map[string]string{MetaDomain: "en.wikipedia.org"},
		}}
		assert.Equal(t, "doc:42", sc.Source())
	})

	t.Run("falls back to domain metadata", func(t *testing.T) {
		sc := &ScoredChunk{Chunk: &Chunk{
			Id:       1,
			Metadata: map[string]string{MetaDomain: "en.wikipedia.org"},
		}}
		assert.Equal(t, "domain:en.wikipedia.org", sc.Source())
	})

	t.Run("nil chunk", func(t *testing.T) {
		sc := &ScoredChunk{}
		assert.Equal(t, "", sc.Source())
	})
}

func TestChunkHasVector(t *testing.T) {
	chunk := &Chunk{}
	assert.False(t, chunk.HasVector())
	chunk.Vector = []float32{0.1, 0.2}
	assert.True(t, chunk.HasVector())
}
