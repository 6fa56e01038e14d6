package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validChunk() *Chunk {
	return &Chunk{
		DocumentId:  IDFromContent("doc"),
		TenantId:    "tenant-a",
		Ordinal:     0,
		Text:        "The Eiffel Tower is a famous landmark in Paris.",
		StartOffset: 0,
		EndOffset:   47,
	}
}

func TestValidateChunk(t *testing.T) {
	t.Run("valid chunk", func(t *testing.T) {
		require.NoError(t, ValidateChunk(validChunk()))
	})

	t.Run("nil chunk", func(t *testing.T) {
		err := ValidateChunk(nil)
		assert.ErrorIs(t, err, ErrInvalidChunk)
	})

	t.Run("empty text", func(t *testing.T) {
		chunk := validChunk()
		chunk.Text = ""
		err := ValidateChunk(chunk)
		assert.ErrorIs(t, err, ErrInvalidChunk)
		assert.ErrorIs(t, err, ErrEmptyText)
	})

	t.Run("empty tenant", func(t *testing.T) {
		chunk := validChunk()
		chunk.TenantId = ""
		err := ValidateChunk(chunk)
		assert.ErrorIs(t, err, ErrEmptyTenant)
	})

	t.Run("negative ordinal", func(t *testing.T) {
		chunk := validChunk()
		chunk.Ordinal = -1
		err := ValidateChunk(chunk)
		assert.ErrorIs(t, err, ErrInvalidOrdinal)
	})

	t.Run("inverted offsets", func(t *testing.T) {
		chunk := validChunk()
		chunk.StartOffset = 10
		chunk.EndOffset = 5
		err := ValidateChunk(chunk)
		assert.ErrorIs(t, err, ErrInvalidOffsets)
	})

	t.Run("negative start offset", func(t *testing.T) {
		chunk := validChunk()
		chunk.StartOffset = -1
		err := ValidateChunk(chunk)
		assert.ErrorIs(t, err, ErrInvalidOffsets)
	})

	t.Run("vector not required", func(t *testing.T) {
		chunk := validChunk()
		chunk.Vector = nil
		require.NoError(t, ValidateChunk(chunk))
	})
}
