package retrieval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/grounder/core"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func scoredChunk(text string, meta map[string]string) *core.ScoredChunk {
	return &core.ScoredChunk{
		Chunk: &core.Chunk{
			Id:       1,
			TenantId: "tenant-a",
			Text:     text,
			Metadata: meta,
		},
	}
}

func TestRelevanceScorerSignals(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	scorer, err := NewRelevanceScorer(WithClock(fixedClock(now)))
	require.NoError(t, err)

	t.Run("keyword score is matched fraction of distinct terms", func(t *testing.T) {
		sc := scoredChunk("solar panel efficiency improves", nil)
		_, breakdown := scorer.Score(sc, "solar panel efficiency degradation rates", nil)
		assert.InDelta(t, 0.6, breakdown.Keyword, 1e-9)
	})

	t.Run("keyword score caps at one", func(t *testing.T) {
		sc := scoredChunk("solar solar solar panels and more solar", nil)
		_, breakdown := scorer.Score(sc, "solar solar solar", nil)
		assert.InDelta(t, 1.0, breakdown.Keyword, 1e-9)
	})

	t.Run("recency decays exponentially", func(t *testing.T) {
		created := now.AddDate(0, 0, -30).Format(time.RFC3339)
		sc := scoredChunk("text", map[string]string{core.MetaCreatedAt: created})
		_, breakdown := scorer.Score(sc, "text", nil)
		// 30 days old: e^-1.
		assert.InDelta(t, 0.3679, breakdown.Recency, 1e-3)
	})

	t.Run("missing timestamp scores neutral recency", func(t *testing.T) {
		sc := scoredChunk("text", nil)
		_, breakdown := scorer.Score(sc, "text", nil)
		assert.InDelta(t, 0.5, breakdown.Recency, 1e-9)
	})

	t.Run("malformed timestamp scores neutral recency", func(t *testing.T) {
		sc := scoredChunk("text", map[string]string{core.MetaCreatedAt: "yesterday"})
		_, breakdown := scorer.Score(sc, "text", nil)
		assert.InDelta(t, 0.5, breakdown.Recency, 1e-9)
	})

	t.Run("future timestamp clamps to one", func(t *testing.T) {
		created := now.AddDate(0, 0, 10).Format(time.RFC3339)
		sc := scoredChunk("text", map[string]string{core.MetaCreatedAt: created})
		_, breakdown := scorer.Score(sc, "text", nil)
		assert.InDelta(t, 1.0, breakdown.Recency, 1e-9)
	})

	t.Run("authority from curated table", func(t *testing.T) {
		sc := scoredChunk("text", map[string]string{core.MetaDomain: "wikipedia.org"})
		_, breakdown := scorer.Score(sc, "text", nil)
		assert.InDelta(t, 0.95, breakdown.Authority, 1e-9)
	})

	t.Run("subdomain inherits authority", func(t *testing.T) {
		sc := scoredChunk("text", map[string]string{core.MetaDomain: "en.wikipedia.org"})
		_, breakdown := scorer.Score(sc, "text", nil)
		assert.InDelta(t, 0.95, breakdown.Authority, 1e-9)
	})

	t.Run("suffix rule matches", func(t *testing.T) {
		sc := scoredChunk("text", map[string]string{core.MetaDomain: "cs.stanford.edu"})
		_, breakdown := scorer.Score(sc, "text", nil)
		assert.InDelta(t, 0.9, breakdown.Authority, 1e-9)
	})

	t.Run("unknown domain scores neutral", func(t *testing.T) {
		sc := scoredChunk("text", map[string]string{core.MetaDomain: "example.xyz"})
		_, breakdown := scorer.Score(sc, "text", nil)
		assert.InDelta(t, 0.5, breakdown.Authority, 1e-9)
	})

	t.Run("semantic falls back to upstream similarity", func(t *testing.T) {
		sc := scoredChunk("text", nil)
		sc.Breakdown.Semantic = 0.8
		_, breakdown := scorer.Score(sc, "text", nil)
		assert.InDelta(t, 0.8, breakdown.Semantic, 1e-9)
	})

	t.Run("semantic recomputed from vectors when available", func(t *testing.T) {
		sc := scoredChunk("text", nil)
		sc.Chunk.Vector = []float32{1, 0, 0}
		_, breakdown := scorer.Score(sc, "text", []float32{0, 1, 0})
		assert.Zero(t, breakdown.Semantic)
	})

	t.Run("composite stays within unit interval", func(t *testing.T) {
		created := now.Format(time.RFC3339)
		sc := scoredChunk("solar", map[string]string{
			core.MetaCreatedAt: created,
			core.MetaDomain:    "wikipedia.org",
		})
		sc.Chunk.Vector = []float32{1, 0, 0}
		score, _ := scorer.Score(sc, "solar", []float32{1, 0, 0})
		// All signals near max: weights sum past 1, composite clamps.
		assert.InDelta(t, 1.0, score, 1e-9)
	})
}

func TestRelevanceScorerRescore(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	scorer, err := NewRelevanceScorer(WithClock(fixedClock(now)))
	require.NoError(t, err)

	strong := scoredChunk("solar panel efficiency", nil)
	strong.Chunk.Id = 2
	weak := scoredChunk("something else entirely", nil)
	weak.Chunk.Id = 1

	// Retrieval ranked weak first; rescoring must correct that.
	chunks := []*core.ScoredChunk{weak, strong}
	scorer.Rescore(chunks, "solar panel efficiency", nil)

	assert.Equal(t, core.ID(2), chunks[0].Chunk.Id)
	assert.Equal(t, core.ID(1), chunks[1].Chunk.Id)
	assert.Greater(t, chunks[0].Score, chunks[1].Score)
}

func TestRelevanceScorerTieBreak(t *testing.T) {
	scorer, err := NewRelevanceScorer()
	require.NoError(t, err)

	a := scoredChunk("identical text", nil)
	a.Chunk.Id = 7
	b := scoredChunk("identical text", nil)
	b.Chunk.Id = 3

	chunks := []*core.ScoredChunk{a, b}
	scorer.Rescore(chunks, "identical text", nil)

	assert.Equal(t, core.ID(3), chunks[0].Chunk.Id)
	assert.Equal(t, core.ID(7), chunks[1].Chunk.Id)
}

func TestRelevanceScorerWeights(t *testing.T) {
	t.Run("rejects negative weights", func(t *testing.T) {
		_, err := NewRelevanceScorer(WithScoreWeights(ScoreWeights{Semantic: -1}))
		require.ErrorIs(t, err, ErrInvalidWeights)
	})

	t.Run("custom weights change composite", func(t *testing.T) {
		scorer, err := NewRelevanceScorer(WithScoreWeights(ScoreWeights{Keyword: 1}))
		require.NoError(t, err)

		sc := scoredChunk("solar panel", nil)
		score, _ := scorer.Score(sc, "solar panel", nil)
		assert.InDelta(t, 1.0, score, 1e-9)
	})
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Zero(t, cosineSimilarity([]float32{0, 0}, []float32{1, 0}))
}
