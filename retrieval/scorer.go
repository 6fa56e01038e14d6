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


package retrieval

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/poiesic/grounder/core"
)

const (
	// recencyHalfScaleDays controls how fast the recency signal decays:
	// a chunk created n days ago scores exp(-n/30).
	recencyHalfScaleDays = 30.0

	// neutralScore is assigned when a signal has no data to judge by.
	neutralScore = 0.5
)

// ScoreWeights holds the relative weight of each relevance signal.
type ScoreWeights struct {
	Semantic  float64
	Keyword   float64
	Recency   float64
	Authority float64
}

// DefaultScoreWeights returns the standard signal weighting, dominated
// by semantic similarity.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		Semantic:  0.7,
		Keyword:   0.3,
		Recency:   0.1,
		Authority: 0.1,
	}
}

// RelevanceScorer computes explainable multi-factor relevance scores
// for retrieved chunks. It is independent of the retriever's fusion
// scoring and provides a second, more granular ranking pass over an
// already-retrieved candidate set.
type RelevanceScorer struct {
	weights   ScoreWeights
	authority map[string]float64
	clock     func() time.Time
}

// ScorerOption configures a RelevanceScorer.
type ScorerOption func(*RelevanceScorer) error

// WithScoreWeights overrides the default signal weights. All weights
// must be non-negative.
func WithScoreWeights(w ScoreWeights) ScorerOption {
	return func(s *RelevanceScorer) error {
		if w.Semantic < 0 || w.Keyword < 0 || w.Recency < 0 || w.Authority < 0 {
			return ErrInvalidWeights
		}
		s.weights = w
		return nil
	}
}

// WithAuthorityScores replaces the curated source-domain authority
// table. Keys are lowercase domains or dotted suffixes like ".edu".
func WithAuthorityScores(scores map[string]float64) ScorerOption {
	return func(s *RelevanceScorer) error {
		s.authority = scores
		return nil
	}
}

// WithClock replaces the scorer's time source, for tests.
func WithClock(clock func() time.Time) ScorerOption {
	return func(s *RelevanceScorer) error {
		s.clock = clock
		return nil
	}
}

// NewRelevanceScorer creates a scorer with default weights and the
// built-in authority table.
func NewRelevanceScorer(opts ...ScorerOption) (*RelevanceScorer, error) {
	s := &RelevanceScorer{
		weights:   DefaultScoreWeights(),
		authority: defaultAuthorityScores(),
		clock:     time.Now,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Score computes the full signal breakdown for a single chunk against a
// query and returns the clamped composite. The queryVector may be nil;
// the semantic signal then falls back to the chunk's existing semantic
// sub-score from retrieval.
func (s *RelevanceScorer) Score(sc *core.ScoredChunk, query string, queryVector []float32) (float64, core.ScoreBreakdown) {
	breakdown := core.ScoreBreakdown{
		Semantic:  s.semanticScore(sc, queryVector),
		Keyword:   s.keywordScore(sc.Chunk, query),
		Recency:   s.recencyScore(sc.Chunk),
		Authority: s.authorityScore(sc.Chunk),
	}
	composite := s.weights.Semantic*breakdown.Semantic +
		s.weights.Keyword*breakdown.Keyword +
		s.weights.Recency*breakdown.Recency +
		s.weights.Authority*breakdown.Authority
	return clamp01(composite), breakdown
}

// Rescore recomputes the score and breakdown of every chunk in place
// and re-ranks the slice best first, ties broken by ascending chunk id.
func (s *RelevanceScorer) Rescore(chunks []*core.ScoredChunk, query string, queryVector []float32) {
	for _, sc := range chunks {
		sc.Score, sc.Breakdown = s.Score(sc, query, queryVector)
	}
	sort.Slice(chunks, func(i, j int) bool {
		if chunks[i].Score != chunks[j].Score {
			return chunks[i].Score > chunks[j].Score
		}
		return chunks[i].Chunk.Id < chunks[j].Chunk.Id
	})
}

// semanticScore is the cosine similarity between the query vector and
// the chunk vector, clamped to [0, 1]. Without both vectors it keeps
// the upstream similarity from the retrieval pass.
func (s *RelevanceScorer) semanticScore(sc *core.ScoredChunk, queryVector []float32) float64 {
	if len(queryVector) == 0 || !sc.Chunk.HasVector() {
		return clamp01(sc.Breakdown.Semantic)
	}
	return clamp01(cosineSimilarity(queryVector, sc.Chunk.Vector))
}

// keywordScore is the fraction of distinct query terms present as
// substrings of the chunk text, case-insensitive.
func (s *RelevanceScorer) keywordScore(chunk *core.Chunk, query string) float64 {
	terms := distinctTerms(query)
	if len(terms) == 0 {
		return 0
	}
	text := strings.ToLower(chunk.Text)
	matched := 0
	for _, t := range terms {
		if strings.Contains(text, t) {
			matched++
		}
	}
	return clamp01(float64(matched) / float64(len(terms)))
}

// recencyScore decays exponentially with chunk age. Chunks without a
// parseable creation timestamp score neutral.
func (s *RelevanceScorer) recencyScore(chunk *core.Chunk) float64 {
	created := chunk.CreatedAt()
	if created.IsZero() {
		return neutralScore
	}
	days := s.clock().Sub(created).Hours() / 24
	return clamp01(math.Exp(-days / recencyHalfScaleDays))
}

// authorityScore looks the chunk's source domain up in the curated
// table, first exact, then by dotted suffix. Unknown or absent domains
// score neutral.
func (s *RelevanceScorer) authorityScore(chunk *core.Chunk) float64 {
	domain := strings.ToLower(strings.TrimSpace(chunk.Meta(core.MetaDomain)))
	if domain == "" {
		return neutralScore
	}
	if score, ok := s.authority[domain]; ok {
		return clamp01(score)
	}
	for suffix, score := range s.authority {
		if strings.HasPrefix(suffix, ".") && strings.HasSuffix(domain, suffix) {
			return clamp01(score)
		}
	}
	// Subdomains inherit the registered domain's score.
	for registered, score := range s.authority {
		if !strings.HasPrefix(registered, ".") && strings.HasSuffix(domain, "."+registered) {
			return clamp01(score)
		}
	}
	return neutralScore
}

func defaultAuthorityScores() map[string]float64 {
	return map[string]float64{
		"wikipedia.org":     0.95,
		"arxiv.org":         0.9,
		"nature.com":        0.9,
		"britannica.com":    0.9,
		"acm.org":           0.85,
		"ieee.org":          0.85,
		"stackoverflow.com": 0.75,
		"github.com":        0.7,
		"medium.com":        0.4,
		".edu":              0.9,
		".gov":              0.9,
		".ac.uk":            0.85,
	}
}

// cosineSimilarity computes the cosine of the angle between two vectors
// over their overlapping prefix. Zero-magnitude vectors yield 0.
func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
