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
	"log/slog"

	"github.com/poiesic/grounder/core"
)

// FilterPolicy holds the thresholds applied by a ContextFilter.
type FilterPolicy struct {
	// MinRelevance drops chunks whose composite score is below it.
	MinRelevance float64

	// MinRecency drops chunks whose recency sub-score is below it.
	MinRecency float64

	// DiversifySources enables the per-source result cap.
	DiversifySources bool

	// MaxPerSource caps how many chunks a single source contributes
	// when DiversifySources is set.
	MaxPerSource int
}

// DefaultFilterPolicy returns the standard filtering thresholds.
func DefaultFilterPolicy() FilterPolicy {
	return FilterPolicy{
		MinRelevance:     0.2,
		MinRecency:       0.3,
		DiversifySources: true,
		MaxPerSource:     2,
	}
}

// ContextFilter applies quality and diversity policy to a ranked chunk
// list. The output is always an order-preserving subsequence of the
// input; the filter never reorders or rescores.
//
// The recency threshold consults the recency sub-score, which a
// RelevanceScorer pass populates. Run the filter after rescoring.
type ContextFilter struct {
	policy FilterPolicy
	logger *slog.Logger
}

// NewContextFilter creates a filter with the given policy.
func NewContextFilter(policy FilterPolicy) *ContextFilter {
	return &ContextFilter{
		policy: policy,
		logger: slog.Default().With("component", "retrieval"),
	}
}

// Filter returns the chunks that pass every policy gate, in their
// original order. The input slice is not modified.
func (f *ContextFilter) Filter(chunks []*core.ScoredChunk) []*core.ScoredChunk {
	kept := make([]*core.ScoredChunk, 0, len(chunks))
	perSource := make(map[string]int)

	for _, sc := range chunks {
		if sc.Score < f.policy.MinRelevance {
			continue
		}
		if sc.Breakdown.Recency < f.policy.MinRecency {
			continue
		}
		if f.policy.DiversifySources && f.policy.MaxPerSource > 0 {
			source := sc.Source()
			if perSource[source] >= f.policy.MaxPerSource {
				continue
			}
			perSource[source]++
		}
		kept = append(kept, sc)
	}

	if dropped := len(chunks) - len(kept); dropped > 0 {
		f.logger.Debug("context filter dropped chunks", "dropped", dropped, "kept", len(kept))
	}
	return kept
}
