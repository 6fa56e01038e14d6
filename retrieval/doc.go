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


// Package retrieval provides hybrid retrieval and ranking over chunk stores.
//
// The package composes four cooperating pieces:
//
//   - HybridRetriever: runs vector and lexical search concurrently and fuses
//     both result sets into one ranked list
//   - RelevanceScorer: computes a multi-factor score breakdown (semantic,
//     keyword, recency, authority) for a second, explainable ranking pass
//   - ContextFilter: applies quality and source-diversity policy over a
//     ranked list without reordering it
//   - QueryReformulator: produces query variants to widen recall when the
//     literal query finds nothing
//
// Ranking and filtering are deterministic for identical inputs: ties are
// broken by chunk id, never by call-arrival order. A single failed search
// path degrades the result set instead of failing the retrieval; only when
// both paths fail does an error propagate.
//
// The intended composition is retrieve, then rescore, then filter: the
// ContextFilter consults the recency sub-score, which only the
// RelevanceScorer populates.
package retrieval
