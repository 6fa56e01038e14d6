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

import "errors"

var (
	// ErrChunkStoreRequired is returned when constructing a retriever
	// without a backing chunk store.
	ErrChunkStoreRequired = errors.New("chunk store is required")

	// ErrEmbedderRequired is returned when constructing a retriever
	// without an embedder for the vector path.
	ErrEmbedderRequired = errors.New("embedder is required")

	// ErrEmptyQuery is returned when a retrieval is attempted with an
	// empty or whitespace-only query.
	ErrEmptyQuery = errors.New("query must not be empty")

	// ErrInvalidTopK is returned when the requested result count is not
	// positive.
	ErrInvalidTopK = errors.New("top k must be positive")

	// ErrSearchUnavailable is returned when both the vector and the
	// lexical search paths fail. A single failed path degrades the
	// result set instead.
	ErrSearchUnavailable = errors.New("all search paths unavailable")

	// ErrNoResults indicates that retrieval, including reformulated
	// variants, found nothing relevant for a query.
	ErrNoResults = errors.New("no relevant results found")

	// ErrInvalidWeights is returned when fusion or scoring weights are
	// configured with negative values.
	ErrInvalidWeights = errors.New("weights must not be negative")
)
