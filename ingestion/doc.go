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


// Package ingestion turns documents into embedded, searchable chunks.
//
// A Pipeline segments document text on paragraph boundaries, embeds the
// chunks concurrently on a worker pool, and writes them to a chunk
// store. Embedding failures degrade rather than abort: chunks are
// stored without vectors and remain findable through the store's
// pending index, which the Backfiller drains in batches with retry.
package ingestion
