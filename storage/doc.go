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


// Package storage defines the persistence contracts the retrieval pipeline
// consumes.
//
// The central abstraction is ChunkStore: a tenant-scoped store of document
// chunks supporting both vector-similarity and lexical text search. The
// pipeline treats the store as a remote, possibly slow collaborator; it never
// assumes in-process shared memory, and implementations must be safe for
// concurrent use.
//
// The storage/badger sub-package provides the BadgerDB-backed implementation.
package storage
