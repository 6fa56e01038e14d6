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


// Package badger implements storage.ChunkStore on BadgerDB.
//
// Chunks are stored as MUS-encoded values under id-based keys, with two
// secondary indexes: one grouping chunks by parent document (for ordered
// reads and cascade deletes) and one tracking chunks whose embedding has not
// been computed yet (consumed by the ingestion pipeline).
//
// Both search paths are linear scans over the stored chunks. That keeps the
// store free of auxiliary search structures and is adequate for the corpus
// sizes this backend targets; deployments with larger corpora should plug in
// a dedicated vector database behind the storage.ChunkStore interface.
package badger
