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


// Package generate orchestrates text generation across providers.
//
// A Service owns an ordered registry of named providers, a prompt
// template set, a token budget for fitting retrieved context into
// prompts, and a ResponseCache keyed by a canonical fingerprint of the
// request. Generation resolves a provider by name or falls back to the
// first registered one, consults the cache, renders the prompt, and on
// provider failure retries exactly once against a configured alternate
// before giving up.
//
// Cache reads for the same prompt type, parameters, and provider hit
// regardless of map iteration order: fingerprints serialize parameters
// with sorted keys before hashing. Cancelled generations never populate
// the cache.
package generate
