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


package generate

import "errors"

var (
	// ErrNoProviders is returned when constructing a service with an
	// empty provider registry.
	ErrNoProviders = errors.New("at least one provider is required")

	// ErrUnknownProvider is returned when a request names a provider
	// that was never registered.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrDuplicateProvider is returned when two providers register
	// under the same name.
	ErrDuplicateProvider = errors.New("provider name already registered")

	// ErrAllProvidersFailed is returned when the resolved provider and
	// its fallback alternate both fail.
	ErrAllProvidersFailed = errors.New("all candidate providers failed")

	// ErrUnknownPromptType is returned when a request names a prompt
	// type with no registered template.
	ErrUnknownPromptType = errors.New("unknown prompt type")

	// ErrMissingParam is returned when a template placeholder has no
	// value in the request parameters.
	ErrMissingParam = errors.New("missing template parameter")
)
