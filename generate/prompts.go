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

import (
	"fmt"
	"regexp"
	"strings"
)

// Well-known prompt types registered by default.
const (
	PromptAnswer      = "answer"
	PromptSummarize   = "summarize"
	PromptReformulate = "reformulate"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// PromptSet holds templates keyed by prompt type, with optional
// per-provider overrides. Templates use {{name}} placeholders filled
// from request parameters.
type PromptSet struct {
	defaults  map[string]string
	overrides map[string]map[string]string
}

// NewPromptSet creates a set preloaded with the built-in templates.
func NewPromptSet() *PromptSet {
	return &PromptSet{
		defaults: map[string]string{
			PromptAnswer: "Answer the question using only the provided context. " +
				"If the context does not contain the answer, say so.\n\n" +
				"Context:\n{{context}}\n\nQuestion: {{query}}\n\nAnswer:",
			PromptSummarize: "Summarize the following content concisely, " +
				"preserving key facts.\n\nContent:\n{{context}}\n\nSummary:",
			PromptReformulate: "Rewrite the following search query to improve " +
				"document retrieval. Provide up to {{count}} alternative phrasings, " +
				"one per line, without numbering or commentary.\n\nQuery: {{query}}",
		},
		overrides: make(map[string]map[string]string),
	}
}

// Register installs or replaces the default template for a prompt type.
func (p *PromptSet) Register(promptType, template string) {
	p.defaults[promptType] = template
}

// RegisterOverride installs a provider-specific template that takes
// precedence over the default for that prompt type.
func (p *PromptSet) RegisterOverride(provider, promptType, template string) {
	if p.overrides[provider] == nil {
		p.overrides[provider] = make(map[string]string)
	}
	p.overrides[provider][promptType] = template
}

// Render resolves and fills the template for a prompt type, preferring
// a provider override. Every placeholder must have a parameter value.
func (p *PromptSet) Render(promptType, provider string, params map[string]string) (string, error) {
	template, ok := p.lookup(promptType, provider)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPromptType, promptType)
	}

	var missing []string
	rendered := placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		value, ok := params[name]
		if !ok {
			missing = append(missing, name)
			return match
		}
		return value
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrMissingParam, strings.Join(missing, ", "))
	}
	return rendered, nil
}

func (p *PromptSet) lookup(promptType, provider string) (string, bool) {
	if byType, ok := p.overrides[provider]; ok {
		if template, ok := byType[promptType]; ok {
			return template, true
		}
	}
	template, ok := p.defaults[promptType]
	return template, ok
}
