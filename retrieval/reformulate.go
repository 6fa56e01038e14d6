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
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/grounder/ai"
)

// DefaultMaxGeneratedVariants caps how many provider-assisted variants
// a reformulation pass keeps.
const DefaultMaxGeneratedVariants = 3

// questionPrefixes are stripped to turn an interrogative query into its
// statement form. Longer prefixes are listed before their own prefixes
// so a single pass strips the most specific one.
var questionPrefixes = []string{
	"can you tell me about ",
	"could you tell me about ",
	"tell me about ",
	"what is the ",
	"what are the ",
	"what is ",
	"what are ",
	"who is ",
	"who are ",
	"who was ",
	"where is ",
	"where are ",
	"when did ",
	"when was ",
	"why is ",
	"why does ",
	"why do ",
	"how do i ",
	"how do you ",
	"how does ",
	"how do ",
	"how to ",
	"explain ",
	"describe ",
	"please ",
}

// QueryReformulator produces alternative phrasings of a query to widen
// recall when the literal query finds nothing. Variants are returned in
// a fixed order with the original always first, so retrying them in
// sequence is deterministic.
type QueryReformulator struct {
	generator    ai.Generator
	synonyms     map[string][]string
	maxGenerated int
	logger       *slog.Logger
}

// ReformulatorOption configures a QueryReformulator.
type ReformulatorOption func(*QueryReformulator) error

// WithGenerator enables provider-assisted reformulation. Without a
// generator only the deterministic variants are produced.
func WithGenerator(g ai.Generator) ReformulatorOption {
	return func(r *QueryReformulator) error {
		r.generator = g
		return nil
	}
}

// WithSynonyms replaces the built-in synonym table. Keys must be
// lowercase single terms.
func WithSynonyms(synonyms map[string][]string) ReformulatorOption {
	return func(r *QueryReformulator) error {
		r.synonyms = synonyms
		return nil
	}
}

// WithMaxGenerated caps the number of provider-assisted variants kept.
func WithMaxGenerated(n int) ReformulatorOption {
	return func(r *QueryReformulator) error {
		if n < 0 {
			return fmt.Errorf("max generated variants must not be negative, got %d", n)
		}
		r.maxGenerated = n
		return nil
	}
}

// WithReformulatorLogger sets the logger for the reformulator.
func WithReformulatorLogger(logger *slog.Logger) ReformulatorOption {
	return func(r *QueryReformulator) error {
		r.logger = logger.With("component", "retrieval")
		return nil
	}
}

// NewQueryReformulator creates a reformulator with the built-in synonym
// table and no generator.
func NewQueryReformulator(opts ...ReformulatorOption) (*QueryReformulator, error) {
	r := &QueryReformulator{
		synonyms:     defaultSynonyms(),
		maxGenerated: DefaultMaxGeneratedVariants,
		logger:       slog.Default().With("component", "retrieval"),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Reformulate returns deduplicated query variants in retry order: the
// original query first, then the keyword form, the simplified form, the
// synonym-expanded form, and finally any provider-assisted variants.
// Provider failures are logged and absorbed; the deterministic variants
// are always produced. A query with no transformable structure yields
// just the original.
func (r *QueryReformulator) Reformulate(ctx context.Context, query string) []string {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	variants := make([]string, 0, 4+r.maxGenerated)
	seen := make(map[string]struct{})
	add := func(v string) {
		v = strings.TrimSpace(v)
		if v == "" {
			return
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		variants = append(variants, v)
	}

	add(query)
	add(r.keywordForm(query))
	add(r.simplifiedForm(query))
	add(r.expandedForm(query))

	if r.generator != nil && r.maxGenerated > 0 {
		for _, v := range r.generatedForms(ctx, query) {
			add(v)
		}
	}

	return variants
}

// keywordForm reduces the query to its content-bearing terms.
func (r *QueryReformulator) keywordForm(query string) string {
	terms := tokenizeAndFilter(query)
	return strings.Join(terms, " ")
}

// simplifiedForm strips a leading interrogative phrase and a trailing
// question mark.
func (r *QueryReformulator) simplifiedForm(query string) string {
	lower := strings.ToLower(query)
	simplified := query
	for _, prefix := range questionPrefixes {
		if strings.HasPrefix(lower, prefix) {
			simplified = query[len(prefix):]
			break
		}
	}
	simplified = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(simplified), "?"))
	return simplified
}

// expandedForm appends known synonyms of the query's content terms.
func (r *QueryReformulator) expandedForm(query string) string {
	var expansions []string
	seen := make(map[string]struct{})
	for _, term := range tokenizeAndFilter(query) {
		for _, syn := range r.synonyms[term] {
			if _, ok := seen[syn]; ok {
				continue
			}
			seen[syn] = struct{}{}
			expansions = append(expansions, syn)
		}
	}
	if len(expansions) == 0 {
		return ""
	}
	return query + " " + strings.Join(expansions, " ")
}

// generatedForms asks the generator for alternative phrasings, one per
// line, and keeps at most maxGenerated of them.
func (r *QueryReformulator) generatedForms(ctx context.Context, query string) []string {
	prompt := fmt.Sprintf(
		"Rewrite the following search query to improve document retrieval. "+
			"Provide up to %d alternative phrasings, one per line, without numbering or commentary.\n\nQuery: %s",
		r.maxGenerated, query)

	completion, err := r.generator.Complete(ctx, prompt)
	if err != nil {
		r.logger.Warn("provider-assisted reformulation failed", "error", err)
		return nil
	}

	var forms []string
	for _, line := range strings.Split(completion.Text, "\n") {
		line = cleanVariantLine(line)
		if line == "" {
			continue
		}
		forms = append(forms, line)
		if len(forms) >= r.maxGenerated {
			break
		}
	}
	return forms
}

// cleanVariantLine strips list markers the model may emit despite
// instructions.
func cleanVariantLine(line string) string {
	line = strings.TrimSpace(line)
	line = strings.TrimLeft(line, "-*•")
	line = strings.TrimSpace(line)
	for i, r := range line {
		if r >= '0' && r <= '9' {
			continue
		}
		if (r == '.' || r == ')') && i > 0 {
			line = strings.TrimSpace(line[i+1:])
		}
		break
	}
	return strings.Trim(line, "\"")
}

func defaultSynonyms() map[string][]string {
	return map[string][]string{
		"error":      {"failure", "fault"},
		"fix":        {"repair", "resolve"},
		"fast":       {"quick", "rapid"},
		"big":        {"large", "huge"},
		"small":      {"tiny", "compact"},
		"buy":        {"purchase"},
		"car":        {"automobile", "vehicle"},
		"doctor":     {"physician"},
		"sick":       {"ill", "unwell"},
		"house":      {"home", "residence"},
		"job":        {"occupation", "employment"},
		"money":      {"funds", "currency"},
		"start":      {"begin", "launch"},
		"stop":       {"halt", "cease"},
		"use":        {"utilize", "employ"},
		"make":       {"create", "build"},
		"search":     {"find", "lookup"},
		"delete":     {"remove", "erase"},
		"update":     {"modify", "change"},
		"important":  {"significant", "critical"},
		"problem":    {"issue", "difficulty"},
		"answer":     {"solution", "response"},
		"document":   {"file", "record"},
		"picture":    {"image", "photo"},
		"talk":       {"speak", "converse"},
		"understand": {"comprehend", "grasp"},
	}
}
