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
	"log/slog"

	"github.com/pkoukk/tiktoken-go"

	"github.com/poiesic/grounder/core"
)

const (
	// DefaultMaxContextTokens caps how many tokens of retrieved
	// context a prompt may carry.
	DefaultMaxContextTokens = 3000

	// budgetEncoding is the BPE encoding used for counting.
	budgetEncoding = "cl100k_base"
)

// TokenCounter counts the tokens of a text.
type TokenCounter func(text string) int

// ContextBudget fits retrieved chunks into a token allowance. Chunks
// are taken greedily in their given order; the first chunk that would
// exceed the budget stops the fill.
type ContextBudget struct {
	maxTokens int
	counter   TokenCounter
	logger    *slog.Logger
}

// BudgetOption configures a ContextBudget.
type BudgetOption func(*ContextBudget) error

// WithMaxTokens overrides the token allowance.
func WithMaxTokens(n int) BudgetOption {
	return func(b *ContextBudget) error {
		if n <= 0 {
			return fmt.Errorf("max context tokens must be positive, got %d", n)
		}
		b.maxTokens = n
		return nil
	}
}

// WithTokenCounter replaces the token counter, for tests or offline
// environments.
func WithTokenCounter(counter TokenCounter) BudgetOption {
	return func(b *ContextBudget) error {
		if counter == nil {
			return fmt.Errorf("token counter must not be nil")
		}
		b.counter = counter
		return nil
	}
}

// NewContextBudget creates a budget counting with the cl100k_base BPE
// encoding. When the encoding cannot be loaded, for example without
// network access to fetch the vocabulary, counting falls back to a
// bytes-per-token heuristic.
func NewContextBudget(opts ...BudgetOption) (*ContextBudget, error) {
	b := &ContextBudget{
		maxTokens: DefaultMaxContextTokens,
		logger:    slog.Default().With("component", "generate"),
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}

	if b.counter == nil {
		encoding, err := tiktoken.GetEncoding(budgetEncoding)
		if err != nil {
			b.logger.Warn("token encoding unavailable, using byte heuristic", "error", err)
			b.counter = heuristicTokenCount
		} else {
			b.counter = func(text string) int {
				return len(encoding.Encode(text, nil, nil))
			}
		}
	}

	return b, nil
}

// Count returns the token count of a text under the budget's counter.
func (b *ContextBudget) Count(text string) int {
	return b.counter(text)
}

// FitChunks returns the longest prefix of chunks whose combined text
// fits within the token allowance.
func (b *ContextBudget) FitChunks(chunks []*core.ScoredChunk) []*core.ScoredChunk {
	fitted := make([]*core.ScoredChunk, 0, len(chunks))
	used := 0
	for _, sc := range chunks {
		tokens := b.counter(sc.Chunk.Text)
		if used+tokens > b.maxTokens {
			break
		}
		used += tokens
		fitted = append(fitted, sc)
	}
	if len(fitted) < len(chunks) {
		b.logger.Debug("context truncated to token budget",
			"kept", len(fitted), "dropped", len(chunks)-len(fitted), "tokens", used)
	}
	return fitted
}

// heuristicTokenCount approximates GPT-style tokenization at four bytes
// per token, never returning zero for non-empty text.
func heuristicTokenCount(text string) int {
	if text == "" {
		return 0
	}
	n := len(text) / 4
	if n == 0 {
		return 1
	}
	return n
}
