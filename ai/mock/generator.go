package mock

import (
	"context"
	"fmt"

	"github.com/poiesic/grounder/ai"
)

// MockGenerator is a test double for ai.Generator.
// It allows custom behavior injection via function fields.
type MockGenerator struct {
	// CompleteFunc is called by Complete if set.
	// If nil, uses default canned behavior.
	CompleteFunc func(ctx context.Context, prompt string) (*ai.Completion, error)

	callCount int
}

// NewMockGenerator creates a mock generator with default canned behavior.
// Note: Returns concrete type to allow test assertions via call counting.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

// Complete returns a deterministic canned completion echoing the prompt length.
func (m *MockGenerator) Complete(ctx context.Context, prompt string) (*ai.Completion, error) {
	m.callCount++

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, prompt)
	}

	promptTokens := len(prompt) / 4
	text := fmt.Sprintf("mock completion for prompt of %d characters", len(prompt))
	return &ai.Completion{
		Text: text,
		Usage: ai.Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: len(text) / 4,
			TotalTokens:      promptTokens + len(text)/4,
		},
	}, nil
}

// CallCount returns the number of times Complete was called.
func (m *MockGenerator) CallCount() int {
	return m.callCount
}

// Reset clears the call count and any injected behavior.
func (m *MockGenerator) Reset() {
	m.callCount = 0
	m.CompleteFunc = nil
}
