package generate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptSetRender(t *testing.T) {
	prompts := NewPromptSet()

	t.Run("fills placeholders", func(t *testing.T) {
		rendered, err := prompts.Render(PromptAnswer, "openai", map[string]string{
			"context": "the sky is blue",
			"query":   "what color is the sky?",
		})
		require.NoError(t, err)
		assert.Contains(t, rendered, "the sky is blue")
		assert.Contains(t, rendered, "what color is the sky?")
		assert.NotContains(t, rendered, "{{")
	})

	t.Run("unknown prompt type", func(t *testing.T) {
		_, err := prompts.Render("haiku", "openai", nil)
		require.ErrorIs(t, err, ErrUnknownPromptType)
	})

	t.Run("missing parameter", func(t *testing.T) {
		_, err := prompts.Render(PromptAnswer, "openai", map[string]string{"query": "q"})
		require.ErrorIs(t, err, ErrMissingParam)
		assert.Contains(t, err.Error(), "context")
	})

	t.Run("whitespace inside placeholder braces", func(t *testing.T) {
		prompts.Register("spaced", "value: {{ key }}")
		rendered, err := prompts.Render("spaced", "openai", map[string]string{"key": "v"})
		require.NoError(t, err)
		assert.Equal(t, "value: v", rendered)
	})
}

func TestPromptSetOverrides(t *testing.T) {
	prompts := NewPromptSet()
	prompts.Register("greet", "hello {{name}}")
	prompts.RegisterOverride("local", "greet", "howdy {{name}}")

	rendered, err := prompts.Render("greet", "openai", map[string]string{"name": "world"})
	require.NoError(t, err)
	assert.Equal(t, "hello world", rendered)

	rendered, err = prompts.Render("greet", "local", map[string]string{"name": "world"})
	require.NoError(t, err)
	assert.Equal(t, "howdy world", rendered)
}
