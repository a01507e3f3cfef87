package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_ContentPrompts(t *testing.T) {
	ClearCache()

	for _, key := range []string{KeyDraftPost, KeyRegeneratePost} {
		prompt, err := Get(Content, key)
		require.NoError(t, err, key)
		assert.Contains(t, prompt, "{{.ThemeName}}")
		assert.Contains(t, prompt, `"hashtags"`)
	}

	regen, err := Get(Content, KeyRegeneratePost)
	require.NoError(t, err)
	assert.Contains(t, regen, "{{.Previous}}")
}

func TestGet_InvalidFile(t *testing.T) {
	ClearCache()

	_, err := Get("nonexistent.json", "some-key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read prompt file")
}

func TestGet_InvalidKey(t *testing.T) {
	ClearCache()

	_, err := Get(Content, "nonexistent-key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestFormat(t *testing.T) {
	template := "Hello {{.Name}}, welcome to {{.Company}}! {{.Unknown}}"
	data := map[string]string{
		"Name":    "Alice",
		"Company": "Acme Corp",
	}

	assert.Equal(t, "Hello Alice, welcome to Acme Corp! {{.Unknown}}", Format(template, data))
}

func TestFormat_ValueContainingPlaceholder(t *testing.T) {
	// values are inserted once; a value that looks like a placeholder is not expanded again
	got := Format("{{.A}} {{.B}}", map[string]string{"A": "{{.B}}", "B": "b"})
	assert.Equal(t, "{{.B}} b", got)
}

func TestRender(t *testing.T) {
	ClearCache()

	data := map[string]string{
		"ThemeName":        "Engineering culture",
		"ThemeDescription": "How our teams work",
		"Tone":             "warm",
		"Seed":             "We ship on Fridays.",
	}
	prompt, err := Render(Content, KeyDraftPost, data)
	require.NoError(t, err)
	assert.Contains(t, prompt, "Engineering culture")
	assert.Contains(t, prompt, "We ship on Fridays.")
	assert.NotContains(t, prompt, "{{.")

	_, err = Render(Content, KeyRegeneratePost, data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Previous")
}
