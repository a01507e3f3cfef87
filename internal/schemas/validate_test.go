package schemas

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateGeneratedPost_Valid(t *testing.T) {
	tests := []string{
		`{"post": "We are hiring backend engineers!"}`,
		`{"post": "We are hiring!", "hashtags": ["hiring", "golang"]}`,
		`{"post": "x", "hashtags": []}`,
	}
	for _, doc := range tests {
		assert.NoError(t, ValidateGeneratedPost(doc), doc)
	}
}

func TestValidateGeneratedPost_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		doc       string
		wantField string
	}{
		{name: "missing post", doc: `{"hashtags": ["a"]}`, wantField: "(root)"},
		{name: "empty post", doc: `{"post": ""}`, wantField: "post"},
		{name: "post too long", doc: `{"post": "` + strings.Repeat("a", 3001) + `"}`, wantField: "post"},
		{name: "post wrong type", doc: `{"post": 42}`, wantField: "post"},
		{name: "hashtag with hash", doc: `{"post": "x", "hashtags": ["#hiring"]}`, wantField: "hashtags.0"},
		{name: "hashtag with space", doc: `{"post": "x", "hashtags": ["we hire"]}`, wantField: "hashtags.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGeneratedPost(tt.doc)
			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr), "got %v", err)
			require.NotEmpty(t, vErr.Errors)

			fields := make([]string, 0, len(vErr.Errors))
			for _, fe := range vErr.Errors {
				fields = append(fields, fe.Field)
			}
			assert.Contains(t, fields, tt.wantField)
		})
	}
}

func TestValidateGeneratedPost_NotJSON(t *testing.T) {
	err := ValidateGeneratedPost(`post: hello`)
	var loadErr *SchemaLoadError
	require.True(t, errors.As(err, &loadErr))
}

func TestValidateJSONString(t *testing.T) {
	schema := `{"type": "object", "required": ["id"], "properties": {"id": {"type": "string"}}}`

	assert.NoError(t, ValidateJSONString(schema, `{"id": "abc"}`))

	err := ValidateJSONString(schema, `{"id": 1}`)
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Contains(t, err.Error(), "validation failed")
}

func TestValidateJSONString_BadSchema(t *testing.T) {
	err := ValidateJSONString(`{"type": "nonsense"}`, `{}`)
	var loadErr *SchemaLoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Contains(t, loadErr.Error(), "(string schema)")
}
