package pollagent

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRawSchema_PassThrough(t *testing.T) {
	t.Parallel()
	doc := map[string]any{
		"$id":  "https://example.com/weather.json",
		"type": "object",
		"properties": map[string]any{
			"unit": map[string]any{"type": "string", "enum": []any{"celsius", "fahrenheit"}},
		},
		"required": []any{"unit"},
	}
	want, err := json.Marshal(doc)
	require.NoError(t, err)

	s, err := NewRawSchema(doc, false)
	require.NoError(t, err)
	got, err := s.JSONSchema()
	require.NoError(t, err)
	assert.JSONEq(t, string(want), got)
	assert.Equal(t, "https://example.com/weather.json", doc["$id"], "caller map must not be mutated")

	in := decode(t, `{"unit": "celsius"}`)
	v, err := s.Validate(in)
	require.NoError(t, err)
	assert.Equal(t, in, v)
}

func TestRawSchema_Validate_Issues(t *testing.T) {
	t.Parallel()
	s, err := NewRawSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"user": map[string]any{
				"type":       "object",
				"properties": map[string]any{"age": map[string]any{"type": "integer", "minimum": 0}},
			},
		},
		"required": []any{"user"},
	}, false)
	require.NoError(t, err)

	_, err = s.Validate(decode(t, `{}`))
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Len(t, ve.Issues, 1)
	assert.Equal(t, "", ve.Issues[0].Path)
	assert.Contains(t, ve.Issues[0].Message, "user")

	_, err = s.Validate(decode(t, `{"user": {"age": -1}}`))
	require.ErrorAs(t, err, &ve)
	require.Len(t, ve.Issues, 1)
	assert.Equal(t, "/user/age", ve.Issues[0].Path)
	assert.NotEmpty(t, ve.Issues[0].Message)
}

func TestNewRawSchema_Strict(t *testing.T) {
	t.Parallel()
	doc := map[string]any{
		"type":       "object",
		"properties": map[string]any{"a": map[string]any{"type": "string"}},
	}
	s, err := NewRawSchema(doc, true)
	require.NoError(t, err)
	assert.Nil(t, doc["additionalProperties"], "caller map must not be mutated")
	assert.Equal(t, false, s.document()["additionalProperties"])
	_, err = s.Validate(decode(t, `{"a": "x", "b": 1}`))
	assert.ErrorIs(t, err, ErrValidation)
	_, err = s.Validate(decode(t, `{}`))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNewRawSchema_Errors(t *testing.T) {
	t.Parallel()
	_, err := NewRawSchema(nil, false)
	assert.ErrorIs(t, err, ErrNilSchema)
	assert.True(t, IsConfigError(err))

	_, err = NewRawSchema(map[string]any{"type": 12}, false)
	assert.Error(t, err)
}

func TestApplyStrictMode(t *testing.T) {
	m := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "string"},
			"b": map[string]any{
				"type":       "object",
				"properties": map[string]any{"c": map[string]any{"type": "integer"}},
			},
		},
	}
	applyStrictMode(m)
	assert.Equal(t, false, m["additionalProperties"])
	props := m["properties"].(map[string]any)
	assert.Equal(t, false, props["b"].(map[string]any)["additionalProperties"])
	assert.Equal(t, []any{"a", "b"}, m["required"])
}

func TestApplyStrictMode_PropertyNamedProperties(t *testing.T) {
	m := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"properties": map[string]any{"type": "string"},
		},
	}
	applyStrictMode(m)
	props := m["properties"].(map[string]any)
	assert.NotContains(t, props, "additionalProperties")
	assert.NotContains(t, props, "required")
	assert.Equal(t, []any{"properties"}, m["required"])
}

func TestStripSchemaIDs(t *testing.T) {
	m := map[string]any{
		"$id": "root",
		"id":  "legacy",
		"properties": map[string]any{
			"n": map[string]any{"$id": "nested", "type": "string"},
		},
	}
	stripSchemaIDs(m)
	assert.NotContains(t, m, "$id")
	assert.NotContains(t, m, "id")
	assert.NotContains(t, m["properties"].(map[string]any)["n"], "$id")
}

func TestStripSchemaIDs_KeepsNamedProperties(t *testing.T) {
	m := map[string]any{
		"$id":  "root",
		"type": "object",
		"properties": map[string]any{
			"id":  map[string]any{"type": "integer"},
			"$id": map[string]any{"type": "string"},
			"ref": map[string]any{
				"type":    "object",
				"default": map[string]any{"id": "keep"},
			},
		},
		"$defs": map[string]any{"id": map[string]any{"id": "legacy", "type": "string"}},
	}
	stripSchemaIDs(m)
	props := m["properties"].(map[string]any)
	assert.Contains(t, props, "id")
	assert.Contains(t, props, "$id")
	assert.Equal(t, map[string]any{"id": "keep"}, props["ref"].(map[string]any)["default"])
	assert.Equal(t, map[string]any{"type": "string"}, m["$defs"].(map[string]any)["id"])
	assert.NotContains(t, m, "$id")
}

func TestRawSchema_IDProperties(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		prop    string
		input   string
		wantErr bool
	}{
		{"id valid", "id", `{"id": 7}`, false},
		{"id wrong type", "id", `{"id": "not-an-int"}`, true},
		{"id missing", "id", `{}`, true},
		{"$id valid", "$id", `{"$id": 7}`, false},
		{"$id wrong type", "$id", `{"$id": "x"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s, err := NewRawSchema(map[string]any{
				"type":       "object",
				"properties": map[string]any{tt.prop: map[string]any{"type": "integer"}},
				"required":   []any{tt.prop},
			}, false)
			require.NoError(t, err)
			_, err = s.Validate(decode(t, tt.input))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestInstancePath(t *testing.T) {
	assert.Equal(t, "", instancePath(nil))
	assert.Equal(t, "/a/0", instancePath([]string{"a", "0"}))
	assert.Equal(t, "/a~1b/c~0d", instancePath([]string{"a/b", "c~d"}))
}

func FuzzRawSchemaValidate(f *testing.F) {
	s, err := NewRawSchema(map[string]any{
		"type":       "object",
		"properties": map[string]any{"x": map[string]any{"type": "integer"}},
	}, false)
	if err != nil {
		f.Skip("compile failed")
	}
	f.Add([]byte(`{"x": 1}`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`{"x": "y"}`))
	f.Fuzz(func(_ *testing.T, data []byte) {
		var instance any
		_ = json.Unmarshal(data, &instance)
		_, _ = s.Validate(instance)
	})
}
