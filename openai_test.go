package pollagent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skosovsky/pollagent/testutil"
)

func TestClient_OpenAITools(t *testing.T) {
	c := newTestClient(t, testutil.NewFakeCoordinator())
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"q": map[string]any{"type": "string"}},
	}
	search, err := NewDynamicTool("search", "Search the web", schema,
		func(context.Context, any) (any, error) { return nil, nil }, WithStrict())
	require.NoError(t, err)
	require.NoError(t, c.Register(search, addTool(t, nil)))

	tools, err := c.OpenAITools()
	require.NoError(t, err)
	require.Len(t, tools, 2)

	assert.Equal(t, openai.ToolTypeFunction, tools[0].Type)
	assert.Equal(t, "add", tools[0].Function.Name)
	assert.False(t, tools[0].Function.Strict)

	fn := tools[1].Function
	assert.Equal(t, "search", fn.Name)
	assert.Equal(t, "Search the web", fn.Description)
	assert.True(t, fn.Strict)
	want, err := search.Schema().JSONSchema()
	require.NoError(t, err)
	params, err := json.Marshal(fn.Parameters)
	require.NoError(t, err)
	assert.JSONEq(t, want, string(params))
	assert.JSONEq(t, `{
		"type": "object",
		"properties": {"q": {"type": "string"}},
		"additionalProperties": false,
		"required": ["q"]
	}`, string(params))
}

func TestOpenAITools_Empty(t *testing.T) {
	tools, err := OpenAITools()
	require.NoError(t, err)
	assert.Empty(t, tools)
}
