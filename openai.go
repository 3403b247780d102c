package pollagent

import (
	"encoding/json"

	"github.com/sashabaranov/go-openai"
)

// OpenAITools maps the registered tools to chat-completion function tools. The parameter schema is the
// document registered with the coordinator.
func (c *Client) OpenAITools() ([]openai.Tool, error) {
	return OpenAITools(c.Tools()...)
}

// OpenAITools maps tools to chat-completion function tools.
func OpenAITools(tools ...*Tool) ([]openai.Tool, error) {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		doc, err := t.Schema().JSONSchema()
		if err != nil {
			return nil, err
		}
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Strict:      t.IsStrict(),
				Parameters:  json.RawMessage(doc),
			},
		})
	}
	return out, nil
}
