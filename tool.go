package pollagent

import (
	"context"
	"fmt"
	"maps"
	"regexp"
	"time"

	"github.com/skosovsky/pollagent/coordinator"
)

var toolNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]{0,63}$`)

// Tool is a named, schema-validated callable. It is immutable once built.
type Tool struct {
	name        string
	description string
	schema      Schema
	handler     Handler
	opts        toolOptions
}

// NewTool builds a Tool from a typed function. The input schema is reflected from T (see TypedSchema);
// fn receives the validated, decoded T and its return value is reported as the job result.
func NewTool[T any, R any](
	name, description string,
	fn func(ctx context.Context, args T) (R, error),
	opts ...ToolOption,
) (*Tool, error) {
	if fn == nil {
		return nil, configError(ErrNilHandler, "tool %q", name)
	}
	o := applyToolOptions(opts)
	schema, err := NewTypedSchema[T](o.strict)
	if err != nil {
		return nil, fmt.Errorf("tool %q: %w", name, err)
	}
	handler := func(ctx context.Context, input any) (any, error) {
		args, ok := input.(T)
		if !ok {
			return nil, fmt.Errorf("tool %q: unexpected input type %T", name, input)
		}
		return fn(ctx, args)
	}
	return newTool(name, description, schema, handler, o)
}

// NewDynamicTool builds a Tool from a raw JSON Schema document. The document is registered unchanged
// and fn receives the decoded JSON object (map[string]any) once it validates. Numbers in that object are
// json.Number.
func NewDynamicTool(
	name, description string,
	schemaMap map[string]any,
	fn Handler,
	opts ...ToolOption,
) (*Tool, error) {
	if fn == nil {
		return nil, configError(ErrNilHandler, "tool %q", name)
	}
	o := applyToolOptions(opts)
	schema, err := NewRawSchema(schemaMap, o.strict)
	if err != nil {
		return nil, fmt.Errorf("tool %q: %w", name, err)
	}
	return newTool(name, description, schema, fn, o)
}

// NewToolWithSchema builds a Tool from an already constructed Schema.
func NewToolWithSchema(name, description string, schema Schema, fn Handler, opts ...ToolOption) (*Tool, error) {
	return newTool(name, description, schema, fn, applyToolOptions(opts))
}

func newTool(name, description string, schema Schema, fn Handler, o toolOptions) (*Tool, error) {
	if !toolNamePattern.MatchString(name) {
		return nil, configError(ErrInvalidToolName, "%q must match %s", name, toolNamePattern)
	}
	if schema == nil {
		return nil, configError(ErrNilSchema, "tool %q", name)
	}
	if fn == nil {
		return nil, configError(ErrNilHandler, "tool %q", name)
	}
	return &Tool{
		name:        name,
		description: description,
		schema:      schema,
		handler:     fn,
		opts:        o,
	}, nil
}

func (t *Tool) Name() string        { return t.name }
func (t *Tool) Description() string { return t.description }
func (t *Tool) Schema() Schema      { return t.schema }
func (t *Tool) Handler() Handler    { return t.handler }

// Config returns a shallow copy of the opaque metadata passed through to the coordinator.
func (t *Tool) Config() map[string]any { return maps.Clone(t.opts.config) }

func (t *Tool) Timeout() time.Duration { return t.opts.timeout }
func (t *Tool) Tags() []string         { return append([]string(nil), t.opts.tags...) }
func (t *Tool) IsStrict() bool         { return t.opts.strict }

// Definition renders the registration payload for the coordinator.
func (t *Tool) Definition() (coordinator.ToolDefinition, error) {
	schema, err := t.schema.JSONSchema()
	if err != nil {
		return coordinator.ToolDefinition{}, fmt.Errorf("tool %q: %w", t.name, err)
	}
	cfg := t.Config()
	if len(t.opts.tags) > 0 {
		if cfg == nil {
			cfg = make(map[string]any, 1)
		}
		if _, ok := cfg["tags"]; !ok {
			cfg["tags"] = t.Tags()
		}
	}
	return coordinator.ToolDefinition{
		Name:        t.name,
		Description: t.description,
		Schema:      schema,
		Config:      cfg,
	}, nil
}
