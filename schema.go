package pollagent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Schema declares and validates the input of a tool. It is a closed set: *TypedSchema[T] built from a Go
// type, and *RawSchema built from a JSON Schema document.
type Schema interface {
	// JSONSchema returns the stringified JSON Schema document pushed to the coordinator on registration.
	JSONSchema() (string, error)
	// Validate checks a decoded JSON value and returns the value handed to the tool handler.
	// On failure it returns a *ValidationError.
	Validate(input any) (any, error)

	document() map[string]any
}

// RawSchema is a JSON Schema document supplied as-is. The document is sent to the coordinator unchanged
// and validated inputs are passed through untouched.
type RawSchema struct {
	doc      map[string]any
	compiled *jsonschema.Schema
}

// NewRawSchema compiles doc. doc is deep-copied and never mutated. strict applies
// additionalProperties: false and all-required to every object (and is then reflected in JSONSchema).
func NewRawSchema(doc map[string]any, strict bool) (*RawSchema, error) {
	if doc == nil {
		return nil, configError(ErrNilSchema, "raw schema document is nil")
	}
	cp, err := deepCopy(doc)
	if err != nil {
		return nil, fmt.Errorf("copy schema document: %w", err)
	}
	if strict {
		applyStrictMode(cp)
	}
	compiled, err := compileSchema(cp)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &RawSchema{doc: cp, compiled: compiled}, nil
}

// JSONSchema returns the document as supplied.
func (s *RawSchema) JSONSchema() (string, error) { return marshalDocument(s.doc) }

// Validate returns input unchanged when it satisfies the schema.
func (s *RawSchema) Validate(input any) (any, error) {
	if err := validateAgainstSchema(s.compiled, input); err != nil {
		return nil, err
	}
	return input, nil
}

func (s *RawSchema) document() map[string]any { return s.doc }

func marshalDocument(doc map[string]any) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal schema: %w", err)
	}
	return string(data), nil
}

func deepCopy(doc map[string]any) (map[string]any, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// inputSchemaURL is the resource name each schema is compiled under; every schema gets its own compiler.
const inputSchemaURL = "input.json"

// compileSchema compiles a JSON Schema map into a validator. The map is not mutated; id and $id are
// dropped from the compiled copy so resolution does not depend on them.
func compileSchema(doc map[string]any) (*jsonschema.Schema, error) {
	cp, err := deepCopy(doc)
	if err != nil {
		return nil, err
	}
	stripSchemaIDs(cp)
	data, err := json.Marshal(cp)
	if err != nil {
		return nil, err
	}
	parsed, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(inputSchemaURL, parsed); err != nil {
		return nil, err
	}
	return c.Compile(inputSchemaURL)
}

// annotateFromTags copies the `description` and comma-separated `enum` struct tags of typ's fields onto
// the matching top-level properties of doc.
func annotateFromTags(doc map[string]any, typ reflect.Type) {
	props, _ := doc["properties"].(map[string]any)
	if len(props) == 0 || typ.Kind() != reflect.Struct {
		return
	}
	for field := range typ.Fields() {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		prop, ok := props[name].(map[string]any)
		if !ok || name == "-" {
			continue
		}
		if desc := field.Tag.Get("description"); desc != "" {
			prop["description"] = desc
		}
		if enum := field.Tag.Get("enum"); enum != "" {
			var values []any
			for v := range strings.SplitSeq(enum, ",") {
				values = append(values, strings.TrimSpace(v))
			}
			prop["enum"] = values
		}
	}
}

// Keywords whose value is one subschema, a list of subschemas, or a map of named subschemas.
var (
	subschemaKeywords = []string{
		"items", "additionalItems", "additionalProperties", "unevaluatedItems", "unevaluatedProperties",
		"contains", "propertyNames", "not", "if", "then", "else",
	}
	subschemaListKeywords = []string{"allOf", "anyOf", "oneOf", "prefixItems", "items"}
	subschemaMapKeywords  = []string{
		"properties", "patternProperties", "$defs", "definitions", "dependentSchemas", "dependencies",
	}
)

// eachSchema calls visit on node and then on every schema nested under a subschema keyword. Property
// names and the values of annotation keywords (default, const, enum, examples) are never visited.
func eachSchema(node map[string]any, visit func(map[string]any)) {
	if node == nil {
		return
	}
	visit(node)
	for _, kw := range subschemaKeywords {
		if sub, ok := node[kw].(map[string]any); ok {
			eachSchema(sub, visit)
		}
	}
	for _, kw := range subschemaListKeywords {
		list, _ := node[kw].([]any)
		for _, item := range list {
			if sub, ok := item.(map[string]any); ok {
				eachSchema(sub, visit)
			}
		}
	}
	for _, kw := range subschemaMapKeywords {
		named, _ := node[kw].(map[string]any)
		for _, v := range named {
			if sub, ok := v.(map[string]any); ok {
				eachSchema(sub, visit)
			}
		}
	}
}

// applyStrictMode closes every object schema and marks all of its properties required.
func applyStrictMode(doc map[string]any) {
	eachSchema(doc, func(n map[string]any) {
		props, ok := n["properties"].(map[string]any)
		if !ok {
			return
		}
		n["additionalProperties"] = false
		if len(props) == 0 {
			return
		}
		var required []any
		for _, k := range slices.Sorted(maps.Keys(props)) {
			required = append(required, k)
		}
		n["required"] = required
	})
}

// stripSchemaIDs drops the $id and draft-4 id keywords so every schema compiles as one anonymous
// resource. Only string-valued keywords on schema nodes go; properties named id are kept.
func stripSchemaIDs(doc map[string]any) {
	eachSchema(doc, func(n map[string]any) {
		for _, kw := range []string{"$id", "id"} {
			if _, ok := n[kw].(string); ok {
				delete(n, kw)
			}
		}
	})
}
