package pollagent

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	invopop "github.com/invopop/jsonschema"
)

var (
	customTypesMu sync.RWMutex
	customTypes   = make(map[reflect.Type]*invopop.Schema)
)

// RegisterType maps a custom Go type to a JSON Schema type/format in reflected schemas.
// emptyInstance is a value of the type to register (e.g. uuid.UUID{}); it must not be nil.
// jsonType must not be empty; format is optional. Pointer fields (*T) use the mapping of T.
// Call RegisterType at startup before the first NewTool or NewTypedSchema.
func RegisterType(emptyInstance any, jsonType, format string) {
	if emptyInstance == nil {
		panic("pollagent: RegisterType emptyInstance must not be nil")
	}
	if jsonType == "" {
		panic("pollagent: RegisterType jsonType must not be empty")
	}
	customTypesMu.Lock()
	defer customTypesMu.Unlock()
	customTypes[reflect.TypeOf(emptyInstance)] = &invopop.Schema{Type: jsonType, Format: format}
}

// typeMapper snapshots the registered types into an invopop Reflector mapper.
func typeMapper() func(reflect.Type) *invopop.Schema {
	customTypesMu.RLock()
	snapshot := make(map[reflect.Type]invopop.Schema, len(customTypes))
	for t, s := range customTypes {
		snapshot[t] = *s
	}
	customTypesMu.RUnlock()
	return func(t reflect.Type) *invopop.Schema {
		if t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		s, ok := snapshot[t]
		if !ok {
			return nil
		}
		return &invopop.Schema{Type: s.Type, Format: s.Format}
	}
}

// TypedSchema is a Schema reflected from the Go type T. Field names follow json tags; fields without
// omitempty are required. Description and enum may be supplied with the `description` and `enum`
// struct tags (or invopop `jsonschema` tags).
//
// Validate runs two layers: the reflected JSON Schema, then Validatable.Validate if T implements it.
// It returns a T.
type TypedSchema[T any] struct {
	raw *RawSchema
}

// NewTypedSchema reflects T. When strict is true every object gets additionalProperties: false and all
// properties become required.
func NewTypedSchema[T any](strict bool) (*TypedSchema[T], error) {
	doc, err := reflectSchema[T]()
	if err != nil {
		return nil, err
	}
	raw, err := NewRawSchema(doc, strict)
	if err != nil {
		return nil, err
	}
	return &TypedSchema[T]{raw: raw}, nil
}

// JSONSchema returns the reflected document.
func (s *TypedSchema[T]) JSONSchema() (string, error) { return s.raw.JSONSchema() }

// Validate checks input against the schema and decodes it into T.
func (s *TypedSchema[T]) Validate(input any) (any, error) {
	return s.Parse(input)
}

// Parse is Validate with a typed result.
func (s *TypedSchema[T]) Parse(input any) (T, error) {
	var zero T
	if err := validateAgainstSchema(s.raw.compiled, input); err != nil {
		return zero, err
	}
	data, err := json.Marshal(input)
	if err != nil {
		return zero, &ValidationError{Issues: []ValidationIssue{{Message: err.Error()}}}
	}
	var args T
	if err := json.Unmarshal(data, &args); err != nil {
		return zero, &ValidationError{Issues: []ValidationIssue{{Message: err.Error()}}}
	}
	if err := runValidatable(args); err != nil {
		if IsValidationError(err) {
			return zero, err
		}
		return zero, &ValidationError{Issues: []ValidationIssue{{Message: err.Error()}}}
	}
	return args, nil
}

func (s *TypedSchema[T]) document() map[string]any { return s.raw.doc }

// reflectSchema produces an inlined JSON Schema map for T (no $ref/$defs, no $id). T must be a struct or
// a map, possibly behind pointers, since job input is always a JSON object.
func reflectSchema[T any]() (map[string]any, error) {
	typ := reflect.TypeFor[T]()
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct && typ.Kind() != reflect.Map {
		return nil, configError(ErrUnsupportedInput, "%s is a %s", typ, typ.Kind())
	}
	// ExpandedStruct stays off: it looks the root up by type name, which unnamed structs and mapped
	// types lack. With DoNotReference the root is inlined either way.
	r := &invopop.Reflector{
		Anonymous:      true,
		DoNotReference: true,
		Mapper:         typeMapper(),
	}
	schema := r.ReflectFromType(typ)
	if schema == nil {
		return nil, configError(ErrUnsupportedInput, "%s reflected to no schema", typ)
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal reflected schema: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode reflected schema: %w", err)
	}
	if doc["type"] != "object" {
		return nil, configError(ErrUnsupportedInput, "%s does not reflect to an object schema", typ)
	}
	annotateFromTags(doc, typ)
	return doc, nil
}
