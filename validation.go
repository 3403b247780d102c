package pollagent

import (
	"errors"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Validatable is implemented by typed tool arguments that need business validation beyond the schema.
// Called after schema validation and decoding.
type Validatable interface {
	Validate() error
}

// validateAgainstSchema runs Layer 1 validation on an already-decoded JSON value.
func validateAgainstSchema(compiled *jsonschema.Schema, v any) error {
	err := compiled.Validate(v)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return &ValidationError{Issues: []ValidationIssue{{Message: err.Error()}}}
	}
	p := message.NewPrinter(language.English)
	return &ValidationError{Issues: collectIssues(ve, p, nil)}
}

// collectIssues flattens the cause tree; only leaves carry a concrete violation.
func collectIssues(ve *jsonschema.ValidationError, p *message.Printer, out []ValidationIssue) []ValidationIssue {
	if len(ve.Causes) == 0 {
		return append(out, ValidationIssue{
			Path:    instancePath(ve.InstanceLocation),
			Message: ve.ErrorKind.LocalizedString(p),
		})
	}
	for _, c := range ve.Causes {
		out = collectIssues(c, p, out)
	}
	return out
}

func instancePath(tokens []string) string {
	if len(tokens) == 0 {
		return ""
	}
	var b strings.Builder
	for _, tok := range tokens {
		b.WriteByte('/')
		tok = strings.ReplaceAll(tok, "~", "~0")
		b.WriteString(strings.ReplaceAll(tok, "/", "~1"))
	}
	return b.String()
}

// runValidatable calls Validate on args, or on &args when only the pointer receiver implements
// Validatable. Validate runs at most once.
func runValidatable[T any](args T) error {
	if v, ok := any(args).(Validatable); ok {
		return v.Validate()
	}
	if v, ok := any(&args).(Validatable); ok {
		return v.Validate()
	}
	return nil
}
