package pollagent

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"
)

// maxCauseDepth bounds how many wrapped errors SerializeError follows.
const maxCauseDepth = 8

// SerializedError is the rejection content reported for a failed job.
type SerializedError struct {
	Name    string            `json:"name"`
	Message string            `json:"message"`
	Issues  []ValidationIssue `json:"issues,omitempty"`
	Cause   *SerializedError  `json:"cause,omitempty"`
}

func (e SerializedError) Error() string { return e.Name + ": " + e.Message }

// Execute invokes handler with input and settles it into a Result. It never panics and never returns an
// error: handler errors and panics become rejections carrying SerializeError of the failure.
func Execute(ctx context.Context, handler Handler, input any) Result {
	start := time.Now()
	value, err := invoke(ctx, handler, input)
	elapsed := time.Since(start)
	if err != nil {
		return Result{Type: ResultRejection, Content: SerializeError(err), FunctionExecutionTime: elapsed}
	}
	return Result{Type: ResultSuccess, Content: value, FunctionExecutionTime: elapsed}
}

func invoke(ctx context.Context, handler Handler, input any) (value any, err error) {
	defer func() {
		if p := recover(); p != nil {
			value = nil
			err = &PanicError{Value: p}
		}
	}()
	return handler(ctx, input)
}

// SerializeError renders any value raised by a handler. Errors keep their type name (or the result of a
// Name() string method) and message, and wrapped errors become Cause. Strings and other values are
// wrapped as a generic "Error". A panicking Error method degrades to "UnknownError".
func SerializeError(v any) SerializedError {
	return serializeValue(v, 0)
}

func serializeValue(v any, depth int) SerializedError {
	switch x := v.(type) {
	case nil:
		return SerializedError{Name: "Error", Message: "unknown error"}
	case SerializedError:
		return x
	case *SerializedError:
		if x == nil {
			return SerializedError{Name: "Error", Message: "unknown error"}
		}
		return *x
	case error:
		return serializeErr(x, depth)
	case string:
		return SerializedError{Name: "Error", Message: x}
	case fmt.Stringer:
		msg, ok := safeString(x.String)
		if !ok {
			return SerializedError{Name: "UnknownError", Message: "value could not be serialized"}
		}
		return SerializedError{Name: "Error", Message: msg}
	default:
		return SerializedError{Name: "Error", Message: fmt.Sprintf("%v", x)}
	}
}

func serializeErr(err error, depth int) SerializedError {
	msg, ok := safeString(err.Error)
	if !ok {
		return SerializedError{Name: "UnknownError", Message: "error could not be serialized"}
	}
	out := SerializedError{Name: errorName(err), Message: msg}
	if ve, isValidation := err.(*ValidationError); isValidation {
		out.Issues = append([]ValidationIssue(nil), ve.Issues...)
	}
	if depth >= maxCauseDepth {
		return out
	}
	if cause := unwrapOne(err); cause != nil {
		c := serializeErr(cause, depth+1)
		out.Cause = &c
	}
	return out
}

func unwrapOne(err error) (cause error) {
	defer func() {
		if recover() != nil {
			cause = nil
		}
	}()
	if u, ok := err.(interface{ Unwrap() []error }); ok {
		if errs := u.Unwrap(); len(errs) > 0 {
			return errs[0]
		}
		return nil
	}
	return errors.Unwrap(err)
}

func safeString(fn func() string) (s string, ok bool) {
	defer func() {
		if recover() != nil {
			s, ok = "", false
		}
	}()
	return fn(), true
}

func errorName(err error) string {
	if n, ok := err.(interface{ Name() string }); ok {
		if name, ok := safeString(n.Name); ok && name != "" {
			return name
		}
	}
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.PkgPath() {
	case "errors", "fmt":
		return "Error"
	}
	if t.Name() == "" {
		return "Error"
	}
	return t.Name()
}
