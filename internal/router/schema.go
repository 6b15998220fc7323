package router

import (
	"fmt"
	"strconv"

	"github.com/stepcanvas/stepcanvas/internal/apperr"
)

// Kind is the primitive shape a declared field must have.
type Kind int

const (
	String Kind = iota
	Number
	Bool
	Object
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Number:
		return "number"
	case Bool:
		return "boolean"
	case Object:
		return "object"
	}
	return "unknown"
}

// Field declares one parameter: its kind, whether it must be present, and
// for strings whether the empty value is rejected.
type Field struct {
	Kind     Kind
	Required bool
	NonEmpty bool
}

// Schema validates the merged parameter object before a handler runs.
// Declared fields are checked and coerced (query-string values arrive as
// strings); unknown extra fields pass through unchanged.
type Schema map[string]Field

// Validate returns the coerced parameters or a Validation error. It runs
// strictly before the handler body; no partial side effects happen on
// failure.
func (s Schema) Validate(params Params) (Params, error) {
	out := Params{}
	for k, v := range params {
		out[k] = v
	}
	for name, f := range s {
		v, ok := out[name]
		if !ok || v == nil {
			if f.Required {
				return nil, &apperr.Validation{Field: name, Reason: "required"}
			}
			continue
		}
		coerced, err := coerce(name, f, v)
		if err != nil {
			return nil, err
		}
		out[name] = coerced
	}
	return out, nil
}

func coerce(name string, f Field, v any) (any, error) {
	switch f.Kind {
	case String:
		s, ok := v.(string)
		if !ok {
			return nil, &apperr.Validation{Field: name, Reason: fmt.Sprintf("expected string, got %T", v)}
		}
		if f.NonEmpty && s == "" {
			return nil, &apperr.Validation{Field: name, Reason: "must not be empty"}
		}
		return s, nil
	case Number:
		switch n := v.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		case string:
			parsed, err := strconv.ParseFloat(n, 64)
			if err != nil {
				return nil, &apperr.Validation{Field: name, Reason: "expected number"}
			}
			return parsed, nil
		}
		return nil, &apperr.Validation{Field: name, Reason: fmt.Sprintf("expected number, got %T", v)}
	case Bool:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			parsed, err := strconv.ParseBool(b)
			if err != nil {
				return nil, &apperr.Validation{Field: name, Reason: "expected boolean"}
			}
			return parsed, nil
		}
		return nil, &apperr.Validation{Field: name, Reason: fmt.Sprintf("expected boolean, got %T", v)}
	case Object:
		if m, ok := v.(map[string]any); ok {
			return m, nil
		}
		return nil, &apperr.Validation{Field: name, Reason: fmt.Sprintf("expected object, got %T", v)}
	}
	return v, nil
}
