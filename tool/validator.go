package tool

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// Validate checks input against schema. It reports the first violation as
// a *ValidationError. Empty input is treated as an empty object.
func Validate(schema ToolSchema, input json.RawMessage) error {
	if len(bytes.TrimSpace(input)) == 0 {
		input = json.RawMessage(`{}`)
	}

	dec := json.NewDecoder(bytes.NewReader(input))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return &ValidationError{Reason: "input is not valid JSON: " + err.Error()}
	}
	obj, ok := value.(map[string]any)
	if !ok {
		return &ValidationError{Reason: fmt.Sprintf("input must be an object, got %s", kindOf(value))}
	}
	return validateObject("", schema.Properties, schema.Required, obj)
}

func validateObject(path string, props map[string]PropertyDef, required []string, obj map[string]any) error {
	for _, name := range required {
		if _, ok := obj[name]; !ok {
			return &ValidationError{Field: join(path, name), Reason: "required field is missing"}
		}
	}
	for name, def := range props {
		v, ok := obj[name]
		if !ok || v == nil {
			continue
		}
		if err := validateValue(join(path, name), def, v); err != nil {
			return err
		}
	}
	return nil
}

func validateValue(field string, def PropertyDef, v any) error {
	fail := func(format string, args ...any) error {
		return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
	}

	switch def.Type {
	case "string":
		s, ok := v.(string)
		if !ok {
			return fail("expected string, got %s", kindOf(v))
		}
		n := utf8.RuneCountInString(s)
		if def.MinLength != nil && n < *def.MinLength {
			return fail("length %d is below minimum %d", n, *def.MinLength)
		}
		if def.MaxLength != nil && n > *def.MaxLength {
			return fail("length %d exceeds maximum %d", n, *def.MaxLength)
		}
		if len(def.Enum) > 0 && !contains(def.Enum, s) {
			return fail("%q is not one of %v", s, def.Enum)
		}

	case "number", "integer":
		num, ok := v.(json.Number)
		if !ok {
			return fail("expected %s, got %s", def.Type, kindOf(v))
		}
		if def.Type == "integer" {
			if _, err := num.Int64(); err != nil {
				return fail("expected integer, got %s", num)
			}
		}
		f, err := num.Float64()
		if err != nil {
			return fail("invalid number %s", num)
		}
		if def.Minimum != nil && f < *def.Minimum {
			return fail("%v is below minimum %v", f, *def.Minimum)
		}
		if def.Maximum != nil && f > *def.Maximum {
			return fail("%v exceeds maximum %v", f, *def.Maximum)
		}

	case "boolean":
		if _, ok := v.(bool); !ok {
			return fail("expected boolean, got %s", kindOf(v))
		}

	case "array":
		items, ok := v.([]any)
		if !ok {
			return fail("expected array, got %s", kindOf(v))
		}
		if def.Items == nil {
			return nil
		}
		for i, item := range items {
			if item == nil {
				continue
			}
			if err := validateValue(fmt.Sprintf("%s[%d]", field, i), *def.Items, item); err != nil {
				return err
			}
		}

	case "object":
		obj, ok := v.(map[string]any)
		if !ok {
			return fail("expected object, got %s", kindOf(v))
		}
		return validateObject(field, def.Properties, def.Required, obj)
	}
	return nil
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
