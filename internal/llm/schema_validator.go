package llm

import "fmt"

// unsupportedSchemaKeys are the JSON-Schema keywords Anthropic's
// structured-output mode rejects (spec §4.3.A / §4.5).
var unsupportedSchemaKeys = map[string]bool{
	"minimum":     true,
	"maximum":     true,
	"multipleOf":  true,
	"minLength":   true,
	"maxLength":   true,
	"maxItems":    true,
	"uniqueItems": true,
}

// ValidateStructuredOutputSchema recursively walks a JSON-Schema value and
// rejects the keys Anthropic's structured-output mode does not support (C5).
// Only invoked when structured output is requested on a supporting Claude
// model; all other providers accept schemas opaquely.
func ValidateStructuredOutputSchema(schema interface{}) error {
	return validateSchemaAt(schema, "$")
}

func validateSchemaAt(node interface{}, path string) error {
	obj, ok := node.(map[string]interface{})
	if !ok {
		return nil
	}

	for key := range obj {
		if unsupportedSchemaKeys[key] {
			return NewInvalidRequest("Anthropic", fmt.Sprintf("%s: unsupported schema keyword %q", path, key))
		}
	}

	if minItems, ok := obj["minItems"]; ok {
		if n, ok := toFloat(minItems); ok && n > 1 {
			return NewInvalidRequest("Anthropic", fmt.Sprintf("%s: minItems > 1 is unsupported", path))
		}
	}

	if ap, ok := obj["additionalProperties"]; ok {
		if b, isBool := ap.(bool); !isBool || b {
			return NewInvalidRequest("Anthropic", fmt.Sprintf("%s: additionalProperties must be exactly false", path))
		}
	}

	if enumVal, ok := obj["enum"]; ok {
		items, ok := enumVal.([]interface{})
		if !ok {
			return NewInvalidRequest("Anthropic", fmt.Sprintf("%s: enum must be an array", path))
		}
		for _, item := range items {
			if !isPrimitive(item) {
				return NewInvalidRequest("Anthropic", fmt.Sprintf("%s: enum values must be primitive", path))
			}
		}
	}

	if props, ok := obj["properties"].(map[string]interface{}); ok {
		for name, propSchema := range props {
			if err := validateSchemaAt(propSchema, path+".properties."+name); err != nil {
				return err
			}
		}
	}

	if items, ok := obj["items"]; ok {
		if err := validateSchemaAt(items, path+".items"); err != nil {
			return err
		}
	}

	return nil
}

func isPrimitive(v interface{}) bool {
	switch v.(type) {
	case string, float64, int, bool, nil:
		return true
	default:
		return false
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
