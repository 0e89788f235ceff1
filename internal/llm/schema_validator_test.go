package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateStructuredOutputSchemaAcceptsPlainSchema(t *testing.T) {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"name": map[string]interface{}{"type": "string"},
		},
		"additionalProperties": false,
	}
	assert.NoError(t, ValidateStructuredOutputSchema(schema))
}

func TestValidateStructuredOutputSchemaRejectsUnsupportedKeywords(t *testing.T) {
	tests := []struct {
		name   string
		schema map[string]interface{}
	}{
		{"minimum", map[string]interface{}{"type": "number", "minimum": 1}},
		{"maxLength", map[string]interface{}{"type": "string", "maxLength": 10}},
		{"uniqueItems", map[string]interface{}{"type": "array", "uniqueItems": true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStructuredOutputSchema(tt.schema)
			require.Error(t, err)
			var llmErr *Error
			require.True(t, asError(err, &llmErr))
			assert.Equal(t, KindInvalidRequest, llmErr.Kind)
		})
	}
}

func TestValidateStructuredOutputSchemaRejectsAdditionalPropertiesTrue(t *testing.T) {
	schema := map[string]interface{}{"type": "object", "additionalProperties": true}
	assert.Error(t, ValidateStructuredOutputSchema(schema))
}

func TestValidateStructuredOutputSchemaRejectsMinItemsGreaterThanOne(t *testing.T) {
	schema := map[string]interface{}{"type": "array", "minItems": 2}
	assert.Error(t, ValidateStructuredOutputSchema(schema))
}

func TestValidateStructuredOutputSchemaAllowsMinItemsOne(t *testing.T) {
	schema := map[string]interface{}{"type": "array", "minItems": 1}
	assert.NoError(t, ValidateStructuredOutputSchema(schema))
}

func TestValidateStructuredOutputSchemaRejectsNonPrimitiveEnum(t *testing.T) {
	schema := map[string]interface{}{
		"enum": []interface{}{map[string]interface{}{"nested": true}},
	}
	assert.Error(t, ValidateStructuredOutputSchema(schema))
}

func TestValidateStructuredOutputSchemaRecursesIntoNestedProperties(t *testing.T) {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"items": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type":       "number",
					"multipleOf": 2,
				},
			},
		},
	}
	assert.Error(t, ValidateStructuredOutputSchema(schema))
}
