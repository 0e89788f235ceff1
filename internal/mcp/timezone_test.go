package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrichTimezoneArgumentInjectsWhenRequired(t *testing.T) {
	t.Setenv("VT_LOCAL_TIMEZONE", "Europe/Berlin")

	schema := map[string]interface{}{
		"required": []interface{}{"timezone"},
	}
	args := EnrichTimezoneArgument(schema, nil)

	require.Contains(t, args, "timezone")
	assert.Equal(t, "Europe/Berlin", args["timezone"])
}

func TestEnrichTimezoneArgumentPreservesCallerValue(t *testing.T) {
	t.Setenv("VT_LOCAL_TIMEZONE", "Europe/Berlin")

	schema := map[string]interface{}{"required": []interface{}{"timezone"}}
	args := map[string]interface{}{"timezone": "America/New_York"}

	result := EnrichTimezoneArgument(schema, args)
	assert.Equal(t, "America/New_York", result["timezone"])
}

func TestEnrichTimezoneArgumentSkipsWhenNotRequired(t *testing.T) {
	schema := map[string]interface{}{"required": []interface{}{"path"}}
	args := EnrichTimezoneArgument(schema, map[string]interface{}{})
	assert.NotContains(t, args, "timezone")
}

func TestEnrichTimezoneArgumentPrecedenceEnvOverTZ(t *testing.T) {
	t.Setenv("VT_LOCAL_TIMEZONE", "Asia/Tokyo")
	t.Setenv("TZ", "UTC")

	schema := map[string]interface{}{"required": []interface{}{"timezone"}}
	args := EnrichTimezoneArgument(schema, nil)
	assert.Equal(t, "Asia/Tokyo", args["timezone"])
}

func TestEnrichTimezoneArgumentFallsBackToTZ(t *testing.T) {
	t.Setenv("VT_LOCAL_TIMEZONE", "")
	t.Setenv("TZ", "Pacific/Auckland")

	schema := map[string]interface{}{"required": []interface{}{"timezone"}}
	args := EnrichTimezoneArgument(schema, nil)
	assert.Equal(t, "Pacific/Auckland", args["timezone"])
}
