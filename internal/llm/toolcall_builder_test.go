package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolCallBuilderAccumulatesArgumentsAcrossDeltas(t *testing.T) {
	b := NewToolCallBuilder()
	b.AddDelta(0, "call_1", "read_file", `{"path":`)
	b.AddDelta(0, "", "", `"a.go"}`)

	calls := b.Finalize()
	require.Len(t, calls, 1)
	assert.Equal(t, "call_1", calls[0].ID)
	assert.Equal(t, "read_file", calls[0].FunctionName)
	assert.Equal(t, `{"path":"a.go"}`, calls[0].Arguments)
}

func TestToolCallBuilderPreservesIndexOrder(t *testing.T) {
	b := NewToolCallBuilder()
	b.AddDelta(1, "call_b", "second", "{}")
	b.AddDelta(0, "call_a", "first", "{}")

	calls := b.Finalize()
	require.Len(t, calls, 2)
	assert.Equal(t, "first", calls[0].FunctionName)
	assert.Equal(t, "second", calls[1].FunctionName)
}

func TestToolCallBuilderDefaultsMissingIDAndArguments(t *testing.T) {
	b := NewToolCallBuilder()
	b.AddDelta(0, "", "bare_tool", "")

	calls := b.Finalize()
	require.Len(t, calls, 1)
	assert.NotEmpty(t, calls[0].ID)
	assert.Equal(t, "{}", calls[0].Arguments)
}

func TestToolCallBuilderLenTracksDistinctIndexes(t *testing.T) {
	b := NewToolCallBuilder()
	assert.Equal(t, 0, b.Len())
	b.AddDelta(0, "call_1", "a", "")
	b.AddDelta(1, "call_2", "b", "")
	b.AddDelta(0, "", "", "more")
	assert.Equal(t, 2, b.Len())
}
