package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReasoningBufferPushAppendsNewContent(t *testing.T) {
	var b ReasoningBuffer

	delta, ok := b.Push("Let me think")
	require.True(t, ok)
	assert.Equal(t, "Let me think", delta)

	delta, ok = b.Push("Let me think about this")
	require.True(t, ok)
	assert.Equal(t, " about this", delta)
}

func TestReasoningBufferPushIgnoresResend(t *testing.T) {
	var b ReasoningBuffer

	_, ok := b.Push("full reasoning text")
	require.True(t, ok)

	// A shorter resend of a prefix we've already seen should be dropped.
	delta, ok := b.Push("full reasoning")
	assert.False(t, ok)
	assert.Empty(t, delta)
}

func TestReasoningBufferPushTreatsDivergentChunkAsNew(t *testing.T) {
	var b ReasoningBuffer

	_, ok := b.Push("first branch of thought")
	require.True(t, ok)

	delta, ok := b.Push("unrelated second branch")
	require.True(t, ok)
	assert.Equal(t, "unrelated second branch", delta)
}

func TestReasoningBufferFinalizeTrimsAndRejectsEmpty(t *testing.T) {
	var b ReasoningBuffer
	b.Push("  spaced out reasoning  ")
	text, ok := b.Finalize()
	require.True(t, ok)
	assert.Equal(t, "spaced out reasoning", text)

	var empty ReasoningBuffer
	_, ok = empty.Finalize()
	assert.False(t, ok)
}

func TestSplitReasoningFromTextExtractsTaggedSegment(t *testing.T) {
	reasoning, cleaned := SplitReasoningFromText("<think>working it out</think>final answer")
	require.Len(t, reasoning, 1)
	assert.Equal(t, "working it out", reasoning[0])
	assert.Equal(t, "final answer", cleaned)
}

func TestSplitReasoningFromTextHandlesUnterminatedTag(t *testing.T) {
	reasoning, cleaned := SplitReasoningFromText("<thinking>never closes")
	require.Len(t, reasoning, 1)
	assert.Equal(t, "never closes", reasoning[0])
	assert.Empty(t, cleaned)
}

func TestSplitReasoningFromTextPassesThroughPlainText(t *testing.T) {
	reasoning, cleaned := SplitReasoningFromText("no tags here at all")
	assert.Empty(t, reasoning)
	assert.Equal(t, "no tags here at all", cleaned)
}
