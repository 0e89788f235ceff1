package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindSSEBoundaryLF(t *testing.T) {
	buf := "event: token\ndata: {\"x\":1}\n\nnext"
	start, delimLen := FindSSEBoundary(buf)
	require.GreaterOrEqual(t, start, 0)
	assert.Equal(t, 2, delimLen)
	assert.Equal(t, "event: token\ndata: {\"x\":1}", buf[:start])
	assert.Equal(t, "next", buf[start+delimLen:])
}

func TestFindSSEBoundaryCRLF(t *testing.T) {
	buf := "data: a\r\n\r\nrest"
	start, delimLen := FindSSEBoundary(buf)
	require.GreaterOrEqual(t, start, 0)
	assert.Equal(t, 4, delimLen)
	assert.Equal(t, "data: a", buf[:start])
	assert.Equal(t, "rest", buf[start+delimLen:])
}

func TestFindSSEBoundaryNoneFound(t *testing.T) {
	start, delimLen := FindSSEBoundary("data: incomplete")
	assert.Equal(t, -1, start)
	assert.Equal(t, 0, delimLen)
}

func TestExtractDataPayloadJoinsMultipleDataLines(t *testing.T) {
	event := "event: token\ndata: line one\ndata: line two\n"
	assert.Equal(t, "line one\nline two", ExtractDataPayload(event))
}

func TestExtractDataPayloadHandlesDoneSentinel(t *testing.T) {
	event := "data: [DONE]"
	assert.Equal(t, SSEDoneSentinel, ExtractDataPayload(event))
}

func TestExtractDataPayloadTrimsCarriageReturns(t *testing.T) {
	event := "data: payload\r\n"
	assert.Equal(t, "payload", ExtractDataPayload(event))
}
