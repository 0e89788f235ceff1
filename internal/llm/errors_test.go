package llm

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessageIncludesProviderTagAndRequestID(t *testing.T) {
	err := &Error{Kind: KindProvider, Provider: "Anthropic", Reason: "overloaded", RequestID: "req_123"}
	assert.Equal(t, `[Anthropic] overloaded (request_id=req_123)`, err.Error())
}

func TestErrorMessageOmitsRequestIDWhenAbsent(t *testing.T) {
	err := NewInvalidRequest("OpenAI", "missing model")
	assert.Equal(t, "[OpenAI] missing model", err.Error())
}

func TestErrorUnwrapExposesCause(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := NewNetworkError("Gemini", "request failed", cause)
	assert.Same(t, cause, errors.Unwrap(err))
}

func TestIsRateLimitDetectsWrappedRateLimitError(t *testing.T) {
	inner := NewRateLimitError("OpenRouter", "too many requests")
	wrapped := fmt.Errorf("adapter: %w", inner)
	assert.True(t, IsRateLimit(wrapped))
}

func TestIsRateLimitFalseForOtherKinds(t *testing.T) {
	assert.False(t, IsRateLimit(NewProviderError("Anthropic", "boom", "")))
	assert.False(t, IsRateLimit(errors.New("plain error")))
}

func TestAsErrorWalksWrapChain(t *testing.T) {
	inner := NewToolNotFound("MCP", "read_file")
	wrapped := fmt.Errorf("dispatch: %w", fmt.Errorf("route: %w", inner))

	var target *Error
	require.True(t, asError(wrapped, &target))
	assert.Equal(t, KindToolNotFound, target.Kind)
}
