package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnthropicCacheSettingsTTLThreshold(t *testing.T) {
	short := AnthropicCacheSettings{ExtendedTTLSeconds: 299}
	assert.Equal(t, "5m", short.TTL())

	atThreshold := AnthropicCacheSettings{ExtendedTTLSeconds: 3600}
	assert.Equal(t, "1h", atThreshold.TTL())

	long := AnthropicCacheSettings{ExtendedTTLSeconds: 7200}
	assert.Equal(t, "1h", long.TTL())
}

func TestGeminiCacheModeDefaultsToOff(t *testing.T) {
	var settings GeminiCacheSettings
	assert.Equal(t, GeminiCacheOff, settings.Mode)
}
