package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowListMatcherExactKeyMatch(t *testing.T) {
	set := map[string]map[string]bool{
		"filesystem": {"read_file": true, "write_file": true},
	}
	m := buildAllowListMatcher(set)

	assert.True(t, m.Allows("filesystem", "read_file"))
	assert.True(t, m.Allows("filesystem", "write_file"))
	assert.False(t, m.Allows("filesystem", "delete_file"))
}

func TestAllowListMatcherDoesNotMatchSubstrings(t *testing.T) {
	set := map[string]map[string]bool{
		"filesystem": {"read": true},
	}
	m := buildAllowListMatcher(set)

	// "read_file" contains "read" as a substring but is not an exact key.
	assert.False(t, m.Allows("filesystem", "read_file"))
}

func TestAllowListMatcherWildcardProvider(t *testing.T) {
	set := map[string]map[string]bool{
		"trusted": nil,
	}
	m := buildAllowListMatcher(set)

	assert.True(t, m.Allows("trusted", "anything"))
	assert.False(t, m.Allows("untrusted", "anything"))
}

func TestAllowListMatcherEmptySetDeniesEverything(t *testing.T) {
	m := buildAllowListMatcher(nil)
	assert.False(t, m.Allows("filesystem", "read_file"))
}

func TestAllowListAllowsToolRespectsRegisteredProviders(t *testing.T) {
	list := &AllowList{
		Tools: map[string]map[string]bool{
			"filesystem": {"read_file": true},
			"shell":      nil,
		},
	}

	assert.True(t, list.AllowsTool("filesystem", "read_file"))
	assert.False(t, list.AllowsTool("filesystem", "write_file"))
	assert.True(t, list.AllowsTool("shell", "run"))
	assert.False(t, list.AllowsTool("unregistered", "anything"))
}
