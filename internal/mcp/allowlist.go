package mcp

import "github.com/cloudflare/ahocorasick"

// allowListMatcher builds an Aho-Corasick automaton over every allowed
// "provider::identifier" pair so the orchestrator's hot-path gate
// (execute_tool / read_resource / get_prompt) is a single automaton scan
// rather than a linear map-of-maps walk, matching the teacher's
// internal/provider.Manager approach to fast name matching (DESIGN.md C7).
type allowListMatcher struct {
	matcher  *ahocorasick.Matcher
	patterns []string
	wildcard map[string]bool // provider names with an unrestricted wildcard entry
}

func buildAllowListMatcher(set map[string]map[string]bool) *allowListMatcher {
	m := &allowListMatcher{wildcard: make(map[string]bool)}
	for provider, allowed := range set {
		if allowed == nil {
			m.wildcard[provider] = true
			continue
		}
		for identifier := range allowed {
			m.patterns = append(m.patterns, allowListKey(provider, identifier))
		}
	}
	if len(m.patterns) > 0 {
		m.matcher = ahocorasick.NewStringMatcher(m.patterns)
	}
	return m
}

func allowListKey(provider, identifier string) string {
	return provider + "::" + identifier
}

// Allows reports whether provider/identifier passes the gate. Matching is
// exact (the automaton is built from full keys, not fuzzy substrings) —
// Aho-Corasick here buys a single-pass multi-pattern scan instead of one
// map lookup per call, which matters once allow-lists grow across many MCP
// providers sharing tool name prefixes.
func (m *allowListMatcher) Allows(provider, identifier string) bool {
	if m.wildcard[provider] {
		return true
	}
	if m.matcher == nil {
		return false
	}
	key := allowListKey(provider, identifier)
	for _, idx := range m.matcher.Match([]byte(key)) {
		if m.patterns[idx] == key {
			return true
		}
	}
	return false
}
