// Package mcp implements the Model Context Protocol client: per-provider
// stdio/streamable-HTTP connections (C6) and the orchestrator that
// multiplexes them behind allow-listing and routing (C7).
package mcp

import "time"

// TransportKind distinguishes the two supported MCP transports.
type TransportKind int

const (
	TransportStdio TransportKind = iota
	TransportHTTP
)

// StdioTransportConfig configures a forked child process transport.
type StdioTransportConfig struct {
	Command    string
	Args       []string
	WorkingDir string
}

// HTTPTransportConfig configures a streamable-HTTP transport.
type HTTPTransportConfig struct {
	Endpoint        string
	ProtocolVersion string
	APIKeyEnv       string
	Headers         map[string]string
}

// ProviderConfig is one configured MCP server (C6 entity).
type ProviderConfig struct {
	Name                  string
	Transport             TransportKind
	Stdio                 StdioTransportConfig
	HTTP                  HTTPTransportConfig
	Env                   map[string]string
	Enabled               bool
	MaxConcurrentRequests int
}

// ConnectionState is the C6 connection lifecycle.
type ConnectionState int

const (
	StateConnecting ConnectionState = iota
	StateReady
	StateStopped
)

// ToolInfo, ResourceInfo, PromptInfo are normalized listings carrying the
// originating provider name.
type ToolInfo struct {
	Provider    string
	Name        string
	Description string
	InputSchema map[string]interface{}
}

type ResourceInfo struct {
	Provider string
	URI      string
	Name     string
	MimeType string
}

type PromptInfo struct {
	Provider    string
	Name        string
	Description string
}

// ToolResult is the canonical envelope returned from a tool invocation.
type ToolResult struct {
	Provider string
	Tool     string
	Meta     map[string]interface{}
	Content  string
}

// AllowList gates tools/resources/prompts per provider. A nil set for a
// provider name means "wildcard: everything from this provider is allowed".
type AllowList struct {
	Tools     map[string]map[string]bool
	Resources map[string]map[string]bool
	Prompts   map[string]map[string]bool
}

func (a *AllowList) allows(set map[string]map[string]bool, provider, identifier string) bool {
	if set == nil {
		return false
	}
	allowed, registered := set[provider]
	if !registered {
		return false
	}
	if allowed == nil {
		return true // wildcard marker
	}
	return allowed[identifier]
}

func (a *AllowList) AllowsTool(provider, name string) bool {
	return a.allows(a.Tools, provider, name)
}

func (a *AllowList) AllowsResource(provider, uri string) bool {
	return a.allows(a.Resources, provider, uri)
}

func (a *AllowList) AllowsPrompt(provider, name string) bool {
	return a.allows(a.Prompts, provider, name)
}

// ElicitationRequest/Response model the server-to-client elicitation RPC.
type ElicitationRequest struct {
	Message string
	Schema  map[string]interface{}
}

type ElicitationAction int

const (
	ElicitationAccept ElicitationAction = iota
	ElicitationDecline
	ElicitationCancel
)

type ElicitationResponse struct {
	Action  ElicitationAction
	Content map[string]interface{}
}

// ElicitationHandler is an optional application-provided callback. Absence
// or a handler error causes the connection to return {action: Decline}.
type ElicitationHandler func(req ElicitationRequest) (ElicitationResponse, error)

// Status summarizes one connection for get_status.
type Status struct {
	Provider    string
	State       ConnectionState
	ToolCount   int
	LastError   string
	ConnectedAt time.Time
}
