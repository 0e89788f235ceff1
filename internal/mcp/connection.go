package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/codefionn/llmbridge/internal/actor"
	"github.com/codefionn/llmbridge/internal/consts"
	"github.com/codefionn/llmbridge/internal/llm"
	"github.com/codefionn/llmbridge/internal/logger"
)

const clientName = "vtcode"
const clientVersion = "1.0.0"

// supportedProtocolVersions is the closed set a negotiated protocol version
// must belong to (spec §4.6/§6).
var supportedProtocolVersions = map[string]bool{
	"2024-11-05": true,
	"2025-03-26": true,
	"2025-06-18": true,
}

var stdioEnvAllowlistUnix = []string{
	"HOME", "LOGNAME", "PATH", "SHELL", "USER",
	"__CF_USER_TEXT_ENCODING", "LANG", "LC_ALL", "TERM", "TMPDIR", "TZ",
}

var stdioEnvAllowlistWindows = []string{
	"PATH", "PATHEXT", "USERNAME", "USERDOMAIN", "USERPROFILE", "TEMP", "TMP",
}

// Connection wraps one mark3labs/mcp-go client. Its caches are guarded by
// their own mutexes and a permit channel bounds concurrent requests, so no
// global mutex is involved (spec §5: "fine-grained guarded state").
type Connection struct {
	cfg    ProviderConfig
	client *mcpgo.Client

	state       ConnectionState
	stateMu     sync.RWMutex
	permits     chan struct{}
	elicit      ElicitationHandler
	connectErr  error
	connectedAt time.Time

	cacheMu       sync.RWMutex
	toolsCache    []ToolInfo
	resourceCache []ResourceInfo
	promptCache   []PromptInfo
	toolsFetched  bool
	resFetched    bool
	promptFetched bool

	subs   map[string]bool
	subsMu sync.Mutex
}

// NewConnection constructs a Connecting-state connection; Handshake performs
// the actual initialize call and transitions it to Ready.
func NewConnection(cfg ProviderConfig, elicit ElicitationHandler) (*Connection, error) {
	maxConcurrent := cfg.MaxConcurrentRequests
	if maxConcurrent < 1 {
		maxConcurrent = consts.MCPDefaultMaxConcurrentRequests
	}

	c := &Connection{
		cfg:     cfg,
		state:   StateConnecting,
		permits: make(chan struct{}, maxConcurrent),
		elicit:  elicit,
		subs:    make(map[string]bool),
	}

	var err error
	switch cfg.Transport {
	case TransportStdio:
		c.client, err = newStdioClient(cfg)
	case TransportHTTP:
		c.client, err = newHTTPClient(cfg)
	default:
		return nil, fmt.Errorf("unknown transport kind")
	}
	if err != nil {
		return nil, llm.NewNetworkError("MCP:"+cfg.Name, "failed to construct transport", err)
	}

	c.client.OnNotification(c.handleNotification)
	c.client.OnElicitation(c.handleElicitation)
	return c, nil
}

func newStdioClient(cfg ProviderConfig) (*mcpgo.Client, error) {
	allowlist := stdioEnvAllowlistUnix
	if runtime.GOOS == "windows" {
		allowlist = stdioEnvAllowlistWindows
	}

	env := make([]string, 0, len(allowlist)+len(cfg.Env))
	for _, key := range allowlist {
		if v, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+v)
		}
	}
	for k, v := range cfg.Env {
		env = append(env, k+"="+v)
	}

	return mcpgo.NewStdioMCPClient(cfg.Stdio.Command, env, cfg.Stdio.Args...)
}

func newHTTPClient(cfg ProviderConfig) (*mcpgo.Client, error) {
	var opts []transport.StreamableHTTPCOption

	if cfg.HTTP.APIKeyEnv != "" {
		key, ok := os.LookupEnv(cfg.HTTP.APIKeyEnv)
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("env var %s for MCP provider %s is not set", cfg.HTTP.APIKeyEnv, cfg.Name)
		}
		opts = append(opts, transport.WithHTTPHeaders(map[string]string{
			"Authorization": "Bearer " + key,
		}))
	}
	if len(cfg.HTTP.Headers) > 0 {
		opts = append(opts, transport.WithHTTPHeaders(cfg.HTTP.Headers))
	}

	return mcpgo.NewStreamableHttpClient(cfg.HTTP.Endpoint, opts...)
}

// Handshake sends initialize and transitions Connecting -> Ready.
func (c *Connection) Handshake(ctx context.Context, startupTimeout time.Duration) error {
	if startupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, startupTimeout)
		defer cancel()
	}

	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: clientName, Version: clientVersion}
	req.Params.Capabilities = mcp.ClientCapabilities{
		Roots: &struct {
			ListChanged bool `json:"listChanged,omitempty"`
		}{ListChanged: true},
	}

	result, err := c.client.Initialize(ctx, req)
	if err != nil {
		c.setError(err)
		return llm.NewProtocolError("MCP:"+c.cfg.Name, fmt.Sprintf("initialize failed: %v", err))
	}

	if !supportedProtocolVersions[result.ProtocolVersion] {
		c.setError(fmt.Errorf("unsupported protocol version %s", result.ProtocolVersion))
		return llm.NewProtocolError("MCP:"+c.cfg.Name, fmt.Sprintf("negotiated protocol version %q is not supported", result.ProtocolVersion))
	}

	c.stateMu.Lock()
	c.state = StateReady
	c.connectedAt = time.Now()
	c.stateMu.Unlock()
	return nil
}

func (c *Connection) setError(err error) {
	c.stateMu.Lock()
	c.connectErr = err
	c.stateMu.Unlock()
}

func (c *Connection) State() ConnectionState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// Shutdown moves the connection to Stopped, drops its tracked resource
// subscriptions and closes the underlying client.
func (c *Connection) Shutdown(ctx context.Context) error {
	c.stateMu.Lock()
	c.state = StateStopped
	c.stateMu.Unlock()
	c.subsMu.Lock()
	c.subs = make(map[string]bool)
	c.subsMu.Unlock()
	return c.client.Close()
}

// acquire/release implement the per-connection concurrency ceiling (§4.6).
func (c *Connection) acquire(ctx context.Context) error {
	select {
	case c.permits <- struct{}{}:
		return nil
	case <-ctx.Done():
		return llm.NewNetworkError("MCP:"+c.cfg.Name, "timed out acquiring request permit", ctx.Err())
	}
}

func (c *Connection) release() { <-c.permits }

// ListTools refreshes (if not cached) and returns the tool listing.
func (c *Connection) ListTools(ctx context.Context, forceRefresh bool) ([]ToolInfo, error) {
	c.cacheMu.RLock()
	if c.toolsFetched && !forceRefresh {
		defer c.cacheMu.RUnlock()
		return c.toolsCache, nil
	}
	c.cacheMu.RUnlock()

	result, err := c.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, llm.NewProtocolError("MCP:"+c.cfg.Name, fmt.Sprintf("tools/list failed: %v", err))
	}

	infos := make([]ToolInfo, 0, len(result.Tools))
	for _, t := range result.Tools {
		schema, _ := schemaToMap(t.InputSchema)
		infos = append(infos, ToolInfo{
			Provider:    c.cfg.Name,
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
		})
	}

	c.cacheMu.Lock()
	c.toolsCache = infos
	c.toolsFetched = true
	c.cacheMu.Unlock()
	return infos, nil
}

func schemaToMap(schema interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// HasTool probes the cached listing (routing probe used by the orchestrator).
func (c *Connection) HasTool(ctx context.Context, name string) bool {
	tools, err := c.ListTools(ctx, false)
	if err != nil {
		return false
	}
	for _, t := range tools {
		if t.Name == name {
			return true
		}
	}
	return false
}

// ListResources refreshes (if not cached) and returns the resource listing.
func (c *Connection) ListResources(ctx context.Context, forceRefresh bool) ([]ResourceInfo, error) {
	c.cacheMu.RLock()
	if c.resFetched && !forceRefresh {
		defer c.cacheMu.RUnlock()
		return c.resourceCache, nil
	}
	c.cacheMu.RUnlock()

	result, err := c.client.ListResources(ctx, mcp.ListResourcesRequest{})
	if err != nil {
		return nil, llm.NewProtocolError("MCP:"+c.cfg.Name, fmt.Sprintf("resources/list failed: %v", err))
	}

	infos := make([]ResourceInfo, 0, len(result.Resources))
	for _, r := range result.Resources {
		infos = append(infos, ResourceInfo{
			Provider: c.cfg.Name,
			URI:      r.URI,
			Name:     r.Name,
			MimeType: r.MIMEType,
		})
	}

	c.cacheMu.Lock()
	c.resourceCache = infos
	c.resFetched = true
	c.cacheMu.Unlock()
	return infos, nil
}

// HasResource probes the cached listing (routing probe used by the orchestrator).
func (c *Connection) HasResource(ctx context.Context, uri string) bool {
	resources, err := c.ListResources(ctx, false)
	if err != nil {
		return false
	}
	for _, r := range resources {
		if r.URI == uri {
			return true
		}
	}
	return false
}

// ListPrompts refreshes (if not cached) and returns the prompt listing.
func (c *Connection) ListPrompts(ctx context.Context, forceRefresh bool) ([]PromptInfo, error) {
	c.cacheMu.RLock()
	if c.promptFetched && !forceRefresh {
		defer c.cacheMu.RUnlock()
		return c.promptCache, nil
	}
	c.cacheMu.RUnlock()

	result, err := c.client.ListPrompts(ctx, mcp.ListPromptsRequest{})
	if err != nil {
		return nil, llm.NewProtocolError("MCP:"+c.cfg.Name, fmt.Sprintf("prompts/list failed: %v", err))
	}

	infos := make([]PromptInfo, 0, len(result.Prompts))
	for _, p := range result.Prompts {
		infos = append(infos, PromptInfo{
			Provider:    c.cfg.Name,
			Name:        p.Name,
			Description: p.Description,
		})
	}

	c.cacheMu.Lock()
	c.promptCache = infos
	c.promptFetched = true
	c.cacheMu.Unlock()
	return infos, nil
}

// HasPrompt probes the cached listing (routing probe used by the orchestrator).
func (c *Connection) HasPrompt(ctx context.Context, name string) bool {
	prompts, err := c.ListPrompts(ctx, false)
	if err != nil {
		return false
	}
	for _, p := range prompts {
		if p.Name == name {
			return true
		}
	}
	return false
}

// CallTool enriches arguments (timezone injection), acquires a permit, and
// invokes tools/call, normalizing the result (§4.6).
func (c *Connection) CallTool(ctx context.Context, name string, args map[string]interface{}) (*ToolResult, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.release()

	args = EnrichTimezoneArgument(c.schemaFor(name), args)

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := c.client.CallTool(ctx, req)
	if err != nil {
		return nil, llm.NewProtocolError("MCP:"+c.cfg.Name, fmt.Sprintf("tools/call %s failed: %v", name, err))
	}

	return normalizeCallResult(c.cfg.Name, name, result)
}

func (c *Connection) schemaFor(name string) map[string]interface{} {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()
	for _, t := range c.toolsCache {
		if t.Name == name {
			return t.InputSchema
		}
	}
	return nil
}

func normalizeCallResult(provider, tool string, result *mcp.CallToolResult) (*ToolResult, error) {
	var textParts []string
	for _, content := range result.Content {
		if tc, ok := content.(mcp.TextContent); ok {
			textParts = append(textParts, tc.Text)
		}
	}
	text := strings.Join(textParts, "\n")

	if result.IsError {
		reason := text
		if reason == "" {
			reason = "tool reported an error"
		}
		return nil, llm.NewProviderError("MCP:"+provider, reason, "")
	}

	return &ToolResult{Provider: provider, Tool: tool, Content: text}, nil
}

// ReadResource acquires a permit and invokes resources/read.
func (c *Connection) ReadResource(ctx context.Context, uri string) (string, error) {
	if err := c.acquire(ctx); err != nil {
		return "", err
	}
	defer c.release()

	req := mcp.ReadResourceRequest{}
	req.Params.URI = uri
	result, err := c.client.ReadResource(ctx, req)
	if err != nil {
		return "", llm.NewProtocolError("MCP:"+c.cfg.Name, fmt.Sprintf("resources/read %s failed: %v", uri, err))
	}

	var parts []string
	for _, content := range result.Contents {
		if tc, ok := content.(mcp.TextResourceContents); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n"), nil
}

// GetPrompt acquires a permit and invokes prompts/get.
func (c *Connection) GetPrompt(ctx context.Context, name string, args map[string]string) (string, error) {
	if err := c.acquire(ctx); err != nil {
		return "", err
	}
	defer c.release()

	req := mcp.GetPromptRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	result, err := c.client.GetPrompt(ctx, req)
	if err != nil {
		return "", llm.NewProtocolError("MCP:"+c.cfg.Name, fmt.Sprintf("prompts/get %s failed: %v", name, err))
	}

	var parts []string
	for _, msg := range result.Messages {
		if tc, ok := msg.Content.(mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n"), nil
}

// handleNotification dispatches logging/message, cancelled, progress, and
// list_changed notifications (§4.6). An elicitation/create request is
// handled separately via the client's request handler, not here.
func (c *Connection) handleNotification(notification mcp.JSONRPCNotification) {
	switch notification.Method {
	case "notifications/message":
		logger.Info("[MCP:%s] server log notification", c.cfg.Name)
	case "notifications/cancelled":
		logger.Warn("[MCP:%s] request cancelled by server", c.cfg.Name)
	case "notifications/progress":
		logger.Debug("[MCP:%s] progress notification", c.cfg.Name)
	case "notifications/resources/updated":
		c.invalidateResources()
	case "notifications/resources/list_changed":
		c.invalidateResources()
	case "notifications/tools/list_changed":
		c.invalidateTools()
	case "notifications/prompts/list_changed":
		c.invalidatePrompts()
	}
}

// handleElicitation dispatches an incoming elicitation/create request to the
// application-provided handler, defaulting to Decline when none is wired or
// the handler itself errors (§4.6).
func (c *Connection) handleElicitation(ctx context.Context, req mcp.ElicitationRequest) (*mcp.ElicitationResult, error) {
	if c.elicit == nil {
		return &mcp.ElicitationResult{Action: mcp.ElicitationResponseActionDecline}, nil
	}

	resp, err := c.elicit(ElicitationRequest{
		Message: req.Params.Message,
		Schema:  req.Params.RequestedSchema,
	})
	if err != nil {
		logger.Warn("[MCP:%s] elicitation handler failed: %v", c.cfg.Name, err)
		return &mcp.ElicitationResult{Action: mcp.ElicitationResponseActionDecline}, nil
	}

	return &mcp.ElicitationResult{
		Action:  mapElicitationAction(resp.Action),
		Content: resp.Content,
	}, nil
}

func mapElicitationAction(action ElicitationAction) mcp.ElicitationResponseAction {
	switch action {
	case ElicitationAccept:
		return mcp.ElicitationResponseActionAccept
	case ElicitationCancel:
		return mcp.ElicitationResponseActionCancel
	default:
		return mcp.ElicitationResponseActionDecline
	}
}

func (c *Connection) invalidateTools() {
	c.cacheMu.Lock()
	c.toolsFetched = false
	c.toolsCache = nil
	c.cacheMu.Unlock()
}

func (c *Connection) invalidateResources() {
	c.cacheMu.Lock()
	c.resFetched = false
	c.resourceCache = nil
	c.cacheMu.Unlock()
}

func (c *Connection) invalidatePrompts() {
	c.cacheMu.Lock()
	c.promptFetched = false
	c.promptCache = nil
	c.cacheMu.Unlock()
}

// Subscribe/Unsubscribe implement the optional resource-subscription
// operations supplemented from original_source/ (SPEC_FULL §2C) and track
// the subscribed URIs. They send the request whatever capabilities the
// server advertised; a server without subscription support answers with an
// error, returned here as a protocol error. The orchestrator does not call them.
func (c *Connection) Subscribe(ctx context.Context, uri string) error {
	req := mcp.SubscribeRequest{}
	req.Params.URI = uri
	if err := c.client.Subscribe(ctx, req); err != nil {
		return llm.NewProtocolError("MCP:"+c.cfg.Name, fmt.Sprintf("resources/subscribe %s failed: %v", uri, err))
	}
	c.subsMu.Lock()
	c.subs[uri] = true
	c.subsMu.Unlock()
	return nil
}

func (c *Connection) Unsubscribe(ctx context.Context, uri string) error {
	req := mcp.UnsubscribeRequest{}
	req.Params.URI = uri
	if err := c.client.Unsubscribe(ctx, req); err != nil {
		return llm.NewProtocolError("MCP:"+c.cfg.Name, fmt.Sprintf("resources/unsubscribe %s failed: %v", uri, err))
	}
	c.subsMu.Lock()
	delete(c.subs, uri)
	c.subsMu.Unlock()
	return nil
}

// actorWrapper adapts Connection onto the teacher's generic actor.Actor
// interface. The orchestrator holds *Connection values directly and does
// not route calls through this wrapper.
type actorWrapper struct {
	conn *Connection
}

func (w *actorWrapper) ID() string { return w.conn.cfg.Name }

func (w *actorWrapper) Start(ctx context.Context) error { return nil }

func (w *actorWrapper) Stop(ctx context.Context) error { return w.conn.Shutdown(ctx) }

func (w *actorWrapper) Receive(ctx context.Context, msg actor.Message) error {
	// Every message is ignored: Connection methods are already safe for
	// concurrent use via their own permit channel and cache mutex.
	return nil
}

// NewConnectionActor wraps conn as an actor.ActorRef under the given
// mailbox size.
func NewConnectionActor(conn *Connection, mailboxSize int) *actor.ActorRef {
	return actor.NewActorRef(conn.cfg.Name, &actorWrapper{conn: conn}, mailboxSize, actor.WithSequentialProcessing())
}
