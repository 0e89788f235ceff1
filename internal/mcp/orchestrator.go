package mcp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/codefionn/llmbridge/internal/consts"
	"github.com/codefionn/llmbridge/internal/llm"
	"github.com/codefionn/llmbridge/internal/logger"
)

// Orchestrator is the MCP client orchestrator (C7): multiplexes provider
// connections, caches listings, enforces allow-lists, and routes tool
// invocations.
type Orchestrator struct {
	connections []*Connection
	byName      map[string]*Connection

	allowList     *AllowList
	allowListMu   sync.RWMutex
	toolMatcher   *allowListMatcher
	resMatcher    *allowListMatcher
	promptMatcher *allowListMatcher

	indexMu       sync.RWMutex
	toolIndex     map[string]*Connection
	resourceIndex map[string]*Connection
	promptIndex   map[string]*Connection

	startupTimeout time.Duration
	toolTimeout    time.Duration
	requestTimeout time.Duration
}

// NewOrchestratorWithDefaults constructs an orchestrator using the standard
// startup/tool/request timeout defaults.
func NewOrchestratorWithDefaults() *Orchestrator {
	return NewOrchestrator(consts.MCPDefaultStartupTimeout, consts.MCPDefaultToolTimeout, consts.MCPDefaultRequestTimeout)
}

// NewOrchestrator constructs an orchestrator with the three independent
// timeout knobs from §4.7 (0 => unbounded).
func NewOrchestrator(startupTimeout, toolTimeout, requestTimeout time.Duration) *Orchestrator {
	return &Orchestrator{
		byName:        make(map[string]*Connection),
		toolIndex:     make(map[string]*Connection),
		resourceIndex: make(map[string]*Connection),
		promptIndex:   make(map[string]*Connection),

		startupTimeout: startupTimeout,
		toolTimeout:    toolTimeout,
		requestTimeout: requestTimeout,
	}
}

// Initialize constructs a connection per enabled provider config and
// handshakes it; a handshake failure is logged and that provider is
// skipped, it does not abort the others (§4.7).
func (o *Orchestrator) Initialize(ctx context.Context, configs []ProviderConfig, elicit ElicitationHandler) {
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		conn, err := NewConnection(cfg, elicit)
		if err != nil {
			logger.Error("[MCP:%s] failed to construct connection: %v", cfg.Name, err)
			continue
		}

		if err := conn.Handshake(ctx, o.startupTimeout); err != nil {
			logger.Error("[MCP:%s] handshake failed: %v", cfg.Name, err)
			continue
		}

		o.connections = append(o.connections, conn)
		o.byName[cfg.Name] = conn

		if _, err := conn.ListTools(ctx, true); err != nil {
			logger.Warn("[MCP:%s] initial tool refresh failed: %v", cfg.Name, err)
		} else {
			o.rebuildToolIndexFor(conn)
		}

		if _, err := conn.ListResources(ctx, true); err != nil {
			logger.Warn("[MCP:%s] initial resource refresh failed: %v", cfg.Name, err)
		} else {
			o.rebuildResourceIndexFor(conn)
		}

		if _, err := conn.ListPrompts(ctx, true); err != nil {
			logger.Warn("[MCP:%s] initial prompt refresh failed: %v", cfg.Name, err)
		} else {
			o.rebuildPromptIndexFor(conn)
		}
	}
}

func (o *Orchestrator) rebuildToolIndexFor(conn *Connection) {
	tools, err := conn.ListTools(context.Background(), false)
	if err != nil {
		return
	}
	o.indexMu.Lock()
	for _, t := range tools {
		if _, exists := o.toolIndex[t.Name]; !exists {
			o.toolIndex[t.Name] = conn
		}
	}
	o.indexMu.Unlock()
}

// UpdateAllowList replaces the allow-list and clears all routing indexes
// and per-connection caches (§4.7).
func (o *Orchestrator) UpdateAllowList(list *AllowList) {
	o.allowListMu.Lock()
	o.allowList = list
	o.toolMatcher = buildAllowListMatcher(list.Tools)
	o.resMatcher = buildAllowListMatcher(list.Resources)
	o.promptMatcher = buildAllowListMatcher(list.Prompts)
	o.allowListMu.Unlock()

	o.indexMu.Lock()
	o.toolIndex = make(map[string]*Connection)
	o.resourceIndex = make(map[string]*Connection)
	o.promptIndex = make(map[string]*Connection)
	o.indexMu.Unlock()

	for _, conn := range o.connections {
		conn.invalidateTools()
		conn.invalidateResources()
		conn.invalidatePrompts()
	}
}

// ListTools aggregates cached listings across all connections.
func (o *Orchestrator) ListTools(ctx context.Context) ([]ToolInfo, error) {
	return o.RefreshTools(ctx, false)
}

func (o *Orchestrator) RefreshTools(ctx context.Context, force bool) ([]ToolInfo, error) {
	var all []ToolInfo
	for _, conn := range o.connections {
		tools, err := conn.ListTools(ctx, force)
		if err != nil {
			logger.Warn("[MCP:%s] list_tools failed: %v", conn.cfg.Name, err)
			continue
		}
		all = append(all, tools...)
		o.rebuildToolIndexFor(conn)
	}
	return all, nil
}

// ListResources aggregates cached resource listings across all connections.
func (o *Orchestrator) ListResources(ctx context.Context) ([]ResourceInfo, error) {
	return o.RefreshResources(ctx, false)
}

func (o *Orchestrator) RefreshResources(ctx context.Context, force bool) ([]ResourceInfo, error) {
	var all []ResourceInfo
	for _, conn := range o.connections {
		resources, err := conn.ListResources(ctx, force)
		if err != nil {
			logger.Warn("[MCP:%s] list_resources failed: %v", conn.cfg.Name, err)
			continue
		}
		all = append(all, resources...)
		o.rebuildResourceIndexFor(conn)
	}
	return all, nil
}

func (o *Orchestrator) rebuildResourceIndexFor(conn *Connection) {
	resources, err := conn.ListResources(context.Background(), false)
	if err != nil {
		return
	}
	o.indexMu.Lock()
	for _, r := range resources {
		if _, exists := o.resourceIndex[r.URI]; !exists {
			o.resourceIndex[r.URI] = conn
		}
	}
	o.indexMu.Unlock()
}

// ListPrompts aggregates cached prompt listings across all connections.
func (o *Orchestrator) ListPrompts(ctx context.Context) ([]PromptInfo, error) {
	return o.RefreshPrompts(ctx, false)
}

func (o *Orchestrator) RefreshPrompts(ctx context.Context, force bool) ([]PromptInfo, error) {
	var all []PromptInfo
	for _, conn := range o.connections {
		prompts, err := conn.ListPrompts(ctx, force)
		if err != nil {
			logger.Warn("[MCP:%s] list_prompts failed: %v", conn.cfg.Name, err)
			continue
		}
		all = append(all, prompts...)
		o.rebuildPromptIndexFor(conn)
	}
	return all, nil
}

func (o *Orchestrator) rebuildPromptIndexFor(conn *Connection) {
	prompts, err := conn.ListPrompts(context.Background(), false)
	if err != nil {
		return
	}
	o.indexMu.Lock()
	for _, p := range prompts {
		if _, exists := o.promptIndex[p.Name]; !exists {
			o.promptIndex[p.Name] = conn
		}
	}
	o.indexMu.Unlock()
}

// resolveTool finds the owning connection: index first, then registration
// order probing has_tool, caching the first hit (§4.7).
func (o *Orchestrator) resolveTool(ctx context.Context, name string) *Connection {
	o.indexMu.RLock()
	conn, ok := o.toolIndex[name]
	o.indexMu.RUnlock()
	if ok {
		return conn
	}

	for _, candidate := range o.connections {
		if candidate.HasTool(ctx, name) {
			o.indexMu.Lock()
			o.toolIndex[name] = candidate
			o.indexMu.Unlock()
			return candidate
		}
	}
	return nil
}

// resolveResource finds the owning connection: index first, then
// registration order probing has_resource, caching the first hit (§4.7).
func (o *Orchestrator) resolveResource(ctx context.Context, uri string) *Connection {
	o.indexMu.RLock()
	conn, ok := o.resourceIndex[uri]
	o.indexMu.RUnlock()
	if ok {
		return conn
	}

	for _, candidate := range o.connections {
		if candidate.HasResource(ctx, uri) {
			o.indexMu.Lock()
			o.resourceIndex[uri] = candidate
			o.indexMu.Unlock()
			return candidate
		}
	}
	return nil
}

// resolvePrompt finds the owning connection: index first, then registration
// order probing has_prompt, caching the first hit (§4.7).
func (o *Orchestrator) resolvePrompt(ctx context.Context, name string) *Connection {
	o.indexMu.RLock()
	conn, ok := o.promptIndex[name]
	o.indexMu.RUnlock()
	if ok {
		return conn
	}

	for _, candidate := range o.connections {
		if candidate.HasPrompt(ctx, name) {
			o.indexMu.Lock()
			o.promptIndex[name] = candidate
			o.indexMu.Unlock()
			return candidate
		}
	}
	return nil
}

// ExecuteTool is the allow-list-gated tool dispatch (testable property 9:
// denied/unregistered names fail without ever issuing a network call).
func (o *Orchestrator) ExecuteTool(ctx context.Context, name string, args map[string]interface{}) (*ToolResult, error) {
	conn := o.resolveTool(ctx, name)
	if conn == nil {
		return nil, llm.NewToolNotFound("MCP", name)
	}

	o.allowListMu.RLock()
	allowed := o.toolMatcher != nil && o.toolMatcher.Allows(conn.cfg.Name, name)
	o.allowListMu.RUnlock()
	if !allowed {
		return nil, llm.NewAllowListDenied("MCP:"+conn.cfg.Name, name)
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if o.toolTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, o.toolTimeout)
		defer cancel()
	}

	return conn.CallTool(callCtx, name, args)
}

// ReadResource is the allow-list-gated resource read.
func (o *Orchestrator) ReadResource(ctx context.Context, uri string) (string, error) {
	conn := o.resolveResource(ctx, uri)
	if conn == nil {
		return "", llm.NewToolNotFound("MCP", uri)
	}

	o.allowListMu.RLock()
	allowed := o.resMatcher != nil && o.resMatcher.Allows(conn.cfg.Name, uri)
	o.allowListMu.RUnlock()
	if !allowed {
		return "", llm.NewAllowListDenied("MCP:"+conn.cfg.Name, uri)
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if o.requestTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, o.requestTimeout)
		defer cancel()
	}
	return conn.ReadResource(callCtx, uri)
}

// GetPrompt is the allow-list-gated prompt retrieval.
func (o *Orchestrator) GetPrompt(ctx context.Context, name string, args map[string]string) (string, error) {
	conn := o.resolvePrompt(ctx, name)
	if conn == nil {
		return "", llm.NewToolNotFound("MCP", name)
	}

	o.allowListMu.RLock()
	allowed := o.promptMatcher != nil && o.promptMatcher.Allows(conn.cfg.Name, name)
	o.allowListMu.RUnlock()
	if !allowed {
		return "", llm.NewAllowListDenied("MCP:"+conn.cfg.Name, name)
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if o.requestTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, o.requestTimeout)
		defer cancel()
	}
	return conn.GetPrompt(callCtx, name, args)
}

// GetStatus reports a summary per connection.
func (o *Orchestrator) GetStatus() []Status {
	out := make([]Status, 0, len(o.connections))
	for _, conn := range o.connections {
		out = append(out, Status{
			Provider:    conn.cfg.Name,
			State:       conn.State(),
			ToolCount:   len(conn.toolsCache),
			ConnectedAt: conn.connectedAt,
		})
	}
	return out
}

// Shutdown clones the provider map, clears it, then cancels each connection
// (§4.7).
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	conns := o.connections
	o.connections = nil
	o.byName = make(map[string]*Connection)
	o.indexMu.Lock()
	o.toolIndex = make(map[string]*Connection)
	o.resourceIndex = make(map[string]*Connection)
	o.promptIndex = make(map[string]*Connection)
	o.indexMu.Unlock()

	var firstErr error
	for _, conn := range conns {
		if err := conn.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("shutdown %s: %w", conn.cfg.Name, err)
		}
	}
	return firstErr
}
