package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/codefionn/llmbridge/internal/actor"
	"github.com/codefionn/llmbridge/internal/consts"
	"github.com/codefionn/llmbridge/internal/logger"
)

// dynamicModelCacheVersion is the on-disk schema version for
// dynamic_local_models.json (C8). Unlike providerModelsCacheActor's
// gob-encoded per-provider snapshots, this cache's schema is part of the
// wire contract with other tooling that may inspect the file, so it is
// plain JSON rather than gob.
const dynamicModelCacheVersion = 1

// DynamicModelEntry is one cached local-provider model listing.
type DynamicModelEntry struct {
	Provider  string   `json:"provider"`
	BaseURL   string   `json:"base_url"`
	FetchedAt int64    `json:"fetched_at"`
	Models    []string `json:"models"`
}

// dynamicModelCacheFile is the literal on-disk shape of
// dynamic_local_models.json.
type dynamicModelCacheFile struct {
	Version int                 `json:"version"`
	Entries []DynamicModelEntry `json:"entries"`
}

func dynamicModelCacheKey(providerID, baseURL string) string {
	return providerID + "::" + baseURL
}

// dynamicModelCacheActor owns the single JSON cache file. It is addressed
// like providerModelsCacheActor, through a mailbox rather than a shared
// mutex, so concurrent resolves serialize naturally.
type dynamicModelCacheActor struct {
	name string
	path string
}

func newDynamicModelCacheActor(name, path string) *dynamicModelCacheActor {
	return &dynamicModelCacheActor{name: name, path: path}
}

func (a *dynamicModelCacheActor) ID() string { return a.name }

func (a *dynamicModelCacheActor) Start(ctx context.Context) error {
	return os.MkdirAll(filepath.Dir(a.path), 0755)
}

func (a *dynamicModelCacheActor) Stop(ctx context.Context) error { return nil }

func (a *dynamicModelCacheActor) Receive(ctx context.Context, msg actor.Message) error {
	switch m := msg.(type) {
	case dynamicModelCacheGetMsg:
		entry, ok, err := a.get(m.Provider, m.BaseURL)
		m.ResponseChan <- dynamicModelCacheGetResponse{Entry: entry, Found: ok, Err: err}
		return nil
	case dynamicModelCachePutMsg:
		m.ResponseChan <- a.put(m.Entry)
		return nil
	default:
		return fmt.Errorf("unknown dynamic model cache message type: %T", msg)
	}
}

type dynamicModelCacheGetMsg struct {
	Provider     string
	BaseURL      string
	ResponseChan chan dynamicModelCacheGetResponse
}

func (dynamicModelCacheGetMsg) Type() string { return "dynamicModelCacheGetMsg" }

type dynamicModelCacheGetResponse struct {
	Entry DynamicModelEntry
	Found bool
	Err   error
}

type dynamicModelCachePutMsg struct {
	Entry        DynamicModelEntry
	ResponseChan chan error
}

func (dynamicModelCachePutMsg) Type() string { return "dynamicModelCachePutMsg" }

func (a *dynamicModelCacheActor) load() (*dynamicModelCacheFile, error) {
	data, err := os.ReadFile(a.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &dynamicModelCacheFile{Version: dynamicModelCacheVersion}, nil
		}
		return nil, err
	}

	var file dynamicModelCacheFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("corrupt dynamic model cache: %w", err)
	}
	if file.Version != dynamicModelCacheVersion {
		return &dynamicModelCacheFile{Version: dynamicModelCacheVersion}, nil
	}
	return &file, nil
}

func (a *dynamicModelCacheActor) get(providerID, baseURL string) (DynamicModelEntry, bool, error) {
	file, err := a.load()
	if err != nil {
		return DynamicModelEntry{}, false, err
	}
	key := dynamicModelCacheKey(providerID, baseURL)
	for _, e := range file.Entries {
		if dynamicModelCacheKey(e.Provider, e.BaseURL) == key {
			return e, true, nil
		}
	}
	return DynamicModelEntry{}, false, nil
}

func (a *dynamicModelCacheActor) put(entry DynamicModelEntry) error {
	file, err := a.load()
	if err != nil {
		file = &dynamicModelCacheFile{Version: dynamicModelCacheVersion}
	}

	key := dynamicModelCacheKey(entry.Provider, entry.BaseURL)
	replaced := false
	for i, e := range file.Entries {
		if dynamicModelCacheKey(e.Provider, e.BaseURL) == key {
			file.Entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		file.Entries = append(file.Entries, entry)
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}

	tmpPath := a.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmpPath, a.path)
}

func dynamicModelCachePath() (string, error) {
	dotDir, err := dotDirPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dotDir, "cache", "models", "dynamic_local_models.json"), nil
}

func dotDirPath() (string, error) {
	if cacheDir, err := os.UserCacheDir(); err == nil && cacheDir != "" {
		return cacheDir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".cache"), nil
}

// LocalModelFetcher fetches a live model listing for a local provider
// (LM Studio / Ollama) at the given base URL.
type LocalModelFetcher func(ctx context.Context, baseURL string) ([]string, error)

// DynamicModelRegistry implements C8: periodic local-model discovery backed
// by the TTL-bounded JSON cache, with stale-fallback-with-warning semantics
// (testable scenario S6).
type DynamicModelRegistry struct {
	cacheRef *actor.ActorRef
	fetchers map[string]LocalModelFetcher
	mu       sync.Mutex
}

// NewDynamicModelRegistry starts the cache actor at the standard dot-dir
// path and returns a registry ready to have fetchers registered.
func NewDynamicModelRegistry() (*DynamicModelRegistry, error) {
	path, err := dynamicModelCachePath()
	if err != nil {
		return nil, fmt.Errorf("failed to determine dynamic model cache path: %w", err)
	}

	cacheActor := newDynamicModelCacheActor("dynamic-model-cache", path)
	ref := actor.NewActorRef(cacheActor.ID(), cacheActor, 32)
	if err := ref.Start(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to start dynamic model cache actor: %w", err)
	}

	return &DynamicModelRegistry{
		cacheRef: ref,
		fetchers: make(map[string]LocalModelFetcher),
	}, nil
}

// RegisterFetcher binds a live-fetch function to a local provider id
// (e.g. "ollama", "lmstudio").
func (r *DynamicModelRegistry) RegisterFetcher(providerID string, fetcher LocalModelFetcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetchers[providerID] = fetcher
}

// Resolve returns the model list for providerID at baseURL, following §4.8:
// serve from cache within TTL, otherwise live-fetch; on live-fetch failure
// with a cache entry present, serve the stale entry with a warning and do
// not rewrite the cache file.
func (r *DynamicModelRegistry) Resolve(ctx context.Context, providerID, baseURL string) ([]string, string, error) {
	entry, found, err := r.getCached(providerID, baseURL)
	if err != nil {
		logger.Warn("provider: dynamic model cache read failed for %s: %v", providerID, err)
	}

	if found && time.Since(time.Unix(entry.FetchedAt, 0)) < consts.DynamicModelCacheTTL {
		return entry.Models, "", nil
	}

	r.mu.Lock()
	fetcher := r.fetchers[providerID]
	r.mu.Unlock()
	if fetcher == nil {
		if found {
			return entry.Models, fmt.Sprintf("no live fetcher registered for %s, serving cached models", providerID), nil
		}
		return nil, "", fmt.Errorf("no live fetcher registered for provider %s", providerID)
	}

	models, fetchErr := fetcher(ctx, baseURL)
	if fetchErr != nil {
		if found {
			warning := fmt.Sprintf("live fetch for %s at %s failed (%v), serving cached models from %s",
				providerID, baseURL, fetchErr, time.Unix(entry.FetchedAt, 0).Format(time.RFC3339))
			return entry.Models, warning, nil
		}
		return nil, "", fmt.Errorf("live fetch for %s at %s failed and no cache entry exists: %w", providerID, baseURL, fetchErr)
	}

	newEntry := DynamicModelEntry{
		Provider:  providerID,
		BaseURL:   baseURL,
		FetchedAt: timeNowUnix(),
		Models:    models,
	}
	if err := r.putCached(newEntry); err != nil {
		logger.Warn("provider: failed to persist dynamic model cache for %s: %v", providerID, err)
	}

	return models, "", nil
}

func (r *DynamicModelRegistry) getCached(providerID, baseURL string) (DynamicModelEntry, bool, error) {
	response := make(chan dynamicModelCacheGetResponse, 1)
	msg := dynamicModelCacheGetMsg{Provider: providerID, BaseURL: baseURL, ResponseChan: response}
	if err := r.cacheRef.Send(msg); err != nil {
		return DynamicModelEntry{}, false, err
	}
	res := <-response
	return res.Entry, res.Found, res.Err
}

func (r *DynamicModelRegistry) putCached(entry DynamicModelEntry) error {
	response := make(chan error, 1)
	msg := dynamicModelCachePutMsg{Entry: entry, ResponseChan: response}
	if err := r.cacheRef.Send(msg); err != nil {
		return err
	}
	return <-response
}

// timeNowUnix is split out so tests can substitute a fixed clock without
// touching the registry's public surface.
var timeNowUnix = func() int64 { return time.Now().Unix() }
