// Package observability provides hooks for metrics, tracing and logging.
//
// Libraries emit events through hook interfaces without depending on a
// specific backend. Binaries register implementations at startup; the
// defaults are no-ops. [LogHooks] is the implementation planbridge ships,
// writing every event to a charmbracelet logger.
//
// Register hooks once, before work starts:
//
//	hooks := observability.NewLogHooks(logger)
//	observability.SetSyncHooks(hooks)
//	observability.SetHTTPHooks(hooks)
//
// Libraries call hooks to emit events:
//
//	observability.Sync().OnPlanStart(ctx, workspaceID)
//	// ... build the plan ...
//	observability.Sync().OnPlanComplete(ctx, workspaceID, len(plan.Ops), time.Since(start), err)
package observability

import (
	"context"
	"sync"
	"time"
)

// SyncHooks receives events from the ProductBoard to Azure DevOps sync and
// from snapshot imports.
type SyncHooks interface {
	OnPlanStart(ctx context.Context, workspaceID string)
	OnPlanComplete(ctx context.Context, workspaceID string, ops int, duration time.Duration, err error)

	OnApplyStart(ctx context.Context, workspaceID string, ops int)
	OnOperation(ctx context.Context, action, workItemType, title string, err error)
	OnApplyComplete(ctx context.Context, workspaceID string, applied, failed int, duration time.Duration)

	OnImport(ctx context.Context, counts map[string]int, dryRun bool, duration time.Duration, err error)
}

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	OnCacheHit(ctx context.Context, keyType string)
	OnCacheMiss(ctx context.Context, keyType string)
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// HTTPHooks receives events from the upstream API clients.
type HTTPHooks interface {
	OnRequest(ctx context.Context, method, host, path string)
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)
	// OnError records a transport failure (connection refused, timeout).
	OnError(ctx context.Context, method, host, path string, err error)
}

// NoopSyncHooks is a no-op implementation of SyncHooks.
type NoopSyncHooks struct{}

func (NoopSyncHooks) OnPlanStart(context.Context, string)                                  {}
func (NoopSyncHooks) OnPlanComplete(context.Context, string, int, time.Duration, error)    {}
func (NoopSyncHooks) OnApplyStart(context.Context, string, int)                            {}
func (NoopSyncHooks) OnOperation(context.Context, string, string, string, error)           {}
func (NoopSyncHooks) OnApplyComplete(context.Context, string, int, int, time.Duration)     {}
func (NoopSyncHooks) OnImport(context.Context, map[string]int, bool, time.Duration, error) {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

var (
	syncHooks  SyncHooks  = NoopSyncHooks{}
	cacheHooks CacheHooks = NoopCacheHooks{}
	httpHooks  HTTPHooks  = NoopHTTPHooks{}
	hooksMu    sync.RWMutex
)

// SetSyncHooks registers sync hooks. A nil h is ignored.
func SetSyncHooks(h SyncHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		syncHooks = h
	}
}

// SetCacheHooks registers cache hooks. A nil h is ignored.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetHTTPHooks registers HTTP hooks. A nil h is ignored.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// Sync returns the registered sync hooks.
func Sync() SyncHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return syncHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Reset restores all hooks to their no-op defaults.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	syncHooks = NoopSyncHooks{}
	cacheHooks = NoopCacheHooks{}
	httpHooks = NoopHTTPHooks{}
}
