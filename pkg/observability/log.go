package observability

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// LogHooks writes every hook event to a charmbracelet logger. Successful
// events are logged at debug level, failures at warn or error.
type LogHooks struct {
	logger *log.Logger
}

// NewLogHooks returns hooks that log to logger. A nil logger discards.
func NewLogHooks(logger *log.Logger) *LogHooks {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &LogHooks{logger: logger}
}

func (h *LogHooks) OnPlanStart(_ context.Context, workspaceID string) {
	h.logger.Debug("sync plan started", "workspace", workspaceID)
}

func (h *LogHooks) OnPlanComplete(_ context.Context, workspaceID string, ops int, d time.Duration, err error) {
	if err != nil {
		h.logger.Error("sync plan failed", "workspace", workspaceID, "duration", d, "err", err)
		return
	}
	h.logger.Info("sync plan ready", "workspace", workspaceID, "ops", ops, "duration", d)
}

func (h *LogHooks) OnApplyStart(_ context.Context, workspaceID string, ops int) {
	h.logger.Info("applying sync plan", "workspace", workspaceID, "ops", ops)
}

func (h *LogHooks) OnOperation(_ context.Context, action, workItemType, title string, err error) {
	if err != nil {
		h.logger.Warn("work item operation failed", "action", action, "type", workItemType, "title", title, "err", err)
		return
	}
	h.logger.Debug("work item operation", "action", action, "type", workItemType, "title", title)
}

func (h *LogHooks) OnApplyComplete(_ context.Context, workspaceID string, applied, failed int, d time.Duration) {
	level := log.InfoLevel
	if failed > 0 {
		level = log.WarnLevel
	}
	h.logger.Log(level, "sync applied", "workspace", workspaceID, "applied", applied, "failed", failed, "duration", d)
}

func (h *LogHooks) OnImport(_ context.Context, counts map[string]int, dryRun bool, d time.Duration, err error) {
	if err != nil {
		h.logger.Error("snapshot import failed", "dry_run", dryRun, "duration", d, "err", err)
		return
	}
	h.logger.Info("snapshot imported", "dry_run", dryRun, "workspaces", counts["workspaces"],
		"stories", counts["stories"], "duration", d)
}

func (h *LogHooks) OnCacheHit(_ context.Context, keyType string) {
	h.logger.Debug("cache hit", "type", keyType)
}

func (h *LogHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.logger.Debug("cache miss", "type", keyType)
}

func (h *LogHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.logger.Debug("cache set", "type", keyType, "bytes", size)
}

func (h *LogHooks) OnRequest(_ context.Context, method, host, path string) {
	h.logger.Debug("http request", "method", method, "host", host, "path", path)
}

func (h *LogHooks) OnResponse(_ context.Context, method, host, path string, status int, d time.Duration) {
	if status >= 400 {
		h.logger.Warn("http response", "method", method, "host", host, "path", path, "status", status, "duration", d)
		return
	}
	h.logger.Debug("http response", "method", method, "host", host, "path", path, "status", status, "duration", d)
}

func (h *LogHooks) OnError(_ context.Context, method, host, path string, err error) {
	h.logger.Warn("http error", "method", method, "host", host, "path", path, "err", err)
}

var (
	_ SyncHooks  = (*LogHooks)(nil)
	_ CacheHooks = (*LogHooks)(nil)
	_ HTTPHooks  = (*LogHooks)(nil)
)
