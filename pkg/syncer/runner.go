package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/planbridge/pkg/cache"
	"github.com/matzehuels/planbridge/pkg/errors"
	"github.com/matzehuels/planbridge/pkg/hierarchy"
	"github.com/matzehuels/planbridge/pkg/integrations/azuredevops"
	"github.com/matzehuels/planbridge/pkg/integrations/productboard"
	"github.com/matzehuels/planbridge/pkg/observability"
	"github.com/matzehuels/planbridge/pkg/snapshot"
	"github.com/matzehuels/planbridge/pkg/store"
)

// Source is where the planning hierarchy comes from.
type Source interface {
	FetchHierarchy(ctx context.Context, refresh bool) (*productboard.Catalog, error)
}

// Tracker is where work items are written.
type Tracker interface {
	CreateWorkItem(ctx context.Context, workItemType string, ops []azuredevops.PatchOp) (*azuredevops.WorkItem, error)
	UpdateWorkItem(ctx context.Context, id int, ops []azuredevops.PatchOp) (*azuredevops.WorkItem, error)
	WorkItemURL(id int) string
}

// Defaults for Runner settings.
const (
	DefaultConcurrency  = 4
	DefaultHierarchyTTL = 10 * time.Minute
	DefaultPlanTTL      = time.Hour
)

// Runner plans and applies syncs. It is safe for concurrent use as long as
// its fields are not modified.
type Runner struct {
	Source  Source
	Tracker Tracker
	Repo    store.Repository
	Cache   cache.Cache
	Keyer   cache.Keyer
	Logger  *log.Logger

	// Types maps hierarchy kinds onto work item types.
	Types map[string]string
	// Concurrency bounds the writes in flight per hierarchy level.
	Concurrency  int
	HierarchyTTL time.Duration
	PlanTTL      time.Duration
}

// NewRunner creates a runner with default settings.
// If keyer is nil, a DefaultKeyer is used.
// If c is nil, a NullCache is used (caching disabled).
func NewRunner(src Source, tracker Tracker, repo store.Repository, c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Source:       src,
		Tracker:      tracker,
		Repo:         repo,
		Cache:        c,
		Keyer:        keyer,
		Logger:       logger,
		Types:        DefaultTypes,
		Concurrency:  DefaultConcurrency,
		HierarchyTTL: DefaultHierarchyTTL,
		PlanTTL:      DefaultPlanTTL,
	}
}

// Entities returns the ProductBoard hierarchy entities of a workspace,
// cached per workspace. refresh bypasses the cache.
func (r *Runner) Entities(ctx context.Context, workspaceID string, refresh bool) ([]hierarchy.Entity, error) {
	if r.Source == nil {
		return nil, errors.New(errors.ErrCodeUnauthorized, "ProductBoard is not configured for workspace %q", workspaceID)
	}
	key := r.Keyer.HierarchyKey(workspaceID, "productboard")
	var entities []hierarchy.Entity
	if !refresh {
		if ok, _ := cache.GetJSON(ctx, r.Cache, key, &entities); ok {
			observability.Cache().OnCacheHit(ctx, "hierarchy")
			return entities, nil
		}
		observability.Cache().OnCacheMiss(ctx, "hierarchy")
	}

	cat, err := r.Source.FetchHierarchy(ctx, refresh)
	if err != nil {
		return nil, err
	}
	if entities, err = cat.Entities(); err != nil {
		return nil, err
	}
	if err := cache.SetJSON(ctx, r.Cache, key, entities, r.HierarchyTTL); err == nil {
		observability.Cache().OnCacheSet(ctx, "hierarchy", len(entities))
	}
	return entities, nil
}

// PlanOptions selects what to plan.
type PlanOptions struct {
	WorkspaceID string
	// Refresh refetches ProductBoard instead of using cached data.
	Refresh bool
}

// Plan computes the operations that bring Azure DevOps in line with the
// workspace's ProductBoard hierarchy. The plan is cached under Plan.Key.
func (r *Runner) Plan(ctx context.Context, opts PlanOptions) (plan *Plan, err error) {
	start := time.Now()
	hooks := observability.Sync()
	hooks.OnPlanStart(ctx, opts.WorkspaceID)
	defer func() {
		n := 0
		if plan != nil {
			n = len(plan.Operations)
		}
		hooks.OnPlanComplete(ctx, opts.WorkspaceID, n, time.Since(start), err)
	}()

	if err := errors.ValidateWorkspaceID(opts.WorkspaceID); err != nil {
		return nil, err
	}
	data, err := r.Repo.LoadSnapshotData(ctx, opts.WorkspaceID)
	if err != nil {
		return nil, err
	}
	settings, err := newSettings(data)
	if err != nil {
		return nil, err
	}

	entities, err := r.Entities(ctx, opts.WorkspaceID, opts.Refresh)
	if err != nil {
		return nil, err
	}
	forest, report := hierarchy.BuildWithReport(entities)

	plan = &Plan{
		WorkspaceID: opts.WorkspaceID,
		Operations:  []Operation{},
		Skipped:     settings.skipped,
		Warnings:    report.Warnings(),
	}
	b := planner{types: r.Types, settings: settings, byProductBoard: storiesByProductBoard(data.Stories)}
	plan.Operations = b.operations(forest)

	r.Logger.Debug("planned sync", "workspace", opts.WorkspaceID, "nodes", forest.Count(), "operations", len(plan.Operations))

	plan.Key = r.planKey(plan)
	if err := cache.SetJSON(ctx, r.Cache, plan.Key, plan, r.PlanTTL); err != nil {
		r.Logger.Warn("plan not cached", "error", err)
	}
	return plan, nil
}

// LoadPlan returns a plan previously computed by Plan.
func (r *Runner) LoadPlan(ctx context.Context, key string) (*Plan, error) {
	var plan Plan
	ok, err := cache.GetJSON(ctx, r.Cache, key, &plan)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "load plan")
	}
	if !ok {
		return nil, errors.New(errors.ErrCodeNotFound, "plan %q not found or expired", key)
	}
	return &plan, nil
}

// planKey fingerprints every operation, so any change in the plan yields a
// new key.
func (r *Runner) planKey(p *Plan) string {
	prints := make([]string, len(p.Operations))
	for i, op := range p.Operations {
		fields, _ := json.Marshal(op.Fields)
		prints[i] = fmt.Sprintf("%s:%s:%d:%s:%s", op.Action, op.SourceID, op.WorkItemID, op.ParentSource, cache.Hash(fields))
	}
	return r.Keyer.PlanKey(p.WorkspaceID, prints)
}

func storiesByProductBoard(stories []snapshot.Story) map[string]snapshot.Story {
	out := make(map[string]snapshot.Story, len(stories))
	for _, s := range stories {
		if s.ProductBoardID != "" {
			out[s.ProductBoardID] = s
		}
	}
	return out
}
