package syncer

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/planbridge/pkg/errors"
	"github.com/matzehuels/planbridge/pkg/integrations/azuredevops"
	"github.com/matzehuels/planbridge/pkg/observability"
	"github.com/matzehuels/planbridge/pkg/snapshot"
)

// OperationResult is the outcome of one operation.
type OperationResult struct {
	Operation
	Error string `json:"error,omitempty"`
}

// Result summarises an applied plan.
type Result struct {
	WorkspaceID string            `json:"workspace_id"`
	Applied     int               `json:"applied"`
	Failed      int               `json:"failed"`
	Operations  []OperationResult `json:"operations"`
	Duration    time.Duration     `json:"duration"`
}

// applyState is shared by the operations of one Apply call. Its maps are
// only written between levels.
type applyState struct {
	workspaceID string
	workItems   map[string]int
	storyIDs    map[string]string
	failed      map[string]bool
	stories     map[string]snapshot.Story
}

// Apply executes a plan. Operations of one level run concurrently; a level
// starts once the previous one finished. An operation whose parent failed is
// not attempted. Apply returns an error only when it could not run at all or
// ctx was cancelled; individual failures are reported in the result.
func (r *Runner) Apply(ctx context.Context, plan *Plan) (*Result, error) {
	if r.Tracker == nil {
		return nil, errors.New(errors.ErrCodeUnauthorized, "Azure DevOps is not configured for workspace %q", plan.WorkspaceID)
	}
	start := time.Now()
	hooks := observability.Sync()
	hooks.OnApplyStart(ctx, plan.WorkspaceID, len(plan.Operations))

	result := &Result{WorkspaceID: plan.WorkspaceID, Operations: []OperationResult{}}
	defer func() {
		result.Duration = time.Since(start)
		hooks.OnApplyComplete(ctx, plan.WorkspaceID, result.Applied, result.Failed, result.Duration)
	}()

	stories, err := r.Repo.ListStories(ctx, plan.WorkspaceID)
	if err != nil {
		return nil, err
	}
	st := &applyState{
		workspaceID: plan.WorkspaceID,
		workItems:   make(map[string]int),
		storyIDs:    make(map[string]string),
		failed:      make(map[string]bool),
		stories:     make(map[string]snapshot.Story, len(stories)),
	}
	for _, s := range stories {
		st.stories[s.ID] = s
		if s.ProductBoardID != "" {
			st.storyIDs[s.ProductBoardID] = s.ID
		}
	}
	for _, op := range plan.Operations {
		if op.WorkItemID > 0 {
			st.workItems[op.SourceID] = op.WorkItemID
		}
	}

	limit := r.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	for _, level := range plan.levels() {
		results := make([]OperationResult, len(level))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(limit)
		for i, op := range level {
			g.Go(func() error {
				results[i] = r.applyOne(gctx, st, op)
				return nil
			})
		}
		_ = g.Wait()

		for _, res := range results {
			if res.Error != "" {
				st.failed[res.SourceID] = true
				result.Failed++
			} else {
				st.workItems[res.SourceID] = res.WorkItemID
				st.storyIDs[res.SourceID] = res.StoryID
				result.Applied++
			}
			result.Operations = append(result.Operations, res)
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
	}

	r.Logger.Info("sync applied", "workspace", plan.WorkspaceID, "applied", result.Applied, "failed", result.Failed, "duration", time.Since(start))
	return result, nil
}

func (r *Runner) applyOne(ctx context.Context, st *applyState, op Operation) OperationResult {
	res := OperationResult{Operation: op}
	err := r.write(ctx, st, &res)
	observability.Sync().OnOperation(ctx, string(op.Action), op.WorkItemType, op.Title, err)
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

func (r *Runner) write(ctx context.Context, st *applyState, res *OperationResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p := res.ParentSource; p != "" && st.failed[p] {
		return errors.New(errors.ErrCodeConflict, "parent %q was not synced", p)
	}

	patch := res.patch()
	switch res.Action {
	case ActionCreate:
		if parentID := st.workItems[res.ParentSource]; parentID > 0 {
			patch = append(patch, azuredevops.ParentRelation(r.Tracker.WorkItemURL(parentID)))
		}
		item, err := r.Tracker.CreateWorkItem(ctx, res.WorkItemType, patch)
		if err != nil {
			return err
		}
		res.WorkItemID = item.ID
	case ActionUpdate:
		if _, err := r.Tracker.UpdateWorkItem(ctx, res.WorkItemID, patch); err != nil {
			return err
		}
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unknown action %q", res.Action)
	}

	return r.recordStory(ctx, st, res)
}

// recordStory links the work item to the workspace story of the node,
// creating the story when the node had none.
func (r *Runner) recordStory(ctx context.Context, st *applyState, res *OperationResult) error {
	story, ok := st.stories[res.StoryID]
	if !ok {
		story = snapshot.Story{
			ID:             "pb-" + res.SourceID,
			WorkspaceID:    st.workspaceID,
			Title:          res.Title,
			Status:         snapshot.StatusDraft,
			ProductBoardID: res.SourceID,
			ParentID:       st.storyIDs[res.ParentSource],
		}
	}
	id := res.WorkItemID
	story.ADOWorkItemID = &id
	story.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	if err := r.Repo.UpsertStory(ctx, story); err != nil {
		return fmt.Errorf("work item %d written but story not updated: %w", id, err)
	}
	res.StoryID = story.ID
	return nil
}
