package store

import (
	"context"

	"github.com/matzehuels/planbridge/pkg/errors"
	"github.com/matzehuels/planbridge/pkg/hierarchy"
	"github.com/matzehuels/planbridge/pkg/snapshot"
)

// writer is one transaction's view of a backend.
type writer interface {
	putWorkspace(ctx context.Context, w snapshot.Workspace, mode Mode) error
	putConfiguration(ctx context.Context, c snapshot.Configuration, mode Mode) error
	putTemplate(ctx context.Context, t snapshot.Template, mode Mode) error
	putFieldMapping(ctx context.Context, m snapshot.FieldMapping, mode Mode) error
	putFeatureFlag(ctx context.Context, f snapshot.FeatureFlag, mode Mode) error
	putAIPrompt(ctx context.Context, p snapshot.AIPrompt, mode Mode) error
	putStory(ctx context.Context, s snapshot.Story, mode Mode) error
}

// prepare validates a snapshot and fills in option defaults.
func prepare(snap *snapshot.Snapshot, opts ApplyOptions) (ApplyOptions, *ApplyResult, error) {
	if snap == nil {
		return opts, nil, errors.New(errors.ErrCodeInvalidInput, "no snapshot to apply")
	}
	mode, err := ParseMode(string(opts.Mode))
	if err != nil {
		return opts, nil, err
	}
	opts.Mode = mode
	if err := snapshot.Validate(snap).Err(); err != nil {
		return opts, nil, err
	}
	return opts, &ApplyResult{Mode: opts.Mode, DryRun: opts.DryRun, Counts: snap.Data.Counts()}, nil
}

// writeSnapshot writes every collection in dependency order.
func writeSnapshot(ctx context.Context, w writer, d snapshot.Data, mode Mode) error {
	for _, ws := range d.Workspaces {
		if err := w.putWorkspace(ctx, ws, mode); err != nil {
			return err
		}
	}
	for _, c := range d.Configurations {
		if err := w.putConfiguration(ctx, c, mode); err != nil {
			return err
		}
	}
	for _, t := range d.Templates {
		if err := w.putTemplate(ctx, t, mode); err != nil {
			return err
		}
	}
	for _, m := range d.FieldMappings {
		if err := w.putFieldMapping(ctx, m, mode); err != nil {
			return err
		}
	}
	for _, f := range d.FeatureFlags {
		if err := w.putFeatureFlag(ctx, f, mode); err != nil {
			return err
		}
	}
	for _, p := range d.AIPrompts {
		if err := w.putAIPrompt(ctx, p, mode); err != nil {
			return err
		}
	}
	for _, s := range orderStories(d.Stories) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.putStory(ctx, s, mode); err != nil {
			return err
		}
	}
	return nil
}

// orderStories returns stories parent-first: roots, then each depth level of
// the story hierarchy, then any stories caught in parent cycles in input
// order. Repeated ids keep their last occurrence.
func orderStories(stories []snapshot.Story) []snapshot.Story {
	byID := make(map[string]snapshot.Story, len(stories))
	for _, s := range stories {
		byID[s.ID] = s
	}

	out := make([]snapshot.Story, 0, len(byID))
	emitted := make(map[string]bool, len(byID))
	for _, level := range hierarchy.Build(snapshot.StoryEntities(stories)).Levels() {
		for _, n := range level {
			out = append(out, byID[n.ID])
			emitted[n.ID] = true
		}
	}
	for _, s := range stories {
		if !emitted[s.ID] {
			out = append(out, byID[s.ID])
			emitted[s.ID] = true
		}
	}
	return out
}
