package store

import (
	"context"

	"github.com/matzehuels/planbridge/pkg/errors"
	"github.com/matzehuels/planbridge/pkg/snapshot"
)

// Repository is the persistence capability used by the CLI, the server and
// the syncer.
type Repository interface {
	// ListWorkspaces returns all workspaces ordered by id.
	ListWorkspaces(ctx context.Context) ([]snapshot.Workspace, error)

	// GetWorkspace returns one workspace or an ErrCodeWorkspaceNotFound error.
	GetWorkspace(ctx context.Context, id string) (*snapshot.Workspace, error)

	// UpsertWorkspace creates or replaces a workspace.
	UpsertWorkspace(ctx context.Context, w snapshot.Workspace) error

	// ListStories returns the stories of a workspace ordered by id.
	ListStories(ctx context.Context, workspaceID string) ([]snapshot.Story, error)

	// UpsertStory creates or replaces a story.
	UpsertStory(ctx context.Context, s snapshot.Story) error

	// LoadSnapshotData returns every record belonging to the given
	// workspaces, or to all workspaces when none are given.
	LoadSnapshotData(ctx context.Context, workspaceIDs ...string) (snapshot.Data, error)

	// ApplySnapshot validates and writes a snapshot atomically.
	ApplySnapshot(ctx context.Context, snap *snapshot.Snapshot, opts ApplyOptions) (*ApplyResult, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend's resources.
	Close() error
}

// Mode selects how ApplySnapshot treats records that already exist.
type Mode string

const (
	// ModeUpsert replaces existing records.
	ModeUpsert Mode = "upsert"
	// ModeInsert fails with ErrCodeConflict when a record already exists.
	ModeInsert Mode = "insert"
)

// ParseMode parses a mode name. The empty string selects ModeUpsert.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeUpsert:
		return ModeUpsert, nil
	case ModeInsert:
		return ModeInsert, nil
	}
	return "", errors.New(errors.ErrCodeInvalidInput, "unknown import mode %q (want upsert or insert)", s)
}

// ApplyOptions controls ApplySnapshot.
type ApplyOptions struct {
	Mode   Mode
	DryRun bool
}

// ApplyResult reports what ApplySnapshot wrote, or would have written for a
// dry run.
type ApplyResult struct {
	Mode   Mode           `json:"mode"`
	DryRun bool           `json:"dry_run"`
	Counts map[string]int `json:"counts"`
}
