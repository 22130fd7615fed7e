package store

import (
	"context"
	"time"

	"github.com/matzehuels/planbridge/pkg/observability"
	"github.com/matzehuels/planbridge/pkg/snapshot"
)

// Import validates a raw snapshot document and applies it to repo. A
// document that fails validation is rejected as a whole with an
// ErrCodeSchema or ErrCodeReferential error listing every violation.
func Import(ctx context.Context, repo Repository, raw []byte, opts ApplyOptions) (result *ApplyResult, err error) {
	start := time.Now()
	checked := snapshot.ValidateImport(raw)
	defer func() {
		var counts map[string]int
		if checked.Data != nil {
			counts = checked.Data.Data.Counts()
		}
		observability.Sync().OnImport(ctx, counts, opts.DryRun, time.Since(start), err)
	}()

	if err := checked.Err(); err != nil {
		return nil, err
	}
	return repo.ApplySnapshot(ctx, checked.Data, opts)
}

// Export loads the given workspaces (every workspace when none are given)
// and returns them as a validated snapshot.
func Export(ctx context.Context, repo Repository, workspaceIDs ...string) (*snapshot.Snapshot, error) {
	data, err := repo.LoadSnapshotData(ctx, workspaceIDs...)
	if err != nil {
		return nil, err
	}
	snap := snapshot.New(data)
	if err := snapshot.Validate(snap).Err(); err != nil {
		return nil, err
	}
	return snap, nil
}
