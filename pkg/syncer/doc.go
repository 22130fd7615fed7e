// Package syncer pushes the ProductBoard hierarchy of a workspace into Azure
// DevOps work items.
//
// A sync runs in two steps. [Runner.Plan] fetches the ProductBoard catalog,
// builds the hierarchy, maps node kinds onto work item types and compares the
// result with the workspace's stored stories to decide which work items to
// create and which to update. [Runner.Apply] executes a plan level by level,
// so every parent exists before its children are linked to it, and records
// the created work item ids on the workspace's stories.
//
//	runner := syncer.NewRunner(pb, ado, repo, cache, nil, logger)
//	plan, err := runner.Plan(ctx, syncer.PlanOptions{WorkspaceID: "ws-1"})
//	// show plan to the user
//	result, err := runner.Apply(ctx, plan)
package syncer
