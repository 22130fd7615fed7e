// Package pkg provides the core libraries for planbridge.
//
// # Overview
//
// Planbridge connects product planning in ProductBoard with delivery tracking
// in Azure DevOps. Workspaces group stories and the settings that drive the
// integration. The pkg directory is organized into four main areas:
//
//  1. Domain logic: [hierarchy], [snapshot], [syncer]
//  2. Persistence: [store], [archive], [session], [cache]
//  3. [integrations] - ProductBoard and Azure DevOps API clients
//  4. Support: [errors], [observability], [httputil], [buildinfo]
//
// # Architecture
//
// The typical data flow of a sync:
//
//	ProductBoard features, components, initiatives
//	         ↓
//	    [integrations/productboard] (fetch + flatten into entities)
//	         ↓
//	    [hierarchy] (parent pointers → forest)
//	         ↓
//	    [syncer] (forest + workspace configuration → plan)
//	         ↓
//	    [integrations/azuredevops] (create/update work items)
//
// Workspaces move between environments as snapshots:
//
//	[store].Export → [snapshot].Encode → file → [snapshot].ValidateImport → [store].Import
//
// # Quick Start
//
// Build a forest from flat records:
//
//	forest, report := hierarchy.BuildWithReport([]hierarchy.Entity{
//	    {ID: "a", Name: "Checkout"},
//	    {ID: "b", Name: "Payment form", ParentID: "a"},
//	})
//	fmt.Println(hierarchy.RenderTree(forest))
//	for _, w := range report.Warnings() {
//	    fmt.Println(w)
//	}
//
// Validate a snapshot before importing it:
//
//	raw, _ := snapshot.ReadFile("export.yaml")
//	result := snapshot.ValidateImport(raw)
//	if !result.Valid {
//	    for _, e := range result.Errors {
//	        fmt.Println(e)
//	    }
//	}
//
// # Main Packages
//
// [hierarchy] - Forest construction from parent-pointer lists. Orphans become
// roots, duplicate ids keep their last occurrence and cycles are dropped;
// BuildWithReport lists each of these degradations.
//
// [snapshot] - The versioned import/export document: schema validation with
// go-playground/validator, workspace reference checks, and JSON/YAML codecs.
//
// [store] - The workspace repository. PostgresStore (pgx) for deployments,
// MemoryStore for tests and the --memory server.
//
// [syncer] - Plans and applies ProductBoard to Azure DevOps syncs, level by
// level with bounded concurrency.
//
// [archive] - Redacted snapshot history in MongoDB or memory.
//
// [session] - Per-workspace integration credentials in files or Redis.
//
// [cache] - Response, hierarchy and plan cache in files or Redis.
//
// # Testing
//
// Run tests:
//
//	go test ./...                         # All tests
//	go test ./pkg/hierarchy/...           # Specific package
//	go test -run Example ./pkg/...        # Examples only
//	PLANBRIDGE_TEST_DATABASE_URL=... go test ./pkg/store/  # Include Postgres
//
// [hierarchy]: https://pkg.go.dev/github.com/matzehuels/planbridge/pkg/hierarchy
// [snapshot]: https://pkg.go.dev/github.com/matzehuels/planbridge/pkg/snapshot
// [syncer]: https://pkg.go.dev/github.com/matzehuels/planbridge/pkg/syncer
// [store]: https://pkg.go.dev/github.com/matzehuels/planbridge/pkg/store
// [archive]: https://pkg.go.dev/github.com/matzehuels/planbridge/pkg/archive
// [session]: https://pkg.go.dev/github.com/matzehuels/planbridge/pkg/session
// [cache]: https://pkg.go.dev/github.com/matzehuels/planbridge/pkg/cache
// [integrations]: https://pkg.go.dev/github.com/matzehuels/planbridge/pkg/integrations
// [integrations/productboard]: https://pkg.go.dev/github.com/matzehuels/planbridge/pkg/integrations/productboard
// [integrations/azuredevops]: https://pkg.go.dev/github.com/matzehuels/planbridge/pkg/integrations/azuredevops
// [errors]: https://pkg.go.dev/github.com/matzehuels/planbridge/pkg/errors
// [observability]: https://pkg.go.dev/github.com/matzehuels/planbridge/pkg/observability
// [httputil]: https://pkg.go.dev/github.com/matzehuels/planbridge/pkg/httputil
// [buildinfo]: https://pkg.go.dev/github.com/matzehuels/planbridge/pkg/buildinfo
package pkg
