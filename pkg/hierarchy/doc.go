// Package hierarchy turns flat, parent-pointer lists of planning entities into
// an ordered forest.
//
// # Overview
//
// ProductBoard and Azure DevOps both return hierarchical data (initiatives,
// features, sub-features, stories) as flat lists where each record names its
// parent by id. The dashboard, the CLI and the sync planner all need the same
// derived view: a forest of nodes, roots first, children in input order.
//
// # Building
//
// [Build] runs in two linear passes over the input. The first indexes every
// entity by id (a later duplicate replaces an earlier one). The second attaches
// each entity to its parent when the parent id resolves inside the input set,
// and promotes it to a root otherwise:
//
//	forest := hierarchy.Build([]hierarchy.Entity{
//	    {ID: "a", Name: "Checkout"},
//	    {ID: "b", Name: "Payment form", ParentID: "a"},
//	    {ID: "c", Name: "Gift cards", ParentID: "z"}, // z is not in the set
//	})
//	// forest: [a [b], c]
//
// Build never fails. Malformed input (dangling parents, duplicate ids, parent
// cycles) degrades to a structurally valid forest. Use [BuildWithReport] to
// get the same forest together with a [Report] that names every degradation.
//
// # Cycles
//
// Parent cycles are not rejected. Nodes on a cycle, and everything hanging
// below them, are attached to each other but never reach the root list, so
// they are absent from the forest. [BuildWithReport] lists them in
// [Report.Unreachable].
//
// # Rendering
//
// [RenderTree] draws a forest for terminals using lipgloss. [ToDOT] emits a
// Graphviz digraph and [RenderSVG] renders DOT to SVG.
package hierarchy
