package hierarchy

import "fmt"

// OrphanPromoted records an entity whose parent id did not resolve and which
// was placed at the root level instead.
type OrphanPromoted struct {
	ID       string `json:"id"`
	ParentID string `json:"parent_id"`
}

// DuplicateID records an id that appeared more than once in the input.
type DuplicateID struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

// Report lists the silent degradations applied while building a forest.
type Report struct {
	Orphans     []OrphanPromoted `json:"orphans,omitempty"`
	Duplicates  []DuplicateID    `json:"duplicates,omitempty"`
	Unreachable []string         `json:"unreachable,omitempty"`
}

// Empty reports whether the build applied no degradation at all.
func (r Report) Empty() bool {
	return len(r.Orphans) == 0 && len(r.Duplicates) == 0 && len(r.Unreachable) == 0
}

// Warnings renders the report as one human-readable line per finding.
func (r Report) Warnings() []string {
	var out []string
	for _, o := range r.Orphans {
		out = append(out, fmt.Sprintf("%s: parent %s not found, promoted to root", o.ID, o.ParentID))
	}
	for _, d := range r.Duplicates {
		out = append(out, fmt.Sprintf("%s: id appears %d times, last occurrence kept", d.ID, d.Count))
	}
	for _, id := range r.Unreachable {
		out = append(out, fmt.Sprintf("%s: part of a parent cycle, not reachable from any root", id))
	}
	return out
}
