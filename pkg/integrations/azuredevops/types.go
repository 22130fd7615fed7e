package azuredevops

import (
	"path"
	"strconv"
	"strings"
)

// Common work item field reference names.
const (
	FieldTitle       = "System.Title"
	FieldType        = "System.WorkItemType"
	FieldState       = "System.State"
	FieldParent      = "System.Parent"
	FieldTags        = "System.Tags"
	FieldAreaPath    = "System.AreaPath"
	FieldIteration   = "System.IterationPath"
	FieldDescription = "System.Description"
	FieldStoryPoints = "Microsoft.VSTS.Scheduling.StoryPoints"
)

// Link types.
const (
	RelParent = "System.LinkTypes.Hierarchy-Reverse"
	RelChild  = "System.LinkTypes.Hierarchy-Forward"
)

// WorkItem is an Azure DevOps work item.
type WorkItem struct {
	ID        int            `json:"id"`
	Rev       int            `json:"rev"`
	Fields    map[string]any `json:"fields"`
	Relations []Relation     `json:"relations,omitempty"`
	URL       string         `json:"url"`
}

// Relation links a work item to another resource.
type Relation struct {
	Rel        string         `json:"rel"`
	URL        string         `json:"url"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// String returns a string field or "".
func (w *WorkItem) String(field string) string {
	s, _ := w.Fields[field].(string)
	return s
}

// Title returns System.Title.
func (w *WorkItem) Title() string { return w.String(FieldTitle) }

// Type returns System.WorkItemType.
func (w *WorkItem) Type() string { return w.String(FieldType) }

// State returns System.State.
func (w *WorkItem) State() string { return w.String(FieldState) }

// Tags returns the semicolon-separated System.Tags as a slice.
func (w *WorkItem) Tags() []string {
	var tags []string
	for _, t := range strings.Split(w.String(FieldTags), ";") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// ParentID returns the parent work item id, or 0 when there is none. It reads
// System.Parent and falls back to a hierarchy-reverse relation.
func (w *WorkItem) ParentID() int {
	switch v := w.Fields[FieldParent].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	for _, r := range w.Relations {
		if r.Rel == RelParent {
			if id, err := strconv.Atoi(path.Base(r.URL)); err == nil {
				return id
			}
		}
	}
	return 0
}

// PatchOp is one JSON Patch operation.
type PatchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	From  string `json:"from,omitempty"`
	Value any    `json:"value,omitempty"`
}

// SetField returns an add operation for a field, which creates or replaces it.
func SetField(name string, value any) PatchOp {
	return PatchOp{Op: "add", Path: "/fields/" + name, Value: value}
}

// TestRev returns a test operation that makes an update fail with a conflict
// when the work item changed since rev.
func TestRev(rev int) PatchOp {
	return PatchOp{Op: "test", Path: "/rev", Value: rev}
}

// ParentRelation returns an operation that links the work item to the parent
// at parentURL.
func ParentRelation(parentURL string) PatchOp {
	return PatchOp{
		Op:   "add",
		Path: "/relations/-",
		Value: Relation{
			Rel: RelParent,
			URL: parentURL,
		},
	}
}
