package syncer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/matzehuels/planbridge/pkg/integrations/azuredevops"
	"github.com/matzehuels/planbridge/pkg/integrations/productboard"
	"github.com/matzehuels/planbridge/pkg/snapshot"
)

// Action is what an operation does to Azure DevOps.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
)

// DefaultTypes maps hierarchy kinds onto Azure DevOps work item types.
// Kinds not listed (products, components) group items but are not synced.
var DefaultTypes = map[string]string{
	productboard.KindInitiative: "Epic",
	productboard.KindFeature:    "Feature",
	productboard.KindSubfeature: "User Story",
	snapshot.KindStory:          "User Story",
}

// Operation is one planned work item write.
type Operation struct {
	Action       Action         `json:"action"`
	SourceID     string         `json:"source_id"`
	Title        string         `json:"title"`
	WorkItemType string         `json:"work_item_type"`
	WorkItemID   int            `json:"work_item_id,omitempty"`
	ParentSource string         `json:"parent_source_id,omitempty"`
	StoryID      string         `json:"story_id,omitempty"`
	Level        int            `json:"level"`
	Fields       map[string]any `json:"fields"`
}

// patch builds the JSON Patch document for the operation's fields, in field
// name order.
func (op *Operation) patch() []azuredevops.PatchOp {
	names := make([]string, 0, len(op.Fields))
	for name := range op.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	ops := make([]azuredevops.PatchOp, 0, len(names)+1)
	for _, name := range names {
		ops = append(ops, azuredevops.SetField(name, op.Fields[name]))
	}
	return ops
}

// Plan is the ordered set of operations for one workspace. Operations are
// sorted by Level so that parents come before their children.
type Plan struct {
	Key         string      `json:"key,omitempty"`
	WorkspaceID string      `json:"workspace_id"`
	Operations  []Operation `json:"operations"`
	Skipped     []string    `json:"skipped,omitempty"`
	Warnings    []string    `json:"warnings,omitempty"`
}

// Empty reports whether the plan has nothing to do.
func (p *Plan) Empty() bool { return len(p.Operations) == 0 }

// Count returns the number of operations with the given action.
func (p *Plan) Count(a Action) int {
	n := 0
	for _, op := range p.Operations {
		if op.Action == a {
			n++
		}
	}
	return n
}

// Summary returns a one-line description such as "3 to create, 1 to update".
func (p *Plan) Summary() string {
	parts := []string{
		fmt.Sprintf("%d to create", p.Count(ActionCreate)),
		fmt.Sprintf("%d to update", p.Count(ActionUpdate)),
	}
	if len(p.Skipped) > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", len(p.Skipped)))
	}
	return strings.Join(parts, ", ")
}

// levels groups operations by Level in ascending order.
func (p *Plan) levels() [][]Operation {
	var out [][]Operation
	for _, op := range p.Operations {
		for len(out) <= op.Level {
			out = append(out, nil)
		}
		out[op.Level] = append(out[op.Level], op)
	}
	return out
}
