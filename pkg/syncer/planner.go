package syncer

import (
	"sort"

	"github.com/matzehuels/planbridge/pkg/hierarchy"
	"github.com/matzehuels/planbridge/pkg/snapshot"
)

type planner struct {
	types          map[string]string
	settings       *settings
	byProductBoard map[string]snapshot.Story

	ops   map[string]*Operation
	order []string
}

// operations walks the forest and returns one operation per synced node,
// sorted parent-first.
func (p *planner) operations(forest hierarchy.Forest) []Operation {
	p.ops = make(map[string]*Operation)
	p.order = nil
	for _, root := range forest {
		p.visit(root, "")
	}

	levels := make(map[string]int, len(p.ops))
	var level func(id string) int
	level = func(id string) int {
		if l, ok := levels[id]; ok {
			return l
		}
		l := 0
		if parent := p.ops[id].ParentSource; parent != "" {
			if _, ok := p.ops[parent]; ok {
				l = level(parent) + 1
			}
		}
		levels[id] = l
		return l
	}

	out := make([]Operation, 0, len(p.order))
	for _, id := range p.order {
		op := p.ops[id]
		op.Level = level(id)
		out = append(out, *op)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Level < out[j].Level })
	return out
}

// visit plans n and its subtree. ancestor is the closest synced ancestor.
func (p *planner) visit(n *hierarchy.Node, ancestor string) {
	if _, done := p.ops[n.ID]; done {
		return
	}
	if wit, ok := p.types[n.Kind]; ok {
		parent := ancestor
		if parent == "" {
			if in, ok := n.Meta["initiative_id"].(string); ok {
				parent = in
			}
		}
		op := &Operation{
			Action:       ActionCreate,
			SourceID:     n.ID,
			Title:        n.Name,
			WorkItemType: wit,
			ParentSource: parent,
			Fields:       p.settings.fields(n),
		}
		if st, ok := p.byProductBoard[n.ID]; ok {
			op.StoryID = st.ID
			if st.ADOWorkItemID != nil && *st.ADOWorkItemID > 0 {
				op.Action = ActionUpdate
				op.WorkItemID = *st.ADOWorkItemID
			}
		}
		p.ops[n.ID] = op
		p.order = append(p.order, n.ID)
		ancestor = n.ID
	}
	for _, c := range n.Children {
		p.visit(c, ancestor)
	}
}
