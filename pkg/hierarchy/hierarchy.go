package hierarchy

// Metadata stores arbitrary key-value pairs carried through from the source
// record (status, priority, ADO work item id, ...).
type Metadata map[string]any

// Entity is one flat record with an identity and an optional parent reference.
// An empty ParentID means the entity has no parent.
type Entity struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	ParentID string   `json:"parent_id,omitempty"`
	Kind     string   `json:"kind,omitempty"`
	Meta     Metadata `json:"meta,omitempty"`
}

// Node is an entity placed in the forest. Children keep input order.
type Node struct {
	Entity
	Children []*Node `json:"children"`
	Expanded bool    `json:"expanded,omitempty"`
}

// Forest is the ordered sequence of root nodes.
type Forest []*Node

// Build assembles entities into a forest.
//
// Every entity whose ParentID matches another entity's ID becomes a child of
// that entity exactly once. Entities without a ParentID, or whose ParentID is
// not in the input, become roots. Roots and children preserve input order.
// When ids repeat, the last occurrence wins and decides the node's position.
func Build(entities []Entity) Forest {
	f, _ := build(entities, false)
	return f
}

// BuildWithReport builds the same forest as [Build] and reports every orphan
// promotion, duplicate id and unreachable node it encountered.
func BuildWithReport(entities []Entity) (Forest, Report) {
	return build(entities, true)
}

func build(entities []Entity, report bool) (Forest, Report) {
	var rep Report

	index := make(map[string]*Node, len(entities))
	winner := make(map[string]int, len(entities))
	for i, e := range entities {
		index[e.ID] = &Node{Entity: e, Children: []*Node{}}
		winner[e.ID] = i
	}

	roots := Forest{}
	for i, e := range entities {
		if winner[e.ID] != i {
			continue
		}
		node := index[e.ID]
		if parent, ok := index[e.ParentID]; ok && e.ParentID != "" {
			parent.Children = append(parent.Children, node)
			continue
		}
		if report && e.ParentID != "" {
			rep.Orphans = append(rep.Orphans, OrphanPromoted{ID: e.ID, ParentID: e.ParentID})
		}
		roots = append(roots, node)
	}

	if !report {
		return roots, rep
	}

	if len(winner) != len(entities) {
		counts := make(map[string]int, len(entities))
		for _, e := range entities {
			counts[e.ID]++
		}
		seen := make(map[string]bool)
		for _, e := range entities {
			if counts[e.ID] > 1 && !seen[e.ID] {
				seen[e.ID] = true
				rep.Duplicates = append(rep.Duplicates, DuplicateID{ID: e.ID, Count: counts[e.ID]})
			}
		}
	}

	reached := make(map[*Node]bool, len(index))
	roots.Walk(func(n *Node, _ int) bool {
		reached[n] = true
		return true
	})
	for i, e := range entities {
		if winner[e.ID] == i && !reached[index[e.ID]] {
			rep.Unreachable = append(rep.Unreachable, e.ID)
		}
	}

	return roots, rep
}
