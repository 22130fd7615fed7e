package hierarchy

// Count returns the total number of nodes in the forest.
func (f Forest) Count() int {
	n := 0
	f.Walk(func(*Node, int) bool {
		n++
		return true
	})
	return n
}

// Walk visits nodes depth-first in pre-order. Roots have depth 0.
// Returning false from fn skips the visited node's children.
func (f Forest) Walk(fn func(n *Node, depth int) bool) {
	for _, n := range f {
		walk(n, 0, fn)
	}
}

func walk(n *Node, depth int, fn func(*Node, int) bool) {
	if !fn(n, depth) {
		return
	}
	for _, c := range n.Children {
		walk(c, depth+1, fn)
	}
}

// Find returns the node with the given id, or nil.
func (f Forest) Find(id string) *Node {
	for _, n := range f {
		if found := find(n, id); found != nil {
			return found
		}
	}
	return nil
}

func find(n *Node, id string) *Node {
	if n.ID == id {
		return n
	}
	for _, c := range n.Children {
		if found := find(c, id); found != nil {
			return found
		}
	}
	return nil
}

// Depth returns the number of levels in the forest (0 when empty).
func (f Forest) Depth() int {
	deepest := 0
	f.Walk(func(_ *Node, depth int) bool {
		if depth+1 > deepest {
			deepest = depth + 1
		}
		return true
	})
	return deepest
}

// Levels groups nodes by depth, preserving pre-order within each level.
func (f Forest) Levels() [][]*Node {
	var levels [][]*Node
	f.Walk(func(n *Node, depth int) bool {
		if depth == len(levels) {
			levels = append(levels, nil)
		}
		levels[depth] = append(levels[depth], n)
		return true
	})
	return levels
}

// Flatten returns the entities of the forest in depth-first pre-order.
// Building the result again yields the same forest.
func (f Forest) Flatten() []Entity {
	var out []Entity
	f.Walk(func(n *Node, _ int) bool {
		out = append(out, n.Entity)
		return true
	})
	return out
}

// SetExpanded marks every node above the given depth as expanded.
func (f Forest) SetExpanded(depth int) {
	f.Walk(func(n *Node, d int) bool {
		n.Expanded = d < depth && len(n.Children) > 0
		return true
	})
}
