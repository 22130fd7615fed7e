package hierarchy

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func ids(nodes []*Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

func TestBuildExample(t *testing.T) {
	f := Build([]Entity{
		{ID: "a"},
		{ID: "b", ParentID: "a"},
		{ID: "c", ParentID: "z"},
	})

	if got := ids(f); !reflect.DeepEqual(got, []string{"a", "c"}) {
		t.Fatalf("roots = %v, want [a c]", got)
	}
	if got := ids(f[0].Children); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("a.children = %v, want [b]", got)
	}
	if len(f[0].Children[0].Children) != 0 || len(f[1].Children) != 0 {
		t.Error("leaves should have no children")
	}
	if f.Count() != 3 {
		t.Errorf("Count() = %d, want 3", f.Count())
	}
}

func TestBuildJSONShape(t *testing.T) {
	f := Build([]Entity{{ID: "a"}, {ID: "b", ParentID: "a"}})
	data, err := json.Marshal(f)
	if err != nil {
		t.Fatal(err)
	}
	want := `[{"id":"a","name":"","children":[{"id":"b","name":"","parent_id":"a","children":[]}]}]`
	if string(data) != want {
		t.Errorf("json = %s\nwant   %s", data, want)
	}
}

func TestBuildEmpty(t *testing.T) {
	f := Build(nil)
	if f == nil || len(f) != 0 {
		t.Errorf("Build(nil) = %#v, want empty non-nil forest", f)
	}
	if f.Count() != 0 || f.Depth() != 0 {
		t.Error("empty forest should have zero count and depth")
	}
}

func TestBuildProperties(t *testing.T) {
	tests := []struct {
		name     string
		entities []Entity
	}{
		{"flat", []Entity{{ID: "1"}, {ID: "2"}, {ID: "3"}}},
		{"chain", []Entity{{ID: "1"}, {ID: "2", ParentID: "1"}, {ID: "3", ParentID: "2"}}},
		{"child before parent", []Entity{{ID: "2", ParentID: "1"}, {ID: "3", ParentID: "1"}, {ID: "1"}}},
		{"dangling parents", []Entity{{ID: "1", ParentID: "x"}, {ID: "2", ParentID: "y"}, {ID: "3", ParentID: "1"}}},
		{"wide", wide(50)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Build(tt.entities)
			known := make(map[string]bool)
			for _, e := range tt.entities {
				known[e.ID] = true
			}

			// completeness
			if got := f.Count(); got != len(tt.entities) {
				t.Errorf("Count() = %d, want %d", got, len(tt.entities))
			}

			// root promotion
			roots := make(map[string]bool)
			for _, r := range f {
				roots[r.ID] = true
			}
			for _, e := range tt.entities {
				isRoot := e.ParentID == "" || !known[e.ParentID]
				if isRoot != roots[e.ID] {
					t.Errorf("%s: root = %v, want %v", e.ID, roots[e.ID], isRoot)
				}
			}

			// attachment exactly once
			seen := make(map[string]int)
			f.Walk(func(n *Node, _ int) bool {
				seen[n.ID]++
				for _, c := range n.Children {
					if c.ParentID != n.ID {
						t.Errorf("%s attached under %s, want %s", c.ID, n.ID, c.ParentID)
					}
				}
				return true
			})
			for id, n := range seen {
				if n != 1 {
					t.Errorf("%s appears %d times", id, n)
				}
			}

			// order preservation
			f.Walk(func(n *Node, _ int) bool {
				var want []string
				for _, e := range tt.entities {
					if e.ParentID == n.ID {
						want = append(want, e.ID)
					}
				}
				if got := ids(n.Children); len(want) > 0 && !reflect.DeepEqual(got, want) {
					t.Errorf("%s children = %v, want %v", n.ID, got, want)
				}
				return true
			})
		})
	}
}

func wide(n int) []Entity {
	out := []Entity{{ID: "root"}}
	for i := range n {
		parent := "root"
		if i%3 == 2 {
			parent = fmt.Sprintf("n%d", i-1)
		}
		out = append(out, Entity{ID: fmt.Sprintf("n%d", i), ParentID: parent})
	}
	return out
}

func TestBuildDuplicateLastWins(t *testing.T) {
	f := Build([]Entity{
		{ID: "a", Name: "first"},
		{ID: "b"},
		{ID: "a", Name: "second", ParentID: "b"},
	})

	if got := ids(f); !reflect.DeepEqual(got, []string{"b"}) {
		t.Fatalf("roots = %v, want [b]", got)
	}
	a := f.Find("a")
	if a == nil || a.Name != "second" {
		t.Fatalf("Find(a) = %+v, want the second occurrence", a)
	}
	if f.Count() != 2 {
		t.Errorf("Count() = %d, want 2 distinct nodes", f.Count())
	}
}

func TestBuildCycleIsDropped(t *testing.T) {
	f := Build([]Entity{
		{ID: "root"},
		{ID: "x", ParentID: "z"},
		{ID: "y", ParentID: "x"},
		{ID: "z", ParentID: "y"},
		{ID: "self", ParentID: "self"},
	})

	if got := ids(f); !reflect.DeepEqual(got, []string{"root"}) {
		t.Errorf("roots = %v, want [root]", got)
	}
	if f.Count() != 1 {
		t.Errorf("Count() = %d, want 1", f.Count())
	}
}

func TestBuildWithReport(t *testing.T) {
	entities := []Entity{
		{ID: "a"},
		{ID: "b", ParentID: "a"},
		{ID: "c", ParentID: "z"},
		{ID: "d"},
		{ID: "d"},
		{ID: "x", ParentID: "y"},
		{ID: "y", ParentID: "x"},
		{ID: "w", ParentID: "x"},
	}

	f, rep := BuildWithReport(entities)
	if !reflect.DeepEqual(ids(f), ids(Build(entities))) {
		t.Errorf("BuildWithReport roots differ from Build")
	}

	if want := []OrphanPromoted{{ID: "c", ParentID: "z"}}; !reflect.DeepEqual(rep.Orphans, want) {
		t.Errorf("Orphans = %v, want %v", rep.Orphans, want)
	}
	if want := []DuplicateID{{ID: "d", Count: 2}}; !reflect.DeepEqual(rep.Duplicates, want) {
		t.Errorf("Duplicates = %v, want %v", rep.Duplicates, want)
	}
	if want := []string{"x", "y", "w"}; !reflect.DeepEqual(rep.Unreachable, want) {
		t.Errorf("Unreachable = %v, want %v", rep.Unreachable, want)
	}
	if rep.Empty() {
		t.Error("Empty() = true, want false")
	}
	if got := len(rep.Warnings()); got != 5 {
		t.Errorf("Warnings() has %d lines, want 5", got)
	}

	_, clean := BuildWithReport([]Entity{{ID: "a"}, {ID: "b", ParentID: "a"}})
	if !clean.Empty() {
		t.Errorf("clean input produced report %+v", clean)
	}
}

func TestForestHelpers(t *testing.T) {
	f := Build([]Entity{
		{ID: "i1", Kind: "initiative"},
		{ID: "f1", ParentID: "i1", Kind: "feature"},
		{ID: "s1", ParentID: "f1", Kind: "story"},
		{ID: "f2", ParentID: "i1", Kind: "feature"},
		{ID: "i2", Kind: "initiative"},
	})

	if f.Depth() != 3 {
		t.Errorf("Depth() = %d, want 3", f.Depth())
	}
	if f.Find("s1") == nil || f.Find("missing") != nil {
		t.Error("Find returned unexpected result")
	}

	levels := f.Levels()
	want := [][]string{{"i1", "i2"}, {"f1", "f2"}, {"s1"}}
	for i, lvl := range levels {
		if !reflect.DeepEqual(ids(lvl), want[i]) {
			t.Errorf("level %d = %v, want %v", i, ids(lvl), want[i])
		}
	}

	var visited []string
	f.Walk(func(n *Node, _ int) bool {
		visited = append(visited, n.ID)
		return n.Kind != "feature"
	})
	if !reflect.DeepEqual(visited, []string{"i1", "f1", "f2", "i2"}) {
		t.Errorf("Walk with pruning visited %v", visited)
	}

	flat := f.Flatten()
	if len(flat) != 5 || flat[0].ID != "i1" || flat[2].ID != "s1" {
		t.Errorf("Flatten() = %v", flat)
	}
	again := Build(flat)
	if !reflect.DeepEqual(again, f) {
		t.Error("Build(Flatten()) should reproduce the forest")
	}

	f.SetExpanded(1)
	if !f[0].Expanded || f[1].Expanded || f[0].Children[0].Expanded {
		t.Error("SetExpanded(1) should expand only roots with children")
	}
}

func TestRenderTree(t *testing.T) {
	f := Build([]Entity{
		{ID: "a", Name: "Checkout", Kind: "feature"},
		{ID: "b", Name: "Payment form", ParentID: "a", Kind: "story"},
		{ID: "c", ParentID: "z"},
	})

	out := RenderTree(f)
	for _, want := range []string{"Checkout", "Payment form", "(c)"} {
		if !strings.Contains(out, want) {
			t.Errorf("RenderTree() missing %q:\n%s", want, out)
		}
	}
	if RenderTree(nil) != "" {
		t.Error("RenderTree(nil) should be empty")
	}
}

func TestToDOT(t *testing.T) {
	f := Build([]Entity{
		{ID: "a", Name: "Checkout", Kind: "feature"},
		{ID: "b", ParentID: "a"},
	})

	dot := ToDOT(f)
	for _, want := range []string{
		"digraph hierarchy {",
		`"a" [label="Checkout", fillcolor="#DBEAFE"];`,
		`"b" [label="b"];`,
		`"a" -> "b";`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("ToDOT() missing %q:\n%s", want, dot)
		}
	}
}
