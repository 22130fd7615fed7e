package hierarchy

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"
)

var (
	enumeratorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")).MarginRight(1)
	idStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	kindStyles = map[string]lipgloss.Style{
		"initiative": lipgloss.NewStyle().Foreground(lipgloss.Color("#A855F7")).Bold(true),
		"product":    lipgloss.NewStyle().Foreground(lipgloss.Color("#A855F7")).Bold(true),
		"component":  lipgloss.NewStyle().Foreground(lipgloss.Color("#3B82F6")),
		"feature":    lipgloss.NewStyle().Foreground(lipgloss.Color("#3B82F6")),
		"subfeature": lipgloss.NewStyle().Foreground(lipgloss.Color("#06B6D4")),
		"story":      lipgloss.NewStyle().Foreground(lipgloss.Color("#22C55E")),
	}
)

// RenderTree draws the forest as an indented terminal tree.
func RenderTree(f Forest) string {
	if len(f) == 0 {
		return ""
	}
	t := tree.New().
		Enumerator(tree.RoundedEnumerator).
		EnumeratorStyle(enumeratorStyle)
	for _, n := range f {
		t.Child(subtree(n))
	}
	return t.String()
}

func subtree(n *Node) any {
	label := nodeLabel(n)
	if len(n.Children) == 0 {
		return label
	}
	t := tree.Root(label).
		Enumerator(tree.RoundedEnumerator).
		EnumeratorStyle(enumeratorStyle)
	for _, c := range n.Children {
		t.Child(subtree(c))
	}
	return t
}

func nodeLabel(n *Node) string {
	name := n.Name
	if name == "" {
		name = n.ID
	}
	if style, ok := kindStyles[n.Kind]; ok {
		name = style.Render(name)
	}
	return fmt.Sprintf("%s %s", name, idStyle.Render("("+n.ID+")"))
}
