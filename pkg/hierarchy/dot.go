package hierarchy

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"
)

var dotFill = map[string]string{
	"initiative": "#EDE9FE",
	"product":    "#EDE9FE",
	"component":  "#DBEAFE",
	"feature":    "#DBEAFE",
	"subfeature": "#CFFAFE",
	"story":      "#DCFCE7",
}

// ToDOT converts a forest to Graphviz DOT, one edge per parent-child link.
// The result can be rendered with [RenderSVG].
func ToDOT(f Forest) string {
	var buf bytes.Buffer
	buf.WriteString("digraph hierarchy {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=12];\n")
	buf.WriteString("\n")

	var edges []string
	f.Walk(func(n *Node, _ int) bool {
		fmt.Fprintf(&buf, "  %q [%s];\n", n.ID, strings.Join(dotAttrs(n), ", "))
		for _, c := range n.Children {
			edges = append(edges, fmt.Sprintf("  %q -> %q;\n", n.ID, c.ID))
		}
		return true
	})

	if len(edges) > 0 {
		buf.WriteString("\n")
		for _, e := range edges {
			buf.WriteString(e)
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func dotAttrs(n *Node) []string {
	label := n.Name
	if label == "" {
		label = n.ID
	}
	attrs := []string{fmt.Sprintf("label=%q", label)}
	if fill, ok := dotFill[n.Kind]; ok {
		attrs = append(attrs, fmt.Sprintf("fillcolor=%q", fill))
	}
	return attrs
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
