package vtree

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"
)

// ToDOT returns a Graphviz DOT representation of the tree.
//
// Element nodes are drawn as boxes labeled with the tag and attributes; text
// nodes as plain ellipses labeled with their (truncated) text. Node names are
// the child-index paths used by patches, so a patch can be located on the
// drawing directly.
func ToDOT(n *Node) string {
	var buf bytes.Buffer
	buf.WriteString("digraph vtree {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [fontsize=14, margin=\"0.15,0.05\"];\n")
	buf.WriteString("\n")
	if n != nil {
		writeDOT(&buf, n, nil)
	}
	buf.WriteString("}\n")
	return buf.String()
}

func writeDOT(buf *bytes.Buffer, n *Node, path []int) {
	id := "/" + joinPath(path)
	if n.Kind == TextNode {
		fmt.Fprintf(buf, "  %q [label=%q, shape=ellipse, style=dashed];\n", id, truncate(n.Text, 32))
		return
	}
	fmt.Fprintf(buf, "  %q [label=%q, shape=box, style=rounded];\n", id, elementLabel(n))
	for i, c := range n.Children {
		childPath := append(append([]int{}, path...), i)
		fmt.Fprintf(buf, "  %q -> %q;\n", id, "/"+joinPath(childPath))
		writeDOT(buf, c, childPath)
	}
}

func elementLabel(n *Node) string {
	if len(n.Attrs) == 0 {
		return "<" + n.Tag + ">"
	}
	parts := make([]string, 0, len(n.Attrs))
	for _, a := range n.Attrs {
		parts = append(parts, fmt.Sprintf("%s=%s", a.Name, truncate(a.Value, 24)))
	}
	return "<" + n.Tag + ">\n" + strings.Join(parts, "\n")
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(dot string) ([]byte, error) {
	ctx := context.Background()
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
