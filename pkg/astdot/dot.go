// Package astdot renders a raw astree.Node tree as Graphviz DOT for the
// "semantic" CLI tool. Unlike pkg/cfg's DOT exporter, this one reads the
// AST directly and imposes no shape of its own beyond one node per AST
// node (a box for an interior node, an ellipse for a leaf) and one edge
// per parent-child link.
package astdot

import (
	"fmt"
	"strings"

	"github.com/ftagili/spo/pkg/astree"
)

// Render returns root's subtree as a single `digraph AST { ... }` document.
// Node identifiers are "n<k>" with k a monotonic counter assigned in
// pre-order traversal, matching the deterministic-output invariant shared
// by the rest of this backend.
func Render(root *astree.Node) string {
	var out strings.Builder
	out.WriteString("digraph AST {\n")
	counter := 0
	renderNode(&out, root, &counter)
	out.WriteString("}\n")
	return out.String()
}

func renderNode(out *strings.Builder, n *astree.Node, counter *int) int {
	id := *counter
	*counter++

	label := n.Label
	shape := "ellipse"
	if !n.IsLeaf() {
		shape = "box"
	}
	fmt.Fprintf(out, "  n%d [shape=%s,label=\"%s\"];\n", id, shape, escapeDOT(label))

	for _, c := range n.Children {
		childID := renderNode(out, c, counter)
		fmt.Fprintf(out, "  n%d -> n%d;\n", id, childID)
	}
	return id
}

func escapeDOT(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		"\n", `\n`,
		"\r", `\r`,
	)
	return r.Replace(s)
}
