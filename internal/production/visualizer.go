package production

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/comalice/fractalx"
	"github.com/comalice/fractalx/internal/primitives"
)

// DefaultVisualizer renders component trees as Graphviz DOT or JSON.
type DefaultVisualizer struct{}

// ExportDOT generates Graphviz DOT source for the tree. Components with
// children become clusters; leaves are boxes labelled with their inputs.
func (v *DefaultVisualizer) ExportDOT(tree fractalx.TreeNode) string {
	var buf bytes.Buffer
	buf.WriteString(`digraph Components {
  rankdir=TB;
  node [shape=box, fontsize=10, style=rounded];
  edge [fontsize=9];
`)

	renderNode(&buf, tree, "  ")
	for _, edge := range collectEdges(tree) {
		buf.WriteString(fmt.Sprintf("  %q -> %q;\n", edge.From, edge.To))
	}

	buf.WriteString("}\n")
	return buf.String()
}

// ExportJSON serializes the tree to indented JSON.
func (v *DefaultVisualizer) ExportJSON(tree fractalx.TreeNode) ([]byte, error) {
	return json.MarshalIndent(tree, "", "  ")
}

// Edge is a parent to child link.
type Edge struct {
	From string
	To   string
}

// collectEdges collects every parent to child edge, depth first.
func collectEdges(tree fractalx.TreeNode) []Edge {
	nodes := primitives.PreOrder(tree, func(n fractalx.TreeNode) []fractalx.TreeNode { return n.Children })
	edges := make([]Edge, 0, len(nodes)-1)
	for _, node := range nodes[1:] {
		edges = append(edges, Edge{From: fractalx.ParentID(node.ID), To: node.ID})
	}
	return edges
}

func nodeLabel(node fractalx.TreeNode) string {
	label := node.Name
	if len(node.Inputs) > 0 {
		label += `\n` + strings.Join(node.Inputs, ", ")
	}
	return label
}

// renderNode recursively renders nodes and clusters.
func renderNode(buf *bytes.Buffer, node fractalx.TreeNode, indent string) {
	style := ""
	if len(node.Interfaces) > 0 {
		style = ` style="rounded,filled" fillcolor=lightblue`
	}
	if len(node.Children) == 0 {
		buf.WriteString(fmt.Sprintf("%s%q [label=\"%s\"%s];\n", indent, node.ID, nodeLabel(node), style))
		return
	}

	clusterID := "cluster_" + strings.ReplaceAll(node.ID, fractalx.Separator, "_")
	buf.WriteString(fmt.Sprintf("%ssubgraph %s {\n", indent, clusterID))
	buf.WriteString(fmt.Sprintf("%s  label=%q;\n", indent, node.ID))
	buf.WriteString(fmt.Sprintf("%s  %q [label=\"%s\" shape=ellipse%s];\n", indent, node.ID, nodeLabel(node), style))
	for _, child := range node.Children {
		renderNode(buf, child, indent+"  ")
	}
	buf.WriteString(indent + "}\n")
}
