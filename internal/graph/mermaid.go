package graph

import (
	"fmt"
	"strings"
)

// Mermaid renders the graph as a mermaid flowchart. Conditional edges are
// dotted; nodes that pause the graph are marked with a trailing "⏸".
func (g *Graph) Mermaid() string {
	var sb strings.Builder
	sb.WriteString("graph TD;\n")
	fmt.Fprintf(&sb, "\t%s([%s]);\n", Start, Start)
	for _, name := range g.order {
		label := name
		if g.interruptBefore[name] {
			label += " ⏸"
		}
		fmt.Fprintf(&sb, "\t%s(%s);\n", name, label)
	}
	fmt.Fprintf(&sb, "\t%s([%s]);\n", End, End)

	from := append([]string{Start}, g.order...)
	for _, f := range from {
		if to, ok := g.edges[f]; ok {
			fmt.Fprintf(&sb, "\t%s --> %s;\n", f, to)
			continue
		}
		br, ok := g.branches[f]
		if !ok {
			continue
		}
		if br.targets == nil {
			fmt.Fprintf(&sb, "\t%%%% %s may route to any node\n", f)
			continue
		}
		for _, t := range sortedKeys(br.targets) {
			fmt.Fprintf(&sb, "\t%s -.-> %s;\n", f, t)
		}
	}
	return sb.String()
}
