package cfg

import (
	"gonum.org/v1/gonum/graph/encoding/dot"
)

// DOT returns the Graphviz serialization of the graph: one statement per node
// carrying its label, with shape=box on Condition nodes, and one statement
// per edge including parallel edges.
func (g *Graph) DOT() ([]byte, error) {
	return dot.MarshalMulti(g.g, "cfg", "", "    ")
}

// String returns the DOT serialization, or the marshal error text.
func (g *Graph) String() string {
	b, err := g.DOT()
	if err != nil {
		return "error: " + err.Error()
	}
	return string(b)
}
