// Package cfg builds control flow graphs (CFGs) from Python statement lists.
// It provides the graph model, the builder, and DOT, image and snapshot output.
package cfg

import (
	"fmt"

	"gonum.org/v1/gonum/graph/encoding"

	"github.com/l3aro/pycfg/pkg/pyast"
)

// NodeKind represents the kind of a CFG node.
type NodeKind string

const (
	KindStatement NodeKind = "statement" // Basic block of simple statements, loop header or entry
	KindCondition NodeKind = "condition" // Boolean test or loop branch outcome
	KindMerge     NodeKind = "merge"     // Synthetic reconvergence point
)

// Fixed labels of synthetic nodes.
const (
	LabelEntry = "entry"
	LabelMerge = "merge"
	LabelTrue  = "True"
	LabelFalse = "False"
)

// NodeID is the arena index of a node in its Graph.
type NodeID int64

// Node is a vertex of the CFG. Nodes are created by the Graph and are not
// modified after insertion.
type Node struct {
	id    NodeID
	kind  NodeKind
	text  string
	stmts []pyast.Stmt
	start int
	end   int
}

// ID implements gonum's graph.Node.
func (n *Node) ID() int64 { return int64(n.id) }

// Handle returns the node's arena index.
func (n *Node) Handle() NodeID { return n.id }

// Kind returns the node kind.
func (n *Node) Kind() NodeKind { return n.kind }

// Text returns the display label.
func (n *Node) Text() string { return n.text }

// Stmts returns the source statements this node summarizes. Synthetic nodes
// have none.
func (n *Node) Stmts() []pyast.Stmt {
	out := make([]pyast.Stmt, len(n.stmts))
	copy(out, n.stmts)
	return out
}

// Lines returns the first and last source line covered by the node, or
// (0, 0) for synthetic nodes.
func (n *Node) Lines() (start, end int) { return n.start, n.end }

// DOTID implements gonum's dot.Node.
func (n *Node) DOTID() string { return fmt.Sprintf("n%d", n.id) }

// Attributes implements gonum's encoding.Attributer. Condition nodes are
// drawn as boxes; other kinds carry only their label.
func (n *Node) Attributes() []encoding.Attribute {
	attrs := []encoding.Attribute{{Key: "label", Value: n.text}}
	if n.kind == KindCondition {
		attrs = append(attrs, encoding.Attribute{Key: "shape", Value: "box"})
	}
	return attrs
}

func (n *Node) String() string { return n.text }

// Edge is a directed control transfer between two nodes.
type Edge struct {
	From NodeID `json:"from" msgpack:"from"`
	To   NodeID `json:"to" msgpack:"to"`
}

// Stats summarizes a graph.
type Stats struct {
	Nodes                int `json:"nodes" msgpack:"nodes"`
	Statements           int `json:"statements" msgpack:"statements"`
	Conditions           int `json:"conditions" msgpack:"conditions"`
	Merges               int `json:"merges" msgpack:"merges"`
	Edges                int `json:"edges" msgpack:"edges"`
	CyclomaticComplexity int `json:"cyclomatic_complexity" msgpack:"cyclomatic_complexity"`
}
