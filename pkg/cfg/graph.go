package cfg

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/multi"
	"gonum.org/v1/gonum/graph/traverse"

	"github.com/l3aro/pycfg/pkg/pyast"
)

// Graph is an append-only control flow graph. Nodes live in an arena and are
// addressed by NodeID; edges carry no payload and may repeat.
type Graph struct {
	g     *multi.DirectedGraph
	nodes []*Node
	edges []Edge
	entry NodeID
}

func newGraph() *Graph {
	return &Graph{g: multi.NewDirectedGraph()}
}

func (g *Graph) addNode(kind NodeKind, text string, stmts []pyast.Stmt) NodeID {
	n := &Node{
		id:    NodeID(len(g.nodes)),
		kind:  kind,
		text:  text,
		stmts: stmts,
	}
	if len(stmts) > 0 {
		n.start = stmts[0].Span().Line
		n.end = stmts[len(stmts)-1].Span().EndLine
	}
	g.nodes = append(g.nodes, n)
	g.g.AddNode(n)
	return n.id
}

func (g *Graph) addEdge(from, to NodeID) {
	g.g.SetLine(g.g.NewLine(g.nodes[from], g.nodes[to]))
	g.edges = append(g.edges, Edge{From: from, To: to})
}

// Entry returns the entry node. It has no incoming edges.
func (g *Graph) Entry() NodeID { return g.entry }

// Node returns the node with the given id, or nil if there is none.
func (g *Graph) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(g.nodes) {
		return nil
	}
	return g.nodes[id]
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Edges returns all edges in insertion order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// EdgeCount returns the number of edges, counting parallel edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// NodesOfKind returns the nodes of the given kind in insertion order.
func (g *Graph) NodesOfKind(kind NodeKind) []*Node {
	var out []*Node
	for _, n := range g.nodes {
		if n.kind == kind {
			out = append(out, n)
		}
	}
	return out
}

// FindByText returns the first node whose label equals text.
func (g *Graph) FindByText(text string) (*Node, bool) {
	for _, n := range g.nodes {
		if n.text == text {
			return n, true
		}
	}
	return nil, false
}

// Successors returns the distinct direct successors of id, ordered by id.
func (g *Graph) Successors(id NodeID) []NodeID {
	return sortedIDs(g.g.From(int64(id)))
}

// Predecessors returns the distinct direct predecessors of id, ordered by id.
func (g *Graph) Predecessors(id NodeID) []NodeID {
	return sortedIDs(g.g.To(int64(id)))
}

// InDegree counts incoming edges of id, including parallel edges.
func (g *Graph) InDegree(id NodeID) int {
	n := 0
	for _, p := range g.Predecessors(id) {
		n += g.g.Lines(int64(p), int64(id)).Len()
	}
	return n
}

// OutDegree counts outgoing edges of id, including parallel edges.
func (g *Graph) OutDegree(id NodeID) int {
	n := 0
	for _, s := range g.Successors(id) {
		n += g.g.Lines(int64(id), int64(s)).Len()
	}
	return n
}

// Reachable returns the set of nodes reachable from the entry node.
func (g *Graph) Reachable() map[NodeID]bool {
	seen := make(map[NodeID]bool, len(g.nodes))
	if len(g.nodes) == 0 {
		return seen
	}
	df := traverse.DepthFirst{
		Visit: func(n graph.Node) { seen[NodeID(n.ID())] = true },
	}
	df.Walk(g.g, g.nodes[g.entry], nil)
	return seen
}

// Validate checks that the entry node has no incoming edges and every other
// node has at least one.
func (g *Graph) Validate() error {
	if len(g.nodes) == 0 {
		return fmt.Errorf("graph has no entry node")
	}
	if d := g.InDegree(g.entry); d != 0 {
		return fmt.Errorf("entry node has %d incoming edges", d)
	}
	for _, n := range g.nodes {
		if n.id == g.entry {
			continue
		}
		if g.InDegree(n.id) == 0 {
			return fmt.Errorf("node %d (%s %q) has no incoming edges", n.id, n.kind, n.text)
		}
	}
	return nil
}

// Stats returns node and edge counts and the cyclomatic complexity E - N + 2.
func (g *Graph) Stats() Stats {
	s := Stats{Nodes: len(g.nodes), Edges: len(g.edges)}
	for _, n := range g.nodes {
		switch n.kind {
		case KindStatement:
			s.Statements++
		case KindCondition:
			s.Conditions++
		case KindMerge:
			s.Merges++
		}
	}
	if s.Nodes > 0 {
		s.CyclomaticComplexity = s.Edges - s.Nodes + 2
	}
	return s
}

func sortedIDs(it graph.Nodes) []NodeID {
	var ids []NodeID
	for it.Next() {
		ids = append(ids, NodeID(it.Node().ID()))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
