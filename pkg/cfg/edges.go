package cfg

import "github.com/l3aro/pycfg/pkg/pyast"

// direction selects how connectChildren orients its edges.
type direction int

const (
	childToParent direction = iota // child -> parent
	parentToChild                  // parent -> child
)

// createAndConnect inserts a node and an edge parent -> node.
func (g *Graph) createAndConnect(parent NodeID, kind NodeKind, text string, stmts []pyast.Stmt) NodeID {
	n := g.addNode(kind, text, stmts)
	g.addEdge(parent, n)
	return n
}

// connectChildren wires every child to parent in the given direction.
func (g *Graph) connectChildren(parent NodeID, children []NodeID, dir direction) {
	for _, child := range children {
		if dir == parentToChild {
			g.addEdge(parent, child)
		} else {
			g.addEdge(child, parent)
		}
	}
}

// connectWithMerge collapses sources onto dst. No sources leaves the graph
// untouched and one source is wired directly; both return dst. Several
// sources feed a new Merge node which is wired to dst and returned.
func (g *Graph) connectWithMerge(sources []NodeID, dst NodeID) NodeID {
	switch len(sources) {
	case 0:
		return dst
	case 1:
		g.addEdge(sources[0], dst)
		return dst
	}
	merge := g.addNode(KindMerge, LabelMerge, nil)
	g.connectChildren(merge, sources, childToParent)
	g.addEdge(merge, dst)
	return merge
}
