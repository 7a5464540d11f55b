package cfg

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Format names a snapshot encoding.
type Format string

const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

// SnapshotNode is the serializable form of a Node. Source statements are
// reduced to their line range.
type SnapshotNode struct {
	ID      NodeID   `json:"id" msgpack:"id"`
	Kind    NodeKind `json:"kind" msgpack:"kind"`
	Text    string   `json:"text" msgpack:"text"`
	Line    int      `json:"line,omitempty" msgpack:"line,omitempty"`
	EndLine int      `json:"end_line,omitempty" msgpack:"end_line,omitempty"`
}

// Snapshot is a serializable view of a Graph.
type Snapshot struct {
	Entry NodeID         `json:"entry" msgpack:"entry"`
	Nodes []SnapshotNode `json:"nodes" msgpack:"nodes"`
	Edges []Edge         `json:"edges" msgpack:"edges"`
	Stats Stats          `json:"stats" msgpack:"stats"`
}

// Snapshot returns the serializable view of g.
func (g *Graph) Snapshot() *Snapshot {
	s := &Snapshot{
		Entry: g.entry,
		Nodes: make([]SnapshotNode, len(g.nodes)),
		Edges: g.Edges(),
		Stats: g.Stats(),
	}
	for i, n := range g.nodes {
		s.Nodes[i] = SnapshotNode{ID: n.id, Kind: n.kind, Text: n.text, Line: n.start, EndLine: n.end}
	}
	return s
}

// Graph rebuilds a Graph from the snapshot. Nodes must be listed in id order
// starting at zero. The rebuilt nodes have no source statements.
func (s *Snapshot) Graph() (*Graph, error) {
	g := newGraph()
	for i, sn := range s.Nodes {
		if sn.ID != NodeID(i) {
			return nil, fmt.Errorf("snapshot node %d has id %d", i, sn.ID)
		}
		switch sn.Kind {
		case KindStatement, KindCondition, KindMerge:
		default:
			return nil, fmt.Errorf("snapshot node %d has unknown kind %q", i, sn.Kind)
		}
		id := g.addNode(sn.Kind, sn.Text, nil)
		g.nodes[id].start, g.nodes[id].end = sn.Line, sn.EndLine
	}
	if len(g.nodes) > 0 && g.Node(s.Entry) == nil {
		return nil, fmt.Errorf("snapshot entry %d out of range", s.Entry)
	}
	for _, e := range s.Edges {
		if g.Node(e.From) == nil || g.Node(e.To) == nil {
			return nil, fmt.Errorf("snapshot edge %d -> %d out of range", e.From, e.To)
		}
		g.addEdge(e.From, e.To)
	}
	g.entry = s.Entry
	return g, nil
}

// EncodeSnapshot serializes s in the given format.
func EncodeSnapshot(s *Snapshot, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.MarshalIndent(s, "", "  ")
	case FormatMsgpack:
		return msgpack.Marshal(s)
	default:
		return nil, fmt.Errorf("unknown snapshot format %q", format)
	}
}

// DecodeSnapshot parses data produced by EncodeSnapshot.
func DecodeSnapshot(data []byte, format Format) (*Snapshot, error) {
	var s Snapshot
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &s)
	case FormatMsgpack:
		err = msgpack.Unmarshal(data, &s)
	default:
		return nil, fmt.Errorf("unknown snapshot format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s snapshot: %w", format, err)
	}
	return &s, nil
}
