package cfg

// OpenEnds records where control leaves a just-built statement list.
//
// Tail holds fall-through exits not yet connected downstream, Terminate the
// nodes that executed a break, and Continue the nodes that executed a
// continue. The zero value is the empty record and the identity for Merge.
type OpenEnds struct {
	Tail      []NodeID
	Terminate []NodeID
	Continue  []NodeID
}

// Merge returns the per-field set union of o and others. Neither operand
// is modified and the result shares no storage with them.
func (o OpenEnds) Merge(others ...OpenEnds) OpenEnds {
	out := OpenEnds{
		Tail:      union(nil, o.Tail),
		Terminate: union(nil, o.Terminate),
		Continue:  union(nil, o.Continue),
	}
	for _, other := range others {
		out.Tail = union(out.Tail, other.Tail)
		out.Terminate = union(out.Terminate, other.Terminate)
		out.Continue = union(out.Continue, other.Continue)
	}
	return out
}

// IsEmpty reports whether all three sets are empty.
func (o OpenEnds) IsEmpty() bool {
	return len(o.Tail) == 0 && len(o.Terminate) == 0 && len(o.Continue) == 0
}

// loopBack returns Tail ∪ Continue: the exits that return to a loop head.
func (o OpenEnds) loopBack() []NodeID {
	return union(union(nil, o.Tail), o.Continue)
}

// union appends the ids of b missing from a, keeping first-seen order.
func union(a, b []NodeID) []NodeID {
	if len(b) == 0 {
		return a
	}
	seen := make(map[NodeID]bool, len(a)+len(b))
	for _, id := range a {
		seen[id] = true
	}
	for _, id := range b {
		if !seen[id] {
			seen[id] = true
			a = append(a, id)
		}
	}
	return a
}
