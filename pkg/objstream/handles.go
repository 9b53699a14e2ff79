package objstream

// HandleTable maps handles to nodes in order of their first appearance.
type HandleTable struct {
	entries []Node
}

// Assign registers n under the next free handle and returns it.
func (t *HandleTable) Assign(n Node) Handle {
	t.entries = append(t.entries, n)
	return BaseHandle + Handle(len(t.entries)-1)
}

// Lookup returns the node registered under h.
func (t *HandleTable) Lookup(h Handle) (Node, bool) {
	if h < BaseHandle {
		return nil, false
	}
	i := uint64(h - BaseHandle)
	if i >= uint64(len(t.entries)) {
		return nil, false
	}
	return t.entries[i], true
}

// Reset drops all entries, numbering restarts from BaseHandle.
func (t *HandleTable) Reset() {
	t.entries = t.entries[:0]
}

// Len returns the number of registered handles.
func (t *HandleTable) Len() int {
	return len(t.entries)
}
