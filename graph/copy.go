package graph

// CopyTree clones a subtree into this arena, preserving shared
// substructure and cycles. Source and destination may be different
// managers as long as they share an intern pool; every copied label and
// string payload takes its own refcount. Returns nil when the node
// budget soft-aborts mid-copy.
func (m *Manager) CopyTree(n *Node) *Node {
	return m.copyTreeSeen(n, make(map[*Node]*Node))
}

func (m *Manager) copyTreeSeen(n *Node, seen map[*Node]*Node) *Node {
	if n == nil {
		return nil
	}
	if c, ok := seen[n]; ok {
		return c
	}
	r := m.Alloc(n.Kind)
	if r == nil {
		return nil
	}
	c := r.Node
	seen[n] = c
	c.Num = n.Num
	if n.Str != 0 {
		m.Pool.Retain(n.Str)
		c.Str = n.Str
	}
	if n.Sym != 0 {
		m.Pool.Retain(n.Sym)
		c.Sym = n.Sym
	}
	if len(n.Labels) > 0 {
		c.Labels = append([]uint32(nil), n.Labels...)
		for _, l := range c.Labels {
			m.Pool.Retain(l)
		}
	}
	c.Comment = n.Comment
	c.NeedCycleCheck = n.NeedCycleCheck
	c.Idempotent = n.Idempotent
	c.ConcurrencyRequested = n.ConcurrencyRequested
	if n.Ordered != nil {
		c.Ordered = make([]*Node, len(n.Ordered))
		for i, child := range n.Ordered {
			c.Ordered[i] = m.copyTreeSeen(child, seen)
		}
	}
	if n.Mapped != nil {
		c.Mapped = make(map[uint32]*Node, len(n.Mapped))
		for k, child := range n.Mapped {
			m.Pool.Retain(k)
			c.Mapped[k] = m.copyTreeSeen(child, seen)
		}
	}
	return c
}
