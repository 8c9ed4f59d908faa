package interp

import (
	"github.com/chazu/amalgraph/graph"
	"github.com/chazu/amalgraph/opcode"
)

// Allocation helpers shared by the handler families. All of them return
// the null reference on budget exhaustion so handlers can propagate the
// soft abort without extra checks.

func (ip *Interpreter) allocNumber(v float64) graph.Ref {
	r := ip.Manager.Alloc(opcode.Number)
	if r == nil {
		return graph.Null
	}
	r.Node.Num = v
	return *r
}

func (ip *Interpreter) allocString(s string) graph.Ref {
	id := ip.Pool.Intern(s)
	r := ip.Manager.AllocWithReferenceHandoff(opcode.String, id)
	if r == nil {
		ip.Pool.Release(id)
		return graph.Null
	}
	return *r
}

func (ip *Interpreter) allocBool(b bool) graph.Ref {
	k := opcode.False
	if b {
		k = opcode.True
	}
	r := ip.Manager.Alloc(k)
	if r == nil {
		return graph.Null
	}
	return *r
}

func (ip *Interpreter) allocList(children ...*graph.Node) graph.Ref {
	r := ip.Manager.Alloc(opcode.List)
	if r == nil {
		return graph.Null
	}
	r.Node.Ordered = children
	return *r
}

func (ip *Interpreter) allocAssoc() graph.Ref {
	r := ip.Manager.Alloc(opcode.Associative)
	if r == nil {
		return graph.Null
	}
	r.Node.Mapped = make(map[uint32]*graph.Node)
	return *r
}

// deepCopy clones a subtree into this interpreter's arena. The copy is
// unique by construction.
func (ip *Interpreter) deepCopy(n *graph.Node) *graph.Node {
	return ip.Manager.CopyTree(n)
}

// uniqueCopy returns a subtree the caller may mutate: the ref itself when
// already unique, a deep copy otherwise.
func (ip *Interpreter) uniqueCopy(r graph.Ref) graph.Ref {
	if r.Node == nil {
		return graph.Null
	}
	if r.Unique {
		return r
	}
	return graph.Ref{Node: ip.deepCopy(r.Node), Unique: true}
}

func truthy(n *graph.Node) bool {
	if n == nil {
		return false
	}
	switch n.Kind {
	case opcode.False, opcode.Null:
		return false
	case opcode.Number:
		return n.Num != 0
	default:
		return true
	}
}

// deepEqual compares two subtrees structurally, treating nil and an
// allocated Null node as equal.
func deepEqual(a, b *graph.Node) bool {
	return deepEqualSeen(a, b, make(map[[2]*graph.Node]bool))
}

func deepEqualSeen(a, b *graph.Node, seen map[[2]*graph.Node]bool) bool {
	if a == b {
		return true
	}
	aNull := a == nil || a.Kind == opcode.Null
	bNull := b == nil || b.Kind == opcode.Null
	if aNull || bNull {
		return aNull == bNull
	}
	if a.Kind != b.Kind {
		return false
	}
	key := [2]*graph.Node{a, b}
	if seen[key] {
		return true
	}
	seen[key] = true
	switch a.Kind {
	case opcode.Number:
		return a.Num == b.Num
	case opcode.String:
		return a.Str == b.Str
	case opcode.Symbol:
		return a.Sym == b.Sym
	}
	if len(a.Ordered) != len(b.Ordered) || len(a.Mapped) != len(b.Mapped) {
		return false
	}
	for i := range a.Ordered {
		if !deepEqualSeen(a.Ordered[i], b.Ordered[i], seen) {
			return false
		}
	}
	for k, av := range a.Mapped {
		bv, ok := b.Mapped[k]
		if !ok || !deepEqualSeen(av, bv, seen) {
			return false
		}
	}
	return true
}

// child returns the i'th ordered child of n, or nil.
func child(n *graph.Node, i int) *graph.Node {
	if i < 0 || i >= len(n.Ordered) {
		return nil
	}
	return n.Ordered[i]
}

// rest returns every ordered child after the first.
func rest(n *graph.Node) []*graph.Node {
	if len(n.Ordered) <= 1 {
		return nil
	}
	return n.Ordered[1:]
}
