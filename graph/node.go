// Package graph implements the node graph: tagged-variant nodes owned by
// a per-entity arena, allocated and swept by a Manager, addressed through
// Ref, an ownership token pairing a node pointer with a "unique" bit.
package graph

import "github.com/chazu/amalgraph/opcode"

// Kind re-exports opcode.Kind so callers that only touch the graph layer
// don't need to import the opcode package directly.
type Kind = opcode.Kind

// id identifies a node within its owning Manager's registry; it exists so
// the collector can enumerate and reclaim slots independently of whatever
// live pointers remain in the Go heap.
type id uint64

// Node is a tagged record: exactly one of its payload fields is
// meaningful, determined by Kind. Composite (opcode) kinds only use
// Ordered or Mapped, never Num/Str/Sym.
type Node struct {
	Kind Kind

	Num float64
	Str uint32 // interned string ID payload (leaf kind String)
	Sym uint32 // interned string ID payload (leaf kind Symbol)

	Ordered []*Node
	Mapped  map[uint32]*Node // key: interned string ID

	Labels  []uint32 // interned string IDs
	Comment string

	NeedCycleCheck       bool
	Idempotent           bool
	ConcurrencyRequested bool

	id      id
	marked  bool
	marking bool
}

// IsLeaf reports whether n is one of the leaf value kinds.
func (n *Node) IsLeaf() bool {
	switch n.Kind {
	case opcode.Null, opcode.True, opcode.False, opcode.Number,
		opcode.String, opcode.Symbol, opcode.List, opcode.Associative:
		return true
	default:
		return false
	}
}

// Ref is a node reference: a pointer paired with a uniqueness bit.
// Unique asserts no other reference currently reaches this subtree,
// licensing in-place mutation. Ref itself is a plain value type; the
// discipline lives in how Manager and the interpreter pass it around.
type Ref struct {
	Node   *Node
	Unique bool
}

// Null is the canonical empty reference. Null values that must carry
// labels or comments are allocated as Kind Null nodes instead.
var Null = Ref{}

// IsNull reports whether r carries no node (the Go-nil sentinel, distinct
// from a Node of Kind == opcode.Null, which is a real allocated null value).
func (r Ref) IsNull() bool {
	return r.Node == nil
}

// Downgrade returns a copy of r with Unique forced false. Any path that
// stores a node into a cycle-checked container, duplicates a reference,
// or returns from a pure/memoized path must downgrade.
func (r Ref) Downgrade() Ref {
	return Ref{Node: r.Node, Unique: false}
}
