package interp

import (
	"github.com/chazu/amalgraph/graph"
	"github.com/chazu/amalgraph/opcode"
)

// Leaf values evaluate to themselves; list and assoc are constructors
// that evaluate their children into a fresh collection, and a symbol
// resolves through the call stack.
func init() {
	selfEval := func(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
		return graph.Ref{Node: n, Unique: false}
	}
	for _, k := range []opcode.Kind{
		opcode.Null, opcode.True, opcode.False, opcode.Number, opcode.String,
	} {
		register(k, selfEval)
	}
	register(opcode.Symbol, opSymbol)
	register(opcode.List, opListConstruct)
	register(opcode.Associative, opAssocConstruct)
}

func opSymbol(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	if slot, _, ok := ip.GetCallStackSymbol(n.Sym, true, true); ok {
		return graph.Ref{Node: slot, Unique: false}
	}
	return graph.Null
}

func opListConstruct(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	if len(n.Ordered) == 0 && len(n.Mapped) == 0 {
		return graph.Ref{Node: n, Unique: false}
	}
	out := ip.Manager.Alloc(opcode.List)
	if out == nil {
		return graph.Null
	}
	unique := true
	out.Node.Ordered = make([]*graph.Node, 0, len(n.Ordered))
	for _, c := range n.Ordered {
		r := ip.interpretNode(c, false)
		unique = unique && (r.Unique || r.Node == nil)
		out.Node.Ordered = append(out.Node.Ordered, r.Node)
		if r.Node != nil && r.Node.NeedCycleCheck {
			out.Node.NeedCycleCheck = true
		}
	}
	return graph.Ref{Node: out.Node, Unique: unique}
}

// opAssocConstruct handles both shapes an assoc node can arrive in: a
// Mapped literal (evaluate each value in place) and an Ordered list of
// alternating key/value arguments, the surface form (assoc "x" 10 "y" 20).
func opAssocConstruct(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	out := ip.Manager.Alloc(opcode.Associative)
	if out == nil {
		return graph.Null
	}
	out.Node.Mapped = make(map[uint32]*graph.Node, len(n.Mapped)+len(n.Ordered)/2)
	unique := true

	for k, v := range n.Mapped {
		r := ip.interpretNode(v, false)
		unique = unique && (r.Unique || r.Node == nil)
		ip.Pool.Retain(k)
		out.Node.Mapped[k] = r.Node
	}
	for i := 0; i+1 < len(n.Ordered); i += 2 {
		kid := ip.InterpretIntoStringIDWithReference(n.Ordered[i])
		r := ip.interpretNode(n.Ordered[i+1], false)
		unique = unique && (r.Unique || r.Node == nil)
		out.Node.Mapped[kid] = r.Node
	}
	return graph.Ref{Node: out.Node, Unique: unique}
}
