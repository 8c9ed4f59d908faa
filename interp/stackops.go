package interp

import (
	"github.com/chazu/amalgraph/graph"
	"github.com/chazu/amalgraph/opcode"
)

func init() {
	register(opcode.Target, opTarget)
	register(opcode.CurrentIndex, opCurrentIndex)
	register(opcode.CurrentValue, opCurrentValue)
	register(opcode.PreviousResult, opPreviousResult)
	register(opcode.OpcodeStackOp, opOpcodeStack)
	register(opcode.StackOp, opStack)
	register(opcode.Args, opArgs)
}

// constructionAt returns the construction entry addressed by an optional
// depth argument (0 = innermost).
func constructionAt(ip *Interpreter, n *graph.Node) (*ConstructionEntry, bool) {
	depth := 0
	if c := child(n, 0); c != nil {
		depth = int(ip.InterpretIntoNumber(c))
	}
	k := len(ip.Construction.Entries)
	if depth < 0 || depth >= k {
		return nil, false
	}
	return &ip.Construction.Entries[k-1-depth], true
}

func opTarget(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	if e, ok := constructionAt(ip, n); ok {
		return graph.Ref{Node: e.Target, Unique: false}
	}
	return graph.Null
}

func opCurrentIndex(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	e, ok := constructionAt(ip, n)
	if !ok {
		return graph.Null
	}
	if e.HasKey {
		ip.Pool.Retain(e.Key)
		r := ip.Manager.AllocWithReferenceHandoff(opcode.String, e.Key)
		if r == nil {
			return graph.Null
		}
		return *r
	}
	return ip.allocNumber(float64(e.Index))
}

func opCurrentValue(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	if e, ok := constructionAt(ip, n); ok {
		return e.CurrentValue.Downgrade()
	}
	return graph.Null
}

func opPreviousResult(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	if e, ok := constructionAt(ip, n); ok {
		return e.PreviousResult.Downgrade()
	}
	return graph.Null
}

// opOpcodeStack snapshots the nodes currently under evaluation, oldest
// first, excluding this opcode itself.
func opOpcodeStack(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	nodes := ip.Opcode.Nodes
	if k := len(nodes); k > 0 && nodes[k-1] == n {
		nodes = nodes[:k-1]
	}
	out := ip.Manager.Alloc(opcode.List)
	if out == nil {
		return graph.Null
	}
	out.Node.Ordered = append([]*graph.Node(nil), nodes...)
	out.Node.NeedCycleCheck = true
	return graph.Ref{Node: out.Node, Unique: false}
}

func opStack(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	out := ip.Manager.Alloc(opcode.List)
	if out == nil {
		return graph.Null
	}
	out.Node.Ordered = append([]*graph.Node(nil), ip.Call.Frames...)
	out.Node.NeedCycleCheck = true
	return graph.Ref{Node: out.Node, Unique: false}
}

// opArgs returns the topmost call frame (optionally an outer one by depth).
func opArgs(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	depth := 0
	if c := child(n, 0); c != nil {
		depth = int(ip.InterpretIntoNumber(c))
	}
	k := len(ip.Call.Frames)
	if depth < 0 || depth >= k {
		return graph.Null
	}
	return graph.Ref{Node: ip.Call.Frames[k-1-depth], Unique: false}
}
