package interp

import (
	"github.com/chazu/amalgraph/graph"
	"github.com/chazu/amalgraph/opcode"
)

func init() {
	register(opcode.Merge, opMerge)
	register(opcode.MergeToUnique, opMergeToUnique)
}

// mergeNodes unions two trees: assocs merge per key (recursing on shared
// keys), lists merge element-wise with the longer tail carried over, and
// for scalars the first non-null value wins.
func (ip *Interpreter) mergeNodes(a, b *graph.Node) *graph.Node {
	if a == nil || a.Kind == opcode.Null {
		return b
	}
	if b == nil || b.Kind == opcode.Null {
		return a
	}
	if a.Kind != b.Kind {
		return a
	}
	switch a.Kind {
	case opcode.Associative:
		r := ip.allocAssoc()
		if r.Node == nil {
			return nil
		}
		for k, av := range a.Mapped {
			ip.Pool.Retain(k)
			if bv, shared := b.Mapped[k]; shared {
				r.Node.Mapped[k] = ip.mergeNodes(av, bv)
			} else {
				r.Node.Mapped[k] = av
			}
		}
		for k, bv := range b.Mapped {
			if _, shared := a.Mapped[k]; !shared {
				ip.Pool.Retain(k)
				r.Node.Mapped[k] = bv
			}
		}
		return r.Node
	case opcode.List:
		r := ip.Manager.Alloc(opcode.List)
		if r == nil {
			return nil
		}
		longest := max(len(a.Ordered), len(b.Ordered))
		for i := 0; i < longest; i++ {
			var av, bv *graph.Node
			if i < len(a.Ordered) {
				av = a.Ordered[i]
			}
			if i < len(b.Ordered) {
				bv = b.Ordered[i]
			}
			r.Node.Ordered = append(r.Node.Ordered, ip.mergeNodes(av, bv))
		}
		return r.Node
	default:
		return a
	}
}

func opMerge(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	var result *graph.Node
	for _, c := range n.Ordered {
		r := ip.interpretNode(c, false)
		result = ip.mergeNodes(result, r.Node)
	}
	return graph.Ref{Node: result, Unique: false}
}

// opMergeToUnique is merge followed by a deep copy, so the caller owns a
// mutable tree with no aliases into the inputs.
func opMergeToUnique(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	merged := opMerge(ip, n, false)
	if merged.Node == nil {
		return graph.Null
	}
	return graph.Ref{Node: ip.deepCopy(merged.Node), Unique: true}
}
