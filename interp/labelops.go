package interp

import (
	"strings"

	"github.com/chazu/amalgraph/graph"
	"github.com/chazu/amalgraph/opcode"
)

// PrivateLabelSigil marks a label as private to its entity: the first
// label on a node beginning with this prefix is not visible through
// cross-entity calls.
const PrivateLabelSigil = "!"

func init() {
	register(opcode.GetLabels, opGetLabels)
	register(opcode.SetLabels, opSetLabels)
	register(opcode.GetComments, opGetComments)
	register(opcode.SetComments, opSetComments)
	register(opcode.GetConcurrency, opGetConcurrency)
	register(opcode.SetConcurrency, opSetConcurrency)
	register(opcode.GetNeedCycleCheck, opGetNeedCycleCheck)
	register(opcode.SetNeedCycleCheck, opSetNeedCycleCheck)
}

// PrivateLabel reports whether name is reserved as entity-private.
func PrivateLabel(name string) bool {
	return strings.HasPrefix(name, PrivateLabelSigil)
}

func opGetLabels(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	r := ip.interpretNode(child(n, 0), false)
	out := ip.allocList()
	if r.Node == nil || out.Node == nil {
		return out
	}
	for _, l := range r.Node.Labels {
		ip.Pool.Retain(l)
		s := ip.Manager.AllocWithReferenceHandoff(opcode.String, l)
		if s == nil {
			return graph.Null
		}
		out.Node.Ordered = append(out.Node.Ordered, s.Node)
	}
	return out
}

// opSetLabels replaces the labels on its target and reindexes the
// entity's label index for each changed name.
func opSetLabels(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	target := ip.uniqueCopy(ip.interpretNode(child(n, 0), false))
	if target.Node == nil {
		return graph.Null
	}
	labelsArg := ip.interpretNode(child(n, 1), false)
	for _, old := range target.Node.Labels {
		ip.Entity.ReindexLabel(old, nil)
		ip.Pool.Release(old)
	}
	target.Node.Labels = nil
	if labelsArg.Node != nil && labelsArg.Node.Kind == opcode.List {
		for _, c := range labelsArg.Node.Ordered {
			ok, name := ip.InterpretIntoString(c)
			if !ok {
				continue
			}
			id := ip.Pool.Intern(name)
			target.Node.Labels = append(target.Node.Labels, id)
			ip.Entity.ReindexLabel(id, target.Node)
		}
	}
	return target
}

func opGetComments(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	r := ip.interpretNode(child(n, 0), false)
	if r.Node == nil {
		return ip.allocString("")
	}
	comment := r.Node.Comment
	ip.Manager.FreeNodeTreeIfPossible(r)
	return ip.allocString(comment)
}

func opSetComments(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	target := ip.uniqueCopy(ip.interpretNode(child(n, 0), false))
	if target.Node == nil {
		return graph.Null
	}
	if ok, comment := ip.InterpretIntoString(child(n, 1)); ok {
		target.Node.Comment = comment
	}
	return target
}

func opGetConcurrency(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	r := ip.interpretNode(child(n, 0), false)
	result := r.Node != nil && r.Node.ConcurrencyRequested
	ip.Manager.FreeNodeTreeIfPossible(r)
	return ip.allocBool(result)
}

func opSetConcurrency(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	target := ip.uniqueCopy(ip.interpretNode(child(n, 0), false))
	if target.Node == nil {
		return graph.Null
	}
	target.Node.ConcurrencyRequested = ip.InterpretIntoBool(child(n, 1), true)
	return target
}

func opGetNeedCycleCheck(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	r := ip.interpretNode(child(n, 0), false)
	result := r.Node != nil && r.Node.NeedCycleCheck
	ip.Manager.FreeNodeTreeIfPossible(r)
	return ip.allocBool(result)
}

// opSetNeedCycleCheck can set the flag but never clear it on a shared
// node: a false negative breaks the collector, a false positive only
// costs a redundant descent.
func opSetNeedCycleCheck(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	target := ip.uniqueCopy(ip.interpretNode(child(n, 0), false))
	if target.Node == nil {
		return graph.Null
	}
	want := ip.InterpretIntoBool(child(n, 1), true)
	if want || target.Unique {
		target.Node.NeedCycleCheck = want
	}
	return target
}
