package interp

import (
	"github.com/chazu/amalgraph/graph"
	"github.com/chazu/amalgraph/intern"
	"github.com/chazu/amalgraph/opcode"
)

func init() {
	register(opcode.Let, opLet)
	register(opcode.Declare, opDeclare)
	register(opcode.Assign, opAssign)
	register(opcode.Accum, opAccum)
	register(opcode.Retrieve, opRetrieve)
	register(opcode.Get, opGet)
	register(opcode.Set, opSet)
	register(opcode.Replace, opReplace)
}

// opLet pushes a frame bound from its first (assoc) argument, evaluates
// the body left to right, pops the frame and returns the last value.
func opLet(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	ip.bindFrame(child(n, 0))
	var last graph.Ref
	for i, body := range rest(n) {
		if i > 0 {
			ip.Manager.FreeNodeTreeIfPossible(last)
		}
		last = ip.interpretNode(body, false)
		if ip.unwinding || ip.ExecutionResourcesExhausted() {
			break
		}
	}
	ip.Call.Pop()
	if ip.unwinding {
		return ip.clearUnwind()
	}
	return last
}

// opDeclare binds defaults into the topmost frame without overwriting
// bindings that already exist there.
func opDeclare(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	args := ip.interpretNode(child(n, 0), false)
	if args.Node != nil && args.Node.Mapped != nil {
		top := ip.Call.Frames[len(ip.Call.Frames)-1]
		for k, v := range args.Node.Mapped {
			if _, exists := top.Mapped[k]; !exists {
				top.Mapped[k] = v
			}
		}
	}
	var last graph.Ref
	for _, body := range rest(n) {
		ip.Manager.FreeNodeTreeIfPossible(last)
		last = ip.interpretNode(body, false)
		if ip.unwinding || ip.ExecutionResourcesExhausted() {
			break
		}
	}
	if ip.unwinding {
		return ip.clearUnwind()
	}
	return last
}

func opAssign(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	// (assign assoc) form: each pair becomes an assignment.
	if len(n.Ordered) == 1 {
		args := ip.interpretNode(child(n, 0), false)
		if args.Node != nil {
			for k, v := range args.Node.Mapped {
				if !ip.SetCallStackSymbol(k, graph.Ref{Node: v}) {
					ip.GetOrCreateCallStackSymbol(k, graph.Ref{Node: v})
				}
			}
		}
		return graph.Null
	}
	sid := ip.InterpretIntoStringIDWithReference(child(n, 0))
	if sid == intern.NotAString {
		return graph.Null
	}
	defer ip.Pool.Release(sid)
	value := ip.interpretNode(child(n, 1), false)
	if !ip.SetCallStackSymbol(sid, value.Downgrade()) {
		ip.GetOrCreateCallStackSymbol(sid, value.Downgrade())
	}
	return graph.Null
}

// accumulate merges addition into an existing value: numbers add, strings
// concatenate, lists append, assocs merge.
func (ip *Interpreter) accumulate(existing *graph.Node, addition graph.Ref) graph.Ref {
	if existing == nil {
		return addition
	}
	switch existing.Kind {
	case opcode.Number:
		v := existing.Num
		if addition.Node != nil {
			v += coerceNumber(addition.Node)
		}
		return ip.allocNumber(v)
	case opcode.String:
		s := ip.Pool.Name(existing.Str)
		if addition.Node != nil && addition.Node.Kind == opcode.String {
			s += ip.Pool.Name(addition.Node.Str)
		}
		return ip.allocString(s)
	case opcode.List:
		out := ip.uniqueCopy(graph.Ref{Node: existing})
		if out.Node == nil {
			return graph.Null
		}
		if addition.Node != nil && addition.Node.Kind == opcode.List {
			out.Node.Ordered = append(out.Node.Ordered, addition.Node.Ordered...)
		} else if addition.Node != nil {
			out.Node.Ordered = append(out.Node.Ordered, addition.Node)
		}
		return out.Downgrade()
	case opcode.Associative:
		out := ip.uniqueCopy(graph.Ref{Node: existing})
		if out.Node == nil {
			return graph.Null
		}
		if addition.Node != nil {
			for k, v := range addition.Node.Mapped {
				ip.Pool.Retain(k)
				out.Node.Mapped[k] = v
			}
		}
		return out.Downgrade()
	default:
		return addition
	}
}

func opAccum(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	sid := ip.InterpretIntoStringIDWithReference(child(n, 0))
	if sid == intern.NotAString {
		return graph.Null
	}
	defer ip.Pool.Release(sid)
	addition := ip.interpretNode(child(n, 1), false)

	slot, _, ok := ip.GetCallStackSymbol(sid, true, true)
	var merged graph.Ref
	if ok {
		merged = ip.accumulate(slot, addition)
	} else {
		merged = addition
	}
	if !ip.SetCallStackSymbol(sid, merged.Downgrade()) {
		ip.GetOrCreateCallStackSymbol(sid, merged.Downgrade())
	}
	return graph.Null
}

func opRetrieve(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	target := child(n, 0)
	if target == nil {
		return graph.Null
	}
	// (retrieve (list "a" "b")) returns a list of the looked-up values.
	ref := ip.interpretNode(target, false)
	if ref.Node == nil {
		return graph.Null
	}
	if ref.Node.Kind == opcode.List {
		out := ip.Manager.Alloc(opcode.List)
		if out == nil {
			return graph.Null
		}
		for _, c := range ref.Node.Ordered {
			if c == nil || c.Kind != opcode.String {
				out.Node.Ordered = append(out.Node.Ordered, nil)
				continue
			}
			slot, _, _ := ip.GetCallStackSymbol(c.Str, true, true)
			out.Node.Ordered = append(out.Node.Ordered, slot)
		}
		return graph.Ref{Node: out.Node, Unique: false}
	}
	if ref.Node.Kind != opcode.String {
		return graph.Null
	}
	slot, _, ok := ip.GetCallStackSymbol(ref.Node.Str, true, true)
	ip.Manager.FreeNodeTreeIfPossible(ref)
	if !ok {
		return graph.Null
	}
	return graph.Ref{Node: slot, Unique: false}
}

// opGet evaluates its first child and walks the remaining children as a
// path of indices (lists) and keys (assocs).
func opGet(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	target := ip.interpretNode(child(n, 0), false)
	if target.Node == nil || len(n.Ordered) < 2 {
		return target
	}
	path := ip.allocList(n.Ordered[1:]...)
	if path.Node == nil {
		return graph.Null
	}
	result := ip.TraverseToDestinationFromPathList(target.Downgrade(), path.Node, false)
	ip.Manager.FreeNode(path.Node)
	return result
}

// opSet returns a copy of its target with the node at path replaced by
// the evaluated value; when the target came back unique the mutation is
// done in place.
func opSet(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	target := ip.uniqueCopy(ip.interpretNode(child(n, 0), false))
	if target.Node == nil || len(n.Ordered) < 3 {
		return target
	}
	path := ip.allocList(n.Ordered[1 : len(n.Ordered)-1]...)
	if path.Node == nil {
		return graph.Null
	}
	slotParentPath := path.Node.Ordered[:len(path.Node.Ordered)-1]
	lastSeg := path.Node.Ordered[len(path.Node.Ordered)-1]

	parentPath := ip.allocList(slotParentPath...)
	parent := ip.TraverseToDestinationFromPathList(target, parentPath.Node, true)
	ip.Manager.FreeNode(parentPath.Node)
	ip.Manager.FreeNode(path.Node)
	if parent.Node == nil {
		return graph.Null
	}

	value := ip.interpretNode(n.Ordered[len(n.Ordered)-1], false)
	ip.storeAtSegment(parent.Node, lastSeg, value.Node)
	return target
}

// opReplace is set with the replacement computed from the old value: the
// final child is evaluated with a construction entry whose current value
// is the node being replaced, so (replace t p (lambda ...)) can reference
// it via current_value.
func opReplace(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	target := ip.uniqueCopy(ip.interpretNode(child(n, 0), false))
	if target.Node == nil || len(n.Ordered) < 3 {
		return target
	}
	pathSegs := n.Ordered[1 : len(n.Ordered)-1]
	lastSeg := pathSegs[len(pathSegs)-1]

	parentPath := ip.allocList(pathSegs[:len(pathSegs)-1]...)
	parent := ip.TraverseToDestinationFromPathList(target, parentPath.Node, true)
	ip.Manager.FreeNode(parentPath.Node)
	if parent.Node == nil {
		return graph.Null
	}

	old := ip.nodeAtSegment(parent.Node, lastSeg)
	fn := ip.interpretNode(n.Ordered[len(n.Ordered)-1], false)
	replacement := fn.Node
	if replacement != nil && !replacement.IsLeaf() {
		ip.Construction.Push(ConstructionEntry{
			Target:       parent.Node,
			CurrentValue: graph.Ref{Node: old},
		})
		r := ip.interpretNode(replacement, false)
		ip.Construction.Pop()
		replacement = r.Node
	}
	ip.storeAtSegment(parent.Node, lastSeg, replacement)
	return target
}

func (ip *Interpreter) nodeAtSegment(parent *graph.Node, seg *graph.Node) *graph.Node {
	if seg.Kind == opcode.Number && parent.Kind == opcode.List {
		return child(parent, int(seg.Num))
	}
	ok, key := ip.InterpretIntoString(seg)
	if !ok || parent.Mapped == nil {
		return nil
	}
	if id, exists := ip.Pool.Lookup(key); exists {
		return parent.Mapped[id]
	}
	return nil
}

func (ip *Interpreter) storeAtSegment(parent *graph.Node, seg *graph.Node, value *graph.Node) {
	if seg.Kind == opcode.Number && parent.Kind == opcode.List {
		idx := int(seg.Num)
		if idx < 0 {
			return
		}
		for len(parent.Ordered) <= idx {
			parent.Ordered = append(parent.Ordered, nil)
		}
		parent.Ordered[idx] = value
		return
	}
	ok, key := ip.InterpretIntoString(seg)
	if !ok {
		return
	}
	if parent.Mapped == nil {
		parent.Mapped = make(map[uint32]*graph.Node)
	}
	parent.Mapped[ip.Pool.Intern(key)] = value
}
