package interp

import (
	"sort"

	"github.com/chazu/amalgraph/graph"
	"github.com/chazu/amalgraph/opcode"
)

func init() {
	register(opcode.ListSize, opSize)
	register(opcode.ListAppend, opAppend)
	register(opcode.ListGet, opNth)
	register(opcode.ListSet, opSetNth)
	register(opcode.ListIndexOf, opIndexOf)
	register(opcode.ListSlice, opSlice)
	register(opcode.Sort, opSort)
	register(opcode.Reverse, opReverse)
	register(opcode.Map, opMap)
	register(opcode.Filter, opFilter)
	register(opcode.Reduce, opReduce)
	register(opcode.Apply, opApply)
	register(opcode.Weave, opWeave)
	register(opcode.Rewrite, opRewrite)
}

func opSize(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	ref := ip.interpretNode(child(n, 0), false)
	if ref.Node == nil {
		return ip.allocNumber(0)
	}
	defer ip.Manager.FreeNodeTreeIfPossible(ref)
	switch ref.Node.Kind {
	case opcode.List:
		return ip.allocNumber(float64(len(ref.Node.Ordered)))
	case opcode.Associative:
		return ip.allocNumber(float64(len(ref.Node.Mapped)))
	case opcode.String:
		return ip.allocNumber(float64(len(ip.Pool.Name(ref.Node.Str))))
	default:
		return ip.allocNumber(0)
	}
}

// opAppend appends the remaining arguments to the first: lists splice,
// anything else appends as a single element.
func opAppend(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	base := ip.uniqueCopy(ip.interpretNode(child(n, 0), false))
	if base.Node == nil {
		base = ip.allocList()
	}
	if base.Node == nil || base.Node.Kind != opcode.List {
		return graph.Null
	}
	for _, c := range n.Ordered[1:] {
		item := ip.interpretNode(c, false)
		if item.Node != nil && item.Node.Kind == opcode.List {
			base.Node.Ordered = append(base.Node.Ordered, item.Node.Ordered...)
		} else {
			base.Node.Ordered = append(base.Node.Ordered, item.Node)
		}
	}
	return base
}

func opNth(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	ref := ip.interpretNode(child(n, 0), false)
	if ref.Node == nil || ref.Node.Kind != opcode.List {
		return graph.Null
	}
	idx := int(ip.InterpretIntoNumber(child(n, 1)))
	if idx < 0 || idx >= len(ref.Node.Ordered) {
		return graph.Null
	}
	return graph.Ref{Node: ref.Node.Ordered[idx], Unique: false}
}

func opSetNth(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	base := ip.uniqueCopy(ip.interpretNode(child(n, 0), false))
	if base.Node == nil || base.Node.Kind != opcode.List {
		return graph.Null
	}
	idx := int(ip.InterpretIntoNumber(child(n, 1)))
	value := ip.interpretNode(child(n, 2), false)
	if idx < 0 {
		return base
	}
	for len(base.Node.Ordered) <= idx {
		base.Node.Ordered = append(base.Node.Ordered, nil)
	}
	base.Node.Ordered[idx] = value.Node
	return base
}

func opIndexOf(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	ref := ip.interpretNode(child(n, 0), false)
	needle := ip.interpretNode(child(n, 1), false)
	if ref.Node == nil {
		return graph.Null
	}
	switch ref.Node.Kind {
	case opcode.List:
		for i, c := range ref.Node.Ordered {
			if deepEqual(c, needle.Node) {
				return ip.allocNumber(float64(i))
			}
		}
	case opcode.Associative:
		for k, v := range ref.Node.Mapped {
			if deepEqual(v, needle.Node) {
				ip.Pool.Retain(k)
				r := ip.Manager.AllocWithReferenceHandoff(opcode.String, k)
				if r == nil {
					return graph.Null
				}
				return *r
			}
		}
	}
	return graph.Null
}

func opSlice(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	ref := ip.interpretNode(child(n, 0), false)
	if ref.Node == nil || ref.Node.Kind != opcode.List {
		return graph.Null
	}
	k := len(ref.Node.Ordered)
	start, end := 0, k
	if c := child(n, 1); c != nil {
		start = int(ip.InterpretIntoNumber(c))
	}
	if c := child(n, 2); c != nil {
		end = int(ip.InterpretIntoNumber(c))
	}
	if start < 0 {
		start += k
	}
	if end < 0 {
		end += k
	}
	start = max(0, min(start, k))
	end = max(start, min(end, k))
	return ip.allocList(append([]*graph.Node(nil), ref.Node.Ordered[start:end]...)...).Downgrade()
}

// nodeLess orders numbers before strings before everything else, numbers
// by value and strings lexically.
func (ip *Interpreter) nodeLess(a, b *graph.Node) bool {
	ra, rb := sortRank(a), sortRank(b)
	if ra != rb {
		return ra < rb
	}
	switch {
	case a == nil:
		return false
	case a.Kind == opcode.Number:
		return a.Num < b.Num
	case a.Kind == opcode.String:
		return ip.Pool.Name(a.Str) < ip.Pool.Name(b.Str)
	default:
		return false
	}
}

func sortRank(n *graph.Node) int {
	switch {
	case n == nil || n.Kind == opcode.Null:
		return 0
	case n.Kind == opcode.Number:
		return 1
	case n.Kind == opcode.String:
		return 2
	default:
		return 3
	}
}

// opSort sorts a list ascending; an optional leading function argument
// supplies a comparator evaluated with the candidate pair as the current
// value (a two-element list), truthy meaning "in order".
func opSort(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	listArg, fnArg := child(n, 0), (*graph.Node)(nil)
	if len(n.Ordered) > 1 {
		fnArg, listArg = n.Ordered[0], n.Ordered[1]
	}
	ref := ip.uniqueCopy(ip.interpretNode(listArg, false))
	if ref.Node == nil || ref.Node.Kind != opcode.List {
		return graph.Null
	}
	var code *graph.Node
	if fnArg != nil {
		code = ip.interpretNode(fnArg, false).Node
	}
	sort.SliceStable(ref.Node.Ordered, func(i, j int) bool {
		a, b := ref.Node.Ordered[i], ref.Node.Ordered[j]
		if code == nil {
			return ip.nodeLess(a, b)
		}
		pair := ip.allocList(a, b)
		if pair.Node == nil {
			return false
		}
		ip.Construction.Push(ConstructionEntry{Target: ref.Node, CurrentValue: pair.Downgrade()})
		less := truthy(ip.interpretNode(code, false).Node)
		ip.Construction.Pop()
		ip.Manager.FreeNode(pair.Node)
		return less
	})
	return ref
}

func opReverse(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	ref := ip.uniqueCopy(ip.interpretNode(child(n, 0), false))
	if ref.Node == nil || ref.Node.Kind != opcode.List {
		return graph.Null
	}
	o := ref.Node.Ordered
	for i, j := 0, len(o)-1; i < j; i, j = i+1, j-1 {
		o[i], o[j] = o[j], o[i]
	}
	return ref
}

// collection evaluates an iteration opcode's collection argument,
// returning its elements plus per-element keys for assocs.
func (ip *Interpreter) collection(arg *graph.Node) (values []*graph.Node, keys []uint32, target *graph.Node) {
	ref := ip.interpretNode(arg, false)
	if ref.Node == nil {
		return nil, nil, nil
	}
	switch ref.Node.Kind {
	case opcode.List:
		return ref.Node.Ordered, nil, ref.Node
	case opcode.Associative:
		keys = make([]uint32, 0, len(ref.Node.Mapped))
		for k := range ref.Node.Mapped {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return ip.Pool.Name(keys[i]) < ip.Pool.Name(keys[j]) })
		values = make([]*graph.Node, len(keys))
		for i, k := range keys {
			values[i] = ref.Node.Mapped[k]
		}
		return values, keys, ref.Node
	default:
		return []*graph.Node{ref.Node}, nil, ref.Node
	}
}

func makeEntry(target *graph.Node, values []*graph.Node, keys []uint32, i int) ConstructionEntry {
	e := ConstructionEntry{Target: target, Index: i, CurrentValue: graph.Ref{Node: values[i]}}
	if keys != nil {
		e.Key = keys[i]
		e.HasKey = true
	}
	return e
}

func opMap(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	code := ip.interpretNode(child(n, 0), false).Node
	values, keys, target := ip.collection(child(n, 1))
	if target == nil {
		return graph.Null
	}

	results, parallel := ip.fanOutConstruction(n, len(values), func(i int) ConstructionEntry {
		return makeEntry(target, values, keys, i)
	}, code)
	if !parallel {
		results = make([]graph.Ref, len(values))
		for i := range values {
			ip.Construction.Push(makeEntry(target, values, keys, i))
			results[i] = ip.interpretNode(code, false)
			ip.Construction.Pop()
			if ip.ExecutionResourcesExhausted() {
				return graph.Null
			}
		}
	}

	if keys != nil {
		out := ip.allocAssoc()
		if out.Node == nil {
			return graph.Null
		}
		for i, k := range keys {
			ip.Pool.Retain(k)
			out.Node.Mapped[k] = results[i].Node
		}
		return out.Downgrade()
	}
	nodes := make([]*graph.Node, len(results))
	for i, r := range results {
		nodes[i] = r.Node
	}
	return ip.allocList(nodes...).Downgrade()
}

func opFilter(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	code := ip.interpretNode(child(n, 0), false).Node
	values, keys, target := ip.collection(child(n, 1))
	if target == nil {
		return graph.Null
	}

	keep := make([]bool, len(values))
	results, parallel := ip.fanOutConstruction(n, len(values), func(i int) ConstructionEntry {
		return makeEntry(target, values, keys, i)
	}, code)
	if parallel {
		for i, r := range results {
			keep[i] = truthy(r.Node)
		}
	} else {
		for i := range values {
			if code == nil {
				keep[i] = truthy(values[i])
				continue
			}
			ip.Construction.Push(makeEntry(target, values, keys, i))
			keep[i] = truthy(ip.interpretNode(code, false).Node)
			ip.Construction.Pop()
		}
	}

	if keys != nil {
		out := ip.allocAssoc()
		if out.Node == nil {
			return graph.Null
		}
		for i, k := range keys {
			if keep[i] {
				ip.Pool.Retain(k)
				out.Node.Mapped[k] = values[i]
			}
		}
		return out.Downgrade()
	}
	var nodes []*graph.Node
	for i, v := range values {
		if keep[i] {
			nodes = append(nodes, v)
		}
	}
	return ip.allocList(nodes...).Downgrade()
}

// opReduce folds left to right; the accumulated value rides in the
// construction entry's previous-result slot, seeded with the first
// element.
func opReduce(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	code := ip.interpretNode(child(n, 0), false).Node
	values, keys, target := ip.collection(child(n, 1))
	if target == nil || len(values) == 0 {
		return graph.Null
	}
	acc := graph.Ref{Node: values[0]}
	for i := 1; i < len(values); i++ {
		e := makeEntry(target, values, keys, i)
		e.PreviousResult = acc.Downgrade()
		ip.Construction.Push(e)
		acc = ip.interpretNode(code, false)
		ip.Construction.Pop()
		if ip.ExecutionResourcesExhausted() {
			return graph.Null
		}
	}
	return acc
}

// opApply builds a node of the kind named by the first argument over the
// second argument's children and evaluates it; a non-name first argument
// is treated as callable code invoked with the collection bound as args.
func opApply(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	head := ip.interpretNode(child(n, 0), false)
	coll := ip.interpretNode(child(n, 1), false)
	if coll.Node == nil {
		return graph.Null
	}
	if head.Node != nil && head.Node.Kind == opcode.String {
		kind, ok := opcode.ByName(ip.Pool.Name(head.Node.Str))
		if !ok {
			return graph.Null
		}
		call := ip.Manager.Alloc(kind)
		if call == nil {
			return graph.Null
		}
		call.Node.Ordered = coll.Node.Ordered
		call.Node.Mapped = coll.Node.Mapped
		result := ip.interpretNode(call.Node, immediateOk)
		return result
	}
	if head.Node == nil {
		return graph.Null
	}
	frame := ip.Call.Push(ip.Manager)
	for k, v := range coll.Node.Mapped {
		frame.Mapped[k] = v
	}
	result := ip.interpretNode(head.Node, immediateOk)
	ip.Call.Pop()
	if ip.unwinding {
		return ip.clearUnwind()
	}
	return result
}

// opWeave interleaves its list arguments round-robin. With a leading
// function (first argument evaluating to code rather than a list), each
// round's tuple of current values is offered to the function; a list
// result is spliced, anything else is appended, and a null function
// argument degrades to the plain round-robin.
func opWeave(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	if len(n.Ordered) == 0 {
		return ip.allocList()
	}
	first := ip.interpretNode(n.Ordered[0], false)
	var code *graph.Node
	listArgs := n.Ordered
	if first.Node != nil && first.Node.Kind != opcode.List {
		code = first.Node
		listArgs = n.Ordered[1:]
	}

	lists := make([][]*graph.Node, 0, len(listArgs))
	for i, a := range listArgs {
		var ref graph.Ref
		if i == 0 && code == nil {
			ref = first
		} else {
			ref = ip.interpretNode(a, false)
		}
		if ref.Node != nil && ref.Node.Kind == opcode.List {
			lists = append(lists, ref.Node.Ordered)
		}
	}

	out := ip.allocList()
	if out.Node == nil {
		return graph.Null
	}
	longest := 0
	for _, l := range lists {
		longest = max(longest, len(l))
	}
	for i := 0; i < longest; i++ {
		if code == nil {
			for _, l := range lists {
				if i < len(l) {
					out.Node.Ordered = append(out.Node.Ordered, l[i])
				}
			}
			continue
		}
		tuple := ip.allocList()
		if tuple.Node == nil {
			return graph.Null
		}
		for _, l := range lists {
			if i < len(l) {
				tuple.Node.Ordered = append(tuple.Node.Ordered, l[i])
			} else {
				tuple.Node.Ordered = append(tuple.Node.Ordered, nil)
			}
		}
		ip.Construction.Push(ConstructionEntry{Target: out.Node, Index: i, CurrentValue: tuple.Downgrade()})
		r := ip.interpretNode(code, false)
		ip.Construction.Pop()
		if r.Node != nil && r.Node.Kind == opcode.List {
			out.Node.Ordered = append(out.Node.Ordered, r.Node.Ordered...)
		} else if r.Node != nil {
			out.Node.Ordered = append(out.Node.Ordered, r.Node)
		}
	}
	return out.Downgrade()
}

// opRewrite maps a function across every node of a tree bottom-up,
// preserving structure and self-references.
func opRewrite(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	code := ip.interpretNode(child(n, 0), false).Node
	tree := ip.interpretNode(child(n, 1), false)
	if tree.Node == nil {
		return graph.Null
	}
	result := ip.RewriteByFunction(func(inner *Interpreter, orig *graph.Node) (*graph.Node, bool) {
		if code == nil {
			return orig, false
		}
		if top, ok := inner.Construction.Top(); ok {
			top.CurrentValue = graph.Ref{Node: orig}
		}
		r := inner.interpretNode(code, false)
		sideEffect := false
		if top, ok := inner.Construction.Top(); ok {
			sideEffect = top.SideEffect
		}
		return r.Node, sideEffect
	}, tree.Node)
	return graph.Ref{Node: result, Unique: false}
}
