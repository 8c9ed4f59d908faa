package interp

import (
	"sort"

	"github.com/chazu/amalgraph/graph"
	"github.com/chazu/amalgraph/opcode"
)

func init() {
	register(opcode.AssocSize, opAssocSize)
	register(opcode.AssocGet, opAssocGet)
	register(opcode.AssocSet, opAssocSet)
	register(opcode.AssocRemove, opAssocRemove)
	register(opcode.AssocKeys, opKeys)
	register(opcode.AssocValues, opValues)
	register(opcode.AssocMerge, opAssocMerge)
	register(opcode.ZipLabels, opZipLabels)
	register(opcode.Mix, opMix)
}

func (ip *Interpreter) evalAssocArg(n *graph.Node, i int) *graph.Node {
	ref := ip.interpretNode(child(n, i), false)
	if ref.Node == nil || ref.Node.Kind != opcode.Associative {
		return nil
	}
	return ref.Node
}

func opAssocSize(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	a := ip.evalAssocArg(n, 0)
	if a == nil {
		return ip.allocNumber(0)
	}
	return ip.allocNumber(float64(len(a.Mapped)))
}

func opAssocGet(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	a := ip.evalAssocArg(n, 0)
	if a == nil {
		return graph.Null
	}
	ok, key := ip.InterpretIntoString(child(n, 1))
	if !ok {
		return graph.Null
	}
	id, exists := ip.Pool.Lookup(key)
	if !exists {
		return graph.Null
	}
	v, found := a.Mapped[id]
	if !found {
		return graph.Null
	}
	return graph.Ref{Node: v, Unique: false}
}

func opAssocSet(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	base := ip.uniqueCopy(ip.interpretNode(child(n, 0), false))
	if base.Node == nil || base.Node.Kind != opcode.Associative {
		return graph.Null
	}
	ok, key := ip.InterpretIntoString(child(n, 1))
	if !ok {
		return base
	}
	value := ip.interpretNode(child(n, 2), false)
	if base.Node.Mapped == nil {
		base.Node.Mapped = make(map[uint32]*graph.Node)
	}
	base.Node.Mapped[ip.Pool.Intern(key)] = value.Node
	return base
}

func opAssocRemove(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	base := ip.uniqueCopy(ip.interpretNode(child(n, 0), false))
	if base.Node == nil || base.Node.Kind != opcode.Associative {
		return graph.Null
	}
	ok, key := ip.InterpretIntoString(child(n, 1))
	if !ok {
		return base
	}
	if id, exists := ip.Pool.Lookup(key); exists {
		if _, present := base.Node.Mapped[id]; present {
			delete(base.Node.Mapped, id)
			ip.Pool.Release(id)
		}
	}
	return base
}

func (ip *Interpreter) sortedKeys(a *graph.Node) []uint32 {
	keys := make([]uint32, 0, len(a.Mapped))
	for k := range a.Mapped {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return ip.Pool.Name(keys[i]) < ip.Pool.Name(keys[j]) })
	return keys
}

func opKeys(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	a := ip.evalAssocArg(n, 0)
	if a == nil {
		return ip.allocList()
	}
	out := ip.allocList()
	if out.Node == nil {
		return graph.Null
	}
	for _, k := range ip.sortedKeys(a) {
		ip.Pool.Retain(k)
		s := ip.Manager.AllocWithReferenceHandoff(opcode.String, k)
		if s == nil {
			return graph.Null
		}
		out.Node.Ordered = append(out.Node.Ordered, s.Node)
	}
	return out
}

func opValues(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	a := ip.evalAssocArg(n, 0)
	if a == nil {
		return ip.allocList()
	}
	out := ip.allocList()
	if out.Node == nil {
		return graph.Null
	}
	for _, k := range ip.sortedKeys(a) {
		out.Node.Ordered = append(out.Node.Ordered, a.Mapped[k])
	}
	return out.Downgrade()
}

func opAssocMerge(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	out := ip.allocAssoc()
	if out.Node == nil {
		return graph.Null
	}
	for i := range n.Ordered {
		a := ip.evalAssocArg(n, i)
		if a == nil {
			continue
		}
		for k, v := range a.Mapped {
			if _, present := out.Node.Mapped[k]; !present {
				ip.Pool.Retain(k)
			}
			out.Node.Mapped[k] = v
		}
	}
	return out.Downgrade()
}

// opZipLabels pairs a list of names with a list of values into an assoc.
func opZipLabels(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	names := ip.interpretNode(child(n, 0), false)
	values := ip.interpretNode(child(n, 1), false)
	if names.Node == nil || names.Node.Kind != opcode.List {
		return graph.Null
	}
	out := ip.allocAssoc()
	if out.Node == nil {
		return graph.Null
	}
	for i, nameNode := range names.Node.Ordered {
		ok, name := ip.InterpretIntoString(nameNode)
		if !ok {
			continue
		}
		var v *graph.Node
		if values.Node != nil && i < len(values.Node.Ordered) {
			v = values.Node.Ordered[i]
		}
		out.Node.Mapped[ip.Pool.Intern(name)] = v
	}
	return out.Downgrade()
}

// opMix blends two trees: at each position the result keeps the first
// tree's node with probability fraction, the second's otherwise, drawing
// from the entity's random stream so the blend is deterministic for a
// given seed. Children present in only one tree are always kept, copied
// from the tree that has them; a draw is still taken for them.
func opMix(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	a := ip.interpretNode(child(n, 0), false)
	b := ip.interpretNode(child(n, 1), false)
	fraction := 0.5
	if c := child(n, 2); c != nil {
		fraction = ip.InterpretIntoNumber(c)
	}
	result := ip.mixNodes(a.Node, b.Node, fraction)
	return graph.Ref{Node: result, Unique: true}
}

func (ip *Interpreter) mixNodes(a, b *graph.Node, fraction float64) *graph.Node {
	pickA := ip.Entity.Random.NextDouble() < fraction
	if a == nil || b == nil {
		src := a
		if src == nil {
			src = b
		}
		if src == nil {
			return nil
		}
		return ip.deepCopy(src)
	}
	if a.Kind != b.Kind {
		if pickA {
			return ip.deepCopy(a)
		}
		return ip.deepCopy(b)
	}

	base := a
	if !pickA {
		base = b
	}
	switch a.Kind {
	case opcode.List:
		r := ip.Manager.Alloc(opcode.List)
		if r == nil {
			return nil
		}
		longest := max(len(a.Ordered), len(b.Ordered))
		for i := 0; i < longest; i++ {
			var ca, cb *graph.Node
			if i < len(a.Ordered) {
				ca = a.Ordered[i]
			}
			if i < len(b.Ordered) {
				cb = b.Ordered[i]
			}
			r.Node.Ordered = append(r.Node.Ordered, ip.mixNodes(ca, cb, fraction))
		}
		return r.Node
	case opcode.Associative:
		r := ip.Manager.Alloc(opcode.Associative)
		if r == nil {
			return nil
		}
		r.Node.Mapped = make(map[uint32]*graph.Node)
		seen := make(map[uint32]bool)
		for k := range a.Mapped {
			seen[k] = true
		}
		for k := range b.Mapped {
			seen[k] = true
		}
		keys := make([]uint32, 0, len(seen))
		for k := range seen {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return ip.Pool.Name(keys[i]) < ip.Pool.Name(keys[j]) })
		for _, k := range keys {
			ip.Pool.Retain(k)
			r.Node.Mapped[k] = ip.mixNodes(a.Mapped[k], b.Mapped[k], fraction)
		}
		return r.Node
	default:
		return ip.deepCopy(base)
	}
}
