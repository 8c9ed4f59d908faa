package interp

import (
	"github.com/chazu/amalgraph/graph"
	"github.com/chazu/amalgraph/opcode"
)

func init() {
	register(opcode.And, opAnd)
	register(opcode.Or, opOr)
	register(opcode.Not, opNot)
	register(opcode.Xor, opXor)

	register(opcode.Equal, opEqual)
	register(opcode.NotEqual, opNotEqual)
	register(opcode.LessThan, compare(func(a, b float64) bool { return a < b }))
	register(opcode.LessOrEqual, compare(func(a, b float64) bool { return a <= b }))
	register(opcode.GreaterThan, compare(func(a, b float64) bool { return a > b }))
	register(opcode.GreaterOrEqual, compare(func(a, b float64) bool { return a >= b }))

	register(opcode.TypeOf, opTypeOf)
	register(opcode.IsNull, predicate(func(n *graph.Node) bool { return n == nil || n.Kind == opcode.Null }))
	register(opcode.IsNumber, predicate(func(n *graph.Node) bool { return n != nil && n.Kind == opcode.Number }))
	register(opcode.IsString, predicate(func(n *graph.Node) bool { return n != nil && n.Kind == opcode.String }))
	register(opcode.IsList, predicate(func(n *graph.Node) bool { return n != nil && n.Kind == opcode.List }))
	register(opcode.IsAssociative, predicate(func(n *graph.Node) bool { return n != nil && n.Kind == opcode.Associative }))
}

// opAnd evaluates children left to right, short-circuiting on the first
// falsy one; the result is the last child's value, or false.
func opAnd(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	var last graph.Ref
	for _, c := range n.Ordered {
		last = ip.interpretNode(c, false)
		if !truthy(last.Node) {
			ip.Manager.FreeNodeTreeIfPossible(last)
			return ip.allocBool(false)
		}
	}
	return last
}

func opOr(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	for _, c := range n.Ordered {
		r := ip.interpretNode(c, false)
		if truthy(r.Node) {
			return r
		}
		ip.Manager.FreeNodeTreeIfPossible(r)
	}
	return ip.allocBool(false)
}

func opNot(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	r := ip.interpretNode(child(n, 0), true)
	result := !truthy(r.Node)
	ip.Manager.FreeNodeTreeIfPossible(r)
	return ip.allocBool(result)
}

func opXor(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	count := 0
	for _, c := range n.Ordered {
		r := ip.interpretNode(c, true)
		if truthy(r.Node) {
			count++
		}
		ip.Manager.FreeNodeTreeIfPossible(r)
	}
	return ip.allocBool(count%2 == 1)
}

func opEqual(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	if len(n.Ordered) < 2 {
		return ip.allocBool(true)
	}
	first := ip.interpretNode(n.Ordered[0], false)
	for _, c := range n.Ordered[1:] {
		r := ip.interpretNode(c, false)
		if !deepEqual(first.Node, r.Node) {
			return ip.allocBool(false)
		}
	}
	return ip.allocBool(true)
}

func opNotEqual(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	// True when every pair of arguments differs.
	refs := make([]graph.Ref, len(n.Ordered))
	for i, c := range n.Ordered {
		refs[i] = ip.interpretNode(c, false)
	}
	for i := range refs {
		for j := i + 1; j < len(refs); j++ {
			if deepEqual(refs[i].Node, refs[j].Node) {
				return ip.allocBool(false)
			}
		}
	}
	return ip.allocBool(true)
}

// compare chains variadically: (< a b c) is a < b && b < c.
func compare(cmp func(a, b float64) bool) HandlerFunc {
	return func(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
		if len(n.Ordered) < 2 {
			return ip.allocBool(false)
		}
		prev := ip.InterpretIntoNumber(n.Ordered[0])
		for _, c := range n.Ordered[1:] {
			cur := ip.InterpretIntoNumber(c)
			if !cmp(prev, cur) {
				return ip.allocBool(false)
			}
			prev = cur
		}
		return ip.allocBool(true)
	}
}

func opTypeOf(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	r := ip.interpretNode(child(n, 0), false)
	if r.Node == nil {
		return ip.allocString(opcode.Name(opcode.Null))
	}
	name := opcode.Name(r.Node.Kind)
	ip.Manager.FreeNodeTreeIfPossible(r)
	return ip.allocString(name)
}

func predicate(fn func(*graph.Node) bool) HandlerFunc {
	return func(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
		r := ip.interpretNode(child(n, 0), false)
		result := fn(r.Node)
		ip.Manager.FreeNodeTreeIfPossible(r)
		return ip.allocBool(result)
	}
}
