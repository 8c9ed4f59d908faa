package interp

import (
	"github.com/chazu/amalgraph/graph"
	"github.com/chazu/amalgraph/intern"
	"github.com/chazu/amalgraph/opcode"
)

// InterpretIntoNumber implements interpret_into_number: if n is already a
// number leaf return its value directly; otherwise evaluate it in
// immediate mode and coerce, freeing the intermediate if it was unique.
func (ip *Interpreter) InterpretIntoNumber(n *graph.Node) float64 {
	if n != nil && n.Kind == opcode.Number {
		return n.Num
	}
	ref := ip.interpretNode(n, true)
	if ref.Node == nil {
		return 0
	}
	v := coerceNumber(ref.Node)
	ip.Manager.FreeNodeTreeIfPossible(ref)
	return v
}

func coerceNumber(n *graph.Node) float64 {
	switch n.Kind {
	case opcode.Number:
		return n.Num
	case opcode.True:
		return 1
	case opcode.False, opcode.Null:
		return 0
	default:
		return 0
	}
}

// InterpretIntoString implements interpret_into_string: (valid, string).
func (ip *Interpreter) InterpretIntoString(n *graph.Node) (bool, string) {
	if n != nil && n.Kind == opcode.String {
		return true, ip.Pool.Name(n.Str)
	}
	ref := ip.interpretNode(n, true)
	if ref.Node == nil {
		return false, ""
	}
	defer ip.Manager.FreeNodeTreeIfPossible(ref)
	if ref.Node.Kind != opcode.String {
		return false, ""
	}
	return true, ip.Pool.Name(ref.Node.Str)
}

// InterpretIntoStringIDIfExists returns the interned ID only when one
// already exists on n, without interning a new one.
func (ip *Interpreter) InterpretIntoStringIDIfExists(n *graph.Node) (uint32, bool) {
	if n == nil {
		return intern.NotAString, false
	}
	if n.Kind == opcode.String {
		return n.Str, n.Str != intern.NotAString
	}
	return intern.NotAString, false
}

// InterpretIntoStringIDWithReference returns an ID holding a fresh
// refcount, reusing the unique intermediate's refcount when possible
// instead of releasing then re-interning.
func (ip *Interpreter) InterpretIntoStringIDWithReference(n *graph.Node) uint32 {
	if n != nil && n.Kind == opcode.String {
		ip.Pool.Retain(n.Str)
		return n.Str
	}
	ref := ip.interpretNode(n, true)
	if ref.Node == nil {
		return intern.NotAString
	}
	if ref.Node.Kind == opcode.String {
		id := ref.Node.Str
		if ref.Unique {
			// Hand off: the intermediate's refcount transfers to the caller.
			ref.Node.Str = intern.NotAString
			ip.Manager.FreeNodeTreeIfPossible(ref)
			return id
		}
		ip.Pool.Retain(id)
		ip.Manager.FreeNodeTreeIfPossible(ref)
		return id
	}
	ip.Manager.FreeNodeTreeIfPossible(ref)
	return intern.NotAString
}

// InterpretIntoBool implements interpret_into_bool(n, default_if_null).
func (ip *Interpreter) InterpretIntoBool(n *graph.Node, defaultIfNull bool) bool {
	if n == nil {
		return defaultIfNull
	}
	switch n.Kind {
	case opcode.True:
		return true
	case opcode.False:
		return false
	case opcode.Null:
		return defaultIfNull
	}
	ref := ip.interpretNode(n, true)
	defer ip.Manager.FreeNodeTreeIfPossible(ref)
	if ref.Node == nil {
		return defaultIfNull
	}
	switch ref.Node.Kind {
	case opcode.True:
		return true
	case opcode.False:
		return false
	case opcode.Number:
		return ref.Node.Num != 0
	default:
		return defaultIfNull
	}
}

// InterpretIntoUniqueNumberNode returns a unique Number-kind reference,
// retyping the intermediate in place when it is already unique instead
// of allocating a new node.
func (ip *Interpreter) InterpretIntoUniqueNumberNode(n *graph.Node) graph.Ref {
	ref := ip.interpretNode(n, false)
	if ref.Node == nil {
		return *ip.Manager.Alloc(opcode.Number)
	}
	if ref.Unique {
		ref.Node.Kind = opcode.Number
		ref.Node.Num = coerceNumber(ref.Node)
		ref.Node.Ordered = nil
		ref.Node.Mapped = nil
		return ref
	}
	fresh := ip.Manager.Alloc(opcode.Number)
	fresh.Node.Num = coerceNumber(ref.Node)
	return *fresh
}

// InterpretIntoUniqueStringNode mirrors InterpretIntoUniqueNumberNode for
// string-kind results.
func (ip *Interpreter) InterpretIntoUniqueStringNode(n *graph.Node) graph.Ref {
	ref := ip.interpretNode(n, false)
	if ref.Node == nil {
		fresh := ip.Manager.Alloc(opcode.String)
		fresh.Node.Str = intern.EmptyString
		ip.Pool.Retain(intern.EmptyString)
		return *fresh
	}
	if ref.Unique && ref.Node.Kind == opcode.String {
		return ref
	}
	id := ip.InterpretIntoStringIDWithReference(ref.Node)
	fresh := ip.Manager.AllocWithReferenceHandoff(opcode.String, id)
	return *fresh
}
