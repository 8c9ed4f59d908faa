package interp

import (
	"github.com/chazu/amalgraph/graph"
	"github.com/chazu/amalgraph/opcode"
)

// HandlerFunc implements the semantics of one opcode Kind. immediateOk
// hints that the caller only needs a primitive result and handlers that
// support it may skip allocating a node, returning a reference whose
// Node's Kind is already the immediate leaf kind requested.
type HandlerFunc func(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref

// dispatchTable is a dense function-pointer table: opcode.Count entries,
// indexed directly by Kind, built once at package init time by every
// family file's register() calls.
var dispatchTable [opcode.Count]HandlerFunc

func register(k opcode.Kind, fn HandlerFunc) {
	if dispatchTable[k] != nil {
		panic("interp: duplicate handler registration")
	}
	dispatchTable[k] = fn
}
