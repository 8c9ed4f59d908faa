// Package interp implements the tree-walking interpreter: the three
// cooperating stacks, opcode dispatch, immediate-value plumbing,
// resource budgeting, symbol lookup and destination traversal.
package interp

import (
	"github.com/chazu/amalgraph/concurrency"
	"github.com/chazu/amalgraph/entity"
	"github.com/chazu/amalgraph/graph"
	"github.com/chazu/amalgraph/intern"
	"github.com/sasha-s/go-deadlock"
)

// Interpreter is a single logical thread of evaluation: one per goroutine
// fanned out by the Concurrency Manager, all sharing a Node Manager and
// (below UniqueAccessStart) a call stack.
type Interpreter struct {
	Manager *graph.Manager
	Pool    *intern.Pool
	Entity  *entity.Entity

	Call         *CallStack
	Opcode       *OpcodeStack
	Construction *ConstructionStack

	CallStackMutex    *deadlock.RWMutex
	UniqueAccessStart int

	Constraints *graph.Constraints

	ThreadCount int
	Threads     *concurrency.Pool

	unwinding   bool
	unwindValue graph.Ref
}

// New creates a fresh interpreter instance bound to entity e, with new
// stacks, no active constraints, and a thread pool sized to pool's
// capacity (pool may be nil, in which case concurrency-requested opcodes
// always fall back to serial evaluation).
func New(e *entity.Entity, pool *concurrency.Pool) *Interpreter {
	return &Interpreter{
		Manager:        e.Manager,
		Pool:           e.Pool,
		Entity:         e,
		Call:           NewCallStack(e.Manager),
		Opcode:         &OpcodeStack{},
		Construction:   &ConstructionStack{},
		CallStackMutex: &deadlock.RWMutex{},
		ThreadCount:    1,
		Threads:        pool,
	}
}

// Execute is the evaluation entry point: it roots the program for the
// collector, delegates to interpretNode, then tears down the ephemeral
// opcode/construction stacks. The call stack is returned to the caller's
// ownership.
func (ip *Interpreter) Execute(program graph.Ref) graph.Ref {
	if program.Node == nil {
		return graph.Null
	}
	ip.Manager.KeepNodeReferences(program.Node)
	defer ip.Manager.FreeNodeReferences(program.Node)

	result := ip.interpretNode(program.Node, false)
	return result
}

// interpretNode is the per-node dispatch: push to the opcode stack,
// maybe collect, check budgets, dispatch by kind, pop and return.
func (ip *Interpreter) interpretNode(n *graph.Node, immediateOk bool) graph.Ref {
	if n == nil {
		return graph.Null
	}

	ip.Opcode.Push(n)
	defer ip.Opcode.Pop()

	if ip.Manager.ShouldCollect() {
		ip.collect()
	}

	if ip.Constraints != nil {
		ip.Constraints.CurExecutionStep++
		if ip.Constraints.Exhausted() {
			return graph.Null
		}
	}
	if ip.unwinding {
		return graph.Null
	}

	handler := dispatchTable[n.Kind]
	if handler == nil {
		return graph.Ref{Node: n, Unique: false}
	}
	return handler(ip, n, immediateOk)
}

// collect gathers this interpreter's roots (entity root, three stacks)
// and runs a mark-and-sweep. Only called from interpretNode's safe point.
func (ip *Interpreter) collect() {
	roots := make([]*graph.Node, 0, len(ip.Call.Frames)+len(ip.Opcode.Nodes)+4)
	roots = append(roots, ip.Entity.Root.Node)
	roots = append(roots, ip.Call.Frames...)
	roots = append(roots, ip.Opcode.Nodes...)
	for _, e := range ip.Construction.Entries {
		roots = append(roots, e.Target, e.CurrentValue.Node, e.PreviousResult.Node)
	}
	ip.Manager.CollectGarbage(roots...)
}

// ExecutionResourcesExhausted is the cancellation poll point: no
// exceptions, no timers, just this check at every safe point.
func (ip *Interpreter) ExecutionResourcesExhausted() bool {
	return ip.Constraints != nil && ip.Constraints.Exhausted()
}

// beginUnwind marks the interpreter as unwinding (conclude/return) so
// interpretNode short-circuits every remaining sibling; it is cleared by
// the frame (sequence, call, while) that the unwind targets.
func (ip *Interpreter) beginUnwind(v graph.Ref) {
	ip.unwinding = true
	ip.unwindValue = v
}

func (ip *Interpreter) clearUnwind() graph.Ref {
	v := ip.unwindValue
	ip.unwinding = false
	ip.unwindValue = graph.Null
	return v
}

// derive creates a per-worker child interpreter sharing this one's node
// manager but with independent opcode/construction stacks and the
// parent's call stack, its UniqueAccessStart bumped to the parent's
// current depth so writes above it stay thread-private.
func (ip *Interpreter) derive() *Interpreter {
	child := &Interpreter{
		Manager:           ip.Manager,
		Pool:              ip.Pool,
		Entity:            ip.Entity,
		Call:              ip.Call,
		Opcode:            &OpcodeStack{},
		Construction:      &ConstructionStack{},
		CallStackMutex:    ip.CallStackMutex,
		UniqueAccessStart: ip.Call.Depth(),
		Constraints:       ip.Constraints,
		ThreadCount:       ip.ThreadCount,
		Threads:           ip.Threads,
	}
	return child
}
