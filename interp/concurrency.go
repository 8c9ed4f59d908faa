package interp

import (
	"github.com/chazu/amalgraph/concurrency"
	"github.com/chazu/amalgraph/graph"
	"github.com/chazu/amalgraph/opcode"
)

// fanOut submits one task per item to the thread pool when n carries the
// concurrency flag and its kind is eligible. Each worker gets a derived
// interpreter (own opcode/construction stacks, shared call stack below
// the current depth) and results come back in submission order. ok is
// false when the caller must evaluate serially instead — flag absent,
// kind ineligible, or the pool could not reserve a full batch.
func (ip *Interpreter) fanOut(n *graph.Node, items []*graph.Node) ([]graph.Ref, bool) {
	if !n.ConcurrencyRequested || !opcode.ConcurrencyEligible(n.Kind) {
		return nil, false
	}
	if ip.Threads == nil || len(items) == 0 {
		return nil, false
	}
	workers := make([]*Interpreter, len(items))
	for i := range items {
		workers[i] = ip.derive()
		workers[i].ThreadCount = len(items)
	}
	results, ok, _ := concurrency.RunOrdered(ip.Threads, len(items), func(i int) (graph.Ref, error) {
		return workers[i].interpretNode(items[i], false), nil
	})
	if !ok {
		return nil, false
	}
	return results, true
}

// fanOutConstruction is fanOut for iteration opcodes: each worker pushes
// entry(i) onto its own construction stack before interpreting code.
func (ip *Interpreter) fanOutConstruction(n *graph.Node, count int, entry func(i int) ConstructionEntry, code *graph.Node) ([]graph.Ref, bool) {
	if !n.ConcurrencyRequested || !opcode.ConcurrencyEligible(n.Kind) {
		return nil, false
	}
	if ip.Threads == nil || count == 0 || code == nil {
		return nil, false
	}
	workers := make([]*Interpreter, count)
	for i := 0; i < count; i++ {
		workers[i] = ip.derive()
		workers[i].ThreadCount = count
	}
	results, ok, _ := concurrency.RunOrdered(ip.Threads, count, func(i int) (graph.Ref, error) {
		w := workers[i]
		w.Construction.Push(entry(i))
		r := w.interpretNode(code, false)
		w.Construction.Pop()
		return r, nil
	})
	if !ok {
		return nil, false
	}
	return results, true
}
