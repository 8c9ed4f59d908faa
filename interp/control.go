package interp

import (
	"github.com/chazu/amalgraph/graph"
	"github.com/chazu/amalgraph/opcode"
)

func init() {
	register(opcode.If, opIf)
	register(opcode.Sequence, opSequence)
	register(opcode.Parallel, opParallel)
	register(opcode.Lambda, opLambda)
	register(opcode.Conclude, opConclude)
	register(opcode.Return, opConclude)
	register(opcode.Call, opCall)
	register(opcode.CallSandboxed, opCallSandboxed)
	register(opcode.While, opWhile)
}

// opIf evaluates condition/consequent pairs left to right, short-circuit;
// an odd trailing child is the else branch.
func opIf(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	i := 0
	for ; i+1 < len(n.Ordered); i += 2 {
		if ip.InterpretIntoBool(n.Ordered[i], false) {
			return ip.interpretNode(n.Ordered[i+1], immediateOk)
		}
		if ip.unwinding || ip.ExecutionResourcesExhausted() {
			return graph.Null
		}
	}
	if i < len(n.Ordered) {
		return ip.interpretNode(n.Ordered[i], immediateOk)
	}
	return graph.Null
}

func opSequence(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	var last graph.Ref
	for i, c := range n.Ordered {
		if i > 0 {
			ip.Manager.FreeNodeTreeIfPossible(last)
		}
		last = ip.interpretNode(c, immediateOk && i == len(n.Ordered)-1)
		if ip.unwinding {
			return ip.clearUnwind()
		}
		if ip.ExecutionResourcesExhausted() {
			return graph.Null
		}
	}
	return last
}

// opParallel evaluates each child for effect only; with the concurrency
// flag set and pool slots free it fans out one worker per child,
// otherwise it degrades to serial left-to-right evaluation.
func opParallel(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	if results, ok := ip.fanOut(n, n.Ordered); ok {
		for _, r := range results {
			ip.Manager.FreeNodeTreeIfPossible(r)
		}
		return graph.Null
	}
	for _, c := range n.Ordered {
		r := ip.interpretNode(c, false)
		ip.Manager.FreeNodeTreeIfPossible(r)
		if ip.unwinding || ip.ExecutionResourcesExhausted() {
			break
		}
	}
	return graph.Null
}

// opLambda returns its child literally, without evaluation.
func opLambda(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	return graph.Ref{Node: child(n, 0), Unique: false}
}

func opConclude(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	v := graph.Null
	if c := child(n, 0); c != nil {
		v = ip.interpretNode(c, false)
	}
	ip.beginUnwind(v)
	return graph.Null
}

// bindFrame pushes a call frame populated from the evaluated args assoc.
func (ip *Interpreter) bindFrame(argsNode *graph.Node) *Frame {
	frame := ip.Call.Push(ip.Manager)
	if argsNode == nil {
		return frame
	}
	args := ip.interpretNode(argsNode, false)
	if args.Node != nil && args.Node.Mapped != nil {
		for k, v := range args.Node.Mapped {
			frame.Mapped[k] = v
		}
	}
	return frame
}

func opCall(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	code := ip.interpretNode(child(n, 0), false)
	if code.Node == nil {
		return graph.Null
	}
	ip.bindFrame(child(n, 1))
	result := ip.interpretNode(code.Node, immediateOk)
	ip.Call.Pop()
	if ip.unwinding {
		return ip.clearUnwind()
	}
	return result
}

// opCallSandboxed runs the callee under a derived, bounded constraints
// block and a fresh call stack so the outer lexical chain is invisible to
// it. The derived budgets are the minimum of the requested values and
// whatever remains of the parent's own budgets.
func opCallSandboxed(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	code := ip.interpretNode(child(n, 0), false)
	if code.Node == nil {
		return graph.Null
	}

	requested := ip.PopulatePerformanceConstraintsFromParams(n.Ordered, 2, true)
	childConstraints := ip.PopulatePerformanceCounters(requested)

	outerCall := ip.Call
	outerStart := ip.UniqueAccessStart
	outerConstraints := ip.Constraints

	ip.Call = NewCallStack(ip.Manager)
	ip.UniqueAccessStart = 0
	ip.Constraints = childConstraints
	ip.Manager.SetConstraints(childConstraints)

	ip.bindFrame(child(n, 1))
	result := ip.interpretNode(code.Node, immediateOk)
	if ip.unwinding {
		result = ip.clearUnwind()
	}

	// Spend the child's consumption against the parent before restoring.
	if outerConstraints != nil {
		outerConstraints.CurExecutionStep += childConstraints.CurExecutionStep
		outerConstraints.CurAllocatedNodesAttributedToEntities += childConstraints.CurAllocatedNodesAttributedToEntities
	}
	ip.Call = outerCall
	ip.UniqueAccessStart = outerStart
	ip.Constraints = outerConstraints
	ip.Manager.SetConstraints(outerConstraints)
	return result
}

func opWhile(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	cond := child(n, 0)
	if cond == nil {
		return graph.Null
	}
	var last graph.Ref
	for {
		if ip.ExecutionResourcesExhausted() || ip.unwinding {
			// Budget exhaustion yields null, not the last partial value.
			return graph.Null
		}
		if !ip.InterpretIntoBool(cond, false) {
			break
		}
		for _, body := range n.Ordered[1:] {
			ip.Manager.FreeNodeTreeIfPossible(last)
			last = ip.interpretNode(body, false)
			if ip.unwinding {
				return ip.clearUnwind()
			}
			if ip.ExecutionResourcesExhausted() {
				return graph.Null
			}
		}
	}
	return last
}
