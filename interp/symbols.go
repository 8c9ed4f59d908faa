package interp

import "github.com/chazu/amalgraph/graph"

// GetCallStackSymbol implements get_call_stack_symbol: walk frames from
// the top down, returning the child-slot in the first frame whose map
// contains sid and that frame's index. includeUnique/includeShared limit
// the walk to frames above/below UniqueAccessStart; a shared-frame lookup
// is performed under CallStackMutex.
func (ip *Interpreter) GetCallStackSymbol(sid uint32, includeUnique, includeShared bool) (*graph.Node, int, bool) {
	frames := ip.Call.Frames
	for i := len(frames) - 1; i >= 0; i-- {
		isShared := i < ip.UniqueAccessStart
		if isShared && !includeShared {
			continue
		}
		if !isShared && !includeUnique {
			continue
		}
		if isShared {
			ip.CallStackMutex.RLock()
		}
		slot, ok := frames[i].Mapped[sid]
		if isShared {
			ip.CallStackMutex.RUnlock()
		}
		if ok {
			return slot, i, true
		}
	}
	return nil, -1, false
}

// GetOrCreateCallStackSymbol behaves like GetCallStackSymbol but, on a
// miss, creates the binding in the topmost frame. When that frame is a
// shared one (below UniqueAccessStart) the binding is still created
// there, under CallStackMutex; no private frame is pushed for it.
func (ip *Interpreter) GetOrCreateCallStackSymbol(sid uint32, initial graph.Ref) (*graph.Node, int) {
	if slot, idx, ok := ip.GetCallStackSymbol(sid, true, true); ok {
		return slot, idx
	}
	top := len(ip.Call.Frames) - 1
	frame := ip.Call.Frames[top]
	isShared := top < ip.UniqueAccessStart
	if isShared {
		ip.CallStackMutex.Lock()
		defer ip.CallStackMutex.Unlock()
	}
	if frame.Mapped == nil {
		frame.Mapped = make(map[uint32]*graph.Node)
	}
	frame.Mapped[sid] = initial.Node
	return initial.Node, top
}

// SetCallStackSymbol assigns an existing binding (used by assign/set),
// walking the stack the same way GetCallStackSymbol does.
func (ip *Interpreter) SetCallStackSymbol(sid uint32, value graph.Ref) bool {
	frames := ip.Call.Frames
	for i := len(frames) - 1; i >= 0; i-- {
		isShared := i < ip.UniqueAccessStart
		if isShared {
			ip.CallStackMutex.Lock()
		}
		if _, ok := frames[i].Mapped[sid]; ok {
			frames[i].Mapped[sid] = value.Node
			if isShared {
				ip.CallStackMutex.Unlock()
			}
			return true
		}
		if isShared {
			ip.CallStackMutex.Unlock()
		}
	}
	return false
}
