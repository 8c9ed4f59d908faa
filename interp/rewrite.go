package interp

import "github.com/chazu/amalgraph/graph"

// RewriteFunc is a user function applied to every node of a tree by
// RewriteByFunction; it returns the replacement node and whether applying
// it had a side effect, which forces cycle-check propagation up the new
// tree.
type RewriteFunc func(ip *Interpreter, original *graph.Node) (replacement *graph.Node, sideEffect bool)

// RewriteByFunction implements rewrite_by_function: map fn across every
// node of tree, preserving structure and self-references. original->new
// and new->parent-new maps let a revisit of an already-rewritten original
// mark the new tree's cycle-check bits correctly instead of infinitely
// recursing on a cyclic input.
func (ip *Interpreter) RewriteByFunction(fn RewriteFunc, tree *graph.Node) *graph.Node {
	origToNew := make(map[*graph.Node]*graph.Node)
	newToParent := make(map[*graph.Node]*graph.Node)

	var walk func(orig, newParent *graph.Node, index int, key uint32, hasKey bool) *graph.Node
	walk = func(orig, newParent *graph.Node, index int, key uint32, hasKey bool) *graph.Node {
		if orig == nil {
			return nil
		}
		if existing, seen := origToNew[orig]; seen {
			markCycleToRoot(existing, newToParent)
			return existing
		}

		ip.Construction.Push(ConstructionEntry{
			Target: newParent,
			Index:  index,
			Key:    key,
			HasKey: hasKey,
		})
		replacement, sideEffect := fn(ip, orig)
		ip.Construction.Pop()

		origToNew[orig] = replacement
		if newParent != nil {
			newToParent[replacement] = newParent
		}
		if sideEffect {
			markCycleToRoot(replacement, newToParent)
		}

		if replacement == nil {
			return nil
		}
		for i, c := range replacement.Ordered {
			replacement.Ordered[i] = walk(c, replacement, i, 0, false)
		}
		for k, c := range replacement.Mapped {
			replacement.Mapped[k] = walk(c, replacement, 0, k, true)
		}
		return replacement
	}

	return walk(tree, nil, 0, 0, false)
}

func markCycleToRoot(n *graph.Node, parentOf map[*graph.Node]*graph.Node) {
	for cur := n; cur != nil; cur = parentOf[cur] {
		cur.NeedCycleCheck = true
	}
}
