package interp

import (
	"github.com/chazu/amalgraph/entity"
	"github.com/chazu/amalgraph/graph"
	"github.com/chazu/amalgraph/opcode"
)

// InterpretIntoDestinationEntity implements interpret_into_destination_entity:
// evaluate pathNode to an entity path and return either the resolved
// entity (path exists, ok true) or the container plus the missing final
// segment name (ok false), for the caller to create atomically. Only the
// returned entity is locked for write; its ancestors are read-locked one
// at a time while the path is descended and are not held on return.
func (ip *Interpreter) InterpretIntoDestinationEntity(pathNode *graph.Node) (guard entity.WriteGuard, resolved *entity.Entity, missingName string, ok bool) {
	path := ip.evalEntityPath(pathNode)
	if len(path) == 0 {
		g, e, err := ip.Entity.WriteReference(nil)
		if err != nil {
			return entity.WriteGuard{}, nil, "", false
		}
		return g, e, "", true
	}

	parent := path[:len(path)-1]
	last := path[len(path)-1]

	g, container, err := ip.Entity.WriteReference(parent)
	if err != nil {
		return entity.WriteGuard{}, nil, "", false
	}
	if child, exists := container.Child(last); exists {
		g.Close()
		g2, e, err := ip.Entity.WriteReference(path)
		if err != nil {
			return entity.WriteGuard{}, nil, "", false
		}
		_ = child
		return g2, e, "", true
	}
	return g, container, last, false
}

// evalEntityPath evaluates pathNode to an entity path: a list of child
// names, empty meaning "current entity", leading null meaning "the root
// entity".
func (ip *Interpreter) evalEntityPath(pathNode *graph.Node) []string {
	if pathNode == nil {
		return nil
	}
	if pathNode.Kind == opcode.List && len(pathNode.Ordered) > 0 && pathNode.Ordered[0].Kind == opcode.Null {
		cur := ip.Entity
		for cur.Container != nil {
			cur = cur.Container
		}
		path := cur.Path()
		for _, child := range pathNode.Ordered[1:] {
			ok, s := ip.InterpretIntoString(child)
			if ok {
				path = append(path, s)
			}
		}
		return path
	}
	ref := ip.interpretNode(pathNode, false)
	defer ip.Manager.FreeNodeTreeIfPossible(ref)
	if ref.Node == nil || ref.Node.Kind != opcode.List {
		return nil
	}
	path := make([]string, 0, len(ref.Node.Ordered))
	for _, c := range ref.Node.Ordered {
		ok, s := ip.InterpretIntoString(c)
		if ok {
			path = append(path, s)
		}
	}
	return path
}

// TraverseToDestinationFromPathList implements
// traverse_to_destination_from_path_list: navigate a non-entity node
// graph by ordered-child index or map key, optionally allocating
// intermediate list/associative nodes along the way.
func (ip *Interpreter) TraverseToDestinationFromPathList(root graph.Ref, path *graph.Node, createIfMissing bool) graph.Ref {
	if path == nil {
		return root
	}
	cur := root
	for _, segment := range path.Ordered {
		if cur.Node == nil {
			if !createIfMissing {
				return graph.Null
			}
			cur = *ip.Manager.Alloc(opcode.Associative)
			cur.Node.Mapped = make(map[uint32]*graph.Node)
		}
		switch {
		case segment.Kind == opcode.Number && cur.Node.Kind == opcode.List:
			idx := int(segment.Num)
			if idx < 0 || idx >= len(cur.Node.Ordered) {
				if !createIfMissing {
					return graph.Null
				}
				for len(cur.Node.Ordered) <= idx {
					cur.Node.Ordered = append(cur.Node.Ordered, nil)
				}
			}
			if cur.Node.Ordered[idx] == nil && createIfMissing {
				child := ip.Manager.Alloc(opcode.Null)
				cur.Node.Ordered[idx] = child.Node
			}
			cur = graph.Ref{Node: cur.Node.Ordered[idx], Unique: cur.Unique}
		default:
			ok, key := ip.InterpretIntoString(segment)
			if !ok {
				return graph.Null
			}
			kid := ip.Pool.Intern(key)
			if cur.Node.Mapped == nil {
				cur.Node.Mapped = make(map[uint32]*graph.Node)
			}
			child, exists := cur.Node.Mapped[kid]
			if !exists {
				if !createIfMissing {
					ip.Pool.Release(kid)
					return graph.Null
				}
				newChild := ip.Manager.Alloc(opcode.Null)
				cur.Node.Mapped[kid] = newChild.Node
				child = newChild.Node
			} else {
				ip.Pool.Release(kid)
			}
			cur = graph.Ref{Node: child, Unique: cur.Unique}
		}
	}
	return cur
}
