package entity

import "fmt"

// Each entity carries two locks: mu (in entity.go) is a short-lived
// structural lock over the children map and label index, while access
// serializes whole evaluations against an entity's content. Guards hold
// access so that structural accessors (Child, ChildNames, NodeByLabel)
// stay usable while a guard is held.

// ReadGuard and WriteGuard are held locks on an entity's content; Close
// releases the underlying mutex. Callers must Close every guard they
// acquire, typically via defer.
type ReadGuard struct {
	e *Entity
}

func (g ReadGuard) Close() {
	if g.e != nil {
		g.e.access.RUnlock()
	}
}

type WriteGuard struct {
	e *Entity
}

func (g WriteGuard) Close() {
	if g.e != nil {
		g.e.access.Unlock()
	}
}

// ReadReference resolves path from e and returns a ReadGuard over the
// target entity, acquiring access locks top-down and releasing each
// ancestor once the next level is held, so concurrent traversals cannot
// form a cycle. An empty path denotes e itself.
func (e *Entity) ReadReference(path []string) (ReadGuard, *Entity, error) {
	cur := e
	cur.access.RLock()
	for _, name := range path {
		child, ok := cur.Child(name)
		if !ok {
			cur.access.RUnlock()
			return ReadGuard{}, nil, fmt.Errorf("entity: no such child %q", name)
		}
		child.access.RLock()
		cur.access.RUnlock()
		cur = child
	}
	return ReadGuard{e: cur}, cur, nil
}

// WriteReference resolves path from e and returns a WriteGuard over the
// target entity. Ancestors are read-locked while descending and released
// as soon as the next level is held; only the final segment is locked
// for writing.
func (e *Entity) WriteReference(path []string) (WriteGuard, *Entity, error) {
	if len(path) == 0 {
		e.access.Lock()
		return WriteGuard{e: e}, e, nil
	}
	cur := e
	cur.access.RLock()
	for i, name := range path {
		child, ok := cur.Child(name)
		if !ok {
			cur.access.RUnlock()
			return WriteGuard{}, nil, fmt.Errorf("entity: no such child %q", name)
		}
		if i == len(path)-1 {
			child.access.Lock()
			cur.access.RUnlock()
			return WriteGuard{e: child}, child, nil
		}
		child.access.RLock()
		cur.access.RUnlock()
		cur = child
	}
	panic("unreachable")
}

// GetAllDeeplyContainedEntitiesGroupedByDepth returns every entity
// contained (directly or transitively) in e, grouped by depth, each held
// under a read guard safe to retain for the duration of an aggregate
// query. Callers must Close every returned guard.
func (e *Entity) GetAllDeeplyContainedEntitiesGroupedByDepth() ([][]*Entity, []ReadGuard) {
	var levels [][]*Entity
	var guards []ReadGuard

	frontier := []*Entity{e}
	for len(frontier) > 0 {
		var next []*Entity
		var level []*Entity
		for _, ent := range frontier {
			ent.access.RLock()
			guards = append(guards, ReadGuard{e: ent})
			level = append(level, ent)
			for _, name := range ent.ChildNames() {
				if c, ok := ent.Child(name); ok {
					next = append(next, c)
				}
			}
		}
		levels = append(levels, level)
		frontier = next
	}
	return levels, guards
}
