// Package entity implements the persistent container model: a named
// node-graph root plus a random stream, a label index, and nested child
// entities, with top-down locking across entity paths.
package entity

import (
	"fmt"

	"github.com/chazu/amalgraph/graph"
	"github.com/chazu/amalgraph/intern"
	"github.com/sasha-s/go-deadlock"
)

// Entity is a named container: root node, random stream, label index,
// child entities, and a pointer back to its container (nil for a root
// entity with no parent).
type Entity struct {
	mu     deadlock.RWMutex
	access deadlock.RWMutex

	Name      string
	Manager   *graph.Manager
	Pool      *intern.Pool
	Root      graph.Ref
	Random    *RandomStream
	Labels    map[uint32]*graph.Node
	Container *Entity
	Children  map[string]*Entity

	// RootPermission grants i/o and system operations to programs
	// evaluated in this entity's context.
	RootPermission bool

	// PersistPath is non-empty when the entity was loaded with
	// write-through persistence: mutations store back to this path.
	PersistPath string
}

// New creates a bare entity: no root installed yet, an empty label index,
// and a random stream seeded from seed.
func New(name string, pool *intern.Pool, seed string) *Entity {
	return &Entity{
		Name:     name,
		Manager:  graph.NewManager(pool),
		Pool:     pool,
		Random:   Seeded(seed),
		Labels:   make(map[uint32]*graph.Node),
		Children: make(map[string]*Entity),
	}
}

// SetRoot installs root as the entity's program/data and rebuilds the
// label index from scratch.
func (e *Entity) SetRoot(root graph.Ref) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Root = root
	e.rebuildLabelIndex()
}

// rebuildLabelIndex walks the current root and (re)populates Labels.
// Called with mu held.
func (e *Entity) rebuildLabelIndex() {
	e.Labels = make(map[uint32]*graph.Node)
	visited := make(map[*graph.Node]bool)
	var walk func(n *graph.Node)
	walk = func(n *graph.Node) {
		if n == nil || visited[n] {
			return
		}
		visited[n] = true
		for _, l := range n.Labels {
			e.Labels[l] = n
		}
		for _, c := range n.Ordered {
			walk(c)
		}
		for _, c := range n.Mapped {
			walk(c)
		}
	}
	walk(e.Root.Node)
}

// Reseed replaces the entity's random stream with one derived from seed.
func (e *Entity) Reseed(seed string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Random = Seeded(seed)
}

// ReindexLabel records (or moves) a single label after an incremental
// mutation through the interpreter, avoiding a full tree walk on every
// label/set_labels opcode.
func (e *Entity) ReindexLabel(label uint32, n *graph.Node) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n == nil {
		delete(e.Labels, label)
		return
	}
	e.Labels[label] = n
}

// NodeByLabel resolves an interned label ID to the node it addresses,
// under a read lock.
func (e *Entity) NodeByLabel(label uint32) (*graph.Node, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n, ok := e.Labels[label]
	return n, ok
}

// CreateChild atomically creates and installs a new bare child entity,
// forking this entity's random stream by the child's name.
func (e *Entity) CreateChild(name string) (*Entity, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.Children[name]; exists {
		return nil, fmt.Errorf("entity: child %q already exists", name)
	}
	child := New(name, e.Pool, "")
	child.Random = e.Random.Fork(name)
	child.Container = e
	e.Children[name] = child
	return child, nil
}

// DestroyChild recursively destroys name's subtree and releases each
// arena wholesale.
func (e *Entity) DestroyChild(name string) error {
	e.mu.Lock()
	child, ok := e.Children[name]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("entity: no such child %q", name)
	}
	delete(e.Children, name)
	e.mu.Unlock()

	child.mu.Lock()
	names := make([]string, 0, len(child.Children))
	for n := range child.Children {
		names = append(names, n)
	}
	child.mu.Unlock()
	for _, n := range names {
		_ = child.DestroyChild(n)
	}
	return nil
}

// Child looks up an immediate child by name under a read lock.
func (e *Entity) Child(name string) (*Entity, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.Children[name]
	return c, ok
}

// ChildNames returns a snapshot of the current child names.
func (e *Entity) ChildNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.Children))
	for n := range e.Children {
		names = append(names, n)
	}
	return names
}

// AttachChild installs an already-built entity under name, replacing any
// existing child of that name. Used by move/clone, which construct the
// child before linking it.
func (e *Entity) AttachChild(name string, child *Entity) {
	e.mu.Lock()
	defer e.mu.Unlock()
	child.Name = name
	child.Container = e
	e.Children[name] = child
}

// DetachChild unlinks and returns a child without destroying it.
func (e *Entity) DetachChild(name string) (*Entity, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	child, ok := e.Children[name]
	if !ok {
		return nil, false
	}
	delete(e.Children, name)
	child.Container = nil
	return child, true
}

// ContainedCount returns the number of entities transitively contained
// in e, not counting e itself.
func (e *Entity) ContainedCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n := 0
	for _, c := range e.Children {
		n += 1 + c.ContainedCount()
	}
	return n
}

// ContainedDepth returns the depth of the deepest contained entity (0
// for a childless entity).
func (e *Entity) ContainedDepth() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	deepest := 0
	for _, c := range e.Children {
		deepest = maxInt(deepest, 1+c.ContainedDepth())
	}
	return deepest
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Path returns the list of child names from the outermost container
// down to e, the external entity-path format.
func (e *Entity) Path() []string {
	var path []string
	for cur := e; cur.Container != nil; cur = cur.Container {
		path = append([]string{cur.Name}, path...)
	}
	return path
}
