package graph

import (
	"sync"

	"github.com/chazu/amalgraph/intern"
	"github.com/chazu/amalgraph/opcode"
)

// Constraints is a performance-constraints block: budgets an entity's
// (or a sandboxed call's) evaluation must stay inside. Zero or negative
// fields mean "no constraint".
type Constraints struct {
	MaxExecutionSteps int64
	CurExecutionStep  int64

	MaxAllocatedNodes                     int64
	CurAllocatedNodesAttributedToEntities int64

	MaxOpcodeDepth int64

	MaxContainedEntities    int64
	MaxContainedEntityDepth int64
	MaxEntityIDLength       int64
}

// Exhausted reports whether any budget this block tracks has been used
// up. The interpreter polls it at every safe point and treats true as
// the sole cancellation mechanism: no exceptions, no timers.
func (c *Constraints) Exhausted() bool {
	if c == nil {
		return false
	}
	if c.MaxExecutionSteps > 0 && c.CurExecutionStep >= c.MaxExecutionSteps {
		return true
	}
	if c.MaxAllocatedNodes > 0 && c.CurAllocatedNodesAttributedToEntities >= c.MaxAllocatedNodes {
		return true
	}
	return false
}

// DeriveChild builds a nested evaluation's constraints block: each
// numeric budget in the child is the minimum of the child's own
// requested budget and the parent's remaining budget; an already
// exhausted parent budget forces the child's corresponding maximum down
// to 1 with its counter already at 1, so the child aborts on first use.
// threadCount > 1 scales MaxAllocatedNodes so concurrent workers each
// get a fair share, offset by the current watermark.
func (c *Constraints) DeriveChild(requested *Constraints, threadCount int) *Constraints {
	child := &Constraints{}
	if requested != nil {
		*child = *requested
	}
	if c == nil {
		return child
	}

	clampInt := func(childMax, parentMax, parentCur int64) int64 {
		parentRemaining := int64(-1)
		if parentMax > 0 {
			parentRemaining = parentMax - parentCur
			if parentRemaining < 0 {
				parentRemaining = 0
			}
		}
		switch {
		case parentMax > 0 && parentRemaining == 0:
			return 1 // exhausted: child aborts on first use
		case childMax <= 0:
			return parentMax
		case parentMax <= 0:
			return childMax
		case parentRemaining < childMax:
			return parentRemaining
		default:
			return childMax
		}
	}

	child.MaxExecutionSteps = clampInt(child.MaxExecutionSteps, c.MaxExecutionSteps, c.CurExecutionStep)

	maxNodes := c.MaxAllocatedNodes
	if threadCount > 1 && maxNodes > 0 {
		maxNodes *= int64(threadCount)
	}
	child.MaxAllocatedNodes = clampInt(child.MaxAllocatedNodes, maxNodes, c.CurAllocatedNodesAttributedToEntities)
	if child.MaxAllocatedNodes == 1 {
		child.CurAllocatedNodesAttributedToEntities = 1
	}

	child.MaxOpcodeDepth = clampInt(child.MaxOpcodeDepth, c.MaxOpcodeDepth, 0)
	child.MaxContainedEntities = clampInt(child.MaxContainedEntities, c.MaxContainedEntities, 0)
	child.MaxContainedEntityDepth = clampInt(child.MaxContainedEntityDepth, c.MaxContainedEntityDepth, 0)

	// Historical quirk, kept for compatibility: an exhausted id-length
	// budget (already forced to the abort sentinel) writes that sentinel
	// into the allocated-nodes budget rather than the id-length budget.
	if c.MaxEntityIDLength == 1 {
		child.MaxAllocatedNodes = 1
		child.CurAllocatedNodesAttributedToEntities = 1
	}
	child.MaxEntityIDLength = clampInt(child.MaxEntityIDLength, c.MaxEntityIDLength, 0)

	return child
}

// Manager is the arena + collector for one entity: it owns every node
// reachable from that entity's root, allocates new ones, and runs a
// stop-the-world mark-and-sweep when the allocation watermark is crossed.
type Manager struct {
	Pool *intern.Pool

	mu       sync.Mutex
	registry map[id]*Node
	nextID   id
	free     []id

	used      int
	highWater int

	constraints *Constraints

	extraRoots []*Node
}

// NewManager creates an arena backed by the given (shared) intern pool.
func NewManager(pool *intern.Pool) *Manager {
	return &Manager{
		Pool:      pool,
		registry:  make(map[id]*Node, 256),
		highWater: 1024,
	}
}

// SetConstraints installs the active performance-constraints block; nil
// disables budget checks.
func (m *Manager) SetConstraints(c *Constraints) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.constraints = c
}

func (m *Manager) nextSlot(n *Node) {
	if k := len(m.free); k > 0 {
		n.id = m.free[k-1]
		m.free = m.free[:k-1]
	} else {
		n.id = m.nextID
		m.nextID++
	}
	m.registry[n.id] = n
	m.used++
}

// Alloc allocates a bare node of the given kind. It returns a nil *Ref
// (the caller must check) when the active Constraints block's node
// budget is exhausted: a soft abort, never a panic or error.
func (m *Manager) Alloc(kind Kind) *Ref {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.constraints != nil && m.constraints.MaxAllocatedNodes > 0 &&
		m.constraints.CurAllocatedNodesAttributedToEntities >= m.constraints.MaxAllocatedNodes {
		return nil
	}
	if m.constraints != nil {
		m.constraints.CurAllocatedNodesAttributedToEntities++
	}

	n := &Node{Kind: kind}
	m.nextSlot(n)
	return &Ref{Node: n, Unique: true}
}

// AllocWithPayload allocates a node with a leaf payload already populated.
func (m *Manager) AllocWithPayload(kind Kind, num float64, strID uint32) *Ref {
	r := m.Alloc(kind)
	if r == nil {
		return nil
	}
	r.Node.Num = num
	r.Node.Str = strID
	if strID != intern.NotAString {
		m.Pool.Retain(strID)
	}
	return r
}

// AllocWithReferenceHandoff allocates a node and installs strID as its
// string payload without incrementing the pool refcount: the caller
// already owns a refcount on strID and is transferring it to the new node.
func (m *Manager) AllocWithReferenceHandoff(kind Kind, strID uint32) *Ref {
	r := m.Alloc(kind)
	if r == nil {
		return nil
	}
	r.Node.Str = strID
	return r
}

// releaseNode releases every intern refcount n directly owns (labels and
// any string payload) — the destructor step of the sweep.
func (m *Manager) releaseNode(n *Node) {
	for _, l := range n.Labels {
		m.Pool.Release(l)
	}
	if n.Kind == opcode.String && n.Str != intern.NotAString {
		m.Pool.Release(n.Str)
	}
	if n.Kind == opcode.Symbol && n.Sym != intern.NotAString {
		m.Pool.Release(n.Sym)
	}
	for k := range n.Mapped {
		m.Pool.Release(k)
	}
}

// FreeNode releases n's own intern references and reclaims its registry
// slot without touching children; legal only when the caller can prove
// no other reference reaches n.
func (m *Manager) FreeNode(n *Node) {
	if n == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseNode(n)
	delete(m.registry, n.id)
	m.free = append(m.free, n.id)
	m.used--
}

// FreeNodeTree recursively frees n and every descendant. Only safe when
// the caller can prove no aliasing exists anywhere in the subtree.
func (m *Manager) FreeNodeTree(n *Node) {
	if n == nil {
		return
	}
	for _, c := range n.Ordered {
		m.FreeNodeTree(c)
	}
	for _, c := range n.Mapped {
		m.FreeNodeTree(c)
	}
	m.FreeNode(n)
}

// FreeNodeTreeIfPossible frees ref's subtree only when ref.Unique;
// otherwise it is a no-op, since a non-unique reference may still be
// aliased elsewhere.
func (m *Manager) FreeNodeTreeIfPossible(ref Ref) {
	if !ref.Unique || ref.Node == nil {
		return
	}
	m.FreeNodeTree(ref.Node)
}

// KeepNodeReferences adds transient GC roots, used to keep intermediates
// produced mid-evaluation alive across a collection that happens to land
// between opcode dispatches.
func (m *Manager) KeepNodeReferences(nodes ...*Node) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extraRoots = append(m.extraRoots, nodes...)
}

// FreeNodeReferences removes transient GC roots added by
// KeepNodeReferences.
func (m *Manager) FreeNodeReferences(nodes ...*Node) {
	m.mu.Lock()
	defer m.mu.Unlock()
	remove := make(map[*Node]int, len(nodes))
	for _, n := range nodes {
		remove[n]++
	}
	kept := m.extraRoots[:0]
	for _, n := range m.extraRoots {
		if remove[n] > 0 {
			remove[n]--
			continue
		}
		kept = append(kept, n)
	}
	m.extraRoots = kept
}

// Used reports the number of live nodes currently tracked by this arena.
func (m *Manager) Used() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.used
}

// ShouldCollect reports whether used has crossed the rolling high-water
// mark, the trigger condition for a collection.
func (m *Manager) ShouldCollect() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.used > m.highWater
}
