package graph

import (
	"testing"

	"github.com/chazu/amalgraph/intern"
	"github.com/chazu/amalgraph/opcode"
)

func newTestManager() *Manager {
	return NewManager(intern.New())
}

func TestAllocIsUnique(t *testing.T) {
	m := newTestManager()
	r := m.Alloc(opcode.Number)
	if r == nil || !r.Unique {
		t.Fatalf("fresh allocation must be unique")
	}
}

func TestBudgetSoftAborts(t *testing.T) {
	m := newTestManager()
	m.SetConstraints(&Constraints{MaxAllocatedNodes: 1})
	first := m.Alloc(opcode.Number)
	if first == nil {
		t.Fatalf("first allocation should succeed")
	}
	second := m.Alloc(opcode.Number)
	if second != nil {
		t.Fatalf("expected soft-abort (nil) once budget exhausted")
	}
}

func TestCollectGarbageSweepsUnreachable(t *testing.T) {
	m := newTestManager()
	root := m.Alloc(opcode.List)
	kept := m.Alloc(opcode.Number)
	root.Node.Ordered = append(root.Node.Ordered, kept.Node)

	_ = m.Alloc(opcode.Number) // unreachable once we collect

	if m.Used() != 3 {
		t.Fatalf("expected 3 live nodes before collection, got %d", m.Used())
	}
	m.CollectGarbage(root.Node)
	if m.Used() != 2 {
		t.Fatalf("expected 2 live nodes after collection, got %d", m.Used())
	}
}

func TestCollectGarbageHandlesCycle(t *testing.T) {
	m := newTestManager()
	a := m.Alloc(opcode.List)
	b := m.Alloc(opcode.List)
	a.Node.NeedCycleCheck = true
	b.Node.NeedCycleCheck = true
	a.Node.Ordered = append(a.Node.Ordered, b.Node)
	b.Node.Ordered = append(b.Node.Ordered, a.Node)

	done := make(chan struct{})
	go func() {
		m.CollectGarbage(a.Node)
		close(done)
	}()
	select {
	case <-done:
	default:
	}
	<-done // would hang forever if the cycle guard were missing
	if m.Used() != 2 {
		t.Fatalf("cyclic pair should both survive collection, got %d live", m.Used())
	}
}

func TestFreeNodeTreeIfPossibleRespectsUnique(t *testing.T) {
	m := newTestManager()
	r := m.Alloc(opcode.Number)
	aliased := r.Downgrade()
	m.FreeNodeTreeIfPossible(aliased)
	if m.Used() != 1 {
		t.Fatalf("non-unique ref must not be freed")
	}
	m.FreeNodeTreeIfPossible(*r)
	if m.Used() != 0 {
		t.Fatalf("unique ref should be freed")
	}
}
