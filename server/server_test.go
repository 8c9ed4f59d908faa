package server

import (
	"testing"

	"github.com/chazu/amalgraph/graph"
)

func TestSessionLifecycle(t *testing.T) {
	store := NewSessionStore(2)
	s := store.Create("workspace")
	if s.ID == "" {
		t.Fatalf("session needs an ID")
	}
	if got, ok := store.Get(s.ID); !ok || got != s {
		t.Fatalf("get after create failed")
	}
	if err := store.Destroy(s.ID); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if _, ok := store.Get(s.ID); ok {
		t.Fatalf("session should be gone")
	}
	if err := store.Destroy("missing"); err == nil {
		t.Fatalf("destroying unknown session should error")
	}
}

func TestEvalService(t *testing.T) {
	store := NewSessionStore(0)
	s := store.Create("w")
	eval := NewEvalService(store)

	result := eval.Eval(s.ID, "(+ 1 2 3)", nil)
	if !result.Success || result.Value != "6" {
		t.Fatalf("eval = %+v", result)
	}
	if r := eval.Eval("nope", "1", nil); r.Success {
		t.Fatalf("unknown session must fail")
	}
	if err := eval.CheckSyntax(s.ID, "(+ 1"); err == nil {
		t.Fatalf("bad syntax must be reported")
	}
}

func TestEvalServiceHonorsConstraints(t *testing.T) {
	store := NewSessionStore(0)
	s := store.Create("w")
	eval := NewEvalService(store)

	c := &graph.Constraints{MaxExecutionSteps: 50}
	result := eval.Eval(s.ID, "(while true 1)", c)
	if !result.Success {
		t.Fatalf("constrained eval should complete: %+v", result)
	}
	if result.Value != "null" {
		t.Fatalf("exhausted loop should yield null, got %q", result.Value)
	}
}

func TestBrowseAndInspect(t *testing.T) {
	store := NewSessionStore(0)
	s := store.Create("w")
	eval := NewEvalService(store)
	browse := NewBrowseService(store)
	inspect := NewInspectService(store)

	eval.Eval(s.ID, `(create_entities (list "A") (assoc "v" 1))`, nil)
	eval.Eval(s.ID, `(create_entities (list "A" "B") (assoc "w" 2))`, nil)

	infos, err := browse.ListEntities(s.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("expected root+A+B, got %d entities", len(infos))
	}

	stats, err := inspect.Inspect(s.ID, nil)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if stats.Entities != 3 || stats.EntityDepth != 2 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.LiveNodes == 0 {
		t.Fatalf("live node count should be nonzero")
	}
}
