package interp

import (
	"testing"

	"github.com/chazu/amalgraph/concurrency"
	"github.com/chazu/amalgraph/entity"
	"github.com/chazu/amalgraph/graph"
	"github.com/chazu/amalgraph/intern"
	"github.com/chazu/amalgraph/opcode"
	"github.com/chazu/amalgraph/parse"
)

type fixture struct {
	pool *intern.Pool
	root *entity.Entity
	ip   *Interpreter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	pool := intern.New()
	root := entity.New("root", pool, "test-seed")
	return &fixture{pool: pool, root: root, ip: New(root, nil)}
}

func (f *fixture) eval(t *testing.T, source string) graph.Ref {
	t.Helper()
	program, err := parse.Parse(source, f.root.Manager, f.pool, "test", false)
	if err != nil {
		t.Fatalf("parse %q: %v", source, err)
	}
	return f.ip.Execute(program)
}

func (f *fixture) evalNumber(t *testing.T, source string) float64 {
	t.Helper()
	r := f.eval(t, source)
	if r.Node == nil || r.Node.Kind != opcode.Number {
		t.Fatalf("evaluating %q: expected a number, got %s",
			source, parse.Unparse(r.Node, f.pool, parse.UnparseOptions{}))
	}
	return r.Node.Num
}

func TestAddition(t *testing.T) {
	f := newFixture(t)
	if got := f.evalNumber(t, "(+ 1 2 3)"); got != 6.0 {
		t.Fatalf("(+ 1 2 3) = %v, want 6", got)
	}
}

func TestRetrieveFromAssocRoot(t *testing.T) {
	f := newFixture(t)
	root := f.eval(t, `(assoc "x" 10 "y" 20)`)
	f.root.SetRoot(root)

	// Bind the root's entries as the base lexical frame, the way an
	// entity evaluation installs its root context.
	frame := f.ip.Call.Frames[0]
	for k, v := range root.Node.Mapped {
		frame.Mapped[k] = v
	}
	if got := f.evalNumber(t, `(retrieve "x")`); got != 10 {
		t.Fatalf(`(retrieve "x") = %v, want 10`, got)
	}
}

func TestWhileCountsDown(t *testing.T) {
	f := newFixture(t)
	f.ip.Constraints = &graph.Constraints{}
	got := f.evalNumber(t, `(let (assoc "n" 5)
		(while (> (retrieve "n") 0)
			(assign "n" (- (retrieve "n") 1))
			(retrieve "n")))`)
	if got != 0 {
		t.Fatalf("countdown loop = %v, want 0", got)
	}
	// 5 iterations of (cond, assign, body) plus setup; the step counter
	// must have advanced.
	if f.ip.Constraints.CurExecutionStep == 0 {
		t.Fatalf("execution steps not counted")
	}
}

func TestCallSandboxedBudget(t *testing.T) {
	f := newFixture(t)
	r := f.eval(t, `(call_sandboxed (lambda (while true 1)) (assoc) 100)`)
	if r.Node != nil {
		t.Fatalf("exhausted sandbox must yield null, got %s",
			parse.Unparse(r.Node, f.pool, parse.UnparseOptions{}))
	}
}

func TestCallSandboxedBudgetClampedByParent(t *testing.T) {
	f := newFixture(t)
	f.ip.Constraints = &graph.Constraints{MaxExecutionSteps: 40}
	f.eval(t, `(call_sandboxed (lambda (while true 1)) (assoc) 10000)`)
	if f.ip.Constraints.CurExecutionStep > 45 {
		t.Fatalf("child overran the parent's remaining budget: %d steps",
			f.ip.Constraints.CurExecutionStep)
	}
}

func mustListNumbers(t *testing.T, f *fixture, r graph.Ref, want []float64) {
	t.Helper()
	if r.Node == nil || r.Node.Kind != opcode.List {
		t.Fatalf("expected a list, got %s", parse.Unparse(r.Node, f.pool, parse.UnparseOptions{}))
	}
	if len(r.Node.Ordered) != len(want) {
		t.Fatalf("list length %d, want %d", len(r.Node.Ordered), len(want))
	}
	for i, c := range r.Node.Ordered {
		if c == nil || c.Kind != opcode.Number || c.Num != want[i] {
			t.Fatalf("element %d = %s, want %v", i,
				parse.Unparse(c, f.pool, parse.UnparseOptions{}), want[i])
		}
	}
}

func TestMapDoubles(t *testing.T) {
	f := newFixture(t)
	r := f.eval(t, `(map (lambda (* (current_value) 2)) (list 1 2 3))`)
	mustListNumbers(t, f, r, []float64{2, 4, 6})
}

func TestMapConcurrentMatchesSerial(t *testing.T) {
	pool := intern.New()
	root := entity.New("root", pool, "seed")
	ip := New(root, concurrency.New(8))

	program, err := parse.Parse(`(map (lambda (* (current_value) 2)) (list 1 2 3))`,
		root.Manager, pool, "test", false)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	program.Node.ConcurrencyRequested = true
	r := ip.Execute(program)
	mustListNumbers(t, &fixture{pool: pool, root: root, ip: ip}, r, []float64{2, 4, 6})
}

func TestFilterAndReduce(t *testing.T) {
	f := newFixture(t)
	r := f.eval(t, `(filter (lambda (> (current_value) 1)) (list 0 1 2 3))`)
	mustListNumbers(t, f, r, []float64{2, 3})

	if got := f.evalNumber(t, `(reduce (lambda (+ (previous_result) (current_value))) (list 1 2 3 4))`); got != 10 {
		t.Fatalf("reduce sum = %v, want 10", got)
	}
}

func TestWeaveRoundRobin(t *testing.T) {
	f := newFixture(t)
	r := f.eval(t, `(weave (list 1 3 5) (list 2 4 6))`)
	mustListNumbers(t, f, r, []float64{1, 2, 3, 4, 5, 6})
}

func TestAccumSemantics(t *testing.T) {
	f := newFixture(t)
	if got := f.evalNumber(t, `(let (assoc "n" 1) (accum "n" 2) (retrieve "n"))`); got != 3 {
		t.Fatalf("accum on number = %v, want 3", got)
	}
	r := f.eval(t, `(let (assoc "s" "ab") (accum "s" "cd") (retrieve "s"))`)
	if r.Node == nil || r.Node.Kind != opcode.String || f.pool.Name(r.Node.Str) != "abcd" {
		t.Fatalf("accum on string = %s", parse.Unparse(r.Node, f.pool, parse.UnparseOptions{}))
	}
	l := f.eval(t, `(let (assoc "l" (list 1)) (accum "l" (list 2 3)) (retrieve "l"))`)
	mustListNumbers(t, f, l, []float64{1, 2, 3})
}

func TestConcludeUnwindsOneLevel(t *testing.T) {
	f := newFixture(t)
	if got := f.evalNumber(t, `(seq 1 (conclude 42) 3)`); got != 42 {
		t.Fatalf("conclude = %v, want 42", got)
	}
}

func TestIfShortCircuit(t *testing.T) {
	f := newFixture(t)
	if got := f.evalNumber(t, `(if false 1 true 2 3)`); got != 2 {
		t.Fatalf("if = %v, want 2", got)
	}
	if got := f.evalNumber(t, `(if false 1 false 2 3)`); got != 3 {
		t.Fatalf("else branch = %v, want 3", got)
	}
}

func TestGetOrCreateBindsInTopFrame(t *testing.T) {
	f := newFixture(t)
	f.ip.Call.Push(f.root.Manager)
	sid := f.pool.Intern("fresh")
	v := f.ip.allocNumber(7)
	_, idx := f.ip.GetOrCreateCallStackSymbol(sid, v)
	if idx != f.ip.Call.Depth()-1 {
		t.Fatalf("new binding landed in frame %d, want topmost %d", idx, f.ip.Call.Depth()-1)
	}

	// An existing binding in an outer frame is found, not shadowed.
	outer := f.pool.Intern("outer")
	f.ip.Call.Frames[0].Mapped[outer] = f.ip.allocNumber(1).Node
	_, idx2, ok := f.ip.GetCallStackSymbol(outer, true, true)
	if !ok || idx2 != 0 {
		t.Fatalf("outer binding found at frame %d (ok=%v), want 0", idx2, ok)
	}
}

func TestGCPreservesResult(t *testing.T) {
	f := newFixture(t)
	// Evaluate after a hundred forced collections over a rooted entity:
	// the result must match the undisturbed evaluation.
	r1 := f.evalNumber(t, `(+ (* 2 3) (- 10 4))`)

	f2 := newFixture(t)
	f2.root.SetRoot(f2.eval(t, `(assoc "keep" 1)`))
	for i := 0; i < 100; i++ {
		f2.ip.collect()
	}
	r2 := f2.evalNumber(t, `(+ (* 2 3) (- 10 4))`)
	if r1 != r2 {
		t.Fatalf("gc changed result: %v vs %v", r1, r2)
	}
}

func TestEntityOpsRoundTrip(t *testing.T) {
	f := newFixture(t)
	created := f.eval(t, `(create_entities (list "A") (assoc "v" 42))`)
	if created.Node == nil || created.Node.Kind != opcode.List {
		t.Fatalf("create_entities should return the created path")
	}
	if got := f.evalNumber(t, `(retrieve_from_entity (list "A") "v")`); got != 42 {
		t.Fatalf("retrieve_from_entity = %v, want 42", got)
	}
	ok := f.eval(t, `(assign_to_entity (list "A") "v" 43)`)
	if ok.Node == nil || ok.Node.Kind != opcode.True {
		t.Fatalf("assign_to_entity failed")
	}
	if got := f.evalNumber(t, `(retrieve_from_entity (list "A") "v")`); got != 43 {
		t.Fatalf("after assign = %v, want 43", got)
	}
	exists := f.eval(t, `(entity_exists (list "A"))`)
	if exists.Node == nil || exists.Node.Kind != opcode.True {
		t.Fatalf("entity A should exist")
	}
	f.eval(t, `(destroy_entities (list "A"))`)
	gone := f.eval(t, `(entity_exists (list "A"))`)
	if gone.Node == nil || gone.Node.Kind != opcode.False {
		t.Fatalf("entity A should be destroyed")
	}
}

func TestPersistDestroyReload(t *testing.T) {
	f := newFixture(t)
	f.root.RootPermission = true
	dir := t.TempDir()
	file := dir + "/A.amlg"

	f.eval(t, `(create_entities (list "A") (assoc "v" 42))`)
	stored := f.eval(t, `(store_entity "`+file+`" (list "A"))`)
	if stored.Node == nil || stored.Node.Kind != opcode.True {
		t.Fatalf("store_entity failed")
	}
	f.eval(t, `(destroy_entities (list "A"))`)
	if r := f.eval(t, `(entity_exists (list "A"))`); r.Node.Kind != opcode.False {
		t.Fatalf("entity should be gone before reload")
	}
	loaded := f.eval(t, `(load_entity "`+file+`" (list "A"))`)
	if loaded.Node == nil || loaded.Node.Kind != opcode.List {
		t.Fatalf("load_entity failed")
	}
	if got := f.evalNumber(t, `(retrieve_from_entity (list "A") "v")`); got != 42 {
		t.Fatalf("reloaded value = %v, want 42", got)
	}
}

func TestQueryAggregates(t *testing.T) {
	f := newFixture(t)
	f.eval(t, `(create_entities (list "a") (assoc "v" 1))`)
	f.eval(t, `(create_entities (list "b") (assoc "v" 2))`)
	f.eval(t, `(create_entities (list "c") (assoc "v" 3))`)

	if got := f.evalNumber(t, `(query_count (list))`); got != 3 {
		t.Fatalf("query_count = %v, want 3", got)
	}
	if got := f.evalNumber(t, `(query_sum (list) "v")`); got != 6 {
		t.Fatalf("query_sum = %v, want 6", got)
	}
	if got := f.evalNumber(t, `(query_max (list) "v")`); got != 3 {
		t.Fatalf("query_max = %v, want 3", got)
	}
	if got := f.evalNumber(t, `(query_quantile (list) "v" 0.5)`); got != 2 {
		t.Fatalf("query_quantile = %v, want 2", got)
	}
}

func TestUniqueRetyping(t *testing.T) {
	f := newFixture(t)
	before := f.root.Manager.Used()
	r := f.ip.InterpretIntoUniqueNumberNode(f.eval(t, "(+ 1 2)").Node)
	if !r.Unique || r.Node.Kind != opcode.Number || r.Node.Num != 3 {
		t.Fatalf("expected unique number 3")
	}
	// Retyping the unique intermediate must not have allocated a second
	// node for the result.
	if grew := f.root.Manager.Used() - before; grew > 3 {
		t.Fatalf("retyping allocated %d nodes", grew)
	}
}

func TestCycleFlagOnSelfReference(t *testing.T) {
	f := newFixture(t)
	list := f.root.Manager.Alloc(opcode.List)
	list.Node.Ordered = append(list.Node.Ordered, list.Node)
	list.Node.NeedCycleCheck = true
	f.root.SetRoot(graph.Ref{Node: list.Node})

	// A collection over a cyclic root must terminate and keep the root.
	f.ip.collect()
	if f.root.Manager.Used() == 0 {
		t.Fatalf("cyclic root swept")
	}
}
