package entity

import "testing"

func TestForkIsDeterministic(t *testing.T) {
	parent := Seeded("root-seed")
	a := parent.Fork("child")
	b := parent.Fork("child")
	if a.NextDouble() != b.NextDouble() {
		t.Fatalf("forking the same name twice should yield identical streams")
	}
}

func TestForkDiffersByName(t *testing.T) {
	parent := Seeded("root-seed")
	a := parent.Fork("alpha")
	b := parent.Fork("beta")
	if a.NextDouble() == b.NextDouble() {
		t.Fatalf("different child names should (almost certainly) diverge")
	}
}

func TestCreateAndDestroyChild(t *testing.T) {
	root := New("root", newTestPool(), "seed")
	child, err := root.CreateChild("A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if child.Container != root {
		t.Fatalf("child's container must point back to root")
	}
	if _, err := root.CreateChild("A"); err == nil {
		t.Fatalf("expected error creating duplicate child")
	}
	if err := root.DestroyChild("A"); err != nil {
		t.Fatalf("unexpected error destroying child: %v", err)
	}
	if _, ok := root.Child("A"); ok {
		t.Fatalf("child should be gone after destroy")
	}
}

func TestWriteReferenceTopDown(t *testing.T) {
	root := New("root", newTestPool(), "seed")
	a, _ := root.CreateChild("A")
	_, _ = a.CreateChild("B")

	guard, target, err := root.WriteReference([]string{"A", "B"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer guard.Close()
	if target.Name != "B" {
		t.Fatalf("expected to resolve to B, got %s", target.Name)
	}
}
