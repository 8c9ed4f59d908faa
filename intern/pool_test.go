package intern

import "testing"

func TestInternReuse(t *testing.T) {
	p := New()
	a := p.Intern("hello")
	b := p.Intern("hello")
	if a != b {
		t.Fatalf("expected same id, got %d and %d", a, b)
	}
	if p.Name(a) != "hello" {
		t.Fatalf("expected name hello, got %q", p.Name(a))
	}
}

func TestReservedIDs(t *testing.T) {
	p := New()
	if p.Name(NotAString) != "" {
		t.Fatalf("NotAString should carry no name")
	}
	if id, _ := p.Lookup(""); id != EmptyString {
		t.Fatalf("expected empty string to map to reserved id %d, got %d", EmptyString, id)
	}
}

func TestReleaseFreesSlotForReuse(t *testing.T) {
	p := New()
	id := p.Intern("transient")
	p.Release(id)
	if _, ok := p.Lookup("transient"); ok {
		t.Fatalf("expected slot to be released")
	}
	again := p.Intern("transient")
	if p.Name(again) != "transient" {
		t.Fatalf("expected reinterned name to resolve")
	}
}

func TestRefcountKeepsSlotAlive(t *testing.T) {
	p := New()
	id := p.Intern("shared")
	p.Intern("shared") // second holder
	p.Release(id)
	if p.Name(id) != "shared" {
		t.Fatalf("slot should still be alive with one remaining ref")
	}
	p.Release(id)
	if p.Name(id) != "" {
		t.Fatalf("slot should be freed once refcount drops to zero")
	}
}
