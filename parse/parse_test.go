package parse

import (
	"testing"

	"github.com/chazu/amalgraph/graph"
	"github.com/chazu/amalgraph/intern"
	"github.com/chazu/amalgraph/opcode"
)

func parseOne(t *testing.T, text string) (graph.Ref, *intern.Pool) {
	t.Helper()
	pool := intern.New()
	m := graph.NewManager(pool)
	r, err := Parse(text, m, pool, "test", false)
	if err != nil {
		t.Fatalf("parse %q: %v", text, err)
	}
	return r, pool
}

func TestParseNumber(t *testing.T) {
	r, _ := parseOne(t, "42.5")
	if r.Node.Kind != opcode.Number || r.Node.Num != 42.5 {
		t.Fatalf("got kind %v num %v", r.Node.Kind, r.Node.Num)
	}
}

func TestParseComposite(t *testing.T) {
	r, _ := parseOne(t, "(+ 1 2 3)")
	if r.Node.Kind != opcode.Add || len(r.Node.Ordered) != 3 {
		t.Fatalf("got kind %v with %d children", r.Node.Kind, len(r.Node.Ordered))
	}
}

func TestParseAssocFoldsLiteralKeys(t *testing.T) {
	r, pool := parseOne(t, `(assoc "x" 10 "y" 20)`)
	if r.Node.Kind != opcode.Associative {
		t.Fatalf("got kind %v", r.Node.Kind)
	}
	if len(r.Node.Mapped) != 2 || len(r.Node.Ordered) != 0 {
		t.Fatalf("literal keys should fold to mapped children")
	}
	id, _ := pool.Lookup("x")
	if v := r.Node.Mapped[id]; v == nil || v.Num != 10 {
		t.Fatalf("x entry wrong")
	}
}

func TestParseLabelsAndComments(t *testing.T) {
	r, pool := parseOne(t, "; doc line\n#target (+ 1 2)")
	if len(r.Node.Labels) != 1 || pool.Name(r.Node.Labels[0]) != "target" {
		t.Fatalf("label not attached")
	}
	if r.Node.Comment != "doc line" {
		t.Fatalf("comment = %q", r.Node.Comment)
	}
}

func TestParseErrors(t *testing.T) {
	pool := intern.New()
	m := graph.NewManager(pool)
	for _, bad := range []string{"(", "(bogus_opcode 1)", `"unterminated`, "(+ 1))"} {
		if _, err := Parse(bad, m, pool, "test", false); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func roundTrip(t *testing.T, source string) {
	t.Helper()
	r, pool := parseOne(t, source)
	text := Unparse(r.Node, pool, UnparseOptions{SortKeys: true, EmitComments: true})
	m2 := graph.NewManager(pool)
	r2, err := Parse(text, m2, pool, "rt", false)
	if err != nil {
		t.Fatalf("reparse of %q failed: %v\n%s", source, err, text)
	}
	second := Unparse(r2.Node, pool, UnparseOptions{SortKeys: true, EmitComments: true})
	if text != second {
		t.Fatalf("round trip unstable for %q:\n%s\nvs\n%s", source, text, second)
	}
}

func TestRoundTrip(t *testing.T) {
	for _, source := range []string{
		"(+ 1 2 3)",
		`(assoc "x" 10 "y" (list 1 2 3))`,
		`(let (assoc "n" 5) (while (> (retrieve "n") 0) (assign "n" (- (retrieve "n") 1))))`,
		`(map (lambda (* (current_value) 2)) (list 1 2 3))`,
		`"a string with \"quotes\" and \n newline"`,
		"#lbl (seq 1 2)",
		"0.1",
		"1e300",
		"-2.5e-8",
		".infinity",
	} {
		roundTrip(t, source)
	}
}

func TestNumberPrecisionSurvives(t *testing.T) {
	// The shortest 'g' form must reparse to identical bits.
	for _, v := range []float64{0.1, 1.0 / 3.0, 2.718281828459045, 6.02214076e23} {
		s := FormatNumber(v)
		r, _ := parseOne(t, s)
		if r.Node.Num != v {
			t.Fatalf("%v formatted as %s reparsed to %v", v, s, r.Node.Num)
		}
	}
}
