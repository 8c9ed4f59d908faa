package asset

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/chazu/amalgraph/entity"
	"github.com/chazu/amalgraph/graph"
	"github.com/chazu/amalgraph/intern"
	"github.com/chazu/amalgraph/opcode"
	"github.com/chazu/amalgraph/parse"
)

func buildAssoc(t *testing.T, pool *intern.Pool, m *graph.Manager, entries map[string]float64) *graph.Node {
	t.Helper()
	root := m.Alloc(opcode.Associative)
	root.Node.Mapped = make(map[uint32]*graph.Node)
	for k, v := range entries {
		n := m.Alloc(opcode.Number)
		n.Node.Num = v
		root.Node.Mapped[pool.Intern(k)] = n.Node
	}
	return root.Node
}

func TestEscapeRoundTrip(t *testing.T) {
	for _, id := range []string{"plain", "with space", "dots.ok", "under_score", "weird/:*?", "ünïcödé"} {
		escaped := escapeFilename(id)
		back, err := unescapeFilename(escaped)
		if err != nil {
			t.Fatalf("unescape(%q): %v", escaped, err)
		}
		if back != id {
			t.Fatalf("round trip %q -> %q -> %q", id, escaped, back)
		}
		if filepath.Base(escaped) != escaped {
			t.Fatalf("escaped name %q is not filesystem-safe", escaped)
		}
	}
}

func TestStoreAndReloadEntity(t *testing.T) {
	dir := t.TempDir()
	pool := intern.New()

	e := entity.New("A", pool, "seed-A")
	e.SetRoot(graph.Ref{Node: buildAssoc(t, pool, e.Manager, map[string]float64{"v": 42})})
	child, _ := e.CreateChild("inner")
	child.SetRoot(graph.Ref{Node: buildAssoc(t, pool, child.Manager, map[string]float64{"w": 7})})

	file := filepath.Join(dir, "A.amlg")
	if err := StoreEntity(file, e); err != nil {
		t.Fatalf("store: %v", err)
	}

	// Metadata must exist and carry rand_seed plus a version triple.
	md, ok := loadMetadata(metadataPath(file), pool)
	if !ok {
		t.Fatalf("metadata missing")
	}
	if md.RandSeed != "seed-A" {
		t.Fatalf("rand_seed = %q", md.RandSeed)
	}
	if _, err := ParseVersion(md.Version); err != nil {
		t.Fatalf("version %q unparsable: %v", md.Version, err)
	}

	loaded, status := LoadEntity(file, "A", pool)
	if !status.Loaded {
		t.Fatalf("reload failed: %s", status.Message)
	}
	if loaded.Random.Seed() != "seed-A" {
		t.Fatalf("seed not restored")
	}
	id, _ := pool.Lookup("v")
	v := loaded.Root.Node.Mapped[id]
	if v == nil || v.Num != 42 {
		t.Fatalf("root value lost")
	}
	inner, ok := loaded.Child("inner")
	if !ok {
		t.Fatalf("child not reloaded")
	}
	wid, _ := pool.Lookup("w")
	if w := inner.Root.Node.Mapped[wid]; w == nil || w.Num != 7 {
		t.Fatalf("child root lost")
	}
}

func TestVersionGate(t *testing.T) {
	if err := CheckLoadableVersion(Version{Major: 1, Minor: 1, Patch: 1}); err != nil {
		t.Fatalf("older same-major version should load: %v", err)
	}
	if err := CheckLoadableVersion(Version{Major: 2, Minor: 0, Patch: 1, Suffix: "x"}); err == nil {
		t.Fatalf("different major must fail")
	}
	if err := CheckLoadableVersion(Version{Major: 1, Minor: 99, Patch: 0, Suffix: "x"}); err == nil {
		t.Fatalf("strictly newer must fail")
	}
	// A zero field marks a development build and skips the gate.
	if err := CheckLoadableVersion(Version{Major: 9, Minor: 0, Patch: 0}); err != nil {
		t.Fatalf("dev build should skip the gate: %v", err)
	}
}

func codecRoundTrip(t *testing.T, codec Codec, source string) {
	t.Helper()
	pool := intern.New()
	m := graph.NewManager(pool)
	r, err := parse.Parse(source, m, pool, "t", false)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	data, err := codec.Store(r.Node, pool)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	m2 := graph.NewManager(pool)
	back, err := codec.Load(data, m2, pool)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	a := parse.Unparse(r.Node, pool, parse.UnparseOptions{SortKeys: true})
	b := parse.Unparse(back.Node, pool, parse.UnparseOptions{SortKeys: true})
	if a != b {
		t.Fatalf("codec changed tree:\n%s\nvs\n%s", a, b)
	}
}

func TestCodecRoundTrips(t *testing.T) {
	source := `(assoc "x" 1.5 "y" (list 1 2 3) "prog" (+ 1 2))`
	t.Run("native", func(t *testing.T) { codecRoundTrip(t, NativeCodec{}, source) })
	t.Run("cbor", func(t *testing.T) { codecRoundTrip(t, CBORCodec{}, source) })
	t.Run("compressed", func(t *testing.T) { codecRoundTrip(t, CompressedCodec{}, source) })
}

func TestCompressedSharedStructure(t *testing.T) {
	pool := intern.New()
	m := graph.NewManager(pool)
	shared := m.Alloc(opcode.Number)
	shared.Node.Num = 5
	root := m.Alloc(opcode.List)
	root.Node.Ordered = []*graph.Node{shared.Node, shared.Node}

	data, err := CompressedCodec{}.Store(root.Node, pool)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	m2 := graph.NewManager(pool)
	back, err := CompressedCodec{}.Load(data, m2, pool)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(back.Node.Ordered) != 2 || back.Node.Ordered[0] != back.Node.Ordered[1] {
		t.Fatalf("shared child not preserved as one node")
	}
}

func TestJSONCodec(t *testing.T) {
	pool := intern.New()
	m := graph.NewManager(pool)
	r, err := JSONCodec{}.Load([]byte(`{"a": [1, 2, true], "b": "text", "c": null}`), m, pool)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if r.Node.Kind != opcode.Associative {
		t.Fatalf("json object should load as assoc")
	}
	data, err := JSONCodec{}.Store(r.Node, pool)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	m2 := graph.NewManager(pool)
	if _, err := (JSONCodec{}).Load(data, m2, pool); err != nil {
		t.Fatalf("restore: %v", err)
	}
}

func TestCSVCodec(t *testing.T) {
	pool := intern.New()
	m := graph.NewManager(pool)
	r, err := CSVCodec{}.Load([]byte("a,1\nb,2\n"), m, pool)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(r.Node.Ordered) != 2 {
		t.Fatalf("expected 2 rows")
	}
	row := r.Node.Ordered[0]
	if row.Ordered[0].Kind != opcode.String || row.Ordered[1].Kind != opcode.Number {
		t.Fatalf("cell typing wrong")
	}
}

func TestContentCache(t *testing.T) {
	dir := t.TempDir()
	cache, err := OpenContentCache(filepath.Join(dir, "cache.db"), time.Hour)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer cache.Close()

	pool := intern.New()
	m := graph.NewManager(pool)
	n := m.Alloc(opcode.Number)
	n.Node.Num = 12.5

	h, err := cache.Put(n.Node, pool)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	m2 := graph.NewManager(pool)
	back, ok := cache.Get(h, m2, pool)
	if !ok || back.Node.Num != 12.5 {
		t.Fatalf("cache miss or wrong value")
	}
	if _, ok := cache.Get(h+1, m2, pool); ok {
		t.Fatalf("unexpected hit for unknown hash")
	}
}

func TestTextCodec(t *testing.T) {
	pool := intern.New()
	m := graph.NewManager(pool)
	r, err := TextCodec{}.Load([]byte("raw contents"), m, pool)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	data, err := TextCodec{}.Store(r.Node, pool)
	if err != nil || string(data) != "raw contents" {
		t.Fatalf("text round trip failed: %q %v", data, err)
	}
}
