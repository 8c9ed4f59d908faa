package asset

import (
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/amalgraph/graph"
	"github.com/chazu/amalgraph/intern"
	"github.com/chazu/amalgraph/opcode"
)

// cborEncMode uses canonical encoding so the same tree always produces
// the same bytes — required for content-addressed caching.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("asset: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// nodeDoc is the interchange shape of a node; shared substructure and
// cycles are encoded by Ref pointing back at a previously emitted node
// index.
type nodeDoc struct {
	Kind        string              `cbor:"k"`
	Num         float64             `cbor:"n,omitempty"`
	Str         string              `cbor:"s,omitempty"`
	Labels      []string            `cbor:"l,omitempty"`
	Comment     string              `cbor:"c,omitempty"`
	Concurrency bool                `cbor:"p,omitempty"`
	Idempotent  bool                `cbor:"i,omitempty"`
	Ordered     []*nodeDoc          `cbor:"o,omitempty"`
	Mapped      map[string]*nodeDoc `cbor:"m,omitempty"`
	Ref         *uint32             `cbor:"r,omitempty"`
}

type docEncoder struct {
	pool *intern.Pool
	ids  map[*graph.Node]uint32
	next uint32
}

func (e *docEncoder) encode(n *graph.Node) *nodeDoc {
	if n == nil {
		return nil
	}
	if id, seen := e.ids[n]; seen {
		ref := id
		return &nodeDoc{Kind: "ref", Ref: &ref}
	}
	e.ids[n] = e.next
	e.next++

	d := &nodeDoc{
		Kind:        opcode.Name(n.Kind),
		Comment:     n.Comment,
		Concurrency: n.ConcurrencyRequested,
		Idempotent:  n.Idempotent,
	}
	switch n.Kind {
	case opcode.Number:
		d.Num = n.Num
	case opcode.String:
		d.Str = e.pool.Name(n.Str)
	case opcode.Symbol:
		d.Str = e.pool.Name(n.Sym)
	}
	for _, l := range n.Labels {
		d.Labels = append(d.Labels, e.pool.Name(l))
	}
	for _, c := range n.Ordered {
		d.Ordered = append(d.Ordered, e.encode(c))
	}
	if len(n.Mapped) > 0 {
		// Node indices are assigned in traversal order, so mapped
		// children must be visited deterministically on both sides.
		names := make([]string, 0, len(n.Mapped))
		byName := make(map[string]*graph.Node, len(n.Mapped))
		for k, c := range n.Mapped {
			name := e.pool.Name(k)
			names = append(names, name)
			byName[name] = c
		}
		sort.Strings(names)
		d.Mapped = make(map[string]*nodeDoc, len(names))
		for _, name := range names {
			d.Mapped[name] = e.encode(byName[name])
		}
	}
	return d
}

type docDecoder struct {
	m     *graph.Manager
	pool  *intern.Pool
	nodes []*graph.Node
}

func (d *docDecoder) decode(doc *nodeDoc) (*graph.Node, error) {
	if doc == nil {
		return nil, nil
	}
	if doc.Ref != nil {
		if int(*doc.Ref) >= len(d.nodes) {
			return nil, fmt.Errorf("asset: forward node reference %d", *doc.Ref)
		}
		target := d.nodes[*doc.Ref]
		target.NeedCycleCheck = true
		return target, nil
	}
	kind, ok := opcode.ByName(doc.Kind)
	if !ok {
		return nil, fmt.Errorf("asset: unknown node kind %q", doc.Kind)
	}
	r := d.m.Alloc(kind)
	if r == nil {
		return nil, fmt.Errorf("asset: node budget exhausted")
	}
	n := r.Node
	d.nodes = append(d.nodes, n)

	n.Comment = doc.Comment
	n.ConcurrencyRequested = doc.Concurrency
	n.Idempotent = doc.Idempotent
	switch kind {
	case opcode.Number:
		n.Num = doc.Num
	case opcode.String:
		n.Str = d.pool.Intern(doc.Str)
	case opcode.Symbol:
		n.Sym = d.pool.Intern(doc.Str)
	}
	for _, l := range doc.Labels {
		n.Labels = append(n.Labels, d.pool.Intern(l))
	}
	for _, c := range doc.Ordered {
		decoded, err := d.decode(c)
		if err != nil {
			return nil, err
		}
		n.Ordered = append(n.Ordered, decoded)
	}
	if len(doc.Mapped) > 0 {
		names := make([]string, 0, len(doc.Mapped))
		for k := range doc.Mapped {
			names = append(names, k)
		}
		sort.Strings(names)
		n.Mapped = make(map[uint32]*graph.Node, len(names))
		for _, k := range names {
			decoded, err := d.decode(doc.Mapped[k])
			if err != nil {
				return nil, err
			}
			n.Mapped[d.pool.Intern(k)] = decoded
		}
	}
	return n, nil
}

// CBORCodec serializes trees as canonical CBOR documents.
type CBORCodec struct{}

func (CBORCodec) Store(n *graph.Node, pool *intern.Pool) ([]byte, error) {
	enc := &docEncoder{pool: pool, ids: make(map[*graph.Node]uint32)}
	return cborEncMode.Marshal(enc.encode(n))
}

func (CBORCodec) Load(data []byte, m *graph.Manager, pool *intern.Pool) (graph.Ref, error) {
	var doc nodeDoc
	if err := cbor.Unmarshal(data, &doc); err != nil {
		return graph.Null, fmt.Errorf("asset: unmarshal node: %w", err)
	}
	dec := &docDecoder{m: m, pool: pool}
	root, err := dec.decode(&doc)
	if err != nil {
		return graph.Null, err
	}
	return graph.Ref{Node: root, Unique: true}, nil
}
