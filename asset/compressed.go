package asset

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/klauspost/compress/zstd"

	"github.com/chazu/amalgraph/graph"
	"github.com/chazu/amalgraph/intern"
	"github.com/chazu/amalgraph/opcode"
)

// Compressed image layout: a fixed header, then a zstd frame holding a
// string dictionary followed by the tree payload. Every string in the
// payload (labels, comments, string/symbol values, mapped keys) is a
// varint index into the dictionary, so repeated identifiers cost one
// entry plus one byte per use before compression. Node kinds are written
// as their numeric values, not as names.

// ImageMagic identifies a compressed image file.
var ImageMagic = [4]byte{'A', 'M', 'L', 'G'}

// ImageVersion is the compressed image format version.
// v1: initial format
const ImageVersion uint32 = 1

const (
	imageFlagNone uint32 = 0
)

// payload node markers
const (
	markNode byte = 0x01
	markNil  byte = 0x02
	markRef  byte = 0x03
)

type imageWriter struct {
	pool    *intern.Pool
	strings []string
	index   map[string]uint64
	nodeIDs map[*graph.Node]uint64
	buf     bytes.Buffer
}

func (w *imageWriter) stringIndex(s string) uint64 {
	if i, ok := w.index[s]; ok {
		return i
	}
	i := uint64(len(w.strings))
	w.strings = append(w.strings, s)
	w.index[s] = i
	return i
}

func (w *imageWriter) uvarint(v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	w.buf.Write(tmp[:n])
}

func (w *imageWriter) node(n *graph.Node) {
	if n == nil {
		w.buf.WriteByte(markNil)
		return
	}
	if id, seen := w.nodeIDs[n]; seen {
		w.buf.WriteByte(markRef)
		w.uvarint(id)
		return
	}
	w.nodeIDs[n] = uint64(len(w.nodeIDs))

	w.buf.WriteByte(markNode)
	w.uvarint(uint64(n.Kind))

	var flags byte
	if n.NeedCycleCheck {
		flags |= 1
	}
	if n.Idempotent {
		flags |= 2
	}
	if n.ConcurrencyRequested {
		flags |= 4
	}
	w.buf.WriteByte(flags)

	switch n.Kind {
	case opcode.Number:
		var bits [8]byte
		binary.LittleEndian.PutUint64(bits[:], math.Float64bits(n.Num))
		w.buf.Write(bits[:])
	case opcode.String:
		w.uvarint(w.stringIndex(w.pool.Name(n.Str)))
	case opcode.Symbol:
		w.uvarint(w.stringIndex(w.pool.Name(n.Sym)))
	}

	w.uvarint(uint64(len(n.Labels)))
	for _, l := range n.Labels {
		w.uvarint(w.stringIndex(w.pool.Name(l)))
	}
	w.uvarint(w.stringIndex(n.Comment))

	w.uvarint(uint64(len(n.Ordered)))
	for _, c := range n.Ordered {
		w.node(c)
	}

	w.uvarint(uint64(len(n.Mapped)))
	keys := make([]string, 0, len(n.Mapped))
	byName := make(map[string]*graph.Node, len(n.Mapped))
	for k, c := range n.Mapped {
		name := w.pool.Name(k)
		keys = append(keys, name)
		byName[name] = c
	}
	sort.Strings(keys)
	for _, k := range keys {
		w.uvarint(w.stringIndex(k))
		w.node(byName[k])
	}
}

// CompressedCodec is the self-describing binary image format.
type CompressedCodec struct{}

func (CompressedCodec) Store(n *graph.Node, pool *intern.Pool) ([]byte, error) {
	w := &imageWriter{
		pool:    pool,
		index:   make(map[string]uint64),
		nodeIDs: make(map[*graph.Node]uint64),
	}
	w.node(n)

	var body bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte
	k := binary.PutUvarint(tmp[:], uint64(len(w.strings)))
	body.Write(tmp[:k])
	for _, s := range w.strings {
		k = binary.PutUvarint(tmp[:], uint64(len(s)))
		body.Write(tmp[:k])
		body.WriteString(s)
	}
	body.Write(w.buf.Bytes())

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()

	out := make([]byte, 0, 12+body.Len()/2)
	out = append(out, ImageMagic[:]...)
	out = binary.LittleEndian.AppendUint32(out, ImageVersion)
	out = binary.LittleEndian.AppendUint32(out, imageFlagNone)
	return enc.EncodeAll(body.Bytes(), out), nil
}

type imageReader struct {
	m       *graph.Manager
	pool    *intern.Pool
	strings []string
	data    []byte
	pos     int
	nodes   []*graph.Node
}

func (r *imageReader) uvarint() (uint64, error) {
	v, n := binary.Uvarint(r.data[r.pos:])
	if n <= 0 {
		return 0, fmt.Errorf("asset: truncated image")
	}
	r.pos += n
	return v, nil
}

func (r *imageReader) stringAt(i uint64) (string, error) {
	if i >= uint64(len(r.strings)) {
		return "", fmt.Errorf("asset: string index %d out of range", i)
	}
	return r.strings[i], nil
}

func (r *imageReader) node() (*graph.Node, error) {
	if r.pos >= len(r.data) {
		return nil, fmt.Errorf("asset: truncated image")
	}
	mark := r.data[r.pos]
	r.pos++
	switch mark {
	case markNil:
		return nil, nil
	case markRef:
		id, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		if id >= uint64(len(r.nodes)) {
			return nil, fmt.Errorf("asset: node reference %d out of range", id)
		}
		target := r.nodes[id]
		target.NeedCycleCheck = true
		return target, nil
	case markNode:
	default:
		return nil, fmt.Errorf("asset: bad node marker 0x%02x", mark)
	}

	kindVal, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	if kindVal >= uint64(opcode.Count) {
		return nil, fmt.Errorf("asset: bad node kind %d", kindVal)
	}
	ref := r.m.Alloc(opcode.Kind(kindVal))
	if ref == nil {
		return nil, fmt.Errorf("asset: node budget exhausted")
	}
	n := ref.Node
	r.nodes = append(r.nodes, n)

	if r.pos >= len(r.data) {
		return nil, fmt.Errorf("asset: truncated image")
	}
	flags := r.data[r.pos]
	r.pos++
	n.NeedCycleCheck = flags&1 != 0
	n.Idempotent = flags&2 != 0
	n.ConcurrencyRequested = flags&4 != 0

	switch n.Kind {
	case opcode.Number:
		if r.pos+8 > len(r.data) {
			return nil, fmt.Errorf("asset: truncated image")
		}
		n.Num = math.Float64frombits(binary.LittleEndian.Uint64(r.data[r.pos:]))
		r.pos += 8
	case opcode.String:
		i, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		s, err := r.stringAt(i)
		if err != nil {
			return nil, err
		}
		n.Str = r.pool.Intern(s)
	case opcode.Symbol:
		i, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		s, err := r.stringAt(i)
		if err != nil {
			return nil, err
		}
		n.Sym = r.pool.Intern(s)
	}

	labelCount, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < labelCount; i++ {
		idx, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		s, err := r.stringAt(idx)
		if err != nil {
			return nil, err
		}
		n.Labels = append(n.Labels, r.pool.Intern(s))
	}

	commentIdx, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	if n.Comment, err = r.stringAt(commentIdx); err != nil {
		return nil, err
	}

	orderedCount, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < orderedCount; i++ {
		c, err := r.node()
		if err != nil {
			return nil, err
		}
		n.Ordered = append(n.Ordered, c)
	}

	mappedCount, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	if mappedCount > 0 {
		n.Mapped = make(map[uint32]*graph.Node, mappedCount)
		for i := uint64(0); i < mappedCount; i++ {
			keyIdx, err := r.uvarint()
			if err != nil {
				return nil, err
			}
			key, err := r.stringAt(keyIdx)
			if err != nil {
				return nil, err
			}
			c, err := r.node()
			if err != nil {
				return nil, err
			}
			n.Mapped[r.pool.Intern(key)] = c
		}
	}
	return n, nil
}

func (CompressedCodec) Load(data []byte, m *graph.Manager, pool *intern.Pool) (graph.Ref, error) {
	if len(data) < 12 || !bytes.Equal(data[:4], ImageMagic[:]) {
		return graph.Null, fmt.Errorf("asset: not a compressed image")
	}
	version := binary.LittleEndian.Uint32(data[4:8])
	if version > ImageVersion {
		return graph.Null, fmt.Errorf("asset: image version %d newer than supported %d", version, ImageVersion)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return graph.Null, err
	}
	defer dec.Close()
	body, err := dec.DecodeAll(data[12:], nil)
	if err != nil {
		return graph.Null, fmt.Errorf("asset: decompress image: %w", err)
	}

	r := &imageReader{m: m, pool: pool, data: body}
	count, n := binary.Uvarint(body)
	if n <= 0 {
		return graph.Null, fmt.Errorf("asset: truncated image")
	}
	r.pos = n
	r.strings = make([]string, 0, count)
	for i := uint64(0); i < count; i++ {
		length, err := r.uvarint()
		if err != nil {
			return graph.Null, err
		}
		if r.pos+int(length) > len(body) {
			return graph.Null, fmt.Errorf("asset: truncated image")
		}
		r.strings = append(r.strings, string(body[r.pos:r.pos+int(length)]))
		r.pos += int(length)
	}
	root, err := r.node()
	if err != nil {
		return graph.Null, err
	}
	return graph.Ref{Node: root, Unique: true}, nil
}
