// Package asset reads and writes node trees and whole entities from the
// filesystem. Each supported extension has a codec; entities store their
// root at base.ext, children in a sibling base/ directory and metadata
// (rand_seed, version) in base.metadata.
package asset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/amalgraph/graph"
	"github.com/chazu/amalgraph/intern"
	"github.com/chazu/amalgraph/opcode"
	"github.com/chazu/amalgraph/parse"
)

// Status reports the outcome of a load.
type Status struct {
	Loaded  bool
	Message string
	Version string
}

func failed(format string, args ...interface{}) Status {
	return Status{Message: fmt.Sprintf(format, args...)}
}

// Supported extensions.
const (
	ExtNative     = ".amlg"
	ExtCBOR       = ".cbor"
	ExtCompressed = ".caml"
	ExtJSON       = ".json"
	ExtYAML       = ".yaml"
	ExtCSV        = ".csv"
	ExtText       = ".txt"
	ExtMetadata   = ".metadata"
)

// Codec loads and stores one file format.
type Codec interface {
	Load(data []byte, m *graph.Manager, pool *intern.Pool) (graph.Ref, error)
	Store(n *graph.Node, pool *intern.Pool) ([]byte, error)
}

func codecFor(ext string) (Codec, bool) {
	switch strings.ToLower(ext) {
	case ExtNative, ExtMetadata:
		return NativeCodec{}, true
	case ExtCBOR:
		return CBORCodec{}, true
	case ExtCompressed:
		return CompressedCodec{}, true
	case ExtJSON:
		return JSONCodec{}, true
	case ExtYAML, ".yml":
		return YAMLCodec{}, true
	case ExtCSV:
		return CSVCodec{}, true
	case ExtText:
		return TextCodec{}, true
	default:
		return nil, false
	}
}

// LoadRoot reads the node tree stored at path into m.
func LoadRoot(path string, m *graph.Manager, pool *intern.Pool) (graph.Ref, Status) {
	codec, ok := codecFor(filepath.Ext(path))
	if !ok {
		return graph.Null, failed("asset: unsupported extension %q", filepath.Ext(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return graph.Null, failed("asset: %v", err)
	}
	root, err := codec.Load(data, m, pool)
	if err != nil {
		return graph.Null, failed("asset: %v", err)
	}
	return root, Status{Loaded: true, Version: EngineVersion().String()}
}

// StoreRoot writes the node tree to path in the format its extension
// names.
func StoreRoot(path string, n *graph.Node, pool *intern.Pool) error {
	codec, ok := codecFor(filepath.Ext(path))
	if !ok {
		return fmt.Errorf("asset: unsupported extension %q", filepath.Ext(path))
	}
	data, err := codec.Store(n, pool)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// NativeCodec is the textual surface syntax.
type NativeCodec struct{}

func (NativeCodec) Load(data []byte, m *graph.Manager, pool *intern.Pool) (graph.Ref, error) {
	return parse.Parse(string(data), m, pool, "", false)
}

func (NativeCodec) Store(n *graph.Node, pool *intern.Pool) ([]byte, error) {
	text := parse.Unparse(n, pool, parse.UnparseOptions{Pretty: true, EmitComments: true, SortKeys: true})
	return append([]byte(text), '\n'), nil
}

// TextCodec treats the whole file as one string leaf.
type TextCodec struct{}

func (TextCodec) Load(data []byte, m *graph.Manager, pool *intern.Pool) (graph.Ref, error) {
	id := pool.Intern(string(data))
	r := m.AllocWithReferenceHandoff(opcode.String, id)
	if r == nil {
		pool.Release(id)
		return graph.Null, fmt.Errorf("node budget exhausted")
	}
	return *r, nil
}

func (TextCodec) Store(n *graph.Node, pool *intern.Pool) ([]byte, error) {
	if n == nil || n.Kind != opcode.String {
		return nil, fmt.Errorf("asset: text store needs a string root")
	}
	return []byte(pool.Name(n.Str)), nil
}
