package asset

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"go.yaml.in/yaml/v3"

	"github.com/chazu/amalgraph/graph"
	"github.com/chazu/amalgraph/intern"
	"github.com/chazu/amalgraph/opcode"
)

// fromInterface builds a node tree from the any-typed shapes the JSON
// and YAML decoders produce.
func fromInterface(v interface{}, m *graph.Manager, pool *intern.Pool) (*graph.Node, error) {
	alloc := func(k opcode.Kind) (*graph.Node, error) {
		r := m.Alloc(k)
		if r == nil {
			return nil, fmt.Errorf("asset: node budget exhausted")
		}
		return r.Node, nil
	}
	switch t := v.(type) {
	case nil:
		return alloc(opcode.Null)
	case bool:
		if t {
			return alloc(opcode.True)
		}
		return alloc(opcode.False)
	case float64:
		n, err := alloc(opcode.Number)
		if err != nil {
			return nil, err
		}
		n.Num = t
		return n, nil
	case int:
		n, err := alloc(opcode.Number)
		if err != nil {
			return nil, err
		}
		n.Num = float64(t)
		return n, nil
	case int64:
		n, err := alloc(opcode.Number)
		if err != nil {
			return nil, err
		}
		n.Num = float64(t)
		return n, nil
	case string:
		n, err := alloc(opcode.String)
		if err != nil {
			return nil, err
		}
		n.Str = pool.Intern(t)
		return n, nil
	case []interface{}:
		n, err := alloc(opcode.List)
		if err != nil {
			return nil, err
		}
		for _, item := range t {
			c, err := fromInterface(item, m, pool)
			if err != nil {
				return nil, err
			}
			n.Ordered = append(n.Ordered, c)
		}
		return n, nil
	case map[string]interface{}:
		n, err := alloc(opcode.Associative)
		if err != nil {
			return nil, err
		}
		n.Mapped = make(map[uint32]*graph.Node, len(t))
		for k, item := range t {
			c, err := fromInterface(item, m, pool)
			if err != nil {
				return nil, err
			}
			n.Mapped[pool.Intern(k)] = c
		}
		return n, nil
	default:
		return nil, fmt.Errorf("asset: untranslatable value %T", v)
	}
}

// toInterface flattens a node tree into plain values; opcode subtrees
// render as their unparsed text so no information silently vanishes.
func toInterface(n *graph.Node, pool *intern.Pool) interface{} {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case opcode.Null:
		return nil
	case opcode.True:
		return true
	case opcode.False:
		return false
	case opcode.Number:
		return n.Num
	case opcode.String:
		return pool.Name(n.Str)
	case opcode.Symbol:
		return pool.Name(n.Sym)
	case opcode.List:
		out := make([]interface{}, len(n.Ordered))
		for i, c := range n.Ordered {
			out[i] = toInterface(c, pool)
		}
		return out
	case opcode.Associative:
		out := make(map[string]interface{}, len(n.Mapped))
		for k, c := range n.Mapped {
			out[pool.Name(k)] = toInterface(c, pool)
		}
		return out
	default:
		data, _ := NativeCodec{}.Store(n, pool)
		return string(bytes.TrimRight(data, "\n"))
	}
}

// JSONCodec is a thin adapter over encoding/json.
type JSONCodec struct{}

func (JSONCodec) Load(data []byte, m *graph.Manager, pool *intern.Pool) (graph.Ref, error) {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return graph.Null, fmt.Errorf("asset: parse json: %w", err)
	}
	root, err := fromInterface(v, m, pool)
	if err != nil {
		return graph.Null, err
	}
	return graph.Ref{Node: root, Unique: true}, nil
}

func (JSONCodec) Store(n *graph.Node, pool *intern.Pool) ([]byte, error) {
	return json.MarshalIndent(toInterface(n, pool), "", "  ")
}

// YAMLCodec is a thin adapter over yaml/v3.
type YAMLCodec struct{}

func (YAMLCodec) Load(data []byte, m *graph.Manager, pool *intern.Pool) (graph.Ref, error) {
	var v interface{}
	if err := yaml.Unmarshal(data, &v); err != nil {
		return graph.Null, fmt.Errorf("asset: parse yaml: %w", err)
	}
	root, err := fromInterface(normalizeYAML(v), m, pool)
	if err != nil {
		return graph.Null, err
	}
	return graph.Ref{Node: root, Unique: true}, nil
}

func (YAMLCodec) Store(n *graph.Node, pool *intern.Pool) ([]byte, error) {
	return yaml.Marshal(toInterface(n, pool))
}

// normalizeYAML rewrites yaml's map[interface{}]interface{} shapes into
// the string-keyed maps fromInterface understands.
func normalizeYAML(v interface{}) interface{} {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, item := range t {
			out[fmt.Sprint(k)] = normalizeYAML(item)
		}
		return out
	case map[string]interface{}:
		for k, item := range t {
			t[k] = normalizeYAML(item)
		}
		return t
	case []interface{}:
		for i, item := range t {
			t[i] = normalizeYAML(item)
		}
		return t
	default:
		return v
	}
}

// CSVCodec maps a file to a list of row-lists; numeric-looking cells
// load as numbers, everything else as strings.
type CSVCodec struct{}

func (CSVCodec) Load(data []byte, m *graph.Manager, pool *intern.Pool) (graph.Ref, error) {
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return graph.Null, fmt.Errorf("asset: parse csv: %w", err)
	}
	root := m.Alloc(opcode.List)
	if root == nil {
		return graph.Null, fmt.Errorf("asset: node budget exhausted")
	}
	for _, row := range rows {
		rowNode := m.Alloc(opcode.List)
		if rowNode == nil {
			return graph.Null, fmt.Errorf("asset: node budget exhausted")
		}
		for _, cell := range row {
			var c *graph.Node
			if num, numErr := strconv.ParseFloat(cell, 64); numErr == nil {
				r := m.Alloc(opcode.Number)
				if r == nil {
					return graph.Null, fmt.Errorf("asset: node budget exhausted")
				}
				r.Node.Num = num
				c = r.Node
			} else {
				r := m.AllocWithReferenceHandoff(opcode.String, pool.Intern(cell))
				if r == nil {
					return graph.Null, fmt.Errorf("asset: node budget exhausted")
				}
				c = r.Node
			}
			rowNode.Node.Ordered = append(rowNode.Node.Ordered, c)
		}
		root.Node.Ordered = append(root.Node.Ordered, rowNode.Node)
	}
	return *root, nil
}

func (CSVCodec) Store(n *graph.Node, pool *intern.Pool) ([]byte, error) {
	if n == nil || n.Kind != opcode.List {
		return nil, fmt.Errorf("asset: csv store needs a list of rows")
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, row := range n.Ordered {
		if row == nil {
			continue
		}
		var cells []string
		switch row.Kind {
		case opcode.List:
			for _, c := range row.Ordered {
				cells = append(cells, cellString(c, pool))
			}
		case opcode.Associative:
			keys := make([]string, 0, len(row.Mapped))
			byName := make(map[string]*graph.Node, len(row.Mapped))
			for k, c := range row.Mapped {
				name := pool.Name(k)
				keys = append(keys, name)
				byName[name] = c
			}
			sort.Strings(keys)
			for _, k := range keys {
				cells = append(cells, cellString(byName[k], pool))
			}
		default:
			cells = append(cells, cellString(row, pool))
		}
		if err := w.Write(cells); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func cellString(n *graph.Node, pool *intern.Pool) string {
	if n == nil {
		return ""
	}
	switch n.Kind {
	case opcode.Number:
		return strconv.FormatFloat(n.Num, 'g', -1, 64)
	case opcode.String:
		return pool.Name(n.Str)
	case opcode.True:
		return "true"
	case opcode.False:
		return "false"
	default:
		return ""
	}
}
