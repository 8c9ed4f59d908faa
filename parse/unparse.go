package parse

import (
	"sort"
	"strconv"
	"strings"

	"github.com/chazu/amalgraph/graph"
	"github.com/chazu/amalgraph/intern"
	"github.com/chazu/amalgraph/opcode"
)

// UnparseOptions controls rendering.
type UnparseOptions struct {
	Pretty       bool
	EmitComments bool
	SortKeys     bool
}

// Unparse renders a node tree back to surface text. Cyclic graphs
// terminate by rendering a revisited node as its first label (or null
// when unlabeled).
func Unparse(n *graph.Node, pool *intern.Pool, opts UnparseOptions) string {
	u := &unparser{pool: pool, opts: opts, visiting: make(map[*graph.Node]bool)}
	u.node(n, 0)
	return u.b.String()
}

type unparser struct {
	b        strings.Builder
	pool     *intern.Pool
	opts     UnparseOptions
	visiting map[*graph.Node]bool
}

func (u *unparser) indent(depth int) {
	if !u.opts.Pretty {
		return
	}
	u.b.WriteByte('\n')
	for i := 0; i < depth; i++ {
		u.b.WriteString("  ")
	}
}

func (u *unparser) prefix(n *graph.Node) {
	if u.opts.EmitComments && n.Comment != "" {
		for _, line := range strings.Split(n.Comment, "\n") {
			u.b.WriteString("; ")
			u.b.WriteString(line)
			u.b.WriteByte('\n')
		}
	}
	for _, l := range n.Labels {
		u.b.WriteByte('#')
		u.b.WriteString(u.pool.Name(l))
		u.b.WriteByte(' ')
	}
}

func (u *unparser) node(n *graph.Node, depth int) {
	if n == nil {
		u.b.WriteString("null")
		return
	}
	if u.visiting[n] {
		if len(n.Labels) > 0 {
			u.b.WriteByte('#')
			u.b.WriteString(u.pool.Name(n.Labels[0]))
		} else {
			u.b.WriteString("null")
		}
		return
	}
	u.visiting[n] = true
	defer delete(u.visiting, n)

	u.prefix(n)
	switch n.Kind {
	case opcode.Null:
		u.b.WriteString("null")
	case opcode.True:
		u.b.WriteString("true")
	case opcode.False:
		u.b.WriteString("false")
	case opcode.Number:
		u.b.WriteString(FormatNumber(n.Num))
	case opcode.String:
		u.str(u.pool.Name(n.Str))
	case opcode.Symbol:
		u.b.WriteString(u.pool.Name(n.Sym))
	default:
		u.composite(n, depth)
	}
}

// FormatNumber renders a double in the shortest form that parses back
// to the identical bits.
func FormatNumber(v float64) string {
	if v != v {
		return ".nan"
	}
	s := strconv.FormatFloat(v, 'g', -1, 64)
	switch s {
	case "+Inf":
		return ".infinity"
	case "-Inf":
		return "-.infinity"
	}
	return s
}

func (u *unparser) str(s string) {
	u.b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			u.b.WriteString(`\"`)
		case '\\':
			u.b.WriteString(`\\`)
		case '\n':
			u.b.WriteString(`\n`)
		case '\t':
			u.b.WriteString(`\t`)
		case '\r':
			u.b.WriteString(`\r`)
		case 0:
			u.b.WriteString(`\0`)
		default:
			u.b.WriteRune(r)
		}
	}
	u.b.WriteByte('"')
}

func (u *unparser) composite(n *graph.Node, depth int) {
	u.b.WriteByte('(')
	u.b.WriteString(opcode.Name(n.Kind))
	for _, c := range n.Ordered {
		if u.opts.Pretty && len(n.Ordered) > 3 {
			u.indent(depth + 1)
		} else {
			u.b.WriteByte(' ')
		}
		u.node(c, depth+1)
	}
	if len(n.Mapped) > 0 {
		keys := make([]uint32, 0, len(n.Mapped))
		for k := range n.Mapped {
			keys = append(keys, k)
		}
		if u.opts.SortKeys {
			sort.Slice(keys, func(i, j int) bool {
				return u.pool.Name(keys[i]) < u.pool.Name(keys[j])
			})
		}
		for _, k := range keys {
			if u.opts.Pretty {
				u.indent(depth + 1)
			} else {
				u.b.WriteByte(' ')
			}
			u.str(u.pool.Name(k))
			u.b.WriteByte(' ')
			u.node(n.Mapped[k], depth+1)
		}
	}
	u.b.WriteByte(')')
}
