package interp

import (
	"strconv"
	"strings"

	"github.com/chazu/amalgraph/graph"
	"github.com/chazu/amalgraph/opcode"
)

func init() {
	register(opcode.Concat, opConcat)
	register(opcode.StringLength, opStringLength)
	register(opcode.Substr, opSubstr)
	register(opcode.StringToNumber, opStringToNumber)
	register(opcode.NumberToString, opNumberToString)
	register(opcode.Split, opSplit)
	register(opcode.Join, opJoin)
}

// stringify renders a value for string-building opcodes: strings as
// themselves, numbers in the shortest round-trippable form, booleans and
// null by name.
func (ip *Interpreter) stringify(n *graph.Node) string {
	if n == nil {
		return ""
	}
	switch n.Kind {
	case opcode.String:
		return ip.Pool.Name(n.Str)
	case opcode.Symbol:
		return ip.Pool.Name(n.Sym)
	case opcode.Number:
		return strconv.FormatFloat(n.Num, 'g', -1, 64)
	case opcode.True:
		return "true"
	case opcode.False:
		return "false"
	case opcode.Null:
		return "null"
	default:
		return ""
	}
}

func opConcat(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	var b strings.Builder
	for _, c := range n.Ordered {
		r := ip.interpretNode(c, true)
		b.WriteString(ip.stringify(r.Node))
		ip.Manager.FreeNodeTreeIfPossible(r)
	}
	return ip.allocString(b.String())
}

func opStringLength(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	ok, s := ip.InterpretIntoString(child(n, 0))
	if !ok {
		return graph.Null
	}
	return ip.allocNumber(float64(len([]rune(s))))
}

func opSubstr(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	ok, s := ip.InterpretIntoString(child(n, 0))
	if !ok {
		return graph.Null
	}
	runes := []rune(s)
	start := int(ip.InterpretIntoNumber(child(n, 1)))
	length := len(runes)
	if c := child(n, 2); c != nil {
		length = int(ip.InterpretIntoNumber(c))
	}
	if start < 0 {
		start += len(runes)
	}
	start = max(0, min(start, len(runes)))
	end := max(start, min(start+length, len(runes)))
	return ip.allocString(string(runes[start:end]))
}

func opStringToNumber(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	ok, s := ip.InterpretIntoString(child(n, 0))
	if !ok {
		return graph.Null
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return graph.Null
	}
	return ip.allocNumber(v)
}

func opNumberToString(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	r := ip.interpretNode(child(n, 0), true)
	s := ip.stringify(r.Node)
	ip.Manager.FreeNodeTreeIfPossible(r)
	return ip.allocString(s)
}

func opSplit(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	ok, s := ip.InterpretIntoString(child(n, 0))
	if !ok {
		return graph.Null
	}
	sep := " "
	if sepOk, sepArg := ip.InterpretIntoString(child(n, 1)); sepOk {
		sep = sepArg
	}
	out := ip.allocList()
	if out.Node == nil {
		return graph.Null
	}
	for _, part := range strings.Split(s, sep) {
		p := ip.allocString(part)
		if p.Node == nil {
			return graph.Null
		}
		out.Node.Ordered = append(out.Node.Ordered, p.Node)
	}
	return out
}

func opJoin(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	list := ip.interpretNode(child(n, 0), false)
	if list.Node == nil || list.Node.Kind != opcode.List {
		return graph.Null
	}
	sep := ""
	if sepOk, sepArg := ip.InterpretIntoString(child(n, 1)); sepOk {
		sep = sepArg
	}
	parts := make([]string, len(list.Node.Ordered))
	for i, c := range list.Node.Ordered {
		parts[i] = ip.stringify(c)
	}
	return ip.allocString(strings.Join(parts, sep))
}
