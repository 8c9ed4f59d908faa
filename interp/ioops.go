package interp

import (
	"io"
	"os"

	"github.com/chazu/amalgraph/graph"
	"github.com/chazu/amalgraph/opcode"
	"github.com/chazu/amalgraph/parse"
)

// Output is where print writes; tests redirect it.
var Output io.Writer = os.Stdout

func init() {
	register(opcode.Print, opPrint)
	register(opcode.ReadFile, opReadFile)
	register(opcode.WriteFile, opWriteFile)
}

// opPrint writes each argument: strings raw, everything else unparsed.
func opPrint(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	for _, c := range n.Ordered {
		r := ip.interpretNode(c, false)
		if r.Node != nil && r.Node.Kind == opcode.String {
			io.WriteString(Output, ip.Pool.Name(r.Node.Str))
		} else {
			io.WriteString(Output, parse.Unparse(r.Node, ip.Pool, parse.UnparseOptions{}))
		}
		ip.Manager.FreeNodeTreeIfPossible(r)
	}
	return graph.Null
}

func opReadFile(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	ok, path := ip.InterpretIntoString(child(n, 0))
	if !ok {
		return graph.Null
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return graph.Null
	}
	return ip.allocString(string(data))
}

func opWriteFile(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	ok, path := ip.InterpretIntoString(child(n, 0))
	if !ok {
		return ip.allocBool(false)
	}
	dataOk, data := ip.InterpretIntoString(child(n, 1))
	if !dataOk {
		return ip.allocBool(false)
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		return ip.allocBool(false)
	}
	return ip.allocBool(true)
}
