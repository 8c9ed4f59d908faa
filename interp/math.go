package interp

import (
	"math"

	"github.com/chazu/amalgraph/graph"
	"github.com/chazu/amalgraph/opcode"
)

func init() {
	register(opcode.Add, opAdd)
	register(opcode.Subtract, opSubtract)
	register(opcode.Multiply, opMultiply)
	register(opcode.Divide, opDivide)
	register(opcode.Modulus, opModulus)
	register(opcode.Exponent, opExponent)
	register(opcode.Negate, unaryMath(func(v float64) float64 { return -v }))
	register(opcode.Floor, unaryMath(math.Floor))
	register(opcode.Ceiling, unaryMath(math.Ceil))
	register(opcode.Round, unaryMath(math.Round))
	register(opcode.Sine, unaryMath(math.Sin))
	register(opcode.Cosine, unaryMath(math.Cos))
	register(opcode.Log, opLog)
	register(opcode.Sqrt, unaryMath(math.Sqrt))

	register(opcode.Rand, opRand)
	register(opcode.GetRandSeed, opGetRandSeed)
	register(opcode.SetRandSeed, opSetRandSeed)
}

func opAdd(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	sum := 0.0
	for _, c := range n.Ordered {
		sum += ip.InterpretIntoNumber(c)
		if ip.ExecutionResourcesExhausted() {
			return graph.Null
		}
	}
	return ip.allocNumber(sum)
}

func opSubtract(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	if len(n.Ordered) == 0 {
		return ip.allocNumber(0)
	}
	v := ip.InterpretIntoNumber(n.Ordered[0])
	if len(n.Ordered) == 1 {
		return ip.allocNumber(-v)
	}
	for _, c := range n.Ordered[1:] {
		v -= ip.InterpretIntoNumber(c)
	}
	return ip.allocNumber(v)
}

func opMultiply(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	product := 1.0
	for _, c := range n.Ordered {
		product *= ip.InterpretIntoNumber(c)
	}
	return ip.allocNumber(product)
}

func opDivide(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	if len(n.Ordered) == 0 {
		return ip.allocNumber(1)
	}
	v := ip.InterpretIntoNumber(n.Ordered[0])
	for _, c := range n.Ordered[1:] {
		v /= ip.InterpretIntoNumber(c)
	}
	return ip.allocNumber(v)
}

func opModulus(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	a := ip.InterpretIntoNumber(child(n, 0))
	b := ip.InterpretIntoNumber(child(n, 1))
	return ip.allocNumber(math.Mod(a, b))
}

func opExponent(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	a := ip.InterpretIntoNumber(child(n, 0))
	b := ip.InterpretIntoNumber(child(n, 1))
	return ip.allocNumber(math.Pow(a, b))
}

func unaryMath(fn func(float64) float64) HandlerFunc {
	return func(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
		return ip.allocNumber(fn(ip.InterpretIntoNumber(child(n, 0))))
	}
}

// opLog is natural log with one argument, log base b with two.
func opLog(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	v := math.Log(ip.InterpretIntoNumber(child(n, 0)))
	if len(n.Ordered) > 1 {
		v /= math.Log(ip.InterpretIntoNumber(n.Ordered[1]))
	}
	return ip.allocNumber(v)
}

// opRand draws from the entity's random stream: no argument yields a
// double in [0,1), a number argument scales the range to [0,arg), and a
// list argument picks a uniformly random element.
func opRand(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	if len(n.Ordered) == 0 {
		return ip.allocNumber(ip.Entity.Random.NextDouble())
	}
	arg := ip.interpretNode(n.Ordered[0], false)
	if arg.Node == nil {
		return ip.allocNumber(ip.Entity.Random.NextDouble())
	}
	defer ip.Manager.FreeNodeTreeIfPossible(arg)
	switch arg.Node.Kind {
	case opcode.Number:
		return ip.allocNumber(ip.Entity.Random.NextDouble() * arg.Node.Num)
	case opcode.List:
		if len(arg.Node.Ordered) == 0 {
			return graph.Null
		}
		i := int(ip.Entity.Random.NextDouble() * float64(len(arg.Node.Ordered)))
		return graph.Ref{Node: arg.Node.Ordered[i], Unique: false}
	default:
		return graph.Null
	}
}

func opGetRandSeed(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	return ip.allocString(ip.Entity.Random.Seed())
}

func opSetRandSeed(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	ok, seed := ip.InterpretIntoString(child(n, 0))
	if !ok {
		return graph.Null
	}
	ip.Entity.Reseed(seed)
	return ip.allocString(seed)
}
