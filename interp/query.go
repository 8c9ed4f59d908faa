package interp

import (
	"sort"

	"github.com/chazu/amalgraph/entity"
	"github.com/chazu/amalgraph/graph"
	"github.com/chazu/amalgraph/opcode"
)

func init() {
	register(opcode.QuerySelect, opQuerySelect)
	register(opcode.QueryExists, opQueryExists)
	register(opcode.QueryCount, opQueryCount)
	register(opcode.QuerySum, aggregate(func(v []float64) (float64, bool) { return statSum(v), true }))
	register(opcode.QueryMax, aggregate(func(v []float64) (float64, bool) {
		return statExtreme(v, func(a, b float64) bool { return a > b })
	}))
	register(opcode.QueryMin, aggregate(func(v []float64) (float64, bool) {
		return statExtreme(v, func(a, b float64) bool { return a < b })
	}))
	register(opcode.QueryMode, aggregate(statMode))
	register(opcode.QueryQuantile, opQueryQuantile)
	register(opcode.QueryGeneralizedMean, opQueryGeneralizedMean)
	register(opcode.QuerySample, opQuerySample)
	register(opcode.QueryNearestGeneralizedDistance, opQueryNearest)
	register(opcode.ComputeEntityConvictions, perCase(statConvictions))
	register(opcode.ComputeEntityKLDivergences, perCase(statKLDivergences))
}

// queryScope resolves a query opcode's first argument to the entity whose
// children the query ranges over, held under read guards for the
// duration of the aggregation.
func (ip *Interpreter) queryScope(n *graph.Node) (*entity.Entity, []string, entity.ReadGuard, bool) {
	path := ip.evalEntityPath(child(n, 0))
	guard, target, err := ip.Entity.ReadReference(path)
	if err != nil {
		return nil, nil, entity.ReadGuard{}, false
	}
	names := target.ChildNames()
	sort.Strings(names)
	return target, names, guard, true
}

// caseValues gathers, per contained entity, the numeric value at the
// named key; entities without the key are skipped. The returned names
// line up with the values.
func (ip *Interpreter) caseValues(n *graph.Node) (names []string, values []float64, ok bool) {
	target, childNames, guard, scoped := ip.queryScope(n)
	if !scoped {
		return nil, nil, false
	}
	defer guard.Close()
	keyOk, key := ip.InterpretIntoString(child(n, 1))
	if !keyOk {
		return nil, nil, false
	}
	for _, name := range childNames {
		c, exists := target.Child(name)
		if !exists {
			continue
		}
		v := entityValue(c, ip.Pool, key)
		if v == nil || v.Kind != opcode.Number {
			continue
		}
		names = append(names, name)
		values = append(values, v.Num)
	}
	return names, values, true
}

func opQueryCount(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	_, names, guard, ok := ip.queryScope(n)
	if !ok {
		return graph.Null
	}
	guard.Close()
	return ip.allocNumber(float64(len(names)))
}

func opQueryExists(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	names, _, ok := ip.caseValues(n)
	if !ok {
		return graph.Null
	}
	return ip.pathToList(names)
}

// opQuerySelect returns the names of contained entities whose value at
// the key equals the third argument; with no third argument it behaves
// like query_exists.
func opQuerySelect(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	names, values, ok := ip.caseValues(n)
	if !ok {
		return graph.Null
	}
	want := child(n, 2)
	if want == nil {
		return ip.pathToList(names)
	}
	wantVal := ip.InterpretIntoNumber(want)
	var selected []string
	for i, name := range names {
		if values[i] == wantVal {
			selected = append(selected, name)
		}
	}
	return ip.pathToList(selected)
}

func aggregate(fn func([]float64) (float64, bool)) HandlerFunc {
	return func(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
		_, values, ok := ip.caseValues(n)
		if !ok {
			return graph.Null
		}
		result, valid := fn(values)
		if !valid {
			return graph.Null
		}
		return ip.allocNumber(result)
	}
}

func opQueryQuantile(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	_, values, ok := ip.caseValues(n)
	if !ok {
		return graph.Null
	}
	q := 0.5
	if c := child(n, 2); c != nil {
		q = ip.InterpretIntoNumber(c)
	}
	result, valid := statQuantile(values, q)
	if !valid {
		return graph.Null
	}
	return ip.allocNumber(result)
}

func opQueryGeneralizedMean(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	_, values, ok := ip.caseValues(n)
	if !ok {
		return graph.Null
	}
	p := 1.0
	if c := child(n, 2); c != nil {
		p = ip.InterpretIntoNumber(c)
	}
	result, valid := statGeneralizedMean(values, p)
	if !valid {
		return graph.Null
	}
	return ip.allocNumber(result)
}

// opQuerySample draws k contained-entity names uniformly (with
// replacement) from the target's random stream, so samples are
// reproducible per seed.
func opQuerySample(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	target, names, guard, ok := ip.queryScope(n)
	if !ok {
		return graph.Null
	}
	defer guard.Close()
	if len(names) == 0 {
		return ip.allocList()
	}
	k := 1
	if c := child(n, 1); c != nil {
		k = int(ip.InterpretIntoNumber(c))
	}
	sampled := make([]string, 0, k)
	for i := 0; i < k; i++ {
		idx := int(target.Random.NextDouble() * float64(len(names)))
		sampled = append(sampled, names[idx])
	}
	return ip.pathToList(sampled)
}

// opQueryNearest ranks contained entities by Minkowski distance between
// their values at the given keys and a target vector, returning the k
// nearest names. The distance is a plain Lp norm rather than the full
// generalized-distance measure; see the kernel notes in querystat.go.
func opQueryNearest(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
	target, childNames, guard, ok := ip.queryScope(n)
	if !ok {
		return graph.Null
	}
	defer guard.Close()

	keysArg := ip.interpretNode(child(n, 1), false)
	wantArg := ip.interpretNode(child(n, 2), false)
	if keysArg.Node == nil || keysArg.Node.Kind != opcode.List ||
		wantArg.Node == nil || wantArg.Node.Kind != opcode.List {
		return graph.Null
	}
	keys := make([]string, 0, len(keysArg.Node.Ordered))
	for _, c := range keysArg.Node.Ordered {
		if okStr, s := ip.InterpretIntoString(c); okStr {
			keys = append(keys, s)
		}
	}
	want := make([]float64, 0, len(wantArg.Node.Ordered))
	for _, c := range wantArg.Node.Ordered {
		want = append(want, ip.InterpretIntoNumber(c))
	}
	if len(keys) != len(want) {
		return graph.Null
	}
	k := 1
	if c := child(n, 3); c != nil {
		k = int(ip.InterpretIntoNumber(c))
	}
	p := 2.0
	if c := child(n, 4); c != nil {
		p = ip.InterpretIntoNumber(c)
	}

	type scored struct {
		name string
		d    float64
	}
	var candidates []scored
	for _, name := range childNames {
		c, exists := target.Child(name)
		if !exists {
			continue
		}
		vec := make([]float64, len(keys))
		complete := true
		for i, key := range keys {
			v := entityValue(c, ip.Pool, key)
			if v == nil || v.Kind != opcode.Number {
				complete = false
				break
			}
			vec[i] = v.Num
		}
		if !complete {
			continue
		}
		candidates = append(candidates, scored{name, lpDistance(vec, want, p)})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].d != candidates[j].d {
			return candidates[i].d < candidates[j].d
		}
		return candidates[i].name < candidates[j].name
	})
	if k < len(candidates) {
		candidates = candidates[:k]
	}
	names := make([]string, len(candidates))
	for i, s := range candidates {
		names[i] = s.name
	}
	return ip.pathToList(names)
}

// perCase wraps kernels that score every contained entity, returning an
// assoc of entity name to score.
func perCase(fn func([]float64) []float64) HandlerFunc {
	return func(ip *Interpreter, n *graph.Node, immediateOk bool) graph.Ref {
		names, values, ok := ip.caseValues(n)
		if !ok || len(values) == 0 {
			return graph.Null
		}
		scores := fn(values)
		out := ip.allocAssoc()
		if out.Node == nil {
			return graph.Null
		}
		for i, name := range names {
			v := ip.allocNumber(scores[i])
			if v.Node == nil {
				return graph.Null
			}
			out.Node.Mapped[ip.Pool.Intern(name)] = v.Node
		}
		return out
	}
}
