package interp

import (
	"math"

	"github.com/chazu/amalgraph/graph"
)

// PopulatePerformanceConstraintsFromParams implements
// populate_performance_constraints_from_params: parse up to six trailing
// parameters of an opcode into a Constraints block. A negative or NaN
// value means "no constraint" for that field.
func (ip *Interpreter) PopulatePerformanceConstraintsFromParams(params []*graph.Node, offset int, includeEntityConstraints bool) *graph.Constraints {
	c := &graph.Constraints{}
	num := func(i int) int64 {
		idx := offset + i
		if idx < 0 || idx >= len(params) {
			return -1
		}
		v := ip.InterpretIntoNumber(params[idx])
		if math.IsNaN(v) || v < 0 {
			return -1
		}
		return int64(v)
	}

	c.MaxExecutionSteps = num(0)
	c.MaxAllocatedNodes = num(1)
	c.MaxOpcodeDepth = num(2)
	if includeEntityConstraints {
		c.MaxContainedEntities = num(3)
		c.MaxContainedEntityDepth = num(4)
		c.MaxEntityIDLength = num(5)
	}
	return c
}

// PopulatePerformanceCounters implements populate_performance_counters:
// derive a child constraints block from ip's currently active one.
func (ip *Interpreter) PopulatePerformanceCounters(requested *graph.Constraints) *graph.Constraints {
	return ip.Constraints.DeriveChild(requested, ip.ThreadCount)
}
