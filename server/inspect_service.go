package server

import (
	"fmt"

	"github.com/chazu/amalgraph/graph"
)

// InspectService reports live engine statistics for a session.
type InspectService struct {
	sessions *SessionStore
}

// NewInspectService creates an InspectService.
func NewInspectService(sessions *SessionStore) *InspectService {
	return &InspectService{sessions: sessions}
}

// Stats is a point-in-time snapshot of a session's resource usage.
type Stats struct {
	LiveNodes       int
	InternedStrings int
	Entities        int
	EntityDepth     int
	ThreadPoolSize  int

	// Counters from the session's most recent constraints block, zero
	// when evaluations run unconstrained.
	ExecutionSteps int64
	AllocatedNodes int64
}

// Inspect snapshots a session.
func (s *InspectService) Inspect(sessionID string, constraints *graph.Constraints) (Stats, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return Stats{}, fmt.Errorf("no session %q", sessionID)
	}
	stats := Stats{
		LiveNodes:       session.Root.Manager.Used(),
		InternedStrings: session.Pool.Len(),
		Entities:        1 + session.Root.ContainedCount(),
		EntityDepth:     session.Root.ContainedDepth(),
		ThreadPoolSize:  session.Threads.Capacity(),
	}
	if constraints != nil {
		stats.ExecutionSteps = constraints.CurExecutionStep
		stats.AllocatedNodes = constraints.CurAllocatedNodesAttributedToEntities
	}
	return stats, nil
}
