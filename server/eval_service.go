package server

import (
	"fmt"

	"github.com/chazu/amalgraph/graph"
	"github.com/chazu/amalgraph/interp"
	"github.com/chazu/amalgraph/parse"
)

// EvalService parses and evaluates expressions against a session's root
// entity.
type EvalService struct {
	sessions *SessionStore
}

// NewEvalService creates an EvalService.
func NewEvalService(sessions *SessionStore) *EvalService {
	return &EvalService{sessions: sessions}
}

// EvalResult reports one evaluation.
type EvalResult struct {
	Success      bool
	Value        string
	ErrorMessage string
}

// Eval parses source in the session's arena, runs it, and unparses the
// result. A constraints block may be supplied to bound the evaluation;
// nil means unconstrained.
func (s *EvalService) Eval(sessionID, source string, constraints *graph.Constraints) EvalResult {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return EvalResult{ErrorMessage: fmt.Sprintf("no session %q", sessionID)}
	}
	program, err := parse.Parse(source, session.Root.Manager, session.Pool, session.Name, false)
	if err != nil {
		return EvalResult{ErrorMessage: err.Error()}
	}

	ip := interp.New(session.Root, session.Threads)
	ip.Constraints = constraints
	session.Root.Manager.SetConstraints(constraints)
	result := ip.Execute(program)
	session.Root.Manager.SetConstraints(nil)

	return EvalResult{
		Success: true,
		Value:   parse.Unparse(result.Node, session.Pool, parse.UnparseOptions{SortKeys: true}),
	}
}

// CheckSyntax validates source without executing it.
func (s *EvalService) CheckSyntax(sessionID, source string) error {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return fmt.Errorf("no session %q", sessionID)
	}
	_, err := parse.Parse(source, session.Root.Manager, session.Pool, session.Name, false)
	return err
}
