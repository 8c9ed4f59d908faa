package server

import (
	"fmt"
	"sort"
)

// BrowseService lists a session's entity tree and labels.
type BrowseService struct {
	sessions *SessionStore
}

// NewBrowseService creates a BrowseService.
func NewBrowseService(sessions *SessionStore) *BrowseService {
	return &BrowseService{sessions: sessions}
}

// EntityInfo summarizes one entity for browsing.
type EntityInfo struct {
	Path     []string
	Labels   []string
	Children []string
	RandSeed string
}

// ListEntities walks the session's whole entity tree grouped by depth,
// holding read guards while the snapshot is taken.
func (s *BrowseService) ListEntities(sessionID string) ([]EntityInfo, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, fmt.Errorf("no session %q", sessionID)
	}
	levels, guards := session.Root.GetAllDeeplyContainedEntitiesGroupedByDepth()
	defer func() {
		for _, g := range guards {
			g.Close()
		}
	}()

	var out []EntityInfo
	for _, level := range levels {
		for _, e := range level {
			info := EntityInfo{
				Path:     e.Path(),
				Children: e.ChildNames(),
				RandSeed: e.Random.Seed(),
			}
			sort.Strings(info.Children)
			for id := range e.Labels {
				info.Labels = append(info.Labels, session.Pool.Name(id))
			}
			sort.Strings(info.Labels)
			out = append(out, info)
		}
	}
	return out, nil
}

// Labels returns the label names visible at an entity path.
func (s *BrowseService) Labels(sessionID string, path []string) ([]string, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, fmt.Errorf("no session %q", sessionID)
	}
	guard, target, err := session.Root.ReadReference(path)
	if err != nil {
		return nil, err
	}
	defer guard.Close()
	names := make([]string, 0, len(target.Labels))
	for id := range target.Labels {
		names = append(names, session.Pool.Name(id))
	}
	sort.Strings(names)
	return names, nil
}
