// Package actors provides the workspace roster: who may act on the
// reconciliation session and in what role. The roster is an explicit handle
// constructed once and passed where needed; there is no global registry.
package actors

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/recondesk-dev/recondesk/internal/model"
)

// Service provides in-memory lookup over the actor roster.
type Service struct {
	actors []model.Actor
	byID   map[string]model.Actor
}

// NewService creates a Service from a slice of actors.
func NewService(actors []model.Actor) *Service {
	byID := make(map[string]model.Actor, len(actors))
	for _, a := range actors {
		byID[a.ID] = a
	}
	return &Service{actors: actors, byID: byID}
}

// Load reads actors.csv from a workspace root and returns a Service.
func Load(workspaceRoot string) (*Service, error) {
	path := filepath.Join(workspaceRoot, "actors.csv")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening actor roster: %w", err)
	}
	defer f.Close()

	roster, err := ReadActors(f)
	if err != nil {
		return nil, fmt.Errorf("reading actor roster: %w", err)
	}
	return NewService(roster), nil
}

// All returns all actors.
func (s *Service) All() []model.Actor {
	return s.actors
}

// Get returns an actor by ID.
func (s *Service) Get(id string) (model.Actor, bool) {
	a, ok := s.byID[id]
	return a, ok
}

// Exists reports whether an actor ID is on the roster.
func (s *Service) Exists(id string) bool {
	_, ok := s.byID[id]
	return ok
}

// ByRole returns all actors holding the given role.
func (s *Service) ByRole(role model.Role) []model.Actor {
	var result []model.Actor
	for _, a := range s.actors {
		if a.Role == role {
			result = append(result, a)
		}
	}
	return result
}

// Save writes the roster to <workspaceRoot>/actors.csv.
func (s *Service) Save(workspaceRoot string) error {
	path := filepath.Join(workspaceRoot, "actors.csv")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating actor roster file: %w", err)
	}
	defer f.Close()

	if err := WriteActors(f, s.actors); err != nil {
		return fmt.Errorf("writing actor roster: %w", err)
	}
	return nil
}

// DefaultRoster returns the starter roster written by `recondesk init`.
func DefaultRoster() []model.Actor {
	return []model.Actor{
		{ID: "admin", Name: "Workspace Admin", Role: model.RoleAdmin, Active: true},
		{ID: "manager", Name: "Reconciliation Manager", Role: model.RoleManager, Active: true},
		{ID: "analyst", Name: "Reconciliation Analyst", Role: model.RoleAnalyst, Active: true},
		{ID: "auditor", Name: "Compliance Auditor", Role: model.RoleAuditor, Active: true},
	}
}
