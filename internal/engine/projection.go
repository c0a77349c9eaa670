package engine

import (
	"sort"

	"github.com/recondesk-dev/recondesk/internal/audit"
	"github.com/recondesk-dev/recondesk/internal/model"
	"github.com/recondesk-dev/recondesk/internal/workflow"
)

// Read-only projections for the presentation layer. Everything here returns
// copies; callers cannot reach the engine's internal state.

// Transactions returns all transactions in import order.
func (s *Session) Transactions() []model.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Transaction, 0, len(s.order))
	for _, serial := range s.order {
		out = append(out, *s.txns[serial])
	}
	return out
}

// FilteredTransactions returns transactions passing the active filter, in
// import order.
func (s *Session) FilteredTransactions() []model.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Transaction
	for _, serial := range s.order {
		if s.filters.Match(*s.txns[serial]) {
			out = append(out, *s.txns[serial])
		}
	}
	return out
}

// Transaction returns one transaction by serial.
func (s *Session) Transaction(serial string) (model.Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.txns[serial]
	if !ok {
		return model.Transaction{}, false
	}
	return *t, true
}

// Matches returns all match groups ordered by reference.
func (s *Session) Matches() []model.MatchGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedMatches()
}

// Match returns one match group by id.
func (s *Session) Match(matchID string) (model.MatchGroup, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.matches[matchID]
	if !ok {
		return model.MatchGroup{}, false
	}
	return g.Clone(), true
}

func (s *Session) sortedMatches() []model.MatchGroup {
	out := make([]model.MatchGroup, 0, len(s.matches))
	for _, g := range s.matches {
		out = append(out, g.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ref < out[j].Ref })
	return out
}

// AuditTrail returns the full audit chain in creation order.
func (s *Session) AuditTrail() []audit.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chain.Entries()
}

// CanUndo reports whether an undo step is available.
func (s *Session) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.undo) > 0
}

// CanRedo reports whether a redo step is available.
func (s *Session) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.redo) > 0
}

// WorkflowState returns the sheet's current workflow state and its legal
// next states.
func (s *Session) WorkflowState() (workflow.State, []workflow.State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wf, ok := s.workflows.Get(s.sheetID)
	if !ok {
		return "", nil
	}
	return wf.Current, wf.Next()
}

// Stats returns current aggregate figures.
func (s *Session) Stats() model.SnapshotStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statsLocked()
}

// Suspended reports whether mutation is suspended pending investigation.
func (s *Session) Suspended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suspended
}

// SheetID returns the sheet this session reconciles.
func (s *Session) SheetID() string { return s.sheetID }

// Selected returns the selected transaction serials in import order.
func (s *Session) Selected() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for _, serial := range s.order {
		if s.selections[serial] {
			out = append(out, serial)
		}
	}
	return out
}

// DraftComment returns the operator's in-progress comment.
func (s *Session) DraftComment() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draftComment
}

// ActiveFilters returns the current view filter.
func (s *Session) ActiveFilters() Filters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters
}
