package engine

import (
	"fmt"

	"github.com/recondesk-dev/recondesk/internal/model"
)

// ApproveMatch marks a pending match group APPROVED, stamping the approver.
//
// Separation of duties: an actor who imported any transaction inside the
// group may not approve it, unless they are an Admin. Denied attempts are
// audited.
//
// Role adjustment limits are deliberately not checked here: ProposeMatch
// only ever accepts zero-difference groups, so there is no adjustment to
// limit. The limits remain defined on model.Role for a future tolerance
// matching mode.
func (s *Session) ApproveMatch(matchID string, actor model.Actor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guard(); err != nil {
		return err
	}
	if !actor.Can(model.PermApprove) {
		s.auditDenied(actor, "match.approve", "match", matchID, "approval denied")
		return &PermissionDeniedError{ActorID: actor.ID, Permission: model.PermApprove, Op: "approve"}
	}

	cp := s.begin("approve")
	if err := s.approveOne(cp, matchID, actor); err != nil {
		return err
	}
	s.push(cp)
	return nil
}

// approveOne validates and applies one approval under the given checkpoint.
// The caller has already checked the approve permission.
func (s *Session) approveOne(cp *checkpoint, matchID string, actor model.Actor) error {
	g, ok := s.matches[matchID]
	if !ok {
		return &NotFoundError{Entity: "match", ID: matchID}
	}
	if g.Status == model.MatchApproved {
		return &AlreadyApprovedError{MatchID: matchID}
	}

	if actor.Role != model.RoleAdmin {
		for _, serial := range g.Members() {
			t, ok := s.txns[serial]
			if !ok {
				return &NotFoundError{Entity: "transaction", ID: serial}
			}
			if t.ImporterID == actor.ID {
				s.auditDenied(actor, "match.approve", "match", matchID,
					fmt.Sprintf("conflict of interest: actor imported %s", serial))
				return &ConflictOfInterestError{ActorID: actor.ID, MatchID: matchID}
			}
		}
	}

	before := g.Clone()
	cp.label = "approve " + g.Ref

	child := s.begin("approve " + g.Ref)
	child.touchMatch(s, matchID)

	g.Status = model.MatchApproved
	g.ApprovedBy = actor.ID
	g.ApprovedAt = s.now()
	child.finish(s)

	entry := s.newEntry(actor, "match.approve", "match", matchID,
		fmt.Sprintf("approved %s", g.Ref), "", encodeJSON(before), encodeJSON(g.Clone()))

	if _, err := s.commitAndAdopt(child.commitSetAfter(), entry); err != nil {
		child.applyBefore(s)
		return err
	}

	cp.merge(child)
	return nil
}

// BatchApprove approves several match groups with per-item preconditions
// (including the conflict-of-interest rule) and a single aggregate
// checkpoint covering all successful items.
func (s *Session) BatchApprove(matchIDs []string, actor model.Actor) ([]BatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guard(); err != nil {
		return nil, err
	}
	if len(matchIDs) == 0 {
		return nil, &EmptySelectionError{Op: "batch approve"}
	}
	if !actor.Can(model.PermApprove) {
		s.auditDenied(actor, "match.batch_approve", "match", "",
			fmt.Sprintf("batch approval of %d groups denied", len(matchIDs)))
		return nil, &PermissionDeniedError{ActorID: actor.ID, Permission: model.PermApprove, Op: "batch approve"}
	}

	agg := s.begin(fmt.Sprintf("batch approval of %d groups", len(matchIDs)))
	results := make([]BatchResult, 0, len(matchIDs))
	succeeded := 0

	for _, matchID := range matchIDs {
		err := s.approveOne(agg, matchID, actor)
		results = append(results, BatchResult{MatchID: matchID, Err: err})
		if err == nil {
			succeeded++
		}
	}

	if succeeded > 0 {
		agg.label = fmt.Sprintf("batch approval of %d groups", succeeded)
		s.push(agg)
	}
	return results, nil
}
