package engine

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/recondesk-dev/recondesk/internal/model"
)

// captureSnapshot deep-copies the current state. Caller holds the mutex.
func (s *Session) captureSnapshot(label string, typ model.SnapshotType, createdBy string) *model.SystemSnapshot {
	snap := &model.SystemSnapshot{
		ID:        uuid.NewString(),
		Label:     label,
		Type:      typ,
		Stats:     s.statsLocked(),
		CreatedBy: createdBy,
		CreatedAt: s.now(),
	}
	for _, serial := range s.order {
		snap.Transactions = append(snap.Transactions, *s.txns[serial])
	}
	for _, g := range s.sortedMatches() {
		snap.Matches = append(snap.Matches, g.Clone())
	}
	return snap
}

// CreateSnapshot captures a labeled, independently retained copy of the full
// state. Snapshots are user-visible and never auto-pruned, unlike undo
// checkpoints.
func (s *Session) CreateSnapshot(label string, typ model.SnapshotType, actor model.Actor) (model.SystemSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !actor.Active {
		return model.SystemSnapshot{}, &PermissionDeniedError{ActorID: actor.ID, Op: "snapshot"}
	}
	if typ == "" {
		typ = model.SnapshotManual
	}

	snap := s.captureSnapshot(label, typ, actor.ID)

	entry := s.newEntry(actor, "snapshot.create", "snapshot", snap.ID,
		fmt.Sprintf("created %s snapshot %q (%d transactions, %d matches)",
			snap.Type, snap.Label, len(snap.Transactions), len(snap.Matches)),
		"", "", "")

	if _, err := s.commitAndAdopt(CommitSet{Snapshots: []model.SystemSnapshot{*snap}}, entry); err != nil {
		return model.SystemSnapshot{}, err
	}

	s.snapshots = append(s.snapshots, snap)
	return *snap, nil
}

// RestoreSnapshot replaces the reconciliation state with a snapshot's
// contents and clears active selections. The restore itself is checkpointed
// first, so it is undoable.
func (s *Session) RestoreSnapshot(snapshotID string, actor model.Actor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guard(); err != nil {
		return err
	}
	if !actor.Can(model.PermRestore) {
		s.auditDenied(actor, "snapshot.restore", "snapshot", snapshotID, "restore denied")
		return &PermissionDeniedError{ActorID: actor.ID, Permission: model.PermRestore, Op: "restore"}
	}

	var snap *model.SystemSnapshot
	for _, candidate := range s.snapshots {
		if candidate.ID == snapshotID {
			snap = candidate
			break
		}
	}
	if snap == nil {
		return &NotFoundError{Entity: "snapshot", ID: snapshotID}
	}

	cp := s.begin(fmt.Sprintf("restore of snapshot %q", snap.Label))
	cp.touchOrder(s)
	for serial := range s.txns {
		cp.touchTxn(s, serial)
	}
	for _, t := range snap.Transactions {
		cp.touchTxn(s, t.Serial)
	}
	for matchID := range s.matches {
		cp.touchMatch(s, matchID)
	}
	for _, g := range snap.Matches {
		cp.touchMatch(s, g.ID)
	}

	s.txns = make(map[string]*model.Transaction, len(snap.Transactions))
	s.order = nil
	for _, t := range snap.Transactions {
		txn := t
		s.txns[txn.Serial] = &txn
		s.order = append(s.order, txn.Serial)
	}
	s.matches = make(map[string]*model.MatchGroup, len(snap.Matches))
	for _, g := range snap.Matches {
		grp := g.Clone()
		s.matches[grp.ID] = &grp
	}
	s.selections = make(map[string]bool)
	cp.finish(s)

	entry := s.newEntry(actor, "snapshot.restore", "snapshot", snap.ID,
		fmt.Sprintf("restored snapshot %q", snap.Label), "", "", "")

	if _, err := s.commitAndAdopt(cp.commitSetAfter(), entry); err != nil {
		cp.applyBefore(s)
		return err
	}

	s.push(cp)
	return nil
}

// Snapshots returns all retained snapshots in creation order.
func (s *Session) Snapshots() []model.SystemSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.SystemSnapshot, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		out = append(out, *snap)
	}
	return out
}

// statsLocked computes aggregate figures. Caller holds the mutex.
func (s *Session) statsLocked() model.SnapshotStats {
	stats := model.SnapshotStats{
		TransactionCount: len(s.txns),
		MatchGroupCount:  len(s.matches),
		MatchedValue:     decimal.Zero,
	}
	for _, t := range s.txns {
		if t.Status != model.StatusMatched {
			continue
		}
		stats.MatchedCount++
		if !t.ReconType.IsDebit() {
			stats.MatchedValue = stats.MatchedValue.Add(t.Amount)
		}
	}
	return stats
}
