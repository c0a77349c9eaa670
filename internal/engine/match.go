package engine

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/recondesk-dev/recondesk/internal/id"
	"github.com/recondesk-dev/recondesk/internal/model"
)

// ImportTransactions registers normalized records produced by the import
// collaborator. Import identity fields are trusted as-is; status is forced
// to UNMATCHED. An IMPORT snapshot is captured as part of the same unit.
func (s *Session) ImportTransactions(txns []model.Transaction, actor model.Actor) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guard(); err != nil {
		return 0, err
	}
	if len(txns) == 0 {
		return 0, &EmptySelectionError{Op: "import"}
	}
	if !actor.Can(model.PermMatch) {
		s.auditDenied(actor, "import.transactions", "sheet", s.sheetID,
			fmt.Sprintf("import of %d transactions denied", len(txns)))
		return 0, &PermissionDeniedError{ActorID: actor.ID, Permission: model.PermMatch, Op: "import"}
	}

	seen := make(map[string]bool, len(txns))
	for _, t := range txns {
		if t.Serial == "" {
			return 0, fmt.Errorf("transaction with empty serial")
		}
		if seen[t.Serial] {
			return 0, fmt.Errorf("duplicate serial %s in import", t.Serial)
		}
		if _, exists := s.txns[t.Serial]; exists {
			return 0, fmt.Errorf("serial %s already imported", t.Serial)
		}
		if !t.ReconType.Valid() {
			return 0, fmt.Errorf("transaction %s: unknown recon type %q", t.Serial, t.ReconType)
		}
		if t.Amount.IsNegative() {
			return 0, fmt.Errorf("transaction %s: negative amount %s", t.Serial, t.Amount)
		}
		seen[t.Serial] = true
	}

	cp := s.begin(fmt.Sprintf("import of %d transactions", len(txns)))
	cp.touchOrder(s)
	for _, t := range txns {
		cp.touchTxn(s, t.Serial)
	}

	for _, t := range txns {
		txn := t
		txn.Status = model.StatusUnmatched
		txn.MatchID = ""
		s.txns[txn.Serial] = &txn
		s.order = append(s.order, txn.Serial)
	}
	cp.finish(s)

	snap := s.captureSnapshot(fmt.Sprintf("import of %d transactions", len(txns)), model.SnapshotImport, actor.ID)

	entry := s.newEntry(actor, "import.transactions", "sheet", s.sheetID,
		fmt.Sprintf("imported %d transactions", len(txns)), "", "", "")
	set := cp.commitSetAfter()
	set.Snapshots = append(set.Snapshots, *snap)

	if _, err := s.commitAndAdopt(set, entry); err != nil {
		cp.applyBefore(s)
		return 0, err
	}

	s.snapshots = append(s.snapshots, snap)
	s.push(cp)
	return len(txns), nil
}

// ProposeMatch creates a match group over the given left and right
// transactions. Every referenced transaction must exist, be UNMATCHED, and
// fall outside any closed period, and the signed amounts across both sides
// must sum to exactly zero. On any failure nothing changes.
func (s *Session) ProposeMatch(left, right []string, actor model.Actor, comment string) (model.MatchGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero model.MatchGroup

	if err := s.guard(); err != nil {
		return zero, err
	}
	if len(left) == 0 && len(right) == 0 {
		return zero, &EmptySelectionError{Op: "match"}
	}
	if !actor.Can(model.PermMatch) {
		s.auditDenied(actor, "match.propose", "match", "",
			fmt.Sprintf("match over %d transactions denied", len(left)+len(right)))
		return zero, &PermissionDeniedError{ActorID: actor.ID, Permission: model.PermMatch, Op: "match"}
	}

	members := make([]string, 0, len(left)+len(right))
	members = append(members, left...)
	members = append(members, right...)

	seen := make(map[string]bool, len(members))
	sum := decimal.Zero
	leftTotal := decimal.Zero
	rightTotal := decimal.Zero

	for i, serial := range members {
		if seen[serial] {
			return zero, fmt.Errorf("transaction %s appears twice in the selection", serial)
		}
		seen[serial] = true

		t, ok := s.txns[serial]
		if !ok {
			return zero, &NotFoundError{Entity: "transaction", ID: serial}
		}
		if t.Status == model.StatusMatched {
			return zero, &AlreadyMatchedError{Serial: serial, MatchID: t.MatchID}
		}

		// Lock state may have changed since the last operation; always
		// re-read it.
		locked, err := s.locks.IsLocked(t.Date)
		if err != nil {
			return zero, fmt.Errorf("checking period lock for %s: %w", serial, err)
		}
		if locked {
			return zero, &PeriodLockedError{Serial: serial, Date: t.Date}
		}

		signed := t.SignedAmount()
		sum = sum.Add(signed)
		if i < len(left) {
			leftTotal = leftTotal.Add(signed)
		} else {
			rightTotal = rightTotal.Add(signed)
		}
	}

	if !sum.IsZero() {
		return zero, &ImbalancedMatchError{Difference: sum.Abs()}
	}

	now := s.now()
	g := model.MatchGroup{
		ID:         uuid.NewString(),
		Ref:        id.FormatMatchRef(now.Year(), int(now.Month()), s.matchSeq+1),
		Left:       append([]string(nil), left...),
		Right:      append([]string(nil), right...),
		LeftTotal:  leftTotal,
		RightTotal: rightTotal,
		Difference: decimal.Zero,
		Comment:    comment,
		Status:     model.MatchPendingApproval,
		CreatedBy:  actor.ID,
		CreatedAt:  now,
	}

	cp := s.begin("match " + g.Ref)
	cp.touchMatch(s, g.ID)
	for _, serial := range members {
		cp.touchTxn(s, serial)
	}

	s.matchSeq++
	grp := g.Clone()
	s.matches[g.ID] = &grp
	for _, serial := range members {
		s.txns[serial].Status = model.StatusMatched
		s.txns[serial].MatchID = g.ID
	}
	cp.finish(s)

	entry := s.newEntry(actor, "match.propose", "match", g.ID,
		fmt.Sprintf("matched %d transactions as %s", len(members), g.Ref),
		comment, "", encodeJSON(g))

	if _, err := s.commitAndAdopt(cp.commitSetAfter(), entry); err != nil {
		cp.applyBefore(s)
		return zero, err
	}

	s.push(cp)
	return g, nil
}

// Unmatch dissolves a match group, reverting its transactions to UNMATCHED.
func (s *Session) Unmatch(matchID string, actor model.Actor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guard(); err != nil {
		return err
	}
	if !actor.Can(model.PermUnmatch) {
		s.auditDenied(actor, "match.unmatch", "match", matchID, "unmatch denied")
		return &PermissionDeniedError{ActorID: actor.ID, Permission: model.PermUnmatch, Op: "unmatch"}
	}

	cp := s.begin("unmatch")
	if err := s.unmatchOne(cp, matchID, actor); err != nil {
		return err
	}
	s.push(cp)
	return nil
}

// unmatchOne validates and applies one unmatch under the given checkpoint,
// committing it atomically. The caller has already checked permissions.
func (s *Session) unmatchOne(cp *checkpoint, matchID string, actor model.Actor) error {
	g, ok := s.matches[matchID]
	if !ok {
		return &NotFoundError{Entity: "match", ID: matchID}
	}

	for _, serial := range g.Members() {
		t, ok := s.txns[serial]
		if !ok {
			return &NotFoundError{Entity: "transaction", ID: serial}
		}
		locked, err := s.locks.IsLocked(t.Date)
		if err != nil {
			return fmt.Errorf("checking period lock for %s: %w", serial, err)
		}
		if locked {
			return &PeriodLockedError{Serial: serial, Date: t.Date}
		}
	}

	before := g.Clone()
	cp.label = "unmatch " + g.Ref

	child := s.begin("unmatch " + g.Ref)
	child.touchMatch(s, matchID)
	for _, serial := range g.Members() {
		child.touchTxn(s, serial)
	}

	for _, serial := range g.Members() {
		s.txns[serial].Status = model.StatusUnmatched
		s.txns[serial].MatchID = ""
	}
	delete(s.matches, matchID)
	child.finish(s)

	entry := s.newEntry(actor, "match.unmatch", "match", matchID,
		fmt.Sprintf("unmatched %s (%d transactions)", before.Ref, len(before.Members())),
		"", encodeJSON(before), "")

	if _, err := s.commitAndAdopt(child.commitSetAfter(), entry); err != nil {
		child.applyBefore(s)
		return err
	}

	cp.merge(child)
	return nil
}

// UpdateMatchComment replaces a match group's comment. The group's
// transaction dates must all be outside closed periods.
func (s *Session) UpdateMatchComment(matchID, comment string, actor model.Actor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guard(); err != nil {
		return err
	}
	if !actor.Can(model.PermMatch) {
		s.auditDenied(actor, "match.comment", "match", matchID, "comment update denied")
		return &PermissionDeniedError{ActorID: actor.ID, Permission: model.PermMatch, Op: "comment"}
	}

	g, ok := s.matches[matchID]
	if !ok {
		return &NotFoundError{Entity: "match", ID: matchID}
	}

	for _, serial := range g.Members() {
		t, ok := s.txns[serial]
		if !ok {
			return &NotFoundError{Entity: "transaction", ID: serial}
		}
		locked, err := s.locks.IsLocked(t.Date)
		if err != nil {
			return fmt.Errorf("checking period lock for %s: %w", serial, err)
		}
		if locked {
			return &PeriodLockedError{Serial: serial, Date: t.Date}
		}
	}

	oldComment := g.Comment

	cp := s.begin("comment on " + g.Ref)
	cp.touchMatch(s, matchID)
	g.Comment = comment
	cp.finish(s)

	entry := s.newEntry(actor, "match.comment", "match", matchID,
		fmt.Sprintf("updated comment on %s", g.Ref), "", oldComment, comment)

	if _, err := s.commitAndAdopt(cp.commitSetAfter(), entry); err != nil {
		cp.applyBefore(s)
		return err
	}

	s.push(cp)
	return nil
}

// BatchResult is the outcome for one item of a batch operation.
type BatchResult struct {
	MatchID string
	Err     error
}

// BatchUnmatch dissolves several match groups. Preconditions are applied
// per item, so a batch may partially succeed; the caller gets a per-item
// result list. All successful items share one checkpoint and undo as a
// single step.
func (s *Session) BatchUnmatch(matchIDs []string, actor model.Actor) ([]BatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guard(); err != nil {
		return nil, err
	}
	if len(matchIDs) == 0 {
		return nil, &EmptySelectionError{Op: "batch unmatch"}
	}
	if !actor.Can(model.PermUnmatch) {
		s.auditDenied(actor, "match.batch_unmatch", "match", "",
			fmt.Sprintf("batch unmatch of %d groups denied", len(matchIDs)))
		return nil, &PermissionDeniedError{ActorID: actor.ID, Permission: model.PermUnmatch, Op: "batch unmatch"}
	}

	agg := s.begin(fmt.Sprintf("batch unmatch of %d groups", len(matchIDs)))
	results := make([]BatchResult, 0, len(matchIDs))
	succeeded := 0

	for _, matchID := range matchIDs {
		err := s.unmatchOne(agg, matchID, actor)
		results = append(results, BatchResult{MatchID: matchID, Err: err})
		if err == nil {
			succeeded++
		}
	}

	if succeeded > 0 {
		agg.label = fmt.Sprintf("batch unmatch of %d groups", succeeded)
		s.push(agg)
	}
	return results, nil
}
