package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recondesk-dev/recondesk/internal/model"
	"github.com/recondesk-dev/recondesk/internal/period"
)

func TestImportTransactions(t *testing.T) {
	s := newTestSession(t)

	n, err := s.ImportTransactions(defaultBatch(), analyst)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	txns := s.Transactions()
	require.Len(t, txns, 6)
	for _, tx := range txns {
		assert.Equal(t, model.StatusUnmatched, tx.Status)
		assert.Empty(t, tx.MatchID)
	}

	// Import captures an IMPORT snapshot and appends one audit entry.
	snaps := s.Snapshots()
	require.Len(t, snaps, 1)
	assert.Equal(t, model.SnapshotImport, snaps[0].Type)

	trail := s.AuditTrail()
	require.Len(t, trail, 1)
	assert.Equal(t, "import.transactions", trail[0].Action)
}

func TestImportTransactions_Validation(t *testing.T) {
	s := newTestSession(t)
	d := date(2025, 3, 10)

	cases := []struct {
		name string
		txns []model.Transaction
	}{
		{"empty serial", []model.Transaction{txn("", "1.00", model.ReconInternalCredit, "ana", d)}},
		{"bad recon type", []model.Transaction{{Serial: "X", Amount: dec("1.00"), ReconType: "BOGUS", Date: d}}},
		{"negative amount", []model.Transaction{{Serial: "X", Amount: dec("-1.00"), ReconType: model.ReconInternalCredit, Date: d}}},
		{"duplicate serial", []model.Transaction{
			txn("X", "1.00", model.ReconInternalCredit, "ana", d),
			txn("X", "1.00", model.ReconExternalDebit, "ana", d),
		}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := s.ImportTransactions(c.txns, analyst)
			require.Error(t, err)
			assert.Empty(t, s.Transactions())
		})
	}

	_, err := s.ImportTransactions(nil, analyst)
	var empty *EmptySelectionError
	assert.True(t, errors.As(err, &empty))
}

// Scenario A: a credit and an equal debit match exactly.
func TestProposeMatch_Balanced(t *testing.T) {
	s := loadedSession(t)

	g, err := s.ProposeMatch([]string{"L1"}, []string{"R1"}, analyst, "bank sweep")
	require.NoError(t, err)

	assert.True(t, g.Difference.IsZero())
	assert.Equal(t, model.MatchPendingApproval, g.Status)
	assert.Equal(t, "ana", g.CreatedBy)
	assert.Equal(t, "M-2025-03-001", g.Ref)
	assert.True(t, g.LeftTotal.Equal(dec("100.00")))
	assert.True(t, g.RightTotal.Equal(dec("-100.00")))

	for _, serial := range []string{"L1", "R1"} {
		tx, ok := s.Transaction(serial)
		require.True(t, ok)
		assert.Equal(t, model.StatusMatched, tx.Status)
		assert.Equal(t, g.ID, tx.MatchID)
	}

	matches := s.Matches()
	require.Len(t, matches, 1)
	assert.Equal(t, g.ID, matches[0].ID)

	trail := s.AuditTrail()
	assert.Equal(t, "match.propose", trail[len(trail)-1].Action)
}

// Scenario B: an imbalanced proposal is rejected with the difference and no
// state, including audit state, changes.
func TestProposeMatch_Imbalanced(t *testing.T) {
	s := newTestSession(t)
	d := date(2025, 3, 10)
	_, err := s.ImportTransactions([]model.Transaction{
		txn("A", "100.00", model.ReconInternalCredit, "ana", d),
		txn("B", "99.50", model.ReconExternalDebit, "ana", d),
	}, analyst)
	require.NoError(t, err)

	before := captureWorld(s)
	trailBefore := len(s.AuditTrail())

	_, err = s.ProposeMatch([]string{"A"}, []string{"B"}, analyst, "")
	require.Error(t, err)

	var imb *ImbalancedMatchError
	require.True(t, errors.As(err, &imb))
	assert.True(t, imb.Difference.Equal(dec("0.50")), "difference was %s", imb.Difference)

	assert.Equal(t, before, captureWorld(s))
	assert.Len(t, s.AuditTrail(), trailBefore)
}

func TestProposeMatch_ManyToOne(t *testing.T) {
	s := newTestSession(t)
	d := date(2025, 3, 10)
	_, err := s.ImportTransactions([]model.Transaction{
		txn("A", "60.00", model.ReconInternalCredit, "ana", d),
		txn("B", "40.00", model.ReconInternalCredit, "ana", d),
		txn("C", "100.00", model.ReconExternalDebit, "ana", d),
	}, analyst)
	require.NoError(t, err)

	g, err := s.ProposeMatch([]string{"A", "B"}, []string{"C"}, analyst, "")
	require.NoError(t, err)
	assert.Len(t, g.Left, 2)
	assert.True(t, g.LeftTotal.Equal(dec("100.00")))
}

func TestProposeMatch_EmptySelection(t *testing.T) {
	s := loadedSession(t)
	_, err := s.ProposeMatch(nil, nil, analyst, "")
	var empty *EmptySelectionError
	assert.True(t, errors.As(err, &empty))
}

func TestProposeMatch_PermissionDenied_Audited(t *testing.T) {
	s := loadedSession(t)
	trailBefore := len(s.AuditTrail())

	_, err := s.ProposeMatch([]string{"L1"}, []string{"R1"}, auditor, "")
	var denied *PermissionDeniedError
	require.True(t, errors.As(err, &denied))
	assert.Equal(t, model.PermMatch, denied.Permission)

	// The denied attempt is itself on the chain.
	trail := s.AuditTrail()
	require.Len(t, trail, trailBefore+1)
	assert.Equal(t, "match.propose.denied", trail[len(trail)-1].Action)
	assert.Equal(t, "aud", trail[len(trail)-1].ActorID)

	tx, _ := s.Transaction("L1")
	assert.Equal(t, model.StatusUnmatched, tx.Status)
}

func TestProposeMatch_NotFound(t *testing.T) {
	s := loadedSession(t)
	_, err := s.ProposeMatch([]string{"L1"}, []string{"NOPE"}, analyst, "")
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "NOPE", nf.ID)
}

func TestProposeMatch_AlreadyMatched(t *testing.T) {
	s := loadedSession(t)
	g, err := s.ProposeMatch([]string{"L1"}, []string{"R1"}, analyst, "")
	require.NoError(t, err)

	_, err = s.ProposeMatch([]string{"L1"}, []string{"R2"}, analyst, "")
	var am *AlreadyMatchedError
	require.True(t, errors.As(err, &am))
	assert.Equal(t, "L1", am.Serial)
	assert.Equal(t, g.ID, am.MatchID)
}

func TestProposeMatch_PeriodLocked(t *testing.T) {
	locked := period.NewCalendar(period.Range{
		Start: date(2025, 3, 1), End: date(2025, 3, 31),
	})
	s := loadedSession(t, func(o *Options) { o.Locks = locked })

	_, err := s.ProposeMatch([]string{"L1"}, []string{"R1"}, analyst, "")
	var pl *PeriodLockedError
	require.True(t, errors.As(err, &pl))
}

func TestProposeMatch_LockStateRereadEachCall(t *testing.T) {
	var ranges []period.Range
	live := &period.RereadChecker{Load: func() ([]period.Range, error) { return ranges, nil }}
	s := loadedSession(t, func(o *Options) { o.Locks = live })

	_, err := s.ProposeMatch([]string{"L1"}, []string{"R1"}, analyst, "")
	require.NoError(t, err)

	// An administrator closes the period mid-session; the very next
	// mutation must see it.
	ranges = []period.Range{{Start: date(2025, 3, 1), End: date(2025, 3, 31)}}

	_, err = s.ProposeMatch([]string{"L2"}, []string{"R2"}, analyst, "")
	var pl *PeriodLockedError
	require.True(t, errors.As(err, &pl))
}

func TestUnmatch(t *testing.T) {
	s := loadedSession(t)
	g, err := s.ProposeMatch([]string{"L1"}, []string{"R1"}, analyst, "")
	require.NoError(t, err)

	require.NoError(t, s.Unmatch(g.ID, analyst))

	assert.Empty(t, s.Matches())
	for _, serial := range []string{"L1", "R1"} {
		tx, _ := s.Transaction(serial)
		assert.Equal(t, model.StatusUnmatched, tx.Status)
		assert.Empty(t, tx.MatchID)
	}

	trail := s.AuditTrail()
	assert.Equal(t, "match.unmatch", trail[len(trail)-1].Action)
}

func TestUnmatch_NotFound(t *testing.T) {
	s := loadedSession(t)
	err := s.Unmatch("missing", analyst)
	var nf *NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestUnmatch_PermissionDenied(t *testing.T) {
	s := loadedSession(t)
	g, _ := s.ProposeMatch([]string{"L1"}, []string{"R1"}, analyst, "")

	err := s.Unmatch(g.ID, auditor)
	var denied *PermissionDeniedError
	require.True(t, errors.As(err, &denied))

	_, ok := s.Match(g.ID)
	assert.True(t, ok, "group must survive the denied unmatch")
}

func TestUnmatch_PeriodLockedAfterMatch(t *testing.T) {
	var ranges []period.Range
	live := &period.RereadChecker{Load: func() ([]period.Range, error) { return ranges, nil }}
	s := loadedSession(t, func(o *Options) { o.Locks = live })

	g, err := s.ProposeMatch([]string{"L1"}, []string{"R1"}, analyst, "")
	require.NoError(t, err)

	ranges = []period.Range{{Start: date(2025, 3, 1), End: date(2025, 3, 31)}}

	err = s.Unmatch(g.ID, analyst)
	var pl *PeriodLockedError
	require.True(t, errors.As(err, &pl))
	_, ok := s.Match(g.ID)
	assert.True(t, ok)
}

func TestUpdateMatchComment(t *testing.T) {
	s := loadedSession(t)
	g, err := s.ProposeMatch([]string{"L1"}, []string{"R1"}, analyst, "first")
	require.NoError(t, err)

	require.NoError(t, s.UpdateMatchComment(g.ID, "second", analyst))

	got, ok := s.Match(g.ID)
	require.True(t, ok)
	assert.Equal(t, "second", got.Comment)

	trail := s.AuditTrail()
	last := trail[len(trail)-1]
	assert.Equal(t, "match.comment", last.Action)
	assert.Equal(t, "first", last.Before)
	assert.Equal(t, "second", last.After)
}

func TestBatchUnmatch_PartialSuccess(t *testing.T) {
	s := loadedSession(t)
	g1, err := s.ProposeMatch([]string{"L1"}, []string{"R1"}, analyst, "")
	require.NoError(t, err)
	g2, err := s.ProposeMatch([]string{"L2"}, []string{"R2"}, analyst, "")
	require.NoError(t, err)

	results, err := s.BatchUnmatch([]string{g1.ID, "missing", g2.ID}, analyst)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.NoError(t, results[0].Err)
	var nf *NotFoundError
	assert.True(t, errors.As(results[1].Err, &nf))
	assert.NoError(t, results[2].Err)

	assert.Empty(t, s.Matches())
}

func TestBatchUnmatch_SingleUndoStep(t *testing.T) {
	s := loadedSession(t)
	g1, _ := s.ProposeMatch([]string{"L1"}, []string{"R1"}, analyst, "")
	g2, _ := s.ProposeMatch([]string{"L2"}, []string{"R2"}, analyst, "")

	before := captureWorld(s)

	_, err := s.BatchUnmatch([]string{g1.ID, g2.ID}, analyst)
	require.NoError(t, err)
	assert.Empty(t, s.Matches())

	// One undo restores both groups at once.
	applied, err := s.Undo(analyst)
	require.NoError(t, err)
	require.True(t, applied)
	assert.Equal(t, before.matches, s.Matches())
	assert.Equal(t, before.txns, s.Transactions())
}

func TestMatchedIffExactlyOneGroup(t *testing.T) {
	s := loadedSession(t)
	_, err := s.ProposeMatch([]string{"L1"}, []string{"R1"}, analyst, "")
	require.NoError(t, err)
	_, err = s.ProposeMatch([]string{"L3"}, []string{"R3"}, analyst, "")
	require.NoError(t, err)

	refs := make(map[string]int)
	for _, g := range s.Matches() {
		for _, serial := range g.Members() {
			refs[serial]++
		}
	}
	for _, tx := range s.Transactions() {
		if tx.Status == model.StatusMatched {
			assert.Equal(t, 1, refs[tx.Serial], "matched %s must be in exactly one group", tx.Serial)
		} else {
			assert.Zero(t, refs[tx.Serial], "unmatched %s must be in no group", tx.Serial)
		}
	}
}

func TestCommitterReceivesAtomicSets(t *testing.T) {
	rec := &recordingCommitter{}
	s := loadedSession(t, func(o *Options) { o.Committer = rec })

	_, err := s.ProposeMatch([]string{"L1"}, []string{"R1"}, analyst, "")
	require.NoError(t, err)

	// Last set bundles the transaction updates, the match upsert, and the
	// audit entry together.
	last := rec.sets[len(rec.sets)-1]
	assert.Len(t, last.TxnUpserts, 2)
	assert.Len(t, last.MatchUpserts, 1)
	require.NotNil(t, last.Audit)
	assert.Equal(t, "match.propose", last.Audit.Action)
}

func TestCommitFailureLeavesNothingBehind(t *testing.T) {
	rec := &recordingCommitter{}
	s := loadedSession(t, func(o *Options) { o.Committer = rec })

	before := captureWorld(s)
	trailBefore := len(s.AuditTrail())

	rec.fail = errTestCommit
	_, err := s.ProposeMatch([]string{"L1"}, []string{"R1"}, analyst, "")
	require.Error(t, err)

	assert.Equal(t, before, captureWorld(s))
	assert.Len(t, s.AuditTrail(), trailBefore)

	// Recovery: commits work again and the same match goes through.
	rec.fail = nil
	_, err = s.ProposeMatch([]string{"L1"}, []string{"R1"}, analyst, "")
	assert.NoError(t, err)
}

var errTestCommit = errors.New("disk on fire")
