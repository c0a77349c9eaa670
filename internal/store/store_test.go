package store

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recondesk-dev/recondesk/internal/engine"
	"github.com/recondesk-dev/recondesk/internal/model"
	"github.com/recondesk-dev/recondesk/internal/workflow"
)

var (
	testAnalyst = model.Actor{ID: "ana", Name: "Ana", Role: model.RoleAnalyst, Active: true}
	testManager = model.Actor{ID: "mgr", Name: "Meg", Role: model.RoleManager, Active: true}
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := InitDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db)
}

func testClock() func() time.Time {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func testBatch() []model.Transaction {
	d := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	mk := func(serial, amount string, rt model.ReconType) model.Transaction {
		amt, err := decimal.NewFromString(amount)
		if err != nil {
			panic(err)
		}
		return model.Transaction{
			Serial:      serial,
			Date:        d,
			Description: "txn " + serial,
			Amount:      amt,
			ReconType:   rt,
			Reference:   "ref-" + serial,
			ImporterID:  "ana",
		}
	}
	return []model.Transaction{
		mk("T1", "100.00", model.ReconInternalCredit),
		mk("T2", "100.00", model.ReconExternalDebit),
		mk("T3", "40.00", model.ReconInternalCredit),
		mk("T4", "40.00", model.ReconExternalDebit),
	}
}

// assertSameTxns compares transactions semantically. Decimal amounts are
// compared by value, not representation, since storage normalizes exponents.
func assertSameTxns(t *testing.T, want, got []model.Transaction) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		w, g := want[i], got[i]
		assert.Equal(t, w.Serial, g.Serial)
		assert.True(t, w.Date.Equal(g.Date), "%s date", w.Serial)
		assert.Equal(t, w.Description, g.Description)
		assert.True(t, w.Amount.Equal(g.Amount), "%s amount", w.Serial)
		assert.Equal(t, w.ReconType, g.ReconType)
		assert.Equal(t, w.Reference, g.Reference)
		assert.Equal(t, w.ImporterID, g.ImporterID)
		assert.Equal(t, w.Status, g.Status)
		assert.Equal(t, w.MatchID, g.MatchID)
	}
}

func storedSession(t *testing.T, st *Store) *engine.Session {
	t.Helper()
	s, err := engine.NewSession(engine.Options{
		SessionID: "store-test",
		SheetID:   "sheet-1",
		Committer: st,
		Clock:     testClock(),
	})
	require.NoError(t, err)
	return s
}

func TestCommitAndLoadRoundTrip(t *testing.T) {
	st := newTestStore(t)
	s := storedSession(t, st)

	_, err := s.ImportTransactions(testBatch(), testAnalyst)
	require.NoError(t, err)
	g, err := s.ProposeMatch([]string{"T1"}, []string{"T2"}, testAnalyst, "bank sweep")
	require.NoError(t, err)
	require.NoError(t, s.ApproveMatch(g.ID, testManager))

	state, err := st.Load("sheet-1")
	require.NoError(t, err)

	assertSameTxns(t, s.Transactions(), state.Transactions)

	require.Len(t, state.Matches, 1)
	loaded := state.Matches[0]
	assert.Equal(t, g.ID, loaded.ID)
	assert.Equal(t, g.Ref, loaded.Ref)
	assert.Equal(t, []string{"T1"}, loaded.Left)
	assert.Equal(t, []string{"T2"}, loaded.Right)
	assert.True(t, loaded.LeftTotal.Equal(decimal.RequireFromString("100.00")))
	assert.Equal(t, model.MatchApproved, loaded.Status)
	assert.Equal(t, "mgr", loaded.ApprovedBy)
	assert.False(t, loaded.ApprovedAt.IsZero())
	assert.Equal(t, "bank sweep", loaded.Comment)

	// The audit trail survives byte-for-byte: a resumed session verifies it.
	assert.Equal(t, s.AuditTrail(), state.Audit)

	resumed, err := engine.ResumeSession(engine.Options{
		SheetID: "sheet-1",
		Clock:   testClock(),
	}, state)
	require.NoError(t, err)
	assert.NoError(t, resumed.VerifyAuditChain())
	assertSameTxns(t, s.Transactions(), resumed.Transactions())
	require.Len(t, resumed.Matches(), 1)
	assert.Equal(t, g.ID, resumed.Matches()[0].ID)
}

func TestUnmatchDeletesGroupAndMembers(t *testing.T) {
	st := newTestStore(t)
	s := storedSession(t, st)

	_, err := s.ImportTransactions(testBatch(), testAnalyst)
	require.NoError(t, err)
	g, err := s.ProposeMatch([]string{"T1"}, []string{"T2"}, testAnalyst, "")
	require.NoError(t, err)
	require.NoError(t, s.Unmatch(g.ID, testAnalyst))

	state, err := st.Load("sheet-1")
	require.NoError(t, err)
	assert.Empty(t, state.Matches)
	for _, tx := range state.Transactions {
		assert.Equal(t, model.StatusUnmatched, tx.Status)
		assert.Empty(t, tx.MatchID)
	}
}

func TestUndoImportDeletesRows(t *testing.T) {
	st := newTestStore(t)
	s := storedSession(t, st)

	_, err := s.ImportTransactions(testBatch(), testAnalyst)
	require.NoError(t, err)

	applied, err := s.Undo(testAnalyst)
	require.NoError(t, err)
	require.True(t, applied)

	state, err := st.Load("sheet-1")
	require.NoError(t, err)
	assert.Empty(t, state.Transactions)
	// The undo itself is on the persisted trail.
	last := state.Audit[len(state.Audit)-1]
	assert.Equal(t, "session.undo", last.Action)
}

func TestSnapshotRoundTrip(t *testing.T) {
	st := newTestStore(t)
	s := storedSession(t, st)

	_, err := s.ImportTransactions(testBatch(), testAnalyst)
	require.NoError(t, err)
	snap, err := s.CreateSnapshot("before matching", model.SnapshotManual, testAnalyst)
	require.NoError(t, err)

	state, err := st.Load("sheet-1")
	require.NoError(t, err)
	require.Len(t, state.Snapshots, 2) // import snapshot + manual

	var found *model.SystemSnapshot
	for i := range state.Snapshots {
		if state.Snapshots[i].ID == snap.ID {
			found = &state.Snapshots[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, "before matching", found.Label)
	assert.Equal(t, model.SnapshotManual, found.Type)
	assert.Len(t, found.Transactions, 4)
	assert.Equal(t, snap.Stats.TransactionCount, found.Stats.TransactionCount)
	assert.Equal(t, snap.Stats.MatchedCount, found.Stats.MatchedCount)
	assert.Equal(t, snap.Stats.MatchGroupCount, found.Stats.MatchGroupCount)
	assert.True(t, snap.Stats.MatchedValue.Equal(found.Stats.MatchedValue))
}

func TestWorkflowHistoryPersisted(t *testing.T) {
	st := newTestStore(t)
	s := storedSession(t, st)

	_, err := s.ImportTransactions(testBatch(), testAnalyst)
	require.NoError(t, err)
	require.NoError(t, s.TransitionWorkflow(workflow.StateUnderReview, testAnalyst, "review starts"))
	require.NoError(t, s.TransitionWorkflow(workflow.StateMatched, testAnalyst, ""))

	recs, err := st.WorkflowHistory("sheet-1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, workflow.StateImported, recs[0].From)
	assert.Equal(t, workflow.StateUnderReview, recs[0].To)
	assert.Equal(t, "review starts", recs[0].Justification)
	assert.Equal(t, model.RoleAnalyst, recs[0].Role)
	assert.False(t, recs[0].Forced)
	assert.Equal(t, workflow.StateMatched, recs[1].To)

	// A resumed session picks the workflow up where it stopped instead of
	// restarting at IMPORTED.
	state, err := st.Load("sheet-1")
	require.NoError(t, err)
	resumed, err := engine.ResumeSession(engine.Options{
		SheetID: "sheet-1",
		Clock:   testClock(),
	}, state)
	require.NoError(t, err)
	current, _ := resumed.WorkflowState()
	assert.Equal(t, workflow.StateMatched, current)
}

func TestCommitEmptySetIsNoOp(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.Commit(engine.CommitSet{}))

	state, err := st.Load("sheet-1")
	require.NoError(t, err)
	assert.Empty(t, state.Transactions)
	assert.Empty(t, state.Audit)
}

func TestCommentUpdatePersisted(t *testing.T) {
	st := newTestStore(t)
	s := storedSession(t, st)

	_, err := s.ImportTransactions(testBatch(), testAnalyst)
	require.NoError(t, err)
	g, err := s.ProposeMatch([]string{"T3"}, []string{"T4"}, testAnalyst, "draft")
	require.NoError(t, err)
	require.NoError(t, s.UpdateMatchComment(g.ID, "final wording", testAnalyst))

	state, err := st.Load("sheet-1")
	require.NoError(t, err)
	require.Len(t, state.Matches, 1)
	assert.Equal(t, "final wording", state.Matches[0].Comment)
}
