package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recondesk-dev/recondesk/internal/model"
)

func TestCreateSnapshot(t *testing.T) {
	s := loadedSession(t)
	_, err := s.ProposeMatch([]string{"L1"}, []string{"R1"}, analyst, "")
	require.NoError(t, err)

	snap, err := s.CreateSnapshot("after first pass", "", analyst)
	require.NoError(t, err)

	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, "after first pass", snap.Label)
	assert.Equal(t, model.SnapshotManual, snap.Type, "type defaults to MANUAL")
	assert.Equal(t, "ana", snap.CreatedBy)
	assert.Len(t, snap.Transactions, 6)
	assert.Len(t, snap.Matches, 1)
	assert.Equal(t, 2, snap.Stats.MatchedCount)
	assert.True(t, snap.Stats.MatchedValue.Equal(dec("100.00")))

	// The import snapshot plus this one.
	assert.Len(t, s.Snapshots(), 2)

	trail := s.AuditTrail()
	assert.Equal(t, "snapshot.create", trail[len(trail)-1].Action)
}

func TestCreateSnapshot_InactiveActor(t *testing.T) {
	s := loadedSession(t)
	ghost := analyst
	ghost.Active = false

	_, err := s.CreateSnapshot("x", model.SnapshotManual, ghost)
	var denied *PermissionDeniedError
	assert.True(t, errors.As(err, &denied))
}

func TestCreateSnapshot_NotUndoable(t *testing.T) {
	s := newTestSession(t)
	assert.False(t, s.CanUndo())

	_, err := s.CreateSnapshot("empty state", model.SnapshotManual, analyst)
	require.NoError(t, err)
	assert.False(t, s.CanUndo(), "snapshots record state; they are not mutations")
}

func TestRestoreSnapshot(t *testing.T) {
	s := loadedSession(t)
	snap, err := s.CreateSnapshot("clean slate", model.SnapshotManual, manager)
	require.NoError(t, err)

	g, err := s.ProposeMatch([]string{"L1"}, []string{"R1"}, analyst, "")
	require.NoError(t, err)
	_, err = s.ProposeMatch([]string{"L2"}, []string{"R2"}, analyst, "")
	require.NoError(t, err)
	require.NoError(t, s.Select("L3"))

	require.NoError(t, s.RestoreSnapshot(snap.ID, manager))

	assert.Empty(t, s.Matches())
	_, ok := s.Match(g.ID)
	assert.False(t, ok)
	for _, tx := range s.Transactions() {
		assert.Equal(t, model.StatusUnmatched, tx.Status)
	}
	assert.Empty(t, s.Selected(), "restore clears selections")

	trail := s.AuditTrail()
	assert.Equal(t, "snapshot.restore", trail[len(trail)-1].Action)
}

func TestRestoreSnapshot_Undoable(t *testing.T) {
	s := loadedSession(t)
	snap, err := s.CreateSnapshot("clean slate", model.SnapshotManual, manager)
	require.NoError(t, err)

	_, err = s.ProposeMatch([]string{"L1"}, []string{"R1"}, analyst, "")
	require.NoError(t, err)
	afterMatch := captureWorld(s)

	require.NoError(t, s.RestoreSnapshot(snap.ID, manager))
	assert.Empty(t, s.Matches())

	applied, err := s.Undo(manager)
	require.NoError(t, err)
	require.True(t, applied)
	// Selections were cleared by the restore; everything else comes back.
	assert.Equal(t, afterMatch.txns, s.Transactions())
	assert.Equal(t, afterMatch.matches, s.Matches())
}

func TestRestoreSnapshot_PermissionDenied(t *testing.T) {
	s := loadedSession(t)
	snap, err := s.CreateSnapshot("x", model.SnapshotManual, manager)
	require.NoError(t, err)

	err = s.RestoreSnapshot(snap.ID, analyst) // analysts cannot restore
	var denied *PermissionDeniedError
	require.True(t, errors.As(err, &denied))
	assert.Equal(t, model.PermRestore, denied.Permission)

	trail := s.AuditTrail()
	assert.Equal(t, "snapshot.restore.denied", trail[len(trail)-1].Action)
}

func TestRestoreSnapshot_NotFound(t *testing.T) {
	s := loadedSession(t)
	err := s.RestoreSnapshot("missing", manager)
	var nf *NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestImportSnapshotRestoresPreMatchState(t *testing.T) {
	s := loadedSession(t)
	importSnap := s.Snapshots()[0]
	require.Equal(t, model.SnapshotImport, importSnap.Type)

	_, err := s.ProposeMatch([]string{"L1"}, []string{"R1"}, analyst, "")
	require.NoError(t, err)
	_, err = s.ProposeMatch([]string{"L3"}, []string{"R3"}, analyst, "")
	require.NoError(t, err)

	require.NoError(t, s.RestoreSnapshot(importSnap.ID, manager))

	assert.Empty(t, s.Matches())
	assert.Len(t, s.Transactions(), 6)
	assert.Zero(t, s.Stats().MatchedCount)
}

func TestStats(t *testing.T) {
	s := loadedSession(t)
	stats := s.Stats()
	assert.Equal(t, 6, stats.TransactionCount)
	assert.Zero(t, stats.MatchedCount)
	assert.True(t, stats.MatchedValue.IsZero())

	_, err := s.ProposeMatch([]string{"L1"}, []string{"R1"}, analyst, "")
	require.NoError(t, err)
	_, err = s.ProposeMatch([]string{"L3"}, []string{"R3"}, analyst, "")
	require.NoError(t, err)

	stats = s.Stats()
	assert.Equal(t, 4, stats.MatchedCount)
	assert.Equal(t, 2, stats.MatchGroupCount)
	assert.True(t, stats.MatchedValue.Equal(dec("125.00")))
}

func TestSnapshotIsolatedFromLaterMutations(t *testing.T) {
	s := loadedSession(t)
	snap, err := s.CreateSnapshot("frozen", model.SnapshotManual, manager)
	require.NoError(t, err)
	require.Len(t, snap.Transactions, 6)

	_, err = s.ProposeMatch([]string{"L1"}, []string{"R1"}, analyst, "")
	require.NoError(t, err)

	// The stored snapshot still sees the pre-match state.
	for _, stored := range s.Snapshots() {
		if stored.ID != snap.ID {
			continue
		}
		for _, tx := range stored.Transactions {
			assert.Equal(t, model.StatusUnmatched, tx.Status)
		}
		assert.Empty(t, stored.Matches)
	}
}
