package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/recondesk-dev/recondesk/internal/model"
	"github.com/recondesk-dev/recondesk/internal/period"
)

var (
	admin   = model.Actor{ID: "root", Name: "Root", Role: model.RoleAdmin, Active: true}
	manager = model.Actor{ID: "mgr", Name: "Meg", Role: model.RoleManager, Active: true}
	analyst = model.Actor{ID: "ana", Name: "Ana", Role: model.RoleAnalyst, Active: true}
	auditor = model.Actor{ID: "aud", Name: "Aud", Role: model.RoleAuditor, Active: true}
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// fixedClock returns a deterministic, strictly advancing clock.
func fixedClock() func() time.Time {
	t := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func txn(serial, amount string, rt model.ReconType, importer string, d time.Time) model.Transaction {
	return model.Transaction{
		Serial:      serial,
		Date:        d,
		Description: "txn " + serial,
		Amount:      dec(amount),
		ReconType:   rt,
		Reference:   "ref-" + serial,
		ImporterID:  importer,
	}
}

// defaultBatch is a small balanced set: two 100.00 pairs and one 25.00 pair.
func defaultBatch() []model.Transaction {
	d := date(2025, 3, 10)
	return []model.Transaction{
		txn("L1", "100.00", model.ReconInternalCredit, "ana", d),
		txn("R1", "100.00", model.ReconExternalDebit, "ana", d),
		txn("L2", "100.00", model.ReconInternalCredit, "ana", d),
		txn("R2", "100.00", model.ReconExternalDebit, "mgr", d),
		txn("L3", "25.00", model.ReconInternalCredit, "mgr", d),
		txn("R3", "25.00", model.ReconExternalDebit, "mgr", d),
	}
}

func newTestSession(t *testing.T, opts ...func(*Options)) *Session {
	t.Helper()
	o := Options{
		SessionID: "test-session",
		SheetID:   "sheet-1",
		Locks:     period.Open,
		Clock:     fixedClock(),
	}
	for _, fn := range opts {
		fn(&o)
	}
	s, err := NewSession(o)
	require.NoError(t, err)
	return s
}

// loadedSession imports the default batch.
func loadedSession(t *testing.T, opts ...func(*Options)) *Session {
	t.Helper()
	s := newTestSession(t, opts...)
	n, err := s.ImportTransactions(defaultBatch(), analyst)
	require.NoError(t, err)
	require.Equal(t, 6, n)
	return s
}

// worldState is a deep comparable capture of everything undo must restore.
type worldState struct {
	txns     []model.Transaction
	matches  []model.MatchGroup
	selected []string
	filters  Filters
	draft    string
}

func captureWorld(s *Session) worldState {
	return worldState{
		txns:     s.Transactions(),
		matches:  s.Matches(),
		selected: s.Selected(),
		filters:  s.ActiveFilters(),
		draft:    s.DraftComment(),
	}
}

// recordingCommitter captures every CommitSet it is handed.
type recordingCommitter struct {
	sets []CommitSet
	fail error
}

func (c *recordingCommitter) Commit(set CommitSet) error {
	if c.fail != nil {
		return c.fail
	}
	c.sets = append(c.sets, set)
	return nil
}
