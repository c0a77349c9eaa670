package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SnapshotType records what triggered a snapshot.
type SnapshotType string

const (
	SnapshotImport SnapshotType = "IMPORT"
	SnapshotManual SnapshotType = "MANUAL"
	SnapshotAuto   SnapshotType = "AUTO"
)

// SnapshotStats are the aggregate figures captured alongside a snapshot.
type SnapshotStats struct {
	TransactionCount int
	MatchedCount     int
	MatchGroupCount  int
	MatchedValue     decimal.Decimal // sum of matched credit magnitudes
}

// SystemSnapshot is a labeled, user-visible point-in-time capture of the
// full reconciliation state. Unlike undo checkpoints, snapshots are named,
// independently retained, and never auto-pruned.
type SystemSnapshot struct {
	ID           string // uuid
	Label        string
	Type         SnapshotType
	Transactions []Transaction
	Matches      []MatchGroup
	Stats        SnapshotStats
	CreatedBy    string
	CreatedAt    time.Time
}
