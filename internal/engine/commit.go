package engine

import (
	"github.com/recondesk-dev/recondesk/internal/audit"
	"github.com/recondesk-dev/recondesk/internal/model"
	"github.com/recondesk-dev/recondesk/internal/workflow"
)

// WorkflowUpsert records one workflow transition for persistence.
type WorkflowUpsert struct {
	WorkflowID string
	Record     workflow.TransitionRecord
}

// CommitSet is one atomic write request handed to the persistence
// collaborator: every mutating operation bundles its transaction updates,
// match upsert/delete, and audit entry into a single set that must commit
// together or not at all.
type CommitSet struct {
	TxnUpserts   []model.Transaction
	TxnDeletes   []string
	MatchUpserts []model.MatchGroup
	MatchDeletes []string
	Snapshots    []model.SystemSnapshot
	Transitions  []WorkflowUpsert
	Audit        *audit.Entry
}

// Empty reports whether the set carries no writes at all.
func (cs CommitSet) Empty() bool {
	return len(cs.TxnUpserts) == 0 && len(cs.TxnDeletes) == 0 &&
		len(cs.MatchUpserts) == 0 && len(cs.MatchDeletes) == 0 &&
		len(cs.Snapshots) == 0 && len(cs.Transitions) == 0 && cs.Audit == nil
}

// Committer is the engine's only write path to durable storage. Commit must
// apply the whole set in one atomic transaction; partial application is a
// correctness violation. The engine never performs I/O itself.
type Committer interface {
	Commit(set CommitSet) error
}
