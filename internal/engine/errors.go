package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/recondesk-dev/recondesk/internal/model"
)

// PermissionDeniedError reports an actor lacking the permission an operation
// requires. Denied attempts are still recorded in the audit chain.
type PermissionDeniedError struct {
	ActorID    string
	Permission model.Permission
	Op         string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("%s: actor %s lacks permission %s", e.Op, e.ActorID, e.Permission)
}

// PeriodLockedError reports a transaction dated inside a closed financial
// period.
type PeriodLockedError struct {
	Serial string
	Date   time.Time
}

func (e *PeriodLockedError) Error() string {
	return fmt.Sprintf("transaction %s dated %s falls in a closed period",
		e.Serial, e.Date.Format("2006-01-02"))
}

// ImbalancedMatchError reports a proposed match whose signed amounts do not
// sum to exactly zero.
type ImbalancedMatchError struct {
	Difference decimal.Decimal
}

func (e *ImbalancedMatchError) Error() string {
	return fmt.Sprintf("match does not balance: difference %s", e.Difference.StringFixed(2))
}

// NotFoundError reports a missing entity.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ConflictOfInterestError reports an actor attempting to approve a match
// containing a transaction they imported.
type ConflictOfInterestError struct {
	ActorID string
	MatchID string
}

func (e *ConflictOfInterestError) Error() string {
	return fmt.Sprintf("actor %s imported transactions in match %s and may not approve it",
		e.ActorID, e.MatchID)
}

// EmptySelectionError reports an operation invoked with nothing selected.
type EmptySelectionError struct {
	Op string
}

func (e *EmptySelectionError) Error() string {
	return fmt.Sprintf("%s: no transactions selected", e.Op)
}

// AlreadyMatchedError reports a transaction that already belongs to a match
// group.
type AlreadyMatchedError struct {
	Serial  string
	MatchID string
}

func (e *AlreadyMatchedError) Error() string {
	return fmt.Sprintf("transaction %s is already matched in group %s", e.Serial, e.MatchID)
}

// AlreadyApprovedError reports a match group that has already been approved.
type AlreadyApprovedError struct {
	MatchID string
}

func (e *AlreadyApprovedError) Error() string {
	return fmt.Sprintf("match %s is already approved", e.MatchID)
}

// SuspendedError reports a mutation attempted after chain tampering was
// detected. The session stays suspended pending investigation.
type SuspendedError struct{}

func (e *SuspendedError) Error() string {
	return "session suspended: audit chain tamper detected, pending investigation"
}
