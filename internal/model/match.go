package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MatchStatus is the approval lifecycle state of a match group.
type MatchStatus string

const (
	MatchPendingApproval MatchStatus = "PENDING_APPROVAL"
	MatchApproved        MatchStatus = "APPROVED"
)

// MatchGroup ties a set of left-side transactions to a set of right-side
// transactions whose signed amounts sum to exactly zero.
type MatchGroup struct {
	ID         string // uuid
	Ref        string // human-readable reference like M-2025-01-001
	Left       []string
	Right      []string
	LeftTotal  decimal.Decimal
	RightTotal decimal.Decimal
	Difference decimal.Decimal // always zero for an accepted match
	Comment    string
	Status     MatchStatus
	CreatedBy  string
	CreatedAt  time.Time
	ApprovedBy string
	ApprovedAt time.Time
}

// Members returns all transaction serials in the group, left side first.
func (g MatchGroup) Members() []string {
	out := make([]string, 0, len(g.Left)+len(g.Right))
	out = append(out, g.Left...)
	out = append(out, g.Right...)
	return out
}

// Clone returns a deep copy of the group.
func (g MatchGroup) Clone() MatchGroup {
	c := g
	c.Left = append([]string(nil), g.Left...)
	c.Right = append([]string(nil), g.Right...)
	return c
}
