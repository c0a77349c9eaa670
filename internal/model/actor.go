package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Permission names a single engine capability.
type Permission string

const (
	PermMatch       Permission = "perform_matching"
	PermUnmatch     Permission = "unmatch_transactions"
	PermApprove     Permission = "approve_adjustments"
	PermTransition  Permission = "transition_workflow"
	PermInvestigate Permission = "investigate_flags"
	PermExport      Permission = "export_reconciliation"
	PermRestore     Permission = "restore_snapshots"
	PermManageLocks Permission = "manage_periods"
)

// Role is a closed enumeration of the four workspace roles. Permission
// mappings live in exhaustive switches so a new role cannot be added
// without deciding its capabilities.
type Role int

const (
	RoleAdmin Role = iota
	RoleManager
	RoleAnalyst
	RoleAuditor
)

// String returns the canonical role name.
func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleManager:
		return "manager"
	case RoleAnalyst:
		return "analyst"
	case RoleAuditor:
		return "auditor"
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// ParseRole converts a canonical role name to a Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "admin":
		return RoleAdmin, nil
	case "manager":
		return RoleManager, nil
	case "analyst":
		return RoleAnalyst, nil
	case "auditor":
		return RoleAuditor, nil
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

// Permissions returns the fixed permission set for the role.
func (r Role) Permissions() []Permission {
	switch r {
	case RoleAdmin:
		return []Permission{
			PermMatch, PermUnmatch, PermApprove, PermTransition,
			PermInvestigate, PermExport, PermRestore, PermManageLocks,
		}
	case RoleManager:
		return []Permission{
			PermMatch, PermUnmatch, PermApprove, PermTransition,
			PermExport, PermRestore,
		}
	case RoleAnalyst:
		return []Permission{PermMatch, PermUnmatch, PermTransition}
	case RoleAuditor:
		return []Permission{PermTransition, PermInvestigate}
	}
	panic("unmapped role: " + r.String())
}

// Has reports whether the role's permission set includes p.
func (r Role) Has(p Permission) bool {
	for _, rp := range r.Permissions() {
		if rp == p {
			return true
		}
	}
	return false
}

// AdjustmentLimit returns the maximum nonzero match difference the role may
// approve. Unbounded roles return ok=false. The limit is defined per role
// but not enforced anywhere yet: the match engine only accepts
// zero-difference groups, so no adjustment ever reaches approval.
func (r Role) AdjustmentLimit() (limit decimal.Decimal, bounded bool) {
	switch r {
	case RoleAdmin:
		return decimal.Zero, false
	case RoleManager:
		return decimal.NewFromInt(10000), true
	case RoleAnalyst:
		return decimal.NewFromInt(1000), true
	case RoleAuditor:
		return decimal.Zero, true
	}
	panic("unmapped role: " + r.String())
}

// Actor is an operator acting on a reconciliation session. Every engine
// operation takes the acting actor explicitly; there is no ambient session
// identity.
type Actor struct {
	ID     string
	Name   string
	Role   Role
	Active bool
}

// Can reports whether the actor is active and holds permission p.
func (a Actor) Can(p Permission) bool {
	return a.Active && a.Role.Has(p)
}
