// Package workflow governs the reconciliation lifecycle from import through
// archive. Transitions are explicit: nothing moves a workflow between states
// except a recorded Transition (or a tamper-forced flag).
package workflow

import (
	"fmt"
	"time"

	"github.com/recondesk-dev/recondesk/internal/model"
)

// State is one of the twelve fixed workflow states.
type State string

const (
	StateImported           State = "IMPORTED"
	StateUnderReview        State = "UNDER_REVIEW"
	StateMatched            State = "MATCHED"
	StatePartiallyMatched   State = "PARTIALLY_MATCHED"
	StateNeedsApproval      State = "NEEDS_APPROVAL"
	StateApproved           State = "APPROVED"
	StateFlaggedForAudit    State = "FLAGGED_FOR_AUDIT"
	StateUnderInvestigation State = "UNDER_INVESTIGATION"
	StateEscalated          State = "ESCALATED"
	StateExported           State = "EXPORTED"
	StateArchived           State = "ARCHIVED"
	StateRejected           State = "REJECTED"
)

// stateRule declares, for one state, who may act in it, what they must hold,
// and where it may go. The table is fixed at compile time.
type stateRule struct {
	roles []model.Role
	perms []model.Permission
	next  []State
}

var table = map[State]stateRule{
	StateImported: {
		roles: []model.Role{model.RoleAdmin, model.RoleManager, model.RoleAnalyst},
		perms: []model.Permission{model.PermTransition},
		next:  []State{StateUnderReview, StateRejected},
	},
	StateUnderReview: {
		roles: []model.Role{model.RoleAdmin, model.RoleManager, model.RoleAnalyst},
		perms: []model.Permission{model.PermTransition},
		next:  []State{StateMatched, StatePartiallyMatched, StateFlaggedForAudit, StateRejected},
	},
	StatePartiallyMatched: {
		roles: []model.Role{model.RoleAdmin, model.RoleManager, model.RoleAnalyst},
		perms: []model.Permission{model.PermTransition, model.PermMatch},
		next:  []State{StateUnderReview, StateMatched, StateFlaggedForAudit},
	},
	StateMatched: {
		roles: []model.Role{model.RoleAdmin, model.RoleManager, model.RoleAnalyst},
		perms: []model.Permission{model.PermTransition, model.PermMatch},
		next:  []State{StateNeedsApproval, StateFlaggedForAudit},
	},
	StateNeedsApproval: {
		roles: []model.Role{model.RoleAdmin, model.RoleManager},
		perms: []model.Permission{model.PermTransition, model.PermApprove},
		next:  []State{StateApproved, StateRejected, StateEscalated, StateFlaggedForAudit},
	},
	StateApproved: {
		roles: []model.Role{model.RoleAdmin, model.RoleManager},
		perms: []model.Permission{model.PermTransition},
		next:  []State{StateExported, StateFlaggedForAudit},
	},
	StateFlaggedForAudit: {
		roles: []model.Role{model.RoleAdmin, model.RoleAuditor},
		perms: []model.Permission{model.PermTransition, model.PermInvestigate},
		next:  []State{StateUnderInvestigation},
	},
	StateUnderInvestigation: {
		roles: []model.Role{model.RoleAdmin, model.RoleAuditor},
		perms: []model.Permission{model.PermTransition, model.PermInvestigate},
		next:  []State{StateEscalated, StateUnderReview, StateRejected},
	},
	StateEscalated: {
		roles: []model.Role{model.RoleAdmin},
		perms: []model.Permission{model.PermTransition},
		next:  []State{StateUnderInvestigation, StateApproved, StateRejected},
	},
	StateExported: {
		roles: []model.Role{model.RoleAdmin, model.RoleManager},
		perms: []model.Permission{model.PermTransition, model.PermExport},
		next:  []State{StateArchived, StateFlaggedForAudit},
	},
	StateArchived: {}, // terminal
	StateRejected: {
		roles: []model.Role{model.RoleAdmin, model.RoleManager},
		perms: []model.Permission{model.PermTransition},
		next:  []State{StateUnderReview},
	},
}

// States lists all twelve states in lifecycle order.
func States() []State {
	return []State{
		StateImported, StateUnderReview, StateMatched, StatePartiallyMatched,
		StateNeedsApproval, StateApproved, StateFlaggedForAudit,
		StateUnderInvestigation, StateEscalated, StateExported,
		StateArchived, StateRejected,
	}
}

// ArchiveControlRoles are the roles that must all appear among a workflow's
// historical transition actors before it may be archived: the preparer
// (analyst) and the approver (manager) must be distinct hands.
var ArchiveControlRoles = []model.Role{model.RoleAnalyst, model.RoleManager}

// InvalidTransitionError reports a target state outside the current state's
// legal next-state set.
type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s", e.From, e.To)
}

// NotAllowedError reports an actor that may not act in the current state.
type NotAllowedError struct {
	State   State
	ActorID string
	Reason  string
}

func (e *NotAllowedError) Error() string {
	return fmt.Sprintf("actor %s may not act in state %s: %s", e.ActorID, e.State, e.Reason)
}

// TransitionRecord is one immutable history entry.
type TransitionRecord struct {
	From          State
	To            State
	ActorID       string
	Role          model.Role
	Justification string
	Timestamp     time.Time
	Forced        bool
}

// Workflow is the lifecycle of one reconciliation sheet.
type Workflow struct {
	ID      string
	Current State
	History []TransitionRecord
}

// New returns a workflow starting at IMPORTED.
func New(id string) *Workflow {
	return &Workflow{ID: id, Current: StateImported}
}

// Restore rebuilds a workflow from its persisted transition history. The
// current state is the destination of the last recorded transition.
func Restore(id string, history []TransitionRecord) *Workflow {
	w := New(id)
	if len(history) > 0 {
		w.History = append(w.History, history...)
		w.Current = history[len(history)-1].To
	}
	return w
}

// Next returns the legal next states from the current state.
func (w *Workflow) Next() []State {
	return append([]State(nil), table[w.Current].next...)
}

// RolesSeen returns the set of roles that performed at least one recorded
// transition on the workflow.
func (w *Workflow) RolesSeen() map[model.Role]bool {
	seen := make(map[model.Role]bool)
	for _, rec := range w.History {
		if !rec.Forced {
			seen[rec.Role] = true
		}
	}
	return seen
}

// CheckSeparationOfDuties reports whether every required role appears among
// the roles of actors who performed at least one recorded transition.
func (w *Workflow) CheckSeparationOfDuties(required []model.Role) bool {
	seen := w.RolesSeen()
	for _, r := range required {
		if !seen[r] {
			return false
		}
	}
	return true
}

// Transition advances the workflow to target on behalf of actor. It succeeds
// only if the actor's role is allowed in the current state, the actor holds
// all of the current state's required permissions, and target is in the
// current state's legal next-state set. Archival additionally requires
// separation of duties across ArchiveControlRoles.
func (w *Workflow) Transition(target State, actor model.Actor, justification string, now time.Time) error {
	rule, ok := table[w.Current]
	if !ok {
		return fmt.Errorf("unknown state %q", w.Current)
	}

	if !actor.Active {
		return &NotAllowedError{State: w.Current, ActorID: actor.ID, Reason: "actor is inactive"}
	}

	roleAllowed := false
	for _, r := range rule.roles {
		if r == actor.Role {
			roleAllowed = true
			break
		}
	}
	if !roleAllowed {
		return &NotAllowedError{
			State:   w.Current,
			ActorID: actor.ID,
			Reason:  fmt.Sprintf("role %s not allowed", actor.Role),
		}
	}

	for _, p := range rule.perms {
		if !actor.Can(p) {
			return &NotAllowedError{
				State:   w.Current,
				ActorID: actor.ID,
				Reason:  fmt.Sprintf("missing permission %s", p),
			}
		}
	}

	legal := false
	for _, n := range rule.next {
		if n == target {
			legal = true
			break
		}
	}
	if !legal {
		return &InvalidTransitionError{From: w.Current, To: target}
	}

	if target == StateArchived && !w.CheckSeparationOfDuties(ArchiveControlRoles) {
		return &NotAllowedError{
			State:   w.Current,
			ActorID: actor.ID,
			Reason:  "separation of duties not satisfied for archival",
		}
	}

	w.History = append(w.History, TransitionRecord{
		From:          w.Current,
		To:            target,
		ActorID:       actor.ID,
		Role:          actor.Role,
		Justification: justification,
		Timestamp:     now,
	})
	w.Current = target
	return nil
}

// Force moves the workflow to target without role, permission, or next-state
// checks, recording a forced history entry. Used only when chain tampering
// is detected and the sheet must be flagged for audit.
func (w *Workflow) Force(target State, reason string, now time.Time) {
	w.History = append(w.History, TransitionRecord{
		From:          w.Current,
		To:            target,
		ActorID:       "system",
		Role:          model.RoleAdmin,
		Justification: reason,
		Timestamp:     now,
		Forced:        true,
	})
	w.Current = target
}
