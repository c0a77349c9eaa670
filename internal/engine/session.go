// Package engine implements the reconciliation session: exact-balance
// matching, the approval gate, delta-checkpoint undo/redo, labeled
// snapshots, and the workflow bridge. Every mutating operation is one
// logical unit: validate, persist atomically, apply in memory, append to
// the audit chain, checkpoint.
package engine

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/recondesk-dev/recondesk/internal/audit"
	"github.com/recondesk-dev/recondesk/internal/id"
	"github.com/recondesk-dev/recondesk/internal/model"
	"github.com/recondesk-dev/recondesk/internal/period"
	"github.com/recondesk-dev/recondesk/internal/workflow"
)

// Filters is the operator's current view filter, captured by checkpoints so
// undo restores the full working context.
type Filters struct {
	Status    model.TransactionStatus
	ReconType model.ReconType
	Query     string
	From      time.Time
	To        time.Time
}

// Match reports whether a transaction passes the filter.
func (f Filters) Match(t model.Transaction) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.ReconType != "" && t.ReconType != f.ReconType {
		return false
	}
	if f.Query != "" && !strings.Contains(strings.ToLower(t.Description), strings.ToLower(f.Query)) {
		return false
	}
	if !f.From.IsZero() && t.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && t.Date.After(f.To) {
		return false
	}
	return true
}

// Options configures a session. Zero values get sensible defaults.
type Options struct {
	SessionID    string              // device/session metadata stamped on audit entries
	SheetID      string              // identifies the sheet and its workflow
	Locks        period.LockChecker  // re-read before every mutation; defaults to period.Open
	Committer    Committer           // nil means in-memory only
	Workflows    *workflow.Registry  // defaults to a fresh registry
	HistoryDepth int                 // undo stack bound; defaults to DefaultHistoryDepth
	Clock        func() time.Time    // defaults to time.Now
}

// RestoredState is previously persisted state used to resume a session.
type RestoredState struct {
	Transactions    []model.Transaction
	Matches         []model.MatchGroup
	Audit           []audit.Entry
	Snapshots       []model.SystemSnapshot
	WorkflowHistory []workflow.TransitionRecord
}

// Session is one actor-facing reconciliation workspace over one imported
// sheet. All operations are serialized behind a single mutex; sessions over
// distinct sheets share nothing and may run fully in parallel.
type Session struct {
	mu sync.Mutex

	id      string
	sheetID string
	now     func() time.Time

	txns  map[string]*model.Transaction
	order []string // import order, for stable projections

	matches map[string]*model.MatchGroup

	selections   map[string]bool
	filters      Filters
	draftComment string

	undo         []*checkpoint
	redo         []*checkpoint
	historyDepth int

	chain     *audit.Chain
	locks     period.LockChecker
	committer Committer
	workflows *workflow.Registry

	snapshots []*model.SystemSnapshot
	matchSeq  int
	suspended bool
}

// NewSession creates an empty session and registers its workflow (starting
// at IMPORTED) if the registry does not know the sheet yet.
func NewSession(opts Options) (*Session, error) {
	return newSession(opts, RestoredState{})
}

// ResumeSession rebuilds a session from persisted state. The restored audit
// entries are verified before the session accepts them.
func ResumeSession(opts Options, state RestoredState) (*Session, error) {
	return newSession(opts, state)
}

func newSession(opts Options, state RestoredState) (*Session, error) {
	if opts.SheetID == "" {
		return nil, fmt.Errorf("sheet id is required")
	}
	if opts.SessionID == "" {
		opts.SessionID = uuid.NewString()
	}
	if opts.Locks == nil {
		opts.Locks = period.Open
	}
	if opts.Workflows == nil {
		opts.Workflows = workflow.NewRegistry()
	}
	if opts.HistoryDepth <= 0 {
		opts.HistoryDepth = DefaultHistoryDepth
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	s := &Session{
		id:           opts.SessionID,
		sheetID:      opts.SheetID,
		now:          opts.Clock,
		txns:         make(map[string]*model.Transaction),
		matches:      make(map[string]*model.MatchGroup),
		selections:   make(map[string]bool),
		historyDepth: opts.HistoryDepth,
		chain:        audit.NewChainFromEntries(state.Audit),
		locks:        opts.Locks,
		committer:    opts.Committer,
		workflows:    opts.Workflows,
	}

	if err := s.chain.Verify(); err != nil {
		return nil, fmt.Errorf("restored audit trail: %w", err)
	}

	for _, t := range state.Transactions {
		txn := t
		s.txns[txn.Serial] = &txn
		s.order = append(s.order, txn.Serial)
	}
	for _, g := range state.Matches {
		grp := g.Clone()
		s.matches[grp.ID] = &grp
		// Keep the ref sequence monotonic across unmatches and restarts.
		if _, _, seq, err := id.ParseMatchRef(grp.Ref); err == nil && seq > s.matchSeq {
			s.matchSeq = seq
		}
	}
	for _, snap := range state.Snapshots {
		sn := snap
		s.snapshots = append(s.snapshots, &sn)
	}

	if _, ok := s.workflows.Get(opts.SheetID); !ok {
		if len(state.WorkflowHistory) > 0 {
			if err := s.workflows.Adopt(workflow.Restore(opts.SheetID, state.WorkflowHistory)); err != nil {
				return nil, fmt.Errorf("restoring workflow: %w", err)
			}
		} else if _, err := s.workflows.Create(opts.SheetID); err != nil {
			return nil, fmt.Errorf("registering workflow: %w", err)
		}
	}
	return s, nil
}

// guard rejects mutations while the session is suspended.
func (s *Session) guard() error {
	if s.suspended {
		return &SuspendedError{}
	}
	return nil
}

// newEntry builds an unsealed audit entry stamped with the session metadata.
func (s *Session) newEntry(actor model.Actor, action, entityType, entityID, summary, justification, before, after string) audit.Entry {
	return audit.Entry{
		Timestamp:     s.now(),
		ActorID:       actor.ID,
		ActorRole:     actor.Role.String(),
		SessionID:     s.id,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Summary:       summary,
		Justification: justification,
		Before:        before,
		After:         after,
	}
}

// commitAndAdopt seals the entry, persists the set atomically, then adopts
// the entry into the in-memory chain. Nothing is adopted if the commit
// fails, so the chain never gets ahead of storage.
func (s *Session) commitAndAdopt(set CommitSet, entry audit.Entry) (audit.Entry, error) {
	sealed := s.chain.Seal(entry)
	set.Audit = &sealed
	if s.committer != nil {
		if err := s.committer.Commit(set); err != nil {
			return audit.Entry{}, fmt.Errorf("persisting %s: %w", sealed.Action, err)
		}
	}
	if err := s.chain.Append(sealed); err != nil {
		// Seal and Append share the same head under the session mutex.
		panic("adopting sealed audit entry: " + err.Error())
	}
	return sealed, nil
}

// auditDenied records a denied attempt with a distinguishing action type so
// failed or unauthorized actions stay forensically visible. Storage failure
// here must not mask the denial itself.
func (s *Session) auditDenied(actor model.Actor, action, entityType, entityID, summary string) {
	_, _ = s.commitAndAdopt(CommitSet{}, s.newEntry(actor, action+".denied", entityType, entityID, summary, "", "", ""))
}

// encodeJSON renders an entity snapshot for an audit entry's before/after
// fields.
func encodeJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(data)
}

// --- selection and view state -------------------------------------------

// Select marks a transaction as selected.
func (s *Session) Select(serial string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txns[serial]; !ok {
		return &NotFoundError{Entity: "transaction", ID: serial}
	}
	s.selections[serial] = true
	return nil
}

// Deselect clears one selection.
func (s *Session) Deselect(serial string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.selections, serial)
}

// ClearSelections clears all selections.
func (s *Session) ClearSelections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selections = make(map[string]bool)
}

// SetFilters replaces the active view filter.
func (s *Session) SetFilters(f Filters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = f
}

// SetDraftComment stores the operator's in-progress match comment.
func (s *Session) SetDraftComment(c string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draftComment = c
}

// --- undo / redo -----------------------------------------------------------

// Undo reverts the most recent mutation. It is a no-op (false, nil) when
// there is nothing to undo. Restored state was already validated when it was
// first produced, so no business rules are re-checked.
func (s *Session) Undo(actor model.Actor) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guard(); err != nil {
		return false, err
	}
	if len(s.undo) == 0 {
		return false, nil
	}

	cp := s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]
	cp.applyBefore(s)

	entry := s.newEntry(actor, "session.undo", "session", s.id,
		fmt.Sprintf("undid %s", cp.label), "", "", "")
	if _, err := s.commitAndAdopt(cp.commitSetBefore(), entry); err != nil {
		cp.applyAfter(s)
		s.undo = append(s.undo, cp)
		return false, err
	}

	s.redo = append(s.redo, cp)
	return true, nil
}

// Redo re-applies the most recently undone mutation. No-op on an empty redo
// stack.
func (s *Session) Redo(actor model.Actor) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guard(); err != nil {
		return false, err
	}
	if len(s.redo) == 0 {
		return false, nil
	}

	cp := s.redo[len(s.redo)-1]
	s.redo = s.redo[:len(s.redo)-1]
	cp.applyAfter(s)

	entry := s.newEntry(actor, "session.redo", "session", s.id,
		fmt.Sprintf("redid %s", cp.label), "", "", "")
	if _, err := s.commitAndAdopt(cp.commitSetAfter(), entry); err != nil {
		cp.applyBefore(s)
		s.redo = append(s.redo, cp)
		return false, err
	}

	s.undo = append(s.undo, cp)
	return true, nil
}

// --- workflow ---------------------------------------------------------------

// TransitionWorkflow advances the sheet's workflow. Role, permission, and
// legal-next-state checks are enforced by the state machine; denied attempts
// are audited.
func (s *Session) TransitionWorkflow(target workflow.State, actor model.Actor, justification string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guard(); err != nil {
		return err
	}

	wf, ok := s.workflows.Get(s.sheetID)
	if !ok {
		return &NotFoundError{Entity: "workflow", ID: s.sheetID}
	}

	from := wf.Current
	if err := wf.Transition(target, actor, justification, s.now()); err != nil {
		if _, denied := err.(*workflow.NotAllowedError); denied {
			s.auditDenied(actor, "workflow.transition", "workflow", s.sheetID,
				fmt.Sprintf("transition %s -> %s denied", from, target))
		}
		return err
	}

	rec := wf.History[len(wf.History)-1]
	entry := s.newEntry(actor, "workflow.transition", "workflow", s.sheetID,
		fmt.Sprintf("transitioned %s -> %s", from, target), justification,
		string(from), string(target))

	set := CommitSet{Transitions: []WorkflowUpsert{{WorkflowID: s.sheetID, Record: rec}}}
	if _, err := s.commitAndAdopt(set, entry); err != nil {
		// Roll the in-memory machine back; the transition never happened.
		wf.Current = from
		wf.History = wf.History[:len(wf.History)-1]
		return err
	}
	return nil
}

// --- chain verification ------------------------------------------------------

// VerifyAuditChain recomputes every entry's hash against its stored fields
// and its predecessor. On tampering it forces the workflow into
// FLAGGED_FOR_AUDIT, suspends all further mutation of this session, and
// returns the tamper error identifying the first bad entry.
func (s *Session) VerifyAuditChain() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.chain.Verify()
	if err == nil {
		return nil
	}

	s.suspended = true
	if wf, ok := s.workflows.Get(s.sheetID); ok && wf.Current != workflow.StateFlaggedForAudit {
		wf.Force(workflow.StateFlaggedForAudit, err.Error(), s.now())
		if s.committer != nil {
			rec := wf.History[len(wf.History)-1]
			// Best effort: the forced flag should survive a restart, but a
			// storage failure must not mask the tamper report.
			_ = s.committer.Commit(CommitSet{
				Transitions: []WorkflowUpsert{{WorkflowID: s.sheetID, Record: rec}},
			})
		}
	}
	return err
}
