package engine

import "github.com/recondesk-dev/recondesk/internal/model"

// DefaultHistoryDepth bounds the undo stack; oldest checkpoints are dropped
// beyond it.
const DefaultHistoryDepth = 50

// txnDelta captures one transaction's state on both sides of a mutation.
// present=false means the transaction did not exist on that side (only
// imports create transactions, and undoing an import removes them again).
type txnDelta struct {
	serial        string
	before, after model.Transaction
	beforePresent bool
	afterPresent  bool
}

// matchDelta captures one match group's state on both sides of a mutation.
type matchDelta struct {
	id            string
	before, after model.MatchGroup
	beforePresent bool
	afterPresent  bool
}

// checkpoint is a delta capture of one mutation: only the transactions and
// match groups the operation touched, plus the small whole-copied view state
// (selections, filters, draft comment). Undo applies the before side, redo
// the after side, so checkpointing cost is proportional to the delta rather
// than the full reconciliation state.
type checkpoint struct {
	label      string
	txns       map[string]*txnDelta
	txnOrder   []string // touch order, so commit sets reach storage deterministically
	matches    map[string]*matchDelta
	matchOrder []string

	selBefore, selAfter         map[string]bool
	filtersBefore, filtersAfter Filters
	draftBefore, draftAfter     string

	orderChanged            bool
	orderBefore, orderAfter []string

	seqBefore, seqAfter int
}

// begin opens a checkpoint against the session's current state. The caller
// touches every entity it is about to mutate, mutates, then calls finish.
func (s *Session) begin(label string) *checkpoint {
	return &checkpoint{
		label:         label,
		txns:          make(map[string]*txnDelta),
		matches:       make(map[string]*matchDelta),
		selBefore:     copySet(s.selections),
		filtersBefore: s.filters,
		draftBefore:   s.draftComment,
		seqBefore:     s.matchSeq,
	}
}

// touchTxn records a transaction's before-state once, no matter how many
// times it is touched within the operation.
func (cp *checkpoint) touchTxn(s *Session, serial string) {
	if _, seen := cp.txns[serial]; seen {
		return
	}
	d := &txnDelta{serial: serial}
	if t, ok := s.txns[serial]; ok {
		d.before = *t
		d.beforePresent = true
	}
	cp.txns[serial] = d
	cp.txnOrder = append(cp.txnOrder, serial)
}

// touchMatch records a match group's before-state once.
func (cp *checkpoint) touchMatch(s *Session, id string) {
	if _, seen := cp.matches[id]; seen {
		return
	}
	d := &matchDelta{id: id}
	if g, ok := s.matches[id]; ok {
		d.before = g.Clone()
		d.beforePresent = true
	}
	cp.matches[id] = d
	cp.matchOrder = append(cp.matchOrder, id)
}

// touchOrder snapshots the import order; only imports and snapshot restores
// change it.
func (cp *checkpoint) touchOrder(s *Session) {
	if cp.orderChanged {
		return
	}
	cp.orderChanged = true
	cp.orderBefore = append([]string(nil), s.order...)
}

// finish records the after-state of every touched entity. The checkpoint is
// complete but not yet on the undo stack; the caller pushes it only after
// the persistence commit succeeds.
func (cp *checkpoint) finish(s *Session) {
	for serial, d := range cp.txns {
		if t, ok := s.txns[serial]; ok {
			d.after = *t
			d.afterPresent = true
		}
	}
	for id, d := range cp.matches {
		if g, ok := s.matches[id]; ok {
			d.after = g.Clone()
			d.afterPresent = true
		}
	}
	if cp.orderChanged {
		cp.orderAfter = append([]string(nil), s.order...)
	}
	cp.selAfter = copySet(s.selections)
	cp.filtersAfter = s.filters
	cp.draftAfter = s.draftComment
	cp.seqAfter = s.matchSeq
}

// applyBefore restores the session to the checkpoint's before side.
func (cp *checkpoint) applyBefore(s *Session) {
	for serial, d := range cp.txns {
		if d.beforePresent {
			t := d.before
			s.txns[serial] = &t
		} else {
			delete(s.txns, serial)
		}
	}
	for id, d := range cp.matches {
		if d.beforePresent {
			g := d.before.Clone()
			s.matches[id] = &g
		} else {
			delete(s.matches, id)
		}
	}
	if cp.orderChanged {
		s.order = append([]string(nil), cp.orderBefore...)
	}
	s.selections = copySet(cp.selBefore)
	s.filters = cp.filtersBefore
	s.draftComment = cp.draftBefore
	s.matchSeq = cp.seqBefore
}

// applyAfter restores the session to the checkpoint's after side.
func (cp *checkpoint) applyAfter(s *Session) {
	for serial, d := range cp.txns {
		if d.afterPresent {
			t := d.after
			s.txns[serial] = &t
		} else {
			delete(s.txns, serial)
		}
	}
	for id, d := range cp.matches {
		if d.afterPresent {
			g := d.after.Clone()
			s.matches[id] = &g
		} else {
			delete(s.matches, id)
		}
	}
	if cp.orderChanged {
		s.order = append([]string(nil), cp.orderAfter...)
	}
	s.selections = copySet(cp.selAfter)
	s.filters = cp.filtersAfter
	s.draftComment = cp.draftAfter
	s.matchSeq = cp.seqAfter
}

// merge folds a completed child checkpoint into an aggregate one. Used by
// batch operations so the whole batch undoes as one step: the aggregate
// keeps the earliest before-state and the latest after-state per entity.
func (cp *checkpoint) merge(child *checkpoint) {
	for _, serial := range child.txnOrder {
		d := child.txns[serial]
		if existing, seen := cp.txns[serial]; seen {
			existing.after = d.after
			existing.afterPresent = d.afterPresent
		} else {
			cp.txns[serial] = d
			cp.txnOrder = append(cp.txnOrder, serial)
		}
	}
	for _, id := range child.matchOrder {
		d := child.matches[id]
		if existing, seen := cp.matches[id]; seen {
			existing.after = d.after
			existing.afterPresent = d.afterPresent
		} else {
			cp.matches[id] = d
			cp.matchOrder = append(cp.matchOrder, id)
		}
	}
	if child.orderChanged {
		if !cp.orderChanged {
			cp.orderChanged = true
			cp.orderBefore = child.orderBefore
		}
		cp.orderAfter = child.orderAfter
	}
	cp.selAfter = child.selAfter
	cp.filtersAfter = child.filtersAfter
	cp.draftAfter = child.draftAfter
	cp.seqAfter = child.seqAfter
}

// push places a finished checkpoint on the undo stack. Any new action
// invalidates forward history, so the redo stack is cleared, and the stack
// is trimmed to the configured depth.
func (s *Session) push(cp *checkpoint) {
	s.undo = append(s.undo, cp)
	if len(s.undo) > s.historyDepth {
		s.undo = s.undo[len(s.undo)-s.historyDepth:]
	}
	s.redo = nil
}

// commitSetBefore builds the persistence writes that realize the
// checkpoint's before side (used by undo).
func (cp *checkpoint) commitSetBefore() CommitSet {
	var set CommitSet
	for _, serial := range cp.txnOrder {
		d := cp.txns[serial]
		if d.beforePresent {
			set.TxnUpserts = append(set.TxnUpserts, d.before)
		} else {
			set.TxnDeletes = append(set.TxnDeletes, serial)
		}
	}
	for _, id := range cp.matchOrder {
		d := cp.matches[id]
		if d.beforePresent {
			set.MatchUpserts = append(set.MatchUpserts, d.before.Clone())
		} else {
			set.MatchDeletes = append(set.MatchDeletes, id)
		}
	}
	return set
}

// commitSetAfter builds the persistence writes that realize the
// checkpoint's after side (used by mutations and redo).
func (cp *checkpoint) commitSetAfter() CommitSet {
	var set CommitSet
	for _, serial := range cp.txnOrder {
		d := cp.txns[serial]
		if d.afterPresent {
			set.TxnUpserts = append(set.TxnUpserts, d.after)
		} else {
			set.TxnDeletes = append(set.TxnDeletes, serial)
		}
	}
	for _, id := range cp.matchOrder {
		d := cp.matches[id]
		if d.afterPresent {
			set.MatchUpserts = append(set.MatchUpserts, d.after.Clone())
		} else {
			set.MatchDeletes = append(set.MatchDeletes, id)
		}
	}
	return set
}

func copySet(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
