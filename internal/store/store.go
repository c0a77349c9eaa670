package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/recondesk-dev/recondesk/internal/audit"
	"github.com/recondesk-dev/recondesk/internal/engine"
	"github.com/recondesk-dev/recondesk/internal/model"
	"github.com/recondesk-dev/recondesk/internal/workflow"
)

// Store persists commit sets and reloads session state.
type Store struct {
	db *sql.DB
}

// New wraps an initialized database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Commit implements engine.Committer: the whole set goes into one database
// transaction.
func (s *Store) Commit(set engine.CommitSet) error {
	if set.Empty() {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for i := range set.TxnUpserts {
		if err := upsertTransaction(tx, &set.TxnUpserts[i]); err != nil {
			return err
		}
	}
	for _, serial := range set.TxnDeletes {
		if _, err := tx.Exec("DELETE FROM transactions WHERE serial = ?", serial); err != nil {
			return fmt.Errorf("delete transaction %s: %w", serial, err)
		}
	}
	for i := range set.MatchUpserts {
		if err := upsertMatch(tx, &set.MatchUpserts[i]); err != nil {
			return err
		}
	}
	for _, id := range set.MatchDeletes {
		// Members cascade.
		if _, err := tx.Exec("DELETE FROM match_groups WHERE id = ?", id); err != nil {
			return fmt.Errorf("delete match %s: %w", id, err)
		}
	}
	for i := range set.Snapshots {
		if err := insertSnapshot(tx, &set.Snapshots[i]); err != nil {
			return err
		}
	}
	for _, wu := range set.Transitions {
		if err := insertTransition(tx, wu); err != nil {
			return err
		}
	}
	if set.Audit != nil {
		if err := insertAuditEntry(tx, set.Audit); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func upsertTransaction(tx *sql.Tx, t *model.Transaction) error {
	_, err := tx.Exec(
		`INSERT INTO transactions
		(serial, date, description, amount, recon_type, reference, importer_id, status, match_id)
		VALUES (?,?,?,?,?,?,?,?,?)
		ON CONFLICT(serial) DO UPDATE SET status = excluded.status, match_id = excluded.match_id`,
		t.Serial, t.Date.UTC().Format(time.RFC3339), t.Description, t.Amount.String(),
		string(t.ReconType), t.Reference, t.ImporterID, string(t.Status), t.MatchID,
	)
	if err != nil {
		return fmt.Errorf("upsert transaction %s: %w", t.Serial, err)
	}
	return nil
}

func upsertMatch(tx *sql.Tx, g *model.MatchGroup) error {
	_, err := tx.Exec(
		`INSERT INTO match_groups
		(id, ref, left_total, right_total, difference, comment, status, created_by, created_at, approved_by, approved_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			comment = excluded.comment,
			status = excluded.status,
			approved_by = excluded.approved_by,
			approved_at = excluded.approved_at`,
		g.ID, g.Ref, g.LeftTotal.String(), g.RightTotal.String(), g.Difference.String(),
		g.Comment, string(g.Status), g.CreatedBy, g.CreatedAt.UTC().Format(time.RFC3339),
		g.ApprovedBy, nullableTime(g.ApprovedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert match %s: %w", g.ID, err)
	}

	// Membership is immutable after creation; rewrite it wholesale.
	if _, err := tx.Exec("DELETE FROM match_members WHERE match_id = ?", g.ID); err != nil {
		return fmt.Errorf("clear members of %s: %w", g.ID, err)
	}
	for i, serial := range g.Left {
		if _, err := tx.Exec(
			"INSERT INTO match_members (match_id, serial, side, position) VALUES (?,?,?,?)",
			g.ID, serial, "L", i,
		); err != nil {
			return fmt.Errorf("insert member %s: %w", serial, err)
		}
	}
	for i, serial := range g.Right {
		if _, err := tx.Exec(
			"INSERT INTO match_members (match_id, serial, side, position) VALUES (?,?,?,?)",
			g.ID, serial, "R", i,
		); err != nil {
			return fmt.Errorf("insert member %s: %w", serial, err)
		}
	}
	return nil
}

// snapshotPayload is the JSON shape stored in the snapshots table. Stats are
// recomputable but cheap to keep, so restores do not re-derive them.
type snapshotPayload struct {
	Transactions []model.Transaction `json:"transactions"`
	Matches      []model.MatchGroup  `json:"matches"`
	Stats        model.SnapshotStats `json:"stats"`
}

func insertSnapshot(tx *sql.Tx, snap *model.SystemSnapshot) error {
	payload, err := json.Marshal(snapshotPayload{
		Transactions: snap.Transactions,
		Matches:      snap.Matches,
		Stats:        snap.Stats,
	})
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", snap.ID, err)
	}
	_, err = tx.Exec(
		`INSERT OR REPLACE INTO snapshots (id, label, type, payload, created_by, created_at)
		VALUES (?,?,?,?,?,?)`,
		snap.ID, snap.Label, string(snap.Type), string(payload),
		snap.CreatedBy, snap.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot %s: %w", snap.ID, err)
	}
	return nil
}

func insertTransition(tx *sql.Tx, wu engine.WorkflowUpsert) error {
	rec := wu.Record
	forced := 0
	if rec.Forced {
		forced = 1
	}
	_, err := tx.Exec(
		`INSERT INTO workflow_transitions
		(workflow_id, from_state, to_state, actor_id, actor_role, justification, timestamp, forced)
		VALUES (?,?,?,?,?,?,?,?)`,
		wu.WorkflowID, string(rec.From), string(rec.To), rec.ActorID,
		rec.Role.String(), rec.Justification, rec.Timestamp.UTC().Format(time.RFC3339Nano), forced,
	)
	if err != nil {
		return fmt.Errorf("insert transition %s -> %s: %w", rec.From, rec.To, err)
	}
	return nil
}

func insertAuditEntry(tx *sql.Tx, e *audit.Entry) error {
	_, err := tx.Exec(
		`INSERT INTO audit_log
		(seq, timestamp, actor_id, actor_role, session_id, action, entity_type, entity_id,
		 summary, justification, before_state, after_state, prev_hash, hash)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.Seq, e.Timestamp.UTC().Format(time.RFC3339Nano), e.ActorID, e.ActorRole,
		e.SessionID, e.Action, e.EntityType, e.EntityID, e.Summary, e.Justification,
		e.Before, e.After, e.PrevHash, e.Hash,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry %d: %w", e.Seq, err)
	}
	return nil
}

// Load reads everything back for engine.ResumeSession, including the sheet's
// workflow history so a reopened workspace resumes at its persisted state.
func (s *Store) Load(sheetID string) (engine.RestoredState, error) {
	var state engine.RestoredState

	txns, err := s.loadTransactions()
	if err != nil {
		return state, err
	}
	state.Transactions = txns

	matches, err := s.loadMatches()
	if err != nil {
		return state, err
	}
	state.Matches = matches

	entries, err := s.loadAudit()
	if err != nil {
		return state, err
	}
	state.Audit = entries

	snaps, err := s.loadSnapshots()
	if err != nil {
		return state, err
	}
	state.Snapshots = snaps

	history, err := s.WorkflowHistory(sheetID)
	if err != nil {
		return state, err
	}
	state.WorkflowHistory = history

	return state, nil
}

func (s *Store) loadTransactions() ([]model.Transaction, error) {
	rows, err := s.db.Query(
		`SELECT serial, date, description, amount, recon_type, reference, importer_id, status, match_id
		 FROM transactions ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []model.Transaction
	for rows.Next() {
		var t model.Transaction
		var dateStr, amountStr, rt, status string
		if err := rows.Scan(&t.Serial, &dateStr, &t.Description, &amountStr,
			&rt, &t.Reference, &t.ImporterID, &status, &t.MatchID); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if t.Date, err = time.Parse(time.RFC3339, dateStr); err != nil {
			return nil, fmt.Errorf("transaction %s date: %w", t.Serial, err)
		}
		if t.Amount, err = decimal.NewFromString(amountStr); err != nil {
			return nil, fmt.Errorf("transaction %s amount: %w", t.Serial, err)
		}
		t.ReconType = model.ReconType(rt)
		t.Status = model.TransactionStatus(status)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) loadMatches() ([]model.MatchGroup, error) {
	rows, err := s.db.Query(
		`SELECT id, ref, left_total, right_total, difference, comment, status,
		        created_by, created_at, approved_by, approved_at
		 FROM match_groups ORDER BY ref`)
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	defer rows.Close()

	var out []model.MatchGroup
	for rows.Next() {
		var g model.MatchGroup
		var lt, rt, diff, status, createdAt string
		var approvedAt sql.NullString
		if err := rows.Scan(&g.ID, &g.Ref, &lt, &rt, &diff, &g.Comment, &status,
			&g.CreatedBy, &createdAt, &g.ApprovedBy, &approvedAt); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		if g.LeftTotal, err = decimal.NewFromString(lt); err != nil {
			return nil, fmt.Errorf("match %s left total: %w", g.ID, err)
		}
		if g.RightTotal, err = decimal.NewFromString(rt); err != nil {
			return nil, fmt.Errorf("match %s right total: %w", g.ID, err)
		}
		if g.Difference, err = decimal.NewFromString(diff); err != nil {
			return nil, fmt.Errorf("match %s difference: %w", g.ID, err)
		}
		g.Status = model.MatchStatus(status)
		if g.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("match %s created_at: %w", g.ID, err)
		}
		if approvedAt.Valid && approvedAt.String != "" {
			if g.ApprovedAt, err = time.Parse(time.RFC3339, approvedAt.String); err != nil {
				return nil, fmt.Errorf("match %s approved_at: %w", g.ID, err)
			}
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if err := s.loadMembers(&out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) loadMembers(g *model.MatchGroup) error {
	rows, err := s.db.Query(
		"SELECT serial, side FROM match_members WHERE match_id = ? ORDER BY side, position", g.ID)
	if err != nil {
		return fmt.Errorf("query members of %s: %w", g.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var serial, side string
		if err := rows.Scan(&serial, &side); err != nil {
			return fmt.Errorf("scan member: %w", err)
		}
		if side == "L" {
			g.Left = append(g.Left, serial)
		} else {
			g.Right = append(g.Right, serial)
		}
	}
	return rows.Err()
}

func (s *Store) loadAudit() ([]audit.Entry, error) {
	rows, err := s.db.Query(
		`SELECT seq, timestamp, actor_id, actor_role, session_id, action, entity_type,
		        entity_id, summary, justification, before_state, after_state, prev_hash, hash
		 FROM audit_log ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	var out []audit.Entry
	for rows.Next() {
		var e audit.Entry
		var ts string
		if err := rows.Scan(&e.Seq, &ts, &e.ActorID, &e.ActorRole, &e.SessionID,
			&e.Action, &e.EntityType, &e.EntityID, &e.Summary, &e.Justification,
			&e.Before, &e.After, &e.PrevHash, &e.Hash); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if e.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("audit entry %d timestamp: %w", e.Seq, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) loadSnapshots() ([]model.SystemSnapshot, error) {
	rows, err := s.db.Query(
		"SELECT id, label, type, payload, created_by, created_at FROM snapshots ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []model.SystemSnapshot
	for rows.Next() {
		var snap model.SystemSnapshot
		var typ, payload, createdAt string
		if err := rows.Scan(&snap.ID, &snap.Label, &typ, &payload, &snap.CreatedBy, &createdAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap.Type = model.SnapshotType(typ)
		if snap.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("snapshot %s created_at: %w", snap.ID, err)
		}
		var body snapshotPayload
		if err := json.Unmarshal([]byte(payload), &body); err != nil {
			return nil, fmt.Errorf("decode snapshot %s: %w", snap.ID, err)
		}
		snap.Transactions = body.Transactions
		snap.Matches = body.Matches
		snap.Stats = body.Stats
		out = append(out, snap)
	}
	return out, rows.Err()
}

// WorkflowHistory returns the persisted transition history of one workflow in
// order.
func (s *Store) WorkflowHistory(workflowID string) ([]workflow.TransitionRecord, error) {
	rows, err := s.db.Query(
		`SELECT from_state, to_state, actor_id, actor_role, justification, timestamp, forced
		 FROM workflow_transitions WHERE workflow_id = ? ORDER BY id`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var out []workflow.TransitionRecord
	for rows.Next() {
		var rec workflow.TransitionRecord
		var from, to, role, ts string
		var forced int
		if err := rows.Scan(&from, &to, &rec.ActorID, &role, &rec.Justification, &ts, &forced); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		rec.From = workflow.State(from)
		rec.To = workflow.State(to)
		if rec.Role, err = model.ParseRole(role); err != nil {
			return nil, fmt.Errorf("transition role: %w", err)
		}
		if rec.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("transition timestamp: %w", err)
		}
		rec.Forced = forced == 1
		out = append(out, rec)
	}
	return out, rows.Err()
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
