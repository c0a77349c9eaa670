// Package audit maintains a hash-linked, append-only log of every mutating
// action and every denied attempt against a reconciliation session. Each
// entry's hash incorporates its predecessor's hash, so any retroactive edit
// to a stored entry is detectable by Verify.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// GenesisHash is the sentinel previous-hash of the first entry. It is always
// present, so verification is total: there are no null-hash entries.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Entry is one immutable audit record.
type Entry struct {
	Seq           int
	Timestamp     time.Time
	ActorID       string
	ActorRole     string
	SessionID     string
	Action        string
	EntityType    string
	EntityID      string
	Summary       string
	Justification string
	Before        string // JSON snapshot of the entity before the action
	After         string // JSON snapshot of the entity after the action
	PrevHash      string
	Hash          string
}

// hashBody is the canonical encoding hashed for each entry. All fields are
// plain values (no maps) so json.Marshal field order is deterministic and
// the digest is reproducible.
type hashBody struct {
	PrevHash      string `json:"prev_hash"`
	Seq           int    `json:"seq"`
	Timestamp     string `json:"ts"`
	ActorID       string `json:"actor"`
	ActorRole     string `json:"role"`
	SessionID     string `json:"session"`
	Action        string `json:"action"`
	EntityType    string `json:"entity_type"`
	EntityID      string `json:"entity_id"`
	Summary       string `json:"summary"`
	Justification string `json:"justification"`
	Before        string `json:"before"`
	After         string `json:"after"`
}

// HashEntry computes the digest of an entry from its stored fields and its
// PrevHash. The stored Hash field is ignored.
func HashEntry(e Entry) string {
	body := hashBody{
		PrevHash:      e.PrevHash,
		Seq:           e.Seq,
		Timestamp:     e.Timestamp.UTC().Format(time.RFC3339Nano),
		ActorID:       e.ActorID,
		ActorRole:     e.ActorRole,
		SessionID:     e.SessionID,
		Action:        e.Action,
		EntityType:    e.EntityType,
		EntityID:      e.EntityID,
		Summary:       e.Summary,
		Justification: e.Justification,
		Before:        e.Before,
		After:         e.After,
	}
	data, err := json.Marshal(body)
	if err != nil {
		// hashBody contains only strings and ints; Marshal cannot fail.
		panic("marshaling audit hash body: " + err.Error())
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ChainTamperError reports the first entry whose recomputed hash disagrees
// with its stored hash.
type ChainTamperError struct {
	Index int
}

func (e *ChainTamperError) Error() string {
	return fmt.Sprintf("audit chain tamper detected at entry %d", e.Index)
}

// Chain is an in-memory append-only hash chain.
type Chain struct {
	entries []Entry
}

// NewChain returns an empty chain.
func NewChain() *Chain {
	return &Chain{}
}

// NewChainFromEntries rebuilds a chain from previously stored entries, in
// creation order. The entries are adopted as-is; call Verify to check them.
func NewChainFromEntries(entries []Entry) *Chain {
	return &Chain{entries: append([]Entry(nil), entries...)}
}

// Head returns the current head hash, or GenesisHash for an empty chain.
func (c *Chain) Head() string {
	if len(c.entries) == 0 {
		return GenesisHash
	}
	return c.entries[len(c.entries)-1].Hash
}

// Len returns the number of entries.
func (c *Chain) Len() int { return len(c.entries) }

// Entries returns a copy of all entries in creation order.
func (c *Chain) Entries() []Entry {
	return append([]Entry(nil), c.entries...)
}

// Seal assigns the entry its sequence number, previous hash, and hash
// against the current chain head without storing it. The sealed entry is
// handed to the persistence collaborator first; Append adopts it only after
// the commit succeeds, so the in-memory chain never gets ahead of storage.
func (c *Chain) Seal(e Entry) Entry {
	e.Seq = len(c.entries) + 1
	e.PrevHash = c.Head()
	e.Hash = HashEntry(e)
	return e
}

// Append adopts a sealed entry. It rejects entries that were not sealed
// against the current head.
func (c *Chain) Append(e Entry) error {
	if e.PrevHash != c.Head() {
		return fmt.Errorf("entry sealed against stale head %s", shortHash(e.PrevHash))
	}
	if got := HashEntry(e); got != e.Hash {
		return fmt.Errorf("entry hash mismatch: stored %s, computed %s", shortHash(e.Hash), shortHash(got))
	}
	c.entries = append(c.entries, e)
	return nil
}

// Verify walks the chain in creation order, recomputing each entry's hash
// from its stored fields and its predecessor's stored hash. It returns a
// ChainTamperError identifying the first entry that fails. An empty chain
// verifies trivially.
func (c *Chain) Verify() error {
	prev := GenesisHash
	for i, e := range c.entries {
		if e.PrevHash != prev {
			return &ChainTamperError{Index: i}
		}
		if HashEntry(e) != e.Hash {
			return &ChainTamperError{Index: i}
		}
		prev = e.Hash
	}
	return nil
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return strings.TrimSpace(h)
}
