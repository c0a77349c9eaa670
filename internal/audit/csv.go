package audit

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Header is the CSV header for an exported audit trail.
const Header = "seq,timestamp,actor,role,session,action,entity_type,entity_id,summary,justification,before,after,prev_hash,hash"

const (
	numFields = 14

	colSeq           = 0
	colTimestamp     = 1
	colActor         = 2
	colRole          = 3
	colSession       = 4
	colAction        = 5
	colEntityType    = 6
	colEntityID      = 7
	colSummary       = 8
	colJustification = 9
	colBefore        = 10
	colAfter         = 11
	colPrevHash      = 12
	colHash          = 13
)

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colSeq] = strconv.Itoa(e.Seq)
	row[colTimestamp] = e.Timestamp.UTC().Format(time.RFC3339Nano)
	row[colActor] = e.ActorID
	row[colRole] = e.ActorRole
	row[colSession] = e.SessionID
	row[colAction] = e.Action
	row[colEntityType] = e.EntityType
	row[colEntityID] = e.EntityID
	row[colSummary] = e.Summary
	row[colJustification] = e.Justification
	row[colBefore] = e.Before
	row[colAfter] = e.After
	row[colPrevHash] = e.PrevHash
	row[colHash] = e.Hash
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	seq, err := strconv.Atoi(record[colSeq])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing seq %q: %w", record[colSeq], err)
	}

	ts, err := time.Parse(time.RFC3339Nano, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}

	return Entry{
		Seq:           seq,
		Timestamp:     ts,
		ActorID:       record[colActor],
		ActorRole:     record[colRole],
		SessionID:     record[colSession],
		Action:        record[colAction],
		EntityType:    record[colEntityType],
		EntityID:      record[colEntityID],
		Summary:       record[colSummary],
		Justification: record[colJustification],
		Before:        record[colBefore],
		After:         record[colAfter],
		PrevHash:      record[colPrevHash],
		Hash:          record[colHash],
	}, nil
}

// WriteEntries writes entries (including header) to w.
func WriteEntries(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}
	return cw.Error()
}

// ReadEntries reads an exported audit trail from r.
func ReadEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading audit CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
