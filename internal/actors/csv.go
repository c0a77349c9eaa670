package actors

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/recondesk-dev/recondesk/internal/model"
)

const (
	numFields = 4
	colID     = 0
	colName   = 1
	colRole   = 2
	colActive = 3
)

// ReadActors reads actors.csv.
func ReadActors(r io.Reader) ([]model.Actor, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading actors CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	var roster []model.Actor
	for i, rec := range records[1:] {
		a, err := UnmarshalActor(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		roster = append(roster, a)
	}
	return roster, nil
}

// WriteActors writes actors.csv.
func WriteActors(w io.Writer, roster []model.Actor) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write([]string{"actor_id", "name", "role", "active"}); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, a := range roster {
		if err := cw.Write(MarshalActor(a)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return cw.Error()
}

// MarshalActor converts an Actor to a CSV row.
func MarshalActor(a model.Actor) []string {
	row := make([]string, numFields)
	row[colID] = a.ID
	row[colName] = a.Name
	row[colRole] = a.Role.String()
	row[colActive] = strconv.FormatBool(a.Active)
	return row
}

// UnmarshalActor converts a CSV row to an Actor.
func UnmarshalActor(record []string) (model.Actor, error) {
	if len(record) != numFields {
		return model.Actor{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	role, err := model.ParseRole(record[colRole])
	if err != nil {
		return model.Actor{}, fmt.Errorf("parsing role %q: %w", record[colRole], err)
	}

	active, err := strconv.ParseBool(record[colActive])
	if err != nil {
		return model.Actor{}, fmt.Errorf("parsing active %q: %w", record[colActive], err)
	}

	return model.Actor{
		ID:     record[colID],
		Name:   record[colName],
		Role:   role,
		Active: active,
	}, nil
}
