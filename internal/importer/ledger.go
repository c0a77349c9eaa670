package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/recondesk-dev/recondesk/internal/model"
)

// LedgerParser parses internal ledger exports. Rows carry their own serial
// and an explicit DR/CR marker:
//
//	serial,date,description,amount,drcr,reference
//	GL-0001,2025-03-10,Invoice 1042,1250.00,CR,INV-1042
type LedgerParser struct{}

const (
	ledgerDateFormat = "2006-01-02"
	ledgerNumFields  = 6
	ledgerColSerial  = 0
	ledgerColDate    = 1
	ledgerColDesc    = 2
	ledgerColAmount  = 3
	ledgerColDRCR    = 4
	ledgerColRef     = 5
)

// Format returns the parser name.
func (p *LedgerParser) Format() string { return "ledger" }

// Parse reads a ledger CSV and returns internal-side transactions.
func (p *LedgerParser) Parse(r io.Reader) ([]model.Transaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = ledgerNumFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading ledger CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var txns []model.Transaction
	for i, rec := range records[1:] {
		txn, err := parseLedgerRow(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

func parseLedgerRow(rec []string) (model.Transaction, error) {
	serial := strings.TrimSpace(rec[ledgerColSerial])
	if serial == "" {
		return model.Transaction{}, fmt.Errorf("empty serial")
	}

	date, err := time.Parse(ledgerDateFormat, rec[ledgerColDate])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing date %q: %w", rec[ledgerColDate], err)
	}

	amount, err := decimal.NewFromString(rec[ledgerColAmount])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing amount %q: %w", rec[ledgerColAmount], err)
	}
	if amount.IsNegative() {
		return model.Transaction{}, fmt.Errorf("amount %s is negative; use the DR marker instead", amount)
	}

	var rt model.ReconType
	switch strings.ToUpper(strings.TrimSpace(rec[ledgerColDRCR])) {
	case "CR":
		rt = model.ReconInternalCredit
	case "DR":
		rt = model.ReconInternalDebit
	default:
		return model.Transaction{}, fmt.Errorf("unknown DR/CR marker %q", rec[ledgerColDRCR])
	}

	return model.Transaction{
		Serial:      serial,
		Date:        date,
		Description: rec[ledgerColDesc],
		Amount:      amount,
		ReconType:   rt,
		Reference:   rec[ledgerColRef],
		Status:      model.StatusUnmatched,
	}, nil
}
