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

// BankParser parses bank statement exports. Statement rows have no serial of
// their own; one is synthesized from the date and row position. The amount is
// signed: deposits positive, withdrawals negative.
//
//	date,description,amount,reference
//	2025-03-10,WIRE IN ACME,1250.00,W123981
type BankParser struct{}

const (
	bankDateFormat = "2006-01-02"
	bankNumFields  = 4
	bankColDate    = 0
	bankColDesc    = 1
	bankColAmount  = 2
	bankColRef     = 3
)

// Format returns the parser name.
func (p *BankParser) Format() string { return "bank" }

// Parse reads a bank statement CSV and returns external-side transactions.
func (p *BankParser) Parse(r io.Reader) ([]model.Transaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = bankNumFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading bank CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var txns []model.Transaction
	for i, rec := range records[1:] {
		txn, err := parseBankRow(rec, i+1)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

func parseBankRow(rec []string, position int) (model.Transaction, error) {
	date, err := time.Parse(bankDateFormat, rec[bankColDate])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing date %q: %w", rec[bankColDate], err)
	}

	amount, err := decimal.NewFromString(rec[bankColAmount])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing amount %q: %w", rec[bankColAmount], err)
	}

	// On the statement a deposit is money arriving at the bank (credit);
	// a negative amount is a withdrawal (debit).
	rt := model.ReconExternalCredit
	if amount.IsNegative() {
		rt = model.ReconExternalDebit
		amount = amount.Abs()
	}

	desc := rec[bankColDesc]
	return model.Transaction{
		Serial:      makeBankSerial(date, position),
		Date:        date,
		Description: desc,
		Amount:      amount,
		ReconType:   rt,
		Reference:   strings.TrimSpace(rec[bankColRef]),
		Status:      model.StatusUnmatched,
	}, nil
}

// makeBankSerial creates a serial like bank_20250310_003.
func makeBankSerial(date time.Time, position int) string {
	return fmt.Sprintf("bank_%s_%03d", date.Format("20060102"), position)
}
