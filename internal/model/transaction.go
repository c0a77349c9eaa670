package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReconType classifies a transaction's ledger side and debit/credit nature.
type ReconType string

const (
	ReconInternalCredit ReconType = "INT CR"
	ReconInternalDebit  ReconType = "INT DR"
	ReconExternalCredit ReconType = "EXT CR"
	ReconExternalDebit  ReconType = "EXT DR"
)

// IsDebit reports whether the recon type is debit-classified.
func (rt ReconType) IsDebit() bool {
	return rt == ReconInternalDebit || rt == ReconExternalDebit
}

// Valid reports whether rt is one of the four known recon types.
func (rt ReconType) Valid() bool {
	switch rt {
	case ReconInternalCredit, ReconInternalDebit, ReconExternalCredit, ReconExternalDebit:
		return true
	}
	return false
}

// TransactionStatus is the matching lifecycle state of a transaction.
type TransactionStatus string

const (
	StatusUnmatched TransactionStatus = "UNMATCHED"
	StatusMatched   TransactionStatus = "MATCHED"
)

// Transaction is one imported ledger or bank-statement row. The import
// identity fields never change after import; only Status and MatchID are
// mutated, and only by the reconciliation engine.
type Transaction struct {
	Serial      string
	Date        time.Time
	Description string
	Amount      decimal.Decimal // magnitude, always >= 0
	ReconType   ReconType
	Reference   string
	ImporterID  string

	Status  TransactionStatus
	MatchID string // empty when unmatched
}

// SignedAmount normalizes the magnitude so debits are negative and credits
// positive, enabling direct summation across ledger and statement sides.
func (t Transaction) SignedAmount() decimal.Decimal {
	if t.ReconType.IsDebit() {
		return t.Amount.Neg()
	}
	return t.Amount
}
