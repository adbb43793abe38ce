// Package credit defines the append-only ledger transaction model and the
// balance-level policy constants.
package credit

import (
	"github.com/talentbase/credits/id"
	"github.com/talentbase/credits/types"
)

// Type is one of the independently metered credit currencies.
type Type string

const (
	TypeCVProcessing Type = "cv_processing"
	TypeInterview    Type = "interview"
)

// Valid reports whether t names a known credit type.
func (t Type) Valid() bool {
	return t == TypeCVProcessing || t == TypeInterview
}

// TransactionType is the business reason for a ledger entry.
type TransactionType string

const (
	TxPurchase         TransactionType = "purchase"
	TxSubscription     TransactionType = "subscription"
	TxCVProcessing     TransactionType = "cv_processing"
	TxInterview        TransactionType = "interview"
	TxManualAdjustment TransactionType = "manual_adjustment"
	TxRefund           TransactionType = "refund"
)

// Transaction is a single immutable row in the credit ledger. The current
// balance for an (organization, credit type) pair is always the sum of the
// Amount column for that pair — corrections are made by appending a
// compensating entry, never by mutating history.
type Transaction struct {
	types.Entity
	ID             id.TransactionID  `json:"id"`
	OrganizationID id.OrganizationID `json:"organization_id"`
	CreditType     Type              `json:"credit_type"`
	Amount         int64             `json:"amount"` // positive = credit, negative = debit
	Type           TransactionType   `json:"type"`
	RelatedID      id.AnyID          `json:"related_id,omitempty"` // payment or consumption event
	Description    string            `json:"description,omitempty"`
}

// Balances holds the current projected balance per credit type for one
// organization.
type Balances struct {
	CVProcessing int64 `json:"cv_processing_credits"`
	Interview    int64 `json:"interview_credits"`
}

// Get returns the balance for the given credit type.
func (b Balances) Get(t Type) int64 {
	if t == TypeInterview {
		return b.Interview
	}
	return b.CVProcessing
}

// ListOpts filters ledger transaction listings.
type ListOpts struct {
	CreditType Type // zero value = all types
	TxType     TransactionType
	Limit      int
	Offset     int
}
