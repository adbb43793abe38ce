package payment

import "github.com/talentbase/credits/types"

// Stats is a summary view over payment history used for reporting.
type Stats struct {
	TotalSpent             types.Money `json:"total_spent"`
	TotalCredits           int64       `json:"total_credits"`
	SuccessfulTransactions int         `json:"successful_transactions"`
	FailedTransactions     int         `json:"failed_transactions"`
	RefundedTransactions   int         `json:"refunded_transactions"`
}

// Summarize computes Stats over a payment transaction list. Pure and
// order-independent: the same input list always yields the same Stats.
//
// TotalSpent and TotalCredits only count succeeded payments with no refund
// recorded against them. FailedTransactions counts both failed and canceled.
// RefundedTransactions counts any payment with a non-zero refunded amount,
// including partial refunds that left the status succeeded.
func Summarize(txs []*Transaction, currency string) Stats {
	stats := Stats{TotalSpent: types.Zero(currency)}

	for _, t := range txs {
		switch t.Status {
		case StatusSucceeded:
			if t.RefundedAmount.IsZero() {
				stats.TotalSpent = stats.TotalSpent.Add(t.Amount)
				stats.TotalCredits += t.CreditsAdded
			}
			stats.SuccessfulTransactions++
		case StatusFailed, StatusCanceled:
			stats.FailedTransactions++
		}

		if !t.RefundedAmount.IsZero() {
			stats.RefundedTransactions++
		}
	}

	return stats
}
