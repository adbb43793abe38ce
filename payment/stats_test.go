package payment

import (
	"testing"

	"github.com/talentbase/credits/types"
)

func pay(status Status, cents, credits int64, refundedCents int64) *Transaction {
	return &Transaction{
		Status:         status,
		Amount:         types.USD(cents),
		CreditsAdded:   credits,
		RefundedAmount: types.Money{Amount: refundedCents, Currency: "usd"},
	}
}

func TestSummarize(t *testing.T) {
	txs := []*Transaction{
		pay(StatusSucceeded, 4900, 500, 0),
		pay(StatusSucceeded, 9900, 1200, 0),
		pay(StatusFailed, 4900, 0, 0),
		pay(StatusCanceled, 4900, 0, 0),
		pay(StatusRefunded, 4900, 500, 4900),      // full refund
		pay(StatusSucceeded, 9900, 1200, 2000),    // partial refund, still succeeded
		pay(StatusPending, 4900, 0, 0),            // ignored
	}

	stats := Summarize(txs, "usd")

	// Only the two unrefunded succeeded payments count toward spend.
	if want := types.USD(14800); !stats.TotalSpent.Equal(want) {
		t.Errorf("TotalSpent = %s, want %s", stats.TotalSpent, want)
	}
	if stats.TotalCredits != 1700 {
		t.Errorf("TotalCredits = %d, want 1700", stats.TotalCredits)
	}
	// Partially refunded payments keep status succeeded.
	if stats.SuccessfulTransactions != 3 {
		t.Errorf("SuccessfulTransactions = %d, want 3", stats.SuccessfulTransactions)
	}
	if stats.FailedTransactions != 2 {
		t.Errorf("FailedTransactions = %d, want 2", stats.FailedTransactions)
	}
	// Any payment with a non-zero refunded amount counts, partial included.
	if stats.RefundedTransactions != 2 {
		t.Errorf("RefundedTransactions = %d, want 2", stats.RefundedTransactions)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	stats := Summarize(nil, "eur")

	if !stats.TotalSpent.Equal(types.Zero("eur")) {
		t.Errorf("TotalSpent = %s, want zero eur", stats.TotalSpent)
	}
	if stats.TotalCredits != 0 || stats.SuccessfulTransactions != 0 ||
		stats.FailedTransactions != 0 || stats.RefundedTransactions != 0 {
		t.Errorf("empty input produced non-zero stats: %+v", stats)
	}
}

func TestSummarizeOrderIndependent(t *testing.T) {
	a := pay(StatusSucceeded, 4900, 500, 0)
	b := pay(StatusFailed, 9900, 0, 0)
	c := pay(StatusRefunded, 4900, 500, 4900)

	forward := Summarize([]*Transaction{a, b, c}, "usd")
	reverse := Summarize([]*Transaction{c, b, a}, "usd")

	if forward != reverse {
		t.Errorf("Summarize is order-dependent: %+v vs %+v", forward, reverse)
	}
}

func TestFullyRefunded(t *testing.T) {
	tests := []struct {
		name string
		tx   *Transaction
		want bool
	}{
		{"no refund", pay(StatusSucceeded, 4900, 500, 0), false},
		{"partial refund", pay(StatusSucceeded, 4900, 500, 2000), false},
		{"full refund", pay(StatusRefunded, 4900, 500, 4900), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tx.FullyRefunded(); got != tt.want {
				t.Errorf("FullyRefunded() = %v, want %v", got, tt.want)
			}
		})
	}
}
