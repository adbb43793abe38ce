package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	credits "github.com/talentbase/credits"
	"github.com/talentbase/credits/credit"
	"github.com/talentbase/credits/id"
	"github.com/talentbase/credits/org"
	"github.com/talentbase/credits/payment"
	"github.com/talentbase/credits/types"
)

func newLedgerEntry(orgID id.OrganizationID, creditType credit.Type, amount int64, txType credit.TransactionType) *credit.Transaction {
	return &credit.Transaction{
		Entity:         types.NewEntity(),
		ID:             id.NewTransactionID(),
		OrganizationID: orgID,
		CreditType:     creditType,
		Amount:         amount,
		Type:           txType,
	}
}

func TestAppendAndBalance(t *testing.T) {
	s := New()
	ctx := context.Background()
	orgID := id.NewOrganizationID()

	entries := []*credit.Transaction{
		newLedgerEntry(orgID, credit.TypeCVProcessing, 500, credit.TxPurchase),
		newLedgerEntry(orgID, credit.TypeCVProcessing, -50, credit.TxCVProcessing),
		newLedgerEntry(orgID, credit.TypeCVProcessing, 25, credit.TxManualAdjustment),
		newLedgerEntry(orgID, credit.TypeInterview, 100, credit.TxPurchase),
	}
	for _, e := range entries {
		var err error
		if e.Amount < 0 {
			err = s.AppendDebit(ctx, e)
		} else {
			err = s.AppendCredit(ctx, e)
		}
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	// Balance equals the sum of all entries for the pair.
	balance, err := s.CreditBalance(ctx, orgID, credit.TypeCVProcessing)
	if err != nil {
		t.Fatal(err)
	}
	if balance != 475 {
		t.Errorf("cv balance = %d, want 475", balance)
	}

	balances, err := s.CreditBalances(ctx, orgID)
	if err != nil {
		t.Fatal(err)
	}
	if balances.CVProcessing != 475 || balances.Interview != 100 {
		t.Errorf("balances = %+v, want {475 100}", balances)
	}
}

func TestAppendDebitGuard(t *testing.T) {
	s := New()
	ctx := context.Background()
	orgID := id.NewOrganizationID()

	if err := s.AppendCredit(ctx, newLedgerEntry(orgID, credit.TypeInterview, 10, credit.TxPurchase)); err != nil {
		t.Fatal(err)
	}

	err := s.AppendDebit(ctx, newLedgerEntry(orgID, credit.TypeInterview, -11, credit.TxInterview))
	if !errors.Is(err, credits.ErrInsufficientCredits) {
		t.Fatalf("over-debit err = %v, want ErrInsufficientCredits", err)
	}

	// A failed debit must leave the ledger untouched.
	balance, err := s.CreditBalance(ctx, orgID, credit.TypeInterview)
	if err != nil {
		t.Fatal(err)
	}
	if balance != 10 {
		t.Errorf("balance after failed debit = %d, want 10", balance)
	}
	txs, err := s.ListCreditTransactions(ctx, orgID, credit.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(txs) != 1 {
		t.Errorf("ledger has %d entries after failed debit, want 1", len(txs))
	}
}

func TestConcurrentDebits(t *testing.T) {
	s := New()
	ctx := context.Background()
	orgID := id.NewOrganizationID()

	if err := s.AppendCredit(ctx, newLedgerEntry(orgID, credit.TypeCVProcessing, 10, credit.TxPurchase)); err != nil {
		t.Fatal(err)
	}

	// Two concurrent debits of 6 against a balance of 10: exactly one wins.
	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.AppendDebit(ctx, newLedgerEntry(orgID, credit.TypeCVProcessing, -6, credit.TxCVProcessing))
		}(i)
	}
	wg.Wait()

	var ok, insufficient int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, credits.ErrInsufficientCredits):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || insufficient != 1 {
		t.Errorf("got %d successes and %d rejections, want 1 and 1", ok, insufficient)
	}

	balance, err := s.CreditBalance(ctx, orgID, credit.TypeCVProcessing)
	if err != nil {
		t.Fatal(err)
	}
	if balance != 4 {
		t.Errorf("balance = %d, want 4", balance)
	}
}

func TestRecordWebhookEventDedupe(t *testing.T) {
	s := New()
	ctx := context.Background()

	evt := &payment.WebhookEvent{
		EventID:   "evt_abc",
		PaymentID: id.NewPaymentID(),
		Status:    payment.StatusSucceeded,
	}

	if err := s.RecordWebhookEvent(ctx, evt); err != nil {
		t.Fatal(err)
	}
	err := s.RecordWebhookEvent(ctx, evt)
	if !errors.Is(err, credits.ErrDuplicateWebhookEvent) {
		t.Fatalf("second record err = %v, want ErrDuplicateWebhookEvent", err)
	}

	// Releasing the barrier lets the same event id record again.
	if err := s.DeleteWebhookEvent(ctx, evt.EventID); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordWebhookEvent(ctx, evt); err != nil {
		t.Fatalf("record after delete err = %v, want nil", err)
	}
}

func TestSettlePaymentGuard(t *testing.T) {
	s := New()
	ctx := context.Background()
	orgID := id.NewOrganizationID()

	t1 := &payment.Transaction{
		Entity:           types.NewEntity(),
		ID:               id.NewPaymentID(),
		OrganizationID:   orgID,
		Status:           payment.StatusPending,
		Amount:           types.USD(4900),
		CreditType:       string(credit.TypeCVProcessing),
		CreditsPurchased: 500,
		RefundedAmount:   types.Zero("usd"),
	}
	if err := s.CreatePayment(ctx, t1); err != nil {
		t.Fatal(err)
	}

	settled := *t1
	settled.Status = payment.StatusSucceeded
	settled.CreditsAdded = 500
	grant := newLedgerEntry(orgID, credit.TypeCVProcessing, 500, credit.TxPurchase)

	if err := s.SettlePayment(ctx, &settled, grant); err != nil {
		t.Fatal(err)
	}

	// Second settle against the now-succeeded row must be rejected and must
	// not grant again.
	err := s.SettlePayment(ctx, &settled, newLedgerEntry(orgID, credit.TypeCVProcessing, 500, credit.TxPurchase))
	if !errors.Is(err, credits.ErrInvalidTransition) {
		t.Fatalf("re-settle err = %v, want ErrInvalidTransition", err)
	}

	balance, err := s.CreditBalance(ctx, orgID, credit.TypeCVProcessing)
	if err != nil {
		t.Fatal(err)
	}
	if balance != 500 {
		t.Errorf("balance = %d, want 500", balance)
	}

	// Unknown payment surfaces not-found, not a transition error.
	missing := settled
	missing.ID = id.NewPaymentID()
	missing.Status = payment.StatusSucceeded
	err = s.SettlePayment(ctx, &missing, nil)
	if !errors.Is(err, credits.ErrPaymentNotFound) {
		t.Fatalf("settle of unknown payment err = %v, want ErrPaymentNotFound", err)
	}
}

func TestRefundPaymentGuards(t *testing.T) {
	s := New()
	ctx := context.Background()
	orgID := id.NewOrganizationID()

	t1 := &payment.Transaction{
		Entity:           types.NewEntity(),
		ID:               id.NewPaymentID(),
		OrganizationID:   orgID,
		Status:           payment.StatusSucceeded,
		Amount:           types.USD(4900),
		CreditType:       string(credit.TypeCVProcessing),
		CreditsPurchased: 500,
		CreditsAdded:     500,
		RefundedAmount:   types.Zero("usd"),
	}
	if err := s.CreatePayment(ctx, t1); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendCredit(ctx, newLedgerEntry(orgID, credit.TypeCVProcessing, 500, credit.TxPurchase)); err != nil {
		t.Fatal(err)
	}
	// Spend most of the grant so the refund debit would underflow.
	if err := s.AppendDebit(ctx, newLedgerEntry(orgID, credit.TypeCVProcessing, -450, credit.TxCVProcessing)); err != nil {
		t.Fatal(err)
	}

	refunded := *t1
	refunded.Status = payment.StatusRefunded
	refunded.RefundedAmount = t1.Amount
	refunded.RefundedCredits = 500
	debit := newLedgerEntry(orgID, credit.TypeCVProcessing, -500, credit.TxRefund)

	err := s.RefundPayment(ctx, &refunded, 0, debit, false)
	if !errors.Is(err, credits.ErrInsufficientCredits) {
		t.Fatalf("guarded refund err = %v, want ErrInsufficientCredits", err)
	}

	// Payment row must be unchanged after the rejected refund.
	got, err := s.GetPayment(ctx, t1.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != payment.StatusSucceeded || !got.RefundedAmount.IsZero() {
		t.Errorf("payment mutated by rejected refund: %+v", got)
	}

	// allowNegative applies the debit and drives the balance below zero.
	if err := s.RefundPayment(ctx, &refunded, 0, debit, true); err != nil {
		t.Fatal(err)
	}
	balance, err := s.CreditBalance(ctx, orgID, credit.TypeCVProcessing)
	if err != nil {
		t.Fatal(err)
	}
	if balance != -450 {
		t.Errorf("balance = %d, want -450", balance)
	}
}

func TestRefundPaymentStaleSnapshot(t *testing.T) {
	s := New()
	ctx := context.Background()
	orgID := id.NewOrganizationID()

	t1 := &payment.Transaction{
		Entity:           types.NewEntity(),
		ID:               id.NewPaymentID(),
		OrganizationID:   orgID,
		Status:           payment.StatusSucceeded,
		Amount:           types.USD(4900),
		CreditType:       string(credit.TypeCVProcessing),
		CreditsPurchased: 490,
		CreditsAdded:     490,
		RefundedAmount:   types.Zero("usd"),
	}
	if err := s.CreatePayment(ctx, t1); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendCredit(ctx, newLedgerEntry(orgID, credit.TypeCVProcessing, 490, credit.TxPurchase)); err != nil {
		t.Fatal(err)
	}

	// Two partial refunds computed from the same snapshot: both carry
	// prevRefunded 0, so only the first may land.
	first := *t1
	first.RefundedAmount = types.USD(3000)
	first.RefundedCredits = 300
	second := first

	if err := s.RefundPayment(ctx, &first, 0, newLedgerEntry(orgID, credit.TypeCVProcessing, -300, credit.TxRefund), false); err != nil {
		t.Fatal(err)
	}
	err := s.RefundPayment(ctx, &second, 0, newLedgerEntry(orgID, credit.TypeCVProcessing, -300, credit.TxRefund), false)
	if !errors.Is(err, credits.ErrRefundConflict) {
		t.Fatalf("stale refund err = %v, want ErrRefundConflict", err)
	}

	got, err := s.GetPayment(ctx, t1.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.RefundedAmount.Amount != 3000 || got.RefundedCredits != 300 {
		t.Errorf("payment totals = %d/%d, want 3000/300", got.RefundedAmount.Amount, got.RefundedCredits)
	}

	balance, err := s.CreditBalance(ctx, orgID, credit.TypeCVProcessing)
	if err != nil {
		t.Fatal(err)
	}
	if balance != 190 {
		t.Errorf("balance = %d, want 190 after a single clawback", balance)
	}
}

func TestRebuildBalances(t *testing.T) {
	s := New()
	ctx := context.Background()
	orgID := id.NewOrganizationID()

	if err := s.AppendCredit(ctx, newLedgerEntry(orgID, credit.TypeInterview, 100, credit.TxPurchase)); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendDebit(ctx, newLedgerEntry(orgID, credit.TypeInterview, -30, credit.TxInterview)); err != nil {
		t.Fatal(err)
	}

	if err := s.RebuildBalances(ctx); err != nil {
		t.Fatal(err)
	}

	balances, err := s.CreditBalances(ctx, orgID)
	if err != nil {
		t.Fatal(err)
	}
	if balances.Interview != 70 {
		t.Errorf("interview balance after rebuild = %d, want 70", balances.Interview)
	}
}

func TestArchiveOrganizationIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()

	o := &org.Organization{
		Entity: types.NewEntity(),
		ID:     id.NewOrganizationID(),
		Name:   "Acme Recruiting",
	}
	if err := s.CreateOrganization(ctx, o); err != nil {
		t.Fatal(err)
	}

	if err := s.ArchiveOrganization(ctx, o.ID); err != nil {
		t.Fatal(err)
	}
	// Archiving twice is a no-op, not an error.
	if err := s.ArchiveOrganization(ctx, o.ID); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetOrganization(ctx, o.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsArchived() {
		t.Error("organization not archived")
	}

	err = s.ArchiveOrganization(ctx, id.NewOrganizationID())
	if !errors.Is(err, credits.ErrOrganizationNotFound) {
		t.Fatalf("archive of unknown org err = %v, want ErrOrganizationNotFound", err)
	}
}

func TestListCreditTransactionsFilters(t *testing.T) {
	s := New()
	ctx := context.Background()
	orgID := id.NewOrganizationID()

	if err := s.AppendCredit(ctx, newLedgerEntry(orgID, credit.TypeCVProcessing, 500, credit.TxPurchase)); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendDebit(ctx, newLedgerEntry(orgID, credit.TypeCVProcessing, -50, credit.TxCVProcessing)); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendCredit(ctx, newLedgerEntry(orgID, credit.TypeInterview, 100, credit.TxPurchase)); err != nil {
		t.Fatal(err)
	}

	all, err := s.ListCreditTransactions(ctx, orgID, credit.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("all = %d entries, want 3", len(all))
	}

	cvOnly, err := s.ListCreditTransactions(ctx, orgID, credit.ListOpts{CreditType: credit.TypeCVProcessing})
	if err != nil {
		t.Fatal(err)
	}
	if len(cvOnly) != 2 {
		t.Errorf("cv filter = %d entries, want 2", len(cvOnly))
	}

	purchases, err := s.ListCreditTransactions(ctx, orgID, credit.ListOpts{TxType: credit.TxPurchase})
	if err != nil {
		t.Fatal(err)
	}
	if len(purchases) != 2 {
		t.Errorf("purchase filter = %d entries, want 2", len(purchases))
	}

	paged, err := s.ListCreditTransactions(ctx, orgID, credit.ListOpts{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(paged) != 1 {
		t.Errorf("paged = %d entries, want 1", len(paged))
	}
}
