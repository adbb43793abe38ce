package credits_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	credits "github.com/talentbase/credits"
	"github.com/talentbase/credits/catalog"
	"github.com/talentbase/credits/credit"
	"github.com/talentbase/credits/id"
	"github.com/talentbase/credits/org"
	"github.com/talentbase/credits/payment"
	"github.com/talentbase/credits/store"
	"github.com/talentbase/credits/store/memory"
	"github.com/talentbase/credits/types"
)

func newTestEngine(t *testing.T, opts ...credits.Option) *credits.Engine {
	t.Helper()

	e := credits.New(memory.New(), opts...)
	if err := e.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = e.Stop() })
	return e
}

func createOrg(t *testing.T, e *credits.Engine) *org.Organization {
	t.Helper()

	o := &org.Organization{Name: "Acme Recruiting"}
	if err := e.CreateOrganization(context.Background(), o); err != nil {
		t.Fatal(err)
	}
	return o
}

func createPackage(t *testing.T, e *credits.Engine, creditType credit.Type, creditsGranted int64, price types.Money) *catalog.CreditPackage {
	t.Helper()

	p := &catalog.CreditPackage{
		Name:           "Starter",
		Slug:           "starter",
		CreditType:     creditType,
		CreditsGranted: creditsGranted,
		Price:          price,
	}
	if err := e.CreateCreditPackage(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	return p
}

// purchase opens a checkout and settles it through the webhook path.
func purchase(t *testing.T, e *credits.Engine, orgID id.OrganizationID, pkgID id.PackageID, eventID string) id.PaymentID {
	t.Helper()
	ctx := context.Background()

	checkout, err := e.ApplyPurchase(ctx, orgID, pkgID)
	if err != nil {
		t.Fatal(err)
	}

	err = e.HandleWebhook(ctx, &payment.WebhookEvent{
		EventID:   eventID,
		PaymentID: checkout.PaymentID,
		Status:    payment.StatusSucceeded,
	})
	if err != nil {
		t.Fatal(err)
	}
	return checkout.PaymentID
}

func TestBalanceIsSumOfLedger(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	o := createOrg(t, e)
	p := createPackage(t, e, credit.TypeCVProcessing, 500, types.USD(4900))

	purchase(t, e, o.ID, p.ID, "evt_1")

	if _, err := e.Debit(ctx, o.ID, credit.TypeCVProcessing, 50, credit.TxCVProcessing, id.AnyID{}, "cv batch"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Adjust(ctx, o.ID, credit.TypeCVProcessing, 25, "goodwill"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Adjust(ctx, o.ID, credit.TypeCVProcessing, -10, "correction"); err != nil {
		t.Fatal(err)
	}

	txs, err := e.ListTransactions(ctx, o.ID, credit.ListOpts{CreditType: credit.TypeCVProcessing})
	if err != nil {
		t.Fatal(err)
	}
	var sum int64
	for _, tx := range txs {
		sum += tx.Amount
	}

	balance, err := e.Balance(ctx, o.ID, credit.TypeCVProcessing)
	if err != nil {
		t.Fatal(err)
	}
	if balance != sum {
		t.Errorf("balance %d != ledger sum %d", balance, sum)
	}
	if balance != 465 {
		t.Errorf("balance = %d, want 465", balance)
	}
}

func TestDebitInsufficientLeavesBalanceUnchanged(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	o := createOrg(t, e)

	if _, err := e.Adjust(ctx, o.ID, credit.TypeInterview, 10, "seed"); err != nil {
		t.Fatal(err)
	}

	_, err := e.Debit(ctx, o.ID, credit.TypeInterview, 11, credit.TxInterview, id.AnyID{}, "")
	if !errors.Is(err, credits.ErrInsufficientCredits) {
		t.Fatalf("err = %v, want ErrInsufficientCredits", err)
	}

	balance, err := e.Balance(ctx, o.ID, credit.TypeInterview)
	if err != nil {
		t.Fatal(err)
	}
	if balance != 10 {
		t.Errorf("balance = %d, want 10", balance)
	}
}

func TestDebitValidation(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	o := createOrg(t, e)

	if _, err := e.Debit(ctx, o.ID, "tokens", 1, credit.TxCVProcessing, id.AnyID{}, ""); !errors.Is(err, credits.ErrInvalidCreditType) {
		t.Errorf("unknown credit type err = %v, want ErrInvalidCreditType", err)
	}
	if _, err := e.Debit(ctx, o.ID, credit.TypeInterview, 0, credit.TxInterview, id.AnyID{}, ""); !errors.Is(err, credits.ErrInvalidAmount) {
		t.Errorf("zero amount err = %v, want ErrInvalidAmount", err)
	}
	if _, err := e.Debit(ctx, o.ID, credit.TypeInterview, -5, credit.TxInterview, id.AnyID{}, ""); !errors.Is(err, credits.ErrInvalidAmount) {
		t.Errorf("negative amount err = %v, want ErrInvalidAmount", err)
	}

	if err := e.ArchiveOrganization(ctx, o.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Debit(ctx, o.ID, credit.TypeInterview, 1, credit.TxInterview, id.AnyID{}, ""); !errors.Is(err, credits.ErrOrganizationArchived) {
		t.Errorf("archived org err = %v, want ErrOrganizationArchived", err)
	}
}

func TestConcurrentDebitsSingleWinner(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	o := createOrg(t, e)

	if _, err := e.Adjust(ctx, o.ID, credit.TypeCVProcessing, 10, "seed"); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = e.Debit(ctx, o.ID, credit.TypeCVProcessing, 6, credit.TxCVProcessing, id.AnyID{}, "")
		}(i)
	}
	wg.Wait()

	var ok, rejected int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, credits.ErrInsufficientCredits):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || rejected != 1 {
		t.Errorf("got %d successes and %d rejections, want exactly one of each", ok, rejected)
	}

	balance, err := e.Balance(ctx, o.ID, credit.TypeCVProcessing)
	if err != nil {
		t.Fatal(err)
	}
	if balance != 4 {
		t.Errorf("balance = %d, want 4", balance)
	}
}

func TestWebhookSettlementAndDuplicates(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	o := createOrg(t, e)
	p := createPackage(t, e, credit.TypeCVProcessing, 500, types.USD(4900))

	checkout, err := e.ApplyPurchase(ctx, o.ID, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if checkout.Reference == "" {
		t.Error("checkout has no provider reference")
	}

	evt := &payment.WebhookEvent{
		EventID:   "evt_settle",
		PaymentID: checkout.PaymentID,
		Status:    payment.StatusSucceeded,
	}
	if err := e.HandleWebhook(ctx, evt); err != nil {
		t.Fatal(err)
	}

	// Replayed delivery: same event id, silently acknowledged.
	if err := e.HandleWebhook(ctx, evt); err != nil {
		t.Fatalf("duplicate delivery err = %v, want nil", err)
	}

	// A distinct event that retries the same transition is a real conflict.
	err = e.HandleWebhook(ctx, &payment.WebhookEvent{
		EventID:   "evt_settle_again",
		PaymentID: checkout.PaymentID,
		Status:    payment.StatusSucceeded,
	})
	if !errors.Is(err, credits.ErrInvalidTransition) {
		t.Fatalf("re-settle err = %v, want ErrInvalidTransition", err)
	}

	// Exactly one grant hit the ledger.
	txs, err := e.ListTransactions(ctx, o.ID, credit.ListOpts{TxType: credit.TxPurchase})
	if err != nil {
		t.Fatal(err)
	}
	if len(txs) != 1 {
		t.Fatalf("ledger has %d purchase entries, want 1", len(txs))
	}
	if txs[0].Amount != 500 || txs[0].RelatedID != checkout.PaymentID {
		t.Errorf("grant = %+v, want amount 500 linked to payment", txs[0])
	}

	got, err := e.GetPayment(ctx, checkout.PaymentID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != payment.StatusSucceeded || got.CreditsAdded != 500 || got.CompletedAt == nil {
		t.Errorf("settled payment = %+v", got)
	}
}

func TestWebhookValidation(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	cases := []*payment.WebhookEvent{
		nil,
		{PaymentID: id.NewPaymentID(), Status: payment.StatusSucceeded},            // no event id
		{EventID: "evt_x", Status: payment.StatusSucceeded},                        // no payment id
		{EventID: "evt_y", PaymentID: id.NewPaymentID(), Status: "exploded"},       // unknown status
		{EventID: "evt_z", PaymentID: id.NewPaymentID(), Status: payment.StatusPending}, // pending is not a notification
	}
	for _, evt := range cases {
		if err := e.HandleWebhook(ctx, evt); !errors.Is(err, credits.ErrWebhookEventInvalid) {
			t.Errorf("HandleWebhook(%+v) err = %v, want ErrWebhookEventInvalid", evt, err)
		}
	}

	// Unknown payment: the event fails reconciliation.
	err := e.HandleWebhook(ctx, &payment.WebhookEvent{
		EventID:   "evt_orphan",
		PaymentID: id.NewPaymentID(),
		Status:    payment.StatusSucceeded,
	})
	if !errors.Is(err, credits.ErrPaymentNotFound) {
		t.Errorf("orphan webhook err = %v, want ErrPaymentNotFound", err)
	}
}

func TestWebhookFailure(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	o := createOrg(t, e)
	p := createPackage(t, e, credit.TypeInterview, 100, types.USD(9900))

	checkout, err := e.ApplyPurchase(ctx, o.ID, p.ID)
	if err != nil {
		t.Fatal(err)
	}

	err = e.HandleWebhook(ctx, &payment.WebhookEvent{
		EventID:       "evt_fail",
		PaymentID:     checkout.PaymentID,
		Status:        payment.StatusFailed,
		FailureReason: "card_declined",
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := e.GetPayment(ctx, checkout.PaymentID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != payment.StatusFailed || got.FailureReason != "card_declined" {
		t.Errorf("failed payment = %+v", got)
	}

	// No credits were granted.
	balance, err := e.Balance(ctx, o.ID, credit.TypeInterview)
	if err != nil {
		t.Fatal(err)
	}
	if balance != 0 {
		t.Errorf("balance = %d, want 0", balance)
	}

	// A terminal payment cannot be settled afterwards.
	err = e.HandleWebhook(ctx, &payment.WebhookEvent{
		EventID:   "evt_fail_then_settle",
		PaymentID: checkout.PaymentID,
		Status:    payment.StatusSucceeded,
	})
	if !errors.Is(err, credits.ErrInvalidTransition) {
		t.Errorf("settle after fail err = %v, want ErrInvalidTransition", err)
	}
}

func TestCancelPayment(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	o := createOrg(t, e)
	p := createPackage(t, e, credit.TypeInterview, 100, types.USD(9900))

	checkout, err := e.ApplyPurchase(ctx, o.ID, p.ID)
	if err != nil {
		t.Fatal(err)
	}

	if err := e.CancelPayment(ctx, checkout.PaymentID, "user abandoned checkout"); err != nil {
		t.Fatal(err)
	}

	got, err := e.GetPayment(ctx, checkout.PaymentID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != payment.StatusCanceled {
		t.Errorf("status = %s, want canceled", got.Status)
	}
}

func TestFullRefund(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	o := createOrg(t, e)
	p := createPackage(t, e, credit.TypeCVProcessing, 500, types.USD(4900))
	payID := purchase(t, e, o.ID, p.ID, "evt_refund_base")

	refunded, err := e.RefundPayment(ctx, payID, types.Money{})
	if err != nil {
		t.Fatal(err)
	}
	if refunded.Status != payment.StatusRefunded {
		t.Errorf("status = %s, want refunded", refunded.Status)
	}
	if !refunded.RefundedAmount.Equal(types.USD(4900)) || refunded.RefundedCredits != 500 {
		t.Errorf("refunded = %s / %d credits, want $49.00 / 500", refunded.RefundedAmount, refunded.RefundedCredits)
	}

	// Exactly one compensating debit equal to the grant.
	txs, err := e.ListTransactions(ctx, o.ID, credit.ListOpts{TxType: credit.TxRefund})
	if err != nil {
		t.Fatal(err)
	}
	if len(txs) != 1 || txs[0].Amount != -500 {
		t.Fatalf("refund entries = %+v, want one entry of -500", txs)
	}

	balance, err := e.Balance(ctx, o.ID, credit.TypeCVProcessing)
	if err != nil {
		t.Fatal(err)
	}
	if balance != 0 {
		t.Errorf("balance = %d, want 0", balance)
	}

	// Fully refunded payments are excluded from spend totals but counted as
	// refunded.
	stats, err := e.GetPaymentStats(ctx, o.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !stats.TotalSpent.IsZero() || stats.TotalCredits != 0 {
		t.Errorf("stats spend = %s / %d credits, want zero", stats.TotalSpent, stats.TotalCredits)
	}
	if stats.RefundedTransactions != 1 {
		t.Errorf("RefundedTransactions = %d, want 1", stats.RefundedTransactions)
	}

	// The refunded state is terminal.
	if _, err := e.RefundPayment(ctx, payID, types.Money{}); !errors.Is(err, credits.ErrInvalidTransition) {
		t.Errorf("double refund err = %v, want ErrInvalidTransition", err)
	}
}

func TestPartialRefund(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	o := createOrg(t, e)
	p := createPackage(t, e, credit.TypeCVProcessing, 500, types.USD(4900))
	payID := purchase(t, e, o.ID, p.ID, "evt_partial_base")

	half, err := e.RefundPayment(ctx, payID, types.USD(2450))
	if err != nil {
		t.Fatal(err)
	}
	if half.Status != payment.StatusSucceeded {
		t.Errorf("status after partial refund = %s, want succeeded", half.Status)
	}
	if half.RefundedCredits != 250 {
		t.Errorf("RefundedCredits = %d, want proportional 250", half.RefundedCredits)
	}

	// Cumulative refunds may not exceed the payment amount.
	if _, err := e.RefundPayment(ctx, payID, types.USD(2451)); !errors.Is(err, credits.ErrRefundExceedsPayment) {
		t.Errorf("excess refund err = %v, want ErrRefundExceedsPayment", err)
	}

	// Refunding the remainder completes the refund and claws back the rest.
	full, err := e.RefundPayment(ctx, payID, types.USD(2450))
	if err != nil {
		t.Fatal(err)
	}
	if full.Status != payment.StatusRefunded || full.RefundedCredits != 500 {
		t.Errorf("final = %s / %d credits, want refunded / 500", full.Status, full.RefundedCredits)
	}

	balance, err := e.Balance(ctx, o.ID, credit.TypeCVProcessing)
	if err != nil {
		t.Fatal(err)
	}
	if balance != 0 {
		t.Errorf("balance = %d, want 0", balance)
	}
}

func TestPartialRefundRoundingDust(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	o := createOrg(t, e)
	// 3 credits for $10.00: a $3.00 refund is worth 0.9 credits.
	p := createPackage(t, e, credit.TypeInterview, 3, types.USD(1000))
	payID := purchase(t, e, o.ID, p.ID, "evt_dust_base")

	first, err := e.RefundPayment(ctx, payID, types.USD(300))
	if err != nil {
		t.Fatal(err)
	}
	// Proportional share truncates to zero credits; only money moves.
	if first.RefundedCredits != 0 {
		t.Errorf("RefundedCredits = %d, want 0", first.RefundedCredits)
	}

	// The closing refund sweeps up the dust so the grant nets to zero.
	final, err := e.RefundPayment(ctx, payID, types.USD(700))
	if err != nil {
		t.Fatal(err)
	}
	if final.RefundedCredits != 3 {
		t.Errorf("final RefundedCredits = %d, want 3", final.RefundedCredits)
	}

	balance, err := e.Balance(ctx, o.ID, credit.TypeInterview)
	if err != nil {
		t.Fatal(err)
	}
	if balance != 0 {
		t.Errorf("balance = %d, want 0", balance)
	}
}

func TestRefundAfterPartialSpendRejected(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	o := createOrg(t, e)
	p := createPackage(t, e, credit.TypeCVProcessing, 500, types.USD(4900))
	payID := purchase(t, e, o.ID, p.ID, "evt_spend_base")

	if _, err := e.Debit(ctx, o.ID, credit.TypeCVProcessing, 450, credit.TxCVProcessing, id.AnyID{}, ""); err != nil {
		t.Fatal(err)
	}

	// Default policy: the clawback would underflow, so the refund is refused
	// and nothing changes.
	_, err := e.RefundPayment(ctx, payID, types.Money{})
	if !errors.Is(err, credits.ErrInsufficientCredits) {
		t.Fatalf("err = %v, want ErrInsufficientCredits", err)
	}

	got, err := e.GetPayment(ctx, payID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != payment.StatusSucceeded || !got.RefundedAmount.IsZero() {
		t.Errorf("payment mutated by rejected refund: %+v", got)
	}
	balance, err := e.Balance(ctx, o.ID, credit.TypeCVProcessing)
	if err != nil {
		t.Fatal(err)
	}
	if balance != 50 {
		t.Errorf("balance = %d, want 50", balance)
	}
}

func TestRefundAfterPartialSpendAllowNegative(t *testing.T) {
	e := newTestEngine(t, credits.WithRefundPolicy(credits.RefundPolicyAllowNegative))
	ctx := context.Background()
	o := createOrg(t, e)
	p := createPackage(t, e, credit.TypeCVProcessing, 500, types.USD(4900))
	payID := purchase(t, e, o.ID, p.ID, "evt_negative_base")

	if _, err := e.Debit(ctx, o.ID, credit.TypeCVProcessing, 450, credit.TxCVProcessing, id.AnyID{}, ""); err != nil {
		t.Fatal(err)
	}

	refunded, err := e.RefundPayment(ctx, payID, types.Money{})
	if err != nil {
		t.Fatal(err)
	}
	if refunded.Status != payment.StatusRefunded {
		t.Errorf("status = %s, want refunded", refunded.Status)
	}

	balance, err := e.Balance(ctx, o.ID, credit.TypeCVProcessing)
	if err != nil {
		t.Fatal(err)
	}
	if balance != -450 {
		t.Errorf("balance = %d, want -450", balance)
	}
}

func TestConcurrentPartialRefundsSingleWinner(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	o := createOrg(t, e)
	p := createPackage(t, e, credit.TypeCVProcessing, 500, types.USD(5000))
	payID := purchase(t, e, o.ID, p.ID, "evt_refund_race")

	// Two $30 refunds against a $50 payment: together they would exceed it,
	// so at most one may apply however the race resolves.
	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = e.RefundPayment(ctx, payID, types.USD(3000))
		}(i)
	}
	wg.Wait()

	var ok, rejected int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, credits.ErrRefundConflict), errors.Is(err, credits.ErrRefundExceedsPayment):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || rejected != 1 {
		t.Errorf("got %d successes and %d rejections, want exactly one of each", ok, rejected)
	}

	got, err := e.GetPayment(ctx, payID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != payment.StatusSucceeded {
		t.Errorf("status = %s, want succeeded after a partial refund", got.Status)
	}
	if got.RefundedAmount.Amount != 3000 || got.RefundedCredits != 300 {
		t.Errorf("refunded totals = %d/%d, want 3000/300", got.RefundedAmount.Amount, got.RefundedCredits)
	}

	txs, err := e.ListTransactions(ctx, o.ID, credit.ListOpts{TxType: credit.TxRefund})
	if err != nil {
		t.Fatal(err)
	}
	if len(txs) != 1 {
		t.Fatalf("refund ledger entries = %d, want exactly 1", len(txs))
	}
	balance, err := e.Balance(ctx, o.ID, credit.TypeCVProcessing)
	if err != nil {
		t.Fatal(err)
	}
	if balance != 200 {
		t.Errorf("balance = %d, want 200 after a single clawback", balance)
	}
}

// flakyStore fails the first settlement to simulate a storage blip during
// webhook dispatch.
type flakyStore struct {
	store.Store
	mu       sync.Mutex
	failures int
}

func (s *flakyStore) SettlePayment(ctx context.Context, t *payment.Transaction, grant *credit.Transaction) error {
	s.mu.Lock()
	failing := s.failures > 0
	if failing {
		s.failures--
	}
	s.mu.Unlock()
	if failing {
		return errors.New("storage temporarily unavailable")
	}
	return s.Store.SettlePayment(ctx, t, grant)
}

func TestWebhookRedeliveryAfterStoreFailure(t *testing.T) {
	fs := &flakyStore{Store: memory.New(), failures: 1}
	e := credits.New(fs)
	ctx := context.Background()
	if err := e.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = e.Stop() })

	o := createOrg(t, e)
	p := createPackage(t, e, credit.TypeCVProcessing, 490, types.USD(4900))
	checkout, err := e.ApplyPurchase(ctx, o.ID, p.ID)
	if err != nil {
		t.Fatal(err)
	}

	evt := &payment.WebhookEvent{
		EventID:   "evt_blip",
		PaymentID: checkout.PaymentID,
		Status:    payment.StatusSucceeded,
	}

	// The first delivery hits the storage blip and must not burn the event
	// id: the provider's redelivery has to be applied, not absorbed as a
	// duplicate.
	if err := e.HandleWebhook(ctx, evt); err == nil {
		t.Fatal("first delivery succeeded, want dispatch failure")
	}
	if err := e.HandleWebhook(ctx, evt); err != nil {
		t.Fatalf("redelivery err = %v, want nil", err)
	}

	got, err := e.GetPayment(ctx, checkout.PaymentID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != payment.StatusSucceeded {
		t.Errorf("status = %s, want succeeded after redelivery", got.Status)
	}
	balance, err := e.Balance(ctx, o.ID, credit.TypeCVProcessing)
	if err != nil {
		t.Fatal(err)
	}
	if balance != 490 {
		t.Errorf("balance = %d, want 490", balance)
	}

	// A replay after successful application is still a silent duplicate.
	if err := e.HandleWebhook(ctx, evt); err != nil {
		t.Fatalf("replay err = %v, want nil", err)
	}
}

func TestBalanceLevels(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	o := createOrg(t, e)
	p := createPackage(t, e, credit.TypeCVProcessing, 500, types.USD(4900))
	purchase(t, e, o.ID, p.ID, "evt_levels_base")

	if _, err := e.Debit(ctx, o.ID, credit.TypeCVProcessing, 50, credit.TxCVProcessing, id.AnyID{}, ""); err != nil {
		t.Fatal(err)
	}

	levels, err := e.BalanceLevels(ctx, o.ID)
	if err != nil {
		t.Fatal(err)
	}
	// 450 cv credits is well above the low threshold; interview was never
	// funded so it sits at very low.
	if levels[credit.TypeCVProcessing] != credit.LevelNormal {
		t.Errorf("cv level = %s, want normal", levels[credit.TypeCVProcessing])
	}
	if levels[credit.TypeInterview] != credit.LevelVeryLow {
		t.Errorf("interview level = %s, want very_low", levels[credit.TypeInterview])
	}
}

func TestApplyPurchaseValidation(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	o := createOrg(t, e)
	p := createPackage(t, e, credit.TypeCVProcessing, 500, types.USD(4900))

	if _, err := e.ApplyPurchase(ctx, o.ID, id.NewPackageID()); !errors.Is(err, credits.ErrPackageNotFound) {
		t.Errorf("unknown package err = %v, want ErrPackageNotFound", err)
	}

	if err := e.ArchiveCreditPackage(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.ApplyPurchase(ctx, o.ID, p.ID); !errors.Is(err, credits.ErrPackageArchived) {
		t.Errorf("archived package err = %v, want ErrPackageArchived", err)
	}

	if err := e.ArchiveOrganization(ctx, o.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.ApplyPurchase(ctx, o.ID, p.ID); !errors.Is(err, credits.ErrOrganizationArchived) {
		t.Errorf("archived org err = %v, want ErrOrganizationArchived", err)
	}
}

func TestCreateValidation(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	if err := e.CreateOrganization(ctx, &org.Organization{}); err == nil {
		t.Error("empty organization name accepted")
	}

	bad := []*catalog.CreditPackage{
		{Name: "", CreditType: credit.TypeInterview, CreditsGranted: 10, Price: types.USD(100)},
		{Name: "x", CreditType: "tokens", CreditsGranted: 10, Price: types.USD(100)},
		{Name: "x", CreditType: credit.TypeInterview, CreditsGranted: 0, Price: types.USD(100)},
		{Name: "x", CreditType: credit.TypeInterview, CreditsGranted: 10, Price: types.USD(0)},
	}
	for i, p := range bad {
		if err := e.CreateCreditPackage(ctx, p); err == nil {
			t.Errorf("case %d: invalid package accepted", i)
		}
	}
}

func TestGetPaymentStats(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	o := createOrg(t, e)
	p := createPackage(t, e, credit.TypeCVProcessing, 500, types.USD(4900))

	purchase(t, e, o.ID, p.ID, "evt_stats_1")
	purchase(t, e, o.ID, p.ID, "evt_stats_2")

	// One failed attempt.
	checkout, err := e.ApplyPurchase(ctx, o.ID, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.FailPayment(ctx, checkout.PaymentID, payment.StatusFailed, "card_declined"); err != nil {
		t.Fatal(err)
	}

	stats, err := e.GetPaymentStats(ctx, o.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !stats.TotalSpent.Equal(types.USD(9800)) {
		t.Errorf("TotalSpent = %s, want $98.00", stats.TotalSpent)
	}
	if stats.TotalCredits != 1000 {
		t.Errorf("TotalCredits = %d, want 1000", stats.TotalCredits)
	}
	if stats.SuccessfulTransactions != 2 || stats.FailedTransactions != 1 {
		t.Errorf("counts = %d/%d, want 2 successful, 1 failed", stats.SuccessfulTransactions, stats.FailedTransactions)
	}
}
