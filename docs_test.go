package credits_test

import (
	"context"
	"log"
	"log/slog"
	"testing"

	credits "github.com/talentbase/credits"
	"github.com/talentbase/credits/catalog"
	"github.com/talentbase/credits/credit"
	"github.com/talentbase/credits/id"
	"github.com/talentbase/credits/org"
	"github.com/talentbase/credits/payment"
	"github.com/talentbase/credits/store/memory"
	"github.com/talentbase/credits/types"
)

// TestDocumentationExamples verifies that all examples in the documentation compile
func TestDocumentationExamples(t *testing.T) {
	// Test Quick Start example from README
	t.Run("QuickStartExample", func(t *testing.T) {
		// Create store (memory for demo, use PostgreSQL in production)
		store := memory.New()

		// Initialize the engine
		engine := credits.New(store,
			credits.WithLogger(slog.Default()),
			credits.WithRefundPolicy(credits.RefundPolicyReject),
		)

		// Start the engine (migrates and rebuilds balance projections)
		ctx := context.Background()
		if err := engine.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer engine.Stop()

		// Create a tenant organization
		o := &org.Organization{Name: "Acme Recruiting"}
		if err := engine.CreateOrganization(ctx, o); err != nil {
			t.Fatal(err)
		}

		// Publish a credit package
		pkg := &catalog.CreditPackage{
			Name:           "CV Starter",
			Slug:           "cv-starter",
			CreditType:     credit.TypeCVProcessing,
			CreditsGranted: 500,
			Price:          types.USD(4900), // $49.00
		}
		if err := engine.CreateCreditPackage(ctx, pkg); err != nil {
			t.Fatal(err)
		}

		// Open a checkout for the package
		checkout, err := engine.ApplyPurchase(ctx, o.ID, pkg.ID)
		if err != nil {
			t.Fatal(err)
		}

		// The payment provider confirms via webhook; credits land on success
		err = engine.HandleWebhook(ctx, &payment.WebhookEvent{
			EventID:   "evt_01",
			PaymentID: checkout.PaymentID,
			Status:    payment.StatusSucceeded,
		})
		if err != nil {
			t.Fatal(err)
		}

		// Consume credits for a billable action
		tx, err := engine.Debit(ctx, o.ID, credit.TypeCVProcessing, 50,
			credit.TxCVProcessing, id.AnyID{}, "cv batch")
		if err != nil {
			t.Fatal(err)
		}
		log.Printf("debited %d credits\n", -tx.Amount)

		// Check balances and warning levels
		balances, err := engine.GetBalances(ctx, o.ID)
		if err != nil {
			t.Fatal(err)
		}
		if balances.CVProcessing != 450 {
			t.Fatalf("balance = %d, want 450", balances.CVProcessing)
		}

		levels, err := engine.BalanceLevels(ctx, o.ID)
		if err != nil {
			t.Fatal(err)
		}
		if levels[credit.TypeCVProcessing] != credit.LevelNormal {
			t.Fatalf("level = %s, want normal", levels[credit.TypeCVProcessing])
		}

		// Summarize payment history
		stats, err := engine.GetPaymentStats(ctx, o.ID)
		if err != nil {
			t.Fatal(err)
		}
		log.Printf("total spent: %s\n", stats.TotalSpent.String())
	})

	// Test Money type examples
	t.Run("MoneyExamples", func(t *testing.T) {
		// Constructors
		_ = types.USD(4900)   // $49.00
		_ = types.EUR(9900)   // €99.00
		_ = types.Zero("usd") // $0.00

		// Arithmetic
		m1 := types.USD(100)
		m2 := types.USD(200)
		_ = m1.Add(m2)      // $3.00
		_ = m2.Subtract(m1) // $1.00

		// Comparison
		if m1.LessThan(m2) {
			// m1 is less than m2
		}

		// Formatting
		_ = m1.String()      // "$1.00"
		_ = m1.FormatMajor() // "1.00"
	})
}
