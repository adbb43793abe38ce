// Package credits provides an embeddable credit ledger and payment
// reconciliation engine for multi-tenant Go applications.
//
// Credits is designed as a library, not a service. Import it directly into
// your Go application and put your own transport in front of it. It provides:
//
//   - An append-only credit ledger with two independent credit types
//   - Atomic balance-guarded debits that can never overdraw a balance
//   - A payment lifecycle state machine with frozen terminal states
//   - Idempotent webhook reconciliation keyed on provider event ids
//   - Full and partial refunds with proportional credit clawback
//   - Low-balance classification for purchase prompts
//   - A plugin hook surface for audit trails, metrics, and providers
//
// # Quick Start
//
// Create an engine instance with your preferred store:
//
//	import (
//	    "github.com/talentbase/credits"
//	    "github.com/talentbase/credits/store/postgres"
//	)
//
//	// Initialize store
//	store, err := postgres.New(databaseURL)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Create engine
//	engine := credits.New(store)
//
//	// Start the engine (migrates and rebuilds balance projections)
//	if err := engine.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Stop()
//
// # Core Concepts
//
// The ledger is the source of truth. Every grant, debit, adjustment, and
// refund is an immutable credit.Transaction row, and the balance for an
// (organization, credit type) pair is always the sum of its Amount column.
// Corrections append compensating entries; history is never rewritten.
//
// Consuming credits is a single guarded operation:
//
//	tx, err := engine.Debit(ctx, orgID, credit.TypeCVProcessing, 50,
//	    credit.TxCVProcessing, batchID, "cv batch")
//	if errors.Is(err, credits.ErrInsufficientCredits) {
//	    // Balance unchanged; prompt a purchase.
//	}
//
// Purchases flow through the payment provider: ApplyPurchase records a
// pending payment and opens a checkout, and the provider's webhook settles
// it. Webhook deliveries are idempotent on their event id — a replayed
// delivery is acknowledged and applied zero times:
//
//	err := engine.HandleWebhook(ctx, &payment.WebhookEvent{
//	    EventID:   "evt_123",
//	    PaymentID: payID,
//	    Status:    payment.StatusSucceeded,
//	})
//
// All monetary calculations use integer arithmetic to avoid floating-point
// precision issues. The Money type represents amounts in the smallest
// currency unit (cents for USD, pence for GBP, etc).
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	org_01h2xcejqtf2nbrexx3vqjhp41   // Organization ID
//	ctxn_01h2xcejqtf2nbrexx3vqjhp41  // Ledger transaction ID
//	pay_01h455vb4pex5vsknk084sn02q   // Payment ID
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of entities.
package credits
