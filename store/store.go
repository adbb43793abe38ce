package store

import (
	"context"

	"github.com/talentbase/credits/catalog"
	"github.com/talentbase/credits/credit"
	"github.com/talentbase/credits/id"
	"github.com/talentbase/credits/org"
	"github.com/talentbase/credits/payment"
)

// Store is the unified storage interface for all Credits entities.
// Instead of embedding the sub-interfaces, we explicitly declare all methods
// to avoid naming conflicts.
type Store interface {
	// Organization methods
	CreateOrganization(ctx context.Context, o *org.Organization) error
	GetOrganization(ctx context.Context, orgID id.OrganizationID) (*org.Organization, error)
	ListOrganizations(ctx context.Context, opts org.ListOpts) ([]*org.Organization, error)
	ArchiveOrganization(ctx context.Context, orgID id.OrganizationID) error

	// Credit ledger methods. The ledger is append-only: there is no update
	// or delete, and AppendDebit is atomic with its balance guard.
	AppendCredit(ctx context.Context, tx *credit.Transaction) error
	AppendDebit(ctx context.Context, tx *credit.Transaction) error
	CreditBalance(ctx context.Context, orgID id.OrganizationID, creditType credit.Type) (int64, error)
	CreditBalances(ctx context.Context, orgID id.OrganizationID) (*credit.Balances, error)
	ListCreditTransactions(ctx context.Context, orgID id.OrganizationID, opts credit.ListOpts) ([]*credit.Transaction, error)
	RebuildBalances(ctx context.Context) error

	// Payment methods. Transition methods are status-guarded so replayed
	// webhook deliveries can never settle or refund a payment twice.
	// RefundPayment additionally compares the payment's persisted refunded
	// amount against prevRefunded (the amount the caller computed its new
	// cumulative totals from) and rejects a stale write with
	// ErrRefundConflict, so concurrent refunds built from the same snapshot
	// apply at most once.
	CreatePayment(ctx context.Context, t *payment.Transaction) error
	GetPayment(ctx context.Context, payID id.PaymentID) (*payment.Transaction, error)
	ListPayments(ctx context.Context, orgID id.OrganizationID, opts payment.ListOpts) ([]*payment.Transaction, error)
	RecordWebhookEvent(ctx context.Context, evt *payment.WebhookEvent) error
	DeleteWebhookEvent(ctx context.Context, eventID string) error
	SettlePayment(ctx context.Context, t *payment.Transaction, grant *credit.Transaction) error
	FailPayment(ctx context.Context, payID id.PaymentID, target payment.Status, failureReason string) error
	RefundPayment(ctx context.Context, t *payment.Transaction, prevRefunded int64, debit *credit.Transaction, allowNegative bool) error

	// Catalog methods
	CreatePackage(ctx context.Context, p *catalog.CreditPackage) error
	GetPackage(ctx context.Context, pkgID id.PackageID) (*catalog.CreditPackage, error)
	GetPackageBySlug(ctx context.Context, slug string) (*catalog.CreditPackage, error)
	ListPackages(ctx context.Context, opts catalog.ListOpts) ([]*catalog.CreditPackage, error)
	ArchivePackage(ctx context.Context, pkgID id.PackageID) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
