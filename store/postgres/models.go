package postgres

import (
	"time"

	"github.com/xraph/grove"

	"github.com/talentbase/credits/catalog"
	"github.com/talentbase/credits/credit"
	"github.com/talentbase/credits/id"
	"github.com/talentbase/credits/org"
	"github.com/talentbase/credits/payment"
	"github.com/talentbase/credits/types"
)

// ==================== Organization models ====================

type organizationModel struct {
	grove.BaseModel `grove:"table:credits_organizations"`

	ID         string            `grove:"id,pk"`
	Name       string            `grove:"name"`
	ArchivedAt *time.Time        `grove:"archived_at"`
	Metadata   map[string]string `grove:"metadata,type:jsonb"`
	CreatedAt  time.Time         `grove:"created_at"`
	UpdatedAt  time.Time         `grove:"updated_at"`
}

func toOrganizationModel(o *org.Organization) *organizationModel {
	return &organizationModel{
		ID:         o.ID.String(),
		Name:       o.Name,
		ArchivedAt: o.ArchivedAt,
		Metadata:   o.Metadata,
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
	}
}

func fromOrganizationModel(m *organizationModel) (*org.Organization, error) {
	orgID, err := id.ParseOrganizationID(m.ID)
	if err != nil {
		return nil, err
	}

	return &org.Organization{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:         orgID,
		Name:       m.Name,
		ArchivedAt: m.ArchivedAt,
		Metadata:   m.Metadata,
	}, nil
}

// ==================== Ledger models ====================

type ledgerEntryModel struct {
	grove.BaseModel `grove:"table:credits_ledger"`

	ID             string    `grove:"id,pk"`
	OrganizationID string    `grove:"organization_id"`
	CreditType     string    `grove:"credit_type"`
	Amount         int64     `grove:"amount"`
	Type           string    `grove:"type"`
	RelatedID      string    `grove:"related_id"`
	Description    string    `grove:"description"`
	CreatedAt      time.Time `grove:"created_at"`
	UpdatedAt      time.Time `grove:"updated_at"`
}

func fromLedgerEntryModel(m *ledgerEntryModel) (*credit.Transaction, error) {
	txID, err := id.ParseTransactionID(m.ID)
	if err != nil {
		return nil, err
	}
	orgID, err := id.ParseOrganizationID(m.OrganizationID)
	if err != nil {
		return nil, err
	}

	var related id.AnyID
	if m.RelatedID != "" {
		related, err = id.Parse(m.RelatedID)
		if err != nil {
			return nil, err
		}
	}

	return &credit.Transaction{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             txID,
		OrganizationID: orgID,
		CreditType:     credit.Type(m.CreditType),
		Amount:         m.Amount,
		Type:           credit.TransactionType(m.Type),
		RelatedID:      related,
		Description:    m.Description,
	}, nil
}

// balanceModel is the cached projection of the ledger, keyed by
// (organization, credit type). The ledger remains the source of truth.
type balanceModel struct {
	grove.BaseModel `grove:"table:credits_balances"`

	OrganizationID string    `grove:"organization_id,pk"`
	CreditType     string    `grove:"credit_type,pk"`
	Balance        int64     `grove:"balance"`
	UpdatedAt      time.Time `grove:"updated_at"`
}

// ==================== Payment models ====================

type paymentModel struct {
	grove.BaseModel `grove:"table:credits_payments"`

	ID                    string     `grove:"id,pk"`
	OrganizationID        string     `grove:"organization_id"`
	PackageID             string     `grove:"package_id"`
	Kind                  string     `grove:"kind"`
	Status                string     `grove:"status"`
	ProviderRef           string     `grove:"provider_ref"`
	InvoiceRef            string     `grove:"invoice_ref"`
	AmountCents           int64      `grove:"amount_cents"`
	AmountCurrency        string     `grove:"amount_currency"`
	CreditType            string     `grove:"credit_type"`
	CreditsPurchased      int64      `grove:"credits_purchased"`
	CreditsAdded          int64      `grove:"credits_added"`
	FailureReason         string     `grove:"failure_reason"`
	RefundedAmountCents   int64      `grove:"refunded_amount_cents"`
	RefundedAmountCurrency string    `grove:"refunded_amount_currency"`
	RefundedCredits       int64      `grove:"refunded_credits"`
	CompletedAt           *time.Time `grove:"completed_at"`
	CreatedAt             time.Time  `grove:"created_at"`
	UpdatedAt             time.Time  `grove:"updated_at"`
}

func toPaymentModel(t *payment.Transaction) *paymentModel {
	return &paymentModel{
		ID:                     t.ID.String(),
		OrganizationID:         t.OrganizationID.String(),
		PackageID:              t.PackageID.String(),
		Kind:                   string(t.Kind),
		Status:                 string(t.Status),
		ProviderRef:            t.ProviderRef,
		InvoiceRef:             t.InvoiceRef,
		AmountCents:            t.Amount.Amount,
		AmountCurrency:         t.Amount.Currency,
		CreditType:             t.CreditType,
		CreditsPurchased:       t.CreditsPurchased,
		CreditsAdded:           t.CreditsAdded,
		FailureReason:          t.FailureReason,
		RefundedAmountCents:    t.RefundedAmount.Amount,
		RefundedAmountCurrency: t.RefundedAmount.Currency,
		RefundedCredits:        t.RefundedCredits,
		CompletedAt:            t.CompletedAt,
		CreatedAt:              t.CreatedAt,
		UpdatedAt:              t.UpdatedAt,
	}
}

func fromPaymentModel(m *paymentModel) (*payment.Transaction, error) {
	payID, err := id.ParsePaymentID(m.ID)
	if err != nil {
		return nil, err
	}
	orgID, err := id.ParseOrganizationID(m.OrganizationID)
	if err != nil {
		return nil, err
	}

	var pkgID id.PackageID
	if m.PackageID != "" {
		pkgID, err = id.ParsePackageID(m.PackageID)
		if err != nil {
			return nil, err
		}
	}

	return &payment.Transaction{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:               payID,
		OrganizationID:   orgID,
		PackageID:        pkgID,
		Kind:             payment.Kind(m.Kind),
		Status:           payment.Status(m.Status),
		ProviderRef:      m.ProviderRef,
		InvoiceRef:       m.InvoiceRef,
		Amount:           types.Money{Amount: m.AmountCents, Currency: m.AmountCurrency},
		CreditType:       m.CreditType,
		CreditsPurchased: m.CreditsPurchased,
		CreditsAdded:     m.CreditsAdded,
		FailureReason:    m.FailureReason,
		RefundedAmount:   types.Money{Amount: m.RefundedAmountCents, Currency: m.RefundedAmountCurrency},
		RefundedCredits:  m.RefundedCredits,
		CompletedAt:      m.CompletedAt,
	}, nil
}

// ==================== Webhook event models ====================

type webhookEventModel struct {
	grove.BaseModel `grove:"table:credits_webhook_events"`

	EventID       string    `grove:"event_id,pk"`
	PaymentID     string    `grove:"payment_id"`
	Status        string    `grove:"status"`
	FailureReason string    `grove:"failure_reason"`
	ReceivedAt    time.Time `grove:"received_at"`
}

func toWebhookEventModel(evt *payment.WebhookEvent) *webhookEventModel {
	return &webhookEventModel{
		EventID:       evt.EventID,
		PaymentID:     evt.PaymentID.String(),
		Status:        string(evt.Status),
		FailureReason: evt.FailureReason,
		ReceivedAt:    evt.ReceivedAt,
	}
}

// ==================== Catalog models ====================

type packageModel struct {
	grove.BaseModel `grove:"table:credits_packages"`

	ID             string            `grove:"id,pk"`
	Name           string            `grove:"name"`
	Slug           string            `grove:"slug"`
	CreditType     string            `grove:"credit_type"`
	CreditsGranted int64             `grove:"credits_granted"`
	PriceCents     int64             `grove:"price_cents"`
	PriceCurrency  string            `grove:"price_currency"`
	Kind           string            `grove:"kind"`
	ArchivedAt     *time.Time        `grove:"archived_at"`
	Metadata       map[string]string `grove:"metadata,type:jsonb"`
	CreatedAt      time.Time         `grove:"created_at"`
	UpdatedAt      time.Time         `grove:"updated_at"`
}

func toPackageModel(p *catalog.CreditPackage) *packageModel {
	return &packageModel{
		ID:             p.ID.String(),
		Name:           p.Name,
		Slug:           p.Slug,
		CreditType:     string(p.CreditType),
		CreditsGranted: p.CreditsGranted,
		PriceCents:     p.Price.Amount,
		PriceCurrency:  p.Price.Currency,
		Kind:           string(p.Kind),
		ArchivedAt:     p.ArchivedAt,
		Metadata:       p.Metadata,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func fromPackageModel(m *packageModel) (*catalog.CreditPackage, error) {
	pkgID, err := id.ParsePackageID(m.ID)
	if err != nil {
		return nil, err
	}

	return &catalog.CreditPackage{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             pkgID,
		Name:           m.Name,
		Slug:           m.Slug,
		CreditType:     credit.Type(m.CreditType),
		CreditsGranted: m.CreditsGranted,
		Price:          types.Money{Amount: m.PriceCents, Currency: m.PriceCurrency},
		Kind:           catalog.Kind(m.Kind),
		ArchivedAt:     m.ArchivedAt,
		Metadata:       m.Metadata,
	}, nil
}
