package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	credits "github.com/talentbase/credits"
	"github.com/talentbase/credits/catalog"
	"github.com/talentbase/credits/credit"
	"github.com/talentbase/credits/id"
	"github.com/talentbase/credits/org"
	"github.com/talentbase/credits/payment"
	"github.com/talentbase/credits/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
//
// The ledger invariants are enforced in single SQL statements: the balance
// guard, the ledger append, and the payment status transition happen inside
// one data-modifying CTE, so a concurrent debit or a replayed webhook can
// never observe a half-applied write.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("credits/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("credits/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Organization Store ====================

func (s *Store) CreateOrganization(ctx context.Context, o *org.Organization) error {
	m := toOrganizationModel(o)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetOrganization(ctx context.Context, orgID id.OrganizationID) (*org.Organization, error) {
	m := new(organizationModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", orgID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, credits.ErrOrganizationNotFound
		}
		return nil, err
	}
	return fromOrganizationModel(m)
}

func (s *Store) ListOrganizations(ctx context.Context, opts org.ListOpts) ([]*org.Organization, error) {
	var models []organizationModel
	q := s.pg.NewSelect(&models)

	if !opts.IncludeArchived {
		q = q.Where("archived_at IS NULL")
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*org.Organization, len(models))
	for i := range models {
		o, err := fromOrganizationModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = o
	}
	return result, nil
}

func (s *Store) ArchiveOrganization(ctx context.Context, orgID id.OrganizationID) error {
	t := now()
	res, err := s.pg.NewUpdate((*organizationModel)(nil)).
		Set("archived_at = $1", t).
		Set("updated_at = $2", t).
		Where("id = $3", orgID.String()).
		Where("archived_at IS NULL").
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		// Archiving an already archived organization is a no-op.
		if _, err := s.GetOrganization(ctx, orgID); err != nil {
			return err
		}
	}
	return nil
}

// ==================== Credit Ledger Store ====================

func (s *Store) AppendCredit(ctx context.Context, tx *credit.Transaction) error {
	var inserted int64
	err := s.pg.NewRaw(`
WITH bal AS (
    INSERT INTO credits_balances (organization_id, credit_type, balance, updated_at)
    VALUES ($2, $3, $4, NOW())
    ON CONFLICT (organization_id, credit_type)
    DO UPDATE SET balance = credits_balances.balance + EXCLUDED.balance, updated_at = NOW()
)
INSERT INTO credits_ledger (id, organization_id, credit_type, amount, type, related_id, description, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING 1
`,
		tx.ID.String(), tx.OrganizationID.String(), string(tx.CreditType), tx.Amount,
		string(tx.Type), tx.RelatedID.String(), tx.Description, tx.CreatedAt, tx.UpdatedAt,
	).Scan(ctx, &inserted)
	return err
}

func (s *Store) AppendDebit(ctx context.Context, tx *credit.Transaction) error {
	var inserted int64
	err := s.pg.NewRaw(`
WITH guard AS (
    UPDATE credits_balances
    SET balance = balance + $4, updated_at = NOW()
    WHERE organization_id = $2 AND credit_type = $3 AND balance + $4 >= 0
    RETURNING 1
), entry AS (
    INSERT INTO credits_ledger (id, organization_id, credit_type, amount, type, related_id, description, created_at, updated_at)
    SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9
    WHERE EXISTS (SELECT 1 FROM guard)
    RETURNING 1
)
SELECT COUNT(*) FROM entry
`,
		tx.ID.String(), tx.OrganizationID.String(), string(tx.CreditType), tx.Amount,
		string(tx.Type), tx.RelatedID.String(), tx.Description, tx.CreatedAt, tx.UpdatedAt,
	).Scan(ctx, &inserted)
	if err != nil {
		return err
	}
	if inserted == 0 {
		return credits.ErrInsufficientCredits
	}
	return nil
}

func (s *Store) CreditBalance(ctx context.Context, orgID id.OrganizationID, creditType credit.Type) (int64, error) {
	var total int64
	err := s.pg.NewRaw(`
		SELECT COALESCE(SUM(amount), 0) FROM credits_ledger
		WHERE organization_id = $1 AND credit_type = $2
	`, orgID.String(), string(creditType)).Scan(ctx, &total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) CreditBalances(ctx context.Context, orgID id.OrganizationID) (*credit.Balances, error) {
	var models []balanceModel
	err := s.pg.NewSelect(&models).
		Where("organization_id = $1", orgID.String()).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	b := new(credit.Balances)
	for i := range models {
		switch credit.Type(models[i].CreditType) {
		case credit.TypeCVProcessing:
			b.CVProcessing = models[i].Balance
		case credit.TypeInterview:
			b.Interview = models[i].Balance
		}
	}
	return b, nil
}

func (s *Store) ListCreditTransactions(ctx context.Context, orgID id.OrganizationID, opts credit.ListOpts) ([]*credit.Transaction, error) {
	var models []ledgerEntryModel
	q := s.pg.NewSelect(&models).Where("organization_id = $1", orgID.String())

	argIdx := 1
	if opts.CreditType != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("credit_type = $%d", argIdx), string(opts.CreditType))
	}
	if opts.TxType != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("type = $%d", argIdx), string(opts.TxType))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*credit.Transaction, len(models))
	for i := range models {
		tx, err := fromLedgerEntryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = tx
	}
	return result, nil
}

func (s *Store) RebuildBalances(ctx context.Context) error {
	var rebuilt int64
	err := s.pg.NewRaw(`
WITH summed AS (
    SELECT organization_id, credit_type, SUM(amount) AS balance
    FROM credits_ledger
    GROUP BY organization_id, credit_type
), upserted AS (
    INSERT INTO credits_balances (organization_id, credit_type, balance, updated_at)
    SELECT organization_id, credit_type, balance, NOW() FROM summed
    ON CONFLICT (organization_id, credit_type)
    DO UPDATE SET balance = EXCLUDED.balance, updated_at = NOW()
), cleared AS (
    UPDATE credits_balances b
    SET balance = 0, updated_at = NOW()
    WHERE b.balance <> 0
      AND NOT EXISTS (
        SELECT 1 FROM summed s
        WHERE s.organization_id = b.organization_id AND s.credit_type = b.credit_type
      )
)
SELECT COUNT(*) FROM summed
`).Scan(ctx, &rebuilt)
	return err
}

// ==================== Payment Store ====================

func (s *Store) CreatePayment(ctx context.Context, t *payment.Transaction) error {
	m := toPaymentModel(t)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetPayment(ctx context.Context, payID id.PaymentID) (*payment.Transaction, error) {
	m := new(paymentModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", payID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, credits.ErrPaymentNotFound
		}
		return nil, err
	}
	return fromPaymentModel(m)
}

func (s *Store) ListPayments(ctx context.Context, orgID id.OrganizationID, opts payment.ListOpts) ([]*payment.Transaction, error) {
	var models []paymentModel
	q := s.pg.NewSelect(&models).Where("organization_id = $1", orgID.String())

	argIdx := 1
	if opts.Status != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("status = $%d", argIdx), string(opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*payment.Transaction, len(models))
	for i := range models {
		t, err := fromPaymentModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = t
	}
	return result, nil
}

func (s *Store) RecordWebhookEvent(ctx context.Context, evt *payment.WebhookEvent) error {
	m := toWebhookEventModel(evt)
	res, err := s.pg.NewInsert(m).
		OnConflict("(event_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return credits.ErrDuplicateWebhookEvent
	}
	return nil
}

func (s *Store) DeleteWebhookEvent(ctx context.Context, eventID string) error {
	_, err := s.pg.NewDelete((*webhookEventModel)(nil)).
		Where("event_id = $1", eventID).
		Exec(ctx)
	return err
}

func (s *Store) SettlePayment(ctx context.Context, t *payment.Transaction, grant *credit.Transaction) error {
	if grant == nil {
		return s.transitionGuarded(ctx, t, payment.StatusPending)
	}

	var settled int64
	err := s.pg.NewRaw(`
WITH pay AS (
    UPDATE credits_payments
    SET status = $2, provider_ref = $3, invoice_ref = $4, amount_cents = $5, amount_currency = $6,
        credits_added = $7, completed_at = $8, updated_at = $9
    WHERE id = $1 AND status = 'pending'
    RETURNING id
), bal AS (
    INSERT INTO credits_balances (organization_id, credit_type, balance, updated_at)
    SELECT $11, $12, $13, NOW() FROM pay
    ON CONFLICT (organization_id, credit_type)
    DO UPDATE SET balance = credits_balances.balance + EXCLUDED.balance, updated_at = NOW()
), entry AS (
    INSERT INTO credits_ledger (id, organization_id, credit_type, amount, type, related_id, description, created_at, updated_at)
    SELECT $10, $11, $12, $13, $14, $15, $16, $17, $18 FROM pay
    RETURNING 1
)
SELECT COUNT(*) FROM pay
`,
		t.ID.String(), string(t.Status), t.ProviderRef, t.InvoiceRef, t.Amount.Amount, t.Amount.Currency,
		t.CreditsAdded, t.CompletedAt, t.UpdatedAt,
		grant.ID.String(), grant.OrganizationID.String(), string(grant.CreditType), grant.Amount,
		string(grant.Type), grant.RelatedID.String(), grant.Description, grant.CreatedAt, grant.UpdatedAt,
	).Scan(ctx, &settled)
	if err != nil {
		return err
	}
	if settled == 0 {
		return s.transitionConflict(ctx, t.ID)
	}
	return nil
}

func (s *Store) FailPayment(ctx context.Context, payID id.PaymentID, target payment.Status, failureReason string) error {
	t := now()
	res, err := s.pg.NewUpdate((*paymentModel)(nil)).
		Set("status = $1", string(target)).
		Set("failure_reason = $2", failureReason).
		Set("updated_at = $3", t).
		Where("id = $4", payID.String()).
		Where("status = $5", string(payment.StatusPending)).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return s.transitionConflict(ctx, payID)
	}
	return nil
}

func (s *Store) RefundPayment(ctx context.Context, t *payment.Transaction, prevRefunded int64, debit *credit.Transaction, allowNegative bool) error {
	if debit == nil {
		// Zero-credit partial refund: only the payment row changes. The
		// refunded-amount predicate rejects a write computed from a
		// snapshot a concurrent refund has already advanced.
		res, err := s.pg.NewUpdate((*paymentModel)(nil)).
			Set("status = $1", string(t.Status)).
			Set("refunded_amount_cents = $2", t.RefundedAmount.Amount).
			Set("refunded_amount_currency = $3", t.RefundedAmount.Currency).
			Set("refunded_credits = $4", t.RefundedCredits).
			Set("updated_at = $5", t.UpdatedAt).
			Where("id = $6", t.ID.String()).
			Where("status = $7", string(payment.StatusSucceeded)).
			Where("refunded_amount_cents = $8", prevRefunded).
			Exec(ctx)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			if err := s.refundConflict(ctx, t.ID, prevRefunded); err != nil {
				return err
			}
			// No balance guard on this branch; only a concurrent
			// writer can explain the miss.
			return credits.ErrRefundConflict
		}
		return nil
	}

	var refunded int64
	err := s.pg.NewRaw(`
WITH ok AS (
    SELECT p.id
    FROM credits_payments p
    WHERE p.id = $1 AND p.status = 'succeeded' AND p.refunded_amount_cents = $17
      AND ($2::boolean
           OR COALESCE((SELECT b.balance FROM credits_balances b
                        WHERE b.organization_id = $3 AND b.credit_type = $4), 0) + $5 >= 0)
    FOR UPDATE
), pay AS (
    UPDATE credits_payments
    SET status = $6, refunded_amount_cents = $7, refunded_amount_currency = $8,
        refunded_credits = $9, updated_at = $10
    WHERE id IN (SELECT id FROM ok)
    RETURNING id
), bal AS (
    INSERT INTO credits_balances (organization_id, credit_type, balance, updated_at)
    SELECT $3, $4, $5, NOW() FROM pay
    ON CONFLICT (organization_id, credit_type)
    DO UPDATE SET balance = credits_balances.balance + EXCLUDED.balance, updated_at = NOW()
), entry AS (
    INSERT INTO credits_ledger (id, organization_id, credit_type, amount, type, related_id, description, created_at, updated_at)
    SELECT $11, $3, $4, $5, $12, $13, $14, $15, $16 FROM pay
    RETURNING 1
)
SELECT COUNT(*) FROM pay
`,
		t.ID.String(), allowNegative, debit.OrganizationID.String(), string(debit.CreditType), debit.Amount,
		string(t.Status), t.RefundedAmount.Amount, t.RefundedAmount.Currency, t.RefundedCredits, t.UpdatedAt,
		debit.ID.String(), string(debit.Type), debit.RelatedID.String(), debit.Description, debit.CreatedAt, debit.UpdatedAt,
		prevRefunded,
	).Scan(ctx, &refunded)
	if err != nil {
		return err
	}
	if refunded == 0 {
		if err := s.refundConflict(ctx, t.ID, prevRefunded); err != nil {
			return err
		}
		return credits.ErrInsufficientCredits
	}
	return nil
}

// refundConflict distinguishes why a guarded refund write matched no row:
// missing payment, wrong status, or a refunded amount another refund already
// advanced. Returns nil when only the balance guard can explain the miss.
func (s *Store) refundConflict(ctx context.Context, payID id.PaymentID, prevRefunded int64) error {
	existing, err := s.GetPayment(ctx, payID)
	if err != nil {
		return err
	}
	if existing.Status != payment.StatusSucceeded {
		return credits.ErrInvalidTransition
	}
	if existing.RefundedAmount.Amount != prevRefunded {
		return credits.ErrRefundConflict
	}
	return nil
}

// transitionGuarded applies a full-row payment update guarded by the expected
// source status.
func (s *Store) transitionGuarded(ctx context.Context, t *payment.Transaction, from payment.Status) error {
	m := toPaymentModel(t)
	m.UpdatedAt = now()
	res, err := s.pg.NewUpdate(m).
		WherePK().
		Where("status = $1", string(from)).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return s.transitionConflict(ctx, t.ID)
	}
	return nil
}

// transitionConflict distinguishes a missing payment from a status-guard
// rejection.
func (s *Store) transitionConflict(ctx context.Context, payID id.PaymentID) error {
	if _, err := s.GetPayment(ctx, payID); err != nil {
		return err
	}
	return credits.ErrInvalidTransition
}

// ==================== Catalog Store ====================

func (s *Store) CreatePackage(ctx context.Context, p *catalog.CreditPackage) error {
	m := toPackageModel(p)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetPackage(ctx context.Context, pkgID id.PackageID) (*catalog.CreditPackage, error) {
	m := new(packageModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", pkgID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, credits.ErrPackageNotFound
		}
		return nil, err
	}
	return fromPackageModel(m)
}

func (s *Store) GetPackageBySlug(ctx context.Context, slug string) (*catalog.CreditPackage, error) {
	m := new(packageModel)
	err := s.pg.NewSelect(m).
		Where("slug = $1", slug).
		Where("archived_at IS NULL").
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, credits.ErrPackageNotFound
		}
		return nil, err
	}
	return fromPackageModel(m)
}

func (s *Store) ListPackages(ctx context.Context, opts catalog.ListOpts) ([]*catalog.CreditPackage, error) {
	var models []packageModel
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if opts.CreditType != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("credit_type = $%d", argIdx), string(opts.CreditType))
	}
	if !opts.IncludeArchived {
		q = q.Where("archived_at IS NULL")
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*catalog.CreditPackage, len(models))
	for i := range models {
		p, err := fromPackageModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

func (s *Store) ArchivePackage(ctx context.Context, pkgID id.PackageID) error {
	t := now()
	res, err := s.pg.NewUpdate((*packageModel)(nil)).
		Set("archived_at = $1", t).
		Set("updated_at = $2", t).
		Where("id = $3", pkgID.String()).
		Where("archived_at IS NULL").
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		if _, err := s.GetPackage(ctx, pkgID); err != nil {
			return err
		}
	}
	return nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
