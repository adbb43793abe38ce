package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
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

// Store implements store.Store using SQLite via Grove ORM.
//
// SQLite is an embedded single-process database, so multi-statement writes
// are serialized with a process-level mutex instead of SQL-side guards. A
// crash between the ledger append and the balance update is repaired by
// RebuildBalances at engine start.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB

	// Serializes guarded write sequences.
	mu sync.Mutex
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("credits/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("credits/sqlite: migration failed: %w", err)
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
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetOrganization(ctx context.Context, orgID id.OrganizationID) (*org.Organization, error) {
	m := new(organizationModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", orgID.String()).
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
	q := s.sdb.NewSelect(&models)

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
	res, err := s.sdb.NewUpdate((*organizationModel)(nil)).
		Set("archived_at = ?", t).
		Set("updated_at = ?", t).
		Where("id = ?", orgID.String()).
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
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.appendLocked(ctx, tx)
}

func (s *Store) AppendDebit(ctx context.Context, tx *credit.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bal, err := s.projectedBalance(ctx, tx.OrganizationID, tx.CreditType)
	if err != nil {
		return err
	}
	if bal+tx.Amount < 0 {
		return credits.ErrInsufficientCredits
	}
	return s.appendLocked(ctx, tx)
}

// appendLocked inserts the ledger entry and folds it into the balance
// projection. Callers hold s.mu.
func (s *Store) appendLocked(ctx context.Context, tx *credit.Transaction) error {
	m := toLedgerEntryModel(tx)
	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
		return err
	}
	return s.bumpBalance(ctx, tx.OrganizationID, tx.CreditType, tx.Amount)
}

func (s *Store) bumpBalance(ctx context.Context, orgID id.OrganizationID, creditType credit.Type, delta int64) error {
	res, err := s.sdb.NewUpdate((*balanceModel)(nil)).
		Set("balance = balance + ?", delta).
		Set("updated_at = ?", now()).
		Where("organization_id = ?", orgID.String()).
		Where("credit_type = ?", string(creditType)).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		b := &balanceModel{
			OrganizationID: orgID.String(),
			CreditType:     string(creditType),
			Balance:        delta,
			UpdatedAt:      now(),
		}
		_, err = s.sdb.NewInsert(b).Exec(ctx)
	}
	return err
}

func (s *Store) projectedBalance(ctx context.Context, orgID id.OrganizationID, creditType credit.Type) (int64, error) {
	m := new(balanceModel)
	err := s.sdb.NewSelect(m).
		Where("organization_id = ?", orgID.String()).
		Where("credit_type = ?", string(creditType)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return 0, nil
		}
		return 0, err
	}
	return m.Balance, nil
}

func (s *Store) CreditBalance(ctx context.Context, orgID id.OrganizationID, creditType credit.Type) (int64, error) {
	var total int64
	err := s.sdb.NewRaw(`
		SELECT COALESCE(SUM(amount), 0) FROM credits_ledger
		WHERE organization_id = ? AND credit_type = ?
	`, orgID.String(), string(creditType)).Scan(ctx, &total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) CreditBalances(ctx context.Context, orgID id.OrganizationID) (*credit.Balances, error) {
	var models []balanceModel
	err := s.sdb.NewSelect(&models).
		Where("organization_id = ?", orgID.String()).
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
	q := s.sdb.NewSelect(&models).Where("organization_id = ?", orgID.String())

	if opts.CreditType != "" {
		q = q.Where("credit_type = ?", string(opts.CreditType))
	}
	if opts.TxType != "" {
		q = q.Where("type = ?", string(opts.TxType))
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
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []ledgerEntryModel
	if err := s.sdb.NewSelect(&entries).Scan(ctx); err != nil {
		return err
	}

	summed := make(map[string]map[string]int64)
	for i := range entries {
		e := &entries[i]
		if summed[e.OrganizationID] == nil {
			summed[e.OrganizationID] = make(map[string]int64)
		}
		summed[e.OrganizationID][e.CreditType] += e.Amount
	}

	if _, err := s.sdb.NewDelete((*balanceModel)(nil)).Where("1 = 1").Exec(ctx); err != nil {
		return err
	}
	for orgID, byType := range summed {
		for creditType, balance := range byType {
			b := &balanceModel{
				OrganizationID: orgID,
				CreditType:     creditType,
				Balance:        balance,
				UpdatedAt:      now(),
			}
			if _, err := s.sdb.NewInsert(b).Exec(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// ==================== Payment Store ====================

func (s *Store) CreatePayment(ctx context.Context, t *payment.Transaction) error {
	m := toPaymentModel(t)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetPayment(ctx context.Context, payID id.PaymentID) (*payment.Transaction, error) {
	m := new(paymentModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", payID.String()).
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
	q := s.sdb.NewSelect(&models).Where("organization_id = ?", orgID.String())

	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
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
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := new(webhookEventModel)
	err := s.sdb.NewSelect(existing).
		Where("event_id = ?", evt.EventID).
		Scan(ctx)
	if err == nil {
		return credits.ErrDuplicateWebhookEvent
	}
	if !isNoRows(err) {
		return err
	}

	m := toWebhookEventModel(evt)
	_, err = s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) DeleteWebhookEvent(ctx context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.sdb.NewDelete((*webhookEventModel)(nil)).
		Where("event_id = ?", eventID).
		Exec(ctx)
	return err
}

func (s *Store) SettlePayment(ctx context.Context, t *payment.Transaction, grant *credit.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.transitionGuarded(ctx, t, payment.StatusPending); err != nil {
		return err
	}
	if grant != nil {
		return s.appendLocked(ctx, grant)
	}
	return nil
}

func (s *Store) FailPayment(ctx context.Context, payID id.PaymentID, target payment.Status, failureReason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := now()
	res, err := s.sdb.NewUpdate((*paymentModel)(nil)).
		Set("status = ?", string(target)).
		Set("failure_reason = ?", failureReason).
		Set("updated_at = ?", t).
		Where("id = ?", payID.String()).
		Where("status = ?", string(payment.StatusPending)).
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
	s.mu.Lock()
	defer s.mu.Unlock()

	if debit != nil && !allowNegative {
		bal, err := s.projectedBalance(ctx, debit.OrganizationID, debit.CreditType)
		if err != nil {
			return err
		}
		if bal+debit.Amount < 0 {
			return credits.ErrInsufficientCredits
		}
	}

	// Guarded on both status and the refunded amount the caller read, so
	// a refund computed from a stale snapshot (another process advanced
	// the row) matches nothing and is rejected.
	m := toPaymentModel(t)
	m.UpdatedAt = now()
	res, err := s.sdb.NewUpdate(m).
		WherePK().
		Where("status = ?", string(payment.StatusSucceeded)).
		Where("refunded_amount_cents = ?", prevRefunded).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		existing, err := s.GetPayment(ctx, t.ID)
		if err != nil {
			return err
		}
		if existing.Status != payment.StatusSucceeded {
			return credits.ErrInvalidTransition
		}
		return credits.ErrRefundConflict
	}

	if debit != nil {
		return s.appendLocked(ctx, debit)
	}
	return nil
}

// transitionGuarded applies a full-row payment update guarded by the expected
// source status. Callers hold s.mu.
func (s *Store) transitionGuarded(ctx context.Context, t *payment.Transaction, from payment.Status) error {
	m := toPaymentModel(t)
	m.UpdatedAt = now()
	res, err := s.sdb.NewUpdate(m).
		WherePK().
		Where("status = ?", string(from)).
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
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetPackage(ctx context.Context, pkgID id.PackageID) (*catalog.CreditPackage, error) {
	m := new(packageModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", pkgID.String()).
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
	err := s.sdb.NewSelect(m).
		Where("slug = ?", slug).
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
	q := s.sdb.NewSelect(&models)

	if opts.CreditType != "" {
		q = q.Where("credit_type = ?", string(opts.CreditType))
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
	res, err := s.sdb.NewUpdate((*packageModel)(nil)).
		Set("archived_at = ?", t).
		Set("updated_at = ?", t).
		Where("id = ?", pkgID.String()).
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
