package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	credits "github.com/talentbase/credits"
	"github.com/talentbase/credits/catalog"
	"github.com/talentbase/credits/credit"
	"github.com/talentbase/credits/id"
	"github.com/talentbase/credits/org"
	"github.com/talentbase/credits/payment"
	"github.com/talentbase/credits/store"
)

// Collection name constants.
const (
	colOrganizations = "credits_organizations"
	colLedger        = "credits_ledger"
	colBalances      = "credits_balances"
	colPayments      = "credits_payments"
	colWebhookEvents = "credits_webhook_events"
	colPackages      = "credits_packages"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
//
// The balance guard uses a filtered findOneAndUpdate on the projection
// document, which is atomic per document. The ledger append and the
// projection update are separate writes; RebuildBalances at engine start
// repairs any divergence left by a crash between them.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all credits collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("credits/mongo: migrate %s indexes: %w", col, err)
		}
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
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return credits.ErrAlreadyExists
		}
		return fmt.Errorf("credits/mongo: create organization: %w", err)
	}
	return nil
}

func (s *Store) GetOrganization(ctx context.Context, orgID id.OrganizationID) (*org.Organization, error) {
	var m organizationModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": orgID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, credits.ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("credits/mongo: get organization: %w", err)
	}
	return fromOrganizationModel(&m)
}

func (s *Store) ListOrganizations(ctx context.Context, opts org.ListOpts) ([]*org.Organization, error) {
	var models []organizationModel

	filter := bson.M{}
	if !opts.IncludeArchived {
		filter["archived_at"] = nil
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("credits/mongo: list organizations: %w", err)
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
	res, err := s.mdb.NewUpdate((*organizationModel)(nil)).
		Filter(bson.M{"_id": orgID.String(), "archived_at": nil}).
		Set("archived_at", t).
		Set("updated_at", t).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("credits/mongo: archive organization: %w", err)
	}
	if res.MatchedCount() == 0 {
		// Archiving an already archived organization is a no-op.
		if _, err := s.GetOrganization(ctx, orgID); err != nil {
			return err
		}
	}
	return nil
}

// ==================== Credit Ledger Store ====================

func balanceDocID(orgID, creditType string) string {
	return orgID + "|" + creditType
}

func (s *Store) AppendCredit(ctx context.Context, tx *credit.Transaction) error {
	m := toLedgerEntryModel(tx)
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("credits/mongo: append credit: %w", err)
	}
	return s.bumpBalance(ctx, m.OrganizationID, m.CreditType, m.Amount)
}

func (s *Store) AppendDebit(ctx context.Context, tx *credit.Transaction) error {
	m := toLedgerEntryModel(tx)

	// Guarded decrement: matches only when the projection can absorb the
	// debit, atomically per document.
	res := s.mdb.Collection(colBalances).FindOneAndUpdate(ctx,
		bson.M{
			"_id":     balanceDocID(m.OrganizationID, m.CreditType),
			"balance": bson.M{"$gte": -m.Amount},
		},
		bson.M{
			"$inc": bson.M{"balance": m.Amount},
			"$set": bson.M{"updated_at": now()},
		},
	)
	if err := res.Err(); err != nil {
		if isNoDocuments(err) {
			return credits.ErrInsufficientCredits
		}
		return fmt.Errorf("credits/mongo: append debit: %w", err)
	}

	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("credits/mongo: append debit entry: %w", err)
	}
	return nil
}

// bumpBalance applies an unguarded delta to the projection, creating the
// document on first use.
func (s *Store) bumpBalance(ctx context.Context, orgID, creditType string, delta int64) error {
	_, err := s.mdb.Collection(colBalances).UpdateOne(ctx,
		bson.M{"_id": balanceDocID(orgID, creditType)},
		bson.M{
			"$inc": bson.M{"balance": delta},
			"$set": bson.M{"updated_at": now()},
			"$setOnInsert": bson.M{
				"organization_id": orgID,
				"credit_type":     creditType,
			},
		},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("credits/mongo: update balance: %w", err)
	}
	return nil
}

func (s *Store) CreditBalance(ctx context.Context, orgID id.OrganizationID, creditType credit.Type) (int64, error) {
	pipeline := bson.A{
		bson.M{
			"$match": bson.M{
				"organization_id": orgID.String(),
				"credit_type":     string(creditType),
			},
		},
		bson.M{
			"$group": bson.M{
				"_id":   nil,
				"total": bson.M{"$sum": "$amount"},
			},
		},
	}

	cursor, err := s.mdb.Collection(colLedger).Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("credits/mongo: balance: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Total int64 `bson:"total"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return 0, fmt.Errorf("credits/mongo: balance decode: %w", err)
	}

	if len(results) == 0 {
		return 0, nil
	}
	return results[0].Total, nil
}

func (s *Store) CreditBalances(ctx context.Context, orgID id.OrganizationID) (*credit.Balances, error) {
	var models []balanceModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"organization_id": orgID.String()}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("credits/mongo: balances: %w", err)
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

	filter := bson.M{"organization_id": orgID.String()}
	if opts.CreditType != "" {
		filter["credit_type"] = string(opts.CreditType)
	}
	if opts.TxType != "" {
		filter["type"] = string(opts.TxType)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("credits/mongo: list ledger: %w", err)
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
	pipeline := bson.A{
		bson.M{
			"$group": bson.M{
				"_id": bson.M{
					"organization_id": "$organization_id",
					"credit_type":     "$credit_type",
				},
				"balance": bson.M{"$sum": "$amount"},
			},
		},
	}

	cursor, err := s.mdb.Collection(colLedger).Aggregate(ctx, pipeline)
	if err != nil {
		return fmt.Errorf("credits/mongo: rebuild balances: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Key struct {
			OrganizationID string `bson:"organization_id"`
			CreditType     string `bson:"credit_type"`
		} `bson:"_id"`
		Balance int64 `bson:"balance"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return fmt.Errorf("credits/mongo: rebuild decode: %w", err)
	}

	if _, err := s.mdb.Collection(colBalances).DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("credits/mongo: rebuild clear: %w", err)
	}
	for _, r := range results {
		b := &balanceModel{
			ID:             balanceDocID(r.Key.OrganizationID, r.Key.CreditType),
			OrganizationID: r.Key.OrganizationID,
			CreditType:     r.Key.CreditType,
			Balance:        r.Balance,
			UpdatedAt:      now(),
		}
		if _, err := s.mdb.NewInsert(b).Exec(ctx); err != nil {
			return fmt.Errorf("credits/mongo: rebuild insert: %w", err)
		}
	}
	return nil
}

// ==================== Payment Store ====================

func (s *Store) CreatePayment(ctx context.Context, t *payment.Transaction) error {
	m := toPaymentModel(t)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return credits.ErrAlreadyExists
		}
		return fmt.Errorf("credits/mongo: create payment: %w", err)
	}
	return nil
}

func (s *Store) GetPayment(ctx context.Context, payID id.PaymentID) (*payment.Transaction, error) {
	var m paymentModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": payID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, credits.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("credits/mongo: get payment: %w", err)
	}
	return fromPaymentModel(&m)
}

func (s *Store) ListPayments(ctx context.Context, orgID id.OrganizationID, opts payment.ListOpts) ([]*payment.Transaction, error) {
	var models []paymentModel

	filter := bson.M{"organization_id": orgID.String()}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("credits/mongo: list payments: %w", err)
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
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return credits.ErrDuplicateWebhookEvent
		}
		return fmt.Errorf("credits/mongo: record webhook event: %w", err)
	}
	return nil
}

func (s *Store) DeleteWebhookEvent(ctx context.Context, eventID string) error {
	_, err := s.mdb.NewDelete((*webhookEventModel)(nil)).
		Filter(bson.M{"_id": eventID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("credits/mongo: delete webhook event: %w", err)
	}
	return nil
}

func (s *Store) SettlePayment(ctx context.Context, t *payment.Transaction, grant *credit.Transaction) error {
	if err := s.transitionGuarded(ctx, t, payment.StatusPending); err != nil {
		return err
	}
	if grant != nil {
		return s.AppendCredit(ctx, grant)
	}
	return nil
}

func (s *Store) FailPayment(ctx context.Context, payID id.PaymentID, target payment.Status, failureReason string) error {
	res, err := s.mdb.NewUpdate((*paymentModel)(nil)).
		Filter(bson.M{"_id": payID.String(), "status": string(payment.StatusPending)}).
		Set("status", string(target)).
		Set("failure_reason", failureReason).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("credits/mongo: fail payment: %w", err)
	}
	if res.MatchedCount() == 0 {
		return s.transitionConflict(ctx, payID)
	}
	return nil
}

func (s *Store) RefundPayment(ctx context.Context, t *payment.Transaction, prevRefunded int64, debit *credit.Transaction, allowNegative bool) error {
	if debit != nil && !allowNegative {
		// Best-effort pre-check before touching the payment row; the
		// guarded decrement below still never underflows.
		b, err := s.CreditBalances(ctx, debit.OrganizationID)
		if err != nil {
			return err
		}
		if b.Get(debit.CreditType)+debit.Amount < 0 {
			return credits.ErrInsufficientCredits
		}
	}

	// The payment write is the serialization point: matching on both the
	// status and the refunded amount the caller read means a refund built
	// from a stale snapshot matches nothing, so concurrent refunds apply
	// at most once.
	m := toPaymentModel(t)
	m.UpdatedAt = now()
	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{
			"_id":                   m.ID,
			"status":                string(payment.StatusSucceeded),
			"refunded_amount_cents": prevRefunded,
		}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("credits/mongo: refund payment: %w", err)
	}
	if res.MatchedCount() == 0 {
		existing, err := s.GetPayment(ctx, t.ID)
		if err != nil {
			return err
		}
		if existing.Status != payment.StatusSucceeded {
			return credits.ErrInvalidTransition
		}
		return credits.ErrRefundConflict
	}

	if debit == nil {
		return nil
	}
	if allowNegative {
		em := toLedgerEntryModel(debit)
		if _, err := s.mdb.NewInsert(em).Exec(ctx); err != nil {
			return fmt.Errorf("credits/mongo: refund entry: %w", err)
		}
		return s.bumpBalance(ctx, em.OrganizationID, em.CreditType, em.Amount)
	}
	if err := s.AppendDebit(ctx, debit); err != nil {
		// Without a cross-document transaction the row write has
		// already landed; revert it so the payment never records a
		// refund whose ledger entry was refused.
		if revertErr := s.revertRefund(ctx, t, prevRefunded, debit.Amount); revertErr != nil {
			return fmt.Errorf("credits/mongo: refund debit failed and row revert failed: %w", revertErr)
		}
		return err
	}
	return nil
}

// revertRefund restores a payment row to its pre-refund totals after the
// clawback debit was rejected.
func (s *Store) revertRefund(ctx context.Context, t *payment.Transaction, prevRefunded, debitAmount int64) error {
	_, err := s.mdb.NewUpdate((*paymentModel)(nil)).
		Filter(bson.M{"_id": t.ID.String()}).
		Set("status", string(payment.StatusSucceeded)).
		Set("refunded_amount_cents", prevRefunded).
		Set("refunded_credits", t.RefundedCredits+debitAmount).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("credits/mongo: revert refund: %w", err)
	}
	return nil
}

// transitionGuarded applies a full-document payment update matched on the
// expected source status.
func (s *Store) transitionGuarded(ctx context.Context, t *payment.Transaction, from payment.Status) error {
	m := toPaymentModel(t)
	m.UpdatedAt = now()

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID, "status": string(from)}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("credits/mongo: payment transition: %w", err)
	}
	if res.MatchedCount() == 0 {
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
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return credits.ErrAlreadyExists
		}
		return fmt.Errorf("credits/mongo: create package: %w", err)
	}
	return nil
}

func (s *Store) GetPackage(ctx context.Context, pkgID id.PackageID) (*catalog.CreditPackage, error) {
	var m packageModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": pkgID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, credits.ErrPackageNotFound
		}
		return nil, fmt.Errorf("credits/mongo: get package: %w", err)
	}
	return fromPackageModel(&m)
}

func (s *Store) GetPackageBySlug(ctx context.Context, slug string) (*catalog.CreditPackage, error) {
	var m packageModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"slug": slug, "archived_at": nil}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, credits.ErrPackageNotFound
		}
		return nil, fmt.Errorf("credits/mongo: get package by slug: %w", err)
	}
	return fromPackageModel(&m)
}

func (s *Store) ListPackages(ctx context.Context, opts catalog.ListOpts) ([]*catalog.CreditPackage, error) {
	var models []packageModel

	filter := bson.M{}
	if opts.CreditType != "" {
		filter["credit_type"] = string(opts.CreditType)
	}
	if !opts.IncludeArchived {
		filter["archived_at"] = nil
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("credits/mongo: list packages: %w", err)
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
	res, err := s.mdb.NewUpdate((*packageModel)(nil)).
		Filter(bson.M{"_id": pkgID.String(), "archived_at": nil}).
		Set("archived_at", t).
		Set("updated_at", t).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("credits/mongo: archive package: %w", err)
	}
	if res.MatchedCount() == 0 {
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

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all credits collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colOrganizations: {
			{Keys: bson.D{{Key: "created_at", Value: 1}}},
		},
		colLedger: {
			{Keys: bson.D{{Key: "organization_id", Value: 1}, {Key: "credit_type", Value: 1}, {Key: "created_at", Value: 1}}},
			{
				Keys:    bson.D{{Key: "related_id", Value: 1}},
				Options: options.Index().SetSparse(true),
			},
		},
		colPayments: {
			{Keys: bson.D{{Key: "organization_id", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "organization_id", Value: 1}, {Key: "status", Value: 1}}},
			{
				Keys:    bson.D{{Key: "provider_ref", Value: 1}},
				Options: options.Index().SetSparse(true),
			},
		},
		colPackages: {
			{
				Keys:    bson.D{{Key: "slug", Value: 1}},
				Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{"archived_at": nil}),
			},
			{Keys: bson.D{{Key: "credit_type", Value: 1}}},
		},
	}
}
