package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/talentbase/credits"
	"github.com/talentbase/credits/catalog"
	"github.com/talentbase/credits/credit"
	"github.com/talentbase/credits/id"
	"github.com/talentbase/credits/org"
	"github.com/talentbase/credits/payment"
)

// Store is an in-memory backend for tests and embedded use. A single mutex
// makes every method atomic, which is what the balance guard and the payment
// status guards rely on.
type Store struct {
	mu sync.RWMutex

	// Organization storage
	organizations map[string]*org.Organization

	// Credit ledger storage. ledger is append-only; balances is the cached
	// projection keyed by org|creditType.
	ledger   []credit.Transaction
	balances map[string]int64

	// Payment storage
	payments      map[string]*payment.Transaction
	webhookEvents map[string]*payment.WebhookEvent

	// Catalog storage
	packages map[string]*catalog.CreditPackage
}

func New() *Store {
	return &Store{
		organizations: make(map[string]*org.Organization),
		ledger:        make([]credit.Transaction, 0),
		balances:      make(map[string]int64),
		payments:      make(map[string]*payment.Transaction),
		webhookEvents: make(map[string]*payment.WebhookEvent),
		packages:      make(map[string]*catalog.CreditPackage),
	}
}

func balanceKey(orgID id.OrganizationID, creditType credit.Type) string {
	return fmt.Sprintf("%s|%s", orgID.String(), creditType)
}

// Organization Store implementation
func (s *Store) CreateOrganization(_ context.Context, o *org.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.organizations[o.ID.String()]; exists {
		return credits.ErrAlreadyExists
	}
	cp := *o
	s.organizations[o.ID.String()] = &cp
	return nil
}

func (s *Store) GetOrganization(_ context.Context, orgID id.OrganizationID) (*org.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if o, ok := s.organizations[orgID.String()]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, credits.ErrOrganizationNotFound
}

func (s *Store) ListOrganizations(_ context.Context, opts org.ListOpts) ([]*org.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*org.Organization, 0)
	for _, o := range s.organizations {
		if o.IsArchived() && !opts.IncludeArchived {
			continue
		}
		cp := *o
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) ArchiveOrganization(_ context.Context, orgID id.OrganizationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, exists := s.organizations[orgID.String()]
	if !exists {
		return credits.ErrOrganizationNotFound
	}
	if !o.IsArchived() {
		now := nowUTC()
		o.ArchivedAt = &now
		o.Touch()
	}
	return nil
}

// Credit ledger Store implementation
func (s *Store) AppendCredit(_ context.Context, tx *credit.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.appendLocked(tx)
	return nil
}

func (s *Store) AppendDebit(_ context.Context, tx *credit.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := balanceKey(tx.OrganizationID, tx.CreditType)
	if s.balances[key]+tx.Amount < 0 {
		return credits.ErrInsufficientCredits
	}
	s.appendLocked(tx)
	return nil
}

func (s *Store) appendLocked(tx *credit.Transaction) {
	s.ledger = append(s.ledger, *tx)
	s.balances[balanceKey(tx.OrganizationID, tx.CreditType)] += tx.Amount
}

func (s *Store) CreditBalance(_ context.Context, orgID id.OrganizationID, creditType credit.Type) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Authoritative sum, not the projection.
	var total int64
	for i := range s.ledger {
		e := &s.ledger[i]
		if e.OrganizationID.String() == orgID.String() && e.CreditType == creditType {
			total += e.Amount
		}
	}
	return total, nil
}

func (s *Store) CreditBalances(_ context.Context, orgID id.OrganizationID) (*credit.Balances, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return &credit.Balances{
		CVProcessing: s.balances[balanceKey(orgID, credit.TypeCVProcessing)],
		Interview:    s.balances[balanceKey(orgID, credit.TypeInterview)],
	}, nil
}

func (s *Store) ListCreditTransactions(_ context.Context, orgID id.OrganizationID, opts credit.ListOpts) ([]*credit.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*credit.Transaction, 0)
	for i := range s.ledger {
		e := s.ledger[i]
		if e.OrganizationID.String() != orgID.String() {
			continue
		}
		if opts.CreditType != "" && e.CreditType != opts.CreditType {
			continue
		}
		if opts.TxType != "" && e.Type != opts.TxType {
			continue
		}
		result = append(result, &e)
	}

	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) RebuildBalances(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rebuilt := make(map[string]int64)
	for i := range s.ledger {
		e := &s.ledger[i]
		rebuilt[balanceKey(e.OrganizationID, e.CreditType)] += e.Amount
	}
	s.balances = rebuilt
	return nil
}

// Payment Store implementation
func (s *Store) CreatePayment(_ context.Context, t *payment.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.payments[t.ID.String()]; exists {
		return credits.ErrAlreadyExists
	}
	cp := *t
	s.payments[t.ID.String()] = &cp
	return nil
}

func (s *Store) GetPayment(_ context.Context, payID id.PaymentID) (*payment.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if t, ok := s.payments[payID.String()]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, credits.ErrPaymentNotFound
}

func (s *Store) ListPayments(_ context.Context, orgID id.OrganizationID, opts payment.ListOpts) ([]*payment.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*payment.Transaction, 0)
	for _, t := range s.payments {
		if t.OrganizationID.String() != orgID.String() {
			continue
		}
		if opts.Status != "" && t.Status != opts.Status {
			continue
		}
		cp := *t
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) RecordWebhookEvent(_ context.Context, evt *payment.WebhookEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.webhookEvents[evt.EventID]; exists {
		return credits.ErrDuplicateWebhookEvent
	}
	cp := *evt
	s.webhookEvents[evt.EventID] = &cp
	return nil
}

func (s *Store) DeleteWebhookEvent(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.webhookEvents, eventID)
	return nil
}

func (s *Store) SettlePayment(_ context.Context, t *payment.Transaction, grant *credit.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.payments[t.ID.String()]
	if !exists {
		return credits.ErrPaymentNotFound
	}
	if stored.Status != payment.StatusPending {
		return credits.ErrInvalidTransition
	}

	cp := *t
	s.payments[t.ID.String()] = &cp
	if grant != nil {
		s.appendLocked(grant)
	}
	return nil
}

func (s *Store) FailPayment(_ context.Context, payID id.PaymentID, target payment.Status, failureReason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.payments[payID.String()]
	if !exists {
		return credits.ErrPaymentNotFound
	}
	if stored.Status != payment.StatusPending {
		return credits.ErrInvalidTransition
	}

	stored.Status = target
	stored.FailureReason = failureReason
	stored.Touch()
	return nil
}

func (s *Store) RefundPayment(_ context.Context, t *payment.Transaction, prevRefunded int64, debit *credit.Transaction, allowNegative bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.payments[t.ID.String()]
	if !exists {
		return credits.ErrPaymentNotFound
	}
	if stored.Status != payment.StatusSucceeded {
		return credits.ErrInvalidTransition
	}
	if stored.RefundedAmount.Amount != prevRefunded {
		return credits.ErrRefundConflict
	}

	if debit != nil && !allowNegative {
		key := balanceKey(debit.OrganizationID, debit.CreditType)
		if s.balances[key]+debit.Amount < 0 {
			return credits.ErrInsufficientCredits
		}
	}

	cp := *t
	s.payments[t.ID.String()] = &cp
	if debit != nil {
		s.appendLocked(debit)
	}
	return nil
}

// Catalog Store implementation
func (s *Store) CreatePackage(_ context.Context, p *catalog.CreditPackage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.packages[p.ID.String()]; exists {
		return credits.ErrAlreadyExists
	}
	for _, existing := range s.packages {
		if existing.Slug == p.Slug && !existing.IsArchived() {
			return credits.ErrAlreadyExists
		}
	}
	cp := *p
	s.packages[p.ID.String()] = &cp
	return nil
}

func (s *Store) GetPackage(_ context.Context, pkgID id.PackageID) (*catalog.CreditPackage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.packages[pkgID.String()]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, credits.ErrPackageNotFound
}

func (s *Store) GetPackageBySlug(_ context.Context, slug string) (*catalog.CreditPackage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.packages {
		if p.Slug == slug && !p.IsArchived() {
			cp := *p
			return &cp, nil
		}
	}
	return nil, credits.ErrPackageNotFound
}

func (s *Store) ListPackages(_ context.Context, opts catalog.ListOpts) ([]*catalog.CreditPackage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*catalog.CreditPackage, 0)
	for _, p := range s.packages {
		if p.IsArchived() && !opts.IncludeArchived {
			continue
		}
		if opts.CreditType != "" && p.CreditType != opts.CreditType {
			continue
		}
		cp := *p
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) ArchivePackage(_ context.Context, pkgID id.PackageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.packages[pkgID.String()]
	if !exists {
		return credits.ErrPackageNotFound
	}
	if !p.IsArchived() {
		now := nowUTC()
		p.ArchivedAt = &now
		p.Touch()
	}
	return nil
}

// Store management
func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	return nil // Always available
}

func (s *Store) Close() error {
	return nil // Nothing to close
}

// Helper functions
func nowUTC() time.Time {
	return time.Now().UTC()
}

func paginate[T any](items []T, offset, limit int) []T {
	start := offset
	if start > len(items) {
		start = len(items)
	}
	end := start + limit
	if limit == 0 || end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
