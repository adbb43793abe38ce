package credit

import (
	"context"

	"github.com/talentbase/credits/id"
)

// Store is the append-only ledger contract. There is no update or delete
// operation — the ledger is immutable history.
type Store interface {
	// Append durably persists a ledger entry and updates the cached balance
	// projection in the same atomic unit.
	Append(ctx context.Context, tx *Transaction) error

	// AppendDebit persists a debit entry only if the resulting balance for
	// (organization, credit type) stays non-negative. The balance check and
	// the append are a single atomic operation.
	AppendDebit(ctx context.Context, tx *Transaction) error

	// Balance returns the authoritative sum of all entry amounts for the key.
	Balance(ctx context.Context, orgID id.OrganizationID, creditType Type) (int64, error)

	// Balances returns the cached projection for both credit types.
	Balances(ctx context.Context, orgID id.OrganizationID) (*Balances, error)

	// List returns ledger history for audit and export.
	List(ctx context.Context, orgID id.OrganizationID, opts ListOpts) ([]*Transaction, error)

	// RebuildBalances resums the ledger into the balance projection. The
	// ledger is always the source of truth; this repairs any divergence
	// left by a crash between projection write and entry write.
	RebuildBalances(ctx context.Context) error
}
