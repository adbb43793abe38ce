// Package catalog defines the purchasable credit package catalog. The
// catalog is owned by pricing; the reconciliation engine only reads it.
package catalog

import (
	"time"

	"github.com/talentbase/credits/credit"
	"github.com/talentbase/credits/id"
	"github.com/talentbase/credits/types"
)

// Kind mirrors the payment kind the package settles as.
type Kind string

const (
	KindOneTime      Kind = "one_time"
	KindSubscription Kind = "subscription"
)

// CreditPackage maps a purchasable SKU to a price and credit grant.
type CreditPackage struct {
	types.Entity
	ID             id.PackageID      `json:"id"`
	Name           string            `json:"name"`
	Slug           string            `json:"slug"`
	CreditType     credit.Type       `json:"credit_type"`
	CreditsGranted int64             `json:"credits_granted"`
	Price          types.Money       `json:"price"`
	Kind           Kind              `json:"kind"`
	ArchivedAt     *time.Time        `json:"archived_at,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// IsArchived reports whether the package has been withdrawn from sale.
func (p *CreditPackage) IsArchived() bool {
	return p.ArchivedAt != nil
}

// ListOpts filters credit package listings.
type ListOpts struct {
	CreditType      credit.Type
	IncludeArchived bool
	Limit           int
	Offset          int
}
