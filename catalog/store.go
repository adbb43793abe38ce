package catalog

import (
	"context"

	"github.com/talentbase/credits/id"
)

type Store interface {
	Create(ctx context.Context, p *CreditPackage) error
	Get(ctx context.Context, pkgID id.PackageID) (*CreditPackage, error)
	GetBySlug(ctx context.Context, slug string) (*CreditPackage, error)
	List(ctx context.Context, opts ListOpts) ([]*CreditPackage, error)
	Archive(ctx context.Context, pkgID id.PackageID) error
}
