package org

import (
	"context"

	"github.com/talentbase/credits/id"
)

type Store interface {
	Create(ctx context.Context, o *Organization) error
	Get(ctx context.Context, orgID id.OrganizationID) (*Organization, error)
	List(ctx context.Context, opts ListOpts) ([]*Organization, error)
	Archive(ctx context.Context, orgID id.OrganizationID) error
}
