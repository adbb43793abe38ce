// Package org defines the tenant organization entity.
package org

import (
	"time"

	"github.com/talentbase/credits/id"
	"github.com/talentbase/credits/types"
)

// Organization is a tenant. Each organization owns exactly one ledger per
// credit type. Organizations are never deleted — only soft-archived.
type Organization struct {
	types.Entity
	ID         id.OrganizationID `json:"id"`
	Name       string            `json:"name"`
	ArchivedAt *time.Time        `json:"archived_at,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// IsArchived reports whether the organization has been soft-archived.
func (o *Organization) IsArchived() bool {
	return o.ArchivedAt != nil
}

// ListOpts filters organization listings.
type ListOpts struct {
	IncludeArchived bool
	Limit           int
	Offset          int
}
