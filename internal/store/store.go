// Package store implements the per-tenant resource backend: SQL tables holding each
// resource's original-cased and normalized JSON documents plus an optimistic-concurrency
// version, with Group membership held in a separate join table rather than embedded in the
// Group's own document.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/scimbridge/tenant-scim/internal/schema"
	"github.com/scimbridge/tenant-scim/internal/scimerr"
)

// Store is the Tenant Store: a gorm connection plus the set of tenants whose tables are
// known to exist, to avoid a DDL round trip on every write.
type Store struct {
	db      *gorm.DB
	dialect string // "postgres" or "sqlite"

	mu      sync.Mutex
	ensured map[uint32]bool
}

// New wraps db (opened by cmd/api's dialect selection) as a Store.
func New(db *gorm.DB, dialect string) *Store {
	return &Store{db: db, dialect: dialect, ensured: make(map[uint32]bool)}
}

// tableNames returns the three per-tenant tables for tenantID: t{T}_users, t{T}_groups,
// and t{T}_group_memberships.
func tableNames(tenantID uint32) (users, groups, memberships string) {
	return fmt.Sprintf("t%d_users", tenantID),
		fmt.Sprintf("t%d_groups", tenantID),
		fmt.Sprintf("t%d_group_memberships", tenantID)
}

// EnsureTenantTables idempotently creates tenantID's tables on first use, caching the
// "exists" bit in memory so subsequent calls are a no-op.
func (s *Store) EnsureTenantTables(ctx context.Context, tenantID uint32) error {
	s.mu.Lock()
	ready := s.ensured[tenantID]
	s.mu.Unlock()
	if ready {
		return nil
	}

	usersTable, groupsTable, membershipsTable := tableNames(tenantID)
	for _, stmt := range ddlStatements(usersTable, groupsTable, membershipsTable) {
		if err := s.db.WithContext(ctx).Exec(stmt).Error; err != nil {
			return scimerr.Internal("failed to provision tenant tables", err)
		}
	}

	s.mu.Lock()
	s.ensured[tenantID] = true
	s.mu.Unlock()
	return nil
}

// tableFor returns the physical table name backing rt for tenantID.
func tableFor(tenantID uint32, rt schema.ResourceType) string {
	users, groups, _ := tableNames(tenantID)
	if rt == schema.ResourceGroup {
		return groups
	}
	return users
}

// naturalKeyField names the document attribute stored (lowercased) in each table's
// natural_key column: userName for Users, displayName for Groups.
func naturalKeyField(rt schema.ResourceType) string {
	if rt == schema.ResourceGroup {
		return "displayName"
	}
	return "userName"
}

func now() time.Time { return time.Now().UTC() }

// withTx runs fn inside a database transaction, so a mutation's resource update,
// membership diff, and version bump share one transaction.
func (s *Store) withTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}
