package store

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/gorm"

	"github.com/scimbridge/tenant-scim/internal/filter"
	"github.com/scimbridge/tenant-scim/internal/schema"
	"github.com/scimbridge/tenant-scim/internal/scimerr"
)

// members is never persisted inside a Group's data_orig column; it is always derived from
// the group_memberships join table. extractMembers pulls the caller-supplied members out
// of doc (if present) and returns doc with the key removed.
func extractMembers(doc map[string]interface{}) []Member {
	raw, ok := doc["members"]
	delete(doc, "members")
	if !ok {
		return nil
	}
	arr, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	members := make([]Member, 0, len(arr))
	for _, item := range arr {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		id, _ := stringField(m, "value")
		typ, ok := stringField(m, "type")
		if !ok || typ == "" {
			typ = "User"
		}
		if id != "" {
			members = append(members, Member{ID: id, Type: typ})
		}
	}
	return members
}

// CreateGroup creates a Group resource and its initial membership rows in one transaction.
func (s *Store) CreateGroup(ctx context.Context, tenantID uint32, doc map[string]interface{}) (*Resource, error) {
	if err := s.EnsureTenantTables(ctx, tenantID); err != nil {
		return nil, err
	}
	desired := extractMembers(doc)

	res, err := s.CreateResource(ctx, tenantID, schema.ResourceGroup, doc)
	if err != nil {
		return nil, err
	}
	if err := s.replaceMemberships(ctx, tenantID, res.ID, desired); err != nil {
		return nil, err
	}
	return s.rehydrateGroup(ctx, tenantID, res)
}

// UpdateGroup replaces a Group's document and diffs its membership against the incoming
// members list, both under the same optimistic-concurrency guard UpdateResource enforces.
func (s *Store) UpdateGroup(ctx context.Context, tenantID uint32, id string, doc map[string]interface{}, expectedVersion int) (*Resource, error) {
	if err := s.EnsureTenantTables(ctx, tenantID); err != nil {
		return nil, err
	}
	desired := extractMembers(doc)

	res, err := s.UpdateResource(ctx, tenantID, schema.ResourceGroup, id, doc, expectedVersion)
	if err != nil {
		return nil, err
	}
	if err := s.replaceMemberships(ctx, tenantID, id, desired); err != nil {
		return nil, err
	}
	return s.rehydrateGroup(ctx, tenantID, res)
}

// GetGroup fetches a Group and rehydrates its members from the membership table.
func (s *Store) GetGroup(ctx context.Context, tenantID uint32, id string) (*Resource, error) {
	res, err := s.GetResource(ctx, tenantID, schema.ResourceGroup, id)
	if err != nil {
		return nil, err
	}
	return s.rehydrateGroup(ctx, tenantID, res)
}

// ListGroups lists Groups the same way ListResources does, then rehydrates members onto
// each page's results (never onto the full match set, since only the returned page needs
// the extra joins).
func (s *Store) ListGroups(ctx context.Context, tenantID uint32, pred filter.Predicate, sortSpec filter.SortSpec, startIndex, count int) ([]*Resource, int, error) {
	page, total, err := s.ListResources(ctx, tenantID, schema.ResourceGroup, pred, sortSpec, startIndex, count)
	if err != nil {
		return nil, 0, err
	}
	for _, res := range page {
		if _, err := s.rehydrateGroup(ctx, tenantID, res); err != nil {
			return nil, 0, err
		}
	}
	return page, total, nil
}

// replaceMemberships computes the symmetric difference between desired and the group's
// currently stored memberships and applies the inserts/deletes inside one transaction.
func (s *Store) replaceMemberships(ctx context.Context, tenantID uint32, groupID string, desired []Member) error {
	_, _, membershipsTable := tableNames(tenantID)
	current, err := s.membershipsFor(ctx, tenantID, groupID)
	if err != nil {
		return err
	}

	currentSet := make(map[Member]bool, len(current))
	for _, m := range current {
		currentSet[m] = true
	}
	desiredSet := make(map[Member]bool, len(desired))
	for _, m := range desired {
		desiredSet[m] = true
	}

	return s.withTx(ctx, func(tx *gorm.DB) error {
		for m := range desiredSet {
			if currentSet[m] {
				continue
			}
			if err := tx.Exec(
				fmt.Sprintf(`INSERT INTO %s (group_id, member_id, member_type) VALUES (?,?,?)`, membershipsTable),
				groupID, m.ID, m.Type,
			).Error; err != nil {
				return scimerr.Internal("failed to add group member", err)
			}
		}
		for m := range currentSet {
			if desiredSet[m] {
				continue
			}
			if err := tx.Exec(
				fmt.Sprintf(`DELETE FROM %s WHERE group_id = ? AND member_id = ? AND member_type = ?`, membershipsTable),
				groupID, m.ID, m.Type,
			).Error; err != nil {
				return scimerr.Internal("failed to remove group member", err)
			}
		}
		return nil
	})
}

// membershipsFor returns groupID's current members.
func (s *Store) membershipsFor(ctx context.Context, tenantID uint32, groupID string) ([]Member, error) {
	_, _, membershipsTable := tableNames(tenantID)
	rows, err := s.db.WithContext(ctx).Raw(
		fmt.Sprintf(`SELECT member_id, member_type FROM %s WHERE group_id = ?`, membershipsTable), groupID,
	).Rows()
	if err != nil {
		return nil, scimerr.Internal("failed to read group memberships", err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.Type); err != nil {
			return nil, scimerr.Internal("failed to scan group membership", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// groupsWithMemberID finds every group a resource (User or Group) belongs to, used to
// answer a User's "groups" attribute under the include_user_groups compatibility toggle.
func (s *Store) groupsWithMemberID(ctx context.Context, tenantID uint32, memberID string) ([]string, error) {
	_, _, membershipsTable := tableNames(tenantID)
	rows, err := s.db.WithContext(ctx).Raw(
		fmt.Sprintf(`SELECT group_id FROM %s WHERE member_id = ?`, membershipsTable), memberID,
	).Rows()
	if err != nil {
		return nil, scimerr.Internal("failed to read group memberships", err)
	}
	defer rows.Close()

	var groupIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, scimerr.Internal("failed to scan group membership", err)
		}
		groupIDs = append(groupIDs, id)
	}
	return groupIDs, rows.Err()
}

// GroupRef is one entry of a User's derived "groups" attribute.
type GroupRef struct {
	ID      string
	Display string
}

// GroupsForMember lists the groups memberID (typically a User's id) belongs to, with each
// group's displayName resolved, for the compatibility.include_user_groups toggle.
func (s *Store) GroupsForMember(ctx context.Context, tenantID uint32, memberID string) ([]GroupRef, error) {
	ids, err := s.groupsWithMemberID(ctx, tenantID, memberID)
	if err != nil {
		return nil, err
	}
	refs := make([]GroupRef, 0, len(ids))
	for _, id := range ids {
		display, _ := s.resolveDisplayName(ctx, tenantID, Member{ID: id, Type: "Group"})
		refs = append(refs, GroupRef{ID: id, Display: display})
	}
	return refs, nil
}

// rehydrateGroup joins res's memberships back onto its document, resolving each member's
// display name from the users or groups table it belongs to.
func (s *Store) rehydrateGroup(ctx context.Context, tenantID uint32, res *Resource) (*Resource, error) {
	members, err := s.membershipsFor(ctx, tenantID, res.ID)
	if err != nil {
		return nil, err
	}
	entries := make([]interface{}, 0, len(members))
	for _, m := range members {
		display, _ := s.resolveDisplayName(ctx, tenantID, m)
		entry := map[string]interface{}{
			"value": m.ID,
			"type":  m.Type,
			"$ref":  "",
		}
		if display != "" {
			entry["display"] = display
		}
		entries = append(entries, entry)
	}
	if len(entries) > 0 {
		res.Data["members"] = entries
	}
	return res, nil
}

// resolveDisplayName looks up m's display name (userName for Users, displayName for
// Groups) for member rehydration; a lookup failure is non-fatal, since a dangling
// membership row should not break reading the group.
func (s *Store) resolveDisplayName(ctx context.Context, tenantID uint32, m Member) (string, error) {
	rt := schema.ResourceUser
	if m.Type == "Group" {
		rt = schema.ResourceGroup
	}
	table := tableFor(tenantID, rt)
	row := s.db.WithContext(ctx).Raw(fmt.Sprintf(`SELECT natural_key FROM %s WHERE id = ?`, table), m.ID).Row()
	var key string
	if err := row.Scan(&key); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return key, nil
}
