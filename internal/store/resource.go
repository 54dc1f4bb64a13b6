package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scimbridge/tenant-scim/internal/filter"
	"github.com/scimbridge/tenant-scim/internal/normalize"
	"github.com/scimbridge/tenant-scim/internal/schema"
	"github.com/scimbridge/tenant-scim/internal/scimerr"
)

// CreateResource inserts doc as a new row in tenantID's table for rt, generating an id,
// stamping meta, and computing the normalized document stored alongside the original.
// doc is expected to have already passed through normalize.Validate; CreateResource only
// owns persistence-layer concerns (id assignment, natural-key uniqueness, meta, storage).
func (s *Store) CreateResource(ctx context.Context, tenantID uint32, rt schema.ResourceType, doc map[string]interface{}) (*Resource, error) {
	if err := s.EnsureTenantTables(ctx, tenantID); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	doc["id"] = id
	createdAt := now()
	applyMeta(doc, rt, 1, createdAt, createdAt)

	naturalKey, ok := stringField(doc, naturalKeyField(rt))
	if !ok || naturalKey == "" {
		return nil, scimerr.InvalidValue(fmt.Sprintf("%s is required", naturalKeyField(rt)))
	}
	externalID, _ := stringField(doc, "externalId")

	origJSON, normJSON, err := encodeDocument(doc, rt)
	if err != nil {
		return nil, scimerr.Internal("failed to encode resource", err)
	}

	table := tableFor(tenantID, rt)
	var externalIDArg interface{}
	if externalID != "" {
		externalIDArg = externalID
	}
	err = s.db.WithContext(ctx).Exec(
		fmt.Sprintf(`INSERT INTO %s (id, external_id, natural_key, data_orig, data_norm, version, created_at, updated_at) VALUES (?,?,?,?,?,?,?,?)`, table),
		id, externalIDArg, naturalKey, origJSON, normJSON, 1, createdAt, createdAt,
	).Error
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, scimerr.Conflict(fmt.Sprintf("a resource with this %s already exists", naturalKeyField(rt)))
		}
		return nil, scimerr.Internal("failed to create resource", err)
	}

	return &Resource{ID: id, ExternalID: nonEmptyPtr(externalID), Version: 1, CreatedAt: createdAt, UpdatedAt: createdAt, Data: doc}, nil
}

// GetResource fetches a single resource by id, returning scimerr.NotFound if it doesn't
// exist in tenantID's table.
func (s *Store) GetResource(ctx context.Context, tenantID uint32, rt schema.ResourceType, id string) (*Resource, error) {
	if err := s.EnsureTenantTables(ctx, tenantID); err != nil {
		return nil, err
	}
	table := tableFor(tenantID, rt)
	row := s.db.WithContext(ctx).Raw(
		fmt.Sprintf(`SELECT external_id, data_orig, version, created_at, updated_at FROM %s WHERE id = ?`, table), id,
	).Row()

	var extID sql.NullString
	var origJSON string
	var res Resource
	if err := row.Scan(&extID, &origJSON, &res.Version, &res.CreatedAt, &res.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, scimerr.NotFound(fmt.Sprintf("resource %q not found", id))
		}
		return nil, scimerr.Internal("failed to read resource", err)
	}

	doc, err := decodeDocument(origJSON)
	if err != nil {
		return nil, scimerr.Internal("failed to decode stored resource", err)
	}
	res.ID = id
	res.Data = doc
	if extID.Valid {
		res.ExternalID = &extID.String
	}
	return &res, nil
}

// UpdateResource replaces a resource's document under optimistic concurrency: the write
// only succeeds if the row is still at expectedVersion, via an
// "UPDATE ... WHERE id=? AND version=?" statement.
func (s *Store) UpdateResource(ctx context.Context, tenantID uint32, rt schema.ResourceType, id string, doc map[string]interface{}, expectedVersion int) (*Resource, error) {
	if err := s.EnsureTenantTables(ctx, tenantID); err != nil {
		return nil, err
	}
	table := tableFor(tenantID, rt)

	var createdAt time.Time
	row := s.db.WithContext(ctx).Raw(fmt.Sprintf(`SELECT created_at FROM %s WHERE id = ?`, table), id).Row()
	if err := row.Scan(&createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, scimerr.NotFound(fmt.Sprintf("resource %q not found", id))
		}
		return nil, scimerr.Internal("failed to read resource", err)
	}

	doc["id"] = id
	updatedAt := now()
	newVersion := expectedVersion + 1
	applyMeta(doc, rt, newVersion, createdAt, updatedAt)

	naturalKey, ok := stringField(doc, naturalKeyField(rt))
	if !ok || naturalKey == "" {
		return nil, scimerr.InvalidValue(fmt.Sprintf("%s is required", naturalKeyField(rt)))
	}
	externalID, _ := stringField(doc, "externalId")

	origJSON, normJSON, err := encodeDocument(doc, rt)
	if err != nil {
		return nil, scimerr.Internal("failed to encode resource", err)
	}

	var externalIDArg interface{}
	if externalID != "" {
		externalIDArg = externalID
	}
	result := s.db.WithContext(ctx).Exec(
		fmt.Sprintf(`UPDATE %s SET external_id=?, natural_key=?, data_orig=?, data_norm=?, version=?, updated_at=? WHERE id=? AND version=?`, table),
		externalIDArg, naturalKey, origJSON, normJSON, newVersion, updatedAt, id, expectedVersion,
	)
	if result.Error != nil {
		if isUniqueConstraintError(result.Error) {
			return nil, scimerr.Conflict(fmt.Sprintf("a resource with this %s already exists", naturalKeyField(rt)))
		}
		return nil, scimerr.Internal("failed to update resource", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, scimerr.PreconditionFailed("resource was modified by another request")
	}

	return &Resource{ID: id, ExternalID: nonEmptyPtr(externalID), Version: newVersion, CreatedAt: createdAt, UpdatedAt: updatedAt, Data: doc}, nil
}

// DeleteResource removes a resource. When expectedVersion is non-nil the delete is
// version-gated the same way UpdateResource is; a nil expectedVersion deletes
// unconditionally.
func (s *Store) DeleteResource(ctx context.Context, tenantID uint32, rt schema.ResourceType, id string, expectedVersion *int) error {
	if err := s.EnsureTenantTables(ctx, tenantID); err != nil {
		return err
	}
	table := tableFor(tenantID, rt)

	if expectedVersion == nil {
		result := s.db.WithContext(ctx).Exec(fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, table), id)
		if result.Error != nil {
			return scimerr.Internal("failed to delete resource", result.Error)
		}
		if result.RowsAffected == 0 {
			return scimerr.NotFound(fmt.Sprintf("resource %q not found", id))
		}
		return nil
	}

	var existsVersion int
	row := s.db.WithContext(ctx).Raw(fmt.Sprintf(`SELECT version FROM %s WHERE id = ?`, table), id).Row()
	if err := row.Scan(&existsVersion); err != nil {
		if err == sql.ErrNoRows {
			return scimerr.NotFound(fmt.Sprintf("resource %q not found", id))
		}
		return scimerr.Internal("failed to read resource", err)
	}

	result := s.db.WithContext(ctx).Exec(fmt.Sprintf(`DELETE FROM %s WHERE id = ? AND version = ?`, table), id, *expectedVersion)
	if result.Error != nil {
		return scimerr.Internal("failed to delete resource", result.Error)
	}
	if result.RowsAffected == 0 {
		return scimerr.PreconditionFailed("resource was modified by another request")
	}
	return nil
}

// FindByNaturalKey looks a resource up by its case-insensitive natural key (userName for
// Users, displayName for Groups), used both for pre-write uniqueness checks and for
// SCIM clients that address a resource by name instead of id.
func (s *Store) FindByNaturalKey(ctx context.Context, tenantID uint32, rt schema.ResourceType, key string) (*Resource, error) {
	if err := s.EnsureTenantTables(ctx, tenantID); err != nil {
		return nil, err
	}
	table := tableFor(tenantID, rt)
	row := s.db.WithContext(ctx).Raw(
		fmt.Sprintf(`SELECT id, external_id, data_orig, version, created_at, updated_at FROM %s WHERE lower(natural_key) = lower(?)`, table), key,
	).Row()

	var id string
	var extID sql.NullString
	var origJSON string
	var res Resource
	if err := row.Scan(&id, &extID, &origJSON, &res.Version, &res.CreatedAt, &res.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, scimerr.NotFound(fmt.Sprintf("no resource with %s %q", naturalKeyField(rt), key))
		}
		return nil, scimerr.Internal("failed to read resource", err)
	}
	doc, err := decodeDocument(origJSON)
	if err != nil {
		return nil, scimerr.Internal("failed to decode stored resource", err)
	}
	res.ID = id
	res.Data = doc
	if extID.Valid {
		res.ExternalID = &extID.String
	}
	return &res, nil
}

// ListResources scans every row of tenantID's table for rt, evaluates pred against each
// row's decoded documents, sorts the matches, and returns the page [startIndex, startIndex
// +count) (1-based, per SCIM convention) alongside the total match count. A full scan is
// acceptable given the "no full-text search, no clustering" scope this store targets.
func (s *Store) ListResources(ctx context.Context, tenantID uint32, rt schema.ResourceType, pred filter.Predicate, sort filter.SortSpec, startIndex, count int) ([]*Resource, int, error) {
	if err := s.EnsureTenantTables(ctx, tenantID); err != nil {
		return nil, 0, err
	}
	table := tableFor(tenantID, rt)
	rows, err := s.db.WithContext(ctx).Raw(
		fmt.Sprintf(`SELECT id, external_id, data_orig, data_norm, version, created_at, updated_at FROM %s`, table),
	).Rows()
	if err != nil {
		return nil, 0, scimerr.Internal("failed to list resources", err)
	}
	defer rows.Close()

	var matches []struct {
		res  *Resource
		norm map[string]interface{}
	}
	for rows.Next() {
		var id string
		var extID sql.NullString
		var origJSON, normJSON string
		var res Resource
		if err := rows.Scan(&id, &extID, &origJSON, &normJSON, &res.Version, &res.CreatedAt, &res.UpdatedAt); err != nil {
			return nil, 0, scimerr.Internal("failed to scan resource row", err)
		}
		orig, err := decodeDocument(origJSON)
		if err != nil {
			return nil, 0, scimerr.Internal("failed to decode stored resource", err)
		}
		norm, err := decodeDocument(normJSON)
		if err != nil {
			return nil, 0, scimerr.Internal("failed to decode stored resource", err)
		}
		if pred != nil {
			ok, err := pred(orig, norm)
			if err != nil {
				return nil, 0, scimerr.InvalidFilter(err.Error())
			}
			if !ok {
				continue
			}
		}
		res.ID = id
		res.Data = orig
		if extID.Valid {
			res.ExternalID = &extID.String
		}
		matches = append(matches, struct {
			res  *Resource
			norm map[string]interface{}
		}{res: &res, norm: norm})
	}
	if err := rows.Err(); err != nil {
		return nil, 0, scimerr.Internal("failed to list resources", err)
	}

	sortCandidates(matches, sort, rt)

	total := len(matches)
	start := startIndex - 1
	if start < 0 {
		start = 0
	}
	if start > total {
		start = total
	}
	end := start + count
	if count <= 0 {
		end = start
	}
	if end > total {
		end = total
	}

	out := make([]*Resource, 0, end-start)
	for _, c := range matches[start:end] {
		out = append(out, c.res)
	}
	return out, total, nil
}

func nonEmptyPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func encodeDocument(doc map[string]interface{}, rt schema.ResourceType) (origJSON, normJSON string, err error) {
	orig, err := json.Marshal(doc)
	if err != nil {
		return "", "", err
	}
	norm, err := json.Marshal(normalize.Document(doc, rt))
	if err != nil {
		return "", "", err
	}
	return string(orig), string(norm), nil
}

func decodeDocument(raw string) (map[string]interface{}, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// sortCandidates orders matches in place by spec.Attribute, breaking ties on id. Absent
// values sort last ascending, first descending. Case-exact attributes (id, externalId) sort
// against the original-cased document rather than the normalized one, and compare without
// lowercasing, the same case rule internal/filter/compiler.go's evaluateComparison applies.
func sortCandidates(matches []struct {
	res  *Resource
	norm map[string]interface{}
}, spec filter.SortSpec, rt schema.ResourceType) {
	if spec.Attribute == "" {
		return
	}
	segments := strings.Split(spec.Attribute, ".")
	caseExact := schema.IsCaseExactFieldForResource(spec.Attribute, rt)
	sort.SliceStable(matches, func(i, j int) bool {
		docI, docJ := matches[i].norm, matches[j].norm
		if caseExact {
			docI, docJ = matches[i].res.Data, matches[j].res.Data
		}
		vi, presentI := navigate(docI, segments)
		vj, presentJ := navigate(docJ, segments)
		if !presentI && !presentJ {
			return matches[i].res.ID < matches[j].res.ID
		}
		if !presentI {
			return spec.Order == filter.Descending
		}
		if !presentJ {
			return spec.Order != filter.Descending
		}
		cmp := compareValues(vi, vj, caseExact)
		if cmp == 0 {
			return matches[i].res.ID < matches[j].res.ID
		}
		if spec.Order == filter.Descending {
			return cmp > 0
		}
		return cmp < 0
	})
}

func navigate(doc map[string]interface{}, segments []string) (interface{}, bool) {
	var cur interface{} = doc
	for _, seg := range segments {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		v, found := lookupCaseInsensitive(m, seg)
		if !found {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func lookupCaseInsensitive(m map[string]interface{}, name string) (interface{}, bool) {
	for k, v := range m {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

func compareValues(a, b interface{}, caseExact bool) int {
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		if caseExact {
			return strings.Compare(as, bs)
		}
		return strings.Compare(strings.ToLower(as), strings.ToLower(bs))
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
