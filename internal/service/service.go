// Package service orchestrates a tenant's SCIM operations: validating and normalizing
// incoming documents (internal/normalize), applying PATCH operations (internal/patch),
// compiling and evaluating filters (internal/filter), and persisting through
// internal/store, then handing the result back to internal/api ready for
// internal/projection and internal/shaper to finish shaping into a response body. It is a
// thin struct wrapping the storage layer, translating between the wire-facing document
// shape and the persisted one, with no gin dependency of its own.
package service

import (
	"context"
	"strings"

	"github.com/scimbridge/tenant-scim/internal/config"
	"github.com/scimbridge/tenant-scim/internal/filter"
	"github.com/scimbridge/tenant-scim/internal/normalize"
	"github.com/scimbridge/tenant-scim/internal/password"
	"github.com/scimbridge/tenant-scim/internal/patch"
	"github.com/scimbridge/tenant-scim/internal/schema"
	"github.com/scimbridge/tenant-scim/internal/scimerr"
	"github.com/scimbridge/tenant-scim/internal/shaper"
	"github.com/scimbridge/tenant-scim/internal/store"
)

// ResourceStore is the subset of *store.Store this package depends on, narrowed to an
// interface so tests can substitute a fake without standing up a real database.
type ResourceStore interface {
	CreateResource(ctx context.Context, tenantID uint32, rt schema.ResourceType, doc map[string]interface{}) (*store.Resource, error)
	GetResource(ctx context.Context, tenantID uint32, rt schema.ResourceType, id string) (*store.Resource, error)
	UpdateResource(ctx context.Context, tenantID uint32, rt schema.ResourceType, id string, doc map[string]interface{}, expectedVersion int) (*store.Resource, error)
	DeleteResource(ctx context.Context, tenantID uint32, rt schema.ResourceType, id string, expectedVersion *int) error
	ListResources(ctx context.Context, tenantID uint32, rt schema.ResourceType, pred filter.Predicate, sort filter.SortSpec, startIndex, count int) ([]*store.Resource, int, error)
	FindByNaturalKey(ctx context.Context, tenantID uint32, rt schema.ResourceType, key string) (*store.Resource, error)

	CreateGroup(ctx context.Context, tenantID uint32, doc map[string]interface{}) (*store.Resource, error)
	UpdateGroup(ctx context.Context, tenantID uint32, id string, doc map[string]interface{}, expectedVersion int) (*store.Resource, error)
	GetGroup(ctx context.Context, tenantID uint32, id string) (*store.Resource, error)
	ListGroups(ctx context.Context, tenantID uint32, pred filter.Predicate, sort filter.SortSpec, startIndex, count int) ([]*store.Resource, int, error)
	GroupsForMember(ctx context.Context, tenantID uint32, memberID string) ([]store.GroupRef, error)
}

// Service is the tenant-scoped SCIM operation layer.
type Service struct {
	store  ResourceStore
	hasher *password.Manager
}

func New(st ResourceStore, hasher *password.Manager) *Service {
	return &Service{store: st, hasher: hasher}
}

// PatchConfig and ShaperConfig bundle the two derived compatibility views a request needs,
// so callers pass one struct instead of two.
type PatchConfig = patch.CompatibilityConfig
type ShaperConfig = shaper.Config

// PatchConfigFrom and ShaperConfigFrom translate a tenant's flat compatibility block into
// the narrower structs internal/patch and internal/shaper each expect.
func PatchConfigFrom(c config.CompatibilityConfig) PatchConfig {
	return PatchConfig{
		SupportPatchReplaceEmptyArray: c.SupportPatchReplaceEmptyArray,
		SupportPatchReplaceEmptyValue: c.SupportPatchReplaceEmptyValue,
	}
}

func ShaperConfigFrom(c config.CompatibilityConfig) ShaperConfig {
	return ShaperConfig{
		MetaDatetimeFormat:     c.MetaDatetimeFormat,
		ShowEmptyGroupsMembers: c.ShowEmptyGroupsMembers,
		IncludeUserGroups:      c.IncludeUserGroups,
	}
}

// Create validates raw and persists it as a new resource.
func (s *Service) Create(ctx context.Context, tenantID uint32, rt schema.ResourceType, raw map[string]interface{}) (*store.Resource, error) {
	result, err := normalize.Validate(raw, rt, nil, s.hasher.Hash)
	if err != nil {
		return nil, err
	}
	if rt == schema.ResourceGroup {
		return s.store.CreateGroup(ctx, tenantID, result.Orig)
	}
	return s.store.CreateResource(ctx, tenantID, rt, result.Orig)
}

// Get fetches a single resource, optionally attaching a User's derived "groups" attribute.
func (s *Service) Get(ctx context.Context, tenantID uint32, rt schema.ResourceType, id string, compat config.CompatibilityConfig) (*store.Resource, error) {
	var res *store.Resource
	var err error
	if rt == schema.ResourceGroup {
		res, err = s.store.GetGroup(ctx, tenantID, id)
	} else {
		res, err = s.store.GetResource(ctx, tenantID, rt, id)
	}
	if err != nil {
		return nil, err
	}
	if rt == schema.ResourceUser && compat.IncludeUserGroups {
		if err := s.attachUserGroups(ctx, tenantID, res); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// Replace implements PUT: full-document replacement under optimistic concurrency.
func (s *Service) Replace(ctx context.Context, tenantID uint32, rt schema.ResourceType, id string, raw map[string]interface{}, ifMatchVersion *int) (*store.Resource, error) {
	existing, err := s.rawGet(ctx, tenantID, rt, id)
	if err != nil {
		return nil, err
	}
	if err := checkIfMatch(existing.Version, ifMatchVersion); err != nil {
		return nil, err
	}

	result, err := normalize.Validate(raw, rt, existing.Data, s.hasher.Hash)
	if err != nil {
		return nil, err
	}
	if rt == schema.ResourceGroup {
		return s.store.UpdateGroup(ctx, tenantID, id, result.Orig, existing.Version)
	}
	return s.store.UpdateResource(ctx, tenantID, rt, id, result.Orig, existing.Version)
}

// Patch implements PATCH: apply every operation to the stored document, then re-validate
// and persist the result the same way Replace does.
func (s *Service) Patch(ctx context.Context, tenantID uint32, rt schema.ResourceType, id string, ops []patch.Operation, compat PatchConfig, ifMatchVersion *int) (*store.Resource, error) {
	existing, err := s.rawGet(ctx, tenantID, rt, id)
	if err != nil {
		return nil, err
	}
	if err := checkIfMatch(existing.Version, ifMatchVersion); err != nil {
		return nil, err
	}

	doc := existing.Data
	for _, op := range ops {
		if err := patch.Apply(doc, op, rt, compat); err != nil {
			return nil, err
		}
	}

	result, err := normalize.Validate(doc, rt, existing.Data, s.hasher.Hash)
	if err != nil {
		return nil, err
	}
	if rt == schema.ResourceGroup {
		return s.store.UpdateGroup(ctx, tenantID, id, result.Orig, existing.Version)
	}
	return s.store.UpdateResource(ctx, tenantID, rt, id, result.Orig, existing.Version)
}

// Delete removes a resource, honoring If-Match when the caller supplies one.
func (s *Service) Delete(ctx context.Context, tenantID uint32, rt schema.ResourceType, id string, ifMatchVersion *int) error {
	if ifMatchVersion != nil {
		existing, err := s.rawGet(ctx, tenantID, rt, id)
		if err != nil {
			return err
		}
		if err := checkIfMatch(existing.Version, ifMatchVersion); err != nil {
			return err
		}
	}
	return s.store.DeleteResource(ctx, tenantID, rt, id, ifMatchVersion)
}

// ListParams bundles a /Users or /Groups collection query's parameters.
type ListParams struct {
	Filter     string
	SortBy     string
	SortOrder  string
	StartIndex int
	Count      int
}

// List filters, sorts, and paginates a resource collection. compat gates whether a filter
// referencing "members" (on Groups) or "displayName" (in cross-resource filters) is
// accepted, via the support_group_members_filter/support_group_displayname_filter
// toggles: those attributes are rarely indexed efficiently by real directories, so a
// tenant can opt out of exposing them as filter targets even though the attributes
// themselves are still readable and writable normally.
func (s *Service) List(ctx context.Context, tenantID uint32, rt schema.ResourceType, params ListParams, compat config.CompatibilityConfig) ([]*store.Resource, int, error) {
	var pred filter.Predicate
	if strings.TrimSpace(params.Filter) != "" {
		if err := checkFilterCompatibility(params.Filter, rt, compat); err != nil {
			return nil, 0, err
		}
		f, err := filter.Parse(params.Filter)
		if err != nil {
			return nil, 0, scimerr.InvalidFilter(err.Error())
		}
		pred = filter.Compile(f, rt)
	}
	sortSpec := filter.SortSpecFromParams(params.SortBy, params.SortOrder)

	startIndex := params.StartIndex
	if startIndex < 1 {
		startIndex = 1
	}
	count := params.Count

	if rt == schema.ResourceGroup {
		return s.store.ListGroups(ctx, tenantID, pred, sortSpec, startIndex, count)
	}
	return s.store.ListResources(ctx, tenantID, rt, pred, sortSpec, startIndex, count)
}

func checkFilterCompatibility(raw string, rt schema.ResourceType, compat config.CompatibilityConfig) error {
	lower := strings.ToLower(raw)
	if rt == schema.ResourceGroup && !compat.SupportGroupMembersFilter && strings.Contains(lower, "members") {
		return scimerr.InvalidFilter("filtering on the members attribute is disabled for this tenant")
	}
	if !compat.SupportGroupDisplayNameFilter && strings.Contains(lower, "displayname") {
		return scimerr.InvalidFilter("filtering on displayName is disabled for this tenant")
	}
	return nil
}

func (s *Service) rawGet(ctx context.Context, tenantID uint32, rt schema.ResourceType, id string) (*store.Resource, error) {
	if rt == schema.ResourceGroup {
		return s.store.GetGroup(ctx, tenantID, id)
	}
	return s.store.GetResource(ctx, tenantID, rt, id)
}

func (s *Service) attachUserGroups(ctx context.Context, tenantID uint32, res *store.Resource) error {
	refs, err := s.store.GroupsForMember(ctx, tenantID, res.ID)
	if err != nil {
		return err
	}
	entries := make([]interface{}, 0, len(refs))
	for _, r := range refs {
		entry := map[string]interface{}{"value": r.ID, "type": "direct"}
		if r.Display != "" {
			entry["display"] = r.Display
		}
		entries = append(entries, entry)
	}
	res.Data["groups"] = entries
	return nil
}

// checkIfMatch enforces an If-Match precondition against the currently stored version.
func checkIfMatch(currentVersion int, ifMatchVersion *int) error {
	if ifMatchVersion == nil {
		return nil
	}
	if *ifMatchVersion != currentVersion {
		return scimerr.PreconditionFailed("resource has been modified since the supplied ETag was issued")
	}
	return nil
}
