package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/scimbridge/tenant-scim/internal/config"
	"github.com/scimbridge/tenant-scim/internal/filter"
	"github.com/scimbridge/tenant-scim/internal/password"
	"github.com/scimbridge/tenant-scim/internal/patch"
	"github.com/scimbridge/tenant-scim/internal/schema"
	"github.com/scimbridge/tenant-scim/internal/scimerr"
	"github.com/scimbridge/tenant-scim/internal/store"
)

// fakeStore is an in-memory stand-in for *store.Store, just enough to drive the service
// layer's control flow without a database.
type fakeStore struct {
	users     map[string]*store.Resource
	groups    map[string]*store.Resource
	memberOf  map[string][]store.GroupRef
	nextIndex int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    map[string]*store.Resource{},
		groups:   map[string]*store.Resource{},
		memberOf: map[string][]store.GroupRef{},
	}
}

func (f *fakeStore) newID() string {
	f.nextIndex++
	return "id-" + string(rune('a'+f.nextIndex))
}

func (f *fakeStore) CreateResource(ctx context.Context, tenantID uint32, rt schema.ResourceType, doc map[string]interface{}) (*store.Resource, error) {
	id := f.newID()
	res := &store.Resource{ID: id, Version: 1, Data: doc}
	f.users[id] = res
	return res, nil
}

func (f *fakeStore) GetResource(ctx context.Context, tenantID uint32, rt schema.ResourceType, id string) (*store.Resource, error) {
	res, ok := f.users[id]
	if !ok {
		return nil, scimerr.NotFound("User " + id + " not found")
	}
	return res, nil
}

func (f *fakeStore) UpdateResource(ctx context.Context, tenantID uint32, rt schema.ResourceType, id string, doc map[string]interface{}, expectedVersion int) (*store.Resource, error) {
	existing, ok := f.users[id]
	if !ok {
		return nil, scimerr.NotFound("User " + id + " not found")
	}
	if existing.Version != expectedVersion {
		return nil, scimerr.PreconditionFailed("stale version")
	}
	updated := &store.Resource{ID: id, Version: expectedVersion + 1, Data: doc}
	f.users[id] = updated
	return updated, nil
}

func (f *fakeStore) DeleteResource(ctx context.Context, tenantID uint32, rt schema.ResourceType, id string, expectedVersion *int) error {
	if _, ok := f.users[id]; !ok {
		return scimerr.NotFound("User " + id + " not found")
	}
	delete(f.users, id)
	return nil
}

func (f *fakeStore) ListResources(ctx context.Context, tenantID uint32, rt schema.ResourceType, pred filter.Predicate, sort filter.SortSpec, startIndex, count int) ([]*store.Resource, int, error) {
	var out []*store.Resource
	for _, r := range f.users {
		out = append(out, r)
	}
	return out, len(out), nil
}

func (f *fakeStore) FindByNaturalKey(ctx context.Context, tenantID uint32, rt schema.ResourceType, key string) (*store.Resource, error) {
	return nil, scimerr.NotFound("User " + key + " not found")
}

func (f *fakeStore) CreateGroup(ctx context.Context, tenantID uint32, doc map[string]interface{}) (*store.Resource, error) {
	id := f.newID()
	res := &store.Resource{ID: id, Version: 1, Data: doc}
	f.groups[id] = res
	return res, nil
}

func (f *fakeStore) UpdateGroup(ctx context.Context, tenantID uint32, id string, doc map[string]interface{}, expectedVersion int) (*store.Resource, error) {
	existing, ok := f.groups[id]
	if !ok {
		return nil, scimerr.NotFound("Group " + id + " not found")
	}
	if existing.Version != expectedVersion {
		return nil, scimerr.PreconditionFailed("stale version")
	}
	updated := &store.Resource{ID: id, Version: expectedVersion + 1, Data: doc}
	f.groups[id] = updated
	return updated, nil
}

func (f *fakeStore) GetGroup(ctx context.Context, tenantID uint32, id string) (*store.Resource, error) {
	res, ok := f.groups[id]
	if !ok {
		return nil, scimerr.NotFound("Group " + id + " not found")
	}
	return res, nil
}

func (f *fakeStore) ListGroups(ctx context.Context, tenantID uint32, pred filter.Predicate, sort filter.SortSpec, startIndex, count int) ([]*store.Resource, int, error) {
	var out []*store.Resource
	for _, r := range f.groups {
		out = append(out, r)
	}
	return out, len(out), nil
}

func (f *fakeStore) GroupsForMember(ctx context.Context, tenantID uint32, memberID string) ([]store.GroupRef, error) {
	return f.memberOf[memberID], nil
}

// ServiceTestSuite drives Service against fakeStore, mirroring the shape of the store
// layer's tests without standing up a database.
type ServiceTestSuite struct {
	suite.Suite
	fs  *fakeStore
	svc *Service
}

func (s *ServiceTestSuite) SetupTest() {
	s.fs = newFakeStore()
	s.svc = New(s.fs, password.NewManager())
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceTestSuite))
}

func (s *ServiceTestSuite) TestCreateValidatesAndPersistsUser() {
	raw := map[string]interface{}{
		"schemas":  []interface{}{"urn:ietf:params:scim:schemas:core:2.0:User"},
		"userName": "alice@example.com",
	}
	res, err := s.svc.Create(context.Background(), 1, schema.ResourceUser, raw)
	s.Require().NoError(err)
	s.NotEmpty(res.ID, "expected an assigned ID")
	s.Equal("alice@example.com", res.Data["userName"])
}

func (s *ServiceTestSuite) TestReplaceEnforcesIfMatch() {
	created, err := s.svc.Create(context.Background(), 1, schema.ResourceUser, map[string]interface{}{
		"schemas":  []interface{}{"urn:ietf:params:scim:schemas:core:2.0:User"},
		"userName": "bob@example.com",
	})
	s.Require().NoError(err)

	stale := 999
	_, err = s.svc.Replace(context.Background(), 1, schema.ResourceUser, created.ID, map[string]interface{}{
		"schemas":  []interface{}{"urn:ietf:params:scim:schemas:core:2.0:User"},
		"userName": "bob2@example.com",
	}, &stale)
	scimErr, ok := scimerr.As(err)
	s.Require().True(ok, "expected a *scimerr.Error, got %v", err)
	s.Equal(412, scimErr.Status)
}

func (s *ServiceTestSuite) TestPatchAppliesOperationThenPersists() {
	created, err := s.svc.Create(context.Background(), 1, schema.ResourceUser, map[string]interface{}{
		"schemas":  []interface{}{"urn:ietf:params:scim:schemas:core:2.0:User"},
		"userName": "carol@example.com",
		"active":   true,
	})
	s.Require().NoError(err)

	ops := []patch.Operation{{Op: "replace", Path: "active", Value: false}}
	updated, err := s.svc.Patch(context.Background(), 1, schema.ResourceUser, created.ID, ops, patch.DefaultCompatibilityConfig(), nil)
	s.Require().NoError(err)
	s.Equal(false, updated.Data["active"])
}

func (s *ServiceTestSuite) TestListRejectsDisabledMembersFilter() {
	compat := config.DefaultCompatibilityConfig()
	compat.SupportGroupMembersFilter = false

	_, _, err := s.svc.List(context.Background(), 1, schema.ResourceGroup, ListParams{Filter: `members eq "u1"`}, compat)
	scimErr, ok := scimerr.As(err)
	s.Require().True(ok, "expected a *scimerr.Error, got %v", err)
	s.Equal(400, scimErr.Status)
}

func (s *ServiceTestSuite) TestGetAttachesUserGroupsWhenEnabled() {
	created, err := s.svc.Create(context.Background(), 1, schema.ResourceUser, map[string]interface{}{
		"schemas":  []interface{}{"urn:ietf:params:scim:schemas:core:2.0:User"},
		"userName": "dave@example.com",
	})
	s.Require().NoError(err)
	s.fs.memberOf[created.ID] = []store.GroupRef{{ID: "g1", Display: "Engineering"}}

	compat := config.DefaultCompatibilityConfig()
	res, err := s.svc.Get(context.Background(), 1, schema.ResourceUser, created.ID, compat)
	s.Require().NoError(err)
	groups, ok := res.Data["groups"].([]interface{})
	s.Require().True(ok)
	s.Len(groups, 1)
}
