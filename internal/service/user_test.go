package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soulst9/nestjs-practice/internal/cache"
	"github.com/soulst9/nestjs-practice/internal/model"
	"github.com/soulst9/nestjs-practice/internal/repository"
)

// memStore is a minimal in-memory cache.Store.
type memStore struct{ data map[string][]byte }

func newMemStore() *memStore { return &memStore{data: map[string][]byte{}} }

func (m *memStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	bs, ok := m.data[key]
	return bs, ok, nil
}

func (m *memStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *memStore) SetWithExpireAt(_ context.Context, key string, value []byte, _ time.Time) error {
	m.data[key] = value
	return nil
}

func (m *memStore) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

// memUsers is an in-memory userStore.
type memUsers struct {
	rows       map[uint64]*model.User
	nextID     uint64
	emailCalls int
	idCalls    int
}

func newMemUsers() *memUsers { return &memUsers{rows: map[uint64]*model.User{}, nextID: 1} }

func (m *memUsers) Create(_ context.Context, nu repository.NewUser) (*model.User, error) {
	for _, u := range m.rows {
		if u.Email == nu.Email && u.IsActive {
			return nil, repository.ErrEmailExists
		}
	}
	u := &model.User{
		ID: m.nextID, EmployeeID: nu.EmployeeID, Username: nu.Username, Email: nu.Email,
		PasswordHash: nu.PasswordHash, ExternalID: nu.ExternalID, AuthProvider: nu.AuthProvider,
		IsActive: true, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	m.rows[u.ID] = u
	m.nextID++
	return u, nil
}

func (m *memUsers) FindByID(_ context.Context, id uint64) (*model.User, error) {
	m.idCalls++
	return m.rows[id], nil
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*model.User, error) {
	m.emailCalls++
	for _, u := range m.rows {
		if u.Email == email && u.IsActive {
			return u, nil
		}
	}
	return nil, nil
}

func (m *memUsers) FindByExternalID(_ context.Context, ext string) (*model.User, error) {
	for _, u := range m.rows {
		if u.ExternalID == ext && u.IsActive {
			return u, nil
		}
	}
	return nil, nil
}

func (m *memUsers) Update(_ context.Context, id uint64, upd repository.UserUpdate) (*model.User, error) {
	u, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if upd.Username != nil {
		u.Username = *upd.Username
	}
	if upd.ExternalID != nil {
		u.ExternalID = *upd.ExternalID
	}
	if upd.AuthProvider != nil {
		u.AuthProvider = *upd.AuthProvider
	}
	if upd.IsActive != nil {
		u.IsActive = *upd.IsActive
	}
	return u, nil
}

func (m *memUsers) SoftDelete(_ context.Context, id uint64) error {
	u, ok := m.rows[id]
	if !ok || !u.IsActive {
		return repository.ErrNotFound
	}
	u.IsActive = false
	return nil
}

func (m *memUsers) Paginate(_ context.Context, q repository.PageQuery) (repository.Page[model.User], error) {
	var page repository.Page[model.User]
	for _, u := range m.rows {
		if u.IsActive {
			page.Items = append(page.Items, *u)
			page.Total++
		}
	}
	return page, nil
}

// memRoles is an in-memory roleStore.
type memRoles struct{ byUser map[uint64][]model.Role }

func newMemRoles() *memRoles { return &memRoles{byUser: map[uint64][]model.Role{}} }

func (m *memRoles) AddRole(_ context.Context, id uint64, r model.Role) error {
	m.byUser[id] = append(m.byUser[id], r)
	return nil
}

func (m *memRoles) RolesForUser(_ context.Context, id uint64) ([]model.Role, error) {
	return m.byUser[id], nil
}

func newUserService() (*UserService, *memUsers, *memRoles, *memStore) {
	users := newMemUsers()
	roles := newMemRoles()
	store := newMemStore()
	svc := NewUserService(users, roles, cache.NewAside[model.User](store, time.Hour))
	return svc, users, roles, store
}

func TestUserService_EmailLookupCached(t *testing.T) {
	svc, users, _, _ := newUserService()
	ctx := context.Background()

	_, err := svc.Create(ctx, repository.NewUser{Username: "alice", Email: "a@x.com", PasswordHash: "h"})
	require.NoError(t, err)

	// The create wrote through to the cache, so the lookup must not hit
	// the repository at all.
	got, err := svc.AuthUserByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "alice", got.Username)
	assert.Zero(t, users.emailCalls)
}

func TestUserService_MissingEmailNotCached(t *testing.T) {
	svc, users, _, store := newUserService()
	ctx := context.Background()

	got, err := svc.AuthUserByEmail(ctx, "nobody@x.com")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 1, users.emailCalls)
	assert.Empty(t, store.data, "null results must not create cache entries")

	// A second miss consults the repository again.
	_, err = svc.AuthUserByEmail(ctx, "nobody@x.com")
	require.NoError(t, err)
	assert.Equal(t, 2, users.emailCalls)
}

func TestUserService_InactiveUserHiddenFromAuth(t *testing.T) {
	svc, _, _, _ := newUserService()
	ctx := context.Background()

	u, err := svc.Create(ctx, repository.NewUser{Username: "bob", Email: "b@x.com", PasswordHash: "h"})
	require.NoError(t, err)
	require.NoError(t, svc.Deactivate(ctx, u.ID))

	got, err := svc.AuthUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUserService_DeactivateInvalidatesCache(t *testing.T) {
	svc, _, _, store := newUserService()
	ctx := context.Background()

	u, err := svc.Create(ctx, repository.NewUser{Username: "bob", Email: "b@x.com", PasswordHash: "h"})
	require.NoError(t, err)

	// Warm the id projection.
	_, err = svc.Profile(ctx, u.ID)
	require.NoError(t, err)
	assert.Contains(t, store.data, idKey(u.ID))

	require.NoError(t, svc.Deactivate(ctx, u.ID))
	assert.NotContains(t, store.data, idKey(u.ID))
	assert.NotContains(t, store.data, emailKey("b@x.com"))
}

func TestUserService_ResolveExternal_AttachesProvider(t *testing.T) {
	svc, _, _, _ := newUserService()
	ctx := context.Background()

	// Existing local account signs in through Okta for the first time.
	local, err := svc.Create(ctx, repository.NewUser{Username: "alice", Email: "a@x.com", PasswordHash: "h"})
	require.NoError(t, err)

	got, err := svc.ResolveExternal(ctx, ExternalIdentity{
		Sub: "okta|1", Email: "a@x.com", Username: "alice", PasswordHash: "ph",
		Provider: model.ProviderOkta,
	})
	require.NoError(t, err)
	assert.Equal(t, local.ID, got.ID)
	assert.Equal(t, model.ProviderOkta, got.AuthProvider)
}

func TestUserService_ResolveExternal_ProvisionsNewUser(t *testing.T) {
	svc, _, _, _ := newUserService()
	ctx := context.Background()

	got, err := svc.ResolveExternal(ctx, ExternalIdentity{
		Sub: "okta|2", Email: "new@x.com", Username: "newbie", PasswordHash: "ph",
		Provider: model.ProviderOkta,
	})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "new@x.com", got.Email)

	// Second login for the same subject resolves to the same account.
	again, err := svc.ResolveExternal(ctx, ExternalIdentity{
		Sub: "okta|2", Email: "new@x.com", Username: "newbie", PasswordHash: "other",
		Provider: model.ProviderOkta,
	})
	require.NoError(t, err)
	assert.Equal(t, got.ID, again.ID)
}

func TestUserService_GrantRoleVisibleInRoles(t *testing.T) {
	svc, _, _, _ := newUserService()
	ctx := context.Background()

	u, err := svc.Create(ctx, repository.NewUser{Username: "carol", Email: "c@x.com", PasswordHash: "h"})
	require.NoError(t, err)

	require.NoError(t, svc.GrantRole(ctx, u.ID, model.RoleMember))
	got, err := svc.Roles(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.Role{model.RoleMember}, got)
}

func TestUserService_ListExcludesDeactivated(t *testing.T) {
	svc, _, _, _ := newUserService()
	ctx := context.Background()

	a, err := svc.Create(ctx, repository.NewUser{Username: "alice", Email: "a@x.com", PasswordHash: "h"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, repository.NewUser{Username: "bob", Email: "b@x.com", PasswordHash: "h"})
	require.NoError(t, err)
	require.NoError(t, svc.Deactivate(ctx, a.ID))

	page, err := svc.List(ctx, repository.PageQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "bob", page.Items[0].Username)
}

func TestUserService_ProfileCarriesRoleNames(t *testing.T) {
	svc, _, roles, _ := newUserService()
	ctx := context.Background()

	u, err := svc.Create(ctx, repository.NewUser{Username: "alice", Email: "a@x.com", PasswordHash: "h", EmployeeID: "E1"})
	require.NoError(t, err)
	require.NoError(t, roles.AddRole(ctx, u.ID, model.RoleAdmin))

	p, err := svc.Profile(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "E1", p.EmployeeID)
	assert.Equal(t, []string{"ADMIN"}, p.Roles)
}
