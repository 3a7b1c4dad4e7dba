package service

import (
	"context"
	"fmt"

	"github.com/soulst9/nestjs-practice/internal/cache"
	"github.com/soulst9/nestjs-practice/internal/model"
	"github.com/soulst9/nestjs-practice/internal/repository"
)

// userStore is the slice of UserRepo the user service needs.
type userStore interface {
	Create(ctx context.Context, nu repository.NewUser) (*model.User, error)
	FindByID(ctx context.Context, id uint64) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByExternalID(ctx context.Context, externalID string) (*model.User, error)
	Update(ctx context.Context, id uint64, upd repository.UserUpdate) (*model.User, error)
	SoftDelete(ctx context.Context, id uint64) error
	Paginate(ctx context.Context, q repository.PageQuery) (repository.Page[model.User], error)
}

// roleStore is the slice of UserRoleRepo the user service needs.
type roleStore interface {
	AddRole(ctx context.Context, userID uint64, role model.Role) error
	RolesForUser(ctx context.Context, userID uint64) ([]model.Role, error)
}

// UserService implements the user-provider abstraction consumed by the
// auth service, plus the profile projection for /users/me.  Reads and
// writes go through the cache-aside wrapper: the repository is the source
// of truth, the cache a disposable projection keyed by id and by email.
type UserService struct {
	users userStore
	roles roleStore
	aside *cache.Aside[model.User]
}

// NewUserService wires the repositories and the cache-aside decorator.
func NewUserService(users userStore, roles roleStore, aside *cache.Aside[model.User]) *UserService {
	return &UserService{users: users, roles: roles, aside: aside}
}

func idKey(id uint64) string { return fmt.Sprintf("user:id:%d", id) }

func emailKey(email string) string { return "user:email:" + email }

// AuthUserByEmail resolves the active user owning email into the auth
// transfer shape.  Returns (nil, nil) when absent; no cache entry is
// written for misses.
func (s *UserService) AuthUserByEmail(ctx context.Context, email string) (*model.AuthUser, error) {
	u, err := s.aside.Find(ctx, emailKey(email), cache.Expiry{}, func(ctx context.Context) (*model.User, error) {
		return s.users.FindByEmail(ctx, email)
	})
	if err != nil || u == nil {
		return nil, err
	}
	av := u.AuthView()
	return &av, nil
}

// AuthUserByID resolves a user by id.  Inactive users are reported as
// absent to the auth core.
func (s *UserService) AuthUserByID(ctx context.Context, id uint64) (*model.AuthUser, error) {
	u, err := s.findByID(ctx, id)
	if err != nil || u == nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, nil
	}
	av := u.AuthView()
	return &av, nil
}

// Create inserts a user and populates the cache under its email key.
// Duplicate prevention is the caller's concern plus the unique index;
// the cache layer performs no existence check.
func (s *UserService) Create(ctx context.Context, nu repository.NewUser) (*model.AuthUser, error) {
	u, err := s.aside.Create(ctx, emailKey(nu.Email), cache.Expiry{}, func(ctx context.Context) (*model.User, error) {
		return s.users.Create(ctx, nu)
	})
	if err != nil {
		return nil, err
	}
	av := u.AuthView()
	return &av, nil
}

// ResolveExternal finds the local account for an external identity,
// creating one when this subject signs in for the first time.  Matching
// prefers the provider subject, then the verified email.
func (s *UserService) ResolveExternal(ctx context.Context, ext ExternalIdentity) (*model.AuthUser, error) {
	if u, err := s.users.FindByExternalID(ctx, ext.Sub); err != nil {
		return nil, err
	} else if u != nil {
		av := u.AuthView()
		return &av, nil
	}

	if u, err := s.users.FindByEmail(ctx, ext.Email); err != nil {
		return nil, err
	} else if u != nil {
		// Known email, first SSO login: attach the provider identity.
		updated, err := s.update(ctx, u.ID, u.Email, repository.UserUpdate{
			ExternalID:   &ext.Sub,
			AuthProvider: &ext.Provider,
		})
		if err != nil {
			return nil, err
		}
		av := updated.AuthView()
		return &av, nil
	}

	return s.Create(ctx, repository.NewUser{
		EmployeeID:   ext.Sub,
		Username:     ext.Username,
		Email:        ext.Email,
		PasswordHash: ext.PasswordHash,
		ExternalID:   ext.Sub,
		AuthProvider: ext.Provider,
	})
}

// Roles returns the distinct roles a user holds.
func (s *UserService) Roles(ctx context.Context, userID uint64) ([]model.Role, error) {
	return s.roles.RolesForUser(ctx, userID)
}

// GrantRole assigns a role to a user.
func (s *UserService) GrantRole(ctx context.Context, userID uint64, role model.Role) error {
	return s.roles.AddRole(ctx, userID, role)
}

// Profile is the projection returned by GET /users/me.
type Profile struct {
	ID           uint64             `json:"id"`
	EmployeeID   string             `json:"employeeID"`
	Username     string             `json:"username"`
	Email        string             `json:"email"`
	AuthProvider model.AuthProvider `json:"authProvider,omitempty"`
	Roles        []string           `json:"roles"`
}

// Profile returns the caller's own projected profile fields.  Returns
// (nil, nil) when the account no longer exists or was deactivated.
func (s *UserService) Profile(ctx context.Context, id uint64) (*Profile, error) {
	u, err := s.findByID(ctx, id)
	if err != nil || u == nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, nil
	}
	roles, err := s.roles.RolesForUser(ctx, id)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.Name())
	}
	return &Profile{
		ID:           u.ID,
		EmployeeID:   u.EmployeeID,
		Username:     u.Username,
		Email:        u.Email,
		AuthProvider: u.AuthProvider,
		Roles:        names,
	}, nil
}

// Deactivate soft-deletes the account and drops both cache projections.
func (s *UserService) Deactivate(ctx context.Context, id uint64) error {
	u, err := s.findByID(ctx, id)
	if err != nil {
		return err
	}
	if u == nil {
		return repository.ErrNotFound
	}
	if err := s.users.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.aside.Invalidate(ctx, idKey(id), emailKey(u.Email))
	return nil
}

// List pages through active users.
func (s *UserService) List(ctx context.Context, q repository.PageQuery) (repository.Page[model.User], error) {
	return s.users.Paginate(ctx, q)
}

func (s *UserService) findByID(ctx context.Context, id uint64) (*model.User, error) {
	return s.aside.Find(ctx, idKey(id), cache.Expiry{}, func(ctx context.Context) (*model.User, error) {
		return s.users.FindByID(ctx, id)
	})
}

// update applies upd through the cache-aside wrapper, refreshing the email
// projection and dropping the id projection.
func (s *UserService) update(ctx context.Context, id uint64, email string, upd repository.UserUpdate) (*model.User, error) {
	u, err := s.aside.Update(ctx, emailKey(email), cache.Expiry{}, func(ctx context.Context) (*model.User, error) {
		return s.users.Update(ctx, id, upd)
	})
	if err != nil {
		return nil, err
	}
	s.aside.Invalidate(ctx, idKey(id))
	return u, nil
}
