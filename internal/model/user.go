package model

import "time"

// AuthProvider tags how an account authenticates. Local credential accounts
// leave it empty; SSO accounts record which provider vouched for them.
type AuthProvider string

const (
	ProviderGoogle AuthProvider = "google"
	ProviderOkta   AuthProvider = "okta"
	ProviderOther  AuthProvider = "other"
)

// User represents an application user record as stored in the `users`
// table.  Each field corresponds to a column.  The json tags are omitted
// because these structs are used internally by the repository layer;
// handlers define separate response types with their own JSON shapes.
//
// Invariants: Email is unique among active users, and PasswordHash always
// holds a bcrypt digest, never plaintext.  SSO accounts carry a random
// placeholder hash that no password verifies against.
type User struct {
	ID           uint64       // users.id
	EmployeeID   string       // users.employee_id (unique business identifier)
	Username     string       // users.username
	Email        string       // users.email (unique among active users)
	PasswordHash string       // users.password_hash
	IsActive     bool         // users.is_active
	ExternalID   string       // users.external_id (provider subject, may be empty)
	AuthProvider AuthProvider // users.auth_provider (may be empty for local accounts)
	CreatedAt    time.Time    // users.created_at
	UpdatedAt    time.Time    // users.updated_at
}

// Role is the numeric role enum stored in user_roles.role.  Values leave
// gaps so new tiers can slot in without renumbering.
type Role int

const (
	RoleMember Role = 100
	RoleAdmin  Role = 150
)

// Name returns the human-readable role name used in configuration and
// in token claims debugging. Unknown values map to "UNKNOWN".
func (r Role) Name() string {
	switch r {
	case RoleMember:
		return "MEMBER"
	case RoleAdmin:
		return "ADMIN"
	}
	return "UNKNOWN"
}

// RoleByName resolves a role name back to its enum value. The second
// return reports whether the name was recognized.
func RoleByName(name string) (Role, bool) {
	switch name {
	case "MEMBER":
		return RoleMember, true
	case "ADMIN":
		return RoleAdmin, true
	}
	return 0, false
}

// UserRole models a row in the `user_roles` association table.  A user may
// hold several roles; the schema does not enforce uniqueness per (user,
// role) pair, so readers must tolerate duplicates.
type UserRole struct {
	ID        uint64    // user_roles.id
	UserID    uint64    // user_roles.user_id
	Role      Role      // user_roles.role
	CreatedAt time.Time // user_roles.created_at
}

// AuthUser is the minimal identity projection the auth core consumes.  It
// decouples token issuance and credential checks from the persistence
// schema: the auth service never sees a full User.
type AuthUser struct {
	ID           uint64
	Username     string
	Email        string
	PasswordHash string
	AuthProvider AuthProvider
	IsActive     bool
}

// AuthView projects a persisted User into the transfer shape consumed by
// the auth core.
func (u User) AuthView() AuthUser {
	return AuthUser{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		AuthProvider: u.AuthProvider,
		IsActive:     u.IsActive,
	}
}

// RefreshToken models an entry in the `refresh_tokens` table.  Each
// refresh token belongs to a user and contains metadata for expiry and
// revocation.  The plain token is not stored; only its SHA-256 hash.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
