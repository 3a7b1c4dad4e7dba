package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/soulst9/nestjs-practice/internal/model"
	"github.com/soulst9/nestjs-practice/internal/oidc"
	"github.com/soulst9/nestjs-practice/internal/repository"
	"github.com/soulst9/nestjs-practice/internal/token"
	"github.com/soulst9/nestjs-practice/internal/utils"
)

// UserProvider abstracts user resolution and provisioning for the auth
// core.  The auth service never depends on the persistence schema; it
// deals only in model.AuthUser projections.
type UserProvider interface {
	AuthUserByEmail(ctx context.Context, email string) (*model.AuthUser, error)
	AuthUserByID(ctx context.Context, id uint64) (*model.AuthUser, error)
	Create(ctx context.Context, nu repository.NewUser) (*model.AuthUser, error)
	ResolveExternal(ctx context.Context, ext ExternalIdentity) (*model.AuthUser, error)
	Roles(ctx context.Context, userID uint64) ([]model.Role, error)
}

// TokenIssuer is the slice of token.Service the auth flows use.
type TokenIssuer interface {
	Generate(u model.AuthUser, roles []model.Role) (token.Set, error)
	GenerateAccess(u model.AuthUser, roles []model.Role) (string, error)
	VerifyRefresh(raw string) (*token.RefreshClaims, error)
}

// OktaAuthenticator is the slice of the OIDC client the SSO flow uses.
type OktaAuthenticator interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oidc.Tokens, error)
	UserInfo(ctx context.Context, accessToken string) (*oidc.UserInfo, error)
}

// RefreshStore records issued refresh tokens (hashed) so logout can revoke
// them before their JWT expiry.
type RefreshStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
}

// EventSink receives auth audit events.  Implementations must never block
// the request path; publish failures are the sink's problem.
type EventSink interface {
	Publish(ctx context.Context, ev AuthEvent)
}

// AuthEvent is one audit record emitted after a completed flow.
type AuthEvent struct {
	Type   string `json:"type"` // "signup", "signin", "okta_login", "logout"
	UserID uint64 `json:"user_id"`
	Email  string `json:"email"`
}

// ExternalIdentity carries the provider claims needed to resolve or
// provision a local account.
type ExternalIdentity struct {
	Sub          string
	Email        string
	Username     string
	PasswordHash string // random placeholder for provisioned accounts
	Provider     model.AuthProvider
}

// SignupInput is the validated signup payload.  Provider and ExternalID
// are optional; they pre-link a local account to an external identity.
type SignupInput struct {
	Username   string
	Email      string
	Password   string
	EmployeeID string
	Provider   model.AuthProvider
	ExternalID string
}

// AuthService orchestrates signup, signin, refresh, SSO login and logout.
// Each flow is a single-pass sequence with defined failure exits; there is
// no persistent state machine.
type AuthService struct {
	users         UserProvider
	tokens        TokenIssuer
	okta          OktaAuthenticator
	refreshStore  RefreshStore
	events        EventSink
	bcryptCost    int
	refreshTTL    time.Duration
	requiredRoles []model.Role // SSO role gate; empty disables it
}

// NewAuthService wires the auth orchestration.  events may be nil when no
// audit sink is configured.  requiredRoleNames is resolved against the
// role enum; unknown names are ignored with a warning.
func NewAuthService(users UserProvider, tokens TokenIssuer, okta OktaAuthenticator,
	refreshStore RefreshStore, events EventSink, bcryptCost int, refreshTTL time.Duration,
	requiredRoleNames []string) *AuthService {

	var required []model.Role
	for _, name := range requiredRoleNames {
		r, ok := model.RoleByName(name)
		if !ok {
			log.Printf("auth: ignoring unknown required role %q", name)
			continue
		}
		required = append(required, r)
	}
	return &AuthService{
		users:         users,
		tokens:        tokens,
		okta:          okta,
		refreshStore:  refreshStore,
		events:        events,
		bcryptCost:    bcryptCost,
		refreshTTL:    refreshTTL,
		requiredRoles: required,
	}
}

// Signup registers a local-credential user and issues a token set with an
// empty role list.  ErrConflict when the email already resolves to an
// active user.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (token.Set, *model.AuthUser, error) {
	existing, err := s.users.AuthUserByEmail(ctx, in.Email)
	if err != nil {
		return token.Set{}, nil, err
	}
	if existing != nil {
		return token.Set{}, nil, ErrConflict
	}

	hash, err := utils.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return token.Set{}, nil, err
	}
	u, err := s.users.Create(ctx, repository.NewUser{
		EmployeeID:   in.EmployeeID,
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		ExternalID:   in.ExternalID,
		AuthProvider: in.Provider,
	})
	if err != nil {
		// The unique index is the backstop for a concurrent signup race.
		if err == repository.ErrEmailExists {
			return token.Set{}, nil, ErrConflict
		}
		return token.Set{}, nil, err
	}

	set, err := s.issue(ctx, *u, nil)
	if err != nil {
		return token.Set{}, nil, err
	}
	s.emit(ctx, AuthEvent{Type: "signup", UserID: u.ID, Email: u.Email})
	return set, u, nil
}

// Signin verifies local credentials and issues a token set carrying the
// user's roles.  Every credential failure is ErrUnauthorized; callers
// cannot distinguish an unknown email from a wrong password.
func (s *AuthService) Signin(ctx context.Context, email, password string) (token.Set, *model.AuthUser, error) {
	u, err := s.users.AuthUserByEmail(ctx, email)
	if err != nil {
		return token.Set{}, nil, err
	}
	if u == nil || !u.IsActive {
		return token.Set{}, nil, ErrUnauthorized
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return token.Set{}, nil, ErrUnauthorized
	}

	roles, err := s.users.Roles(ctx, u.ID)
	if err != nil {
		return token.Set{}, nil, err
	}
	set, err := s.issue(ctx, *u, roles)
	if err != nil {
		return token.Set{}, nil, err
	}
	s.emit(ctx, AuthEvent{Type: "signin", UserID: u.ID, Email: u.Email})
	return set, u, nil
}

// Refresh redeems a refresh token for a new access token.  Policy: only
// the access token is rotated; the refresh and id tokens stay as issued.
// The token must carry a valid signature, be unexpired, and still be
// registered (not revoked by logout).
func (s *AuthService) Refresh(ctx context.Context, rawRefresh string) (string, error) {
	claims, err := s.tokens.VerifyRefresh(rawRefresh)
	if err != nil {
		return "", ErrUnauthorized
	}
	if _, err := s.refreshStore.ValidateRefresh(ctx, utils.HashToken(rawRefresh)); err != nil {
		return "", ErrUnauthorized
	}
	id, err := token.Subject(claims.RegisteredClaims)
	if err != nil {
		return "", ErrUnauthorized
	}
	u, err := s.users.AuthUserByID(ctx, id)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", ErrUnauthorized
	}
	roles, err := s.users.Roles(ctx, u.ID)
	if err != nil {
		return "", err
	}
	return s.tokens.GenerateAccess(*u, roles)
}

// OktaLogin completes the SSO flow for an authorization code: exchange,
// userinfo, claim validation, local resolution and token issuance.  The
// role gate, when configured, is evaluated strictly before issuance.
func (s *AuthService) OktaLogin(ctx context.Context, code string) (token.Set, *model.AuthUser, error) {
	provTokens, err := s.okta.Exchange(ctx, code)
	if err != nil {
		return token.Set{}, nil, fmt.Errorf("okta code exchange: %w", err)
	}
	info, err := s.okta.UserInfo(ctx, provTokens.AccessToken)
	if err != nil {
		return token.Set{}, nil, fmt.Errorf("okta userinfo: %w", err)
	}
	if info.Sub == "" || info.Email == "" || info.Name == "" {
		return token.Set{}, nil, ErrUnauthorized
	}

	username := info.PreferredUsername
	if username == "" {
		username = info.Name
	}
	placeholder, err := utils.RandomPasswordHash(s.bcryptCost)
	if err != nil {
		return token.Set{}, nil, err
	}
	u, err := s.users.ResolveExternal(ctx, ExternalIdentity{
		Sub:          info.Sub,
		Email:        info.Email,
		Username:     username,
		PasswordHash: placeholder,
		Provider:     model.ProviderOkta,
	})
	if err != nil {
		return token.Set{}, nil, err
	}

	roles, err := s.users.Roles(ctx, u.ID)
	if err != nil {
		return token.Set{}, nil, err
	}
	if !s.roleGatePasses(roles) {
		return token.Set{}, nil, ErrUnauthorized
	}

	set, err := s.issue(ctx, *u, roles)
	if err != nil {
		return token.Set{}, nil, err
	}
	s.emit(ctx, AuthEvent{Type: "okta_login", UserID: u.ID, Email: u.Email})
	return set, u, nil
}

// AuthorizeURL returns the provider redirect URL for the given CSRF state.
func (s *AuthService) AuthorizeURL(state string) string {
	return s.okta.AuthCodeURL(state)
}

// Logout revokes the refresh token server-side.  An unknown or already
// revoked token is not an error: the session is gone either way.
func (s *AuthService) Logout(ctx context.Context, userID uint64, rawRefresh string) error {
	if rawRefresh != "" {
		if err := s.refreshStore.RevokeByHash(ctx, utils.HashToken(rawRefresh)); err != nil {
			return err
		}
	}
	s.emit(ctx, AuthEvent{Type: "logout", UserID: userID})
	return nil
}

// issue generates the token triple and registers the refresh token hash.
func (s *AuthService) issue(ctx context.Context, u model.AuthUser, roles []model.Role) (token.Set, error) {
	set, err := s.tokens.Generate(u, roles)
	if err != nil {
		return token.Set{}, err
	}
	exp := time.Now().UTC().Add(s.refreshTTL)
	if err := s.refreshStore.StoreRefresh(ctx, u.ID, utils.HashToken(set.RefreshToken), exp); err != nil {
		return token.Set{}, err
	}
	return set, nil
}

// roleGatePasses reports whether the role gate allows login.  An empty
// gate admits everyone.
func (s *AuthService) roleGatePasses(roles []model.Role) bool {
	if len(s.requiredRoles) == 0 {
		return true
	}
	for _, have := range roles {
		for _, want := range s.requiredRoles {
			if have == want {
				return true
			}
		}
	}
	return false
}

func (s *AuthService) emit(ctx context.Context, ev AuthEvent) {
	if s.events != nil {
		s.events.Publish(ctx, ev)
	}
}
