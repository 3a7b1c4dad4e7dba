// Package token issues and verifies the three JWT classes used by the
// auth flows: short-lived access tokens for API calls, long-lived refresh
// tokens for obtaining new access tokens, and id tokens carrying verified
// identity claims.  Each class is signed with its own secret and lifetime
// so a leaked token of one class can never be verified as another and each
// can be rotated independently.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/soulst9/nestjs-practice/internal/config"
	"github.com/soulst9/nestjs-practice/internal/model"
)

// ErrInvalidToken is returned for any token that fails verification:
// bad signature, expired, malformed or signed for a different class.
// Callers must keep it distinguishable from a missing-token condition.
var ErrInvalidToken = errors.New("invalid token")

// Set is one issued token triple sharing a subject.
type Set struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	IDToken      string `json:"idToken"`
}

// AccessClaims is the claim set carried by access tokens.
type AccessClaims struct {
	Username     string             `json:"username"`
	Email        string             `json:"email"`
	AuthProvider model.AuthProvider `json:"auth_provider,omitempty"`
	Roles        []model.Role       `json:"roles"`
	jwt.RegisteredClaims
}

// RefreshClaims is the minimal claim set carried by refresh tokens.
type RefreshClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// idClaims is the claim set carried by id tokens.  Id tokens are consumed
// by clients, never verified by this server, so the type stays private.
type idClaims struct {
	Email        string             `json:"email"`
	Username     string             `json:"username"`
	AuthProvider model.AuthProvider `json:"auth_provider,omitempty"`
	jwt.RegisteredClaims
}

// Service signs and verifies the token triple.  It is stateless; all
// state lives in the per-class configuration.
type Service struct {
	access  config.TokenConfig
	refresh config.TokenConfig
	id      config.TokenConfig
}

// NewService builds a Service from the per-class secret/lifetime pairs.
func NewService(access, refresh, id config.TokenConfig) *Service {
	return &Service{access: access, refresh: refresh, id: id}
}

// Generate issues a full token triple for the given identity.  Roles may
// be empty (a fresh signup has none yet).
func (s *Service) Generate(u model.AuthUser, roles []model.Role) (Set, error) {
	access, err := s.GenerateAccess(u, roles)
	if err != nil {
		return Set{}, err
	}
	refresh, err := s.generateRefresh(u)
	if err != nil {
		return Set{}, err
	}
	id, err := s.generateID(u)
	if err != nil {
		return Set{}, err
	}
	return Set{AccessToken: access, RefreshToken: refresh, IDToken: id}, nil
}

// GenerateAccess issues only an access token.  Refresh-token redemption
// uses this to rotate the access token without minting a new triple.
func (s *Service) GenerateAccess(u model.AuthUser, roles []model.Role) (string, error) {
	if roles == nil {
		roles = []model.Role{}
	}
	now := time.Now().UTC()
	claims := AccessClaims{
		Username:     u.Username,
		Email:        u.Email,
		AuthProvider: u.AuthProvider,
		Roles:        roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(u.ID, 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.access.ExpiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return sign(claims, s.access.Secret)
}

func (s *Service) generateRefresh(u model.AuthUser) (string, error) {
	now := time.Now().UTC()
	claims := RefreshClaims{
		Username: u.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(u.ID, 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.refresh.ExpiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return sign(claims, s.refresh.Secret)
}

func (s *Service) generateID(u model.AuthUser) (string, error) {
	now := time.Now().UTC()
	claims := idClaims{
		Email:        u.Email,
		Username:     u.Username,
		AuthProvider: u.AuthProvider,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(u.ID, 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.id.ExpiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return sign(claims, s.id.Secret)
}

// VerifyAccess validates signature and expiry of an access token against
// the access secret and returns its claims.
func (s *Service) VerifyAccess(raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := verify(raw, s.access.Secret, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyRefresh validates signature and expiry of a refresh token against
// the refresh secret and returns its claims.
func (s *Service) VerifyRefresh(raw string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := verify(raw, s.refresh.Secret, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func sign(claims jwt.Claims, secret string) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func verify(raw, secret string, claims jwt.Claims) error {
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		// Reject any algorithm other than the HMAC family used at signing.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return ErrInvalidToken
	}
	return nil
}

// Subject converts the string subject claim back to the numeric user id.
func Subject(c jwt.RegisteredClaims) (uint64, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil {
		return 0, ErrInvalidToken
	}
	return id, nil
}
