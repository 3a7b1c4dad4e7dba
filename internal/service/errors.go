// Package service orchestrates the auth and user flows on top of the
// repository, cache, token and OIDC layers.  Services depend on the small
// interfaces declared here rather than on concrete repositories, so the
// auth core never touches the persistence schema directly.
package service

import "errors"

// ErrUnauthorized covers every credential, token or external-identity
// validation failure: wrong password, unknown user, invalid or revoked
// refresh token, missing provider claims, insufficient SSO role.
// Handlers translate it into HTTP 401.
var ErrUnauthorized = errors.New("unauthorized")

// ErrConflict is returned when a signup addresses an email that already
// resolves to an active user.  Handlers translate it into HTTP 409.
var ErrConflict = errors.New("email already registered")
