// Package middleware provides shared request processing: access-token
// authentication, role enforcement and Redis-backed rate limiting.
package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/soulst9/nestjs-practice/internal/token"
)

// AccessCookie is the cookie carrying the access token.
const AccessCookie = "accessToken"

// Context keys populated by JWTAuth for downstream handlers.
const (
	CtxUserID = "user_id"
	CtxClaims = "claims"
)

// AccessVerifier validates an access token and returns its claims.  The
// token service implements it; tests substitute fakes.
type AccessVerifier interface {
	VerifyAccess(raw string) (*token.AccessClaims, error)
}

// JWTAuth returns an Echo middleware that authenticates a request from the
// accessToken cookie, falling back to an Authorization bearer header.  A
// missing token and an invalid one both end in 401, with distinct error
// messages so clients can tell the conditions apart.  On success the
// numeric user id and the full claim set are stored in the request
// context under CtxUserID and CtxClaims.
func JWTAuth(verifier AccessVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := ""
			if ck, err := c.Cookie(AccessCookie); err == nil && ck.Value != "" {
				raw = ck.Value
			} else if auth := c.Request().Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				raw = strings.TrimPrefix(auth, "Bearer ")
			}
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing access token"})
			}

			claims, err := verifier.VerifyAccess(raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			uid, err := token.Subject(claims.RegisteredClaims)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}

			c.Set(CtxUserID, uid)
			c.Set(CtxClaims, claims)
			return next(c)
		}
	}
}
