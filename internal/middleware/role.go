package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/soulst9/nestjs-practice/internal/model"
	"github.com/soulst9/nestjs-practice/internal/token"
)

// RequireRole returns a middleware that enforces a minimum role tier on
// the authenticated user.  Role values are ordered (MEMBER=100 below
// ADMIN=150), so holding any role at or above min passes.  It assumes
// JWTAuth already stored the claims under CtxClaims; requests without
// claims or below the tier are rejected with 403.
func RequireRole(min model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := c.Get(CtxClaims).(*token.AccessClaims)
			if !ok {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			for _, r := range claims.Roles {
				if r >= min {
					return next(c)
				}
			}
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
	}
}
