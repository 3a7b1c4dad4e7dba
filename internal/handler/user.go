package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/soulst9/nestjs-practice/internal/middleware"
	"github.com/soulst9/nestjs-practice/internal/service"
)

// ProfileProvider is the slice of the user service the handler needs.
type ProfileProvider interface {
	Profile(ctx context.Context, id uint64) (*service.Profile, error)
}

type UserHandler struct {
	Users ProfileProvider
}

func NewUserHandler(users ProfileProvider) *UserHandler {
	return &UserHandler{Users: users}
}

// Me returns the authenticated user's profile.  The user id comes from
// the access token placed in context by JWTAuth.
func (h *UserHandler) Me(c echo.Context) error {
	uid, ok := c.Get(middleware.CtxUserID).(uint64)
	if !ok || uid == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p, err := h.Users.Profile(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "profile lookup failed"})
	}
	if p == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}
	return c.JSON(http.StatusOK, p)
}
