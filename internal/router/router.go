// Package router maps HTTP routes onto the handlers and middleware chain.
package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/soulst9/nestjs-practice/internal/config"
	"github.com/soulst9/nestjs-practice/internal/handler"
	"github.com/soulst9/nestjs-practice/internal/middleware"
)

// Deps collects everything route registration needs.
type Deps struct {
	Cfg      config.Config
	Auth     *handler.AuthHandler
	Users    *handler.UserHandler
	Health   *handler.HealthHandler
	Verifier middleware.AccessVerifier
	// RateLimit guards the credential endpoints; nil disables limiting.
	RateLimit echo.MiddlewareFunc
}

// Register wires all endpoints onto the Echo instance.  Token issuance
// lives under /auth; everything that needs a session sits behind JWTAuth.
func Register(e *echo.Echo, d Deps) {
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())
	if len(d.Cfg.CORSOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins:     d.Cfg.CORSOrigins,
			AllowCredentials: true,
		}))
	}

	e.GET("/health", d.Health.Health)

	auth := e.Group("/auth")
	if d.RateLimit != nil {
		auth.Use(d.RateLimit)
	}
	auth.POST("/signup", d.Auth.Signup)
	auth.POST("/signin", d.Auth.Signin)
	auth.GET("/refresh-token", d.Auth.RefreshToken)
	auth.GET("/okta", d.Auth.OktaRedirect)
	auth.GET("/okta/callback", d.Auth.OktaCallback)

	// Logout revokes the caller's refresh token, so it needs a live session.
	auth.POST("/logout", d.Auth.Logout, middleware.JWTAuth(d.Verifier))

	users := e.Group("/users")
	users.Use(middleware.JWTAuth(d.Verifier))
	users.GET("/me", d.Users.Me)
}
