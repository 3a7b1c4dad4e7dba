package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/soulst9/nestjs-practice/internal/config"
	"github.com/soulst9/nestjs-practice/internal/middleware"
	"github.com/soulst9/nestjs-practice/internal/model"
	"github.com/soulst9/nestjs-practice/internal/service"
	"github.com/soulst9/nestjs-practice/internal/token"
)

// Cookie names for the issued token triple.
const (
	accessCookie  = middleware.AccessCookie
	refreshCookie = "refreshToken"
	idCookie      = "idToken"
	stateCookie   = "oktaState"
)

// Cookie lifetimes per the deployment contract: a short access window and
// month-long refresh/id windows.
const (
	accessMaxAge  = 15 * time.Minute
	refreshMaxAge = 30 * 24 * time.Hour
	stateMaxAge   = 10 * time.Minute
)

// AuthFlows is the slice of the auth service the handler drives.
type AuthFlows interface {
	Signup(ctx context.Context, in service.SignupInput) (token.Set, *model.AuthUser, error)
	Signin(ctx context.Context, email, password string) (token.Set, *model.AuthUser, error)
	Refresh(ctx context.Context, rawRefresh string) (string, error)
	OktaLogin(ctx context.Context, code string) (token.Set, *model.AuthUser, error)
	AuthorizeURL(state string) string
	Logout(ctx context.Context, userID uint64, rawRefresh string) error
}

// AuthHandler bundles dependencies for the auth endpoints.
type AuthHandler struct {
	Cfg  config.Config
	Auth AuthFlows
}

func NewAuthHandler(cfg config.Config, auth AuthFlows) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Auth: auth}
}

// ----- DTOs -----

type signupReq struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	EmployeeID   string `json:"employeeID"`
	AuthProvider string `json:"authProvider"` // optional
	ExternalID   string `json:"externalId"`   // optional
}

type signinReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup: create a local-credential user and return the token set.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Username = strings.TrimSpace(req.Username)
	req.EmployeeID = strings.TrimSpace(req.EmployeeID)
	if req.Email == "" || req.Password == "" || req.Username == "" || req.EmployeeID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username/email/password/employeeID required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	set, u, err := h.Auth.Signup(ctx, service.SignupInput{
		Username:   req.Username,
		Email:      req.Email,
		Password:   req.Password,
		EmployeeID: req.EmployeeID,
		Provider:   model.AuthProvider(req.AuthProvider),
		ExternalID: req.ExternalID,
	})
	if err != nil {
		if errors.Is(err, service.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "signup failed"})
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"user":         echo.Map{"id": u.ID, "username": u.Username, "email": u.Email},
		"accessToken":  set.AccessToken,
		"refreshToken": set.RefreshToken,
		"idToken":      set.IDToken,
	})
}

// Signin: verify credentials, set the three token cookies and return a
// success message.  The tokens travel only in http-only cookies.
func (h *AuthHandler) Signin(c echo.Context) error {
	var req signinReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	set, _, err := h.Auth.Signin(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "signin failed"})
	}

	h.setAuthCookies(c, set)
	return c.JSON(http.StatusOK, echo.Map{"message": "Login successful"})
}

// RefreshToken: redeem the refresh cookie for a fresh access cookie.  The
// refresh and id cookies are left untouched.
func (h *AuthHandler) RefreshToken(c echo.Context) error {
	ck, err := c.Cookie(refreshCookie)
	if err != nil || ck.Value == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing refresh token"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	access, err := h.Auth.Refresh(ctx, ck.Value)
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "refresh failed"})
	}

	c.SetCookie(h.cookie(accessCookie, access, accessMaxAge))
	return c.JSON(http.StatusOK, echo.Map{"message": "Token refreshed"})
}

// Logout: revoke the refresh token server-side and clear all three
// cookies.  Runs behind JWTAuth, so the caller is authenticated.
func (h *AuthHandler) Logout(c echo.Context) error {
	uid, _ := c.Get(middleware.CtxUserID).(uint64)

	raw := ""
	if ck, err := c.Cookie(refreshCookie); err == nil {
		raw = ck.Value
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Auth.Logout(ctx, uid, raw); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
	}

	h.clearAuthCookies(c)
	return c.JSON(http.StatusOK, echo.Map{"message": "Logout successful"})
}

// OktaRedirect: start the SSO flow.  A random state lands in a short-lived
// cookie and travels to the provider for CSRF correlation.
func (h *AuthHandler) OktaRedirect(c echo.Context) error {
	state := uuid.NewString()
	c.SetCookie(h.cookie(stateCookie, state, stateMaxAge))
	return c.Redirect(http.StatusFound, h.Auth.AuthorizeURL(state))
}

// OktaCallback: complete the SSO flow.  Provider errors, state mismatches
// and rejected identities all redirect to the configured frontend error
// path; only a fully issued local session reaches the frontend URL.
func (h *AuthHandler) OktaCallback(c echo.Context) error {
	if e := c.QueryParam("error"); e != "" {
		c.Logger().Warnf("okta callback error: %s (%s)", e, c.QueryParam("error_description"))
		return c.Redirect(http.StatusFound, h.Cfg.FrontendErrURL)
	}
	code := c.QueryParam("code")
	if code == "" {
		return c.Redirect(http.StatusFound, h.Cfg.FrontendErrURL)
	}

	state := c.QueryParam("state")
	ck, err := c.Cookie(stateCookie)
	if err != nil || state == "" || ck.Value != state {
		return c.Redirect(http.StatusFound, h.Cfg.FrontendErrURL)
	}
	// State is single-use.
	c.SetCookie(h.cookie(stateCookie, "", -1))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	set, _, err := h.Auth.OktaLogin(ctx, code)
	if err != nil {
		if !errors.Is(err, service.ErrUnauthorized) {
			c.Logger().Errorf("okta login failed: %v", err)
		}
		return c.Redirect(http.StatusFound, h.Cfg.FrontendErrURL)
	}

	h.setAuthCookies(c, set)
	return c.Redirect(http.StatusFound, h.Cfg.FrontendURL)
}

// ----- cookie helpers -----

func (h *AuthHandler) setAuthCookies(c echo.Context, set token.Set) {
	c.SetCookie(h.cookie(accessCookie, set.AccessToken, accessMaxAge))
	c.SetCookie(h.cookie(refreshCookie, set.RefreshToken, refreshMaxAge))
	c.SetCookie(h.cookie(idCookie, set.IDToken, refreshMaxAge))
}

func (h *AuthHandler) clearAuthCookies(c echo.Context) {
	c.SetCookie(h.cookie(accessCookie, "", -1))
	c.SetCookie(h.cookie(refreshCookie, "", -1))
	c.SetCookie(h.cookie(idCookie, "", -1))
}

// cookie builds an http-only cookie; the secure flag follows the
// production setting.  A negative maxAge expires the cookie immediately.
func (h *AuthHandler) cookie(name, value string, maxAge time.Duration) *http.Cookie {
	ck := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.Cfg.IsProd(),
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge < 0 {
		ck.MaxAge = -1
	} else {
		ck.MaxAge = int(maxAge / time.Second)
		ck.Expires = time.Now().Add(maxAge)
	}
	return ck
}
