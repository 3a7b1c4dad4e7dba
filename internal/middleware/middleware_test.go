package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soulst9/nestjs-practice/internal/config"
	"github.com/soulst9/nestjs-practice/internal/model"
	"github.com/soulst9/nestjs-practice/internal/token"
)

type fakeVerifier struct {
	claims *token.AccessClaims
	err    error
	got    string
}

func (f *fakeVerifier) VerifyAccess(raw string) (*token.AccessClaims, error) {
	f.got = raw
	return f.claims, f.err
}

func accessClaims(sub string, roles ...model.Role) *token.AccessClaims {
	return &token.AccessClaims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
}

func runJWT(t *testing.T, v AccessVerifier, mutate func(*http.Request)) (echo.Context, *httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	err := JWTAuth(v)(next)(c)
	return c, rec, err
}

func TestJWTAuth_CookieToken(t *testing.T) {
	fv := &fakeVerifier{claims: accessClaims("42", model.RoleMember)}

	c, rec, err := runJWT(t, fv, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: AccessCookie, Value: "cookie.jwt"})
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cookie.jwt", fv.got)
	assert.Equal(t, uint64(42), c.Get(CtxUserID))
	assert.Same(t, fv.claims, c.Get(CtxClaims))
}

func TestJWTAuth_BearerFallback(t *testing.T) {
	fv := &fakeVerifier{claims: accessClaims("7")}

	_, rec, err := runJWT(t, fv, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer header.jwt")
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "header.jwt", fv.got)
}

func TestJWTAuth_MissingToken(t *testing.T) {
	_, rec, err := runJWT(t, &fakeVerifier{}, nil)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing access token")
}

func TestJWTAuth_InvalidToken(t *testing.T) {
	fv := &fakeVerifier{err: errors.New("signature mismatch")}

	_, rec, err := runJWT(t, fv, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: AccessCookie, Value: "bad.jwt"})
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid token")
}

func TestJWTAuth_NonNumericSubject(t *testing.T) {
	fv := &fakeVerifier{claims: accessClaims("not-a-number")}

	_, rec, err := runJWT(t, fv, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: AccessCookie, Value: "odd.jwt"})
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid claims")
}

func runRole(t *testing.T, min model.Role, claims *token.AccessClaims) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if claims != nil {
		c.Set(CtxClaims, claims)
	}

	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	require.NoError(t, RequireRole(min)(next)(c))
	return rec
}

func TestRequireRole_TierOrdering(t *testing.T) {
	assert.Equal(t, http.StatusOK,
		runRole(t, model.RoleMember, accessClaims("1", model.RoleAdmin)).Code)
	assert.Equal(t, http.StatusOK,
		runRole(t, model.RoleAdmin, accessClaims("1", model.RoleAdmin)).Code)
	assert.Equal(t, http.StatusForbidden,
		runRole(t, model.RoleAdmin, accessClaims("1", model.RoleMember)).Code)
	assert.Equal(t, http.StatusForbidden,
		runRole(t, model.RoleMember, accessClaims("1")).Code)
}

func TestRequireRole_NoClaims(t *testing.T) {
	assert.Equal(t, http.StatusForbidden, runRole(t, model.RoleMember, nil).Code)
}

func TestBuildRateKey_Strategies(t *testing.T) {
	e := echo.New()
	newCtx := func(uid any) echo.Context {
		req := httptest.NewRequest(http.MethodPost, "/auth/signin", nil)
		req.RemoteAddr = "203.0.113.9:4242"
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetPath("/auth/signin")
		if uid != nil {
			c.Set(CtxUserID, uid)
		}
		return c
	}
	cfg := config.RateLimitConfig{Prefix: "rl"}

	cfg.KeyStrategy = "ip"
	assert.Equal(t, "rl:ip:203.0.113.9", buildRateKey(cfg, newCtx(nil)))

	cfg.KeyStrategy = "user"
	assert.Equal(t, "rl:user:7", buildRateKey(cfg, newCtx(uint64(7))))
	assert.Equal(t, "rl:user:anon", buildRateKey(cfg, newCtx(nil)))

	cfg.KeyStrategy = "ip_route"
	assert.Equal(t, "rl:ip:203.0.113.9:route:POST /auth/signin",
		buildRateKey(cfg, newCtx(nil)))
}

func TestAsInt64(t *testing.T) {
	assert.Equal(t, int64(5), asInt64(int64(5)))
	assert.Equal(t, int64(5), asInt64(5))
	assert.Equal(t, int64(5), asInt64(5.0))
	assert.Equal(t, int64(5), asInt64("5"))
	assert.Equal(t, int64(0), asInt64("nope"))
}
