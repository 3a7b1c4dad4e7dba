package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMustDur_ParsesDurationString(t *testing.T) {
	t.Setenv("TEST_DUR", "15m")
	assert.Equal(t, 15*time.Minute, mustDur("TEST_DUR"))
}

func TestMustDur_BareIntegerIsSeconds(t *testing.T) {
	t.Setenv("TEST_DUR", "900")
	assert.Equal(t, 900*time.Second, mustDur("TEST_DUR"))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList("a, b"))
	assert.Equal(t, []string{"http://localhost:3000"}, splitList("http://localhost:3000,"))
	assert.Nil(t, splitList(""))
	assert.Nil(t, splitList(" , "))
}

func TestIsProd(t *testing.T) {
	assert.True(t, Config{Env: "prod"}.IsProd())
	assert.True(t, Config{Env: "production"}.IsProd())
	assert.False(t, Config{Env: "dev"}.IsProd())
	assert.False(t, Config{Env: "test"}.IsProd())
}

func TestGetenv_Default(t *testing.T) {
	t.Setenv("TEST_OPT", "")
	assert.Equal(t, "fallback", getenv("TEST_OPT", "fallback"))
	t.Setenv("TEST_OPT", "set")
	assert.Equal(t, "set", getenv("TEST_OPT", "fallback"))
}

func TestLoad_FullEnvironment(t *testing.T) {
	vars := map[string]string{
		"APP_ENV":                "test",
		"APP_PORT":               "8080",
		"DATABASE_URL":           "user:pass@tcp(localhost:3306)/users",
		"JWT_ACCESS_SECRET":      "acc-secret",
		"JWT_ACCESS_EXPIRES_IN":  "15m",
		"JWT_REFRESH_SECRET":     "ref-secret",
		"JWT_REFRESH_EXPIRES_IN": "720h",
		"JWT_ID_SECRET":          "id-secret",
		"JWT_ID_EXPIRES_IN":      "720h",
		"OKTA_ISSUER":            "https://dev-1.okta.com/oauth2/default",
		"OKTA_CLIENT_ID":         "cid",
		"OKTA_CLIENT_SECRET":     "csec",
		"OKTA_CALLBACK_URL":      "http://localhost:8080/auth/okta/callback",
		"OKTA_REQUIRED_ROLES":    "ADMIN",
		"CORS_ORIGINS":           "http://localhost:3000,https://app.example.com",
		"BCRYPT_COST":            "10",
	}
	for k, v := range vars {
		t.Setenv(k, v)
	}
	t.Setenv("OKTA_SCOPE", "")

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 15*time.Minute, cfg.AccessToken.ExpiresIn)
	assert.Equal(t, 720*time.Hour, cfg.RefreshToken.ExpiresIn)
	assert.Equal(t, "id-secret", cfg.IDToken.Secret)
	assert.Equal(t, []string{"ADMIN"}, cfg.Okta.RequiredRoles)
	assert.Equal(t, []string{"http://localhost:3000", "https://app.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Equal(t, "openid profile email", cfg.Okta.Scope) // default scope
	assert.False(t, cfg.IsProd())
}
