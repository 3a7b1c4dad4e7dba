package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"strings" // strings splits list-valued variables
	"time"    // time parses token lifetimes
)

// TokenConfig holds the signing secret and lifetime for one JWT class.
// Access, refresh and id tokens each carry their own pair so that a leaked
// token of one class can never be verified as another and each class can be
// rotated independently.
type TokenConfig struct {
	Secret    string        // HMAC signing secret for this token class
	ExpiresIn time.Duration // lifetime applied at issuance
}

// OktaConfig groups the OIDC provider settings. Scope is the space-separated
// scope string sent on the authorize redirect.
type OktaConfig struct {
	Issuer        string   // base issuer URL, e.g. https://dev-xxxx.okta.com/oauth2/default
	ClientID      string   // OIDC client id
	ClientSecret  string   // OIDC client secret
	CallbackURL   string   // redirect URI registered with the provider
	Scope         string   // requested scopes, space separated
	RequiredRoles []string // role names that gate SSO login; empty disables the gate
}

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, durations for
// token lifetimes, ints for costs.
type Config struct {
	Env            string      // application environment (e.g. "dev", "prod")
	Port           string      // HTTP port to listen on
	DatabaseURL    string      // MySQL DSN for the users database
	AccessToken    TokenConfig // access token secret/lifetime
	RefreshToken   TokenConfig // refresh token secret/lifetime
	IDToken        TokenConfig // id token secret/lifetime
	Okta           OktaConfig  // external identity provider settings
	CORSOrigins    []string    // allowed CORS origins
	FrontendURL    string      // where successful SSO logins redirect
	FrontendErrURL string      // where failed SSO logins redirect
	BcryptCost     int         // bcrypt cost for password hashing
	LogLevel       string      // log verbosity hint (debug/info/warn/error)
	Timezone       string      // TZ name applied at startup
}

// IsProd reports whether the server runs in production mode. The cookie
// secure flag is tied to this.
func (c Config) IsProd() bool { return c.Env == "prod" || c.Env == "production" }

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:         must("APP_ENV"),      // environment (dev/test/prod)
		Port:        must("APP_PORT"),     // port to bind the HTTP server
		DatabaseURL: must("DATABASE_URL"), // MySQL DSN (user:pass@tcp(host:port)/db)
		AccessToken: TokenConfig{
			Secret:    must("JWT_ACCESS_SECRET"),
			ExpiresIn: mustDur("JWT_ACCESS_EXPIRES_IN"), // e.g. "15m"
		},
		RefreshToken: TokenConfig{
			Secret:    must("JWT_REFRESH_SECRET"),
			ExpiresIn: mustDur("JWT_REFRESH_EXPIRES_IN"), // e.g. "720h" (30 days)
		},
		IDToken: TokenConfig{
			Secret:    must("JWT_ID_SECRET"),
			ExpiresIn: mustDur("JWT_ID_EXPIRES_IN"),
		},
		Okta: OktaConfig{
			Issuer:        must("OKTA_ISSUER"),
			ClientID:      must("OKTA_CLIENT_ID"),
			ClientSecret:  must("OKTA_CLIENT_SECRET"),
			CallbackURL:   must("OKTA_CALLBACK_URL"),
			Scope:         getenv("OKTA_SCOPE", "openid profile email"),
			RequiredRoles: splitList(os.Getenv("OKTA_REQUIRED_ROLES")),
		},
		CORSOrigins:    splitList(getenv("CORS_ORIGINS", "*")),
		FrontendURL:    getenv("FRONTEND_URL", "http://localhost:3000"),
		FrontendErrURL: getenv("FRONTEND_ERROR_PATH", "http://localhost:3000/login/error"),
		BcryptCost:     mustInt("BCRYPT_COST"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		Timezone:       getenv("TZ", "UTC"),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

// mustDur parses a required duration variable ("15m", "720h").  A bare
// integer is accepted and read as seconds for compatibility with
// deployments that export lifetimes that way.
func mustDur(key string) time.Duration {
	s := must(key)
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		log.Fatalf("invalid duration for %s: %q", key, s)
	}
	return d
}

// getenv returns the value of an optional variable or a default.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// splitList parses a comma-separated list, trimming whitespace and dropping
// empty entries.  Returns nil for an empty input.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
