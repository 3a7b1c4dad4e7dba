// Package oidc implements the stateless HTTP exchange with the external
// identity provider (Okta): authorization-code-for-tokens, access-token-
// for-userinfo and token revocation.  The client performs no caching, no
// retries and no validation of provider claims beyond forwarding the raw
// response; claim checks belong to the auth service.
package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/soulst9/nestjs-practice/internal/config"
)

// httpTimeout bounds every provider call.  A timeout fails that single
// operation; nothing here retries.
const httpTimeout = 10 * time.Second

// ProviderError describes a failed provider call: which operation, the
// HTTP status when one was received, and the provider's own error
// description when present.
type ProviderError struct {
	Op          string // "exchange", "userinfo", "revoke"
	StatusCode  int    // 0 when the request never completed
	Description string
	Err         error
}

func (e *ProviderError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("okta %s failed (status %d): %s", e.Op, e.StatusCode, e.Description)
	}
	if e.Err != nil {
		return fmt.Sprintf("okta %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("okta %s failed (status %d)", e.Op, e.StatusCode)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Tokens is the provider token set returned by the code exchange.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	Expiry       time.Time
}

// UserInfo is the raw userinfo response.  Sub, Email and Name are the
// claims the auth flows require; the rest is carried for completeness.
type UserInfo struct {
	Sub               string `json:"sub"`
	Email             string `json:"email"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
	EmailVerified     bool   `json:"email_verified"`
}

// Client talks to one configured OIDC provider.
type Client struct {
	conf        oauth2.Config
	userinfoURL string
	revokeURL   string
	http        *http.Client
}

// New builds a Client from the Okta settings.  Endpoint URLs follow the
// standard Okta authorization-server layout under the issuer.
func New(cfg config.OktaConfig) *Client {
	issuer := strings.TrimRight(cfg.Issuer, "/")
	return &Client{
		conf: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Scopes:       strings.Fields(cfg.Scope),
			Endpoint: oauth2.Endpoint{
				AuthURL:  issuer + "/v1/authorize",
				TokenURL: issuer + "/v1/token",
			},
		},
		userinfoURL: issuer + "/v1/userinfo",
		revokeURL:   issuer + "/v1/revoke",
		http:        &http.Client{Timeout: httpTimeout},
	}
}

// AuthCodeURL returns the provider authorize URL for the given CSRF state.
func (c *Client) AuthCodeURL(state string) string {
	return c.conf.AuthCodeURL(state)
}

// Exchange trades an authorization code for the provider token set.
func (c *Client) Exchange(ctx context.Context, code string) (*Tokens, error) {
	ctx, cancel := context.WithTimeout(ctx, httpTimeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)

	tok, err := c.conf.Exchange(ctx, code)
	if err != nil {
		return nil, exchangeError(err)
	}
	out := &Tokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
	if id, ok := tok.Extra("id_token").(string); ok {
		out.IDToken = id
	}
	return out, nil
}

// UserInfo fetches the provider's userinfo endpoint with the given access
// token.
func (c *Client) UserInfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, httpTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userinfoURL, nil)
	if err != nil {
		return nil, &ProviderError{Op: "userinfo", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &ProviderError{Op: "userinfo", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &ProviderError{Op: "userinfo", StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{
			Op:          "userinfo",
			StatusCode:  resp.StatusCode,
			Description: errorDescription(body),
		}
	}
	var info UserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, &ProviderError{Op: "userinfo", StatusCode: resp.StatusCode, Err: err}
	}
	return &info, nil
}

// Revoke invalidates a provider token.  hint is "access_token" or
// "refresh_token" per RFC 7009; an empty hint lets the provider guess.
func (c *Client) Revoke(ctx context.Context, tokenValue, hint string) error {
	ctx, cancel := context.WithTimeout(ctx, httpTimeout)
	defer cancel()

	form := url.Values{"token": {tokenValue}}
	if hint != "" {
		form.Set("token_type_hint", hint)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return &ProviderError{Op: "revoke", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.conf.ClientID, c.conf.ClientSecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return &ProviderError{Op: "revoke", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return &ProviderError{
			Op:          "revoke",
			StatusCode:  resp.StatusCode,
			Description: errorDescription(body),
		}
	}
	return nil
}

// exchangeError maps an oauth2 exchange failure into a ProviderError,
// lifting the status and error_description out of *oauth2.RetrieveError
// when the provider answered at all.
func exchangeError(err error) *ProviderError {
	if re, ok := err.(*oauth2.RetrieveError); ok {
		return &ProviderError{
			Op:          "exchange",
			StatusCode:  re.Response.StatusCode,
			Description: errorDescription(re.Body),
			Err:         err,
		}
	}
	return &ProviderError{Op: "exchange", Err: err}
}

// errorDescription extracts the provider's error_description (or error)
// field from a JSON error body.  Returns "" when the body is not JSON.
func errorDescription(body []byte) string {
	var payload struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.ErrorDescription != "" {
		return payload.ErrorDescription
	}
	return payload.Error
}
