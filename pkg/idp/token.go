package idp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Grant types accepted by the token endpoint.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantRefreshToken      = "refresh_token"
)

// ErrInvalidTokenRequest is returned before any network call when the grant
// parameters are incomplete or the grant type is unsupported.
var ErrInvalidTokenRequest = errors.New("idp: invalid parameters for token request")

// TokenResponse is the token endpoint's success body.
type TokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token,omitempty"`
	IDToken          string `json:"id_token,omitempty"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int    `json:"expires_in"`
	RefreshExpiresIn int    `json:"refresh_expires_in,omitempty"`
	Scope            string `json:"scope,omitempty"`
}

// TokenRequest is a grant request in the shape the browser-facing token
// proxy accepts.
type TokenRequest struct {
	GrantType    string `json:"grant_type"`
	Code         string `json:"code,omitempty"`
	RedirectURI  string `json:"redirect_uri,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	CodeVerifier string `json:"code_verifier,omitempty"`
}

// Form validates r and builds the form body, adding client credentials.
func (c *Client) Form(r TokenRequest) (url.Values, error) {
	form := url.Values{}
	form.Set("client_id", c.cfg.ClientID)
	if c.cfg.ClientSecret != "" {
		form.Set("client_secret", c.cfg.ClientSecret)
	}
	form.Set("grant_type", r.GrantType)

	switch {
	case r.GrantType == GrantAuthorizationCode && r.Code != "" && r.RedirectURI != "":
		form.Set("code", r.Code)
		form.Set("redirect_uri", r.RedirectURI)
		if r.CodeVerifier != "" {
			form.Set("code_verifier", r.CodeVerifier)
		}
	case r.GrantType == GrantRefreshToken && r.RefreshToken != "":
		form.Set("refresh_token", r.RefreshToken)
	default:
		return nil, ErrInvalidTokenRequest
	}

	return form, nil
}

// ExchangeCode redeems an authorization code using the configured redirect
// URI and the PKCE verifier from the login step.
func (c *Client) ExchangeCode(ctx context.Context, code, verifier string) (*TokenResponse, error) {
	return c.Token(ctx, TokenRequest{
		GrantType:    GrantAuthorizationCode,
		Code:         code,
		RedirectURI:  c.cfg.RedirectURI,
		CodeVerifier: verifier,
	})
}

// Refresh performs a refresh_token grant.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	return c.Token(ctx, TokenRequest{
		GrantType:    GrantRefreshToken,
		RefreshToken: refreshToken,
	})
}

// Token performs r and decodes the response.
func (c *Client) Token(ctx context.Context, r TokenRequest) (*TokenResponse, error) {
	body, err := c.TokenRaw(ctx, r)
	if err != nil {
		return nil, err
	}

	var tr TokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("idp: decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, &Error{StatusCode: http.StatusBadGateway, Code: ErrorCodeServerError, Description: "token response without access_token"}
	}
	return &tr, nil
}

// TokenRaw performs r and returns the provider's JSON body untouched.
func (c *Client) TokenRaw(ctx context.Context, r TokenRequest) (json.RawMessage, error) {
	form, err := c.Form(r)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint("token"), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("idp: create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	return c.do(ctx, "token", req)
}
