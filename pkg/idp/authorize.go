package idp

import (
	"net/url"
	"strings"
)

// AuthURL builds the authorization endpoint URL for the code flow with PKCE.
func (c *Client) AuthURL(state, challenge, method string) string {
	params := url.Values{}
	params.Set("client_id", c.cfg.ClientID)
	params.Set("redirect_uri", c.cfg.RedirectURI)
	params.Set("state", state)
	params.Set("response_type", "code")
	params.Set("scope", strings.Join(c.cfg.Scopes, " "))

	if challenge != "" {
		if method == "" {
			method = "S256"
		}
		params.Set("code_challenge", challenge)
		params.Set("code_challenge_method", method)
	}

	return c.Endpoint("auth") + "?" + params.Encode()
}

// EndSessionURL builds the provider logout URL. idTokenHint may be empty.
func (c *Client) EndSessionURL(idTokenHint string) string {
	params := url.Values{}
	if c.cfg.PostLogoutRedirectURI != "" {
		params.Set("post_logout_redirect_uri", c.cfg.PostLogoutRedirectURI)
	}
	if idTokenHint != "" {
		params.Set("id_token_hint", idTokenHint)
	}
	params.Set("client_id", c.cfg.ClientID)

	return c.Endpoint("logout") + "?" + params.Encode()
}

// CallbackParams is the parsed query of a redirect back from the provider.
type CallbackParams struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// ParseCallback extracts the authorization response parameters.
func ParseCallback(q url.Values) CallbackParams {
	return CallbackParams{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	}
}
