package idp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// UserInfo is the subset of the userinfo response the application reads.
type UserInfo struct {
	Subject           string `json:"sub"`
	PreferredUsername string `json:"preferred_username"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	RealmAccess       struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
}

// UserInfo fetches the profile for accessToken.
func (c *Client) UserInfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	body, err := c.UserInfoRaw(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	var ui UserInfo
	if err := json.Unmarshal(body, &ui); err != nil {
		return nil, fmt.Errorf("idp: decode userinfo: %w", err)
	}
	return &ui, nil
}

// UserInfoRaw fetches the userinfo document without interpreting it.
func (c *Client) UserInfoRaw(ctx context.Context, accessToken string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint("userinfo"), nil)
	if err != nil {
		return nil, fmt.Errorf("idp: create userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	return c.do(ctx, "userinfo", req)
}
