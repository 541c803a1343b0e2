package inventory

import (
	"context"
	"net/http"
)

// Me asks the backend who the bearer of the current token is.
func (c *Client) Me(ctx context.Context) (*Account, error) {
	var out Account
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/auth/me", auth: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
