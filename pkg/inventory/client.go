// Package inventory is the HTTP client for the inventory REST backend.
package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/aussiebroadwan/invweb/pkg/inventory"

// TokenSource supplies the bearer token for authenticated calls.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func(ctx context.Context) (string, error)

func (f TokenSourceFunc) AccessToken(ctx context.Context) (string, error) { return f(ctx) }

type tokenCtxKey struct{}

// WithToken returns a context carrying an access token for ContextTokens.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenCtxKey{}, token)
}

// ContextTokens reads the token stored by WithToken. A missing token is not
// an error; the request goes out without Authorization and the backend
// decides.
var ContextTokens TokenSource = TokenSourceFunc(func(ctx context.Context) (string, error) {
	tok, _ := ctx.Value(tokenCtxKey{}).(string)
	return tok, nil
})

// Client calls the inventory backend. The resource groups share its
// transport, token source and 401 hook.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Tokens     TokenSource

	// OnUnauthorized runs whenever an authenticated call gets HTTP 401.
	OnUnauthorized func(ctx context.Context)

	Products  *ProductService
	Stock     *StockService
	Movements *MovementService

	tracer trace.Tracer
}

// New returns a Client for baseURL that takes tokens from the request
// context.
func New(baseURL string) *Client {
	c := &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		Tokens: ContextTokens,
		tracer: otel.Tracer(tracerName),
	}
	c.Products = &ProductService{c: c}
	c.Stock = &StockService{c: c}
	c.Movements = &MovementService{c: c}
	return c
}

// request describes one backend call.
type request struct {
	method string
	path   string // includes query
	body   any
	auth   bool
}

// do performs r and decodes a 2xx JSON body into out (when out is non-nil).
func (c *Client) do(ctx context.Context, r request, out any) error {
	ctx, span := c.tracer.Start(ctx, "inventory "+r.method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", r.method),
			attribute.String("inventory.path", r.path),
		),
	)
	defer span.End()

	err := c.send(ctx, span, r, out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *Client) send(ctx context.Context, span trace.Span, r request, out any) error {
	var body io.Reader
	if r.body != nil {
		buf, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("inventory: encode body: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.BaseURL+r.path, body)
	if err != nil {
		return fmt.Errorf("inventory: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if r.auth && c.Tokens != nil {
		tok, err := c.Tokens.AccessToken(ctx)
		if err != nil {
			return fmt.Errorf("inventory: token: %w", err)
		}
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("inventory: %s %s: %w", r.method, r.path, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("inventory: read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
		if resp.StatusCode == http.StatusUnauthorized && r.auth && c.OnUnauthorized != nil {
			c.OnUnauthorized(ctx)
		}
		return apiErr
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if s, ok := out.(*string); ok {
		*s = string(raw)
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("inventory: decode %s %s: %w", r.method, r.path, err)
	}
	return nil
}
