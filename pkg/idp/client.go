// Package idp is a client for a Keycloak-style OpenID Connect provider: it
// builds the browser-facing authorize and end-session URLs and performs the
// back-channel token and userinfo calls.
package idp

import (
	"context"
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

const tracerName = "github.com/aussiebroadwan/invweb/pkg/idp"

// DefaultScopes requested on login.
var DefaultScopes = []string{"openid", "profile", "email"}

// Config describes the provider realm and this application's registration.
type Config struct {
	BaseURL      string // e.g. http://localhost:8180/auth
	Realm        string
	ClientID     string
	ClientSecret string // optional for public clients

	// RedirectURI must match the registered callback exactly; it is sent
	// unchanged on both the authorize request and the code exchange.
	RedirectURI string

	// PostLogoutRedirectURI is where the provider sends the browser after
	// ending its session.
	PostLogoutRedirectURI string

	Scopes []string
}

// Client talks to one provider realm.
type Client struct {
	cfg        Config
	HTTPClient *http.Client
	tracer     trace.Tracer
}

// New returns a Client for cfg with a 10 second HTTP timeout.
func New(cfg Config) *Client {
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes
	}
	return &Client{
		cfg: cfg,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		tracer: otel.Tracer(tracerName),
	}
}

// Config returns the client's configuration.
func (c *Client) Config() Config { return c.cfg }

// Endpoint returns the realm's OpenID Connect endpoint named name
// ("auth", "token", "userinfo", "logout").
func (c *Client) Endpoint(name string) string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/%s", c.cfg.BaseURL, c.cfg.Realm, name)
}

// do sends req inside a client span and returns the response body. Non-2xx
// responses are returned as *Error.
func (c *Client) do(ctx context.Context, op string, req *http.Request) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "idp."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("idp.realm", c.cfg.Realm),
		),
	)
	defer span.End()

	resp, err := c.HTTPClient.Do(req.WithContext(ctx))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return nil, fmt.Errorf("idp: %s: %w", op, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return nil, fmt.Errorf("idp: %s: read body: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		perr := parseErrorResponse(resp.StatusCode, body)
		span.SetStatus(codes.Error, perr.Code)
		return nil, perr
	}

	return body, nil
}
