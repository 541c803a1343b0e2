package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/aussiebroadwan/invweb/internal/web/domain"
	"github.com/aussiebroadwan/invweb/pkg/cryptox"
	"github.com/aussiebroadwan/invweb/pkg/idp"
	"github.com/aussiebroadwan/invweb/pkg/slogx"
	"github.com/aussiebroadwan/invweb/pkg/tokenstore"
	"github.com/aussiebroadwan/invweb/pkg/tokenx"
)

// DefaultLoginPath is the local route anonymous users are sent to.
const DefaultLoginPath = "/login"

var (
	ErrMissingCode       = errors.New("session: callback without authorization code")
	ErrStateMismatch     = errors.New("session: state mismatch")
	ErrStateMissing      = errors.New("session: no pending authorization for this callback")
	ErrDuplicateCallback = errors.New("session: authorization code is already being redeemed")
	ErrNoRefreshToken    = errors.New("session: no refresh token")
)

// ProviderError is an error the identity provider reported on the callback.
// It is shown to the user verbatim.
type ProviderError struct {
	Code        string
	Description string
}

func (e *ProviderError) Error() string {
	if e.Description == "" {
		return "provider error: " + e.Code
	}
	return fmt.Sprintf("provider error: %s: %s", e.Code, e.Description)
}

// Navigation hands the browser to another location. Once a handler has
// written it nothing else runs for that request.
type Navigation struct {
	URL string
}

// Controller drives the OAuth2 authorization code flow for one browser
// session at a time. All per-session data lives in the tokenstore.Store
// passed to each call; the controller itself only holds configuration and
// the set of codes currently being redeemed.
type Controller struct {
	IDP   *idp.Client
	Audit *AuditService

	// LenientState accepts callbacks for which no authorization state was
	// stored, logging them instead of failing.
	LenientState bool

	LoginPath string
	Now       func() time.Time

	inflight    sync.Map // code fingerprint -> struct{}
	transitions *prometheus.CounterVec
}

// NewController returns a Controller. reg may be nil, in which case the
// transition counter is not exported.
func NewController(idpClient *idp.Client, audit *AuditService, reg prometheus.Registerer) *Controller {
	return &Controller{
		IDP:       idpClient,
		Audit:     audit,
		LoginPath: DefaultLoginPath,
		Now:       time.Now,
		transitions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "invweb",
			Subsystem: "session",
			Name:      "transitions_total",
			Help:      "Session state transitions by target state.",
		}, []string{"state"}),
	}
}

func (c *Controller) enter(ctx context.Context, s domain.SessionState) {
	c.transitions.WithLabelValues(string(s)).Inc()
	slogx.FromContext(ctx).Debug("session transition", slog.String("state", string(s)))
}

// Login starts the code flow: it stores a fresh state and PKCE verifier
// and returns the provider authorization URL.
func (c *Controller) Login(ctx context.Context, ts tokenstore.Store) (Navigation, error) {
	state, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return Navigation{}, fmt.Errorf("failed to generate state: %w", err)
	}
	pkce, err := cryptox.NewPKCE()
	if err != nil {
		return Navigation{}, err
	}

	if err := ts.SetState(tokenstore.PendingAuth{
		State:     state,
		Verifier:  pkce.Verifier,
		CreatedAt: c.Now(),
	}); err != nil {
		return Navigation{}, fmt.Errorf("failed to persist state: %w", err)
	}

	c.enter(ctx, domain.StateRedirecting)
	c.Audit.Record(ctx, domain.AuditLoginStarted, "", "")

	return Navigation{URL: c.IDP.AuthURL(state, pkce.Challenge, pkce.Method)}, nil
}

// HandleCallback completes the code flow from the provider's redirect
// query. On success the token bundle is persisted and the signed-in user
// returned. On any failure nothing is persisted.
func (c *Controller) HandleCallback(ctx context.Context, ts tokenstore.Store, query url.Values) (*domain.User, error) {
	user, err := c.handleCallback(ctx, ts, query)
	if err != nil {
		c.enter(ctx, domain.StateError)
		kind := domain.AuditLoginFailed
		if errors.Is(err, ErrStateMismatch) || errors.Is(err, ErrStateMissing) {
			kind = domain.AuditCSRFRejected
		}
		c.Audit.Record(ctx, kind, "", err.Error())
		return nil, err
	}

	c.enter(ctx, domain.StateAuthenticated)
	c.Audit.Record(ctx, domain.AuditLoginSucceeded, user.Subject, user.Username)
	return user, nil
}

func (c *Controller) handleCallback(ctx context.Context, ts tokenstore.Store, query url.Values) (*domain.User, error) {
	l := slogx.FromContext(ctx)
	p := idp.ParseCallback(query)

	if p.Error != "" {
		return nil, &ProviderError{Code: p.Error, Description: p.ErrorDescription}
	}
	if p.Code == "" {
		return nil, ErrMissingCode
	}

	c.enter(ctx, domain.StateAuthenticating)

	key := cryptox.FingerprintToken(p.Code)
	if _, busy := c.inflight.LoadOrStore(key, struct{}{}); busy {
		return nil, ErrDuplicateCallback
	}
	defer c.inflight.Delete(key)

	// The pending state is single-use whatever happens next.
	pending, stored := ts.ConsumeState()
	switch {
	case stored && p.State != pending.State:
		if p.State != "" || !c.LenientState {
			return nil, ErrStateMismatch
		}
		l.Warn("callback without state accepted in lenient mode")
	case !stored:
		if !c.LenientState {
			return nil, ErrStateMissing
		}
		l.Warn("callback without stored state accepted in lenient mode", slog.Bool("has_state", p.State != ""))
	}

	tokens, err := c.IDP.ExchangeCode(ctx, p.Code, pending.Verifier)
	if err != nil {
		return nil, fmt.Errorf("code exchange: %w", err)
	}

	info, err := c.IDP.UserInfo(ctx, tokens.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("userinfo: %w", err)
	}

	user := buildUser(tokens.AccessToken, info)

	if err := ts.Set(tokenstore.Bundle{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		IDToken:      tokens.IDToken,
	}); err != nil {
		ts.Clear()
		return nil, fmt.Errorf("failed to persist tokens: %w", err)
	}

	return user, nil
}

// buildUser prefers the access token claims and fills anything missing from
// the userinfo document.
func buildUser(accessToken string, info *idp.UserInfo) *domain.User {
	var u *domain.User
	if claims, ok := tokenx.Decode(accessToken); ok {
		u = domain.UserFromClaims(claims)
	} else {
		u = &domain.User{Roles: []tokenx.Role{}}
	}

	if u.Subject == "" {
		u.Subject = info.Subject
	}
	if u.Username == "" || (u.Username == u.Subject && info.PreferredUsername != "") {
		u.Username = info.PreferredUsername
	}
	if u.Username == "" {
		u.Username = info.Subject
	}
	if u.DisplayName == "" {
		u.DisplayName = info.Name
	}
	if u.Email == "" {
		u.Email = info.Email
	}
	if len(u.Roles) == 0 {
		for _, r := range info.RealmAccess.Roles {
			if r != "" {
				u.Roles = append(u.Roles, tokenx.Role{Name: r})
			}
		}
	}
	return u
}

// Refresh exchanges the stored refresh token for new tokens. When there is
// no refresh token or the provider refuses it, the store is cleared and the
// session becomes anonymous.
func (c *Controller) Refresh(ctx context.Context, ts tokenstore.Store) (tokenstore.Bundle, error) {
	cur := ts.Get()
	subject := subjectOf(cur.AccessToken)

	if cur.RefreshToken == "" {
		ts.Clear()
		c.enter(ctx, domain.StateAnonymous)
		return tokenstore.Bundle{}, ErrNoRefreshToken
	}

	c.enter(ctx, domain.StateRefreshing)

	tokens, err := c.IDP.Refresh(ctx, cur.RefreshToken)
	if err != nil {
		ts.Clear()
		c.enter(ctx, domain.StateAnonymous)
		c.Audit.Record(ctx, domain.AuditRefreshFailed, subject, err.Error())
		return tokenstore.Bundle{}, fmt.Errorf("refresh: %w", err)
	}

	next := tokenstore.Bundle{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		IDToken:      tokens.IDToken,
	}
	if next.RefreshToken == "" {
		next.RefreshToken = cur.RefreshToken
	}
	if next.IDToken == "" {
		next.IDToken = cur.IDToken
	}

	if err := ts.Set(next); err != nil {
		ts.Clear()
		c.enter(ctx, domain.StateAnonymous)
		return tokenstore.Bundle{}, fmt.Errorf("failed to persist tokens: %w", err)
	}

	c.enter(ctx, domain.StateAuthenticated)
	c.Audit.Record(ctx, domain.AuditRefreshSucceeded, subjectOf(next.AccessToken), "")
	return next, nil
}

// Logout clears the store and returns where to send the browser: the
// provider end-session endpoint when an ID token is available, otherwise
// the local login page.
func (c *Controller) Logout(ctx context.Context, ts tokenstore.Store) Navigation {
	cur := ts.Get()
	ts.Clear()

	c.enter(ctx, domain.StateAnonymous)
	c.Audit.Record(ctx, domain.AuditLogout, subjectOf(cur.AccessToken), "")

	if cur.IDToken == "" {
		return Navigation{URL: c.LoginPath}
	}
	return Navigation{URL: c.IDP.EndSessionURL(cur.IDToken)}
}

// Invalidate ends a session the backend no longer accepts.
func (c *Controller) Invalidate(ctx context.Context, ts tokenstore.Store) Navigation {
	subject := subjectOf(ts.Get().AccessToken)
	ts.Clear()

	c.enter(ctx, domain.StateAnonymous)
	c.Audit.Record(ctx, domain.AuditSessionInvalidated, subject, "")

	return Navigation{URL: c.LoginPath}
}

func subjectOf(accessToken string) string {
	if claims, ok := tokenx.Decode(accessToken); ok {
		return claims.Subject
	}
	return ""
}
