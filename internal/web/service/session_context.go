package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/invweb/internal/web/domain"
	"github.com/aussiebroadwan/invweb/pkg/authz"
	"github.com/aussiebroadwan/invweb/pkg/inventory"
	"github.com/aussiebroadwan/invweb/pkg/slogx"
	"github.com/aussiebroadwan/invweb/pkg/tokenstore"
	"github.com/aussiebroadwan/invweb/pkg/tokenx"
)

// SessionContext is the session as seen by one request. It starts loading
// and settles once Hydrate has resolved the user.
type SessionContext struct {
	user    *domain.User
	loading bool
	tokens  tokenstore.Store
	now     func() time.Time
}

// NewSessionContext returns an unresolved context over ts.
func NewSessionContext(ts tokenstore.Store, now func() time.Time) *SessionContext {
	if now == nil {
		now = time.Now
	}
	return &SessionContext{tokens: ts, loading: true, now: now}
}

func (s *SessionContext) User() *domain.User { return s.user }

// SetUser replaces the user wholesale.
func (s *SessionContext) SetUser(u *domain.User) { s.user = u }

func (s *SessionContext) IsLoading() bool { return s.loading }

// IsAuthenticated is recomputed from the stored access token on each call.
func (s *SessionContext) IsAuthenticated() bool {
	return s.user != nil && authz.IsAuthenticated(s.tokens.Get().AccessToken, s.now())
}

// Roles returns the user's roles, or nil when anonymous.
func (s *SessionContext) Roles() []tokenx.Role {
	if s.user == nil {
		return nil
	}
	return s.user.Roles
}

// Permissions derives what the dashboard may offer this session.
func (s *SessionContext) Permissions() authz.Permissions {
	return authz.PermissionsFor(s.IsAuthenticated(), s.Roles())
}

func (s *SessionContext) Tokens() tokenstore.Store { return s.tokens }

// SessionTokens is an inventory.TokenSource that reads the access token from
// the request's session, so a refresh within the request is picked up by the
// next backend call. Outside a session it falls back to inventory.WithToken.
var SessionTokens inventory.TokenSource = inventory.TokenSourceFunc(func(ctx context.Context) (string, error) {
	if s := SessionFromContext(ctx); s != nil {
		return s.tokens.Get().AccessToken, nil
	}
	return inventory.ContextTokens.AccessToken(ctx)
})

type sessionCtxKey struct{}

func WithSession(ctx context.Context, s *SessionContext) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, s)
}

// SessionFromContext returns the request's session, or nil outside the
// session middleware.
func SessionFromContext(ctx context.Context) *SessionContext {
	s, _ := ctx.Value(sessionCtxKey{}).(*SessionContext)
	return s
}

// Hydrator resolves the user for a SessionContext.
type Hydrator struct {
	Controller *Controller
	Inventory  *inventory.Client
	Now        func() time.Time
}

// Hydrate resolves the user behind ts. A decodable, unexpired access token
// is used directly. A token whose claims cannot be read is resolved through
// the backend's "who am I", with one refresh and retry if that fails; when
// the retry also fails the session is cleared. The returned context is
// never loading.
func (h *Hydrator) Hydrate(ctx context.Context, ts tokenstore.Store) *SessionContext {
	sc := NewSessionContext(ts, h.Now)
	defer func() { sc.loading = false }()

	token := ts.Get().AccessToken
	if token == "" {
		return sc
	}

	if claims, ok := tokenx.Decode(token); ok {
		if !claims.Expired(sc.now()) {
			sc.SetUser(domain.UserFromClaims(claims))
		}
		return sc
	}

	l := slogx.FromContext(ctx)
	user, err := h.whoAmI(ctx, sc)
	if err != nil {
		l.Debug("who-am-i failed, refreshing", slog.String("error", err.Error()))

		if _, rerr := h.Controller.Refresh(ctx, ts); rerr != nil {
			l.Info("session could not be restored", slog.String("error", rerr.Error()))
			return sc
		}
		if user, err = h.whoAmI(ctx, sc); err != nil {
			l.Info("session could not be restored after refresh", slog.String("error", err.Error()))
			h.Controller.Invalidate(ctx, ts)
			return sc
		}
	}

	sc.SetUser(user)
	return sc
}

func (h *Hydrator) whoAmI(ctx context.Context, sc *SessionContext) (*domain.User, error) {
	if h.Inventory == nil {
		return nil, errors.New("no inventory backend configured")
	}

	acct, err := h.Inventory.Me(WithSession(ctx, sc))
	if err != nil {
		return nil, err
	}
	return &domain.User{
		Username: acct.Username,
		Email:    acct.Email,
		Roles:    acct.Roles(),
	}, nil
}
