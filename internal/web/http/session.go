package http

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/invweb/internal/web/service"
	"github.com/aussiebroadwan/invweb/pkg/authz"
	"github.com/aussiebroadwan/invweb/pkg/httpx"
	"github.com/aussiebroadwan/invweb/pkg/inventory"
	"github.com/aussiebroadwan/invweb/pkg/slogx"
	"github.com/aussiebroadwan/invweb/pkg/tokenstore"
)

const unauthorizedPath = "/unauthorized"

// tokens returns the cookie-backed token store for one request.
func (r *Router) tokens(w http.ResponseWriter, req *http.Request) tokenstore.Store {
	return tokenstore.NewCookieStore(w, req, r.cookies)
}

// withSession hydrates the request's session from its cookies and attaches
// it, the client address and the subject to the context.
func (r *Router) withSession() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := service.WithRemoteAddr(req.Context(), httpx.ClientIP(req))

			sc := r.Hydrator.Hydrate(ctx, r.tokens(w, req))
			ctx = service.WithSession(ctx, sc)
			if u := sc.User(); u != nil {
				ctx = httpx.WithSubject(ctx, cmp.Or(u.Subject, u.Username))
				ctx = slogx.With(ctx, slog.String("user", u.Username))
			}

			next.ServeHTTP(w, req.WithContext(ctx))
		})
	}
}

// requireSession rejects requests without an authenticated session.
func requireSession() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sc := service.SessionFromContext(r.Context())
			if sc == nil || !sc.IsAuthenticated() {
				deny(w, r, http.StatusUnauthorized, "unauthorized", "Authentication required", service.DefaultLoginPath)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requireRoles rejects sessions holding none of roles. It must run after
// requireSession.
func requireRoles(roles ...string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sc := service.SessionFromContext(r.Context())
			if sc == nil || !authz.HasAnyRole(sc.Roles(), roles...) {
				slogx.FromContext(r.Context()).Info("role check failed", slog.Any("required", roles))
				deny(w, r, http.StatusForbidden, "forbidden", "Insufficient role", unauthorizedPath)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RedirectBody tells a script client where the browser should go next.
type RedirectBody struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
	Redirect    string `json:"redirect"`
}

// deny sends browsers navigating to a page to location, and answers script
// clients with status and a RedirectBody.
func deny(w http.ResponseWriter, r *http.Request, status int, code, desc, location string) {
	if wantsHTML(r) {
		httpx.Redirect(w, r, location)
		return
	}
	httpx.WriteJSON(w, status, RedirectBody{Error: code, Description: desc, Redirect: location})
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

// backend runs inventory calls on behalf of the request's session.
type backend struct {
	session *service.Controller
}

func (r *Router) backend() *backend {
	return &backend{session: r.Session}
}

// call runs fn. When the backend answers 401 the session is refreshed once
// and fn retried; if that fails too the session is invalidated and the
// client sent to login. It reports whether fn succeeded. On false a
// response has already been written.
func (b *backend) call(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context) error) bool {
	ctx := r.Context()
	err := fn(ctx)

	if errors.Is(err, inventory.ErrUnauthorized) {
		if sc := service.SessionFromContext(ctx); sc != nil {
			if _, rerr := b.session.Refresh(ctx, sc.Tokens()); rerr == nil {
				err = fn(ctx)
			}
			if errors.Is(err, inventory.ErrUnauthorized) {
				nav := b.session.Invalidate(ctx, sc.Tokens())
				deny(w, r, http.StatusUnauthorized, "session_expired", "Please sign in again", nav.URL)
				return false
			}
		}
	}

	if err != nil {
		writeBackendError(w, r, err)
		return false
	}
	return true
}

func writeBackendError(w http.ResponseWriter, r *http.Request, err error) {
	status := inventory.StatusCode(err)

	switch {
	case errors.Is(err, service.ErrDuplicateProduct):
		httpx.WriteError(w, http.StatusConflict, "duplicate_product", "A product with this name already exists")
	case errors.Is(err, inventory.ErrUnauthorized):
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
	case errors.Is(err, inventory.ErrForbidden):
		httpx.WriteError(w, http.StatusForbidden, "forbidden", "The inventory service refused this operation")
	case errors.Is(err, inventory.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", "Resource not found")
	case status >= 400 && status < 500:
		var apiErr *inventory.APIError
		errors.As(err, &apiErr)
		httpx.WriteError(w, status, "backend_rejected", apiErr.Body)
	default:
		slogx.FromContext(r.Context()).Error("inventory backend call failed", slog.String("error", err.Error()))
		httpx.WriteError(w, http.StatusBadGateway, "backend_unavailable", "The inventory service is unavailable")
	}
}
