package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/invweb/internal/web/domain"
	"github.com/aussiebroadwan/invweb/internal/web/service"
	"github.com/aussiebroadwan/invweb/pkg/authz"
	"github.com/aussiebroadwan/invweb/pkg/httpx"
	"github.com/aussiebroadwan/invweb/pkg/idp"
	"github.com/aussiebroadwan/invweb/pkg/slogx"
	"github.com/aussiebroadwan/invweb/pkg/tokenstore"
)

// AuthHandler serves the browser side of the OAuth2 code flow.
type AuthHandler struct {
	Session  *service.Controller
	Hydrator *service.Hydrator

	tokens func(http.ResponseWriter, *http.Request) tokenstore.Store
}

// HandleLogin godoc
//
//	@Summary		Start login
//	@Description	Stores a fresh state and PKCE verifier and redirects to the identity provider.
//	@Tags			Auth
//	@Success		302	"Location: provider authorization endpoint"
//	@Failure		500	{object}	httpx.ErrorBody
//	@Router			/auth/login [get].
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := service.WithRemoteAddr(r.Context(), httpx.ClientIP(r))

	nav, err := h.Session.Login(ctx, h.tokens(w, r))
	if err != nil {
		slogx.FromContext(ctx).Error("failed to start login", slog.String("error", err.Error()))
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Could not start login")
		return
	}
	httpx.Redirect(w, r, nav.URL)
}

// HandleCallback godoc
//
//	@Summary		Login callback
//	@Description	Completes the authorization code flow and sets the session cookies.
//	@Tags			Auth
//	@Param			code				query	string	false	"Authorization code"
//	@Param			state				query	string	false	"CSRF state"
//	@Param			error				query	string	false	"Provider error code"
//	@Param			error_description	query	string	false	"Provider error description"
//	@Success		302					"Location: /"
//	@Failure		400					{object}	httpx.ErrorBody
//	@Failure		409					{object}	httpx.ErrorBody
//	@Failure		502					{object}	httpx.ErrorBody
//	@Router			/auth/callback [get].
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := service.WithRemoteAddr(r.Context(), httpx.ClientIP(r))
	l := slogx.FromContext(ctx)

	user, err := h.Session.HandleCallback(ctx, h.tokens(w, r), r.URL.Query())
	if err == nil {
		l.Info("user signed in", slog.String("user", user.Username))
		httpx.Redirect(w, r, "/")
		return
	}

	var perr *service.ProviderError
	var ierr *idp.Error
	switch {
	case errors.As(err, &perr):
		httpx.WriteError(w, http.StatusBadRequest, perr.Code, perr.Description)
	case errors.Is(err, service.ErrStateMismatch), errors.Is(err, service.ErrStateMissing):
		l.Warn("callback rejected", slog.String("error", err.Error()))
		httpx.WriteError(w, http.StatusBadRequest, "invalid_state", "Security check failed, please sign in again")
	case errors.Is(err, service.ErrMissingCode):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Authorization code not received")
	case errors.Is(err, service.ErrDuplicateCallback):
		httpx.WriteError(w, http.StatusConflict, "invalid_request", "This sign-in is already being processed")
	case errors.As(err, &ierr):
		l.Error("login failed at provider", slog.String("error", err.Error()))
		httpx.WriteError(w, http.StatusBadGateway, "login_failed", ierr.Description)
	default:
		l.Error("login failed", slog.String("error", err.Error()))
		httpx.WriteError(w, http.StatusBadGateway, "login_failed", "Could not complete sign-in")
	}
}

// HandleLogout godoc
//
//	@Summary		Logout
//	@Description	Clears the session cookies and redirects to the provider end-session endpoint, or to /login
//	@Description	when no ID token is held.
//	@Tags			Auth
//	@Success		302	"Location: end-session endpoint or /login"
//	@Router			/auth/logout [get]
//	@Router			/auth/logout [post].
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := service.WithRemoteAddr(r.Context(), httpx.ClientIP(r))
	nav := h.Session.Logout(ctx, h.tokens(w, r))
	httpx.Redirect(w, r, nav.URL)
}

// HandleRefresh godoc
//
//	@Summary		Refresh session
//	@Description	Exchanges the refresh token cookie for new tokens.
//	@Tags			Auth
//	@Produce		json
//	@Success		200	{object}	SessionView
//	@Failure		401	{object}	RedirectBody
//	@Router			/auth/refresh [post].
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := service.WithRemoteAddr(r.Context(), httpx.ClientIP(r))
	ts := h.tokens(w, r)

	if _, err := h.Session.Refresh(ctx, ts); err != nil {
		slogx.FromContext(ctx).Info("refresh failed", slog.String("error", err.Error()))
		httpx.WriteJSON(w, http.StatusUnauthorized, RedirectBody{
			Error:       "session_expired",
			Description: "Please sign in again",
			Redirect:    service.DefaultLoginPath,
		})
		return
	}

	httpx.WriteJSON(w, http.StatusOK, viewOf(h.Hydrator.Hydrate(ctx, ts)))
}

// SessionView is the session as reported to the browser.
type SessionView struct {
	User            *domain.User      `json:"user"`
	IsAuthenticated bool              `json:"isAuthenticated"`
	IsLoading       bool              `json:"isLoading"`
	Permissions     authz.Permissions `json:"permissions"`
}

func viewOf(sc *service.SessionContext) SessionView {
	return SessionView{
		User:            sc.User(),
		IsAuthenticated: sc.IsAuthenticated(),
		IsLoading:       sc.IsLoading(),
		Permissions:     sc.Permissions(),
	}
}

// HandleSession godoc
//
//	@Summary		Current session
//	@Tags			Auth
//	@Produce		json
//	@Success		200	{object}	SessionView
//	@Router			/api/auth/session [get].
func (h *AuthHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, viewOf(service.SessionFromContext(r.Context())))
}
