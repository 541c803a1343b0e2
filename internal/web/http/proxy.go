package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/invweb/pkg/httpx"
	"github.com/aussiebroadwan/invweb/pkg/idp"
	"github.com/aussiebroadwan/invweb/pkg/slogx"
)

// TokenProxyHandler serves POST /api/auth/token. It forwards a JSON grant
// request to the provider's token endpoint with this client's credentials.
type TokenProxyHandler struct {
	IDP *idp.Client
}

// ServeHTTP godoc
//
//	@Summary		Token proxy
//	@Description	Forwards an authorization_code or refresh_token grant to the identity provider.
//	@Tags			Proxy
//	@Accept			json
//	@Produce		json
//	@Param			request	body		idp.TokenRequest	true	"Grant request"
//	@Success		200		{object}	idp.TokenResponse
//	@Failure		400		{object}	httpx.ErrorBody
//	@Failure		500		{object}	httpx.ErrorBody
//	@Router			/api/auth/token [post].
func (h *TokenProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	l := slogx.FromContext(r.Context())

	var req idp.TokenRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, httpx.ErrorBody{Error: "Invalid JSON body"})
		return
	}

	body, err := h.IDP.TokenRaw(r.Context(), req)

	var ierr *idp.Error
	switch {
	case err == nil:
		httpx.NoCache(w)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	case errors.Is(err, idp.ErrInvalidTokenRequest):
		httpx.WriteJSON(w, http.StatusBadRequest, httpx.ErrorBody{Error: "Invalid parameters for token request"})
	case errors.As(err, &ierr):
		l.Warn("provider rejected token request",
			slog.String("grant_type", req.GrantType),
			slog.Int("status", ierr.StatusCode),
		)
		httpx.WriteJSON(w, ierr.StatusCode, httpx.ErrorBody{
			Error:       fmt.Sprintf("Error from identity provider: %d", ierr.StatusCode),
			Description: ierr.Description,
		})
	default:
		l.Error("token proxy failed", slog.String("error", err.Error()))
		httpx.WriteJSON(w, http.StatusInternalServerError, httpx.ErrorBody{Error: "Internal server error"})
	}
}

// UserInfoProxyHandler serves GET /api/auth/userinfo, passing the caller's
// bearer token to the provider's userinfo endpoint.
type UserInfoProxyHandler struct {
	IDP *idp.Client
}

// ServeHTTP godoc
//
//	@Summary	Userinfo proxy
//	@Tags		Proxy
//	@Produce	json
//	@Param		Authorization	header		string	true	"Bearer access token"
//	@Success	200				{object}	idp.UserInfo
//	@Failure	401				{object}	httpx.ErrorBody
//	@Router		/api/auth/userinfo [get].
func (h *UserInfoProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		httpx.WriteJSON(w, http.StatusUnauthorized, httpx.ErrorBody{Error: "Missing or invalid authorization header"})
		return
	}

	body, err := h.IDP.UserInfoRaw(r.Context(), token)

	var ierr *idp.Error
	switch {
	case err == nil:
		httpx.NoCache(w)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	case errors.As(err, &ierr) && ierr.StatusCode == http.StatusUnauthorized:
		httpx.WriteJSON(w, http.StatusUnauthorized, httpx.ErrorBody{Error: "Unauthorized: Invalid or expired token"})
	case errors.As(err, &ierr):
		httpx.WriteJSON(w, ierr.StatusCode, httpx.ErrorBody{
			Error:       "Failed to fetch user information",
			Description: ierr.Body,
		})
	default:
		slogx.FromContext(r.Context()).Error("userinfo proxy failed", slog.String("error", err.Error()))
		httpx.WriteJSON(w, http.StatusInternalServerError, httpx.ErrorBody{Error: "Internal server error during user info request"})
	}
}
