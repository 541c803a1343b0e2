package http

import (
	"net/http"

	"github.com/aussiebroadwan/invweb/internal/web/service"
	"github.com/aussiebroadwan/invweb/pkg/httpx"
)

// PagesHandler answers the application's page routes. The BFF renders no
// markup; each page reports the state a front end needs to draw it.
type PagesHandler struct {
	Catalog *service.CatalogService
}

// Dashboard is the landing page model.
type Dashboard struct {
	Session SessionView          `json:"session"`
	Catalog *service.CatalogPage `json:"catalog"`
}

// HandleDashboard godoc
//
//	@Summary	Dashboard
//	@Tags		Pages
//	@Produce	json
//	@Success	200	{object}	Dashboard
//	@Failure	502	{object}	httpx.ErrorBody
//	@Router		/ [get].
func (h *PagesHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	page, err := h.Catalog.Query(r.Context(), catalogQuery(r))
	if err != nil {
		writeBackendError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, Dashboard{
		Session: viewOf(service.SessionFromContext(r.Context())),
		Catalog: page,
	})
}

// LoginPage tells the front end where to start the sign-in.
type LoginPage struct {
	LoginURL string `json:"loginUrl"`
}

// HandleLogin godoc
//
//	@Summary		Login page
//	@Description	Signed-in users are sent to the dashboard.
//	@Tags			Pages
//	@Produce		json
//	@Success		200	{object}	LoginPage
//	@Success		302	"Location: /"
//	@Router			/login [get].
func (h *PagesHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if sc := service.SessionFromContext(r.Context()); sc != nil && sc.IsAuthenticated() {
		httpx.Redirect(w, r, "/")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, LoginPage{LoginURL: "/auth/login"})
}

// HandleUnauthorized godoc
//
//	@Summary	Access denied page
//	@Tags		Pages
//	@Produce	json
//	@Success	403	{object}	SessionView
//	@Router		/unauthorized [get].
func (h *PagesHandler) HandleUnauthorized(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusForbidden, viewOf(service.SessionFromContext(r.Context())))
}
