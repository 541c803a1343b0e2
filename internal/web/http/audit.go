package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/aussiebroadwan/invweb/internal/web/domain"
	"github.com/aussiebroadwan/invweb/internal/web/service"
	"github.com/aussiebroadwan/invweb/internal/web/store"
	"github.com/aussiebroadwan/invweb/pkg/httpx"
	"github.com/aussiebroadwan/invweb/pkg/slogx"
)

// AuditHandler serves GET /api/audit.
type AuditHandler struct {
	Audit *service.AuditService
}

// ServeHTTP godoc
//
//	@Summary		Session audit journal
//	@Description	Newest first. ADMIN only.
//	@Tags			Audit
//	@Produce		json
//	@Param			limit	query		int		false	"Maximum events, default 50, max 500"
//	@Param			kind	query		string	false	"Event kind"
//	@Param			subject	query		string	false	"Subject"
//	@Success		200		{array}		domain.AuditEvent
//	@Failure		403		{object}	RedirectBody
//	@Router			/api/audit [get].
func (h *AuditHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	events, err := h.Audit.List(r.Context(), store.AuditFilter{
		Kind:    domain.AuditKind(q.Get("kind")),
		Subject: q.Get("subject"),
		Limit:   limit,
	})
	if err != nil {
		slogx.FromContext(r.Context()).Error("failed to list audit events", slog.String("error", err.Error()))
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Could not read the audit journal")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, events)
}
