package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/aussiebroadwan/invweb/internal/web/service"
	"github.com/aussiebroadwan/invweb/pkg/httpx"
	"github.com/aussiebroadwan/invweb/pkg/inventory"
)

// StockHandler fronts /api/stock.
type StockHandler struct {
	Catalog   *service.CatalogService
	Inventory *inventory.Client

	backend *backend
}

// HandleRegister godoc
//
//	@Summary	Register stock movement
//	@Tags		Stock
//	@Accept		json
//	@Produce	json
//	@Param		movement	body		inventory.StockMovementRequest	true	"Movement"
//	@Success	201			{object}	inventory.StockMovement
//	@Router		/api/stock/movements [post].
func (h *StockHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req inventory.StockMovementRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ProductID <= 0 || req.Quantity <= 0 || !validMovementType(req.Type) {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "productoId, cantidad and tipoMovimiento are required")
		return
	}

	var mv *inventory.StockMovement
	if h.backend.call(w, r, func(ctx context.Context) (err error) {
		mv, err = h.Catalog.RegisterMovement(ctx, req)
		return err
	}) {
		httpx.WriteJSON(w, http.StatusCreated, mv)
	}
}

// historyLayouts are the accepted forms of desde/hasta.
var historyLayouts = []string{"2006-01-02T15:04:05", time.RFC3339, time.DateOnly}

func parseHistoryTime(s string) (time.Time, bool) {
	for _, layout := range historyLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// HandleHistory godoc
//
//	@Summary		Stock history
//	@Description	At most one filter applies, in this order: producto, usuario, tipo, desde+hasta.
//	@Tags			Stock
//	@Produce		json
//	@Param			producto	query	int		false	"Product ID"
//	@Param			usuario		query	string	false	"Username"
//	@Param			tipo		query	string	false	"Movement type"
//	@Param			desde		query	string	false	"From (inclusive)"
//	@Param			hasta		query	string	false	"To (inclusive)"
//	@Success		200			{array}	inventory.StockMovement
//	@Router			/api/stock/history [get].
func (h *StockHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var fetch func(ctx context.Context) ([]inventory.StockMovement, error)
	switch {
	case q.Get("producto") != "":
		id, err := strconv.ParseInt(q.Get("producto"), 10, 64)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid producto")
			return
		}
		fetch = func(ctx context.Context) ([]inventory.StockMovement, error) {
			return h.Inventory.Stock.HistoryByProduct(ctx, id)
		}
	case q.Get("usuario") != "":
		fetch = func(ctx context.Context) ([]inventory.StockMovement, error) {
			return h.Inventory.Stock.HistoryByUser(ctx, q.Get("usuario"))
		}
	case q.Get("tipo") != "":
		fetch = func(ctx context.Context) ([]inventory.StockMovement, error) {
			return h.Inventory.Stock.HistoryByType(ctx, q.Get("tipo"))
		}
	case q.Get("desde") != "" || q.Get("hasta") != "":
		from, okFrom := parseHistoryTime(q.Get("desde"))
		to, okTo := parseHistoryTime(q.Get("hasta"))
		if !okFrom || !okTo || to.Before(from) {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "desde and hasta must form a valid range")
			return
		}
		fetch = func(ctx context.Context) ([]inventory.StockMovement, error) {
			return h.Inventory.Stock.HistoryBetween(ctx, from, to)
		}
	default:
		fetch = h.Inventory.Stock.History
	}

	var out []inventory.StockMovement
	if h.backend.call(w, r, func(ctx context.Context) (err error) {
		out, err = fetch(ctx)
		return err
	}) {
		httpx.WriteJSON(w, http.StatusOK, out)
	}
}

// HandleLowStock godoc
//
//	@Summary	Products at or below minimum stock
//	@Tags		Stock
//	@Produce	json
//	@Success	200	{array}	inventory.Product
//	@Router		/api/stock/alerts/low [get].
func (h *StockHandler) HandleLowStock(w http.ResponseWriter, r *http.Request) {
	h.products(w, r, h.Inventory.Stock.LowStock)
}

// HandleOutOfStock godoc
//
//	@Summary	Products without stock
//	@Tags		Stock
//	@Produce	json
//	@Success	200	{array}	inventory.Product
//	@Router		/api/stock/alerts/out [get].
func (h *StockHandler) HandleOutOfStock(w http.ResponseWriter, r *http.Request) {
	h.products(w, r, h.Inventory.Stock.OutOfStock)
}

func (h *StockHandler) products(w http.ResponseWriter, r *http.Request, fetch func(context.Context) ([]inventory.Product, error)) {
	var out []inventory.Product
	if h.backend.call(w, r, func(ctx context.Context) (err error) {
		out, err = fetch(ctx)
		return err
	}) {
		httpx.WriteJSON(w, http.StatusOK, out)
	}
}

// HandleAtMinimum godoc
//
//	@Summary	Check minimum stock
//	@Tags		Stock
//	@Produce	json
//	@Param		id	path		int	true	"Product ID"
//	@Success	200	{object}	map[string]bool
//	@Router		/api/stock/products/{id}/minimum [get].
func (h *StockHandler) HandleAtMinimum(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var atMin bool
	if h.backend.call(w, r, func(ctx context.Context) (err error) {
		atMin, err = h.Inventory.Stock.AtMinimum(ctx, id)
		return err
	}) {
		httpx.WriteJSON(w, http.StatusOK, map[string]bool{"atMinimum": atMin})
	}
}

// HandleStats godoc
//
//	@Summary	Stock statistics
//	@Tags		Stock
//	@Produce	json
//	@Success	200	{object}	inventory.StockStats
//	@Router		/api/stock/stats [get].
func (h *StockHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	var st *inventory.StockStats
	if h.backend.call(w, r, func(ctx context.Context) (err error) {
		st, err = h.Inventory.Stock.Stats(ctx)
		return err
	}) {
		httpx.WriteJSON(w, http.StatusOK, st)
	}
}

// MovementsHandler fronts /api/movimientos.
type MovementsHandler struct {
	Inventory *inventory.Client

	backend *backend
}

// HandleList godoc
//
//	@Summary	List movements
//	@Tags		Movements
//	@Produce	json
//	@Param		page	query	int	false	"0-based page"
//	@Param		size	query	int	false	"Page size, default 50"
//	@Success	200		{array}	inventory.Movement
//	@Router		/api/movements [get].
func (h *MovementsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))

	h.movements(w, r, func(ctx context.Context) ([]inventory.Movement, error) {
		return h.Inventory.Movements.List(ctx, page, size)
	})
}

// HandleByUser godoc
//
//	@Summary	Movements by user
//	@Tags		Movements
//	@Produce	json
//	@Param		username	path	string	true	"Username"
//	@Success	200			{array}	inventory.Movement
//	@Router		/api/movements/user/{username} [get].
func (h *MovementsHandler) HandleByUser(w http.ResponseWriter, r *http.Request) {
	user := r.PathValue("username")
	h.movements(w, r, func(ctx context.Context) ([]inventory.Movement, error) {
		return h.Inventory.Movements.ByUser(ctx, user)
	})
}

// HandleByType godoc
//
//	@Summary	Movements by type
//	@Tags		Movements
//	@Produce	json
//	@Param		type	path	string	true	"Movement type"
//	@Success	200		{array}	inventory.Movement
//	@Router		/api/movements/type/{type} [get].
func (h *MovementsHandler) HandleByType(w http.ResponseWriter, r *http.Request) {
	typ := r.PathValue("type")
	h.movements(w, r, func(ctx context.Context) ([]inventory.Movement, error) {
		return h.Inventory.Movements.ByType(ctx, typ)
	})
}

func (h *MovementsHandler) movements(w http.ResponseWriter, r *http.Request, fetch func(context.Context) ([]inventory.Movement, error)) {
	var out []inventory.Movement
	if h.backend.call(w, r, func(ctx context.Context) (err error) {
		out, err = fetch(ctx)
		return err
	}) {
		httpx.WriteJSON(w, http.StatusOK, out)
	}
}
