package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/aussiebroadwan/invweb/internal/web/service"
	"github.com/aussiebroadwan/invweb/pkg/httpx"
	"github.com/aussiebroadwan/invweb/pkg/inventory"
)

// ProductsHandler fronts /api/productos. Writes go through the catalog so
// the cached listing is dropped.
type ProductsHandler struct {
	Catalog   *service.CatalogService
	Inventory *inventory.Client

	backend *backend
}

// HandleList godoc
//
//	@Summary	List products
//	@Tags		Products
//	@Produce	json
//	@Success	200	{array}		inventory.Product
//	@Failure	502	{object}	httpx.ErrorBody
//	@Router		/api/products [get].
func (h *ProductsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	products, err := h.Catalog.Products(r.Context())
	if err != nil {
		writeBackendError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, products)
}

// HandleCatalog godoc
//
//	@Summary		Dashboard catalog page
//	@Description	Products newest first, filtered by name, category and maximum price, 8 per page.
//	@Tags			Products
//	@Produce		json
//	@Param			name		query		string	false	"Name substring"
//	@Param			category	query		string	false	"Category, Todos for all"
//	@Param			maxPrice	query		number	false	"Maximum price, inclusive"
//	@Param			page		query		int		false	"1-based page"
//	@Success		200			{object}	service.CatalogPage
//	@Router			/api/catalog [get].
func (h *ProductsHandler) HandleCatalog(w http.ResponseWriter, r *http.Request) {
	page, err := h.Catalog.Query(r.Context(), catalogQuery(r))
	if err != nil {
		writeBackendError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, page)
}

func catalogQuery(r *http.Request) service.CatalogQuery {
	q := r.URL.Query()
	maxPrice, _ := strconv.ParseFloat(q.Get("maxPrice"), 64)
	page, _ := strconv.Atoi(q.Get("page"))
	return service.CatalogQuery{
		Name:     q.Get("name"),
		Category: q.Get("category"),
		MaxPrice: maxPrice,
		Page:     page,
	}
}

// HandleGet godoc
//
//	@Summary	Get product
//	@Tags		Products
//	@Produce	json
//	@Param		id	path		int	true	"Product ID"
//	@Success	200	{object}	inventory.Product
//	@Failure	404	{object}	httpx.ErrorBody
//	@Router		/api/products/{id} [get].
func (h *ProductsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var p *inventory.Product
	if h.backend.call(w, r, func(ctx context.Context) (err error) {
		p, err = h.Inventory.Products.Get(ctx, id)
		return err
	}) {
		httpx.WriteJSON(w, http.StatusOK, p)
	}
}

// HandleSearch godoc
//
//	@Summary	Search products
//	@Tags		Products
//	@Produce	json
//	@Param		nombre		query	string	false	"Name"
//	@Param		categoria	query	string	false	"Category"
//	@Success	200			{array}	inventory.Product
//	@Router		/api/products/search [get].
func (h *ProductsHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name, category := q.Get("nombre"), q.Get("categoria")
	if name == "" && category == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "nombre or categoria is required")
		return
	}

	var out []inventory.Product
	if h.backend.call(w, r, func(ctx context.Context) (err error) {
		if name != "" {
			out, err = h.Inventory.Products.SearchByName(ctx, name)
		} else {
			out, err = h.Inventory.Products.SearchByCategory(ctx, category)
		}
		return err
	}) {
		httpx.WriteJSON(w, http.StatusOK, out)
	}
}

// HandleHistory godoc
//
//	@Summary	Product movement history
//	@Tags		Products
//	@Produce	json
//	@Param		id	path	int	true	"Product ID"
//	@Success	200	{array}	inventory.Movement
//	@Router		/api/products/{id}/history [get].
func (h *ProductsHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var out []inventory.Movement
	if h.backend.call(w, r, func(ctx context.Context) (err error) {
		out, err = h.Inventory.Movements.ByProduct(ctx, id)
		return err
	}) {
		httpx.WriteJSON(w, http.StatusOK, out)
	}
}

// HandleCreate godoc
//
//	@Summary	Create product
//	@Tags		Products
//	@Accept		json
//	@Produce	json
//	@Param		product	body		inventory.Product	true	"Product"
//	@Success	201		{object}	inventory.Product
//	@Failure	403		{object}	RedirectBody
//	@Failure	409		{object}	httpx.ErrorBody
//	@Router		/api/products [post].
func (h *ProductsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var p inventory.Product
	if !decodeBody(w, r, &p) {
		return
	}
	if p.Name == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "nombre is required")
		return
	}

	var created *inventory.Product
	if h.backend.call(w, r, func(ctx context.Context) (err error) {
		created, err = h.Catalog.Create(ctx, p)
		return err
	}) {
		httpx.WriteJSON(w, http.StatusCreated, created)
	}
}

// HandleUpdate godoc
//
//	@Summary	Update product
//	@Tags		Products
//	@Accept		json
//	@Produce	json
//	@Param		id		path		int					true	"Product ID"
//	@Param		product	body		inventory.Product	true	"Product"
//	@Success	200		{object}	inventory.Product
//	@Router		/api/products/{id} [put].
func (h *ProductsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var p inventory.Product
	if !decodeBody(w, r, &p) {
		return
	}

	username := sessionUsername(r.Context())
	var updated *inventory.Product
	if h.backend.call(w, r, func(ctx context.Context) (err error) {
		updated, err = h.Catalog.Update(ctx, id, p, username)
		return err
	}) {
		httpx.WriteJSON(w, http.StatusOK, updated)
	}
}

// HandleDelete godoc
//
//	@Summary	Delete product
//	@Tags		Products
//	@Param		id	path	int	true	"Product ID"
//	@Success	204
//	@Failure	403	{object}	RedirectBody
//	@Router		/api/products/{id} [delete].
func (h *ProductsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if h.backend.call(w, r, func(ctx context.Context) error {
		return h.Catalog.Delete(ctx, id)
	}) {
		w.WriteHeader(http.StatusNoContent)
	}
}

// StockUpdate adjusts a product's quantity.
type StockUpdate struct {
	Quantity int    `json:"cantidad"`
	Type     string `json:"tipoMovimiento"`
}

// HandleUpdateStock godoc
//
//	@Summary	Update product stock
//	@Tags		Products
//	@Accept		json
//	@Produce	json
//	@Param		id		path		int			true	"Product ID"
//	@Param		update	body		StockUpdate	true	"Quantity and movement type"
//	@Success	200		{object}	inventory.Product
//	@Router		/api/products/{id}/stock [post].
func (h *ProductsHandler) HandleUpdateStock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req StockUpdate
	if !decodeBody(w, r, &req) {
		return
	}
	if !validMovementType(req.Type) || req.Quantity < 0 {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid quantity or tipoMovimiento")
		return
	}

	username := sessionUsername(r.Context())
	var p *inventory.Product
	if h.backend.call(w, r, func(ctx context.Context) (err error) {
		p, err = h.Catalog.UpdateStock(ctx, id, req.Quantity, req.Type, username)
		return err
	}) {
		httpx.WriteJSON(w, http.StatusOK, p)
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid id")
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

func validMovementType(t string) bool {
	switch t {
	case inventory.MovementIn, inventory.MovementOut, inventory.MovementAdjustment:
		return true
	}
	return false
}

// sessionUsername returns the signed-in user's name for backend audit fields.
func sessionUsername(ctx context.Context) string {
	if sc := service.SessionFromContext(ctx); sc != nil && sc.User() != nil {
		return sc.User().Username
	}
	return ""
}
