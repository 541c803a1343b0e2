package inventory

import (
	"encoding/json"

	"github.com/aussiebroadwan/invweb/pkg/tokenx"
)

// Product mirrors the backend's producto resource.
type Product struct {
	ID          int64   `json:"id,omitempty"`
	Name        string  `json:"nombre"`
	Description string  `json:"descripcion"`
	Category    string  `json:"categoria"`
	Price       float64 `json:"precio"`
	Quantity    int     `json:"cantidadInicial"`
	MinStock    int     `json:"stockMinimo,omitempty"`
	CreatedAt   string  `json:"fechaCreacion,omitempty"`
}

// ProductRef is the product summary embedded in movement records.
type ProductRef struct {
	ID          int64  `json:"id"`
	Name        string `json:"nombre"`
	Category    string `json:"categoria"`
	Description string `json:"descripcion,omitempty"`
}

// Stock movement types.
const (
	MovementIn         = "ENTRADA"
	MovementOut        = "SALIDA"
	MovementAdjustment = "AJUSTE_INVENTARIO"
)

// StockMovement is an entry of the stock ledger.
type StockMovement struct {
	ID        int64       `json:"id"`
	ProductID int64       `json:"productoId"`
	Quantity  int         `json:"cantidad"`
	Type      string      `json:"tipoMovimiento"`
	User      string      `json:"usuario"`
	Date      string      `json:"fechaMovimiento"`
	Notes     string      `json:"observaciones,omitempty"`
	Product   *ProductRef `json:"producto,omitempty"`
}

// StockMovementRequest registers a stock movement.
type StockMovementRequest struct {
	ProductID int64  `json:"productoId"`
	Quantity  int    `json:"cantidad"`
	Type      string `json:"tipoMovimiento"`
	Notes     string `json:"observaciones,omitempty"`
}

// StockStats is the backend's stock summary.
type StockStats struct {
	TotalProducts  int     `json:"totalProductos"`
	LowStock       int     `json:"productosStockBajo"`
	OutOfStock     int     `json:"productosSinStock"`
	InventoryValue float64 `json:"valorTotalInventario"`
}

// Movement is a product history record.
type Movement struct {
	ID       int64      `json:"id"`
	Product  ProductRef `json:"producto"`
	User     string     `json:"usuario"`
	Type     string     `json:"tipo"`
	Quantity int        `json:"cantidad"`
	Reason   string     `json:"motivo"`
	Date     string     `json:"fechaMovimiento"`
}

// Account is the backend's view of the calling user.
type Account struct {
	ID       int64           `json:"id"`
	Username string          `json:"username"`
	Email    string          `json:"email,omitempty"`
	RawRoles json.RawMessage `json:"roles,omitempty"`
}

// Roles returns the account's roles in canonical form.
func (a *Account) Roles() []tokenx.Role {
	return tokenx.NormalizeRoles(a.RawRoles)
}
