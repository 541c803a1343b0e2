package inventory

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const stockPath = "/api/stock"

// StockService covers /api/stock.
type StockService struct{ c *Client }

func (s *StockService) RegisterMovement(ctx context.Context, m StockMovementRequest) (*StockMovement, error) {
	var out StockMovement
	if err := s.c.do(ctx, request{method: http.MethodPost, path: stockPath + "/movimiento", body: m, auth: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *StockService) History(ctx context.Context) ([]StockMovement, error) {
	return s.list(ctx, stockPath+"/historial")
}

func (s *StockService) HistoryByProduct(ctx context.Context, productID int64) ([]StockMovement, error) {
	return s.list(ctx, fmt.Sprintf("%s/historial/producto/%d", stockPath, productID))
}

func (s *StockService) HistoryByUser(ctx context.Context, username string) ([]StockMovement, error) {
	return s.list(ctx, stockPath+"/historial/usuario/"+url.PathEscape(username))
}

func (s *StockService) HistoryByType(ctx context.Context, movementType string) ([]StockMovement, error) {
	return s.list(ctx, stockPath+"/historial/tipo/"+url.PathEscape(movementType))
}

// HistoryBetween lists movements in [from, to]. Times are sent as ISO local
// date-times, which is what the backend parses.
func (s *StockService) HistoryBetween(ctx context.Context, from, to time.Time) ([]StockMovement, error) {
	const layout = "2006-01-02T15:04:05"
	q := url.Values{
		"fechaInicio": {from.Format(layout)},
		"fechaFin":    {to.Format(layout)},
	}
	return s.list(ctx, stockPath+"/historial/fecha?"+q.Encode())
}

func (s *StockService) LowStock(ctx context.Context) ([]Product, error) {
	var out []Product
	err := s.c.do(ctx, request{method: http.MethodGet, path: stockPath + "/alertas/stock-minimo", auth: true}, &out)
	return out, err
}

func (s *StockService) OutOfStock(ctx context.Context) ([]Product, error) {
	var out []Product
	err := s.c.do(ctx, request{method: http.MethodGet, path: stockPath + "/alertas/sin-stock", auth: true}, &out)
	return out, err
}

// AtMinimum reports whether the product is at or below its minimum stock.
func (s *StockService) AtMinimum(ctx context.Context, productID int64) (bool, error) {
	var out struct {
		AtMinimum bool `json:"esStockMinimo"`
	}
	path := fmt.Sprintf("%s/verificar-stock-minimo/%d", stockPath, productID)
	if err := s.c.do(ctx, request{method: http.MethodGet, path: path, auth: true}, &out); err != nil {
		return false, err
	}
	return out.AtMinimum, nil
}

func (s *StockService) Stats(ctx context.Context) (*StockStats, error) {
	var out StockStats
	if err := s.c.do(ctx, request{method: http.MethodGet, path: stockPath + "/estadisticas", auth: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *StockService) list(ctx context.Context, path string) ([]StockMovement, error) {
	var out []StockMovement
	err := s.c.do(ctx, request{method: http.MethodGet, path: path, auth: true}, &out)
	return out, err
}
