package inventory

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

const movementsPath = "/api/movimientos"

// MovementService covers /api/movimientos.
type MovementService struct{ c *Client }

// List returns one page of the product history. page is zero-based.
func (s *MovementService) List(ctx context.Context, page, size int) ([]Movement, error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = 50
	}
	q := url.Values{"page": {strconv.Itoa(page)}, "size": {strconv.Itoa(size)}}
	return s.list(ctx, movementsPath+"?"+q.Encode())
}

func (s *MovementService) ByProduct(ctx context.Context, productID int64) ([]Movement, error) {
	return s.list(ctx, fmt.Sprintf("%s/producto/%d", movementsPath, productID))
}

func (s *MovementService) ByUser(ctx context.Context, username string) ([]Movement, error) {
	return s.list(ctx, movementsPath+"/usuario/"+url.PathEscape(username))
}

func (s *MovementService) ByType(ctx context.Context, movementType string) ([]Movement, error) {
	return s.list(ctx, movementsPath+"/tipo/"+url.PathEscape(movementType))
}

func (s *MovementService) list(ctx context.Context, path string) ([]Movement, error) {
	var out []Movement
	err := s.c.do(ctx, request{method: http.MethodGet, path: path, auth: true}, &out)
	return out, err
}
