package inventory

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

const productsPath = "/api/productos"

// ProductService covers /api/productos.
type ProductService struct{ c *Client }

// List returns every product. The listing is public.
func (s *ProductService) List(ctx context.Context) ([]Product, error) {
	var out []Product
	err := s.c.do(ctx, request{method: http.MethodGet, path: productsPath + "/listar"}, &out)
	return out, err
}

func (s *ProductService) Get(ctx context.Context, id int64) (*Product, error) {
	var out Product
	if err := s.c.do(ctx, request{method: http.MethodGet, path: productPath(id), auth: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *ProductService) Create(ctx context.Context, p Product) (*Product, error) {
	var out Product
	if err := s.c.do(ctx, request{method: http.MethodPost, path: productsPath, body: p, auth: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update replaces product id. username is recorded by the backend against
// the resulting stock movement.
func (s *ProductService) Update(ctx context.Context, id int64, p Product, username string) (*Product, error) {
	path := productPath(id) + "?" + url.Values{"usuario": {username}}.Encode()

	var out Product
	if err := s.c.do(ctx, request{method: http.MethodPut, path: path, body: p, auth: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *ProductService) Delete(ctx context.Context, id int64) error {
	var msg string
	return s.c.do(ctx, request{method: http.MethodDelete, path: productPath(id), auth: true}, &msg)
}

func (s *ProductService) SearchByName(ctx context.Context, name string) ([]Product, error) {
	var out []Product
	path := productsPath + "/buscar/nombre?" + url.Values{"nombre": {name}}.Encode()
	err := s.c.do(ctx, request{method: http.MethodGet, path: path, auth: true}, &out)
	return out, err
}

func (s *ProductService) SearchByCategory(ctx context.Context, category string) ([]Product, error) {
	var out []Product
	path := productsPath + "/buscar/categoria?" + url.Values{"categoria": {category}}.Encode()
	err := s.c.do(ctx, request{method: http.MethodGet, path: path, auth: true}, &out)
	return out, err
}

// UpdateStock adjusts a product's quantity through the product resource.
func (s *ProductService) UpdateStock(ctx context.Context, id int64, quantity int, movementType, username string) (*Product, error) {
	q := url.Values{
		"cantidad":       {strconv.Itoa(quantity)},
		"tipoMovimiento": {movementType},
		"usuario":        {username},
	}

	var out Product
	path := productPath(id) + "/actualizar-stock?" + q.Encode()
	if err := s.c.do(ctx, request{method: http.MethodPost, path: path, auth: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func productPath(id int64) string {
	return fmt.Sprintf("%s/%d", productsPath, id)
}
