package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/aussiebroadwan/invweb/internal/web/cache"
	"github.com/aussiebroadwan/invweb/pkg/inventory"
	"github.com/aussiebroadwan/invweb/pkg/slogx"
)

const (
	// CatalogPageSize is the number of products per dashboard page.
	CatalogPageSize = 8

	// LowStockThreshold marks a product as low on stock below this quantity.
	LowStockThreshold = 10

	// AllCategories disables the category filter.
	AllCategories = "Todos"

	catalogCacheKey = "catalog:products"
)

// ErrDuplicateProduct is returned when creating a product whose name is
// already in the catalog (case-insensitive).
var ErrDuplicateProduct = errors.New("catalog: product already exists")

// CatalogQuery selects a page of the dashboard listing.
type CatalogQuery struct {
	Name     string  // case-insensitive substring; empty matches all
	Category string  // exact; empty or AllCategories matches all
	MaxPrice float64 // inclusive; 0 means the highest price in the catalog
	Page     int     // 1-based, clamped to the available pages
}

// CatalogStats summarises the whole catalog, independent of filters.
type CatalogStats struct {
	TotalProducts  int     `json:"totalProducts"`
	InventoryValue float64 `json:"inventoryValue"`
	LowStock       int     `json:"lowStock"`
	Categories     int     `json:"categories"`
	HighestPrice   float64 `json:"highestPrice"`
}

// CatalogPage is one page of filtered products plus catalog statistics.
type CatalogPage struct {
	Products   []inventory.Product `json:"products"`
	Page       int                 `json:"page"`
	TotalPages int                 `json:"totalPages"`
	Matches    int                 `json:"matches"`
	Stats      CatalogStats        `json:"stats"`
}

// CatalogService serves the product dashboard. The public listing is cached
// and every write through the service drops the cached copy.
type CatalogService struct {
	Inventory *inventory.Client
	Cache     cache.Cache
	TTL       time.Duration
}

func NewCatalogService(inv *inventory.Client, c cache.Cache, ttl time.Duration) *CatalogService {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CatalogService{Inventory: inv, Cache: c, TTL: ttl}
}

// Products returns every product sorted by id, newest first.
func (s *CatalogService) Products(ctx context.Context) ([]inventory.Product, error) {
	l := slogx.FromContext(ctx)

	if s.Cache != nil {
		raw, err := s.Cache.Get(ctx, catalogCacheKey)
		if err == nil {
			var cached []inventory.Product
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
		} else if !errors.Is(err, cache.ErrMiss) {
			l.Warn("catalog cache read failed", slog.String("error", err.Error()))
		}
	}

	products, err := s.Inventory.Products.List(ctx)
	if err != nil {
		return nil, err
	}
	SortNewestFirst(products)

	if s.Cache != nil {
		if raw, err := json.Marshal(products); err == nil {
			if err := s.Cache.Set(ctx, catalogCacheKey, raw, s.TTL); err != nil {
				l.Warn("catalog cache write failed", slog.String("error", err.Error()))
			}
		}
	}
	return products, nil
}

// Query returns the requested page of the dashboard.
func (s *CatalogService) Query(ctx context.Context, q CatalogQuery) (*CatalogPage, error) {
	products, err := s.Products(ctx)
	if err != nil {
		return nil, err
	}

	stats := ComputeStats(products)
	if q.MaxPrice <= 0 {
		q.MaxPrice = stats.HighestPrice
	}

	matches := Filter(products, q)
	page, pages := clampPage(q.Page, len(matches))

	return &CatalogPage{
		Products:   paginate(matches, page),
		Page:       page,
		TotalPages: pages,
		Matches:    len(matches),
		Stats:      stats,
	}, nil
}

// Create adds a product unless one with the same name already exists.
func (s *CatalogService) Create(ctx context.Context, p inventory.Product) (*inventory.Product, error) {
	products, err := s.Products(ctx)
	if err != nil {
		return nil, err
	}
	for _, existing := range products {
		if strings.EqualFold(existing.Name, p.Name) {
			return nil, ErrDuplicateProduct
		}
	}

	created, err := s.Inventory.Products.Create(ctx, p)
	if err != nil {
		return nil, err
	}
	s.Invalidate(ctx)
	return created, nil
}

func (s *CatalogService) Update(ctx context.Context, id int64, p inventory.Product, username string) (*inventory.Product, error) {
	updated, err := s.Inventory.Products.Update(ctx, id, p, username)
	if err != nil {
		return nil, err
	}
	s.Invalidate(ctx)
	return updated, nil
}

func (s *CatalogService) Delete(ctx context.Context, id int64) error {
	if err := s.Inventory.Products.Delete(ctx, id); err != nil {
		return err
	}
	s.Invalidate(ctx)
	return nil
}

func (s *CatalogService) UpdateStock(ctx context.Context, id int64, quantity int, movementType, username string) (*inventory.Product, error) {
	p, err := s.Inventory.Products.UpdateStock(ctx, id, quantity, movementType, username)
	if err != nil {
		return nil, err
	}
	s.Invalidate(ctx)
	return p, nil
}

func (s *CatalogService) RegisterMovement(ctx context.Context, m inventory.StockMovementRequest) (*inventory.StockMovement, error) {
	mv, err := s.Inventory.Stock.RegisterMovement(ctx, m)
	if err != nil {
		return nil, err
	}
	s.Invalidate(ctx)
	return mv, nil
}

// Invalidate drops the cached listing.
func (s *CatalogService) Invalidate(ctx context.Context) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Delete(ctx, catalogCacheKey); err != nil {
		slogx.FromContext(ctx).Warn("catalog cache invalidation failed", slog.String("error", err.Error()))
	}
}

// SortNewestFirst orders products by id descending.
func SortNewestFirst(products []inventory.Product) {
	sort.SliceStable(products, func(i, j int) bool {
		return products[i].ID > products[j].ID
	})
}

// Filter applies the name, category and price filters, keeping order.
func Filter(products []inventory.Product, q CatalogQuery) []inventory.Product {
	name := strings.ToLower(q.Name)
	out := make([]inventory.Product, 0, len(products))

	for _, p := range products {
		if name != "" && !strings.Contains(strings.ToLower(p.Name), name) {
			continue
		}
		if q.Category != "" && q.Category != AllCategories && p.Category != q.Category {
			continue
		}
		if p.Price > q.MaxPrice {
			continue
		}
		out = append(out, p)
	}
	return out
}

// ComputeStats summarises products.
func ComputeStats(products []inventory.Product) CatalogStats {
	st := CatalogStats{TotalProducts: len(products)}
	categories := make(map[string]struct{})

	for _, p := range products {
		st.InventoryValue += p.Price * float64(p.Quantity)
		if p.Quantity < LowStockThreshold {
			st.LowStock++
		}
		if p.Price > st.HighestPrice {
			st.HighestPrice = p.Price
		}
		categories[p.Category] = struct{}{}
	}

	st.Categories = len(categories)
	return st
}

// clampPage returns the effective 1-based page and the page count. An
// empty result still has page 1.
func clampPage(page, n int) (int, int) {
	pages := (n + CatalogPageSize - 1) / CatalogPageSize
	if page > pages {
		page = pages
	}
	if page < 1 {
		page = 1
	}
	return page, pages
}

func paginate(products []inventory.Product, page int) []inventory.Product {
	start := (page - 1) * CatalogPageSize
	if start >= len(products) {
		return []inventory.Product{}
	}
	end := min(start+CatalogPageSize, len(products))
	return products[start:end]
}
