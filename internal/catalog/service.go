package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/awibowo/backend-storefront/internal/common"
	"github.com/awibowo/backend-storefront/internal/store"
)

// Store is the catalog read surface the service needs.
type Store interface {
	ListCategories(ctx context.Context) ([]store.Category, error)
	ListBanners(ctx context.Context) ([]store.Banner, error)
	ListProducts(ctx context.Context, f store.ProductFilter) ([]store.Product, int64, error)
	GetProductBySlug(ctx context.Context, slug string) (store.Product, error)
	ListRelated(ctx context.Context, productID string, limit int32) ([]store.Product, error)
}

// Service orchestrates catalog queries, DTO assembly and caching.
type Service struct {
	store        Store
	cache        *Cache
	defaultLimit int
	maxLimit     int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store        Store
	Cache        *Cache
	DefaultLimit int
	MaxLimit     int
}

// ListParams captures filters for product listing.
type ListParams struct {
	Query    string
	Category string
	Sort     string
	Page     int
	Limit    int
}

// ProductSummary is the list/related entry payload.
type ProductSummary struct {
	ID             string           `json:"id"`
	Slug           string           `json:"slug"`
	Name           string           `json:"name"`
	Price          decimal.Decimal  `json:"price"`
	CompareAtPrice *decimal.Decimal `json:"compare_at_price,omitempty"`
	Rating         decimal.Decimal  `json:"rating"`
	ReviewCount    int32            `json:"review_count"`
	InStock        bool             `json:"in_stock"`
	ImageURL       *string          `json:"image_url,omitempty"`
}

// ProductDetail is the full product payload.
type ProductDetail struct {
	ProductSummary
	Description string    `json:"description"`
	Stock       int32     `json:"stock"`
	CategoryID  string    `json:"category_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Category is the public category payload.
type Category struct {
	ID       string  `json:"id"`
	Slug     string  `json:"slug"`
	Name     string  `json:"name"`
	ImageURL *string `json:"image_url,omitempty"`
}

// Banner is the public banner payload.
type Banner struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	ImageURL  string  `json:"image_url"`
	TargetURL *string `json:"target_url,omitempty"`
}

// ProductListResult contains list data and pagination metadata.
type ProductListResult struct {
	Items []ProductSummary
	Total int64
	Page  int
	Limit int
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("catalog: store is required")
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 20
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 100
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	return &Service{
		store:        cfg.Store,
		cache:        cfg.Cache,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}, nil
}

// ParseListParams normalises raw query values into typed filters.
func (s *Service) ParseListParams(values url.Values) (ListParams, error) {
	params := ListParams{Page: 1, Limit: s.defaultLimit}
	params.Query = strings.TrimSpace(values.Get("q"))
	params.Category = strings.TrimSpace(values.Get("category"))
	params.Sort = normalizeSort(values.Get("sort"))

	if v := strings.TrimSpace(values.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return params, badRequest("page", "page must be a positive integer", err)
		}
		params.Page = page
	}
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return params, badRequest("limit", "limit must be a positive integer", err)
		}
		params.Limit = limit
	}
	if params.Limit > s.maxLimit {
		params.Limit = s.maxLimit
	}
	return params, nil
}

// ListCategories returns categories, cached.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	const key = "catalog:categories"
	var cached []Category
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}
	rows, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	result := make([]Category, 0, len(rows))
	for _, row := range rows {
		result = append(result, Category{ID: row.ID, Slug: row.Slug, Name: row.Name, ImageURL: row.ImageURL})
	}
	_ = s.cache.SetJSON(ctx, key, result)
	return result, nil
}

// ListBanners returns active banners, cached.
func (s *Service) ListBanners(ctx context.Context) ([]Banner, error) {
	const key = "catalog:banners"
	var cached []Banner
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}
	rows, err := s.store.ListBanners(ctx)
	if err != nil {
		return nil, fmt.Errorf("list banners: %w", err)
	}
	result := make([]Banner, 0, len(rows))
	for _, row := range rows {
		result = append(result, Banner{ID: row.ID, Title: row.Title, ImageURL: row.ImageURL, TargetURL: row.TargetURL})
	}
	_ = s.cache.SetJSON(ctx, key, result)
	return result, nil
}

// ListProducts returns a filtered product page. Only the unfiltered first
// page is cached; it is the storefront home screen and by far the hottest
// read.
func (s *Service) ListProducts(ctx context.Context, params ListParams) (ProductListResult, error) {
	key, cacheable := s.listCacheKey(params)
	if cacheable {
		var cached cachedList
		if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
			return ProductListResult{Items: cached.Items, Total: cached.Total, Page: params.Page, Limit: params.Limit}, nil
		}
	}

	offset := int32((params.Page - 1) * params.Limit)
	rows, total, err := s.store.ListProducts(ctx, store.ProductFilter{
		CategorySlug: params.Category,
		Query:        params.Query,
		Sort:         params.Sort,
		Limit:        int32(params.Limit),
		Offset:       offset,
	})
	if err != nil {
		return ProductListResult{}, fmt.Errorf("list products: %w", err)
	}
	items := make([]ProductSummary, 0, len(rows))
	for _, row := range rows {
		items = append(items, toSummary(row))
	}
	if cacheable {
		_ = s.cache.SetJSON(ctx, key, cachedList{Items: items, Total: total})
	}
	return ProductListResult{Items: items, Total: total, Page: params.Page, Limit: params.Limit}, nil
}

// GetProductDetail returns the full product payload, cached by slug.
func (s *Service) GetProductDetail(ctx context.Context, slug string) (ProductDetail, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return ProductDetail{}, badRequest("slug", "slug is required", nil)
	}
	key := "catalog:product:" + slug
	var cached ProductDetail
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}
	row, err := s.store.GetProductBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ProductDetail{}, notFound(err)
		}
		return ProductDetail{}, fmt.Errorf("get product by slug: %w", err)
	}
	detail := ProductDetail{
		ProductSummary: toSummary(row),
		Description:    row.Description,
		Stock:          row.Stock,
		CategoryID:     row.CategoryID,
		CreatedAt:      row.CreatedAt,
	}
	_ = s.cache.SetJSON(ctx, key, detail)
	return detail, nil
}

// ListRelatedProducts returns products sharing the category.
func (s *Service) ListRelatedProducts(ctx context.Context, slug string, limit int32) ([]ProductSummary, error) {
	product, err := s.store.GetProductBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound(err)
		}
		return nil, fmt.Errorf("get product by slug: %w", err)
	}
	if limit < 1 {
		limit = 8
	}
	rows, err := s.store.ListRelated(ctx, product.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("list related products: %w", err)
	}
	items := make([]ProductSummary, 0, len(rows))
	for _, row := range rows {
		items = append(items, toSummary(row))
	}
	return items, nil
}

type cachedList struct {
	Items []ProductSummary `json:"items"`
	Total int64            `json:"total"`
}

func (s *Service) listCacheKey(params ListParams) (string, bool) {
	if params.Page != 1 || params.Limit != s.defaultLimit {
		return "", false
	}
	if params.Query != "" || params.Category != "" || params.Sort != "" {
		return "", false
	}
	return "catalog:products:home", true
}

func toSummary(p store.Product) ProductSummary {
	return ProductSummary{
		ID:             p.ID,
		Slug:           p.Slug,
		Name:           p.Name,
		Price:          p.Price,
		CompareAtPrice: p.CompareAtPrice,
		Rating:         p.Rating,
		ReviewCount:    p.ReviewCount,
		InStock:        p.Stock > 0,
		ImageURL:       p.ImageURL,
	}
}

func normalizeSort(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "newest", "price_asc", "price_desc", "rating":
		return s
	default:
		return ""
	}
}

func badRequest(field, message string, err error) *common.AppError {
	return &common.AppError{
		Code:       "BAD_REQUEST",
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
		Details:    map[string]any{"field": field},
	}
}

func notFound(err error) *common.AppError {
	return &common.AppError{Code: "NOT_FOUND", Message: "product not found", HTTPStatus: http.StatusNotFound, Err: err}
}
