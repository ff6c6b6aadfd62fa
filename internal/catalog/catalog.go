// Package catalog resolves products for cart and favorites mutations and
// serves product search.
package catalog

import (
	"context"
	"errors"
	"strconv"

	"github.com/Skotchmaster/storefront/internal/models"
)

var ErrNotFound = errors.New("product not found")

type Lookup interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	Search(ctx context.Context, query string, from, size int) (int64, []models.Product, error)
}

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Paginate turns 1-based page/size query values into an offset and limit.
func Paginate(page, size int) (from, limit int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > maxPageSize {
		size = defaultPageSize
	}
	return (page - 1) * size, size
}

type PageMeta struct {
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
	HasPrev    bool  `json:"has_prev"`
	HasNext    bool  `json:"has_next"`
}

func NewPageMeta(total int64, page, size int) PageMeta {
	from, size := Paginate(page, size)
	if page < 1 {
		page = 1
	}
	return PageMeta{
		Page:       page,
		Size:       size,
		Total:      total,
		TotalPages: (total + int64(size) - 1) / int64(size),
		HasPrev:    page > 1,
		HasNext:    int64(from+size) < total,
	}
}

func ParseIntDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
