package catalog

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
)

// DBCatalog serves products from the products table. It is used when no
// search cluster is configured.
type DBCatalog struct {
	Repo *repo.GormRepo
}

func (c *DBCatalog) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	p, err := c.Repo.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (c *DBCatalog) Search(ctx context.Context, query string, from, size int) (int64, []models.Product, error) {
	return c.Repo.SearchProducts(ctx, query, from, size)
}
