package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/models"
)

func (r *GormRepo) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	product := models.Product{}
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *GormRepo) SearchProducts(ctx context.Context, q string, offset, limit int) (int64, []models.Product, error) {
	like := "%" + q + "%"
	scope := func(tx *gorm.DB) *gorm.DB {
		return tx.Model(&models.Product{}).Where("name LIKE ? OR description LIKE ? OR brand LIKE ?", like, like, like)
	}

	var total int64
	if err := r.DB.WithContext(ctx).Scopes(scope).Count(&total).Error; err != nil {
		return 0, nil, err
	}

	items := make([]models.Product, 0, limit)
	if err := r.DB.WithContext(ctx).Scopes(scope).Order("id ASC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return 0, nil, err
	}
	return total, items, nil
}
