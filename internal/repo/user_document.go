package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/storefront/internal/models"
)

// SaveUserCart overwrites the cart half of the user's document. Concurrent
// writers race; the last statement to commit wins.
func (r *GormRepo) SaveUserCart(ctx context.Context, userID string, items []models.CartLineItem) error {
	now := time.Now().UTC()
	doc := models.UserDocument{
		UserID:        userID,
		Cart:          items,
		CartUpdatedAt: &now,
	}
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"cart", "cart_updated_at"}),
	}).Create(&doc).Error
}

func (r *GormRepo) SaveUserFavorites(ctx context.Context, userID string, products []models.Product) error {
	now := time.Now().UTC()
	doc := models.UserDocument{
		UserID:             userID,
		Favorites:          products,
		FavoritesUpdatedAt: &now,
	}
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"favorites", "favorites_updated_at"}),
	}).Create(&doc).Error
}

// LoadUserCart reports found=false when the user never saved a cart.
func (r *GormRepo) LoadUserCart(ctx context.Context, userID string) ([]models.CartLineItem, bool, error) {
	doc, err := r.userDocument(ctx, userID)
	if err != nil || doc == nil || doc.CartUpdatedAt == nil {
		return nil, false, err
	}
	return doc.Cart, true, nil
}

func (r *GormRepo) LoadUserFavorites(ctx context.Context, userID string) ([]models.Product, bool, error) {
	doc, err := r.userDocument(ctx, userID)
	if err != nil || doc == nil || doc.FavoritesUpdatedAt == nil {
		return nil, false, err
	}
	return doc.Favorites, true, nil
}

func (r *GormRepo) userDocument(ctx context.Context, userID string) (*models.UserDocument, error) {
	var doc models.UserDocument
	if err := r.DB.WithContext(ctx).Where("user_id = ?", userID).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &doc, nil
}
