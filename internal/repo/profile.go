package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/models"
)

func (r *GormRepo) GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	var profile models.Profile
	if err := r.DB.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// SaveProfile applies fn to the stored profile inside a transaction and
// persists the result.
func (r *GormRepo) SaveProfile(ctx context.Context, userID uuid.UUID, fn func(p *models.Profile)) (*models.Profile, error) {
	var profile models.Profile
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).First(&profile).Error; err != nil {
			return err
		}
		fn(&profile)
		return tx.Save(&profile).Error
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}
