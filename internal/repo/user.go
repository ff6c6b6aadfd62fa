package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/models"
)

var ErrUserAlreadyExist = errors.New("user already exist")

func (r *GormRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormRepo) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateUserWithProfile inserts the account and its initial profile in one
// transaction.
func (r *GormRepo) CreateUserWithProfile(ctx context.Context, u *models.User) (*models.Profile, error) {
	var profile models.Profile
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("email = ?", u.Email).FirstOrCreate(u)
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
				return ErrUserAlreadyExist
			}
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrUserAlreadyExist
		}

		profile = models.Profile{
			UserID:      u.ID,
			DisplayName: u.DisplayName,
			Addresses:   []models.Address{},
			Preferences: models.Preferences{OrderUpdates: true},
			CreatedAt:   u.CreatedAt,
			LastLoginAt: u.LastLoginAt,
		}
		return tx.Create(&profile).Error
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *GormRepo) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).Where("id = ?", id).Update("last_login_at", at).Error; err != nil {
			return err
		}
		return tx.Model(&models.Profile{}).Where("user_id = ?", id).Update("last_login_at", at).Error
	})
}
