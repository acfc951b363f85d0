package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/livecast-io/livecast-api/internal/models"
)

// ProfileRepository reads user profiles and applies balance updates. Balance
// writes must only be issued by the ledger service, which serializes them.
type ProfileRepository interface {
	GetByID(ctx context.Context, userID string) (models.UserProfile, error)
	Create(ctx context.Context, profile *models.UserProfile) error
	SetBalance(ctx context.Context, userID string, balance int64) error
}

type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository constructs a profile repository backed by GORM.
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) GetByID(ctx context.Context, userID string) (models.UserProfile, error) {
	var profile models.UserProfile
	if err := r.db.WithContext(ctx).Where("id = ?", userID).First(&profile).Error; err != nil {
		return models.UserProfile{}, err
	}
	return profile, nil
}

func (r *profileRepository) Create(ctx context.Context, profile *models.UserProfile) error {
	return r.db.WithContext(ctx).Create(profile).Error
}

func (r *profileRepository) SetBalance(ctx context.Context, userID string, balance int64) error {
	result := r.db.WithContext(ctx).Model(&models.UserProfile{}).Where("id = ?", userID).Update("coin_balance", balance)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
