package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/livecast-io/livecast-api/internal/models"
)

// GiftCatalogRepository looks up and maintains the gift catalog.
type GiftCatalogRepository interface {
	GetBySlug(ctx context.Context, slug string) (models.Gift, error)
	ListActive(ctx context.Context) ([]models.Gift, error)
	Upsert(ctx context.Context, gift *models.Gift) error
	SetActive(ctx context.Context, slug string, active bool) error
}

type giftCatalogRepository struct {
	db *gorm.DB
}

// NewGiftCatalogRepository constructs a catalog repository backed by GORM.
func NewGiftCatalogRepository(db *gorm.DB) GiftCatalogRepository {
	return &giftCatalogRepository{db: db}
}

func (r *giftCatalogRepository) GetBySlug(ctx context.Context, slug string) (models.Gift, error) {
	var gift models.Gift
	if err := r.db.WithContext(ctx).Where("slug = ? AND active = ?", slug, true).First(&gift).Error; err != nil {
		return models.Gift{}, err
	}
	return gift, nil
}

func (r *giftCatalogRepository) ListActive(ctx context.Context) ([]models.Gift, error) {
	var gifts []models.Gift
	if err := r.db.WithContext(ctx).Where("active = ?", true).Order("coin_cost ASC").Find(&gifts).Error; err != nil {
		return nil, err
	}
	return gifts, nil
}

func (r *giftCatalogRepository) Upsert(ctx context.Context, gift *models.Gift) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "coin_cost", "rarity", "artwork_url", "animation_url", "active", "updated_at"}),
	}).Create(gift).Error
}

func (r *giftCatalogRepository) SetActive(ctx context.Context, slug string, active bool) error {
	result := r.db.WithContext(ctx).Model(&models.Gift{}).Where("slug = ?", slug).Update("active", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
