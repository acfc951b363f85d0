package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/livecast-io/livecast-api/internal/models"
)

// ErrInsufficientQuantity indicates an adjustment would drive a quantity below zero.
var ErrInsufficientQuantity = errors.New("insufficient inventory quantity")

// InventoryRepository owns the (user, gift) -> quantity mapping. Quantities
// never go negative and rows at zero are deleted to keep storage sparse.
type InventoryRepository interface {
	Quantity(ctx context.Context, userID, giftSlug string) (int64, error)
	ListByUser(ctx context.Context, userID string) ([]models.GiftInventoryItem, error)
	Adjust(ctx context.Context, userID, giftSlug string, delta int64) (int64, error)
}

type inventoryRepository struct {
	db *gorm.DB
}

// NewInventoryRepository constructs an inventory repository backed by GORM.
func NewInventoryRepository(db *gorm.DB) InventoryRepository {
	return &inventoryRepository{db: db}
}

func (r *inventoryRepository) Quantity(ctx context.Context, userID, giftSlug string) (int64, error) {
	var item models.GiftInventoryItem
	err := r.db.WithContext(ctx).Where("user_id = ? AND gift_slug = ?", userID, giftSlug).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return item.Quantity, nil
}

func (r *inventoryRepository) ListByUser(ctx context.Context, userID string) ([]models.GiftInventoryItem, error) {
	var items []models.GiftInventoryItem
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("gift_slug ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Adjust applies delta to the stored quantity. A resulting quantity of zero
// deletes the row, a first positive adjustment creates it, and an adjustment
// that would go negative is rejected leaving the row untouched.
func (r *inventoryRepository) Adjust(ctx context.Context, userID, giftSlug string, delta int64) (int64, error) {
	var remaining int64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.GiftInventoryItem
		err := tx.Where("user_id = ? AND gift_slug = ?", userID, giftSlug).First(&item).Error

		current := int64(0)
		exists := true
		if errors.Is(err, gorm.ErrRecordNotFound) {
			exists = false
		} else if err != nil {
			return err
		} else {
			current = item.Quantity
		}

		next := current + delta
		if next < 0 {
			return ErrInsufficientQuantity
		}
		remaining = next

		switch {
		case next == 0 && exists:
			return tx.Delete(&item).Error
		case next == 0:
			return nil
		case exists:
			return tx.Model(&item).Update("quantity", next).Error
		default:
			return tx.Create(&models.GiftInventoryItem{UserID: userID, GiftSlug: giftSlug, Quantity: next}).Error
		}
	})
	if err != nil {
		return 0, err
	}

	return remaining, nil
}
