package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/livecast-io/livecast-api/internal/models"
)

// CreatorEarnings aggregates the received side of the gift ledger for one creator.
type CreatorEarnings struct {
	TotalEarnings int64
	TotalBonus    int64
	BonusCount    int64
}

// GiftTransactionRepository appends immutable gift audit rows and the
// creator-bonus log, and aggregates them for reporting.
type GiftTransactionRepository interface {
	Insert(ctx context.Context, tx *models.GiftTransaction) error
	InsertBonusLog(ctx context.Context, entry *models.GiftBonusLog) error
	ListByUser(ctx context.Context, userID string, limit int) ([]models.GiftTransaction, error)
	EarningsSummary(ctx context.Context, creatorID string) (CreatorEarnings, error)
}

type giftTransactionRepository struct {
	db *gorm.DB
}

// NewGiftTransactionRepository constructs a gift transaction repository backed by GORM.
func NewGiftTransactionRepository(db *gorm.DB) GiftTransactionRepository {
	return &giftTransactionRepository{db: db}
}

func (r *giftTransactionRepository) Insert(ctx context.Context, tx *models.GiftTransaction) error {
	return r.db.WithContext(ctx).Create(tx).Error
}

func (r *giftTransactionRepository) InsertBonusLog(ctx context.Context, entry *models.GiftBonusLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *giftTransactionRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.GiftTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var rows []models.GiftTransaction
	err := r.db.WithContext(ctx).
		Where("from_user_id = ? OR to_user_id = ?", userID, userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	return rows, nil
}

func (r *giftTransactionRepository) EarningsSummary(ctx context.Context, creatorID string) (CreatorEarnings, error) {
	var summary CreatorEarnings

	row := r.db.WithContext(ctx).
		Model(&models.GiftTransaction{}).
		Select("COALESCE(SUM(creator_coins), 0)").
		Where("to_user_id = ? AND direction = ?", creatorID, models.GiftDirectionReceived).
		Row()
	if err := row.Scan(&summary.TotalEarnings); err != nil {
		return CreatorEarnings{}, err
	}

	row = r.db.WithContext(ctx).
		Model(&models.GiftBonusLog{}).
		Select("COALESCE(SUM(bonus_amount), 0), COUNT(*)").
		Where("creator_id = ?", creatorID).
		Row()
	if err := row.Scan(&summary.TotalBonus, &summary.BonusCount); err != nil {
		return CreatorEarnings{}, err
	}

	return summary, nil
}
