package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/livecast-io/livecast-api/internal/models"
)

// LedgerFilter narrows ledger history listings.
type LedgerFilter struct {
	Reason string
	Limit  int
	Offset int
}

// LedgerRepository appends immutable coin transaction rows. There is no
// update or delete path: corrections are compensating rows.
type LedgerRepository interface {
	Insert(ctx context.Context, entry *models.CoinTransaction) error
	ListByUser(ctx context.Context, userID string, filter LedgerFilter) ([]models.CoinTransaction, error)
}

type ledgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository constructs a ledger repository backed by GORM.
func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) Insert(ctx context.Context, entry *models.CoinTransaction) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *ledgerRepository) ListByUser(ctx context.Context, userID string, filter LedgerFilter) ([]models.CoinTransaction, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if filter.Reason != "" {
		query = query.Where("reason = ?", filter.Reason)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var entries []models.CoinTransaction
	if err := query.Order("created_at DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, err
	}

	return entries, nil
}
