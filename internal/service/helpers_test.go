package service

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/livecast-io/livecast-api/internal/models"
	"github.com/livecast-io/livecast-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

type profileRepoStub struct {
	mu            sync.Mutex
	profiles      map[string]*models.UserProfile
	setBalanceErr error
}

func newProfileRepoStub(profiles ...*models.UserProfile) *profileRepoStub {
	stub := &profileRepoStub{profiles: make(map[string]*models.UserProfile)}
	for _, profile := range profiles {
		stub.profiles[profile.ID] = profile
	}
	return stub
}

func (s *profileRepoStub) GetByID(_ context.Context, userID string) (models.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile, ok := s.profiles[userID]
	if !ok {
		return models.UserProfile{}, gorm.ErrRecordNotFound
	}
	return *profile, nil
}

func (s *profileRepoStub) Create(_ context.Context, profile *models.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.ID] = profile
	return nil
}

func (s *profileRepoStub) SetBalance(_ context.Context, userID string, balance int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setBalanceErr != nil {
		return s.setBalanceErr
	}
	profile, ok := s.profiles[userID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	profile.CoinBalance = balance
	return nil
}

type ledgerRepoStub struct {
	mu        sync.Mutex
	entries   []models.CoinTransaction
	insertErr error
}

func (s *ledgerRepoStub) Insert(_ context.Context, entry *models.CoinTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	entry.ID = uint(len(s.entries) + 1)
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *ledgerRepoStub) ListByUser(_ context.Context, userID string, filter repository.LedgerFilter) ([]models.CoinTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.CoinTransaction
	for i := len(s.entries) - 1; i >= 0; i-- {
		entry := s.entries[i]
		if entry.UserID != userID {
			continue
		}
		if filter.Reason != "" && entry.Reason != filter.Reason {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

type inventoryRepoStub struct {
	mu         sync.Mutex
	quantities map[string]int64
	adjustErr  error
}

func newInventoryRepoStub() *inventoryRepoStub {
	return &inventoryRepoStub{quantities: make(map[string]int64)}
}

func inventoryKey(userID, giftSlug string) string {
	return userID + "/" + giftSlug
}

func (s *inventoryRepoStub) Quantity(_ context.Context, userID, giftSlug string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quantities[inventoryKey(userID, giftSlug)], nil
}

func (s *inventoryRepoStub) ListByUser(_ context.Context, userID string) ([]models.GiftInventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []models.GiftInventoryItem
	for key, quantity := range s.quantities {
		if len(key) > len(userID) && key[:len(userID)] == userID {
			items = append(items, models.GiftInventoryItem{UserID: userID, GiftSlug: key[len(userID)+1:], Quantity: quantity})
		}
	}
	return items, nil
}

func (s *inventoryRepoStub) Adjust(_ context.Context, userID, giftSlug string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.adjustErr != nil {
		return 0, s.adjustErr
	}
	key := inventoryKey(userID, giftSlug)
	next := s.quantities[key] + delta
	if next < 0 {
		return 0, repository.ErrInsufficientQuantity
	}
	if next == 0 {
		delete(s.quantities, key)
	} else {
		s.quantities[key] = next
	}
	return next, nil
}

type catalogRepoStub struct {
	gifts map[string]models.Gift
}

func newCatalogRepoStub(gifts ...models.Gift) *catalogRepoStub {
	stub := &catalogRepoStub{gifts: make(map[string]models.Gift)}
	for _, gift := range gifts {
		stub.gifts[gift.Slug] = gift
	}
	return stub
}

func (s *catalogRepoStub) GetBySlug(_ context.Context, slug string) (models.Gift, error) {
	gift, ok := s.gifts[slug]
	if !ok || !gift.Active {
		return models.Gift{}, gorm.ErrRecordNotFound
	}
	return gift, nil
}

func (s *catalogRepoStub) ListActive(_ context.Context) ([]models.Gift, error) {
	var out []models.Gift
	for _, gift := range s.gifts {
		if gift.Active {
			out = append(out, gift)
		}
	}
	return out, nil
}

func (s *catalogRepoStub) Upsert(_ context.Context, gift *models.Gift) error {
	s.gifts[gift.Slug] = *gift
	return nil
}

func (s *catalogRepoStub) SetActive(_ context.Context, slug string, active bool) error {
	gift, ok := s.gifts[slug]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	gift.Active = active
	s.gifts[slug] = gift
	return nil
}

type giftTxRepoStub struct {
	mu           sync.Mutex
	transactions []models.GiftTransaction
	bonusLogs    []models.GiftBonusLog
	insertErr    error
	bonusErr     error
}

func (s *giftTxRepoStub) Insert(_ context.Context, tx *models.GiftTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	tx.ID = uint(len(s.transactions) + 1)
	s.transactions = append(s.transactions, *tx)
	return nil
}

func (s *giftTxRepoStub) InsertBonusLog(_ context.Context, entry *models.GiftBonusLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bonusErr != nil {
		return s.bonusErr
	}
	entry.ID = uint(len(s.bonusLogs) + 1)
	s.bonusLogs = append(s.bonusLogs, *entry)
	return nil
}

func (s *giftTxRepoStub) ListByUser(_ context.Context, userID string, _ int) ([]models.GiftTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.GiftTransaction
	for _, tx := range s.transactions {
		if tx.FromUserID == userID || tx.ToUserID == userID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *giftTxRepoStub) EarningsSummary(_ context.Context, creatorID string) (repository.CreatorEarnings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	summary := repository.CreatorEarnings{}
	for _, tx := range s.transactions {
		if tx.ToUserID == creatorID && tx.Direction == models.GiftDirectionReceived {
			summary.TotalEarnings += tx.CreatorCoins
		}
	}
	for _, entry := range s.bonusLogs {
		if entry.CreatorID == creatorID {
			summary.TotalBonus += entry.BonusAmount
			summary.BonusCount++
		}
	}
	return summary, nil
}

var errStubFailure = errors.New("stub failure")
