package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/livecast-io/livecast-api/internal/dto"
	"github.com/livecast-io/livecast-api/internal/models"
	"github.com/livecast-io/livecast-api/internal/observability"
	"github.com/livecast-io/livecast-api/internal/repository"
)

// ErrInsufficientBalance indicates a debit would drive a balance below zero.
var ErrInsufficientBalance = errors.New("insufficient coin balance")

// ErrLedgerUserNotFound indicates the balance owner does not exist.
var ErrLedgerUserNotFound = errors.New("ledger user not found")

// ErrInvalidAmount indicates a non-positive mutation amount.
var ErrInvalidAmount = errors.New("amount must be positive")

// coinsPerUSD is the fixed conversion rate used for reporting. Coin math
// stays in integer coins everywhere else.
const coinsPerUSD = 200

// LedgerService is the sole writer of balance mutations. Every successful
// call appends exactly one immutable ledger row with a post-mutation balance
// snapshot. Mutations for the same user are serialized.
type LedgerService interface {
	Credit(ctx context.Context, userID string, amount int64, reason string, metadata map[string]interface{}) (models.CoinTransaction, error)
	Debit(ctx context.Context, userID string, amount int64, reason string, metadata map[string]interface{}) (models.CoinTransaction, error)
	Balance(ctx context.Context, userID string) (int64, error)
	History(ctx context.Context, userID string, query dto.LedgerHistoryQuery) ([]dto.CoinTransactionResponse, error)
}

type ledgerService struct {
	profiles repository.ProfileRepository
	ledger   repository.LedgerRepository
	logger   zerolog.Logger
	tracer   trace.Tracer

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLedgerService constructs the ledger writer.
func NewLedgerService(profiles repository.ProfileRepository, ledger repository.LedgerRepository, logger zerolog.Logger) LedgerService {
	return &ledgerService{
		profiles: profiles,
		ledger:   ledger,
		logger:   logger.With().Str("component", "ledger_service").Logger(),
		tracer:   otel.Tracer("github.com/livecast-io/livecast-api/internal/service/ledger"),
		locks:    make(map[string]*sync.Mutex),
	}
}

func (s *ledgerService) Credit(ctx context.Context, userID string, amount int64, reason string, metadata map[string]interface{}) (models.CoinTransaction, error) {
	if amount <= 0 {
		return models.CoinTransaction{}, ErrInvalidAmount
	}
	return s.apply(ctx, userID, amount, reason, metadata)
}

func (s *ledgerService) Debit(ctx context.Context, userID string, amount int64, reason string, metadata map[string]interface{}) (models.CoinTransaction, error) {
	if amount <= 0 {
		return models.CoinTransaction{}, ErrInvalidAmount
	}
	return s.apply(ctx, userID, -amount, reason, metadata)
}

func (s *ledgerService) Balance(ctx context.Context, userID string) (int64, error) {
	profile, err := s.profiles.GetByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrLedgerUserNotFound
	}
	if err != nil {
		return 0, err
	}
	return profile.CoinBalance, nil
}

func (s *ledgerService) History(ctx context.Context, userID string, query dto.LedgerHistoryQuery) ([]dto.CoinTransactionResponse, error) {
	entries, err := s.ledger.ListByUser(ctx, userID, repository.LedgerFilter{
		Reason: query.Reason,
		Limit:  query.Limit,
		Offset: query.Offset,
	})
	if err != nil {
		return nil, err
	}
	return dto.NewCoinTransactionResponseSlice(entries), nil
}

// apply performs the read-modify-write of one balance mutation under the
// per-user lock and appends the ledger row. If the row insert fails after the
// balance update succeeded, the balance is restored to its pre-call value.
func (s *ledgerService) apply(ctx context.Context, userID string, delta int64, reason string, metadata map[string]interface{}) (models.CoinTransaction, error) {
	attrs := []attribute.KeyValue{
		attribute.String("ledger.user_id", userID),
		attribute.String("ledger.reason", reason),
		attribute.Int64("ledger.delta", delta),
	}
	spanCtx, span := s.tracer.Start(ctx, "ledger.apply", trace.WithAttributes(attrs...))
	defer span.End()

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	profile, err := s.profiles.GetByID(spanCtx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.CoinTransaction{}, ErrLedgerUserNotFound
	}
	if err != nil {
		span.RecordError(err)
		return models.CoinTransaction{}, err
	}

	previous := profile.CoinBalance
	next := previous + delta
	if next < 0 {
		return models.CoinTransaction{}, ErrInsufficientBalance
	}

	if err := s.profiles.SetBalance(spanCtx, userID, next); err != nil {
		span.RecordError(err)
		return models.CoinTransaction{}, err
	}

	entry := models.CoinTransaction{
		UserID:       userID,
		Amount:       delta,
		Reason:       reason,
		BalanceAfter: next,
	}
	if metadata != nil {
		entry.Metadata = datatypes.JSONMap(metadata)
	}

	if err := s.ledger.Insert(spanCtx, &entry); err != nil {
		span.RecordError(err)
		s.logger.Warn().
			Err(err).
			Str("user_id", userID).
			Str("reason", reason).
			Int64("delta", delta).
			Msg("ledger row insert failed, restoring balance")

		if restoreErr := s.profiles.SetBalance(spanCtx, userID, previous); restoreErr != nil {
			observability.LedgerCompensationFailuresTotal().Inc()
			s.logger.Error().
				Err(restoreErr).
				Str("user_id", userID).
				Str("reason", reason).
				Int64("delta", delta).
				Int64("expected_balance", previous).
				Msg("ledger compensation failed, balance inconsistent")
			return models.CoinTransaction{}, fmt.Errorf("ledger compensation failed: %w", restoreErr)
		}

		observability.LedgerCompensationsTotal().Inc()
		return models.CoinTransaction{}, err
	}

	observability.LedgerMutationsTotal().WithLabelValues(reason).Inc()

	return entry, nil
}

func (s *ledgerService) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[userID] = lock
	}
	return lock
}

// CoinsToUSD converts a coin amount to a formatted USD string at the fixed
// reporting rate. Fractional cents are floored.
func CoinsToUSD(coins int64) string {
	cents := coins * 100 / coinsPerUSD
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
