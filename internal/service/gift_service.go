package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
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

// ErrGiftNotFound indicates the gift slug is absent from the active catalog.
var ErrGiftNotFound = errors.New("gift not found")

// ErrInsufficientInventory indicates the sender does not own enough units.
var ErrInsufficientInventory = errors.New("insufficient gift inventory")

// ErrSenderOrReceiverMissing indicates one of the transacting profiles does not exist.
var ErrSenderOrReceiverMissing = errors.New("sender or receiver missing")

// Revenue split constants. All coin math is integer with floor at every
// percentage step; the rounding residue stays with the platform because the
// creator share is floored first.
const (
	creatorSharePercent  = 95
	creatorBonusPercent  = 10
	loyaltyRewardPercent = 5
)

// EventBroadcaster publishes an authoritative gift event to a room. Implemented
// by the room service; kept as an interface so the engine stays testable.
type EventBroadcaster interface {
	BroadcastGift(ctx context.Context, roomID, senderID string, payload dto.EventPayload) error
}

// GiftService computes and persists every monetary consequence of gift sends
// and purchases. The send path is a compensated sequence of independent store
// calls, not a cross-row transaction: once inventory is decremented the
// operation proceeds through to the ledger.
type GiftService interface {
	SendGift(ctx context.Context, senderID string, req dto.GiftSendRequest) (dto.GiftSendResult, error)
	Purchase(ctx context.Context, userID string, req dto.GiftPurchaseRequest) (dto.GiftPurchaseResult, error)
	Inventory(ctx context.Context, userID string) ([]dto.InventoryItemResponse, error)
	Earnings(ctx context.Context, creatorID string) (dto.CreatorEarningsResponse, error)
}

type giftService struct {
	catalog     repository.GiftCatalogRepository
	inventory   repository.InventoryRepository
	profiles    repository.ProfileRepository
	giftTx      repository.GiftTransactionRepository
	ledger      LedgerService
	broadcaster EventBroadcaster
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewGiftService constructs the gift transaction engine. The broadcaster may
// be nil, in which case confirmed sends are not echoed to rooms.
func NewGiftService(
	catalog repository.GiftCatalogRepository,
	inventory repository.InventoryRepository,
	profiles repository.ProfileRepository,
	giftTx repository.GiftTransactionRepository,
	ledger LedgerService,
	broadcaster EventBroadcaster,
	validate *validator.Validate,
	logger zerolog.Logger,
) GiftService {
	return &giftService{
		catalog:     catalog,
		inventory:   inventory,
		profiles:    profiles,
		giftTx:      giftTx,
		ledger:      ledger,
		broadcaster: broadcaster,
		validator:   validate,
		logger:      logger.With().Str("component", "gift_service").Logger(),
		tracer:      otel.Tracer("github.com/livecast-io/livecast-api/internal/service/gift"),
		now:         time.Now,
	}
}

func (s *giftService) SendGift(ctx context.Context, senderID string, req dto.GiftSendRequest) (dto.GiftSendResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.GiftSendResult{}, err
	}

	attrs := []attribute.KeyValue{
		attribute.String("gift.sender_id", senderID),
		attribute.String("gift.receiver_id", req.ReceiverID),
		attribute.String("gift.slug", req.GiftSlug),
		attribute.Int64("gift.quantity", req.Quantity),
	}
	spanCtx, span := s.tracer.Start(ctx, "gift.send", trace.WithAttributes(attrs...))
	defer span.End()

	sender, err := s.profiles.GetByID(spanCtx, senderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.GiftSendResult{}, ErrSenderOrReceiverMissing
	}
	if err != nil {
		span.RecordError(err)
		return dto.GiftSendResult{}, err
	}

	receiver, err := s.profiles.GetByID(spanCtx, req.ReceiverID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.GiftSendResult{}, ErrSenderOrReceiverMissing
	}
	if err != nil {
		span.RecordError(err)
		return dto.GiftSendResult{}, err
	}

	gift, err := s.catalog.GetBySlug(spanCtx, req.GiftSlug)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.GiftSendResult{}, ErrGiftNotFound
	}
	if err != nil {
		span.RecordError(err)
		return dto.GiftSendResult{}, err
	}

	// Point of no return for the sender's stock: decrement before payout math.
	if _, err := s.inventory.Adjust(spanCtx, senderID, gift.Slug, -req.Quantity); err != nil {
		if errors.Is(err, repository.ErrInsufficientQuantity) {
			return dto.GiftSendResult{}, ErrInsufficientInventory
		}
		span.RecordError(err)
		return dto.GiftSendResult{}, err
	}

	gross := gift.CoinCost * req.Quantity
	creatorBase := gross * creatorSharePercent / 100
	platform := gross - creatorBase

	bonus := int64(0)
	if receiver.CreatorTier {
		bonus = creatorBase * creatorBonusPercent / 100
		bonusLog := models.GiftBonusLog{
			CreatorID:   receiver.ID,
			SenderID:    senderID,
			GiftSlug:    gift.Slug,
			RoomID:      req.RoomID,
			BaseAmount:  creatorBase,
			BonusAmount: bonus,
			TotalAmount: creatorBase + bonus,
		}
		if err := s.giftTx.InsertBonusLog(spanCtx, &bonusLog); err != nil {
			// Audit-only row: never unwinds the transfer.
			s.logger.Warn().Err(err).Str("creator_id", receiver.ID).Msg("failed to log creator bonus")
		}
	}

	creatorTotal := creatorBase + bonus

	metadata := datatypes.JSONMap{
		"gift_slug":      gift.Slug,
		"quantity":       fmt.Sprint(req.Quantity),
		"creator_share":  fmt.Sprint(creatorSharePercent),
		"platform_coins": fmt.Sprint(platform),
		"bonus_coins":    fmt.Sprint(bonus),
	}

	sent := models.GiftTransaction{
		Direction:     models.GiftDirectionSent,
		FromUserID:    senderID,
		ToUserID:      receiver.ID,
		GiftSlug:      gift.Slug,
		Quantity:      req.Quantity,
		GrossCoins:    gross,
		PlatformCoins: platform,
		CreatorCoins:  creatorTotal,
		BonusCoins:    bonus,
		RoomID:        req.RoomID,
		Metadata:      metadata,
	}
	if err := s.giftTx.Insert(spanCtx, &sent); err != nil {
		span.RecordError(err)
		observability.GiftTransactionsTotal().WithLabelValues("partial_failure").Inc()
		s.logPartialFailure(senderID, req, "sent_row", err)
		return dto.GiftSendResult{}, err
	}

	received := sent
	received.ID = 0
	received.Direction = models.GiftDirectionReceived
	if err := s.giftTx.Insert(spanCtx, &received); err != nil {
		span.RecordError(err)
		observability.GiftTransactionsTotal().WithLabelValues("partial_failure").Inc()
		s.logPartialFailure(senderID, req, "received_row", err)
		return dto.GiftSendResult{}, err
	}

	creditMeta := map[string]interface{}{
		"gift_slug":    gift.Slug,
		"from_user_id": senderID,
		"room_id":      req.RoomID,
		"base_coins":   fmt.Sprint(creatorBase),
		"bonus_coins":  fmt.Sprint(bonus),
	}
	if _, err := s.ledger.Credit(spanCtx, receiver.ID, creatorTotal, models.LedgerReasonGiftReceived, creditMeta); err != nil {
		// The ledger writer already restored the receiver balance if its own
		// row insert failed; the gift rows stay for manual reconciliation.
		span.RecordError(err)
		observability.GiftTransactionsTotal().WithLabelValues("partial_failure").Inc()
		s.logPartialFailure(senderID, req, "receiver_credit", err)
		return dto.GiftSendResult{}, err
	}

	senderBonus := int64(0)
	if sender.HasActiveLoyaltyPass(s.now()) {
		senderBonus = gross * loyaltyRewardPercent / 100
		if senderBonus > 0 {
			rewardMeta := map[string]interface{}{
				"gift_slug": gift.Slug,
				"room_id":   req.RoomID,
				"source":    "loyalty_pass",
			}
			if _, err := s.ledger.Credit(spanCtx, senderID, senderBonus, models.LedgerReasonReward, rewardMeta); err != nil {
				// Best effort: the reward never unwinds the gift itself.
				s.logger.Warn().Err(err).Str("sender_id", senderID).Msg("loyalty reward credit failed")
				senderBonus = 0
			}
		}
	}

	if s.broadcaster != nil {
		payload := dto.EventPayload{
			GiftSlug:  gift.Slug,
			GiftCount: req.Quantity,
			UnitValue: gift.CoinCost,
			Rarity:    gift.Rarity,
		}
		if err := s.broadcaster.BroadcastGift(spanCtx, req.RoomID, senderID, payload); err != nil {
			s.logger.Warn().Err(err).Str("room_id", req.RoomID).Msg("failed to broadcast gift event")
		}
	}

	observability.GiftTransactionsTotal().WithLabelValues("success").Inc()

	return dto.GiftSendResult{
		Success:         true,
		TotalValue:      gross,
		CreatorEarnings: creatorTotal,
		CreatorBonus:    bonus,
		SenderBonus:     senderBonus,
	}, nil
}

func (s *giftService) Purchase(ctx context.Context, userID string, req dto.GiftPurchaseRequest) (dto.GiftPurchaseResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.GiftPurchaseResult{}, err
	}

	spanCtx, span := s.tracer.Start(ctx, "gift.purchase", trace.WithAttributes(
		attribute.String("gift.buyer_id", userID),
		attribute.String("gift.slug", req.GiftSlug),
		attribute.Int64("gift.quantity", req.Quantity),
	))
	defer span.End()

	gift, err := s.catalog.GetBySlug(spanCtx, req.GiftSlug)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.GiftPurchaseResult{}, ErrGiftNotFound
	}
	if err != nil {
		span.RecordError(err)
		return dto.GiftPurchaseResult{}, err
	}

	cost := gift.CoinCost * req.Quantity

	// Debit before grant: if the debit fails the inventory is never touched.
	entry, err := s.ledger.Debit(spanCtx, userID, cost, models.LedgerReasonGiftPurchase, map[string]interface{}{
		"gift_slug": gift.Slug,
		"quantity":  fmt.Sprint(req.Quantity),
	})
	if err != nil {
		return dto.GiftPurchaseResult{}, err
	}

	if _, err := s.inventory.Adjust(spanCtx, userID, gift.Slug, req.Quantity); err != nil {
		span.RecordError(err)
		s.logger.Warn().Err(err).Str("user_id", userID).Str("gift_slug", gift.Slug).Msg("inventory grant failed, refunding purchase")
		if _, refundErr := s.ledger.Credit(spanCtx, userID, cost, models.LedgerReasonRefund, map[string]interface{}{
			"gift_slug": gift.Slug,
			"cause":     "inventory_grant_failed",
		}); refundErr != nil {
			s.logger.Error().Err(refundErr).Str("user_id", userID).Int64("coins", cost).Msg("purchase refund failed, balance inconsistent")
		}
		return dto.GiftPurchaseResult{}, err
	}

	return dto.GiftPurchaseResult{
		GiftSlug:   gift.Slug,
		Quantity:   req.Quantity,
		CoinsSpent: cost,
		NewBalance: entry.BalanceAfter,
	}, nil
}

func (s *giftService) Inventory(ctx context.Context, userID string) ([]dto.InventoryItemResponse, error) {
	items, err := s.inventory.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return dto.NewInventoryItemResponseSlice(items), nil
}

func (s *giftService) Earnings(ctx context.Context, creatorID string) (dto.CreatorEarningsResponse, error) {
	summary, err := s.giftTx.EarningsSummary(ctx, creatorID)
	if err != nil {
		return dto.CreatorEarningsResponse{}, err
	}

	return dto.CreatorEarningsResponse{
		CreatorID:     creatorID,
		TotalEarnings: summary.TotalEarnings,
		TotalBonus:    summary.TotalBonus,
		BonusCount:    summary.BonusCount,
		EarningsUSD:   CoinsToUSD(summary.TotalEarnings),
	}, nil
}

func (s *giftService) logPartialFailure(senderID string, req dto.GiftSendRequest, step string, err error) {
	s.logger.Error().
		Err(err).
		Str("sender_id", senderID).
		Str("receiver_id", req.ReceiverID).
		Str("gift_slug", req.GiftSlug).
		Int64("quantity", req.Quantity).
		Str("step", step).
		Msg("gift send failed after inventory decrement, manual reconciliation required")
}
