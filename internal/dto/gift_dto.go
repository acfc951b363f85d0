package dto

import (
	"time"

	"github.com/livecast-io/livecast-api/internal/models"
)

// GiftSendRequest is the payload for sending owned gifts to a receiver.
type GiftSendRequest struct {
	GiftSlug   string `json:"gift_slug" validate:"required,min=1,max=64"`
	Quantity   int64  `json:"quantity" validate:"required,min=1"`
	ReceiverID string `json:"receiver_id" validate:"required,max=64"`
	RoomID     string `json:"room_id" validate:"required,min=3,max=128"`
}

// GiftSendResult reports the monetary outcome of a completed send.
type GiftSendResult struct {
	Success         bool  `json:"success"`
	TotalValue      int64 `json:"total_value"`
	CreatorEarnings int64 `json:"creator_earnings"`
	CreatorBonus    int64 `json:"creator_bonus"`
	SenderBonus     int64 `json:"sender_bonus"`
}

// GiftPurchaseRequest moves coins into inventory for later sending.
type GiftPurchaseRequest struct {
	GiftSlug string `json:"gift_slug" validate:"required,min=1,max=64"`
	Quantity int64  `json:"quantity" validate:"required,min=1"`
}

// GiftPurchaseResult reports the purchase outcome.
type GiftPurchaseResult struct {
	GiftSlug   string `json:"gift_slug"`
	Quantity   int64  `json:"quantity"`
	CoinsSpent int64  `json:"coins_spent"`
	NewBalance int64  `json:"new_balance"`
}

// GiftResponse is the public catalog representation of a gift.
type GiftResponse struct {
	Slug         string `json:"slug"`
	Name         string `json:"name"`
	CoinCost     int64  `json:"coin_cost"`
	Rarity       string `json:"rarity"`
	ArtworkURL   string `json:"artwork_url,omitempty"`
	AnimationURL string `json:"animation_url,omitempty"`
}

// NewGiftResponse converts a catalog model into a DTO.
func NewGiftResponse(gift models.Gift) GiftResponse {
	return GiftResponse{
		Slug:         gift.Slug,
		Name:         gift.Name,
		CoinCost:     gift.CoinCost,
		Rarity:       gift.Rarity,
		ArtworkURL:   gift.ArtworkURL,
		AnimationURL: gift.AnimationURL,
	}
}

// NewGiftResponseSlice converts catalog models into DTOs.
func NewGiftResponseSlice(gifts []models.Gift) []GiftResponse {
	out := make([]GiftResponse, 0, len(gifts))
	for _, gift := range gifts {
		out = append(out, NewGiftResponse(gift))
	}
	return out
}

// InventoryItemResponse is one owned-gift row returned to the sender.
type InventoryItemResponse struct {
	GiftSlug string `json:"gift_slug"`
	Quantity int64  `json:"quantity"`
}

// NewInventoryItemResponseSlice converts inventory models into DTOs.
func NewInventoryItemResponseSlice(items []models.GiftInventoryItem) []InventoryItemResponse {
	out := make([]InventoryItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, InventoryItemResponse{GiftSlug: item.GiftSlug, Quantity: item.Quantity})
	}
	return out
}

// CreatorEarningsResponse summarises gift income for a creator dashboard.
type CreatorEarningsResponse struct {
	CreatorID     string `json:"creator_id"`
	TotalEarnings int64  `json:"total_earnings"`
	TotalBonus    int64  `json:"total_bonus"`
	BonusCount    int64  `json:"bonus_count"`
	EarningsUSD   string `json:"earnings_usd"`
}

// AdminGiftUpsertRequest creates or updates a catalog entry. Artwork is
// attached as a multipart file and uploaded separately.
type AdminGiftUpsertRequest struct {
	Slug     string `json:"slug" validate:"required,min=1,max=64"`
	Name     string `json:"name" validate:"required,min=1,max=128"`
	CoinCost int64  `json:"coin_cost" validate:"required,min=1"`
	Rarity   string `json:"rarity" validate:"omitempty,oneof=common rare epic legendary"`
	Active   *bool  `json:"active"`
}

// GiftTransactionResponse is the serialized audit row.
type GiftTransactionResponse struct {
	ID            uint      `json:"id"`
	Direction     string    `json:"direction"`
	FromUserID    string    `json:"from_user_id"`
	ToUserID      string    `json:"to_user_id"`
	GiftSlug      string    `json:"gift_slug"`
	Quantity      int64     `json:"quantity"`
	GrossCoins    int64     `json:"gross_coins"`
	PlatformCoins int64     `json:"platform_coins"`
	CreatorCoins  int64     `json:"creator_coins"`
	BonusCoins    int64     `json:"bonus_coins"`
	RoomID        string    `json:"room_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewGiftTransactionResponse converts a model into a DTO.
func NewGiftTransactionResponse(tx models.GiftTransaction) GiftTransactionResponse {
	return GiftTransactionResponse{
		ID:            tx.ID,
		Direction:     tx.Direction,
		FromUserID:    tx.FromUserID,
		ToUserID:      tx.ToUserID,
		GiftSlug:      tx.GiftSlug,
		Quantity:      tx.Quantity,
		GrossCoins:    tx.GrossCoins,
		PlatformCoins: tx.PlatformCoins,
		CreatorCoins:  tx.CreatorCoins,
		BonusCoins:    tx.BonusCoins,
		RoomID:        tx.RoomID,
		CreatedAt:     tx.CreatedAt,
	}
}
