package models

import (
	"time"

	"gorm.io/datatypes"
)

// Gift describes one catalog entry: what a gift costs and how it is rendered.
type Gift struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Slug         string    `gorm:"size:64;uniqueIndex;not null" json:"slug"`
	Name         string    `gorm:"size:128;not null" json:"name"`
	CoinCost     int64     `gorm:"not null" json:"coin_cost"`
	Rarity       string    `gorm:"size:32;default:common" json:"rarity"`
	ArtworkURL   string    `gorm:"size:512" json:"artwork_url"`
	AnimationURL string    `gorm:"size:512" json:"animation_url"`
	Active       bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// GiftInventoryItem tracks owned-but-unsent gift quantities per user.
// Rows are deleted instead of kept at zero, so presence implies quantity > 0.
type GiftInventoryItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"size:64;index:idx_inventory_user_gift,unique;not null" json:"user_id"`
	GiftSlug  string    `gorm:"size:64;index:idx_inventory_user_gift,unique;not null" json:"gift_slug"`
	Quantity  int64     `gorm:"not null" json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Gift transaction directions.
const (
	GiftDirectionSent     = "sent"
	GiftDirectionReceived = "received"
)

// GiftTransaction is one immutable audit row of a gift send, written once per
// perspective (sent and received). Corrections are compensating rows.
type GiftTransaction struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	Direction     string            `gorm:"size:16;not null" json:"direction"`
	FromUserID    string            `gorm:"size:64;index" json:"from_user_id"`
	ToUserID      string            `gorm:"size:64;index" json:"to_user_id"`
	GiftSlug      string            `gorm:"size:64;index" json:"gift_slug"`
	Quantity      int64             `gorm:"not null" json:"quantity"`
	GrossCoins    int64             `gorm:"not null" json:"gross_coins"`
	PlatformCoins int64             `gorm:"not null" json:"platform_coins"`
	CreatorCoins  int64             `gorm:"not null" json:"creator_coins"`
	BonusCoins    int64             `gorm:"not null;default:0" json:"bonus_coins"`
	RoomID        string            `gorm:"size:128;index" json:"room_id"`
	Metadata      datatypes.JSONMap `gorm:"type:json" json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// GiftBonusLog records an applied creator-tier bonus with its constituents
// so payouts can be audited without re-deriving the split.
type GiftBonusLog struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CreatorID   string    `gorm:"size:64;index;not null" json:"creator_id"`
	SenderID    string    `gorm:"size:64" json:"sender_id"`
	GiftSlug    string    `gorm:"size:64" json:"gift_slug"`
	RoomID      string    `gorm:"size:128" json:"room_id"`
	BaseAmount  int64     `gorm:"not null" json:"base_amount"`
	BonusAmount int64     `gorm:"not null" json:"bonus_amount"`
	TotalAmount int64     `gorm:"not null" json:"total_amount"`
	CreatedAt   time.Time `json:"created_at"`
}
