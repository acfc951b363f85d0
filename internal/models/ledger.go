package models

import (
	"time"

	"gorm.io/datatypes"
)

// Ledger entry reasons. Every balance mutation carries one.
const (
	LedgerReasonGiftReceived = "gift_received"
	LedgerReasonGiftPurchase = "gift_purchase"
	LedgerReasonCreatorBonus = "creator_bonus"
	LedgerReasonReward       = "reward"
	LedgerReasonPurchase     = "purchase"
	LedgerReasonRefund       = "refund"
	LedgerReasonAdminGrant   = "admin_grant"
)

// CoinTransaction is one immutable ledger row. Amount is signed (negative for
// debits) and BalanceAfter snapshots the post-mutation balance so a point in
// time can be audited without replaying history.
type CoinTransaction struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	UserID       string            `gorm:"size:64;index;not null" json:"user_id"`
	Amount       int64             `gorm:"not null" json:"amount"`
	Reason       string            `gorm:"size:64;index;not null" json:"reason"`
	BalanceAfter int64             `gorm:"not null" json:"balance_after"`
	Metadata     datatypes.JSONMap `gorm:"type:json" json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}
