package models

import "time"

// UserProfile stores the coin balance and the account flags the gift engine
// consults when pricing a send.
type UserProfile struct {
	ID                   string     `gorm:"primaryKey;size:64" json:"id"`
	Username             string     `gorm:"size:64;uniqueIndex" json:"username"`
	AvatarURL            string     `gorm:"size:512" json:"avatar_url"`
	Role                 string     `gorm:"size:32;default:viewer" json:"role"`
	CoinBalance          int64      `gorm:"not null;default:0" json:"coin_balance"`
	CreatorTier          bool       `gorm:"not null;default:false" json:"creator_tier"`
	CreatorTierSince     *time.Time `json:"creator_tier_since,omitempty"`
	LoyaltyPassExpiresAt *time.Time `json:"loyalty_pass_expires_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// HasActiveLoyaltyPass reports whether the sender-side reward multiplier applies at the given time.
func (p UserProfile) HasActiveLoyaltyPass(now time.Time) bool {
	return p.LoyaltyPassExpiresAt != nil && p.LoyaltyPassExpiresAt.After(now)
}
