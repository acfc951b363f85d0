package models

import "time"

// RoomMessage persists a chat message for the bounded history fetch on (re)join.
type RoomMessage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	EventID   string    `gorm:"size:64;uniqueIndex;not null" json:"event_id"`
	RoomID    string    `gorm:"size:128;index;not null" json:"room_id"`
	SenderID  string    `gorm:"size:64;index" json:"sender_id"`
	Content   string    `gorm:"type:text" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
