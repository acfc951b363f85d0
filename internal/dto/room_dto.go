package dto

import (
	"strings"
	"time"
)

// Room event types carried on the transport and in the timeline.
const (
	EventTypeChat   = "chat"
	EventTypeSystem = "system"
	EventTypeGift   = "gift"
)

// EnvelopeVersion is the wire version this node understands. Envelopes with a
// different version are skipped, not rejected.
const EnvelopeVersion = 1

// ProvisionalIDPrefix marks a locally generated event id awaiting its
// authoritative echo.
const ProvisionalIDPrefix = "local-"

// RoomEvent is one timeline entry. Exactly one shape applies per Type: chat
// events carry Text, system events Text plus an optional subject, gift events
// the gift fields. The ID is the merge key for reconciliation.
type RoomEvent struct {
	ID            string    `json:"id"`
	RoomID        string    `json:"room_id"`
	SenderID      string    `json:"sender_id"`
	Type          string    `json:"type"`
	Text          string    `json:"text,omitempty"`
	SubjectUserID string    `json:"subject_user_id,omitempty"`
	GiftSlug      string    `json:"gift_slug,omitempty"`
	GiftCount     int64     `json:"gift_count,omitempty"`
	UnitValue     int64     `json:"unit_value,omitempty"`
	Rarity        string    `json:"rarity,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Provisional reports whether the event is a local echo not yet confirmed.
func (e RoomEvent) Provisional() bool {
	return strings.HasPrefix(e.ID, ProvisionalIDPrefix)
}

// EventPayload holds the type-specific fields of a transport envelope.
type EventPayload struct {
	Text          string `json:"text,omitempty"`
	SubjectUserID string `json:"subject_user_id,omitempty"`
	GiftSlug      string `json:"gift_slug,omitempty"`
	GiftCount     int64  `json:"gift_count,omitempty"`
	UnitValue     int64  `json:"unit_value,omitempty"`
	Rarity        string `json:"rarity,omitempty"`
}

// EventEnvelope is the authoritative event shape republished over the room
// transport after server-side validation.
type EventEnvelope struct {
	Version         int          `json:"version"`
	Type            string       `json:"type"`
	EventID         string       `json:"event_id"`
	CorrelationID   string       `json:"correlation_id,omitempty"`
	SenderID        string       `json:"sender_id"`
	RoomID          string       `json:"room_id"`
	Payload         EventPayload `json:"payload"`
	ServerTimestamp time.Time    `json:"server_timestamp"`
	Source          string       `json:"source,omitempty"`
}

// Event converts the envelope into a timeline entry.
func (env EventEnvelope) Event() RoomEvent {
	return RoomEvent{
		ID:            env.EventID,
		RoomID:        env.RoomID,
		SenderID:      env.SenderID,
		Type:          env.Type,
		Text:          env.Payload.Text,
		SubjectUserID: env.Payload.SubjectUserID,
		GiftSlug:      env.Payload.GiftSlug,
		GiftCount:     env.Payload.GiftCount,
		UnitValue:     env.Payload.UnitValue,
		Rarity:        env.Payload.Rarity,
		CreatedAt:     env.ServerTimestamp,
	}
}

// PresenceEnvelope is delivered on the presence channel when a viewer joins or
// leaves a room. Sessions synthesize System events from it.
type PresenceEnvelope struct {
	Version     int       `json:"version"`
	RoomID      string    `json:"room_id"`
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Action      string    `json:"action"`
	OccurredAt  time.Time `json:"occurred_at"`
	Source      string    `json:"source,omitempty"`
}

// ChatSendRequest is the chat portion of an inbound websocket frame.
type ChatSendRequest struct {
	Content       string `json:"content" validate:"required,min=1,max=500"`
	CorrelationID string `json:"correlation_id" validate:"omitempty,max=64"`
}

// Client frame types accepted on the websocket.
const (
	ClientFrameChat  = "chat"
	ClientFrameFocus = "focus"
)

// ClientFrame is the inbound websocket frame. Chat frames carry Content;
// focus frames toggle the unread counter.
type ClientFrame struct {
	Type          string `json:"type" validate:"required,oneof=chat focus"`
	Content       string `json:"content,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty" validate:"omitempty,max=64"`
	Focused       bool   `json:"focused,omitempty"`
}

// Room frame types pushed to websocket clients.
const (
	FrameTypeTimeline = "timeline"
	FrameTypeAck      = "ack"
	FrameTypeError    = "error"
)

// RoomFrame is the outbound websocket frame. Timeline frames carry the events
// appended or merged during one flush tick; ack frames return the provisional
// id for a just-submitted chat message.
type RoomFrame struct {
	Type          string      `json:"type"`
	Events        []RoomEvent `json:"events,omitempty"`
	RemovedIDs    []string    `json:"removed_ids,omitempty"`
	ProvisionalID string      `json:"provisional_id,omitempty"`
	UnreadCount   int         `json:"unread_count,omitempty"`
	Message       string      `json:"message,omitempty"`
}

// RoomHistoryQuery filters the bounded history fetch used to seed a timeline.
type RoomHistoryQuery struct {
	RoomID string     `query:"room_id" validate:"required,min=3,max=128"`
	Before *time.Time `query:"before"`
	Limit  int        `query:"limit" validate:"omitempty,min=1,max=200"`
}
