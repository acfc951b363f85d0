package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/livecast-io/livecast-api/internal/dto"
)

func newTestSession(sink func(dto.RoomFrame)) *RoomSession {
	if sink == nil {
		sink = func(dto.RoomFrame) {}
	}
	return NewRoomSession(RoomSessionConfig{
		RoomID:        "room-1",
		ViewerID:      "viewer-1",
		TimelineCap:   200,
		FlushInterval: 150 * time.Millisecond,
		StackWindow:   3 * time.Second,
	}, sink, testLogger())
}

func chatEnvelope(eventID, senderID, text string, at time.Time) dto.EventEnvelope {
	return dto.EventEnvelope{
		Version:         dto.EnvelopeVersion,
		Type:            dto.EventTypeChat,
		EventID:         eventID,
		SenderID:        senderID,
		RoomID:          "room-1",
		Payload:         dto.EventPayload{Text: text},
		ServerTimestamp: at,
	}
}

func giftEnvelope(eventID, senderID, slug string, count int64, at time.Time) dto.EventEnvelope {
	return dto.EventEnvelope{
		Version:         dto.EnvelopeVersion,
		Type:            dto.EventTypeGift,
		EventID:         eventID,
		SenderID:        senderID,
		RoomID:          "room-1",
		Payload:         dto.EventPayload{GiftSlug: slug, GiftCount: count, UnitValue: 100},
		ServerTimestamp: at,
	}
}

func TestSessionAppendsRemoteEvents(t *testing.T) {
	session := newTestSession(nil)
	now := time.Now()

	session.OnRemoteEvent(chatEnvelope("evt-1", "other", "hello", now))
	session.OnRemoteEvent(chatEnvelope("evt-2", "other", "world", now.Add(time.Second)))
	session.Flush()

	timeline := session.Snapshot()
	require.Len(t, timeline, 2)
	require.Equal(t, "evt-1", timeline[0].ID)
	require.Equal(t, "evt-2", timeline[1].ID)
}

func TestSessionDuplicateEventsAreIdempotent(t *testing.T) {
	session := newTestSession(nil)
	now := time.Now()

	env := chatEnvelope("evt-1", "other", "hello", now)
	session.OnRemoteEvent(env)
	session.Flush()
	session.OnRemoteEvent(env)
	session.OnRemoteEvent(env)
	session.Flush()

	require.Len(t, session.Snapshot(), 1)
}

func TestSessionSkipsForeignRoomsAndVersions(t *testing.T) {
	session := newTestSession(nil)
	now := time.Now()

	other := chatEnvelope("evt-1", "other", "hello", now)
	other.RoomID = "room-2"
	session.OnRemoteEvent(other)

	wrongVersion := chatEnvelope("evt-2", "other", "hello", now)
	wrongVersion.Version = 99
	session.OnRemoteEvent(wrongVersion)

	session.Flush()
	require.Empty(t, session.Snapshot())
}

func TestSessionReconcilesProvisionalChat(t *testing.T) {
	var frames []dto.RoomFrame
	session := newTestSession(func(frame dto.RoomFrame) { frames = append(frames, frame) })

	provisional := session.SubmitLocalChat("hi there")
	require.True(t, provisional.Provisional())

	echo := chatEnvelope("msg-1", "viewer-1", "hi there", time.Now())
	echo.CorrelationID = provisional.ID
	session.OnRemoteEvent(echo)
	session.Flush()

	timeline := session.Snapshot()
	require.Len(t, timeline, 1)
	require.Equal(t, "msg-1", timeline[0].ID)
	require.False(t, timeline[0].Provisional())

	// The flush frame reports the provisional id as removed.
	last := frames[len(frames)-1]
	require.Equal(t, dto.FrameTypeTimeline, last.Type)
	require.Contains(t, last.RemovedIDs, provisional.ID)
}

func TestSessionRemoveProvisionalOnFailedSend(t *testing.T) {
	session := newTestSession(nil)

	provisional := session.SubmitLocalChat("doomed")
	require.Len(t, session.Snapshot(), 1)

	session.RemoveProvisional(provisional.ID)
	require.Empty(t, session.Snapshot())
}

func TestSessionStacksGiftsInsideWindow(t *testing.T) {
	var frames []dto.RoomFrame
	session := newTestSession(func(frame dto.RoomFrame) { frames = append(frames, frame) })
	now := time.Now()

	session.OnRemoteEvent(giftEnvelope("gift-1", "fan", "rose", 1, now))
	session.OnRemoteEvent(giftEnvelope("gift-2", "fan", "rose", 2, now.Add(time.Second)))
	session.OnRemoteEvent(giftEnvelope("gift-3", "fan", "rose", 1, now.Add(2*time.Second)))
	session.Flush()

	// The stack is re-keyed to the newest event on every merge.
	timeline := session.Snapshot()
	require.Len(t, timeline, 1)
	require.Equal(t, "gift-3", timeline[0].ID)
	require.Equal(t, int64(4), timeline[0].GiftCount)

	// One flush frame: the merged entry under its final id, superseded ids removed.
	last := frames[len(frames)-1]
	require.Len(t, last.Events, 1)
	require.Equal(t, "gift-3", last.Events[0].ID)
	require.ElementsMatch(t, []string{"gift-1", "gift-2"}, last.RemovedIDs)
}

func TestSessionRedeliveredMergedGiftDoesNotDoubleCount(t *testing.T) {
	session := newTestSession(nil)
	now := time.Now()

	session.OnRemoteEvent(giftEnvelope("gift-1", "fan", "rose", 1, now))
	session.Flush()
	session.OnRemoteEvent(giftEnvelope("gift-2", "fan", "rose", 2, now.Add(time.Second)))
	session.Flush()

	timeline := session.Snapshot()
	require.Len(t, timeline, 1)
	require.Equal(t, "gift-2", timeline[0].ID)
	require.Equal(t, int64(3), timeline[0].GiftCount)

	// Dual transport legs can deliver the same event twice; the second copy
	// must land on the duplicate check, not merge again.
	session.OnRemoteEvent(giftEnvelope("gift-2", "fan", "rose", 2, now.Add(time.Second)))
	session.Flush()

	timeline = session.Snapshot()
	require.Len(t, timeline, 1)
	require.Equal(t, int64(3), timeline[0].GiftCount)
}

func TestSessionGiftStackWindowSlides(t *testing.T) {
	session := newTestSession(nil)
	now := time.Now()

	// Each gift lands within 3s of the previous one but the last is more than
	// 3s after the first. Sliding semantics keep one entry.
	session.OnRemoteEvent(giftEnvelope("gift-1", "fan", "rose", 1, now))
	session.OnRemoteEvent(giftEnvelope("gift-2", "fan", "rose", 1, now.Add(2*time.Second)))
	session.OnRemoteEvent(giftEnvelope("gift-3", "fan", "rose", 1, now.Add(4*time.Second)))
	session.Flush()

	timeline := session.Snapshot()
	require.Len(t, timeline, 1)
	require.Equal(t, int64(3), timeline[0].GiftCount)
}

func TestSessionDoesNotStackAcrossSenderOrSlug(t *testing.T) {
	session := newTestSession(nil)
	now := time.Now()

	session.OnRemoteEvent(giftEnvelope("gift-1", "fan", "rose", 1, now))
	session.OnRemoteEvent(giftEnvelope("gift-2", "other-fan", "rose", 1, now.Add(time.Second)))
	session.OnRemoteEvent(giftEnvelope("gift-3", "fan", "diamond", 1, now.Add(2*time.Second)))
	session.Flush()

	require.Len(t, session.Snapshot(), 3)
}

func TestSessionDoesNotStackBeyondWindow(t *testing.T) {
	session := newTestSession(nil)
	now := time.Now()

	session.OnRemoteEvent(giftEnvelope("gift-1", "fan", "rose", 1, now))
	session.Flush()
	session.OnRemoteEvent(giftEnvelope("gift-2", "fan", "rose", 1, now.Add(5*time.Second)))
	session.Flush()

	require.Len(t, session.Snapshot(), 2)
}

func TestSessionTimelineCapDropsOldest(t *testing.T) {
	session := NewRoomSession(RoomSessionConfig{
		RoomID:        "room-1",
		ViewerID:      "viewer-1",
		TimelineCap:   3,
		FlushInterval: 150 * time.Millisecond,
		StackWindow:   3 * time.Second,
	}, func(dto.RoomFrame) {}, testLogger())
	now := time.Now()

	for i, id := range []string{"evt-1", "evt-2", "evt-3", "evt-4", "evt-5"} {
		session.OnRemoteEvent(chatEnvelope(id, "other", "msg", now.Add(time.Duration(i)*time.Second)))
	}
	session.Flush()

	timeline := session.Snapshot()
	require.Len(t, timeline, 3)
	require.Equal(t, "evt-3", timeline[0].ID)
	require.Equal(t, "evt-5", timeline[2].ID)
}

func TestSessionUnreadCountWhileUnfocused(t *testing.T) {
	session := newTestSession(nil)
	now := time.Now()

	session.SetFocused(false)
	session.OnRemoteEvent(chatEnvelope("evt-1", "other", "one", now))
	session.OnRemoteEvent(chatEnvelope("evt-2", "other", "two", now.Add(time.Second)))
	session.Flush()
	require.Equal(t, 2, session.UnreadCount())

	session.SetFocused(true)
	require.Zero(t, session.UnreadCount())
}

func TestSessionUnreadCountSkipsOwnEvents(t *testing.T) {
	session := newTestSession(nil)
	now := time.Now()

	session.SetFocused(false)
	session.OnRemoteEvent(chatEnvelope("evt-1", "viewer-1", "mine", now))
	session.OnRemoteEvent(giftEnvelope("gift-1", "viewer-1", "rose", 1, now.Add(time.Second)))
	session.OnRemoteEvent(chatEnvelope("evt-2", "other", "theirs", now.Add(2*time.Second)))
	session.Flush()

	require.Len(t, session.Snapshot(), 3)
	require.Equal(t, 1, session.UnreadCount())
}

func TestSessionPresenceSynthesizesSystemEvent(t *testing.T) {
	session := newTestSession(nil)

	session.OnPresence(dto.PresenceEnvelope{
		Version:     dto.EnvelopeVersion,
		RoomID:      "room-1",
		UserID:      "fan",
		DisplayName: "Fan",
		Action:      "join",
		OccurredAt:  time.Now(),
	})
	session.Flush()

	timeline := session.Snapshot()
	require.Len(t, timeline, 1)
	require.Equal(t, dto.EventTypeSystem, timeline[0].Type)
	require.Equal(t, "Fan joined the room", timeline[0].Text)
	require.Equal(t, "fan", timeline[0].SubjectUserID)
}

func TestSessionSeedTruncatesToCap(t *testing.T) {
	session := NewRoomSession(RoomSessionConfig{
		RoomID:        "room-1",
		ViewerID:      "viewer-1",
		TimelineCap:   2,
		FlushInterval: 150 * time.Millisecond,
		StackWindow:   3 * time.Second,
	}, func(dto.RoomFrame) {}, testLogger())

	now := time.Now()
	session.Seed([]dto.RoomEvent{
		{ID: "evt-1", RoomID: "room-1", Type: dto.EventTypeChat, CreatedAt: now},
		{ID: "evt-2", RoomID: "room-1", Type: dto.EventTypeChat, CreatedAt: now.Add(time.Second)},
		{ID: "evt-3", RoomID: "room-1", Type: dto.EventTypeChat, CreatedAt: now.Add(2 * time.Second)},
	})

	timeline := session.Snapshot()
	require.Len(t, timeline, 2)
	require.Equal(t, "evt-2", timeline[0].ID)
}
