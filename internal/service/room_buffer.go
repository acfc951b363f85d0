package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/livecast-io/livecast-api/internal/dto"
	"github.com/livecast-io/livecast-api/internal/observability"
)

// pendingBufferSize bounds how many remote envelopes may queue between two
// flush ticks. Overflow drops the newest envelope rather than blocking the
// transport consumer.
const pendingBufferSize = 256

// RoomSessionConfig carries the tunables of one viewer session.
type RoomSessionConfig struct {
	RoomID        string
	ViewerID      string
	TimelineCap   int
	FlushInterval time.Duration
	StackWindow   time.Duration
}

// RoomSession is the per-viewer event buffer for one room. Remote envelopes
// queue in a bounded channel and are applied to the timeline in batches on a
// fixed flush tick; local chat sends append immediately as provisional entries
// and are reconciled against their authoritative echo by correlation id.
type RoomSession struct {
	cfg    RoomSessionConfig
	sink   func(dto.RoomFrame)
	logger zerolog.Logger
	now    func() time.Time

	pending chan dto.EventEnvelope

	mu       sync.Mutex
	timeline []dto.RoomEvent
	focused  bool
	unread   int
}

// NewRoomSession constructs a session. The sink is invoked with every outbound
// frame and must not block; the room service points it at the client's send
// channel.
func NewRoomSession(cfg RoomSessionConfig, sink func(dto.RoomFrame), logger zerolog.Logger) *RoomSession {
	return &RoomSession{
		cfg:     cfg,
		sink:    sink,
		logger:  logger.With().Str("component", "room_session").Str("room_id", cfg.RoomID).Logger(),
		now:     time.Now,
		pending: make(chan dto.EventEnvelope, pendingBufferSize),
		focused: true,
	}
}

// Seed replaces the timeline with persisted history, oldest first. Used once
// on join before the flush loop starts.
func (s *RoomSession) Seed(events []dto.RoomEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.timeline = append(s.timeline[:0], events...)
	s.timeline, _ = truncateTimeline(s.timeline, s.cfg.TimelineCap)

	s.sink(dto.RoomFrame{
		Type:   dto.FrameTypeTimeline,
		Events: append([]dto.RoomEvent(nil), s.timeline...),
	})
}

// SubmitLocalChat appends an optimistic chat entry and echoes it to the client
// without waiting for the next flush tick. The returned event carries the
// provisional id used as the reconciliation correlation id.
func (s *RoomSession) SubmitLocalChat(content string) dto.RoomEvent {
	event := dto.RoomEvent{
		ID:        dto.ProvisionalIDPrefix + gonanoid.Must(12),
		RoomID:    s.cfg.RoomID,
		SenderID:  s.cfg.ViewerID,
		Type:      dto.EventTypeChat,
		Text:      content,
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	s.timeline = append(s.timeline, event)
	var dropped []string
	s.timeline, dropped = truncateTimeline(s.timeline, s.cfg.TimelineCap)
	s.mu.Unlock()

	s.sink(dto.RoomFrame{
		Type:          dto.FrameTypeAck,
		ProvisionalID: event.ID,
	})
	s.sink(dto.RoomFrame{
		Type:       dto.FrameTypeTimeline,
		Events:     []dto.RoomEvent{event},
		RemovedIDs: dropped,
	})

	return event
}

// RemoveProvisional withdraws a provisional entry whose send failed.
func (s *RoomSession) RemoveProvisional(provisionalID string) {
	s.mu.Lock()
	removed := false
	for i, event := range s.timeline {
		if event.ID == provisionalID {
			s.timeline = append(s.timeline[:i], s.timeline[i+1:]...)
			removed = true
			break
		}
	}
	s.mu.Unlock()

	if removed {
		s.sink(dto.RoomFrame{
			Type:       dto.FrameTypeTimeline,
			RemovedIDs: []string{provisionalID},
		})
	}
}

// OnRemoteEvent queues an authoritative envelope for the next flush tick.
// Envelopes for other rooms or with an unknown wire version are skipped.
func (s *RoomSession) OnRemoteEvent(env dto.EventEnvelope) {
	if env.Version != dto.EnvelopeVersion || env.RoomID != s.cfg.RoomID {
		return
	}

	select {
	case s.pending <- env:
	default:
		observability.PendingEventsDroppedTotal().Inc()
		s.logger.Warn().Str("event_id", env.EventID).Msg("pending buffer full, dropping event")
	}
}

// OnPresence synthesizes a system entry for a join or leave and queues it like
// any remote event. The deterministic id dedupes duplicate deliveries across
// transport legs.
func (s *RoomSession) OnPresence(env dto.PresenceEnvelope) {
	if env.Version != dto.EnvelopeVersion || env.RoomID != s.cfg.RoomID {
		return
	}

	text := fmt.Sprintf("%s joined the room", env.DisplayName)
	if env.Action == "leave" {
		text = fmt.Sprintf("%s left the room", env.DisplayName)
	}

	s.OnRemoteEvent(dto.EventEnvelope{
		Version:  dto.EnvelopeVersion,
		Type:     dto.EventTypeSystem,
		EventID:  fmt.Sprintf("presence-%s-%s-%d", env.Action, env.UserID, env.OccurredAt.UnixNano()),
		SenderID: env.UserID,
		RoomID:   env.RoomID,
		Payload: dto.EventPayload{
			Text:          text,
			SubjectUserID: env.UserID,
		},
		ServerTimestamp: env.OccurredAt,
		Source:          env.Source,
	})
}

// SetFocused records whether the viewer currently has the room in view.
// Regaining focus clears the unread counter.
func (s *RoomSession) SetFocused(focused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.focused = focused
	if focused {
		s.unread = 0
	}
}

// UnreadCount returns the number of events applied while unfocused.
func (s *RoomSession) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// Snapshot returns a copy of the current timeline, oldest first.
func (s *RoomSession) Snapshot() []dto.RoomEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]dto.RoomEvent(nil), s.timeline...)
}

// Run drives the flush loop until the context is cancelled. A final flush on
// shutdown delivers whatever is still pending.
func (s *RoomSession) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Flush()
			return
		case <-ticker.C:
			s.Flush()
		}
	}
}

// Flush drains the pending queue, applies every envelope to the timeline and
// pushes one frame with the resulting changes. No frame is sent on an empty
// tick.
func (s *RoomSession) Flush() {
	var batch []dto.EventEnvelope
	for {
		select {
		case env := <-s.pending:
			batch = append(batch, env)
		default:
			goto drained
		}
	}
drained:
	if len(batch) == 0 {
		return
	}

	s.mu.Lock()

	var (
		changed   []dto.RoomEvent
		removed   []string
		newEvents int
	)
	for _, env := range batch {
		incoming := env.Event()
		timeline, event, removedID, outcome := reconcileEvent(s.timeline, incoming, env.CorrelationID, s.cfg.StackWindow)
		s.timeline = timeline

		switch outcome {
		case reconcileDuplicate:
			continue
		case reconcileMerged:
			observability.GiftStackMergesTotal().Inc()
			changed = dropChanged(changed, removedID)
			removed = append(removed, removedID)
		case reconcileAppended:
			if incoming.SenderID != s.cfg.ViewerID {
				newEvents++
			}
		case reconcileReplaced:
			removed = append(removed, removedID)
		}

		changed = upsertChanged(changed, event)
		observability.RoomEventsIngestedTotal().WithLabelValues(incoming.Type).Inc()
	}

	var dropped []string
	s.timeline, dropped = truncateTimeline(s.timeline, s.cfg.TimelineCap)
	removed = append(removed, dropped...)

	if !s.focused {
		s.unread += newEvents
	}
	unread := s.unread

	s.mu.Unlock()

	observability.RoomFlushesTotal().Inc()

	if len(changed) == 0 && len(removed) == 0 {
		return
	}

	s.sink(dto.RoomFrame{
		Type:        dto.FrameTypeTimeline,
		Events:      changed,
		RemovedIDs:  removed,
		UnreadCount: unread,
	})
}

type reconcileOutcome int

const (
	reconcileAppended reconcileOutcome = iota
	reconcileMerged
	reconcileReplaced
	reconcileDuplicate
)

// reconcileEvent applies one authoritative event to the timeline. Precedence:
// an already-known id is a duplicate; a correlation id matching a provisional
// entry confirms that entry in place; a gift from the same sender with the
// same slug inside the stack window merges into the existing entry; anything
// else appends. Returns the new timeline, the entry as it now stands, and the
// id of any entry it replaced (a confirmed provisional or a re-keyed stack).
func reconcileEvent(timeline []dto.RoomEvent, incoming dto.RoomEvent, correlationID string, stackWindow time.Duration) ([]dto.RoomEvent, dto.RoomEvent, string, reconcileOutcome) {
	for _, event := range timeline {
		if event.ID == incoming.ID {
			return timeline, event, "", reconcileDuplicate
		}
	}

	if correlationID != "" {
		for i, event := range timeline {
			if event.Provisional() && event.ID == correlationID {
				timeline[i] = incoming
				return timeline, incoming, correlationID, reconcileReplaced
			}
		}
	}

	if incoming.Type == dto.EventTypeGift {
		for i := len(timeline) - 1; i >= 0; i-- {
			event := timeline[i]
			if event.Type != dto.EventTypeGift {
				continue
			}
			if event.SenderID != incoming.SenderID || event.GiftSlug != incoming.GiftSlug {
				continue
			}
			if incoming.CreatedAt.Sub(event.CreatedAt) > stackWindow {
				break
			}
			// Sliding window: the merged entry adopts the newest id and
			// timestamp. Re-keying lets clients pulse the stack and makes a
			// redelivered copy of the absorbed event hit the duplicate check.
			superseded := event.ID
			event.ID = incoming.ID
			event.GiftCount += incoming.GiftCount
			event.CreatedAt = incoming.CreatedAt
			timeline[i] = event
			return timeline, event, superseded, reconcileMerged
		}
	}

	timeline = append(timeline, incoming)
	return timeline, incoming, "", reconcileAppended
}

// truncateTimeline drops the oldest entries beyond the cap and returns their ids.
func truncateTimeline(timeline []dto.RoomEvent, limit int) ([]dto.RoomEvent, []string) {
	if limit <= 0 || len(timeline) <= limit {
		return timeline, nil
	}

	excess := len(timeline) - limit
	dropped := make([]string, 0, excess)
	for _, event := range timeline[:excess] {
		dropped = append(dropped, event.ID)
	}

	return append(timeline[:0], timeline[excess:]...), dropped
}

// upsertChanged collects changed entries for one flush frame, keeping a single
// copy per id when an entry is touched more than once in the batch.
func upsertChanged(changed []dto.RoomEvent, event dto.RoomEvent) []dto.RoomEvent {
	for i := range changed {
		if changed[i].ID == event.ID {
			changed[i] = event
			return changed
		}
	}
	return append(changed, event)
}

// dropChanged removes a superseded id from the pending frame so a stack merged
// within the batch is reported once, under its final id.
func dropChanged(changed []dto.RoomEvent, id string) []dto.RoomEvent {
	for i := range changed {
		if changed[i].ID == id {
			return append(changed[:i], changed[i+1:]...)
		}
	}
	return changed
}
