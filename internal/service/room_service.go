package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/livecast-io/livecast-api/internal/dto"
	"github.com/livecast-io/livecast-api/internal/models"
	"github.com/livecast-io/livecast-api/internal/observability"
	"github.com/livecast-io/livecast-api/internal/repository"
)

const clientSendBufferSize = 64

// ErrSendThrottled indicates the sender is inside the chat cooldown window.
var ErrSendThrottled = errors.New("chat send throttled")

// RoomConnectionOptions wraps metadata extracted during the HTTP upgrade.
type RoomConnectionOptions struct {
	UserID        string
	DisplayName   string
	RoomID        string
	CorrelationID string
	Context       context.Context
}

// RoomTuning carries the timeline and cooldown parameters shared by all sessions.
type RoomTuning struct {
	TimelineCap   int
	FlushInterval time.Duration
	StackWindow   time.Duration
	ChatCooldown  time.Duration
}

// RoomService manages websocket room connections, the per-viewer event
// buffers, and cross-node event delivery over Redis pub/sub and NATS.
type RoomService interface {
	ServeConnection(conn *websocket.Conn, opts RoomConnectionOptions)
	History(ctx context.Context, query dto.RoomHistoryQuery) ([]dto.RoomEvent, error)
	BroadcastGift(ctx context.Context, roomID, senderID string, payload dto.EventPayload) error
	Start(ctx context.Context)
}

type roomService struct {
	messages    repository.MessageRepository
	redis       *redis.Client
	redisStream string
	nats        *nats.Conn
	natsSubject string
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	sanitizer   *bluemonday.Policy
	gate        *SenderGate
	tuning      RoomTuning
	hub         *roomHub
	nodeID      string
}

// roomHub keeps track of active websocket clients per room.
type roomHub struct {
	mu    sync.RWMutex
	rooms map[string]map[*roomClient]struct{}
	log   zerolog.Logger
}

type roomClient struct {
	conn    *websocket.Conn
	send    chan dto.RoomFrame
	session *RoomSession
	options RoomConnectionOptions
	service *roomService
	closed  chan struct{}
	once    sync.Once
	cancel  context.CancelFunc
	baseCtx context.Context
}

// transportFrame is the wire shape shared by the Redis and NATS legs. Source
// identifies the publishing node so each node skips its own deliveries.
type transportFrame struct {
	Source   string                `json:"source"`
	Event    *dto.EventEnvelope    `json:"event,omitempty"`
	Presence *dto.PresenceEnvelope `json:"presence,omitempty"`
}

// NewRoomService creates a websocket room service instance.
func NewRoomService(messages repository.MessageRepository, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, validate *validator.Validate, tuning RoomTuning, logger zerolog.Logger) RoomService {
	sanitizer := bluemonday.StrictPolicy()

	hub := &roomHub{
		rooms: make(map[string]map[*roomClient]struct{}),
		log:   logger.With().Str("component", "room_hub").Logger(),
	}

	streamChannel := ""
	natsSubject := ""
	if channelBase != "" {
		streamChannel = channelBase + ":rooms"
		natsSubject = strings.ReplaceAll(channelBase, ":", ".") + ".rooms"
	}

	return &roomService{
		messages:    messages,
		redis:       redisClient,
		redisStream: streamChannel,
		nats:        natsConn,
		natsSubject: natsSubject,
		validator:   validate,
		logger:      logger.With().Str("component", "room_service").Logger(),
		tracer:      otel.Tracer("github.com/livecast-io/livecast-api/internal/service/room"),
		sanitizer:   sanitizer,
		gate:        NewSenderGate(tuning.ChatCooldown),
		tuning:      tuning,
		hub:         hub,
		nodeID:      uuid.NewString(),
	}
}

func (s *roomService) Start(ctx context.Context) {
	if s.redis != nil && s.redisStream != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

func (s *roomService) ServeConnection(conn *websocket.Conn, opts RoomConnectionOptions) {
	baseCtx := opts.Context
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	sessionCtx, cancel := context.WithCancel(baseCtx)

	client := &roomClient{
		conn:    conn,
		send:    make(chan dto.RoomFrame, clientSendBufferSize),
		options: opts,
		service: s,
		closed:  make(chan struct{}),
		cancel:  cancel,
		baseCtx: baseCtx,
	}

	client.session = NewRoomSession(RoomSessionConfig{
		RoomID:        opts.RoomID,
		ViewerID:      opts.UserID,
		TimelineCap:   s.tuning.TimelineCap,
		FlushInterval: s.tuning.FlushInterval,
		StackWindow:   s.tuning.StackWindow,
	}, client.push, s.logger)

	s.hub.register(client)
	observability.RoomConnectionsActive().Inc()

	s.seedSession(baseCtx, client)
	go client.session.Run(sessionCtx)

	s.announcePresence(baseCtx, opts, "join")

	go client.writer()
	client.reader()
}

func (s *roomService) History(ctx context.Context, query dto.RoomHistoryQuery) ([]dto.RoomEvent, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, err
	}

	before := time.Time{}
	if query.Before != nil {
		before = *query.Before
	}

	messages, err := s.messages.ListByRoom(ctx, query.RoomID, before, query.Limit)
	if err != nil {
		return nil, err
	}

	events := make([]dto.RoomEvent, 0, len(messages))
	for _, message := range messages {
		events = append(events, dto.RoomEvent{
			ID:        message.EventID,
			RoomID:    message.RoomID,
			SenderID:  message.SenderID,
			Type:      dto.EventTypeChat,
			Text:      message.Content,
			CreatedAt: message.CreatedAt,
		})
	}

	return events, nil
}

// BroadcastGift republishes a confirmed gift as an authoritative room event.
// Gift events are transient: they live in timelines, not in message history.
func (s *roomService) BroadcastGift(ctx context.Context, roomID, senderID string, payload dto.EventPayload) error {
	envelope := dto.EventEnvelope{
		Version:         dto.EnvelopeVersion,
		Type:            dto.EventTypeGift,
		EventID:         "gift-" + gonanoid.Must(12),
		SenderID:        senderID,
		RoomID:          roomID,
		Payload:         payload,
		ServerTimestamp: time.Now().UTC(),
		Source:          s.nodeID,
	}

	s.fanoutEvent(envelope)
	return s.publish(ctx, transportFrame{Source: s.nodeID, Event: &envelope})
}

func (s *roomService) seedSession(ctx context.Context, client *roomClient) {
	events, err := s.History(ctx, dto.RoomHistoryQuery{RoomID: client.options.RoomID, Limit: s.tuning.TimelineCap})
	if err != nil {
		s.logger.Warn().Err(err).Str("room_id", client.options.RoomID).Msg("failed to load room history for seeding")
		events = nil
	}
	client.session.Seed(events)
}

func (s *roomService) processSend(ctx context.Context, client *roomClient, correlation string, frame dto.ClientFrame) error {
	if !s.gate.TryConsume(client.options.UserID) {
		observability.ChatSendsDeniedTotal().Inc()
		return ErrSendThrottled
	}

	payload := dto.ChatSendRequest{
		Content:       frame.Content,
		CorrelationID: frame.CorrelationID,
	}
	if err := s.validator.Struct(payload); err != nil {
		return err
	}

	clean := strings.TrimSpace(s.sanitizer.Sanitize(payload.Content))
	if clean == "" {
		return fmt.Errorf("message content empty after sanitization")
	}

	attrs := []attribute.KeyValue{
		attribute.String("room.room_id", client.options.RoomID),
		attribute.String("room.sender_id", client.options.UserID),
	}
	if correlation != "" {
		attrs = append(attrs, attribute.String("correlation_id", correlation))
	}

	spanCtx, span := s.tracer.Start(ctx, "room.chat_send", trace.WithAttributes(attrs...))
	defer span.End()

	provisional := client.session.SubmitLocalChat(clean)

	model := models.RoomMessage{
		EventID:  "msg-" + gonanoid.Must(12),
		RoomID:   client.options.RoomID,
		SenderID: client.options.UserID,
		Content:  clean,
	}
	if err := s.messages.Save(spanCtx, &model); err != nil {
		span.RecordError(err)
		client.session.RemoveProvisional(provisional.ID)
		return err
	}

	envelope := dto.EventEnvelope{
		Version:         dto.EnvelopeVersion,
		Type:            dto.EventTypeChat,
		EventID:         model.EventID,
		CorrelationID:   provisional.ID,
		SenderID:        client.options.UserID,
		RoomID:          client.options.RoomID,
		Payload:         dto.EventPayload{Text: clean},
		ServerTimestamp: model.CreatedAt,
		Source:          s.nodeID,
	}

	s.fanoutEvent(envelope)
	if err := s.publish(spanCtx, transportFrame{Source: s.nodeID, Event: &envelope}); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish room event")
	}

	return nil
}

func (s *roomService) announcePresence(ctx context.Context, opts RoomConnectionOptions, action string) {
	envelope := dto.PresenceEnvelope{
		Version:     dto.EnvelopeVersion,
		RoomID:      opts.RoomID,
		UserID:      opts.UserID,
		DisplayName: opts.DisplayName,
		Action:      action,
		OccurredAt:  time.Now().UTC(),
		Source:      s.nodeID,
	}

	s.fanoutPresence(envelope)
	if err := s.publish(ctx, transportFrame{Source: s.nodeID, Presence: &envelope}); err != nil {
		s.logger.Warn().Err(err).Str("action", action).Msg("failed to publish presence event")
	}
}

func (s *roomService) publish(ctx context.Context, frame transportFrame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisStream != "" {
		if err := s.redis.Publish(ctx, s.redisStream, payload).Err(); err != nil {
			return err
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (s *roomService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisStream)
	defer func() {
		_ = pubsub.Close()
	}()
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("room redis subscription closed")
			return
		}
		s.handleTransport([]byte(msg.Payload))
	}
}

func (s *roomService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.QueueSubscribe(s.natsSubject, "livecast-rooms", func(msg *nats.Msg) {
		s.handleTransport(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats rooms subject")
		return
	}
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain rooms nats subscription")
		}
	}()
}

func (s *roomService) handleTransport(data []byte) {
	var frame transportFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		s.logger.Warn().Err(err).Msg("invalid room transport frame")
		return
	}

	if frame.Source == s.nodeID {
		return
	}

	if frame.Event != nil {
		s.fanoutEvent(*frame.Event)
	}
	if frame.Presence != nil {
		s.fanoutPresence(*frame.Presence)
	}
}

func (s *roomService) fanoutEvent(envelope dto.EventEnvelope) {
	s.hub.mu.RLock()
	defer s.hub.mu.RUnlock()

	for client := range s.hub.rooms[envelope.RoomID] {
		client.session.OnRemoteEvent(envelope)
	}
}

func (s *roomService) fanoutPresence(envelope dto.PresenceEnvelope) {
	s.hub.mu.RLock()
	defer s.hub.mu.RUnlock()

	for client := range s.hub.rooms[envelope.RoomID] {
		client.session.OnPresence(envelope)
	}
}

func (h *roomHub) register(client *roomClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := client.options.RoomID
	if _, exists := h.rooms[room]; !exists {
		h.rooms[room] = make(map[*roomClient]struct{})
	}
	h.rooms[room][client] = struct{}{}
	h.log.Debug().Str("room_id", room).Str("user_id", client.options.UserID).Msg("room client connected")
}

func (h *roomHub) unregister(client *roomClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := client.options.RoomID
	if clients, ok := h.rooms[room]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, room)
		}
	}
	h.log.Debug().Str("room_id", room).Str("user_id", client.options.UserID).Msg("room client disconnected")
}

// push is the session sink. Frames for slow consumers are dropped rather than
// blocking the flush loop.
func (c *roomClient) push(frame dto.RoomFrame) {
	select {
	case <-c.closed:
		return
	default:
	}

	select {
	case c.send <- frame:
	default:
		c.service.logger.Warn().Str("room_id", c.options.RoomID).Str("user_id", c.options.UserID).Msg("dropping room frame for slow client")
	}
}

func (c *roomClient) reader() {
	defer c.close()

	connCtx := c.baseCtx
	correlation := c.options.CorrelationID

	for {
		var frame dto.ClientFrame
		if err := c.conn.ReadJSON(&frame); err != nil {
			c.service.logger.Debug().Err(err).Msg("room read loop ended")
			return
		}

		switch frame.Type {
		case dto.ClientFrameFocus:
			c.session.SetFocused(frame.Focused)
		case dto.ClientFrameChat:
			if err := c.service.processSend(connCtx, c, correlation, frame); err != nil {
				c.push(dto.RoomFrame{Type: dto.FrameTypeError, Message: sendErrorMessage(err)})
			}
		default:
			c.push(dto.RoomFrame{Type: dto.FrameTypeError, Message: "unknown frame type"})
		}
	}
}

func sendErrorMessage(err error) string {
	if errors.Is(err, ErrSendThrottled) {
		return "you are sending messages too quickly"
	}
	return "message could not be sent"
}

func (c *roomClient) writer() {
	defer c.close()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(frame); err != nil {
				c.service.logger.Debug().Err(err).Msg("room write loop terminated")
				return
			}
		case <-time.After(30 * time.Second):
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				c.service.logger.Debug().Err(err).Msg("room ping failed")
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *roomClient) close() {
	c.once.Do(func() {
		close(c.closed)
		c.cancel()
		c.service.hub.unregister(c)
		observability.RoomConnectionsActive().Dec()
		c.service.announcePresence(c.baseCtx, c.options, "leave")
		c.service.gate.Forget(c.options.UserID)
		_ = c.conn.Close()
	})
}
