package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrRoomNotFound    = errors.New("room not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrRoomExists      = errors.New("room already exists")
)

// Dispatcher delivers encoded events to connected clients. Implementations
// must not block: Service calls them while holding its lock.
type Dispatcher interface {
	BroadcastAll(event chat.Event)
	Unicast(connID string, event chat.Event)
}

// Dispatchers fans every event out to each dispatcher in order.
type Dispatchers []Dispatcher

// BroadcastAll implements Dispatcher.
func (ds Dispatchers) BroadcastAll(event chat.Event) {
	for _, d := range ds {
		d.BroadcastAll(event)
	}
}

// Unicast implements Dispatcher.
func (ds Dispatchers) Unicast(connID string, event chat.Event) {
	for _, d := range ds {
		d.Unicast(connID, event)
	}
}

// Config controls room capacity and session retention.
type Config struct {
	Rooms              []chat.Room
	DefaultRoom        string
	HistoryLimit       int
	RoomHistoryLimits  map[string]int
	SessionTTL         time.Duration
	MaxOfflineSessions int
}

// Option customises a Service.
type Option func(*Service)

// WithMirror mirrors users and messages into a durable store.
func WithMirror(m *Mirror) Option {
	return func(s *Service) { s.mirror = m }
}

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Service) { s.log = logger }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service is the room coordinator. It owns the registry, directory, message
// logs and typing sets, and runs each inbound event to completion under one
// lock: mutation first, then dispatch. No two events interleave.
type Service struct {
	mu         sync.Mutex
	cfg        Config
	registry   *Registry
	directory  *Directory
	logs       map[string]*MessageLog
	typing     *TypingTracker
	dispatcher Dispatcher
	mirror     *Mirror
	log        logrus.FieldLogger
	now        func() time.Time
}

// NewService builds a coordinator over cfg.Rooms (chat.Seed when empty).
func NewService(cfg Config, dispatcher Dispatcher, opts ...Option) *Service {
	if len(cfg.Rooms) == 0 {
		cfg.Rooms = chat.Seed()
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}

	s := &Service{
		registry:   NewRegistry(),
		directory:  NewDirectory(cfg.Rooms),
		logs:       make(map[string]*MessageLog, len(cfg.Rooms)),
		typing:     NewTypingTracker(),
		dispatcher: dispatcher,
		log:        logrus.StandardLogger(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithField("component", "chat")

	rooms := s.directory.ListRooms()
	if cfg.DefaultRoom == "" || !s.directory.Has(cfg.DefaultRoom) {
		cfg.DefaultRoom = rooms[0].ID
	}
	for _, room := range rooms {
		limit := cfg.HistoryLimit
		if override, ok := cfg.RoomHistoryLimits[room.ID]; ok && override > 0 {
			limit = override
		}
		s.logs[room.ID] = NewMessageLog(room.ID, limit)
		s.mirror.SaveRoom(room)
	}
	s.cfg = cfg
	return s
}

// DefaultRoom returns the room new sessions are placed in.
func (s *Service) DefaultRoom() string {
	return s.cfg.DefaultRoom
}

// Join registers connID as username and places it in the default room. A
// repeat join replaces the previous session state.
func (s *Service) Join(connID string, payload chat.JoinPayload) (chat.Session, error) {
	if err := ValidateUsername(payload.Username); err != nil {
		return chat.Session{}, err
	}
	if err := ValidateAvatar(payload.Avatar); err != nil {
		return chat.Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	room := s.cfg.DefaultRoom
	if prev, ok := s.registry.Lookup(connID); ok {
		for _, roomID := range s.typing.Purge(connID) {
			s.broadcastTyping(roomID, connID, prev.Username, false)
		}
	}
	session := s.registry.Join(connID, payload.Username, payload.Avatar, room, now)
	if err := s.directory.JoinRoom(connID, room, ""); err != nil {
		return chat.Session{}, err
	}

	s.log.WithFields(logrus.Fields{"conn": connID, "username": session.Username}).Info("user joined the chat")

	s.unicastHistory(connID, room)
	s.broadcastSnapshots()
	s.dispatcher.BroadcastAll(chat.Event{
		Type:    chat.EventUserJoined,
		Payload: chat.Presence{UserID: connID, Username: session.Username, Timestamp: now},
	})

	s.mirror.SaveUser(session)
	return session, nil
}

// JoinRoom moves connID into roomID, sends it the room history and
// broadcasts fresh session and room snapshots.
func (s *Service) JoinRoom(connID string, payload chat.JoinRoomPayload) error {
	if payload.RoomID == "" {
		return ErrRoomIDEmpty
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.registry.Lookup(connID); !ok {
		return ErrSessionNotFound
	}
	if err := s.directory.JoinRoom(connID, payload.RoomID, payload.PreviousRoom); err != nil {
		return err
	}
	s.registry.setRoom(connID, payload.RoomID)

	s.unicastHistory(connID, payload.RoomID)
	s.broadcastSnapshots()
	return nil
}

// SendMessage appends a message to a room log and broadcasts it.
func (s *Service) SendMessage(connID string, payload chat.SendMessagePayload) (chat.Message, error) {
	if payload.RoomID == "" {
		return chat.Message{}, ErrRoomIDEmpty
	}
	if err := ValidateMessage(payload.Content, payload.Type); err != nil {
		return chat.Message{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	author, ok := s.registry.Lookup(connID)
	if !ok {
		return chat.Message{}, ErrSessionNotFound
	}
	log, ok := s.logs[payload.RoomID]
	if !ok {
		return chat.Message{}, ErrRoomNotFound
	}

	msg, evicted := log.Append(author, payload.Content, payload.Type, s.now())
	if len(evicted) > 0 {
		s.log.WithFields(logrus.Fields{"room": payload.RoomID, "evicted": len(evicted)}).Debug("room log over capacity; evicted oldest")
	}

	s.dispatcher.BroadcastAll(chat.Event{
		Type:    chat.EventNewMessage,
		Payload: chat.NewMessage{RoomID: payload.RoomID, Message: msg},
		RoomID:  payload.RoomID,
		Seq:     s.directory.NextSeq(payload.RoomID),
	})

	s.mirror.SaveMessage(msg)
	return msg, nil
}

// SetTyping flags or clears connID as typing in a room and broadcasts the
// transition as received.
func (s *Service) SetTyping(connID string, payload chat.TypingPayload) error {
	if payload.RoomID == "" {
		return ErrRoomIDEmpty
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.registry.Lookup(connID)
	if !ok {
		return ErrSessionNotFound
	}
	if !s.directory.Has(payload.RoomID) {
		return ErrRoomNotFound
	}

	s.typing.Set(payload.RoomID, connID, payload.IsTyping)
	s.broadcastTyping(payload.RoomID, connID, session.Username, payload.IsTyping)
	return nil
}

// AddReaction votes reaction onto a message. Unknown messages are ignored and
// a repeated vote changes nothing and broadcasts nothing.
func (s *Service) AddReaction(connID string, payload chat.ReactionPayload) error {
	if payload.RoomID == "" {
		return ErrRoomIDEmpty
	}
	if err := ValidateReaction(payload.Reaction); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.registry.Lookup(connID); !ok {
		return ErrSessionNotFound
	}
	log, ok := s.logs[payload.RoomID]
	if !ok {
		return ErrRoomNotFound
	}

	msg, changed, err := log.AddReaction(payload.MessageID, connID, payload.Reaction)
	if err != nil || !changed {
		return err
	}

	s.dispatcher.BroadcastAll(chat.Event{
		Type: chat.EventReactionUpdated,
		Payload: chat.ReactionUpdated{
			MessageID: msg.ID,
			RoomID:    payload.RoomID,
			Reactions: msg.Reactions,
		},
		RoomID: payload.RoomID,
		Seq:    s.directory.NextSeq(payload.RoomID),
	})
	return nil
}

// SendPrivateMessage delivers content to the recipient and echoes it to the
// sender. Nobody else sees it and it is not logged.
func (s *Service) SendPrivateMessage(connID string, payload chat.PrivateMessagePayload) (chat.PrivateMessage, error) {
	if err := ValidateMessage(payload.Content, ""); err != nil {
		return chat.PrivateMessage{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sender, ok := s.registry.Lookup(connID)
	if !ok {
		return chat.PrivateMessage{}, ErrSessionNotFound
	}
	if _, ok := s.registry.Lookup(payload.RecipientID); !ok {
		return chat.PrivateMessage{}, ErrSessionNotFound
	}

	msg := chat.PrivateMessage{
		ID:           uuid.NewString(),
		SenderID:     connID,
		RecipientID:  payload.RecipientID,
		SenderName:   sender.Username,
		SenderAvatar: sender.Avatar,
		Content:      payload.Content,
		Timestamp:    s.now(),
	}
	event := chat.Event{Type: chat.EventPrivateMessage, Payload: msg}
	s.dispatcher.Unicast(payload.RecipientID, event)
	if payload.RecipientID != connID {
		s.dispatcher.Unicast(connID, event)
	}
	return msg, nil
}

// Disconnect marks connID offline and removes it from every membership and
// typing set. The session record is kept until the janitor evicts it.
func (s *Service) Disconnect(connID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.registry.Disconnect(connID, s.now())
	if !ok {
		return ErrSessionNotFound
	}
	s.directory.Leave(connID)
	for _, roomID := range s.typing.Purge(connID) {
		s.broadcastTyping(roomID, connID, session.Username, false)
	}

	s.log.WithFields(logrus.Fields{"conn": connID, "username": session.Username}).Info("user left the chat")

	s.broadcastSnapshots()
	s.dispatcher.BroadcastAll(chat.Event{
		Type:    chat.EventUserLeft,
		Payload: chat.Presence{UserID: connID, Username: session.Username, Timestamp: session.LastSeen},
	})
	return nil
}

// CreateRoom adds a room to the live catalog, mirrors it and broadcasts the
// new rooms_list.
func (s *Service) CreateRoom(room chat.Room) (chat.Room, error) {
	if room.ID == "" {
		return chat.Room{}, ErrRoomIDEmpty
	}
	if err := ValidateRoom(room.Name, room.Description); err != nil {
		return chat.Room{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.directory.AddRoom(room) {
		return chat.Room{}, ErrRoomExists
	}
	limit := s.cfg.HistoryLimit
	if override, ok := s.cfg.RoomHistoryLimits[room.ID]; ok && override > 0 {
		limit = override
	}
	s.logs[room.ID] = NewMessageLog(room.ID, limit)

	s.log.WithFields(logrus.Fields{"room": room.ID, "name": room.Name}).Info("room created")

	s.dispatcher.BroadcastAll(chat.Event{Type: chat.EventRoomsList, Payload: s.directory.ListRooms()})
	s.mirror.SaveRoom(room)

	room.Users = []string{}
	return room, nil
}

// Lookup returns the session of connID.
func (s *Service) Lookup(connID string) (chat.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.Lookup(connID)
}

// Sessions returns every retained session in join order.
func (s *Service) Sessions() []chat.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.ListAll()
}

// Rooms returns the catalog with current members.
func (s *Service) Rooms() []chat.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.directory.ListRooms()
}

// RoomMessages returns the retained log of roomID, oldest first.
func (s *Service) RoomMessages(roomID string) ([]chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log, ok := s.logs[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return log.Messages(), nil
}

// Typing returns the connections flagged as typing in roomID.
func (s *Service) Typing(roomID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typing.Typing(roomID)
}

// Evict applies the offline retention policy and returns how many sessions
// were dropped. Snapshots are broadcast only when something was removed.
func (s *Service) Evict() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := s.registry.Evict(s.now(), s.cfg.SessionTTL, s.cfg.MaxOfflineSessions)
	if len(removed) == 0 {
		return 0
	}
	s.log.WithField("count", len(removed)).Info("evicted offline sessions")
	s.dispatcher.BroadcastAll(chat.Event{Type: chat.EventUsersList, Payload: s.registry.ListAll()})
	return len(removed)
}

// RunJanitor calls Evict every interval until ctx is done.
func (s *Service) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Evict()
		}
	}
}

// Close flushes pending persistence writes.
func (s *Service) Close(ctx context.Context) error {
	return s.mirror.Close(ctx)
}

func (s *Service) unicastHistory(connID, roomID string) {
	s.dispatcher.Unicast(connID, chat.Event{
		Type:    chat.EventRoomMessages,
		Payload: chat.RoomMessages{RoomID: roomID, Messages: s.logs[roomID].Messages()},
		RoomID:  roomID,
		Seq:     s.directory.Seq(roomID),
	})
}

func (s *Service) broadcastSnapshots() {
	s.dispatcher.BroadcastAll(chat.Event{Type: chat.EventUsersList, Payload: s.registry.ListAll()})
	s.dispatcher.BroadcastAll(chat.Event{Type: chat.EventRoomsList, Payload: s.directory.ListRooms()})
}

func (s *Service) broadcastTyping(roomID, connID, username string, typing bool) {
	s.dispatcher.BroadcastAll(chat.Event{
		Type: chat.EventUserTyping,
		Payload: chat.UserTyping{
			UserID:   connID,
			Username: username,
			IsTyping: typing,
			RoomID:   roomID,
		},
		RoomID: roomID,
		Seq:    s.directory.NextSeq(roomID),
	})
}
