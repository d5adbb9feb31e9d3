package stream

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
)

// Feed fans room-scoped events out to read-only subscribers. It implements
// the chat Dispatcher; unicasts and events without a room are ignored.
type Feed struct {
	mu     sync.RWMutex
	subs   map[string]map[chan chat.Event]struct{}
	buffer int
	log    logrus.FieldLogger
}

// NewFeed creates a feed whose subscribers buffer up to buffer events.
func NewFeed(buffer int, logger logrus.FieldLogger) *Feed {
	if buffer < 1 {
		buffer = 64
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Feed{
		subs:   make(map[string]map[chan chat.Event]struct{}),
		buffer: buffer,
		log:    logger.WithField("component", "room-feed"),
	}
}

// Subscribe returns a channel of roomID's events and a cancel func. The
// channel is closed on cancel or when the subscriber falls behind.
func (f *Feed) Subscribe(roomID string) (<-chan chat.Event, func()) {
	ch := make(chan chat.Event, f.buffer)

	f.mu.Lock()
	if f.subs[roomID] == nil {
		f.subs[roomID] = make(map[chan chat.Event]struct{})
	}
	f.subs[roomID][ch] = struct{}{}
	f.mu.Unlock()

	return ch, func() { f.remove(roomID, ch) }
}

// Len returns the number of subscribers of roomID.
func (f *Feed) Len(roomID string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs[roomID])
}

// BroadcastAll delivers a room-scoped event to that room's subscribers.
func (f *Feed) BroadcastAll(event chat.Event) {
	if event.RoomID == "" {
		return
	}

	var slow []chan chat.Event
	f.mu.RLock()
	for ch := range f.subs[event.RoomID] {
		select {
		case ch <- event:
		default:
			slow = append(slow, ch)
		}
	}
	f.mu.RUnlock()

	for _, ch := range slow {
		f.log.WithFields(logrus.Fields{"room": event.RoomID, "event": event.Type}).Warn("feed subscriber fell behind; closing")
		f.remove(event.RoomID, ch)
	}
}

// Unicast is a no-op: private traffic never reaches the feed.
func (f *Feed) Unicast(string, chat.Event) {}

func (f *Feed) remove(roomID string, ch chan chat.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	set := f.subs[roomID]
	if _, ok := set[ch]; !ok {
		return
	}
	delete(set, ch)
	close(ch)
	if len(set) == 0 {
		delete(f.subs, roomID)
	}
}
