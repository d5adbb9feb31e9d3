package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
)

func newTestHub() *Hub {
	logger, _ := test.NewNullLogger()
	return NewHub(logger)
}

func detachedClient(id string, buffer int) *Client {
	logger, _ := test.NewNullLogger()
	return newClient(id, nil, buffer, nil, logger)
}

func TestHubBroadcastEncodesEnvelope(t *testing.T) {
	hub := newTestHub()
	a := detachedClient("a", 4)
	b := detachedClient("b", 4)
	hub.Register(a)
	hub.Register(b)

	hub.BroadcastAll(chat.Event{
		Type:    chat.EventNewMessage,
		Payload: chat.NewMessage{RoomID: "general", Message: chat.Message{ID: "1", Content: "hi"}},
		RoomID:  "general",
		Seq:     3,
	})

	for _, c := range []*Client{a, b} {
		require.Len(t, c.send, 1)
		var env chat.Envelope
		require.NoError(t, json.Unmarshal(<-c.send, &env))
		assert.Equal(t, chat.EventNewMessage, env.Type)
		assert.Equal(t, "general", env.RoomID)
		assert.Equal(t, uint64(3), env.Seq)

		var payload chat.NewMessage
		require.NoError(t, json.Unmarshal(env.Data, &payload))
		assert.Equal(t, "hi", payload.Message.Content)
	}
}

func TestHubUnicastOnlyReachesTarget(t *testing.T) {
	hub := newTestHub()
	a := detachedClient("a", 4)
	b := detachedClient("b", 4)
	hub.Register(a)
	hub.Register(b)

	hub.Unicast("b", chat.Event{Type: chat.EventPrivateMessage, Payload: chat.PrivateMessage{Content: "psst"}})
	hub.Unicast("missing", chat.Event{Type: chat.EventPrivateMessage, Payload: chat.PrivateMessage{}})

	assert.Len(t, a.send, 0)
	assert.Len(t, b.send, 1)
}

func TestHubDropsClientWithFullBuffer(t *testing.T) {
	hub := newTestHub()
	slow := detachedClient("slow", 1)
	fast := detachedClient("fast", 8)
	hub.Register(slow)
	hub.Register(fast)

	event := chat.Event{Type: chat.EventUsersList, Payload: []chat.Session{}}
	hub.BroadcastAll(event)
	hub.BroadcastAll(event)

	assert.Equal(t, 1, hub.Len())
	assert.Len(t, fast.send, 2)
	assert.False(t, slow.trySend([]byte("x")), "dropped client refuses further sends")

	<-slow.send
	_, open := <-slow.send
	assert.False(t, open, "send channel is closed")
}

func TestHubSkipsUnencodableEvent(t *testing.T) {
	hub := newTestHub()
	a := detachedClient("a", 4)
	hub.Register(a)

	hub.BroadcastAll(chat.Event{Type: chat.EventUsersList, Payload: make(chan int)})

	assert.Len(t, a.send, 0)
	assert.Equal(t, 1, hub.Len())
}

func TestHubUnregisterIsIdempotent(t *testing.T) {
	hub := newTestHub()
	a := detachedClient("a", 1)
	hub.Register(a)

	hub.Unregister("a")
	hub.Unregister("a")

	assert.Equal(t, 0, hub.Len())
}

func TestHubShutdownTimesOut(t *testing.T) {
	hub := newTestHub()
	hub.Register(detachedClient("a", 1))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, hub.Shutdown(ctx), context.DeadlineExceeded)
	assert.Equal(t, 0, hub.Len())
}

func TestOriginPolicy(t *testing.T) {
	logger, _ := test.NewNullLogger()

	open := newOriginPolicy(nil, logger)
	req := httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set("Origin", "http://anything.example")
	assert.True(t, open.check(req))

	strict := newOriginPolicy([]string{"HTTP://Chat.Example.com", "not a url"}, logger)
	assert.False(t, strict.check(req))

	allowed := httptest.NewRequest("GET", "/ws", nil)
	allowed.Header.Set("Origin", "http://chat.example.com")
	assert.True(t, strict.check(allowed))

	noOrigin := httptest.NewRequest("GET", "/ws", nil)
	assert.True(t, strict.check(noOrigin))

	wildcard := newOriginPolicy([]string{"*"}, logger)
	assert.True(t, wildcard.check(req))
}
