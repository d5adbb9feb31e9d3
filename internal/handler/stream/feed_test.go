package stream

import (
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
)

func TestFeedDeliversOnlyRoomScopedEvents(t *testing.T) {
	logger, _ := test.NewNullLogger()
	feed := NewFeed(4, logger)
	events, cancel := feed.Subscribe("general")
	defer cancel()

	feed.BroadcastAll(chat.Event{Type: chat.EventUsersList})
	feed.BroadcastAll(chat.Event{Type: chat.EventNewMessage, RoomID: "random"})
	feed.Unicast("a", chat.Event{Type: chat.EventPrivateMessage, RoomID: "general"})
	feed.BroadcastAll(chat.Event{Type: chat.EventNewMessage, RoomID: "general", Seq: 1})

	assert.Len(t, events, 1)
	ev := <-events
	assert.Equal(t, uint64(1), ev.Seq)
}

func TestFeedClosesSlowSubscriber(t *testing.T) {
	logger, hook := test.NewNullLogger()
	feed := NewFeed(1, logger)
	events, cancel := feed.Subscribe("general")

	feed.BroadcastAll(chat.Event{Type: chat.EventNewMessage, RoomID: "general", Seq: 1})
	feed.BroadcastAll(chat.Event{Type: chat.EventNewMessage, RoomID: "general", Seq: 2})

	assert.Equal(t, 0, feed.Len("general"))
	<-events
	_, open := <-events
	assert.False(t, open)
	assert.NotEmpty(t, hook.AllEntries())

	cancel()
}
