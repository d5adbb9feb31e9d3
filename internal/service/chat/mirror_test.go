package chat_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/zhouzirui/z-chat/backend/internal/model/chat"
	chat "github.com/zhouzirui/z-chat/backend/internal/service/chat"
)

type memoryStore struct {
	mu       sync.Mutex
	users    []model.Session
	messages []model.Message
	rooms    []model.Room
	fail     error
	block    chan struct{}
}

func (s *memoryStore) CreateUser(_ context.Context, session model.Session) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.users = append(s.users, session)
	return nil
}

func (s *memoryStore) CreateMessage(_ context.Context, message model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.messages = append(s.messages, message)
	return nil
}

func (s *memoryStore) CreateRoom(_ context.Context, room model.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.rooms = append(s.rooms, room)
	return nil
}

func (s *memoryStore) counts() (int, int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users), len(s.messages), len(s.rooms)
}

func TestServiceMirrorsIntoStore(t *testing.T) {
	store := &memoryStore{}
	logger, _ := test.NewNullLogger()
	mirror := chat.NewMirror(store, 16, logger)
	svc, rec := newService(t, chat.Config{}, chat.WithMirror(mirror))

	join(t, svc, rec, "a", "alice")
	_, err := svc.SendMessage("a", model.SendMessagePayload{RoomID: "general", Content: "hi"})
	require.NoError(t, err)

	require.NoError(t, svc.Close(context.Background()))

	users, messages, rooms := store.counts()
	assert.Equal(t, 1, users)
	assert.Equal(t, 1, messages)
	assert.Equal(t, 3, rooms)
	assert.Equal(t, "hi", store.messages[0].Content)
}

func TestMirrorFailureIsLoggedOnly(t *testing.T) {
	store := &memoryStore{fail: errors.New("disk full")}
	logger, hook := test.NewNullLogger()
	mirror := chat.NewMirror(store, 16, logger)
	svc, rec := newService(t, chat.Config{}, chat.WithMirror(mirror))

	join(t, svc, rec, "a", "alice")
	msg, err := svc.SendMessage("a", model.SendMessagePayload{RoomID: "general", Content: "hi"})
	require.NoError(t, err)
	require.NoError(t, svc.Close(context.Background()))

	messages, err := svc.RoomMessages("general")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, msg.ID, messages[0].ID)
	assert.Len(t, rec.events("a", model.EventNewMessage), 1)

	var warnings int
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			warnings++
		}
	}
	assert.Equal(t, 5, warnings, "3 rooms, 1 user, 1 message")
}

func TestMirrorDropsWhenQueueIsFull(t *testing.T) {
	store := &memoryStore{block: make(chan struct{})}
	logger, _ := test.NewNullLogger()
	mirror := chat.NewMirror(store, 1, logger)

	session := model.Session{ID: "a"}
	accepted := 0
	for i := 0; i < 5; i++ {
		if mirror.SaveUser(session) {
			accepted++
		}
	}
	close(store.block)

	assert.Less(t, accepted, 5)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, mirror.Close(ctx))
	assert.False(t, mirror.SaveUser(session), "closed mirror rejects writes")
}

func TestNilMirrorIsInert(t *testing.T) {
	var mirror *chat.Mirror
	assert.False(t, mirror.SaveMessage(model.Message{}))
	assert.NoError(t, mirror.Close(context.Background()))
}
