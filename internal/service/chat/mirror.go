package chat

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
)

// Store is the durable collaborator the coordinator mirrors into.
type Store interface {
	CreateUser(ctx context.Context, session chat.Session) error
	CreateMessage(ctx context.Context, message chat.Message) error
	CreateRoom(ctx context.Context, room chat.Room) error
}

type mirrorJob struct {
	name string
	run  func(ctx context.Context) error
}

// Mirror writes to a Store in the background. Writes are fire-and-forget:
// Enqueue never blocks, a full queue drops the write, and failures are only
// logged. A nil *Mirror discards everything.
type Mirror struct {
	store   Store
	jobs    chan mirrorJob
	timeout time.Duration
	log     logrus.FieldLogger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewMirror starts the background writer. queueSize bounds the backlog.
func NewMirror(store Store, queueSize int, logger logrus.FieldLogger) *Mirror {
	if queueSize <= 0 {
		queueSize = 256
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	m := &Mirror{
		store:   store,
		jobs:    make(chan mirrorJob, queueSize),
		timeout: 5 * time.Second,
		log:     logger.WithField("component", "mirror"),
		done:    make(chan struct{}),
	}
	go m.run()
	return m
}

func (m *Mirror) run() {
	defer close(m.done)
	for job := range m.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		if err := job.run(ctx); err != nil {
			m.log.WithError(err).WithField("op", job.name).Warn("persistence write failed")
		}
		cancel()
	}
}

// Enqueue schedules fn. It reports false if the write was dropped.
func (m *Mirror) Enqueue(name string, fn func(ctx context.Context) error) bool {
	if m == nil {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return false
	}

	select {
	case m.jobs <- mirrorJob{name: name, run: fn}:
		return true
	default:
		m.log.WithField("op", name).Warn("persistence queue full; dropping write")
		return false
	}
}

// SaveUser mirrors a joined session.
func (m *Mirror) SaveUser(session chat.Session) bool {
	if m == nil {
		return false
	}
	return m.Enqueue("create_user", func(ctx context.Context) error {
		return m.store.CreateUser(ctx, session)
	})
}

// SaveMessage mirrors an appended room message.
func (m *Mirror) SaveMessage(message chat.Message) bool {
	if m == nil {
		return false
	}
	return m.Enqueue("create_message", func(ctx context.Context) error {
		return m.store.CreateMessage(ctx, message)
	})
}

// SaveRoom mirrors a catalog room.
func (m *Mirror) SaveRoom(room chat.Room) bool {
	if m == nil {
		return false
	}
	return m.Enqueue("create_room", func(ctx context.Context) error {
		return m.store.CreateRoom(ctx, room)
	})
}

// Close stops accepting writes and waits for the backlog to drain or ctx to
// expire.
func (m *Mirror) Close(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	if !m.closed {
		m.closed = true
		close(m.jobs)
	}
	m.mu.Unlock()

	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
