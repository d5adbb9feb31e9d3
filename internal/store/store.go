// Package store persists users, rooms and room messages with GORM on SQLite.
// The live coordinator mirrors into it best-effort; the HTTP layer reads
// history back out of it.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// DefaultHistoryLimit caps ListMessages when the caller passes no limit.
const DefaultHistoryLimit = 100

// Store is the durable store.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the SQLite database at dsn and migrates
// the schema.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer; a single connection also keeps ":memory:"
	// databases from splitting across the pool.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	s := New(db)
	if err := s.Migrate(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing connection. The caller is responsible for Migrate.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the tables.
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&User{}, &Room{}, &Message{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Ping checks the underlying connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// CreateUser records a joined session.
func (s *Store) CreateUser(ctx context.Context, session chat.Session) error {
	rec := User{
		ID:           uuid.NewString(),
		ConnectionID: session.ID,
		Username:     session.Username,
		Avatar:       session.Avatar,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// CreateMessage records a room message.
func (s *Store) CreateMessage(ctx context.Context, message chat.Message) error {
	sentAt := message.Timestamp
	if sentAt.IsZero() {
		sentAt = time.Now()
	}
	msgType := message.Type
	if msgType == "" {
		msgType = chat.DefaultMessageType
	}

	rec := Message{
		ID:           uuid.NewString(),
		LogID:        message.ID,
		RoomID:       message.RoomID,
		SenderID:     message.UserID,
		SenderName:   message.Username,
		SenderAvatar: message.Avatar,
		Content:      message.Content,
		Type:         msgType,
		SentAt:       sentAt,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// CreateRoom records a room. Creating an id that already exists is a no-op,
// so seeding the static catalog on every start is safe.
func (s *Store) CreateRoom(ctx context.Context, room chat.Room) error {
	rec := Room{
		ID:          room.ID,
		Name:        room.Name,
		Description: room.Description,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}
	return nil
}

// GetRoom returns one room.
func (s *Store) GetRoom(ctx context.Context, id string) (chat.Room, error) {
	var rec Room
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return chat.Room{}, ErrNotFound
		}
		return chat.Room{}, fmt.Errorf("failed to find room: %w", err)
	}
	return toRoom(rec), nil
}

// ListRooms returns every room, oldest first.
func (s *Store) ListRooms(ctx context.Context) ([]chat.Room, error) {
	var recs []Room
	if err := s.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}

	rooms := make([]chat.Room, 0, len(recs))
	for _, rec := range recs {
		rooms = append(rooms, toRoom(rec))
	}
	return rooms, nil
}

// ListMessages returns the newest limit messages of roomID in chronological
// order. limit <= 0 means DefaultHistoryLimit.
func (s *Store) ListMessages(ctx context.Context, roomID string, limit int) ([]chat.Message, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	var recs []Message
	err := s.db.WithContext(ctx).
		Where("room_id = ? AND is_private = ?", roomID, false).
		Order("sent_at DESC, created_at DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	messages := make([]chat.Message, len(recs))
	for i, rec := range recs {
		messages[len(recs)-1-i] = toMessage(rec)
	}
	return messages, nil
}

func toRoom(rec Room) chat.Room {
	return chat.Room{
		ID:          rec.ID,
		Name:        rec.Name,
		Description: rec.Description,
		Users:       []string{},
	}
}

// toMessage reports the live log id so clients can react to messages that
// are still retained; rows written without one keep their uuid.
func toMessage(rec Message) chat.Message {
	id := rec.LogID
	if id == "" {
		id = rec.ID
	}
	return chat.Message{
		ID:        id,
		RoomID:    rec.RoomID,
		UserID:    rec.SenderID,
		Username:  rec.SenderName,
		Avatar:    rec.SenderAvatar,
		Content:   rec.Content,
		Type:      rec.Type,
		Timestamp: rec.SentAt,
		Reactions: map[string][]string{},
		ReadBy:    []string{},
	}
}
