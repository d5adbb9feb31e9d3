package store

import "time"

// User is one join of a client. A connection that joins twice produces two
// rows, matching the best-effort mirroring of the live registry.
type User struct {
	ID           string    `gorm:"primarykey;size:36"`
	ConnectionID string    `gorm:"size:64;index"`
	Username     string    `gorm:"size:50;not null"`
	Avatar       string    `gorm:"size:2048"`
	CreatedAt    time.Time
}

// TableName returns the table name for User.
func (User) TableName() string {
	return "users"
}

// Room is a persisted room record.
type Room struct {
	ID          string `gorm:"primarykey;size:64"`
	Name        string `gorm:"size:100;not null"`
	Description string `gorm:"size:500"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName returns the table name for Room.
func (Room) TableName() string {
	return "rooms"
}

// Message is a persisted room message. LogID is the id the message had in
// the live room log; it restarts with the process, so the primary key is a
// uuid.
type Message struct {
	ID           string    `gorm:"primarykey;size:36"`
	LogID        string    `gorm:"size:20"`
	RoomID       string    `gorm:"size:64;index:idx_messages_room_sent"`
	SenderID     string    `gorm:"size:64;not null"`
	SenderName   string    `gorm:"size:50;not null"`
	SenderAvatar string    `gorm:"size:2048"`
	Content      string    `gorm:"size:5000;not null"`
	Type         string    `gorm:"size:20;not null;default:text"`
	IsPrivate    bool      `gorm:"not null;default:false"`
	SentAt       time.Time `gorm:"index:idx_messages_room_sent"`
	CreatedAt    time.Time
}

// TableName returns the table name for Message.
func (Message) TableName() string {
	return "messages"
}
