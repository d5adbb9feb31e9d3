package chat

import "time"

// DefaultMessageType is applied when a client omits the message type.
const DefaultMessageType = "text"

// Message is one entry of a room log. Only Reactions and ReadBy change after
// creation.
type Message struct {
	ID        string              `json:"id"`
	RoomID    string              `json:"roomId"`
	UserID    string              `json:"userId"`
	Username  string              `json:"username"`
	Avatar    string              `json:"avatar"`
	Content   string              `json:"content"`
	Type      string              `json:"type"`
	Timestamp time.Time           `json:"timestamp"`
	Reactions map[string][]string `json:"reactions"`
	ReadBy    []string            `json:"readBy"`
}

// Clone returns a deep copy safe to hand to encoders outside the owner's lock.
func (m Message) Clone() Message {
	out := m
	out.Reactions = make(map[string][]string, len(m.Reactions))
	for kind, voters := range m.Reactions {
		out.Reactions[kind] = append([]string(nil), voters...)
	}
	out.ReadBy = append([]string(nil), m.ReadBy...)
	return out
}

// PrivateMessage travels only between its sender and recipient and is never
// stored in a room log.
type PrivateMessage struct {
	ID           string    `json:"id"`
	SenderID     string    `json:"senderId"`
	RecipientID  string    `json:"recipientId"`
	SenderName   string    `json:"senderName"`
	SenderAvatar string    `json:"senderAvatar"`
	Content      string    `json:"content"`
	Timestamp    time.Time `json:"timestamp"`
	Read         bool      `json:"read"`
}
