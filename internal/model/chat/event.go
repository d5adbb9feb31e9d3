package chat

import (
	"encoding/json"
	"time"
)

// EventType names a frame on the WebSocket channel.
type EventType string

const (
	// Client -> server
	EventJoin               EventType = "join"
	EventJoinRoom           EventType = "join_room"
	EventSendMessage        EventType = "send_message"
	EventTyping             EventType = "typing"
	EventAddReaction        EventType = "add_reaction"
	EventSendPrivateMessage EventType = "send_private_message"

	// Server -> client
	EventUsersList       EventType = "users_list"
	EventRoomsList       EventType = "rooms_list"
	EventRoomMessages    EventType = "room_messages"
	EventNewMessage      EventType = "new_message"
	EventUserTyping      EventType = "user_typing"
	EventReactionUpdated EventType = "reaction_updated"
	EventPrivateMessage  EventType = "private_message"
	EventUserJoined      EventType = "user_joined"
	EventUserLeft        EventType = "user_left"
)

// Envelope is the JSON frame exchanged in both directions. RoomID and Seq are
// set on room-scoped server events so clients can detect reordering.
type Envelope struct {
	Type   EventType       `json:"type"`
	Data   json.RawMessage `json:"data,omitempty"`
	RoomID string          `json:"roomId,omitempty"`
	Seq    uint64          `json:"seq,omitempty"`
}

// Event is an outbound event before encoding.
type Event struct {
	Type    EventType
	Payload any
	RoomID  string
	Seq     uint64
}

// Encode renders the event as an Envelope frame.
func (e Event) Encode() ([]byte, error) {
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		Type:   e.Type,
		Data:   data,
		RoomID: e.RoomID,
		Seq:    e.Seq,
	})
}

// JoinPayload is sent by a client to register itself.
type JoinPayload struct {
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// JoinRoomPayload moves the client between rooms.
type JoinRoomPayload struct {
	RoomID       string `json:"roomId"`
	PreviousRoom string `json:"previousRoom"`
}

// SendMessagePayload posts a message into a room.
type SendMessagePayload struct {
	RoomID  string `json:"roomId"`
	Content string `json:"content"`
	Type    string `json:"type"`
}

// TypingPayload flags the start or end of composing.
type TypingPayload struct {
	RoomID   string `json:"roomId"`
	IsTyping bool   `json:"isTyping"`
}

// ReactionPayload votes a reaction onto a message.
type ReactionPayload struct {
	MessageID string `json:"messageId"`
	RoomID    string `json:"roomId"`
	Reaction  string `json:"reaction"`
}

// PrivateMessagePayload addresses another connection directly.
type PrivateMessagePayload struct {
	RecipientID string `json:"recipientId"`
	Content     string `json:"content"`
}

// RoomMessages carries a room's log to a joining connection.
type RoomMessages struct {
	RoomID   string    `json:"roomId"`
	Messages []Message `json:"messages"`
}

// NewMessage announces an appended message.
type NewMessage struct {
	RoomID  string  `json:"roomId"`
	Message Message `json:"message"`
}

// UserTyping is the raw typing transition.
type UserTyping struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
	RoomID   string `json:"roomId"`
}

// ReactionUpdated carries the full reaction map of one message.
type ReactionUpdated struct {
	MessageID string              `json:"messageId"`
	RoomID    string              `json:"roomId"`
	Reactions map[string][]string `json:"reactions"`
}

// Presence announces a user arriving or leaving.
type Presence struct {
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}
