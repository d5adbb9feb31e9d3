package chat

import "time"

// Session is the server-side presence record of one connection.
//
// ID is the transport connection handle and doubles as the user id clients
// address private messages to. SessionID is a logical identifier issued on
// every join and never reused, so resume semantics can key on it later.
type Session struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"sessionId"`
	Username    string    `json:"username"`
	Avatar      string    `json:"avatar"`
	Online      bool      `json:"online"`
	LastSeen    time.Time `json:"lastSeen"`
	CurrentRoom string    `json:"currentRoom"`
}
