package chat

import (
	"strconv"
	"time"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
)

// DefaultHistoryLimit bounds a room log when no limit is configured.
const DefaultHistoryLimit = 100

// MessageLog is the bounded history of one room. Ids come from a per-log
// counter, so they are unique and strictly increasing, and because eviction
// only ever removes the head the retained ids are contiguous.
type MessageLog struct {
	roomID  string
	limit   int
	entries []chat.Message
	lastID  uint64
}

// NewMessageLog returns an empty log holding at most limit messages.
func NewMessageLog(roomID string, limit int) *MessageLog {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &MessageLog{roomID: roomID, limit: limit}
}

// Limit returns the capacity of the log.
func (l *MessageLog) Limit() int {
	return l.limit
}

// Len returns the number of retained messages.
func (l *MessageLog) Len() int {
	return len(l.entries)
}

// Append stores a new message authored by author and evicts from the head
// while the log is over capacity. It returns the stored message and the
// evicted ones, oldest first.
func (l *MessageLog) Append(author chat.Session, content, msgType string, now time.Time) (chat.Message, []chat.Message) {
	if msgType == "" {
		msgType = chat.DefaultMessageType
	}

	l.lastID++
	msg := chat.Message{
		ID:        strconv.FormatUint(l.lastID, 10),
		RoomID:    l.roomID,
		UserID:    author.ID,
		Username:  author.Username,
		Avatar:    author.Avatar,
		Content:   content,
		Type:      msgType,
		Timestamp: now,
		Reactions: map[string][]string{},
		ReadBy:    []string{author.ID},
	}
	l.entries = append(l.entries, msg)

	var evicted []chat.Message
	for len(l.entries) > l.limit {
		evicted = append(evicted, l.entries[0])
		l.entries[0] = chat.Message{}
		l.entries = l.entries[1:]
	}
	return msg.Clone(), evicted
}

// AddReaction records connID as a voter for reaction on messageID. The bool
// is false when the vote was already present. There is no way to withdraw a
// vote.
func (l *MessageLog) AddReaction(messageID, connID, reaction string) (chat.Message, bool, error) {
	idx, ok := l.index(messageID)
	if !ok {
		return chat.Message{}, false, ErrMessageNotFound
	}

	msg := &l.entries[idx]
	for _, voter := range msg.Reactions[reaction] {
		if voter == connID {
			return msg.Clone(), false, nil
		}
	}
	msg.Reactions[reaction] = append(msg.Reactions[reaction], connID)
	return msg.Clone(), true, nil
}

// Find returns a copy of messageID if it is still retained.
func (l *MessageLog) Find(messageID string) (chat.Message, bool) {
	idx, ok := l.index(messageID)
	if !ok {
		return chat.Message{}, false
	}
	return l.entries[idx].Clone(), true
}

// Messages returns a copy of the log, oldest first.
func (l *MessageLog) Messages() []chat.Message {
	out := make([]chat.Message, len(l.entries))
	for i, msg := range l.entries {
		out[i] = msg.Clone()
	}
	return out
}

func (l *MessageLog) index(messageID string) (int, bool) {
	if len(l.entries) == 0 {
		return 0, false
	}
	id, err := strconv.ParseUint(messageID, 10, 64)
	if err != nil || strconv.FormatUint(id, 10) != messageID {
		return 0, false
	}
	first := l.lastID - uint64(len(l.entries)) + 1
	if id < first || id > l.lastID {
		return 0, false
	}
	return int(id - first), true
}
