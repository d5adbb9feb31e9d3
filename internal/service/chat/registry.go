package chat

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
)

// Registry maps connection ids to sessions. It is not safe for concurrent
// use; Service serializes every call.
type Registry struct {
	sessions map[string]*chat.Session
	order    []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*chat.Session)}
}

// Join creates or overwrites the session for connID. A reconnect with an
// existing id keeps its position in ListAll but gets a fresh SessionID.
func (r *Registry) Join(connID, username, avatar, room string, now time.Time) chat.Session {
	session, ok := r.sessions[connID]
	if !ok {
		session = &chat.Session{ID: connID}
		r.sessions[connID] = session
		r.order = append(r.order, connID)
	}

	session.SessionID = uuid.NewString()
	session.Username = username
	session.Avatar = avatar
	session.Online = true
	session.LastSeen = now
	session.CurrentRoom = room
	return *session
}

// Disconnect marks the session offline and stamps LastSeen. The record is
// kept until Evict removes it. The bool reports whether the session was
// online before the call.
func (r *Registry) Disconnect(connID string, now time.Time) (chat.Session, bool) {
	session, ok := r.sessions[connID]
	if !ok || !session.Online {
		return chat.Session{}, false
	}
	session.Online = false
	session.LastSeen = now
	return *session, true
}

// Lookup returns a copy of the session for connID.
func (r *Registry) Lookup(connID string) (chat.Session, bool) {
	session, ok := r.sessions[connID]
	if !ok {
		return chat.Session{}, false
	}
	return *session, true
}

// ListAll returns every session in insertion order.
func (r *Registry) ListAll() []chat.Session {
	out := make([]chat.Session, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.sessions[id])
	}
	return out
}

// Len reports the number of retained sessions, online or not.
func (r *Registry) Len() int {
	return len(r.order)
}

func (r *Registry) setRoom(connID, roomID string) {
	if session, ok := r.sessions[connID]; ok {
		session.CurrentRoom = roomID
	}
}

// Evict drops offline sessions last seen more than ttl before now, then, if
// more than maxOffline offline sessions remain, the least recently seen of
// them. A zero ttl or maxOffline disables that rule. Online sessions are never
// evicted. It returns the removed connection ids.
func (r *Registry) Evict(now time.Time, ttl time.Duration, maxOffline int) []string {
	var offline []*chat.Session
	evicted := make(map[string]struct{})

	for _, id := range r.order {
		session := r.sessions[id]
		if session.Online {
			continue
		}
		if ttl > 0 && now.Sub(session.LastSeen) > ttl {
			evicted[id] = struct{}{}
			continue
		}
		offline = append(offline, session)
	}

	if maxOffline > 0 && len(offline) > maxOffline {
		sort.SliceStable(offline, func(i, j int) bool {
			return offline[i].LastSeen.Before(offline[j].LastSeen)
		})
		for _, session := range offline[:len(offline)-maxOffline] {
			evicted[session.ID] = struct{}{}
		}
	}

	if len(evicted) == 0 {
		return nil
	}

	removed := make([]string, 0, len(evicted))
	kept := r.order[:0]
	for _, id := range r.order {
		if _, drop := evicted[id]; drop {
			delete(r.sessions, id)
			removed = append(removed, id)
			continue
		}
		kept = append(kept, id)
	}
	for i := len(kept); i < len(r.order); i++ {
		r.order[i] = ""
	}
	r.order = kept
	return removed
}
