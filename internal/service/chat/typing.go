package chat

import "sort"

// TypingTracker holds, per room, the connections currently composing. Flags
// never expire on their own; Purge is the only way a stuck flag goes away.
type TypingTracker struct {
	rooms map[string]map[string]struct{}
}

// NewTypingTracker returns an empty tracker.
func NewTypingTracker() *TypingTracker {
	return &TypingTracker{rooms: make(map[string]map[string]struct{})}
}

// Set flags or clears connID in roomID and reports whether the set changed.
func (t *TypingTracker) Set(roomID, connID string, typing bool) bool {
	set := t.rooms[roomID]
	if typing {
		if set == nil {
			set = make(map[string]struct{})
			t.rooms[roomID] = set
		}
		if _, ok := set[connID]; ok {
			return false
		}
		set[connID] = struct{}{}
		return true
	}

	if _, ok := set[connID]; !ok {
		return false
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(t.rooms, roomID)
	}
	return true
}

// IsTyping reports whether connID is flagged in roomID.
func (t *TypingTracker) IsTyping(roomID, connID string) bool {
	_, ok := t.rooms[roomID][connID]
	return ok
}

// Typing returns the flagged connections of roomID, sorted.
func (t *TypingTracker) Typing(roomID string) []string {
	set := t.rooms[roomID]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Purge clears connID from every room and returns the rooms it was flagged
// in, sorted.
func (t *TypingTracker) Purge(connID string) []string {
	var rooms []string
	for roomID, set := range t.rooms {
		if _, ok := set[connID]; !ok {
			continue
		}
		delete(set, connID)
		if len(set) == 0 {
			delete(t.rooms, roomID)
		}
		rooms = append(rooms, roomID)
	}
	sort.Strings(rooms)
	return rooms
}
