package chat

import (
	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
)

type roomState struct {
	info    chat.Room
	members []string
	seq     uint64
}

func (r *roomState) remove(connID string) bool {
	for i, id := range r.members {
		if id == connID {
			r.members = append(r.members[:i], r.members[i+1:]...)
			return true
		}
	}
	return false
}

// Directory owns the room catalog and membership sets. It keeps its own
// connection -> room index, so a connection can never be a member of two
// rooms. Not safe for concurrent use.
type Directory struct {
	rooms    []*roomState
	byID     map[string]*roomState
	location map[string]string
}

// NewDirectory builds a directory over the given catalog. Duplicate ids keep
// the first definition.
func NewDirectory(catalog []chat.Room) *Directory {
	d := &Directory{
		byID:     make(map[string]*roomState, len(catalog)),
		location: make(map[string]string),
	}
	for _, room := range catalog {
		d.AddRoom(room)
	}
	return d
}

// AddRoom appends a room to the catalog. It reports false when the id is
// empty or taken.
func (d *Directory) AddRoom(room chat.Room) bool {
	if _, dup := d.byID[room.ID]; dup || room.ID == "" {
		return false
	}
	state := &roomState{info: chat.Room{
		ID:          room.ID,
		Name:        room.Name,
		Description: room.Description,
	}}
	d.rooms = append(d.rooms, state)
	d.byID[room.ID] = state
	return true
}

// Has reports whether roomID is in the catalog.
func (d *Directory) Has(roomID string) bool {
	_, ok := d.byID[roomID]
	return ok
}

// ListRooms returns the catalog in definition order with member snapshots.
func (d *Directory) ListRooms() []chat.Room {
	out := make([]chat.Room, 0, len(d.rooms))
	for _, state := range d.rooms {
		room := state.info
		room.Users = append([]string{}, state.members...)
		out = append(out, room)
	}
	return out
}

// Members returns the member ids of roomID in join order.
func (d *Directory) Members(roomID string) []string {
	state, ok := d.byID[roomID]
	if !ok {
		return nil
	}
	return append([]string(nil), state.members...)
}

// RoomOf returns the room connID currently belongs to.
func (d *Directory) RoomOf(connID string) (string, bool) {
	roomID, ok := d.location[connID]
	return roomID, ok
}

// JoinRoom moves connID into roomID. previousRoomID is the client's view of
// where it was; it is honoured, but the directory's own index decides, so a
// stale or forged hint cannot leave a second membership behind. Joining the
// room the connection is already in is a no-op.
func (d *Directory) JoinRoom(connID, roomID, previousRoomID string) error {
	target, ok := d.byID[roomID]
	if !ok {
		return ErrRoomNotFound
	}

	if previousRoomID != "" && previousRoomID != roomID {
		if prev, ok := d.byID[previousRoomID]; ok {
			prev.remove(connID)
		}
	}

	if current, ok := d.location[connID]; ok {
		if current == roomID {
			return nil
		}
		d.byID[current].remove(connID)
	}

	target.members = append(target.members, connID)
	d.location[connID] = roomID
	return nil
}

// Leave removes connID from whatever room it is in and returns that room.
func (d *Directory) Leave(connID string) (string, bool) {
	roomID, ok := d.location[connID]
	if !ok {
		return "", false
	}
	d.byID[roomID].remove(connID)
	delete(d.location, connID)
	return roomID, true
}

// NextSeq advances and returns the event sequence of roomID.
func (d *Directory) NextSeq(roomID string) uint64 {
	state, ok := d.byID[roomID]
	if !ok {
		return 0
	}
	state.seq++
	return state.seq
}

// Seq returns the last sequence number issued for roomID.
func (d *Directory) Seq(roomID string) uint64 {
	if state, ok := d.byID[roomID]; ok {
		return state.seq
	}
	return 0
}
