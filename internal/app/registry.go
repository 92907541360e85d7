package app

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Switchboard/internal/domain"
)

// roomRecord pairs room meta with its member set. Members keep insertion
// order so a new joiner's "who's already here" snapshot is stable.
type roomRecord struct {
	room    *domain.Room
	members []domain.ConnectionID
}

// Registry is the single owner of the room and participant maps. Every
// mutation touches both maps under one lock, so a participant exists in the
// reverse map iff its connection id sits in exactly one room's member set.
type Registry struct {
	mu           sync.RWMutex
	rooms        map[domain.RoomID]*roomRecord
	participants map[domain.ConnectionID]*domain.Participant
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:        make(map[domain.RoomID]*roomRecord),
		participants: make(map[domain.ConnectionID]*domain.Participant),
	}
}

// RoomView is a post-mutation snapshot handed back to the caller so it can
// notify members and arbitrate mode without holding the registry lock.
type RoomView struct {
	Room    domain.Room
	Members int
}

// Join creates the room on first use and inserts the participant into both
// maps. Returns the post-join view and whether the room was created.
func (r *Registry) Join(roomID domain.RoomID, p *domain.Participant) (RoomView, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.rooms[roomID]
	isNew := !ok
	if isNew {
		rec = &roomRecord{room: &domain.Room{
			ID:        roomID,
			Mode:      domain.ModeP2P,
			CreatedAt: time.Now(),
		}}
		r.rooms[roomID] = rec
	}

	p.RoomID = roomID
	rec.members = append(rec.members, p.ConnectionID)
	r.participants[p.ConnectionID] = p

	log.Info().Str("module", "app.registry").
		Str("conn", string(p.ConnectionID)).
		Str("room", string(roomID)).
		Bool("new_room", isNew).
		Int("members", len(rec.members)).
		Msg("participant joined")
	return RoomView{Room: *rec.room, Members: len(rec.members)}, isNew
}

// Leave removes the participant from both maps and deletes the room
// synchronously when its member set empties. Unknown connection ids are a
// "not found" no-op, which makes leave/disconnect races idempotent. The
// returned view is nil when the room no longer exists.
func (r *Registry) Leave(connID domain.ConnectionID) (domain.Participant, *RoomView, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[connID]
	if !ok {
		return domain.Participant{}, nil, false
	}
	delete(r.participants, connID)

	rec, ok := r.rooms[p.RoomID]
	if !ok {
		// Room was already reaped; the participant record alone is stale.
		return *p, nil, true
	}
	for i, id := range rec.members {
		if id == connID {
			rec.members = append(rec.members[:i], rec.members[i+1:]...)
			break
		}
	}
	if len(rec.members) == 0 {
		delete(r.rooms, p.RoomID)
		log.Info().Str("module", "app.registry").Str("room", string(p.RoomID)).Msg("room destroyed")
		return *p, nil, true
	}
	log.Info().Str("module", "app.registry").
		Str("conn", string(connID)).
		Str("room", string(p.RoomID)).
		Int("members", len(rec.members)).
		Msg("participant left")
	return *p, &RoomView{Room: *rec.room, Members: len(rec.members)}, true
}

// UpdateMediaState is last-write-wins.
func (r *Registry) UpdateMediaState(connID domain.ConnectionID, st domain.MediaState) (domain.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[connID]
	if !ok {
		return domain.Participant{}, false
	}
	p.MediaState = st
	return *p, true
}

func (r *Registry) SetMode(roomID domain.RoomID, mode domain.Mode) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	rec.room.Mode = mode
	log.Info().Str("module", "app.registry").Str("room", string(roomID)).Str("mode", string(mode)).Msg("mode set")
	return true
}

func (r *Registry) Participant(connID domain.ConnectionID) (domain.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.participants[connID]
	if !ok {
		return domain.Participant{}, false
	}
	return *p, true
}

func (r *Registry) Room(roomID domain.RoomID) (RoomView, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.rooms[roomID]
	if !ok {
		return RoomView{}, false
	}
	return RoomView{Room: *rec.room, Members: len(rec.members)}, true
}

// OtherMembers returns the room's participants except one connection, in
// insertion order.
func (r *Registry) OtherMembers(roomID domain.RoomID, except domain.ConnectionID) []domain.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	out := make([]domain.Participant, 0, len(rec.members))
	for _, id := range rec.members {
		if id == except {
			continue
		}
		if p, ok := r.participants[id]; ok {
			out = append(out, *p)
		}
	}
	return out
}

func (r *Registry) Counts() (rooms, participants int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms), len(r.participants)
}

// RoomStatus is one room's slice of the status dump.
type RoomStatus struct {
	Room         domain.Room          `json:"room"`
	Participants []domain.Participant `json:"participants"`
}

// Snapshot returns a read-only copy of all rooms and their participants.
func (r *Registry) Snapshot() []RoomStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RoomStatus, 0, len(r.rooms))
	for _, rec := range r.rooms {
		rs := RoomStatus{Room: *rec.room, Participants: make([]domain.Participant, 0, len(rec.members))}
		for _, id := range rec.members {
			if p, ok := r.participants[id]; ok {
				rs.Participants = append(rs.Participants, *p)
			}
		}
		out = append(out, rs)
	}
	return out
}

// Reap deletes empty rooms older than roomTTL, then participants whose room
// no longer exists. It never touches a non-empty room or a participant whose
// room is still present; normal teardown deletes rooms synchronously, so
// anything reaped here escaped the regular leave path.
func (r *Registry) Reap(roomTTL time.Duration) (roomsDeleted, participantsDeleted int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-roomTTL)
	for id, rec := range r.rooms {
		if len(rec.members) == 0 && rec.room.CreatedAt.Before(cutoff) {
			delete(r.rooms, id)
			roomsDeleted++
		}
	}
	for id, p := range r.participants {
		if _, ok := r.rooms[p.RoomID]; !ok {
			delete(r.participants, id)
			participantsDeleted++
		}
	}
	return roomsDeleted, participantsDeleted
}
