package signal

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Switchboard/internal/core"
	"github.com/dkeye/Switchboard/internal/domain"
)

// Hub is the connection multiplexer behind core.Transport: a connection map
// plus per-room groups. Sends to unknown connections are silently absorbed.
type Hub struct {
	mu     sync.RWMutex
	conns  map[domain.ConnectionID]core.SignalConnection
	groups map[domain.RoomID]map[domain.ConnectionID]struct{}
}

func NewHub() *Hub {
	return &Hub{
		conns:  make(map[domain.ConnectionID]core.SignalConnection),
		groups: make(map[domain.RoomID]map[domain.ConnectionID]struct{}),
	}
}

func (h *Hub) Register(id domain.ConnectionID, conn core.SignalConnection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[id] = conn
}

func (h *Hub) Unregister(id domain.ConnectionID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, id)
	for room, members := range h.groups {
		delete(members, id)
		if len(members) == 0 {
			delete(h.groups, room)
		}
	}
}

func (h *Hub) JoinGroup(room domain.RoomID, id domain.ConnectionID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.groups[room]
	if !ok {
		members = make(map[domain.ConnectionID]struct{})
		h.groups[room] = members
	}
	members[id] = struct{}{}
}

func (h *Hub) LeaveGroup(room domain.RoomID, id domain.ConnectionID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.groups[room]; ok {
		delete(members, id)
		if len(members) == 0 {
			delete(h.groups, room)
		}
	}
}

func (h *Hub) Send(id domain.ConnectionID, v any) {
	f, ok := marshal(v)
	if !ok {
		return
	}
	h.mu.RLock()
	conn, found := h.conns[id]
	h.mu.RUnlock()
	if !found {
		// Target already gone; a relay to it is dropped, not an error.
		return
	}
	h.deliver(id, conn, f)
}

func (h *Hub) Broadcast(room domain.RoomID, v any) {
	h.fanOut(room, "", v)
}

func (h *Hub) BroadcastExcept(room domain.RoomID, except domain.ConnectionID, v any) {
	h.fanOut(room, except, v)
}

func (h *Hub) fanOut(room domain.RoomID, except domain.ConnectionID, v any) {
	f, ok := marshal(v)
	if !ok {
		return
	}
	h.mu.RLock()
	targets := make(map[domain.ConnectionID]core.SignalConnection)
	for id := range h.groups[room] {
		if id == except {
			continue
		}
		if conn, found := h.conns[id]; found {
			targets[id] = conn
		}
	}
	h.mu.RUnlock()

	for id, conn := range targets {
		h.deliver(id, conn, f)
	}
}

func (h *Hub) deliver(id domain.ConnectionID, conn core.SignalConnection, f core.Frame) {
	if err := conn.TrySend(f); err != nil {
		log.Warn().Err(err).Str("module", "signal.hub").Str("conn", string(id)).Msg("frame dropped")
	}
}

func marshal(v any) (core.Frame, bool) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal.hub").Msg("marshal outbound event")
		return nil, false
	}
	return b, true
}
