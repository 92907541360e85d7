package orch

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Switchboard/internal/core"
	"github.com/dkeye/Switchboard/internal/domain"
)

// Join registers the participant, arbitrates the room's mode with fresh
// health signals, and notifies the joiner and the rest of the room. A token
// failure degrades the join (null token), it never aborts it.
func (o *Orchestrator) Join(ctx context.Context, connID domain.ConnectionID, ev core.JoinRoom) {
	if err := validate.Struct(ev); err != nil {
		o.sendError(connID, core.EvtJoinRoom, "roomId, userId and displayName are required")
		return
	}
	p, err := domain.NewParticipant(connID, domain.UserID(ev.UserID), ev.DisplayName, domain.Role(ev.Role))
	if err != nil {
		o.sendError(connID, core.EvtJoinRoom, err.Error())
		return
	}

	// A connection belongs to at most one room; joining again leaves the
	// previous room first.
	if prev, ok := o.Registry.Participant(connID); ok {
		log.Info().Str("module", "orch").
			Str("conn", string(connID)).
			Str("from_room", string(prev.RoomID)).
			Str("to_room", ev.RoomID).
			Msg("rejoin, leaving previous room")
		o.teardown(ctx, connID)
	}

	roomID := domain.RoomID(ev.RoomID)
	sfuUp := o.Probe.CheckSFU(ctx)
	meshUp := o.Probe.CheckMesh(ctx)

	// The snapshot, the registry mutation, the group join and the presence
	// broadcasts form one critical section per room. Whoever mutates second
	// sees the first in its snapshot, and the first is already in the group
	// when the second's user-joined goes out.
	lock := o.roomLock(roomID)
	lock.Lock()
	others := o.Registry.OtherMembers(roomID, connID)
	if others == nil {
		others = []domain.Participant{}
	}
	view, isNew := o.Registry.Join(roomID, p)
	o.Transport.JoinGroup(roomID, connID)
	if isNew {
		log.Info().Str("module", "orch").Str("room", string(roomID)).Msg("room created")
	}

	mode, changed, reason := o.arbitrate(view, sfuUp, meshUp)

	o.Transport.BroadcastExcept(roomID, connID, core.UserJoined{
		Type:              core.EvtUserJoined,
		ConnectionID:      connID,
		UserID:            p.UserID,
		DisplayName:       p.DisplayName,
		ParticipantsCount: view.Members,
		Mode:              mode,
	})
	if changed {
		o.Transport.Broadcast(roomID, core.ModeSwitched{
			Type:              core.EvtModeSwitched,
			Mode:              mode,
			ParticipantsCount: view.Members,
			Reason:            reason,
		})
	}
	lock.Unlock()

	var token *core.SFUToken
	if mode == domain.ModeSFU {
		tok, err := o.Broker.IssueToken(ctx, roomID, connID)
		if err != nil {
			log.Warn().Err(err).Str("module", "orch").
				Str("room", string(roomID)).
				Str("conn", string(connID)).
				Msg("token issuance failed, joining degraded")
		} else {
			token = tok
		}
	}

	o.Transport.Send(connID, core.RoomJoined{
		Type:         core.EvtRoomJoined,
		RoomID:       roomID,
		ConnectionID: connID,
		Participants: others,
		Mode:         mode,
		Token:        token,
	})
}

// Leave handles an explicit leave-room event.
func (o *Orchestrator) Leave(ctx context.Context, connID domain.ConnectionID) {
	o.teardown(ctx, connID)
}

// Disconnect handles an abrupt connection loss. Same teardown as Leave, so a
// leave followed by the socket closing is a harmless double call.
func (o *Orchestrator) Disconnect(ctx context.Context, connID domain.ConnectionID) {
	o.teardown(ctx, connID)
}

func (o *Orchestrator) teardown(ctx context.Context, connID domain.ConnectionID) {
	known, ok := o.Registry.Participant(connID)
	if !ok {
		// Already gone; a second leave/disconnect emits nothing.
		return
	}
	sfuUp := o.Probe.CheckSFU(ctx)
	meshUp := o.Probe.CheckMesh(ctx)

	lock := o.roomLock(known.RoomID)
	lock.Lock()
	defer lock.Unlock()
	p, view, ok := o.Registry.Leave(connID)
	if !ok {
		// Raced with another teardown for the same connection.
		return
	}
	o.Transport.LeaveGroup(p.RoomID, connID)
	if view == nil {
		// Room destroyed with its last member.
		return
	}

	o.Transport.Broadcast(p.RoomID, core.UserLeft{
		Type:              core.EvtUserLeft,
		ConnectionID:      connID,
		UserID:            p.UserID,
		ParticipantsCount: view.Members,
	})

	if mode, changed, reason := o.arbitrate(*view, sfuUp, meshUp); changed {
		o.Transport.Broadcast(p.RoomID, core.ModeSwitched{
			Type:              core.EvtModeSwitched,
			Mode:              mode,
			ParticipantsCount: view.Members,
			Reason:            reason,
		})
	}
}
