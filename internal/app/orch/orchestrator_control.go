package orch

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Switchboard/internal/core"
	"github.com/dkeye/Switchboard/internal/domain"
)

func (o *Orchestrator) Ping(connID domain.ConnectionID) {
	o.Transport.Send(connID, core.Pong{
		Type:       core.EvtPong,
		ServerTime: time.Now().UnixMilli(),
	})
}

func (o *Orchestrator) StatsRequest(connID domain.ConnectionID) {
	rooms, participants := o.Registry.Counts()
	st := core.Stats{
		Type:   core.EvtStats,
		Server: core.ServerStats{Rooms: rooms, Participants: participants},
	}
	if p, ok := o.Registry.Participant(connID); ok {
		if view, ok := o.Registry.Room(p.RoomID); ok {
			st.Room = &core.RoomStats{
				RoomID:            view.Room.ID,
				Mode:              view.Room.Mode,
				ParticipantsCount: view.Members,
			}
		}
	}
	o.Transport.Send(connID, st)
}

// TokenRequest re-issues an SFU credential on demand. The sender must be a
// known participant of the room it names.
func (o *Orchestrator) TokenRequest(ctx context.Context, connID domain.ConnectionID, ev core.TokenRequest) {
	if err := validate.Struct(ev); err != nil {
		o.sendError(connID, core.EvtRequestSFUToken, "roomId is required")
		return
	}
	p, ok := o.Registry.Participant(connID)
	if !ok {
		o.sendError(connID, core.EvtRequestSFUToken, "not in a room")
		return
	}
	if p.RoomID != domain.RoomID(ev.RoomID) {
		o.sendError(connID, core.EvtRequestSFUToken, "room mismatch")
		return
	}

	tok, err := o.Broker.IssueToken(ctx, p.RoomID, connID)
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").
			Str("room", string(p.RoomID)).
			Str("conn", string(connID)).
			Msg("token request failed")
		o.Transport.Send(connID, core.TokenError{Type: core.EvtSFUTokenError, Error: err.Error()})
		return
	}
	o.Transport.Send(connID, core.TokenIssued{Type: core.EvtSFUToken, Token: *tok})
}
