package orch

import (
	"time"

	"github.com/dkeye/Switchboard/internal/core"
	"github.com/dkeye/Switchboard/internal/domain"
)

// The handshake relays are pure unicast: the client names the recipient, the
// relay attaches sender identity and forwards verbatim. There is no check
// that sender and recipient share a room; a relay addressed to a gone
// connection is silently dropped by the transport.

func (o *Orchestrator) RelayOffer(connID domain.ConnectionID, ev core.Offer) {
	if err := validate.Struct(ev); err != nil {
		o.sendError(connID, core.EvtWebRTCOffer, "recipient is required")
		return
	}
	from, _ := o.Registry.Participant(connID)
	o.Transport.Send(domain.ConnectionID(ev.To), core.OfferRelay{
		Type:       core.EvtWebRTCOffer,
		From:       connID,
		FromUserID: from.UserID,
		RoomID:     ev.RoomID,
		Offer:      ev.Offer,
	})
}

func (o *Orchestrator) RelayAnswer(connID domain.ConnectionID, ev core.Answer) {
	if err := validate.Struct(ev); err != nil {
		o.sendError(connID, core.EvtWebRTCAnswer, "recipient is required")
		return
	}
	from, _ := o.Registry.Participant(connID)
	o.Transport.Send(domain.ConnectionID(ev.To), core.AnswerRelay{
		Type:       core.EvtWebRTCAnswer,
		From:       connID,
		FromUserID: from.UserID,
		RoomID:     ev.RoomID,
		Answer:     ev.Answer,
	})
}

func (o *Orchestrator) RelayCandidate(connID domain.ConnectionID, ev core.Candidate) {
	if err := validate.Struct(ev); err != nil {
		o.sendError(connID, core.EvtICECandidate, "recipient is required")
		return
	}
	from, _ := o.Registry.Participant(connID)
	o.Transport.Send(domain.ConnectionID(ev.To), core.CandidateRelay{
		Type:       core.EvtICECandidate,
		From:       connID,
		FromUserID: from.UserID,
		RoomID:     ev.RoomID,
		Candidate:  ev.Candidate,
	})
}

// MediaState updates the sender's media flags (last write wins) and tells the
// rest of the room; the sender already knows its own state.
func (o *Orchestrator) MediaState(connID domain.ConnectionID, ev core.MediaStateChange) {
	p, ok := o.Registry.UpdateMediaState(connID, domain.MediaState{
		AudioEnabled: ev.AudioEnabled,
		VideoEnabled: ev.VideoEnabled,
	})
	if !ok {
		o.sendError(connID, core.EvtMediaStateChange, "not in a room")
		return
	}
	o.Transport.BroadcastExcept(p.RoomID, connID, core.ParticipantMediaState{
		Type:         core.EvtParticipantMediaState,
		ConnectionID: connID,
		MediaState:   p.MediaState,
	})
}

// Chat broadcasts to the whole room including the sender, so every client
// renders the authoritative server timestamp and identity.
func (o *Orchestrator) Chat(connID domain.ConnectionID, ev core.ChatMessage) {
	if err := validate.Struct(ev); err != nil {
		o.sendError(connID, core.EvtChatMessage, "body is required")
		return
	}
	p, ok := o.Registry.Participant(connID)
	if !ok {
		o.sendError(connID, core.EvtChatMessage, "not in a room")
		return
	}
	o.Transport.Broadcast(p.RoomID, core.ChatBroadcast{
		Type:         core.EvtChatMessage,
		ConnectionID: connID,
		UserID:       p.UserID,
		DisplayName:  p.DisplayName,
		Body:         ev.Body,
		SentAt:       time.Now(),
	})
}
