package core

import "github.com/dkeye/Switchboard/internal/domain"

// Frame is a marshaled JSON payload ready for the wire.
type Frame []byte

// SignalConnection abstracts a single client's messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// Transport is the pub/sub-capable connection multiplexer the orchestrator
// fans events through. Sending to an unknown connection is silently absorbed:
// a relay addressed to a gone peer is dropped, never surfaced as an error.
type Transport interface {
	Send(id domain.ConnectionID, v any)
	Broadcast(room domain.RoomID, v any)
	BroadcastExcept(room domain.RoomID, except domain.ConnectionID, v any)
	JoinGroup(room domain.RoomID, id domain.ConnectionID)
	LeaveGroup(room domain.RoomID, id domain.ConnectionID)
}

// SFUToken is the credential issued by the forwarding unit for one
// participant in one room. Carried opaquely; only the SFU interprets it.
type SFUToken struct {
	Token     string `json:"token"`
	RoomID    string `json:"roomId,omitempty"`
	URL       string `json:"url,omitempty"`
	ExpiresAt int64  `json:"expiresAt,omitempty"`
}
