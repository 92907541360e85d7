package domain

import "time"

type RoomID string

// Mode is the room's current transport topology.
type Mode string

const (
	ModeP2P Mode = "p2p"
	ModeSFU Mode = "sfu"
)

// Room is room meta only; the membership set lives in the registry so both
// maps are always mutated under one lock.
type Room struct {
	ID        RoomID    `json:"roomId"`
	Mode      Mode      `json:"mode"`
	CreatedAt time.Time `json:"createdAt"`
}
