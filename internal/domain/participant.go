// Package domain contains entities without logic, just meta-data.
package domain

import (
	"errors"
	"time"
)

const (
	MaxUserIDLen      = 64
	MaxDisplayNameLen = 64
)

var (
	ErrDisplayNameEmpty   = errors.New("display name empty")
	ErrDisplayNameTooLong = errors.New("display name too long")
	ErrUserIDEmpty        = errors.New("user id empty")
	ErrUserIDTooLong      = errors.New("user id too long")
)

type (
	// ConnectionID is the opaque per-connection identity assigned by the
	// transport layer. It is the primary key for participant lookup.
	ConnectionID string
	UserID       string
	Role         string
)

const (
	RoleParticipant Role = "participant"
	RolePresenter   Role = "presenter"
)

// MediaState is mutable, last-write-wins.
type MediaState struct {
	AudioEnabled bool `json:"audioEnabled"`
	VideoEnabled bool `json:"videoEnabled"`
}

type Participant struct {
	ConnectionID ConnectionID `json:"connectionId"`
	UserID       UserID       `json:"userId"`
	DisplayName  string       `json:"displayName"`
	Role         Role         `json:"role"`
	RoomID       RoomID       `json:"roomId"`
	JoinedAt     time.Time    `json:"joinedAt"`
	MediaState   MediaState   `json:"mediaState"`
}

// NewParticipant is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewParticipant(connID ConnectionID, userID UserID, displayName string, role Role) (*Participant, error) {
	if len(userID) == 0 {
		return nil, ErrUserIDEmpty
	}
	if len(userID) > MaxUserIDLen {
		return nil, ErrUserIDTooLong
	}
	if len(displayName) == 0 {
		return nil, ErrDisplayNameEmpty
	}
	if len(displayName) > MaxDisplayNameLen {
		return nil, ErrDisplayNameTooLong
	}
	if role == "" {
		role = RoleParticipant
	}
	return &Participant{
		ConnectionID: connID,
		UserID:       userID,
		DisplayName:  displayName,
		Role:         role,
		JoinedAt:     time.Now(),
	}, nil
}
