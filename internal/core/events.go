package core

import (
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Switchboard/internal/domain"
)

// Inbound event names.
const (
	EvtJoinRoom         = "join-room"
	EvtWebRTCOffer      = "webrtc-offer"
	EvtWebRTCAnswer     = "webrtc-answer"
	EvtICECandidate     = "ice-candidate"
	EvtMediaStateChange = "media-state-change"
	EvtChatMessage      = "chat-message"
	EvtRequestSFUToken  = "request-sfu-token"
	EvtLeaveRoom        = "leave-room"
	EvtPing             = "ping"
	EvtGetStats         = "get-stats"
)

// Outbound event names.
const (
	EvtRoomJoined            = "room-joined"
	EvtUserJoined            = "user-joined"
	EvtUserLeft              = "user-left"
	EvtModeSwitched          = "mode-switched"
	EvtParticipantMediaState = "participant-media-state"
	EvtSFUToken              = "sfu-token"
	EvtSFUTokenError         = "sfu-token-error"
	EvtPong                  = "pong"
	EvtStats                 = "stats"
	EvtError                 = "error"
)

// Inbound payloads. One explicit variant per event name; the adapter decodes
// into these instead of passing open-ended maps around.

type JoinRoom struct {
	RoomID      string `json:"roomId" validate:"required"`
	UserID      string `json:"userId" validate:"required"`
	DisplayName string `json:"displayName" validate:"required"`
	Role        string `json:"role,omitempty"`
}

type Offer struct {
	To     string                    `json:"to" validate:"required"`
	RoomID string                    `json:"roomId"`
	Offer  webrtc.SessionDescription `json:"offer"`
}

type Answer struct {
	To     string                    `json:"to" validate:"required"`
	RoomID string                    `json:"roomId"`
	Answer webrtc.SessionDescription `json:"answer"`
}

type Candidate struct {
	To        string                  `json:"to" validate:"required"`
	RoomID    string                  `json:"roomId"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

type MediaStateChange struct {
	AudioEnabled bool `json:"audioEnabled"`
	VideoEnabled bool `json:"videoEnabled"`
}

type ChatMessage struct {
	Body string `json:"body" validate:"required"`
}

type TokenRequest struct {
	RoomID string `json:"roomId" validate:"required"`
	UserID string `json:"userId"`
}

// Outbound payloads.

type RoomJoined struct {
	Type         string               `json:"type"`
	RoomID       domain.RoomID        `json:"roomId"`
	ConnectionID domain.ConnectionID  `json:"connectionId"`
	Participants []domain.Participant `json:"participants"`
	Mode         domain.Mode          `json:"mode"`
	Token        *SFUToken            `json:"token"`
}

type UserJoined struct {
	Type              string              `json:"type"`
	ConnectionID      domain.ConnectionID `json:"connectionId"`
	UserID            domain.UserID       `json:"userId"`
	DisplayName       string              `json:"displayName"`
	ParticipantsCount int                 `json:"participantsCount"`
	Mode              domain.Mode         `json:"mode"`
}

type UserLeft struct {
	Type              string              `json:"type"`
	ConnectionID      domain.ConnectionID `json:"connectionId"`
	UserID            domain.UserID       `json:"userId"`
	ParticipantsCount int                 `json:"participantsCount"`
}

type ModeSwitched struct {
	Type              string      `json:"type"`
	Mode              domain.Mode `json:"mode"`
	ParticipantsCount int         `json:"participantsCount"`
	Reason            string      `json:"reason"`
}

type OfferRelay struct {
	Type       string                    `json:"type"`
	From       domain.ConnectionID       `json:"from"`
	FromUserID domain.UserID             `json:"fromUserId,omitempty"`
	RoomID     string                    `json:"roomId,omitempty"`
	Offer      webrtc.SessionDescription `json:"offer"`
}

type AnswerRelay struct {
	Type       string                    `json:"type"`
	From       domain.ConnectionID       `json:"from"`
	FromUserID domain.UserID             `json:"fromUserId,omitempty"`
	RoomID     string                    `json:"roomId,omitempty"`
	Answer     webrtc.SessionDescription `json:"answer"`
}

type CandidateRelay struct {
	Type       string                  `json:"type"`
	From       domain.ConnectionID     `json:"from"`
	FromUserID domain.UserID           `json:"fromUserId,omitempty"`
	RoomID     string                  `json:"roomId,omitempty"`
	Candidate  webrtc.ICECandidateInit `json:"candidate"`
}

type ParticipantMediaState struct {
	Type         string              `json:"type"`
	ConnectionID domain.ConnectionID `json:"connectionId"`
	MediaState   domain.MediaState   `json:"mediaState"`
}

type ChatBroadcast struct {
	Type         string              `json:"type"`
	ConnectionID domain.ConnectionID `json:"connectionId"`
	UserID       domain.UserID       `json:"userId"`
	DisplayName  string              `json:"displayName"`
	Body         string              `json:"body"`
	SentAt       time.Time           `json:"sentAt"`
}

type TokenIssued struct {
	Type  string   `json:"type"`
	Token SFUToken `json:"token"`
}

type TokenError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

type Pong struct {
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
}

type RoomStats struct {
	RoomID            domain.RoomID `json:"roomId"`
	Mode              domain.Mode   `json:"mode"`
	ParticipantsCount int           `json:"participantsCount"`
}

type ServerStats struct {
	Rooms        int `json:"rooms"`
	Participants int `json:"participants"`
}

type Stats struct {
	Type   string      `json:"type"`
	Room   *RoomStats  `json:"room"`
	Server ServerStats `json:"server"`
}

// ErrorEvent is the scoped error reply: Event names the inbound event that
// failed, the state of every other connection is untouched.
type ErrorEvent struct {
	Type    string `json:"type"`
	Event   string `json:"event"`
	Message string `json:"message"`
}
