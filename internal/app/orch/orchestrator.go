// Package orch holds the signaling semantics: it drives the registry, the
// mode policy and the token broker, and fans events out through the
// transport. It never touches websockets directly.
package orch

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/dkeye/Switchboard/internal/app"
	"github.com/dkeye/Switchboard/internal/core"
	"github.com/dkeye/Switchboard/internal/domain"
)

var validate = validator.New()

// HealthChecker reports backing-service liveness. Failures degrade to false,
// never to an error.
type HealthChecker interface {
	CheckSFU(ctx context.Context) bool
	CheckMesh(ctx context.Context) bool
}

// TokenIssuer issues SFU credentials for one participant in one room.
type TokenIssuer interface {
	IssueToken(ctx context.Context, roomID domain.RoomID, participantID domain.ConnectionID) (*core.SFUToken, error)
}

// roomLockStripes sizes the lock table guarding membership mutations; a
// hash collision only over-serializes two rooms, it never breaks ordering.
const roomLockStripes = 64

type Orchestrator struct {
	Registry  *app.Registry
	Policy    app.Policy
	Probe     HealthChecker
	Broker    TokenIssuer
	Transport core.Transport

	roomLocks [roomLockStripes]sync.Mutex
}

// roomLock maps a room to its mutation lock. Handlers hold it across the
// presence snapshot, the registry mutation, the hub group change and the
// resulting broadcasts, so two joins (or a join and a leave) in the same room
// cannot interleave and lose each other's presence. Probe and token HTTP
// calls stay outside it.
func (o *Orchestrator) roomLock(roomID domain.RoomID) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(roomID))
	return &o.roomLocks[h.Sum32()%roomLockStripes]
}

func (o *Orchestrator) sendError(connID domain.ConnectionID, event, message string) {
	o.Transport.Send(connID, core.ErrorEvent{
		Type:    core.EvtError,
		Event:   event,
		Message: message,
	})
}

// arbitrate runs the mode policy against a post-mutation room view and
// persists the outcome when it differs from the stored mode. The reason names
// which rule fired, for the room-wide mode-switched notification.
func (o *Orchestrator) arbitrate(view app.RoomView, sfuUp, meshUp bool) (mode domain.Mode, changed bool, reason string) {
	mode = o.Policy.Decide(view.Room.Mode, view.Members, sfuUp, meshUp)
	if mode == view.Room.Mode {
		return mode, false, ""
	}
	o.Registry.SetMode(view.Room.ID, mode)
	switch {
	case !sfuUp:
		reason = "sfu-unavailable"
	case !meshUp:
		reason = "mesh-unavailable"
	default:
		reason = "participant-threshold"
	}
	return mode, true, reason
}
