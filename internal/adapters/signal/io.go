package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Switchboard/internal/core"
	"github.com/dkeye/Switchboard/internal/domain"
)

func (ctl *Controller) writePump(ctx context.Context, c *wsConn) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, connID domain.ConnectionID, c *wsConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(connID)).Msg("readPump closing")
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Warn().Err(err).Str("module", "signal").Str("conn", string(connID)).Msg("readPump read error")
				}
				return
			}
			ctl.dispatch(ctx, connID, data)
		}
	}
}

// dispatch decodes the tagged envelope and routes to the orchestrator. Each
// event runs inside one recover boundary so a failing handler logs, answers
// the sender where meaningful, and leaves every other connection untouched.
func (ctl *Controller) dispatch(ctx context.Context, connID domain.ConnectionID, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("module", "signal").Str("conn", string(connID)).Any("panic", r).Msg("event handler panicked")
			ctl.Hub.Send(connID, core.ErrorEvent{Type: core.EvtError, Message: "internal error"})
		}
	}()

	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(connID)).Msg("bad json")
		ctl.Hub.Send(connID, core.ErrorEvent{Type: core.EvtError, Message: "bad_payload"})
		return
	}

	switch env.Type {
	case core.EvtJoinRoom:
		if !ctl.joinLimiter.Allow(connID) {
			ctl.Hub.Send(connID, core.ErrorEvent{Type: core.EvtError, Event: core.EvtJoinRoom, Message: "too many join attempts"})
			return
		}
		var ev core.JoinRoom
		if !ctl.decode(connID, env.Type, data, &ev) {
			return
		}
		ctl.Orch.Join(ctx, connID, ev)
	case core.EvtWebRTCOffer:
		var ev core.Offer
		if !ctl.decode(connID, env.Type, data, &ev) {
			return
		}
		ctl.Orch.RelayOffer(connID, ev)
	case core.EvtWebRTCAnswer:
		var ev core.Answer
		if !ctl.decode(connID, env.Type, data, &ev) {
			return
		}
		ctl.Orch.RelayAnswer(connID, ev)
	case core.EvtICECandidate:
		var ev core.Candidate
		if !ctl.decode(connID, env.Type, data, &ev) {
			return
		}
		ctl.Orch.RelayCandidate(connID, ev)
	case core.EvtMediaStateChange:
		var ev core.MediaStateChange
		if !ctl.decode(connID, env.Type, data, &ev) {
			return
		}
		ctl.Orch.MediaState(connID, ev)
	case core.EvtChatMessage:
		var ev core.ChatMessage
		if !ctl.decode(connID, env.Type, data, &ev) {
			return
		}
		ctl.Orch.Chat(connID, ev)
	case core.EvtRequestSFUToken:
		var ev core.TokenRequest
		if !ctl.decode(connID, env.Type, data, &ev) {
			return
		}
		ctl.Orch.TokenRequest(ctx, connID, ev)
	case core.EvtLeaveRoom:
		ctl.Orch.Leave(ctx, connID)
	case core.EvtPing:
		ctl.Orch.Ping(connID)
	case core.EvtGetStats:
		ctl.Orch.StatsRequest(connID)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		ctl.Hub.Send(connID, core.ErrorEvent{Type: core.EvtError, Event: env.Type, Message: "unknown event"})
	}
}

func (ctl *Controller) decode(connID domain.ConnectionID, event string, data []byte, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("event", event).Msg("bad payload")
		ctl.Hub.Send(connID, core.ErrorEvent{Type: core.EvtError, Event: event, Message: "bad_payload"})
		return false
	}
	return true
}
