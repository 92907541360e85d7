// Package signal is the WebSocket transport: it upgrades connections, mints
// connection ids, pumps frames, and dispatches decoded events to the
// orchestrator.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Switchboard/internal/app/orch"
	"github.com/dkeye/Switchboard/internal/core"
	"github.com/dkeye/Switchboard/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

type Controller struct {
	Orch *orch.Orchestrator
	Hub  *Hub

	upgrader    websocket.Upgrader
	readLimit   int64
	sendBuffer  int
	joinLimiter *JoinRateLimiter
}

func NewController(o *orch.Orchestrator, hub *Hub, allowedOrigins []string, readLimit int64, sendBuffer int) *Controller {
	if sendBuffer <= 0 {
		sendBuffer = 32
	}
	return &Controller{
		Orch: o,
		Hub:  hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(allowedOrigins),
		},
		readLimit:   readLimit,
		sendBuffer:  sendBuffer,
		joinLimiter: NewJoinRateLimiter(defaultJoinLimit, defaultJoinWindow),
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	allowAll := len(allowed) == 0
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			allowAll = true
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		if allowAll {
			return true
		}
		_, ok := set[r.Header.Get("Origin")]
		return ok
	}
}

// wsConn wraps one websocket with a buffered send channel. TrySend never
// blocks: a full buffer drops the frame and reports backpressure.
type wsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// HandleSignal upgrades the request and runs the connection until it drops.
// Each live connection gets a fresh opaque id; it is the participant's
// primary key for the whole session.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	connID := domain.ConnectionID(uuid.NewString())
	log.Info().Str("module", "signal").Str("conn", string(connID)).Msg("new WS connection")

	conn := &wsConn{
		conn: ws,
		send: make(chan core.Frame, ctl.sendBuffer),
	}
	if ctl.readLimit > 0 {
		ws.SetReadLimit(ctl.readLimit)
	}
	ctl.Hub.Register(connID, conn)

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go func() {
		defer cancel()
		ctl.readPump(ctx, connID, conn)
		// Whatever ended the read loop, tear the participant down exactly
		// once; a stale leave is absorbed by the registry.
		ctl.Orch.Disconnect(context.WithoutCancel(ctx), connID)
		ctl.Hub.Unregister(connID)
		ctl.joinLimiter.Forget(connID)
	}()
}
