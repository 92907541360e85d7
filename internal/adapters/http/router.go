package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Switchboard/internal/adapters/signal"
	"github.com/dkeye/Switchboard/internal/app"
	"github.com/dkeye/Switchboard/internal/app/orch"
	"github.com/dkeye/Switchboard/internal/config"
	"github.com/dkeye/Switchboard/internal/domain"
)

// Deps is everything the management surface reads from. The websocket flow
// owns all mutations; these endpoints only issue tokens and report state.
type Deps struct {
	Registry *app.Registry
	Probe    orch.HealthChecker
	Broker   orch.TokenIssuer
	Signal   *signal.Controller
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	log.Info().Str("module", "adapters.http").Msg("router setup")

	r.GET("/", func(c *gin.Context) {
		rooms, participants := deps.Registry.Counts()
		c.JSON(http.StatusOK, gin.H{
			"status":       "ok",
			"rooms":        rooms,
			"participants": participants,
		})
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"sfu":    deps.Probe.CheckSFU(c.Request.Context()),
			"mesh":   deps.Probe.CheckMesh(c.Request.Context()),
		})
	})

	r.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": deps.Registry.Snapshot()})
	})

	r.POST("/sfu-token", func(c *gin.Context) {
		var req struct {
			RoomID        string `json:"room_id" binding:"required"`
			ParticipantID string `json:"participant_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "room_id and participant_id are required"})
			return
		}
		token, err := deps.Broker.IssueToken(c.Request.Context(), domain.RoomID(req.RoomID), domain.ConnectionID(req.ParticipantID))
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, token)
	})

	r.GET("/ws/signal", func(c *gin.Context) {
		deps.Signal.HandleSignal(ctx, c)
	})

	return r
}
