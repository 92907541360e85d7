package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/Switchboard/internal/adapters/http"
	signaladapter "github.com/dkeye/Switchboard/internal/adapters/signal"
	"github.com/dkeye/Switchboard/internal/app"
	"github.com/dkeye/Switchboard/internal/app/orch"
	"github.com/dkeye/Switchboard/internal/app/sfu"
	"github.com/dkeye/Switchboard/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	registry := app.NewRegistry()
	probe := app.NewProbe(cfg.SFUBaseURL, cfg.MeshBaseURL, cfg.ProbeTimeout, cfg.ProbeCacheTTL)
	broker := sfu.NewBroker(cfg.SFUBaseURL, cfg.ProbeTimeout)
	hub := signaladapter.NewHub()

	o := &orch.Orchestrator{
		Registry:  registry,
		Policy:    app.ThresholdPolicy{SwitchThreshold: cfg.SwitchThreshold},
		Probe:     probe,
		Broker:    broker,
		Transport: hub,
	}

	reaper := &app.Reaper{Registry: registry, Interval: cfg.ReapInterval, RoomTTL: cfg.RoomTTL}
	go reaper.Run(ctx)

	ctl := signaladapter.NewController(o, hub, cfg.AllowedOrigins, cfg.ReadLimit, cfg.SendBuffer)
	r := router.SetupRouter(ctx, cfg, router.Deps{
		Registry: registry,
		Probe:    probe,
		Broker:   broker,
		Signal:   ctl,
	})
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Switchboard server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
