package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Reaper periodically sweeps the registry for empty rooms that outlived their
// TTL and for participants whose room vanished without the normal leave path
// running. Purely corrective: normal teardown is synchronous.
type Reaper struct {
	Registry *Registry
	Interval time.Duration
	RoomTTL  time.Duration
}

func (r *Reaper) Run(ctx context.Context) {
	interval := r.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Str("module", "app.reaper").Dur("interval", interval).Msg("reaper started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "app.reaper").Msg("reaper stopped")
			return
		case <-ticker.C:
			rooms, participants := r.Registry.Reap(r.RoomTTL)
			if rooms > 0 || participants > 0 {
				log.Info().Str("module", "app.reaper").
					Int("rooms", rooms).
					Int("participants", participants).
					Msg("reaped orphaned state")
			}
		}
	}
}
