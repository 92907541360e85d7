package app

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Probe checks the two backing services' liveness. Every failure degrades to
// "unavailable": a probe never returns an error to the caller. Results are
// cached for a short TTL so a join burst does not hammer the backing
// services; a cached answer can be stale for at most the TTL.
type Probe struct {
	sfuURL  string
	meshURL string
	client  *http.Client
	ttl     time.Duration

	mu   sync.Mutex
	sfu  probeResult
	mesh probeResult
}

type probeResult struct {
	at time.Time
	up bool
}

func NewProbe(sfuBaseURL, meshBaseURL string, timeout, cacheTTL time.Duration) *Probe {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Probe{
		sfuURL:  healthURL(sfuBaseURL),
		meshURL: healthURL(meshBaseURL),
		client:  &http.Client{Timeout: timeout},
		ttl:     cacheTTL,
	}
}

func healthURL(base string) string {
	if base == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/health"
}

func (p *Probe) CheckSFU(ctx context.Context) bool {
	return p.check(ctx, "sfu", p.sfuURL, &p.sfu)
}

func (p *Probe) CheckMesh(ctx context.Context) bool {
	return p.check(ctx, "mesh", p.meshURL, &p.mesh)
}

func (p *Probe) check(ctx context.Context, name, url string, cache *probeResult) bool {
	if url == "" {
		return false
	}

	p.mu.Lock()
	if p.ttl > 0 && time.Since(cache.at) < p.ttl {
		up := cache.up
		p.mu.Unlock()
		return up
	}
	p.mu.Unlock()

	up := p.probe(ctx, name, url)

	p.mu.Lock()
	cache.at = time.Now()
	cache.up = up
	p.mu.Unlock()
	return up
}

func (p *Probe) probe(ctx context.Context, name, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.health").Str("service", name).Msg("probe request build failed")
		return false
	}
	res, err := p.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.health").Str("service", name).Msg("probe failed")
		return false
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		log.Warn().Str("module", "app.health").Str("service", name).Int("status", res.StatusCode).Msg("probe unhealthy")
		return false
	}
	return true
}
