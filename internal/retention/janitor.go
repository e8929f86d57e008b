// Package retention evicts chat sessions nobody has used for a while.
//
// Sessions live only in memory, so a long-running server would otherwise
// keep every preview ever opened. The janitor runs as a background
// goroutine and respects context cancellation for graceful shutdown.
package retention

import (
	"context"
	"time"

	"github.com/agentoven/chatwidget/internal/sessions"
	"github.com/rs/zerolog/log"
)

// DefaultSessionTTL is how long an untouched session is kept.
const DefaultSessionTTL = 24 * time.Hour

// DefaultInterval is how often the janitor sweeps.
const DefaultInterval = 10 * time.Minute

// Janitor periodically deletes sessions whose last update is older than the TTL.
type Janitor struct {
	store    *sessions.MemorySessionStore
	ttl      time.Duration
	interval time.Duration
	keep     map[string]bool

	// Now is the janitor's clock; tests replace it.
	Now func() time.Time
}

// NewJanitor creates a janitor. Sessions named in keep are never evicted.
func NewJanitor(s *sessions.MemorySessionStore, ttl, interval time.Duration, keep ...string) *Janitor {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if interval < time.Second {
		interval = DefaultInterval
	}
	k := make(map[string]bool, len(keep))
	for _, id := range keep {
		k[id] = true
	}
	return &Janitor{
		store:    s,
		ttl:      ttl,
		interval: interval,
		keep:     k,
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run sweeps on every interval until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) error {
	log.Info().
		Dur("interval", j.interval).
		Dur("ttl", j.ttl).
		Msg("Session janitor started")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Session janitor stopped")
			return nil
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Sweep deletes expired sessions and returns how many were removed.
func (j *Janitor) Sweep(ctx context.Context) int {
	start := time.Now()
	cutoff := j.Now().Add(-j.ttl)

	removed := 0
	for _, s := range j.store.List(ctx) {
		if j.keep[s.ID] || !s.UpdatedAt.Before(cutoff) {
			continue
		}
		if err := j.store.Delete(ctx, s.ID); err != nil {
			// Deleted concurrently.
			log.Debug().Err(err).Str("session", s.ID).Msg("Session janitor: delete skipped")
			continue
		}
		removed++
	}

	if removed > 0 {
		log.Info().
			Int("evicted", removed).
			Dur("elapsed", time.Since(start)).
			Msg("Session sweep complete")
	}
	return removed
}
