// internal/ratelimit/governor.go
package ratelimit

import (
	"context"
	"log"
	"time"

	"reddit-harvester/internal/models"
	"reddit-harvester/internal/reddit"
)

const (
	// Applied when quota information is unavailable; the governor fails
	// open rather than blocking on missing data.
	precautionaryDelay = 2 * time.Second

	// Added on top of the reported reset time before resuming.
	resetBuffer = 10 * time.Second
)

// QuotaSource reports the remote API's self-described quota state.
type QuotaSource interface {
	AuthState() (*reddit.AuthState, error)
	CredentialID() string
}

// SnapshotStore persists the latest quota snapshot per credential set.
type SnapshotStore interface {
	UpsertRateLimit(ctx context.Context, snapshot *models.RateLimitSnapshot) error
}

// Governor paces outbound calls against the remotely-enforced quota. It is
// consulted before every listing call, before every comment expansion, and
// periodically during tree walks.
type Governor struct {
	source       QuotaSource
	store        SnapshotStore
	subreddit    string
	minRemaining int

	sleep func(time.Duration)
	now   func() time.Time
}

func NewGovernor(source QuotaSource, store SnapshotStore, subreddit string, minRemaining int) *Governor {
	return &Governor{
		source:       source,
		store:        store,
		subreddit:    subreddit,
		minRemaining: minRemaining,
		sleep:        time.Sleep,
		now:          time.Now,
	}
}

// Check reads the current quota state, persists a snapshot, and sleeps until
// the reset window (plus a buffer) when the remaining quota has fallen to the
// reserve threshold. It returns nil when quota information is unavailable;
// that case applies a short precautionary delay instead of failing.
func (g *Governor) Check(ctx context.Context) *models.RateLimitSnapshot {
	state, err := g.source.AuthState()
	if err != nil {
		log.Printf("Rate limit info not available for r/%s, adding precautionary delay: %v", g.subreddit, err)
		g.sleep(precautionaryDelay)
		return nil
	}

	snapshot := &models.RateLimitSnapshot{
		CredentialID:   g.source.CredentialID(),
		Subreddit:      g.subreddit,
		Remaining:      state.Remaining,
		Used:           state.Used,
		ResetTimestamp: state.ResetAt,
		LastUpdated:    g.now(),
	}

	// Persist before potentially sleeping; a failed write must not abort
	// the scrape.
	if err := g.store.UpsertRateLimit(ctx, snapshot); err != nil {
		log.Printf("Failed to save rate limit snapshot for r/%s: %v", g.subreddit, err)
	}

	untilReset := time.Duration((snapshot.ResetTimestamp - float64(g.now().Unix())) * float64(time.Second))

	if snapshot.Remaining <= float64(g.minRemaining) {
		if untilReset > 0 {
			log.Printf("Rate limit low for r/%s (%.0f remaining), waiting %s for reset",
				g.subreddit, snapshot.Remaining, (untilReset + resetBuffer).Round(time.Second))
			g.sleep(untilReset + resetBuffer)
		} else {
			log.Printf("Rate limit reset time has passed for r/%s, continuing", g.subreddit)
		}
	}

	return snapshot
}
