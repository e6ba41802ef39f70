package httpapi

import (
	"context"
	"log/slog"
	"time"

	"github.com/smilecare/ivr-core/pkg/metrics"
	"github.com/smilecare/ivr-core/pkg/orchestrator"
)

// HousekeepingInterval is how often the background sweep runs (spec.md §5).
const HousekeepingInterval = 10 * time.Second

// RunHousekeeping sweeps active sessions every HousekeepingInterval, moving
// ACTIVE sessions past their idle timeout to IDLE and closing sessions past
// their max duration, until ctx is cancelled.
func RunHousekeeping(ctx context.Context, store orchestrator.Store) {
	if store == nil {
		return
	}

	ticker := time.NewTicker(HousekeepingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepOnce(ctx, store)
		}
	}
}

func sweepOnce(ctx context.Context, store orchestrator.Store) {
	metrics.HousekeepingRuns.Inc()

	ids, err := store.ActiveSessionIDs(ctx)
	if err != nil {
		slog.Warn("housekeeping sweep failed to list sessions", "error", err)
		return
	}

	now := time.Now()
	for _, id := range ids {
		sess, err := store.GetSession(ctx, id)
		if err != nil {
			continue
		}
		switch {
		case sess.IsExpired(now):
			if err := store.CloseSession(ctx, id); err != nil {
				slog.Warn("housekeeping failed to close expired session", "session_id", id, "error", err)
			}
		case sess.State == orchestrator.SessionActive && sess.IsIdleDue(now):
			if err := store.SetSessionState(ctx, id, orchestrator.SessionIdle); err != nil {
				slog.Warn("housekeeping failed to idle session", "session_id", id, "error", err)
			}
		}
	}
}
