package workers

import (
	"context"
	"log/slog"
	"time"

	"pqrelay/domain/group"
	"pqrelay/observability"
)

// SweeperWorker evicts expired groups on a fixed interval, so expiry
// happens even on a server nobody is talking to.
type SweeperWorker struct {
	log      *slog.Logger
	store    *group.Store
	stats    *observability.RelayStats
	interval time.Duration
}

func NewSweeperWorker(log *slog.Logger, store *group.Store, stats *observability.RelayStats, interval time.Duration) *SweeperWorker {
	return &SweeperWorker{log: log, store: store, stats: stats, interval: interval}
}

func (w *SweeperWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if removed := w.store.SweepExpired(time.Now()); removed > 0 {
				w.stats.AddExpiredGroups(removed)
				w.log.Info("expired groups removed", "count", removed, "remaining", w.store.Len())
			}
		}
	}
}
