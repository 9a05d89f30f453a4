package workers

import (
	"context"
	"log/slog"
	"time"

	"pqrelay/domain/group"
	"pqrelay/observability"
	"pqrelay/registry"
)

// ReporterWorker periodically logs relay counters and current population.
type ReporterWorker struct {
	log      *slog.Logger
	stats    *observability.RelayStats
	registry *registry.Registry
	store    *group.Store
	interval time.Duration
}

func NewReporterWorker(log *slog.Logger, stats *observability.RelayStats,
	reg *registry.Registry, store *group.Store, interval time.Duration) *ReporterWorker {
	return &ReporterWorker{log: log, stats: stats, registry: reg, store: store, interval: interval}
}

func (w *ReporterWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.report()
			return ctx.Err()
		case <-ticker.C:
			w.report()
		}
	}
}

func (w *ReporterWorker) report() {
	snapshot := w.stats.Snapshot()
	w.log.Info("relay stats",
		"connections_total", snapshot.Connections,
		"registrations", snapshot.Registrations,
		"direct_relayed", snapshot.DirectRelayed,
		"kem_relayed", snapshot.KemRelayed,
		"group_relayed", snapshot.GroupRelayed,
		"broadcasts", snapshot.Broadcasts,
		"dropped", snapshot.DroppedDeliveries,
		"expired_groups", snapshot.ExpiredGroups,
		"online", w.registry.Len(),
		"groups", w.store.Len(),
	)
}
