package observability

import "sync/atomic"

// RelayStats aggregates relay counters. All fields are updated atomically
// by the router and transport; the reporter worker reads snapshots.
type RelayStats struct {
	connections       atomic.Uint64
	registrations     atomic.Uint64
	directRelayed     atomic.Uint64
	kemRelayed        atomic.Uint64
	groupRelayed      atomic.Uint64
	broadcasts        atomic.Uint64
	droppedDeliveries atomic.Uint64
	expiredGroups     atomic.Uint64
}

type StatsSnapshot struct {
	Connections       uint64
	Registrations     uint64
	DirectRelayed     uint64
	KemRelayed        uint64
	GroupRelayed      uint64
	Broadcasts        uint64
	DroppedDeliveries uint64
	ExpiredGroups     uint64
}

func NewRelayStats() *RelayStats {
	return &RelayStats{}
}

func (s *RelayStats) IncrConnections() { s.connections.Add(1) }

func (s *RelayStats) IncrRegistrations() { s.registrations.Add(1) }

func (s *RelayStats) IncrDirectRelayed() { s.directRelayed.Add(1) }

func (s *RelayStats) IncrKemRelayed() { s.kemRelayed.Add(1) }

func (s *RelayStats) IncrGroupRelayed() { s.groupRelayed.Add(1) }

func (s *RelayStats) IncrBroadcasts() { s.broadcasts.Add(1) }

func (s *RelayStats) IncrDroppedDeliveries() { s.droppedDeliveries.Add(1) }

func (s *RelayStats) AddExpiredGroups(n int) {
	if n > 0 {
		s.expiredGroups.Add(uint64(n))
	}
}

func (s *RelayStats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Connections:       s.connections.Load(),
		Registrations:     s.registrations.Load(),
		DirectRelayed:     s.directRelayed.Load(),
		KemRelayed:        s.kemRelayed.Load(),
		GroupRelayed:      s.groupRelayed.Load(),
		Broadcasts:        s.broadcasts.Load(),
		DroppedDeliveries: s.droppedDeliveries.Load(),
		ExpiredGroups:     s.expiredGroups.Load(),
	}
}
