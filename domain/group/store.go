package group

import (
	"sync"
	"time"
)

// DefaultExpiration matches the original 24h group lifetime.
const DefaultExpiration = 24 * time.Hour

// Store maps group ids to groups and evicts groups past their expiration.
// Nothing survives a restart; groups live and die in memory.
type Store struct {
	mu         sync.RWMutex
	groups     map[string]*Group
	expiration time.Duration
}

func NewStore(expiration time.Duration) *Store {
	if expiration <= 0 {
		expiration = DefaultExpiration
	}
	return &Store{
		groups:     make(map[string]*Group),
		expiration: expiration,
	}
}

func (s *Store) Create(name, admin string, members []string) *Group {
	g := NewGroup(name, admin, members, time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[g.ID] = g
	return g
}

func (s *Store) Get(id string) (*Group, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	return g, ok
}

func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[id]; !ok {
		return false
	}
	delete(s.groups, id)
	return true
}

// ForMember returns every group containing name. Linear scan; the expected
// group count does not justify a secondary index.
func (s *Store) ForMember(name string) []*Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Group
	for _, g := range s.groups {
		if g.IsMember(name) {
			out = append(out, g)
		}
	}
	return out
}

// SweepExpired removes every group older than the expiration threshold and
// returns how many were dropped, for observability only.
func (s *Store) SweepExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, g := range s.groups {
		if now.Sub(g.CreatedAt) > s.expiration {
			delete(s.groups, id)
			removed++
		}
	}
	return removed
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.groups)
}
