package engine

import (
	"context"
	"time"

	"github.com/lotas/tabflow/internal/host"
	"github.com/lotas/tabflow/internal/types"
)

// groupSnapshot caches the host's group listing for a short window. It is
// only touched under the engine mutex.
type groupSnapshot struct {
	host host.Host
	ttl  time.Duration
	now  func() time.Time

	groups    []types.TabGroup
	fetchedAt time.Time
	valid     bool
}

func newGroupSnapshot(h host.Host, ttl time.Duration, now func() time.Time) *groupSnapshot {
	return &groupSnapshot{host: h, ttl: ttl, now: now}
}

// list returns the cached listing while it is younger than the TTL,
// otherwise queries the host.
func (s *groupSnapshot) list(ctx context.Context) ([]types.TabGroup, error) {
	if s.valid && s.now().Sub(s.fetchedAt) < s.ttl {
		return s.groups, nil
	}
	groups, err := s.host.QueryGroups(ctx)
	if err != nil {
		return nil, err
	}
	s.groups = groups
	s.fetchedAt = s.now()
	s.valid = true
	return groups, nil
}

func (s *groupSnapshot) invalidate() {
	s.groups = nil
	s.valid = false
}
