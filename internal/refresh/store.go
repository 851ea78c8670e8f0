package refresh

import (
	"time"

	"github.com/redis/redisinsight-azure-auth/internal/clock"
)

// State is the scheduling state of one identity.
type State int

const (
	StateIdle State = iota
	StateScheduled
	StateFiring
)

func (s State) String() string {
	switch s {
	case StateScheduled:
		return "scheduled"
	case StateFiring:
		return "firing"
	default:
		return "idle"
	}
}

// ScheduledTimer is the live timer entry for one identity.
type ScheduledTimer struct {
	IdentityKey string
	ExpiresOn   time.Time
	FireAt      time.Time
	State       State

	timer clock.Timer
	gen   uint64
}

// TimerStore holds the timer entries keyed by identity. Implementations are
// not required to be safe for concurrent use; the Scheduler serializes access.
type TimerStore interface {
	Get(identityKey string) (ScheduledTimer, bool)
	// Set stores entry and returns the entry it replaced, if any.
	Set(entry ScheduledTimer) (previous ScheduledTimer, replaced bool)
	Delete(identityKey string) (ScheduledTimer, bool)
	Keys() []string
}

type memoryStore struct {
	entries map[string]ScheduledTimer
}

// NewMemoryStore returns a map-backed TimerStore.
func NewMemoryStore() TimerStore {
	return &memoryStore{entries: make(map[string]ScheduledTimer)}
}

func (s *memoryStore) Get(identityKey string) (ScheduledTimer, bool) {
	e, ok := s.entries[identityKey]
	return e, ok
}

func (s *memoryStore) Set(entry ScheduledTimer) (ScheduledTimer, bool) {
	previous, ok := s.entries[entry.IdentityKey]
	s.entries[entry.IdentityKey] = entry
	return previous, ok
}

func (s *memoryStore) Delete(identityKey string) (ScheduledTimer, bool) {
	e, ok := s.entries[identityKey]
	if ok {
		delete(s.entries, identityKey)
	}
	return e, ok
}

func (s *memoryStore) Keys() []string {
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	return keys
}
