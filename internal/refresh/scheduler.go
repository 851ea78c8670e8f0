package refresh

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/redis/redisinsight-azure-auth/internal/clock"
	"github.com/redis/redisinsight-azure-auth/internal/dataplane"
	"github.com/redis/redisinsight-azure-auth/internal/events"
	"github.com/redis/redisinsight-azure-auth/pkg/logging"
	pkgoauth "github.com/redis/redisinsight-azure-auth/pkg/oauth"
)

// DefaultRefreshTimeout bounds one scheduled silent refresh.
const DefaultRefreshTimeout = 30 * time.Second

// MinRefreshInterval is the shortest delay between a refresh and the next one
// for the same identity. It applies when the renewed token already expires
// inside the refresh buffer.
const MinRefreshInterval = 30 * time.Second

// Refresher performs a forced silent refresh. It returns nil on failure.
type Refresher interface {
	RefreshFor(ctx context.Context, identityKey string, scopes pkgoauth.ScopeSet) *pkgoauth.TokenResult
}

// ConnectionSource reports the live connections bound to an identity.
type ConnectionSource interface {
	ConnectionsByIdentity(identityKey string) []dataplane.Connection
}

// Config configures a Scheduler.
type Config struct {
	// Scopes is the scope set refreshed when a timer fires.
	Scopes pkgoauth.ScopeSet

	// RefreshBuffer is how long before expiry the timer fires.
	RefreshBuffer time.Duration

	// RefreshTimeout bounds each refresh call.
	RefreshTimeout time.Duration

	Clock clock.Clock

	// Store defaults to NewMemoryStore().
	Store TimerStore
}

// Scheduler maintains at most one refresh timer per identity.
type Scheduler struct {
	refresher   Refresher
	connections ConnectionSource
	scopes      pkgoauth.ScopeSet
	buffer      time.Duration
	timeout     time.Duration
	clock       clock.Clock

	mu      sync.Mutex
	store   TimerStore
	nextGen uint64
}

// NewScheduler creates a scheduler that refreshes through refresher while
// connections reports live connections for an identity.
func NewScheduler(refresher Refresher, connections ConnectionSource, cfg Config) *Scheduler {
	buffer := cfg.RefreshBuffer
	if buffer <= 0 {
		buffer = pkgoauth.DefaultRefreshBuffer
	}
	timeout := cfg.RefreshTimeout
	if timeout <= 0 {
		timeout = DefaultRefreshTimeout
	}
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}

	return &Scheduler{
		refresher:   refresher,
		connections: connections,
		scopes:      cfg.Scopes,
		buffer:      buffer,
		timeout:     timeout,
		clock:       clock.Or(cfg.Clock),
		store:       store,
	}
}

// OnTokenAcquired schedules the next refresh for the acquired token.
func (s *Scheduler) OnTokenAcquired(_ context.Context, event events.TokenAcquired) error {
	if event.Result == nil {
		return nil
	}
	s.Schedule(event.IdentityKey, event.Result.ExpiresOn)
	return nil
}

// Schedule arranges a refresh for identityKey at expiresOn minus the refresh
// buffer, or immediately if that moment has passed. A token delivered by the
// refresh that is currently firing is never refreshed sooner than
// MinRefreshInterval. A call with the same
// expiresOn as the current entry is ignored. Otherwise the current entry is
// replaced and its timer stopped in the same critical section.
func (s *Scheduler) Schedule(identityKey string, expiresOn time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.store.Get(identityKey)
	if exists && existing.ExpiresOn.Equal(expiresOn) {
		logging.Debug("Refresh", "Refresh for identity %s already scheduled for this token", logging.TruncateKey(identityKey))
		return
	}

	now := s.clock.Now()
	fireAt := expiresOn.Add(-s.buffer)
	delay := fireAt.Sub(now)
	if delay < 0 {
		delay = 0
	}
	if exists && existing.State == StateFiring && delay < MinRefreshInterval {
		logging.Warn("Refresh", "Renewed token for identity %s expires within the refresh buffer, retrying in %s",
			logging.TruncateKey(identityKey), MinRefreshInterval)
		delay = MinRefreshInterval
		fireAt = now.Add(delay)
	}

	s.nextGen++
	gen := s.nextGen
	entry := ScheduledTimer{
		IdentityKey: identityKey,
		ExpiresOn:   expiresOn,
		FireAt:      fireAt,
		State:       StateScheduled,
		gen:         gen,
	}
	entry.timer = s.clock.AfterFunc(delay, func() { s.fire(identityKey, gen) })

	if previous, replaced := s.store.Set(entry); replaced && previous.timer != nil {
		previous.timer.Stop()
	}

	logging.Debug("Refresh", "Scheduled refresh for identity %s in %s", logging.TruncateKey(identityKey), delay.Round(time.Second))
}

func (s *Scheduler) fire(identityKey string, gen uint64) {
	s.mu.Lock()
	entry, ok := s.store.Get(identityKey)
	if !ok || entry.gen != gen {
		s.mu.Unlock()
		return
	}
	entry.State = StateFiring
	s.store.Set(entry)
	s.mu.Unlock()

	if len(s.connections.ConnectionsByIdentity(identityKey)) == 0 {
		s.finish(identityKey, gen)
		logging.Info("Refresh", "No live connections for identity %s, refresh cycle stopped", logging.TruncateKey(identityKey))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if result := s.refresher.RefreshFor(ctx, identityKey, s.scopes); result == nil {
		s.finish(identityKey, gen)
		logging.Warn("Refresh", "Scheduled refresh failed for identity %s, refresh cycle stopped", logging.TruncateKey(identityKey))
		return
	}

	// The acquisition notification normally replaced the entry already.
	if s.finish(identityKey, gen) {
		logging.Debug("Refresh", "Refresh for identity %s did not produce a new schedule", logging.TruncateKey(identityKey))
	}
}

// finish removes the entry for identityKey if it is still generation gen.
func (s *Scheduler) finish(identityKey string, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.store.Get(identityKey)
	if !ok || entry.gen != gen {
		return false
	}
	s.store.Delete(identityKey)
	return true
}

// Cancel stops the refresh cycle for identityKey. It is a no-op when nothing
// is scheduled.
func (s *Scheduler) Cancel(identityKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.store.Delete(identityKey); ok {
		if entry.timer != nil {
			entry.timer.Stop()
		}
		logging.Debug("Refresh", "Cancelled refresh for identity %s", logging.TruncateKey(identityKey))
	}
}

// CancelAll stops every refresh cycle.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range s.store.Keys() {
		if entry, ok := s.store.Delete(key); ok && entry.timer != nil {
			entry.timer.Stop()
		}
	}
}

// State returns the scheduling state of identityKey.
func (s *Scheduler) State(identityKey string) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.store.Get(identityKey); ok {
		return entry.State
	}
	return StateIdle
}

// Scheduled returns the entry for identityKey.
func (s *Scheduler) Scheduled(identityKey string) (ScheduledTimer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Get(identityKey)
}

// Entries returns every entry ordered by fire time.
func (s *Scheduler) Entries() []ScheduledTimer {
	s.mu.Lock()
	entries := make([]ScheduledTimer, 0)
	for _, key := range s.store.Keys() {
		if e, ok := s.store.Get(key); ok {
			entries = append(entries, e)
		}
	}
	s.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].FireAt.Before(entries[j].FireAt) })
	return entries
}

// Len returns the number of identities with a live entry.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.store.Keys())
}
