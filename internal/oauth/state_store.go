package oauth

import (
	"sync"
	"time"

	"github.com/redis/redisinsight-azure-auth/internal/clock"
	"github.com/redis/redisinsight-azure-auth/pkg/logging"
	pkgoauth "github.com/redis/redisinsight-azure-auth/pkg/oauth"
)

// DefaultPendingRequestTTL is how long an authorization request may stay pending.
const DefaultPendingRequestTTL = 10 * time.Minute

// PendingAuthRequest is created when an authorization URL is generated and
// consumed exactly once by the matching callback. It is never mutated.
type PendingAuthRequest struct {
	State     string
	Verifier  string
	SessionID string
	Scopes    pkgoauth.ScopeSet
	CreatedAt time.Time
}

// StateStore provides thread-safe storage for pending authorization requests
// keyed by their correlation state.
type StateStore struct {
	mu      sync.Mutex
	pending map[string]*PendingAuthRequest

	ttl   time.Duration
	clock clock.Clock

	stopOnce    sync.Once
	stopCleanup chan struct{}
}

// NewStateStore creates a state store and starts its background cleanup.
// Call Stop to end the cleanup loop.
func NewStateStore(ttl time.Duration, clk clock.Clock) *StateStore {
	if ttl <= 0 {
		ttl = DefaultPendingRequestTTL
	}
	ss := &StateStore{
		pending:     make(map[string]*PendingAuthRequest),
		ttl:         ttl,
		clock:       clock.Or(clk),
		stopCleanup: make(chan struct{}),
	}

	go ss.cleanupLoop()

	return ss
}

// Put stores req under req.State.
func (ss *StateStore) Put(req *PendingAuthRequest) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.pending[req.State] = req
}

// Take removes and returns the request stored under state. The lookup and the
// removal happen under one lock, so at most one caller ever receives a given
// request. Expired requests are removed and reported as absent.
func (ss *StateStore) Take(state string) (*PendingAuthRequest, bool) {
	ss.mu.Lock()
	req, ok := ss.pending[state]
	delete(ss.pending, state)
	ss.mu.Unlock()

	if !ok {
		return nil, false
	}
	if age := ss.clock.Now().Sub(req.CreatedAt); age > ss.ttl {
		logging.Warn("OAuth", "Authorization request expired: state=%s age=%v", logging.TruncateKey(state), age)
		return nil, false
	}
	return req, true
}

// Discard removes the request stored under state, if any.
func (ss *StateStore) Discard(state string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	delete(ss.pending, state)
}

// Len returns the number of pending requests.
func (ss *StateStore) Len() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return len(ss.pending)
}

// Stop stops the background cleanup goroutine. It is safe to call more than once.
func (ss *StateStore) Stop() {
	ss.stopOnce.Do(func() { close(ss.stopCleanup) })
}

// cleanupLoop periodically removes expired requests from the store.
func (ss *StateStore) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ss.cleanup()
		case <-ss.stopCleanup:
			return
		}
	}
}

// cleanup removes all expired requests from the store.
func (ss *StateStore) cleanup() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	now := ss.clock.Now()
	count := 0
	for state, req := range ss.pending {
		if now.Sub(req.CreatedAt) > ss.ttl {
			delete(ss.pending, state)
			count++
		}
	}

	if count > 0 {
		logging.Debug("OAuth", "Cleaned up %d expired authorization requests", count)
	}
}
