package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/redisinsight-azure-auth/pkg/logging"
	pkgoauth "github.com/redis/redisinsight-azure-auth/pkg/oauth"
)

// TokenAcquired is published after a token has been successfully acquired.
type TokenAcquired struct {
	// IdentityKey is the home account ID of the identity the token belongs to.
	IdentityKey string

	Result *pkgoauth.TokenResult
}

// Handler receives token acquisition notifications.
type Handler func(ctx context.Context, event TokenAcquired) error

// Notifier fans notifications out to subscribed handlers.
type Notifier struct {
	mu       sync.RWMutex
	handlers map[uint64]Handler
	order    []uint64
	nextID   uint64
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{handlers: make(map[uint64]Handler)}
}

// Subscribe registers h and returns a function that removes it.
// The returned function is safe to call more than once.
func (n *Notifier) Subscribe(h Handler) (unsubscribe func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.nextID++
	id := n.nextID
	n.handlers[id] = h
	n.order = append(n.order, id)

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()

		if _, ok := n.handlers[id]; !ok {
			return
		}
		delete(n.handlers, id)
		for i, existing := range n.order {
			if existing == id {
				n.order = append(n.order[:i], n.order[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers event to every handler in subscription order.
func (n *Notifier) Publish(ctx context.Context, event TokenAcquired) {
	n.mu.RLock()
	handlers := make([]Handler, 0, len(n.order))
	for _, id := range n.order {
		handlers = append(handlers, n.handlers[id])
	}
	n.mu.RUnlock()

	for _, h := range handlers {
		if err := invoke(ctx, h, event); err != nil {
			logging.Warn("Events", "Token subscriber failed for identity %s: %v",
				logging.TruncateKey(event.IdentityKey), err)
		}
	}
}

// Len returns the number of subscribed handlers.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.handlers)
}

func invoke(ctx context.Context, h Handler, event TokenAcquired) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h(ctx, event)
}

// ForScopes wraps h so that it only sees notifications for tokens acquired
// with exactly the given scope set.
func ForScopes(scopes pkgoauth.ScopeSet, h Handler) Handler {
	key := scopes.Key()
	return func(ctx context.Context, event TokenAcquired) error {
		if event.Result == nil || event.Result.Scopes.Key() != key {
			return nil
		}
		return h(ctx, event)
	}
}
