package dataplane

import (
	"sort"
	"sync"

	"github.com/redis/redisinsight-azure-auth/pkg/logging"
)

// Registry is an in-memory set of live connections indexed by ID and identity.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]Connection
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{connections: make(map[string]Connection)}
}

// Add registers c, replacing any connection with the same ID.
func (r *Registry) Add(c Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.connections[c.ID()] = c
	logging.Debug("Dataplane", "Registered connection %s for identity %s", c.ID(), logging.TruncateKey(c.IdentityKey()))
}

// Remove unregisters the connection with the given ID and returns it.
func (r *Registry) Remove(id string) (Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.connections[id]
	if ok {
		delete(r.connections, id)
	}
	return c, ok
}

// Get returns the connection with the given ID.
func (r *Registry) Get(id string) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.connections[id]
	return c, ok
}

// ConnectionsByIdentity returns the connections bound to identityKey, ordered by ID.
func (r *Registry) ConnectionsByIdentity(identityKey string) []Connection {
	if identityKey == "" {
		return nil
	}

	r.mu.RLock()
	var matches []Connection
	for _, c := range r.connections {
		if c.IdentityKey() == identityKey {
			matches = append(matches, c)
		}
	}
	r.mu.RUnlock()

	sortByID(matches)
	return matches
}

// RemoveIdentity unregisters and closes every connection bound to identityKey.
// It returns the number of connections closed.
func (r *Registry) RemoveIdentity(identityKey string) int {
	r.mu.Lock()
	var removed []Connection
	for id, c := range r.connections {
		if c.IdentityKey() == identityKey {
			removed = append(removed, c)
			delete(r.connections, id)
		}
	}
	r.mu.Unlock()

	for _, c := range removed {
		c.Close()
	}
	return len(removed)
}

// CloseAll unregisters and closes every connection.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := r.connections
	r.connections = make(map[string]Connection)
	r.mu.Unlock()

	for _, c := range all {
		c.Close()
	}
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}

func sortByID(connections []Connection) {
	sort.Slice(connections, func(i, j int) bool {
		return connections[i].ID() < connections[j].ID()
	})
}
