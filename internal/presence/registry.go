// Package presence tracks which users currently hold a live real-time
// connection. Each user maps to at most one connection; a reconnect replaces
// the previous entry and leaves the older connection unreachable by pushes.
package presence

import (
	"sort"
	"sync"
)

type Registry struct {
	mu    sync.RWMutex
	conns map[string]string
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]string)}
}

// Register points userID at connID, replacing any earlier connection.
func (r *Registry) Register(userID, connID string) {
	if userID == "" || connID == "" {
		return
	}
	r.mu.Lock()
	r.conns[userID] = connID
	r.mu.Unlock()
}

func (r *Registry) Lookup(userID string) (string, bool) {
	r.mu.RLock()
	connID, ok := r.conns[userID]
	r.mu.RUnlock()
	return connID, ok
}

// Unregister removes the entry only while it still belongs to connID, so the
// late disconnect of a replaced connection keeps the newer one registered.
func (r *Registry) Unregister(userID, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.conns[userID]; !ok || current != connID {
		return false
	}
	delete(r.conns, userID)
	return true
}

// Online returns the ids of connected users in lexical order.
func (r *Registry) Online() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
