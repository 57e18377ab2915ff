package ws

import "sync"

// Registry maps an active connection id to the display name it joined with. It is the only
// durable identity record, everything else about a connection is ephemeral.
type Registry struct {
	mu    sync.RWMutex
	nicks map[string]string
}

func NewRegistry() *Registry {
	return &Registry{nicks: make(map[string]string)}
}

// Register stores the display name for the connection, overwriting any previous mapping
// (last join wins).
func (r *Registry) Register(connId, nick string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nicks[connId] = nick
}

// Resolve looks up the display name of a connection. An absent mapping is a valid state,
// the connection simply has not joined yet.
func (r *Registry) Resolve(connId string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	nick, ok := r.nicks[connId]
	return nick, ok
}

// Unregister removes the mapping, called exactly once on final disconnect.
func (r *Registry) Unregister(connId string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.nicks, connId)
}
