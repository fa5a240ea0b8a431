package chat

import "sync"

// Handle is an opaque reference to one live connection. Two handles are the
// same connection iff their session ids match.
type Handle interface {
	SessionID() string
}

// Registry tracks which users are reachable for live delivery right now.
// One authoritative handle per user: a later Register replaces an earlier
// one. Nothing is persisted; after a restart every user is simply offline
// until they reconnect.
//
// Extension point: multi-device support would turn the value into a set of
// handles and fan live delivery out to all of them. Not implemented.
type Registry struct {
	sync.RWMutex
	conns map[string]Handle
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]Handle),
	}
}

// Register maps the user to the handle, replacing any prior handle for the
// same user. It returns the replaced handle, if any.
func (r *Registry) Register(userID string, h Handle) Handle {
	r.Lock()
	prev := r.conns[userID]
	r.conns[userID] = h
	r.Unlock()
	return prev
}

// Unregister removes the mapping only if h is still the registered handle
// for the user. A disconnect of a superseded connection is a no-op, so a
// stale disconnect arriving after a reconnect cannot evict the new entry.
func (r *Registry) Unregister(userID string, h Handle) bool {
	r.Lock()
	defer r.Unlock()
	cur, ok := r.conns[userID]
	if !ok || cur.SessionID() != h.SessionID() {
		return false
	}
	delete(r.conns, userID)
	return true
}

// Lookup returns the registered handle for the user, if any.
func (r *Registry) Lookup(userID string) (Handle, bool) {
	r.RLock()
	h, ok := r.conns[userID]
	r.RUnlock()
	return h, ok
}

func (r *Registry) Len() int {
	r.RLock()
	n := len(r.conns)
	r.RUnlock()
	return n
}
