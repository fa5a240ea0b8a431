package ws

import "sync"

// handlerStore holds every live handler by session id, for shutdown and for
// dropping a closed handler exactly once.
type handlerStore struct {
	sync.RWMutex
	handlers map[string]*Handler
}

func (hs *handlerStore) add(handler *Handler) {
	hs.Lock()
	hs.handlers[handler.session.SID] = handler
	hs.Unlock()
}

func (hs *handlerStore) del(sid string) bool {
	hs.Lock()
	defer hs.Unlock()
	if _, ok := hs.handlers[sid]; ok {
		delete(hs.handlers, sid)
		return true
	}
	return false
}

func (hs *handlerStore) close() {
	hs.RLock()
	defer hs.RUnlock()
	for _, h := range hs.handlers {
		h.close(serverStop)
	}
}
