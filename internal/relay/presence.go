package relay

import "sync"

// Presence maps users to their single active connection. A second
// registration for the same user silently replaces the first; multi-device
// presence is not tracked.
type Presence struct {
	mu     sync.RWMutex
	byUser map[string]string
	byConn map[string]string
}

func NewPresence() *Presence {
	return &Presence{
		byUser: make(map[string]string),
		byConn: make(map[string]string),
	}
}

// Register binds userID to connID. It reports the user that connID was bound
// to before, if that was somebody else, so the caller can mark them offline.
func (p *Presence) Register(userID, connID string) (evicted string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if prevConn, ok := p.byUser[userID]; ok && prevConn != connID {
		delete(p.byConn, prevConn)
	}
	if prevUser, ok := p.byConn[connID]; ok && prevUser != userID {
		delete(p.byUser, prevUser)
		evicted = prevUser
	}

	p.byUser[userID] = connID
	p.byConn[connID] = userID
	return evicted
}

// Unregister drops whatever user connID is bound to. ok is false when the
// connection never registered or was superseded by a newer one.
func (p *Presence) Unregister(connID string) (userID string, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	userID, ok = p.byConn[connID]
	if !ok {
		return "", false
	}
	delete(p.byConn, connID)
	if p.byUser[userID] == connID {
		delete(p.byUser, userID)
	}
	return userID, true
}

func (p *Presence) ConnFor(userID string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	connID, ok := p.byUser[userID]
	return connID, ok
}

func (p *Presence) UserFor(connID string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	userID, ok := p.byConn[connID]
	return userID, ok
}

func (p *Presence) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byUser)
}
