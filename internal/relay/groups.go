package relay

import "sync"

// Groups holds the broadcast group of every room: the set of connections
// currently joined to it. Empty groups are dropped.
type Groups struct {
	mu    sync.RWMutex
	rooms map[string]map[string]struct{}
}

func NewGroups() *Groups {
	return &Groups{rooms: make(map[string]map[string]struct{})}
}

// Membership is the handle returned by Join. Releasing it removes the
// connection from the room; releasing twice is a no-op.
type Membership struct {
	groups *Groups
	roomID string
	connID string
	once   sync.Once
}

func (m *Membership) RoomID() string { return m.roomID }

func (m *Membership) Release() {
	m.once.Do(func() {
		m.groups.remove(m.connID, m.roomID)
	})
}

func (g *Groups) Join(connID, roomID string) *Membership {
	g.mu.Lock()
	defer g.mu.Unlock()

	members, ok := g.rooms[roomID]
	if !ok {
		members = make(map[string]struct{})
		g.rooms[roomID] = members
	}
	members[connID] = struct{}{}

	return &Membership{groups: g, roomID: roomID, connID: connID}
}

func (g *Groups) remove(connID, roomID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	members, ok := g.rooms[roomID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(g.rooms, roomID)
	}
}

// Members returns a snapshot of the connections joined to roomID.
func (g *Groups) Members(roomID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	members := g.rooms[roomID]
	out := make([]string, 0, len(members))
	for connID := range members {
		out = append(out, connID)
	}
	return out
}

func (g *Groups) Contains(roomID, connID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.rooms[roomID][connID]
	return ok
}

func (g *Groups) Count(roomID string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms[roomID])
}

// Rooms returns how many rooms have at least one joined connection.
func (g *Groups) Rooms() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}
