// Package relay routes chat and call-signaling events between live
// connections. It owns two registries, presence and room broadcast groups,
// and delegates durable state to the stores it is given.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/huddle/internal/domain"
	"github.com/immxrtalbeast/huddle/lib/logger/sl"
)

// Conn is the relay's view of one live channel.
type Conn interface {
	ID() string
	// Send queues a frame without blocking and reports whether it was accepted.
	Send(frame []byte) bool
	Close()
}

type UserStatusStore interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.UserStatus) error
}

type MessageStore interface {
	Create(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error)
}

// OutgoingMessage is a chat message as submitted by a client.
type OutgoingMessage struct {
	SenderID string
	RoomID   string
	Content  string
	Kind     string
	FileURL  string
	FileName string
}

// SendResult describes a message that was stored and fanned out.
type SendResult struct {
	Message   *domain.Message
	Delivered int
}

type session struct {
	conn  Conn
	rooms map[string]*Membership
}

// roomState serializes sends to one room and remembers the last stored
// timestamp so history order never disagrees with delivery order.
type roomState struct {
	mu   sync.Mutex
	last time.Time
}

// stamp returns now at storage precision, moved past the previous message.
func (s *roomState) stamp(now time.Time) time.Time {
	now = now.Truncate(time.Microsecond)
	if !now.After(s.last) {
		now = s.last.Add(time.Microsecond)
	}
	return now
}

type Relay struct {
	log      *slog.Logger
	users    UserStatusStore
	messages MessageStore
	presence *Presence
	groups   *Groups
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*session
	closed   bool

	roomsMu sync.Mutex
	rooms   map[string]*roomState

	userLocksMu sync.Mutex
	userLocks   map[string]*sync.Mutex
}

func New(users UserStatusStore, messages MessageStore, log *slog.Logger) *Relay {
	if log == nil {
		log = slog.Default()
	}
	return &Relay{
		log:       log,
		users:     users,
		messages:  messages,
		presence:  NewPresence(),
		groups:    NewGroups(),
		now:       func() time.Time { return time.Now().UTC() },
		sessions:  make(map[string]*session),
		rooms:     make(map[string]*roomState),
		userLocks: make(map[string]*sync.Mutex),
	}
}

func (r *Relay) Presence() *Presence { return r.presence }

func (r *Relay) Groups() *Groups { return r.groups }

// Attach makes conn reachable for broadcasts. After Shutdown the connection
// is closed straight away.
func (r *Relay) Attach(conn Conn) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		conn.Close()
		return
	}
	r.sessions[conn.ID()] = &session{conn: conn, rooms: make(map[string]*Membership)}
	count := len(r.sessions)
	r.mu.Unlock()

	r.log.Debug("connection attached", slog.String("conn_id", conn.ID()), slog.Int("connections", count))
}

// Detach tears a connection down: every room membership it holds is
// released and its presence entry, if any, is unregistered.
func (r *Relay) Detach(ctx context.Context, connID string) {
	r.mu.Lock()
	s, ok := r.sessions[connID]
	delete(r.sessions, connID)
	count := len(r.sessions)
	r.mu.Unlock()

	if ok {
		for _, m := range s.rooms {
			m.Release()
		}
	}

	r.UnregisterConnection(ctx, connID)
	r.log.Debug("connection detached", slog.String("conn_id", connID), slog.Int("connections", count))
}

// Connections reports how many connections are attached.
func (r *Relay) Connections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// RegisterConnection marks userID online on connID and tells everyone.
func (r *Relay) RegisterConnection(ctx context.Context, userID, connID string) {
	const op = "relay.RegisterConnection"
	log := r.log.With(slog.String("op", op), slog.String("user_id", userID), slog.String("conn_id", connID))

	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		log.Debug("relay is shut down, registration ignored")
		return
	}

	if evicted := r.presence.Register(userID, connID); evicted != "" {
		log.Info("connection rebound to another user", slog.String("previous_user_id", evicted))
		r.publishStatus(ctx, evicted)
	}
	r.publishStatus(ctx, userID)
	log.Info("user connected")
}

// UnregisterConnection marks the user bound to connID offline. It reports
// false, and emits nothing, when connID never registered.
func (r *Relay) UnregisterConnection(ctx context.Context, connID string) bool {
	const op = "relay.UnregisterConnection"

	userID, ok := r.presence.Unregister(connID)
	if !ok {
		return false
	}

	r.publishStatus(ctx, userID)
	r.log.Info("user disconnected",
		slog.String("op", op),
		slog.String("user_id", userID),
		slog.String("conn_id", connID),
	)
	return true
}

// publishStatus stores and broadcasts userID's status as the presence table
// has it right now. Calls for one user are serialized, so the last write
// always matches the last presence change.
func (r *Relay) publishStatus(ctx context.Context, userID string) {
	const op = "relay.publishStatus"
	log := r.log.With(slog.String("op", op), slog.String("user_id", userID))

	unlock := r.lockUser(userID)
	defer unlock()

	status := domain.UserStatusOffline
	if _, ok := r.presence.ConnFor(userID); ok {
		status = domain.UserStatusOnline
	}

	if id, err := uuid.Parse(userID); err != nil {
		log.Warn("status not persisted: malformed user id")
	} else if err := r.users.UpdateStatus(ctx, id, status); err != nil {
		log.Error("failed to persist user status", sl.Err(err))
	}

	frame, err := encode(domain.EventUserStatusChange, domain.StatusChange{UserID: userID, Status: status})
	if err != nil {
		log.Error("failed to encode status change", sl.Err(err))
		return
	}
	r.broadcastAll(frame, domain.EventUserStatusChange)
}

// JoinRoom subscribes connID to roomID's broadcast group. Room ids are not
// checked against stored rooms.
func (r *Relay) JoinRoom(connID, roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[connID]
	if !ok {
		return false
	}
	if _, joined := s.rooms[roomID]; !joined {
		s.rooms[roomID] = r.groups.Join(connID, roomID)
	}

	r.log.Debug("joined room", slog.String("conn_id", connID), slog.String("room_id", roomID))
	return true
}

func (r *Relay) LeaveRoom(connID, roomID string) bool {
	r.mu.Lock()
	s, ok := r.sessions[connID]
	var m *Membership
	if ok {
		m = s.rooms[roomID]
		delete(s.rooms, roomID)
	}
	r.mu.Unlock()

	if m == nil {
		return false
	}
	m.Release()

	r.log.Debug("left room", slog.String("conn_id", connID), slog.String("room_id", roomID))
	return true
}

// SendMessage stores msg and then delivers the stored, sender-enriched copy
// to every connection joined to the room, the sender's own included. Nothing
// is delivered when storing or re-reading fails. Sends to the same room are
// serialized so delivery order matches storage order.
func (r *Relay) SendMessage(ctx context.Context, connID string, msg OutgoingMessage) (SendResult, error) {
	const op = "relay.SendMessage"
	log := r.log.With(
		slog.String("op", op),
		slog.String("conn_id", connID),
		slog.String("room_id", msg.RoomID),
	)

	senderID, err := uuid.Parse(msg.SenderID)
	if err != nil {
		return SendResult{}, fmt.Errorf("%s: %w: malformed sender id", op, domain.ErrInvalidMessage)
	}
	roomID, err := uuid.Parse(msg.RoomID)
	if err != nil {
		return SendResult{}, fmt.Errorf("%s: %w: malformed room id", op, domain.ErrInvalidMessage)
	}

	room := r.lockRoom(msg.RoomID)
	defer room.mu.Unlock()

	m := domain.NewMessage(senderID, roomID, msg.Content, domain.MessageKind(strings.ToLower(msg.Kind)))
	m.FileURL = msg.FileURL
	m.FileName = msg.FileName
	m.CreatedAt = room.stamp(r.now())

	if err := r.messages.Create(ctx, m); err != nil {
		log.Error("failed to store message", sl.Err(err))
		return SendResult{}, fmt.Errorf("%s: %w", op, err)
	}
	room.last = m.CreatedAt

	stored, err := r.messages.GetByID(ctx, m.ID)
	if err != nil {
		log.Error("failed to load stored message", sl.Err(err), slog.String("message_id", m.ID.String()))
		return SendResult{}, fmt.Errorf("%s: %w", op, err)
	}

	frame, err := encode(domain.EventReceiveMessage, domain.NewMessageView(stored))
	if err != nil {
		return SendResult{}, fmt.Errorf("%s: %w", op, err)
	}

	delivered := r.broadcastRoom(msg.RoomID, frame, "", domain.EventReceiveMessage)
	log.Info("message relayed",
		slog.String("message_id", stored.ID.String()),
		slog.Int("delivered", delivered),
	)

	return SendResult{Message: stored, Delivered: delivered}, nil
}

// Signal forwards an opaque call-setup payload to every other connection in
// roomID. The payload is never inspected. With more than two connections in
// the room every one of them receives it; there is no per-peer addressing.
func (r *Relay) Signal(connID, event, roomID string, payload json.RawMessage) int {
	const op = "relay.Signal"

	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	frame, err := json.Marshal(domain.Envelope{Event: event, Data: payload})
	if err != nil {
		r.log.Error("failed to encode signal", slog.String("op", op), sl.Err(err))
		return 0
	}

	delivered := r.broadcastRoom(roomID, frame, connID, event)
	r.log.Debug("signal relayed",
		slog.String("op", op),
		slog.String("event", event),
		slog.String("conn_id", connID),
		slog.String("room_id", roomID),
		slog.Int("delivered", delivered),
	)
	return delivered
}

// Shutdown detaches every connection, so each registered user is stored
// offline before it returns, and then closes them. Later Attach and
// RegisterConnection calls are refused.
func (r *Relay) Shutdown(ctx context.Context) {
	const op = "relay.Shutdown"

	r.mu.Lock()
	r.closed = true
	conns := make([]Conn, 0, len(r.sessions))
	for _, s := range r.sessions {
		conns = append(conns, s.conn)
	}
	r.mu.Unlock()

	for _, c := range conns {
		r.Detach(ctx, c.ID())
		c.Close()
	}
	r.log.Info("relay shut down", slog.String("op", op), slog.Int("closed", len(conns)))
}

func (r *Relay) broadcastRoom(roomID string, frame []byte, exclude, event string) int {
	members := r.groups.Members(roomID)

	r.mu.RLock()
	targets := make([]Conn, 0, len(members))
	for _, connID := range members {
		if connID == exclude {
			continue
		}
		if s, ok := r.sessions[connID]; ok {
			targets = append(targets, s.conn)
		}
	}
	r.mu.RUnlock()

	return r.deliver(targets, frame, event)
}

func (r *Relay) broadcastAll(frame []byte, event string) int {
	r.mu.RLock()
	targets := make([]Conn, 0, len(r.sessions))
	for _, s := range r.sessions {
		targets = append(targets, s.conn)
	}
	r.mu.RUnlock()

	return r.deliver(targets, frame, event)
}

func (r *Relay) deliver(targets []Conn, frame []byte, event string) int {
	delivered := 0
	for _, c := range targets {
		if c.Send(frame) {
			delivered++
			continue
		}
		r.log.Debug("dropping broadcast event", slog.String("conn_id", c.ID()), slog.String("event", event))
	}
	return delivered
}

// lockRoom returns roomID's state locked; the caller unlocks it.
func (r *Relay) lockRoom(roomID string) *roomState {
	r.roomsMu.Lock()
	st, ok := r.rooms[roomID]
	if !ok {
		st = &roomState{}
		r.rooms[roomID] = st
	}
	r.roomsMu.Unlock()

	st.mu.Lock()
	return st
}

func (r *Relay) lockUser(userID string) func() {
	r.userLocksMu.Lock()
	l, ok := r.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		r.userLocks[userID] = l
	}
	r.userLocksMu.Unlock()

	l.Lock()
	return l.Unlock
}

func encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(domain.Envelope{Event: event, Data: raw})
}
