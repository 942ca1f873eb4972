package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/huddle/internal/domain"
	"github.com/immxrtalbeast/huddle/internal/repository"
	"github.com/immxrtalbeast/huddle/internal/repository/mocks"
	"github.com/immxrtalbeast/huddle/lib/logger/handlers/slogdiscard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fakeConn struct {
	id string

	mu     sync.Mutex
	frames [][]byte
	full   bool
	closed bool
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full || c.closed {
		return false
	}
	c.frames = append(c.frames, append([]byte(nil), frame...))
	return true
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) envelopes(t *testing.T) []domain.Envelope {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]domain.Envelope, 0, len(c.frames))
	for _, f := range c.frames {
		var env domain.Envelope
		require.NoError(t, json.Unmarshal(f, &env))
		out = append(out, env)
	}
	return out
}

func (c *fakeConn) only(t *testing.T, event string) []domain.Envelope {
	t.Helper()
	var out []domain.Envelope
	for _, env := range c.envelopes(t) {
		if env.Event == event {
			out = append(out, env)
		}
	}
	return out
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}

type fixture struct {
	relay    *Relay
	users    *repository.InMemoryUserRepository
	messages *repository.InMemoryMessageRepository
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	users := repository.NewInMemoryUserRepository()
	messages := repository.NewInMemoryMessageRepository(users)
	return fixture{
		relay:    New(users, messages, slogdiscard.NewDiscardLogger()),
		users:    users,
		messages: messages,
	}
}

func (f fixture) user(t *testing.T, name string) *domain.User {
	t.Helper()
	u := domain.NewUser(name, name+"@example.com", "hash")
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func (f fixture) connect(t *testing.T, connID string, user *domain.User) *fakeConn {
	t.Helper()
	c := newFakeConn(connID)
	f.relay.Attach(c)
	if user != nil {
		f.relay.RegisterConnection(context.Background(), user.ID.String(), connID)
	}
	return c
}

func decodeView(t *testing.T, env domain.Envelope) domain.MessageView {
	t.Helper()
	var view domain.MessageView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	return view
}

func decodeStatus(t *testing.T, env domain.Envelope) domain.StatusChange {
	t.Helper()
	var sc domain.StatusChange
	require.NoError(t, json.Unmarshal(env.Data, &sc))
	return sc
}

func TestRegisterConnectionBroadcastsStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	observer := f.connect(t, "observer", nil)

	f.connect(t, "c1", alice)

	statuses := observer.only(t, domain.EventUserStatusChange)
	require.Len(t, statuses, 1)
	sc := decodeStatus(t, statuses[0])
	assert.Equal(t, alice.ID.String(), sc.UserID)
	assert.Equal(t, domain.UserStatusOnline, sc.Status)

	stored, err := f.users.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.UserStatusOnline, stored.Status)
}

func TestRegisterConnectionLastWriteWins(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")

	f.connect(t, "c1", alice)
	f.connect(t, "c2", alice)

	connID, ok := f.relay.Presence().ConnFor(alice.ID.String())
	require.True(t, ok)
	assert.Equal(t, "c2", connID)
	assert.Equal(t, 1, f.relay.Presence().Len())
}

func TestRegisterConnectionRebindMarksPreviousUserOffline(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	observer := f.connect(t, "observer", nil)

	f.connect(t, "c1", alice)
	observer.reset()
	f.relay.RegisterConnection(context.Background(), bob.ID.String(), "c1")

	statuses := observer.only(t, domain.EventUserStatusChange)
	require.Len(t, statuses, 2)
	assert.Equal(t, domain.StatusChange{UserID: alice.ID.String(), Status: domain.UserStatusOffline}, decodeStatus(t, statuses[0]))
	assert.Equal(t, domain.StatusChange{UserID: bob.ID.String(), Status: domain.UserStatusOnline}, decodeStatus(t, statuses[1]))
}

func TestUnregisterNeverRegisteredIsNoop(t *testing.T) {
	f := newFixture(t)
	observer := f.connect(t, "observer", nil)
	f.connect(t, "anon", nil)

	assert.False(t, f.relay.UnregisterConnection(context.Background(), "anon"))
	f.relay.Detach(context.Background(), "anon")

	assert.Empty(t, observer.envelopes(t))
	assert.Equal(t, 1, f.relay.Connections())
}

func TestSendMessageDeliversOncePerRoomMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	room := uuid.New().String()

	c1 := f.connect(t, "c1", alice)
	c2 := f.connect(t, "c2", nil)
	c3 := f.connect(t, "c3", nil)
	outsider := f.connect(t, "c4", nil)
	for _, c := range []string{"c1", "c2", "c3"} {
		require.True(t, f.relay.JoinRoom(c, room))
	}
	// joining twice must not double deliveries
	require.True(t, f.relay.JoinRoom("c2", room))
	require.True(t, f.relay.JoinRoom("c4", uuid.New().String()))

	res, err := f.relay.SendMessage(ctx, "c1", OutgoingMessage{
		SenderID: alice.ID.String(),
		RoomID:   room,
		Content:  "hello",
		Kind:     "text",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Delivered)

	for _, c := range []*fakeConn{c1, c2, c3} {
		assert.Len(t, c.only(t, domain.EventReceiveMessage), 1, c.ID())
	}
	assert.Empty(t, outsider.only(t, domain.EventReceiveMessage))
}

func TestSendMessageOrderMatchesHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	roomID := uuid.New()

	f.connect(t, "c1", alice)
	bob := f.connect(t, "c2", nil)
	f.relay.JoinRoom("c1", roomID.String())
	f.relay.JoinRoom("c2", roomID.String())

	for _, content := range []string{"first", "second"} {
		_, err := f.relay.SendMessage(ctx, "c1", OutgoingMessage{SenderID: alice.ID.String(), RoomID: roomID.String(), Content: content})
		require.NoError(t, err)
	}

	got := bob.only(t, domain.EventReceiveMessage)
	require.Len(t, got, 2)
	assert.Equal(t, "first", decodeView(t, got[0]).Content)
	assert.Equal(t, "second", decodeView(t, got[1]).Content)

	history, err := f.messages.ListByRoom(ctx, roomID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "first", history[0].Content)
	assert.Equal(t, "second", history[1].Content)
}

func TestSendMessageConcurrentSendersKeepStorageOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	roomID := uuid.New()
	watcher := f.connect(t, "watcher", nil)
	f.relay.JoinRoom("watcher", roomID.String())

	const senders, perSender = 4, 10
	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		u := f.user(t, uuid.NewString()[:8])
		connID := u.ID.String()
		f.connect(t, connID, u)
		f.relay.JoinRoom(connID, roomID.String())

		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perSender; j++ {
				_, err := f.relay.SendMessage(ctx, connID, OutgoingMessage{SenderID: u.ID.String(), RoomID: roomID.String(), Content: "m"})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	history, err := f.messages.ListByRoom(ctx, roomID)
	require.NoError(t, err)
	delivered := watcher.only(t, domain.EventReceiveMessage)
	require.Len(t, delivered, senders*perSender)
	require.Len(t, history, senders*perSender)
	for i := range history {
		assert.Equal(t, history[i].ID.String(), decodeView(t, delivered[i]).ID)
	}
}

func TestSendMessageRoundTripsThroughHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	roomID := uuid.New()

	c1 := f.connect(t, "c1", alice)
	f.relay.JoinRoom("c1", roomID.String())

	_, err := f.relay.SendMessage(ctx, "c1", OutgoingMessage{
		SenderID: alice.ID.String(),
		RoomID:   roomID.String(),
		Content:  "see attached",
		Kind:     "file",
		FileURL:  "http://localhost:5000/uploads/1700000000000-a.pdf",
		FileName: "a.pdf",
	})
	require.NoError(t, err)

	got := c1.only(t, domain.EventReceiveMessage)
	require.Len(t, got, 1)
	broadcast := decodeView(t, got[0])

	history, err := f.messages.ListByRoom(ctx, roomID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	fetched := domain.NewMessageView(history[0])

	assert.Equal(t, fetched.ID, broadcast.ID)
	assert.Equal(t, fetched.Content, broadcast.Content)
	assert.Equal(t, fetched.Type, broadcast.Type)
	assert.Equal(t, fetched.FileURL, broadcast.FileURL)
	assert.Equal(t, fetched.FileName, broadcast.FileName)
	assert.Equal(t, fetched.Sender, broadcast.Sender)
	assert.True(t, fetched.Timestamp.Equal(broadcast.Timestamp))
}

func TestAliceAndBobScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	general := uuid.New().String()

	f.connect(t, "alice-conn", alice)
	require.True(t, f.relay.JoinRoom("alice-conn", general))
	bobConn := f.connect(t, "bob-conn", bob)
	require.True(t, f.relay.JoinRoom("bob-conn", general))

	sentAt := time.Now().UTC()
	_, err := f.relay.SendMessage(ctx, "alice-conn", OutgoingMessage{
		SenderID: alice.ID.String(),
		RoomID:   general,
		Content:  "hi",
		Kind:     "text",
	})
	require.NoError(t, err)

	got := bobConn.only(t, domain.EventReceiveMessage)
	require.Len(t, got, 1)
	view := decodeView(t, got[0])
	assert.Equal(t, "alice", view.Sender.Username)
	assert.Equal(t, "hi", view.Content)
	assert.Equal(t, domain.MessageKindText, view.Type)
	assert.False(t, view.Timestamp.Before(sentAt), "server timestamp must not precede the send")
}

func TestDetachWithoutLeaveCleansUp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	general := uuid.New().String()
	random := uuid.New().String()

	f.connect(t, "alice-conn", alice)
	f.relay.JoinRoom("alice-conn", general)
	f.relay.JoinRoom("alice-conn", random)
	bobConn := f.connect(t, "bob-conn", bob)
	f.relay.JoinRoom("bob-conn", general)
	bobConn.reset()

	f.relay.Detach(ctx, "alice-conn")

	_, ok := f.relay.Presence().ConnFor(alice.ID.String())
	assert.False(t, ok)
	assert.False(t, f.relay.Groups().Contains(general, "alice-conn"))
	assert.False(t, f.relay.Groups().Contains(random, "alice-conn"))
	assert.Equal(t, 1, f.relay.Groups().Rooms(), "the room only alice had joined is dropped")

	statuses := bobConn.only(t, domain.EventUserStatusChange)
	require.Len(t, statuses, 1)
	assert.Equal(t, domain.StatusChange{UserID: alice.ID.String(), Status: domain.UserStatusOffline}, decodeStatus(t, statuses[0]))

	stored, err := f.users.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.UserStatusOffline, stored.Status)

	res, err := f.relay.SendMessage(ctx, "bob-conn", OutgoingMessage{SenderID: bob.ID.String(), RoomID: general, Content: "still there?"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Delivered)
}

func TestLeaveRoomStopsDelivery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	room := uuid.New().String()

	f.connect(t, "c1", alice)
	c2 := f.connect(t, "c2", nil)
	f.relay.JoinRoom("c1", room)
	f.relay.JoinRoom("c2", room)

	assert.True(t, f.relay.LeaveRoom("c2", room))
	assert.False(t, f.relay.LeaveRoom("c2", room))
	assert.False(t, f.relay.LeaveRoom("ghost", room))

	_, err := f.relay.SendMessage(ctx, "c1", OutgoingMessage{SenderID: alice.ID.String(), RoomID: room, Content: "x"})
	require.NoError(t, err)
	assert.Empty(t, c2.only(t, domain.EventReceiveMessage))
}

func TestJoinRoomRequiresAttachedConnection(t *testing.T) {
	f := newFixture(t)

	assert.False(t, f.relay.JoinRoom("ghost", "room"))
	assert.Zero(t, f.relay.Groups().Rooms())
}

func TestSendMessageStoreFailureSkipsBroadcast(t *testing.T) {
	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserRepository(ctrl)
	messages := mocks.NewMockMessageRepository(ctrl)
	r := New(users, messages, slogdiscard.NewDiscardLogger())

	c := newFakeConn("c1")
	r.Attach(c)
	room := uuid.New().String()
	r.JoinRoom("c1", room)

	dbErr := errors.New("connection refused")
	messages.EXPECT().Create(gomock.Any(), gomock.Any()).Return(dbErr)

	res, err := r.SendMessage(context.Background(), "c1", OutgoingMessage{SenderID: uuid.NewString(), RoomID: room, Content: "lost"})
	assert.ErrorIs(t, err, dbErr)
	assert.Zero(t, res.Delivered)
	assert.Empty(t, c.envelopes(t))
}

func TestSendMessageReloadFailureSkipsBroadcast(t *testing.T) {
	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserRepository(ctrl)
	messages := mocks.NewMockMessageRepository(ctrl)
	r := New(users, messages, slogdiscard.NewDiscardLogger())

	c := newFakeConn("c1")
	r.Attach(c)
	room := uuid.New().String()
	r.JoinRoom("c1", room)

	messages.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
	messages.EXPECT().GetByID(gomock.Any(), gomock.Any()).Return(nil, repository.ErrMessageNotFound)

	_, err := r.SendMessage(context.Background(), "c1", OutgoingMessage{SenderID: uuid.NewString(), RoomID: room, Content: "lost"})
	assert.ErrorIs(t, err, repository.ErrMessageNotFound)
	assert.Empty(t, c.envelopes(t))
}

func TestSendMessageRejectsMalformedIDs(t *testing.T) {
	f := newFixture(t)
	f.connect(t, "c1", nil)

	_, err := f.relay.SendMessage(context.Background(), "c1", OutgoingMessage{SenderID: "1", RoomID: uuid.NewString(), Content: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidMessage)

	_, err = f.relay.SendMessage(context.Background(), "c1", OutgoingMessage{SenderID: uuid.NewString(), RoomID: "100", Content: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidMessage)

	_, err = f.relay.SendMessage(context.Background(), "c1", OutgoingMessage{SenderID: uuid.NewString(), RoomID: uuid.NewString(), Content: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidMessage)
}

func TestStatusBroadcastSurvivesStoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserRepository(ctrl)
	messages := mocks.NewMockMessageRepository(ctrl)
	r := New(users, messages, slogdiscard.NewDiscardLogger())

	observer := newFakeConn("observer")
	r.Attach(observer)

	userID := uuid.New()
	users.EXPECT().UpdateStatus(gomock.Any(), userID, domain.UserStatusOnline).Return(errors.New("db down"))
	r.RegisterConnection(context.Background(), userID.String(), "c1")

	// malformed ids never reach the store
	r.RegisterConnection(context.Background(), "1", "c2")

	statuses := observer.only(t, domain.EventUserStatusChange)
	require.Len(t, statuses, 2)
	assert.Equal(t, userID.String(), decodeStatus(t, statuses[0]).UserID)
	assert.Equal(t, "1", decodeStatus(t, statuses[1]).UserID)
}

func TestSignalSkipsSender(t *testing.T) {
	f := newFixture(t)
	room := uuid.New().String()
	c1 := f.connect(t, "c1", nil)
	c2 := f.connect(t, "c2", nil)
	other := f.connect(t, "c3", nil)
	f.relay.JoinRoom("c1", room)
	f.relay.JoinRoom("c2", room)

	offer := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	assert.Equal(t, 1, f.relay.Signal("c1", domain.EventOffer, room, offer))

	assert.Empty(t, c1.envelopes(t))
	assert.Empty(t, other.envelopes(t))
	got := c2.envelopes(t)
	require.Len(t, got, 1)
	assert.Equal(t, domain.EventOffer, got[0].Event)
	assert.JSONEq(t, string(offer), string(got[0].Data))
}

func TestSignalReachesEveryOtherPeer(t *testing.T) {
	f := newFixture(t)
	room := uuid.New().String()
	conns := make([]*fakeConn, 0, 3)
	for _, id := range []string{"c1", "c2", "c3"} {
		conns = append(conns, f.connect(t, id, nil))
		f.relay.JoinRoom(id, room)
	}

	assert.Equal(t, 2, f.relay.Signal("c1", domain.EventEndCall, room, nil))
	for _, c := range conns[1:] {
		got := c.envelopes(t)
		require.Len(t, got, 1)
		assert.Equal(t, domain.EventEndCall, got[0].Event)
		assert.Equal(t, "null", string(got[0].Data))
	}
}

func TestSignalToEmptyRoom(t *testing.T) {
	f := newFixture(t)
	f.connect(t, "c1", nil)

	assert.Zero(t, f.relay.Signal("c1", domain.EventAnswer, "nobody-here", json.RawMessage(`{}`)))
}

func TestFullSendBufferDropsFrame(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	room := uuid.New().String()

	f.connect(t, "c1", alice)
	slow := f.connect(t, "slow", nil)
	slow.full = true
	f.relay.JoinRoom("c1", room)
	f.relay.JoinRoom("slow", room)

	res, err := f.relay.SendMessage(context.Background(), "c1", OutgoingMessage{SenderID: alice.ID.String(), RoomID: room, Content: "x"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Delivered)
	assert.Empty(t, slow.envelopes(t))
}

func TestShutdownClosesConnections(t *testing.T) {
	f := newFixture(t)
	c1 := f.connect(t, "c1", nil)
	c2 := f.connect(t, "c2", nil)

	f.relay.Shutdown(context.Background())

	assert.True(t, c1.closed)
	assert.True(t, c2.closed)
}

func TestShutdownStoresUsersOffline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	room := uuid.NewString()

	f.connect(t, "c1", alice)
	f.connect(t, "c2", bob)
	f.connect(t, "c3", nil)
	f.relay.JoinRoom("c1", room)
	f.relay.JoinRoom("c2", room)

	f.relay.Shutdown(ctx)

	for _, u := range []*domain.User{alice, bob} {
		stored, err := f.users.GetByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.UserStatusOffline, stored.Status, u.Username)
	}
	assert.Zero(t, f.relay.Connections())
	assert.Zero(t, f.relay.Presence().Len())
	assert.Zero(t, f.relay.Groups().Rooms())

	// a read loop finishing late must not undo the teardown
	f.relay.Detach(ctx, "c1")
	stored, err := f.users.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.UserStatusOffline, stored.Status)
}

func TestShutdownRefusesNewConnections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")

	f.relay.Shutdown(ctx)

	late := f.connect(t, "late", alice)
	assert.True(t, late.closed)
	assert.Zero(t, f.relay.Connections())
	assert.Zero(t, f.relay.Presence().Len())

	stored, err := f.users.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.UserStatusOffline, stored.Status)
}

func TestStatusFollowsLatestPresence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")

	f.connect(t, "old", alice)

	// the old connection drops out of presence, the user reconnects, and
	// only then does the old connection's status write run
	userID, ok := f.relay.presence.Unregister("old")
	require.True(t, ok)
	f.connect(t, "new", alice)
	f.relay.publishStatus(ctx, userID)

	stored, err := f.users.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.UserStatusOnline, stored.Status)
}

func TestSendMessageTimestampsStrictlyIncrease(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	roomID := uuid.New()
	f.connect(t, "c1", alice)
	f.relay.JoinRoom("c1", roomID.String())

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := []time.Time{base, base, base.Add(-time.Minute), base.Add(time.Nanosecond)}
	var tick int
	f.relay.now = func() time.Time {
		now := clock[tick]
		tick++
		return now
	}

	contents := []string{"one", "two", "three", "four"}
	var stamps []time.Time
	for _, content := range contents {
		res, err := f.relay.SendMessage(ctx, "c1", OutgoingMessage{SenderID: alice.ID.String(), RoomID: roomID.String(), Content: content})
		require.NoError(t, err)
		stamps = append(stamps, res.Message.CreatedAt)
	}

	assert.True(t, stamps[0].Equal(base))
	for i := 1; i < len(stamps); i++ {
		assert.True(t, stamps[i].After(stamps[i-1]), "message %d at %s, previous at %s", i, stamps[i], stamps[i-1])
		assert.Zero(t, stamps[i].Nanosecond()%int(time.Microsecond))
	}

	history, err := f.messages.ListByRoom(ctx, roomID)
	require.NoError(t, err)
	got := make([]string, 0, len(history))
	for _, msg := range history {
		got = append(got, msg.Content)
	}
	assert.Equal(t, contents, got)
}
