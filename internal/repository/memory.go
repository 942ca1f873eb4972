package repository

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/huddle/internal/domain"
)

type InMemoryUserRepository struct {
	mu        sync.RWMutex
	users     map[uuid.UUID]*domain.User
	emails    map[string]uuid.UUID
	usernames map[string]uuid.UUID
}

func NewInMemoryUserRepository() *InMemoryUserRepository {
	return &InMemoryUserRepository{
		users:     make(map[uuid.UUID]*domain.User),
		emails:    make(map[string]uuid.UUID),
		usernames: make(map[string]uuid.UUID),
	}
}

func (r *InMemoryUserRepository) Create(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	email := strings.ToLower(user.Email)
	if _, ok := r.emails[email]; ok {
		return ErrUserExists
	}
	if _, ok := r.usernames[user.Username]; ok {
		return ErrUserExists
	}

	stored := *user
	r.users[user.ID] = &stored
	r.emails[email] = user.ID
	r.usernames[user.Username] = user.ID
	return nil
}

func (r *InMemoryUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}

	cp := *user
	return &cp, nil
}

func (r *InMemoryUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.emails[strings.ToLower(email)]
	if !ok {
		return nil, ErrUserNotFound
	}

	cp := *r.users[id]
	return &cp, nil
}

func (r *InMemoryUserRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.UserStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}

	user.Status = status
	user.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *InMemoryUserRepository) sender(id uuid.UUID) *domain.MessageSender {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil
	}
	return &domain.MessageSender{ID: user.ID, Username: user.Username, Avatar: user.Avatar}
}

type InMemoryRoomRepository struct {
	mu    sync.RWMutex
	users *InMemoryUserRepository
	rooms map[uuid.UUID]*domain.Room
	names map[string]uuid.UUID
}

func NewInMemoryRoomRepository(users *InMemoryUserRepository) *InMemoryRoomRepository {
	return &InMemoryRoomRepository{
		users: users,
		rooms: make(map[uuid.UUID]*domain.Room),
		names: make(map[string]uuid.UUID),
	}
}

func (r *InMemoryRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.names[room.Name]; ok {
		return ErrRoomNameExists
	}

	r.rooms[room.ID] = cloneRoom(room)
	r.names[room.Name] = room.ID
	return nil
}

func (r *InMemoryRoomRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	room, ok := r.rooms[id]
	if !ok {
		r.mu.RUnlock()
		return nil, ErrRoomNotFound
	}
	cp := cloneRoom(room)
	r.mu.RUnlock()

	r.fillCreator(cp)
	return cp, nil
}

func (r *InMemoryRoomRepository) ListVisible(ctx context.Context, userID uuid.UUID) ([]*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	result := make([]*domain.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		if room.VisibleTo(userID) {
			result = append(result, cloneRoom(room))
		}
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	for _, room := range result {
		r.fillCreator(room)
	}
	return result, nil
}

func (r *InMemoryRoomRepository) AddMember(ctx context.Context, roomID, userID uuid.UUID) (*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	room, ok := r.rooms[roomID]
	if !ok {
		r.mu.Unlock()
		return nil, ErrRoomNotFound
	}
	if !room.HasMember(userID) {
		room.Members = append(room.Members, userID)
	}
	cp := cloneRoom(room)
	r.mu.Unlock()

	r.fillCreator(cp)
	return cp, nil
}

func (r *InMemoryRoomRepository) fillCreator(room *domain.Room) {
	if r.users == nil {
		return
	}
	if s := r.users.sender(room.CreatedBy); s != nil {
		room.CreatorName = s.Username
	}
}

func cloneRoom(room *domain.Room) *domain.Room {
	cp := *room
	cp.Members = slices.Clone(room.Members)
	return &cp
}

type InMemoryMessageRepository struct {
	mu     sync.RWMutex
	users  *InMemoryUserRepository
	byID   map[uuid.UUID]*domain.Message
	byRoom map[uuid.UUID][]uuid.UUID
}

func NewInMemoryMessageRepository(users *InMemoryUserRepository) *InMemoryMessageRepository {
	return &InMemoryMessageRepository{
		users:  users,
		byID:   make(map[uuid.UUID]*domain.Message),
		byRoom: make(map[uuid.UUID][]uuid.UUID),
	}
}

func (r *InMemoryMessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	stored := *msg
	stored.Sender = nil

	r.mu.Lock()
	defer r.mu.Unlock()

	r.byID[msg.ID] = &stored
	r.byRoom[msg.RoomID] = append(r.byRoom[msg.RoomID], msg.ID)
	return nil
}

func (r *InMemoryMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	msg, ok := r.byID[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrMessageNotFound
	}

	return r.enrich(msg), nil
}

func (r *InMemoryMessageRepository) ListByRoom(ctx context.Context, roomID uuid.UUID) ([]*domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	ids := r.byRoom[roomID]
	result := make([]*domain.Message, 0, len(ids))
	for _, id := range ids {
		result = append(result, r.byID[id])
	}
	r.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	for i, msg := range result {
		result[i] = r.enrich(msg)
	}
	return result, nil
}

func (r *InMemoryMessageRepository) enrich(msg *domain.Message) *domain.Message {
	cp := *msg
	if r.users != nil {
		cp.Sender = r.users.sender(msg.SenderID)
	}
	return &cp
}
