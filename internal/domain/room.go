package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Room is a named chat room. Members is the REST-level membership list used
// for visibility and private-room gating; the relay never consults it.
type Room struct {
	ID          uuid.UUID
	Name        string
	Description string
	IsPrivate   bool
	CreatedBy   uuid.UUID
	CreatorName string
	Members     []uuid.UUID
	CreatedAt   time.Time
}

// NewRoom builds a room whose only member is its creator.
func NewRoom(name, description string, isPrivate bool, createdBy uuid.UUID) *Room {
	return &Room{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		IsPrivate:   isPrivate,
		CreatedBy:   createdBy,
		Members:     []uuid.UUID{createdBy},
		CreatedAt:   time.Now().UTC(),
	}
}

func (r *Room) HasMember(userID uuid.UUID) bool {
	if r == nil {
		return false
	}
	return slices.Contains(r.Members, userID)
}

// VisibleTo reports whether the room shows up in the user's room list.
func (r *Room) VisibleTo(userID uuid.UUID) bool {
	return !r.IsPrivate || r.HasMember(userID)
}
