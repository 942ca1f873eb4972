package converter

import (
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/huddle/internal/domain"
)

type RoomResponse struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	IsPrivate   bool        `json:"isPrivate"`
	CreatedBy   RoomCreator `json:"createdBy"`
	Members     []uuid.UUID `json:"members"`
	CreatedAt   time.Time   `json:"createdAt"`
}

type RoomCreator struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}

func RoomToApi(r *domain.Room) *RoomResponse {
	members := r.Members
	if members == nil {
		members = []uuid.UUID{}
	}
	return &RoomResponse{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		IsPrivate:   r.IsPrivate,
		CreatedBy:   RoomCreator{ID: r.CreatedBy, Username: r.CreatorName},
		Members:     members,
		CreatedAt:   r.CreatedAt,
	}
}

func RoomsToApi(rooms []*domain.Room) []*RoomResponse {
	out := make([]*RoomResponse, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, RoomToApi(r))
	}
	return out
}
