package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/huddle/internal/domain"
)

//go:generate mockgen -source=repository.go -destination=mocks/mock_repository.go -package=mocks

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.UserStatus) error
}

type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Room, error)
	// ListVisible returns public rooms plus private rooms the user belongs to.
	ListVisible(ctx context.Context, userID uuid.UUID) ([]*domain.Room, error)
	// AddMember is idempotent and returns the updated room.
	AddMember(ctx context.Context, roomID, userID uuid.UUID) (*domain.Room, error)
}

// MessageRepository reads always return messages enriched with their sender.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	ListByRoom(ctx context.Context, roomID uuid.UUID) ([]*domain.Message, error)
}
