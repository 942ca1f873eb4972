package service

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/huddle/internal/domain"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRoomForbidden      = errors.New("room is private")
	ErrNoFile             = errors.New("no file uploaded")
	ErrFileTooLarge       = errors.New("file too large")
)

type UserInteractor interface {
	Register(ctx context.Context, username, email, password string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*Session, error)
	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type RoomInteractor interface {
	CreateRoom(ctx context.Context, creator uuid.UUID, name, description string, isPrivate bool) (*domain.Room, error)
	ListRooms(ctx context.Context, userID uuid.UUID) ([]*domain.Room, error)
	JoinRoom(ctx context.Context, userID, roomID uuid.UUID) (*domain.Room, error)
	AddMember(ctx context.Context, actor, roomID, userID uuid.UUID) (*domain.Room, error)
}

type MessageInteractor interface {
	History(ctx context.Context, userID, roomID uuid.UUID) ([]*domain.Message, error)
}

type UploadInteractor interface {
	Save(ctx context.Context, name string, size int64, r io.Reader) (*StoredFile, error)
}

// Session is the result of a successful login.
type Session struct {
	Token string
	User  *domain.User
}

// StoredFile describes an upload written to disk. Path is relative to the
// public uploads mount.
type StoredFile struct {
	Name         string
	OriginalName string
	Path         string
	Size         int64
}

type TokenIssuer interface {
	Issue(userID uuid.UUID) (string, error)
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}
