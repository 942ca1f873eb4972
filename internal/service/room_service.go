package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/huddle/internal/domain"
	"github.com/immxrtalbeast/huddle/internal/repository"
	"github.com/immxrtalbeast/huddle/lib/logger/sl"
)

const (
	maxRoomNameLength        = 100
	maxRoomDescriptionLength = 1000
)

type RoomService struct {
	rooms repository.RoomRepository
	users repository.UserRepository
	log   *slog.Logger
}

func NewRoomService(rooms repository.RoomRepository, users repository.UserRepository, log *slog.Logger) *RoomService {
	if log == nil {
		log = slog.Default()
	}
	return &RoomService{rooms: rooms, users: users, log: log}
}

func (s *RoomService) CreateRoom(ctx context.Context, creator uuid.UUID, name, description string, isPrivate bool) (*domain.Room, error) {
	const op = "service.room.create"
	log := s.log.With(slog.String("op", op), slog.String("user_id", creator.String()))

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%s: %w: room name is required", op, ErrValidation)
	}
	if utf8.RuneCountInString(name) > maxRoomNameLength {
		return nil, fmt.Errorf("%s: %w: room name is too long", op, ErrValidation)
	}
	if utf8.RuneCountInString(description) > maxRoomDescriptionLength {
		return nil, fmt.Errorf("%s: %w: description is too long", op, ErrValidation)
	}
	if creator == uuid.Nil {
		return nil, fmt.Errorf("%s: %w: creator is required", op, ErrValidation)
	}

	room := domain.NewRoom(name, description, isPrivate, creator)
	if err := s.rooms.Create(ctx, room); err != nil {
		if !errors.Is(err, repository.ErrRoomNameExists) {
			log.Error("failed to create room", sl.Err(err))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	created, err := s.rooms.GetByID(ctx, room.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("room created",
		slog.String("room_id", created.ID.String()),
		slog.Bool("private", created.IsPrivate),
	)
	return created, nil
}

func (s *RoomService) ListRooms(ctx context.Context, userID uuid.UUID) ([]*domain.Room, error) {
	const op = "service.room.list"

	rooms, err := s.rooms.ListVisible(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rooms, nil
}

// JoinRoom adds userID to a public room. Private rooms are only re-joinable
// by their members; everyone else gets ErrRoomForbidden.
func (s *RoomService) JoinRoom(ctx context.Context, userID, roomID uuid.UUID) (*domain.Room, error) {
	const op = "service.room.join"
	log := s.log.With(
		slog.String("op", op),
		slog.String("user_id", userID.String()),
		slog.String("room_id", roomID.String()),
	)

	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if room.HasMember(userID) {
		return room, nil
	}
	if room.IsPrivate {
		log.Info("join rejected for private room")
		return nil, fmt.Errorf("%s: %w", op, ErrRoomForbidden)
	}

	joined, err := s.rooms.AddMember(ctx, roomID, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user joined room")
	return joined, nil
}

// AddMember lets an existing member bring another user into the room. It is
// the only way into a private room.
func (s *RoomService) AddMember(ctx context.Context, actor, roomID, userID uuid.UUID) (*domain.Room, error) {
	const op = "service.room.add_member"
	log := s.log.With(
		slog.String("op", op),
		slog.String("actor_id", actor.String()),
		slog.String("room_id", roomID.String()),
	)

	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !room.HasMember(actor) {
		return nil, fmt.Errorf("%s: %w", op, ErrRoomForbidden)
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	updated, err := s.rooms.AddMember(ctx, roomID, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("member added", slog.String("user_id", userID.String()))
	return updated, nil
}
