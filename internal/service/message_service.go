package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/huddle/internal/domain"
	"github.com/immxrtalbeast/huddle/internal/repository"
)

type MessageService struct {
	messages repository.MessageRepository
	rooms    repository.RoomRepository
	log      *slog.Logger
}

func NewMessageService(messages repository.MessageRepository, rooms repository.RoomRepository, log *slog.Logger) *MessageService {
	if log == nil {
		log = slog.Default()
	}
	return &MessageService{messages: messages, rooms: rooms, log: log}
}

// History returns the room's messages oldest first. Private rooms are only
// readable by their members.
func (s *MessageService) History(ctx context.Context, userID, roomID uuid.UUID) ([]*domain.Message, error) {
	const op = "service.message.history"

	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !room.VisibleTo(userID) {
		s.log.Info("history rejected for private room",
			slog.String("op", op),
			slog.String("user_id", userID.String()),
			slog.String("room_id", roomID.String()),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrRoomForbidden)
	}

	msgs, err := s.messages.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return msgs, nil
}
