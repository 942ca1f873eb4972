package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidMessage = errors.New("invalid message")

type MessageKind string

const (
	MessageKindText  MessageKind = "text"
	MessageKindImage MessageKind = "image"
	MessageKindFile  MessageKind = "file"
)

func (k MessageKind) Valid() bool {
	switch k {
	case MessageKindText, MessageKindImage, MessageKindFile:
		return true
	}
	return false
}

// Message is a persisted chat message. It is immutable once stored.
type Message struct {
	ID        uuid.UUID
	SenderID  uuid.UUID
	RoomID    uuid.UUID
	Content   string
	Kind      MessageKind
	FileURL   string
	FileName  string
	CreatedAt time.Time

	// Sender is filled in by enriched reads only.
	Sender *MessageSender
}

// MessageSender is the slice of the sender's profile attached to a message
// when it is delivered or listed.
type MessageSender struct {
	ID       uuid.UUID
	Username string
	Avatar   string
}

func NewMessage(senderID, roomID uuid.UUID, content string, kind MessageKind) *Message {
	if kind == "" {
		kind = MessageKindText
	}
	// v7 ids sort in creation order, which stores use to break timestamp ties.
	return &Message{
		ID:        uuid.Must(uuid.NewV7()),
		SenderID:  senderID,
		RoomID:    roomID,
		Content:   content,
		Kind:      kind,
		CreatedAt: time.Now().UTC(),
	}
}

// Validate checks the constraints every store enforces before persisting.
func (m *Message) Validate() error {
	switch {
	case m == nil:
		return fmt.Errorf("%w: message is nil", ErrInvalidMessage)
	case m.SenderID == uuid.Nil:
		return fmt.Errorf("%w: sender is required", ErrInvalidMessage)
	case m.RoomID == uuid.Nil:
		return fmt.Errorf("%w: room is required", ErrInvalidMessage)
	case strings.TrimSpace(m.Content) == "":
		return fmt.Errorf("%w: content is required", ErrInvalidMessage)
	case !m.Kind.Valid():
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidMessage, m.Kind)
	}
	return nil
}
