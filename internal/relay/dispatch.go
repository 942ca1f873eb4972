package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/immxrtalbeast/huddle/internal/domain"
)

// ErrUnknownEvent is returned by Dispatch for event names it does not route.
var ErrUnknownEvent = errors.New("unknown event")

// Dispatch decodes one inbound frame from connID and routes it. Errors are
// returned for logging only; they are never sent back to the client.
func (r *Relay) Dispatch(ctx context.Context, connID string, frame []byte) error {
	var env domain.Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}

	switch env.Event {
	case domain.EventUserConnected:
		userID, err := decodeID(env.Data)
		if err != nil {
			return fmt.Errorf("%s: %w", env.Event, err)
		}
		r.RegisterConnection(ctx, userID, connID)

	case domain.EventJoinRoom, domain.EventLeaveRoom:
		roomID, err := decodeID(env.Data)
		if err != nil {
			return fmt.Errorf("%s: %w", env.Event, err)
		}
		if env.Event == domain.EventJoinRoom {
			r.JoinRoom(connID, roomID)
		} else {
			r.LeaveRoom(connID, roomID)
		}

	case domain.EventSendMessage:
		var p domain.SendMessagePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return fmt.Errorf("%s: %w", env.Event, err)
		}
		_, err := r.SendMessage(ctx, connID, OutgoingMessage{
			SenderID: p.Sender,
			RoomID:   p.Room,
			Content:  p.Content,
			Kind:     p.Type,
			FileURL:  p.FileURL,
			FileName: p.FileName,
		})
		return err

	default:
		if domain.IsSignal(env.Event) {
			return r.dispatchSignal(connID, env)
		}
		return fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}

	return nil
}

func (r *Relay) dispatchSignal(connID string, env domain.Envelope) error {
	var p domain.SignalPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		return fmt.Errorf("%s: %w", env.Event, err)
	}

	var blob json.RawMessage
	if env.Event != domain.EventEndCall {
		blob = p.Blob()
	}
	r.Signal(connID, env.Event, p.RoomID, blob)
	return nil
}

// decodeID accepts an identifier sent either as a JSON string or a bare
// JSON number.
func decodeID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", errors.New("missing identifier")
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return "", errors.New("missing identifier")
		}
		return s, nil
	}

	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil || n == "" {
		return "", fmt.Errorf("identifier must be a string or number")
	}
	return n.String(), nil
}
