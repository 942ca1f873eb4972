package domain

import (
	"encoding/json"
	"time"
)

// Relay event names as they appear on the wire.
const (
	EventUserConnected    = "user_connected"
	EventJoinRoom         = "join_room"
	EventLeaveRoom        = "leave_room"
	EventSendMessage      = "send_message"
	EventReceiveMessage   = "receive_message"
	EventUserStatusChange = "user_status_change"
	EventOffer            = "offer"
	EventAnswer           = "answer"
	EventICECandidate     = "ice-candidate"
	EventEndCall          = "end-call"
)

// IsSignal reports whether the event is relayed between call peers.
func IsSignal(event string) bool {
	switch event {
	case EventOffer, EventAnswer, EventICECandidate, EventEndCall:
		return true
	}
	return false
}

// Envelope is one frame on the relay channel, in either direction.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SendMessagePayload is the inbound send_message body.
type SendMessagePayload struct {
	Sender   string `json:"sender"`
	Content  string `json:"content"`
	Room     string `json:"room"`
	Type     string `json:"type"`
	FileURL  string `json:"fileUrl,omitempty"`
	FileName string `json:"fileName,omitempty"`
}

// SignalPayload is the inbound body of offer, answer, ice-candidate and
// end-call. Older clients put the blob under a key named after the event.
type SignalPayload struct {
	RoomID    string          `json:"roomId"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// Blob returns the opaque signaling blob, whichever key carried it.
func (p SignalPayload) Blob() json.RawMessage {
	for _, b := range []json.RawMessage{p.Payload, p.Offer, p.Answer, p.Candidate} {
		if len(b) > 0 {
			return b
		}
	}
	return nil
}

// StatusChange is the user_status_change body.
type StatusChange struct {
	UserID string     `json:"userId"`
	Status UserStatus `json:"status"`
}

// MessageView is the enriched message as delivered by receive_message and
// listed by the history endpoint.
type MessageView struct {
	ID        string      `json:"id"`
	Sender    SenderView  `json:"sender"`
	Room      string      `json:"room"`
	Content   string      `json:"content"`
	Type      MessageKind `json:"type"`
	FileURL   string      `json:"fileUrl,omitempty"`
	FileName  string      `json:"fileName,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type SenderView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

func NewMessageView(m *Message) MessageView {
	view := MessageView{
		ID:        m.ID.String(),
		Sender:    SenderView{ID: m.SenderID.String()},
		Room:      m.RoomID.String(),
		Content:   m.Content,
		Type:      m.Kind,
		FileURL:   m.FileURL,
		FileName:  m.FileName,
		Timestamp: m.CreatedAt.UTC(),
	}
	if m.Sender != nil {
		view.Sender.Username = m.Sender.Username
		view.Sender.Avatar = m.Sender.Avatar
	}
	return view
}
