package chat

import (
	"unicode/utf8"

	"github.com/example/sportsedu-client/domain/user"
)

// Message represents a chat message within a rental's room.
// Messages are immutable once received; ID is zero when the server has not assigned one.
type Message struct {
	ID         int64      `json:"id,omitempty"`
	RentalID   int64      `json:"rental_id"`
	SenderID   int64      `json:"sender_id"`
	ReceiverID int64      `json:"receiver_id,omitempty"`
	Sender     *user.User `json:"sender,omitempty"`
	Receiver   *user.User `json:"receiver,omitempty"`
	Message    string     `json:"message"`
	Timestamp  Timestamp  `json:"timestamp"`
}

// HasID reports whether the server assigned an identifier.
func (m Message) HasID() bool {
	return m.ID != 0
}

// SenderName returns the sender's display name, or an empty string when unknown.
func (m Message) SenderName() string {
	if m.Sender == nil {
		return ""
	}
	return m.Sender.DisplayName()
}

// SenderInitial returns the avatar letter for the sender ("U" when unknown).
func (m Message) SenderInitial() string {
	name := m.SenderName()
	if name == "" {
		return "U"
	}
	r, _ := utf8.DecodeRuneInString(name)
	return string(r)
}

// OutboundFrame is the only payload a client writes to the chat stream.
// The server stamps sender, timestamp and id before fan-out.
type OutboundFrame struct {
	Message string `json:"message"`
}
