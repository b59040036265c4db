package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// NoticeLevel classifies a user-facing notice.
type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeWarn  NoticeLevel = "warn"
	NoticeError NoticeLevel = "error"
)

// NoticeRaisedEvent is emitted when the client has something to tell the user.
type NoticeRaisedEvent struct {
	Level     NoticeLevel `json:"level"`
	Message   string      `json:"message"`
	Status    int         `json:"status,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// SessionStartedEvent is emitted after a login or a successful session restore.
type SessionStartedEvent struct {
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Restored  bool      `json:"restored"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionEndedEvent is emitted when the session is discarded.
type SessionEndedEvent struct {
	UserID    int64     `json:"user_id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// Event definitions for the client view layer.
var (
	NoticeRaisedV1 = helper.EventDefinition[NoticeRaisedEvent](
		"view",
		"NoticeRaised",
		"v1",
	)

	SessionStartedV1 = helper.EventDefinition[SessionStartedEvent](
		"view",
		"SessionStarted",
		"v1",
	)

	SessionEndedV1 = helper.EventDefinition[SessionEndedEvent](
		"view",
		"SessionEnded",
		"v1",
	)
)
