package view

import (
	"time"

	"github.com/example/sportsedu-client/events"
	"github.com/example/sportsedu-client/modules/session"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

// NoticeLevel classifies a notice.
type NoticeLevel = events.NoticeLevel

const (
	NoticeInfo  = events.NoticeInfo
	NoticeError = events.NoticeError
)

// busNotifier publishes notices on the EventBus.
type busNotifier struct {
	bus    func() mono.EventBus
	logger types.Logger
}

func (n *busNotifier) Notice(level NoticeLevel, message string, status int) {
	n.logger.Debug("Notice", "level", string(level), "message", message, "status", status)
	bus := n.bus()
	if bus == nil {
		return
	}
	if err := events.NoticeRaisedV1.Publish(bus, events.NoticeRaisedEvent{
		Level:     level,
		Message:   message,
		Status:    status,
		Timestamp: time.Now(),
	}, nil); err != nil {
		n.logger.Warn("Failed to publish NoticeRaised event", "error", err)
	}
}

func (n *busNotifier) SessionStarted(s *session.Session, restored bool) {
	bus := n.bus()
	if bus == nil {
		return
	}
	u := s.User()
	if err := events.SessionStartedV1.Publish(bus, events.SessionStartedEvent{
		UserID:    u.UserID,
		Username:  u.Username,
		Role:      string(u.Role),
		Restored:  restored,
		Timestamp: time.Now(),
	}, nil); err != nil {
		n.logger.Warn("Failed to publish SessionStarted event", "error", err)
	}
}

func (n *busNotifier) SessionEnded(userID int64, reason string) {
	bus := n.bus()
	if bus == nil {
		return
	}
	if err := events.SessionEndedV1.Publish(bus, events.SessionEndedEvent{
		UserID:    userID,
		Reason:    reason,
		Timestamp: time.Now(),
	}, nil); err != nil {
		n.logger.Warn("Failed to publish SessionEnded event", "error", err)
	}
}
