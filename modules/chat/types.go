package chat

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// Validation constants
const (
	MaxMessageLength = 5000
	DefaultQueueSize = 64
)

// Validation errors
var (
	ErrEmptyMessage   = errors.New("message content cannot be empty")
	ErrMessageTooLong = errors.New("message exceeds maximum length")
	ErrMessageInvalid = errors.New("message contains invalid characters")
)

// ValidateMessage trims content and checks it can be sent.
func ValidateMessage(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", ErrEmptyMessage
	}
	if !utf8.ValidString(trimmed) {
		return "", ErrMessageInvalid
	}
	if utf8.RuneCountInString(trimmed) > MaxMessageLength {
		return "", ErrMessageTooLong
	}
	return trimmed, nil
}
