package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel reasons carried by AuthError.
var (
	ErrMissingToken = errors.New("no access token")
	ErrTokenExpired = errors.New("access token expired")
)

const (
	msgUnparsable = "unable to parse error response"
	msgFallback   = "API request failed"
)

// APIError is returned for any non-2xx response.
type APIError struct {
	Message string
	Status  int
	Body    []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// NetworkError is returned when a request never produced a response.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// AuthError is returned when an operation needs a token that is absent or no longer valid.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Reason == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// IsUnauthorized reports whether err means the session is not (or no longer) authenticated.
func IsUnauthorized(err error) bool {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// StatusOf returns the HTTP status carried by an APIError, or zero.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

type validationItem struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
}

// extractMessage derives a human readable message from an error response body.
func extractMessage(body []byte) string {
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return msgUnparsable
	}

	if len(parsed.Detail) > 0 {
		var items []validationItem
		if err := json.Unmarshal(parsed.Detail, &items); err == nil && len(items) > 0 {
			parts := make([]string, 0, len(items))
			for _, item := range items {
				parts = append(parts, joinLoc(item.Loc)+": "+item.Msg)
			}
			return strings.Join(parts, "; ")
		}

		var text string
		if err := json.Unmarshal(parsed.Detail, &text); err == nil && text != "" {
			return text
		}
	}

	if parsed.Message != "" {
		return parsed.Message
	}
	return msgFallback
}

func joinLoc(loc []any) string {
	parts := make([]string, 0, len(loc))
	for _, p := range loc {
		switch v := p.(type) {
		case string:
			parts = append(parts, v)
		case float64:
			parts = append(parts, fmt.Sprintf("%d", int64(v)))
		default:
			parts = append(parts, fmt.Sprint(v))
		}
	}
	return strings.Join(parts, ".")
}
