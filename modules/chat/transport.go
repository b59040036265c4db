package chat

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/example/sportsedu-client/domain/chat"
	"github.com/fasthttp/websocket"
)

// Conn is one open chat stream.
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// Dialer opens chat streams.
type Dialer interface {
	Dial(ctx context.Context, rawURL string) (Conn, error)
}

// HistoryFetcher loads the persisted messages of a rental's room.
type HistoryFetcher interface {
	ChatHistory(ctx context.Context, rentalID int64) ([]chat.Message, error)
}

// WebsocketDialer dials streams with github.com/fasthttp/websocket.
type WebsocketDialer struct {
	dialer *websocket.Dialer
}

// NewWebsocketDialer creates a dialer with the given handshake timeout.
func NewWebsocketDialer(handshakeTimeout time.Duration) *WebsocketDialer {
	return &WebsocketDialer{
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: handshakeTimeout,
		},
	}
}

// Dial implements Dialer.
func (d *WebsocketDialer) Dial(ctx context.Context, rawURL string) (Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, rawURL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial chat stream: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial chat stream: %w", err)
	}
	return conn, nil
}

// StreamURL builds the chat stream address for a rental. The token travels as a query parameter.
func StreamURL(wsBase string, rentalID int64, token string) (string, error) {
	base, err := url.Parse(strings.TrimRight(wsBase, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid websocket base url: %w", err)
	}
	if base.Scheme != "ws" && base.Scheme != "wss" {
		return "", fmt.Errorf("invalid websocket base url scheme %q", base.Scheme)
	}
	base.Path = fmt.Sprintf("%s/api/chat/ws/%d", base.Path, rentalID)
	base.RawQuery = url.Values{"token": {token}}.Encode()
	return base.String(), nil
}
