package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/example/sportsedu-client/domain/chat"
	"github.com/fasthttp/websocket"
	"github.com/go-monolith/mono/pkg/types"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(msg string, args ...any)         {}
func (m *mockLogger) Info(msg string, args ...any)          {}
func (m *mockLogger) Warn(msg string, args ...any)          {}
func (m *mockLogger) Error(msg string, args ...any)         {}
func (m *mockLogger) With(args ...any) types.Logger         { return m }
func (m *mockLogger) WithError(err error) types.Logger      { return m }
func (m *mockLogger) WithModule(module string) types.Logger { return m }

var errConnClosed = errors.New("use of closed connection")

type fakeConn struct {
	inbound  chan []byte
	onWrite  func()
	writeErr error

	mu         sync.Mutex
	written    [][]byte
	controls   []int
	closeCalls int
	closed     chan struct{}
	closeOnce  sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 16),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data, ok := <-c.inbound:
		if !ok {
			return 0, nil, io.EOF
		}
		return websocket.TextMessage, data, nil
	case <-c.closed:
		return 0, nil, errConnClosed
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	if c.onWrite != nil {
		c.onWrite()
	}
	if c.writeErr != nil {
		return c.writeErr
	}
	select {
	case <-c.closed:
		return errConnClosed
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) WriteControl(messageType int, _ []byte, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controls = append(c.controls, messageType)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closeCalls++
	c.mu.Unlock()
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// deliver pushes one inbound frame.
func (c *fakeConn) deliver(msg chat.Message) {
	data, _ := json.Marshal(msg)
	c.inbound <- data
}

func (c *fakeConn) writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.written...)
}

func (c *fakeConn) closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCalls
}

func (c *fakeConn) controlFrames() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.controls...)
}

type fakeDialer struct {
	conn  *fakeConn
	err   error
	gate  chan struct{}
	dials atomic.Int32

	mu   sync.Mutex
	urls []string
}

func (d *fakeDialer) Dial(ctx context.Context, rawURL string) (Conn, error) {
	d.dials.Add(1)
	d.mu.Lock()
	d.urls = append(d.urls, rawURL)
	d.mu.Unlock()

	if d.gate != nil {
		select {
		case <-d.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if d.err != nil {
		return nil, d.err
	}
	return d.conn, nil
}

func (d *fakeDialer) lastURL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.urls) == 0 {
		return ""
	}
	return d.urls[len(d.urls)-1]
}

// fakeHistory ignores ctx when gated so a result can arrive after the panel is gone.
type fakeHistory struct {
	messages []chat.Message
	err      error
	gate     chan struct{}
	calls    atomic.Int32
	returned chan struct{}
	once     sync.Once
}

func newFakeHistory(messages ...chat.Message) *fakeHistory {
	return &fakeHistory{messages: messages, returned: make(chan struct{})}
}

func (h *fakeHistory) ChatHistory(_ context.Context, _ int64) ([]chat.Message, error) {
	h.calls.Add(1)
	defer h.once.Do(func() { close(h.returned) })
	if h.gate != nil {
		<-h.gate
	}
	if h.err != nil {
		return nil, h.err
	}
	return h.messages, nil
}
