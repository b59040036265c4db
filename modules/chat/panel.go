package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/example/sportsedu-client/domain/chat"
	"github.com/fasthttp/websocket"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"
)

const closeWriteTimeout = time.Second

type historyResult struct {
	messages []chat.Message
	err      error
}

// Panel is one mounted chat view: a history fetch, one stream and the resulting Log.
// A dropped stream is not redialed; open a new Panel instead.
type Panel struct {
	id       string
	rentalID int64
	url      string
	log      *Log
	dialer   Dialer
	history  HistoryFetcher
	logger   types.Logger

	ctx    context.Context
	cancel context.CancelFunc

	connMu  sync.Mutex
	conn    Conn
	writeMu sync.Mutex

	live      chan chat.Message
	historyCh chan historyResult

	closeOnce     sync.Once
	closed        chan struct{}
	historyErr    error
	historyLoaded chan struct{}
	streamDone    chan struct{}
	wg            sync.WaitGroup
	onClose       func(*Panel)
}

func newPanel(rentalID, viewer int64, streamURL string, queueSize int, dialer Dialer, history HistoryFetcher, logger types.Logger) *Panel {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	id := uuid.New().String()
	return &Panel{
		id:            id,
		rentalID:      rentalID,
		url:           streamURL,
		log:           newLog(viewer),
		dialer:        dialer,
		history:       history,
		logger:        logger.With("panelID", id, "rentalID", rentalID),
		live:          make(chan chat.Message, queueSize),
		historyCh:     make(chan historyResult, 1),
		closed:        make(chan struct{}),
		historyLoaded: make(chan struct{}),
		streamDone:    make(chan struct{}),
	}
}

// start launches the history fetch and the stream concurrently.
func (p *Panel) start(ctx context.Context) {
	p.ctx, p.cancel = context.WithCancel(context.WithoutCancel(ctx))

	// Not tracked by wg: a result that arrives after Close lands in the buffer and is dropped.
	go p.fetchHistory()

	p.wg.Add(2)
	go p.readStream()
	go p.consume()
}

func (p *Panel) fetchHistory() {
	msgs, err := p.history.ChatHistory(p.ctx, p.rentalID)
	p.historyCh <- historyResult{messages: msgs, err: err}
}

// readStream dials once and feeds decoded frames into the live queue until the stream ends.
func (p *Panel) readStream() {
	defer p.wg.Done()
	defer close(p.live)
	defer close(p.streamDone)

	conn, err := p.dialer.Dial(p.ctx, p.url)
	if err != nil {
		if !p.isClosed() {
			p.logger.Warn("Chat stream connection failed", "error", err)
		}
		return
	}

	p.connMu.Lock()
	if p.isClosed() {
		p.connMu.Unlock()
		_ = conn.Close()
		return
	}
	p.conn = conn
	p.connMu.Unlock()
	p.logger.Info("Chat stream connected")

	defer p.dropConn(conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !p.isClosed() {
				p.logger.Warn("Chat stream ended", "error", err)
			}
			return
		}

		var msg chat.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			p.logger.Warn("Skipping undecodable chat frame", "error", err)
			continue
		}

		select {
		case p.live <- msg:
		case <-p.closed:
			return
		}
	}
}

// dropConn releases conn unless Close already took ownership of it.
func (p *Panel) dropConn(conn Conn) {
	p.connMu.Lock()
	owned := p.conn == conn
	if owned {
		p.conn = nil
	}
	p.connMu.Unlock()
	if owned {
		_ = conn.Close()
	}
}

// consume owns every mutation of the log. Live messages that arrive before the
// history outcome is known are held back and flushed right after the seed.
func (p *Panel) consume() {
	defer p.wg.Done()

	var pending []chat.Message
	historyCh := p.historyCh
	live := p.live
	seeded := false

	for {
		select {
		case <-p.closed:
			return

		case res := <-historyCh:
			historyCh = nil
			if p.isClosed() {
				return
			}
			if res.err != nil {
				p.logger.Warn("Failed to load chat history", "error", res.err)
				p.historyErr = res.err
				res.messages = nil
			}
			p.log.seed(res.messages)
			for _, msg := range pending {
				p.log.append(msg)
			}
			pending = nil
			seeded = true
			close(p.historyLoaded)

		case msg, ok := <-live:
			if !ok {
				live = nil
				break
			}
			if !seeded {
				pending = append(pending, msg)
				continue
			}
			if !p.log.append(msg) {
				p.logger.Debug("Dropped duplicate chat message", "messageID", msg.ID)
			}
		}

		if seeded && live == nil {
			return
		}
	}
}

// Send transmits one message. Blank text is rejected; with no open stream the call does nothing.
func (p *Panel) Send(text string) error {
	content, err := ValidateMessage(text)
	if err != nil {
		return err
	}

	p.connMu.Lock()
	conn := p.conn
	p.connMu.Unlock()
	if conn == nil {
		p.logger.Debug("No open chat stream, message not sent")
		return nil
	}

	data, err := json.Marshal(chat.OutboundFrame{Message: content})
	if err != nil {
		return fmt.Errorf("encode chat frame: %w", err)
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		if p.isClosed() || !p.holds(conn) {
			p.logger.Debug("Chat stream closed during send, message not sent", "error", err)
			return nil
		}
		p.logger.Warn("Failed to send chat message", "error", err)
		return fmt.Errorf("send chat message: %w", err)
	}
	return nil
}

// Close tears the panel down. It is safe to call more than once.
func (p *Panel) Close() error {
	p.closeOnce.Do(func() {
		close(p.closed)
		if p.cancel != nil {
			p.cancel()
		}

		p.connMu.Lock()
		conn := p.conn
		p.conn = nil
		p.connMu.Unlock()

		if conn != nil {
			p.writeMu.Lock()
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteTimeout)); err != nil {
				p.logger.Debug("Failed to send close frame", "error", err)
			}
			p.writeMu.Unlock()
			_ = conn.Close()
		}

		p.wg.Wait()
		if p.onClose != nil {
			p.onClose(p)
		}
		p.logger.Info("Chat panel closed", "messages", p.log.Len())
	})
	return nil
}

func (p *Panel) holds(conn Conn) bool {
	p.connMu.Lock()
	defer p.connMu.Unlock()
	return p.conn == conn
}

func (p *Panel) isClosed() bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}

// ID returns the panel instance id.
func (p *Panel) ID() string { return p.id }

// RentalID returns the rental whose room is shown.
func (p *Panel) RentalID() int64 { return p.rentalID }

// Log returns the panel's message log.
func (p *Panel) Log() *Log { return p.log }

// Entries returns a snapshot of the log.
func (p *Panel) Entries() []Entry { return p.log.Entries() }

// Changed signals after the log changes.
func (p *Panel) Changed() <-chan struct{} { return p.log.Changed() }

// Connected reports whether the stream is open.
func (p *Panel) Connected() bool {
	p.connMu.Lock()
	defer p.connMu.Unlock()
	return p.conn != nil
}

// HistoryLoaded is closed once the log has been seeded.
func (p *Panel) HistoryLoaded() <-chan struct{} { return p.historyLoaded }

// HistoryErr returns the history fetch failure, if any. It is set before HistoryLoaded closes.
func (p *Panel) HistoryErr() error {
	select {
	case <-p.historyLoaded:
		return p.historyErr
	default:
		return nil
	}
}

// StreamDone is closed once the stream has ended or failed to open.
func (p *Panel) StreamDone() <-chan struct{} { return p.streamDone }

// Done is closed once Close has been called.
func (p *Panel) Done() <-chan struct{} { return p.closed }
