package chat

import (
	"context"
	"sync"
	"time"

	"github.com/example/sportsedu-client/gateway"
	"github.com/example/sportsedu-client/modules/session"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

// Config holds chat transport settings.
type Config struct {
	WebSocketURL string
	QueueSize    int
	DialTimeout  time.Duration
}

// Option configures a Module.
type Option func(*Module)

// WithDialer replaces the stream dialer.
func WithDialer(d Dialer) Option {
	return func(m *Module) { m.dialer = d }
}

// Module opens chat panels and closes whatever is still open on shutdown.
type Module struct {
	cfg     Config
	history HistoryFetcher
	dialer  Dialer
	logger  types.Logger

	mu     sync.Mutex
	panels map[string]*Panel
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the chat module.
func NewModule(cfg Config, history HistoryFetcher, logger types.Logger, opts ...Option) *Module {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	m := &Module{
		cfg:     cfg,
		history: history,
		logger:  logger,
		panels:  make(map[string]*Panel),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.dialer == nil {
		m.dialer = NewWebsocketDialer(cfg.DialTimeout)
	}
	return m
}

// Name returns the module name.
func (m *Module) Name() string {
	return "chat"
}

// Start validates the stream address.
func (m *Module) Start(_ context.Context) error {
	if _, err := StreamURL(m.cfg.WebSocketURL, 0, ""); err != nil {
		return err
	}
	m.logger.Info("Chat module started", "websocketURL", m.cfg.WebSocketURL, "queueSize", m.cfg.QueueSize)
	return nil
}

// Stop closes every open panel.
func (m *Module) Stop(_ context.Context) error {
	m.mu.Lock()
	open := make([]*Panel, 0, len(m.panels))
	for _, p := range m.panels {
		open = append(open, p)
	}
	m.mu.Unlock()

	for _, p := range open {
		_ = p.Close()
	}
	m.logger.Info("Chat module stopped", "closedPanels", len(open))
	return nil
}

// Health reports the number of open panels.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"open_panels": m.OpenPanels(),
		},
	}
}

// OpenPanels returns the number of panels not yet closed.
func (m *Module) OpenPanels() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.panels)
}

// Open mounts a chat panel for rentalID. Without a token nothing is fetched or dialed.
func (m *Module) Open(ctx context.Context, rentalID int64, s *session.Session) (*Panel, error) {
	token := s.Token()
	if token == "" {
		return nil, &gateway.AuthError{Reason: "open chat", Err: gateway.ErrMissingToken}
	}

	streamURL, err := StreamURL(m.cfg.WebSocketURL, rentalID, token)
	if err != nil {
		return nil, err
	}

	p := newPanel(rentalID, s.UserID(), streamURL, m.cfg.QueueSize, m.dialer, m.history, m.logger)
	p.onClose = m.untrack

	m.mu.Lock()
	m.panels[p.id] = p
	m.mu.Unlock()

	p.start(ctx)
	m.logger.Info("Chat panel opened", "panelID", p.id, "rentalID", rentalID)
	return p, nil
}

func (m *Module) untrack(p *Panel) {
	m.mu.Lock()
	delete(m.panels, p.id)
	m.mu.Unlock()
}
