package view

import (
	"context"
	"sync"

	"github.com/example/sportsedu-client/events"
	"github.com/example/sportsedu-client/modules/session"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

// Module hosts the Controller and publishes its notices on the EventBus.
type Module struct {
	controller *Controller
	logger     types.Logger

	mu       sync.RWMutex
	eventBus mono.EventBus
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the view module.
func NewModule(sessions *session.Manager, backend Backend, chats ChatOpener, logger types.Logger) *Module {
	m := &Module{logger: logger}
	notifier := &busNotifier{bus: m.bus, logger: logger}
	m.controller = NewController(sessions, backend, chats, notifier, logger)
	return m
}

// Name returns the module name.
func (m *Module) Name() string {
	return "view"
}

// Controller returns the view controller.
func (m *Module) Controller() *Controller {
	return m.controller
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventBus = bus
}

func (m *Module) bus() mono.EventBus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.eventBus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.NoticeRaisedV1.ToBase(),
		events.SessionStartedV1.ToBase(),
		events.SessionEndedV1.ToBase(),
	}
}

// Start boots the controller: catalog load and session restore.
func (m *Module) Start(ctx context.Context) error {
	if err := m.controller.Boot(ctx); err != nil {
		return err
	}
	m.logger.Info("View module started", "state", string(m.controller.State()))
	return nil
}

// Stop closes any open chat panel.
func (m *Module) Stop(_ context.Context) error {
	m.controller.CloseChat()
	m.logger.Info("View module stopped")
	return nil
}

// Health reports the current view.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	details := map[string]any{
		"state": string(m.controller.State()),
	}
	if s := m.controller.Session(); s != nil {
		details["user_id"] = s.UserID()
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: details,
	}
}
