package session

import (
	"context"
	"fmt"

	"github.com/example/sportsedu-client/gateway"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	fsjetstream "github.com/go-monolith/mono/plugin/fs-jetstream"
)

// BucketName is the fs-jetstream bucket holding client storage.
const BucketName = "client-storage"

// Module wires the Manager to the storage plugin.
type Module struct {
	storage *fsjetstream.PluginModule
	manager *Manager
	logger  types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.UsePluginModule       = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the session module. The Manager is usable before Start.
func NewModule(logger types.Logger) *Module {
	return &Module{
		manager: NewManager(nil, logger),
		logger:  logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "session"
}

// Manager returns the session manager.
func (m *Module) Manager() *Manager {
	return m.manager
}

// SetPlugin receives the storage plugin from the framework.
func (m *Module) SetPlugin(alias string, plugin mono.PluginModule) {
	if alias != "storage" {
		return
	}
	storage, ok := plugin.(*fsjetstream.PluginModule)
	if !ok {
		m.logger.Error("Invalid plugin type for storage",
			"alias", alias,
			"expected", "*fsjetstream.PluginModule")
		return
	}
	m.storage = storage
}

// Start attaches the token bucket and loads any persisted token.
func (m *Module) Start(ctx context.Context) error {
	if m.storage != nil {
		bucket := m.storage.Bucket(BucketName)
		if bucket == nil {
			return fmt.Errorf("bucket '%s' not found in storage plugin", BucketName)
		}
		m.manager.SetStore(NewBucketTokenStore(bucket))
	} else {
		m.logger.Warn("No storage plugin, token will not survive restarts")
		m.manager.SetStore(NewMemoryTokenStore(""))
	}

	if _, err := m.manager.Load(ctx); err != nil {
		if !gateway.IsUnauthorized(err) {
			return err
		}
		m.logger.Info("Discarded stored token", "reason", err.Error())
	}

	m.logger.Info("Session module started", "hasToken", m.manager.HasToken())
	return nil
}

// Stop leaves the persisted token in place.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Session module stopped")
	return nil
}

// Health reports whether a session is established.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	current := m.manager.Current()
	details := map[string]any{
		"has_token": m.manager.HasToken(),
	}
	if current != nil {
		details["user_id"] = current.UserID()
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: details,
	}
}
