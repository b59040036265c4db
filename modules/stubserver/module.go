package stubserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
)

// Config holds the stub backend settings.
type Config struct {
	Addr              string
	DSN               string
	DBDebug           bool
	JWTSecret         string
	TokenTTL          time.Duration
	AdminCode         string
	BcryptCost        int
	MessagesPerSecond float64
	MessageBurst      int
	SeedDemo          bool
}

// DefaultConfig returns the settings the platform backend ships with.
func DefaultConfig() Config {
	return Config{
		Addr:              ":8000",
		DSN:               InMemoryDSN,
		JWTSecret:         "sportsedu-dev-secret",
		TokenTTL:          30 * time.Minute,
		AdminCode:         "team2002",
		BcryptCost:        DefaultBcryptCost,
		MessagesPerSecond: 5,
		MessageBurst:      10,
	}
}

// Option configures a Module.
type Option func(*Module)

// WithListener serves on ln instead of listening on Config.Addr.
func WithListener(ln net.Listener) Option {
	return func(m *Module) { m.listener = ln }
}

// Module runs a stand-in for the platform backend.
type Module struct {
	cfg      Config
	logger   types.Logger
	listener net.Listener

	app       *fiber.App
	store     *Store
	hub       *Hub
	handlers  *Handlers
	cancelHub context.CancelFunc
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the stub backend module.
func NewModule(cfg Config, logger types.Logger, opts ...Option) *Module {
	defaults := DefaultConfig()
	if cfg.DSN == "" {
		cfg.DSN = defaults.DSN
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaults.TokenTTL
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = defaults.JWTSecret
	}
	if cfg.MessagesPerSecond <= 0 {
		cfg.MessagesPerSecond = defaults.MessagesPerSecond
	}
	if cfg.MessageBurst <= 0 {
		cfg.MessageBurst = defaults.MessageBurst
	}

	m := &Module{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns the module name.
func (m *Module) Name() string {
	return "stubserver"
}

// Store returns the backing store. It is nil before Start.
func (m *Module) Store() *Store {
	return m.store
}

// Start opens the store, starts the hub and serves HTTP.
func (m *Module) Start(_ context.Context) error {
	if err := m.setup(); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if m.listener != nil {
			err = m.app.Listener(m.listener)
		} else {
			err = m.app.Listen(m.cfg.Addr)
		}
		if err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		m.teardown()
		return fmt.Errorf("stub server failed to start: %w", err)
	case <-time.After(100 * time.Millisecond):
	}

	m.logger.Info("Stub server started", "addr", m.Addr(), "dsn", m.cfg.DSN)
	return nil
}

// Stop closes the streams, shuts the server down and closes the store.
func (m *Module) Stop(ctx context.Context) error {
	if m.cancelHub != nil {
		m.cancelHub()
		m.hub.Wait()
	}
	var errs []error
	if m.app != nil {
		if err := m.app.ShutdownWithContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown server: %w", err))
		}
	}
	if m.store != nil {
		if err := m.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close store: %w", err))
		}
	}
	m.logger.Info("Stub server stopped")
	return errors.Join(errs...)
}

// Health reports stream statistics.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	if m.hub == nil {
		return mono.HealthStatus{Healthy: false, Message: "not started"}
	}
	clients, rooms := m.hub.Stats()
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"stream_clients": clients,
			"chat_rooms":     rooms,
		},
	}
}

// Addr returns the address being served.
func (m *Module) Addr() string {
	if m.listener != nil {
		return m.listener.Addr().String()
	}
	return m.cfg.Addr
}

func (m *Module) setup() error {
	store, err := OpenStore(m.cfg.DSN, m.cfg.DBDebug)
	if err != nil {
		return err
	}
	m.store = store

	hasher := NewPasswordHasher(m.cfg.BcryptCost)
	if m.cfg.SeedDemo {
		if err := SeedDemo(store, hasher, m.logger); err != nil {
			_ = store.Close()
			return fmt.Errorf("failed to seed demo data: %w", err)
		}
	}

	m.hub = NewHub(m.logger)
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelHub = cancel
	go m.hub.Run(ctx)

	m.handlers = NewHandlers(m.cfg, store, NewTokenIssuer(m.cfg.JWTSecret, m.cfg.TokenTTL), hasher, m.hub, m.logger)

	m.app = fiber.New(fiber.Config{
		AppName:               "SportsEdu Stub",
		DisableStartupMessage: true,
		ErrorHandler:          m.errorHandler,
	})
	m.app.Use(recover.New())
	m.app.Use(requestLogger(m.logger))
	m.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,OPTIONS",
		AllowHeaders: "Content-Type,Authorization",
	}))
	m.registerRoutes()
	return nil
}

func (m *Module) teardown() {
	if m.cancelHub != nil {
		m.cancelHub()
		m.hub.Wait()
		m.cancelHub = nil
	}
	if m.store != nil {
		_ = m.store.Close()
	}
}

func (m *Module) registerRoutes() {
	h := m.handlers
	m.app.Get("/health", h.Health)

	api := m.app.Group("/api")

	users := api.Group("/users")
	users.Post("/signup", h.Signup)
	users.Post("/login", h.Login)
	users.Get("/me", h.Authenticate, h.Me)
	users.Put("/me", h.Authenticate, h.UpdateMe)
	users.Put("/me/password", h.Authenticate, h.ChangePassword)

	equipment := api.Group("/equipment")
	equipment.Get("/", h.ListEquipment)
	equipment.Post("/", h.Authenticate, h.RequireAdmin, h.CreateEquipment)

	courses := api.Group("/courses")
	courses.Get("/", h.ListCourses)
	courses.Get("/my", h.Authenticate, h.MyCourses)
	courses.Get("/:id", h.GetCourse)
	courses.Post("/", h.Authenticate, h.RequireAdmin, h.CreateCourse)

	rentals := api.Group("/rentals")
	rentals.Post("/", h.Authenticate, h.CreateRental)
	rentals.Get("/my", h.Authenticate, h.MyRentals)
	rentals.Get("/all", h.Authenticate, h.RequireAdmin, h.AllRentals)
	rentals.Put("/:id/approve", h.Authenticate, h.RequireAdmin, h.ApproveRental)

	chat := api.Group("/chat")
	chat.Get("/history/:id", h.Authenticate, h.ChatHistory)
	chat.Get("/rooms", h.Authenticate, h.RequireAdmin, h.ChatRooms)
	chat.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	stream := websocket.New(h.ChatStream)
	chat.Get("/ws/:id", stream)
	chat.Get("/ws/:id/:userID", stream)
}

func requestLogger(logger types.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(fiber.HeaderXRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(fiber.HeaderXRequestID, id)
		c.Locals(requestIDKey, id)

		start := time.Now()
		err := c.Next()
		logger.Debug("HTTP request", "requestID", id, "method", c.Method(), "path", c.Path(),
			"status", c.Response().StatusCode(), "latency", time.Since(start), "error", err)
		return err
	}
}

func requestID(c *fiber.Ctx) string {
	id, _ := c.Locals(requestIDKey).(string)
	return id
}
