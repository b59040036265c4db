package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/example/sportsedu-client/events"
	"github.com/example/sportsedu-client/gateway"
	"github.com/example/sportsedu-client/modules/view"
	"github.com/example/sportsedu-client/platform"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// Module is a line-oriented terminal front end for the view controller.
type Module struct {
	ctrl     Controller
	in       io.Reader
	out      io.Writer
	logger   types.Logger
	commands map[string]command

	outMu sync.Mutex

	watchMu   sync.Mutex
	watched   view.ChatPanel
	watchStop chan struct{}
	watchWG   sync.WaitGroup

	cancel   context.CancelFunc
	done     chan struct{}
	doneOnce sync.Once
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.EventConsumerModule   = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a console reading commands from in and writing to out.
func NewModule(ctrl Controller, in io.Reader, out io.Writer, logger types.Logger) *Module {
	m := &Module{
		ctrl:   ctrl,
		in:     in,
		out:    out,
		logger: logger,
		done:   make(chan struct{}),
	}
	m.commands = m.buildCommands()
	return m
}

// Name returns the module name.
func (m *Module) Name() string {
	return "console"
}

// Done is closed when the user quits or the input ends.
func (m *Module) Done() <-chan struct{} {
	return m.done
}

// Start runs the read loop in the background.
func (m *Module) Start(_ context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go m.run(ctx)
	m.logger.Info("Console started")
	return nil
}

// Stop ends the read loop and the chat follower.
func (m *Module) Stop(_ context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	m.finish()
	m.logger.Info("Console stopped")
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	m.watchMu.Lock()
	chatOpen := m.watched != nil
	m.watchMu.Unlock()

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"view":      string(m.ctrl.State()),
			"chat_open": chatOpen,
		},
	}
}

// RegisterEventConsumers subscribes to the view notices and session transitions.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.NoticeRaisedV1, m.handleNotice, m,
	); err != nil {
		return fmt.Errorf("failed to register NoticeRaised consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.SessionStartedV1, m.handleSessionStarted, m,
	); err != nil {
		return fmt.Errorf("failed to register SessionStarted consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.SessionEndedV1, m.handleSessionEnded, m,
	); err != nil {
		return fmt.Errorf("failed to register SessionEnded consumer: %w", err)
	}

	m.logger.Info("Registered event consumers", "events", "NoticeRaised, SessionStarted, SessionEnded")
	return nil
}

func (m *Module) handleNotice(_ context.Context, event events.NoticeRaisedEvent, _ *mono.Msg) error {
	m.printf("[%s] %s\n", event.Level, event.Message)
	return nil
}

func (m *Module) handleSessionStarted(_ context.Context, event events.SessionStartedEvent, _ *mono.Msg) error {
	verb := "Signed in"
	if event.Restored {
		verb = "Welcome back"
	}
	m.printf("%s, %s (%s).\n", verb, event.Username, event.Role)
	return nil
}

func (m *Module) handleSessionEnded(_ context.Context, event events.SessionEndedEvent, _ *mono.Msg) error {
	m.printf("Signed out (%s).\n", event.Reason)
	return nil
}

func (m *Module) run(ctx context.Context) {
	defer m.finish()

	m.printf("SportsEdu client. Type 'help' for commands.\n")
	m.show()
	m.prompt()

	scanner := bufio.NewScanner(m.in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		if m.execute(ctx, scanner.Text()) {
			return
		}
		m.prompt()
	}
	if err := scanner.Err(); err != nil {
		m.logger.Warn("Console input failed", "error", err)
	}
}

// execute runs one input line and reports whether the user asked to quit.
func (m *Module) execute(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	name := fields[0]
	cmd, ok := m.commands[name]
	if !ok {
		m.printf("Unknown command %q. Type 'help' for commands.\n", name)
		return false
	}
	if cmd.run == nil {
		return true
	}

	err := cmd.run(ctx, fields[1:], strings.TrimSpace(strings.TrimPrefix(line, name)))
	m.syncWatch()
	if err != nil {
		m.fail(cmd, err)
		return false
	}
	if cmd.show {
		m.show()
	}
	return false
}

// fail prints err unless the controller already raised a notice for it.
func (m *Module) fail(cmd command, err error) {
	switch {
	case errors.Is(err, errUsage):
		m.printf("usage: %s\n", cmd.usage)
	case notified(err):
		m.logger.Debug("Command failed", "error", err)
	default:
		m.printf("error: %v\n", err)
	}
}

// notified reports whether err came back from a backend call, which the controller reports as a notice.
func notified(err error) bool {
	var (
		apiErr  *gateway.APIError
		netErr  *gateway.NetworkError
		authErr *gateway.AuthError
	)
	if errors.As(err, &apiErr) || errors.As(err, &netErr) || errors.As(err, &authErr) {
		return true
	}
	for _, local := range []error{
		platform.ErrCredentials,
		platform.ErrPasswordMismatch,
		platform.ErrPasswordRequired,
		platform.ErrEquipmentRequired,
		platform.ErrInvalidRentalDates,
		platform.ErrNameRequired,
	} {
		if errors.Is(err, local) {
			return true
		}
	}
	return false
}

// show renders the current view.
func (m *Module) show() {
	state := m.ctrl.State()
	m.write(func(b *strings.Builder) {
		switch state {
		case view.StateLogin:
			fmt.Fprintln(b, "Sign in with 'login' or create an account with 'signup'.")
		case view.StateCatalog:
			fmt.Fprintln(b, "== Equipment catalog ==")
			renderCatalog(b, m.ctrl.Catalog())
		case view.StateMyRentals:
			fmt.Fprintln(b, "== My rentals ==")
			renderRentals(b, m.ctrl.Rentals(), false)
		case view.StateMyPage:
			fmt.Fprintln(b, "== My page ==")
			renderProfile(b, m.ctrl.Session())
			renderCourses(b, m.ctrl.MyCourses())
		case view.StateAdmin:
			fmt.Fprintln(b, "== Admin dashboard ==")
			renderRentals(b, m.ctrl.AdminRentals(), true)
		case view.StateClassroom:
			renderClassroom(b, m.ctrl.Classroom())
		}
	})
}

func (m *Module) prompt() {
	m.printf("%s> ", m.ctrl.State())
}

// watch starts printing p's log, replacing any previous follower.
func (m *Module) watch(p view.ChatPanel) {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()

	m.stopWatchLocked()
	stop := make(chan struct{})
	m.watched = p
	m.watchStop = stop
	m.watchWG.Add(1)
	go m.follow(p, stop)
}

func (m *Module) follow(p view.ChatPanel, stop <-chan struct{}) {
	defer m.watchWG.Done()

	rendered := 0
	render := func() {
		entries := p.Entries()
		if len(entries) <= rendered {
			return
		}
		fresh := entries[rendered:]
		rendered = len(entries)
		m.write(func(b *strings.Builder) {
			for _, e := range fresh {
				b.WriteString(formatEntry(e))
				b.WriteByte('\n')
			}
		})
	}

	render()
	historyLoaded := p.HistoryLoaded()
	for {
		select {
		case <-stop:
			return
		case <-historyLoaded:
			historyLoaded = nil
			if p.HistoryErr() != nil {
				m.printf("[%s] Could not load earlier messages.\n", events.NoticeWarn)
			}
		case <-p.Changed():
			render()
		}
	}
}

// syncWatch stops the follower once the controller no longer holds its panel.
func (m *Module) syncWatch() {
	current := m.ctrl.Panel()

	m.watchMu.Lock()
	defer m.watchMu.Unlock()
	if m.watched != nil && m.watched != current {
		m.stopWatchLocked()
	}
}

func (m *Module) stopWatchLocked() {
	if m.watchStop == nil {
		return
	}
	close(m.watchStop)
	m.watchWG.Wait()
	m.watched = nil
	m.watchStop = nil
}

func (m *Module) finish() {
	m.watchMu.Lock()
	m.stopWatchLocked()
	m.watchMu.Unlock()
	m.doneOnce.Do(func() { close(m.done) })
}

func (m *Module) printf(format string, args ...any) {
	m.write(func(b *strings.Builder) { fmt.Fprintf(b, format, args...) })
}

func (m *Module) write(render func(b *strings.Builder)) {
	var b strings.Builder
	render(&b)

	m.outMu.Lock()
	defer m.outMu.Unlock()
	if _, err := io.WriteString(m.out, b.String()); err != nil {
		m.logger.Debug("Console write failed", "error", err)
	}
}
