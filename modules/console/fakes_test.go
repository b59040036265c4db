package console

import (
	"context"
	"sync"

	"github.com/example/sportsedu-client/domain/rental"
	"github.com/example/sportsedu-client/domain/user"
	chatmod "github.com/example/sportsedu-client/modules/chat"
	"github.com/example/sportsedu-client/modules/session"
	"github.com/example/sportsedu-client/modules/view"
	"github.com/example/sportsedu-client/platform"
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

type fakePanel struct {
	rentalID      int64
	changed       chan struct{}
	historyLoaded chan struct{}
	historyErr    error

	mu      sync.Mutex
	entries []chatmod.Entry
	sent    []string
	sendErr error
	closed  bool
}

func newFakePanel(rentalID int64) *fakePanel {
	return &fakePanel{rentalID: rentalID, changed: make(chan struct{}, 1), historyLoaded: make(chan struct{})}
}

func (p *fakePanel) HistoryLoaded() <-chan struct{} { return p.historyLoaded }

func (p *fakePanel) HistoryErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.historyErr
}

func (p *fakePanel) failHistory(err error) {
	p.mu.Lock()
	p.historyErr = err
	p.mu.Unlock()
	close(p.historyLoaded)
}

func (p *fakePanel) ID() string               { return "panel" }
func (p *fakePanel) RentalID() int64          { return p.rentalID }
func (p *fakePanel) Changed() <-chan struct{} { return p.changed }

func (p *fakePanel) Send(text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sendErr != nil {
		return p.sendErr
	}
	p.sent = append(p.sent, text)
	return nil
}

func (p *fakePanel) Entries() []chatmod.Entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]chatmod.Entry(nil), p.entries...)
}

func (p *fakePanel) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePanel) push(e chatmod.Entry) {
	p.mu.Lock()
	p.entries = append(p.entries, e)
	p.mu.Unlock()
	select {
	case p.changed <- struct{}{}:
	default:
	}
}

// fakeController records calls and returns canned results.
type fakeController struct {
	mu sync.Mutex

	state     view.State
	session   *session.Session
	catalog   []rental.Equipment
	rentals   []rental.Rental
	admin     []rental.Rental
	courses   []rental.Course
	classroom *view.Classroom
	panel     view.ChatPanel
	nextPanel *fakePanel

	err   error
	calls []string

	signup   platform.SignupRequest
	rent     platform.RentalCreate
	profile  platform.ProfileUpdate
	password platform.PasswordChange
	equip    platform.EquipmentCreate
	course   platform.CourseCreate
	target   view.State
	id       int64
}

func (f *fakeController) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeController) State() view.State           { return f.state }
func (f *fakeController) Session() *session.Session   { return f.session }
func (f *fakeController) Catalog() []rental.Equipment { return f.catalog }
func (f *fakeController) Rentals() []rental.Rental    { return f.rentals }
func (f *fakeController) AdminRentals() []rental.Rental {
	return f.admin
}
func (f *fakeController) MyCourses() []rental.Course { return f.courses }
func (f *fakeController) Classroom() *view.Classroom { return f.classroom }

func (f *fakeController) Panel() view.ChatPanel {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.panel
}

func (f *fakeController) Login(_ context.Context, username, _ string) error {
	if err := f.record("login " + username); err != nil {
		return err
	}
	f.state = view.StateCatalog
	return nil
}

func (f *fakeController) Signup(_ context.Context, req platform.SignupRequest) error {
	f.signup = req
	return f.record("signup")
}

func (f *fakeController) Logout(context.Context) error {
	f.state = view.StateLogin
	f.mu.Lock()
	f.panel = nil
	f.mu.Unlock()
	return f.record("logout")
}

func (f *fakeController) Navigate(_ context.Context, target view.State) error {
	if err := f.record("navigate"); err != nil {
		return err
	}
	f.target = target
	f.state = target
	return nil
}

func (f *fakeController) Rent(_ context.Context, req platform.RentalCreate) (rental.Rental, error) {
	f.rent = req
	if err := f.record("rent"); err != nil {
		return rental.Rental{}, err
	}
	return rental.Rental{RentalID: 77, EquipID: req.EquipID, Status: rental.StatusPending}, nil
}

func (f *fakeController) EnterClassroom(_ context.Context, rentalID int64) (*view.Classroom, error) {
	f.id = rentalID
	if err := f.record("classroom"); err != nil {
		return nil, err
	}
	f.state = view.StateClassroom
	return f.classroom, nil
}

func (f *fakeController) ExitClassroom(context.Context) error {
	f.state = view.StateMyRentals
	f.mu.Lock()
	f.panel = nil
	f.mu.Unlock()
	return f.record("exit-classroom")
}

func (f *fakeController) OpenChat(_ context.Context, rentalID int64) (view.ChatPanel, error) {
	f.id = rentalID
	if err := f.record("chat"); err != nil {
		return nil, err
	}
	p := f.nextPanel
	if p == nil {
		p = newFakePanel(rentalID)
	}
	f.mu.Lock()
	f.panel = p
	f.mu.Unlock()
	return p, nil
}

func (f *fakeController) CloseChat() {
	f.mu.Lock()
	f.panel = nil
	f.mu.Unlock()
	_ = f.record("close-chat")
}

func (f *fakeController) UpdateProfile(_ context.Context, req platform.ProfileUpdate) (user.User, error) {
	f.profile = req
	if err := f.record("profile"); err != nil {
		return user.User{}, err
	}
	return user.User{Name: req.Name, Affiliation: req.Affiliation}, nil
}

func (f *fakeController) ChangePassword(_ context.Context, req platform.PasswordChange) error {
	f.password = req
	return f.record("password")
}

func (f *fakeController) ApproveRental(_ context.Context, rentalID int64) error {
	f.id = rentalID
	return f.record("approve")
}

func (f *fakeController) CreateEquipment(_ context.Context, req platform.EquipmentCreate) (rental.Equipment, error) {
	f.equip = req
	if err := f.record("add-equipment"); err != nil {
		return rental.Equipment{}, err
	}
	return rental.Equipment{EquipID: 3, Name: req.Name}, nil
}

func (f *fakeController) CreateCourse(_ context.Context, req platform.CourseCreate) (rental.Course, error) {
	f.course = req
	if err := f.record("add-course"); err != nil {
		return rental.Course{}, err
	}
	return rental.Course{CourseID: 4, Title: req.Title}, nil
}

func (f *fakeController) ChatRooms(context.Context) ([]rental.Rental, error) {
	if err := f.record("rooms"); err != nil {
		return nil, err
	}
	return f.admin, nil
}

// syncBuffer is a goroutine-safe output sink.
type syncBuffer struct {
	mu sync.Mutex
	b  []byte
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.b = append(s.b, p...)
	return len(p), nil
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.b)
}
