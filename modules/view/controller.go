package view

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/example/sportsedu-client/domain/rental"
	"github.com/example/sportsedu-client/domain/user"
	"github.com/example/sportsedu-client/gateway"
	"github.com/example/sportsedu-client/modules/session"
	"github.com/example/sportsedu-client/platform"
	"github.com/go-monolith/mono/pkg/types"
)

// Controller errors
var (
	ErrForbidden       = errors.New("admin role required")
	ErrNotSignedIn     = errors.New("not signed in")
	ErrUnknownRental   = errors.New("rental not found among your rentals")
	ErrRentalNotActive = errors.New("rental is not approved")
	ErrNoInstructor    = errors.New("no instructor assigned to this equipment")
	ErrNoChat          = errors.New("chat is only available from the classroom or the admin view")
)

// Classroom is the content of the classroom view.
type Classroom struct {
	Rental  rental.Rental
	Courses []rental.Course
}

// Controller owns the view state and the session lifecycle.
// Every operation runs under one lock, so user actions apply one at a time.
type Controller struct {
	mu       sync.Mutex
	machine  *Machine
	sessions *session.Manager
	backend  Backend
	chats    ChatOpener
	notifier Notifier
	logger   types.Logger

	catalog      []rental.Equipment
	rentals      []rental.Rental
	adminRentals []rental.Rental
	myCourses    []rental.Course
	classroom    *Classroom
	panel        ChatPanel
}

// NewController creates a Controller at the login view.
func NewController(sessions *session.Manager, backend Backend, chats ChatOpener, notifier Notifier, logger types.Logger) *Controller {
	return &Controller{
		machine:  NewMachine(),
		sessions: sessions,
		backend:  backend,
		chats:    chats,
		notifier: notifier,
		logger:   logger,
	}
}

// State returns the current view.
func (c *Controller) State() State {
	return c.machine.State()
}

// Session returns the current session, or nil.
func (c *Controller) Session() *session.Session {
	return c.sessions.Current()
}

// Catalog returns the last loaded equipment list.
func (c *Controller) Catalog() []rental.Equipment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]rental.Equipment(nil), c.catalog...)
}

// Rentals returns the signed-in user's rentals.
func (c *Controller) Rentals() []rental.Rental {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]rental.Rental(nil), c.rentals...)
}

// AdminRentals returns every rental as last loaded by the admin view.
func (c *Controller) AdminRentals() []rental.Rental {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]rental.Rental(nil), c.adminRentals...)
}

// MyCourses returns the courses of the user's approved rentals as last loaded by the mypage view.
func (c *Controller) MyCourses() []rental.Course {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]rental.Course(nil), c.myCourses...)
}

// Classroom returns the open classroom, or nil.
func (c *Controller) Classroom() *Classroom {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.classroom
}

// Panel returns the open chat panel, or nil.
func (c *Controller) Panel() ChatPanel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.panel
}

// Boot loads the catalog and restores a stored session.
// A catalog failure leaves the catalog empty; a restore failure signs out.
func (c *Controller) Boot(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.loadCatalog(ctx)

	if !c.sessions.HasToken() {
		return nil
	}
	if err := c.establish(ctx, true); err != nil {
		c.logger.Warn("Session restore failed", "error", err)
		if gateway.IsUnauthorized(err) {
			c.notifier.Notice(NoticeError, "Your session has expired. Please sign in again.", gateway.StatusOf(err))
		}
		c.signOut(ctx, "restore failed")
	}
	return nil
}

// Login exchanges credentials for a token and establishes the session.
func (c *Controller) Login(ctx context.Context, username, password string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.machine.State() != StateLogin {
		return fmt.Errorf("%w: already signed in", ErrInvalidTransition)
	}

	resp, err := c.backend.Login(ctx, username, password)
	if err != nil {
		return c.report("Login failed", err, false)
	}
	if err := c.sessions.Adopt(ctx, resp.AccessToken); err != nil {
		return c.report("Login failed", err, false)
	}
	if err := c.establish(ctx, false); err != nil {
		c.signOut(ctx, "login failed")
		return c.report("Login failed", err, false)
	}
	return nil
}

// Signup registers an account and then signs in with it.
func (c *Controller) Signup(ctx context.Context, req platform.SignupRequest) error {
	if err := c.signup(ctx, req); err != nil {
		return err
	}
	return c.Login(ctx, req.Username, req.Password)
}

func (c *Controller) signup(ctx context.Context, req platform.SignupRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.backend.Signup(ctx, req); err != nil {
		return c.report("Signup failed", err, false)
	}
	c.notifier.Notice(NoticeInfo, "Signup complete.", 0)
	return nil
}

// Logout discards the session and returns to the login view.
func (c *Controller) Logout(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.signOut(ctx, "logout")
	return nil
}

// Navigate moves to one of the top-level views.
func (c *Controller) Navigate(ctx context.Context, target State) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	event, ok := ShowEvent(target)
	if !ok {
		return fmt.Errorf("%w: %s is not a navigation target", ErrInvalidTransition, target)
	}
	if !c.machine.Can(event) {
		return fmt.Errorf("%w: %s on %s", ErrInvalidTransition, event, c.machine.State())
	}
	if target == StateAdmin && !c.sessions.Current().IsAdmin() {
		return ErrForbidden
	}
	if _, err := c.machine.Fire(event); err != nil {
		return err
	}
	c.closePanel()

	var err error
	switch target {
	case StateCatalog:
		c.loadCatalog(ctx)
	case StateMyRentals:
		err = c.loadRentals(ctx)
	case StateMyPage:
		err = c.loadMyCourses(ctx)
	case StateAdmin:
		err = c.loadAdminRentals(ctx)
	}
	if c.expire(ctx, err) {
		return err
	}
	return nil
}

// Rent requests a rental of one equipment item.
func (c *Controller) Rent(ctx context.Context, req platform.RentalCreate) (rental.Rental, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireSession(); err != nil {
		return rental.Rental{}, err
	}
	created, err := c.backend.CreateRental(ctx, req)
	if err != nil {
		return rental.Rental{}, c.report("Rental failed", err, true)
	}
	c.notifier.Notice(NoticeInfo, "Rental requested. Waiting for admin approval.", 0)
	if err := c.loadRentals(ctx); c.expire(ctx, err) {
		return created, err
	}
	c.loadCatalog(ctx)
	return created, nil
}

// EnterClassroom opens the classroom of one of the user's approved rentals.
func (c *Controller) EnterClassroom(ctx context.Context, rentalID int64) (*Classroom, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireSession(); err != nil {
		return nil, err
	}
	found, ok := c.findRental(rentalID)
	if !ok {
		return nil, ErrUnknownRental
	}
	if found.Status != rental.StatusApproved {
		return nil, ErrRentalNotActive
	}
	if !c.machine.Can(EventEnterClassroom) {
		return nil, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, EventEnterClassroom, c.machine.State())
	}

	room := &Classroom{Rental: found}
	if found.EquipID != 0 {
		courses, err := c.backend.Courses(ctx, found.EquipID)
		if c.expire(ctx, err) {
			return nil, err
		}
		if err != nil {
			c.logger.Warn("Failed to load curriculum", "equipID", found.EquipID, "error", err)
		} else {
			room.Courses = courses
		}
	}
	if _, err := c.machine.Fire(EventEnterClassroom); err != nil {
		return nil, err
	}
	c.classroom = room
	return room, nil
}

// ExitClassroom closes any chat and returns to the rentals list.
func (c *Controller) ExitClassroom(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.machine.Fire(EventExitClassroom); err != nil {
		return err
	}
	c.closePanel()
	c.classroom = nil
	if err := c.loadRentals(ctx); c.expire(ctx, err) {
		return err
	}
	return nil
}

// OpenChat mounts the chat panel of rentalID, replacing any open panel.
// From the classroom it must be the classroom's rental with an instructor; admins may open any room.
func (c *Controller) OpenChat(ctx context.Context, rentalID int64) (ChatPanel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.sessions.Current()
	if current == nil {
		return nil, ErrNotSignedIn
	}

	switch c.machine.State() {
	case StateClassroom:
		if c.classroom == nil || c.classroom.Rental.RentalID != rentalID {
			return nil, ErrUnknownRental
		}
		if c.classroom.Rental.InstructorID() == 0 {
			return nil, ErrNoInstructor
		}
	case StateAdmin:
		if !current.IsAdmin() {
			return nil, ErrForbidden
		}
	default:
		return nil, ErrNoChat
	}

	c.closePanel()
	panel, err := c.chats.Open(ctx, rentalID, current)
	if err != nil {
		return nil, c.report("Chat unavailable", err, true)
	}
	c.panel = panel
	return panel, nil
}

// CloseChat closes the open chat panel, if any.
func (c *Controller) CloseChat() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closePanel()
}

// UpdateProfile changes the user's name or affiliation.
func (c *Controller) UpdateProfile(ctx context.Context, req platform.ProfileUpdate) (user.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireSession(); err != nil {
		return user.User{}, err
	}
	updated, err := c.backend.UpdateMe(ctx, req)
	if err != nil {
		return user.User{}, c.report("Profile update failed", err, true)
	}
	c.sessions.Refresh(updated)
	c.notifier.Notice(NoticeInfo, "Profile updated.", 0)
	return updated, nil
}

// ChangePassword changes the user's password.
func (c *Controller) ChangePassword(ctx context.Context, req platform.PasswordChange) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireSession(); err != nil {
		return err
	}
	if err := c.backend.ChangePassword(ctx, req); err != nil {
		return c.report("Password change failed", err, true)
	}
	c.notifier.Notice(NoticeInfo, "Password changed.", 0)
	return nil
}

// ApproveRental approves a pending rental.
func (c *Controller) ApproveRental(ctx context.Context, rentalID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireAdmin(); err != nil {
		return err
	}
	if err := c.backend.ApproveRental(ctx, rentalID); err != nil {
		return c.report("Approval failed", err, true)
	}
	c.notifier.Notice(NoticeInfo, fmt.Sprintf("Rental %d approved.", rentalID), 0)
	if err := c.loadAdminRentals(ctx); c.expire(ctx, err) {
		return err
	}
	return nil
}

// CreateEquipment adds a catalog item.
func (c *Controller) CreateEquipment(ctx context.Context, req platform.EquipmentCreate) (rental.Equipment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireAdmin(); err != nil {
		return rental.Equipment{}, err
	}
	created, err := c.backend.CreateEquipment(ctx, req)
	if err != nil {
		return rental.Equipment{}, c.report("Equipment registration failed", err, true)
	}
	c.notifier.Notice(NoticeInfo, fmt.Sprintf("Equipment %q registered.", created.Name), 0)
	c.loadCatalog(ctx)
	return created, nil
}

// CreateCourse adds a course to an equipment item.
func (c *Controller) CreateCourse(ctx context.Context, req platform.CourseCreate) (rental.Course, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireAdmin(); err != nil {
		return rental.Course{}, err
	}
	created, err := c.backend.CreateCourse(ctx, req)
	if err != nil {
		return rental.Course{}, c.report("Course registration failed", err, true)
	}
	c.notifier.Notice(NoticeInfo, fmt.Sprintf("Course %q registered.", created.Title), 0)
	return created, nil
}

// ChatRooms lists rentals with chat activity for the admin.
func (c *Controller) ChatRooms(ctx context.Context) ([]rental.Rental, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireAdmin(); err != nil {
		return nil, err
	}
	rooms, err := c.backend.ChatRooms(ctx)
	if err != nil {
		return nil, c.report("Failed to load chat rooms", err, true)
	}
	return rooms, nil
}

// establish fetches the user behind the held token and enters the role's landing view.
func (c *Controller) establish(ctx context.Context, restored bool) error {
	u, err := c.backend.Me(ctx)
	if err != nil {
		return err
	}
	s, err := c.sessions.Establish(u)
	if err != nil {
		return err
	}

	event := EventUserSignedIn
	if s.IsAdmin() {
		event = EventAdminSignedIn
	}
	if _, err := c.machine.Fire(event); err != nil {
		return err
	}

	if s.IsAdmin() {
		err = c.loadAdminRentals(ctx)
	} else {
		err = c.loadRentals(ctx)
	}
	if gateway.IsUnauthorized(err) {
		return err
	}
	c.notifier.SessionStarted(s, restored)
	return nil
}

func (c *Controller) signOut(ctx context.Context, reason string) {
	previous := c.sessions.Current()
	c.closePanel()
	if err := c.sessions.End(ctx); err != nil {
		c.logger.Warn("Failed to clear session", "error", err)
	}
	c.rentals = nil
	c.adminRentals = nil
	c.myCourses = nil
	c.classroom = nil
	if _, err := c.machine.Fire(EventSignedOut); err != nil {
		c.logger.Error("Sign out transition rejected", "error", err)
	}
	if previous != nil {
		c.notifier.SessionEnded(previous.UserID(), reason)
	}
}

// report surfaces err as a notice. With forceLogout, an authorization failure also ends the session.
func (c *Controller) report(prefix string, err error, forceLogout bool) error {
	message := err.Error()
	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) {
		message = apiErr.Message
	}
	c.notifier.Notice(NoticeError, prefix+": "+message, gateway.StatusOf(err))

	if forceLogout && gateway.IsUnauthorized(err) {
		c.signOut(context.Background(), "unauthorized")
	}
	return err
}

// expire ends the session when err means the token is no longer accepted.
func (c *Controller) expire(ctx context.Context, err error) bool {
	if !gateway.IsUnauthorized(err) {
		return false
	}
	c.notifier.Notice(NoticeError, "Your session has expired. Please sign in again.", gateway.StatusOf(err))
	c.signOut(ctx, "unauthorized")
	return true
}

func (c *Controller) requireSession() error {
	if c.sessions.Current() == nil {
		return ErrNotSignedIn
	}
	return nil
}

func (c *Controller) requireAdmin() error {
	s := c.sessions.Current()
	if s == nil {
		return ErrNotSignedIn
	}
	if !s.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

func (c *Controller) closePanel() {
	if c.panel == nil {
		return
	}
	if err := c.panel.Close(); err != nil {
		c.logger.Warn("Failed to close chat panel", "error", err)
	}
	c.panel = nil
}

func (c *Controller) findRental(rentalID int64) (rental.Rental, bool) {
	for _, r := range c.rentals {
		if r.RentalID == rentalID {
			return r, true
		}
	}
	return rental.Rental{}, false
}

func (c *Controller) loadCatalog(ctx context.Context) {
	items, err := c.backend.Equipment(ctx)
	if err != nil {
		c.logger.Warn("Failed to load equipment", "error", err)
		c.catalog = nil
		return
	}
	c.catalog = items
}

func (c *Controller) loadRentals(ctx context.Context) error {
	items, err := c.backend.MyRentals(ctx)
	if err != nil {
		c.logger.Warn("Failed to load rentals", "error", err)
		return err
	}
	c.rentals = items
	return nil
}

func (c *Controller) loadMyCourses(ctx context.Context) error {
	items, err := c.backend.MyCourses(ctx)
	if err != nil {
		c.logger.Warn("Failed to load courses", "error", err)
		return err
	}
	c.myCourses = items
	return nil
}

func (c *Controller) loadAdminRentals(ctx context.Context) error {
	items, err := c.backend.AllRentals(ctx)
	if err != nil {
		c.logger.Warn("Failed to load all rentals", "error", err)
		return err
	}
	c.adminRentals = items
	return nil
}
