package view

import (
	"context"

	"github.com/example/sportsedu-client/domain/rental"
	"github.com/example/sportsedu-client/domain/user"
	chatmod "github.com/example/sportsedu-client/modules/chat"
	"github.com/example/sportsedu-client/modules/session"
	"github.com/example/sportsedu-client/platform"
)

// Backend is the set of backend operations the controller drives.
type Backend interface {
	Login(ctx context.Context, username, password string) (user.TokenResponse, error)
	Signup(ctx context.Context, req platform.SignupRequest) (user.User, error)
	Me(ctx context.Context) (user.User, error)
	UpdateMe(ctx context.Context, req platform.ProfileUpdate) (user.User, error)
	ChangePassword(ctx context.Context, req platform.PasswordChange) error
	Equipment(ctx context.Context) ([]rental.Equipment, error)
	CreateEquipment(ctx context.Context, req platform.EquipmentCreate) (rental.Equipment, error)
	Courses(ctx context.Context, equipID int64) ([]rental.Course, error)
	MyCourses(ctx context.Context) ([]rental.Course, error)
	CreateCourse(ctx context.Context, req platform.CourseCreate) (rental.Course, error)
	CreateRental(ctx context.Context, req platform.RentalCreate) (rental.Rental, error)
	MyRentals(ctx context.Context) ([]rental.Rental, error)
	AllRentals(ctx context.Context) ([]rental.Rental, error)
	ApproveRental(ctx context.Context, rentalID int64) error
	ChatRooms(ctx context.Context) ([]rental.Rental, error)
}

var _ Backend = (*platform.Service)(nil)

// ChatPanel is a mounted chat view.
type ChatPanel interface {
	ID() string
	RentalID() int64
	Send(text string) error
	Entries() []chatmod.Entry
	Changed() <-chan struct{}
	HistoryLoaded() <-chan struct{}
	HistoryErr() error
	Close() error
}

var _ ChatPanel = (*chatmod.Panel)(nil)

// ChatOpener mounts chat panels.
type ChatOpener interface {
	Open(ctx context.Context, rentalID int64, s *session.Session) (ChatPanel, error)
}

type chatModuleOpener struct {
	module *chatmod.Module
}

// FromChatModule adapts the chat module to ChatOpener.
func FromChatModule(m *chatmod.Module) ChatOpener {
	return chatModuleOpener{module: m}
}

func (o chatModuleOpener) Open(ctx context.Context, rentalID int64, s *session.Session) (ChatPanel, error) {
	p, err := o.module.Open(ctx, rentalID, s)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Notifier delivers notices and session transitions to whoever renders them.
type Notifier interface {
	Notice(level NoticeLevel, message string, status int)
	SessionStarted(s *session.Session, restored bool)
	SessionEnded(userID int64, reason string)
}
