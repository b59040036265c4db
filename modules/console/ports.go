package console

import (
	"context"

	"github.com/example/sportsedu-client/domain/rental"
	"github.com/example/sportsedu-client/domain/user"
	"github.com/example/sportsedu-client/modules/session"
	"github.com/example/sportsedu-client/modules/view"
	"github.com/example/sportsedu-client/platform"
)

// Controller is the view controller surface the console drives.
type Controller interface {
	State() view.State
	Session() *session.Session
	Catalog() []rental.Equipment
	Rentals() []rental.Rental
	AdminRentals() []rental.Rental
	MyCourses() []rental.Course
	Classroom() *view.Classroom
	Panel() view.ChatPanel

	Login(ctx context.Context, username, password string) error
	Signup(ctx context.Context, req platform.SignupRequest) error
	Logout(ctx context.Context) error
	Navigate(ctx context.Context, target view.State) error
	Rent(ctx context.Context, req platform.RentalCreate) (rental.Rental, error)
	EnterClassroom(ctx context.Context, rentalID int64) (*view.Classroom, error)
	ExitClassroom(ctx context.Context) error
	OpenChat(ctx context.Context, rentalID int64) (view.ChatPanel, error)
	CloseChat()
	UpdateProfile(ctx context.Context, req platform.ProfileUpdate) (user.User, error)
	ChangePassword(ctx context.Context, req platform.PasswordChange) error
	ApproveRental(ctx context.Context, rentalID int64) error
	CreateEquipment(ctx context.Context, req platform.EquipmentCreate) (rental.Equipment, error)
	CreateCourse(ctx context.Context, req platform.CourseCreate) (rental.Course, error)
	ChatRooms(ctx context.Context) ([]rental.Rental, error)
}

var _ Controller = (*view.Controller)(nil)
