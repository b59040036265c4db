// Package platform wraps the backend endpoints the client calls but does not own.
package platform

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/example/sportsedu-client/domain/chat"
	"github.com/example/sportsedu-client/domain/rental"
	"github.com/example/sportsedu-client/domain/user"
	"github.com/example/sportsedu-client/gateway"
	"golang.org/x/sync/singleflight"
)

// API is the subset of gateway.Client used by Service.
type API interface {
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Put(ctx context.Context, path string, body, out any) error
}

var _ API = (*gateway.Client)(nil)

// Service exposes typed backend operations.
type Service struct {
	api   API
	group singleflight.Group
}

// NewService creates a Service over api.
func NewService(api API) *Service {
	return &Service{api: api}
}

// Login exchanges credentials for an access token.
func (s *Service) Login(ctx context.Context, username, password string) (user.TokenResponse, error) {
	var out user.TokenResponse
	if strings.TrimSpace(username) == "" || password == "" {
		return out, ErrCredentials
	}
	form := gateway.FormData{"username": username, "password": password}
	if err := s.api.Post(ctx, "/users/login", form, &out); err != nil {
		return out, err
	}
	return out, nil
}

// Signup registers a new account.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (user.User, error) {
	var out user.User
	if err := req.Validate(); err != nil {
		return out, err
	}
	err := s.api.Post(ctx, "/users/signup", req, &out)
	return out, err
}

// Me returns the signed-in user.
func (s *Service) Me(ctx context.Context) (user.User, error) {
	var out user.User
	err := s.api.Get(ctx, "/users/me", &out)
	return out, err
}

// UpdateMe updates the signed-in user's profile.
func (s *Service) UpdateMe(ctx context.Context, req ProfileUpdate) (user.User, error) {
	var out user.User
	err := s.api.Put(ctx, "/users/me", req, &out)
	return out, err
}

// ChangePassword validates locally and then changes the password.
func (s *Service) ChangePassword(ctx context.Context, req PasswordChange) error {
	if err := req.Validate(); err != nil {
		return err
	}
	return s.api.Put(ctx, "/users/me/password", req, nil)
}

// Equipment lists the catalog. Concurrent callers share one request.
func (s *Service) Equipment(ctx context.Context) ([]rental.Equipment, error) {
	v, err, _ := s.group.Do("equipment", func() (any, error) {
		var out []rental.Equipment
		if err := s.api.Get(ctx, "/equipment/", &out); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	items := v.([]rental.Equipment)
	return append([]rental.Equipment(nil), items...), nil
}

// CreateEquipment adds a catalog item with every unit available.
func (s *Service) CreateEquipment(ctx context.Context, req EquipmentCreate) (rental.Equipment, error) {
	var out rental.Equipment
	if strings.TrimSpace(req.Name) == "" {
		return out, ErrNameRequired
	}
	req.AvailableQty = req.TotalQty
	err := s.api.Post(ctx, "/equipment/", req, &out)
	return out, err
}

// Courses lists the curriculum of one equipment item.
func (s *Service) Courses(ctx context.Context, equipID int64) ([]rental.Course, error) {
	var out []rental.Course
	q := url.Values{"equip_id": {strconv.FormatInt(equipID, 10)}}
	err := s.api.Get(ctx, "/courses/?"+q.Encode(), &out)
	return out, err
}

// MyCourses lists the courses of the signed-in user's rentals.
func (s *Service) MyCourses(ctx context.Context) ([]rental.Course, error) {
	var out []rental.Course
	err := s.api.Get(ctx, "/courses/my", &out)
	return out, err
}

// CreateCourse adds a course; the equipment is required.
func (s *Service) CreateCourse(ctx context.Context, req CourseCreate) (rental.Course, error) {
	var out rental.Course
	if req.EquipID == 0 {
		return out, ErrEquipmentRequired
	}
	err := s.api.Post(ctx, "/courses/", req, &out)
	return out, err
}

// CreateRental requests a rental.
func (s *Service) CreateRental(ctx context.Context, req RentalCreate) (rental.Rental, error) {
	var out rental.Rental
	if err := req.Validate(); err != nil {
		return out, err
	}
	err := s.api.Post(ctx, "/rentals/", req, &out)
	return out, err
}

// MyRentals lists the signed-in user's rentals.
func (s *Service) MyRentals(ctx context.Context) ([]rental.Rental, error) {
	var out []rental.Rental
	err := s.api.Get(ctx, "/rentals/my", &out)
	return out, err
}

// AllRentals lists every rental (admin).
func (s *Service) AllRentals(ctx context.Context) ([]rental.Rental, error) {
	var out []rental.Rental
	err := s.api.Get(ctx, "/rentals/all", &out)
	return out, err
}

// ApproveRental approves a pending rental (admin).
func (s *Service) ApproveRental(ctx context.Context, rentalID int64) error {
	return s.api.Put(ctx, fmt.Sprintf("/rentals/%d/approve", rentalID), nil, nil)
}

// ChatHistory returns the ordered message history of a rental's room.
func (s *Service) ChatHistory(ctx context.Context, rentalID int64) ([]chat.Message, error) {
	var out []chat.Message
	if err := s.api.Get(ctx, fmt.Sprintf("/chat/history/%d", rentalID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ChatRooms lists rentals with chat activity (admin).
func (s *Service) ChatRooms(ctx context.Context) ([]rental.Rental, error) {
	var out []rental.Rental
	err := s.api.Get(ctx, "/chat/rooms", &out)
	return out, err
}
