package platform

import (
	"errors"
	"strings"
	"time"
)

// Local validation errors, raised before any request is sent.
var (
	ErrPasswordMismatch   = errors.New("new password and confirmation do not match")
	ErrPasswordRequired   = errors.New("all password fields are required")
	ErrCredentials        = errors.New("username and password are required")
	ErrEquipmentRequired  = errors.New("equip_id is required")
	ErrInvalidRentalDates = errors.New("end date must not be before start date")
	ErrNameRequired       = errors.New("name is required")
)

// SignupRequest registers a new account.
type SignupRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	Name        string `json:"name"`
	Affiliation string `json:"affiliation"`
	AdminCode   string `json:"admin_code,omitempty"`
}

// Validate checks required fields.
func (r SignupRequest) Validate() error {
	if strings.TrimSpace(r.Username) == "" || r.Password == "" {
		return ErrCredentials
	}
	return nil
}

// ProfileUpdate changes the signed-in user's profile.
type ProfileUpdate struct {
	Name        string `json:"name,omitempty"`
	Affiliation string `json:"affiliation,omitempty"`
}

// PasswordChange changes the signed-in user's password.
type PasswordChange struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	Confirm         string `json:"-"`
}

// Validate checks that every field is set and the confirmation matches.
func (r PasswordChange) Validate() error {
	if r.CurrentPassword == "" || r.NewPassword == "" || r.Confirm == "" {
		return ErrPasswordRequired
	}
	if r.NewPassword != r.Confirm {
		return ErrPasswordMismatch
	}
	return nil
}

// EquipmentCreate adds a catalog item. AvailableQty is always set to TotalQty.
type EquipmentCreate struct {
	Name         string `json:"name"`
	Category     string `json:"category"`
	TotalQty     int    `json:"total_qty"`
	AvailableQty int    `json:"available_qty"`
	RentalFee    int    `json:"rental_fee"`
	Description  string `json:"description,omitempty"`
	ImageURL     string `json:"image_url,omitempty"`
	InstructorID int64  `json:"instructor_id,omitempty"`
}

// CourseCreate adds a curriculum entry to an equipment item.
type CourseCreate struct {
	EquipID     int64  `json:"equip_id"`
	Title       string `json:"title"`
	ContentType string `json:"content_type"`
	Duration    string `json:"duration,omitempty"`
	ContentURL  string `json:"content_url"`
	Description string `json:"description,omitempty"`
}

// RentalCreate requests a rental for a date range.
type RentalCreate struct {
	EquipID   int64     `json:"equip_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Reason    string    `json:"reason"`
}

// Validate checks the equipment and the date range.
func (r RentalCreate) Validate() error {
	if r.EquipID == 0 {
		return ErrEquipmentRequired
	}
	if r.EndDate.Before(r.StartDate) {
		return ErrInvalidRentalDates
	}
	return nil
}
