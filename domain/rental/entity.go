package rental

import (
	"time"

	"github.com/example/sportsedu-client/domain/user"
)

// Status is the lifecycle state of a rental request.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusReturned  Status = "RETURNED"
	StatusCancelled Status = "CANCELLED"
)

// Equipment represents a rentable catalog item.
type Equipment struct {
	EquipID      int64      `json:"equip_id"`
	Name         string     `json:"name"`
	Category     string     `json:"category"`
	Rating       float64    `json:"rating"`
	ReviewCount  int        `json:"review_count"`
	Badge        string     `json:"badge,omitempty"`
	TotalQty     int        `json:"total_qty"`
	AvailableQty int        `json:"available_qty"`
	RentalFee    int        `json:"rental_fee"`
	Description  string     `json:"description,omitempty"`
	ImageURL     string     `json:"image_url,omitempty"`
	InstructorID int64      `json:"instructor_id,omitempty"`
	Instructor   *user.User `json:"instructor,omitempty"`
}

// Available reports whether at least one unit can be rented.
func (e Equipment) Available() bool {
	return e.AvailableQty > 0
}

// Rental represents a user's rental of one equipment item.
type Rental struct {
	RentalID  int64      `json:"rental_id"`
	UserID    int64      `json:"user_id"`
	EquipID   int64      `json:"equip_id"`
	Status    Status     `json:"status"`
	StartDate time.Time  `json:"start_date"`
	EndDate   time.Time  `json:"end_date"`
	Equipment *Equipment `json:"equipment,omitempty"`
	User      *user.User `json:"user,omitempty"`
}

// InstructorID returns the instructor assigned to the rented equipment, or zero.
func (r Rental) InstructorID() int64 {
	if r.Equipment == nil {
		return 0
	}
	return r.Equipment.InstructorID
}

// Course is one curriculum entry attached to an equipment item.
type Course struct {
	CourseID    int64  `json:"course_id"`
	Title       string `json:"title"`
	ContentType string `json:"content_type"`
	Duration    string `json:"duration,omitempty"`
	ContentURL  string `json:"content_url"`
	Description string `json:"description,omitempty"`
}
