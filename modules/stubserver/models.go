package stubserver

import (
	"time"

	"github.com/example/sportsedu-client/domain/chat"
	"github.com/example/sportsedu-client/domain/rental"
	"github.com/example/sportsedu-client/domain/user"
)

type userRow struct {
	UserID       int64  `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Affiliation  string
	Name         string
	Role         string `gorm:"not null;default:USER"`
}

func (userRow) TableName() string {
	return "users"
}

type equipmentRow struct {
	EquipID      int64 `gorm:"primaryKey"`
	Name         string
	Category     string `gorm:"index"`
	InstructorID *int64
	Instructor   *userRow `gorm:"foreignKey:InstructorID;references:UserID"`
	Rating       float64
	ReviewCount  int
	Badge        string
	TotalQty     int
	AvailableQty int
	RentalFee    int
	Description  string
	ImageURL     string
}

func (equipmentRow) TableName() string {
	return "equipment"
}

type rentalRow struct {
	RentalID  int64         `gorm:"primaryKey"`
	UserID    int64         `gorm:"index"`
	User      *userRow      `gorm:"foreignKey:UserID;references:UserID"`
	EquipID   int64         `gorm:"index"`
	Equipment *equipmentRow `gorm:"foreignKey:EquipID;references:EquipID"`
	StartDate time.Time
	EndDate   time.Time
	Status    string `gorm:"not null;default:PENDING"`
	Reason    string
	CreatedAt time.Time
}

func (rentalRow) TableName() string {
	return "rentals"
}

type courseRow struct {
	CourseID    int64 `gorm:"primaryKey"`
	Title       string
	Description string
	ContentType string
	Duration    string
	ContentURL  string
}

func (courseRow) TableName() string {
	return "courses"
}

type equipmentCourseRow struct {
	ID       int64 `gorm:"primaryKey"`
	EquipID  int64 `gorm:"index"`
	CourseID int64 `gorm:"index"`
}

func (equipmentCourseRow) TableName() string {
	return "equipment_courses"
}

type messageRow struct {
	ID         int64    `gorm:"primaryKey"`
	SenderID   int64    `gorm:"index"`
	Sender     *userRow `gorm:"foreignKey:SenderID;references:UserID"`
	ReceiverID int64
	Receiver   *userRow `gorm:"foreignKey:ReceiverID;references:UserID"`
	RentalID   int64    `gorm:"index"`
	Message    string
	Timestamp  time.Time
}

func (messageRow) TableName() string {
	return "chat_messages"
}

func (r *userRow) toDomain() *user.User {
	if r == nil {
		return nil
	}
	return &user.User{
		UserID:      r.UserID,
		Role:        user.Role(r.Role),
		Name:        r.Name,
		Username:    r.Username,
		Affiliation: r.Affiliation,
	}
}

func (r *equipmentRow) toDomain() *rental.Equipment {
	if r == nil {
		return nil
	}
	e := &rental.Equipment{
		EquipID:      r.EquipID,
		Name:         r.Name,
		Category:     r.Category,
		Rating:       r.Rating,
		ReviewCount:  r.ReviewCount,
		Badge:        r.Badge,
		TotalQty:     r.TotalQty,
		AvailableQty: r.AvailableQty,
		RentalFee:    r.RentalFee,
		Description:  r.Description,
		ImageURL:     r.ImageURL,
		Instructor:   r.Instructor.toDomain(),
	}
	if r.InstructorID != nil {
		e.InstructorID = *r.InstructorID
	}
	return e
}

func (r *rentalRow) toDomain() rental.Rental {
	return rental.Rental{
		RentalID:  r.RentalID,
		UserID:    r.UserID,
		EquipID:   r.EquipID,
		Status:    rental.Status(r.Status),
		StartDate: r.StartDate,
		EndDate:   r.EndDate,
		Equipment: r.Equipment.toDomain(),
		User:      r.User.toDomain(),
	}
}

func (r *courseRow) toDomain() rental.Course {
	return rental.Course{
		CourseID:    r.CourseID,
		Title:       r.Title,
		ContentType: r.ContentType,
		Duration:    r.Duration,
		ContentURL:  r.ContentURL,
		Description: r.Description,
	}
}

func (r *messageRow) toDomain() chat.Message {
	return chat.Message{
		ID:         r.ID,
		RentalID:   r.RentalID,
		SenderID:   r.SenderID,
		ReceiverID: r.ReceiverID,
		Sender:     r.Sender.toDomain(),
		Receiver:   r.Receiver.toDomain(),
		Message:    r.Message,
		Timestamp:  chat.NewTimestamp(r.Timestamp),
	}
}
