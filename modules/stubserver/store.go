package stubserver

import (
	"errors"
	"fmt"
	"time"

	"github.com/example/sportsedu-client/domain/chat"
	"github.com/example/sportsedu-client/domain/rental"
	"github.com/example/sportsedu-client/domain/user"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrUsernameTaken is returned when signing up with a registered username.
	ErrUsernameTaken = errors.New("username already registered")
	// ErrOutOfStock is returned when no unit of the equipment is available.
	ErrOutOfStock = errors.New("equipment out of stock")
)

// InMemoryDSN opens a private SQLite database that lives as long as the Store.
const InMemoryDSN = ":memory:"

// Store persists the backend's records with GORM.
type Store struct {
	db *gorm.DB
}

// OpenStore connects to the SQLite database at dsn and migrates the schema.
func OpenStore(dsn string, debug bool) (*Store, error) {
	logLevel := gormlogger.Silent
	if debug {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Every connection to :memory: is a separate database.
	if dsn == InMemoryDSN {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sql.DB: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(
		&userRow{}, &equipmentRow{}, &rentalRow{}, &courseRow{}, &equipmentCourseRow{}, &messageRow{},
	); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// CreateUser registers an account.
func (s *Store) CreateUser(username, passwordHash, name, affiliation string, role user.Role) (user.User, error) {
	row := userRow{
		Username:     username,
		PasswordHash: passwordHash,
		Name:         name,
		Affiliation:  affiliation,
		Role:         string(role),
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&userRow{}).Where("username = ?", username).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrUsernameTaken
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			return user.User{}, err
		}
		return user.User{}, fmt.Errorf("failed to create user: %w", err)
	}
	return *row.toDomain(), nil
}

// Credentials returns the user and password hash for username.
func (s *Store) Credentials(username string) (user.User, string, error) {
	var row userRow
	if err := s.db.First(&row, "username = ?", username).Error; err != nil {
		return user.User{}, "", notFound(err, "user")
	}
	return *row.toDomain(), row.PasswordHash, nil
}

// UserByUsername finds a user by username.
func (s *Store) UserByUsername(username string) (user.User, error) {
	u, _, err := s.Credentials(username)
	return u, err
}

// UpdateProfile sets the non-empty fields of the profile.
func (s *Store) UpdateProfile(userID int64, name, affiliation string) (user.User, error) {
	updates := map[string]any{}
	if name != "" {
		updates["name"] = name
	}
	if affiliation != "" {
		updates["affiliation"] = affiliation
	}
	if len(updates) > 0 {
		if err := s.db.Model(&userRow{}).Where("user_id = ?", userID).Updates(updates).Error; err != nil {
			return user.User{}, fmt.Errorf("failed to update user: %w", err)
		}
	}

	var row userRow
	if err := s.db.First(&row, "user_id = ?", userID).Error; err != nil {
		return user.User{}, notFound(err, "user")
	}
	return *row.toDomain(), nil
}

// SetPasswordHash replaces a user's password hash.
func (s *Store) SetPasswordHash(userID int64, hash string) error {
	result := s.db.Model(&userRow{}).Where("user_id = ?", userID).Update("password_hash", hash)
	if result.Error != nil {
		return fmt.Errorf("failed to update password: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListEquipment returns the catalog, optionally filtered by category.
func (s *Store) ListEquipment(category string) ([]rental.Equipment, error) {
	query := s.db.Preload("Instructor").Order("equip_id")
	if category != "" && category != "ALL" {
		query = query.Where("category = ?", category)
	}

	var rows []equipmentRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list equipment: %w", err)
	}
	out := make([]rental.Equipment, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].toDomain())
	}
	return out, nil
}

// CreateEquipment adds a catalog item.
func (s *Store) CreateEquipment(e rental.Equipment) (rental.Equipment, error) {
	row := equipmentRow{
		Name:         e.Name,
		Category:     e.Category,
		Rating:       e.Rating,
		ReviewCount:  e.ReviewCount,
		Badge:        e.Badge,
		TotalQty:     e.TotalQty,
		AvailableQty: e.AvailableQty,
		RentalFee:    e.RentalFee,
		Description:  e.Description,
		ImageURL:     e.ImageURL,
	}
	if e.InstructorID != 0 {
		id := e.InstructorID
		row.InstructorID = &id
	}
	if err := s.db.Omit(clause.Associations).Create(&row).Error; err != nil {
		return rental.Equipment{}, fmt.Errorf("failed to create equipment: %w", err)
	}
	if err := s.db.Preload("Instructor").First(&row, "equip_id = ?", row.EquipID).Error; err != nil {
		return rental.Equipment{}, notFound(err, "equipment")
	}
	return *row.toDomain(), nil
}

// ListCourses returns every course, or the courses linked to equipID when it is non-zero.
func (s *Store) ListCourses(equipID int64) ([]rental.Course, error) {
	query := s.db.Order("course_id")
	if equipID != 0 {
		query = query.Where("course_id IN (?)",
			s.db.Model(&equipmentCourseRow{}).Select("course_id").Where("equip_id = ?", equipID))
	}
	return findCourses(query)
}

// CoursesForUser returns the courses of the equipment in the user's approved rentals.
func (s *Store) CoursesForUser(userID int64) ([]rental.Course, error) {
	approved := s.db.Model(&rentalRow{}).Select("equip_id").
		Where("user_id = ? AND status = ?", userID, string(rental.StatusApproved))
	links := s.db.Model(&equipmentCourseRow{}).Select("course_id").Where("equip_id IN (?)", approved)
	return findCourses(s.db.Where("course_id IN (?)", links).Order("course_id"))
}

func findCourses(query *gorm.DB) ([]rental.Course, error) {
	var rows []courseRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	out := make([]rental.Course, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

// CreateCourse adds a course and links it to equipID.
func (s *Store) CreateCourse(equipID int64, c rental.Course) (rental.Course, error) {
	row := courseRow{
		Title:       c.Title,
		Description: c.Description,
		ContentType: c.ContentType,
		Duration:    c.Duration,
		ContentURL:  c.ContentURL,
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var equip equipmentRow
		if err := tx.First(&equip, "equip_id = ?", equipID).Error; err != nil {
			return notFound(err, "equipment")
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		return tx.Create(&equipmentCourseRow{EquipID: equipID, CourseID: row.CourseID}).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return rental.Course{}, err
		}
		return rental.Course{}, fmt.Errorf("failed to create course: %w", err)
	}
	return row.toDomain(), nil
}

// CreateRental records a PENDING rental and takes one unit out of stock.
func (s *Store) CreateRental(userID, equipID int64, start, end time.Time, reason string) (rental.Rental, error) {
	row := rentalRow{
		UserID:    userID,
		EquipID:   equipID,
		StartDate: start,
		EndDate:   end,
		Status:    string(rental.StatusPending),
		Reason:    reason,
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&equipmentRow{}).
			Where("equip_id = ? AND available_qty >= 1", equipID).
			UpdateColumn("available_qty", gorm.Expr("available_qty - 1"))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrOutOfStock
		}
		return tx.Omit(clause.Associations).Create(&row).Error
	})
	if err != nil {
		if errors.Is(err, ErrOutOfStock) {
			return rental.Rental{}, err
		}
		return rental.Rental{}, fmt.Errorf("failed to create rental: %w", err)
	}
	return s.Rental(row.RentalID)
}

// Rental finds a rental with its equipment and renter.
func (s *Store) Rental(rentalID int64) (rental.Rental, error) {
	var row rentalRow
	if err := s.rentals().First(&row, "rental_id = ?", rentalID).Error; err != nil {
		return rental.Rental{}, notFound(err, "rental")
	}
	return row.toDomain(), nil
}

// RentalsByUser returns the rentals of one user.
func (s *Store) RentalsByUser(userID int64) ([]rental.Rental, error) {
	return findRentals(s.rentals().Where("user_id = ?", userID).Order("rental_id"))
}

// AllRentals returns every rental, newest first.
func (s *Store) AllRentals() ([]rental.Rental, error) {
	return findRentals(s.rentals().Order("created_at DESC").Order("rental_id DESC"))
}

// ChatRooms returns the rentals of instructorID's equipment that have at least one message.
func (s *Store) ChatRooms(instructorID int64) ([]rental.Rental, error) {
	owned := s.db.Model(&equipmentRow{}).Select("equip_id").Where("instructor_id = ?", instructorID)
	active := s.db.Model(&messageRow{}).Select("rental_id")
	return findRentals(s.rentals().
		Where("equip_id IN (?)", owned).
		Where("rental_id IN (?)", active).
		Order("rental_id"))
}

func (s *Store) rentals() *gorm.DB {
	return s.db.Preload("User").Preload("Equipment").Preload("Equipment.Instructor")
}

func findRentals(query *gorm.DB) ([]rental.Rental, error) {
	var rows []rentalRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list rentals: %w", err)
	}
	out := make([]rental.Rental, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

// ApproveRental marks a rental APPROVED.
func (s *Store) ApproveRental(rentalID int64) error {
	result := s.db.Model(&rentalRow{}).Where("rental_id = ?", rentalID).
		Update("status", string(rental.StatusApproved))
	if result.Error != nil {
		return fmt.Errorf("failed to approve rental: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AddMessage stores a chat message and returns it with sender and receiver.
func (s *Store) AddMessage(rentalID, senderID, receiverID int64, text string, at time.Time) (chat.Message, error) {
	row := messageRow{
		RentalID:   rentalID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Message:    text,
		Timestamp:  at,
	}
	if err := s.db.Omit(clause.Associations).Create(&row).Error; err != nil {
		return chat.Message{}, fmt.Errorf("failed to save message: %w", err)
	}
	if err := s.messages().First(&row, "id = ?", row.ID).Error; err != nil {
		return chat.Message{}, notFound(err, "message")
	}
	return row.toDomain(), nil
}

// History returns a rental's messages in timestamp order.
func (s *Store) History(rentalID int64) ([]chat.Message, error) {
	var rows []messageRow
	if err := s.messages().Where("rental_id = ?", rentalID).Order("timestamp").Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	out := make([]chat.Message, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

func (s *Store) messages() *gorm.DB {
	return s.db.Preload("Sender").Preload("Receiver")
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("failed to find %s: %w", what, err)
}
