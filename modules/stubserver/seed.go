package stubserver

import (
	"errors"

	"github.com/example/sportsedu-client/domain/rental"
	"github.com/example/sportsedu-client/domain/user"
	"github.com/go-monolith/mono/pkg/types"
)

// Demo accounts created by SeedDemo.
const (
	DemoAdminUsername   = "coach"
	DemoAdminPassword   = "coach1234"
	DemoStudentUsername = "student"
	DemoStudentPassword = "student1234"
)

// SeedDemo creates demo accounts, equipment and courses. It does nothing if the admin account exists.
func SeedDemo(store *Store, hasher *PasswordHasher, logger types.Logger) error {
	if _, err := store.UserByUsername(DemoAdminUsername); err == nil {
		return nil
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	adminHash, err := hasher.Hash(DemoAdminPassword)
	if err != nil {
		return err
	}
	coach, err := store.CreateUser(DemoAdminUsername, adminHash, "Kim Coach", "Sports Center", user.RoleAdmin)
	if err != nil {
		return err
	}

	studentHash, err := hasher.Hash(DemoStudentPassword)
	if err != nil {
		return err
	}
	if _, err := store.CreateUser(DemoStudentUsername, studentHash, "Lee Student", "Seoul High School", user.RoleUser); err != nil {
		return err
	}

	catalog := []struct {
		equipment rental.Equipment
		courses   []rental.Course
	}{
		{
			equipment: rental.Equipment{
				Name: "Tennis Racket", Category: "TENNIS", Rating: 4.7, ReviewCount: 32, Badge: "BEST",
				TotalQty: 5, AvailableQty: 5, RentalFee: 5000, InstructorID: coach.UserID,
				Description: "Lightweight racket for beginners.",
			},
			courses: []rental.Course{
				{Title: "Grip and stance", ContentType: "VIDEO", Duration: "12:30", ContentURL: "https://example.com/tennis/1"},
				{Title: "Forehand basics", ContentType: "VIDEO", Duration: "18:05", ContentURL: "https://example.com/tennis/2"},
			},
		},
		{
			equipment: rental.Equipment{
				Name: "Badminton Set", Category: "BADMINTON", Rating: 4.3, ReviewCount: 11,
				TotalQty: 3, AvailableQty: 3, RentalFee: 3000, InstructorID: coach.UserID,
			},
			courses: []rental.Course{
				{Title: "Serving rules", ContentType: "DOC", ContentURL: "https://example.com/badminton/1"},
			},
		},
		{
			equipment: rental.Equipment{
				Name: "Yoga Mat", Category: "FITNESS", TotalQty: 10, AvailableQty: 10, RentalFee: 1000,
			},
		},
	}

	for _, item := range catalog {
		equip, err := store.CreateEquipment(item.equipment)
		if err != nil {
			return err
		}
		for _, course := range item.courses {
			if _, err := store.CreateCourse(equip.EquipID, course); err != nil {
				return err
			}
		}
	}

	logger.Info("Seeded demo data", "admin", DemoAdminUsername, "student", DemoStudentUsername, "equipment", len(catalog))
	return nil
}
