package database

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/sahilchouksey/coursemart-api/model"
	"github.com/sahilchouksey/coursemart-api/utils/auth"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Seeder handles database seeding operations
type Seeder struct {
	db     *gorm.DB
	hasher auth.Hasher
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db, hasher: auth.NewBcryptHasher(0)}
}

// SeedAll runs all seed functions
func (s *Seeder) SeedAll() error {
	log.Println("🌱 Starting database seeding...")

	if err := s.SeedAdminUser(); err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}

	instructor, err := s.SeedDemoInstructor()
	if err != nil {
		return fmt.Errorf("failed to seed demo instructor: %w", err)
	}

	if instructor != nil {
		if err := s.SeedCourses(instructor); err != nil {
			return fmt.Errorf("failed to seed courses: %w", err)
		}
	}

	log.Println("✅ Database seeding completed successfully!")
	return nil
}

// activeUser creates a verified account unless the email is already taken
func (s *Seeder) activeUser(email, password, name string, role model.Role) (*model.User, bool, error) {
	email = model.NormalizeEmail(email)

	var existing model.User
	err := s.db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, false, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &model.User{
		Email:        email,
		PasswordHash: passwordHash,
		Name:         name,
		Role:         role,
		Status:       model.UserStatusActive,
		VerifiedAt:   &now,
	}
	if err := s.db.Create(user).Error; err != nil {
		return nil, false, err
	}
	return user, true, nil
}

// SeedAdminUser creates the admin account from ADMIN_EMAIL and ADMIN_PASSWORD
func (s *Seeder) SeedAdminUser() error {
	var count int64
	if err := s.db.Model(&model.User{}).Where("role = ?", model.RoleAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		log.Println("⏭️  Admin user already exists, skipping...")
		return nil
	}

	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")
	if adminEmail == "" || adminPassword == "" {
		log.Println("⚠️  ADMIN_EMAIL and ADMIN_PASSWORD environment variables not set, skipping admin user creation")
		return nil
	}

	admin, created, err := s.activeUser(adminEmail, adminPassword, "System Administrator", model.RoleAdmin)
	if err != nil {
		return err
	}
	if !created {
		log.Printf("⚠️  %s already exists with role %s, not promoting\n", admin.Email, admin.Role)
		return nil
	}

	log.Printf("✅ Created admin user: %s\n", admin.Email)
	return nil
}

// SeedDemoInstructor creates the instructor that owns the demo catalogue.
// Returns nil when DEMO_INSTRUCTOR_EMAIL is not set.
func (s *Seeder) SeedDemoInstructor() (*model.User, error) {
	email := os.Getenv("DEMO_INSTRUCTOR_EMAIL")
	password := os.Getenv("DEMO_INSTRUCTOR_PASSWORD")
	if email == "" || password == "" {
		log.Println("⏭️  DEMO_INSTRUCTOR_EMAIL not set, skipping demo catalogue")
		return nil, nil
	}

	instructor, created, err := s.activeUser(email, password, "Demo Instructor", model.RoleInstructor)
	if err != nil {
		return nil, err
	}
	if created {
		log.Printf("✅ Created demo instructor: %s\n", instructor.Email)
	}
	return instructor, nil
}

// SeedCourses creates a small published catalogue with free and paid courses
func (s *Seeder) SeedCourses(instructor *model.User) error {
	var count int64
	if err := s.db.Model(&model.Course{}).Where("instructor_id = ?", instructor.ID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		log.Println("⏭️  Demo courses already exist, skipping...")
		return nil
	}

	courses := []model.Course{
		{
			InstructorID: instructor.ID,
			Title:        "Go Fundamentals",
			Description:  "Types, interfaces, error handling and the standard toolchain",
			Price:        decimal.Zero,
			Published:    true,
		},
		{
			InstructorID: instructor.ID,
			Title:        "Concurrency Patterns in Go",
			Description:  "Goroutines, channels, context cancellation and worker pools",
			Price:        decimal.RequireFromString("49.99"),
			Capacity:     100,
			Published:    true,
		},
		{
			InstructorID: instructor.ID,
			Title:        "Building HTTP APIs with Fiber",
			Description:  "Routing, middleware, validation and testing",
			Price:        decimal.RequireFromString("29.00"),
			Published:    true,
		},
		{
			InstructorID: instructor.ID,
			Title:        "Production PostgreSQL with GORM",
			Description:  "Draft course, not yet visible in the catalogue",
			Price:        decimal.RequireFromString("59.00"),
			Capacity:     25,
		},
	}

	if err := s.db.Create(&courses).Error; err != nil {
		return err
	}

	log.Printf("✅ Created %d demo courses\n", len(courses))
	return nil
}

// RunSeeds is a convenience function to run all seeds
func RunSeeds(db *gorm.DB) error {
	return NewSeeder(db).SeedAll()
}
