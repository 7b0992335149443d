package database

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pmtrack/internal/models"
)

type SeedOptions struct {
	AdminUsername string
	AdminPassword string
	DemoUsers     bool
}

var defaultRoles = []models.Role{
	{Name: models.RoleAdmin, Description: "Full access, user and role management"},
	{Name: models.RoleManager, Description: "Creates and runs projects"},
	{Name: models.RoleMember, Description: "Works on assigned projects"},
	{Name: models.RoleViewer, Description: "Read-only access and audit trail"},
}

// Seed creates the role catalogue, the default admin and, if asked, a few demo
// accounts. It is safe to run on every start.
func Seed(ctx context.Context, db *gorm.DB, opts SeedOptions, log zerolog.Logger) error {
	db = db.WithContext(ctx)

	for _, r := range defaultRoles {
		role := r
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&role).Error; err != nil {
			return fmt.Errorf("seed role %s: %w", r.Name, err)
		}
	}

	if err := createDefaultAdmin(db, opts, log); err != nil {
		return err
	}
	if opts.DemoUsers {
		return seedDemoUsers(db, log)
	}
	return nil
}

// admin only comes from config
func createDefaultAdmin(db *gorm.DB, opts SeedOptions, log zerolog.Logger) error {
	username := opts.AdminUsername
	if username == "" {
		username = "admin@pmtrack.local"
	}
	password := opts.AdminPassword
	if password == "" {
		password = "Admin123!"
	}

	var count int64
	if err := db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count).Error; err != nil {
		return fmt.Errorf("check admin user: %w", err)
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	admin := models.User{
		Username:     username,
		DisplayName:  "Administrator",
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
	}
	if err := db.Create(&admin).Error; err != nil {
		return fmt.Errorf("create default admin: %w", err)
	}

	log.Info().Str("username", username).Msg("created default admin user")
	return nil
}

func seedDemoUsers(db *gorm.DB, log zerolog.Logger) error {
	users := []struct {
		Username string
		Password string
		Role     models.UserRole
	}{
		{"pm@pmtrack.local", "Manager123!", models.RoleManager},
		{"dev@pmtrack.local", "Member123!", models.RoleMember},
		{"audit@pmtrack.local", "Viewer123!", models.RoleViewer},
	}

	for _, u := range users {
		var count int64
		if err := db.Model(&models.User{}).Where("username = ?", u.Username).Count(&count).Error; err != nil {
			return fmt.Errorf("check seed user %s: %w", u.Username, err)
		}
		if count > 0 {
			continue
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash password for %s: %w", u.Username, err)
		}

		user := models.User{Username: u.Username, PasswordHash: string(hash), Role: u.Role}
		if err := db.Create(&user).Error; err != nil {
			return fmt.Errorf("create seed user %s: %w", u.Username, err)
		}
		log.Info().Str("username", u.Username).Str("role", string(u.Role)).Msg("created demo user")
	}
	return nil
}
