// server/internal/database/seeder.go
package database

import (
	"context"
	"log"
	"time"

	"requisition-api-server/internal/auth"
	"requisition-api-server/internal/models"
	"requisition-api-server/internal/store"
)

const adminEmail = "admin@example.com"

// SeedAdmin creates the bootstrap admin account if no user exists yet. The
// default password must be changed on first login.
func SeedAdmin(ctx context.Context, s store.Store) error {
	var existing models.User
	exists, err := s.Get(ctx, store.ColUsers, adminEmail, &existing)
	if err != nil {
		return err
	}
	if exists {
		log.Println("Admin already exists. Seeding skipped.")
		return nil
	}

	log.Println("Admin not found. Seeding...")
	hashedPassword, err := auth.HashPassword("adminpassword", adminEmail)
	if err != nil {
		return err
	}

	admin := models.User{
		Email:        adminEmail,
		Name:         "Admin",
		Role:         "Admin",
		PasswordHash: hashedPassword,
		Department:   "system",
		CreatedBy:    "seed",
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.Set(ctx, store.ColUsers, adminEmail, admin, false); err != nil {
		return err
	}

	log.Println("Admin seeded successfully.")
	return nil
}
