package database

import (
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

// SeedAdmin creates the initial manager account from ADMIN_EMAIL /
// ADMIN_PASSWORD when the admins table is empty.
func SeedAdmin(db *sqlx.DB) error {
	var count int
	if err := db.Get(&count, "SELECT COUNT(*) FROM admins"); err != nil {
		return fmt.Errorf("count admins: %w", err)
	}

	if count > 0 {
		log.Println("✓ Admin account already seeded, skipping...")
		return nil
	}

	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		log.Println("⚠️  ADMIN_EMAIL / ADMIN_PASSWORD not set, skipping admin seed")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	query := `INSERT INTO admins (id, email, password, name, role)
			  VALUES ($1, $2, $3, $4, 'admin')`
	if _, err := db.Exec(query, uuid.New().String(), email, string(hash), "Manager"); err != nil {
		return fmt.Errorf("insert admin: %w", err)
	}

	log.Printf("🌱 Seeded admin account: %s", email)
	return nil
}
