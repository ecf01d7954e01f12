package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/Mihailchik/TG-TimeChecker/internal/database"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Get database URL
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	// Connect to database
	db, err := database.Connect(dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	log.Println("Connected to database successfully")

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Migration completed successfully!")

	if err := database.SeedAdmin(db); err != nil {
		log.Fatalf("Manager seeding failed: %v", err)
	}

	// Query and display summary
	var result struct {
		Admins       int `db:"admins"`
		Workers      int `db:"workers"`
		ActiveShifts int `db:"active_shifts"`
	}

	query := `
		SELECT
			(SELECT COUNT(*) FROM admins) AS admins,
			(SELECT COUNT(*) FROM workers) AS workers,
			(SELECT COUNT(*) FROM active_shifts WHERE is_active) AS active_shifts
	`
	if err := db.Get(&result, query); err != nil {
		log.Fatalf("Failed to query summary: %v", err)
	}

	fmt.Println("\n============================================================")
	fmt.Println("MIGRATION SUMMARY")
	fmt.Println("============================================================")
	fmt.Printf("Manager accounts:        %d\n", result.Admins)
	fmt.Printf("Registered workers:      %d\n", result.Workers)
	fmt.Printf("Active shifts:           %d\n", result.ActiveShifts)
	fmt.Println("============================================================")
}
