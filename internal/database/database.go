package database

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func Connect(dbURL string) (*sqlx.DB, error) {
	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Println("🔌 DATABASE CONNECTION ATTEMPT")
	log.Printf("   📍 Database URL length: %d characters", len(dbURL))
	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		log.Printf("❌ DATABASE CONNECTION FAILED: %v", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		log.Printf("❌ DATABASE PING FAILED: %v", err)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("✅ DATABASE CONNECTION SUCCESSFUL")
	return db, nil
}

func Migrate(db *sqlx.DB) error {
	migrations := []string{
		// Manager accounts for the HTTP API
		`CREATE TABLE IF NOT EXISTS admins (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password TEXT NOT NULL,
			name TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'admin',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,

		// Registered field workers, keyed by messenger user id
		`CREATE TABLE IF NOT EXISTS workers (
			user_id BIGINT PRIMARY KEY,
			username TEXT NOT NULL DEFAULT '',
			full_name TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			registered_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,

		// Sequential shift identifiers
		`CREATE SEQUENCE IF NOT EXISTS shift_id_seq`,

		// Transient shift state. Rows are closed (is_active = false),
		// never deleted.
		`CREATE TABLE IF NOT EXISTS active_shifts (
			shift_id TEXT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			status TEXT NOT NULL,
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ,
			project TEXT,
			start_geo TEXT,
			end_geo TEXT,
			start_video_ref TEXT,
			end_video_ref TEXT,
			sheet_row INT,
			comment TEXT,
			is_active BOOLEAN NOT NULL DEFAULT TRUE
		)`,

		// At most one active shift per worker. A rapid double "start"
		// hits this constraint instead of creating a second row.
		`CREATE UNIQUE INDEX IF NOT EXISTS one_active_shift_per_user
			ON active_shifts (user_id) WHERE is_active`,

		`CREATE INDEX IF NOT EXISTS active_shifts_started_idx
			ON active_shifts (start_time) WHERE is_active`,

		// Push notification tokens for workers
		`CREATE TABLE IF NOT EXISTS fcm_tokens (
			id SERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			token TEXT NOT NULL UNIQUE,
			device_type TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	log.Printf("✅ Applied %d migrations", len(migrations))
	return nil
}
