package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/Mihailchik/TG-TimeChecker/internal/models"

	"github.com/jmoiron/sqlx"
)

// UserDirectory looks up and registers field workers and their
// notification tokens.
type UserDirectory struct {
	db *sqlx.DB
}

func NewUserDirectory(db *sqlx.DB) *UserDirectory {
	return &UserDirectory{db: db}
}

// GetUser returns the registered worker, or nil when unknown
func (d *UserDirectory) GetUser(ctx context.Context, userID int64) (*models.Worker, error) {
	var worker models.Worker
	query := `SELECT * FROM workers WHERE user_id = $1`

	err := d.db.GetContext(ctx, &worker, query, userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get worker %d: %w", userID, err)
	}
	return &worker, nil
}

// RegisterUser upserts a worker registration
func (d *UserDirectory) RegisterUser(ctx context.Context, w models.Worker) error {
	query := `INSERT INTO workers (user_id, username, full_name, phone)
			  VALUES ($1, $2, $3, $4)
			  ON CONFLICT (user_id) DO UPDATE
			  SET username = EXCLUDED.username,
				  full_name = EXCLUDED.full_name,
				  phone = EXCLUDED.phone`

	if _, err := d.db.ExecContext(ctx, query, w.UserID, w.Username, w.FullName, w.Phone); err != nil {
		return fmt.Errorf("register worker %d: %w", w.UserID, err)
	}

	log.Printf("✅ Worker registered: %d (%s)", w.UserID, w.FullName)
	return nil
}

// SaveFCMToken stores a push token for a worker, replacing any previous
// owner of the same token (device handed to another worker).
func (d *UserDirectory) SaveFCMToken(ctx context.Context, userID int64, token, deviceType string) error {
	query := `INSERT INTO fcm_tokens (user_id, token, device_type)
			  VALUES ($1, $2, $3)
			  ON CONFLICT (token) DO UPDATE
			  SET user_id = EXCLUDED.user_id, device_type = EXCLUDED.device_type`

	if _, err := d.db.ExecContext(ctx, query, userID, token, deviceType); err != nil {
		return fmt.Errorf("save fcm token for %d: %w", userID, err)
	}
	return nil
}

// GetFCMTokens returns all push tokens registered for a worker
func (d *UserDirectory) GetFCMTokens(ctx context.Context, userID int64) ([]string, error) {
	var tokens []string
	query := `SELECT token FROM fcm_tokens WHERE user_id = $1`

	if err := d.db.SelectContext(ctx, &tokens, query, userID); err != nil {
		return nil, fmt.Errorf("get fcm tokens for %d: %w", userID, err)
	}
	return tokens, nil
}

// GetAdminByEmail returns the manager account, or nil when unknown
func (d *UserDirectory) GetAdminByEmail(ctx context.Context, email string) (*models.Admin, error) {
	var admin models.Admin
	query := `SELECT * FROM admins WHERE email = $1`

	err := d.db.GetContext(ctx, &admin, query, email)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get admin %s: %w", email, err)
	}
	return &admin, nil
}
