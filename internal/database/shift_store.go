package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/Mihailchik/TG-TimeChecker/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ErrShiftExists is returned when a worker already has an active shift
var ErrShiftExists = errors.New("worker already has an active shift")

// ShiftStore persists in-progress shifts. One row per worker while a
// shift is active; every call is a complete durable write, no caching.
type ShiftStore struct {
	db *sqlx.DB
}

func NewShiftStore(db *sqlx.DB) *ShiftStore {
	return &ShiftStore{db: db}
}

// CreateShift opens a fresh shift row in status "init" and returns its
// sequential id. The partial unique index on (user_id) WHERE is_active
// rejects a second concurrent start for the same worker.
func (s *ShiftStore) CreateShift(ctx context.Context, userID int64) (string, error) {
	var shiftID string
	query := `INSERT INTO active_shifts (shift_id, user_id, status, start_time, is_active)
			  VALUES (nextval('shift_id_seq')::TEXT, $1, $2, $3, TRUE)
			  RETURNING shift_id`

	err := s.db.QueryRowContext(ctx, query, userID, models.StatusInit, time.Now()).Scan(&shiftID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return "", ErrShiftExists
		}
		return "", fmt.Errorf("create shift: %w", err)
	}

	log.Printf("🆕 Shift %s created for worker %d", shiftID, userID)
	return shiftID, nil
}

// UpdateShift applies a typed partial update to a shift row. No-op when
// the update carries no fields.
func (s *ShiftStore) UpdateShift(ctx context.Context, shiftID string, upd models.ShiftUpdate) error {
	if upd.IsEmpty() {
		return nil
	}

	set := make([]string, 0, 10)
	args := make([]interface{}, 0, 11)
	add := func(column string, value interface{}) {
		args = append(args, value)
		set = append(set, column+" = $"+strconv.Itoa(len(args)))
	}

	if upd.Status != nil {
		add("status", *upd.Status)
	}
	if upd.Project != nil {
		add("project", *upd.Project)
	}
	if upd.StartGeo != nil {
		add("start_geo", *upd.StartGeo)
	}
	if upd.EndGeo != nil {
		add("end_geo", *upd.EndGeo)
	}
	if upd.StartVideo != nil {
		add("start_video_ref", *upd.StartVideo)
	}
	if upd.EndVideo != nil {
		add("end_video_ref", *upd.EndVideo)
	}
	if upd.SheetRow != nil {
		add("sheet_row", *upd.SheetRow)
	}
	if upd.EndTime != nil {
		add("end_time", *upd.EndTime)
	}
	if upd.Comment != nil {
		add("comment", *upd.Comment)
	}
	if upd.IsActive != nil {
		add("is_active", *upd.IsActive)
	}

	args = append(args, shiftID)
	query := "UPDATE active_shifts SET " + strings.Join(set, ", ") +
		" WHERE shift_id = $" + strconv.Itoa(len(args))

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update shift %s: %w", shiftID, err)
	}
	return nil
}

// GetActiveShift returns the worker's active shift, or nil when none exists
func (s *ShiftStore) GetActiveShift(ctx context.Context, userID int64) (*models.Shift, error) {
	var shift models.Shift
	query := `SELECT * FROM active_shifts WHERE user_id = $1 AND is_active = TRUE LIMIT 1`

	err := s.db.GetContext(ctx, &shift, query, userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active shift for %d: %w", userID, err)
	}
	return &shift, nil
}

// GetAllActiveShifts returns every currently open shift
func (s *ShiftStore) GetAllActiveShifts(ctx context.Context) ([]models.Shift, error) {
	var shifts []models.Shift
	query := `SELECT * FROM active_shifts WHERE is_active = TRUE ORDER BY start_time`

	if err := s.db.SelectContext(ctx, &shifts, query); err != nil {
		return nil, fmt.Errorf("get all active shifts: %w", err)
	}
	return shifts, nil
}

// RemoveActiveShift closes the worker's active shift without logging
// anything. It reports success even when no row matched, mirroring the
// idempotent contract callers already rely on.
func (s *ShiftStore) RemoveActiveShift(ctx context.Context, userID int64) (bool, error) {
	query := `UPDATE active_shifts SET is_active = FALSE WHERE user_id = $1 AND is_active = TRUE`

	if _, err := s.db.ExecContext(ctx, query, userID); err != nil {
		return false, fmt.Errorf("remove active shift for %d: %w", userID, err)
	}
	return true, nil
}
