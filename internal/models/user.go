package models

import "time"

// Worker is a registered field worker, keyed by their messenger user id
type Worker struct {
	UserID       int64     `json:"user_id" db:"user_id"`
	Username     string    `json:"username" db:"username"`
	FullName     string    `json:"full_name" db:"full_name"`
	Phone        string    `json:"phone" db:"phone"`
	RegisteredAt time.Time `json:"registered_at" db:"registered_at"`
}

// Admin is a manager account for the HTTP API
type Admin struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Password  string    `json:"-" db:"password"`
	Name      string    `json:"name" db:"name"`
	Role      string    `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// AdminResponse is the safe projection of an Admin (no password hash)
type AdminResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

func (a *Admin) ToResponse() *AdminResponse {
	return &AdminResponse{ID: a.ID, Email: a.Email, Name: a.Name, Role: a.Role}
}

// FCMToken is a registered push-notification device token for a worker
type FCMToken struct {
	ID         int       `json:"id" db:"id"`
	UserID     int64     `json:"user_id" db:"user_id"`
	Token      string    `json:"token" db:"token"`
	DeviceType string    `json:"device_type" db:"device_type"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
