package models

import (
	"strings"
	"time"
)

// ShiftStatus is the state-machine discriminator for a shift
type ShiftStatus string

const (
	StatusInit             ShiftStatus = "init"              // Row created, nothing chosen yet
	StatusSiteOK           ShiftStatus = "start_site_ok"     // Site picked
	StatusStartGeoOK       ShiftStatus = "start_geo_ok"      // Start geolocation received
	StatusActive           ShiftStatus = "active"            // Start video received, shift running
	StatusActiveWarning    ShiftStatus = "active_warning"    // Running, but start video was a full file
	StatusEndGeoOK         ShiftStatus = "end_geo_ok"        // End geolocation received
	StatusCompletedOK      ShiftStatus = "completed_ok"      // Closed cleanly
	StatusCompletedWarning ShiftStatus = "completed_warning" // Closed, but a video was a full file
	StatusManagerTerminate ShiftStatus = "TERMINATED_BY_MANAGER_MSG"
)

// TerminatedStatus builds the terminal status for a forced termination
func TerminatedStatus(reason string) ShiftStatus {
	return ShiftStatus("TERMINATED: " + reason)
}

// IsTerminal returns true when no further step may touch the shift
func (s ShiftStatus) IsTerminal() bool {
	switch s {
	case StatusCompletedOK, StatusCompletedWarning, StatusManagerTerminate:
		return true
	}
	return strings.HasPrefix(string(s), "TERMINATED")
}

// HasWarning reports whether the shift already carries the heavy-video annotation
func (s ShiftStatus) HasWarning() bool {
	return s == StatusActiveWarning || s == StatusCompletedWarning
}

// Shift represents a worker's shift while it lives in the state store.
// Once closed (is_active = false) the row is never touched again; history
// backends own the durable record from that point on.
type Shift struct {
	ShiftID       string      `json:"shift_id" db:"shift_id"`
	UserID        int64       `json:"user_id" db:"user_id"`
	Status        ShiftStatus `json:"status" db:"status"`
	StartTime     time.Time   `json:"start_time" db:"start_time"`
	EndTime       *time.Time  `json:"end_time" db:"end_time"`
	Project       *string     `json:"project" db:"project"`
	StartGeo      *string     `json:"start_geo" db:"start_geo"`
	EndGeo        *string     `json:"end_geo" db:"end_geo"`
	StartVideoRef *string     `json:"start_video_ref" db:"start_video_ref"`
	EndVideoRef   *string     `json:"end_video_ref" db:"end_video_ref"`
	SheetRow      *int        `json:"sheet_row" db:"sheet_row"`
	Comment       *string     `json:"comment" db:"comment"`
	IsActive      bool        `json:"is_active" db:"is_active"`
}

// ProjectName returns the selected site, or "" while none is picked
func (s *Shift) ProjectName() string {
	if s.Project == nil {
		return ""
	}
	return *s.Project
}

// ShiftUpdate is a typed partial update for a shift row. Only non-nil
// fields are written, so a step touches exactly the columns it owns.
type ShiftUpdate struct {
	Status     *ShiftStatus
	Project    *string
	StartGeo   *string
	EndGeo     *string
	StartVideo *string
	EndVideo   *string
	SheetRow   *int
	EndTime    *time.Time
	Comment    *string
	IsActive   *bool
}

// IsEmpty reports whether the update would touch no columns
func (u ShiftUpdate) IsEmpty() bool {
	return u.Status == nil && u.Project == nil && u.StartGeo == nil &&
		u.EndGeo == nil && u.StartVideo == nil && u.EndVideo == nil &&
		u.SheetRow == nil && u.EndTime == nil && u.Comment == nil &&
		u.IsActive == nil
}

// MediaKindFile marks video proof submitted as a full file upload rather
// than the lightweight circle format. It is accepted, but annotated.
const MediaKindFile = "file"

// MediaKind extracts the kind part of a raw media token ("rawId|kind").
func MediaKind(ref string) string {
	if i := strings.LastIndexByte(ref, '|'); i >= 0 {
		return ref[i+1:]
	}
	return ""
}

func StatusPtr(s ShiftStatus) *ShiftStatus { return &s }
func StringPtr(s string) *string           { return &s }
func IntPtr(i int) *int                    { return &i }
func BoolPtr(b bool) *bool                 { return &b }
func TimePtr(t time.Time) *time.Time       { return &t }
