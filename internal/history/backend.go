// Package history fans shift log entries out to durable record-keeping
// backends (Google Sheets, local Excel workbook). Backends fail
// independently; logging never blocks the shift workflow on one outage.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/Mihailchik/TG-TimeChecker/internal/models"
)

// Entry is the flattened, backend-agnostic projection of a shift sent to
// the sink. Immutable once constructed.
type Entry struct {
	ShiftID    string
	UserID     int64
	UserName   string
	Project    string
	StartTime  time.Time
	EndTime    *time.Time
	Hours      *float64
	StartGeo   string
	EndGeo     string
	StartVideo string
	EndVideo   string
	Status     string
	Comment    string
}

// EndUpdate carries the closing fields written in place over a
// previously appended start row.
type EndUpdate struct {
	EndTime  time.Time
	Hours    float64
	EndGeo   string
	EndVideo string
	Status   string
}

// Backend is one durable log target. LogStart returns the row handle the
// backend assigned to the appended row, or 0 when it hands out none.
type Backend interface {
	Name() string
	LogStart(ctx context.Context, e Entry) (int, error)
	LogComplete(ctx context.Context, e Entry) error
}

// RowUpdater is the optional capability to mutate a previously appended
// row in place. Backends without it only ever append.
type RowUpdater interface {
	UpdateRow(ctx context.Context, row int, u EndUpdate) error
}

// WorkerRecorder is the optional capability to mirror worker
// registrations into the backend's Users sheet.
type WorkerRecorder interface {
	RecordWorker(ctx context.Context, w models.Worker) error
}

// Columns of the Shifts sheet, identical across backends (A through O)
var shiftColumns = []interface{}{
	"Event ID", "User ID", "Worker", "Project",
	"Start Date", "Start Time", "End Date", "End Time",
	"Work Hours (hrs)", "Start Geo", "End Geo",
	"Start Video", "End Video", "Status", "Comment",
}

var workerColumns = []interface{}{
	"User ID", "Username", "Full Name", "Phone", "Registration Date",
}

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04:05"
)

// buildRow flattens an entry into the 15-column Shifts layout
func buildRow(e Entry) []interface{} {
	startDate := e.StartTime.Format(dateLayout)
	startClock := e.StartTime.Format(clockLayout)

	endDate, endClock := "", ""
	if e.EndTime != nil {
		endDate = e.EndTime.Format(dateLayout)
		endClock = e.EndTime.Format(clockLayout)
	}

	hours := ""
	if e.Hours != nil {
		hours = fmt.Sprintf("%.2f", *e.Hours)
	}

	return []interface{}{
		e.ShiftID,    // A: Event ID
		e.UserID,     // B: User ID
		e.UserName,   // C: Worker
		e.Project,    // D: Project
		startDate,    // E: Start Date
		startClock,   // F: Start Time
		endDate,      // G: End Date
		endClock,     // H: End Time
		hours,        // I: Work Hours
		e.StartGeo,   // J: Start Geo
		e.EndGeo,     // K: End Geo
		e.StartVideo, // L: Start Video
		e.EndVideo,   // M: End Video
		e.Status,     // N: Status
		e.Comment,    // O: Comment
	}
}
