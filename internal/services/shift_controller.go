package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Mihailchik/TG-TimeChecker/internal/history"
	"github.com/Mihailchik/TG-TimeChecker/internal/models"
)

var (
	// ErrNotRegistered means the worker has no registration record
	ErrNotRegistered = errors.New("worker is not registered")
	// ErrShiftAlreadyActive means a shift is already running for the worker
	ErrShiftAlreadyActive = errors.New("shift already active")
	// ErrNoActiveShift means a step was called with no shift in progress
	ErrNoActiveShift = errors.New("no active shift")
	// ErrWrongStep means the shift is not in a state that accepts this step
	ErrWrongStep = errors.New("step not allowed in current shift state")
)

// PendingUploadRef is logged as the video link while the durable upload
// has not finished yet.
const PendingUploadRef = "Pending Upload"

// ShiftStore is the transient per-worker shift state the controller
// drives. The backing implementation lives in internal/database.
type ShiftStore interface {
	CreateShift(ctx context.Context, userID int64) (string, error)
	UpdateShift(ctx context.Context, shiftID string, upd models.ShiftUpdate) error
	GetActiveShift(ctx context.Context, userID int64) (*models.Shift, error)
	GetAllActiveShifts(ctx context.Context) ([]models.Shift, error)
	RemoveActiveShift(ctx context.Context, userID int64) (bool, error)
}

// UserDirectory resolves and registers workers
type UserDirectory interface {
	GetUser(ctx context.Context, userID int64) (*models.Worker, error)
	RegisterUser(ctx context.Context, w models.Worker) error
}

// HistorySink is the fan-out writer over the configured history backends
type HistorySink interface {
	LogStart(ctx context.Context, e history.Entry) int
	LogComplete(ctx context.Context, e history.Entry) bool
	UpdateAt(ctx context.Context, row int, u history.EndUpdate) bool
	RecordWorker(ctx context.Context, w models.Worker)
}

// SitesRepo lists the sites a worker may start a shift at
type SitesRepo interface {
	ListSites(ctx context.Context) ([]string, error)
}

// SiteDetailer is the optional capability to resolve a site's
// coordinates and radius. The static repo doesn't carry them.
type SiteDetailer interface {
	SiteDetails(ctx context.Context, siteName string) (*Site, error)
}

// ShiftController drives the shift state machine. It is the sole mutator
// of shift status: the store write is the source of truth for "did the
// step happen", sink writes are best-effort enrichment that never roll a
// committed transition back.
type ShiftController struct {
	store ShiftStore
	sink  HistorySink
	calc  TimeCalculator
	sites SitesRepo
	users UserDirectory
}

func NewShiftController(store ShiftStore, sink HistorySink, calc TimeCalculator, sites SitesRepo, users UserDirectory) *ShiftController {
	return &ShiftController{store: store, sink: sink, calc: calc, sites: sites, users: users}
}

// --- Registration ---

// IsUserRegistered reports whether the worker may start shifts
func (c *ShiftController) IsUserRegistered(ctx context.Context, userID int64) (bool, error) {
	worker, err := c.users.GetUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return worker != nil, nil
}

// RegisterUser records the worker and mirrors the registration into the
// history backends' Users sheets (best effort).
func (c *ShiftController) RegisterUser(ctx context.Context, w models.Worker) error {
	if err := c.users.RegisterUser(ctx, w); err != nil {
		return err
	}
	c.sink.RecordWorker(ctx, w)
	return nil
}

// --- Sites ---

// AvailableSites returns the sites presented at shift start
func (c *ShiftController) AvailableSites(ctx context.Context) ([]string, error) {
	return c.sites.ListSites(ctx)
}

// SiteDetails resolves one site's coordinates and check-in radius. Nil
// when the site is unknown or the repo carries no coordinates.
func (c *ShiftController) SiteDetails(ctx context.Context, siteName string) (*Site, error) {
	detailer, ok := c.sites.(SiteDetailer)
	if !ok {
		return nil, nil
	}
	return detailer.SiteDetails(ctx, siteName)
}

// --- Start flow ---

// InitShift opens a new shift for a registered worker with no running
// shift. State: (none) -> init.
func (c *ShiftController) InitShift(ctx context.Context, userID int64) (string, error) {
	registered, err := c.IsUserRegistered(ctx, userID)
	if err != nil {
		return "", err
	}
	if !registered {
		return "", ErrNotRegistered
	}

	shift, err := c.store.GetActiveShift(ctx, userID)
	if err != nil {
		return "", err
	}
	if shift != nil {
		return "", ErrShiftAlreadyActive
	}

	return c.store.CreateShift(ctx, userID)
}

// SetShiftSite records the chosen site. State: init -> start_site_ok.
func (c *ShiftController) SetShiftSite(ctx context.Context, userID int64, siteName string) error {
	shift, err := c.requireShift(ctx, userID, models.StatusInit, models.StatusSiteOK)
	if err != nil {
		return err
	}

	return c.store.UpdateShift(ctx, shift.ShiftID, models.ShiftUpdate{
		Project: &siteName,
		Status:  models.StatusPtr(models.StatusSiteOK),
	})
}

// SetShiftStartGeo records the start geolocation.
// State: start_site_ok -> start_geo_ok.
func (c *ShiftController) SetShiftStartGeo(ctx context.Context, userID int64, geo string) error {
	shift, err := c.requireShift(ctx, userID, models.StatusSiteOK, models.StatusStartGeoOK)
	if err != nil {
		return err
	}

	return c.store.UpdateShift(ctx, shift.ShiftID, models.ShiftUpdate{
		StartGeo: &geo,
		Status:   models.StatusPtr(models.StatusStartGeoOK),
	})
}

// SetShiftStartVideo records the start video proof and opens the shift.
// State: start_geo_ok -> active | active_warning (warning when the video
// came as a full file). The start row is logged to the sink synchronously;
// a returned row handle is persisted for later in-place update. videoLink
// may be empty while the durable upload is still in flight.
func (c *ShiftController) SetShiftStartVideo(ctx context.Context, userID int64, mediaRef, videoLink string) error {
	shift, err := c.requireShift(ctx, userID, models.StatusStartGeoOK)
	if err != nil {
		return err
	}

	status := models.StatusActive
	if models.MediaKind(mediaRef) == models.MediaKindFile {
		status = models.StatusActiveWarning
	}

	if err := c.store.UpdateShift(ctx, shift.ShiftID, models.ShiftUpdate{
		StartVideo: &mediaRef,
		Status:     &status,
	}); err != nil {
		return err
	}

	startVideo := videoLink
	if startVideo == "" {
		startVideo = PendingUploadRef
	}

	entry := history.Entry{
		ShiftID:    shift.ShiftID,
		UserID:     userID,
		UserName:   c.workerName(ctx, userID),
		Project:    shift.ProjectName(),
		StartTime:  shift.StartTime,
		StartGeo:   deref(shift.StartGeo),
		StartVideo: startVideo,
		Status:     "ACTIVE",
	}

	// Awaited on purpose: the row handle must land in the store before
	// the shift can be finalized against it. The shift itself is already
	// committed to active, so a lost handle only costs the in-place
	// update at finalize; the close then appends a fresh row instead.
	if row := c.sink.LogStart(ctx, entry); row != 0 {
		if err := c.store.UpdateShift(ctx, shift.ShiftID, models.ShiftUpdate{SheetRow: &row}); err != nil {
			log.Printf("⚠️  Could not persist row handle for shift %s: %v", shift.ShiftID, err)
		}
	}
	return nil
}

// --- End flow ---

// GetActiveShift exposes the worker's running shift, nil when none
func (c *ShiftController) GetActiveShift(ctx context.Context, userID int64) (*models.Shift, error) {
	return c.store.GetActiveShift(ctx, userID)
}

// ActiveShifts lists every running shift (manager view, staleness sweep)
func (c *ShiftController) ActiveShifts(ctx context.Context) ([]models.Shift, error) {
	return c.store.GetAllActiveShifts(ctx)
}

// SetShiftEndGeo records the end geolocation.
// State: active | active_warning -> end_geo_ok.
func (c *ShiftController) SetShiftEndGeo(ctx context.Context, userID int64, geo string) error {
	shift, err := c.requireShift(ctx, userID,
		models.StatusActive, models.StatusActiveWarning, models.StatusEndGeoOK)
	if err != nil {
		return err
	}

	return c.store.UpdateShift(ctx, shift.ShiftID, models.ShiftUpdate{
		EndGeo: &geo,
		Status: models.StatusPtr(models.StatusEndGeoOK),
	})
}

// FinalizeShift closes the shift: computes hours, writes the terminal
// state to the store, then logs to the sink: update-in-place when a row
// handle exists, append otherwise. State: end_geo_ok -> completed_ok |
// completed_warning. Returns the log entry that was (or should have
// been) recorded.
func (c *ShiftController) FinalizeShift(ctx context.Context, userID int64, mediaRef, startVideoLink, endVideoLink string) (history.Entry, error) {
	shift, err := c.requireShift(ctx, userID, models.StatusEndGeoOK)
	if err != nil {
		return history.Entry{}, err
	}

	endTime := time.Now()
	hours := c.calc.Hours(shift.StartTime, endTime)

	// The end-geo step overwrote active_warning with end_geo_ok, so the
	// start-side warning is re-derived from the persisted media ref.
	finalStatus := models.StatusCompletedOK
	if models.MediaKind(mediaRef) == models.MediaKindFile ||
		models.MediaKind(deref(shift.StartVideoRef)) == models.MediaKindFile ||
		shift.Status.HasWarning() {
		finalStatus = models.StatusCompletedWarning
	}

	startVideo := startVideoLink
	if startVideo == "" {
		startVideo = rawMediaLink(deref(shift.StartVideoRef))
	}
	endVideo := endVideoLink
	if endVideo == "" {
		endVideo = rawMediaLink(mediaRef)
	}

	// Store write first: this transition is committed even if every
	// history backend is down.
	if err := c.store.UpdateShift(ctx, shift.ShiftID, models.ShiftUpdate{
		EndTime:  &endTime,
		EndVideo: &mediaRef,
		Status:   &finalStatus,
		IsActive: models.BoolPtr(false),
	}); err != nil {
		return history.Entry{}, err
	}

	entry := history.Entry{
		ShiftID:    shift.ShiftID,
		UserID:     userID,
		UserName:   c.workerName(ctx, userID),
		Project:    shift.ProjectName(),
		StartTime:  shift.StartTime,
		EndTime:    &endTime,
		Hours:      &hours,
		StartGeo:   deref(shift.StartGeo),
		EndGeo:     deref(shift.EndGeo),
		StartVideo: startVideo,
		EndVideo:   endVideo,
		Status:     string(finalStatus),
	}

	if shift.SheetRow != nil {
		c.sink.UpdateAt(ctx, *shift.SheetRow, history.EndUpdate{
			EndTime:  endTime,
			Hours:    hours,
			EndGeo:   entry.EndGeo,
			EndVideo: endVideo,
			Status:   string(finalStatus),
		})
	} else {
		c.sink.LogComplete(ctx, entry)
	}

	log.Printf("🏁 Shift %s finalized for worker %d: %.2f hrs, status %s",
		shift.ShiftID, userID, hours, finalStatus)
	return entry, nil
}

// TerminateShift force-closes the shift with a reason. A terminal log
// entry is always appended, never written over the start row.
func (c *ShiftController) TerminateShift(ctx context.Context, userID int64, reason string) error {
	shift, err := c.store.GetActiveShift(ctx, userID)
	if err != nil {
		return err
	}
	if shift == nil {
		return ErrNoActiveShift
	}

	endTime := time.Now()
	hours := c.calc.Hours(shift.StartTime, endTime)
	status := models.TerminatedStatus(reason)

	entry := history.Entry{
		ShiftID:    shift.ShiftID,
		UserID:     userID,
		UserName:   c.workerName(ctx, userID),
		Project:    shift.ProjectName(),
		StartTime:  shift.StartTime,
		EndTime:    &endTime,
		Hours:      &hours,
		StartGeo:   deref(shift.StartGeo),
		EndGeo:     "TERMINATED",
		StartVideo: rawMediaLink(deref(shift.StartVideoRef)),
		EndVideo:   "TERMINATED",
		Status:     string(status),
	}
	c.sink.LogComplete(ctx, entry)

	return c.store.UpdateShift(ctx, shift.ShiftID, models.ShiftUpdate{
		EndTime:  &endTime,
		Status:   &status,
		IsActive: models.BoolPtr(false),
	})
}

// HandleManagerMessage is the emergency path: it closes any running
// shift for the worker and records the manager's message. With no shift
// it logs a standalone message row instead.
func (c *ShiftController) HandleManagerMessage(ctx context.Context, userID int64, message string) error {
	shift, err := c.store.GetActiveShift(ctx, userID)
	if err != nil {
		return err
	}

	if shift == nil {
		entry := history.Entry{
			ShiftID:   "M-" + time.Now().Format("150405"),
			UserID:    userID,
			UserName:  c.workerName(ctx, userID),
			Project:   "MESSAGE_ONLY",
			StartTime: time.Now(),
			Status:    "MESSAGE",
			Comment:   message,
		}
		c.sink.LogStart(ctx, entry)
		return nil
	}

	endTime := time.Now()
	if err := c.store.UpdateShift(ctx, shift.ShiftID, models.ShiftUpdate{
		EndTime:  &endTime,
		Status:   models.StatusPtr(models.StatusManagerTerminate),
		IsActive: models.BoolPtr(false),
	}); err != nil {
		return err
	}

	if shift.SheetRow != nil {
		c.sink.UpdateAt(ctx, *shift.SheetRow, history.EndUpdate{
			EndTime:  endTime,
			Hours:    c.calc.Hours(shift.StartTime, endTime),
			EndGeo:   "FORCE_STOP",
			EndVideo: "NONE",
			Status:   "MSG: " + message,
		})
	}
	return nil
}

// ClearActiveShift drops the worker's active shift without any history
// logging. Manager escape hatch for wedged state; idempotent.
func (c *ShiftController) ClearActiveShift(ctx context.Context, userID int64) (bool, error) {
	return c.store.RemoveActiveShift(ctx, userID)
}

// CheckStaleShifts returns running shifts older than the threshold.
// Observational only; nothing is mutated or force-closed.
func (c *ShiftController) CheckStaleShifts(ctx context.Context, threshold time.Duration) ([]models.Shift, error) {
	shifts, err := c.store.GetAllActiveShifts(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-threshold)
	stale := make([]models.Shift, 0)
	for _, s := range shifts {
		if s.StartTime.Before(cutoff) {
			stale = append(stale, s)
		}
	}
	return stale, nil
}

// requireShift fetches the worker's active shift and checks the step is
// allowed from its current status. Terminal and out-of-order states fail
// with ErrWrongStep, keeping status progression forward-only.
func (c *ShiftController) requireShift(ctx context.Context, userID int64, allowed ...models.ShiftStatus) (*models.Shift, error) {
	shift, err := c.store.GetActiveShift(ctx, userID)
	if err != nil {
		return nil, err
	}
	if shift == nil {
		return nil, ErrNoActiveShift
	}

	for _, s := range allowed {
		if shift.Status == s {
			return shift, nil
		}
	}
	return nil, fmt.Errorf("%w: shift %s is %q", ErrWrongStep, shift.ShiftID, shift.Status)
}

// WorkerName returns the worker's registered display name, "Unknown"
// when the directory has no record. Used for log rows and upload names.
func (c *ShiftController) WorkerName(ctx context.Context, userID int64) string {
	return c.workerName(ctx, userID)
}

func (c *ShiftController) workerName(ctx context.Context, userID int64) string {
	worker, err := c.users.GetUser(ctx, userID)
	if err != nil || worker == nil {
		return "Unknown"
	}
	return worker.FullName
}

// rawMediaLink is the placeholder recorded when no durable link exists
func rawMediaLink(mediaRef string) string {
	if mediaRef == "" {
		return "NO_VIDEO"
	}
	return "tg://" + mediaRef
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
