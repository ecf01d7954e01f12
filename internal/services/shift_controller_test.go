package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mihailchik/TG-TimeChecker/internal/history"
	"github.com/Mihailchik/TG-TimeChecker/internal/models"
)

// memStore is an in-memory ShiftStore keyed by user, one active shift max
type memStore struct {
	nextID int
	shifts map[int64]*models.Shift
}

func newMemStore() *memStore {
	return &memStore{shifts: make(map[int64]*models.Shift)}
}

func (m *memStore) CreateShift(_ context.Context, userID int64) (string, error) {
	if _, exists := m.shifts[userID]; exists {
		return "", ErrShiftAlreadyActive
	}
	m.nextID++
	shift := &models.Shift{
		ShiftID:   strconv.Itoa(m.nextID),
		UserID:    userID,
		Status:    models.StatusInit,
		StartTime: time.Now(),
		IsActive:  true,
	}
	m.shifts[userID] = shift
	return shift.ShiftID, nil
}

func (m *memStore) UpdateShift(_ context.Context, shiftID string, upd models.ShiftUpdate) error {
	for userID, s := range m.shifts {
		if s.ShiftID != shiftID {
			continue
		}
		if upd.Status != nil {
			s.Status = *upd.Status
		}
		if upd.Project != nil {
			s.Project = upd.Project
		}
		if upd.StartGeo != nil {
			s.StartGeo = upd.StartGeo
		}
		if upd.EndGeo != nil {
			s.EndGeo = upd.EndGeo
		}
		if upd.StartVideo != nil {
			s.StartVideoRef = upd.StartVideo
		}
		if upd.EndVideo != nil {
			s.EndVideoRef = upd.EndVideo
		}
		if upd.SheetRow != nil {
			s.SheetRow = upd.SheetRow
		}
		if upd.EndTime != nil {
			s.EndTime = upd.EndTime
		}
		if upd.IsActive != nil {
			s.IsActive = *upd.IsActive
			if !s.IsActive {
				delete(m.shifts, userID)
			}
		}
		return nil
	}
	return nil
}

func (m *memStore) GetActiveShift(_ context.Context, userID int64) (*models.Shift, error) {
	shift, ok := m.shifts[userID]
	if !ok {
		return nil, nil
	}
	copied := *shift
	return &copied, nil
}

func (m *memStore) GetAllActiveShifts(_ context.Context) ([]models.Shift, error) {
	out := make([]models.Shift, 0, len(m.shifts))
	for _, s := range m.shifts {
		out = append(out, *s)
	}
	return out, nil
}

func (m *memStore) RemoveActiveShift(_ context.Context, userID int64) (bool, error) {
	delete(m.shifts, userID)
	return true, nil
}

// memSink records sink traffic so tests can assert on what got logged
type memSink struct {
	rowHandle int
	starts    []history.Entry
	completes []history.Entry
	updates   map[int]history.EndUpdate
	workers   []models.Worker
}

func newMemSink(rowHandle int) *memSink {
	return &memSink{rowHandle: rowHandle, updates: make(map[int]history.EndUpdate)}
}

func (m *memSink) LogStart(_ context.Context, e history.Entry) int {
	m.starts = append(m.starts, e)
	return m.rowHandle
}

func (m *memSink) LogComplete(_ context.Context, e history.Entry) bool {
	m.completes = append(m.completes, e)
	return true
}

func (m *memSink) UpdateAt(_ context.Context, row int, u history.EndUpdate) bool {
	m.updates[row] = u
	return true
}

func (m *memSink) RecordWorker(_ context.Context, w models.Worker) {
	m.workers = append(m.workers, w)
}

type memDirectory struct {
	workers map[int64]models.Worker
}

func newMemDirectory(ids ...int64) *memDirectory {
	d := &memDirectory{workers: make(map[int64]models.Worker)}
	for _, id := range ids {
		d.workers[id] = models.Worker{UserID: id, FullName: "Worker " + strconv.FormatInt(id, 10)}
	}
	return d
}

func (d *memDirectory) GetUser(_ context.Context, userID int64) (*models.Worker, error) {
	w, ok := d.workers[userID]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (d *memDirectory) RegisterUser(_ context.Context, w models.Worker) error {
	d.workers[w.UserID] = w
	return nil
}

func newTestController(sink *memSink, registered ...int64) (*ShiftController, *memStore) {
	store := newMemStore()
	sites := NewStaticSitesRepo([]string{"Site A", "Site B"})
	c := NewShiftController(store, sink, NewTimeCalculator(), sites, newMemDirectory(registered...))
	return c, store
}

// runStartFlow walks a worker through init -> active
func runStartFlow(t *testing.T, c *ShiftController, userID int64, mediaRef string) string {
	t.Helper()
	ctx := context.Background()

	shiftID, err := c.InitShift(ctx, userID)
	require.NoError(t, err)
	require.NoError(t, c.SetShiftSite(ctx, userID, "Site A"))
	require.NoError(t, c.SetShiftStartGeo(ctx, userID, "55.7558,37.6173"))
	require.NoError(t, c.SetShiftStartVideo(ctx, userID, mediaRef, ""))
	return shiftID
}

func TestInitShiftRequiresRegistration(t *testing.T) {
	sink := newMemSink(0)
	c, _ := newTestController(sink) // nobody registered

	_, err := c.InitShift(context.Background(), 100)

	assert.ErrorIs(t, err, ErrNotRegistered)
	assert.Empty(t, sink.starts)
}

func TestInitShiftRejectsSecondShift(t *testing.T) {
	c, _ := newTestController(newMemSink(0), 100)
	ctx := context.Background()

	_, err := c.InitShift(ctx, 100)
	require.NoError(t, err)

	_, err = c.InitShift(ctx, 100)
	assert.ErrorIs(t, err, ErrShiftAlreadyActive)
}

func TestStartFlowLightweightVideoGoesActive(t *testing.T) {
	sink := newMemSink(12)
	c, store := newTestController(sink, 100)

	runStartFlow(t, c, 100, "abc123|circle")

	shift := store.shifts[100]
	require.NotNil(t, shift)
	assert.Equal(t, models.StatusActive, shift.Status)
	require.NotNil(t, shift.SheetRow)
	assert.Equal(t, 12, *shift.SheetRow)

	require.Len(t, sink.starts, 1)
	assert.Equal(t, "ACTIVE", sink.starts[0].Status)
	assert.Equal(t, "Site A", sink.starts[0].Project)
	assert.Equal(t, PendingUploadRef, sink.starts[0].StartVideo)
	assert.Equal(t, "Worker 100", sink.starts[0].UserName)
}

// rowHandleFailStore rejects only the row-handle write
type rowHandleFailStore struct {
	*memStore
}

func (s *rowHandleFailStore) UpdateShift(ctx context.Context, shiftID string, upd models.ShiftUpdate) error {
	if upd.SheetRow != nil {
		return errors.New("row handle write failed")
	}
	return s.memStore.UpdateShift(ctx, shiftID, upd)
}

func TestStartVideoSurvivesRowHandlePersistFailure(t *testing.T) {
	ctx := context.Background()
	sink := newMemSink(12)
	store := &rowHandleFailStore{memStore: newMemStore()}
	c := NewShiftController(store, sink, NewTimeCalculator(),
		NewStaticSitesRepo([]string{"Site A"}), newMemDirectory(100))

	// The step reports success even though the handle was lost: the
	// shift is already committed to active.
	runStartFlow(t, c, 100, "start|circle")

	shift := store.shifts[100]
	require.NotNil(t, shift)
	assert.Equal(t, models.StatusActive, shift.Status)
	assert.Nil(t, shift.SheetRow)

	// Retrying the step is a wrong-step error, not a stuck client
	assert.ErrorIs(t, c.SetShiftStartVideo(ctx, 100, "start|circle", ""), ErrWrongStep)

	// Without a handle the close appends instead of updating in place
	require.NoError(t, c.SetShiftEndGeo(ctx, 100, "55.1,37.1"))
	_, err := c.FinalizeShift(ctx, 100, "end|circle", "", "")
	require.NoError(t, err)
	assert.Empty(t, sink.updates)
	require.Len(t, sink.completes, 1)
}

func TestStartFlowFileVideoGetsWarning(t *testing.T) {
	c, store := newTestController(newMemSink(0), 100)

	runStartFlow(t, c, 100, "abc123|file")

	assert.Equal(t, models.StatusActiveWarning, store.shifts[100].Status)
}

func TestStepsRejectOutOfOrderCalls(t *testing.T) {
	c, _ := newTestController(newMemSink(0), 100)
	ctx := context.Background()

	// End steps before the shift is even open
	assert.ErrorIs(t, c.SetShiftEndGeo(ctx, 100, "55.0,37.0"), ErrNoActiveShift)

	_, err := c.InitShift(ctx, 100)
	require.NoError(t, err)

	// Geo before site, video before geo
	assert.ErrorIs(t, c.SetShiftStartGeo(ctx, 100, "55.0,37.0"), ErrWrongStep)
	assert.ErrorIs(t, c.SetShiftStartVideo(ctx, 100, "abc|circle", ""), ErrWrongStep)

	// End geo while still in init
	assert.ErrorIs(t, c.SetShiftEndGeo(ctx, 100, "55.0,37.0"), ErrWrongStep)
}

func TestStepsNeverMoveStatusBackward(t *testing.T) {
	c, store := newTestController(newMemSink(0), 100)
	ctx := context.Background()

	runStartFlow(t, c, 100, "abc|circle")
	require.NoError(t, c.SetShiftEndGeo(ctx, 100, "55.0,37.0"))

	// Start-side steps must not apply once the end flow began
	assert.ErrorIs(t, c.SetShiftSite(ctx, 100, "Site B"), ErrWrongStep)
	assert.ErrorIs(t, c.SetShiftStartGeo(ctx, 100, "1,1"), ErrWrongStep)
	assert.ErrorIs(t, c.SetShiftStartVideo(ctx, 100, "x|circle", ""), ErrWrongStep)
	assert.Equal(t, models.StatusEndGeoOK, store.shifts[100].Status)
}

func TestFinalizeCleanShift(t *testing.T) {
	sink := newMemSink(12)
	c, store := newTestController(sink, 100)
	ctx := context.Background()

	runStartFlow(t, c, 100, "start|circle")
	require.NoError(t, c.SetShiftEndGeo(ctx, 100, "55.1,37.1"))

	entry, err := c.FinalizeShift(ctx, 100, "end|circle", "", "")
	require.NoError(t, err)

	assert.Equal(t, string(models.StatusCompletedOK), entry.Status)
	require.NotNil(t, entry.Hours)

	// The active record is gone and the close went through the row handle
	assert.Nil(t, store.shifts[100])
	assert.Empty(t, sink.completes)
	got, found := sink.updates[12]
	require.True(t, found)
	assert.Equal(t, string(models.StatusCompletedOK), got.Status)
	assert.Equal(t, "tg://end|circle", got.EndVideo)
}

func TestFinalizeFileEndVideoGetsWarning(t *testing.T) {
	c, _ := newTestController(newMemSink(0), 100)
	ctx := context.Background()

	runStartFlow(t, c, 100, "start|circle")
	require.NoError(t, c.SetShiftEndGeo(ctx, 100, "55.1,37.1"))

	entry, err := c.FinalizeShift(ctx, 100, "end|file", "", "")
	require.NoError(t, err)
	assert.Equal(t, string(models.StatusCompletedWarning), entry.Status)
}

func TestFinalizeCarriesStartWarningForward(t *testing.T) {
	c, _ := newTestController(newMemSink(0), 100)
	ctx := context.Background()

	// File at start, clean circle at end: warning still sticks
	runStartFlow(t, c, 100, "start|file")
	require.NoError(t, c.SetShiftEndGeo(ctx, 100, "55.1,37.1"))

	entry, err := c.FinalizeShift(ctx, 100, "end|circle", "", "")
	require.NoError(t, err)
	assert.Equal(t, string(models.StatusCompletedWarning), entry.Status)
}

func TestFinalizeWithoutRowHandleAppends(t *testing.T) {
	sink := newMemSink(0) // no backend assigned a row
	c, _ := newTestController(sink, 100)
	ctx := context.Background()

	runStartFlow(t, c, 100, "start|circle")
	require.NoError(t, c.SetShiftEndGeo(ctx, 100, "55.1,37.1"))

	_, err := c.FinalizeShift(ctx, 100, "end|circle", "", "")
	require.NoError(t, err)

	assert.Empty(t, sink.updates)
	require.Len(t, sink.completes, 1)
	assert.Equal(t, string(models.StatusCompletedOK), sink.completes[0].Status)
}

func TestFinalizePrefersDurableLinks(t *testing.T) {
	sink := newMemSink(0)
	c, _ := newTestController(sink, 100)
	ctx := context.Background()

	runStartFlow(t, c, 100, "start|circle")
	require.NoError(t, c.SetShiftEndGeo(ctx, 100, "55.1,37.1"))

	entry, err := c.FinalizeShift(ctx, 100, "end|circle",
		"https://drive.example/start", "https://drive.example/end")
	require.NoError(t, err)

	assert.Equal(t, "https://drive.example/start", entry.StartVideo)
	assert.Equal(t, "https://drive.example/end", entry.EndVideo)
}

func TestTerminateShiftAlwaysAppends(t *testing.T) {
	sink := newMemSink(12) // row handle exists, terminate must ignore it
	c, store := newTestController(sink, 100)
	ctx := context.Background()

	runStartFlow(t, c, 100, "start|circle")

	require.NoError(t, c.TerminateShift(ctx, 100, "NO_GEO_24H"))

	assert.Nil(t, store.shifts[100])
	assert.Empty(t, sink.updates)
	require.Len(t, sink.completes, 1)
	assert.Equal(t, "TERMINATED: NO_GEO_24H", sink.completes[0].Status)
	assert.Equal(t, "TERMINATED", sink.completes[0].EndGeo)
	assert.Equal(t, "TERMINATED", sink.completes[0].EndVideo)
}

func TestTerminateShiftNoShift(t *testing.T) {
	c, _ := newTestController(newMemSink(0), 100)
	err := c.TerminateShift(context.Background(), 100, "BY_MANAGER")
	assert.ErrorIs(t, err, ErrNoActiveShift)
}

func TestManagerMessageClosesActiveShift(t *testing.T) {
	sink := newMemSink(12)
	c, store := newTestController(sink, 100)
	ctx := context.Background()

	runStartFlow(t, c, 100, "start|circle")

	require.NoError(t, c.HandleManagerMessage(ctx, 100, "go home"))

	assert.Nil(t, store.shifts[100])
	got, found := sink.updates[12]
	require.True(t, found)
	assert.Equal(t, "MSG: go home", got.Status)
	assert.Equal(t, "FORCE_STOP", got.EndGeo)
	assert.Equal(t, "NONE", got.EndVideo)
}

func TestManagerMessageWithoutShiftLogsStandaloneRow(t *testing.T) {
	sink := newMemSink(0)
	c, _ := newTestController(sink, 100)

	require.NoError(t, c.HandleManagerMessage(context.Background(), 100, "call the office"))

	require.Len(t, sink.starts, 1)
	entry := sink.starts[0]
	assert.True(t, strings.HasPrefix(entry.ShiftID, "M-"))
	assert.Equal(t, "MESSAGE_ONLY", entry.Project)
	assert.Equal(t, "MESSAGE", entry.Status)
	assert.Equal(t, "call the office", entry.Comment)
}

func TestClearActiveShiftIsIdempotent(t *testing.T) {
	c, store := newTestController(newMemSink(0), 100)
	ctx := context.Background()

	runStartFlow(t, c, 100, "start|circle")

	removed, err := c.ClearActiveShift(ctx, 100)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Nil(t, store.shifts[100])

	// Second removal still reports success
	removed, err = c.ClearActiveShift(ctx, 100)
	require.NoError(t, err)
	assert.True(t, removed)
}

func TestCheckStaleShiftsFiltersByThreshold(t *testing.T) {
	c, store := newTestController(newMemSink(0), 100, 200)
	ctx := context.Background()

	runStartFlow(t, c, 100, "a|circle")
	runStartFlow(t, c, 200, "b|circle")

	// Age the first worker's shift past the threshold
	store.shifts[100].StartTime = time.Now().Add(-30 * time.Hour)

	stale, err := c.CheckStaleShifts(ctx, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, int64(100), stale[0].UserID)
}

func TestSiteDetailsWithoutDetailerReturnsNil(t *testing.T) {
	c, _ := newTestController(newMemSink(0), 100)

	// Static repo carries names only
	site, err := c.SiteDetails(context.Background(), "Site A")
	require.NoError(t, err)
	assert.Nil(t, site)
}

func TestWorkerNameResolvesFullName(t *testing.T) {
	c, _ := newTestController(newMemSink(0), 100)
	ctx := context.Background()

	assert.Equal(t, "Worker 100", c.WorkerName(ctx, 100))
	assert.Equal(t, "Unknown", c.WorkerName(ctx, 999))
}

func TestRegisterUserMirrorsToSink(t *testing.T) {
	sink := newMemSink(0)
	c, _ := newTestController(sink)

	worker := models.Worker{UserID: 300, Username: "ivan", FullName: "Ivan Petrov"}
	require.NoError(t, c.RegisterUser(context.Background(), worker))

	registered, err := c.IsUserRegistered(context.Background(), 300)
	require.NoError(t, err)
	assert.True(t, registered)
	require.Len(t, sink.workers, 1)
	assert.Equal(t, "Ivan Petrov", sink.workers[0].FullName)
}
