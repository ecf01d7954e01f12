package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Mihailchik/TG-TimeChecker/internal/models"
)

func newTestExcelBackend(t *testing.T) *ExcelBackend {
	t.Helper()
	b, err := NewExcelBackend(filepath.Join(t.TempDir(), "shifts.xlsx"))
	require.NoError(t, err)
	return b
}

func TestExcelBackendCreatesWorkbook(t *testing.T) {
	b := newTestExcelBackend(t)

	f, err := excelize.OpenFile(b.path)
	require.NoError(t, err)
	defer f.Close()

	assert.ElementsMatch(t, []string{"Shifts", "Users", "Sites"}, f.GetSheetList())

	rows, err := f.GetRows("Shifts")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Event ID", rows[0][0])
	assert.Equal(t, "Comment", rows[0][14])
}

func TestExcelBackendLogStartReturnsRowNumber(t *testing.T) {
	b := newTestExcelBackend(t)
	ctx := context.Background()
	start := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	row, err := b.LogStart(ctx, Entry{
		ShiftID: "7", UserID: 100, UserName: "Ivan Petrov", Project: "Site A",
		StartTime: start, StartGeo: "55.7558,37.6173",
		StartVideo: "Pending Upload", Status: "ACTIVE",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, row) // first data row after the header

	row, err = b.LogStart(ctx, Entry{ShiftID: "8", UserID: 200, StartTime: start, Status: "ACTIVE"})
	require.NoError(t, err)
	assert.Equal(t, 3, row)

	f, err := excelize.OpenFile(b.path)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetCellValue("Shifts", "D2")
	require.NoError(t, err)
	assert.Equal(t, "Site A", got)

	got, err = f.GetCellValue("Shifts", "E2")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", got)
}

func TestExcelBackendUpdateRow(t *testing.T) {
	b := newTestExcelBackend(t)
	ctx := context.Background()
	start := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	row, err := b.LogStart(ctx, Entry{ShiftID: "7", UserID: 100, StartTime: start, Status: "ACTIVE"})
	require.NoError(t, err)

	end := start.Add(8*time.Hour + 30*time.Minute)
	require.NoError(t, b.UpdateRow(ctx, row, EndUpdate{
		EndTime:  end,
		Hours:    8.5,
		EndGeo:   "55.1,37.1",
		EndVideo: "tg://end|circle",
		Status:   "completed_ok",
	}))

	f, err := excelize.OpenFile(b.path)
	require.NoError(t, err)
	defer f.Close()

	for cell, want := range map[string]string{
		"G2": "2025-03-10",
		"H2": "16:30:00",
		"I2": "8.50",
		"K2": "55.1,37.1",
		"M2": "tg://end|circle",
		"N2": "completed_ok",
	} {
		got, err := f.GetCellValue("Shifts", cell)
		require.NoError(t, err)
		assert.Equal(t, want, got, cell)
	}
}

func TestExcelBackendRecordWorker(t *testing.T) {
	b := newTestExcelBackend(t)

	require.NoError(t, b.RecordWorker(context.Background(), models.Worker{
		UserID: 100, Username: "ivan", FullName: "Ivan Petrov", Phone: "+79990001122",
	}))

	f, err := excelize.OpenFile(b.path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Users")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "100", rows[1][0])
	assert.Equal(t, "Ivan Petrov", rows[1][2])
}
