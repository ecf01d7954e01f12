package history

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/Mihailchik/TG-TimeChecker/internal/models"

	"github.com/xuri/excelize/v2"
)

// ExcelBackend logs shifts to a local .xlsx workbook. All writes are
// serialized through one mutex; the workbook format tolerates no
// concurrent writers. Row handles are 1-based row numbers in the Shifts
// sheet.
type ExcelBackend struct {
	path string
	mu   sync.Mutex
}

// NewExcelBackend opens or creates the workbook with its Shifts, Users
// and Sites sheets.
func NewExcelBackend(path string) (*ExcelBackend, error) {
	b := &ExcelBackend{path: path}
	if err := b.ensureFile(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *ExcelBackend) Name() string { return "excel" }

func (b *ExcelBackend) ensureFile() error {
	if _, err := os.Stat(b.path); err == nil {
		return nil
	}

	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", "Shifts")
	f.SetSheetRow("Shifts", "A1", &shiftColumns)

	if _, err := f.NewSheet("Users"); err != nil {
		return fmt.Errorf("create Users sheet: %w", err)
	}
	f.SetSheetRow("Users", "A1", &workerColumns)

	if _, err := f.NewSheet("Sites"); err != nil {
		return fmt.Errorf("create Sites sheet: %w", err)
	}
	siteColumns := []interface{}{"Site Name", "Lat", "Lon", "Radius"}
	f.SetSheetRow("Sites", "A1", &siteColumns)

	if err := f.SaveAs(b.path); err != nil {
		return fmt.Errorf("create workbook %s: %w", b.path, err)
	}

	log.Printf("📒 Created workbook %s", b.path)
	return nil
}

// LogStart appends the start row and returns its row number
func (b *ExcelBackend) LogStart(ctx context.Context, e Entry) (int, error) {
	return b.appendRow("Shifts", buildRow(e))
}

// LogComplete appends a terminal row
func (b *ExcelBackend) LogComplete(ctx context.Context, e Entry) error {
	_, err := b.appendRow("Shifts", buildRow(e))
	return err
}

// UpdateRow rewrites the closing cells of a previously appended row
func (b *ExcelBackend) UpdateRow(ctx context.Context, row int, u EndUpdate) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	f, err := excelize.OpenFile(b.path)
	if err != nil {
		return fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	cells := map[string]interface{}{
		fmt.Sprintf("G%d", row): u.EndTime.Format(dateLayout),
		fmt.Sprintf("H%d", row): u.EndTime.Format(clockLayout),
		fmt.Sprintf("I%d", row): fmt.Sprintf("%.2f", u.Hours),
		fmt.Sprintf("K%d", row): u.EndGeo,
		fmt.Sprintf("M%d", row): u.EndVideo,
		fmt.Sprintf("N%d", row): u.Status,
	}
	for cell, value := range cells {
		if err := f.SetCellValue("Shifts", cell, value); err != nil {
			return fmt.Errorf("set %s: %w", cell, err)
		}
	}

	if err := f.Save(); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

// RecordWorker appends a registration to the Users sheet
func (b *ExcelBackend) RecordWorker(ctx context.Context, w models.Worker) error {
	row := []interface{}{
		strconv.FormatInt(w.UserID, 10), w.Username, w.FullName, w.Phone,
		time.Now().Format("2006-01-02 15:04:05"),
	}
	_, err := b.appendRow("Users", row)
	return err
}

func (b *ExcelBackend) appendRow(sheet string, row []interface{}) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	f, err := excelize.OpenFile(b.path)
	if err != nil {
		return 0, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return 0, fmt.Errorf("read %s sheet: %w", sheet, err)
	}
	next := len(rows) + 1

	cell, err := excelize.CoordinatesToCellName(1, next)
	if err != nil {
		return 0, fmt.Errorf("cell name for row %d: %w", next, err)
	}
	if err := f.SetSheetRow(sheet, cell, &row); err != nil {
		return 0, fmt.Errorf("write row %d: %w", next, err)
	}

	if err := f.Save(); err != nil {
		return 0, fmt.Errorf("save workbook: %w", err)
	}
	return next, nil
}
