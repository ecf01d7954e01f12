package history

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/Mihailchik/TG-TimeChecker/internal/models"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Row colors keyed by outcome, matching the manager's spreadsheet legend
var (
	colorActive     = &sheets.Color{Red: 0.85, Green: 0.9, Blue: 1.0}
	colorOK         = &sheets.Color{Red: 0.85, Green: 0.95, Blue: 0.85}
	colorMessage    = &sheets.Color{Red: 1.0, Green: 1.0, Blue: 0.85}
	colorTerminated = &sheets.Color{Red: 1.0, Green: 0.85, Blue: 0.85}
)

// SheetsBackend logs shifts to a Google spreadsheet. Row handles are
// 1-based spreadsheet row numbers parsed from the append response, which
// makes later in-place updates possible.
type SheetsBackend struct {
	svc           *sheets.Service
	spreadsheetID string
	shiftsSheetID int64
}

// NewSheetsBackend builds the backend from a service-account credentials
// file and ensures the Shifts header row exists.
func NewSheetsBackend(ctx context.Context, credentialsFile, spreadsheetID string) (*SheetsBackend, error) {
	svc, err := sheets.NewService(ctx, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("init sheets service: %w", err)
	}
	return newSheetsBackend(ctx, svc, spreadsheetID)
}

// NewSheetsBackendFromBase64 builds the backend from base64-encoded
// credentials JSON (cloud deployments where files can't be mounted).
func NewSheetsBackendFromBase64(ctx context.Context, credentialsBase64, spreadsheetID string) (*SheetsBackend, error) {
	credentialsJSON, err := base64.StdEncoding.DecodeString(credentialsBase64)
	if err != nil {
		return nil, fmt.Errorf("decode base64 credentials: %w", err)
	}
	svc, err := sheets.NewService(ctx, option.WithCredentialsJSON(credentialsJSON))
	if err != nil {
		return nil, fmt.Errorf("init sheets service: %w", err)
	}
	return newSheetsBackend(ctx, svc, spreadsheetID)
}

func newSheetsBackend(ctx context.Context, svc *sheets.Service, spreadsheetID string) (*SheetsBackend, error) {
	b := &SheetsBackend{svc: svc, spreadsheetID: spreadsheetID, shiftsSheetID: -1}

	// Cache the numeric sheet id of "Shifts" for row formatting
	meta, err := svc.Spreadsheets.Get(spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read spreadsheet metadata: %w", err)
	}
	for _, sheet := range meta.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == "Shifts" {
			b.shiftsSheetID = sheet.Properties.SheetId
		}
	}

	if err := b.writeRange(ctx, "Shifts!A1:O1", shiftColumns); err != nil {
		return nil, fmt.Errorf("ensure Shifts headers: %w", err)
	}
	return b, nil
}

func (b *SheetsBackend) Name() string { return "sheets" }

// Service exposes the underlying client so other spreadsheet readers
// can reuse the same credentials.
func (b *SheetsBackend) Service() *sheets.Service { return b.svc }

// LogStart appends one row in ACTIVE state and returns its row number
func (b *SheetsBackend) LogStart(ctx context.Context, e Entry) (int, error) {
	row, err := b.append(ctx, "Shifts!A1", buildRow(e))
	if err != nil {
		return 0, err
	}
	if row != 0 {
		b.formatRow(ctx, row, colorActive)
	}
	return row, nil
}

// LogComplete appends one terminal row
func (b *SheetsBackend) LogComplete(ctx context.Context, e Entry) error {
	row, err := b.append(ctx, "Shifts!A1", buildRow(e))
	if err != nil {
		return err
	}
	if row != 0 {
		b.formatRow(ctx, row, statusColor(e.Status))
	}
	return nil
}

// UpdateRow rewrites the closing columns of a previously appended row:
// G:I (end date, end time, hours), K (end geo), M:N (end video, status).
func (b *SheetsBackend) UpdateRow(ctx context.Context, row int, u EndUpdate) error {
	endDate := u.EndTime.Format(dateLayout)
	endClock := u.EndTime.Format(clockLayout)

	ranges := []struct {
		a1     string
		values []interface{}
	}{
		{fmt.Sprintf("Shifts!G%d:I%d", row, row), []interface{}{endDate, endClock, fmt.Sprintf("%.2f", u.Hours)}},
		{fmt.Sprintf("Shifts!K%d", row), []interface{}{u.EndGeo}},
		{fmt.Sprintf("Shifts!M%d:N%d", row, row), []interface{}{u.EndVideo, u.Status}},
	}
	for _, r := range ranges {
		if err := b.writeRange(ctx, r.a1, r.values); err != nil {
			return err
		}
	}

	b.formatRow(ctx, row, statusColor(u.Status))
	return nil
}

// RecordWorker mirrors a registration into the Users sheet
func (b *SheetsBackend) RecordWorker(ctx context.Context, w models.Worker) error {
	if err := b.writeRange(ctx, "Users!A1:E1", workerColumns); err != nil {
		return fmt.Errorf("ensure Users headers: %w", err)
	}

	row := []interface{}{
		strconv.FormatInt(w.UserID, 10), w.Username, w.FullName, w.Phone,
		time.Now().Format("2006-01-02 15:04:05"),
	}
	_, err := b.append(ctx, "Users!A1", row)
	return err
}

func (b *SheetsBackend) append(ctx context.Context, a1 string, row []interface{}) (int, error) {
	vr := &sheets.ValueRange{Values: [][]interface{}{row}}
	resp, err := b.svc.Spreadsheets.Values.Append(b.spreadsheetID, a1, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("append to %s: %w", a1, err)
	}
	if resp.Updates == nil {
		return 0, nil
	}
	return parseRowNumber(resp.Updates.UpdatedRange), nil
}

func (b *SheetsBackend) writeRange(ctx context.Context, a1 string, values []interface{}) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{values}}
	_, err := b.svc.Spreadsheets.Values.Update(b.spreadsheetID, a1, vr).
		ValueInputOption("USER_ENTERED").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", a1, err)
	}
	return nil
}

// formatRow colors a whole row. Cosmetic, so failures only log.
func (b *SheetsBackend) formatRow(ctx context.Context, row int, color *sheets.Color) {
	if b.shiftsSheetID < 0 {
		return
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          b.shiftsSheetID,
					StartRowIndex:    int64(row - 1),
					EndRowIndex:      int64(row),
					StartColumnIndex: 0,
					EndColumnIndex:   int64(len(shiftColumns)),
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{BackgroundColor: color},
				},
				Fields: "userEnteredFormat.backgroundColor",
			},
		}},
	}
	if _, err := b.svc.Spreadsheets.BatchUpdate(b.spreadsheetID, req).Context(ctx).Do(); err != nil {
		log.Printf("⚠️  Sheets row %d formatting failed: %v", row, err)
	}
}

// parseRowNumber extracts the row from a range like "Shifts!A5:O5"
func parseRowNumber(updatedRange string) int {
	cellRange := updatedRange
	if i := strings.LastIndexByte(cellRange, '!'); i >= 0 {
		cellRange = cellRange[i+1:]
	}
	startCell := cellRange
	if i := strings.IndexByte(startCell, ':'); i >= 0 {
		startCell = startCell[:i]
	}

	digits := strings.TrimLeftFunc(startCell, func(r rune) bool {
		return r < '0' || r > '9'
	})
	row, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return row
}

func statusColor(status string) *sheets.Color {
	switch {
	case strings.Contains(status, "MSG") || strings.Contains(status, "MESSAGE"):
		return colorMessage
	case strings.Contains(status, "ERROR") || strings.Contains(status, "TERMINATED"):
		return colorTerminated
	default:
		return colorOK
	}
}
