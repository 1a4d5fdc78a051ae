// Package sheets keeps the wellbeing team's appointment spreadsheet in sync.
//
// The sheet is the team's operational view of bookings; it is written best
// effort and never gates a user-facing confirmation. Each appointment is one
// row on the "citas" sheet.
package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"github.com/uvbienestar/vivibot/internal/models"
	"github.com/uvbienestar/vivibot/internal/sched"
)

// DefaultCallTimeout bounds each Sheets API round trip.
const DefaultCallTimeout = 15 * time.Second

// DefaultSheetName is the tab holding appointment rows.
const DefaultSheetName = "citas"

// Row is one appointment row together with its sheet position.
// RowIndex is zero-based and includes the header row at index 0.
type Row struct {
	RowIndex    int
	UserID      string
	Type        string
	Name        string
	StudentCode string
	Career      string
	Email       string
	DayLabel    string
	TimeLabel   string
	CreatedAt   string
	SlotISO     string
	EventID     string
}

// RecordStore is the spreadsheet collaborator contract.
type RecordStore interface {
	Append(ctx context.Context, appt models.Appointment) error
	FindByUser(ctx context.Context, userID string) ([]Row, error)
	Update(ctx context.Context, row Row) error
	Delete(ctx context.Context, rowIndex int) error
}

// Opts holds configuration for the Google Sheets client.
type Opts struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsFile string
	CallTimeout     time.Duration
}

// Option configures the Google Sheets client.
type Option func(*Opts)

// WithSpreadsheetID sets the target spreadsheet.
func WithSpreadsheetID(id string) Option {
	return func(o *Opts) { o.SpreadsheetID = id }
}

// WithSheetName overrides the tab name.
func WithSheetName(name string) Option {
	return func(o *Opts) { o.SheetName = name }
}

// WithCredentialsFile sets the service-account credentials path.
func WithCredentialsFile(path string) Option {
	return func(o *Opts) { o.CredentialsFile = path }
}

// GoogleSheets implements RecordStore against the Sheets API.
type GoogleSheets struct {
	svc           *gsheets.Service
	spreadsheetID string
	sheetName     string
	timeout       time.Duration
}

var _ RecordStore = (*GoogleSheets)(nil)

// New creates a Google Sheets client using service-account credentials.
func New(ctx context.Context, opts ...Option) (*GoogleSheets, error) {
	cfg := Opts{SheetName: DefaultSheetName, CallTimeout: DefaultCallTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet ID not set")
	}

	var clientOpts []option.ClientOption
	if cfg.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	svc, err := gsheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}
	slog.Debug("sheets: client initialized", "spreadsheet_id", cfg.SpreadsheetID, "sheet", cfg.SheetName)
	return &GoogleSheets{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     cfg.SheetName,
		timeout:       cfg.CallTimeout,
	}, nil
}

// Append adds one appointment row at the bottom of the sheet.
func (g *GoogleSheets) Append(ctx context.Context, appt models.Appointment) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	row := []interface{}{
		appt.UserID,
		string(appt.Type),
		appt.Name,
		orNA(appt.StudentCode),
		orNA(appt.Career),
		appt.Email,
		sched.FormatDate(appt.SlotStart),
		sched.FormatHour(appt.SlotStart.Hour()),
		appt.CreatedAt.Format(time.RFC3339),
		appt.SlotStart.Format(time.RFC3339),
		orNA(appt.CalendarEventID),
	}
	vr := &gsheets.ValueRange{Values: [][]interface{}{row}}
	_, err := g.svc.Spreadsheets.Values.
		Append(g.spreadsheetID, g.sheetName+"!A1", vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		slog.Error("sheets: append failed", "error", err, "user", appt.UserID)
		return fmt.Errorf("appending appointment row: %w", err)
	}
	slog.Info("sheets: appointment row appended", "user", appt.UserID)
	return nil
}

// FindByUser returns all appointment rows whose first column matches the
// user's WhatsApp number, oldest first. The header row is skipped.
func (g *GoogleSheets) FindByUser(ctx context.Context, userID string) ([]Row, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.svc.Spreadsheets.Values.
		Get(g.spreadsheetID, g.sheetName).
		Context(ctx).Do()
	if err != nil {
		slog.Error("sheets: read failed", "error", err)
		return nil, fmt.Errorf("reading sheet: %w", err)
	}

	var rows []Row
	for i, raw := range resp.Values {
		if i == 0 {
			continue
		}
		if cell(raw, 0) != userID {
			continue
		}
		rows = append(rows, Row{
			RowIndex:    i,
			UserID:      cell(raw, 0),
			Type:        cell(raw, 1),
			Name:        cell(raw, 2),
			StudentCode: cell(raw, 3),
			Career:      cell(raw, 4),
			Email:       cell(raw, 5),
			DayLabel:    cell(raw, 6),
			TimeLabel:   cell(raw, 7),
			CreatedAt:   cell(raw, 8),
			SlotISO:     cell(raw, 9),
			EventID:     cell(raw, 10),
		})
	}
	slog.Debug("sheets: rows matched", "user", userID, "count", len(rows))
	return rows, nil
}

// Update rewrites one appointment row in place.
func (g *GoogleSheets) Update(ctx context.Context, row Row) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	values := []interface{}{
		row.UserID, row.Type, row.Name, row.StudentCode, row.Career,
		row.Email, row.DayLabel, row.TimeLabel, row.CreatedAt, row.SlotISO,
		row.EventID,
	}
	vr := &gsheets.ValueRange{Values: [][]interface{}{values}}
	rangeRef := fmt.Sprintf("%s!A%d", g.sheetName, row.RowIndex+1)
	_, err := g.svc.Spreadsheets.Values.
		Update(g.spreadsheetID, rangeRef, vr).
		ValueInputOption("RAW").
		Context(ctx).Do()
	if err != nil {
		slog.Error("sheets: update failed", "error", err, "range", rangeRef)
		return fmt.Errorf("updating row %d: %w", row.RowIndex, err)
	}
	slog.Info("sheets: appointment row updated", "range", rangeRef)
	return nil
}

// Delete removes one row from the sheet by zero-based index.
func (g *GoogleSheets) Delete(ctx context.Context, rowIndex int) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	sheetID, err := g.sheetID(ctx)
	if err != nil {
		return err
	}
	req := &gsheets.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheets.Request{{
			DeleteDimension: &gsheets.DeleteDimensionRequest{
				Range: &gsheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(rowIndex),
					EndIndex:   int64(rowIndex + 1),
				},
			},
		}},
	}
	if _, err := g.svc.Spreadsheets.BatchUpdate(g.spreadsheetID, req).Context(ctx).Do(); err != nil {
		slog.Error("sheets: delete failed", "error", err, "row", rowIndex)
		return fmt.Errorf("deleting row %d: %w", rowIndex, err)
	}
	slog.Info("sheets: appointment row deleted", "row", rowIndex)
	return nil
}

// sheetID resolves the numeric sheet ID for the configured tab name.
func (g *GoogleSheets) sheetID(ctx context.Context) (int64, error) {
	meta, err := g.svc.Spreadsheets.Get(g.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("fetching spreadsheet metadata: %w", err)
	}
	for _, s := range meta.Sheets {
		if s.Properties != nil && s.Properties.Title == g.sheetName {
			return s.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found", g.sheetName)
}

func cell(row []interface{}, i int) string {
	if i >= len(row) {
		return ""
	}
	s, _ := row[i].(string)
	return s
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
