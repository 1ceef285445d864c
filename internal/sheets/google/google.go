// Package google adapts the sheets ports to the Google Sheets API.
//
// Each check run pulls a whole sheet into memory with one Values.Get call
// and never goes back to the API for individual cells; the extractor and
// differ both work on that snapshot.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"ledgercheck/internal/cache"
	"ledgercheck/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const metaCacheKey = "spreadsheet-meta"

// highlight colour for newly discovered rows (pale yellow).
var highlightColor = &gsheet.Color{Red: 1, Green: 0.95, Blue: 0.6}

type spreadsheetMeta struct {
	sheetIDs    map[string]int64  // sheet title -> sheetId
	sheetTitles map[int64]string  // sheetId -> sheet title
	namedRanges map[string]int64  // named range -> sheetId
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	meta          *cache.TTLCache[spreadsheetMeta]
}

// Ensure interface conformance
var (
	_ sheets.SnapshotReader   = (*Client)(nil)
	_ sheets.Highlighter      = (*Client)(nil)
	_ sheets.BaselineResolver = (*Client)(nil)
	_ sheets.SheetAdmin       = (*Client)(nil)
)

// NewFromEnv creates a Sheets client for the configured spreadsheet.
// Required: GOOGLE_SPREADSHEET_ID.
// Credentials: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return New(svc, spreadsheetID), nil
}

// New wraps an existing Sheets service.
func New(svc *gsheet.Service, spreadsheetID string) *Client {
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		meta:          cache.NewTTL[spreadsheetMeta](5 * time.Minute),
	}
}

// newSheetsService initializes a Sheets service from service account
// credentials found in the environment.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	credentialsJSON, err := CredentialsFromEnv(ctx)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// CredentialsFromEnv loads service account JSON from the environment. The
// Drive adapter shares these credentials.
func CredentialsFromEnv(ctx context.Context) ([]byte, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline service account credentials", "component", "sheets")
		return []byte(serviceAccountJSON), nil
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading service account credentials", "component", "sheets", "path", serviceAccountFile)
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// Snapshot fetches the whole used range of the named sheet in one call.
// Cell text is kept exactly as returned; the differ compares values
// whitespace included.
func (c *Client) Snapshot(ctx context.Context, sheetName string) (sheets.Grid, error) {
	if c.svc == nil {
		return sheets.Grid{}, errors.New("sheets service not initialized")
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, quoteSheetName(sheetName)).
		Context(ctx).Do()
	if err != nil {
		return sheets.Grid{}, fmt.Errorf("read sheet %s: %w", sheetName, err)
	}

	rows := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = fmt.Sprint(v)
		}
		rows[i] = cells
	}

	slog.DebugContext(ctx, "Fetched sheet snapshot",
		"component", "sheets", "sheet", sheetName, "rows", len(rows))
	return sheets.NewGrid(rows), nil
}

// HighlightRows paints the background of each given row so a human reviewer
// can spot the new entries.
func (c *Client) HighlightRows(ctx context.Context, sheetName string, rows []int) error {
	if len(rows) == 0 {
		return nil
	}
	sheetID, err := c.sheetID(ctx, sheetName)
	if err != nil {
		return err
	}

	requests := make([]*gsheet.Request, 0, len(rows))
	for _, r := range rows {
		requests = append(requests, &gsheet.Request{
			RepeatCell: &gsheet.RepeatCellRequest{
				Range: &gsheet.GridRange{
					SheetId:       sheetID,
					StartRowIndex: int64(r),
					EndRowIndex:   int64(r + 1),
				},
				Cell: &gsheet.CellData{
					UserEnteredFormat: &gsheet.CellFormat{
						BackgroundColor: highlightColor,
					},
				},
				Fields: "userEnteredFormat.backgroundColor",
			},
		})
	}

	_, err = c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID,
		&gsheet.BatchUpdateSpreadsheetRequest{Requests: requests}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("highlight %d rows on %s: %w", len(rows), sheetName, err)
	}
	slog.InfoContext(ctx, "Highlighted changed rows",
		"component", "sheets", "sheet", sheetName, "rows", len(rows))
	return nil
}

// BaselineSheet resolves a named range to the title of the sheet it covers.
func (c *Client) BaselineSheet(ctx context.Context, namedRange string) (string, error) {
	meta, err := c.metadata(ctx)
	if err != nil {
		return "", err
	}
	sheetID, ok := meta.namedRanges[namedRange]
	if !ok {
		return "", fmt.Errorf("named range %q not found in spreadsheet %s", namedRange, c.spreadsheetID)
	}
	title, ok := meta.sheetTitles[sheetID]
	if !ok {
		return "", fmt.Errorf("named range %q points at unknown sheet id %d", namedRange, sheetID)
	}
	return title, nil
}

// HideSheet hides a superseded changes sheet from view without deleting it.
func (c *Client) HideSheet(ctx context.Context, sheetName string) error {
	sheetID, err := c.sheetID(ctx, sheetName)
	if err != nil {
		return err
	}
	_, err = c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			UpdateSheetProperties: &gsheet.UpdateSheetPropertiesRequest{
				Properties: &gsheet.SheetProperties{SheetId: sheetID, Hidden: true},
				Fields:     "hidden",
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("hide sheet %s: %w", sheetName, err)
	}
	return nil
}

// DeleteSheet removes a temporary sheet.
func (c *Client) DeleteSheet(ctx context.Context, sheetName string) error {
	sheetID, err := c.sheetID(ctx, sheetName)
	if err != nil {
		return err
	}
	_, err = c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteSheet: &gsheet.DeleteSheetRequest{SheetId: sheetID},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("delete sheet %s: %w", sheetName, err)
	}
	c.meta.Delete(metaCacheKey)
	return nil
}

// ImportSheet copies the first sheet of another spreadsheet into this one
// and renames it to title. Used when a freshly converted ledger upload is
// moved into the comparison spreadsheet.
func (c *Client) ImportSheet(ctx context.Context, srcSpreadsheetID, title string) error {
	src, err := c.svc.Spreadsheets.Get(srcSpreadsheetID).
		Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("inspect source spreadsheet: %w", err)
	}
	if len(src.Sheets) == 0 {
		return fmt.Errorf("source spreadsheet %s has no sheets", srcSpreadsheetID)
	}
	srcSheetID := src.Sheets[0].Properties.SheetId

	copied, err := c.svc.Spreadsheets.Sheets.CopyTo(srcSpreadsheetID, srcSheetID,
		&gsheet.CopySheetToAnotherSpreadsheetRequest{
			DestinationSpreadsheetId: c.spreadsheetID,
		}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("copy sheet into %s: %w", c.spreadsheetID, err)
	}

	_, err = c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			UpdateSheetProperties: &gsheet.UpdateSheetPropertiesRequest{
				Properties: &gsheet.SheetProperties{SheetId: copied.SheetId, Title: title},
				Fields:     "title",
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("rename imported sheet to %s: %w", title, err)
	}

	c.meta.Delete(metaCacheKey)
	slog.InfoContext(ctx, "Imported ledger sheet",
		"component", "sheets", "sheet", title, "spreadsheet_id", c.spreadsheetID)
	return nil
}

func (c *Client) sheetID(ctx context.Context, sheetName string) (int64, error) {
	meta, err := c.metadata(ctx)
	if err != nil {
		return 0, err
	}
	id, ok := meta.sheetIDs[sheetName]
	if !ok {
		return 0, fmt.Errorf("sheet %q not found in spreadsheet %s", sheetName, c.spreadsheetID)
	}
	return id, nil
}

// metadata fetches (and caches) the sheet and named-range inventory of the
// spreadsheet.
func (c *Client) metadata(ctx context.Context) (spreadsheetMeta, error) {
	if meta, ok := c.meta.Get(metaCacheKey); ok {
		return meta, nil
	}
	resp, err := c.svc.Spreadsheets.Get(c.spreadsheetID).
		Fields("sheets.properties", "namedRanges").Context(ctx).Do()
	if err != nil {
		return spreadsheetMeta{}, fmt.Errorf("read spreadsheet metadata: %w", err)
	}

	meta := spreadsheetMeta{
		sheetIDs:    make(map[string]int64),
		sheetTitles: make(map[int64]string),
		namedRanges: make(map[string]int64),
	}
	for _, s := range resp.Sheets {
		if s.Properties == nil {
			continue
		}
		meta.sheetIDs[s.Properties.Title] = s.Properties.SheetId
		meta.sheetTitles[s.Properties.SheetId] = s.Properties.Title
	}
	for _, nr := range resp.NamedRanges {
		if nr.Range == nil {
			continue
		}
		meta.namedRanges[nr.Name] = nr.Range.SheetId
	}
	c.meta.Set(metaCacheKey, meta)
	return meta, nil
}

// quoteSheetName wraps a sheet title for use as an A1 range covering the
// whole sheet.
func quoteSheetName(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
