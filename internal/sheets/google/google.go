package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	ports "tripsplit/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Client writes trip reports into one spreadsheet, one tab per trip.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string

	mu     sync.Mutex
	tabs   map[string]bool
	byTrip map[string]string
}

var _ ports.ReportWriter = (*Client)(nil)

// NewFromEnv creates a Sheets client for spreadsheetID authenticated with a
// service account from GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE
// or GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context, spreadsheetID string) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	creds, err := credentialsFromEnv(ctx)
	if err != nil {
		return nil, err
	}
	return New(ctx, spreadsheetID,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
}

// New builds a client with explicit API options.
func New(ctx context.Context, spreadsheetID string, opts ...goption.ClientOption) (*Client, error) {
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		tabs:          map[string]bool{},
		byTrip:        map[string]string{},
	}, nil
}

func credentialsFromEnv(ctx context.Context) ([]byte, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline service account credentials")
		return []byte(serviceAccountJSON), nil
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading service account credentials", "path", serviceAccountFile)
		data, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// WriteReport clears the trip's tab and writes the report from A1.
func (c *Client) WriteReport(ctx context.Context, r ports.TripReport) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	title := ports.SheetTitle(r)
	if err := c.ensureTab(ctx, title); err != nil {
		return err
	}

	tab := quoteTitle(title)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, tab, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear sheet %s: %w", title, err)
	}

	vr := &gsheet.ValueRange{Values: ports.Rows(r)}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, tab+"!A1", vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
		return fmt.Errorf("update sheet %s: %w", title, err)
	}

	c.mu.Lock()
	prev := c.byTrip[r.TripID]
	c.byTrip[r.TripID] = title
	c.mu.Unlock()
	if prev != "" && prev != title {
		slog.InfoContext(ctx, "Trip tab renamed, previous tab left in place",
			"trip_id", r.TripID, "previous", prev, "current", title)
	}

	slog.InfoContext(ctx, "Trip report exported",
		"trip_id", r.TripID,
		"sheet_range", tab+"!A1",
		"rows", len(vr.Values))
	return nil
}

// ensureTab creates the tab when the spreadsheet does not have it yet.
func (c *Client) ensureTab(ctx context.Context, title string) error {
	c.mu.Lock()
	known := c.tabs[title]
	c.mu.Unlock()
	if known {
		return nil
	}

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}

	found := false
	c.mu.Lock()
	for _, sh := range ss.Sheets {
		if sh.Properties == nil {
			continue
		}
		c.tabs[sh.Properties.Title] = true
		if sh.Properties.Title == title {
			found = true
		}
	}
	c.mu.Unlock()
	if found {
		return nil
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", title, err)
	}

	c.mu.Lock()
	c.tabs[title] = true
	c.mu.Unlock()
	slog.InfoContext(ctx, "Created trip sheet", "title", title)
	return nil
}

// quoteTitle wraps a tab title for A1 notation.
func quoteTitle(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}
