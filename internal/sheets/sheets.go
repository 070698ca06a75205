// Package sheets appends export rows to the configured Google Sheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"iosplit/internal/contract"
	"iosplit/internal/fault"
)

// Appender is what the export path needs from a spreadsheet backend.
// Implemented by Client; tests substitute a fake.
type Appender interface {
	Append(ctx context.Context, rows []contract.ExportRow) (sheetURL string, err error)
}

// Config selects the target spreadsheet and the service-account credentials.
type Config struct {
	SpreadsheetID   string
	Worksheet       string // tab name, default "Sheet1"
	CredentialsEnv  string // env var holding the service-account JSON
	CredentialsFile string // fallback: path to the JSON file
}

// Client talks to the Google Sheets API.
type Client struct {
	svc           *sheets.Service
	spreadsheetID string
	worksheet     string
}

// New builds a Sheets client from service-account credentials, preferring
// the env var over the file.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fault.Precondition("no spreadsheet id configured")
	}
	worksheet := cfg.Worksheet
	if worksheet == "" {
		worksheet = "Sheet1"
	}

	var opts []option.ClientOption
	if creds := os.Getenv(cfg.CredentialsEnv); cfg.CredentialsEnv != "" && creds != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
	} else if cfg.CredentialsFile != "" {
		if _, err := os.Stat(cfg.CredentialsFile); err != nil {
			return nil, fault.Precondition("Google credentials file not found at %q", cfg.CredentialsFile)
		}
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	} else {
		return nil, fault.Precondition("no Google credentials configured")
	}
	opts = append(opts, option.WithScopes(sheets.SpreadsheetsScope))

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	return &Client{svc: svc, spreadsheetID: cfg.SpreadsheetID, worksheet: worksheet}, nil
}

// URL returns the spreadsheet's browser URL.
func (c *Client) URL() string {
	return "https://docs.google.com/spreadsheets/d/" + c.spreadsheetID
}

// Append writes the header if the sheet is empty, then appends one
// spreadsheet row per export row after the last row containing data.
// values.append targets the end of the existing data table, so rows never
// land in previously deleted ranges.
func (c *Client) Append(ctx context.Context, rows []contract.ExportRow) (string, error) {
	empty, err := c.isEmpty(ctx)
	if err != nil {
		return "", err
	}
	if empty {
		if err := c.appendValues(ctx, [][]any{headerValues()}); err != nil {
			return "", err
		}
		log.Printf("Wrote header row to sheet %s", c.spreadsheetID)
	}

	values := make([][]any, 0, len(rows))
	for _, r := range rows {
		values = append(values, r.SheetValues())
	}
	if err := c.appendValues(ctx, values); err != nil {
		return "", err
	}

	log.Printf("Appended %d rows to sheet %s", len(rows), c.spreadsheetID)
	return c.URL(), nil
}

func (c *Client) isEmpty(ctx context.Context) (bool, error) {
	resp, err := c.svc.Spreadsheets.Values.
		Get(c.spreadsheetID, c.worksheet+"!A1:A1").
		Context(ctx).Do()
	if err != nil {
		return false, classifyAPIError(err)
	}
	return len(resp.Values) == 0, nil
}

func (c *Client) appendValues(ctx context.Context, values [][]any) error {
	vr := &sheets.ValueRange{Values: values}
	_, err := c.svc.Spreadsheets.Values.
		Append(c.spreadsheetID, c.worksheet+"!A1", vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return classifyAPIError(err)
	}
	return nil
}

func headerValues() []any {
	vals := make([]any, len(contract.SheetHeader))
	for i, h := range contract.SheetHeader {
		vals[i] = h
	}
	return vals
}

func classifyAPIError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fault.Timeout(err, "sheets call exceeded its time budget")
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return fault.Unavailable(err, "sheets API returned %d", apiErr.Code)
	}
	return fault.Unavailable(err, "sheets API unreachable")
}
