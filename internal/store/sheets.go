package store

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/ppiankov/rightsprobe/internal/model"
)

// SheetsStore keeps the table in a Google spreadsheet
type SheetsStore struct {
	svc           *sheets.Service
	spreadsheetID string
	sheetName     string
	columns       string
}

// NewSheetsStore connects with the service account credentials named in cfg.
// Extra client options are applied after the credentials.
func NewSheetsStore(ctx context.Context, cfg model.SheetsConfig, opts ...option.ClientOption) (*SheetsStore, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("sheets store: spreadsheet_id is not configured")
	}

	var all []option.ClientOption
	if cfg.CredentialsFile != "" {
		all = append(all, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	all = append(all, option.WithScopes(sheets.SpreadsheetsScope))
	all = append(all, opts...)

	svc, err := sheets.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("sheets store: client: %w", err)
	}

	columns := cfg.Range
	if columns == "" {
		columns = "A:O"
	}
	sheetName := cfg.SheetName
	if sheetName == "" {
		sheetName = "Sheet1"
	}
	return &SheetsStore{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     sheetName,
		columns:       columns,
	}, nil
}

func (s *SheetsStore) rangeOf(cells string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(s.sheetName, "'", "''"), cells)
}

// Read implements Store. The first non-empty sheet row is the header.
func (s *SheetsStore) Read(ctx context.Context) ([][]string, []string, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, s.rangeOf(s.columns)).
		Context(ctx).Do()
	if err != nil {
		return nil, nil, fmt.Errorf("sheets store: read: %w", err)
	}
	if len(resp.Values) == 0 {
		return nil, nil, nil
	}

	headers := toStrings(resp.Values[0])
	rows := make([][]string, 0, len(resp.Values)-1)
	for _, v := range resp.Values[1:] {
		rows = append(rows, toStrings(v))
	}
	return rows, headers, nil
}

// WriteHeaders implements Store
func (s *SheetsStore) WriteHeaders(ctx context.Context, headers []string) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{toCells(headers)}}
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, s.rangeOf("A1"), vr).
		ValueInputOption("RAW").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets store: write headers: %w", err)
	}
	return nil
}

// Append implements Store. All rows go out in a single request.
func (s *SheetsStore) Append(ctx context.Context, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	values := make([][]interface{}, len(rows))
	for i, r := range rows {
		values[i] = toCells(r)
	}

	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, s.rangeOf(s.columns), &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets store: append: %w", err)
	}
	return nil
}

// Close implements Store
func (s *SheetsStore) Close() error { return nil }

func toStrings(cells []interface{}) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = model.Stringify(c)
	}
	return out
}

func toCells(row []string) []interface{} {
	out := make([]interface{}, len(row))
	for i, c := range row {
		out[i] = c
	}
	return out
}
