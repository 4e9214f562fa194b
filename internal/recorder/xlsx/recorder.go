// Package xlsx persists change records as rows of an Excel workbook.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/pagewatch/internal/monitor"
)

// Extension is the file suffix enforced on workbook paths.
const Extension = ".xlsx"

// Header is the first row of every workbook the recorder creates.
var Header = []string{"Timestamp", "URL", "HTML Changes", "CSS Changes"}

// Column layout. A diff longer than one cell holds continues in later column
// pairs: part 2 of the HTML diff in E, part 2 of the CSS diff in F, part 3 in
// G and H, and so on.
const (
	colHTML      = 2
	colCSS       = 3
	firstOverrun = 4
)

// Recorder appends change records to a workbook on disk. The workbook is
// opened, written, saved and closed on every call so the file on disk is
// always complete.
type Recorder struct {
	path   string
	loc    *time.Location
	logger *zap.Logger

	mu sync.Mutex
}

// New creates a Recorder for path. Timestamps are rendered in loc; nil means
// UTC.
func New(path string, loc *time.Location, logger *zap.Logger) (*Recorder, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("workbook path is required")
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{path: WithExtension(path), loc: loc, logger: logger}, nil
}

// WithExtension appends ".xlsx" to name unless it already ends with it.
func WithExtension(name string) string {
	name = strings.TrimSpace(name)
	if strings.EqualFold(filepath.Ext(name), Extension) {
		return name
	}
	return name + Extension
}

// Path returns the workbook location.
func (r *Recorder) Path() string {
	return r.path
}

// Append writes one row for record, creating the workbook with a header row
// when it does not exist yet.
func (r *Recorder) Append(ctx context.Context, record monitor.ChangeRecord) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	f, created, err := r.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	rows, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("read rows of %s: %w", r.path, err)
	}
	next := len(rows) + 1
	headerLen := 0
	if created {
		next = 2
	} else if len(rows) > 0 {
		headerLen = len(rows[0])
	}

	row := r.buildRow(record)
	if header := headerFor(len(row)); len(header) > headerLen {
		if err := writeRow(f, sheet, 1, header); err != nil {
			return err
		}
	}
	if err := writeRow(f, sheet, next, row); err != nil {
		return err
	}

	if created {
		if err := f.SaveAs(r.path); err != nil {
			return fmt.Errorf("save workbook %s: %w", r.path, err)
		}
		return nil
	}
	if err := f.Save(); err != nil {
		return fmt.Errorf("save workbook %s: %w", r.path, err)
	}
	return nil
}

// ReadAll returns every recorded change in row order, skipping the header.
func (r *Recorder) ReadAll(ctx context.Context) ([]monitor.ChangeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := excelize.OpenFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", r.path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	rows, err := f.GetRows(f.GetSheetName(f.GetActiveSheetIndex()))
	if err != nil {
		return nil, fmt.Errorf("read rows of %s: %w", r.path, err)
	}
	if len(rows) <= 1 {
		return nil, nil
	}
	records := make([]monitor.ChangeRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		cell := func(col int) string {
			if col < len(row) {
				return row[col]
			}
			return ""
		}
		ts, err := time.ParseInLocation(monitor.TimestampLayout, cell(0), r.loc)
		if err != nil {
			return nil, fmt.Errorf("row %d: parse timestamp %q: %w", i+2, cell(0), err)
		}
		var html, css strings.Builder
		html.WriteString(cell(colHTML))
		css.WriteString(cell(colCSS))
		for col := firstOverrun; col < len(row); col += 2 {
			html.WriteString(cell(col))
			css.WriteString(cell(col + 1))
		}
		records = append(records, monitor.ChangeRecord{
			Timestamp: ts,
			URL:       cell(1),
			HTMLDiff:  html.String(),
			CSSDiff:   css.String(),
		})
	}
	return records, nil
}

// buildRow lays record out as cells, splitting diffs that exceed the
// per-cell character limit across continuation columns.
func (r *Recorder) buildRow(record monitor.ChangeRecord) []string {
	html := splitCell(record.HTMLDiff)
	css := splitCell(record.CSSDiff)
	row := []string{
		record.Timestamp.In(r.loc).Format(monitor.TimestampLayout),
		record.URL,
		html[0],
		css[0],
	}
	parts := max(len(html), len(css))
	if parts == 1 {
		return row
	}
	r.logger.Warn("diff exceeds cell limit; continuing in extra columns",
		zap.String("path", r.path),
		zap.Int("html_parts", len(html)),
		zap.Int("css_parts", len(css)),
	)
	for i := 1; i < parts; i++ {
		row = append(row, part(html, i), part(css, i))
	}
	return row
}

// headerFor returns the header row for a data row of width columns.
func headerFor(width int) []string {
	header := append([]string(nil), Header...)
	for col, n := firstOverrun, 2; col < width; col, n = col+2, n+1 {
		header = append(header,
			fmt.Sprintf("HTML Changes (%d)", n),
			fmt.Sprintf("CSS Changes (%d)", n),
		)
	}
	return header
}

// splitCell cuts s into pieces of at most excelize.TotalCellChars characters.
// It always returns at least one piece.
func splitCell(s string) []string {
	if utf8.RuneCountInString(s) <= excelize.TotalCellChars {
		return []string{s}
	}
	var parts []string
	runes := []rune(s)
	for len(runes) > 0 {
		n := min(len(runes), excelize.TotalCellChars)
		parts = append(parts, string(runes[:n]))
		runes = runes[n:]
	}
	return parts
}

func part(parts []string, i int) string {
	if i < len(parts) {
		return parts[i]
	}
	return ""
}

// open returns the existing workbook or a new one, and whether it was created.
func (r *Recorder) open() (*excelize.File, bool, error) {
	_, err := os.Stat(r.path)
	switch {
	case err == nil:
		f, openErr := excelize.OpenFile(r.path)
		if openErr != nil {
			return nil, false, fmt.Errorf("open workbook %s: %w", r.path, openErr)
		}
		return f, false, nil
	case errors.Is(err, fs.ErrNotExist):
		if dir := filepath.Dir(r.path); dir != "." {
			if mkErr := os.MkdirAll(dir, 0o750); mkErr != nil {
				return nil, false, fmt.Errorf("create workbook directory: %w", mkErr)
			}
		}
		return excelize.NewFile(), true, nil
	default:
		return nil, false, fmt.Errorf("stat workbook %s: %w", r.path, err)
	}
}

func writeRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell name for row %d: %w", row, err)
	}
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}
