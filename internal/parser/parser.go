// Package parser turns uploaded spreadsheet bytes into an ordered sequence of
// row records keyed by source column name.
package parser

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnsupportedFormat is returned when an uploaded file is not supported.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrFileTooLarge is returned when the payload exceeds the size ceiling.
	ErrFileTooLarge = errors.New("file exceeds size limit")
	// ErrTooManyRows is returned when the file exceeds the row ceiling.
	ErrTooManyRows = errors.New("file exceeds row limit")

	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

	dateLayouts = []string{
		"2006-01-02",
		"02/01/2006",
		"2/1/2006",
		"2006/01/02",
		time.RFC3339,
		"2006-01-02 15:04:05",
	}
)

// Limits bounds accepted uploads.
type Limits struct {
	MaxRows  int
	MaxBytes int64
}

// DefaultLimits matches the documented ceilings: 10,000 rows, 10 MiB.
func DefaultLimits() Limits {
	return Limits{MaxRows: 10000, MaxBytes: 10 << 20}
}

// Row is one data row: its 1-based position in the source file plus the raw
// cell values keyed by sanitized column name.
type Row struct {
	Number int
	Values map[string]string
}

// Table holds the parsed file. Rows are consumed through a single forward
// iteration; replaying requires re-parsing the source bytes.
type Table struct {
	Headers    []string
	RawHeaders []string

	rows []Row
	next int
}

// RowCount returns the number of non-blank data rows.
func (t *Table) RowCount() int {
	return len(t.rows)
}

// Next returns the next row in file order. The second return is false once
// the sequence is exhausted.
func (t *Table) Next() (Row, bool) {
	if t.next >= len(t.rows) {
		return Row{}, false
	}
	row := t.rows[t.next]
	t.next++
	return row, true
}

// Parse reads the payload according to the file extension or declared content
// type and enforces the given limits.
func Parse(filename, contentType string, payload []byte, limits Limits) (*Table, error) {
	if limits.MaxBytes > 0 && int64(len(payload)) > limits.MaxBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, len(payload))
	}
	if len(payload) == 0 {
		return nil, errors.New("file is empty")
	}

	var records [][]string
	var err error
	switch detectFormat(filename, contentType) {
	case "csv":
		records, err = readCSV(payload)
	case "xlsx":
		records, err = readExcel(payload)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(filename))
	}
	if err != nil {
		return nil, err
	}

	table, err := normalize(records)
	if err != nil {
		return nil, err
	}
	if limits.MaxRows > 0 && table.RowCount() > limits.MaxRows {
		return nil, fmt.Errorf("%w: %d rows", ErrTooManyRows, table.RowCount())
	}
	return table, nil
}

func detectFormat(filename, contentType string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return "csv"
	case ".xlsx":
		return "xlsx"
	}
	switch contentType {
	case "text/csv":
		return "csv"
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return "xlsx"
	}
	return ""
}

func readCSV(payload []byte) ([][]string, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return records, nil
}

func readExcel(payload []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("excel file has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}
	return rows, nil
}

func normalize(records [][]string) (*Table, error) {
	if len(records) == 0 {
		return nil, errors.New("no rows found in file")
	}

	headerIndex := -1
	for idx, record := range records {
		if !blank(record) {
			headerIndex = idx
			break
		}
	}
	if headerIndex < 0 {
		return nil, errors.New("header row could not be detected")
	}

	headers := sanitizeHeaders(records[headerIndex])
	rawHeaders := make([]string, len(records[headerIndex]))
	for i, value := range records[headerIndex] {
		rawHeaders[i] = strings.TrimSpace(value)
	}

	var rows []Row
	for idx := headerIndex + 1; idx < len(records); idx++ {
		record := records[idx]
		if blank(record) {
			// Blank rows are skipped, not errors; numbering keeps file order.
			continue
		}
		values := make(map[string]string, len(headers))
		for col, header := range headers {
			if col < len(record) {
				values[header] = strings.TrimSpace(record[col])
			} else {
				values[header] = ""
			}
		}
		rows = append(rows, Row{Number: idx + 1, Values: values})
	}

	return &Table{Headers: headers, RawHeaders: rawHeaders, rows: rows}, nil
}

func blank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func sanitizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	seen := make(map[string]int)

	for idx, value := range raw {
		name := strings.TrimSpace(value)
		name = strings.ReplaceAll(name, " ", "_")
		name = strings.ReplaceAll(name, ".", "_")
		name = strings.ReplaceAll(name, "-", "_")
		name = strings.Trim(name, "_")
		name = strings.ToLower(name)
		if name == "" {
			name = fmt.Sprintf("column_%d", idx+1)
		}

		base := name
		count := seen[base]
		if count > 0 {
			name = fmt.Sprintf("%s_%d", base, count+1)
		}
		seen[base] = count + 1

		headers[idx] = name
	}

	return headers
}

// ParseDate accepts the date formats tolerated by the import template,
// DD/MM/YYYY and YYYY-MM-DD among them.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format %q", raw)
}

// ParseNumber accepts locale-variant numeric and percentage formats:
// a trailing %, thousands separators, and comma decimals.
func ParseNumber(raw string) (float64, error) {
	value := strings.TrimSpace(raw)
	value = strings.TrimSuffix(value, "%")
	value = strings.TrimSpace(value)

	if strings.Contains(value, ",") && strings.Contains(value, ".") {
		// 1.234,56 vs 1,234.56 — the rightmost separator is the decimal point.
		if strings.LastIndex(value, ",") > strings.LastIndex(value, ".") {
			value = strings.ReplaceAll(value, ".", "")
			value = strings.Replace(value, ",", ".", 1)
		} else {
			value = strings.ReplaceAll(value, ",", "")
		}
	} else if strings.Contains(value, ",") {
		if strings.Count(value, ",") == 1 && len(value)-strings.LastIndex(value, ",") <= 3 {
			value = strings.Replace(value, ",", ".", 1)
		} else {
			value = strings.ReplaceAll(value, ",", "")
		}
	}

	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("unrecognized number format %q", raw)
	}
	return f, nil
}
