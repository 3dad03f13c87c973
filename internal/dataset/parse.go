package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// MaxFileSize is the largest upload Parse will read (100MB).
var MaxFileSize int64 = 100 * 1024 * 1024

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parse reads a CSV or XLSX upload into a dataset. The format is chosen
// by file extension.
func Parse(fileName string, r io.Reader) (*Dataset, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		return nil, &RegistrationError{FileName: fileName, Message: "read upload", Err: err}
	}
	if int64(len(data)) > MaxFileSize {
		return nil, &RegistrationError{FileName: fileName, Message: fmt.Sprintf("file exceeds %d bytes", MaxFileSize)}
	}

	var records [][]string
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		records, err = parseCSV(data)
	case ".xlsx":
		records, err = parseXLSX(data)
	default:
		return nil, &RegistrationError{FileName: fileName, Message: "unsupported file type, expected .csv or .xlsx"}
	}
	if err != nil {
		return nil, &RegistrationError{FileName: fileName, Message: err.Error(), Err: err}
	}

	ds, err := FromRecords(records)
	if err != nil {
		return nil, &RegistrationError{FileName: fileName, Message: err.Error(), Err: err}
	}
	return ds, nil
}

// FromRecords builds a dataset from a header row followed by data rows,
// inferring column types from the values.
func FromRecords(records [][]string) (*Dataset, error) {
	if len(records) == 0 {
		return nil, errors.New("file is empty")
	}
	body := records[1:]
	header := headerNames(records[0], body)
	if len(header) == 0 {
		return nil, errors.New("header row has no columns")
	}

	for i, rec := range body {
		switch {
		case len(rec) < len(header):
			padded := make([]string, len(header))
			copy(padded, rec)
			body[i] = padded
		case len(rec) > len(header):
			if strings.TrimSpace(strings.Join(rec[len(header):], "")) != "" {
				return nil, fmt.Errorf("row %d has %d fields, header has %d", i+2, len(rec), len(header))
			}
			body[i] = rec[:len(header)]
		}
	}

	columns := make([]Column, len(header))
	for j, name := range header {
		columns[j] = Column{Name: name, Type: inferType(body, j)}
	}

	rows := make([][]any, len(body))
	for i, rec := range body {
		row := make([]any, len(columns))
		for j, col := range columns {
			row[j] = convertCell(rec[j], col.Type)
		}
		rows[i] = row
	}
	return New(columns, rows)
}

func parseCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		data = bytes.ToValidUTF8(data, []byte("�"))
	}
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return records, nil
}

func parseXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

// headerNames names blank headers "Unnamed: i" and suffixes duplicates
// with ".1", ".2", ... Trailing blank headers are dropped unless a data row
// has a value in that column or further right.
func headerNames(raw []string, body [][]string) []string {
	end := len(raw)
	for end > 0 && strings.TrimSpace(raw[end-1]) == "" && !hasValues(body, end-1) {
		end--
	}
	used := make(map[string]bool, end)
	counts := make(map[string]int, end)
	names := make([]string, end)
	for i := 0; i < end; i++ {
		base := strings.TrimSpace(raw[i])
		if base == "" {
			base = fmt.Sprintf("Unnamed: %d", i)
		}
		name := base
		for used[name] {
			counts[base]++
			name = fmt.Sprintf("%s.%d", base, counts[base])
		}
		used[name] = true
		names[i] = name
	}
	return names
}

func hasValues(rows [][]string, col int) bool {
	for _, rec := range rows {
		if col < len(rec) && strings.TrimSpace(rec[col]) != "" {
			return true
		}
	}
	return false
}

func inferType(rows [][]string, col int) ColumnType {
	isInt, isReal, nonEmpty := true, true, false
	for _, rec := range rows {
		v := strings.TrimSpace(rec[col])
		if v == "" {
			continue
		}
		nonEmpty = true
		if isInt {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				isInt = false
			}
		}
		if isReal {
			if f, err := strconv.ParseFloat(v, 64); err != nil || !isFinite(f) {
				isReal = false
			}
		}
		if !isInt && !isReal {
			return Text
		}
	}
	switch {
	case !nonEmpty:
		return Text
	case isInt:
		return Integer
	case isReal:
		return Real
	default:
		return Text
	}
}

func convertCell(raw string, t ColumnType) any {
	if raw == "" {
		return nil
	}
	v := strings.TrimSpace(raw)
	if v == "" {
		if t == Text {
			return raw
		}
		return nil
	}
	switch t {
	case Integer:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	case Real:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	default:
		return raw
	}
}
