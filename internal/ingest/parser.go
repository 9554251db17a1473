package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// Format identifies a recognized upload payload.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// Row maps a header cell to the row's trimmed cell value.
type Row map[string]string

var (
	// ErrUnrecognizedFormat means the payload is neither a workbook nor CSV text.
	ErrUnrecognizedFormat = errors.New("payload is not a spreadsheet or CSV file")
	// ErrLegacyWorkbook means the payload is a pre-2007 binary .xls workbook.
	ErrLegacyWorkbook = errors.New("legacy .xls workbooks are not supported; save as .xlsx or .csv")

	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
	utf8BOM  = []byte{0xEF, 0xBB, 0xBF}
)

// DetectFormat sniffs the payload's content, ignoring any client-supplied name or type.
func DetectFormat(data []byte) (Format, error) {
	switch {
	case len(bytes.TrimSpace(data)) == 0:
		return "", ErrUnrecognizedFormat
	case bytes.HasPrefix(data, zipMagic):
		return FormatXLSX, nil
	case bytes.HasPrefix(data, oleMagic):
		return "", ErrLegacyWorkbook
	case utf8.Valid(data) && !bytes.ContainsRune(data, 0):
		return FormatCSV, nil
	}
	return "", ErrUnrecognizedFormat
}

// ParseRows turns the first sheet (or the CSV body) into header-keyed rows.
// Fully blank rows are dropped.
func ParseRows(data []byte) ([]Row, error) {
	format, err := DetectFormat(data)
	if err != nil {
		return nil, err
	}

	var grid [][]string
	switch format {
	case FormatXLSX:
		grid, err = readWorkbook(data)
	default:
		grid, err = readCSV(data)
	}
	if err != nil {
		return nil, err
	}
	return gridToRows(grid), nil
}

func readWorkbook(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecognizedFormat, err)
	}
	defer f.Close() //nolint:errcheck

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrUnrecognizedFormat)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %v", ErrUnrecognizedFormat, sheets[0], err)
	}
	return rows, nil
}

func readCSV(data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecognizedFormat, err)
	}
	return records, nil
}

func gridToRows(grid [][]string) []Row {
	if len(grid) == 0 {
		return nil
	}
	header := make([]string, len(grid[0]))
	for i, cell := range grid[0] {
		header[i] = strings.TrimSpace(cell)
	}

	rows := make([]Row, 0, len(grid)-1)
	for _, cells := range grid[1:] {
		row := Row{}
		blank := true
		for i, cell := range cells {
			if i >= len(header) || header[i] == "" {
				continue
			}
			value := strings.TrimSpace(cell)
			if value != "" {
				blank = false
			}
			if existing, ok := row[header[i]]; ok && existing != "" {
				continue
			}
			row[header[i]] = value
		}
		if !blank {
			rows = append(rows, row)
		}
	}
	return rows
}
