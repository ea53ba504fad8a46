package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// rowNumberKey tracks the 1-based source line of each keyed row so build
// errors can point at the offending line.
const rowNumberKey = "_row"

// ParseError is a file-level parse failure. Parsing is all-or-nothing: the
// first malformed record aborts the whole file and nothing is handed to
// later stages.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error at line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("parse error: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ReadPositionalCSV reads a category-style CSV: every record is returned as
// its raw column slice, empty lines skipped. The header row is kept; the
// category normalizer is responsible for dropping it.
func ReadPositionalCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // category files carry a single meaningful column

	var rows [][]string
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, &ParseError{Line: line, Err: err}
		}
		rows = append(rows, record)
	}
	return rows, nil
}

// ReadKeyedCSV reads an items-style CSV: the first row supplies field names,
// every following record becomes a map keyed by the normalized header.
// Headers are lower-cased and trimmed; values are trimmed. A record with a
// column count different from the header aborts the file.
func ReadKeyedCSV(r io.Reader) ([]map[string]string, error) {
	reader := csv.NewReader(r)

	headers, err := reader.Read()
	if err != nil {
		return nil, &ParseError{Line: 1, Err: fmt.Errorf("failed to read header: %w", err)}
	}
	normalizeHeaders(headers)

	var rows []map[string]string
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, &ParseError{Line: line, Err: err}
		}
		rows = append(rows, keyedRow(headers, record, line))
	}
	return rows, nil
}

// ReadPositionalXLSX reads the first sheet of a workbook as positional rows.
func ReadPositionalXLSX(r io.Reader) ([][]string, error) {
	sheetRows, err := readSheetRows(r)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	for _, row := range sheetRows {
		if isBlankRecord(row) {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ReadKeyedXLSX reads the first sheet of a workbook as header-keyed rows.
func ReadKeyedXLSX(r io.Reader) ([]map[string]string, error) {
	sheetRows, err := readSheetRows(r)
	if err != nil {
		return nil, err
	}
	if len(sheetRows) == 0 {
		return nil, nil
	}

	headers := sheetRows[0]
	normalizeHeaders(headers)

	var rows []map[string]string
	for i, record := range sheetRows[1:] {
		if isBlankRecord(record) {
			continue
		}
		rows = append(rows, keyedRow(headers, record, i+2))
	}
	return rows, nil
}

func readSheetRows(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &ParseError{Err: fmt.Errorf("failed to open workbook: %w", err)}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &ParseError{Err: fmt.Errorf("workbook has no sheets")}
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &ParseError{Err: fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)}
	}
	return rows, nil
}

func normalizeHeaders(headers []string) {
	for i := range headers {
		headers[i] = strings.TrimSpace(strings.ToLower(headers[i]))
		headers[i] = strings.TrimSuffix(headers[i], " *")
	}
}

func keyedRow(headers, record []string, line int) map[string]string {
	row := make(map[string]string, len(headers)+1)
	for i, value := range record {
		if i < len(headers) {
			row[headers[i]] = strings.TrimSpace(value)
		}
	}
	row[rowNumberKey] = strconv.Itoa(line)
	return row
}

func isBlankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// RowLine returns the source line a keyed row was read from, or 0 when the
// row did not come from a file.
func RowLine(row map[string]string) int {
	n, _ := strconv.Atoi(row[rowNumberKey])
	return n
}
