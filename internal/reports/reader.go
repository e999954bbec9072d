package reports

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/desertthunder/royalty/internal/shared"
	"github.com/xuri/excelize/v2"
)

// Row is one data row. Line is its 1-based line in the file, or row number in a workbook.
type Row struct {
	Line   int
	Values []string
}

// Report is a parsed table with its header mapped onto [Field]s.
type Report struct {
	Format  Format
	Header  []string
	Columns Columns
	Rows    []Row
}

// Open parses report data. Blank rows are dropped; the first non-blank row is the header.
func Open(data []byte, filename string) (*Report, error) {
	format, err := DetectFormat(data, filename)
	if err != nil {
		return nil, err
	}

	var records []Row
	switch format {
	case FormatXLSX:
		records, err = readWorkbook(data)
	default:
		records, err = readDelimited(data, format)
	}
	if err != nil {
		return nil, err
	}

	report := &Report{Format: format}
	for _, record := range records {
		if isBlank(record.Values) {
			continue
		}
		if report.Header == nil {
			report.Header = record.Values
			continue
		}
		report.Rows = append(report.Rows, record)
	}

	if report.Header == nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrEmptyReport, filename)
	}

	if report.Columns, err = MapColumns(report.Header); err != nil {
		return nil, err
	}
	return report, nil
}

func readDelimited(data []byte, format Format) ([]Row, error) {
	text, err := DecodeText(data)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(text))
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	switch format {
	case FormatTSV:
		reader.Comma = '\t'
	default:
		reader.Comma = sniffDelimiter(text)
	}

	var records []Row
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrUnsupportedFormat, err)
		}
		line, _ := reader.FieldPos(0)
		records = append(records, Row{Line: line, Values: record})
	}
	return records, nil
}

// readWorkbook returns the formatted cell values of the first sheet.
func readWorkbook(data []byte) ([]Row, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: cannot open workbook: %v", shared.ErrUnsupportedFormat, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, shared.ErrEmptyReport
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read sheet %q: %v", shared.ErrUnsupportedFormat, sheets[0], err)
	}

	records := make([]Row, len(rows))
	for i, values := range rows {
		records[i] = Row{Line: i + 1, Values: values}
	}
	return records, nil
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
