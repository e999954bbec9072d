package reports

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/desertthunder/royalty/internal/shared"
	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Format is the container format of a report.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatTSV  Format = "tsv"
	FormatText Format = "text"
	FormatXLSX Format = "xlsx"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// DetectFormat sniffs the report format from its content, falling back to the filename extension when the
// content only looks like generic text or binary.
func DetectFormat(data []byte, filename string) (Format, error) {
	mtype := mimetype.Detect(data)

	switch {
	case mtype.Is(xlsxMIME):
		return FormatXLSX, nil
	case mtype.Is("text/csv"):
		return FormatCSV, nil
	case mtype.Is("text/tab-separated-values"):
		return FormatTSV, nil
	case mtype.Is("application/vnd.ms-excel"), mtype.Is("application/pdf"):
		return "", fmt.Errorf("%w: %s", shared.ErrUnsupportedFormat, mtype.String())
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		if mtype.Is("application/zip") {
			return FormatXLSX, nil
		}
	case ".csv":
		return FormatCSV, nil
	case ".tsv", ".tab":
		return FormatTSV, nil
	case ".txt":
		return FormatText, nil
	}

	if mtype.Is("text/plain") {
		return FormatText, nil
	}
	for p := mtype.Parent(); p != nil; p = p.Parent() {
		if p.Is("text/plain") {
			return FormatText, nil
		}
	}

	return "", fmt.Errorf("%w: %s (%s)", shared.ErrUnsupportedFormat, filepath.Base(filename), mtype.String())
}

// DecodeText converts report text to UTF-8.
//
// A UTF-8 BOM is stripped and UTF-16 input is recognized by its BOM. Input without a BOM that is not valid
// UTF-8 is read as Windows-1252, the usual encoding of spreadsheet exports on Windows.
func DecodeText(data []byte) ([]byte, error) {
	var decoder transform.Transformer
	switch {
	case bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}),
		bytes.HasPrefix(data, []byte{0xFF, 0xFE}),
		bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		decoder = unicode.BOMOverride(encoding.Nop.NewDecoder())
	case utf8.Valid(data):
		return data, nil
	default:
		decoder = charmap.Windows1252.NewDecoder()
	}

	out, _, err := transform.Bytes(decoder, data)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot decode text: %v", shared.ErrUnsupportedFormat, err)
	}
	return out, nil
}

// sniffDelimiter picks the most frequent of , ; tab | outside quotes in the first non-blank line.
func sniffDelimiter(data []byte) rune {
	var line []byte
	for rest := data; len(rest) > 0; {
		line, rest = rest, nil
		if i := bytes.IndexAny(line, "\r\n"); i >= 0 {
			line, rest = line[:i], line[i+1:]
		}
		if len(bytes.TrimSpace(line)) > 0 {
			break
		}
	}

	counts := map[rune]int{}
	quoted := false
	for _, r := range string(line) {
		switch r {
		case '"':
			quoted = !quoted
		case ',', ';', '\t', '|':
			if !quoted {
				counts[r]++
			}
		}
	}

	best, bestCount := ',', 0
	for _, r := range []rune{',', ';', '\t', '|'} {
		if counts[r] > bestCount {
			best, bestCount = r, counts[r]
		}
	}
	return best
}
