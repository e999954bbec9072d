// package formatter renders royalty statements and dashboard summaries as CSV, JSON, Markdown and plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/desertthunder/royalty/internal/dashboard"
	"github.com/desertthunder/royalty/internal/models"
	"github.com/desertthunder/royalty/internal/repositories"
	"github.com/shopspring/decimal"
)

// Format is an export encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat accepts csv or json; empty means csv.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown export format %q (want csv or json)", s)
	}
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "text/csv; charset=utf-8"
}

// Filename returns the download name of an export for username taken at t.
func (f Format) Filename(username string, t time.Time) string {
	return fmt.Sprintf("royalty_statements_%s_%s.%s", username, t.Format("20060102"), f)
}

// CSVHeader uses column names the report importer recognizes, so an export can be uploaded again.
var CSVHeader = []string{"Track", "Album", "ISRC", "Platform", "Period Start", "Period End", "Streams", "Revenue", "Currency"}

// WriteCSV writes statements with [CSVHeader].
func WriteCSV(w io.Writer, rows []repositories.StatementRow) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(CSVHeader); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, row := range rows {
		record := []string{
			row.Track,
			row.Album,
			row.ISRC,
			row.Platform,
			row.PeriodStart,
			row.PeriodEnd,
			strconv.FormatInt(row.Streams, 10),
			models.RevenueFromE4(row.RevenueE4).StringFixed(models.RevenueScale),
			row.Currency,
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("CSV writer error: %w", err)
	}
	return nil
}

// ExportToCSV renders statements as CSV.
func ExportToCSV(rows []repositories.StatementRow) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// StatementJSON is a statement with its revenue as a four digit decimal string.
type StatementJSON struct {
	repositories.StatementRow
	Revenue string `json:"revenue"`
}

// StatementExport is the JSON export document.
type StatementExport struct {
	Artist     string          `json:"artist"`
	ExportedAt time.Time       `json:"exported_at"`
	Count      int             `json:"count"`
	Statements []StatementJSON `json:"statements"`
}

// NewStatementExport wraps rows for JSON encoding. Revenue keeps four fractional digits as a string.
func NewStatementExport(username string, rows []repositories.StatementRow, exportedAt time.Time) *StatementExport {
	return &StatementExport{
		Artist:     username,
		ExportedAt: exportedAt.UTC(),
		Count:      len(rows),
		Statements: StatementsJSON(rows),
	}
}

// StatementsJSON converts rows for JSON encoding. The result is never nil.
func StatementsJSON(rows []repositories.StatementRow) []StatementJSON {
	out := make([]StatementJSON, 0, len(rows))
	for _, row := range rows {
		out = append(out, StatementJSON{
			StatementRow: row,
			Revenue:      models.RevenueFromE4(row.RevenueE4).StringFixed(models.RevenueScale),
		})
	}
	return out
}

// ExportToJSON renders statements as an indented JSON document.
func ExportToJSON(username string, rows []repositories.StatementRow, exportedAt time.Time) ([]byte, error) {
	data, err := json.MarshalIndent(NewStatementExport(username, rows, exportedAt), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode statements: %w", err)
	}
	return append(data, '\n'), nil
}

// Export renders statements in format f.
func Export(f Format, username string, rows []repositories.StatementRow, exportedAt time.Time) ([]byte, error) {
	if f == FormatJSON {
		return ExportToJSON(username, rows, exportedAt)
	}
	return ExportToCSV(rows)
}

// FormatMoney renders amount in currency code with its symbol, e.g. "$1,234.50".
//
// Unknown currency codes fall back to the amount followed by the code.
func FormatMoney(amount decimal.Decimal, code string) string {
	currency := money.GetCurrency(strings.ToUpper(code))
	if currency == nil {
		return amount.StringFixed(2) + " " + code
	}
	minor := amount.Shift(int32(currency.Fraction)).Round(0).IntPart()
	return money.New(minor, currency.Code).Display()
}

// SummaryReport is what the Markdown and text renderers show.
type SummaryReport struct {
	Artist    string
	Summary   *dashboard.Summary
	TopTracks []dashboard.TrackStats
}

// ExportToMarkdown renders a dashboard summary as Markdown
func ExportToMarkdown(report SummaryReport) []byte {
	var buf bytes.Buffer
	s := report.Summary

	fmt.Fprintf(&buf, "# Royalty summary: %s\n\n", report.Artist)
	fmt.Fprintf(&buf, "**Total streams**: %s\n", formatCount(s.TotalStreams))
	fmt.Fprintf(&buf, "**Total revenue**: %s\n", FormatMoney(s.TotalRevenue.Decimal, s.Currency))
	fmt.Fprintf(&buf, "**Albums**: %d\n", s.TotalAlbums)
	fmt.Fprintf(&buf, "**Tracks**: %d\n\n", s.TotalTracks)

	if len(s.PlatformBreakdown) > 0 {
		buf.WriteString("## Platforms\n\n")
		buf.WriteString("| Platform | Streams | Revenue | Share |\n")
		buf.WriteString("|---|---:|---:|---:|\n")
		for _, p := range s.PlatformBreakdown {
			fmt.Fprintf(&buf, "| %s | %s | %s | %d%% |\n",
				p.PlatformName, formatCount(p.Streams), FormatMoney(p.Revenue.Decimal, s.Currency), p.Percentage)
		}
		buf.WriteString("\n")
	}

	if len(report.TopTracks) > 0 {
		buf.WriteString("## Top tracks\n\n")
		for _, t := range report.TopTracks {
			albumPart := ""
			if t.Album != "" {
				albumPart = fmt.Sprintf(" (%s)", t.Album)
			}
			fmt.Fprintf(&buf, "%d. %s%s: %s streams, %s\n",
				t.Rank, t.TrackName, albumPart, formatCount(t.Streams), FormatMoney(t.Revenue.Decimal, s.Currency))
		}
	}

	return buf.Bytes()
}

// ExportToText renders a dashboard summary as plain text
func ExportToText(report SummaryReport) []byte {
	var buf bytes.Buffer
	s := report.Summary

	fmt.Fprintf(&buf, "Artist: %s\n", report.Artist)
	fmt.Fprintf(&buf, "Streams: %s\n", formatCount(s.TotalStreams))
	fmt.Fprintf(&buf, "Revenue: %s\n", FormatMoney(s.TotalRevenue.Decimal, s.Currency))
	fmt.Fprintf(&buf, "Albums: %d, Tracks: %d\n", s.TotalAlbums, s.TotalTracks)

	for _, p := range s.PlatformBreakdown {
		fmt.Fprintf(&buf, "  %-16s %12s %12s %4d%%\n",
			p.PlatformName, formatCount(p.Streams), FormatMoney(p.Revenue.Decimal, s.Currency), p.Percentage)
	}

	if len(report.TopTracks) > 0 {
		buf.WriteString("\nTop tracks:\n")
		for _, t := range report.TopTracks {
			fmt.Fprintf(&buf, "%d. %s - %s streams\n", t.Rank, t.TrackName, formatCount(t.Streams))
		}
	}

	return buf.Bytes()
}

// formatCount groups digits in threes: 1234567 becomes "1,234,567".
func formatCount(n int64) string {
	s := strconv.FormatInt(n, 10)
	sign := ""
	if n < 0 {
		sign, s = "-", s[1:]
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return sign + s
}

// WriteExport writes data to path, creating parent directories.
func WriteExport(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
