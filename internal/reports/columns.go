package reports

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/desertthunder/royalty/internal/shared"
)

// Field is a report column the importer understands.
type Field string

const (
	FieldTrack       Field = "track"
	FieldAlbum       Field = "album"
	FieldISRC        Field = "isrc"
	FieldPlatform    Field = "platform"
	FieldPeriodStart Field = "period_start"
	FieldPeriodEnd   Field = "period_end"
	FieldStreams     Field = "streams"
	FieldRevenue     Field = "revenue"
	FieldCurrency    Field = "currency"
)

// aliases lists accepted normalized header names per field, in order of preference.
var aliases = map[Field][]string{
	FieldTrack: {"track", "track_name", "track_title", "title", "song", "song_title", "song_name", "asset_title"},
	FieldAlbum: {"album", "album_name", "album_title", "release", "release_title", "release_name", "product"},
	FieldISRC:  {"isrc", "track_isrc", "isrc_code"},
	FieldPlatform: {"platform", "platform_name", "store", "store_name", "service", "dsp", "retailer", "source",
		"channel", "partner"},
	FieldPeriodStart: {"period_start", "start_date", "period_from", "from_date", "from", "start"},
	FieldPeriodEnd: {"period_end", "end_date", "period_to", "to_date", "sale_date", "reporting_date",
		"statement_date", "date", "period", "reporting_period", "sales_month", "month", "to"},
	FieldStreams: {"streams", "stream_count", "total_streams", "quantity", "qty", "units", "plays"},
	FieldRevenue: {"revenue", "net_revenue", "total_revenue", "earnings", "earnings_usd", "net_earnings",
		"amount", "net_amount", "royalty", "royalties", "payout", "income"},
	FieldCurrency: {"currency", "currency_code", "curr"},
}

// Columns maps fields onto column indexes of a report.
type Columns map[Field]int

// NormalizeHeader lowercases a header cell and folds every run of non alphanumeric characters into "_".
//
// "Earnings (USD)" becomes "earnings_usd"; a leading byte order mark is dropped.
func NormalizeHeader(h string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(h) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	return b.String()
}

// MapColumns resolves fields from a header row. Reports without a track, platform, period end and at least one
// of streams or revenue fail with [shared.ErrMissingColumns].
func MapColumns(header []string) (Columns, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		key := NormalizeHeader(h)
		if _, seen := index[key]; !seen && key != "" {
			index[key] = i
		}
	}

	cols := Columns{}
	used := map[int]bool{}
	for _, field := range []Field{FieldTrack, FieldAlbum, FieldISRC, FieldPlatform, FieldPeriodStart,
		FieldPeriodEnd, FieldStreams, FieldRevenue, FieldCurrency} {
		for _, alias := range aliases[field] {
			if i, ok := index[alias]; ok && !used[i] {
				cols[field] = i
				used[i] = true
				break
			}
		}
	}

	var missing []string
	for _, field := range []Field{FieldTrack, FieldPlatform, FieldPeriodEnd} {
		if _, ok := cols[field]; !ok {
			missing = append(missing, string(field))
		}
	}
	_, hasStreams := cols[FieldStreams]
	_, hasRevenue := cols[FieldRevenue]
	if !hasStreams && !hasRevenue {
		missing = append(missing, "streams or revenue")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s (found %s)", shared.ErrMissingColumns,
			strings.Join(missing, ", "), strings.Join(header, ", "))
	}
	return cols, nil
}

// Has reports whether the field was found in the header.
func (c Columns) Has(field Field) bool {
	_, ok := c[field]
	return ok
}

// value returns the trimmed cell for field, or "" when the column is absent or the row is short.
func (c Columns) value(values []string, field Field) string {
	i, ok := c[field]
	if !ok || i >= len(values) {
		return ""
	}
	return strings.TrimSpace(values[i])
}
