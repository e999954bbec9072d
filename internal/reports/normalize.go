package reports

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/desertthunder/royalty/internal/models"
	"github.com/desertthunder/royalty/internal/shared"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// StatementRow is a report row with every value parsed.
type StatementRow struct {
	Line     int
	Track    string
	Album    string
	ISRC     string
	Platform string
	models.StatementLine
}

// RowError describes the value that made a row unusable.
type RowError struct {
	Line   int
	Field  Field
	Value  string
	Reason string
}

func (e *RowError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("row %d: %s", e.Line, e.Reason)
	}
	return fmt.Sprintf("row %d: %s %q: %s", e.Line, e.Field, e.Value, e.Reason)
}

// Is makes every RowError match [shared.ErrInvalidRow].
func (e *RowError) Is(target error) bool {
	return target == shared.ErrInvalidRow
}

// Normalize parses one row. Currency falls back to defaultCurrency when the report has no currency value.
func (r *Report) Normalize(row Row, defaultCurrency string) (StatementRow, error) {
	get := func(f Field) string { return r.Columns.value(row.Values, f) }
	fail := func(f Field, value, reason string) (StatementRow, error) {
		return StatementRow{}, &RowError{Line: row.Line, Field: f, Value: value, Reason: reason}
	}

	out := StatementRow{
		Line:     row.Line,
		Track:    shared.CollapseSpaces(get(FieldTrack)),
		Album:    shared.CollapseSpaces(get(FieldAlbum)),
		ISRC:     strings.ToUpper(strings.ReplaceAll(get(FieldISRC), "-", "")),
		Platform: shared.CollapseSpaces(get(FieldPlatform)),
	}

	if out.Track == "" {
		return fail(FieldTrack, "", "missing track name")
	}
	if out.Platform == "" {
		return fail(FieldPlatform, "", "missing platform")
	}

	endValue := get(FieldPeriodEnd)
	if endValue == "" {
		return fail(FieldPeriodEnd, "", "missing period end")
	}
	endPeriod, err := ParsePeriod(endValue)
	if err != nil {
		return fail(FieldPeriodEnd, endValue, err.Error())
	}
	out.PeriodEnd = endPeriod.End

	out.PeriodStart = endPeriod.Start
	if startValue := get(FieldPeriodStart); startValue != "" {
		startPeriod, err := ParsePeriod(startValue)
		if err != nil {
			return fail(FieldPeriodStart, startValue, err.Error())
		}
		out.PeriodStart = startPeriod.Start
	}
	if out.PeriodStart.After(out.PeriodEnd) {
		return fail(FieldPeriodStart, models.FormatDate(out.PeriodStart), "period start is after period end")
	}

	streamsValue := get(FieldStreams)
	if out.Streams, err = ParseStreams(streamsValue); err != nil {
		return fail(FieldStreams, streamsValue, err.Error())
	}

	revenueValue := get(FieldRevenue)
	if out.Revenue, err = ParseRevenue(revenueValue); err != nil {
		return fail(FieldRevenue, revenueValue, err.Error())
	}

	out.Currency = strings.ToUpper(get(FieldCurrency))
	if out.Currency == "" {
		out.Currency = strings.ToUpper(defaultCurrency)
	}
	if !models.IsKnownCurrency(out.Currency) {
		return fail(FieldCurrency, out.Currency, "unknown currency code")
	}

	return out, nil
}

// Period is the date range a report date covers. Full dates cover a single day.
type Period struct {
	Start     time.Time
	End       time.Time
	MonthOnly bool
}

// dateLayouts are tried in order. Month first US dates win over day first dates when both parse.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"02.01.2006",
	"2.1.2006",
	"02-01-2006",
	"01-02-06",
	"1/2/06",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	"02-Jan-2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

var monthLayouts = []string{
	"2006-01",
	"2006/01",
	"01/2006",
	"1/2006",
	"01-2006",
	"200601",
	"Jan 2006",
	"January 2006",
	"Jan-2006",
	"Jan-06",
}

var serialPattern = regexp.MustCompile(`^\d{5}(\.\d+)?$`)

// ParsePeriod parses a report date. Month-only values such as "2024-03" or "March 2024" cover the whole month;
// a bare five digit number is read as an Excel date serial.
func ParsePeriod(s string) (Period, error) {
	s = strings.TrimSpace(s)

	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			day := truncateDay(t)
			return Period{Start: day, End: day}, nil
		}
	}

	for _, layout := range monthLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
			return Period{Start: first, End: first.AddDate(0, 1, -1), MonthOnly: true}, nil
		}
	}

	if serialPattern.MatchString(s) {
		serial, _ := strconv.ParseFloat(s, 64)
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			day := truncateDay(t)
			return Period{Start: day, End: day}, nil
		}
	}

	return Period{}, fmt.Errorf("unrecognized date")
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseStreams parses a stream count. Thousands separators and a zero fraction ("1234.0") are accepted;
// "1.234" is read as 1234. Empty values are zero.
func ParseStreams(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "."); i > 0 && !strings.Contains(s, ",") && strings.Count(s, ".") == 1 && len(s)-i-1 == 3 {
		s = s[:i] + s[i+1:]
	}

	n, err := parseNumber(s)
	if err != nil {
		return 0, err
	}
	if !n.IsInteger() {
		return 0, fmt.Errorf("streams must be a whole number")
	}
	if n.IsNegative() {
		return 0, fmt.Errorf("streams cannot be negative")
	}
	if n.GreaterThan(decimal.NewFromInt(models.MaxStreams)) {
		return 0, fmt.Errorf("streams out of range")
	}
	return n.IntPart(), nil
}

// ParseRevenue parses an amount, dropping currency symbols and codes. Parenthesised amounts are negative and
// the result is rounded to four fractional digits; empty values are zero.
func ParseRevenue(s string) (decimal.Decimal, error) {
	n, err := parseNumber(s)
	if err != nil {
		return decimal.Zero, err
	}
	n = n.Round(models.RevenueScale)
	if !models.RevenueInRange(n) {
		return decimal.Zero, fmt.Errorf("revenue out of range")
	}
	return n, nil
}

// maxExponent bounds scientific notation so huge exponents are rejected before any arithmetic.
const maxExponent = 32

var currencySymbols = "$€£¥₹₩₽"

// parseNumber accepts "1,234.50", "1.234,50", "(12.00)", "$ 3.20", "3.20 EUR", "-4", "4-" and "3.12E-05".
// Signs, parentheses and currency markers are only allowed around the digits.
func parseNumber(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return decimal.Zero, nil
	}

	if n, err := decimal.NewFromString(s); err == nil {
		if strings.ContainsAny(s, "eE") && (n.Exponent() > maxExponent || n.Exponent() < -maxExponent) {
			return decimal.Zero, fmt.Errorf("not a number")
		}
		return n, nil
	}

	body, negative := trimAffixes(s)

	var b strings.Builder
	for _, r := range body {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',':
			b.WriteRune(r)
		case r == ' ', r == '\u00a0', r == '\'', r == '_':
		default:
			return decimal.Zero, fmt.Errorf("not a number")
		}
	}

	digits := normalizeSeparators(b.String())
	if digits == "" {
		return decimal.Zero, fmt.Errorf("not a number")
	}

	n, err := decimal.NewFromString(digits)
	if err != nil {
		return decimal.Zero, fmt.Errorf("not a number")
	}
	if negative {
		n = n.Neg()
	}
	return n, nil
}

// trimAffixes strips signs, enclosing parentheses and currency markers from both ends of s.
func trimAffixes(s string) (string, bool) {
	negative := false
	for {
		s = strings.TrimFunc(s, unicode.IsSpace)
		switch {
		case strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")"):
			negative = true
			s = s[1 : len(s)-1]
		case strings.HasPrefix(s, "-"):
			negative = true
			s = s[1:]
		case strings.HasSuffix(s, "-"):
			negative = true
			s = s[:len(s)-1]
		case strings.HasPrefix(s, "+"):
			s = s[1:]
		default:
			rest, ok := trimCurrency(s)
			if !ok {
				return s, negative
			}
			s = rest
		}
	}
}

// trimCurrency removes one leading or trailing currency symbol or known ISO-4217 code.
func trimCurrency(s string) (string, bool) {
	if r, size := utf8.DecodeRuneInString(s); size > 0 && strings.ContainsRune(currencySymbols, r) {
		return s[size:], true
	}
	if r, size := utf8.DecodeLastRuneInString(s); size > 0 && strings.ContainsRune(currencySymbols, r) {
		return s[:len(s)-size], true
	}
	if len(s) >= 3 && isCurrencyCode(s[:3]) {
		return s[3:], true
	}
	if len(s) >= 3 && isCurrencyCode(s[len(s)-3:]) {
		return s[:len(s)-3], true
	}
	return s, false
}

func isCurrencyCode(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) || r > unicode.MaxASCII {
			return false
		}
	}
	return models.IsKnownCurrency(strings.ToUpper(s))
}

// normalizeSeparators rewrites a number so that "." is the only, decimal, separator.
//
// When both "," and "." appear the last one is the decimal separator. A lone "," is a decimal separator
// unless it is followed by exactly three digits; repeated separators of one kind group thousands.
func normalizeSeparators(s string) string {
	commas, dots := strings.Count(s, ","), strings.Count(s, ".")

	switch {
	case commas > 0 && dots > 0:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case commas > 1:
		return strings.ReplaceAll(s, ",", "")
	case commas == 1:
		i := strings.Index(s, ",")
		if len(s)-i-1 == 3 && i > 0 && strings.Trim(s[:i], "0") != "" {
			return strings.ReplaceAll(s, ",", "")
		}
		return strings.Replace(s, ",", ".", 1)
	case dots > 1:
		return strings.ReplaceAll(s, ".", "")
	}
	return s
}
