// Package reports reads royalty reports exported by distributors and stores.
//
// A report is a table with one header row. [Open] detects the table format (CSV and other delimited text, or
// an XLSX workbook), decodes text to UTF-8 and maps the header onto the known [Field]s through an alias table.
// [Report.Normalize] then turns each data row into a [StatementRow] with parsed dates, streams, revenue and
// currency, or a [RowError] describing the first value that could not be parsed.
package reports
