// Package tasks imports royalty reports with real-time progress reporting.
//
// # Import
//
// [ImportEngine.Run] takes one uploaded report through these steps:
//
//  1. Create the upload record (pending)
//  2. Detect the format and map the header; unreadable reports fail the whole upload
//  3. Count the data rows and move the upload to processing
//  4. Normalize every row, resolve its platform, album and track, and store a statement unless the row's
//     content hash was already seen in this report or is already stored
//  5. Flush counters to the upload every few rows and settle the final status
//
// Row errors never abort an import; they are collected into the upload's error log, which keeps a bounded
// number of lines.
//
// # Progress Reporting
//
// Progress updates are sent on an optional channel without blocking. The [ProgressUpdate] struct contains the
// phase, step counters, a message and, for the final update, the upload itself.
package tasks
