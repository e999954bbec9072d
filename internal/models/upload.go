package models

import (
	"fmt"
	"strings"

	"github.com/desertthunder/royalty/internal/shared"
)

// UploadStatus is the lifecycle state of an [Upload].
type UploadStatus string

const (
	UploadPending             UploadStatus = "pending"
	UploadProcessing          UploadStatus = "processing"
	UploadCompleted           UploadStatus = "completed"
	UploadFailed              UploadStatus = "failed"
	UploadCompletedWithErrors UploadStatus = "completed_with_errors"
)

// Valid reports whether s is one of the known statuses.
func (s UploadStatus) Valid() bool {
	switch s {
	case UploadPending, UploadProcessing, UploadCompleted, UploadFailed, UploadCompletedWithErrors:
		return true
	}
	return false
}

// Terminal reports whether no further rows will be processed.
func (s UploadStatus) Terminal() bool {
	return s == UploadCompleted || s == UploadFailed || s == UploadCompletedWithErrors
}

// Upload tracks one imported royalty report and its per-row outcome counters.
type Upload struct {
	record
	artistID       string
	filename       string
	status         UploadStatus
	totalRows      int
	processedRows  int
	successCount   int
	errorCount     int
	duplicateCount int
	errorLog       string
}

// NewUpload creates a pending upload.
func NewUpload(sequence int, artistID, filename string) *Upload {
	return &Upload{
		record:   newRecord(sequence),
		artistID: artistID,
		filename: strings.TrimSpace(filename),
		status:   UploadPending,
	}
}

func (u *Upload) ArtistID() string       { return u.artistID }
func (u *Upload) Filename() string       { return u.filename }
func (u *Upload) Status() UploadStatus   { return u.status }
func (u *Upload) TotalRows() int         { return u.totalRows }
func (u *Upload) ProcessedRows() int     { return u.processedRows }
func (u *Upload) SuccessCount() int      { return u.successCount }
func (u *Upload) ErrorCount() int        { return u.errorCount }
func (u *Upload) DuplicateCount() int    { return u.duplicateCount }
func (u *Upload) ErrorLog() string       { return u.errorLog }
func (u *Upload) SetErrorLog(log string) { u.errorLog = log }

// Restore sets every counter at once; used when scanning rows from storage.
func (u *Upload) Restore(status UploadStatus, total, processed, success, errors, duplicates int) {
	u.status = status
	u.totalRows = total
	u.processedRows = processed
	u.successCount = success
	u.errorCount = errors
	u.duplicateCount = duplicates
}

// Start moves the upload to processing with the number of data rows the report holds.
func (u *Upload) Start(totalRows int) {
	u.totalRows = totalRows
	u.status = UploadProcessing
	u.settle()
}

// Fail marks the whole upload failed with reason appended to the error log.
func (u *Upload) Fail(reason string) {
	u.status = UploadFailed
	if reason == "" {
		return
	}
	if u.errorLog != "" {
		u.errorLog += "\n"
	}
	u.errorLog += reason
}

// UpdateStats adds the given row outcomes to the running counters.
//
// Once every row is accounted for the status becomes completed, completed_with_errors, or failed when no row
// was imported or recognized as a duplicate.
func (u *Upload) UpdateStats(success, errors, duplicates int) {
	u.successCount += success
	u.errorCount += errors
	u.duplicateCount += duplicates
	u.processedRows = u.successCount + u.errorCount + u.duplicateCount
	u.settle()
}

func (u *Upload) settle() {
	if u.status != UploadProcessing || u.processedRows < u.totalRows {
		return
	}

	switch {
	case u.errorCount == 0:
		u.status = UploadCompleted
	case u.successCount == 0 && u.duplicateCount == 0:
		u.status = UploadFailed
	default:
		u.status = UploadCompletedWithErrors
	}
}

func (u *Upload) Validate() error {
	if u.artistID == "" {
		return fmt.Errorf("%w: upload artist is required", shared.ErrInvalidInput)
	}
	if u.filename == "" {
		return fmt.Errorf("%w: upload filename is required", shared.ErrInvalidInput)
	}
	if len(u.filename) > 255 {
		return fmt.Errorf("%w: filename is longer than 255 characters", shared.ErrInvalidInput)
	}
	if !u.status.Valid() {
		return fmt.Errorf("%w: unknown upload status %q", shared.ErrInvalidInput, u.status)
	}
	return nil
}
