package tasks

import (
	"fmt"

	"github.com/desertthunder/royalty/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or HTTP layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data, the upload for [Finish]
}

// Operation phase enumeration
type Phase int

const (
	ReadReport Phase = iota
	ImportRows
	Finish
)

func (p Phase) String() string {
	switch p {
	case ReadReport:
		return "read_report"
	case ImportRows:
		return "import_rows"
	case Finish:
		return "finish"
	default:
		return ""
	}
}

func readingReportUpdate(filename string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ReadReport,
		Step:    0,
		Total:   1,
		Message: fmt.Sprintf("Reading %s...", filename),
	}
}

func reportReadUpdate(format string, rows int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ReadReport,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d rows (%s)", rows, format),
	}
}

func importRowsUpdate(upload *models.Upload) ProgressUpdate {
	return ProgressUpdate{
		Phase: ImportRows,
		Step:  upload.ProcessedRows(),
		Total: upload.TotalRows(),
		Message: fmt.Sprintf("[%d/%d] %d imported, %d duplicates, %d errors",
			upload.ProcessedRows(), upload.TotalRows(), upload.SuccessCount(), upload.DuplicateCount(), upload.ErrorCount()),
	}
}

func finishedUpdate(upload *models.Upload) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Finish,
		Step:    upload.ProcessedRows(),
		Total:   upload.TotalRows(),
		Message: fmt.Sprintf("%s: %s", upload.Filename(), upload.Status()),
		Data:    upload,
	}
}
