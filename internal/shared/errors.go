package shared

import "fmt"

var (
	// Configuration errors
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Authentication errors
	ErrUnauthorized  = fmt.Errorf("missing or invalid API token")
	ErrRateLimited   = fmt.Errorf("too many requests")
	ErrArtistMissing = fmt.Errorf("artist not found in request context")

	// Persistence errors
	ErrNotFound  = fmt.Errorf("record not found")
	ErrDuplicate = fmt.Errorf("duplicate record")

	// Report and ingestion errors
	ErrUnsupportedFormat = fmt.Errorf("unsupported report format")
	ErrMissingColumns    = fmt.Errorf("report is missing required columns")
	ErrEmptyReport       = fmt.Errorf("report has no header row")
	ErrInvalidRow        = fmt.Errorf("invalid row")
	ErrUploadTooLarge    = fmt.Errorf("upload exceeds size limit")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
