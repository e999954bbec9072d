package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/royalty/internal/models"
	"github.com/desertthunder/royalty/internal/shared"
)

const uploadColumns = `id, sequence, artist_id, filename, status, total_rows, processed_rows, success_count,
	error_count, duplicate_count, error_log, uploaded_at, updated_at`

// UploadRepository implements [models.Repository] for [models.Upload].
type UploadRepository struct {
	db *sql.DB
}

// NewUploadRepository creates a new [UploadRepository] with the given database connection
func NewUploadRepository(db *sql.DB) *UploadRepository {
	return &UploadRepository{db: db}
}

// Create inserts a new upload into the database with generated ID and sequence
func (r *UploadRepository) Create(upload *models.Upload) error {
	sequence, err := NextSequence(r.db, "uploads")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	upload.SetID(id)
	upload.SetSequence(sequence)

	if err := upload.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `INSERT INTO uploads (` + uploadColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.Exec(query, id, sequence, upload.ArtistID(), upload.Filename(), string(upload.Status()),
		upload.TotalRows(), upload.ProcessedRows(), upload.SuccessCount(), upload.ErrorCount(),
		upload.DuplicateCount(), upload.ErrorLog(), upload.CreatedAt(), upload.UpdatedAt())
	if err != nil {
		return insertError(err, "upload")
	}

	return nil
}

// Get retrieves an upload by ID
func (r *UploadRepository) Get(id string) (*models.Upload, error) {
	upload, err := scanUpload(r.db.QueryRow(`SELECT `+uploadColumns+` FROM uploads WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "upload", id)
	}
	return upload, nil
}

// GetForArtist retrieves an upload only when artistID owns it.
func (r *UploadRepository) GetForArtist(artistID, id string) (*models.Upload, error) {
	query := `SELECT ` + uploadColumns + ` FROM uploads WHERE id = ? AND artist_id = ?`

	upload, err := scanUpload(r.db.QueryRow(query, id, artistID))
	if err != nil {
		return nil, notFound(err, "upload", id)
	}
	return upload, nil
}

// Update writes the status, counters and error log of an upload.
func (r *UploadRepository) Update(upload *models.Upload) error {
	if err := upload.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	upload.SetUpdatedAt(now)

	query := `
		UPDATE uploads
		SET status = ?, total_rows = ?, processed_rows = ?, success_count = ?, error_count = ?,
			duplicate_count = ?, error_log = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query, string(upload.Status()), upload.TotalRows(), upload.ProcessedRows(),
		upload.SuccessCount(), upload.ErrorCount(), upload.DuplicateCount(), upload.ErrorLog(), now, upload.ID())
	if err != nil {
		return fmt.Errorf("failed to update upload: %w", err)
	}

	return expectAffected(result, "upload", upload.ID())
}

// Delete removes an upload. Statements it produced are kept and lose the upload link.
func (r *UploadRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM uploads WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete upload: %w", err)
	}
	return expectAffected(result, "upload", id)
}

// DeleteByArtist removes every upload of an artist and returns how many were deleted.
func (r *UploadRepository) DeleteByArtist(artistID string) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM uploads WHERE artist_id = ?`, artistID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete uploads: %w", err)
	}
	return result.RowsAffected()
}

// ListByArtist returns an artist's uploads, newest first. A limit of zero returns every upload.
func (r *UploadRepository) ListByArtist(artistID string, limit int) ([]*models.Upload, error) {
	criteria := map[string]any{"artist_id": artistID}
	if limit > 0 {
		criteria["limit"] = limit
	}
	return r.List(criteria)
}

// List retrieves uploads newest first. Supported criteria: "artist_id", "status", "limit".
func (r *UploadRepository) List(criteria map[string]any) ([]*models.Upload, error) {
	query := `SELECT ` + uploadColumns + ` FROM uploads WHERE 1 = 1`
	args := []any{}

	if artistID, ok := criteria["artist_id"].(string); ok && artistID != "" {
		query += " AND artist_id = ?"
		args = append(args, artistID)
	}
	if status, ok := criteria["status"].(models.UploadStatus); ok && status != "" {
		query += " AND status = ?"
		args = append(args, string(status))
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query uploads: %w", err)
	}
	defer rows.Close()

	var uploads []*models.Upload
	for rows.Next() {
		upload, err := scanUpload(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan upload: %w", err)
		}
		uploads = append(uploads, upload)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return uploads, nil
}

func scanUpload(row rowScanner) (*models.Upload, error) {
	var (
		id, artistID, filename, status, errorLog string
		sequence, total, processed               int
		success, errorCount, duplicates          int
		uploadedAt, updatedAt                    time.Time
	)

	err := row.Scan(&id, &sequence, &artistID, &filename, &status, &total, &processed, &success, &errorCount,
		&duplicates, &errorLog, &uploadedAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	upload := models.NewUpload(sequence, artistID, filename)
	upload.SetID(id)
	upload.Restore(models.UploadStatus(status), total, processed, success, errorCount, duplicates)
	upload.SetErrorLog(errorLog)
	upload.SetCreatedAt(uploadedAt)
	upload.SetUpdatedAt(updatedAt)

	return upload, nil
}
