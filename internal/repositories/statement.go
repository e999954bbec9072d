package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/royalty/internal/models"
	"github.com/desertthunder/royalty/internal/shared"
)

const statementColumns = `id, sequence, artist_id, track_id, platform_id, upload_id, period_start, period_end,
	streams, revenue_e4, currency, source_row_hash, created_at`

// StatementRepository persists [models.RoyaltyStatement] rows.
//
// Statements are immutable once written; the unique source_row_hash column is the deduplication key.
type StatementRepository struct {
	db *sql.DB
}

// NewStatementRepository creates a new [StatementRepository] with the given database connection
func NewStatementRepository(db *sql.DB) *StatementRepository {
	return &StatementRepository{db: db}
}

// Create inserts a statement. A statement whose hash is already stored fails with [shared.ErrDuplicate].
func (r *StatementRepository) Create(statement *models.RoyaltyStatement) error {
	if err := statement.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "royalty_statements")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	statement.SetID(id)
	statement.SetSequence(sequence)

	query := `INSERT INTO royalty_statements (` + statementColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.Exec(query, id, sequence, statement.ArtistID(), statement.TrackID(), statement.PlatformID(),
		nullString(statement.UploadID()), models.FormatDate(statement.PeriodStart()), models.FormatDate(statement.PeriodEnd()),
		statement.Streams(), models.RevenueToE4(statement.Revenue()), statement.Currency(), statement.SourceRowHash(),
		statement.CreatedAt())
	if err != nil {
		return insertError(err, "statement")
	}

	return nil
}

// ExistsByHash reports whether a statement with the given source row hash is stored.
func (r *StatementRepository) ExistsByHash(hash string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(`SELECT EXISTS (SELECT 1 FROM royalty_statements WHERE source_row_hash = ?)`, hash).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check statement hash: %w", err)
	}
	return exists, nil
}

// Get retrieves a statement by ID
func (r *StatementRepository) Get(id string) (*models.RoyaltyStatement, error) {
	query := `SELECT ` + statementColumns + ` FROM royalty_statements WHERE id = ?`

	statement, err := scanStatement(r.db.QueryRow(query, id))
	if err != nil {
		return nil, notFound(err, "statement", id)
	}
	return statement, nil
}

// Delete removes a statement by ID
func (r *StatementRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM royalty_statements WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete statement: %w", err)
	}
	return expectAffected(result, "statement", id)
}

// DeleteByArtist removes every statement of an artist and returns how many were deleted.
func (r *StatementRepository) DeleteByArtist(artistID string) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM royalty_statements WHERE artist_id = ?`, artistID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete statements: %w", err)
	}
	return result.RowsAffected()
}

// CountByUpload returns how many statements an upload produced.
func (r *StatementRepository) CountByUpload(uploadID string) (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM royalty_statements WHERE upload_id = ?`, uploadID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count statements: %w", err)
	}
	return count, nil
}

// StatementRow is a statement joined with the names of its track, album and platform.
type StatementRow struct {
	ID          string    `json:"id"`
	Track       string    `json:"track"`
	Album       string    `json:"album,omitempty"`
	ISRC        string    `json:"isrc,omitempty"`
	Platform    string    `json:"platform"`
	PeriodStart string    `json:"period_start"`
	PeriodEnd   string    `json:"period_end"`
	Streams     int64     `json:"streams"`
	RevenueE4   int64     `json:"-"`
	Currency    string    `json:"currency"`
	UploadID    string    `json:"upload_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListByArtist returns an artist's statements ordered by period end then track, optionally limited to filter.
func (r *StatementRepository) ListByArtist(artistID string, filter Filter) ([]StatementRow, error) {
	where, args := filter.where(artistID)
	query := `
		SELECT s.id, t.name, COALESCE(a.title, ''), t.external_id, p.name, s.period_start, s.period_end,
			s.streams, s.revenue_e4, s.currency, COALESCE(s.upload_id, ''), s.created_at
		FROM royalty_statements s
		JOIN tracks t ON t.id = s.track_id
		JOIN platforms p ON p.id = s.platform_id
		LEFT JOIN albums a ON a.id = t.album_id
		WHERE ` + where + `
		ORDER BY s.period_end ASC, t.name ASC, p.name ASC, s.sequence ASC
	`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query statements: %w", err)
	}
	defer rows.Close()

	var result []StatementRow
	for rows.Next() {
		var row StatementRow
		err := rows.Scan(&row.ID, &row.Track, &row.Album, &row.ISRC, &row.Platform, &row.PeriodStart, &row.PeriodEnd,
			&row.Streams, &row.RevenueE4, &row.Currency, &row.UploadID, &row.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan statement: %w", err)
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return result, nil
}

func scanStatement(row rowScanner) (*models.RoyaltyStatement, error) {
	var (
		id, artistID, trackID, platformID, currency, hash string
		uploadID                                          sql.NullString
		periodStart, periodEnd                            string
		sequence                                          int
		streams, revenueE4                                int64
		createdAt                                         time.Time
	)

	err := row.Scan(&id, &sequence, &artistID, &trackID, &platformID, &uploadID, &periodStart, &periodEnd,
		&streams, &revenueE4, &currency, &hash, &createdAt)
	if err != nil {
		return nil, err
	}

	start, err := models.ParseDate(periodStart)
	if err != nil {
		return nil, fmt.Errorf("invalid period start %q: %w", periodStart, err)
	}
	end, err := models.ParseDate(periodEnd)
	if err != nil {
		return nil, fmt.Errorf("invalid period end %q: %w", periodEnd, err)
	}

	statement := models.NewRoyaltyStatement(sequence, artistID, trackID, platformID, models.StatementLine{
		PeriodStart: start,
		PeriodEnd:   end,
		Streams:     streams,
		Revenue:     models.RevenueFromE4(revenueE4),
		Currency:    currency,
	})
	statement.SetID(id)
	statement.SetUploadID(uploadID.String)
	statement.SetSourceRowHash(hash)
	statement.SetCreatedAt(createdAt)
	statement.SetUpdatedAt(createdAt)

	return statement, nil
}
