package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/royalty/internal/models"
	"github.com/desertthunder/royalty/internal/shared"
)

const insightColumns = `id, sequence, artist_id, platform, track_name, insight_type, value, recorded_at`

// InsightRepository persists [models.Insight] observations.
type InsightRepository struct {
	db *sql.DB
}

// NewInsightRepository creates a new [InsightRepository] with the given database connection
func NewInsightRepository(db *sql.DB) *InsightRepository {
	return &InsightRepository{db: db}
}

// Create inserts a single insight.
func (r *InsightRepository) Create(insight *models.Insight) error {
	return r.CreateBatch([]*models.Insight{insight})
}

// CreateBatch inserts insights in one transaction; either all are stored or none.
func (r *InsightRepository) CreateBatch(insights []*models.Insight) error {
	if len(insights) == 0 {
		return nil
	}

	for _, insight := range insights {
		sequence, err := NextSequence(r.db, "platform_insights")
		if err != nil {
			return fmt.Errorf("failed to generate sequence: %w", err)
		}
		insight.SetID(shared.GenerateID())
		insight.SetSequence(sequence)

		if err := insight.Validate(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO platform_insights (` + insightColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, insight := range insights {
		_, err := stmt.Exec(insight.ID(), insight.Sequence(), insight.ArtistID(), insight.Platform(),
			insight.TrackName(), insight.InsightType(), insight.Value(), insight.CreatedAt())
		if err != nil {
			return insertError(err, "insight")
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit insights: %w", err)
	}
	return nil
}

// ListByArtist returns an artist's insights newest first.
//
// Supported criteria: "platform", "insight_type", "track_name", "limit".
func (r *InsightRepository) ListByArtist(artistID string, criteria map[string]any) ([]*models.Insight, error) {
	query := `SELECT ` + insightColumns + ` FROM platform_insights WHERE artist_id = ?`
	args := []any{artistID}

	for _, column := range []string{"platform", "insight_type", "track_name"} {
		if v, ok := criteria[column].(string); ok && v != "" {
			query += " AND " + column + " = ?"
			args = append(args, v)
		}
	}

	query += " ORDER BY recorded_at DESC, sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query insights: %w", err)
	}
	defer rows.Close()

	var insights []*models.Insight
	for rows.Next() {
		var (
			id, artist, platform, track, insightType string
			sequence                                 int
			value                                    float64
			recordedAt                               time.Time
		)
		if err := rows.Scan(&id, &sequence, &artist, &platform, &track, &insightType, &value, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan insight: %w", err)
		}

		insight := models.NewInsight(sequence, artist, platform, track, insightType, value)
		insight.SetID(id)
		insight.SetCreatedAt(recordedAt)
		insight.SetUpdatedAt(recordedAt)
		insights = append(insights, insight)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return insights, nil
}

// DeleteByArtist removes every insight of an artist.
func (r *InsightRepository) DeleteByArtist(artistID string) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM platform_insights WHERE artist_id = ?`, artistID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete insights: %w", err)
	}
	return result.RowsAffected()
}

// PlatformInsightStats aggregates the insights of one platform.
type PlatformInsightStats struct {
	Platform      string
	TracksTracked int
	Observations  int
	AverageValue  float64
	LatestData    time.Time
}

// InsightSummary aggregates every insight of an artist.
type InsightSummary struct {
	TotalTracks  int
	LatestUpdate *time.Time
	Platforms    []PlatformInsightStats
}

// Summary counts the distinct tracks an artist has insights for and aggregates them per platform.
func (r *InsightRepository) Summary(artistID string) (*InsightSummary, error) {
	summary := &InsightSummary{}

	err := r.db.QueryRow(`SELECT COUNT(DISTINCT track_name) FROM platform_insights WHERE artist_id = ?`, artistID).
		Scan(&summary.TotalTracks)
	if err != nil {
		return nil, fmt.Errorf("failed to count insight tracks: %w", err)
	}

	platforms, err := r.Comparison(artistID)
	if err != nil {
		return nil, err
	}
	summary.Platforms = platforms

	for _, p := range platforms {
		if summary.LatestUpdate == nil || p.LatestData.After(*summary.LatestUpdate) {
			latest := p.LatestData
			summary.LatestUpdate = &latest
		}
	}

	return summary, nil
}

// Comparison returns per-platform track counts and average values, ordered by platform.
func (r *InsightRepository) Comparison(artistID string) ([]PlatformInsightStats, error) {
	query := `
		SELECT platform, COUNT(DISTINCT track_name), COUNT(*), AVG(value), MAX(recorded_at)
		FROM platform_insights
		WHERE artist_id = ?
		GROUP BY platform
		ORDER BY platform ASC
	`

	rows, err := r.db.Query(query, artistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query insight comparison: %w", err)
	}
	defer rows.Close()

	var stats []PlatformInsightStats
	for rows.Next() {
		var (
			s      PlatformInsightStats
			latest string
		)
		if err := rows.Scan(&s.Platform, &s.TracksTracked, &s.Observations, &s.AverageValue, &latest); err != nil {
			return nil, fmt.Errorf("failed to scan insight comparison: %w", err)
		}
		if s.LatestData, err = shared.ParseTimestamp(latest); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return stats, nil
}
