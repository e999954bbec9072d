package repositories

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/royalty/internal/models"
	"github.com/desertthunder/royalty/internal/shared"
)

// Bucket is the width of a time series interval.
type Bucket string

const (
	BucketDay   Bucket = "day"
	BucketWeek  Bucket = "week"
	BucketMonth Bucket = "month"
	BucketYear  Bucket = "year"
)

// ParseBucket accepts day, week, month or year; empty means month.
func ParseBucket(s string) (Bucket, error) {
	switch b := Bucket(strings.ToLower(strings.TrimSpace(s))); b {
	case "":
		return BucketMonth, nil
	case BucketDay, BucketWeek, BucketMonth, BucketYear:
		return b, nil
	default:
		return "", fmt.Errorf("%w: unknown interval %q", shared.ErrInvalidInput, s)
	}
}

// expr returns the SQL expression mapping period_end onto the first day of its bucket. Weeks start Monday.
func (b Bucket) expr() string {
	switch b {
	case BucketDay:
		return "s.period_end"
	case BucketWeek:
		return "date(s.period_end, '-' || ((CAST(strftime('%w', s.period_end) AS INTEGER) + 6) % 7) || ' days')"
	case BucketYear:
		return "strftime('%Y-01-01', s.period_end)"
	default:
		return "strftime('%Y-%m-01', s.period_end)"
	}
}

// Filter restricts aggregates to statements whose period end falls in [From, To]. Nil bounds are open.
type Filter struct {
	From *time.Time
	To   *time.Time
}

func (f Filter) where(artistID string) (string, []any) {
	clause := "s.artist_id = ?"
	args := []any{artistID}
	if f.From != nil {
		clause += " AND s.period_end >= ?"
		args = append(args, models.FormatDate(*f.From))
	}
	if f.To != nil {
		clause += " AND s.period_end <= ?"
		args = append(args, models.FormatDate(*f.To))
	}
	return clause, args
}

// Totals holds summed streams and revenue.
type Totals struct {
	Streams    int64
	RevenueE4  int64
	Statements int
}

// PlatformTotal holds summed streams and revenue for one platform.
type PlatformTotal struct {
	PlatformID string
	Name       string
	APIName    string
	Streams    int64
	RevenueE4  int64
}

// TimePoint is one bucket of a time series; Period is the bucket's first day.
type TimePoint struct {
	Period    string
	Streams   int64
	RevenueE4 int64
}

// TrackTotal holds summed streams and revenue for one track and the platform with the most streams for it.
type TrackTotal struct {
	TrackID     string
	Name        string
	Album       string
	Streams     int64
	RevenueE4   int64
	TopPlatform string
}

// Counts holds catalog sizes derived from an artist's statements.
type Counts struct {
	Albums    int
	Tracks    int
	Platforms int
}

// AnalyticsRepository runs read-only aggregate queries over royalty statements.
type AnalyticsRepository struct {
	db *sql.DB
}

// NewAnalyticsRepository creates a new [AnalyticsRepository] with the given database connection
func NewAnalyticsRepository(db *sql.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// Totals sums streams and revenue for an artist.
func (r *AnalyticsRepository) Totals(artistID string, filter Filter) (Totals, error) {
	where, args := filter.where(artistID)
	query := `SELECT COALESCE(SUM(s.streams), 0), COALESCE(SUM(s.revenue_e4), 0), COUNT(*)
		FROM royalty_statements s WHERE ` + where

	var t Totals
	if err := r.db.QueryRow(query, args...).Scan(&t.Streams, &t.RevenueE4, &t.Statements); err != nil {
		return Totals{}, fmt.Errorf("failed to sum statements: %w", err)
	}
	return t, nil
}

// ByPlatform sums streams and revenue per platform, most streamed first. Platforms without statements are omitted.
func (r *AnalyticsRepository) ByPlatform(artistID string, filter Filter) ([]PlatformTotal, error) {
	where, args := filter.where(artistID)
	query := `
		SELECT p.id, p.name, p.api_name, SUM(s.streams), SUM(s.revenue_e4)
		FROM royalty_statements s
		JOIN platforms p ON p.id = s.platform_id
		WHERE ` + where + `
		GROUP BY p.id, p.name, p.api_name
		ORDER BY SUM(s.streams) DESC, p.name ASC
	`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query platform totals: %w", err)
	}
	defer rows.Close()

	var totals []PlatformTotal
	for rows.Next() {
		var t PlatformTotal
		if err := rows.Scan(&t.PlatformID, &t.Name, &t.APIName, &t.Streams, &t.RevenueE4); err != nil {
			return nil, fmt.Errorf("failed to scan platform total: %w", err)
		}
		totals = append(totals, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return totals, nil
}

// OverTime sums streams and revenue per bucket of period end, oldest first.
func (r *AnalyticsRepository) OverTime(artistID string, bucket Bucket, filter Filter) ([]TimePoint, error) {
	where, args := filter.where(artistID)
	expr := bucket.expr()
	query := `
		SELECT ` + expr + ` AS period, SUM(s.streams), SUM(s.revenue_e4)
		FROM royalty_statements s
		WHERE ` + where + `
		GROUP BY period
		ORDER BY period ASC
	`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query time series: %w", err)
	}
	defer rows.Close()

	var points []TimePoint
	for rows.Next() {
		var p TimePoint
		if err := rows.Scan(&p.Period, &p.Streams, &p.RevenueE4); err != nil {
			return nil, fmt.Errorf("failed to scan time series: %w", err)
		}
		points = append(points, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return points, nil
}

// TopTracks returns the limit most streamed tracks, ties broken by revenue then name.
func (r *AnalyticsRepository) TopTracks(artistID string, limit int, filter Filter) ([]TrackTotal, error) {
	where, args := filter.where(artistID)
	query := `
		SELECT t.id, t.name, COALESCE(a.title, ''), SUM(s.streams), SUM(s.revenue_e4)
		FROM royalty_statements s
		JOIN tracks t ON t.id = s.track_id
		LEFT JOIN albums a ON a.id = t.album_id
		WHERE ` + where + `
		GROUP BY t.id, t.name, a.title
		ORDER BY SUM(s.streams) DESC, SUM(s.revenue_e4) DESC, t.name ASC
		LIMIT ?
	`

	rows, err := r.db.Query(query, append(args, limit)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query top tracks: %w", err)
	}

	var tracks []TrackTotal
	for rows.Next() {
		var t TrackTotal
		if err := rows.Scan(&t.TrackID, &t.Name, &t.Album, &t.Streams, &t.RevenueE4); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan top track: %w", err)
		}
		tracks = append(tracks, t)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	if len(tracks) == 0 {
		return tracks, nil
	}

	leaders, err := r.topPlatforms(artistID, tracks, filter)
	if err != nil {
		return nil, err
	}
	for i := range tracks {
		tracks[i].TopPlatform = leaders[tracks[i].TrackID]
	}

	return tracks, nil
}

// topPlatforms maps each track to the platform with the most streams for it.
func (r *AnalyticsRepository) topPlatforms(artistID string, tracks []TrackTotal, filter Filter) (map[string]string, error) {
	where, args := filter.where(artistID)

	placeholders := make([]string, len(tracks))
	for i, t := range tracks {
		placeholders[i] = "?"
		args = append(args, t.TrackID)
	}

	query := `
		SELECT s.track_id, p.name, SUM(s.streams) AS streams
		FROM royalty_statements s
		JOIN platforms p ON p.id = s.platform_id
		WHERE ` + where + ` AND s.track_id IN (` + strings.Join(placeholders, ", ") + `)
		GROUP BY s.track_id, p.name
		ORDER BY s.track_id ASC, streams DESC, p.name ASC
	`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query track platforms: %w", err)
	}
	defer rows.Close()

	leaders := make(map[string]string, len(tracks))
	for rows.Next() {
		var (
			trackID, platform string
			streams           int64
		)
		if err := rows.Scan(&trackID, &platform, &streams); err != nil {
			return nil, fmt.Errorf("failed to scan track platform: %w", err)
		}
		if _, ok := leaders[trackID]; !ok {
			leaders[trackID] = platform
		}
	}

	return leaders, rows.Err()
}

// Counts returns the distinct albums, tracks and platforms that appear in an artist's statements.
func (r *AnalyticsRepository) Counts(artistID string) (Counts, error) {
	query := `
		SELECT COUNT(DISTINCT t.album_id), COUNT(DISTINCT s.track_id), COUNT(DISTINCT s.platform_id)
		FROM royalty_statements s
		JOIN tracks t ON t.id = s.track_id
		WHERE s.artist_id = ?
	`

	var c Counts
	if err := r.db.QueryRow(query, artistID).Scan(&c.Albums, &c.Tracks, &c.Platforms); err != nil {
		return Counts{}, fmt.Errorf("failed to count catalog: %w", err)
	}
	return c, nil
}

// ClearArtistData deletes an artist's statements and uploads in one transaction.
func (r *AnalyticsRepository) ClearArtistData(artistID string) (statements, uploads int64, err error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`DELETE FROM royalty_statements WHERE artist_id = ?`, artistID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to delete statements: %w", err)
	}
	if statements, err = result.RowsAffected(); err != nil {
		return 0, 0, err
	}

	result, err = tx.Exec(`DELETE FROM uploads WHERE artist_id = ?`, artistID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to delete uploads: %w", err)
	}
	if uploads, err = result.RowsAffected(); err != nil {
		return 0, 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit clear: %w", err)
	}
	return statements, uploads, nil
}
