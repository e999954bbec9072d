package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/royalty/internal/models"
	"github.com/desertthunder/royalty/internal/shared"
)

const (
	albumColumns = `id, sequence, artist_id, title, external_id, release_date, created_at, updated_at`
	trackColumns = `id, sequence, artist_id, album_id, name, external_id, duration_seconds, track_number,
		created_at, updated_at`
)

// AlbumRepository implements [models.Repository] for [models.Album].
type AlbumRepository struct {
	db *sql.DB
}

// NewAlbumRepository creates a new [AlbumRepository] with the given database connection
func NewAlbumRepository(db *sql.DB) *AlbumRepository {
	return &AlbumRepository{db: db}
}

// Create inserts a new album into the database with generated ID and sequence
func (r *AlbumRepository) Create(album *models.Album) error {
	sequence, err := NextSequence(r.db, "albums")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	album.SetID(id)
	album.SetSequence(sequence)

	if err := album.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `INSERT INTO albums (` + albumColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.Exec(query, id, sequence, album.ArtistID(), album.Title(), album.ExternalID(),
		dateValue(album.ReleaseDate()), album.CreatedAt(), album.UpdatedAt())
	if err != nil {
		return insertError(err, "album")
	}

	return nil
}

// Get retrieves an album by ID
func (r *AlbumRepository) Get(id string) (*models.Album, error) {
	album, err := scanAlbum(r.db.QueryRow(`SELECT `+albumColumns+` FROM albums WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "album", id)
	}
	return album, nil
}

// GetByTitle retrieves an artist's album by its exact title.
func (r *AlbumRepository) GetByTitle(artistID, title string) (*models.Album, error) {
	query := `SELECT ` + albumColumns + ` FROM albums WHERE artist_id = ? AND title = ?`

	album, err := scanAlbum(r.db.QueryRow(query, artistID, shared.CollapseSpaces(title)))
	if err != nil {
		return nil, notFound(err, "album", title)
	}
	return album, nil
}

// GetOrCreate resolves an artist's album by title, creating it when missing.
func (r *AlbumRepository) GetOrCreate(artistID, title string) (*models.Album, error) {
	existing, err := r.GetByTitle(artistID, title)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	album := models.NewAlbum(0, artistID, title)
	if err := r.Create(album); err != nil {
		if errors.Is(err, shared.ErrDuplicate) {
			return r.GetByTitle(artistID, title)
		}
		return nil, err
	}
	return album, nil
}

// Update modifies an existing album in the database
func (r *AlbumRepository) Update(album *models.Album) error {
	if err := album.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	album.SetUpdatedAt(now)

	query := `UPDATE albums SET title = ?, external_id = ?, release_date = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.Exec(query, album.Title(), album.ExternalID(), dateValue(album.ReleaseDate()), now, album.ID())
	if err != nil {
		return fmt.Errorf("failed to update album: %w", err)
	}

	return expectAffected(result, "album", album.ID())
}

// Delete removes an album; its tracks are kept and lose the album link.
func (r *AlbumRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM albums WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete album: %w", err)
	}

	return expectAffected(result, "album", id)
}

// List retrieves albums ordered by sequence. Supported criteria: "artist_id".
func (r *AlbumRepository) List(criteria map[string]any) ([]*models.Album, error) {
	query := `SELECT ` + albumColumns + ` FROM albums WHERE 1 = 1`
	args := []any{}

	if artistID, ok := criteria["artist_id"].(string); ok && artistID != "" {
		query += " AND artist_id = ?"
		args = append(args, artistID)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query albums: %w", err)
	}
	defer rows.Close()

	var albums []*models.Album
	for rows.Next() {
		album, err := scanAlbum(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan album: %w", err)
		}
		albums = append(albums, album)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return albums, nil
}

func scanAlbum(row rowScanner) (*models.Album, error) {
	var (
		id, artistID, title, externalID string
		sequence                        int
		releaseDate                     sql.NullString
		createdAt, updatedAt            time.Time
	)

	if err := row.Scan(&id, &sequence, &artistID, &title, &externalID, &releaseDate, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	album := models.NewAlbum(sequence, artistID, title)
	album.SetID(id)
	album.SetExternalID(externalID)
	album.SetCreatedAt(createdAt)
	album.SetUpdatedAt(updatedAt)
	if releaseDate.Valid {
		if t, err := models.ParseDate(releaseDate.String); err == nil {
			album.SetReleaseDate(&t)
		}
	}

	return album, nil
}

// TrackRepository implements [models.Repository] for [models.Track].
type TrackRepository struct {
	db *sql.DB
}

// NewTrackRepository creates a new TrackRepository with the given database connection
func NewTrackRepository(db *sql.DB) *TrackRepository {
	return &TrackRepository{db: db}
}

// Create inserts a new track into the database with generated ID and sequence
func (r *TrackRepository) Create(track *models.Track) error {
	sequence, err := NextSequence(r.db, "tracks")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	track.SetID(id)
	track.SetSequence(sequence)

	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `INSERT INTO tracks (` + trackColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.Exec(query, id, sequence, track.ArtistID(), nullString(track.AlbumID()), track.Name(),
		track.ExternalID(), intValue(track.DurationSeconds()), intValue(track.TrackNumber()),
		track.CreatedAt(), track.UpdatedAt())
	if err != nil {
		return insertError(err, "track")
	}

	return nil
}

// Get retrieves a track by ID
func (r *TrackRepository) Get(id string) (*models.Track, error) {
	track, err := scanTrack(r.db.QueryRow(`SELECT `+trackColumns+` FROM tracks WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "track", id)
	}
	return track, nil
}

// GetByName retrieves an artist's track by its exact name.
func (r *TrackRepository) GetByName(artistID, name string) (*models.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE artist_id = ? AND name = ?`

	track, err := scanTrack(r.db.QueryRow(query, artistID, shared.CollapseSpaces(name)))
	if err != nil {
		return nil, notFound(err, "track", name)
	}
	return track, nil
}

// GetOrCreate resolves an artist's track by name, creating it when missing.
//
// An existing track without an album or external ID is filled in from albumID and externalID.
func (r *TrackRepository) GetOrCreate(artistID, name, albumID, externalID string) (*models.Track, error) {
	existing, err := r.GetByName(artistID, name)
	switch {
	case err == nil:
		return existing, r.backfill(existing, albumID, externalID)
	case !errors.Is(err, shared.ErrNotFound):
		return nil, err
	}

	track := models.NewTrack(0, artistID, name)
	track.SetAlbumID(albumID)
	track.SetExternalID(externalID)

	if err := r.Create(track); err != nil {
		if errors.Is(err, shared.ErrDuplicate) {
			return r.GetByName(artistID, name)
		}
		return nil, err
	}
	return track, nil
}

func (r *TrackRepository) backfill(track *models.Track, albumID, externalID string) error {
	changed := false
	if track.AlbumID() == "" && albumID != "" {
		track.SetAlbumID(albumID)
		changed = true
	}
	if track.ExternalID() == "" && externalID != "" {
		track.SetExternalID(externalID)
		changed = true
	}
	if !changed {
		return nil
	}
	return r.Update(track)
}

// Update modifies an existing track in the database
func (r *TrackRepository) Update(track *models.Track) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	track.SetUpdatedAt(now)

	query := `
		UPDATE tracks
		SET album_id = ?, name = ?, external_id = ?, duration_seconds = ?, track_number = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query, nullString(track.AlbumID()), track.Name(), track.ExternalID(),
		intValue(track.DurationSeconds()), intValue(track.TrackNumber()), now, track.ID())
	if err != nil {
		return fmt.Errorf("failed to update track: %w", err)
	}

	return expectAffected(result, "track", track.ID())
}

// Delete removes a track and, through cascades, its statements.
func (r *TrackRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM tracks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete track: %w", err)
	}

	return expectAffected(result, "track", id)
}

// List retrieves tracks ordered by sequence. Supported criteria: "artist_id", "album_id".
func (r *TrackRepository) List(criteria map[string]any) ([]*models.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE 1 = 1`
	args := []any{}

	if artistID, ok := criteria["artist_id"].(string); ok && artistID != "" {
		query += " AND artist_id = ?"
		args = append(args, artistID)
	}
	if albumID, ok := criteria["album_id"].(string); ok && albumID != "" {
		query += " AND album_id = ?"
		args = append(args, albumID)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*models.Track
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		tracks = append(tracks, track)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tracks, nil
}

func scanTrack(row rowScanner) (*models.Track, error) {
	var (
		id, artistID, name, externalID string
		albumID                        sql.NullString
		sequence                       int
		duration, number               sql.NullInt64
		createdAt, updatedAt           time.Time
	)

	err := row.Scan(&id, &sequence, &artistID, &albumID, &name, &externalID, &duration, &number, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	track := models.NewTrack(sequence, artistID, name)
	track.SetID(id)
	track.SetAlbumID(albumID.String)
	track.SetExternalID(externalID)
	track.SetDurationSeconds(intPointer(duration))
	track.SetTrackNumber(intPointer(number))
	track.SetCreatedAt(createdAt)
	track.SetUpdatedAt(updatedAt)

	return track, nil
}

func dateValue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return models.FormatDate(*t)
}

func intValue(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func intPointer(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
