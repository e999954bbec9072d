package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/desertthunder/royalty/internal/models"
	"github.com/desertthunder/royalty/internal/shared"
)

const artistColumns = `id, sequence, username, email, display_name, bio, country, city, genres, social_links,
	api_token, created_at, updated_at, deleted_at`

// ArtistRepository implements [models.Repository] for [models.Artist] persistence.
type ArtistRepository struct {
	db *sql.DB
}

// NewArtistRepository creates a new [ArtistRepository] with the given database connection
func NewArtistRepository(db *sql.DB) *ArtistRepository {
	return &ArtistRepository{db: db}
}

// Create inserts a new artist with generated ID, sequence and, when unset, API token.
func (r *ArtistRepository) Create(artist *models.Artist) error {
	sequence, err := NextSequence(r.db, "artists")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	artist.SetID(id)
	artist.SetSequence(sequence)

	if artist.APIToken() == "" {
		token, err := shared.GenerateToken()
		if err != nil {
			return err
		}
		artist.SetAPIToken(token)
	}

	if err := artist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	genres, links, err := encodeProfile(artist.Profile())
	if err != nil {
		return err
	}

	p := artist.Profile()
	query := `
		INSERT INTO artists (` + artistColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`

	_, err = r.db.Exec(query, id, sequence, artist.Username(), artist.Email(),
		p.DisplayName, p.Bio, p.Country, p.City, genres, links,
		artist.APIToken(), artist.CreatedAt(), artist.UpdatedAt())
	if err != nil {
		return insertError(err, "artist")
	}

	return nil
}

// Get retrieves an artist by ID, excluding soft-deleted artists
func (r *ArtistRepository) Get(id string) (*models.Artist, error) {
	return r.getBy("id", id)
}

// GetByUsername retrieves an active artist by username.
func (r *ArtistRepository) GetByUsername(username string) (*models.Artist, error) {
	return r.getBy("username", username)
}

// GetByEmail retrieves an active artist by email.
func (r *ArtistRepository) GetByEmail(email string) (*models.Artist, error) {
	return r.getBy("email", email)
}

// GetByToken resolves the artist that owns an API token.
func (r *ArtistRepository) GetByToken(token string) (*models.Artist, error) {
	if token == "" {
		return nil, shared.ErrUnauthorized
	}
	return r.getBy("api_token", token)
}

func (r *ArtistRepository) getBy(column, value string) (*models.Artist, error) {
	query := `SELECT ` + artistColumns + ` FROM artists WHERE ` + column + ` = ? AND deleted_at IS NULL`

	artist, err := scanArtist(r.db.QueryRow(query, value))
	if err != nil {
		return nil, notFound(err, "artist", value)
	}
	return artist, nil
}

// Update persists identity and profile fields.
func (r *ArtistRepository) Update(artist *models.Artist) error {
	if err := artist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	genres, links, err := encodeProfile(artist.Profile())
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	artist.SetUpdatedAt(now)

	p := artist.Profile()
	query := `
		UPDATE artists
		SET username = ?, email = ?, display_name = ?, bio = ?, country = ?, city = ?,
			genres = ?, social_links = ?, api_token = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, artist.Username(), artist.Email(), p.DisplayName, p.Bio, p.Country, p.City,
		genres, links, artist.APIToken(), now, artist.ID())
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return fmt.Errorf("artist %w: %v", shared.ErrDuplicate, err)
		}
		return fmt.Errorf("failed to update artist: %w", err)
	}

	return expectAffected(result, "artist", artist.ID())
}

// Delete soft-deletes an artist by ID
func (r *ArtistRepository) Delete(id string) error {
	query := `UPDATE artists SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`

	result, err := r.db.Exec(query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete artist: %w", err)
	}

	return expectAffected(result, "artist", id)
}

// List retrieves all artists matching the given criteria, excluding soft-deleted artists.
//
// Supported criteria: "username", "email".
func (r *ArtistRepository) List(criteria map[string]any) ([]*models.Artist, error) {
	query := `SELECT ` + artistColumns + ` FROM artists WHERE deleted_at IS NULL`
	args := []any{}

	if username, ok := criteria["username"].(string); ok && username != "" {
		query += " AND username = ?"
		args = append(args, username)
	}
	if email, ok := criteria["email"].(string); ok && email != "" {
		query += " AND email = ?"
		args = append(args, email)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query artists: %w", err)
	}
	defer rows.Close()

	var artists []*models.Artist
	for rows.Next() {
		artist, err := scanArtist(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan artist: %w", err)
		}
		artists = append(artists, artist)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return artists, nil
}

func encodeProfile(p models.Profile) (string, string, error) {
	genres, err := json.Marshal(p.Genres)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode genres: %w", err)
	}
	links, err := json.Marshal(p.SocialLinks)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode social links: %w", err)
	}
	return string(genres), string(links), nil
}

func scanArtist(row rowScanner) (*models.Artist, error) {
	var (
		id, username, email, token string
		sequence                   int
		p                          models.Profile
		genres, links              string
		createdAt, updatedAt       time.Time
		deletedAt                  sql.NullTime
	)

	err := row.Scan(&id, &sequence, &username, &email, &p.DisplayName, &p.Bio, &p.Country, &p.City,
		&genres, &links, &token, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(genres), &p.Genres); err != nil {
		return nil, fmt.Errorf("failed to decode genres: %w", err)
	}
	if err := json.Unmarshal([]byte(links), &p.SocialLinks); err != nil {
		return nil, fmt.Errorf("failed to decode social links: %w", err)
	}

	artist := models.NewArtist(sequence, username, email)
	artist.SetID(id)
	artist.SetProfile(p)
	artist.SetAPIToken(token)
	artist.SetCreatedAt(createdAt)
	artist.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		artist.SetDeletedAt(&deletedAt.Time)
	}

	return artist, nil
}
