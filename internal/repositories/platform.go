package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/royalty/internal/models"
	"github.com/desertthunder/royalty/internal/shared"
)

const platformColumns = `id, sequence, name, api_name, base_url, created_at, updated_at`

// PlatformRepository implements [models.Repository] for [models.Platform].
//
// Platforms are shared between artists and identified by their api_name slug.
type PlatformRepository struct {
	db *sql.DB
}

// NewPlatformRepository creates a new [PlatformRepository] with the given database connection
func NewPlatformRepository(db *sql.DB) *PlatformRepository {
	return &PlatformRepository{db: db}
}

// Create inserts a new platform into the database with generated ID and sequence
func (r *PlatformRepository) Create(platform *models.Platform) error {
	sequence, err := NextSequence(r.db, "platforms")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	platform.SetID(id)
	platform.SetSequence(sequence)

	if err := platform.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `INSERT INTO platforms (` + platformColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.Exec(query, id, sequence, platform.Name(), platform.APIName(), platform.BaseURL(),
		platform.CreatedAt(), platform.UpdatedAt())
	if err != nil {
		return insertError(err, "platform")
	}

	return nil
}

// Get retrieves a platform by ID
func (r *PlatformRepository) Get(id string) (*models.Platform, error) {
	query := `SELECT ` + platformColumns + ` FROM platforms WHERE id = ?`

	platform, err := scanPlatform(r.db.QueryRow(query, id))
	if err != nil {
		return nil, notFound(err, "platform", id)
	}
	return platform, nil
}

// GetByAPIName retrieves a platform by its slug.
func (r *PlatformRepository) GetByAPIName(apiName string) (*models.Platform, error) {
	query := `SELECT ` + platformColumns + ` FROM platforms WHERE api_name = ?`

	platform, err := scanPlatform(r.db.QueryRow(query, apiName))
	if err != nil {
		return nil, notFound(err, "platform", apiName)
	}
	return platform, nil
}

// GetOrCreate resolves a platform from a report spelling of its name, creating it on first sight.
func (r *PlatformRepository) GetOrCreate(name string) (*models.Platform, error) {
	candidate := models.NewPlatform(0, name)
	if err := candidate.Validate(); err != nil {
		return nil, err
	}

	existing, err := r.GetByAPIName(candidate.APIName())
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	if err := r.Create(candidate); err != nil {
		if errors.Is(err, shared.ErrDuplicate) {
			return r.GetByAPIName(candidate.APIName())
		}
		return nil, err
	}
	return candidate, nil
}

// Update modifies an existing platform in the database
func (r *PlatformRepository) Update(platform *models.Platform) error {
	if err := platform.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	platform.SetUpdatedAt(now)

	query := `UPDATE platforms SET name = ?, api_name = ?, base_url = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.Exec(query, platform.Name(), platform.APIName(), platform.BaseURL(), now, platform.ID())
	if err != nil {
		return fmt.Errorf("failed to update platform: %w", err)
	}

	return expectAffected(result, "platform", platform.ID())
}

// Delete removes a platform and, through cascades, its statements.
func (r *PlatformRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM platforms WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete platform: %w", err)
	}

	return expectAffected(result, "platform", id)
}

// List retrieves all platforms ordered by name. Supported criteria: "api_name".
func (r *PlatformRepository) List(criteria map[string]any) ([]*models.Platform, error) {
	query := `SELECT ` + platformColumns + ` FROM platforms WHERE 1 = 1`
	args := []any{}

	if apiName, ok := criteria["api_name"].(string); ok && apiName != "" {
		query += " AND api_name = ?"
		args = append(args, apiName)
	}

	query += " ORDER BY name ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query platforms: %w", err)
	}
	defer rows.Close()

	var platforms []*models.Platform
	for rows.Next() {
		platform, err := scanPlatform(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan platform: %w", err)
		}
		platforms = append(platforms, platform)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return platforms, nil
}

func scanPlatform(row rowScanner) (*models.Platform, error) {
	var (
		id, name, apiName, baseURL string
		sequence                   int
		createdAt, updatedAt       time.Time
	)

	if err := row.Scan(&id, &sequence, &name, &apiName, &baseURL, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	platform := models.NewPlatform(sequence, name)
	platform.SetID(id)
	platform.SetName(name)
	platform.SetAPIName(apiName)
	platform.SetBaseURL(baseURL)
	platform.SetCreatedAt(createdAt)
	platform.SetUpdatedAt(updatedAt)

	return platform, nil
}
