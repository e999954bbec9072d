package models

import (
	"fmt"
	"time"

	"github.com/desertthunder/royalty/internal/shared"
)

// Album groups an artist's tracks.
type Album struct {
	record
	artistID    string
	title       string
	externalID  string
	releaseDate *time.Time
}

// NewAlbum creates an album owned by artistID.
func NewAlbum(sequence int, artistID, title string) *Album {
	return &Album{record: newRecord(sequence), artistID: artistID, title: shared.CollapseSpaces(title)}
}

func (a *Album) ArtistID() string            { return a.artistID }
func (a *Album) Title() string               { return a.title }
func (a *Album) ExternalID() string          { return a.externalID }
func (a *Album) SetExternalID(id string)     { a.externalID = id }
func (a *Album) ReleaseDate() *time.Time     { return a.releaseDate }
func (a *Album) SetReleaseDate(t *time.Time) { a.releaseDate = t }

func (a *Album) Validate() error {
	if a.artistID == "" {
		return fmt.Errorf("%w: album artist is required", shared.ErrInvalidInput)
	}
	if a.title == "" {
		return fmt.Errorf("%w: album title is required", shared.ErrInvalidInput)
	}
	if len(a.title) > 255 {
		return fmt.Errorf("%w: album title is longer than 255 characters", shared.ErrInvalidInput)
	}
	return nil
}

// Track is a recording owned by an artist, optionally on an album.
type Track struct {
	record
	artistID        string
	albumID         string
	name            string
	externalID      string
	durationSeconds *int
	trackNumber     *int
}

// NewTrack creates a track owned by artistID.
func NewTrack(sequence int, artistID, name string) *Track {
	return &Track{record: newRecord(sequence), artistID: artistID, name: shared.CollapseSpaces(name)}
}

func (t *Track) ArtistID() string          { return t.artistID }
func (t *Track) AlbumID() string           { return t.albumID }
func (t *Track) SetAlbumID(id string)      { t.albumID = id }
func (t *Track) Name() string              { return t.name }
func (t *Track) ExternalID() string        { return t.externalID }
func (t *Track) SetExternalID(id string)   { t.externalID = id }
func (t *Track) DurationSeconds() *int     { return t.durationSeconds }
func (t *Track) SetDurationSeconds(d *int) { t.durationSeconds = d }
func (t *Track) TrackNumber() *int         { return t.trackNumber }
func (t *Track) SetTrackNumber(n *int)     { t.trackNumber = n }

func (t *Track) Validate() error {
	if t.artistID == "" {
		return fmt.Errorf("%w: track artist is required", shared.ErrInvalidInput)
	}
	if t.name == "" {
		return fmt.Errorf("%w: track name is required", shared.ErrInvalidInput)
	}
	if len(t.name) > 255 {
		return fmt.Errorf("%w: track name is longer than 255 characters", shared.ErrInvalidInput)
	}
	if t.durationSeconds != nil && *t.durationSeconds < 0 {
		return fmt.Errorf("%w: duration cannot be negative", shared.ErrInvalidInput)
	}
	return nil
}
