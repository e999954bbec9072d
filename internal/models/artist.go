package models

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/desertthunder/royalty/internal/shared"
)

// Profile holds the editable, public facing fields of an [Artist].
type Profile struct {
	DisplayName string            `json:"display_name" validate:"omitempty,max=255"`
	Bio         string            `json:"bio" validate:"omitempty,max=4000"`
	Country     string            `json:"country" validate:"omitempty,len=2,alpha"`
	City        string            `json:"city" validate:"omitempty,max=255"`
	Genres      []string          `json:"genres" validate:"omitempty,max=20,dive,required,max=64"`
	SocialLinks map[string]string `json:"social_links" validate:"omitempty,max=20,dive,keys,required,max=32,endkeys,url"`
}

// Artist is the account that owns uploads, statements, tracks and insights.
type Artist struct {
	record
	username  string
	email     string
	profile   Profile
	apiToken  string
	deletedAt *time.Time
}

// NewArtist creates an artist with the given sequence, username and email.
func NewArtist(sequence int, username, email string) *Artist {
	return &Artist{
		record:   newRecord(sequence),
		username: strings.TrimSpace(username),
		email:    strings.ToLower(strings.TrimSpace(email)),
		profile:  Profile{Genres: []string{}, SocialLinks: map[string]string{}},
	}
}

func (a *Artist) Username() string            { return a.username }
func (a *Artist) SetUsername(username string) { a.username = strings.TrimSpace(username) }
func (a *Artist) Email() string               { return a.email }
func (a *Artist) APIToken() string            { return a.apiToken }
func (a *Artist) SetAPIToken(token string)    { a.apiToken = token }
func (a *Artist) DeletedAt() *time.Time       { return a.deletedAt }
func (a *Artist) SetDeletedAt(t *time.Time)   { a.deletedAt = t }

// Profile returns a copy of the artist's profile.
func (a *Artist) Profile() Profile {
	p := a.profile
	p.Genres = append([]string{}, a.profile.Genres...)
	p.SocialLinks = make(map[string]string, len(a.profile.SocialLinks))
	for k, v := range a.profile.SocialLinks {
		p.SocialLinks[k] = v
	}
	return p
}

// SetProfile replaces the profile, normalizing country codes and nil collections.
func (a *Artist) SetProfile(p Profile) {
	p.Country = strings.ToUpper(strings.TrimSpace(p.Country))
	if p.Genres == nil {
		p.Genres = []string{}
	}
	if p.SocialLinks == nil {
		p.SocialLinks = map[string]string{}
	}
	a.profile = p
}

// DisplayName falls back to the username when no display name is set.
func (a *Artist) DisplayName() string {
	if a.profile.DisplayName != "" {
		return a.profile.DisplayName
	}
	return a.username
}

// Validate checks identity fields. Profile fields are validated at the request boundary.
func (a *Artist) Validate() error {
	if a.username == "" {
		return fmt.Errorf("%w: username is required", shared.ErrInvalidInput)
	}
	if len(a.username) > 150 {
		return fmt.Errorf("%w: username is longer than 150 characters", shared.ErrInvalidInput)
	}
	for _, r := range a.username {
		if unicode.IsSpace(r) {
			return fmt.Errorf("%w: username may not contain whitespace", shared.ErrInvalidInput)
		}
	}
	if a.email == "" {
		return fmt.Errorf("%w: email is required", shared.ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(a.email); err != nil {
		return fmt.Errorf("%w: invalid email %q", shared.ErrInvalidInput, a.email)
	}
	if a.apiToken == "" {
		return fmt.Errorf("%w: api token is required", shared.ErrInvalidInput)
	}
	if c := a.profile.Country; c != "" && len(c) != 2 {
		return fmt.Errorf("%w: country must be a 2 letter code", shared.ErrInvalidInput)
	}
	return nil
}
