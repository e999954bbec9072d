package models

import (
	"fmt"
	"strings"

	"github.com/desertthunder/royalty/internal/shared"
)

// Platform is a store or streaming service that reports royalties.
type Platform struct {
	record
	name    string
	apiName string
	baseURL string
}

// knownPlatforms maps slugs of common report spellings onto canonical names.
var knownPlatforms = map[string]struct{ name, apiName, baseURL string }{
	"spotify":       {"Spotify", "spotify", "https://open.spotify.com"},
	"apple_music":   {"Apple Music", "apple_music", "https://music.apple.com"},
	"itunes":        {"Apple Music", "apple_music", "https://music.apple.com"},
	"applemusic":    {"Apple Music", "apple_music", "https://music.apple.com"},
	"deezer":        {"Deezer", "deezer", "https://www.deezer.com"},
	"youtube":       {"YouTube Music", "youtube_music", "https://music.youtube.com"},
	"youtube_music": {"YouTube Music", "youtube_music", "https://music.youtube.com"},
	"amazon":        {"Amazon Music", "amazon_music", "https://music.amazon.com"},
	"amazon_music":  {"Amazon Music", "amazon_music", "https://music.amazon.com"},
	"tidal":         {"Tidal", "tidal", "https://tidal.com"},
	"soundcloud":    {"SoundCloud", "soundcloud", "https://soundcloud.com"},
	"bandcamp":      {"Bandcamp", "bandcamp", "https://bandcamp.com"},
}

// NewPlatform creates a platform, canonicalizing well known store names.
//
// "SPOTIFY", "spotify " and "Spotify" all become Spotify/spotify.
func NewPlatform(sequence int, name string) *Platform {
	name = shared.CollapseSpaces(name)
	slug := shared.Slugify(name)

	p := &Platform{record: newRecord(sequence), name: name, apiName: slug}
	if known, ok := knownPlatforms[slug]; ok {
		p.name, p.apiName, p.baseURL = known.name, known.apiName, known.baseURL
	}
	return p
}

// CanonicalPlatformName returns the name [NewPlatform] would store for name.
func CanonicalPlatformName(name string) string {
	return NewPlatform(0, name).Name()
}

func (p *Platform) Name() string           { return p.name }
func (p *Platform) APIName() string        { return p.apiName }
func (p *Platform) BaseURL() string        { return p.baseURL }
func (p *Platform) SetBaseURL(url string)  { p.baseURL = strings.TrimSpace(url) }
func (p *Platform) SetAPIName(name string) { p.apiName = name }
func (p *Platform) SetName(name string)    { p.name = name }

func (p *Platform) Validate() error {
	if p.name == "" {
		return fmt.Errorf("%w: platform name is required", shared.ErrInvalidInput)
	}
	if p.apiName == "" {
		return fmt.Errorf("%w: platform api name is required", shared.ErrInvalidInput)
	}
	return nil
}
