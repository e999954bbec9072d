package server

import (
	"net/http"

	"github.com/desertthunder/royalty/internal/dashboard"
	"github.com/desertthunder/royalty/internal/models"
	"github.com/desertthunder/royalty/internal/shared"
)

// ArtistStore is the artist persistence the HTTP layer needs.
type ArtistStore interface {
	ArtistLookup
	Create(artist *models.Artist) error
	Update(artist *models.Artist) error
}

type artistHandler struct {
	artists ArtistStore
	stats   *dashboard.Service
}

func (h *artistHandler) Routes() []Route {
	return []Route{
		{Pattern: "POST /api/artists", Handler: h.register, Public: true},
		{Pattern: "GET /api/auth/me", Handler: h.me},
		{Pattern: "GET /api/artist/profile", Handler: h.profile},
		{Pattern: "PATCH /api/artist/profile", Handler: h.updateProfile},
	}
}

type registerRequest struct {
	Username string `json:"username" validate:"required,max=150"`
	Email    string `json:"email" validate:"required,email,max=254"`
	models.Profile
}

type registerResponse struct {
	Artist   artistView `json:"artist"`
	APIToken string     `json:"api_token"`
}

// register creates an artist and returns its API token. The token is only shown here.
func (h *artistHandler) register(w http.ResponseWriter, r *http.Request) error {
	var req registerRequest
	if err := DecodeJSON(r, &req); err != nil {
		return err
	}
	if err := shared.ValidateStruct(req); err != nil {
		return err
	}

	artist := models.NewArtist(0, req.Username, req.Email)
	artist.SetProfile(req.Profile)
	if err := h.artists.Create(artist); err != nil {
		return err
	}

	return WriteJSON(w, http.StatusCreated, registerResponse{Artist: newArtistView(artist), APIToken: artist.APIToken()})
}

func (h *artistHandler) me(w http.ResponseWriter, r *http.Request) error {
	artist, err := ArtistFrom(r.Context())
	if err != nil {
		return err
	}
	return WriteJSON(w, http.StatusOK, newArtistView(artist))
}

type profileResponse struct {
	artistView
	Stats *dashboard.ProfileStats `json:"stats"`
}

func (h *artistHandler) writeProfile(w http.ResponseWriter, artist *models.Artist) error {
	stats, err := h.stats.ArtistProfileStats(artist.ID())
	if err != nil {
		return err
	}
	return WriteJSON(w, http.StatusOK, profileResponse{artistView: newArtistView(artist), Stats: stats})
}

func (h *artistHandler) profile(w http.ResponseWriter, r *http.Request) error {
	artist, err := ArtistFrom(r.Context())
	if err != nil {
		return err
	}
	return h.writeProfile(w, artist)
}

// profilePatch holds the profile fields a PATCH may change. Absent fields are left alone.
type profilePatch struct {
	DisplayName *string           `json:"display_name" validate:"omitempty,max=255"`
	Bio         *string           `json:"bio" validate:"omitempty,max=4000"`
	Country     *string           `json:"country" validate:"omitempty,len=2,alpha"`
	City        *string           `json:"city" validate:"omitempty,max=255"`
	Genres      []string          `json:"genres" validate:"omitempty,max=20,dive,required,max=64"`
	SocialLinks map[string]string `json:"social_links" validate:"omitempty,max=20,dive,keys,required,max=32,endkeys,url"`
}

func (p profilePatch) apply(profile models.Profile) models.Profile {
	if p.DisplayName != nil {
		profile.DisplayName = *p.DisplayName
	}
	if p.Bio != nil {
		profile.Bio = *p.Bio
	}
	if p.Country != nil {
		profile.Country = *p.Country
	}
	if p.City != nil {
		profile.City = *p.City
	}
	if p.Genres != nil {
		profile.Genres = p.Genres
	}
	if p.SocialLinks != nil {
		profile.SocialLinks = p.SocialLinks
	}
	return profile
}

func (h *artistHandler) updateProfile(w http.ResponseWriter, r *http.Request) error {
	artist, err := ArtistFrom(r.Context())
	if err != nil {
		return err
	}

	var patch profilePatch
	if err := DecodeJSON(r, &patch); err != nil {
		return err
	}
	if err := shared.ValidateStruct(patch); err != nil {
		return err
	}

	artist.SetProfile(patch.apply(artist.Profile()))
	if err := h.artists.Update(artist); err != nil {
		return err
	}
	return h.writeProfile(w, artist)
}
