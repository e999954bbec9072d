package server

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/desertthunder/royalty/internal/dashboard"
	"github.com/desertthunder/royalty/internal/models"
	"github.com/desertthunder/royalty/internal/repositories"
	"github.com/desertthunder/royalty/internal/shared"
)

type analyticsHandler struct {
	dashboard *dashboard.Service
}

func (h *analyticsHandler) Routes() []Route {
	return []Route{
		{Pattern: "GET /api/artist/dashboard-summary", Handler: h.summary},
		{Pattern: "GET /api/streams/total", Handler: h.totalStreams},
		{Pattern: "GET /api/streams/by-platform", Handler: h.streamsByPlatform},
		{Pattern: "GET /api/streams/over-time", Handler: h.streamsOverTime},
		{Pattern: "GET /api/streams/top-tracks", Handler: h.topTracks},
		{Pattern: "GET /api/revenue/total", Handler: h.totalRevenue},
		{Pattern: "GET /api/revenue/by-platform", Handler: h.revenueByPlatform},
	}
}

// artistHandlerFunc returns a handler that answers with fn's result for the request's artist.
func artistHandlerFunc[T any](fn func(artistID string) (T, error)) HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		artist, err := ArtistFrom(r.Context())
		if err != nil {
			return err
		}
		payload, err := fn(artist.ID())
		if err != nil {
			return err
		}
		return WriteJSON(w, http.StatusOK, payload)
	}
}

func (h *analyticsHandler) summary(w http.ResponseWriter, r *http.Request) error {
	return artistHandlerFunc(h.dashboard.Summary)(w, r)
}

func (h *analyticsHandler) totalStreams(w http.ResponseWriter, r *http.Request) error {
	return artistHandlerFunc(h.dashboard.TotalStreams)(w, r)
}

func (h *analyticsHandler) streamsByPlatform(w http.ResponseWriter, r *http.Request) error {
	return artistHandlerFunc(h.dashboard.StreamsByPlatform)(w, r)
}

func (h *analyticsHandler) totalRevenue(w http.ResponseWriter, r *http.Request) error {
	return artistHandlerFunc(h.dashboard.TotalRevenue)(w, r)
}

func (h *analyticsHandler) revenueByPlatform(w http.ResponseWriter, r *http.Request) error {
	return artistHandlerFunc(h.dashboard.RevenueByPlatform)(w, r)
}

func (h *analyticsHandler) streamsOverTime(w http.ResponseWriter, r *http.Request) error {
	query := r.URL.Query()

	bucket, err := repositories.ParseBucket(query.Get("interval"))
	if err != nil {
		return err
	}
	filter, err := parseRange(query)
	if err != nil {
		return err
	}

	return artistHandlerFunc(func(artistID string) (*dashboard.Series, error) {
		return h.dashboard.StreamsOverTime(artistID, bucket, filter.From, filter.To)
	})(w, r)
}

func (h *analyticsHandler) topTracks(w http.ResponseWriter, r *http.Request) error {
	limit, err := parseInt(r.URL.Query(), "limit")
	if err != nil {
		return err
	}

	return artistHandlerFunc(func(artistID string) ([]dashboard.TrackStats, error) {
		return h.dashboard.TopTracks(artistID, limit)
	})(w, r)
}

// parseRange reads the optional from and to dates of a query.
func parseRange(query url.Values) (repositories.Filter, error) {
	var filter repositories.Filter
	for name, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		value := query.Get(name)
		if value == "" {
			continue
		}
		t, err := models.ParseDate(value)
		if err != nil {
			return filter, fmt.Errorf("%w: %s must be a YYYY-MM-DD date", shared.ErrInvalidInput, name)
		}
		*dst = &t
	}
	return filter, nil
}

// parseInt reads an optional non-negative integer; absent means zero.
func parseInt(query url.Values, name string) (int, error) {
	value := query.Get(name)
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", shared.ErrInvalidInput, name)
	}
	return n, nil
}
