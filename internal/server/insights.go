package server

import (
	"net/http"

	"github.com/desertthunder/royalty/internal/insights"
)

type insightHandler struct {
	service *insights.Service
}

func (h *insightHandler) Routes() []Route {
	return []Route{
		{Pattern: "POST /api/insights", Handler: h.record},
		{Pattern: "GET /api/insights", Handler: h.list},
		{Pattern: "GET /api/insights/report", Handler: h.report},
		{Pattern: "GET /api/insights/comparison", Handler: h.comparison},
	}
}

type recordRequest struct {
	Observations []insights.Observation `json:"observations"`
}

func (h *insightHandler) record(w http.ResponseWriter, r *http.Request) error {
	artist, err := ArtistFrom(r.Context())
	if err != nil {
		return err
	}

	var req recordRequest
	if err := DecodeJSON(r, &req); err != nil {
		return err
	}

	result, err := h.service.Record(artist.ID(), req.Observations)
	if err != nil {
		return err
	}
	return WriteJSON(w, http.StatusCreated, result)
}

func (h *insightHandler) list(w http.ResponseWriter, r *http.Request) error {
	artist, err := ArtistFrom(r.Context())
	if err != nil {
		return err
	}

	query := r.URL.Query()
	limit, err := parseInt(query, "limit")
	if err != nil {
		return err
	}

	views, err := h.service.List(artist.ID(), insights.Query{
		Platform:    query.Get("platform"),
		InsightType: query.Get("insight_type"),
		TrackName:   query.Get("track_name"),
		Limit:       limit,
	})
	if err != nil {
		return err
	}
	return WriteJSON(w, http.StatusOK, views)
}

func (h *insightHandler) report(w http.ResponseWriter, r *http.Request) error {
	return artistHandlerFunc(h.service.Report)(w, r)
}

func (h *insightHandler) comparison(w http.ResponseWriter, r *http.Request) error {
	return artistHandlerFunc(h.service.Comparison)(w, r)
}
