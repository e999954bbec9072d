package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/royalty/internal/formatter"
	"github.com/desertthunder/royalty/internal/repositories"
	"github.com/desertthunder/royalty/internal/shared"
)

type dataHandler struct {
	statements *repositories.StatementRepository
	analytics  *repositories.AnalyticsRepository
	insights   *repositories.InsightRepository
}

func (h *dataHandler) Routes() []Route {
	return []Route{
		{Pattern: "GET /api/data/export", Handler: h.export},
		{Pattern: "DELETE /api/data/clear", Handler: h.clear},
	}
}

// export downloads the artist's statements as CSV or JSON.
func (h *dataHandler) export(w http.ResponseWriter, r *http.Request) error {
	artist, err := ArtistFrom(r.Context())
	if err != nil {
		return err
	}

	query := r.URL.Query()
	format, err := formatter.ParseFormat(query.Get("format"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	filter, err := parseRange(query)
	if err != nil {
		return err
	}

	rows, err := h.statements.ListByArtist(artist.ID(), filter)
	if err != nil {
		return err
	}

	now := time.Now()
	data, err := formatter.Export(format, artist.Username(), rows, now)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, format.Filename(artist.Username(), now)))
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(data)
	return err
}

type clearResponse struct {
	StatementsDeleted int64 `json:"statements_deleted"`
	UploadsDeleted    int64 `json:"uploads_deleted"`
	InsightsDeleted   int64 `json:"insights_deleted"`
}

// clear deletes the artist's statements and uploads. Insights are kept unless ?insights=true.
func (h *dataHandler) clear(w http.ResponseWriter, r *http.Request) error {
	artist, err := ArtistFrom(r.Context())
	if err != nil {
		return err
	}

	var resp clearResponse
	resp.StatementsDeleted, resp.UploadsDeleted, err = h.analytics.ClearArtistData(artist.ID())
	if err != nil {
		return err
	}

	if r.URL.Query().Get("insights") == "true" {
		if resp.InsightsDeleted, err = h.insights.DeleteByArtist(artist.ID()); err != nil {
			return err
		}
	}

	return WriteJSON(w, http.StatusOK, resp)
}
