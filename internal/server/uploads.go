package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/desertthunder/royalty/internal/models"
	"github.com/desertthunder/royalty/internal/shared"
	"github.com/desertthunder/royalty/internal/tasks"
)

// multipartOverhead is allowed on top of the report size for form boundaries and headers.
const multipartOverhead = 1 << 20

// Importer runs report imports.
type Importer interface {
	Run(ctx context.Context, progress chan<- tasks.ProgressUpdate, artist *models.Artist, filename string, r io.Reader) (*tasks.ImportResult, error)
}

// UploadStore reads upload records.
type UploadStore interface {
	GetForArtist(artistID, id string) (*models.Upload, error)
	List(criteria map[string]any) ([]*models.Upload, error)
}

type uploadHandler struct {
	uploads  UploadStore
	engine   Importer
	limiter  *RateLimiter
	maxBytes int64
}

func (h *uploadHandler) Routes() []Route {
	return []Route{
		{Pattern: "POST /api/csv-uploads/upload", Handler: h.upload, Middleware: []Middleware{h.limiter.Handler}},
		{Pattern: "GET /api/csv-uploads", Handler: h.list},
		{Pattern: "GET /api/csv-uploads/{id}", Handler: h.get},
	}
}

type uploadResponse struct {
	Upload     uploadView `json:"upload"`
	Format     string     `json:"format,omitempty"`
	Imported   int        `json:"imported"`
	Duplicates int        `json:"duplicates"`
	Errors     int        `json:"errors"`
	DurationMS int64      `json:"duration_ms"`
}

// upload imports the multipart "file" field synchronously and returns the finished upload.
//
// Reports rejected as a whole answer with an error status and the failed upload.
func (h *uploadHandler) upload(w http.ResponseWriter, r *http.Request) error {
	artist, err := ArtistFrom(r.Context())
	if err != nil {
		return err
	}

	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartOverhead)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return fmt.Errorf("%w: limit is %d bytes", shared.ErrUploadTooLarge, h.maxBytes)
		}
		return fmt.Errorf("%w: expected a multipart form: %v", shared.ErrInvalidInput, err)
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		return fmt.Errorf("%w: file", shared.ErrMissingArgument)
	}
	defer file.Close()

	result, err := h.engine.Run(r.Context(), nil, artist, filepath.Base(header.Filename), file)
	if result == nil || result.Upload == nil {
		if err == nil {
			err = errors.New("import returned no upload")
		}
		return err
	}

	response := uploadResponse{
		Upload:     newUploadView(result.Upload),
		Format:     string(result.Format),
		Imported:   result.Imported,
		Duplicates: result.Duplicates,
		Errors:     result.Errors,
		DurationMS: result.Duration.Milliseconds(),
	}

	status := http.StatusCreated
	if err != nil {
		status = StatusFor(err)
		if status == http.StatusInternalServerError {
			return err
		}
		return WriteJSON(w, status, struct {
			ErrorBody
			uploadResponse
		}{ErrorBody{Error: err.Error()}, response})
	}
	return WriteJSON(w, status, response)
}

func (h *uploadHandler) list(w http.ResponseWriter, r *http.Request) error {
	artist, err := ArtistFrom(r.Context())
	if err != nil {
		return err
	}

	query := r.URL.Query()
	limit, err := parseInt(query, "limit")
	if err != nil {
		return err
	}

	criteria := map[string]any{"artist_id": artist.ID(), "limit": limit}
	if value := query.Get("status"); value != "" {
		status := models.UploadStatus(value)
		if !status.Valid() {
			return fmt.Errorf("%w: unknown status %q", shared.ErrInvalidInput, value)
		}
		criteria["status"] = status
	}

	uploads, err := h.uploads.List(criteria)
	if err != nil {
		return err
	}

	views := make([]uploadView, 0, len(uploads))
	for _, u := range uploads {
		views = append(views, newUploadView(u))
	}
	return WriteJSON(w, http.StatusOK, views)
}

func (h *uploadHandler) get(w http.ResponseWriter, r *http.Request) error {
	artist, err := ArtistFrom(r.Context())
	if err != nil {
		return err
	}

	upload, err := h.uploads.GetForArtist(artist.ID(), r.PathValue("id"))
	if err != nil {
		return err
	}
	return WriteJSON(w, http.StatusOK, newUploadView(upload))
}
