package server

import (
	"time"

	"github.com/desertthunder/royalty/internal/models"
)

type artistView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	models.Profile
	CreatedAt time.Time `json:"created_at"`
}

func newArtistView(a *models.Artist) artistView {
	return artistView{
		ID:        a.ID(),
		Username:  a.Username(),
		Email:     a.Email(),
		Profile:   a.Profile(),
		CreatedAt: a.CreatedAt(),
	}
}

type uploadView struct {
	ID             string              `json:"id"`
	Filename       string              `json:"filename"`
	Status         models.UploadStatus `json:"status"`
	TotalRows      int                 `json:"total_rows"`
	ProcessedRows  int                 `json:"processed_rows"`
	SuccessCount   int                 `json:"success_count"`
	ErrorCount     int                 `json:"error_count"`
	DuplicateCount int                 `json:"duplicate_count"`
	ErrorLog       string              `json:"error_log"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

func newUploadView(u *models.Upload) uploadView {
	return uploadView{
		ID:             u.ID(),
		Filename:       u.Filename(),
		Status:         u.Status(),
		TotalRows:      u.TotalRows(),
		ProcessedRows:  u.ProcessedRows(),
		SuccessCount:   u.SuccessCount(),
		ErrorCount:     u.ErrorCount(),
		DuplicateCount: u.DuplicateCount(),
		ErrorLog:       u.ErrorLog(),
		CreatedAt:      u.CreatedAt(),
		UpdatedAt:      u.UpdatedAt(),
	}
}
