package models

import (
	"fmt"
	"math"
	"strings"

	"github.com/desertthunder/royalty/internal/shared"
)

// Common insight types.
const (
	InsightPopularity       = "popularity"
	InsightRank             = "rank"
	InsightDaysSinceRelease = "days_since_release"
)

// Insight is a scalar metric observed for a track on a platform. CreatedAt is the observation time.
type Insight struct {
	record
	artistID    string
	platform    string
	trackName   string
	insightType string
	value       float64
}

// NewInsight creates an insight; platform and type are stored as slugs.
func NewInsight(sequence int, artistID, platform, trackName, insightType string, value float64) *Insight {
	return &Insight{
		record:      newRecord(sequence),
		artistID:    artistID,
		platform:    shared.Slugify(platform),
		trackName:   shared.CollapseSpaces(trackName),
		insightType: shared.Slugify(insightType),
		value:       value,
	}
}

func (i *Insight) ArtistID() string    { return i.artistID }
func (i *Insight) Platform() string    { return i.platform }
func (i *Insight) TrackName() string   { return i.trackName }
func (i *Insight) InsightType() string { return i.insightType }
func (i *Insight) Value() float64      { return i.value }

func (i *Insight) Validate() error {
	switch {
	case i.artistID == "":
		return fmt.Errorf("%w: insight artist is required", shared.ErrInvalidInput)
	case i.platform == "" || len(i.platform) > 50:
		return fmt.Errorf("%w: insight platform must be 1-50 characters", shared.ErrInvalidInput)
	case strings.TrimSpace(i.trackName) == "":
		return fmt.Errorf("%w: insight track name is required", shared.ErrInvalidInput)
	case i.insightType == "" || len(i.insightType) > 50:
		return fmt.Errorf("%w: insight type must be 1-50 characters", shared.ErrInvalidInput)
	case math.IsNaN(i.value) || math.IsInf(i.value, 0):
		return fmt.Errorf("%w: insight value must be finite", shared.ErrInvalidInput)
	}
	return nil
}
