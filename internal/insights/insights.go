// package insights records per-track platform metrics and reports on them
package insights

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/royalty/internal/models"
	"github.com/desertthunder/royalty/internal/repositories"
	"github.com/desertthunder/royalty/internal/shared"
)

// Store persists insights.
type Store interface {
	CreateBatch(insights []*models.Insight) error
	ListByArtist(artistID string, criteria map[string]any) ([]*models.Insight, error)
	Summary(artistID string) (*repositories.InsightSummary, error)
	Comparison(artistID string) ([]repositories.PlatformInsightStats, error)
}

// Observation is one metric reported by an external source.
//
// Either InsightType with Value or ReleaseDate is set. A release date is stored as the
// number of days since release.
type Observation struct {
	Platform    string   `json:"platform" validate:"required,max=50"`
	TrackName   string   `json:"track_name" validate:"required,max=255"`
	InsightType string   `json:"insight_type,omitempty" validate:"required_without=ReleaseDate,max=50"`
	Value       *float64 `json:"value,omitempty" validate:"required_with=InsightType"`
	ReleaseDate string   `json:"release_date,omitempty" validate:"required_without=InsightType"`
}

// batch bounds one call of [Service.Record] to 1000 observations.
type batch struct {
	Observations []Observation `json:"observations" validate:"required,min=1,max=1000,dive"`
}

// RecordResult counts what [Service.Record] stored.
type RecordResult struct {
	Recorded int `json:"recorded"`
	Skipped  int `json:"skipped"`
}

// View is the wire form of a stored insight.
type View struct {
	ID          string    `json:"id"`
	Platform    string    `json:"platform"`
	TrackName   string    `json:"track_name"`
	InsightType string    `json:"insight_type"`
	Value       float64   `json:"value"`
	Timestamp   time.Time `json:"timestamp"`
}

// Query narrows [Service.List].
type Query struct {
	Platform    string
	InsightType string
	TrackName   string
	Limit       int
}

// Performer is the best track of one platform and insight type.
type Performer struct {
	TrackName string  `json:"track_name"`
	Value     float64 `json:"value"`
}

type PlatformReport struct {
	TracksTracked int       `json:"tracks_tracked"`
	Observations  int       `json:"observations"`
	LatestData    time.Time `json:"latest_data"`
}

type ReportSummary struct {
	TotalTracksTracked int        `json:"total_tracks_tracked"`
	PlatformsAvailable []string   `json:"platforms_available"`
	LatestUpdate       *time.Time `json:"latest_update"`
}

// Report describes an artist's performance across platforms.
type Report struct {
	Summary       ReportSummary                   `json:"summary"`
	ByPlatform    map[string]PlatformReport       `json:"by_platform"`
	TopPerformers map[string]map[string]Performer `json:"top_performers"`
}

type PlatformComparison struct {
	Platform      string  `json:"platform"`
	TracksTracked int     `json:"tracks_tracked"`
	AverageValue  float64 `json:"average_value"`
}

// Service validates, stores and aggregates insights.
type Service struct {
	store  Store
	logger *log.Logger
	now    func() time.Time
}

// NewService creates an insights service. A nil logger discards log output.
func NewService(store Store, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Service{store: store, logger: logger, now: time.Now}
}

// Record validates every observation and stores them in one batch.
//
// Release dates that are not in the past are skipped.
func (s *Service) Record(artistID string, observations []Observation) (*RecordResult, error) {
	if err := shared.ValidateStruct(batch{Observations: observations}); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	result := &RecordResult{}
	insights := make([]*models.Insight, 0, len(observations))

	for i, o := range observations {
		insightType, value := o.InsightType, 0.0
		if o.Value != nil {
			value = *o.Value
		}

		if insightType == "" {
			released, err := parseReleaseDate(o.ReleaseDate)
			if err != nil {
				return nil, fmt.Errorf("%w: observations[%d].release_date: %v", shared.ErrInvalidInput, i, err)
			}
			days := int(now.Sub(released).Hours() / 24)
			if days <= 0 {
				result.Skipped++
				continue
			}
			insightType, value = models.InsightDaysSinceRelease, float64(days)
		}

		insight := models.NewInsight(0, artistID, o.Platform, o.TrackName, insightType, value)
		insight.SetCreatedAt(now)
		insight.SetUpdatedAt(now)
		if err := insight.Validate(); err != nil {
			return nil, fmt.Errorf("observations[%d]: %w", i, err)
		}
		insights = append(insights, insight)
	}

	if len(insights) > 0 {
		if err := s.store.CreateBatch(insights); err != nil {
			return nil, err
		}
	}
	result.Recorded = len(insights)

	s.logger.Info("recorded insights", "artist", artistID, "recorded", result.Recorded, "skipped", result.Skipped)
	return result, nil
}

var releaseLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", models.DateLayout}

func parseReleaseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range releaseLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as a date", value)
}

// List returns insights newest first.
func (s *Service) List(artistID string, q Query) ([]View, error) {
	criteria := map[string]any{
		"platform":     shared.Slugify(q.Platform),
		"insight_type": shared.Slugify(q.InsightType),
		"track_name":   shared.CollapseSpaces(q.TrackName),
		"limit":        q.Limit,
	}

	insights, err := s.store.ListByArtist(artistID, criteria)
	if err != nil {
		return nil, err
	}

	views := make([]View, 0, len(insights))
	for _, i := range insights {
		views = append(views, View{
			ID:          i.ID(),
			Platform:    i.Platform(),
			TrackName:   i.TrackName(),
			InsightType: i.InsightType(),
			Value:       i.Value(),
			Timestamp:   i.CreatedAt(),
		})
	}
	return views, nil
}

// Report summarizes insights per platform and picks the top performer of every platform and insight type.
//
// Only the latest observation of each track counts towards top performers. Lower is better for ranks,
// higher for everything else.
func (s *Service) Report(artistID string) (*Report, error) {
	summary, err := s.store.Summary(artistID)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Summary: ReportSummary{
			TotalTracksTracked: summary.TotalTracks,
			PlatformsAvailable: make([]string, 0, len(summary.Platforms)),
			LatestUpdate:       summary.LatestUpdate,
		},
		ByPlatform:    make(map[string]PlatformReport, len(summary.Platforms)),
		TopPerformers: make(map[string]map[string]Performer, len(summary.Platforms)),
	}
	for _, p := range summary.Platforms {
		report.Summary.PlatformsAvailable = append(report.Summary.PlatformsAvailable, p.Platform)
		report.ByPlatform[p.Platform] = PlatformReport{
			TracksTracked: p.TracksTracked,
			Observations:  p.Observations,
			LatestData:    p.LatestData,
		}
	}

	insights, err := s.store.ListByArtist(artistID, nil)
	if err != nil {
		return nil, err
	}

	type key struct{ platform, insightType, track string }
	seen := map[key]bool{}
	for _, i := range insights {
		k := key{i.Platform(), i.InsightType(), i.TrackName()}
		if seen[k] {
			continue
		}
		seen[k] = true

		byType, ok := report.TopPerformers[k.platform]
		if !ok {
			byType = map[string]Performer{}
			report.TopPerformers[k.platform] = byType
		}

		candidate := Performer{TrackName: k.track, Value: i.Value()}
		if best, ok := byType[k.insightType]; !ok || better(k.insightType, candidate, best) {
			byType[k.insightType] = candidate
		}
	}

	return report, nil
}

// better reports whether a outranks b for insightType. Ties go to the track name that sorts first.
func better(insightType string, a, b Performer) bool {
	if a.Value == b.Value {
		return a.TrackName < b.TrackName
	}
	if insightType == models.InsightRank {
		return a.Value < b.Value
	}
	return a.Value > b.Value
}

// Comparison returns the tracks tracked and average value per platform.
func (s *Service) Comparison(artistID string) ([]PlatformComparison, error) {
	stats, err := s.store.Comparison(artistID)
	if err != nil {
		return nil, err
	}

	out := make([]PlatformComparison, 0, len(stats))
	for _, p := range stats {
		out = append(out, PlatformComparison{
			Platform:      p.Platform,
			TracksTracked: p.TracksTracked,
			AverageValue:  p.AverageValue,
		})
	}
	slices.SortFunc(out, func(a, b PlatformComparison) int { return cmp.Compare(a.Platform, b.Platform) })
	return out, nil
}
