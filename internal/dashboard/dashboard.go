package dashboard

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/desertthunder/royalty/internal/models"
	"github.com/desertthunder/royalty/internal/repositories"
	"github.com/desertthunder/royalty/internal/shared"
	"github.com/shopspring/decimal"
)

const (
	DefaultTopTracks = 10
	MaxTopTracks     = 100
)

// Analytics is the aggregate query surface the dashboard reads from.
type Analytics interface {
	Totals(artistID string, filter repositories.Filter) (repositories.Totals, error)
	ByPlatform(artistID string, filter repositories.Filter) ([]repositories.PlatformTotal, error)
	OverTime(artistID string, bucket repositories.Bucket, filter repositories.Filter) ([]repositories.TimePoint, error)
	TopTracks(artistID string, limit int, filter repositories.Filter) ([]repositories.TrackTotal, error)
	Counts(artistID string) (repositories.Counts, error)
}

// Amount is a revenue figure rendered with two fractional digits.
type Amount struct {
	decimal.Decimal
}

func amountFromE4(v int64) Amount {
	return Amount{models.RevenueFromE4(v).Round(2)}
}

// MarshalJSON renders the amount as a JSON number.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.StringFixed(2)), nil
}

func (a Amount) String() string {
	return a.StringFixed(2)
}

// PlatformShare is one platform's slice of an artist's streams.
type PlatformShare struct {
	PlatformName string `json:"platform_name"`
	PlatformIcon string `json:"platform_icon"`
	Streams      int64  `json:"streams"`
	Revenue      Amount `json:"revenue"`
	Percentage   int    `json:"percentage"`
}

// Summary is the dashboard landing payload.
type Summary struct {
	TotalStreams      int64           `json:"total_streams"`
	TotalRevenue      Amount          `json:"total_revenue"`
	Currency          string          `json:"currency"`
	PlatformBreakdown []PlatformShare `json:"platform_breakdown"`
	TotalAlbums       int             `json:"total_albums"`
	TotalTracks       int             `json:"total_tracks"`
}

type StreamTotal struct {
	TotalStreams int64 `json:"total_streams"`
}

type RevenueTotal struct {
	TotalRevenue Amount `json:"total_revenue"`
	Currency     string `json:"currency"`
}

// PlatformRevenue is one platform's slice of an artist's revenue.
type PlatformRevenue struct {
	PlatformName string `json:"platform_name"`
	PlatformIcon string `json:"platform_icon"`
	Revenue      Amount `json:"revenue"`
	Streams      int64  `json:"streams"`
	Percentage   int    `json:"percentage"`
}

// SeriesPoint is one bucket of a streams time series.
type SeriesPoint struct {
	Period  string `json:"period"`
	Streams int64  `json:"streams"`
	Revenue Amount `json:"revenue"`
}

// Series is a streams time series over a bucket width.
type Series struct {
	Interval repositories.Bucket `json:"interval"`
	From     string              `json:"from,omitempty"`
	To       string              `json:"to,omitempty"`
	Points   []SeriesPoint       `json:"points"`
}

// TrackStats is one entry of the top tracks list.
type TrackStats struct {
	Rank        int    `json:"rank"`
	TrackName   string `json:"track_name"`
	Album       string `json:"album,omitempty"`
	Streams     int64  `json:"streams"`
	Revenue     Amount `json:"revenue"`
	TopPlatform string `json:"top_platform"`
}

// ProfileStats are the figures attached to an artist profile.
type ProfileStats struct {
	TotalTracks    int   `json:"total_tracks"`
	TotalStreams   int64 `json:"total_streams"`
	TotalPlatforms int   `json:"total_platforms"`
}

// Service computes dashboard payloads for one currency.
type Service struct {
	analytics Analytics
	currency  string
}

// NewService creates a dashboard service reporting revenue in currency.
func NewService(analytics Analytics, currency string) *Service {
	if currency == "" {
		currency = "USD"
	}
	return &Service{analytics: analytics, currency: currency}
}

// Currency returns the currency code revenue is reported in.
func (s *Service) Currency() string { return s.currency }

// percentage returns part as a whole-number share of total, treating an empty total as one.
func percentage(part, total int64) int {
	return int(math.Round(float64(part) / float64(max(total, 1)) * 100))
}

// Summary returns totals, the per-platform breakdown and catalog counts.
//
// Platforms without streams are left out of the breakdown.
func (s *Service) Summary(artistID string) (*Summary, error) {
	totals, err := s.analytics.Totals(artistID, repositories.Filter{})
	if err != nil {
		return nil, err
	}
	platforms, err := s.analytics.ByPlatform(artistID, repositories.Filter{})
	if err != nil {
		return nil, err
	}
	counts, err := s.analytics.Counts(artistID)
	if err != nil {
		return nil, err
	}

	return &Summary{
		TotalStreams:      totals.Streams,
		TotalRevenue:      amountFromE4(totals.RevenueE4),
		Currency:          s.currency,
		PlatformBreakdown: shares(platforms, totals.Streams),
		TotalAlbums:       counts.Albums,
		TotalTracks:       counts.Tracks,
	}, nil
}

func shares(platforms []repositories.PlatformTotal, total int64) []PlatformShare {
	out := make([]PlatformShare, 0, len(platforms))
	for _, p := range platforms {
		if p.Streams <= 0 {
			continue
		}
		out = append(out, PlatformShare{
			PlatformName: p.Name,
			PlatformIcon: p.APIName,
			Streams:      p.Streams,
			Revenue:      amountFromE4(p.RevenueE4),
			Percentage:   percentage(p.Streams, total),
		})
	}
	sortByStreams(out)
	return out
}

func (s *Service) TotalStreams(artistID string) (*StreamTotal, error) {
	totals, err := s.analytics.Totals(artistID, repositories.Filter{})
	if err != nil {
		return nil, err
	}
	return &StreamTotal{TotalStreams: totals.Streams}, nil
}

func (s *Service) TotalRevenue(artistID string) (*RevenueTotal, error) {
	totals, err := s.analytics.Totals(artistID, repositories.Filter{})
	if err != nil {
		return nil, err
	}
	return &RevenueTotal{TotalRevenue: amountFromE4(totals.RevenueE4), Currency: s.currency}, nil
}

// StreamsByPlatform returns the stream share of every platform with streams, most streamed first.
func (s *Service) StreamsByPlatform(artistID string) ([]PlatformShare, error) {
	platforms, err := s.analytics.ByPlatform(artistID, repositories.Filter{})
	if err != nil {
		return nil, err
	}

	var total int64
	for _, p := range platforms {
		total += p.Streams
	}
	return shares(platforms, total), nil
}

// RevenueByPlatform returns the revenue share of every platform, highest revenue first.
func (s *Service) RevenueByPlatform(artistID string) ([]PlatformRevenue, error) {
	platforms, err := s.analytics.ByPlatform(artistID, repositories.Filter{})
	if err != nil {
		return nil, err
	}

	var total int64
	for _, p := range platforms {
		total += p.RevenueE4
	}

	out := make([]PlatformRevenue, 0, len(platforms))
	for _, p := range platforms {
		out = append(out, PlatformRevenue{
			PlatformName: p.Name,
			PlatformIcon: p.APIName,
			Revenue:      amountFromE4(p.RevenueE4),
			Streams:      p.Streams,
			Percentage:   percentage(p.RevenueE4, total),
		})
	}
	slices.SortStableFunc(out, func(a, b PlatformRevenue) int {
		return b.Revenue.Cmp(a.Revenue.Decimal)
	})
	return out, nil
}

// StreamsOverTime buckets streams by period end. Nil bounds are open.
func (s *Service) StreamsOverTime(artistID string, bucket repositories.Bucket, from, to *time.Time) (*Series, error) {
	if from != nil && to != nil && from.After(*to) {
		return nil, fmt.Errorf("%w: from %s is after to %s", shared.ErrInvalidInput, models.FormatDate(*from), models.FormatDate(*to))
	}

	points, err := s.analytics.OverTime(artistID, bucket, repositories.Filter{From: from, To: to})
	if err != nil {
		return nil, err
	}

	series := &Series{Interval: bucket, Points: make([]SeriesPoint, 0, len(points))}
	if from != nil {
		series.From = models.FormatDate(*from)
	}
	if to != nil {
		series.To = models.FormatDate(*to)
	}
	for _, p := range points {
		series.Points = append(series.Points, SeriesPoint{
			Period:  p.Period,
			Streams: p.Streams,
			Revenue: amountFromE4(p.RevenueE4),
		})
	}
	return series, nil
}

// ClampTopTracks maps a requested list length onto [1, MaxTopTracks]; zero or less means the default.
func ClampTopTracks(limit int) int {
	if limit <= 0 {
		return DefaultTopTracks
	}
	return min(limit, MaxTopTracks)
}

// TopTracks ranks tracks by streams, then revenue, then name.
func (s *Service) TopTracks(artistID string, limit int) ([]TrackStats, error) {
	tracks, err := s.analytics.TopTracks(artistID, ClampTopTracks(limit), repositories.Filter{})
	if err != nil {
		return nil, err
	}

	out := make([]TrackStats, 0, len(tracks))
	for i, t := range tracks {
		out = append(out, TrackStats{
			Rank:        i + 1,
			TrackName:   t.Name,
			Album:       t.Album,
			Streams:     t.Streams,
			Revenue:     amountFromE4(t.RevenueE4),
			TopPlatform: t.TopPlatform,
		})
	}
	return out, nil
}

// ArtistProfileStats returns the figures shown next to an artist profile.
func (s *Service) ArtistProfileStats(artistID string) (*ProfileStats, error) {
	totals, err := s.analytics.Totals(artistID, repositories.Filter{})
	if err != nil {
		return nil, err
	}
	counts, err := s.analytics.Counts(artistID)
	if err != nil {
		return nil, err
	}
	return &ProfileStats{
		TotalTracks:    counts.Tracks,
		TotalStreams:   totals.Streams,
		TotalPlatforms: counts.Platforms,
	}, nil
}

// sortByStreams orders shares most streamed first, keeping ties in name order.
func sortByStreams(s []PlatformShare) {
	slices.SortStableFunc(s, func(a, b PlatformShare) int {
		if c := cmp.Compare(b.Streams, a.Streams); c != 0 {
			return c
		}
		return cmp.Compare(a.PlatformName, b.PlatformName)
	})
}
