package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/royalty/internal/repositories"
	"github.com/desertthunder/royalty/internal/shared"
	"github.com/desertthunder/royalty/internal/tasks"
	tu "github.com/desertthunder/royalty/internal/testing"
)

type fakeAnalytics struct {
	totals    repositories.Totals
	platforms []repositories.PlatformTotal
	points    []repositories.TimePoint
	tracks    []repositories.TrackTotal
	counts    repositories.Counts
	err       error

	limit  int
	filter repositories.Filter
}

func (f *fakeAnalytics) Totals(string, repositories.Filter) (repositories.Totals, error) {
	return f.totals, f.err
}

func (f *fakeAnalytics) ByPlatform(string, repositories.Filter) ([]repositories.PlatformTotal, error) {
	return f.platforms, f.err
}

func (f *fakeAnalytics) OverTime(_ string, _ repositories.Bucket, filter repositories.Filter) ([]repositories.TimePoint, error) {
	f.filter = filter
	return f.points, f.err
}

func (f *fakeAnalytics) TopTracks(_ string, limit int, _ repositories.Filter) ([]repositories.TrackTotal, error) {
	f.limit = limit
	if limit < len(f.tracks) {
		return f.tracks[:limit], f.err
	}
	return f.tracks, f.err
}

func (f *fakeAnalytics) Counts(string) (repositories.Counts, error) {
	return f.counts, f.err
}

func TestSummary(t *testing.T) {
	t.Run("computes platform percentages", func(t *testing.T) {
		analytics := &fakeAnalytics{
			totals: repositories.Totals{Streams: 300, RevenueE4: 123456},
			platforms: []repositories.PlatformTotal{
				{Name: "Spotify", APIName: "spotify", Streams: 200, RevenueE4: 100000},
				{Name: "Apple Music", APIName: "apple_music", Streams: 100, RevenueE4: 23456},
				{Name: "Tidal", APIName: "tidal", Streams: 0, RevenueE4: 0},
			},
			counts: repositories.Counts{Albums: 1, Tracks: 4, Platforms: 3},
		}

		summary, err := NewService(analytics, "EUR").Summary("artist")
		if err != nil {
			t.Fatalf("Summary failed: %v", err)
		}

		if summary.TotalStreams != 300 || summary.TotalRevenue.String() != "12.35" {
			t.Errorf("unexpected totals: %d %s", summary.TotalStreams, summary.TotalRevenue)
		}
		if summary.Currency != "EUR" {
			t.Errorf("expected EUR, got %s", summary.Currency)
		}
		if len(summary.PlatformBreakdown) != 2 {
			t.Fatalf("expected platforms without streams to be dropped, got %d", len(summary.PlatformBreakdown))
		}
		if got := summary.PlatformBreakdown[0]; got.Percentage != 67 || got.PlatformIcon != "spotify" {
			t.Errorf("unexpected spotify share: %+v", got)
		}
		if got := summary.PlatformBreakdown[1]; got.Percentage != 33 || got.Revenue.String() != "2.35" {
			t.Errorf("unexpected apple share: %+v", got)
		}
		if summary.TotalAlbums != 1 || summary.TotalTracks != 4 {
			t.Errorf("unexpected counts: %d albums, %d tracks", summary.TotalAlbums, summary.TotalTracks)
		}
	})

	t.Run("renders an empty catalog", func(t *testing.T) {
		summary, err := NewService(&fakeAnalytics{}, "").Summary("artist")
		if err != nil {
			t.Fatalf("Summary failed: %v", err)
		}

		data, err := json.Marshal(summary)
		if err != nil {
			t.Fatalf("failed to marshal summary: %v", err)
		}
		want := `{"total_streams":0,"total_revenue":0.00,"currency":"USD","platform_breakdown":[],"total_albums":0,"total_tracks":0}`
		if string(data) != want {
			t.Errorf("expected %s, got %s", want, data)
		}
	})

	t.Run("propagates errors", func(t *testing.T) {
		_, err := NewService(&fakeAnalytics{err: shared.ErrNotFound}, "USD").Summary("artist")
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestPlatformBreakdowns(t *testing.T) {
	analytics := &fakeAnalytics{
		platforms: []repositories.PlatformTotal{
			{Name: "Spotify", APIName: "spotify", Streams: 900, RevenueE4: 30000},
			{Name: "Bandcamp", APIName: "bandcamp", Streams: 100, RevenueE4: 70000},
		},
	}
	service := NewService(analytics, "USD")

	t.Run("streams", func(t *testing.T) {
		shares, err := service.StreamsByPlatform("artist")
		if err != nil {
			t.Fatalf("StreamsByPlatform failed: %v", err)
		}
		if shares[0].PlatformName != "Spotify" || shares[0].Percentage != 90 {
			t.Errorf("unexpected first share: %+v", shares[0])
		}
	})

	t.Run("revenue sorted by revenue", func(t *testing.T) {
		revenue, err := service.RevenueByPlatform("artist")
		if err != nil {
			t.Fatalf("RevenueByPlatform failed: %v", err)
		}
		if revenue[0].PlatformName != "Bandcamp" || revenue[0].Percentage != 70 {
			t.Errorf("expected Bandcamp first with 70%%, got %+v", revenue[0])
		}
		if revenue[1].Revenue.String() != "3.00" {
			t.Errorf("expected 3.00, got %s", revenue[1].Revenue)
		}
	})
}

func TestTopTracks(t *testing.T) {
	tracks := make([]repositories.TrackTotal, 150)
	for i := range tracks {
		tracks[i] = repositories.TrackTotal{Name: "Track", Streams: int64(150 - i)}
	}
	analytics := &fakeAnalytics{tracks: tracks}
	service := NewService(analytics, "USD")

	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"default", 0, DefaultTopTracks},
		{"negative", -3, DefaultTopTracks},
		{"explicit", 5, 5},
		{"capped", 500, MaxTopTracks},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := service.TopTracks("artist", tt.limit)
			if err != nil {
				t.Fatalf("TopTracks failed: %v", err)
			}
			if len(got) != tt.want || analytics.limit != tt.want {
				t.Errorf("expected %d tracks, got %d (queried %d)", tt.want, len(got), analytics.limit)
			}
			if got[0].Rank != 1 || got[len(got)-1].Rank != tt.want {
				t.Errorf("unexpected ranks %d..%d", got[0].Rank, got[len(got)-1].Rank)
			}
		})
	}
}

func TestStreamsOverTime(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	t.Run("passes the range through", func(t *testing.T) {
		analytics := &fakeAnalytics{points: []repositories.TimePoint{{Period: "2024-01-01", Streams: 10, RevenueE4: 400}}}

		series, err := NewService(analytics, "USD").StreamsOverTime("artist", repositories.BucketMonth, &from, &to)
		if err != nil {
			t.Fatalf("StreamsOverTime failed: %v", err)
		}
		if analytics.filter.From == nil || !analytics.filter.From.Equal(from) {
			t.Errorf("expected filter from %s, got %v", from, analytics.filter.From)
		}
		if series.From != "2024-01-01" || series.To != "2024-03-31" {
			t.Errorf("unexpected range %s..%s", series.From, series.To)
		}
		if len(series.Points) != 1 || series.Points[0].Revenue.String() != "0.04" {
			t.Errorf("unexpected points %+v", series.Points)
		}
	})

	t.Run("rejects an inverted range", func(t *testing.T) {
		_, err := NewService(&fakeAnalytics{}, "USD").StreamsOverTime("artist", repositories.BucketDay, &to, &from)
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestServiceWithDatabase(t *testing.T) {
	db := tu.NewTestDB(t)
	artist := tu.CreateArtist(t, db, "nova")

	report := tu.NewReport("Track", "Album", "Platform", "Period End", "Streams", "Revenue").
		Row("Skyline", "Night Drive", "Spotify", "2024-01-31", "1000", "4.0000").
		Row("Skyline", "Night Drive", "Apple Music", "2024-01-31", "500", "3.5000").
		Row("Harbor", "Night Drive", "Spotify", "2024-02-29", "250", "1.0000")

	engine := tasks.NewImportEngine(tasks.NewStores(db), tasks.ImportOptions{}, nil)
	if _, err := engine.Run(context.Background(), nil, artist, "report.csv", report.Reader()); err != nil {
		t.Fatalf("failed to import report: %v", err)
	}

	service := NewService(repositories.NewAnalyticsRepository(db), "USD")

	t.Run("summary", func(t *testing.T) {
		summary, err := service.Summary(artist.ID())
		if err != nil {
			t.Fatalf("Summary failed: %v", err)
		}
		if summary.TotalStreams != 1750 || summary.TotalRevenue.String() != "8.50" {
			t.Errorf("unexpected totals: %d %s", summary.TotalStreams, summary.TotalRevenue)
		}
		if summary.TotalAlbums != 1 || summary.TotalTracks != 2 {
			t.Errorf("unexpected counts: %d albums %d tracks", summary.TotalAlbums, summary.TotalTracks)
		}
		if len(summary.PlatformBreakdown) != 2 || summary.PlatformBreakdown[0].Percentage != 71 {
			t.Errorf("unexpected breakdown: %+v", summary.PlatformBreakdown)
		}
	})

	t.Run("profile stats", func(t *testing.T) {
		stats, err := service.ArtistProfileStats(artist.ID())
		if err != nil {
			t.Fatalf("ArtistProfileStats failed: %v", err)
		}
		if stats.TotalTracks != 2 || stats.TotalStreams != 1750 || stats.TotalPlatforms != 2 {
			t.Errorf("unexpected stats: %+v", stats)
		}
	})

	t.Run("top tracks", func(t *testing.T) {
		tracks, err := service.TopTracks(artist.ID(), 0)
		if err != nil {
			t.Fatalf("TopTracks failed: %v", err)
		}
		if len(tracks) != 2 || tracks[0].TrackName != "Skyline" || tracks[0].TopPlatform != "Spotify" {
			t.Errorf("unexpected tracks: %+v", tracks)
		}
	})

	t.Run("monthly series", func(t *testing.T) {
		series, err := service.StreamsOverTime(artist.ID(), repositories.BucketMonth, nil, nil)
		if err != nil {
			t.Fatalf("StreamsOverTime failed: %v", err)
		}
		if len(series.Points) != 2 || series.Points[0].Period != "2024-01-01" || series.Points[1].Streams != 250 {
			t.Errorf("unexpected points: %+v", series.Points)
		}
	})
}
