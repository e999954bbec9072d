package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/royalty/internal/dashboard"
	"github.com/desertthunder/royalty/internal/formatter"
	"github.com/desertthunder/royalty/internal/repositories"
	"github.com/urfave/cli/v3"
)

func (r *Runner) dashboard() (*dashboard.Service, error) {
	db, err := r.database()
	if err != nil {
		return nil, err
	}
	return dashboard.NewService(repositories.NewAnalyticsRepository(db), r.config.Ingest.DefaultCurrency), nil
}

// ReportSummary prints totals, the platform breakdown and the leading tracks.
func (r *Runner) ReportSummary(ctx context.Context, cmd *cli.Command) error {
	artist, err := r.artist(cmd)
	if err != nil {
		return err
	}
	dash, err := r.dashboard()
	if err != nil {
		return err
	}

	summary, err := dash.Summary(artist.ID())
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(summary, true)
	}

	top, err := dash.TopTracks(artist.ID(), int(cmd.Int("limit")))
	if err != nil {
		return err
	}
	report := formatter.SummaryReport{Artist: artist.DisplayName(), Summary: summary, TopTracks: top}

	switch {
	case cmd.Bool("markdown"):
		return r.writePlain("%s", formatter.ExportToMarkdown(report))
	case cmd.Bool("text"):
		return r.writePlain("%s", formatter.ExportToText(report))
	}

	r.writePlainHeader("Royalty summary: " + report.Artist)
	r.writePlain("Streams  %s\n", r.styles.OK(fmt.Sprint(summary.TotalStreams)))
	r.writePlain("Revenue  %s\n", r.styles.OK(formatter.FormatMoney(summary.TotalRevenue.Decimal, summary.Currency)))
	r.writePlain("Albums   %d\nTracks   %d\n\n", summary.TotalAlbums, summary.TotalTracks)

	if len(summary.PlatformBreakdown) == 0 {
		return r.writePlain("%s\n", r.styles.Warn("No statements imported yet."))
	}

	rows := make([][]string, 0, len(summary.PlatformBreakdown))
	for _, p := range summary.PlatformBreakdown {
		rows = append(rows, []string{
			p.PlatformName,
			fmt.Sprint(p.Streams),
			formatter.FormatMoney(p.Revenue.Decimal, summary.Currency),
			fmt.Sprintf("%d%%", p.Percentage),
		})
	}
	r.writePlain("%s\n", r.styles.Table([]string{"Platform", "Streams", "Revenue", "Share"}, rows))

	if len(top) > 0 {
		r.writePlainln("%s", r.styles.Title("Top tracks"))
		r.writePlain("%s\n", r.trackTable(top, summary.Currency))
	}
	return nil
}

// ReportTopTracks prints tracks ranked by streams.
func (r *Runner) ReportTopTracks(ctx context.Context, cmd *cli.Command) error {
	artist, err := r.artist(cmd)
	if err != nil {
		return err
	}
	dash, err := r.dashboard()
	if err != nil {
		return err
	}

	top, err := dash.TopTracks(artist.ID(), int(cmd.Int("limit")))
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(top, true)
	}

	if len(top) == 0 {
		return r.writePlain("%s\n", r.styles.Warn("No tracks with statements yet."))
	}
	r.writePlainHeader(fmt.Sprintf("Top %d tracks: %s", len(top), artist.DisplayName()))
	return r.writePlain("%s\n", r.trackTable(top, dash.Currency()))
}

func (r *Runner) trackTable(tracks []dashboard.TrackStats, currency string) string {
	rows := make([][]string, 0, len(tracks))
	for _, t := range tracks {
		rows = append(rows, []string{
			fmt.Sprint(t.Rank),
			t.TrackName,
			t.Album,
			fmt.Sprint(t.Streams),
			formatter.FormatMoney(t.Revenue.Decimal, currency),
			t.TopPlatform,
		})
	}
	return r.styles.Table([]string{"#", "Track", "Album", "Streams", "Revenue", "Top platform"}, rows)
}

// Export writes the artist's statements as CSV or JSON.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	filter, err := dateRange(cmd)
	if err != nil {
		return err
	}
	artist, err := r.artist(cmd)
	if err != nil {
		return err
	}
	db, err := r.database()
	if err != nil {
		return err
	}

	rows, err := repositories.NewStatementRepository(db).ListByArtist(artist.ID(), filter)
	if err != nil {
		return err
	}

	now := r.now()
	data, err := formatter.Export(format, artist.Username(), rows, now)
	if err != nil {
		return err
	}

	path := cmd.String("output")
	if path == "" {
		path = format.Filename(artist.Username(), now)
	}
	if err := formatter.WriteExport(path, data); err != nil {
		return err
	}

	r.logger.Info("exported statements", "artist", artist.Username(), "rows", len(rows), "path", path)
	return r.writePlain("%s exported %d statement(s) to %s\n", r.styles.OK("✓"), len(rows), path)
}
