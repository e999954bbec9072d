package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/desertthunder/royalty/internal/insights"
	"github.com/desertthunder/royalty/internal/repositories"
	"github.com/desertthunder/royalty/internal/shared"
	"github.com/urfave/cli/v3"
)

func (r *Runner) insights() (*insights.Service, error) {
	db, err := r.database()
	if err != nil {
		return nil, err
	}
	return insights.NewService(repositories.NewInsightRepository(db), r.logger), nil
}

// readObservations accepts either a bare JSON array or an object with an "observations" array.
func readObservations(path string) ([]insights.Observation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var observations []insights.Observation
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &observations)
	} else {
		var wrapped struct {
			Observations []insights.Observation `json:"observations"`
		}
		err = json.Unmarshal(trimmed, &wrapped)
		observations = wrapped.Observations
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not valid insight JSON: %v", shared.ErrInvalidInput, path, err)
	}
	return observations, nil
}

// InsightsImport records the observations in a JSON file.
func (r *Runner) InsightsImport(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: path to an insights JSON file", shared.ErrMissingArgument)
	}

	observations, err := readObservations(path)
	if err != nil {
		return err
	}

	artist, err := r.artist(cmd)
	if err != nil {
		return err
	}
	svc, err := r.insights()
	if err != nil {
		return err
	}

	result, err := svc.Record(artist.ID(), observations)
	if err != nil {
		return err
	}

	r.writePlain("%s recorded %d insight(s)", r.styles.OK("✓"), result.Recorded)
	if result.Skipped > 0 {
		r.writePlain(", %s", r.styles.Warn(fmt.Sprintf("skipped %d", result.Skipped)))
	}
	return r.writePlain("\n")
}

// InsightsReport prints per platform coverage and the best performing tracks.
func (r *Runner) InsightsReport(ctx context.Context, cmd *cli.Command) error {
	artist, err := r.artist(cmd)
	if err != nil {
		return err
	}
	svc, err := r.insights()
	if err != nil {
		return err
	}

	report, err := svc.Report(artist.ID())
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(report, true)
	}

	r.writePlainHeader("Insights: " + artist.DisplayName())
	if len(report.ByPlatform) == 0 {
		return r.writePlain("%s\n", r.styles.Warn("No insights recorded yet."))
	}
	r.writePlain("Tracks tracked: %d\n", report.Summary.TotalTracksTracked)
	if report.Summary.LatestUpdate != nil {
		r.writePlain("Latest update:  %s\n", report.Summary.LatestUpdate.Format("2006-01-02 15:04"))
	}
	r.writePlain("\n")

	rows := [][]string{}
	for _, platform := range report.Summary.PlatformsAvailable {
		byType := report.TopPerformers[platform]
		types := make([]string, 0, len(byType))
		for t := range byType {
			types = append(types, t)
		}
		sort.Strings(types)

		stats := report.ByPlatform[platform]
		for _, t := range types {
			best := byType[t]
			rows = append(rows, []string{
				platform,
				strconv.Itoa(stats.TracksTracked),
				t,
				best.TrackName,
				strconv.FormatFloat(best.Value, 'f', -1, 64),
			})
		}
	}
	return r.writePlain("%s\n", r.styles.Table([]string{"Platform", "Tracks", "Insight", "Best track", "Value"}, rows))
}
