package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/royalty/internal/dashboard"
	"github.com/desertthunder/royalty/internal/shared"
	tu "github.com/desertthunder/royalty/internal/testing"
)

var reportHeader = []string{"Track", "Album", "Platform", "Period Start", "Period End", "Streams", "Revenue", "Currency"}

// testRunner returns a runner over an in-memory database and the buffer it writes to.
func testRunner(t *testing.T) (*Runner, *bytes.Buffer) {
	t.Helper()
	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Logger: shared.NewLogger(io.Discard),
		Output: output,
		DB:     tu.NewTestDB(t),
	})
	runner.now = func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) }
	return runner, output
}

// run executes args against a fresh command tree. The config path never exists so defaults apply.
func run(t *testing.T, r *Runner, args ...string) error {
	t.Helper()
	argv := append([]string{"royalty", "--config", filepath.Join(t.TempDir(), "missing.toml")}, args...)
	return newApp(r).Run(context.Background(), argv)
}

func mustRun(t *testing.T, r *Runner, args ...string) {
	t.Helper()
	if err := run(t, r, args...); err != nil {
		t.Fatalf("%s failed: %v", strings.Join(args, " "), err)
	}
}

func writeReport(t *testing.T, name string, report *tu.ReportBuilder) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	tu.MustWriteFile(t, path, report.Bytes())
	return path
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			db := tu.NewTestDB(t)

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "/test/path/config.toml",
				Logger:     logger,
				Output:     output,
				DB:         db,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.db != db {
				t.Error("expected db to be set")
			}
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: nil})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: nil})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: nil})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		names := map[string]bool{}
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			names[cmd.Name] = true
		}
		for _, want := range []string{"setup", "serve", "artist", "import", "report", "export", "insights", "migrate"} {
			if !names[want] {
				t.Errorf("expected %s command to be registered", want)
			}
		}
	})

	t.Run("loadConfig", func(t *testing.T) {
		t.Run("reads the config file when present", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			tu.MustWriteFile(t, path, []byte("[database]\npath = \"custom.db\"\n"))

			runner := NewRunner(RunnerOpts{ConfigPath: path})
			config, err := runner.loadConfig()
			if err != nil {
				t.Fatalf("loadConfig failed: %v", err)
			}
			if config.Database.Path != "custom.db" {
				t.Errorf("expected custom.db, got %s", config.Database.Path)
			}
		})

		t.Run("falls back to defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{ConfigPath: filepath.Join(t.TempDir(), "nope.toml")})
			config, err := runner.loadConfig()
			if err != nil {
				t.Fatalf("loadConfig failed: %v", err)
			}
			if config.Database.Path != shared.DefaultConfig().Database.Path {
				t.Errorf("expected default database path, got %s", config.Database.Path)
			}
		})
	})
}

func TestCommands(t *testing.T) {
	t.Run("setup config writes the example file", func(t *testing.T) {
		runner, output := testRunner(t)
		path := filepath.Join(t.TempDir(), "config.toml")

		if err := newApp(runner).Run(context.Background(), []string{"royalty", "--config", path, "setup", "config"}); err != nil {
			t.Fatalf("setup config failed: %v", err)
		}
		tu.AssertFileExists(t, path)
		if !strings.Contains(output.String(), path) {
			t.Errorf("expected path in output, got %q", output.String())
		}

		if err := newApp(runner).Run(context.Background(), []string{"royalty", "--config", path, "setup", "config"}); err == nil {
			t.Error("expected an error when the config already exists")
		}
	})

	t.Run("setup database on a file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "royalty.db")
		config := shared.DefaultConfig()
		config.Database.Path = path

		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Config: config, Logger: shared.NewLogger(io.Discard), Output: output})
		defer runner.Close()

		if err := runner.SetupDatabase(context.Background(), nil); err != nil {
			t.Fatalf("SetupDatabase failed: %v", err)
		}
		tu.AssertFileExists(t, path)
		if !strings.Contains(output.String(), "applied 3 migration(s)") {
			t.Errorf("expected migration count, got %q", output.String())
		}
	})

	t.Run("artist create and list", func(t *testing.T) {
		runner, output := testRunner(t)

		mustRun(t, runner, "artist", "create", "--email", "nova@example.com", "--display-name", "Nova", "--json", "nova")

		var created artistOutput
		if err := json.Unmarshal(output.Bytes(), &created); err != nil {
			t.Fatalf("failed to decode %q: %v", output.String(), err)
		}
		if created.Username != "nova" || created.DisplayName != "Nova" {
			t.Errorf("unexpected artist %+v", created)
		}
		if len(created.APIToken) != 64 {
			t.Errorf("expected a 64 character token, got %q", created.APIToken)
		}

		output.Reset()
		mustRun(t, runner, "artist", "list", "--json")

		var listed []artistOutput
		if err := json.Unmarshal(output.Bytes(), &listed); err != nil {
			t.Fatalf("failed to decode %q: %v", output.String(), err)
		}
		if len(listed) != 1 || listed[0].APIToken != "" {
			t.Errorf("expected one artist without a token, got %+v", listed)
		}
	})

	t.Run("artist create rejects a duplicate username", func(t *testing.T) {
		runner, _ := testRunner(t)
		mustRun(t, runner, "artist", "create", "--email", "a@example.com", "nova")

		err := run(t, runner, "artist", "create", "--email", "b@example.com", "nova")
		if !errors.Is(err, shared.ErrDuplicate) {
			t.Errorf("expected ErrDuplicate, got %v", err)
		}
	})

	t.Run("import then report", func(t *testing.T) {
		runner, output := testRunner(t)
		tu.CreateArtist(t, runner.db, "nova")

		january := writeReport(t, "january.csv", tu.NewReport(reportHeader...).
			Row("Skyline", "Night Drive", "Spotify", "2024-01-01", "2024-01-31", "1250", "5.00", "USD").
			Row("Harbor", "Night Drive", "Apple Music", "2024-01-01", "2024-01-31", "500", "3.50", "USD"))
		february := writeReport(t, "february.csv", tu.NewReport(reportHeader...).
			Row("Skyline", "Night Drive", "Spotify", "2024-01-01", "2024-01-31", "1250", "5.00", "USD").
			Row("Skyline", "Night Drive", "Spotify", "2024-02-01", "2024-02-29", "not a number", "1.00", "USD"))

		mustRun(t, runner, "import", "--artist", "nova", january, february)

		text := output.String()
		for _, want := range []string{"january.csv: completed", "february.csv: completed_with_errors", "1 duplicates"} {
			if !strings.Contains(text, want) {
				t.Errorf("expected %q in output:\n%s", want, text)
			}
		}

		output.Reset()
		mustRun(t, runner, "report", "summary", "--artist", "nova", "--json")

		var summary dashboard.Summary
		if err := json.Unmarshal(output.Bytes(), &summary); err != nil {
			t.Fatalf("failed to decode summary %q: %v", output.String(), err)
		}
		if summary.TotalStreams != 1750 {
			t.Errorf("expected 1750 streams, got %d", summary.TotalStreams)
		}
		if len(summary.PlatformBreakdown) != 2 || summary.PlatformBreakdown[0].Percentage != 71 {
			t.Errorf("unexpected breakdown %+v", summary.PlatformBreakdown)
		}

		output.Reset()
		mustRun(t, runner, "report", "summary", "--artist", "nova")
		for _, want := range []string{"Royalty summary: nova", "Spotify", "Apple Music", "Top tracks", "Skyline"} {
			if !strings.Contains(output.String(), want) {
				t.Errorf("expected %q in styled summary:\n%s", want, output.String())
			}
		}

		output.Reset()
		mustRun(t, runner, "report", "summary", "--artist", "nova", "--markdown")
		if !strings.HasPrefix(output.String(), "# Royalty summary: nova") {
			t.Errorf("expected markdown heading, got %q", output.String())
		}

		output.Reset()
		mustRun(t, runner, "report", "top-tracks", "--artist", "nova", "--limit", "1", "--json")

		var top []dashboard.TrackStats
		if err := json.Unmarshal(output.Bytes(), &top); err != nil {
			t.Fatalf("failed to decode top tracks %q: %v", output.String(), err)
		}
		if len(top) != 1 || top[0].TrackName != "Skyline" || top[0].Rank != 1 {
			t.Errorf("unexpected top tracks %+v", top)
		}
	})

	t.Run("import reports failed files and continues", func(t *testing.T) {
		runner, output := testRunner(t)
		tu.CreateArtist(t, runner.db, "nova")

		good := writeReport(t, "good.csv", tu.NewReport(reportHeader...).
			Row("Skyline", "", "Spotify", "2024-01-01", "2024-01-31", "10", "0.10", "USD"))
		bad := writeReport(t, "bad.csv", tu.NewReport("Song", "Plays"))

		err := run(t, runner, "import", "--artist", "nova", bad, filepath.Join(t.TempDir(), "absent.csv"), good)
		if err == nil {
			t.Fatal("expected an error for failed files")
		}
		if !errors.Is(err, shared.ErrMissingColumns) {
			t.Errorf("expected ErrMissingColumns in %v", err)
		}
		if !strings.Contains(err.Error(), "2 of 3 file(s) failed") {
			t.Errorf("unexpected error %v", err)
		}
		if !strings.Contains(output.String(), "good.csv: completed") {
			t.Errorf("expected the good file to import:\n%s", output.String())
		}
	})

	t.Run("import requires files and a known artist", func(t *testing.T) {
		runner, _ := testRunner(t)
		tu.CreateArtist(t, runner.db, "nova")

		if err := run(t, runner, "import", "--artist", "nova"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}

		path := writeReport(t, "r.csv", tu.NewReport(reportHeader...))
		if err := run(t, runner, "import", "--artist", "ghost", path); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("export writes csv", func(t *testing.T) {
		runner, output := testRunner(t)
		tu.CreateArtist(t, runner.db, "nova")
		report := writeReport(t, "r.csv", tu.NewReport(reportHeader...).
			Row("Skyline", "Night Drive", "Spotify", "2024-01-01", "2024-01-31", "1250", "5.00", "USD").
			Row("Harbor", "", "Spotify", "2024-02-01", "2024-02-29", "10", "0.10", "USD"))
		mustRun(t, runner, "import", "--artist", "nova", report)

		path := filepath.Join(t.TempDir(), "out", "statements.csv")
		output.Reset()
		mustRun(t, runner, "export", "--artist", "nova", "--to", "2024-01-31", "--output", path)

		content := tu.MustReadFile(t, path)
		if !strings.HasPrefix(content, "Track,Album,ISRC,Platform") {
			t.Errorf("expected csv header, got %q", content)
		}
		if !strings.Contains(content, "Skyline") || strings.Contains(content, "Harbor") {
			t.Errorf("expected only the January statement, got %q", content)
		}
		if !strings.Contains(output.String(), "exported 1 statement(s)") {
			t.Errorf("unexpected output %q", output.String())
		}
	})

	t.Run("export rejects bad flags", func(t *testing.T) {
		runner, _ := testRunner(t)
		tu.CreateArtist(t, runner.db, "nova")

		if err := run(t, runner, "export", "--artist", "nova", "--format", "xml"); err == nil {
			t.Error("expected an error for an unknown format")
		}
		err := run(t, runner, "export", "--artist", "nova", "--from", "2024-02-01", "--to", "2024-01-01")
		if !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})

	t.Run("insights import and report", func(t *testing.T) {
		runner, output := testRunner(t)
		tu.CreateArtist(t, runner.db, "nova")

		path := filepath.Join(t.TempDir(), "insights.json")
		tu.MustWriteFile(t, path, []byte(`{"observations": [
			{"platform": "Spotify", "track_name": "Skyline", "insight_type": "playlist_adds", "value": 12},
			{"platform": "Spotify", "track_name": "Harbor", "insight_type": "playlist_adds", "value": 30},
			{"platform": "Spotify", "track_name": "Future", "release_date": "2999-01-01"}
		]}`))

		mustRun(t, runner, "insights", "import", "--artist", "nova", path)
		if !strings.Contains(output.String(), "recorded 2 insight(s)") || !strings.Contains(output.String(), "skipped 1") {
			t.Errorf("unexpected output %q", output.String())
		}

		output.Reset()
		mustRun(t, runner, "insights", "report", "--artist", "nova", "--json")

		var report struct {
			TopPerformers map[string]map[string]struct {
				TrackName string `json:"track_name"`
			} `json:"top_performers"`
		}
		if err := json.Unmarshal(output.Bytes(), &report); err != nil {
			t.Fatalf("failed to decode report %q: %v", output.String(), err)
		}
		if got := report.TopPerformers["spotify"]["playlist_adds"].TrackName; got != "Harbor" {
			t.Errorf("expected Harbor as top performer, got %q (%+v)", got, report.TopPerformers)
		}
	})

	t.Run("insights import accepts a bare array", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "insights.json")
		tu.MustWriteFile(t, path, []byte(`[{"platform": "Deezer", "track_name": "Skyline", "insight_type": "chart_rank", "value": 4}]`))

		observations, err := readObservations(path)
		if err != nil {
			t.Fatalf("readObservations failed: %v", err)
		}
		if len(observations) != 1 || observations[0].Platform != "Deezer" {
			t.Errorf("unexpected observations %+v", observations)
		}

		tu.MustWriteFile(t, path, []byte(`{"observations": `))
		if _, err := readObservations(path); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("migrate status and rollback", func(t *testing.T) {
		runner, output := testRunner(t)

		mustRun(t, runner, "migrate", "rollback")
		if !strings.Contains(output.String(), "rolled back migration 0003") {
			t.Errorf("unexpected output %q", output.String())
		}

		output.Reset()
		mustRun(t, runner, "migrate", "status")
		text := output.String()
		if !strings.Contains(text, "create_insights") || !strings.Contains(text, "pending") {
			t.Errorf("expected the insights migration to be pending:\n%s", text)
		}
	})
}

func TestDateRange(t *testing.T) {
	runner, _ := testRunner(t)
	tu.CreateArtist(t, runner.db, "nova")

	err := run(t, runner, "export", "--artist", "nova", "--from", "01/02/2024")
	if !errors.Is(err, shared.ErrInvalidFlag) {
		t.Errorf("expected ErrInvalidFlag for a non ISO date, got %v", err)
	}
}
