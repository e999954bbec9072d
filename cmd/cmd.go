// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// newApp builds the root command around r.
func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "royalty",
		Usage:   "Import royalty statements and serve artist analytics",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override the configured log level (debug, info, warn, error)",
			},
		},
		Before:   r.Before,
		Writer:   r.output,
		Commands: r.register(),
	}
}

func artistFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "artist",
		Aliases:  []string{"a"},
		Usage:    "Username of the artist",
		Required: true,
	}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{Name: "json", Usage: "Output raw JSON"}
}

func rangeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "from", Usage: "Only include statements ending on or after this date (YYYY-MM-DD)"},
		&cli.StringFlag{Name: "to", Usage: "Only include statements ending on or before this date (YYYY-MM-DD)"},
	}
}

// setupCommand handles setup operations for the database and configuration.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "config",
				Usage:  "Write an example config.toml to the --config path",
				Action: r.SetupConfig,
			},
		},
	}
}

// serveCommand runs the HTTP API.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the royalty analytics API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Usage: "Override server.host"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Override server.port"},
		},
		Action: r.Serve,
	}
}

// artistCommand manages artist accounts.
func artistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "artist",
		Usage: "Manage artist accounts",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create an artist and print its API token",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "username"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "Contact email", Required: true},
					&cli.StringFlag{Name: "display-name", Usage: "Public display name"},
					&cli.StringFlag{Name: "country", Usage: "Two letter country code"},
					jsonFlag(),
				},
				Action: r.ArtistCreate,
			},
			{
				Name:   "list",
				Usage:  "List artists",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.ArtistList,
			},
		},
	}
}

// importCommand loads statement reports from disk.
func importCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import royalty reports (CSV, TSV, XLSX) for an artist",
		ArgsUsage: "<files...>",
		Flags:     []cli.Flag{artistFlag()},
		Action:    r.Import,
	}
}

// reportCommand prints dashboard figures.
func reportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Print royalty reports",
		Commands: []*cli.Command{
			{
				Name:  "summary",
				Usage: "Totals and platform breakdown",
				Flags: []cli.Flag{
					artistFlag(),
					jsonFlag(),
					&cli.BoolFlag{Name: "markdown", Aliases: []string{"md"}, Usage: "Output Markdown"},
					&cli.BoolFlag{Name: "text", Usage: "Output unstyled plain text"},
					&cli.IntFlag{Name: "limit", Usage: "Top tracks to include", Value: 5},
				},
				Action: r.ReportSummary,
			},
			{
				Name:  "top-tracks",
				Usage: "Tracks ranked by streams",
				Flags: []cli.Flag{
					artistFlag(),
					jsonFlag(),
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Number of tracks (max 100)", Value: 10},
				},
				Action: r.ReportTopTracks,
			},
		},
	}
}

// exportCommand writes statements to a file.
func exportCommand(r *Runner) *cli.Command {
	flags := []cli.Flag{
		artistFlag(),
		&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "csv or json", Value: "csv"},
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output file path (defaults to a dated file name)"},
	}
	return &cli.Command{
		Name:   "export",
		Usage:  "Export royalty statements",
		Flags:  append(flags, rangeFlags()...),
		Action: r.Export,
	}
}

// insightsCommand records and reports playlist and chart observations.
func insightsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "insights",
		Usage: "Playlist and chart insights",
		Commands: []*cli.Command{
			{
				Name:  "import",
				Usage: "Record observations from a JSON file",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Flags:  []cli.Flag{artistFlag()},
				Action: r.InsightsImport,
			},
			{
				Name:   "report",
				Usage:  "Summary, per platform figures and top performers",
				Flags:  []cli.Flag{artistFlag(), jsonFlag()},
				Action: r.InsightsReport,
			},
		},
	}
}

// migrateCommand inspects and reverts schema migrations.
func migrateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Database migration commands",
		Commands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "List migrations and when they were applied",
				Action: r.MigrateStatus,
			},
			{
				Name:   "rollback",
				Usage:  "Revert the most recent migration",
				Action: r.MigrateRollback,
			},
		},
	}
}
