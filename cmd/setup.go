package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/desertthunder/royalty/internal/server"
	"github.com/desertthunder/royalty/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := r.open(false)
	if err != nil {
		return err
	}

	r.logger.Info("running database migrations")
	applied, err := shared.RunMigrations(db)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	return r.writePlain("%s applied %d migration(s) to %s\n", r.styles.OK("✓"), applied, r.config.Database.Path)
}

// SetupConfig writes the example configuration to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := r.configPath
	if path == "" {
		path = "config.toml"
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", path)
	r.writePlain("%s wrote %s\n", r.styles.OK("✓"), path)
	r.writePlain("%s\n", r.styles.Help("Values can be overridden with "+shared.EnvPrefix+"* environment variables."))
	return nil
}

// Serve runs the HTTP API until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if host := cmd.String("host"); host != "" {
		r.config.Server.Host = host
	}
	if port := cmd.Int("port"); port != 0 {
		r.config.Server.Port = int(port)
	}
	if err := r.config.Validate(); err != nil {
		return err
	}

	db, err := r.database()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return server.New(r.config, db, r.logger).ListenAndServe(ctx)
}

// MigrateStatus lists every known migration and whether it has been applied.
func (r *Runner) MigrateStatus(ctx context.Context, cmd *cli.Command) error {
	db, err := r.open(false)
	if err != nil {
		return err
	}

	states, err := shared.MigrationStatus(db)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(states))
	for _, s := range states {
		applied := r.styles.Warn("pending")
		if s.AppliedAt != nil {
			applied = s.AppliedAt.Format("2006-01-02 15:04:05")
		}
		rows = append(rows, []string{fmt.Sprintf("%04d", s.Version), s.Name, applied})
	}

	r.writePlainHeader("Migrations")
	return r.writePlain("%s\n", r.styles.Table([]string{"Version", "Name", "Applied"}, rows))
}

// MigrateRollback reverts the most recent migration.
func (r *Runner) MigrateRollback(ctx context.Context, cmd *cli.Command) error {
	db, err := r.open(false)
	if err != nil {
		return err
	}

	version, err := shared.RollbackMigration(db)
	if err != nil {
		return err
	}

	r.logger.Info("rolled back migration", "version", version)
	return r.writePlain("%s rolled back migration %04d\n", r.styles.OK("✓"), version)
}
