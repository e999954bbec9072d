package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/royalty/internal/models"
	"github.com/desertthunder/royalty/internal/repositories"
	"github.com/desertthunder/royalty/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	styles     *Palette
	db         *sql.DB
	now        func() time.Time
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	DB         *sql.DB // Already migrated database; opened from config when nil
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		styles:     DefaultPalette(),
		db:         opts.DB,
		now:        time.Now,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, serveCommand, artistCommand, importCommand, reportCommand, exportCommand, insightsCommand, migrateCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before loads the configuration named by --config and applies the log level.
//
// A missing config file is not an error: defaults and ROYALTY_* overrides are used instead.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}

	config, err := r.loadConfig()
	if err != nil {
		return ctx, err
	}
	r.config = config

	level := config.Log.Level
	if override := cmd.String("log-level"); override != "" {
		level = override
	}
	shared.SetLogLevel(r.logger, shared.ParseLogLevel(level))

	return log.WithContext(ctx, r.logger), nil
}

func (r *Runner) loadConfig() (*shared.Config, error) {
	if r.configPath != "" {
		if _, err := os.Stat(r.configPath); err == nil {
			return shared.LoadConfig(r.configPath)
		}
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
	}

	config := shared.DefaultConfig()
	if err := shared.ApplyEnv(config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// database opens and migrates the configured database on first use.
func (r *Runner) database() (*sql.DB, error) {
	return r.open(true)
}

// open opens the configured database once. Later calls return the same handle.
func (r *Runner) open(migrate bool) (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if migrate {
		applied, err := shared.RunMigrations(db)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		if applied > 0 {
			r.logger.Info("applied migrations", "count", applied, "path", r.config.Database.Path)
		}
	}

	r.db = db
	return db, nil
}

// Close releases the database, if one was opened.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// artist resolves the --artist flag to a stored artist.
func (r *Runner) artist(cmd *cli.Command) (*models.Artist, error) {
	username := cmd.String("artist")
	if username == "" {
		return nil, fmt.Errorf("%w: --artist is required", shared.ErrMissingArgument)
	}

	db, err := r.database()
	if err != nil {
		return nil, err
	}

	artist, err := repositories.NewArtistRepository(db).GetByUsername(username)
	if err != nil {
		return nil, fmt.Errorf("artist %q: %w", username, err)
	}
	return artist, nil
}

// dateRange reads the optional --from and --to flags.
func dateRange(cmd *cli.Command) (repositories.Filter, error) {
	var filter repositories.Filter
	for name, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		value := cmd.String(name)
		if value == "" {
			continue
		}
		t, err := models.ParseDate(value)
		if err != nil {
			return filter, fmt.Errorf("%w: --%s must be a YYYY-MM-DD date", shared.ErrInvalidFlag, name)
		}
		*dst = &t
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return filter, fmt.Errorf("%w: --from is after --to", shared.ErrInvalidFlag)
	}
	return filter, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("%s\n", r.styles.Title(title))
}
