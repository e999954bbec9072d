package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "ROYALTY_"

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Database DatabaseConfig `toml:"database" envPrefix:"DATABASE_"`
	Server   ServerConfig   `toml:"server" envPrefix:"SERVER_"`
	Ingest   IngestConfig   `toml:"ingest" envPrefix:"INGEST_"`
	Log      LogConfig      `toml:"log" envPrefix:"LOG_"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path" env:"PATH"`
	MaxOpenConns int    `toml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns int    `toml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host                string   `toml:"host" env:"HOST"`
	Port                int      `toml:"port" env:"PORT"`
	CORSOrigins         []string `toml:"cors_origins" env:"CORS_ORIGINS" envSeparator:","`
	MaxUploadMB         int      `toml:"max_upload_mb" env:"MAX_UPLOAD_MB"`
	UploadRate          float64  `toml:"upload_rate" env:"UPLOAD_RATE"`   // uploads per second per artist
	UploadBurst         int      `toml:"upload_burst" env:"UPLOAD_BURST"` // uploads allowed back to back
	ReadTimeoutSeconds  int      `toml:"read_timeout_seconds" env:"READ_TIMEOUT_SECONDS"`
	WriteTimeoutSeconds int      `toml:"write_timeout_seconds" env:"WRITE_TIMEOUT_SECONDS"`
}

// Addr returns host:port for [net/http.Server].
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// IngestConfig controls the statement import pipeline.
type IngestConfig struct {
	DefaultCurrency  string `toml:"default_currency" env:"DEFAULT_CURRENCY"`
	MaxErrorLog      int    `toml:"max_error_log" env:"MAX_ERROR_LOG"`
	ProgressInterval int    `toml:"progress_interval" env:"PROGRESS_INTERVAL"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level" env:"LEVEL"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep their defaults and environment overrides are applied last.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := ApplyEnv(config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadEnvFiles loads the dotenv files that exist, in order, and returns how many were read.
func LoadEnvFiles(files ...string) (int, error) {
	existing := make([]string, 0, len(files))
	for _, file := range files {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}

	if len(existing) == 0 {
		return 0, nil
	}

	if err := godotenv.Load(existing...); err != nil {
		return 0, fmt.Errorf("failed to load env files: %w", err)
	}
	return len(existing), nil
}

// ApplyEnv overrides config values with ROYALTY_* environment variables.
func ApplyEnv(config *Config) error {
	if err := env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Validate checks the values the rest of the application relies on.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("%w: database.path is required", ErrInvalidConfig)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	if len(c.Ingest.DefaultCurrency) != 3 {
		return fmt.Errorf("%w: ingest.default_currency must be a 3 letter code", ErrInvalidConfig)
	}
	if c.Ingest.ProgressInterval <= 0 {
		c.Ingest.ProgressInterval = 50
	}
	if c.Ingest.MaxErrorLog <= 0 {
		c.Ingest.MaxErrorLog = 100
	}
	c.Ingest.DefaultCurrency = strings.ToUpper(c.Ingest.DefaultCurrency)
	return nil
}
