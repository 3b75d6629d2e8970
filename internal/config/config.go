// Package config loads settings from defaults, an optional YAML file, a .env
// file and the environment, in that order of increasing precedence. Command
// line flags are applied on top by the CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Extract   ExtractConfig   `yaml:"extract"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	LLM       LLMConfig       `yaml:"llm"`
	Log       LogConfig       `yaml:"log"`
	Server    ServerConfig    `yaml:"server"`
}

type DatabaseConfig struct {
	Driver       string `yaml:"driver"`        // sqlite | pgx
	DSN          string `yaml:"dsn"`           // overrides resources_dir/file
	ResourcesDir string `yaml:"resources_dir"` // default: resources
	File         string `yaml:"file"`          // default: normanpd.db
}

type FetchConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
	WorkDir   string        `yaml:"work_dir"` // transient downloads; default os.TempDir()
}

type ExtractConfig struct {
	PdftotextPath string `yaml:"pdftotext_path"`
	HeaderMarker  string `yaml:"header_marker"`
}

type TelemetryConfig struct {
	OTLPEndpoint    string `yaml:"otlp_endpoint"`
	ServiceName     string `yaml:"service_name"`
	MetricsTextfile string `yaml:"metrics_textfile"`
}

type LLMConfig struct {
	APIKey string `yaml:"-"`
	Model  string `yaml:"model"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

func Default() Config {
	return Config{
		Database: DatabaseConfig{
			Driver:       "sqlite",
			ResourcesDir: "resources",
			File:         "normanpd.db",
		},
		Fetch: FetchConfig{
			Timeout: 2 * time.Minute,
		},
		Extract: ExtractConfig{
			HeaderMarker: "Date / Time",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "normanpd",
		},
		LLM: LLMConfig{
			Model: "claude-sonnet-4-5",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: ":8090",
		},
	}
}

// Load reads path (if non-empty) over the defaults, then .env and the
// environment. A missing .env is fine; a missing config file is not.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		blob, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(blob, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	applyEnv(&cfg)
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) {
	cfg.Database.Driver = getEnv("NORMANPD_DB_DRIVER", cfg.Database.Driver)
	cfg.Database.DSN = getEnv("NORMANPD_DB_DSN", cfg.Database.DSN)
	cfg.Database.ResourcesDir = getEnv("NORMANPD_RESOURCES_DIR", cfg.Database.ResourcesDir)
	cfg.Fetch.Timeout = getEnvAsDuration("NORMANPD_HTTP_TIMEOUT", cfg.Fetch.Timeout)
	cfg.Fetch.UserAgent = getEnv("NORMANPD_USER_AGENT", cfg.Fetch.UserAgent)
	cfg.Fetch.WorkDir = getEnv("NORMANPD_WORK_DIR", cfg.Fetch.WorkDir)
	cfg.Extract.PdftotextPath = getEnv("PDFTOTEXT_PATH", cfg.Extract.PdftotextPath)
	cfg.Telemetry.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Telemetry.OTLPEndpoint)
	cfg.Telemetry.MetricsTextfile = getEnv("NORMANPD_METRICS_TEXTFILE", cfg.Telemetry.MetricsTextfile)
	cfg.LLM.APIKey = getEnv("ANTHROPIC_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.Model = getEnv("NORMANPD_LLM_MODEL", cfg.LLM.Model)
	cfg.Log.Level = getEnv("NORMANPD_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("NORMANPD_LOG_FORMAT", cfg.Log.Format)
	cfg.Server.Addr = getEnv("NORMANPD_ADDR", cfg.Server.Addr)
}

// DSN is the explicit DSN, or resources_dir/file for SQLite.
func (c Config) DSN() string {
	if strings.TrimSpace(c.Database.DSN) != "" {
		return c.Database.DSN
	}
	return filepath.Join(c.Database.ResourcesDir, c.Database.File)
}

func (c Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.DSN == "" && c.Database.File == "" {
			return errors.New("database.file is required for sqlite")
		}
	case "pgx":
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required for pgx")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Fetch.Timeout < 0 {
		return errors.New("fetch.timeout must not be negative")
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported log format %q", c.Log.Format)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
