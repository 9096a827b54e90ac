// Package config loads server configuration from defaults, an optional YAML
// file and TIMELINE_* environment variables, in that order of precedence
// (environment wins).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable, e.g. TIMELINE_SERVER_PORT.
const EnvPrefix = "TIMELINE"

// Config represents the complete application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Store     StoreConfig     `yaml:"store" envconfig:"STORE"`
	Export    ExportConfig    `yaml:"export" envconfig:"EXPORT"`
	Scheduler SchedulerConfig `yaml:"scheduler" envconfig:"SCHEDULER"`
	Timeline  TimelineConfig  `yaml:"timeline" envconfig:"TIMELINE"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
	AllowedOrigins  []string      `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	Demo            bool          `yaml:"demo" envconfig:"DEMO"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver     string         `yaml:"driver" envconfig:"DRIVER" validate:"oneof=memory sqlite postgres"`
	SQLitePath string         `yaml:"sqlite_path" envconfig:"SQLITE_PATH" validate:"required_if=Driver sqlite"`
	Postgres   PostgresConfig `yaml:"postgres" envconfig:"POSTGRES"`
}

// PostgresConfig connects with DSN, or to RDS with IAM auth when DSN is
// empty.
type PostgresConfig struct {
	DSN        string `yaml:"dsn" envconfig:"DSN"`
	RDSHost    string `yaml:"rds_host" envconfig:"RDS_HOST"`
	RDSPort    int    `yaml:"rds_port" envconfig:"RDS_PORT"`
	RDSUser    string `yaml:"rds_user" envconfig:"RDS_USER"`
	RDSDB      string `yaml:"rds_db" envconfig:"RDS_DB"`
	RDSRegion  string `yaml:"rds_region" envconfig:"RDS_REGION"`
	AWSProfile string `yaml:"aws_profile" envconfig:"AWS_PROFILE"`
}

// ExportConfig enables snapshot export to S3 when Bucket is set.
type ExportConfig struct {
	Bucket     string `yaml:"bucket" envconfig:"BUCKET"`
	Prefix     string `yaml:"prefix" envconfig:"PREFIX"`
	Region     string `yaml:"region" envconfig:"REGION"`
	AWSProfile string `yaml:"aws_profile" envconfig:"AWS_PROFILE"`
}

// SchedulerConfig drives the forced-selection refresher. It is on by
// default so forced current and latest selections follow the date; set
// TIMELINE_SCHEDULER_ENABLED=false to turn it off.
type SchedulerConfig struct {
	Enabled  bool          `yaml:"enabled" envconfig:"ENABLED"`
	Interval time.Duration `yaml:"interval" envconfig:"INTERVAL" validate:"required_if=Enabled true"`
}

// TimelineConfig holds defaults for new timelines.
type TimelineConfig struct {
	DefaultPreset string `yaml:"default_preset" envconfig:"DEFAULT_PRESET"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			AllowedOrigins:  []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Store:   StoreConfig{Driver: "sqlite", SQLitePath: "./timelines.db"},
		Scheduler: SchedulerConfig{
			Enabled:  true,
			Interval: time.Hour,
		},
		Timeline: TimelineConfig{DefaultPreset: "default"},
	}
}

// Load builds the configuration: defaults, then the YAML file at path if
// path is not empty, then the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// no default tags: unset variables leave the field alone
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// loadFromFile overlays the YAML file onto cfg. Keys missing from the file
// keep their current values.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
	})
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s: failed %s", strings.TrimPrefix(fe.Namespace(), "Config."), fe.Tag())
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}

	if c.Store.Driver == "postgres" && c.Store.Postgres.DSN == "" {
		p := c.Store.Postgres
		if p.RDSHost == "" || p.RDSUser == "" || p.RDSDB == "" || p.RDSRegion == "" {
			return errors.New("store.postgres: dsn or rds_host, rds_user, rds_db and rds_region are required")
		}
	}
	if c.Export.Bucket != "" && c.Export.Region == "" {
		return errors.New("export.region is required with export.bucket")
	}
	return nil
}

// ExportEnabled reports whether snapshots can be exported.
func (c *Config) ExportEnabled() bool { return c.Export.Bucket != "" }
