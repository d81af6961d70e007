package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the default config file name inside a project directory.
const FileName = "banktx.yaml"

// DSNEnv overrides store.dsn when set.
const DSNEnv = "BANKTX_DSN"

// Store drivers.
const (
	DriverFile     = "file"
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Config represents the top-level banktx.yaml configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
	Display DisplayConfig `yaml:"display"`
	Log     LogConfig     `yaml:"log"`
	Import  ImportConfig  `yaml:"import"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	BodyLimit int    `yaml:"body_limit"` // bytes
}

// StoreConfig selects and locates the transaction store.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path,omitempty"`
	DSN    string `yaml:"dsn,omitempty"`
}

// DisplayConfig controls how stored transactions are rendered.
type DisplayConfig struct {
	TimeZone          string `yaml:"time_zone"`
	TimeLayout        string `yaml:"time_layout"`
	GroupingSeparator string `yaml:"grouping_separator"`
	DecimalSeparator  string `yaml:"decimal_separator"`
	FractionDigits    int32  `yaml:"fraction_digits"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// ImportConfig locates the import inbox and the import audit log.
type ImportConfig struct {
	Inbox   string `yaml:"inbox"`
	LogFile string `yaml:"log_file"`
}

// Load reads a banktx.yaml file from disk. Missing keys keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if dsn := os.Getenv(DSNEnv); dsn != "" {
		cfg.Store.DSN = dsn
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new project.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:      ":8080",
			BodyLimit: 4 * 1024 * 1024,
		},
		Store: StoreConfig{
			Driver: DriverFile,
			Path:   "data/transactions.csv",
		},
		Display: DisplayConfig{
			TimeZone:          "UTC",
			TimeLayout:        "2006-01-02 15:04:05 MST",
			GroupingSeparator: " ",
			DecimalSeparator:  ".",
			FractionDigits:    2,
		},
		Log: LogConfig{
			Level:   "info",
			Console: true,
		},
		Import: ImportConfig{
			Inbox:   "import",
			LogFile: "logs/import-log.csv",
		},
	}
}

// Validate reports every setting that cannot be used as-is.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case DriverFile:
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store.path is required for the file driver"))
		}
	case DriverMemory:
	case DriverPostgres:
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store.dsn (or %s) is required for the postgres driver", DSNEnv))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}

	if _, err := time.LoadLocation(c.Display.TimeZone); err != nil {
		errs = append(errs, fmt.Errorf("display.time_zone: %w", err))
	}
	if c.Display.FractionDigits < 0 {
		errs = append(errs, fmt.Errorf("display.fraction_digits must not be negative, got %d", c.Display.FractionDigits))
	}
	if c.Server.BodyLimit < 0 {
		errs = append(errs, fmt.Errorf("server.body_limit must not be negative, got %d", c.Server.BodyLimit))
	}

	return errors.Join(errs...)
}
