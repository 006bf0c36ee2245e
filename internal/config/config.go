// Package config provides layered configuration for basketlift.
//
// Values are resolved in order of increasing priority: built-in defaults, an
// optional YAML file, then BASKETLIFT_* environment variables. For example
// BASKETLIFT_ANALYSIS_MIN_SUPPORT=0.05 overrides analysis.min_support.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix is the prefix of every environment variable read by Load.
	EnvPrefix = "BASKETLIFT_"

	// PathEnvVar overrides the config file location.
	PathEnvVar = "BASKETLIFT_CONFIG"
)

var (
	// ErrInvalidConfig is returned when a loaded configuration fails validation.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConfigNotFound is returned when an explicitly requested file does not exist.
	ErrConfigNotFound = errors.New("config file not found")
)

// Config is the full basketlift configuration.
type Config struct {
	Analysis AnalysisConfig `koanf:"analysis"`
	Storage  StorageConfig  `koanf:"storage"`
	Stream   StreamConfig   `koanf:"stream"`
	Report   ReportConfig   `koanf:"report"`
	Columns  ColumnsConfig  `koanf:"columns"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// AnalysisConfig holds rule thresholds and ranking defaults.
type AnalysisConfig struct {
	MinSupport    float64 `koanf:"min_support" validate:"gte=0,lte=1"`
	MinConfidence float64 `koanf:"min_confidence" validate:"gte=0,lte=1"`
	TopN          int     `koanf:"top_n" validate:"gte=1"`
	Metric        string  `koanf:"metric" validate:"oneof=lift confidence support"`
}

// StorageConfig locates the SQLite database. An empty DBPath means
// DataDir()/basketlift.db.
type StorageConfig struct {
	DBPath string `koanf:"db_path"`
}

// StreamConfig configures the incremental feed.
type StreamConfig struct {
	Path         string        `koanf:"path"`
	OffsetPath   string        `koanf:"offset_path"`
	PollInterval time.Duration `koanf:"poll_interval" validate:"gt=0"`
	BatchSize    int           `koanf:"batch_size" validate:"gte=1"`
}

// ReportConfig configures report output.
type ReportConfig struct {
	OutputDir string `koanf:"output_dir"`
}

// ColumnsConfig names the source columns of line-item files.
type ColumnsConfig struct {
	TransactionID string `koanf:"transaction_id" validate:"required"`
	ItemID        string `koanf:"item_id" validate:"required"`
	Name          string `koanf:"name"`
	Quantity      string `koanf:"quantity"`
	UnitPrice     string `koanf:"unit_price"`
	PurchasedAt   string `koanf:"purchased_at"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error disabled off"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			MinSupport:    0.01,
			MinConfidence: 0.1,
			TopN:          10,
			Metric:        "lift",
		},
		Stream: StreamConfig{
			PollInterval: 2 * time.Second,
			BatchSize:    1000,
		},
		Report: ReportConfig{
			OutputDir: "reports",
		},
		Columns: ColumnsConfig{
			TransactionID: "transaction_id",
			ItemID:        "product_id",
			Name:          "product_name",
			Quantity:      "quantity",
			UnitPrice:     "unit_price",
			PurchasedAt:   "purchased_at",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds the configuration. If path is non-empty the file must exist;
// otherwise the first file found by FindFile is used, if any.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
	} else {
		path = FindFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path as YAML, creating parent directories. The file
// loads back with Load.
func Save(path string, cfg *Config) error {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(cfg, "koanf"), nil); err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	// Durations are written as "2s", not nanoseconds.
	if err := k.Set("stream.poll_interval", cfg.Stream.PollInterval.String()); err != nil {
		return err
	}

	data, err := k.Marshal(yaml.Parser())
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// FindFile returns the first config file that exists among BASKETLIFT_CONFIG,
// ./basketlift.yaml and Dir()/config.yaml, or "" if there is none.
func FindFile() string {
	candidates := []string{os.Getenv(PathEnvVar), "basketlift.yaml"}
	if dir, err := Dir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, "config.yaml"))
	}
	for _, p := range candidates {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envTransform maps BASKETLIFT_SECTION_KEY to section.key. The section is
// everything up to the first underscore after the prefix.
//
//	BASKETLIFT_ANALYSIS_MIN_SUPPORT -> analysis.min_support
//	BASKETLIFT_STORAGE_DB_PATH      -> storage.db_path
func envTransform(key string) string {
	if key == PathEnvVar {
		return ""
	}
	rest := strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	section, field, ok := strings.Cut(rest, "_")
	if !ok || section == "" || field == "" {
		return ""
	}
	return section + "." + field
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and returns an error wrapping
// ErrInvalidConfig on failure.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fieldRule(fe)))
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}

func fieldRule(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}

// Dir returns the basketlift config directory, respecting XDG_CONFIG_HOME.
// Defaults to ~/.config/basketlift.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "basketlift"), nil
}

// DataDir returns ~/.basketlift, where the database and stream offsets live
// unless configured otherwise.
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".basketlift"), nil
}
