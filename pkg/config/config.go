// Package config loads and validates treestore configuration from a YAML file
// and TREESTORE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/treestore/pkg/safeconv"
)

// Sentinel validation errors.
var (
	ErrInvalidPort         = errors.New("invalid server port")
	ErrInvalidPageSize     = errors.New("tree page size must be positive")
	ErrEmptyDisplayField   = errors.New("tree display field must not be empty")
	ErrInvalidMaxSize      = errors.New("invalid import max size")
	ErrInvalidLogLevel     = errors.New("invalid log level")
	ErrInvalidLogFormat    = errors.New("log format must be json or text")
	ErrInvalidSampleRatio  = errors.New("sample ratio must be within [0, 1]")
	ErrInvalidServerTiming = errors.New("server timeouts must not be negative")
)

const (
	envPrefix  = "TREESTORE"
	configName = "treestore"
	maxPort    = 65535
)

// Config holds all treestore configuration.
type Config struct {
	Tree          TreeConfig          `mapstructure:"tree"`
	Import        ImportConfig        `mapstructure:"import"`
	Server        ServerConfig        `mapstructure:"server"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Snapshot      SnapshotConfig      `mapstructure:"snapshot"`
}

// TreeConfig configures the forest store.
type TreeConfig struct {
	DisplayField string `mapstructure:"display_field"`
	PageSize     int    `mapstructure:"page_size"`
	MultiSelect  bool   `mapstructure:"multi_select"`
	Cascade      bool   `mapstructure:"cascade"`
}

// SnapshotConfig names the file long-running modes restore from and save to.
// An empty Path disables snapshots.
type SnapshotConfig struct {
	Path string `mapstructure:"path"`
}

// ImportConfig limits imported documents.
type ImportConfig struct {
	// MaxSize is a human readable byte size such as "16MB".
	MaxSize string `mapstructure:"max_size"`
}

// MaxBytes parses MaxSize.
func (ic ImportConfig) MaxBytes() (int64, error) {
	size, err := humanize.ParseBytes(ic.MaxSize)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidMaxSize, ic.MaxSize, err)
	}

	limit, err := safeconv.Uint64ToInt64(size)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidMaxSize, ic.MaxSize, err)
	}

	return limit, nil
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Port            int           `mapstructure:"port"`
}

// Addr returns host:port.
func (sc ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", sc.Host, sc.Port)
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SlogLevel parses Level.
func (lc LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level

	err := level.UnmarshalText([]byte(lc.Level))
	if err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLogLevel, lc.Level)
	}

	return level, nil
}

// JSON reports whether logs are written as JSON.
func (lc LoggingConfig) JSON() bool {
	return strings.EqualFold(lc.Format, "json")
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	Environment  string  `mapstructure:"environment"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	Prometheus   bool    `mapstructure:"prometheus"`
}

// LoadConfig loads configuration from configPath, or from treestore.yaml in
// the usual locations when configPath is empty, then applies environment
// overrides such as TREESTORE_TREE_PAGE_SIZE.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("$HOME/.config/treestore")
		viperCfg.AddConfigPath("/etc/treestore")
	}

	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("tree.display_field", DefaultDisplayField)
	viperCfg.SetDefault("tree.page_size", DefaultPageSize)
	viperCfg.SetDefault("tree.multi_select", DefaultMultiSelect)
	viperCfg.SetDefault("tree.cascade", DefaultCascade)

	viperCfg.SetDefault("import.max_size", DefaultImportMaxSize)
	viperCfg.SetDefault("snapshot.path", "")

	viperCfg.SetDefault("server.host", DefaultServerHost)
	viperCfg.SetDefault("server.port", DefaultServerPort)
	viperCfg.SetDefault("server.read_timeout", "15s")
	viperCfg.SetDefault("server.write_timeout", "30s")
	viperCfg.SetDefault("server.idle_timeout", "60s")
	viperCfg.SetDefault("server.shutdown_timeout", "10s")

	viperCfg.SetDefault("logging.level", "info")
	viperCfg.SetDefault("logging.format", "text")

	viperCfg.SetDefault("observability.environment", "")
	viperCfg.SetDefault("observability.otlp_endpoint", "")
	viperCfg.SetDefault("observability.otlp_headers", "")
	viperCfg.SetDefault("observability.otlp_insecure", false)
	viperCfg.SetDefault("observability.sample_ratio", 0.0)
	viperCfg.SetDefault("observability.prometheus", true)
}

func validateConfig(config *Config) error {
	if strings.TrimSpace(config.Tree.DisplayField) == "" {
		return ErrEmptyDisplayField
	}

	if config.Tree.PageSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPageSize, config.Tree.PageSize)
	}

	if _, err := config.Import.MaxBytes(); err != nil {
		return err
	}

	if config.Server.Port <= 0 || config.Server.Port > maxPort {
		return fmt.Errorf("%w: %d", ErrInvalidPort, config.Server.Port)
	}

	if config.Server.ReadTimeout < 0 || config.Server.WriteTimeout < 0 ||
		config.Server.IdleTimeout < 0 || config.Server.ShutdownTimeout < 0 {
		return ErrInvalidServerTiming
	}

	if _, err := config.Logging.SlogLevel(); err != nil {
		return err
	}

	switch strings.ToLower(config.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, config.Logging.Format)
	}

	if config.Observability.SampleRatio < 0 || config.Observability.SampleRatio > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidSampleRatio, config.Observability.SampleRatio)
	}

	return nil
}
