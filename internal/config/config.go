package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/aliskhannn/image-compressor/internal/processor"
	"github.com/aliskhannn/image-compressor/internal/retry"
	"github.com/aliskhannn/image-compressor/internal/watch"
	"github.com/aliskhannn/image-compressor/internal/zlog"
)

// DefaultPath is read when no config file is given and it exists.
const DefaultPath = "./config/config.yml"

// EnvPrefix prefixes every environment override, e.g. IMGC_WATCH_SETTLE_DELAY.
const EnvPrefix = "IMGC"

// ErrInvalid is returned when the loaded configuration fails validation.
var ErrInvalid = errors.New("invalid configuration")

// Config holds the main configuration for the application.
type Config struct {
	Watch       Watch       `mapstructure:"watch"`
	Compression Compression `mapstructure:"compression"`
	Retry       Retry       `mapstructure:"retry"`
	Server      Server      `mapstructure:"server"`
	Storage     Storage     `mapstructure:"storage"`
	Kafka       Kafka       `mapstructure:"kafka"`
	Log         Log         `mapstructure:"log"`
}

// Watch holds the watch roots and event routing configuration.
type Watch struct {
	Roots        []string      `mapstructure:"roots" validate:"required,min=1,dive,required"`
	SettleDelay  time.Duration `mapstructure:"settle_delay" validate:"gte=0"` // Wait before reading a new file
	Coalesce     bool          `mapstructure:"coalesce"`                      // Drop events for paths already in flight
	ScanExisting bool          `mapstructure:"scan_existing"`                 // Compress images already present at start
	LockDir      string        `mapstructure:"lock_dir"`                      // Per-root lock files; empty disables locking
}

// Compression holds the artifact budget and quality search configuration.
type Compression struct {
	MaxSizeKB      int64  `mapstructure:"max_size_kb" validate:"gt=0"`
	MaxWidth       int    `mapstructure:"max_width" validate:"gt=0"`
	MaxHeight      int    `mapstructure:"max_height" validate:"gt=0"`
	InitialQuality int    `mapstructure:"initial_quality" validate:"min=1,max=100"`
	MinQuality     int    `mapstructure:"min_quality" validate:"min=1,max=100,ltefield=InitialQuality"`
	QualityStep    int    `mapstructure:"quality_step" validate:"min=1"`
	Search         string `mapstructure:"search" validate:"oneof=linear bisect"`
	Suffix         string `mapstructure:"suffix" validate:"required,excludesall=/\\"`
	AtomicWrite    bool   `mapstructure:"atomic_write"`
}

// Retry defines retry policy configuration.
type Retry struct {
	Attempts int           `mapstructure:"attempts" validate:"min=1"` // Total attempts per file
	Delay    time.Duration `mapstructure:"delay" validate:"gte=0"`    // Delay before the second attempt
	Backoff  float64       `mapstructure:"backoff" validate:"gte=1"`  // Backoff multiplier for delays
}

// Server holds HTTP server-related configuration.
type Server struct {
	HTTPPort string `mapstructure:"http_port"` // HTTP address to listen on; empty disables the status API
}

// Storage holds configuration for the optional artifact mirror.
type Storage struct {
	Enabled    bool   `mapstructure:"enabled"`
	Endpoint   string `mapstructure:"endpoint" validate:"required_if=Enabled true"`
	AccessKey  string `mapstructure:"access_key"`
	SecretKey  string `mapstructure:"secret_key"`
	BucketName string `mapstructure:"bucket_name" validate:"required_if=Enabled true"`
	Prefix     string `mapstructure:"prefix"` // Object name prefix inside the bucket
	UseSSL     bool   `mapstructure:"use_ssl"`
}

// Kafka holds configuration for the optional compression event stream.
type Kafka struct {
	Enabled bool     `mapstructure:"enabled"`
	Topic   string   `mapstructure:"topic" validate:"required_if=Enabled true"` // Kafka topic name
	Brokers []string `mapstructure:"brokers"`                                   // List of Kafka broker addresses
}

// Log holds logger configuration.
type Log struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
}

// flagKeys maps command line flags to the config keys they override.
var flagKeys = map[string]string{
	"root":          "watch.roots",
	"scan-existing": "watch.scan_existing",
	"http-port":     "server.http_port",
	"log-level":     "log.level",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("watch.roots", []string{})
	v.SetDefault("watch.settle_delay", 4*time.Second)
	v.SetDefault("watch.coalesce", true)
	v.SetDefault("watch.scan_existing", false)
	v.SetDefault("watch.lock_dir", os.TempDir())

	v.SetDefault("compression.max_size_kb", 100)
	v.SetDefault("compression.max_width", 1920)
	v.SetDefault("compression.max_height", 1080)
	v.SetDefault("compression.initial_quality", 95)
	v.SetDefault("compression.min_quality", 30)
	v.SetDefault("compression.quality_step", 5)
	v.SetDefault("compression.search", string(processor.Linear))
	v.SetDefault("compression.suffix", processor.DefaultSuffix)
	v.SetDefault("compression.atomic_write", true)

	v.SetDefault("retry.attempts", 3)
	v.SetDefault("retry.delay", 4*time.Second)
	v.SetDefault("retry.backoff", 1.0)

	v.SetDefault("server.http_port", "")

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.bucket_name", "")
	v.SetDefault("storage.prefix", "compressed")
	v.SetDefault("storage.use_ssl", false)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.topic", "")
	v.SetDefault("kafka.brokers", []string{})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Load reads the configuration from defaults, the YAML file at path, a .env file,
// IMGC_* environment variables and the given flags, in increasing precedence.
// An empty path falls back to DefaultPath when that file exists. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		if _, err := os.Stat(DefaultPath); err == nil {
			path = DefaultPath
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad is like Load but panics if the configuration cannot be loaded.
func MustLoad(path string, flags *pflag.FlagSet) *Config {
	cfg, err := Load(path, flags)
	if err != nil {
		zlog.Logger.Panic().Err(err).Msg("failed to load config")
	}

	return cfg
}

// Validate checks field constraints and the rules spanning several fields.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("%w: kafka.brokers is required when kafka is enabled", ErrInvalid)
	}

	seen := make(map[string]struct{}, len(c.Watch.Roots))
	for _, root := range c.Watch.Roots {
		if _, ok := seen[root]; ok {
			return fmt.Errorf("%w: watch root %s listed twice", ErrInvalid, root)
		}
		seen[root] = struct{}{}
	}

	return nil
}

// ProcessorOptions returns the compression settings for processor.New.
func (c *Config) ProcessorOptions() processor.Options {
	return processor.Options{
		MaxBytes:    c.Compression.MaxSizeKB * 1024,
		MaxWidth:    c.Compression.MaxWidth,
		MaxHeight:   c.Compression.MaxHeight,
		Suffix:      c.Compression.Suffix,
		AtomicWrite: c.Compression.AtomicWrite,
		Search: processor.QualitySearch{
			Initial: c.Compression.InitialQuality,
			Floor:   c.Compression.MinQuality,
			Step:    c.Compression.QualityStep,
			Mode:    processor.SearchMode(c.Compression.Search),
		},
		Retry: c.RetryStrategy(),
	}
}

// RetryStrategy returns the retry policy shared by compressions and the Kafka producer.
func (c *Config) RetryStrategy() retry.Strategy {
	return retry.Strategy{
		Attempts: c.Retry.Attempts,
		Delay:    c.Retry.Delay,
		Backoff:  c.Retry.Backoff,
	}
}

// RouterOptions returns the event routing settings for watch.NewRouter.
func (c *Config) RouterOptions() watch.RouterOptions {
	return watch.RouterOptions{
		SettleDelay: c.Watch.SettleDelay,
		Coalesce:    c.Watch.Coalesce,
		Suffix:      c.Compression.Suffix,
	}
}

// SupervisorOptions returns the subscription settings for watch.NewSupervisor.
func (c *Config) SupervisorOptions() watch.SupervisorOptions {
	return watch.SupervisorOptions{
		LockDir:      c.Watch.LockDir,
		ScanExisting: c.Watch.ScanExisting,
	}
}
